package vm

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// setVecCode builds "setvec t, addr; break" for thread 0.
func setVecCode(thread byte, addr uint16) []byte {
	return []byte{0x08, thread, byte(addr >> 8), byte(addr), 0x06}
}

// TestProperty_SetVecAppliesAtBarrier checks that a setVec request becomes
// the target's PC only once the round robin returns to thread 0.
func TestProperty_SetVecAppliesAtBarrier(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("setvec is invisible until the wrap to thread 0", prop.ForAll(
		func(target int, addr uint16, deleteReq bool) bool {
			if deleteReq {
				addr = rawDeleteThread
			}
			h := newHarness(t, setVecCode(byte(target), addr))
			before := h.vm.Thread(target).PC

			// setvec
			if !h.vm.Step() {
				return false
			}
			if h.vm.Thread(target).PC != before {
				return false
			}

			// break: thread 0 yields, the scheduler advances towards the wrap
			if !h.vm.Step() {
				return false
			}
			if target != 0 && h.vm.Epoch() != 0 {
				return false
			}
			if h.vm.Thread(target).PC != before && h.vm.Epoch() == 0 {
				return false
			}

			// drive the scheduler through the barrier
			h.vm.selectRunnable()
			if h.vm.Epoch() == 0 {
				return false
			}

			got := h.vm.Thread(target).PC
			if deleteReq {
				return got == Inactive()
			}
			return got == At(addr)
		},
		gen.IntRange(1, NumThreads-1),
		gen.UInt16Range(0, 0xFFFD),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestSetVec_NoRequestSentinel(t *testing.T) {
	code := []byte{
		0x08, 0x05, 0x00, 0x40, // setvec 5, 0x40
		0x08, 0x05, 0xFF, 0xFF, // setvec 5, none
		0x06,
	}
	h := newHarness(t, code)
	h.step(t, 3)
	h.vm.selectRunnable()

	if got := h.vm.Thread(5).PC; got != Inactive() {
		t.Errorf("thread 5 PC = %v, want inactive after a cleared request", got)
	}
}

func TestYield_FirstWriteWins(t *testing.T) {
	code := []byte{
		0x08, 0x01, 0x00, 0x08, // 0: setvec 1, 0x08
		0x06,             // 4: break
		0x07, 0x00, 0x00, // 5: jmp 0
		0x08, 0x01, 0x00, 0x20, // 8: setvec 1, 0x20
		0x06, // 12: break
	}
	h := newHarness(t, code)

	h.step(t, 2) // thread 0: setvec, break
	h.step(t, 1) // barrier, thread 0: jmp
	if h.vm.Thread(1).PC != At(0x08) {
		t.Fatalf("thread 1 PC = %v, want 0x0008", h.vm.Thread(1).PC)
	}
	h.step(t, 2) // thread 0: setvec, break
	h.step(t, 2) // thread 1: setvec 1, 0x20; break

	// break の再開位置 (13) で上書きされないこと
	if got := h.vm.Thread(1).Requested; got != GotoRequest(0x20) {
		t.Errorf("thread 1 request = %+v, want goto 0x20", got)
	}
}

func TestYield_SavesResumePC(t *testing.T) {
	code := []byte{
		0x06,                   // 0: break
		0x00, 0x10, 0x00, 0x01, // 1: mov [0x10], 1
		0x06, // 5: break
	}
	h := newHarness(t, code)
	h.step(t, 1)

	if got := h.vm.Thread(0).Requested; got != GotoRequest(1) {
		t.Fatalf("request after break = %+v, want goto 1", got)
	}
	if h.vm.Thread(0).PC != At(0) {
		t.Fatalf("current PC must not change before the barrier")
	}

	h.step(t, 1)
	if h.vm.Variables().Get(0x10) != 1 {
		t.Error("thread 0 should resume after the break")
	}
}

func TestKill_IsImmediate(t *testing.T) {
	code := []byte{0x06, 0x06, 0x06, 0x06, 0x06, 0x06, 0x11}
	h := newHarness(t, code)
	h.vm.threads[1].PC = At(6)

	h.step(t, 2) // thread 0 break, thread 1 kill

	if got := h.vm.Thread(1).PC; got != Inactive() {
		t.Errorf("thread 1 PC = %v, want inactive immediately", got)
	}
	if got := h.vm.Thread(1).Requested; got != NoRequest() {
		t.Errorf("kill must not use the request slot, got %+v", got)
	}
	if h.vm.Epoch() != 0 {
		t.Errorf("kill must not pass the barrier, epoch = %d", h.vm.Epoch())
	}
}

func TestResetThread(t *testing.T) {
	tests := []struct {
		name   string
		typ    byte
		frozen bool
		pc     ThreadPC
		diag   bool
	}{
		{"freeze", 0, true, At(0x10), false},
		{"unfreeze", 1, false, At(0x10), false},
		{"delete", 2, false, Inactive(), false},
		{"invalid type", 3, false, At(0x10), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := []byte{
				0x0C, 0x02, 0x43, tt.typ, // resetThread 2..3 (0x43 & 0x3F)
				0x06,
			}
			h := newHarness(t, code)
			h.vm.threads[2].PC = At(0x10)
			h.vm.threads[3].PC = At(0x10)

			h.step(t, 2) // resetThread, break

			// 反映前は変化しない
			if h.vm.Thread(2).Frozen || !h.vm.Thread(2).PC.Active() {
				t.Fatalf("thread 2 changed before the barrier: %+v", h.vm.Thread(2))
			}
			for h.vm.CurrentThread() != 0 {
				h.vm.advance()
			}

			for _, i := range []int{2, 3} {
				th := h.vm.Thread(i)
				if th.Frozen != tt.frozen || th.PC != tt.pc {
					t.Errorf("thread %d = %+v, want frozen %v pc %v", i, th, tt.frozen, tt.pc)
				}
			}
			if got := len(h.diags) == 1 && h.diags[0].Type == ErrorInvalidThreadOp; got != tt.diag {
				t.Errorf("diagnostics = %v", h.diagTypes())
			}
		})
	}
}

func TestResetThread_ReversedRange(t *testing.T) {
	h := newHarness(t, []byte{0x0C, 0x05, 0x02, 0x00})
	h.step(t, 1)
	if got := h.diagTypes(); len(got) != 1 || got[0] != ErrorInvalidThreadOp {
		t.Errorf("diagnostics = %v", got)
	}
}

func TestFrozenThreadIsSkipped(t *testing.T) {
	code := []byte{
		0x0C, 0x00, 0x00, 0x00, // freeze thread 0
		0x06, // break
	}
	h := newHarness(t, code)
	h.step(t, 2)

	if h.vm.Step() {
		t.Error("only thread is frozen, Step should report idle")
	}
	if !h.vm.Thread(0).Frozen {
		t.Error("freeze should be committed at the barrier")
	}
}

func TestRequestPart_ResetsThreads(t *testing.T) {
	h := newHarness(t, []byte{0x08, 0x07, 0x00, 0x10, 0x06})
	h.loader.parts[3] = []byte{0x06}
	h.step(t, 2)
	h.vm.Stack().Push(0x1234)
	h.vm.RequestPart(0x3E83)
	h.vm.selectRunnable()

	if h.vm.Part() != 0x3E83 {
		t.Fatalf("part = 0x%04X", h.vm.Part())
	}
	if h.vm.Thread(7).PC != Inactive() {
		t.Error("pending requests must be discarded by the part switch")
	}
	if h.vm.Thread(0).PC != At(0) || h.vm.Stack().Depth() != 0 {
		t.Error("thread 0 should restart at 0 with a clean stack")
	}
}
