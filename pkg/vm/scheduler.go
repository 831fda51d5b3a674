package vm

import (
	"fmt"

	"github.com/zurustar/awvm/pkg/opcode"
	"github.com/zurustar/awvm/pkg/resource"
)

// advance moves to the next thread slot and runs the barrier on wrap.
func (vm *VM) advance() {
	vm.live = false
	vm.current = (vm.current + 1) % NumThreads
	if vm.current == 0 {
		vm.synchronize()
	}
}

// synchronize is the barrier reached when the round robin returns to
// thread 0: a requested part switch happens first, then every thread's
// buffered state is committed.
func (vm *VM) synchronize() {
	if vm.requestedPart != 0 {
		part := vm.requestedPart
		vm.requestedPart = 0
		vm.initForPart(part)
	}
	for i := range vm.threads {
		vm.threads[i].commit()
	}
	vm.epoch++
}

// selectRunnable makes a runnable thread current, advancing at most one
// full revolution. It returns false on an idle revolution.
func (vm *VM) selectRunnable() bool {
	for range NumThreads {
		t := &vm.threads[vm.current]
		if t.Runnable() {
			vm.pc = t.PC.Offset
			vm.live = true
			return true
		}
		vm.advance()
	}
	return false
}

// yield saves the live PC as the thread's request unless another request
// is already pending, then moves on.
func (vm *VM) yield() {
	t := &vm.threads[vm.current]
	if t.Requested.Kind == RequestNone {
		t.Requested = GotoRequest(vm.pc)
	}
	vm.advance()
}

// kill deactivates the current thread immediately.
func (vm *VM) kill() {
	vm.threads[vm.current].PC = Inactive()
	vm.advance()
}

// partCode resolves a part id to its bytecode through the loader.
func (vm *VM) partCode(partID uint16) ([]byte, error) {
	part, ok := resource.PartIndex(partID)
	if !ok {
		e := NewRuntimeError(ErrorInvalidPart, fmt.Sprintf("part id 0x%04X out of range", partID))
		e.Err = resource.ErrUnknownResource
		return nil, e
	}
	code, err := vm.loader.SetupPart(part)
	if err != nil {
		e := NewResourceError("setup part", err)
		e.Type = ErrorInvalidPart
		return nil, e
	}
	return code, nil
}

// initForPart loads the bytecode of a part and resets every thread so that
// only thread 0 runs, from offset 0. A failed load leaves the VM untouched.
func (vm *VM) initForPart(partID uint16) {
	code, err := vm.partCode(partID)
	if err != nil {
		vm.report(err.(*RuntimeError))
		return
	}

	vm.code = code
	vm.part = partID
	for i := range vm.threads {
		vm.threads[i] = Thread{PC: Inactive()}
	}
	vm.threads[0].PC = At(0)
	vm.stack.Clean()
	vm.live = false
	vm.current = 0
	if vm.compatHacks {
		vm.vars[0xE4] = 0x14
	}

	vm.log.Info("Part loaded", "id", fmt.Sprintf("0x%04X", partID), "size", len(code))
}

// RequestPart schedules a part switch for the next barrier.
func (vm *VM) RequestPart(partID uint16) {
	vm.requestedPart = partID
}

// resetThreads applies a bulk freeze/unfreeze/delete to [first, last].
func (vm *VM) resetThreads(first, last, typ byte) {
	i := int(first & (NumThreads - 1))
	j := int(last & (NumThreads - 1))
	if j < i {
		vm.diagnose(NewRuntimeError(ErrorInvalidThreadOp, "thread range end before start"))
		return
	}
	switch typ {
	case opcode.ThreadFreeze, opcode.ThreadUnfreeze:
		frozen := typ == opcode.ThreadFreeze
		for ; i <= j; i++ {
			vm.threads[i].RequestedFrozen = frozen
		}
	case opcode.ThreadDelete:
		for ; i <= j; i++ {
			vm.threads[i].Requested = DeleteRequest()
		}
	default:
		vm.diagnose(NewRuntimeError(ErrorInvalidThreadOp, "invalid bulk thread operation type"))
	}
}
