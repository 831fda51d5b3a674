package vm

import "fmt"

// NumThreads is the size of the thread table.
const NumThreads = 64

// Raw bytecode values of the setVec address operand.
const (
	rawDeleteThread = 0xFFFE
	rawNoRequest    = 0xFFFF
)

// PCState tags the current program counter of a thread.
type PCState uint8

const (
	PCInactive PCState = iota
	PCPendingDelete
	PCActive
)

// ThreadPC is the current program counter of a thread.
type ThreadPC struct {
	State  PCState
	Offset uint16 // valid when State == PCActive
}

// Inactive returns the inactive PC.
func Inactive() ThreadPC { return ThreadPC{State: PCInactive} }

// PendingDelete returns the delete-pending PC.
func PendingDelete() ThreadPC { return ThreadPC{State: PCPendingDelete} }

// At returns an active PC at offset.
func At(offset uint16) ThreadPC { return ThreadPC{State: PCActive, Offset: offset} }

// Active reports whether the PC points at code.
func (p ThreadPC) Active() bool { return p.State == PCActive }

func (p ThreadPC) String() string {
	switch p.State {
	case PCInactive:
		return "inactive"
	case PCPendingDelete:
		return "pending-delete"
	default:
		return fmt.Sprintf("0x%04X", p.Offset)
	}
}

// RequestKind tags a buffered PC request.
type RequestKind uint8

const (
	RequestNone RequestKind = iota
	RequestDelete
	RequestGoto
)

// PCRequest is a buffered PC change applied at the next barrier.
type PCRequest struct {
	Kind   RequestKind
	Offset uint16 // valid when Kind == RequestGoto
}

// NoRequest returns the empty request.
func NoRequest() PCRequest { return PCRequest{} }

// DeleteRequest returns a request to deactivate the thread.
func DeleteRequest() PCRequest { return PCRequest{Kind: RequestDelete} }

// GotoRequest returns a request to continue at offset.
func GotoRequest(offset uint16) PCRequest { return PCRequest{Kind: RequestGoto, Offset: offset} }

// requestFromRaw decodes the address operand of setVec.
func requestFromRaw(addr uint16) PCRequest {
	switch addr {
	case rawNoRequest:
		return NoRequest()
	case rawDeleteThread:
		return DeleteRequest()
	default:
		return GotoRequest(addr)
	}
}

// Thread is one cooperative execution context.
type Thread struct {
	PC              ThreadPC
	Requested       PCRequest
	Frozen          bool
	RequestedFrozen bool
}

// Runnable reports whether the scheduler may run the thread.
func (t *Thread) Runnable() bool {
	return !t.Frozen && t.PC.Active()
}

// commit applies the buffered state and clears the request slot.
func (t *Thread) commit() {
	t.Frozen = t.RequestedFrozen
	switch t.Requested.Kind {
	case RequestDelete:
		t.PC = Inactive()
	case RequestGoto:
		t.PC = At(t.Requested.Offset)
	}
	t.Requested = NoRequest()
}
