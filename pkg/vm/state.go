package vm

import "fmt"

// ThreadState is the serialisable form of a Thread.
type ThreadState struct {
	PCState         uint8  `cbor:"1,keyasint"`
	PC              uint16 `cbor:"2,keyasint"`
	RequestKind     uint8  `cbor:"3,keyasint"`
	RequestPC       uint16 `cbor:"4,keyasint"`
	Frozen          bool   `cbor:"5,keyasint"`
	RequestedFrozen bool   `cbor:"6,keyasint"`
}

// State is a complete copy of the interpreter state.
type State struct {
	Vars          []int16       `cbor:"1,keyasint"`
	Stack         []uint16      `cbor:"2,keyasint"`
	Threads       []ThreadState `cbor:"3,keyasint"`
	Current       int           `cbor:"4,keyasint"`
	PC            uint16        `cbor:"5,keyasint"`
	Live          bool          `cbor:"6,keyasint"`
	Part          uint16        `cbor:"7,keyasint"`
	RequestedPart uint16        `cbor:"8,keyasint"`
}

// State captures the interpreter state.
func (vm *VM) State() State {
	s := State{
		Vars:          append([]int16(nil), vm.vars[:]...),
		Stack:         vm.stack.Values(),
		Threads:       make([]ThreadState, NumThreads),
		Current:       vm.current,
		PC:            vm.pc,
		Live:          vm.live,
		Part:          vm.part,
		RequestedPart: vm.requestedPart,
	}
	for i, t := range vm.threads {
		s.Threads[i] = ThreadState{
			PCState:         uint8(t.PC.State),
			PC:              t.PC.Offset,
			RequestKind:     uint8(t.Requested.Kind),
			RequestPC:       t.Requested.Offset,
			Frozen:          t.Frozen,
			RequestedFrozen: t.RequestedFrozen,
		}
	}
	return s
}

// Restore replaces the interpreter state. The part bytecode is fetched
// again from the loader; part 0 leaves no bytecode loaded. Invalid states
// are rejected before anything is changed.
func (vm *VM) Restore(s State) error {
	if err := s.validate(); err != nil {
		return err
	}
	var code []byte
	if s.Part != 0 {
		var err error
		if code, err = vm.partCode(s.Part); err != nil {
			return err
		}
	}
	vm.code = code
	vm.vars = Variables{}
	copy(vm.vars[:], s.Vars)
	vm.stack.restore(s.Stack)
	for i := range vm.threads {
		var t ThreadState
		if i < len(s.Threads) {
			t = s.Threads[i]
		}
		vm.threads[i] = Thread{
			PC:              ThreadPC{State: PCState(t.PCState), Offset: t.PC},
			Requested:       PCRequest{Kind: RequestKind(t.RequestKind), Offset: t.RequestPC},
			Frozen:          t.Frozen,
			RequestedFrozen: t.RequestedFrozen,
		}
	}
	vm.current = s.Current
	vm.pc = s.PC
	vm.live = s.Live
	vm.part = s.Part
	vm.requestedPart = s.RequestedPart
	return nil
}

// validate rejects states that would index outside the VM's fixed tables.
func (s State) validate() error {
	if s.Current < 0 || s.Current >= NumThreads {
		return fmt.Errorf("vm state current thread %d out of range", s.Current)
	}
	if len(s.Vars) > NumVariables {
		return fmt.Errorf("vm state has %d variables, want at most %d", len(s.Vars), NumVariables)
	}
	if len(s.Stack) > StackDepth {
		return fmt.Errorf("vm state stack depth %d exceeds %d", len(s.Stack), StackDepth)
	}
	if len(s.Threads) > NumThreads {
		return fmt.Errorf("vm state has %d threads, want at most %d", len(s.Threads), NumThreads)
	}
	for i, t := range s.Threads {
		if PCState(t.PCState) > PCActive {
			return fmt.Errorf("vm state thread %d has PC state %d", i, t.PCState)
		}
		if RequestKind(t.RequestKind) > RequestGoto {
			return fmt.Errorf("vm state thread %d has request kind %d", i, t.RequestKind)
		}
	}
	return nil
}
