package vm

// StackDepth is the capacity of the call stack.
const StackDepth = 256

// Stack holds subroutine return addresses.
//
// Overflow and underflow are one-shot: a push on a full stack sets the
// overflow flag and the next pop clears it; a pop on an empty stack sets the
// underflow flag and the next push clears it.
type Stack struct {
	values    [StackDepth]uint16
	sp        int
	overflow  bool
	underflow bool
}

// Push stores a return address.
func (s *Stack) Push(v uint16) error {
	s.underflow = false
	if s.sp < StackDepth {
		s.values[s.sp] = v
		s.sp++
		return nil
	}
	s.overflow = true
	return NewStackFullError()
}

// Pop returns the most recently pushed address.
func (s *Stack) Pop() (uint16, error) {
	if s.overflow {
		// 溢れた値は捨てられている。直前までの値はそのまま返す
		s.overflow = false
		s.sp--
		return s.values[s.sp], NewStackOverflowError()
	}
	if s.sp == 0 {
		s.underflow = true
		return 0, NewStackUnderflowError()
	}
	s.sp--
	return s.values[s.sp], nil
}

// Clean empties the stack and clears both flags.
func (s *Stack) Clean() {
	s.sp = 0
	s.overflow = false
	s.underflow = false
}

// Depth returns the number of stored addresses.
func (s *Stack) Depth() int { return s.sp }

// Overflowed reports whether the overflow flag is set.
func (s *Stack) Overflowed() bool { return s.overflow }

// Underflowed reports whether the underflow flag is set.
func (s *Stack) Underflowed() bool { return s.underflow }

// Values returns a copy of the stored addresses, bottom first.
func (s *Stack) Values() []uint16 {
	out := make([]uint16, s.sp)
	copy(out, s.values[:s.sp])
	return out
}

// restore replaces the contents with values (truncated to capacity).
func (s *Stack) restore(values []uint16) {
	s.Clean()
	s.sp = copy(s.values[:], values)
}
