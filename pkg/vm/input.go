package vm

import "github.com/zurustar/awvm/pkg/opcode"

// Input is the player state sampled once per frame.
type Input struct {
	Left, Right, Up, Down bool
	Action                bool
	// LastChar is the last typed character (0 when none). Only letters and
	// backspace reach the game, upper-cased.
	LastChar byte
}

// ApplyInput encodes the player state into the hero variables.
func (vm *VM) ApplyInput(in Input) {
	var lr, ud, m int16
	if in.Right {
		lr = 1
		m |= 1
	}
	if in.Left {
		lr = -1
		m |= 2
	}
	if in.Down {
		ud = 1
		m |= 4
	}
	vm.vars[opcode.VarHeroPosUpDown] = ud
	if in.Up {
		vm.vars[opcode.VarHeroPosUpDown] = -1
		ud = -1
		m |= 8
	}
	vm.vars[opcode.VarHeroPosJumpDown] = ud
	vm.vars[opcode.VarHeroPosLeftRight] = lr
	vm.vars[opcode.VarHeroPosMask] = m

	var action int16
	if in.Action {
		action = 1
		m |= 0x80
	}
	vm.vars[opcode.VarHeroAction] = action
	vm.vars[opcode.VarHeroActionPosMask] = m

	if c := in.LastChar; c == 8 || (c >= 'a' && c <= 'z') {
		vm.vars[opcode.VarLastKeychar] = int16(c &^ 0x20)
	}
}

// SetMusicMark stores a sequencer mark into MUS_MARK.
func (vm *VM) SetMusicMark(v uint16) {
	vm.vars[opcode.VarMusMark] = int16(v)
}
