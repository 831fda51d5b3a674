package vm

import (
	"testing"

	"github.com/zurustar/awvm/pkg/opcode"
)

func TestApplyInput(t *testing.T) {
	tests := []struct {
		name                       string
		in                         Input
		lr, ud, jump, mask, action int16
		actionMask                 int16
	}{
		{"idle", Input{}, 0, 0, 0, 0, 0, 0},
		{"right", Input{Right: true}, 1, 0, 0, 1, 0, 1},
		{"left", Input{Left: true}, -1, 0, 0, 2, 0, 2},
		{"down", Input{Down: true}, 0, 1, 1, 4, 0, 4},
		{"up", Input{Up: true}, 0, -1, -1, 8, 0, 8},
		{"left wins over right", Input{Left: true, Right: true}, -1, 0, 0, 3, 0, 3},
		{"up wins over down", Input{Up: true, Down: true}, 0, -1, -1, 12, 0, 12},
		{"action", Input{Action: true}, 0, 0, 0, 0, 1, 0x80},
		{"jump right with action", Input{Up: true, Right: true, Action: true}, 1, -1, -1, 9, 1, 0x89},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, []byte{0x06})
			h.vm.ApplyInput(tt.in)
			v := h.vm.Variables()

			checks := []struct {
				idx  byte
				want int16
			}{
				{opcode.VarHeroPosLeftRight, tt.lr},
				{opcode.VarHeroPosUpDown, tt.ud},
				{opcode.VarHeroPosJumpDown, tt.jump},
				{opcode.VarHeroPosMask, tt.mask},
				{opcode.VarHeroAction, tt.action},
				{opcode.VarHeroActionPosMask, tt.actionMask},
			}
			for _, c := range checks {
				if got := v.Get(c.idx); got != c.want {
					t.Errorf("%s = %d, want %d", opcode.VarName(c.idx), got, c.want)
				}
			}
		})
	}
}

func TestApplyInput_LastChar(t *testing.T) {
	tests := []struct {
		name string
		c    byte
		want int16
	}{
		{"lowercase letter is upper-cased", 'q', 'Q'},
		{"backspace", 8, 8},
		{"digit is ignored", '5', 0},
		{"uppercase is ignored", 'Q', 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, []byte{0x06})
			h.vm.ApplyInput(Input{LastChar: tt.c})
			if got := h.vm.Variables().Get(opcode.VarLastKeychar); got != tt.want {
				t.Errorf("LAST_KEYCHAR = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSetMusicMark(t *testing.T) {
	h := newHarness(t, []byte{0x06})
	h.vm.SetMusicMark(0xFFFD)
	if got := h.vm.Variables().Get(opcode.VarMusMark); got != -3 {
		t.Errorf("MUS_MARK = %d, want -3", got)
	}
}
