package opcode

import (
	"errors"
	"testing"
)

func TestDisassemble(t *testing.T) {
	tests := []struct {
		name   string
		code   []byte
		length int
		text   string
	}{
		{"movConst", []byte{0x00, 0x0A, 0x12, 0x34}, 4, "mov [0x0A], 0x1234"},
		{"mov named var", []byte{0x01, 0xFF, 0xF9}, 3, "mov [PAUSE_SLICES], [SCROLL_Y]"},
		{"addConst", []byte{0x03, 0x0A, 0x00, 0x01}, 4, "add [0x0A], 0x0001"},
		{"call", []byte{0x04, 0x01, 0x00}, 3, "call 0x0100"},
		{"ret", []byte{0x05}, 1, "ret"},
		{"break", []byte{0x06}, 1, "break"},
		{"setvec", []byte{0x08, 0x3F, 0xFF, 0xFE}, 4, "setvec channel:0x3F, address:0xFFFE"},
		{"djnz", []byte{0x09, 0x10, 0x00, 0x20}, 4, "djnz [0x10], 0x0020"},
		{"je byte operand", []byte{0x0A, 0x00, 0x0A, 0x05, 0x00, 0x40}, 6, "je [0x0A], 0x05, 0x0040"},
		{"jne var operand", []byte{0x0A, 0x81, 0x0A, 0xFC, 0x00, 0x40}, 6, "jne [0x0A], [HERO_POS_LEFT_RIGHT], 0x0040"},
		{"jle word operand", []byte{0x0A, 0x45, 0x0A, 0x12, 0x35, 0x00, 0x40}, 7, "jle [0x0A], 0x1235, 0x0040"},
		{"invalid condition", []byte{0x0A, 0x06, 0x0A, 0x05, 0x00, 0x40}, 6, "< conditional jmp with invalid condition: 6 >"},
		{"resetThread delete", []byte{0x0C, 0x01, 0x3F, 0x02}, 4, "deleteChannels first:0x01, last:0x3F"},
		{"resetThread invalid", []byte{0x0C, 0x01, 0x3F, 0x03}, 4, "< invalid operation type for resetThread opcode >"},
		{"blit", []byte{0x10, 0xFF}, 2, "blitFramebuffer 0xFF"},
		{"kill", []byte{0x11}, 1, "killChannel"},
		{"play", []byte{0x18, 0x00, 0x2C, 0x14, 0x3F, 0x01}, 6, "play id:0x002C, freq:0x14, vol:0x3F, channel:0x01"},
		{"load", []byte{0x19, 0x3E, 0x81}, 3, "load id:0x3E81"},
		{"song", []byte{0x1A, 0x00, 0x07, 0x00, 0x00, 0x02}, 6, "song id:0x0007, delay:0x0000, pos:0x02"},
		{"illegal", []byte{0x1B}, 1, "< illegal instruction >"},
		{"cinematic fold", []byte{0x80, 0x10, 0x0A, 0xD0}, 4, "video: off=0x20 x=19 y=199"},
		{"polygon all bytes", []byte{0x6A, 0x00, 0x10, 0x05, 0x06, 0x30}, 6, "video: off=0x20 x=5 y=6 zoom:0x30"},
		{"polygon x+0x100", []byte{0x78, 0x00, 0x10, 0x05, 0x06}, 5, "video: off=0x20 x=261 y=6 zoom:0x40"},
		{"polygon words", []byte{0x40, 0x00, 0x10, 0x01, 0x00, 0x00, 0x20}, 7, "video: off=0x20 x=256 y=32 zoom:0x40"},
		{"polygon vars video2", []byte{0x57, 0x00, 0x10, 0xFC, 0xE5}, 5, "video: off=0x20 x=[HERO_POS_LEFT_RIGHT] y=[HERO_POS_UP_DOWN] zoom:0x40 video2"},
		{"polygon var zoom", []byte{0x59, 0x00, 0x10, 0x01, 0x02, 0x03}, 6, "video: off=0x20 x=[0x01] y=2 zoom:[0x03]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ins, err := Disassemble(tt.code, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ins.Length != tt.length {
				t.Errorf("length = %d, want %d", ins.Length, tt.length)
			}
			if ins.Text != tt.text {
				t.Errorf("text = %q, want %q", ins.Text, tt.text)
			}
		})
	}
}

func TestDisassemble_Truncated(t *testing.T) {
	_, err := Disassemble([]byte{0x00, 0x0A}, 0)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	_, err = Disassemble(nil, 0)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated for empty code, got %v", err)
	}
}

func TestDisassembler_StringAnnotation(t *testing.T) {
	d := Disassembler{Strings: func(id uint16) (string, bool) {
		if id == 0x0181 {
			return "Good evening professor.", true
		}
		return "", false
	}}

	ins, err := d.Disassemble([]byte{0x12, 0x01, 0x81, 0x04, 0x10, 0x0F}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `text id:0x0181, x:4, y:16, color:0x0F ; "Good evening professor."`
	if ins.Text != want {
		t.Errorf("text = %q, want %q", ins.Text, want)
	}
}

func TestListing(t *testing.T) {
	code := []byte{
		0x00, 0x0A, 0x12, 0x34, // mov
		0x03, 0x0A, 0x00, 0x01, // add
		0x06,       // break
		0x07, 0x00, // truncated jmp
	}
	list := Disassembler{}.Listing(code, 0)
	if len(list) != 3 {
		t.Fatalf("got %d instructions, want 3", len(list))
	}
	if list[2].PC != 8 || list[2].Text != "break" {
		t.Errorf("unexpected third instruction: %+v", list[2])
	}
}

func TestOpString(t *testing.T) {
	if Djnz.String() != "djnz" {
		t.Errorf("Djnz.String() = %q", Djnz.String())
	}
	if Op(0x1B).Valid() {
		t.Error("0x1B should not be a valid opcode")
	}
	if Op(0x1B).String() != "illegal(0x1B)" {
		t.Errorf("unexpected illegal name %q", Op(0x1B).String())
	}
	if VarName(0x10) != "0x10" || VarName(VarMusMark) != "MUS_MARK" {
		t.Error("VarName mismatch")
	}
}
