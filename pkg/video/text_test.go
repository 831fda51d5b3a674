package video

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/zurustar/awvm/pkg/resource"
)

// testFont returns a chargen where 'A' has only its top-left pixel set and
// 'B' is a full block.
func testFont() []byte {
	font := make([]byte, 96*glyphSize)
	font[('A'-' ')*glyphSize] = 0x80
	for j := 0; j < glyphSize; j++ {
		font[('B'-' ')*glyphSize+j] = 0xFF
	}
	return font
}

// testStrings builds a strings region holding texts at consecutive ids.
func testStrings(texts ...string) []byte {
	region := make([]byte, resource.StringIndexOffset+0x800)
	off := 0
	for id, s := range texts {
		binary.LittleEndian.PutUint16(region[resource.StringIndexOffset+2*id:], uint16(off))
		off += copy(region[off:], s)
		region[off] = 0
		off++
	}
	return region
}

func TestStringTable_Text(t *testing.T) {
	st := NewStringTable(testStrings("HELLO", "CAF\x82"))

	tests := []struct {
		name string
		id   uint16
		want string
	}{
		{"ascii", 0, "HELLO"},
		{"code page 850", 1, "CAFé"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.Text(tt.id)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Text(%d) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}

	if s, ok := st.Lookup(0); !ok || s != "HELLO" {
		t.Errorf("Lookup(0) = %q, %v", s, ok)
	}
	if _, ok := st.Lookup(0x7FF); ok {
		t.Error("Lookup past the index should fail")
	}
}

func TestStringTable_Errors(t *testing.T) {
	t.Run("unterminated", func(t *testing.T) {
		region := make([]byte, resource.StringIndexOffset+2)
		for i := 0; i < resource.StringIndexOffset; i++ {
			region[i] = 'X'
		}
		binary.LittleEndian.PutUint16(region[resource.StringIndexOffset:], 0x0FFF)
		_, err := NewStringTable(region).Raw(0)
		if !errors.Is(err, resource.ErrCorrupt) {
			t.Errorf("error = %v, want ErrCorrupt", err)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := NewStringTable(make([]byte, 16)).Raw(3)
		if !errors.Is(err, resource.ErrUnknownResource) {
			t.Errorf("error = %v, want ErrUnknownResource", err)
		}
	})
}

func TestDrawString(t *testing.T) {
	r := newTestRenderer()
	r.SetFont(testFont())
	r.SetStrings(NewStringTable(testStrings("AA\nA")))

	if err := r.DrawString(0, 2, 10, 7); err != nil {
		t.Fatalf("DrawString: %v", err)
	}

	p := r.Page(r.WorkPage())
	for _, pt := range []Point{{16, 10}, {24, 10}, {16, 18}} {
		if got := p.At(int(pt.X), int(pt.Y)); got != 7 {
			t.Errorf("pixel %v = %d, want 7", pt, got)
		}
	}
	if got := countColor(p, 7); got != 3 {
		t.Errorf("drew %d pixels, want 3", got)
	}
}

func TestDrawString_Glyph(t *testing.T) {
	r := newTestRenderer()
	r.SetFont(testFont())
	r.SetStrings(NewStringTable(testStrings("B")))

	if err := r.DrawString(0, 1, 0, 3); err != nil {
		t.Fatalf("DrawString: %v", err)
	}
	if got := countColor(r.Page(r.WorkPage()), 3); got != 64 {
		t.Errorf("block glyph drew %d pixels, want 64", got)
	}
	if r.Page(r.WorkPage()).At(8, 0) != 3 || r.Page(r.WorkPage()).At(15, 7) != 3 {
		t.Error("glyph should cover (8,0)-(15,7)")
	}
}

func TestDrawString_MissingData(t *testing.T) {
	r := newTestRenderer()
	if err := r.DrawString(0, 1, 1, 1); !errors.Is(err, resource.ErrMissingROM) {
		t.Errorf("error = %v, want ErrMissingROM", err)
	}

	r.SetStrings(NewStringTable(testStrings("\x01")))
	r.SetFont(testFont())
	if err := r.DrawString(0, 1, 1, 1); !errors.Is(err, resource.ErrCorrupt) {
		t.Errorf("error = %v, want ErrCorrupt for a control character", err)
	}
}
