package video

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/charmap"

	"github.com/zurustar/awvm/pkg/resource"
)

// glyphSize is the width and height of a chargen glyph.
const glyphSize = 8

// StringTable resolves string ids against the strings region: NUL-terminated
// text at offset 0 and a little-endian offset table at 0x1000.
type StringTable struct {
	data []byte
}

// NewStringTable wraps a strings region.
func NewStringTable(region []byte) *StringTable {
	return &StringTable{data: region}
}

// Raw returns the bytes of string id without the terminator.
func (st *StringTable) Raw(id uint16) ([]byte, error) {
	idx := resource.StringIndexOffset + 2*int(id)
	if idx+2 > len(st.data) {
		return nil, fmt.Errorf("%w: string 0x%03X", resource.ErrUnknownResource, id)
	}
	off := int(binary.LittleEndian.Uint16(st.data[idx:]))
	if off >= len(st.data) {
		return nil, fmt.Errorf("%w: string 0x%03X points past the region", resource.ErrCorrupt, id)
	}
	end := bytes.IndexByte(st.data[off:], 0)
	if end < 0 {
		return nil, fmt.Errorf("%w: string 0x%03X is not terminated", resource.ErrCorrupt, id)
	}
	return st.data[off : off+end], nil
}

// Text returns string id decoded from code page 850.
func (st *StringTable) Text(id uint16) (string, error) {
	raw, err := st.Raw(id)
	if err != nil {
		return "", err
	}
	// DOS版のテキストは CP850
	out, err := charmap.CodePage850.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode string 0x%03X: %w", id, err)
	}
	return string(out), nil
}

// Lookup adapts Text to the disassembler's string annotation hook.
func (st *StringTable) Lookup(id uint16) (string, bool) {
	s, err := st.Text(id)
	return s, err == nil
}

// DrawString draws string id on the work page. x is a column number (8
// pixels per column), y a pixel row; '\n' returns to the start column
// one glyph lower.
func (r *Renderer) DrawString(id uint16, x, y uint16, color uint8) error {
	if r.strings == nil {
		return fmt.Errorf("%w: strings region not loaded", resource.ErrMissingROM)
	}
	raw, err := r.strings.Raw(id)
	if err != nil {
		return err
	}

	// 最初の文字は x*8 に描かれる
	cx := 8 * (x - 1)
	x0 := cx
	for _, c := range raw {
		if c == '\n' {
			y += glyphSize
			cx = x0
			continue
		}
		cx += glyphSize
		if err := r.drawChar(c, int(int16(cx)), int(int16(y)), color); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) drawChar(c byte, x, y int, color uint8) error {
	off := (int(c) - ' ') * glyphSize
	if off < 0 || off+glyphSize > len(r.chargen) {
		return fmt.Errorf("%w: no glyph for 0x%02X", resource.ErrCorrupt, c)
	}
	for j, row := range r.chargen[off : off+glyphSize] {
		for i := 0; i < glyphSize; i++ {
			if row&0x80 != 0 {
				r.plot(x+i, y+j, color)
			}
			row <<= 1
		}
	}
	return nil
}
