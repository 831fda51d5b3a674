package video

import (
	"fmt"
	"image/color"

	"github.com/zurustar/awvm/pkg/resource"
)

// NumColors is the palette size.
const NumColors = 16

// paletteBytes is the size of one encoded palette.
const paletteBytes = 2 * NumColors

// pal6bit expands a 6-bit component to 8 bits.
func pal6bit(v uint8) uint8 {
	v &= 0x3F
	return v<<2 | v>>4
}

// DecodePalette decodes palette id of a palette bank. Each colour is two
// bytes: 0x0R and 0xGB, 4 bits per component.
func DecodePalette(bank []byte, id int) ([NumColors]color.RGBA, error) {
	var pal [NumColors]color.RGBA
	off := id * paletteBytes
	if id < 0 || off+paletteBytes > len(bank) {
		return pal, fmt.Errorf("%w: palette %d outside bank (%d bytes)", resource.ErrCorrupt, id, len(bank))
	}

	for i := range pal {
		c1 := bank[off+2*i]
		c2 := bank[off+2*i+1]
		r := (c1&0x0F)<<2 | (c1&0x0F)>>2
		g := (c2&0xF0)>>2 | (c2&0xF0)>>6
		b := (c2&0x0F)>>2 | (c2&0x0F)<<2
		pal[i] = color.RGBA{R: pal6bit(r), G: pal6bit(g), B: pal6bit(b), A: 0xFF}
	}
	return pal, nil
}
