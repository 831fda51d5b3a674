package video

import (
	"fmt"

	"github.com/zurustar/awvm/pkg/resource"
)

// planeSize is the size of one bit plane of a screen bitmap.
const planeSize = Width * Height / 8

// DecodeScreen decodes a 4-plane bitmap into p. Plane 0 holds bit 0 of
// every pixel, plane 3 bit 3; the MSB of each byte is the leftmost pixel.
func DecodeScreen(p *Page, data []byte) error {
	if len(data) < 4*planeSize {
		return fmt.Errorf("%w: screen bitmap has %d bytes, need %d", resource.ErrCorrupt, len(data), 4*planeSize)
	}

	for i := 0; i < planeSize; i++ {
		for bit := 0; bit < 8; bit++ {
			shift := 7 - bit
			var c uint8
			for plane := 3; plane >= 0; plane-- {
				c = c<<1 | (data[plane*planeSize+i]>>shift)&1
			}
			p[i*8+bit] = c
		}
	}
	return nil
}
