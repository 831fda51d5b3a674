package video

import (
	"fmt"

	"github.com/zurustar/awvm/pkg/resource"
)

// interp[n] is the 16.16 reciprocal of an edge run of n lines, scaled so
// that dx*interp[n]*4 is the per-line x step.
var interp = func() (t [1024]uint16) {
	t[0] = 0x4000
	for i := 1; i < len(t); i++ {
		t[i] = uint16(0x4000 / i)
	}
	return t
}()

// colour modes
const (
	colorBlend = 0x10 // (p & 7) | 8
)

func calcStep(p1, p2 Point) (step int32, dy int, err error) {
	dx := int(p2.X) - int(p1.X)
	dy = int(p2.Y) - int(p1.Y)
	if dy < 0 || dy >= len(interp) {
		return 0, 0, fmt.Errorf("%w: edge height %d outside interpolation table", resource.ErrCorrupt, dy)
	}
	return int32(dx * int(interp[dy]) * 4), dy, nil
}

// fillPolygon scan-converts poly centred on pt into the work page. Edges are
// walked in 16.16 fixed point from both ends of the vertex list.
func (r *Renderer) fillPolygon(poly *polygon, color uint8, pt Point) error {
	if poly.bboxW == 0 && poly.bboxH == 1 && poly.n == 4 {
		r.plot(int(pt.X), int(pt.Y), color)
		return nil
	}

	xmin := int(pt.X) - poly.bboxW/2
	xmax := int(pt.X) + poly.bboxW/2
	ymin := int(pt.Y) - poly.bboxH/2
	ymax := int(pt.Y) + poly.bboxH/2
	if xmin >= Width || xmax < 0 || ymin >= Height || ymax < 0 {
		return nil
	}

	y := ymin
	i, j := 0, poly.n-1
	x2 := int16(int(poly.points[i].X) + xmin)
	x1 := int16(int(poly.points[j].X) + xmin)
	i++
	j--

	cpt1 := uint32(x1) << 16
	cpt2 := uint32(x2) << 16

	for n := poly.n; ; {
		n -= 2
		if n == 0 {
			return nil
		}
		step1, _, err := calcStep(poly.points[j+1], poly.points[j])
		if err != nil {
			return err
		}
		step2, h, err := calcStep(poly.points[i-1], poly.points[i])
		if err != nil {
			return err
		}
		i++
		j--

		cpt1 = cpt1&0xFFFF0000 | 0x7FFF
		cpt2 = cpt2&0xFFFF0000 | 0x8000

		if h == 0 {
			cpt1 += uint32(step1)
			cpt2 += uint32(step2)
			continue
		}
		for ; h != 0; h-- {
			if y >= 0 {
				x1 := int16(cpt1 >> 16)
				x2 := int16(cpt2 >> 16)
				if x1 <= Width-1 && x2 >= 0 {
					if x1 < 0 {
						x1 = 0
					}
					if x2 > Width-1 {
						x2 = Width - 1
					}
					r.drawSpan(y, int(x1), int(x2), color)
				}
			}
			cpt1 += uint32(step1)
			cpt2 += uint32(step2)
			y++
			if y > Height-1 {
				return nil
			}
		}
	}
}

// drawSpan draws one horizontal line on the work page. Colours below 0x10
// are flat, 0x10 blends the existing pixel, above 0x10 copies from page 0.
func (r *Renderer) drawSpan(y, x1, x2 int, color uint8) {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	row := r.pages[r.work][y*Width+x1 : y*Width+x2+1]
	switch {
	case color < colorBlend:
		for i := range row {
			row[i] = color
		}
	case color > colorBlend:
		copy(row, r.pages[0][y*Width+x1:y*Width+x2+1])
	default:
		for i, p := range row {
			row[i] = p&7 | 8
		}
	}
}

// plot draws a single pixel on the work page with the same colour modes as
// drawSpan. Off-screen positions are ignored.
func (r *Renderer) plot(x, y int, color uint8) {
	if x < 0 || x > Width-1 || y < 0 || y > Height-1 {
		return
	}
	r.drawSpan(y, x, x, color)
}
