package video

import (
	"fmt"

	"github.com/zurustar/awvm/pkg/resource"
)

// DefaultZoom is the unscaled zoom factor.
const DefaultZoom = 0x40

// maxPoints is the vertex limit of one polygon.
const maxPoints = 50

// maxHierarchyDepth bounds nested hierarchies so that self-referencing data
// fails instead of recursing forever.
const maxHierarchyDepth = 32

// Point is a screen position.
type Point struct {
	X, Y int16
}

// Cursor is a read position in a polygon segment. It is passed by value,
// so a child shape never moves its parent's position.
type Cursor struct {
	data []byte
	off  int
}

// NewCursor returns a cursor at off in data.
func NewCursor(data []byte, off int) Cursor {
	return Cursor{data: data, off: off}
}

// Offset returns the current read position.
func (c Cursor) Offset() int { return c.off }

func (c *Cursor) next() (byte, error) {
	if c.off < 0 || c.off >= len(c.data) {
		return 0, fmt.Errorf("%w: polygon read at 0x%04X past end of segment (%d bytes)", resource.ErrCorrupt, c.off, len(c.data))
	}
	b := c.data[c.off]
	c.off++
	return b, nil
}

func (c *Cursor) word() (uint16, error) {
	hi, err := c.next()
	if err != nil {
		return 0, err
	}
	lo, err := c.next()
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// scaled applies zoom to an unsigned coordinate byte.
func scaled(b byte, zoom uint16) int {
	return int(b) * int(zoom) / DefaultZoom
}

// polygon is a decoded vertex list in shape space.
type polygon struct {
	bboxW, bboxH int
	n            int
	points       [maxPoints]Point
}

func readVertices(c *Cursor, zoom uint16) (*polygon, error) {
	start := c.off
	w, err := c.next()
	if err != nil {
		return nil, err
	}
	h, err := c.next()
	if err != nil {
		return nil, err
	}
	n, err := c.next()
	if err != nil {
		return nil, err
	}
	if n == 0 || n&1 != 0 || n >= maxPoints {
		return nil, fmt.Errorf("%w: polygon at 0x%04X has %d points", resource.ErrCorrupt, start, n)
	}

	p := &polygon{bboxW: scaled(w, zoom), bboxH: scaled(h, zoom), n: int(n)}
	for i := 0; i < p.n; i++ {
		x, err := c.next()
		if err != nil {
			return nil, err
		}
		y, err := c.next()
		if err != nil {
			return nil, err
		}
		p.points[i] = Point{X: int16(scaled(x, zoom)), Y: int16(scaled(y, zoom))}
	}
	return p, nil
}

// ReadAndDrawPolygon reads a shape at c and draws it centred on pt. A
// header byte >= 0xC0 starts a single polygon, type 2 starts a hierarchy.
// When color has bit 7 set the polygon's own colour is used.
func (r *Renderer) ReadAndDrawPolygon(c Cursor, color uint8, zoom uint16, pt Point) error {
	return r.readAndDrawPolygon(c, color, zoom, pt, 0)
}

func (r *Renderer) readAndDrawPolygon(c Cursor, color uint8, zoom uint16, pt Point, depth int) error {
	start := c.off
	v, err := c.next()
	if err != nil {
		return err
	}

	if v >= 0xC0 {
		if color&0x80 != 0 {
			color = v & 0x3F
		}
		poly, err := readVertices(&c, zoom)
		if err != nil {
			return err
		}
		return r.fillPolygon(poly, color, pt)
	}

	if v&0x3F != 2 {
		return fmt.Errorf("%w: unknown shape type 0x%02X at 0x%04X", resource.ErrCorrupt, v, start)
	}
	if depth >= maxHierarchyDepth {
		return fmt.Errorf("%w: shape hierarchy deeper than %d at 0x%04X", resource.ErrCorrupt, maxHierarchyDepth, start)
	}
	return r.readAndDrawPolygonHierarchy(c, zoom, pt, depth)
}

// readAndDrawPolygonHierarchy draws count+1 children relative to pt.
func (r *Renderer) readAndDrawPolygonHierarchy(c Cursor, zoom uint16, pt Point, depth int) error {
	dx, err := c.next()
	if err != nil {
		return err
	}
	dy, err := c.next()
	if err != nil {
		return err
	}
	origin := Point{X: pt.X - int16(scaled(dx, zoom)), Y: pt.Y - int16(scaled(dy, zoom))}

	count, err := c.next()
	if err != nil {
		return err
	}

	for i := 0; i <= int(count); i++ {
		off, err := c.word()
		if err != nil {
			return err
		}
		cx, err := c.next()
		if err != nil {
			return err
		}
		cy, err := c.next()
		if err != nil {
			return err
		}
		po := Point{X: origin.X + int16(scaled(cx, zoom)), Y: origin.Y + int16(scaled(cy, zoom))}

		var color uint8 = 0xFF
		if off&0x8000 != 0 {
			b, err := c.next()
			if err != nil {
				return err
			}
			color = b & 0x7F
			// 1バイト読み飛ばす
			if _, err := c.next(); err != nil {
				return err
			}
		}

		child := NewCursor(c.data, int(off&0x7FFF)*2)
		if err := r.readAndDrawPolygon(child, color, zoom, po, depth+1); err != nil {
			return err
		}
	}
	return nil
}
