// Package video implements the four-page 16-colour framebuffer driven by the
// VM video opcodes: page aliasing, polygon filling, palette changes, screen
// bitmaps and chargen text.
package video

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/zurustar/awvm/pkg/logger"
	"github.com/zurustar/awvm/pkg/resource"
	"github.com/zurustar/awvm/pkg/vm"
)

// 画面サイズ
const (
	Width    = 320
	Height   = 200
	NumPages = 4
)

// ページIDの別名
const (
	PageFront = 0xFE // 表示中のページ
	PageBack  = 0xFF // 裏ページ
)

// Page is one 320x200 indexed framebuffer.
type Page [Width * Height]uint8

// At returns the colour index at (x, y).
func (p *Page) At(x, y int) uint8 { return p[y*Width+x] }

// FrameSink receives the front page every time the display is updated.
type FrameSink interface {
	Present(frame *image.Paletted)
}

// Renderer is the polygon renderer and page manager.
type Renderer struct {
	pages [NumPages]Page

	// ページインデックス (0..3)
	front, back, work int

	cinematic []byte
	video2    []byte
	palettes  []byte
	chargen   []byte
	strings   *StringTable

	palette        [16]color.RGBA
	paletteID      int
	pendingPalette int // -1 when no change is pending

	sink FrameSink
	log  *slog.Logger
}

// Option は Renderer のオプションを設定する関数型
type Option func(*Renderer)

// WithLogger はロガーを設定する
func WithLogger(log *slog.Logger) Option {
	return func(r *Renderer) {
		r.log = log
	}
}

// WithFrameSink は表示更新の送り先を設定する
func WithFrameSink(sink FrameSink) Option {
	return func(r *Renderer) {
		r.sink = sink
	}
}

// New creates a renderer with front = work = page 2 and back = page 1.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		front:          2,
		back:           1,
		work:           2,
		paletteID:      -1,
		pendingPalette: -1,
		log:            logger.Component("video"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetSink replaces the frame sink.
func (r *Renderer) SetSink(sink FrameSink) { r.sink = sink }

// SetPartData selects the polygon and palette banks of the current part.
func (r *Renderer) SetPartData(cinematic, palettes []byte) {
	r.cinematic = cinematic
	r.palettes = palettes
}

// SetVideo2 sets the shared polygon segment.
func (r *Renderer) SetVideo2(data []byte) { r.video2 = data }

// SetFont sets the 8x8 chargen font.
func (r *Renderer) SetFont(chargen []byte) { r.chargen = chargen }

// SetStrings sets the string table used by DrawString.
func (r *Renderer) SetStrings(st *StringTable) { r.strings = st }

// resolvePage maps a page id (0..3, 0xFE, 0xFF) to a page index.
// 不明なIDはページ0として扱う
func (r *Renderer) resolvePage(id uint8) int {
	switch {
	case id < NumPages:
		return int(id)
	case id == PageFront:
		return r.front
	case id == PageBack:
		return r.back
	}
	r.log.Warn("Unknown page id, using page 0", "page", fmt.Sprintf("0x%02X", id))
	return 0
}

// SelectPage sets the work page for subsequent drawing.
func (r *Renderer) SelectPage(page uint8) {
	r.work = r.resolvePage(page)
}

// FillPage fills a page with one colour.
func (r *Renderer) FillPage(page, color uint8) {
	p := &r.pages[r.resolvePage(page)]
	for i := range p {
		p[i] = color
	}
}

// CopyPage copies src to dst. Sources with bit 7 set (after masking bit 6)
// are scrolled copies of page src&3 shifted by vscroll lines.
func (r *Renderer) CopyPage(src, dst uint8, vscroll int16) {
	if src == dst {
		return
	}

	if src >= PageFront || src&0x80 == 0 {
		id := src
		if id < PageFront {
			id &= 0xBF
		}
		from, to := r.resolvePage(id), r.resolvePage(dst)
		if from != to {
			r.pages[to] = r.pages[from]
		}
		return
	}

	from := &r.pages[r.resolvePage(src&3)]
	to := &r.pages[r.resolvePage(dst)]
	if vscroll < -199 || vscroll > 199 {
		return
	}
	h := Height
	srcY, dstY := 0, 0
	if vscroll < 0 {
		h += int(vscroll)
		srcY = -int(vscroll)
	} else {
		h -= int(vscroll)
		dstY = int(vscroll)
	}
	copy(to[dstY*Width:(dstY+h)*Width], from[srcY*Width:(srcY+h)*Width])
}

// SetPalette requests a palette change, applied on the next display update.
func (r *Renderer) SetPalette(id uint8) {
	r.pendingPalette = int(id)
}

// UpdateDisplay selects the front page and presents it. 0xFE keeps the
// current front page, 0xFF swaps front and back.
func (r *Renderer) UpdateDisplay(page uint8) {
	switch page {
	case PageFront:
	case PageBack:
		r.front, r.back = r.back, r.front
	default:
		r.front = r.resolvePage(page)
	}

	if r.pendingPalette >= 0 {
		r.applyPalette(r.pendingPalette)
		r.pendingPalette = -1
	}

	if r.sink != nil {
		r.sink.Present(r.Frame())
	}
}

func (r *Renderer) applyPalette(id int) {
	pal, err := DecodePalette(r.palettes, id)
	if err != nil {
		r.log.Warn("Palette change ignored", "id", id, "error", err)
		return
	}
	r.palette = pal
	r.paletteID = id
}

// LoadScreen decodes a planar screen bitmap into page 0.
func (r *Renderer) LoadScreen(data []byte) error {
	return DecodeScreen(&r.pages[0], data)
}

// Page returns page i (0..3).
func (r *Renderer) Page(i int) *Page { return &r.pages[i] }

// FrontPage returns the index of the displayed page.
func (r *Renderer) FrontPage() int { return r.front }

// BackPage returns the index of the back page.
func (r *Renderer) BackPage() int { return r.back }

// WorkPage returns the index of the page being drawn to.
func (r *Renderer) WorkPage() int { return r.work }

// Palette returns the active palette.
func (r *Renderer) Palette() [16]color.RGBA { return r.palette }

// Frame returns a copy of the front page with the active palette.
func (r *Renderer) Frame() *image.Paletted {
	pal := make(color.Palette, len(r.palette))
	for i, c := range r.palette {
		pal[i] = c
	}
	img := image.NewPaletted(image.Rect(0, 0, Width, Height), pal)
	copy(img.Pix, r.pages[r.front][:])
	return img
}

// DrawPolygon draws the shape at offset in the selected polygon segment.
func (r *Renderer) DrawPolygon(src vm.PolygonSource, offset uint16, color uint8, zoom uint16, x, y int16) error {
	data := r.cinematic
	if src == vm.SourceVideo2 {
		data = r.video2
	}
	if data == nil {
		return fmt.Errorf("%w: polygon segment %d not loaded", resource.ErrMissingROM, src)
	}
	return r.ReadAndDrawPolygon(NewCursor(data, int(offset)), color, zoom, Point{X: x, Y: y})
}

var _ vm.Video = (*Renderer)(nil)
