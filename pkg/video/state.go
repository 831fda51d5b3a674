package video

import "fmt"

// State is the serialisable renderer state.
type State struct {
	Pages          [][]byte `cbor:"1,keyasint"`
	Front          int      `cbor:"2,keyasint"`
	Back           int      `cbor:"3,keyasint"`
	Work           int      `cbor:"4,keyasint"`
	PaletteID      int      `cbor:"5,keyasint"`
	PendingPalette int      `cbor:"6,keyasint"`
}

// State captures pages and page selection.
func (r *Renderer) State() State {
	s := State{
		Pages:          make([][]byte, NumPages),
		Front:          r.front,
		Back:           r.back,
		Work:           r.work,
		PaletteID:      r.paletteID,
		PendingPalette: r.pendingPalette,
	}
	for i := range r.pages {
		s.Pages[i] = append([]byte(nil), r.pages[i][:]...)
	}
	return s
}

// Restore replaces pages and page selection. The palette is decoded again
// from the current palette bank.
func (r *Renderer) Restore(s State) error {
	if len(s.Pages) != NumPages {
		return fmt.Errorf("video state has %d pages, want %d", len(s.Pages), NumPages)
	}
	for _, idx := range []int{s.Front, s.Back, s.Work} {
		if idx < 0 || idx >= NumPages {
			return fmt.Errorf("video state page index %d out of range", idx)
		}
	}
	for i, p := range s.Pages {
		if len(p) != len(r.pages[i]) {
			return fmt.Errorf("video state page %d has %d bytes", i, len(p))
		}
	}

	for i, p := range s.Pages {
		copy(r.pages[i][:], p)
	}
	r.front, r.back, r.work = s.Front, s.Back, s.Work
	r.pendingPalette = s.PendingPalette
	r.paletteID = -1
	if s.PaletteID >= 0 {
		r.applyPalette(s.PaletteID)
	}
	return nil
}
