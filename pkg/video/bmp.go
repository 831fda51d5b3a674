package video

import (
	"fmt"
	"io"

	"golang.org/x/image/bmp"
)

// WriteBMP encodes the displayed frame as an 8-bit paletted BMP.
func (r *Renderer) WriteBMP(w io.Writer) error {
	if err := bmp.Encode(w, r.Frame()); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return nil
}
