package audio

import (
	"encoding/binary"
	"sync"
)

// Stream is the live PCM output of a System: signed 16-bit little-endian
// stereo frames at the mixer rate, the format ebiten's audio.Player reads.
// The mono mix is duplicated to both channels.
type Stream struct {
	sys *System
	buf []int16

	// tap receives a copy of every rendered block (WAV capture)
	tap func([]int16)
	mu  sync.Mutex
}

// bytesPerFrame is one stereo 16-bit frame.
const bytesPerFrame = 4

// NewStream creates an endless stream pulling from sys.
func NewStream(sys *System) *Stream {
	return &Stream{sys: sys}
}

// SetTap installs f to observe every rendered block. f must not retain the
// slice.
func (s *Stream) SetTap(f func([]int16)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tap = f
}

// Read renders len(p)/4 frames. It never returns an error.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	if cap(s.buf) < frames {
		s.buf = make([]int16, frames)
	}
	buf := s.buf[:frames]
	s.sys.mixer.Render(buf)
	if s.tap != nil {
		s.tap(buf)
	}

	muted := s.sys.IsMuted()
	for i, v := range buf {
		if muted {
			v = 0
		}
		binary.LittleEndian.PutUint16(p[i*bytesPerFrame:], uint16(v))
		binary.LittleEndian.PutUint16(p[i*bytesPerFrame+2:], uint16(v))
	}
	return frames * bytesPerFrame, nil
}
