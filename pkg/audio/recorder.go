package audio

import (
	"fmt"
	"io"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder writes mixer output to a mono 16-bit PCM WAV file.
type Recorder struct {
	enc    *wav.Encoder
	buf    *goaudio.IntBuffer
	frames int
	closed bool
	err    error // first Tap failure
	mu     sync.Mutex
}

// wavFormatPCM is the WAVE_FORMAT_PCM format tag.
const wavFormatPCM = 1

// NewRecorder starts a WAV file on w at sampleRate.
func NewRecorder(w io.WriteSeeker, sampleRate int) *Recorder {
	return &Recorder{
		enc: wav.NewEncoder(w, sampleRate, 16, 1, wavFormatPCM),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}
}

// Write appends samples. It may be used as a Stream tap.
func (r *Recorder) Write(samples []int16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("recorder closed")
	}

	data := r.buf.Data[:0]
	for _, v := range samples {
		data = append(data, int(v))
	}
	r.buf.Data = data
	if err := r.enc.Write(r.buf); err != nil {
		return fmt.Errorf("failed to write WAV samples: %w", err)
	}
	r.frames += len(samples)
	return nil
}

// Tap adapts Write to Stream.SetTap. The first failure is kept and
// returned by Close.
func (r *Recorder) Tap(samples []int16) {
	if err := r.Write(samples); err != nil {
		r.mu.Lock()
		if r.err == nil {
			r.err = err
		}
		r.mu.Unlock()
	}
}

// Frames returns the number of samples written.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close finalises the WAV header. The underlying writer is not closed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.enc.Close(); err != nil {
		return fmt.Errorf("failed to finalise WAV file: %w", err)
	}
	return r.err
}
