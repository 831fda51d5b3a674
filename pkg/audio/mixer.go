// Package audio provides the sound hardware of the Another World machine:
// the 4-channel sample mixer, the tracker-style music sequencer (SfxPlayer)
// and the timer that drives it.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/zurustar/awvm/pkg/resource"
)

// Mixer constants.
const (
	// DefaultSampleRate is the output rate of the arcade sound driver.
	DefaultSampleRate = 31677

	NumChannels = 4
	MaxVolume   = 0x3F

	// sampleHeaderSize is the header in front of the PCM data of a sample.
	sampleHeaderSize = 8
)

// frequencyTable maps the playSound frequency index to Hz.
var frequencyTable = [...]uint16{
	0x0CFF, 0x0DC3, 0x0E91, 0x0F6F, 0x1056, 0x114E, 0x1259, 0x136C,
	0x149F, 0x15D9, 0x1726, 0x1888, 0x19FD, 0x1B86, 0x1D21, 0x1EDE,
	0x20AB, 0x229C, 0x24B3, 0x26D7, 0x293F, 0x2BB2, 0x2E4C, 0x3110,
	0x33FB, 0x370D, 0x3A43, 0x3DDF, 0x4157, 0x4538, 0x4998, 0x4DAE,
	0x5240, 0x5764, 0x5C9A, 0x61C8, 0x6793, 0x6E19, 0x7485, 0x7BBD,
}

// NumFrequencies is the size of the playSound frequency table.
const NumFrequencies = len(frequencyTable)

// Frequency returns the playback rate of frequency index i.
func Frequency(i uint8) (uint16, error) {
	if int(i) >= NumFrequencies {
		return 0, fmt.Errorf("%w: frequency index %d out of range", resource.ErrCorrupt, i)
	}
	return frequencyTable[i], nil
}

// ErrNoSample is wrapped when a sample resource header is unusable.
var ErrNoSample = errors.New("invalid sample resource")

// Chunk is a sample ready for playback: signed 8-bit PCM with an optional
// loop at [LoopPos, LoopPos+LoopLen).
type Chunk struct {
	Data    []byte
	Len     int
	LoopPos int
	LoopLen int
}

// ParseSample decodes a sample resource: big-endian length and loop length
// in words, 4 unused bytes, then the PCM data. A looping sample loops on
// the data that follows its first Len bytes.
func ParseSample(res []byte) (Chunk, error) {
	if len(res) < sampleHeaderSize {
		return Chunk{}, fmt.Errorf("%w: %w: %d byte header", resource.ErrCorrupt, ErrNoSample, len(res))
	}
	c := Chunk{
		Len:     int(binary.BigEndian.Uint16(res)) * 2,
		LoopLen: int(binary.BigEndian.Uint16(res[2:])) * 2,
	}
	if c.LoopLen != 0 {
		c.LoopPos = c.Len
	}
	end := c.Len + c.LoopLen
	if end == 0 || sampleHeaderSize+end > len(res) {
		return Chunk{}, fmt.Errorf("%w: %w: %d bytes of PCM declared, %d present", resource.ErrCorrupt, ErrNoSample, end, len(res)-sampleHeaderSize)
	}
	c.Data = res[sampleHeaderSize : sampleHeaderSize+end]
	return c, nil
}

type channel struct {
	active bool
	volume uint8
	chunk  Chunk
	pos    uint32 // 24.8
	inc    uint32 // 24.8
}

// Mixer mixes 4 sample channels into one signed 16-bit stream. All methods
// are safe for concurrent use; the audio callback and the sequencer are
// serialised by the mixer lock.
type Mixer struct {
	channels [NumChannels]channel
	rate     int
	mu       sync.Mutex
}

// NewMixer creates a mixer producing sampleRate samples per second. A
// non-positive rate selects DefaultSampleRate.
func NewMixer(sampleRate int) *Mixer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Mixer{rate: sampleRate}
}

// SampleRate returns the output rate.
func (m *Mixer) SampleRate() int { return m.rate }

// PlayChannel starts chunk on channel ch at freq Hz.
func (m *Mixer) PlayChannel(ch int, chunk Chunk, freq uint16, volume uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playChannel(ch, chunk, freq, volume)
}

func (m *Mixer) playChannel(ch int, chunk Chunk, freq uint16, volume uint8) {
	c := &m.channels[ch&(NumChannels-1)]
	c.active = true
	c.volume = min(volume, MaxVolume)
	c.chunk = chunk
	c.pos = 0
	c.inc = uint32(freq) << 8 / uint32(m.rate)
}

// StopChannel silences channel ch.
func (m *Mixer) StopChannel(ch int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch&(NumChannels-1)].active = false
}

// SetChannelVolume changes the volume of channel ch.
func (m *Mixer) SetChannelVolume(ch int, volume uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch&(NumChannels-1)].volume = min(volume, MaxVolume)
}

// StopAll silences every channel.
func (m *Mixer) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopAll()
}

func (m *Mixer) stopAll() {
	for i := range m.channels {
		m.channels[i].active = false
	}
}

// Active reports whether channel ch is playing.
func (m *Mixer) Active(ch int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels[ch&(NumChannels-1)].active
}

// Volume returns the volume of channel ch.
func (m *Mixer) Volume(ch int) uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels[ch&(NumChannels-1)].volume
}

// Render fills out with mixed samples.
func (m *Mixer) Render(out []int16) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range out {
		var value int16
		for k := range m.channels {
			c := &m.channels[k]
			if !c.active {
				continue
			}
			b, ok := c.next()
			if !ok {
				continue
			}
			value = addClamp(value, int(b)<<8*int(c.volume)/0x40)
		}
		out[i] = value
	}
}

// next returns the interpolated sample at the cursor and advances it. A
// non-looping chunk deactivates itself when the cursor reaches its last
// byte.
func (c *channel) next() (int8, bool) {
	frac := int(c.pos & 0xFF)
	p1 := int(c.pos >> 8)
	c.pos += c.inc

	var p2 int
	if c.chunk.LoopLen != 0 {
		last := c.chunk.LoopPos + c.chunk.LoopLen - 1
		if p1 >= last {
			p1 = min(p1, last)
			p2 = c.chunk.LoopPos
			c.pos = uint32(p2) << 8
		} else {
			p2 = p1 + 1
		}
	} else {
		if p1 >= c.chunk.Len-1 {
			c.active = false
			return 0, false
		}
		p2 = p1 + 1
	}

	b1 := int(int8(c.chunk.Data[p1]))
	b2 := int(int8(c.chunk.Data[p2]))
	return int8((b1*(0x100-frac) + b2*frac) >> 8), true
}

func addClamp(a int16, b int) int16 {
	sum := int(a) + b
	switch {
	case sum < -32768:
		return -32768
	case sum > 32767:
		return 32767
	}
	return int16(sum)
}
