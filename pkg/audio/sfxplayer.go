package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zurustar/awvm/pkg/logger"
	"github.com/zurustar/awvm/pkg/resource"
)

// Module layout.
const (
	moduleNumOrderOffset   = 0x3E
	moduleOrderTableOffset = 0x40
	moduleOrderTableSize   = 0x80
	modulePatternOffset    = 0xC0
	moduleInstruments      = 15

	patternSize = 1024
	rowSize     = NumChannels * 4
)

// Pattern cell markers in note_1.
const (
	noteMark = 0xFFFD
	noteStop = 0xFFFE
)

// Amiga period bounds accepted by the sequencer.
const (
	minPeriod = 0x37
	maxPeriod = 0x1000
)

// paulaClock converts an Amiga period to Hz: freq = paulaClock / (period * 2).
const paulaClock = 7159092

// SampleSource resolves sample and module resources.
type SampleSource interface {
	Sample(resNum uint16) ([]byte, error)
}

// MarkFunc receives the value of a mark event.
type MarkFunc func(value uint16)

type instrument struct {
	chunk  Chunk
	volume uint16
	ok     bool
}

type module struct {
	patterns   []byte
	orderTable [moduleOrderTableSize]byte
	numOrder   int
	curOrder   int
	curPos     int
	samples    [moduleInstruments]instrument
}

// SfxPlayer is the tracker-style music sequencer. Every tick plays one row
// of four channel cells into the mixer.
type SfxPlayer struct {
	mixer   *Mixer
	samples SampleSource
	sched   Scheduler
	onMark  MarkFunc

	delay  time.Duration
	resNum uint16 // 0 when no module is loaded
	mod    module

	log *slog.Logger
	mu  sync.Mutex
}

// PlayerOption configures an SfxPlayer.
type PlayerOption func(*SfxPlayer)

// WithScheduler sets the timer driving the sequencer.
func WithScheduler(s Scheduler) PlayerOption {
	return func(p *SfxPlayer) {
		p.sched = s
	}
}

// WithMarkHandler sets the receiver of mark events.
func WithMarkHandler(f MarkFunc) PlayerOption {
	return func(p *SfxPlayer) {
		p.onMark = f
	}
}

// WithPlayerLogger sets a custom logger.
func WithPlayerLogger(log *slog.Logger) PlayerOption {
	return func(p *SfxPlayer) {
		p.log = log
	}
}

// NewSfxPlayer creates a sequencer playing into mixer. Without
// WithScheduler it runs on a wall-clock Timer.
func NewSfxPlayer(mixer *Mixer, samples SampleSource, opts ...PlayerOption) *SfxPlayer {
	p := &SfxPlayer{
		mixer:   mixer,
		samples: samples,
		log:     logger.Component("audio"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.sched == nil {
		p.sched = NewTimer()
	}
	return p
}

// delayToDuration converts a module delay to the tick period.
func delayToDuration(delay uint16) time.Duration {
	return time.Duration(int(delay)*60/7050) * time.Millisecond
}

// Load prepares module resNum, starting at order-table entry pos. A zero
// delay selects the module's own delay.
func (p *SfxPlayer) Load(resNum, delay uint16, pos uint8) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load(resNum, delay, pos)
}

func (p *SfxPlayer) load(resNum, delay uint16, pos uint8) error {
	data, err := p.samples.Sample(resNum)
	if err != nil {
		return fmt.Errorf("music 0x%02X: %w", resNum, err)
	}
	if len(data) < modulePatternOffset {
		return fmt.Errorf("%w: music 0x%02X is %d bytes", resource.ErrCorrupt, resNum, len(data))
	}
	numOrder := int(binary.BigEndian.Uint16(data[moduleNumOrderOffset:]))
	if numOrder > moduleOrderTableSize || int(pos) >= moduleOrderTableSize {
		return fmt.Errorf("%w: music 0x%02X order table (%d entries, start %d)", resource.ErrCorrupt, resNum, numOrder, pos)
	}

	p.resNum = resNum
	p.mod = module{
		patterns: data[modulePatternOffset:],
		numOrder: numOrder,
		curOrder: int(pos),
	}
	copy(p.mod.orderTable[:], data[moduleOrderTableOffset:])

	if delay == 0 {
		delay = binary.BigEndian.Uint16(data)
	}
	p.delay = delayToDuration(delay)

	p.prepareInstruments(data[2:moduleNumOrderOffset])

	p.log.Info("Music loaded", "res", fmt.Sprintf("0x%02X", resNum), "orders", numOrder, "pos", pos, "delay", p.delay)
	return nil
}

func (p *SfxPlayer) prepareInstruments(table []byte) {
	for i := range p.mod.samples {
		res := binary.BigEndian.Uint16(table[4*i:])
		if res == 0 {
			continue
		}
		data, err := p.samples.Sample(res)
		if err == nil {
			var chunk Chunk
			if chunk, err = ParseSample(data); err == nil {
				p.mod.samples[i] = instrument{
					chunk:  chunk,
					volume: binary.BigEndian.Uint16(table[4*i+2:]),
					ok:     true,
				}
				continue
			}
		}
		p.log.Warn("Instrument skipped", "slot", i+1, "res", fmt.Sprintf("0x%02X", res), "error", err)
	}
}

// Start rewinds the current pattern and arms the timer.
func (p *SfxPlayer) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.start()
}

func (p *SfxPlayer) start() {
	p.mod.curPos = 0
	p.sched.Arm(p.delay, p.HandleEvents)
}

// Stop cancels the timer and unloads the module. Stopping a stopped player
// does nothing.
func (p *SfxPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stop()
}

func (p *SfxPlayer) stop() {
	if p.resNum == 0 {
		return
	}
	p.resNum = 0
	p.sched.Cancel()
	p.log.Info("Music stopped")
}

// SetEventsDelay changes the tick period, re-arming a playing sequencer.
func (p *SfxPlayer) SetEventsDelay(delay uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = delayToDuration(delay)
	if p.resNum != 0 {
		p.sched.Arm(p.delay, p.HandleEvents)
	}
}

// PlayMusic implements the playMusic opcode: a resource starts a module,
// a zero resource with a delay only changes the tempo, and zero for both
// stops the music.
func (p *SfxPlayer) PlayMusic(resNum, delay uint16, pos uint8) error {
	switch {
	case resNum != 0:
		p.mu.Lock()
		defer p.mu.Unlock()
		p.stop()
		if err := p.load(resNum, delay, pos); err != nil {
			return err
		}
		p.start()
		return nil
	case delay != 0:
		p.SetEventsDelay(delay)
		return nil
	default:
		p.Stop()
		return nil
	}
}

// Playing reports whether a module is loaded.
func (p *SfxPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resNum != 0
}

// Delay returns the current tick period.
func (p *SfxPlayer) Delay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delay
}

// Position returns the current order-table index and byte offset in the
// pattern.
func (p *SfxPlayer) Position() (order, pos int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mod.curOrder, p.mod.curPos
}

// HandleEvents plays one row. It is the timer callback.
func (p *SfxPlayer) HandleEvents() {
	marks := p.handleEvents()
	if p.onMark != nil {
		for _, m := range marks {
			p.onMark(m)
		}
	}
}

// handleEvents plays one row under the player and mixer locks and returns
// the mark events to deliver once the locks are released.
func (p *SfxPlayer) handleEvents() []uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resNum == 0 {
		return nil
	}

	p.mixer.mu.Lock()
	defer p.mixer.mu.Unlock()

	order := int(p.mod.orderTable[p.mod.curOrder])
	base := order*patternSize + p.mod.curPos
	if base+rowSize > len(p.mod.patterns) {
		p.log.Warn("Pattern outside module, stopping", "order", order, "pos", p.mod.curPos)
		p.stop()
		p.mixer.stopAll()
		return nil
	}

	var marks []uint16
	for ch := 0; ch < NumChannels; ch++ {
		cell := p.mod.patterns[base+4*ch:]
		if mark, ok := p.handlePattern(ch, binary.BigEndian.Uint16(cell), binary.BigEndian.Uint16(cell[2:])); ok {
			marks = append(marks, mark)
		}
	}

	p.mod.curPos += rowSize
	if p.mod.curPos >= patternSize {
		p.mod.curPos = 0
		p.mod.curOrder++
		if p.mod.curOrder >= p.mod.numOrder {
			p.stop()
			p.mixer.stopAll()
		}
	}
	return marks
}

// handlePattern applies one channel cell. Mark cells are returned instead
// of touching the mixer.
func (p *SfxPlayer) handlePattern(ch int, note1, note2 uint16) (uint16, bool) {
	if note1 == noteMark {
		return note2, true
	}

	var ins *instrument
	var volume uint8
	if n := note2 >> 12; n != 0 && p.mod.samples[n-1].ok {
		ins = &p.mod.samples[n-1]
		m := int(ins.volume)
		effect := (note2 >> 8) & 0x0F
		amount := int(note2 & 0xFF)
		switch effect {
		case 5:
			m = min(m+amount, MaxVolume)
		case 6:
			m = max(m-amount, 0)
		}
		volume = uint8(min(max(m, 0), MaxVolume))
		p.mixer.channels[ch].volume = volume
	}

	switch {
	case note1 == 0:
	case note1 == noteStop:
		p.mixer.channels[ch].active = false
	case ins != nil:
		if note1 < minPeriod || note1 >= maxPeriod {
			p.log.Warn("Period out of range, cell skipped", "channel", ch, "period", note1,
				"error", resource.ErrCorrupt)
			break
		}
		freq := uint16(paulaClock / (int(note1) * 2))
		p.mixer.playChannel(ch, ins.chunk, freq, volume)
	}
	return 0, false
}
