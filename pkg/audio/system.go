package audio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/zurustar/awvm/pkg/logger"
	"github.com/zurustar/awvm/pkg/resource"
	"github.com/zurustar/awvm/pkg/vm"
)

// System is the sound hardware seen by the VM. It owns the mixer and the
// music sequencer and translates the sound opcodes into calls on them.
//
// System does not talk to an audio device. Output is pulled from the
// mixer by a Stream (live playback) or a Recorder (WAV capture).
type System struct {
	// mixer mixes the 4 sample channels
	mixer *Mixer

	// player sequences music modules into the mixer
	player *SfxPlayer

	// samples resolves sound resource ids
	samples SampleSource

	// muted indicates whether Stream output is silenced
	muted bool

	log *slog.Logger
	mu  sync.RWMutex
}

// Option configures a System.
type Option func(*systemConfig)

type systemConfig struct {
	sampleRate int
	sched      Scheduler
	onMark     MarkFunc
	log        *slog.Logger
}

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *systemConfig) {
		c.log = log
	}
}

// WithSampleRate sets the mixer output rate.
func WithSampleRate(rate int) Option {
	return func(c *systemConfig) {
		c.sampleRate = rate
	}
}

// WithSequencerClock drives the music sequencer from s instead of a
// wall-clock Timer.
func WithSequencerClock(s Scheduler) Option {
	return func(c *systemConfig) {
		c.sched = s
	}
}

// WithMarkCallback receives the mark events of the music sequencer. It is
// called on the sequencer goroutine.
func WithMarkCallback(f MarkFunc) Option {
	return func(c *systemConfig) {
		c.onMark = f
	}
}

// NewSystem creates the sound hardware reading resources from samples.
func NewSystem(samples SampleSource, opts ...Option) *System {
	cfg := systemConfig{
		sampleRate: DefaultSampleRate,
		log:        logger.Component("audio"),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	mixer := NewMixer(cfg.sampleRate)
	playerOpts := []PlayerOption{WithPlayerLogger(cfg.log)}
	if cfg.sched != nil {
		playerOpts = append(playerOpts, WithScheduler(cfg.sched))
	}
	if cfg.onMark != nil {
		playerOpts = append(playerOpts, WithMarkHandler(cfg.onMark))
	}

	return &System{
		mixer:   mixer,
		player:  NewSfxPlayer(mixer, samples, playerOpts...),
		samples: samples,
		log:     cfg.log,
	}
}

// PlaySound starts sample resNum on channel. Volume 0 stops the channel.
func (s *System) PlaySound(resNum uint16, freq, vol, channel uint8) error {
	ch := int(channel & (NumChannels - 1))
	if vol == 0 {
		s.mixer.StopChannel(ch)
		return nil
	}

	hz, err := Frequency(freq)
	if err != nil {
		return err
	}
	data, err := s.samples.Sample(resNum)
	if err != nil {
		return err
	}
	chunk, err := ParseSample(data)
	if err != nil {
		return fmt.Errorf("sound 0x%02X: %w", resNum, err)
	}

	s.mixer.PlayChannel(ch, chunk, hz, min(vol, MaxVolume))
	s.log.Debug("Sound started", "res", fmt.Sprintf("0x%02X", resNum), "channel", ch, "freq", hz, "volume", vol)
	return nil
}

// PlayMusic forwards the playMusic opcode to the sequencer.
func (s *System) PlayMusic(resNum, delay uint16, pos uint8) error {
	return s.player.PlayMusic(resNum, delay, pos)
}

// StopAll stops the music and silences every channel.
func (s *System) StopAll() {
	s.player.Stop()
	s.mixer.StopAll()
}

// Shutdown stops all audio. The System must not be used afterwards.
func (s *System) Shutdown() {
	s.StopAll()
	if t, ok := s.player.sched.(*Timer); ok {
		t.Wait()
	}
}

// SetMuted silences or restores Stream output. Mixing continues while
// muted so channel positions keep advancing.
func (s *System) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
}

// IsMuted returns whether output is muted.
func (s *System) IsMuted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.muted
}

// Mixer returns the channel mixer.
func (s *System) Mixer() *Mixer { return s.mixer }

// Player returns the music sequencer.
func (s *System) Player() *SfxPlayer { return s.player }

// SampleRate returns the mixer output rate.
func (s *System) SampleRate() int { return s.mixer.SampleRate() }

var (
	_ vm.Sound     = (*System)(nil)
	_ SampleSource = (*resource.Set)(nil)
)
