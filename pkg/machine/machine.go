// Package machine assembles the VM, the renderer and the sound hardware
// into a runnable Another World machine, and paces it in real or virtual
// time.
package machine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zurustar/awvm/pkg/audio"
	"github.com/zurustar/awvm/pkg/logger"
	"github.com/zurustar/awvm/pkg/opcode"
	"github.com/zurustar/awvm/pkg/resource"
	"github.com/zurustar/awvm/pkg/video"
	"github.com/zurustar/awvm/pkg/vm"
)

// Defaults for frame pacing.
const (
	DefaultCyclesPerFrame = 50000
	DefaultSlice          = 20 * time.Millisecond

	// markQueueSize bounds the mark events waiting for the VM goroutine.
	markQueueSize = 16
)

// Machine is one running game. RunFrame and everything that touches the
// VM must be called from a single goroutine; only the music sequencer runs
// elsewhere, and its marks reach the VM through a queue.
type Machine struct {
	rom   *resource.Set
	vm    *vm.VM
	video *video.Renderer
	sound *audio.System

	marks chan uint16

	cyclesPerFrame int
	slice          time.Duration

	// virtual time (headless) state
	clock    *audio.StepClock
	pcm      func([]int16)
	elapsed  time.Duration
	rendered int64

	frames uint64
	log    *slog.Logger
}

type options struct {
	log            *slog.Logger
	vmOpts         []vm.Option
	audioOpts      []audio.Option
	sink           video.FrameSink
	cyclesPerFrame int
	slice          time.Duration
	virtual        bool
	pcm            func([]int16)
}

// Option is a functional option for configuring the Machine.
type Option func(*options)

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithVMOptions passes options to the VM.
func WithVMOptions(opts ...vm.Option) Option {
	return func(o *options) {
		o.vmOpts = append(o.vmOpts, opts...)
	}
}

// WithAudioOptions passes options to the sound hardware.
func WithAudioOptions(opts ...audio.Option) Option {
	return func(o *options) {
		o.audioOpts = append(o.audioOpts, opts...)
	}
}

// WithFrameSink receives every displayed frame.
func WithFrameSink(sink video.FrameSink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithCyclesPerFrame sets the cycle budget of one RunFrame.
func WithCyclesPerFrame(n int) Option {
	return func(o *options) {
		o.cyclesPerFrame = n
	}
}

// WithSlice sets the duration of one pause slice.
func WithSlice(d time.Duration) Option {
	return func(o *options) {
		o.slice = d
	}
}

// WithVirtualTime runs the machine without sleeping. The music sequencer
// is driven by the simulated time, and the mixer output for that time is
// handed to pcm (which may be nil).
func WithVirtualTime(pcm func([]int16)) Option {
	return func(o *options) {
		o.virtual = true
		o.pcm = pcm
	}
}

// New builds a machine over rom.
func New(rom *resource.Set, opts ...Option) *Machine {
	o := options{
		log:            logger.Component("machine"),
		cyclesPerFrame: DefaultCyclesPerFrame,
		slice:          DefaultSlice,
	}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Machine{
		rom:            rom,
		marks:          make(chan uint16, markQueueSize),
		cyclesPerFrame: o.cyclesPerFrame,
		slice:          o.slice,
		pcm:            o.pcm,
		log:            o.log,
	}

	m.video = video.New(video.WithFrameSink(o.sink))
	m.video.SetVideo2(rom.Video2())
	m.video.SetFont(rom.Chargen())
	texts := video.NewStringTable(rom.Strings())
	m.video.SetStrings(texts)

	audioOpts := []audio.Option{audio.WithMarkCallback(m.queueMark)}
	if o.virtual {
		m.clock = audio.NewStepClock()
		audioOpts = append(audioOpts, audio.WithSequencerClock(m.clock))
	}
	m.sound = audio.NewSystem(rom, append(audioOpts, o.audioOpts...)...)

	vmOpts := append([]vm.Option{vm.WithDisassembler(opcode.Disassembler{Strings: texts.Lookup})}, o.vmOpts...)
	m.vm = vm.New(m.video, m.sound, m, vmOpts...)
	return m
}

// SetupPart implements vm.Loader.
func (m *Machine) SetupPart(part int) ([]byte, error) {
	code := m.rom.Bytecode(part)
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: no bytecode for part %d", resource.ErrMissingROM, part)
	}
	m.video.SetPartData(m.rom.Cinematic(part), m.rom.Palettes(part))
	return code, nil
}

// LoadResource implements vm.Loader. Screens are drawn into page 0;
// sound resources are read when played, so loading them does nothing.
func (m *Machine) LoadResource(resNum uint16) error {
	if resource.IsScreenID(resNum) {
		data, err := m.rom.Screen(resNum)
		if err != nil {
			return err
		}
		return m.video.LoadScreen(data)
	}
	if _, ok := resource.SampleIndex(resNum); ok {
		return nil
	}
	return fmt.Errorf("%w: resource 0x%02X", resource.ErrUnknownResource, resNum)
}

// queueMark is the sequencer mark callback. It never blocks the sequencer.
func (m *Machine) queueMark(v uint16) {
	select {
	case m.marks <- v:
	default:
		m.log.Warn("Music mark dropped", "value", v)
	}
}

// drainMarks applies queued marks; the last one wins.
func (m *Machine) drainMarks() {
	for {
		select {
		case v := <-m.marks:
			m.vm.SetMusicMark(v)
		default:
			return
		}
	}
}

// Start resets the machine and starts part (0-based).
func (m *Machine) Start(part int) error {
	if part < 0 || part >= resource.NumParts {
		return fmt.Errorf("part %d out of range", part)
	}
	m.sound.StopAll()
	m.vm.Reset()
	m.vm.Start(resource.FirstPartID + uint16(part))
	if m.vm.Part() == 0 {
		return fmt.Errorf("part %d could not be loaded", part)
	}
	return nil
}

// Frame describes one RunFrame call.
type Frame struct {
	vm.Result
	// Pause is how long the host waits before the next frame.
	Pause time.Duration
}

// RunFrame samples input, runs the VM until it blits a frame or exhausts
// the cycle budget, and returns the pause owed before the next frame.
func (m *Machine) RunFrame(in vm.Input) Frame {
	m.drainMarks()
	m.vm.ApplyInput(in)
	r := m.vm.Run(m.cyclesPerFrame)
	m.frames++

	f := Frame{Result: r, Pause: m.slice}
	if r.Blitted {
		slices := int(m.vm.Variables().Get(opcode.VarPauseSlices))
		f.Pause = time.Duration(max(slices, 1)) * m.slice
	}
	return f
}

// Run drives frames until ctx is done or maxFrames frames ran (0 means no
// limit). input is polled once per frame and may be nil.
func (m *Machine) Run(ctx context.Context, maxFrames int, input func() vm.Input) error {
	m.log.Info("Machine running", "virtual", m.clock != nil, "maxFrames", maxFrames)
	for maxFrames == 0 || m.frames < uint64(maxFrames) {
		if err := ctx.Err(); err != nil {
			return err
		}
		var in vm.Input
		if input != nil {
			in = input()
		}
		f := m.RunFrame(in)
		if err := m.wait(ctx, f.Pause); err != nil {
			return err
		}
	}
	return nil
}

// wait lets d pass, in real time or by advancing the virtual clock.
func (m *Machine) wait(ctx context.Context, d time.Duration) error {
	if m.clock != nil {
		m.Advance(d)
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Advance moves virtual time forward by d, one slice at a time, firing
// sequencer ticks and rendering the matching mixer output. It does nothing
// on a real-time machine.
func (m *Machine) Advance(d time.Duration) {
	if m.clock == nil {
		return
	}
	rate := int64(m.sound.SampleRate())
	var buf []int16
	for d > 0 {
		step := min(d, m.slice)
		d -= step
		m.clock.Advance(step)
		m.elapsed += step

		want := int64(m.elapsed) * rate / int64(time.Second)
		n := int(want - m.rendered)
		m.rendered = want
		if n <= 0 {
			continue
		}
		if cap(buf) < n {
			buf = make([]int16, n)
		}
		m.sound.Mixer().Render(buf[:n])
		if m.pcm != nil {
			m.pcm(buf[:n])
		}
	}
}

// Shutdown stops all audio.
func (m *Machine) Shutdown() {
	m.sound.Shutdown()
}

// VM returns the interpreter.
func (m *Machine) VM() *vm.VM { return m.vm }

// Video returns the renderer.
func (m *Machine) Video() *video.Renderer { return m.video }

// Sound returns the sound hardware.
func (m *Machine) Sound() *audio.System { return m.sound }

// Frames returns the number of frames run.
func (m *Machine) Frames() uint64 { return m.frames }

// Elapsed returns the virtual time simulated so far.
func (m *Machine) Elapsed() time.Duration { return m.elapsed }

var _ vm.Loader = (*Machine)(nil)
