// Package vm implements the Another World bytecode virtual machine: the
// instruction dispatcher, the 64-thread cooperative scheduler, the call
// stack and the variable store.
//
// Drawing, sound and resource loading are delegated to collaborators
// injected through small interfaces, so the package has no dependency on
// the renderer or the mixer.
package vm

import (
	"log/slog"

	"github.com/zurustar/awvm/pkg/logger"
	"github.com/zurustar/awvm/pkg/opcode"
)

// PolygonSource selects the polygon data segment of a draw call.
type PolygonSource uint8

const (
	SourceCinematic PolygonSource = iota
	SourceVideo2
)

// Video is the drawing sink driven by video opcodes.
type Video interface {
	DrawPolygon(src PolygonSource, offset uint16, color uint8, zoom uint16, x, y int16) error
	SetPalette(id uint8)
	SelectPage(page uint8)
	FillPage(page, color uint8)
	CopyPage(src, dst uint8, vscroll int16)
	UpdateDisplay(page uint8)
	DrawString(id uint16, x, y uint16, color uint8) error
}

// Sound is the audio sink driven by sound opcodes.
type Sound interface {
	PlaySound(resNum uint16, freq, vol, channel uint8) error
	PlayMusic(resNum, delay uint16, pos uint8) error
	StopAll()
}

// Loader provides bank switching and resource loading.
type Loader interface {
	// SetupPart selects the banks of part and returns its bytecode.
	SetupPart(part int) ([]byte, error)
	// LoadResource loads a non-part resource (screens are drawn to page 0).
	LoadResource(resNum uint16) error
}

// PacingPolicy selects the cycle cost of the blit opcode.
type PacingPolicy int

const (
	// PacingVariable charges max(1, PAUSE_SLICES) cycles per blit.
	PacingVariable PacingPolicy = iota
	// PacingSingle charges one cycle per blit.
	PacingSingle
)

// VM is the bytecode interpreter.
type VM struct {
	vars    Variables
	stack   Stack
	threads [NumThreads]Thread

	code   []byte
	pc     uint16
	insnPC uint16 // PC of the instruction being executed
	// live is true while pc holds the running PC of the current thread.
	live    bool
	current int
	epoch   uint64

	part          uint16
	requestedPart uint16

	// cycles charged by the last instruction
	cost int
	// set by blitFramebuffer, cleared by Run
	blitted bool

	video  Video
	sound  Sound
	loader Loader

	// Configuration
	pacing      PacingPolicy
	compatHacks bool
	seed        int16
	trace       bool
	dasm        opcode.Disassembler
	onDiag      DiagnosticHandler

	// Logger
	log *slog.Logger
}

// Option is a functional option for configuring the VM.
type Option func(*VM)

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(vm *VM) {
		vm.log = log
	}
}

// WithPacing sets the blit cycle policy.
func WithPacing(p PacingPolicy) Option {
	return func(vm *VM) {
		vm.pacing = p
	}
}

// WithCompatHacks enables the fixed variable writes of the arcade engine
// (bring-up values at reset, 0xE4 at part setup, 0xF7 at blit).
func WithCompatHacks(enabled bool) Option {
	return func(vm *VM) {
		vm.compatHacks = enabled
	}
}

// WithRandomSeed sets the value stored into RANDOM_SEED at reset.
func WithRandomSeed(seed int16) Option {
	return func(vm *VM) {
		vm.seed = seed
	}
}

// WithTrace logs every executed instruction at debug level.
func WithTrace(enabled bool) Option {
	return func(vm *VM) {
		vm.trace = enabled
	}
}

// WithDisassembler sets the disassembler used by trace logging, so
// drawString operands can be shown with their text.
func WithDisassembler(d opcode.Disassembler) Option {
	return func(vm *VM) {
		vm.dasm = d
	}
}

// WithDiagnosticHandler registers a receiver for diagnostics.
func WithDiagnosticHandler(h DiagnosticHandler) Option {
	return func(vm *VM) {
		vm.onDiag = h
	}
}

// New creates a VM wired to its collaborators. The VM is idle until Start.
func New(video Video, sound Sound, loader Loader, opts ...Option) *VM {
	vm := &VM{
		video:       video,
		sound:       sound,
		loader:      loader,
		pacing:      PacingVariable,
		compatHacks: true,
		log:         logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(vm)
	}
	vm.Reset()
	return vm
}

// Reset clears variables, stack and threads.
func (vm *VM) Reset() {
	vm.vars.Reset(vm.seed, vm.compatHacks)
	vm.stack.Clean()
	for i := range vm.threads {
		vm.threads[i] = Thread{PC: Inactive()}
	}
	vm.code = nil
	vm.current = 0
	vm.live = false
	vm.part = 0
	vm.requestedPart = 0
	vm.epoch = 0
}

// Start loads partID immediately and makes thread 0 runnable at offset 0.
func (vm *VM) Start(partID uint16) {
	vm.initForPart(partID)
}

// Result describes one Run call.
type Result struct {
	Cycles       int  // cycles consumed
	Instructions int  // instructions executed
	Blitted      bool // a blitFramebuffer executed
	Idle         bool // a full revolution found no runnable thread
}

// Run executes instructions until budget cycles are consumed, a frame is
// blitted, or the scheduler goes idle.
func (vm *VM) Run(budget int) Result {
	var r Result
	vm.blitted = false
	for r.Cycles < budget {
		if !vm.Step() {
			r.Idle = true
			break
		}
		r.Instructions++
		r.Cycles += vm.cost
		if vm.blitted {
			r.Blitted = true
			break
		}
	}
	return r
}

// Step executes one instruction of the current runnable thread. It returns
// false when no thread is runnable.
func (vm *VM) Step() bool {
	if !vm.live && !vm.selectRunnable() {
		return false
	}
	vm.cost = 1
	vm.execute()
	return true
}

// Variables returns the variable store.
func (vm *VM) Variables() *Variables { return &vm.vars }

// Stack returns the call stack.
func (vm *VM) Stack() *Stack { return &vm.stack }

// Thread returns a copy of thread i.
func (vm *VM) Thread(i int) Thread { return vm.threads[i] }

// CurrentThread returns the index of the current thread slot.
func (vm *VM) CurrentThread() int { return vm.current }

// PC returns the live program counter.
func (vm *VM) PC() uint16 { return vm.pc }

// Part returns the loaded part id (0 before Start).
func (vm *VM) Part() uint16 { return vm.part }

// Epoch counts barriers passed since reset.
func (vm *VM) Epoch() uint64 { return vm.epoch }

// report logs a diagnostic and forwards it to the handler.
func (vm *VM) report(e *RuntimeError) {
	vm.log.Warn("VM diagnostic", "type", e.Type, "error", e.Error(), "fatal", e.IsFatal())
	if vm.onDiag != nil {
		vm.onDiag(e)
	}
}
