// Package opcode defines the bytecode instruction set of the Another World
// virtual machine. Both the VM dispatcher and the disassembler depend on it.
package opcode

// Op is a general-purpose opcode byte (0x00-0x1A).
type Op byte

// General opcodes. Operands follow the opcode byte, big-endian.
const (
	// MovConst stores an immediate into a variable.
	// Operands: var, imm16
	MovConst Op = 0x00

	// Mov copies one variable into another.
	// Operands: dst, src
	Mov Op = 0x01

	// Add adds src to dst.
	// Operands: dst, src
	Add Op = 0x02

	// AddConst adds an immediate to a variable.
	// Operands: var, imm16
	AddConst Op = 0x03

	// Call pushes the return address and jumps.
	// Operands: addr16
	Call Op = 0x04

	// Ret pops the return address.
	Ret Op = 0x05

	// PauseThread yields the current thread until the next frame.
	PauseThread Op = 0x06

	// Jmp jumps unconditionally.
	// Operands: addr16
	Jmp Op = 0x07

	// SetVec requests a new PC for another thread.
	// Operands: thread, addr16
	SetVec Op = 0x08

	// Djnz decrements a variable and jumps while it is not zero.
	// Operands: var, addr16
	Djnz Op = 0x09

	// CondJmp compares a variable with an operand and jumps.
	// Operands: sub, var, operand (1 or 2 bytes, see CondOperand*), addr16
	CondJmp Op = 0x0A

	// SetPalette requests a palette change; the id is the high byte.
	// Operands: imm16
	SetPalette Op = 0x0B

	// ResetThread freezes, unfreezes or deletes a range of threads.
	// Operands: first, last, type
	ResetThread Op = 0x0C

	// SelectVideoPage selects the work page polygons are drawn into.
	// Operands: page
	SelectVideoPage Op = 0x0D

	// FillVideoPage fills a page with one color.
	// Operands: page, color
	FillVideoPage Op = 0x0E

	// CopyVideoPage copies a page, optionally scrolled.
	// Operands: src, dst
	CopyVideoPage Op = 0x0F

	// BlitFramebuffer displays a page and paces the frame.
	// Operands: page
	BlitFramebuffer Op = 0x10

	// KillThread deactivates the current thread immediately.
	KillThread Op = 0x11

	// DrawString draws a string from the strings table.
	// Operands: id16, x, y, color
	DrawString Op = 0x12

	// Sub subtracts src from dst.
	// Operands: dst, src
	Sub Op = 0x13

	// And masks a variable.
	// Operands: var, imm16
	And Op = 0x14

	// Or sets bits in a variable.
	// Operands: var, imm16
	Or Op = 0x15

	// Shl shifts a variable left.
	// Operands: var, imm16
	Shl Op = 0x16

	// Shr shifts a variable right, logically.
	// Operands: var, imm16
	Shr Op = 0x17

	// PlaySound starts a sample on a mixer channel.
	// Operands: id16, freq, vol, channel
	PlaySound Op = 0x18

	// Load loads a resource: stops audio, switches part or loads a screen.
	// Operands: id16
	Load Op = 0x19

	// PlayMusic starts, re-times or stops the music sequencer.
	// Operands: id16, delay16, pos
	PlayMusic Op = 0x1A
)

// Polygon opcode families, keyed by the high bits of the opcode byte.
const (
	CinematicPolygonFlag = 0x80
	PolygonFlag          = 0x40
)

// Conditional jump sub-opcode bits.
const (
	CondOperandVar  = 0x80
	CondOperandWord = 0x40
	CondPredMask    = 0x07
)

// Conditional jump predicates (sub-opcode low 3 bits).
const (
	CondEQ = iota
	CondNE
	CondGT
	CondGE
	CondLT
	CondLE
)

// ResetThread operation types, as labelled by the MAME anotherworld
// disassembler. Other engines commit the operand byte directly as the
// requested frozen flag, where nonzero means frozen; check game data against
// this table before relying on it.
const (
	ThreadFreeze   = 0
	ThreadUnfreeze = 1
	ThreadDelete   = 2
)

// Reserved VM variable indices.
const (
	VarRandomSeed        = 0x3C
	VarLastKeychar       = 0xDA
	VarHeroPosUpDown     = 0xE5
	VarMusMark           = 0xF4
	VarScrollY           = 0xF9
	VarHeroAction        = 0xFA
	VarHeroPosJumpDown   = 0xFB
	VarHeroPosLeftRight  = 0xFC
	VarHeroPosMask       = 0xFD
	VarHeroActionPosMask = 0xFE
	VarPauseSlices       = 0xFF
)

var varNames = map[byte]string{
	VarRandomSeed:        "RANDOM_SEED",
	VarLastKeychar:       "LAST_KEYCHAR",
	VarHeroPosUpDown:     "HERO_POS_UP_DOWN",
	VarMusMark:           "MUS_MARK",
	VarScrollY:           "SCROLL_Y",
	VarHeroAction:        "HERO_ACTION",
	VarHeroPosJumpDown:   "HERO_POS_JUMP_DOWN",
	VarHeroPosLeftRight:  "HERO_POS_LEFT_RIGHT",
	VarHeroPosMask:       "HERO_POS_MASK",
	VarHeroActionPosMask: "HERO_ACTION_POS_MASK",
	VarPauseSlices:       "PAUSE_SLICES",
}

// VarName returns the symbolic name of a reserved variable, or its hex index.
func VarName(i byte) string {
	if name, ok := varNames[i]; ok {
		return name
	}
	return hexByte(i)
}

var opNames = [...]string{
	MovConst:        "movConst",
	Mov:             "mov",
	Add:             "add",
	AddConst:        "addConst",
	Call:            "call",
	Ret:             "ret",
	PauseThread:     "pauseThread",
	Jmp:             "jmp",
	SetVec:          "setVec",
	Djnz:            "djnz",
	CondJmp:         "condJmp",
	SetPalette:      "setPalette",
	ResetThread:     "resetThread",
	SelectVideoPage: "selectVideoPage",
	FillVideoPage:   "fillVideoPage",
	CopyVideoPage:   "copyVideoPage",
	BlitFramebuffer: "blitFramebuffer",
	KillThread:      "killThread",
	DrawString:      "drawString",
	Sub:             "sub",
	And:             "and",
	Or:              "or",
	Shl:             "shl",
	Shr:             "shr",
	PlaySound:       "playSound",
	Load:            "load",
	PlayMusic:       "playMusic",
}

// String returns the opcode mnemonic.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "illegal(" + hexByte(byte(o)) + ")"
}

// Valid reports whether o is a general opcode.
func (o Op) Valid() bool {
	return int(o) < len(opNames)
}

const hexDigits = "0123456789ABCDEF"

func hexByte(b byte) string {
	return "0x" + string([]byte{hexDigits[b>>4], hexDigits[b&0xF]})
}
