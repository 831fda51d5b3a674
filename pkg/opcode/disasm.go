package opcode

import (
	"errors"
	"fmt"
)

// ErrTruncated is returned when an instruction runs past the end of the code.
var ErrTruncated = errors.New("truncated instruction")

// Instruction is one decoded instruction.
type Instruction struct {
	PC     uint16
	Length int
	Text   string
}

// StringLookup resolves a string id to its text, for annotating drawString.
type StringLookup func(id uint16) (string, bool)

// Disassembler renders bytecode as text.
type Disassembler struct {
	Strings StringLookup
}

// Disassemble decodes the instruction at pc.
func Disassemble(code []byte, pc uint16) (Instruction, error) {
	return Disassembler{}.Disassemble(code, pc)
}

// Disassemble decodes the instruction at pc.
func (d Disassembler) Disassemble(code []byte, pc uint16) (Instruction, error) {
	r := reader{code: code, pc: int(pc)}
	op := r.byte()
	if r.err != nil {
		return Instruction{PC: pc}, r.err
	}

	var text string
	switch {
	case op&CinematicPolygonFlag != 0:
		text = r.cinematic(op)
	case op&PolygonFlag != 0:
		text = r.polygon(op)
	default:
		text = d.general(&r, Op(op))
	}
	if r.err != nil {
		return Instruction{PC: pc, Length: r.pc - int(pc)}, fmt.Errorf("%w at 0x%04X", r.err, pc)
	}
	return Instruction{PC: pc, Length: r.pc - int(pc), Text: text}, nil
}

// Listing disassembles code from start until the end of the slice. Decoding
// stops at the first truncated instruction.
func (d Disassembler) Listing(code []byte, start uint16) []Instruction {
	var out []Instruction
	pc := int(start)
	for pc < len(code) && pc <= 0xFFFF {
		ins, err := d.Disassemble(code, uint16(pc))
		if err != nil {
			break
		}
		out = append(out, ins)
		pc += ins.Length
	}
	return out
}

type reader struct {
	code []byte
	pc   int
	err  error
}

func (r *reader) byte() byte {
	if r.pc >= len(r.code) {
		r.err = ErrTruncated
		return 0
	}
	b := r.code[r.pc]
	r.pc++
	return b
}

func (r *reader) word() uint16 {
	hi := r.byte()
	lo := r.byte()
	return uint16(hi)<<8 | uint16(lo)
}

func (r *reader) cinematic(op byte) string {
	off := (uint16(op)<<8 | uint16(r.byte())) * 2
	x := int(r.byte())
	y := int(r.byte())
	if h := y - 199; h > 0 {
		y = 199
		x += h
	}
	return fmt.Sprintf("video: off=0x%X x=%d y=%d", off, x, y)
}

func (r *reader) polygon(op byte) string {
	off := r.word() * 2

	var xs, ys, zs string
	x := int(r.byte())
	switch {
	case op&0x20 == 0 && op&0x10 == 0:
		xs = fmt.Sprintf("%d", int16(uint16(x)<<8|uint16(r.byte())))
	case op&0x20 == 0:
		xs = "[" + VarName(byte(x)) + "]"
	case op&0x10 != 0:
		xs = fmt.Sprintf("%d", x+0x100)
	default:
		xs = fmt.Sprintf("%d", x)
	}

	y := int(r.byte())
	switch {
	case op&0x08 == 0 && op&0x04 == 0:
		ys = fmt.Sprintf("%d", int16(uint16(y)<<8|uint16(r.byte())))
	case op&0x08 == 0:
		ys = "[" + VarName(byte(y)) + "]"
	default:
		ys = fmt.Sprintf("%d", y)
	}

	src := ""
	switch op & 0x03 {
	case 0x00:
		zs = "0x40"
	case 0x01:
		zs = "[" + VarName(r.byte()) + "]"
	case 0x02:
		zs = fmt.Sprintf("0x%02X", r.byte())
	case 0x03:
		zs = "0x40"
		src = " video2"
	}
	return fmt.Sprintf("video: off=0x%X x=%s y=%s zoom:%s%s", off, xs, ys, zs, src)
}

func varRef(i byte) string { return "[" + VarName(i) + "]" }

var condMnemonics = [...]string{"je", "jne", "jg", "jge", "jl", "jle"}

var threadOps = [...]string{"freezeChannels", "unfreezeChannels", "deleteChannels"}

func (d Disassembler) general(r *reader, op Op) string {
	switch op {
	case MovConst:
		dst := r.byte()
		return fmt.Sprintf("mov %s, 0x%04X", varRef(dst), r.word())
	case Mov, Add, Sub:
		dst, src := r.byte(), r.byte()
		name := map[Op]string{Mov: "mov", Add: "add", Sub: "sub"}[op]
		return fmt.Sprintf("%s %s, %s", name, varRef(dst), varRef(src))
	case AddConst, And, Or, Shl, Shr:
		dst := r.byte()
		name := map[Op]string{AddConst: "add", And: "and", Or: "or", Shl: "shl", Shr: "shr"}[op]
		return fmt.Sprintf("%s %s, 0x%04X", name, varRef(dst), r.word())
	case Call:
		return fmt.Sprintf("call 0x%04X", r.word())
	case Ret:
		return "ret"
	case PauseThread:
		return "break"
	case Jmp:
		return fmt.Sprintf("jmp 0x%04X", r.word())
	case SetVec:
		t := r.byte()
		return fmt.Sprintf("setvec channel:0x%02X, address:0x%04X", t, r.word())
	case Djnz:
		i := r.byte()
		return fmt.Sprintf("djnz %s, 0x%04X", varRef(i), r.word())
	case CondJmp:
		return r.condJmp()
	case SetPalette:
		return fmt.Sprintf("setPalette 0x%04X", r.word())
	case ResetThread:
		first, last, typ := r.byte(), r.byte(), r.byte()
		if int(typ) >= len(threadOps) {
			return "< invalid operation type for resetThread opcode >"
		}
		return fmt.Sprintf("%s first:0x%02X, last:0x%02X", threadOps[typ], first, last)
	case SelectVideoPage:
		return fmt.Sprintf("selectVideoPage 0x%02X", r.byte())
	case FillVideoPage:
		page := r.byte()
		return fmt.Sprintf("fillVideoPage 0x%02X, color:0x%02X", page, r.byte())
	case CopyVideoPage:
		src := r.byte()
		return fmt.Sprintf("copyVideoPage src:0x%02X, dst:0x%02X", src, r.byte())
	case BlitFramebuffer:
		return fmt.Sprintf("blitFramebuffer 0x%02X", r.byte())
	case KillThread:
		return "killChannel"
	case DrawString:
		id := r.word()
		x, y, color := r.byte(), r.byte(), r.byte()
		text := fmt.Sprintf("text id:0x%04X, x:%d, y:%d, color:0x%02X", id, x, y, color)
		if d.Strings != nil {
			if s, ok := d.Strings(id); ok {
				text += fmt.Sprintf(" ; %q", s)
			}
		}
		return text
	case PlaySound:
		id := r.word()
		freq, vol, ch := r.byte(), r.byte(), r.byte()
		return fmt.Sprintf("play id:0x%04X, freq:0x%02X, vol:0x%02X, channel:0x%02X", id, freq, vol, ch)
	case Load:
		return fmt.Sprintf("load id:0x%04X", r.word())
	case PlayMusic:
		id, delay := r.word(), r.word()
		return fmt.Sprintf("song id:0x%04X, delay:0x%04X, pos:0x%02X", id, delay, r.byte())
	default:
		return "< illegal instruction >"
	}
}

func (r *reader) condJmp() string {
	sub := r.byte()
	a := r.byte()
	var operand string
	switch {
	case sub&CondOperandVar != 0:
		operand = varRef(r.byte())
	case sub&CondOperandWord != 0:
		operand = fmt.Sprintf("0x%04X", r.word())
	default:
		operand = fmt.Sprintf("0x%02X", r.byte())
	}
	target := r.word()

	pred := int(sub & CondPredMask)
	if pred >= len(condMnemonics) {
		return fmt.Sprintf("< conditional jmp with invalid condition: %d >", pred)
	}
	return fmt.Sprintf("%s %s, %s, 0x%04X", condMnemonics[pred], varRef(a), operand, target)
}
