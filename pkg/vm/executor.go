package vm

import (
	"errors"

	"github.com/zurustar/awvm/pkg/opcode"
	"github.com/zurustar/awvm/pkg/resource"
)

// Default polygon parameters.
const (
	DefaultZoom = 0x40
	ColorBlack  = 0xFF
)

// fetchByte reads at pc and advances it. Reads past the end of the
// segment return 0xFF, the fill value of unmapped ROM.
func (vm *VM) fetchByte() byte {
	var b byte = 0xFF
	if int(vm.pc) < len(vm.code) {
		b = vm.code[vm.pc]
	}
	vm.pc++
	return b
}

func (vm *VM) fetchWord() uint16 {
	hi := vm.fetchByte()
	lo := vm.fetchByte()
	return uint16(hi)<<8 | uint16(lo)
}

// execute runs one instruction at pc.
func (vm *VM) execute() {
	start := vm.pc
	if vm.trace {
		vm.traceInstruction(start)
	}
	vm.insnPC = start

	op := vm.fetchByte()
	switch {
	case op&opcode.CinematicPolygonFlag != 0:
		vm.opCinematicPolygon(op)
	case op&opcode.PolygonFlag != 0:
		vm.opPolygon(op)
	default:
		vm.executeGeneral(opcode.Op(op))
	}
}

func (vm *VM) traceInstruction(pc uint16) {
	ins, err := vm.dasm.Disassemble(vm.code, pc)
	if err != nil {
		vm.log.Debug("exec", "thread", vm.current, "pc", pc, "error", err)
		return
	}
	vm.log.Debug("exec", "thread", vm.current, "pc", pc, "insn", ins.Text)
}

// diagnose reports e located at the current instruction.
func (vm *VM) diagnose(e *RuntimeError) {
	e.PC = int(vm.insnPC)
	e.Thread = vm.current
	vm.report(e)
}

func (vm *VM) check(op string, err error) {
	if err == nil {
		return
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		vm.diagnose(re)
		return
	}
	vm.diagnose(NewResourceError(op, err))
}

func (vm *VM) executeGeneral(op opcode.Op) {
	switch op {
	case opcode.MovConst:
		i := vm.fetchByte()
		vm.vars[i] = int16(vm.fetchWord())

	case opcode.Mov:
		dst, src := vm.fetchByte(), vm.fetchByte()
		vm.vars[dst] = vm.vars[src]

	case opcode.Add:
		dst, src := vm.fetchByte(), vm.fetchByte()
		vm.vars[dst] += vm.vars[src]

	case opcode.AddConst:
		i := vm.fetchByte()
		vm.vars[i] += int16(vm.fetchWord())

	case opcode.Call:
		target := vm.fetchWord()
		vm.check("call", vm.stack.Push(vm.pc))
		vm.pc = target

	case opcode.Ret:
		addr, err := vm.stack.Pop()
		vm.check("ret", err)
		vm.pc = addr

	case opcode.PauseThread:
		vm.yield()

	case opcode.Jmp:
		vm.pc = vm.fetchWord()

	case opcode.SetVec:
		t := vm.fetchByte()
		addr := vm.fetchWord()
		vm.threads[t&(NumThreads-1)].Requested = requestFromRaw(addr)

	case opcode.Djnz:
		i := vm.fetchByte()
		target := vm.fetchWord()
		vm.vars[i]--
		if vm.vars[i] != 0 {
			vm.pc = target
		}

	case opcode.CondJmp:
		vm.opCondJmp()

	case opcode.SetPalette:
		vm.video.SetPalette(uint8(vm.fetchWord() >> 8))

	case opcode.ResetThread:
		first, last, typ := vm.fetchByte(), vm.fetchByte(), vm.fetchByte()
		vm.resetThreads(first, last, typ)

	case opcode.SelectVideoPage:
		vm.video.SelectPage(vm.fetchByte())

	case opcode.FillVideoPage:
		page, color := vm.fetchByte(), vm.fetchByte()
		vm.video.FillPage(page, color)

	case opcode.CopyVideoPage:
		src, dst := vm.fetchByte(), vm.fetchByte()
		vm.video.CopyPage(src, dst, vm.vars[opcode.VarScrollY])

	case opcode.BlitFramebuffer:
		vm.opBlit(vm.fetchByte())

	case opcode.KillThread:
		vm.kill()

	case opcode.DrawString:
		id := vm.fetchWord()
		x, y, color := vm.fetchByte(), vm.fetchByte(), vm.fetchByte()
		vm.check("drawString", vm.video.DrawString(id, uint16(x), uint16(y), color))

	case opcode.Sub:
		dst, src := vm.fetchByte(), vm.fetchByte()
		vm.vars[dst] -= vm.vars[src]

	case opcode.And:
		i := vm.fetchByte()
		vm.vars[i] &= int16(vm.fetchWord())

	case opcode.Or:
		i := vm.fetchByte()
		vm.vars[i] |= int16(vm.fetchWord())

	case opcode.Shl:
		i := vm.fetchByte()
		vm.vars[i] = int16(uint16(vm.vars[i]) << vm.fetchWord())

	case opcode.Shr:
		i := vm.fetchByte()
		vm.vars[i] = int16(uint16(vm.vars[i]) >> vm.fetchWord())

	case opcode.PlaySound:
		res := vm.fetchWord()
		freq, vol, channel := vm.fetchByte(), vm.fetchByte(), vm.fetchByte()
		vm.check("playSound", vm.sound.PlaySound(res, freq, vol, channel))

	case opcode.Load:
		vm.opLoad(vm.fetchWord())

	case opcode.PlayMusic:
		res, delay := vm.fetchWord(), vm.fetchWord()
		vm.check("playMusic", vm.sound.PlayMusic(res, delay, vm.fetchByte()))

	default:
		vm.diagnose(NewUnimplementedOpcodeError(byte(op)))
	}
}

func (vm *VM) opCondJmp() {
	sub := vm.fetchByte()
	a := vm.vars[vm.fetchByte()]
	c := vm.fetchByte()

	var b int16
	switch {
	case sub&opcode.CondOperandVar != 0:
		b = vm.vars[c]
	case sub&opcode.CondOperandWord != 0:
		b = int16(uint16(c)<<8 | uint16(vm.fetchByte()))
	default:
		b = int16(c)
	}
	target := vm.fetchWord()

	var taken bool
	switch sub & opcode.CondPredMask {
	case opcode.CondEQ:
		taken = a == b
	case opcode.CondNE:
		taken = a != b
	case opcode.CondGT:
		taken = a > b
	case opcode.CondGE:
		taken = a >= b
	case opcode.CondLT:
		taken = a < b
	case opcode.CondLE:
		taken = a <= b
	default:
		vm.diagnose(NewInvalidConditionError(sub))
		return
	}
	if taken {
		vm.pc = target
	}
}

func (vm *VM) opBlit(page byte) {
	if vm.compatHacks {
		vm.vars[0xF7] = 0
	}
	vm.video.UpdateDisplay(page)
	vm.blitted = true

	if vm.pacing == PacingVariable {
		if n := int(vm.vars[opcode.VarPauseSlices]); n > 1 {
			vm.cost = n
		}
	}
}

// opLoad handles the load opcode: 0 stops audio, part ids schedule a part
// switch, anything else is handed to the loader.
func (vm *VM) opLoad(res uint16) {
	switch {
	case res == 0:
		vm.sound.StopAll()
	case resource.IsPartID(res):
		vm.RequestPart(res)
	default:
		vm.check("load", vm.loader.LoadResource(res))
	}
}

func (vm *VM) opCinematicPolygon(op byte) {
	offset := (uint16(op)<<8 | uint16(vm.fetchByte())) * 2
	x := int16(vm.fetchByte())
	y := int16(vm.fetchByte())
	if h := y - 199; h > 0 {
		y = 199
		x += h
	}
	vm.check("draw polygon", vm.video.DrawPolygon(SourceCinematic, offset, ColorBlack, DefaultZoom, x, y))
}

func (vm *VM) opPolygon(op byte) {
	offset := vm.fetchWord() * 2

	x := int16(vm.fetchByte())
	if op&0x20 == 0 {
		if op&0x10 == 0 {
			x = x<<8 | int16(vm.fetchByte())
		} else {
			x = vm.vars[x]
		}
	} else if op&0x10 != 0 {
		x += 0x100
	}

	y := int16(vm.fetchByte())
	if op&0x08 == 0 {
		if op&0x04 == 0 {
			y = y<<8 | int16(vm.fetchByte())
		} else {
			y = vm.vars[y]
		}
	}

	src := SourceCinematic
	var zoom uint16 = DefaultZoom
	switch op & 0x03 {
	case 0x01:
		zoom = uint16(vm.vars[vm.fetchByte()])
	case 0x02:
		zoom = uint16(vm.fetchByte())
	case 0x03:
		src = SourceVideo2
	}
	vm.check("draw polygon", vm.video.DrawPolygon(src, offset, ColorBlack, zoom, x, y))
}
