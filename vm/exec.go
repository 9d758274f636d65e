package vm

import (
	"encoding/binary"
	"fmt"

	"anatase/isa"
	"anatase/value"
)

// instr is one decoded instruction: its opcode, leading register operands,
// and any trailing fixed-size fields (constant indices, jump offsets,
// push/pop counts) in encoding order. Call's argument-register list is
// carried in regs[1:], with regs[0] the destination register.
type instr struct {
	op     isa.Opcode
	regs   []byte
	extras []uint64
	size   uint32
}

func (it *Interpreter) decode(ip uint32) (instr, error) {
	code := it.code
	if int(ip) >= len(code) {
		return instr{}, fmt.Errorf("%w: ip %d", ErrOutOfRange, ip)
	}
	op := isa.Opcode(code[ip])
	if !isa.Defined(op) {
		return instr{}, fmt.Errorf("%w: 0x%02x at offset %d", ErrUnknownOpcode, byte(op), ip)
	}
	pos := ip + 1

	need := func(n uint32) error {
		if uint64(pos)+uint64(n) > uint64(len(code)) {
			return fmt.Errorf("%w: truncated operands for %s at offset %d", ErrOutOfRange, op, ip)
		}
		return nil
	}

	if isa.IsCall(op) {
		if err := need(6); err != nil {
			return instr{}, err
		}
		dst := code[pos]
		target := binary.LittleEndian.Uint32(code[pos+1 : pos+5])
		argc := code[pos+5]
		pos += 6
		if err := need(uint32(argc)); err != nil {
			return instr{}, err
		}
		regs := make([]byte, 1+int(argc))
		regs[0] = dst
		copy(regs[1:], code[pos:pos+uint32(argc)])
		pos += uint32(argc)
		return instr{op: op, regs: regs, extras: []uint64{uint64(target), uint64(argc)}, size: pos - ip}, nil
	}

	shape, _ := isa.Shape(op)
	if err := need(uint32(shape.Registers)); err != nil {
		return instr{}, err
	}
	regs := append([]byte(nil), code[pos:pos+uint32(shape.Registers)]...)
	pos += uint32(shape.Registers)

	extras := make([]uint64, 0, len(shape.Extra))
	for _, e := range shape.Extra {
		n := uint32(e.Bytes())
		if err := need(n); err != nil {
			return instr{}, err
		}
		switch e {
		case isa.ConstIndex:
			extras = append(extras, uint64(binary.LittleEndian.Uint16(code[pos:pos+2])))
		case isa.Offset:
			extras = append(extras, uint64(binary.LittleEndian.Uint32(code[pos:pos+4])))
		case isa.Count:
			extras = append(extras, uint64(code[pos]))
		}
		pos += n
	}
	return instr{op: op, regs: regs, extras: extras, size: pos - ip}, nil
}

// Run drives the dispatch loop to completion, returning the error that
// stopped it (ErrProgramFinished on a normal outermost RETURN).
func (it *Interpreter) Run() error {
	for it.err == nil {
		it.step()
	}
	it.stdout.Flush()
	return it.err
}

// Step executes exactly one instruction and reports whether the
// interpreter halted (a non-nil error from Err). It is exported for the
// --debug REPL's single-step command; ordinary execution goes through Run.
func (it *Interpreter) Step() (halted bool) {
	if it.err != nil {
		return true
	}
	it.step()
	if it.err != nil {
		it.stdout.Flush()
		return true
	}
	return false
}

// IP returns the interpreter's current instruction pointer, shown in the
// debug REPL's prompt.
func (it *Interpreter) IP() uint32 { return it.ip }

// step decodes and executes exactly one instruction, advancing it.ip.
// Control-flow instructions (Jmp, Jif, Jnif, Call, Return, and Ijif/Ijnif
// when their jump is taken) set it.ip themselves and skip the trailing
// advance; an untaken Ijif/Ijnif falls through to the next instruction.
func (it *Interpreter) step() {
	in, err := it.decode(it.ip)
	if err != nil {
		it.fail(err)
		return
	}
	next := it.ip + in.size

	switch in.op {
	case isa.Return:
		it.doReturn()
		return

	case isa.Copy:
		it.setReg(in.regs[1], it.reg(in.regs[0]))
	case isa.Swap:
		a, b := in.regs[0], in.regs[1]
		va, vb := it.reg(a), it.reg(b)
		it.setReg(a, vb)
		it.setReg(b, va)
	case isa.Set:
		v, err := it.constAt(uint16(in.extras[0]))
		if err != nil {
			it.fail(err)
			return
		}
		it.setReg(in.regs[0], v)
	case isa.Push:
		if err := it.push(int(in.extras[0])); err != nil {
			it.fail(err)
			return
		}
	case isa.Pop:
		if err := it.pop(int(in.extras[0])); err != nil {
			it.fail(err)
			return
		}

	case isa.Jmp:
		it.ip = uint32(in.extras[0])
		return
	case isa.Jif:
		if it.reg(in.regs[0]).AsBool() {
			it.ip = uint32(in.extras[0])
		} else {
			it.ip = uint32(in.extras[1])
		}
		return
	case isa.Jnif:
		if !it.reg(in.regs[0]).AsBool() {
			it.ip = uint32(in.extras[0])
		} else {
			it.ip = uint32(in.extras[1])
		}
		return
	case isa.Ijif:
		if it.reg(in.regs[0]).AsBool() {
			it.ip = uint32(in.extras[0])
			return
		}
	case isa.Ijnif:
		if !it.reg(in.regs[0]).AsBool() {
			it.ip = uint32(in.extras[0])
			return
		}

	case isa.Call:
		argRegs := in.regs[1:]
		target := uint32(in.extras[0])
		if err := it.doCall(in.regs[0], next, target, argRegs); err != nil {
			it.fail(err)
			return
		}
		return

	case isa.Print:
		fmt.Fprintln(it.stdout, it.reg(in.regs[0]).String())

	case isa.Addi:
		it.arithI("addi", in.regs[0], in.regs[1], in.regs[2], addI)
	case isa.Addu:
		it.arithU("addu", in.regs[0], in.regs[1], in.regs[2], addU)
	case isa.Addf:
		it.arithF("addf", in.regs[0], in.regs[1], in.regs[2], addF)
	case isa.Subi:
		it.arithI("subi", in.regs[0], in.regs[1], in.regs[2], subI)
	case isa.Subu:
		it.arithU("subu", in.regs[0], in.regs[1], in.regs[2], subU)
	case isa.Subf:
		it.arithF("subf", in.regs[0], in.regs[1], in.regs[2], subF)
	case isa.Muli:
		it.arithI("muli", in.regs[0], in.regs[1], in.regs[2], mulI)
	case isa.Mulu:
		it.arithU("mulu", in.regs[0], in.regs[1], in.regs[2], mulU)
	case isa.Mulf:
		it.arithF("mulf", in.regs[0], in.regs[1], in.regs[2], mulF)
	case isa.Remi:
		if it.reg(in.regs[2]).AsI64() == 0 {
			it.fail(ErrDivisionByZero)
			return
		}
		it.arithI("remi", in.regs[0], in.regs[1], in.regs[2], remI)
	case isa.Remu:
		if it.reg(in.regs[2]).AsU64() == 0 {
			it.fail(ErrDivisionByZero)
			return
		}
		it.arithU("remu", in.regs[0], in.regs[1], in.regs[2], remU)
	case isa.Remf:
		it.arithF("remf", in.regs[0], in.regs[1], in.regs[2], remF)
	case isa.Divi:
		if it.reg(in.regs[2]).AsI64() == 0 {
			it.fail(ErrDivisionByZero)
			return
		}
		it.arithI("divi", in.regs[0], in.regs[1], in.regs[2], func(a, b int64) int64 { return a / b })
	case isa.Divu:
		if it.reg(in.regs[2]).AsU64() == 0 {
			it.fail(ErrDivisionByZero)
			return
		}
		it.arithU("divu", in.regs[0], in.regs[1], in.regs[2], func(a, b uint64) uint64 { return a / b })
	case isa.Divf:
		if it.reg(in.regs[2]).AsF64() == 0.0 {
			it.fail(ErrDivisionByZero)
			return
		}
		it.arithF("divf", in.regs[0], in.regs[1], in.regs[2], func(a, b float64) float64 { return a / b })
	case isa.Lsi:
		it.arithI("lsi", in.regs[0], in.regs[1], in.regs[2], shlI)
	case isa.Lsu:
		it.arithU("lsu", in.regs[0], in.regs[1], in.regs[2], shlU)
	case isa.Rsi:
		it.arithI("rsi", in.regs[0], in.regs[1], in.regs[2], shrI)
	case isa.Rsu:
		it.arithU("rsu", in.regs[0], in.regs[1], in.regs[2], shrU)

	case isa.Lti:
		it.cmpI(in.regs[0], in.regs[1], in.regs[2], func(a, b int64) bool { return a < b })
	case isa.Gti:
		it.cmpI(in.regs[0], in.regs[1], in.regs[2], func(a, b int64) bool { return a > b })
	case isa.Lei:
		it.cmpI(in.regs[0], in.regs[1], in.regs[2], func(a, b int64) bool { return a <= b })
	case isa.Gei:
		it.cmpI(in.regs[0], in.regs[1], in.regs[2], func(a, b int64) bool { return a >= b })
	case isa.Eqi:
		it.cmpI(in.regs[0], in.regs[1], in.regs[2], func(a, b int64) bool { return a == b })
	case isa.Nei:
		it.cmpI(in.regs[0], in.regs[1], in.regs[2], func(a, b int64) bool { return a != b })
	case isa.Ltu:
		it.cmpU(in.regs[0], in.regs[1], in.regs[2], func(a, b uint64) bool { return a < b })
	case isa.Gtu:
		it.cmpU(in.regs[0], in.regs[1], in.regs[2], func(a, b uint64) bool { return a > b })
	case isa.Leu:
		it.cmpU(in.regs[0], in.regs[1], in.regs[2], func(a, b uint64) bool { return a <= b })
	case isa.Geu:
		it.cmpU(in.regs[0], in.regs[1], in.regs[2], func(a, b uint64) bool { return a >= b })
	case isa.Equ:
		it.cmpU(in.regs[0], in.regs[1], in.regs[2], func(a, b uint64) bool { return a == b })
	case isa.Neu:
		it.cmpU(in.regs[0], in.regs[1], in.regs[2], func(a, b uint64) bool { return a != b })
	case isa.Ltf:
		it.cmpF(in.regs[0], in.regs[1], in.regs[2], func(a, b float64) bool { return a < b })
	case isa.Gtf:
		it.cmpF(in.regs[0], in.regs[1], in.regs[2], func(a, b float64) bool { return a > b })
	case isa.Lef:
		it.cmpF(in.regs[0], in.regs[1], in.regs[2], func(a, b float64) bool { return a <= b })
	case isa.Gef:
		it.cmpF(in.regs[0], in.regs[1], in.regs[2], func(a, b float64) bool { return a >= b })
	case isa.Eqf:
		it.cmpF(in.regs[0], in.regs[1], in.regs[2], func(a, b float64) bool { return a == b })
	case isa.Nef:
		it.cmpF(in.regs[0], in.regs[1], in.regs[2], func(a, b float64) bool { return a != b })

	case isa.CastIU:
		checkTag("cast_iu", it.reg(in.regs[1]), value.I64)
		it.setReg(in.regs[0], value.Uint(uint64(it.reg(in.regs[1]).AsI64())))
	case isa.CastIF:
		checkTag("cast_if", it.reg(in.regs[1]), value.I64)
		it.setReg(in.regs[0], value.Float(float64(it.reg(in.regs[1]).AsI64())))
	case isa.CastUI:
		checkTag("cast_ui", it.reg(in.regs[1]), value.U64)
		it.setReg(in.regs[0], value.Int(int64(it.reg(in.regs[1]).AsU64())))
	case isa.CastUF:
		checkTag("cast_uf", it.reg(in.regs[1]), value.U64)
		it.setReg(in.regs[0], value.Float(float64(it.reg(in.regs[1]).AsU64())))
	case isa.CastFI:
		checkTag("cast_fi", it.reg(in.regs[1]), value.F64)
		it.setReg(in.regs[0], value.Int(int64(it.reg(in.regs[1]).AsF64())))
	case isa.CastFU:
		// The original source's CASTFU mistakenly converts to i64 and tags
		// the result I64; this truncates to u64 and tags U64, which is the
		// cast its name and position in the I/U/F matrix actually promise.
		checkTag("cast_fu", it.reg(in.regs[1]), value.F64)
		it.setReg(in.regs[0], value.Uint(uint64(it.reg(in.regs[1]).AsF64())))

	default:
		it.fail(fmt.Errorf("%w: %s not wired into dispatch", ErrUnknownOpcode, in.op))
		return
	}

	it.ip = next
}

// doCall implements the CALL side of the calling convention (spec.md
// §4.5): stage the argument values through a temporary buffer before the
// frame shift, since the reserved callee window and the staged values can
// otherwise alias mid-copy when an argument register is also the
// destination register of a previous argument write.
func (it *Interpreter) doCall(dst byte, returnIP uint32, target uint32, argRegs []byte) error {
	argc := len(argRegs)
	temp := make([]value.Value, argc)
	for i, r := range argRegs {
		temp[i] = it.reg(r)
	}

	callerBottom := it.bottom
	newBottom := it.top
	if err := it.push(argc + 1); err != nil {
		return err
	}
	for i, v := range temp {
		it.stack[newBottom+1+i] = v
	}

	it.calls = append(it.calls, callEntry{
		returnIP:     returnIP,
		returnTo:     dst,
		callerBottom: callerBottom,
		argc:         argc,
	})
	it.bottom = newBottom
	it.ip = target
	return nil
}

// doReturn implements RETURN: the callee's register 0 holds the result: the
// callee's whole window (reserved args/return slot plus any locals it
// pushed) is discarded back to where CALL found it, the caller's frame and
// instruction pointer are restored, and the result is written into the
// caller's destination register. A RETURN with no saved frame is the
// outermost return and ends the program.
func (it *Interpreter) doReturn() {
	result := it.reg(0)

	if len(it.calls) == 0 {
		it.fail(ErrProgramFinished)
		return
	}

	entry := it.calls[len(it.calls)-1]
	it.calls = it.calls[:len(it.calls)-1]

	it.top = it.bottom
	it.bottom = entry.callerBottom
	it.ip = entry.returnIP
	it.setReg(entry.returnTo, result)
}
