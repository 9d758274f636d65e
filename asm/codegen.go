package asm

import (
	"encoding/binary"
	"fmt"
	"math"

	"anatase/isa"
	"anatase/module"
	"anatase/value"
)

// patchKind distinguishes an intra-function jump patch (resolved against
// that function's own block-label table) from a call patch (resolved
// against the whole-program function table) — spec.md §4.6 patch pass.
type patchKind int

const (
	patchLabel patchKind = iota
	patchCall
)

type pendingPatch struct {
	kind   patchKind
	offset uint32
	name   string
	pos    Position
}

// pool interns constants by structural equality (value.Value.Equal for
// everything but strings, which dedupe on their decoded text) exactly as
// spec.md §3 requires of the assembler's constant pool.
type pool struct {
	values    []value.Value
	strings   []string
	stringIdx map[string]int
}

func newPool() *pool {
	return &pool{stringIdx: map[string]int{}}
}

func (p *pool) internLiteral(lit Literal) (uint16, error) {
	var v value.Value
	switch lit.Kind {
	case LitInt:
		v = value.Int(lit.I)
	case LitFloat:
		v = value.Float(lit.F)
	case LitBool:
		v = value.Boolean(lit.B)
	case LitString:
		idx, ok := p.stringIdx[lit.S]
		if !ok {
			idx = len(p.strings)
			p.strings = append(p.strings, lit.S)
			p.stringIdx[lit.S] = idx
		}
		v = value.Str(uint64(idx))
	}
	return p.internValue(v)
}

func (p *pool) internValue(v value.Value) (uint16, error) {
	for i, existing := range p.values {
		if existing.Equal(v) {
			return uint16(i), nil
		}
	}
	if len(p.values) >= 1<<16 {
		return 0, newCapacityError("constant pool exceeds %d entries (u16 index)", 1<<16)
	}
	p.values = append(p.values, v)
	return uint16(len(p.values) - 1), nil
}

// codegenError carries a codegen-phase diagnostic without requiring every
// emit helper to thread a Diagnostics pointer through its return values.
type codegenError struct {
	pos Position
	msg string
}

func (e *codegenError) Error() string { return e.msg }

func newCapacityError(format string, args ...any) error {
	return &codegenError{msg: fmt.Sprintf(format, args...)}
}

// generator walks the parsed program and emits the bytecode buffer,
// recording forward-reference patches the way spec.md §4.6 describes: one
// emit pass that reserves zero bytes for every jump/call target, followed
// by a patch pass that resolves them against per-function label tables and
// a whole-program function table.
type generator struct {
	code         []byte
	pool         *pool
	callPatches  []pendingPatch
	localPatches []pendingPatch // reset per function
	funcAt       map[string]uint32
	blockAt      map[string]uint32 // reset per function
	diags        *Diagnostics
}

// Codegen turns a semantically-checked Program into a loadable module.
// Module prologue: a synthetic `call r0, main, argc=0; return` at offset 0
// so execution starting at offset 0 runs main and terminates cleanly on
// its return (spec.md §4.6).
func Codegen(prog *Program, diags *Diagnostics) module.Module {
	g := &generator{pool: newPool(), funcAt: map[string]uint32{}, diags: diags}

	g.emitByte(byte(isa.Call))
	g.emitByte(0) // dst r0
	g.reservePatch(patchCall, "main", Position{})
	g.emitByte(0) // argc
	g.emitByte(byte(isa.Return))

	for _, fn := range prog.Functions {
		g.funcAt[fn.Name] = uint32(len(g.code))
		g.emitFunction(fn)
	}

	for _, p := range g.callPatches {
		g.resolvePatch(p, g.funcAt)
	}

	return module.Module{
		Consts: module.Pool{Values: g.pool.values, Strings: g.pool.strings},
		Code:   g.code,
	}
}

func (g *generator) emitByte(b byte) { g.code = append(g.code, b) }

func (g *generator) emitU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	g.code = append(g.code, b[:]...)
}

func (g *generator) emitU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	g.code = append(g.code, b[:]...)
}

// reservePatch writes 4 zero bytes and records where they are. Calls are
// resolved in the final whole-program pass (the target function may not
// have been emitted yet); intra-function label patches are resolved as
// soon as the enclosing function finishes emitting, against that
// function's own block table, since labels never cross function
// boundaries (spec.md §4.6 "intra-function jumps use a per-function
// block-label → byte-offset map").
func (g *generator) reservePatch(kind patchKind, name string, pos Position) {
	p := pendingPatch{kind: kind, offset: uint32(len(g.code)), name: name, pos: pos}
	g.emitU32(0)
	if kind == patchCall {
		g.callPatches = append(g.callPatches, p)
		return
	}
	g.localPatches = append(g.localPatches, p)
}

// emitFunction lays out a function's blocks in source order, which need not
// match the function's declared entry block (spec.md §3: the entry block is
// named by the function's declaration, not by textual position). A CALL
// always targets funcAt[fn.Name] — the offset of whichever block happens to
// be emitted first — so every function opens with a jump to its real entry
// block, exactly as the original's codegen prologue does (see
// original_source/anatase_asm/src/codegen.rs).
func (g *generator) emitFunction(fn *Function) {
	g.blockAt = map[string]uint32{}
	g.localPatches = nil

	g.emitByte(byte(isa.Jmp))
	g.reservePatch(patchLabel, fn.Entry, fn.Pos)

	for _, b := range fn.Blocks {
		g.blockAt[b.Label] = uint32(len(g.code))
		for _, op := range b.Ops {
			g.emitOp(fn, op)
		}
	}
	for _, p := range g.localPatches {
		g.resolvePatch(p, g.blockAt)
	}
}

func (g *generator) emitOp(fn *Function, op *Op) {
	if !isa.Defined(op.Opcode) {
		return // already reported during parsing/sema
	}
	g.emitByte(byte(op.Opcode))

	if isa.IsCall(op.Opcode) {
		g.emitCall(fn, op)
		return
	}

	shape, _ := isa.Shape(op.Opcode)
	for i := 0; i < shape.Registers; i++ {
		g.emitByte(operandReg(op, i))
	}
	for i, extra := range shape.Extra {
		operand := op.Operands[shape.Registers+i]
		switch extra {
		case isa.ConstIndex:
			idx, err := g.pool.internLiteral(operand.Literal)
			if err != nil {
				g.fail(op.Pos, err)
				g.emitU16(0)
				continue
			}
			g.emitU16(idx)
		case isa.Offset:
			g.reservePatch(patchLabel, operand.Label, operand.Pos)
		case isa.Count:
			g.emitByte(byte(operand.Literal.I))
		}
	}
}

func (g *generator) emitCall(fn *Function, op *Op) {
	dst := operandReg(op, 0)
	target := op.Operands[1]
	argRegs := op.Operands[2:]

	g.emitByte(dst)
	g.reservePatch(patchCall, target.Func, target.Pos)
	if len(argRegs) > math.MaxUint8 {
		g.fail(op.Pos, newCapacityError("call to %q has %d arguments, exceeding the byte-encoded limit", target.Func, len(argRegs)))
		g.emitByte(0)
		return
	}
	g.emitByte(byte(len(argRegs)))
	for _, a := range argRegs {
		g.emitByte(a.Reg)
	}
}

func operandReg(op *Op, i int) byte {
	if i >= len(op.Operands) {
		return 0
	}
	return op.Operands[i].Reg
}

func (g *generator) fail(pos Position, err error) {
	g.diags.Add(PhaseCodegen, pos, "%s", err.Error())
}

// resolvePatch writes the resolved target offset into a previously
// reserved 4-byte slot, asserting it is still all-zero first — the
// double-patch guard spec.md §4.6 calls for.
func (g *generator) resolvePatch(p pendingPatch, table map[string]uint32) {
	target, ok := table[p.name]
	if !ok {
		g.diags.Add(PhaseCodegen, p.pos, "unresolved patch target %q", p.name)
		return
	}
	if !allZero(g.code[p.offset : p.offset+4]) {
		g.diags.Add(PhaseCodegen, p.pos, "internal error: patch slot for %q was already written", p.name)
		return
	}
	binary.LittleEndian.PutUint32(g.code[p.offset:p.offset+4], target)
}

func allZero(b []byte) bool {
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}
