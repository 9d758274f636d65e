package vm

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"anatase/isa"
	"anatase/module"
	"anatase/value"
)

// patch is a deferred jump/call-target write, resolved once every label in
// the program has a known offset — the same two-pass shape package asm
// uses for real programs (spec.md §9 "two-pass codegen").
type patch struct {
	offset uint32
	label  string
}

type builder struct {
	buf     []byte
	labels  map[string]uint32
	patches []patch
}

func newBuilder() *builder {
	return &builder{labels: map[string]uint32{}}
}

func (b *builder) label(name string) { b.labels[name] = uint32(len(b.buf)) }

func (b *builder) op(op isa.Opcode)  { b.buf = append(b.buf, byte(op)) }
func (b *builder) reg(r byte)        { b.buf = append(b.buf, r) }
func (b *builder) u8(v byte)         { b.buf = append(b.buf, v) }
func (b *builder) u16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}
func (b *builder) offsetTo(label string) {
	b.patches = append(b.patches, patch{offset: uint32(len(b.buf)), label: label})
	b.buf = append(b.buf, 0, 0, 0, 0)
}

func (b *builder) finish(t *testing.T) []byte {
	t.Helper()
	for _, p := range b.patches {
		target, ok := b.labels[p.label]
		require.Truef(t, ok, "undefined label %q", p.label)
		binary.LittleEndian.PutUint32(b.buf[p.offset:p.offset+4], target)
	}
	return b.buf
}

func run(t *testing.T, consts []value.Value, code []byte) *Interpreter {
	t.Helper()
	m := module.Module{Consts: module.Pool{Values: consts}, Code: code}
	it := New(m, 0, nil)
	err := it.Run()
	require.Error(t, err)
	return it
}

// S1: arithmetic identity — 7 + 35 lands in r0.
func TestArithmeticAddition(t *testing.T) {
	b := newBuilder()
	b.op(isa.Set)
	b.reg(1)
	b.u16(0)
	b.op(isa.Set)
	b.reg(2)
	b.u16(1)
	b.op(isa.Addi)
	b.reg(0)
	b.reg(1)
	b.reg(2)
	b.op(isa.Return)

	it := run(t, []value.Value{value.Int(7), value.Int(35)}, b.finish(t))
	require.ErrorIs(t, it.Err(), ErrProgramFinished)
	require.Equal(t, int64(42), it.Register0().AsI64())
}

// S2: integer division by zero halts the interpreter with ErrDivisionByZero
// instead of producing a value.
func TestIntegerDivisionByZero(t *testing.T) {
	b := newBuilder()
	b.op(isa.Set)
	b.reg(1)
	b.u16(0)
	b.op(isa.Set)
	b.reg(2)
	b.u16(1)
	b.op(isa.Divi)
	b.reg(0)
	b.reg(1)
	b.reg(2)
	b.op(isa.Return)

	it := run(t, []value.Value{value.Int(5), value.Int(0)}, b.finish(t))
	require.ErrorIs(t, it.Err(), ErrDivisionByZero)
}

// Float division by zero halts the interpreter the same way integer and
// unsigned division by zero do (spec.md §4.4: the zero is determined by
// tag, including 0.0 for F64).
func TestFloatDivisionByZero(t *testing.T) {
	b := newBuilder()
	b.op(isa.Set)
	b.reg(1)
	b.u16(0)
	b.op(isa.Set)
	b.reg(2)
	b.u16(1)
	b.op(isa.Divf)
	b.reg(0)
	b.reg(1)
	b.reg(2)
	b.op(isa.Return)

	it := run(t, []value.Value{value.Float(5), value.Float(0)}, b.finish(t))
	require.ErrorIs(t, it.Err(), ErrDivisionByZero)
}

// S3: a conditional jump selects between two constants based on a boolean
// register.
func TestConditionalJump(t *testing.T) {
	b := newBuilder()
	b.op(isa.Set)
	b.reg(1)
	b.u16(0) // r1 = true
	b.op(isa.Jif)
	b.reg(1)
	b.offsetTo("then")
	b.offsetTo("els")

	b.label("then")
	b.op(isa.Set)
	b.reg(0)
	b.u16(1)
	b.op(isa.Jmp)
	b.offsetTo("done")

	b.label("els")
	b.op(isa.Set)
	b.reg(0)
	b.u16(2)

	b.label("done")
	b.op(isa.Return)

	it := run(t, []value.Value{value.Boolean(true), value.Int(1), value.Int(2)}, b.finish(t))
	require.ErrorIs(t, it.Err(), ErrProgramFinished)
	require.Equal(t, int64(1), it.Register0().AsI64())
}

// S4: a CALL passes two arguments into a callee's register window and
// RETURN carries the result back through the caller's destination
// register.
func TestCallReturnArguments(t *testing.T) {
	b := newBuilder()

	b.label("main")
	b.op(isa.Set)
	b.reg(1)
	b.u16(0) // r1 = 5
	b.op(isa.Set)
	b.reg(2)
	b.u16(1) // r2 = 7
	b.op(isa.Call)
	b.reg(0) // dst
	b.offsetTo("add")
	b.u8(2)    // argc
	b.reg(1)   // arg reg r1
	b.reg(2)   // arg reg r2
	b.op(isa.Return)

	b.label("add")
	b.op(isa.Addi)
	b.reg(0)
	b.reg(1)
	b.reg(2)
	b.op(isa.Return)

	it := run(t, []value.Value{value.Int(5), value.Int(7)}, b.finish(t))
	require.ErrorIs(t, it.Err(), ErrProgramFinished)
	require.Equal(t, int64(12), it.Register0().AsI64())
}

// S5: recursive factorial exercises nested CALL/RETURN frames sharing one
// register stack.
func TestRecursiveFactorial(t *testing.T) {
	b := newBuilder()

	b.label("main")
	b.op(isa.Set)
	b.reg(1)
	b.u16(1) // r1 = 5
	b.op(isa.Call)
	b.reg(0)
	b.offsetTo("fact")
	b.u8(1)
	b.reg(1)
	b.op(isa.Return)

	b.label("fact")
	// r1 = n (argument). r2 = constant 1.
	b.op(isa.Set)
	b.reg(2)
	b.u16(0)
	// r3 = (n <= 1)
	b.op(isa.Lei)
	b.reg(3)
	b.reg(1)
	b.reg(2)
	b.op(isa.Jif)
	b.reg(3)
	b.offsetTo("base")
	b.offsetTo("rec")

	b.label("base")
	b.op(isa.Set)
	b.reg(0)
	b.u16(0) // return 1
	b.op(isa.Jmp)
	b.offsetTo("fact_done")

	b.label("rec")
	// r4 = n - 1
	b.op(isa.Subi)
	b.reg(4)
	b.reg(1)
	b.reg(2)
	// r5 = fact(r4)
	b.op(isa.Call)
	b.reg(5)
	b.offsetTo("fact")
	b.u8(1)
	b.reg(4)
	// r0 = n * r5
	b.op(isa.Muli)
	b.reg(0)
	b.reg(1)
	b.reg(5)

	b.label("fact_done")
	b.op(isa.Return)

	it := run(t, []value.Value{value.Int(1), value.Int(5)}, b.finish(t))
	require.ErrorIs(t, it.Err(), ErrProgramFinished)
	require.Equal(t, int64(120), it.Register0().AsI64())
}

// S6: a cast chain i64 -> f64 -> u64 -> i64 round-trips an integer through
// every intermediate representation.
func TestCastChain(t *testing.T) {
	b := newBuilder()
	b.op(isa.Set)
	b.reg(0)
	b.u16(0) // r0 = 7 (i64)
	b.op(isa.CastIF)
	b.reg(1)
	b.reg(0)
	b.op(isa.CastFU)
	b.reg(2)
	b.reg(1)
	b.op(isa.CastUI)
	b.reg(0)
	b.reg(2)
	b.op(isa.Return)

	it := run(t, []value.Value{value.Int(7)}, b.finish(t))
	require.ErrorIs(t, it.Err(), ErrProgramFinished)
	require.Equal(t, int64(7), it.Register0().AsI64())
}

// CASTFU truncates toward zero and tags the result U64 — the original
// source's mistake of tagging it I64 is not preserved (spec.md §9).
func TestCastFloatToUintTruncatesAndTagsUnsigned(t *testing.T) {
	b := newBuilder()
	b.op(isa.Set)
	b.reg(0)
	b.u16(0)
	b.op(isa.CastFU)
	b.reg(0)
	b.reg(0)
	b.op(isa.Return)

	it := run(t, []value.Value{value.Float(3.9)}, b.finish(t))
	require.ErrorIs(t, it.Err(), ErrProgramFinished)
	result := it.Register0()
	require.Equal(t, value.U64, result.Tag)
	require.Equal(t, uint64(3), result.AsU64())
}

// A register stack too small to hold a nested CALL's reserved frame fails
// with ErrStackOverflow instead of corrupting adjacent memory.
func TestCallOverflowsSmallStack(t *testing.T) {
	b := newBuilder()
	b.label("main")
	b.op(isa.Call)
	b.reg(0)
	b.offsetTo("func1")
	b.u8(0)
	b.op(isa.Return)

	b.label("func1")
	b.op(isa.Call)
	b.reg(0)
	b.offsetTo("func2")
	b.u8(0)
	b.op(isa.Return)

	b.label("func2")
	b.op(isa.Return)

	m := module.Module{Code: b.finish(t)}
	it := New(m, 1, nil)
	err := it.Run()
	require.ErrorIs(t, err, ErrStackOverflow)
}
