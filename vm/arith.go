package vm

import (
	"fmt"
	"math"

	"anatase/value"
)

// checkTag enforces "Tag soundness" (spec.md §8, property 1) in debug
// builds only; release builds trust the opcode's contract and read the
// payload regardless of tag, per spec.md §7.
func checkTag(op string, v value.Value, want value.Tag) {
	if debugBuild && v.Tag != want {
		panic(fmt.Sprintf("%v: %s expected %s, got %s", ErrTagMismatch, op, want, v.Tag))
	}
}

func (it *Interpreter) arithI(op string, dst, lhs, rhs byte, fn func(a, b int64) int64) {
	l, r := it.reg(lhs), it.reg(rhs)
	checkTag(op, l, value.I64)
	checkTag(op, r, value.I64)
	it.setReg(dst, value.Int(fn(l.AsI64(), r.AsI64())))
}

func (it *Interpreter) arithU(op string, dst, lhs, rhs byte, fn func(a, b uint64) uint64) {
	l, r := it.reg(lhs), it.reg(rhs)
	checkTag(op, l, value.U64)
	checkTag(op, r, value.U64)
	it.setReg(dst, value.Uint(fn(l.AsU64(), r.AsU64())))
}

func (it *Interpreter) arithF(op string, dst, lhs, rhs byte, fn func(a, b float64) float64) {
	l, r := it.reg(lhs), it.reg(rhs)
	checkTag(op, l, value.F64)
	checkTag(op, r, value.F64)
	it.setReg(dst, value.Float(fn(l.AsF64(), r.AsF64())))
}

func (it *Interpreter) cmpI(dst, lhs, rhs byte, fn func(a, b int64) bool) {
	l, r := it.reg(lhs), it.reg(rhs)
	checkTag("cmp", l, value.I64)
	checkTag("cmp", r, value.I64)
	it.setReg(dst, value.Boolean(fn(l.AsI64(), r.AsI64())))
}

func (it *Interpreter) cmpU(dst, lhs, rhs byte, fn func(a, b uint64) bool) {
	l, r := it.reg(lhs), it.reg(rhs)
	checkTag("cmp", l, value.U64)
	checkTag("cmp", r, value.U64)
	it.setReg(dst, value.Boolean(fn(l.AsU64(), r.AsU64())))
}

func (it *Interpreter) cmpF(dst, lhs, rhs byte, fn func(a, b float64) bool) {
	l, r := it.reg(lhs), it.reg(rhs)
	checkTag("cmp", l, value.F64)
	checkTag("cmp", r, value.F64)
	it.setReg(dst, value.Boolean(fn(l.AsF64(), r.AsF64())))
}

func addI(a, b int64) int64     { return a + b }
func subI(a, b int64) int64     { return a - b }
func mulI(a, b int64) int64     { return a * b }
func remI(a, b int64) int64     { return a % b }
func shlI(a, b int64) int64     { return a << uint64(b) }
func shrI(a, b int64) int64     { return a >> uint64(b) }

func addU(a, b uint64) uint64 { return a + b }
func subU(a, b uint64) uint64 { return a - b }
func mulU(a, b uint64) uint64 { return a * b }
func remU(a, b uint64) uint64 { return a % b }
func shlU(a, b uint64) uint64 { return a << b }
func shrU(a, b uint64) uint64 { return a >> b }

func addF(a, b float64) float64 { return a + b }
func subF(a, b float64) float64 { return a - b }
func mulF(a, b float64) float64 { return a * b }
func remF(a, b float64) float64 { return math.Mod(a, b) }
