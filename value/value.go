// Package value implements the universal runtime datum shared by the
// assembler's constant pool and the interpreter's register stack: a
// fixed-size tagged union carrying a signed or unsigned 64-bit integer, a
// 64-bit float, a boolean, or nothing at all.
package value

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Tag identifies the payload carried by a Value. The numeric values are
// fixed and must not be renumbered; the constant-pool blob in package module
// does not store tags but uses its own record kind bytes.
type Tag uint64

const (
	Uninit Tag = 0
	I64    Tag = 1
	U64    Tag = 2
	F64    Tag = 3
	Bool   Tag = 4
	// String is not named by the core Value union in the spec, but the
	// constant-pool blob format reserves a kind byte for string literals
	// (see module.ConstKindString) and those constants have to decode to
	// some Value. Strings are opaque: arithmetic opcodes expect numeric
	// tags, and only debug builds check for a String operand.
	String Tag = 5
)

func (t Tag) String() string {
	switch t {
	case Uninit:
		return "uninit"
	case I64:
		return "i64"
	case U64:
		return "u64"
	case F64:
		return "f64"
	case Bool:
		return "bool"
	case String:
		return "string"
	default:
		return fmt.Sprintf("tag(%d)", uint64(t))
	}
}

// Value is a 16-byte record: an 8-byte tag discriminant followed by an
// 8-byte payload. It is always trivially copyable — there is nothing owned
// by a Value, including String, whose payload is merely an index into the
// owning constant pool's side table of string bytes.
type Value struct {
	Tag     Tag
	payload [8]byte
}

// Uninitialized is the zero Value; every stack slot starts out this way.
var Uninitialized = Value{Tag: Uninit}

func Int(v int64) Value {
	var v2 Value
	v2.Tag = I64
	binary.LittleEndian.PutUint64(v2.payload[:], uint64(v))
	return v2
}

func Uint(v uint64) Value {
	var v2 Value
	v2.Tag = U64
	binary.LittleEndian.PutUint64(v2.payload[:], v)
	return v2
}

func Float(v float64) Value {
	var v2 Value
	v2.Tag = F64
	binary.LittleEndian.PutUint64(v2.payload[:], math.Float64bits(v))
	return v2
}

func Boolean(v bool) Value {
	var v2 Value
	v2.Tag = Bool
	if v {
		v2.payload[0] = 1
	}
	return v2
}

// Str builds an opaque String value pointing at index idx of the owning
// pool's string table.
func Str(idx uint64) Value {
	var v2 Value
	v2.Tag = String
	binary.LittleEndian.PutUint64(v2.payload[:], idx)
	return v2
}

func (v Value) AsI64() int64 {
	return int64(binary.LittleEndian.Uint64(v.payload[:]))
}

func (v Value) AsU64() uint64 {
	return binary.LittleEndian.Uint64(v.payload[:])
}

func (v Value) AsF64() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(v.payload[:]))
}

func (v Value) AsBool() bool {
	return v.payload[0] != 0
}

// StringIndex returns the string-table index carried by a String value.
func (v Value) StringIndex() uint64 {
	return binary.LittleEndian.Uint64(v.payload[:])
}

// Equal implements the constant pool's structural-equality rule used for
// deduplication during assembly. Values of different tags are never equal,
// including Uninit, which only equals itself.
func (v Value) Equal(other Value) bool {
	return v.Tag == other.Tag && v.payload == other.payload
}

func (v Value) String() string {
	switch v.Tag {
	case Uninit:
		return "<uninit>"
	case I64:
		return fmt.Sprintf("%d", v.AsI64())
	case U64:
		return fmt.Sprintf("%d", v.AsU64())
	case F64:
		return fmt.Sprintf("%g", v.AsF64())
	case Bool:
		return fmt.Sprintf("%t", v.AsBool())
	case String:
		return fmt.Sprintf("<string#%d>", v.StringIndex())
	default:
		return "<invalid>"
	}
}
