// Package module implements the on-disk bytecode module format: a
// constant-pool blob and a bytecode blob, framed together in a single
// container file (spec.md §6). The container's framing is a pair of
// length-prefixed blobs written with encoding/binary — the spec places the
// surrounding container format out of the core's scope, and the two
// uint32-prefixed blobs it already names are the whole of what a loader
// needs, so there is no third-party framing library to reach for here (see
// DESIGN.md).
package module

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"anatase/value"
)

// Constant-pool record kinds, fixed by spec.md §6.
const (
	ConstKindI64    byte = 0
	ConstKindF64    byte = 1
	ConstKindString byte = 2
	ConstKindTrue   byte = 3
	ConstKindFalse  byte = 4
)

// Pool is the ordered, deduplicated sequence of constants produced by the
// assembler and loaded verbatim by the VM.
type Pool struct {
	Values  []value.Value
	Strings []string
}

// Module is the fully decoded artifact the interpreter runs: a constant
// pool plus a flat bytecode buffer.
type Module struct {
	Consts Pool
	Code   []byte
}

// EncodeConstPool serializes the pool to the tagged-record blob format.
func EncodeConstPool(p Pool) ([]byte, error) {
	var buf bytes.Buffer
	for _, v := range p.Values {
		switch v.Tag {
		case value.I64:
			buf.WriteByte(ConstKindI64)
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], uint64(v.AsI64()))
			buf.Write(b[:])
		case value.F64:
			buf.WriteByte(ConstKindF64)
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.AsF64()))
			buf.Write(b[:])
		case value.String:
			buf.WriteByte(ConstKindString)
			s := p.Strings[v.StringIndex()]
			var lb [8]byte
			binary.LittleEndian.PutUint64(lb[:], uint64(len(s)))
			buf.Write(lb[:])
			buf.WriteString(s)
		case value.Bool:
			if v.AsBool() {
				buf.WriteByte(ConstKindTrue)
			} else {
				buf.WriteByte(ConstKindFalse)
			}
		default:
			return nil, fmt.Errorf("module: cannot encode constant of tag %s", v.Tag)
		}
	}
	return buf.Bytes(), nil
}

// DecodeConstPool parses the tagged-record blob format. Any kind byte other
// than the five defined by spec.md §6 is a malformed module — a fatal VM
// load error, not a recoverable one.
func DecodeConstPool(data []byte) (Pool, error) {
	var pool Pool
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		kind, err := r.ReadByte()
		if err != nil {
			return Pool{}, fmt.Errorf("module: truncated constant pool: %w", err)
		}
		switch kind {
		case ConstKindI64:
			var b [8]byte
			if _, err := io.ReadFull(r, b[:]); err != nil {
				return Pool{}, fmt.Errorf("module: truncated i64 constant: %w", err)
			}
			pool.Values = append(pool.Values, value.Int(int64(binary.LittleEndian.Uint64(b[:]))))
		case ConstKindF64:
			var b [8]byte
			if _, err := io.ReadFull(r, b[:]); err != nil {
				return Pool{}, fmt.Errorf("module: truncated f64 constant: %w", err)
			}
			pool.Values = append(pool.Values, value.Float(math.Float64frombits(binary.LittleEndian.Uint64(b[:]))))
		case ConstKindString:
			var lb [8]byte
			if _, err := io.ReadFull(r, lb[:]); err != nil {
				return Pool{}, fmt.Errorf("module: truncated string length: %w", err)
			}
			n := binary.LittleEndian.Uint64(lb[:])
			buf := make([]byte, n)
			if _, err := io.ReadFull(r, buf); err != nil {
				return Pool{}, fmt.Errorf("module: truncated string payload: %w", err)
			}
			idx := uint64(len(pool.Strings))
			pool.Strings = append(pool.Strings, string(buf))
			pool.Values = append(pool.Values, value.Str(idx))
		case ConstKindTrue:
			pool.Values = append(pool.Values, value.Boolean(true))
		case ConstKindFalse:
			pool.Values = append(pool.Values, value.Boolean(false))
		default:
			return Pool{}, fmt.Errorf("module: invalid constant-pool kind byte 0x%02x", kind)
		}
	}
	return pool, nil
}

// Encode writes the container: a uint32 length prefix and body for the
// constant pool blob, followed by the same framing for the bytecode blob.
func Encode(m Module) ([]byte, error) {
	constBlob, err := EncodeConstPool(m.Consts)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := writeFramed(&out, constBlob); err != nil {
		return nil, err
	}
	if err := writeFramed(&out, m.Code); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Decode reads the container produced by Encode.
func Decode(data []byte) (Module, error) {
	r := bytes.NewReader(data)

	constBlob, err := readFramed(r)
	if err != nil {
		return Module{}, fmt.Errorf("module: reading constant-pool blob: %w", err)
	}
	codeBlob, err := readFramed(r)
	if err != nil {
		return Module{}, fmt.Errorf("module: reading bytecode blob: %w", err)
	}

	pool, err := DecodeConstPool(constBlob)
	if err != nil {
		return Module{}, err
	}

	return Module{Consts: pool, Code: codeBlob}, nil
}

func writeFramed(out *bytes.Buffer, blob []byte) error {
	var lb [4]byte
	binary.LittleEndian.PutUint32(lb[:], uint32(len(blob)))
	out.Write(lb[:])
	out.Write(blob)
	return nil
}

func readFramed(r *bytes.Reader) ([]byte, error) {
	var lb [4]byte
	if _, err := io.ReadFull(r, lb[:]); err != nil {
		return nil, fmt.Errorf("reading length prefix: %w", err)
	}
	n := binary.LittleEndian.Uint32(lb[:])
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("reading %d byte blob: %w", n, err)
		}
	}
	return buf, nil
}
