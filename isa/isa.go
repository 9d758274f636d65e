// Package isa is the authoritative opcode catalogue: the mapping from
// mnemonic to opcode byte to operand layout that the assembler and the
// interpreter both compile against. Keeping it in its own package is what
// lets adding an instruction update encoder, decoder, and disassembler
// together instead of drifting apart the way the two opcode tables in the
// original source did (see spec.md §9 "Opcode numbering drift" — this
// catalogue is the newer, authoritative one it describes).
package isa

import "fmt"

type Opcode byte

// Control and data movement.
const (
	Return Opcode = 1
	Copy   Opcode = 2
	Swap   Opcode = 3
	Set    Opcode = 4
	Push   Opcode = 5
	Pop    Opcode = 6

	Jmp   Opcode = 10
	Jif   Opcode = 11
	Jnif  Opcode = 12
	Ijif  Opcode = 13
	Ijnif Opcode = 14

	Call Opcode = 50

	Print Opcode = 255
)

// Typed arithmetic: one opcode per {op, type} pair, three-register form
// dst, lhs, rhs.
const (
	Addi Opcode = 60
	Addu Opcode = 61
	Addf Opcode = 62

	Subi Opcode = 63
	Subu Opcode = 64
	Subf Opcode = 65

	Muli Opcode = 66
	Mulu Opcode = 67
	Mulf Opcode = 68

	Remi Opcode = 69
	Remu Opcode = 70
	Remf Opcode = 71

	Divi Opcode = 72
	Divu Opcode = 73
	Divf Opcode = 74

	Lsi Opcode = 75
	Lsu Opcode = 76
	Rsi Opcode = 77
	Rsu Opcode = 78
)

// Comparisons: three-register form, result is Bool. Range 130-147.
const (
	Lti Opcode = 130
	Gti Opcode = 131
	Lei Opcode = 132
	Gei Opcode = 133
	Eqi Opcode = 134
	Nei Opcode = 135

	Ltu Opcode = 136
	Gtu Opcode = 137
	Leu Opcode = 138
	Geu Opcode = 139
	Equ Opcode = 140
	Neu Opcode = 141

	Ltf Opcode = 142
	Gtf Opcode = 143
	Lef Opcode = 144
	Gef Opcode = 145
	Eqf Opcode = 146
	Nef Opcode = 147
)

// Casts: two-register form dst, src, between all ordered pairs of
// {I, U, F}. Range 150-155.
const (
	CastIU Opcode = 150
	CastIF Opcode = 151
	CastUI Opcode = 152
	CastUF Opcode = 153
	CastFI Opcode = 154
	CastFU Opcode = 155
)

// OperandShape describes how many bytes of fixed-size operand data follow
// the opcode byte, and how many of those bytes (from the front) are plain
// 8-bit register indices. Call is the one variable-length instruction
// (argc-driven) and is handled specially by codegen and the decoder rather
// than through this table.
type OperandShape struct {
	// Registers is the number of leading 1-byte register operands.
	Registers int
	// Extra lists any additional fixed-size operand fields after the
	// register operands, in encoding order.
	Extra []ExtraField
}

type ExtraField int

const (
	ConstIndex ExtraField = iota // u16 constant-pool index
	Offset                       // u32 absolute bytecode offset
	Count                        // u8 immediate count (push/pop)
)

func (f ExtraField) Bytes() int {
	switch f {
	case ConstIndex:
		return 2
	case Offset:
		return 4
	case Count:
		return 1
	}
	panic("unknown extra field")
}

var shapes = map[Opcode]OperandShape{
	Return: {},
	Copy:   {Registers: 2},
	Swap:   {Registers: 2},
	Set:    {Registers: 1, Extra: []ExtraField{ConstIndex}},
	Push:   {Extra: []ExtraField{Count}},
	Pop:    {Extra: []ExtraField{Count}},

	Jmp:   {Extra: []ExtraField{Offset}},
	Jif:   {Registers: 1, Extra: []ExtraField{Offset, Offset}},
	Jnif:  {Registers: 1, Extra: []ExtraField{Offset, Offset}},
	Ijif:  {Registers: 1, Extra: []ExtraField{Offset}},
	Ijnif: {Registers: 1, Extra: []ExtraField{Offset}},

	Print: {Registers: 1},

	CastIU: {Registers: 2},
	CastIF: {Registers: 2},
	CastUI: {Registers: 2},
	CastUF: {Registers: 2},
	CastFI: {Registers: 2},
	CastFU: {Registers: 2},
}

func init() {
	for _, op := range []Opcode{
		Addi, Addu, Addf, Subi, Subu, Subf, Muli, Mulu, Mulf,
		Remi, Remu, Remf, Divi, Divu, Divf, Lsi, Lsu, Rsi, Rsu,
		Lti, Gti, Lei, Gei, Eqi, Nei,
		Ltu, Gtu, Leu, Geu, Equ, Neu,
		Ltf, Gtf, Lef, Gef, Eqf, Nef,
	} {
		shapes[op] = OperandShape{Registers: 3}
	}
}

// Shape returns the fixed operand layout for op. Call is not present here;
// callers must special-case it (see IsCall).
func Shape(op Opcode) (OperandShape, bool) {
	s, ok := shapes[op]
	return s, ok
}

func IsCall(op Opcode) bool { return op == Call }

// FixedOperandBytes returns the number of bytes following the opcode byte
// for every instruction except Call, whose size depends on its encoded argc.
func FixedOperandBytes(op Opcode) int {
	s, ok := shapes[op]
	if !ok {
		return 0
	}
	n := s.Registers
	for _, e := range s.Extra {
		n += e.Bytes()
	}
	return n
}

var mnemonics = map[string]Opcode{
	"ret":  Return,
	"copy": Copy,
	"swap": Swap,
	"set":  Set,
	"push": Push,
	"pop":  Pop,

	"jmp":   Jmp,
	"jif":   Jif,
	"jnif":  Jnif,
	"ijif":  Ijif,
	"ijnif": Ijnif,

	"call":  Call,
	"print": Print,

	"addi": Addi, "addu": Addu, "addf": Addf,
	"subi": Subi, "subu": Subu, "subf": Subf,
	"muli": Muli, "mulu": Mulu, "mulf": Mulf,
	"remi": Remi, "remu": Remu, "remf": Remf,
	"divi": Divi, "divu": Divu, "divf": Divf,
	"lsi": Lsi, "lsu": Lsu, "rsi": Rsi, "rsu": Rsu,

	"lti": Lti, "gti": Gti, "lei": Lei, "gei": Gei, "eqi": Eqi, "nei": Nei,
	"ltu": Ltu, "gtu": Gtu, "leu": Leu, "geu": Geu, "equ": Equ, "neu": Neu,
	"ltf": Ltf, "gtf": Gtf, "lef": Lef, "gef": Gef, "eqf": Eqf, "nef": Nef,

	"cast_iu": CastIU, "cast_if": CastIF,
	"cast_ui": CastUI, "cast_uf": CastUF,
	"cast_fi": CastFI, "cast_fu": CastFU,
}

var opcodeNames map[Opcode]string

func init() {
	opcodeNames = make(map[Opcode]string, len(mnemonics))
	for name, op := range mnemonics {
		opcodeNames[op] = name
	}
}

// Lookup resolves a mnemonic (already lowercased by the lexer) to its
// opcode byte.
func Lookup(mnemonic string) (Opcode, bool) {
	op, ok := mnemonics[mnemonic]
	return op, ok
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("opcode(0x%02x)", byte(op))
}

// Defined reports whether op is part of the catalogue at all; used by the
// interpreter to turn an unrecognized opcode byte into a deterministic
// fatal error rather than undefined behavior (spec.md §8 "dispatch
// totality").
func Defined(op Opcode) bool {
	_, ok := opcodeNames[op]
	return ok
}
