package asm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"anatase/value"
	"anatase/vm"
)

// S1: arithmetic identity written as source text instead of hand-built
// bytes, exercising Set/Addi/Return and constant-pool interning together.
func TestAssembleArithmeticAddition(t *testing.T) {
	src := `
fn main ~0 $entry
: $entry :
  set @1 7;
  set @2 35;
  addi @0 @1 @2;
  ret
`
	mod, diags := Assemble(src)
	require.Falsef(t, diags.HasErrors(), "unexpected diagnostics: %s", diags.Error())

	it := vm.New(mod, 0, nil)
	err := it.Run()
	require.ErrorIs(t, err, vm.ErrProgramFinished)
	require.Equal(t, int64(42), it.Register0().AsI64())
}

// S2: division by zero still halts the interpreter the same way whether the
// bytecode came from the assembler or a hand-built buffer.
func TestAssembleIntegerDivisionByZero(t *testing.T) {
	src := `
fn main ~0 $entry
: $entry :
  set @1 5;
  set @2 0;
  divi @0 @1 @2;
  ret
`
	mod, diags := Assemble(src)
	require.False(t, diags.HasErrors())

	it := vm.New(mod, 0, nil)
	err := it.Run()
	require.ErrorIs(t, err, vm.ErrDivisionByZero)
}

// S3: a conditional jump between two labeled blocks in the same function.
func TestAssembleConditionalJump(t *testing.T) {
	src := `
fn main ~0 $entry
: $entry :
  set @1 true;
  jif @1 $then $els
: $then :
  set @0 1;
  jmp $done
: $els :
  set @0 2
: $done :
  ret
`
	mod, diags := Assemble(src)
	require.False(t, diags.HasErrors())

	it := vm.New(mod, 0, nil)
	err := it.Run()
	require.ErrorIs(t, err, vm.ErrProgramFinished)
	require.Equal(t, int64(1), it.Register0().AsI64())
}

// S4: a call into a second function, passing two arguments and returning
// their sum through the destination register.
func TestAssembleCallReturnArguments(t *testing.T) {
	src := `
fn main ~0 $entry
: $entry :
  set @1 5;
  set @2 7;
  call @0 add @1 @2;
  ret

fn add ~2 $entry
: $entry :
  addi @0 @1 @2;
  ret
`
	mod, diags := Assemble(src)
	require.False(t, diags.HasErrors())

	it := vm.New(mod, 0, nil)
	err := it.Run()
	require.ErrorIs(t, err, vm.ErrProgramFinished)
	require.Equal(t, int64(12), it.Register0().AsI64())
}

// S5: recursive factorial, exercising nested call frames through the
// assembler's per-function label patching.
func TestAssembleRecursiveFactorial(t *testing.T) {
	src := `
fn main ~0 $entry
: $entry :
  set @1 5;
  call @0 fact @1;
  ret

fn fact ~1 $entry
: $entry :
  set @2 1;
  lei @3 @1 @2;
  jif @3 $base $rec
: $base :
  set @0 1;
  jmp $done
: $rec :
  subi @4 @1 @2;
  call @5 fact @4;
  muli @0 @1 @5
: $done :
  ret
`
	mod, diags := Assemble(src)
	require.False(t, diags.HasErrors())

	it := vm.New(mod, 0, nil)
	err := it.Run()
	require.ErrorIs(t, err, vm.ErrProgramFinished)
	require.Equal(t, int64(120), it.Register0().AsI64())
}

// A string literal interns into the constant pool's string table rather
// than its scalar Value slice, and a repeated literal dedupes to the same
// index instead of growing the pool.
func TestAssembleStringConstantDedup(t *testing.T) {
	src := `
fn main ~0 $entry
: $entry :
  set @0 "hello";
  set @1 "hello";
  ret
`
	mod, diags := Assemble(src)
	require.False(t, diags.HasErrors())
	require.Len(t, mod.Consts.Strings, 1)
	require.Equal(t, "hello", mod.Consts.Strings[0])
	require.Len(t, mod.Consts.Values, 1)
	require.Equal(t, value.String, mod.Consts.Values[0].Tag)
}

// A missing main function is a sema-phase diagnostic, and codegen never
// runs once sema has already failed.
func TestAssembleMissingMainIsSemaError(t *testing.T) {
	src := `
fn helper ~0 $entry
: $entry :
  ret
`
	_, diags := Assemble(src)
	require.True(t, diags.HasErrors())
	sema := diags.ForPhase(PhaseSema)
	require.NotEmpty(t, sema)
}

// An undefined label reference is caught in sema, not left to surface as a
// garbage jump target at codegen time.
func TestAssembleUndefinedLabelIsSemaError(t *testing.T) {
	src := `
fn main ~0 $entry
: $entry :
  jmp $nowhere
`
	_, diags := Assemble(src)
	require.True(t, diags.HasErrors())
	require.NotEmpty(t, diags.ForPhase(PhaseSema))
	require.Empty(t, diags.ForPhase(PhaseCodegen))
}

// A call with the wrong argument count is an arity mismatch, reported
// against the call site, not against the callee's definition.
func TestAssembleCallArityMismatch(t *testing.T) {
	src := `
fn main ~0 $entry
: $entry :
  set @1 1;
  call @0 add @1;
  ret

fn add ~2 $entry
: $entry :
  addi @0 @1 @2;
  ret
`
	_, diags := Assemble(src)
	require.True(t, diags.HasErrors())
	require.NotEmpty(t, diags.ForPhase(PhaseSema))
}

// Multiple lex errors in the same source are batched together under
// PhaseLex instead of stopping at the first one.
func TestAssembleLexErrorsBatch(t *testing.T) {
	src := `
fn main ~0 $entry
: $entry :
  set @1 #;
  set @2 $;
  ret
`
	_, diags := Assemble(src)
	require.True(t, diags.HasErrors())
	require.GreaterOrEqual(t, len(diags.ForPhase(PhaseLex)), 2)
}

// A function whose declared entry block is not the textually-first block
// must still start executing at the entry block, not at whatever block
// happens to come first in source order.
func TestAssembleEntryBlockNotFirstInSourceOrder(t *testing.T) {
	src := `
fn main ~0 $entry
: $decoy :
  set @0 999;
  ret
: $entry :
  set @0 1;
  ret
`
	mod, diags := Assemble(src)
	require.False(t, diags.HasErrors())

	it := vm.New(mod, 0, nil)
	err := it.Run()
	require.ErrorIs(t, err, vm.ErrProgramFinished)
	require.Equal(t, int64(1), it.Register0().AsI64())
}
