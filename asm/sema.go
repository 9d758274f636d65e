package asm

import "anatase/isa"

// Analyze runs the semantic checks spec.md §7 names under the "semantic
// errors" heading: a missing or duplicated main, an entry block that isn't
// among a function's own blocks, calls to undefined functions, arity
// mismatches, and malformed operand lists for the operator each mnemonic
// resolved to during parsing. Errors are batched under PhaseSema exactly
// like the lex and parse phases before it.
func Analyze(prog *Program, diags *Diagnostics) {
	funcs := make(map[string]*Function, len(prog.Functions))
	var sawMain bool

	for _, fn := range prog.Functions {
		if fn.Name == "main" {
			sawMain = true
		}
		if _, dup := funcs[fn.Name]; dup {
			diags.Add(PhaseSema, fn.Pos, "duplicate function %q", fn.Name)
			continue
		}
		funcs[fn.Name] = fn
	}
	if !sawMain {
		diags.Add(PhaseSema, Position{}, "missing 'main' function")
	}

	for _, fn := range prog.Functions {
		analyzeFunction(fn, funcs, diags)
	}
}

func analyzeFunction(fn *Function, funcs map[string]*Function, diags *Diagnostics) {
	labels := make(map[string]bool, len(fn.Blocks))
	for _, b := range fn.Blocks {
		if labels[b.Label] {
			diags.Add(PhaseSema, b.Pos, "duplicate block label %q in function %q", b.Label, fn.Name)
			continue
		}
		labels[b.Label] = true
	}
	if !labels[fn.Entry] {
		diags.Add(PhaseSema, fn.Pos, "entry block %q is not defined in function %q", fn.Entry, fn.Name)
	}

	for _, b := range fn.Blocks {
		for _, op := range b.Ops {
			analyzeOp(fn, op, labels, funcs, diags)
		}
	}
}

func analyzeOp(fn *Function, op *Op, labels map[string]bool, funcs map[string]*Function, diags *Diagnostics) {
	if !isa.Defined(op.Opcode) {
		// Already reported as a parse-phase "unknown operator"; nothing
		// more to check about its (unresolved) operand shape.
		return
	}

	if isa.IsCall(op.Opcode) {
		analyzeCall(fn, op, funcs, diags)
		return
	}

	shape, _ := isa.Shape(op.Opcode)
	wantExtra := len(shape.Extra)
	wantRegs := shape.Registers

	for i, operand := range op.Operands {
		if i < wantRegs {
			if operand.Kind != OperandRegister {
				diags.Add(PhaseSema, operand.Pos, "%s expects a register operand in position %d", op.Mnemonic, i+1)
			}
			continue
		}
		extraIdx := i - wantRegs
		if extraIdx >= wantExtra {
			diags.Add(PhaseSema, operand.Pos, "%s takes at most %d operand(s)", op.Mnemonic, wantRegs+wantExtra)
			continue
		}
		switch shape.Extra[extraIdx] {
		case isa.ConstIndex:
			if operand.Kind != OperandLiteral {
				diags.Add(PhaseSema, operand.Pos, "%s expects a literal constant", op.Mnemonic)
			}
		case isa.Offset:
			if operand.Kind != OperandLabelRef {
				diags.Add(PhaseSema, operand.Pos, "%s expects a label operand", op.Mnemonic)
				break
			}
			if !labels[operand.Label] {
				diags.Add(PhaseSema, operand.Pos, "undefined label %q in function %q", operand.Label, fn.Name)
			}
		case isa.Count:
			if operand.Kind != OperandLiteral || operand.Literal.Kind != LitInt {
				diags.Add(PhaseSema, operand.Pos, "%s expects an integer count", op.Mnemonic)
			} else if operand.Literal.I < 0 || operand.Literal.I > 255 {
				diags.Add(PhaseSema, operand.Pos, "%s count %d out of byte range", op.Mnemonic, operand.Literal.I)
			}
		}
	}

	if len(op.Operands) < wantRegs+wantExtra {
		diags.Add(PhaseSema, op.Pos, "%s expects %d operand(s), got %d", op.Mnemonic, wantRegs+wantExtra, len(op.Operands))
	}
}

func analyzeCall(fn *Function, op *Op, funcs map[string]*Function, diags *Diagnostics) {
	if len(op.Operands) < 2 {
		diags.Add(PhaseSema, op.Pos, "call expects a destination register and a target function")
		return
	}
	dst, target := op.Operands[0], op.Operands[1]
	if dst.Kind != OperandRegister {
		diags.Add(PhaseSema, dst.Pos, "call expects a destination register")
	}
	if target.Kind != OperandFuncRef {
		diags.Add(PhaseSema, target.Pos, "call expects a function name")
		return
	}

	callee, ok := funcs[target.Func]
	if !ok {
		diags.Add(PhaseSema, target.Pos, "call to undefined function %q", target.Func)
		return
	}

	argRegs := op.Operands[2:]
	for _, a := range argRegs {
		if a.Kind != OperandRegister {
			diags.Add(PhaseSema, a.Pos, "call argument must be a register")
		}
	}
	if len(argRegs) != callee.Argc {
		diags.Add(PhaseSema, op.Pos, "call to %q passes %d argument(s), expected %d", target.Func, len(argRegs), callee.Argc)
	}
	if len(argRegs) > 255 {
		diags.Add(PhaseCodegen, op.Pos, "call to %q has %d arguments, exceeding the 255-argument encoding limit", target.Func, len(argRegs))
	}
}
