package asm

import "anatase/module"

// Assemble runs the full front end over src and returns the loadable module
// it compiles to. It short-circuits phase by phase — parsing never runs over
// a lex that already failed, sema never runs over a malformed parse, and
// codegen never runs over a program sema rejected — so a caller only ever
// sees diagnostics from the earliest phase that actually broke (spec.md §7).
// The returned Diagnostics is always non-nil; check HasErrors before trusting
// the Module.
func Assemble(src string) (module.Module, *Diagnostics) {
	diags := &Diagnostics{}

	toks := lexAll(src, diags)
	if diags.HasErrors() {
		return module.Module{}, diags
	}

	prog := Parse(toks, diags)
	if diags.HasErrors() {
		return module.Module{}, diags
	}

	Analyze(prog, diags)
	if diags.HasErrors() {
		return module.Module{}, diags
	}

	mod := Codegen(prog, diags)
	if diags.HasErrors() {
		return module.Module{}, diags
	}

	return mod, diags
}
