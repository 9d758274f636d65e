// Package asm is the assembler front end and codegen back end: lexer,
// parser, semantic checks, and the two-pass translation from parsed
// functions/blocks to a loadable module.Module (spec.md §4.6). Diagnostic
// collection here is grounded in the teacher pack's ARM assembler
// (lookbusy1344-arm_emulator/parser/errors.go: a Position, a typed Error,
// and a list that batches them), adapted from its single flat ErrorList to
// one batched by assembly phase so a caller can report "N lex errors"
// before moving on to parse errors (spec.md §7).
package asm

import (
	"fmt"
	"strings"
)

// Phase identifies which stage of assembly produced a Diagnostic.
type Phase int

const (
	PhaseLex Phase = iota
	PhaseParse
	PhaseSema
	PhaseCodegen
)

func (p Phase) String() string {
	switch p {
	case PhaseLex:
		return "lex"
	case PhaseParse:
		return "parse"
	case PhaseSema:
		return "sema"
	case PhaseCodegen:
		return "codegen"
	default:
		return "unknown"
	}
}

// Position locates a Diagnostic within the source text. The zero value
// means "no specific location" (used by whole-program diagnostics such as
// a missing main function).
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	if p.Line == 0 {
		return "-"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Diagnostic is one assembler-reported problem.
type Diagnostic struct {
	Phase   Phase
	Pos     Position
	Message string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s:%s: %s", d.Phase, d.Pos, d.Message)
}

// Diagnostics batches every problem found, grouped by the phase that found
// it (spec.md §7 "collects errors per phase, returns them as a batch").
type Diagnostics struct {
	items []*Diagnostic
}

func (d *Diagnostics) Add(phase Phase, pos Position, format string, args ...any) {
	d.items = append(d.items, &Diagnostic{Phase: phase, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

func (d *Diagnostics) HasErrors() bool { return len(d.items) > 0 }

func (d *Diagnostics) Len() int { return len(d.items) }

// ForPhase returns every diagnostic raised during the given phase, in the
// order they were recorded.
func (d *Diagnostics) ForPhase(phase Phase) []*Diagnostic {
	var out []*Diagnostic
	for _, item := range d.items {
		if item.Phase == phase {
			out = append(out, item)
		}
	}
	return out
}

// Error implements the error interface, printing one numbered block per
// phase that reported anything.
func (d *Diagnostics) Error() string {
	phases := []Phase{PhaseLex, PhaseParse, PhaseSema, PhaseCodegen}

	var sb strings.Builder
	for _, phase := range phases {
		items := d.ForPhase(phase)
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%d %s error(s):\n", len(items), phase)
		for _, it := range items {
			fmt.Fprintf(&sb, "  %s\n", it.Error())
		}
	}
	return sb.String()
}
