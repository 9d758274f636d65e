//go:build anatase_debug

package vm

// Built with -tags anatase_debug: register bounds and value-tag assertions
// run on every access. Release builds (the default) compile these checks
// out entirely, trading the safety net for dispatch speed (spec.md §7,
// "Programmer errors undetected in release builds").
const debugBuild = true
