// Command anatase-asm is the assembler CLI: it reads anatase source text,
// runs it through the lex/parse/sema/codegen pipeline, and writes the
// resulting module container. Built with github.com/spf13/cobra, matching
// cmd/anatase's layout.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"anatase/asm"
	"anatase/module"
)

func main() {
	var out string

	rootCmd := &cobra.Command{
		Use:   "anatase-asm",
		Short: "anatase assembler",
	}

	buildCmd := &cobra.Command{
		Use:   "build [file.an]",
		Short: "Assemble source text into a loadable module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "test.an"
			if len(args) == 1 {
				path = args[0]
			}
			if out == "" {
				out = defaultOutputPath(path)
			}
			return build(path, out)
		},
	}
	buildCmd.Flags().StringVarP(&out, "output", "o", "", "output module path (defaults to the input's .anb sibling)")

	rootCmd.AddCommand(buildCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func defaultOutputPath(sourcePath string) string {
	if strings.HasSuffix(sourcePath, ".an") {
		return strings.TrimSuffix(sourcePath, ".an") + ".anb"
	}
	return sourcePath + ".anb"
}

func build(sourcePath, outPath string) error {
	src, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("anatase-asm: reading %s: %w", sourcePath, err)
	}

	mod, diags := asm.Assemble(string(src))
	if diags.HasErrors() {
		fmt.Fprint(os.Stderr, diags.Error())
		return fmt.Errorf("anatase-asm: %d assembly error(s)", diags.Len())
	}

	data, err := module.Encode(mod)
	if err != nil {
		return fmt.Errorf("anatase-asm: encoding module: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("anatase-asm: writing %s: %w", outPath, err)
	}

	fmt.Printf("wrote %s (%d byte(s) of code, %d constant(s))\n", outPath, len(mod.Code), len(mod.Consts.Values))
	return nil
}
