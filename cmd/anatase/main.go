// Command anatase is the VM's CLI entry point: it loads a compiled module
// and runs it, optionally under an interactive single-step debug REPL or
// with a live register watch. Built with github.com/spf13/cobra (grounded
// in oisee-z80-optimizer/cmd/z80opt/main.go's subcommand+flags layout)
// instead of the teacher's bare flag.Bool.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"anatase/internal/config"
	"anatase/internal/watchtui"
	"anatase/module"
	"anatase/vm"
)

func main() {
	var (
		debug        bool
		watchRegFlag string
		watchPeriod  time.Duration
	)

	rootCmd := &cobra.Command{
		Use:   "anatase",
		Short: "anatase virtual machine",
	}

	runCmd := &cobra.Command{
		Use:   "run [file.anb]",
		Short: "Load and execute a compiled module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "test.anb"
			if len(args) == 1 {
				path = args[0]
			}
			return runModule(path, debug, watchRegFlag, watchPeriod)
		},
	}
	runCmd.Flags().BoolVar(&debug, "debug", false, "drop into an interactive single-step REPL")
	runCmd.Flags().StringVar(&watchRegFlag, "watch-reg", os.Getenv("ANATASE_WATCH_REG"),
		"comma-separated register indices to poll (falls back to $ANATASE_WATCH_REG)")
	runCmd.Flags().DurationVar(&watchPeriod, "watch-period", envWatchPeriod(),
		"watch poll cadence (falls back to $ANATASE_WATCH_PERIOD)")

	rootCmd.AddCommand(runCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envWatchPeriod() time.Duration {
	s := os.Getenv("ANATASE_WATCH_PERIOD")
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

func runModule(path string, debug bool, watchRegFlag string, watchPeriod time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("anatase: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("anatase: reading %s: %w", path, err)
	}
	mod, err := module.Decode(data)
	if err != nil {
		return fmt.Errorf("anatase: decoding %s: %w", path, err)
	}

	it := vm.New(mod, cfg.VM.StackCapacity, os.Stdout)

	watchRegs := parseWatchRegisters(watchRegFlag, cfg)
	if watchPeriod <= 0 {
		watchPeriod = cfg.WatchPeriod()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startWatch(ctx, it, vm.WatchConfig{Registers: watchRegs, Period: watchPeriod, Out: os.Stdout})

	start := time.Now()
	var runErr error
	if debug {
		runErr = debugREPL(it)
	} else {
		runErr = it.Run()
	}
	elapsed := time.Since(start)

	if runErr != nil && runErr != vm.ErrProgramFinished {
		fmt.Fprintf(os.Stderr, "anatase: execution halted: %v\n", runErr)
	}
	fmt.Printf("finished in %s, r0 = %s\n", elapsed, it.Register0())
	return nil
}

// startWatch launches the interactive tview table when stdout is a
// terminal and registers were requested, otherwise the plain ticker; it is
// a no-op when no registers were configured at all.
func startWatch(ctx context.Context, it *vm.Interpreter, cfg vm.WatchConfig) {
	if len(cfg.Registers) == 0 || cfg.Period <= 0 {
		return
	}
	if watchtui.IsInteractive(cfg.Out) {
		go func() {
			_ = watchtui.Run(ctx, it, cfg)
		}()
		return
	}
	go vm.RunWatch(ctx, it, cfg)
}

func parseWatchRegisters(flagValue string, cfg *config.Config) []byte {
	if flagValue == "" {
		return cfg.WatchRegisters()
	}
	var out []byte
	for _, part := range strings.Split(flagValue, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			continue
		}
		out = append(out, byte(n))
	}
	return out
}

// debugREPL runs the interpreter one instruction at a time, reading
// commands from stdin: "s"/"step" to execute one instruction, "c"/
// "continue" to run to completion, "state" to dump the full frame snapshot
// with go-spew, and "q"/"quit" to stop early. It replaces the teacher's
// PrintCurrentState REPL with a command loop, keeping the same direct,
// unstructured fmt.Println style for a developer console rather than a
// service log.
func debugREPL(it *vm.Interpreter) error {
	fmt.Println("anatase debug REPL — commands: step (s), continue (c), state, quit (q)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("(anatase) ip=%d> ", it.IP())
		if !scanner.Scan() {
			return it.Err()
		}
		switch strings.TrimSpace(scanner.Text()) {
		case "s", "step":
			if halted := it.Step(); halted {
				return it.Err()
			}
		case "c", "continue":
			return it.Run()
		case "state":
			spew.Dump(it)
		case "q", "quit":
			return it.Err()
		default:
			fmt.Println("unrecognized command")
		}
	}
}
