package vm

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"
)

// WatchConfig controls the diagnostic watch facility (spec.md §5): a single
// best-effort goroutine that polls a fixed set of registers at a fixed
// period and reports what it saw. It is a read-only side channel, not part
// of the VM's execution semantics — it never synchronizes with the
// dispatch loop and accepts a torn read of a register that Step is
// updating at the same instant.
type WatchConfig struct {
	Registers []byte
	Period    time.Duration
	Out       io.Writer
}

// RunWatch polls it at cfg.Period until ctx is cancelled, writing one line
// per tick listing the watched registers in ascending order. Grounded in
// the teacher repository's devices.go goroutine/channel style (a free-
// running ticker goroutine feeding a plain io.Writer), adapted here from a
// simulated timer device to a diagnostic register poll.
func RunWatch(ctx context.Context, it *Interpreter, cfg WatchConfig) {
	if len(cfg.Registers) == 0 || cfg.Period <= 0 {
		return
	}
	out := cfg.Out
	if out == nil {
		out = io.Discard
	}

	regs := append([]byte(nil), cfg.Registers...)
	sort.Slice(regs, func(i, j int) bool { return regs[i] < regs[j] })

	ticker := time.NewTicker(cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := it.Watch(regs)
			fmt.Fprintf(out, "watch:")
			for _, r := range regs {
				v, ok := snap[r]
				if !ok {
					continue
				}
				fmt.Fprintf(out, " r%d=%s", r, v.String())
			}
			fmt.Fprintln(out)
		}
	}
}
