// Package watchtui is the optional interactive front end for the VM's watch
// facility (spec.md §5). It is grounded in
// lookbusy1344-arm_emulator/debugger/tui.go's tcell/tview layout — reduced
// to the single register table this facility needs instead of a full
// debugger's source/memory/stack panel set.
package watchtui

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"golang.org/x/term"

	"anatase/vm"
)

// IsInteractive reports whether out is a terminal the TUI can attach to.
// Redirected stdout (files, pipes, CI logs) is not, and callers should fall
// back to the plain vm.RunWatch ticker in that case.
func IsInteractive(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Run launches a live-updating register table polling it at cfg.Period,
// until ctx is cancelled or the user presses q / Ctrl-C. It reads registers
// through the same bounds-checked Watch accessor the plain ticker uses, so
// it carries the same torn-read caveat under concurrent execution.
func Run(ctx context.Context, it *vm.Interpreter, cfg vm.WatchConfig) error {
	if len(cfg.Registers) == 0 || cfg.Period <= 0 {
		return nil
	}

	regs := append([]byte(nil), cfg.Registers...)
	sort.Slice(regs, func(i, j int) bool { return regs[i] < regs[j] })

	app := tview.NewApplication()
	table := tview.NewTable().SetBorders(false)
	table.SetBorder(true).SetTitle(" anatase watch (q to quit) ")
	table.SetCell(0, 0, tview.NewTableCell("register").SetSelectable(false).SetTextColor(tcell.ColorYellow))
	table.SetCell(0, 1, tview.NewTableCell("value").SetSelectable(false).SetTextColor(tcell.ColorYellow))

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC || event.Rune() == 'q' {
			app.Stop()
			return nil
		}
		return event
	})

	refresh := func() {
		snap := it.Watch(regs)
		for i, r := range regs {
			text := "-"
			if v, ok := snap[r]; ok {
				text = v.String()
			}
			table.SetCell(i+1, 0, tview.NewTableCell(fmt.Sprintf("r%d", r)))
			table.SetCell(i+1, 1, tview.NewTableCell(text))
		}
		app.Draw()
	}

	ticker := time.NewTicker(cfg.Period)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				app.Stop()
				return
			case <-ticker.C:
				refresh()
			}
		}
	}()

	refresh()
	return app.SetRoot(table, true).Run()
}
