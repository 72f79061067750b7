// Command slotdump runs a small simulated decode/display workload through a
// bufslot.Table and renders its diagnostic dump to the terminal. The header
// line reports the current window width; the dump lines themselves are not
// wrapped or truncated to it. Grounded on terminal_host.go's term.MakeRaw/
// term.Restore pairing for terminal control, simplified here since slotdump
// only needs to query size (term.GetSize), not take over stdin.
//
// With --copy, the rendered dump is also pushed to the system clipboard,
// grounded on video_backend_ebiten.go's handleClipboardPaste — the same
// clipboard.Init/clipboard call pair, adapted from reading the clipboard
// (paste) to writing it (copy).
package main

import (
	"flag"
	"fmt"
	"os"

	"golang.design/x/clipboard"
	"golang.org/x/term"

	"github.com/intuitionamiga/bufslot"
	"github.com/intuitionamiga/bufslot/frametest"
)

func main() {
	slots := flag.Int("slots", 4, "number of slots to set up")
	size := flag.Int64("size", 1920*1080, "slot buffer size in bytes")
	copyFlag := flag.Bool("copy", false, "copy the rendered dump to the system clipboard")
	flag.Parse()

	cfg := bufslot.ConfigFromEnv()
	tbl := bufslot.Init(cfg)
	if err := tbl.Setup(*slots, *size, false); err != nil {
		fmt.Fprintf(os.Stderr, "slotdump: setup: %v\n", err)
		os.Exit(1)
	}

	runWorkload(tbl)

	width := terminalWidth()
	out := render(tbl, width)
	fmt.Print(out)

	if *copyFlag {
		if err := copyToClipboard(out); err != nil {
			fmt.Fprintf(os.Stderr, "slotdump: clipboard: %v\n", err)
		}
	}
}

// runWorkload cycles slot 0 through a decode/display round trip so the dump
// has something more interesting to show than an all-zero table.
func runWorkload(tbl *bufslot.Table) {
	idx, err := tbl.GetUnused()
	if err != nil {
		return
	}
	frame := frametest.NewFrame(1920, 1080, 0)
	if err := tbl.SetHWDst(idx, frame); err != nil {
		return
	}
	_ = tbl.SetDPBRef(idx)
	_ = tbl.ClrHWDst(idx)
	_ = tbl.SetDisplay(idx)
	_, _ = tbl.GetDisplay()
	_ = tbl.ClrDPBRef(idx)
}

func render(tbl *bufslot.Table, width int) string {
	header := fmt.Sprintf("bufslot diagnostic dump (%d slots, terminal width %d)\n", tbl.SlotCount(), width)
	return header + tbl.Dump()
}

// terminalWidth returns the current stdout width, falling back to 80
// columns when stdout isn't a terminal (e.g. piped output).
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 80
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

func copyToClipboard(text string) error {
	if err := clipboard.Init(); err != nil {
		return fmt.Errorf("clipboard unavailable: %w", err)
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}
