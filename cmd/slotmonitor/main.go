// Command slotmonitor renders a live visual grid of bufslot.Table slot
// state: one tile per slot, colored by status. Grounded on
// video_backend_ebiten.go's Update/Draw/Layout/WritePixels structure,
// simplified to a single fixed-size offscreen image refreshed every Draw
// instead of a mutex-guarded shared frame buffer (slotmonitor has no
// external frame source to synchronize against).
//
// A background goroutine drives a simulated decoder/hardware/display
// workload against the table so the grid has something to show, in the
// three-actor shape used by the decoder/hardware/display race test this
// package's sibling tests are grounded on. Escape quits, grounded on the
// same inpututil.IsKeyJustPressed polling video_backend_ebiten.go uses for
// its own hotkeys (there: F11 for fullscreen).
package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/intuitionamiga/bufslot"
	"github.com/intuitionamiga/bufslot/frametest"
)

const (
	tileSize = 64
	tileGap  = 4
)

// statusColor maps a slot's release-mask bits to an RGBA tile color. Order
// matters: HW_DST (being written) takes priority over DISPLAY, which takes
// priority over DPB_REF-only, so a slot mid-transition shows its most
// "active" state rather than an arbitrary one.
func statusColor(s bufslot.Status) (r, g, b, a byte) {
	switch {
	case s.HWDst():
		return 220, 60, 60, 255 // red: hardware currently writing
	case s.Display():
		return 60, 160, 220, 255 // blue: queued or showing on display
	case s.DPBRef():
		return 220, 180, 40, 255 // amber: held as a reference frame
	case s.InUse():
		return 140, 140, 140, 255 // gray: allocated, no role yet
	default:
		return 30, 30, 30, 255 // near-black: free
	}
}

type monitor struct {
	tbl    *bufslot.Table
	image  *ebiten.Image
	pixels []byte
	cols   int
	rows   int
	stop   chan struct{}
}

func newMonitor(tbl *bufslot.Table, slots int) *monitor {
	cols := 4
	if slots < cols {
		cols = slots
	}
	if cols == 0 {
		cols = 1
	}
	rows := (slots + cols - 1) / cols
	w := cols*(tileSize+tileGap) + tileGap
	h := rows*(tileSize+tileGap) + tileGap
	return &monitor{
		tbl:    tbl,
		image:  ebiten.NewImage(w, h),
		pixels: make([]byte, w*h*4),
		cols:   cols,
		rows:   rows,
		stop:   make(chan struct{}),
	}
}

func (m *monitor) Update() error {
	if ebiten.IsWindowBeingClosed() || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		close(m.stop)
		return ebiten.Termination
	}
	return nil
}

func (m *monitor) Draw(screen *ebiten.Image) {
	w := m.cols*(tileSize+tileGap) + tileGap
	for i := range m.pixels {
		m.pixels[i] = 0
	}
	n := m.tbl.SlotCount()
	for i := 0; i < n; i++ {
		status, err := m.tbl.SlotStatus(i)
		if err != nil {
			continue
		}
		r, g, b, a := statusColor(status)
		col := i % m.cols
		row := i / m.cols
		ox := col*(tileSize+tileGap) + tileGap
		oy := row*(tileSize+tileGap) + tileGap
		for y := 0; y < tileSize; y++ {
			base := ((oy+y)*w + ox) * 4
			for x := 0; x < tileSize; x++ {
				off := base + x*4
				m.pixels[off] = r
				m.pixels[off+1] = g
				m.pixels[off+2] = b
				m.pixels[off+3] = a
			}
		}
	}
	m.image.WritePixels(m.pixels)
	screen.DrawImage(m.image, nil)
}

func (m *monitor) Layout(_, _ int) (int, int) {
	return m.cols*(tileSize+tileGap) + tileGap, m.rows*(tileSize+tileGap) + tileGap
}

// runWorkload continuously cycles slots through allocate/decode/display/
// release, standing in for the decoder and display consumer this table
// would otherwise sit between.
func runWorkload(tbl *bufslot.Table, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		idx, err := tbl.GetUnused()
		if err != nil {
			time.Sleep(20 * time.Millisecond)
			continue
		}
		frame := frametest.NewFrame(1920, 1080, 0)
		if err := tbl.SetHWDst(idx, frame); err != nil {
			continue
		}
		time.Sleep(time.Duration(40+rand.Intn(80)) * time.Millisecond)
		_ = tbl.SetDPBRef(idx)
		_ = tbl.ClrHWDst(idx)
		_ = tbl.SetDisplay(idx)
		time.Sleep(time.Duration(80+rand.Intn(120)) * time.Millisecond)
		_, _ = tbl.GetDisplay()
		_ = tbl.ClrDPBRef(idx)
	}
}

func main() {
	slots := 8
	cfg := bufslot.ConfigFromEnv()
	tbl := bufslot.Init(cfg)
	if err := tbl.Setup(slots, 1920*1080, false); err != nil {
		fmt.Fprintf(os.Stderr, "slotmonitor: setup: %v\n", err)
		os.Exit(1)
	}

	m := newMonitor(tbl, slots)
	go runWorkload(tbl, m.stop)

	ebiten.SetWindowSize(m.Layout(0, 0))
	ebiten.SetWindowTitle("bufslot monitor")
	ebiten.SetWindowResizable(true)
	if err := ebiten.RunGame(m); err != nil {
		fmt.Fprintf(os.Stderr, "slotmonitor: %v\n", err)
		os.Exit(1)
	}
}
