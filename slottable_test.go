package bufslot

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/intuitionamiga/bufslot/frametest"
)

func expectPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic, got none")
		}
	}()
	fn()
}

// TestScenario1_GetUnusedExhaustion exhausts every slot and checks that
// requesting one more panics instead of returning a bogus index.
func TestScenario1_GetUnusedExhaustion(t *testing.T) {
	tbl := Init(Config{})
	if err := tbl.Setup(4, 1024, false); err != nil {
		t.Fatal(err)
	}
	for want := 0; want < 4; want++ {
		got, err := tbl.GetUnused()
		if err != nil {
			t.Fatalf("GetUnused() error: %v", err)
		}
		if got != want {
			t.Fatalf("GetUnused() = %d, want %d", got, want)
		}
	}
	expectPanic(t, func() { tbl.GetUnused() })
}

// TestScenario2_RoundTrip drives a slot through allocate, hardware write,
// reference hold, display enqueue, and release, checking the frame
// survives the round trip bit-for-bit.
func TestScenario2_RoundTrip(t *testing.T) {
	tbl := Init(Config{})
	must(t, tbl.Setup(4, 1024, false))

	i, err := tbl.GetUnused()
	must(t, err)
	if i != 0 {
		t.Fatalf("GetUnused() = %d, want 0", i)
	}

	f := frametest.NewFrame(640, 480, 1000)
	must(t, tbl.SetHWDst(i, f))
	must(t, tbl.SetDPBRef(i))
	must(t, tbl.ClrHWDst(i))
	must(t, tbl.SetDisplay(i))

	out, err := tbl.GetDisplay()
	must(t, err)
	got := out.(*frametest.Frame)
	if got.Width != f.Width || got.Height != f.Height || got.PTS != f.PTS {
		t.Fatalf("GetDisplay() frame = %+v, want bit-equal to %+v", got, f)
	}

	must(t, tbl.ClrDPBRef(i))

	tbl.mu.Lock()
	status := tbl.slots[i].status
	hasFrame := tbl.slots[i].frame != nil
	hasBuffer := tbl.slots[i].buffer != nil
	tbl.mu.Unlock()
	if !status.Releasable() {
		t.Fatalf("slot %d status %s not releasable", i, status)
	}
	if hasFrame || hasBuffer {
		t.Fatalf("slot %d still holds frame=%v buffer=%v after release", i, hasFrame, hasBuffer)
	}
}

// TestScenario3_HWRefBlocksRelease checks that, with IN_USE and HW_DST
// already clear and only DPB_REF outstanding, an added hardware reference
// still blocks release until it too is dropped.
func TestScenario3_HWRefBlocksRelease(t *testing.T) {
	tbl := Init(Config{})
	must(t, tbl.Setup(4, 1024, false))
	i, _ := tbl.GetUnused()
	must(t, tbl.SetHWDst(i, frametest.NewFrame(1, 1, 0)))
	must(t, tbl.SetDPBRef(i))
	must(t, tbl.ClrHWDst(i)) // clears HW_DST and IN_USE; DPB_REF alone keeps it unreleased

	must(t, tbl.IncHWRef(i))
	must(t, tbl.ClrDPBRef(i))

	tbl.mu.Lock()
	releasableWhileRefHeld := tbl.slots[i].status.Releasable()
	tbl.mu.Unlock()
	if releasableWhileRefHeld {
		t.Fatal("slot released while HW_REFCOUNT=1")
	}

	must(t, tbl.DecHWRef(i))
	tbl.mu.Lock()
	releasableAfter := tbl.slots[i].status.Releasable()
	tbl.mu.Unlock()
	if !releasableAfter {
		t.Fatal("slot not released after HW_REFCOUNT returned to 0 and IN_USE/DPB_REF both clear")
	}
}

// TestScenario4_DisplayOrdering checks that display order follows enqueue
// order, not slot index order.
func TestScenario4_DisplayOrdering(t *testing.T) {
	tbl := Init(Config{})
	must(t, tbl.Setup(4, 1024, false))

	for i := 0; i < 3; i++ {
		slot, err := tbl.GetUnused()
		must(t, err)
		if slot != i {
			t.Fatalf("GetUnused() = %d, want %d", slot, i)
		}
		must(t, tbl.SetHWDst(slot, frametest.NewFrame(1, 1, int64(slot))))
		// Hold DPB_REF across ClrHWDst so the release check does not free
		// the slot (and its frame) before it is displayed.
		must(t, tbl.SetDPBRef(slot))
		must(t, tbl.ClrHWDst(slot))
	}

	must(t, tbl.SetDisplay(2))
	must(t, tbl.SetDisplay(0))
	must(t, tbl.SetDisplay(1))

	for _, want := range []int64{2, 0, 1} {
		out, err := tbl.GetDisplay()
		must(t, err)
		got := out.(*frametest.Frame).PTS
		if got != want {
			t.Fatalf("GetDisplay() PTS = %d, want %d", got, want)
		}
	}
}

// TestScenario5_RedisplayBeforeReady checks that GetDisplay refuses a head
// slot still being written by hardware, then succeeds once it clears.
func TestScenario5_RedisplayBeforeReady(t *testing.T) {
	tbl := Init(Config{})
	must(t, tbl.Setup(4, 1024, false))
	i, _ := tbl.GetUnused()

	must(t, tbl.SetHWDst(i, frametest.NewFrame(1, 1, 0)))
	must(t, tbl.SetDisplay(i))

	if _, err := tbl.GetDisplay(); !errors.Is(err, ErrHeadNotReady) {
		t.Fatalf("GetDisplay() error = %v, want ErrHeadNotReady", err)
	}

	must(t, tbl.ClrHWDst(i))
	if _, err := tbl.GetDisplay(); err != nil {
		t.Fatalf("GetDisplay() after ClrHWDst error = %v, want nil", err)
	}
}

// TestScenario6_ReconfigureGrowWithoutChange grows the slot count in place
// (changed=false) and checks existing slot state survives untouched.
func TestScenario6_ReconfigureGrowWithoutChange(t *testing.T) {
	tbl := Init(Config{})
	must(t, tbl.Setup(4, 1024, false))
	for i := 0; i < 4; i++ {
		slot, err := tbl.GetUnused()
		must(t, err)
		if slot != i {
			t.Fatalf("GetUnused() = %d, want %d", slot, i)
		}
	}
	must(t, tbl.Setup(6, 1024, false))

	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	if len(tbl.slots) != 6 {
		t.Fatalf("slot count = %d, want 6", len(tbl.slots))
	}
	for i := 0; i < 4; i++ {
		if !tbl.slots[i].status.InUse() {
			t.Fatalf("slot %d lost its IN_USE status across grow", i)
		}
	}
	for i := 4; i < 6; i++ {
		if tbl.slots[i].status != 0 {
			t.Fatalf("new slot %d status = %s, want zero", i, tbl.slots[i].status)
		}
	}
}

func TestReconfiguration_FullLifecycle(t *testing.T) {
	tbl := Init(Config{Debug: map[DebugCategory]bool{DebugOps: true}})
	must(t, tbl.Setup(2, 1024, false))
	must(t, tbl.Setup(4, 2048, true))

	changed, err := tbl.IsChanged()
	must(t, err)
	if !changed {
		t.Fatal("IsChanged() = false, want true")
	}

	// Existing slots continue to work while reconfiguration is pending.
	i, err := tbl.GetUnused()
	must(t, err)
	if i != 0 {
		t.Fatalf("GetUnused() = %d, want 0", i)
	}
	must(t, tbl.ClrHWDst(i))

	size, err := tbl.GetSize()
	must(t, err)
	if size != 1024 {
		t.Fatalf("GetSize() = %d, want 1024 (pending size must not apply yet)", size)
	}

	must(t, tbl.Ready())

	size, err = tbl.GetSize()
	must(t, err)
	if size != 2048 {
		t.Fatalf("GetSize() after Ready = %d, want 2048", size)
	}
	changed, err = tbl.IsChanged()
	must(t, err)
	if changed {
		t.Fatal("IsChanged() after Ready = true, want false")
	}
	tbl.mu.Lock()
	logLen := tbl.log.len
	tbl.mu.Unlock()
	if logLen != 0 {
		t.Fatalf("op log len after Ready = %d, want 0", logLen)
	}
}

func TestReady_FatalWhenNoPendingChange(t *testing.T) {
	tbl := Init(Config{})
	must(t, tbl.Setup(4, 1024, false))
	expectPanic(t, func() { tbl.Ready() })
}

func TestSetHWDst_FatalWhenNotInUse(t *testing.T) {
	tbl := Init(Config{})
	must(t, tbl.Setup(1, 1024, false))
	expectPanic(t, func() { tbl.SetHWDst(0, frametest.NewFrame(1, 1, 0)) })
}

func TestIndexOutOfRange_Fatal(t *testing.T) {
	tbl := Init(Config{})
	must(t, tbl.Setup(1, 1024, false))
	expectPanic(t, func() { tbl.SetDPBRef(5) })
}

func TestDeinit_FatalWithLiveSlot(t *testing.T) {
	tbl := Init(Config{})
	must(t, tbl.Setup(1, 1024, false))
	tbl.GetUnused()
	expectPanic(t, func() { tbl.Deinit() })
}

func TestDeinit_SucceedsWhenClean(t *testing.T) {
	tbl := Init(Config{})
	must(t, tbl.Setup(1, 1024, false))
	if err := tbl.Deinit(); err != nil {
		t.Fatalf("Deinit() error = %v", err)
	}
}

func TestNullTable_ReturnsErrNullInput(t *testing.T) {
	var tbl *Table
	if err := tbl.Setup(1, 1, false); !errors.Is(err, ErrNullInput) {
		t.Fatalf("Setup on nil table error = %v, want ErrNullInput", err)
	}
	if _, err := tbl.GetUnused(); !errors.Is(err, ErrNullInput) {
		t.Fatalf("GetUnused on nil table error = %v, want ErrNullInput", err)
	}
	if _, err := tbl.GetSize(); !errors.Is(err, ErrNullInput) {
		t.Fatalf("GetSize on nil table error = %v, want ErrNullInput", err)
	}
}

// TestIdempotence_Boundaries checks that repeating SET_DPB_REF is
// idempotent at the bit level, while repeating inc_hw_ref is not.
func TestIdempotence_Boundaries(t *testing.T) {
	tbl := Init(Config{})
	must(t, tbl.Setup(1, 1024, false))
	i, _ := tbl.GetUnused()

	must(t, tbl.SetDPBRef(i))
	must(t, tbl.SetDPBRef(i))
	tbl.mu.Lock()
	dpb := tbl.slots[i].status.DPBRef()
	tbl.mu.Unlock()
	if !dpb {
		t.Fatal("DPB_REF should be set")
	}

	must(t, tbl.IncHWRef(i))
	must(t, tbl.IncHWRef(i))
	tbl.mu.Lock()
	ref := tbl.slots[i].status.HWRefCount()
	tbl.mu.Unlock()
	if ref != 2 {
		t.Fatalf("HWRefCount = %d after two IncHWRef, want 2 (not idempotent)", ref)
	}
}

// TestReleaseExactlyOnce_FrameDestroyedOnce holds DPB_REF across ClrHWDst
// so the release check running as ClrHWDst's after-action does not destroy
// the frame before SetDisplay/GetDisplay ever run (DISPLAY and DPB_REF are
// both release-mask bits; at least one must be held for the slot to
// survive clr_hw_dst).
func TestReleaseExactlyOnce_FrameDestroyedOnce(t *testing.T) {
	tbl := Init(Config{})
	must(t, tbl.Setup(1, 1024, false))
	i, _ := tbl.GetUnused()

	f := frametest.NewFrame(1, 1, 0)
	must(t, tbl.SetHWDst(i, f))
	must(t, tbl.SetDPBRef(i))
	must(t, tbl.ClrHWDst(i))
	must(t, tbl.SetDisplay(i))

	out, err := tbl.GetDisplay()
	must(t, err)
	gotFrame := out.(*frametest.Frame)

	tbl.mu.Lock()
	attachedBeforeFinalRelease := tbl.slots[i].frame
	tbl.mu.Unlock()
	if af, ok := attachedBeforeFinalRelease.(*frametest.Frame); !ok || af.Destroyed() {
		t.Fatal("frame must still be attached and undestroyed while DPB_REF is held")
	}

	must(t, tbl.ClrDPBRef(i))

	tbl.mu.Lock()
	attachedAfter := tbl.slots[i].frame
	tbl.mu.Unlock()
	if attachedAfter != nil {
		t.Fatal("frame should be detached from the slot once released")
	}
	if gotFrame.Destroyed() {
		t.Fatal("the returned clone must not itself be destroyed by release")
	}
}

func TestReleaseExactlyOnce_BufferDecRefCountMatchesAttach(t *testing.T) {
	tbl := Init(Config{})
	must(t, tbl.Setup(1, 1024, false))
	i, _ := tbl.GetUnused()

	buf := frametest.NewBuf(1)
	must(t, tbl.SetBuffer(i, buf))
	if buf.RefCount() != 1 {
		t.Fatalf("RefCount = %d after one SetBuffer, want 1", buf.RefCount())
	}
	must(t, tbl.ClrHWDst(i))
	if buf.RefCount() != 0 {
		t.Fatalf("RefCount = %d after release, want 0", buf.RefCount())
	}
}

// TestConcurrentDecoderHardwareDisplay exercises a three-thread
// decoder/hardware/display model under -race, grounded on
// audio_chip_race_test.go's writer/reader stress pattern ("the race
// detector is the oracle").
func TestConcurrentDecoderHardwareDisplay(t *testing.T) {
	tbl := Init(Config{})
	must(t, tbl.Setup(8, 1024, false))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	var mu sync.Mutex // guards the slice of in-flight slot indices below
	var inFlight []int

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			// GetUnused is fatal when no slot is free, so wait until the
			// hardware and display goroutines have released one. Only this
			// goroutine takes a slot out of the free state.
			free := false
			for k := 0; k < tbl.SlotCount(); k++ {
				if s, _ := tbl.SlotStatus(k); s == 0 {
					free = true
					break
				}
			}
			if !free {
				continue
			}
			i, err := tbl.GetUnused()
			if err != nil {
				return
			}
			f := frametest.NewFrame(1, 1, int64(i))
			tbl.SetHWDst(i, f)
			tbl.IncHWRef(i)
			tbl.ClrHWDst(i)
			// Enqueue for display before handing the slot to the hardware
			// goroutine: its DecHWRef must not release the slot first.
			tbl.SetDisplay(i)
			mu.Lock()
			inFlight = append(inFlight, i)
			mu.Unlock()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			mu.Lock()
			if len(inFlight) > 0 {
				i := inFlight[0]
				inFlight = inFlight[1:]
				mu.Unlock()
				tbl.DecHWRef(i)
			} else {
				mu.Unlock()
			}
			tbl.GetHWDst()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			tbl.GetDisplay()
		}
	}()

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
