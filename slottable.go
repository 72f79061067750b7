// slottable.go - the public façade. Grounded on CoprocessorManager in
// coprocessor_manager.go: a single mutex guarding a fixed-size array of
// entries plus auxiliary bookkeeping (ticket/completion state there,
// display-queue/op-log/reconfiguration state here), exposing a set of
// request-response methods that each take the lock for their full body.

package bufslot

import (
	"log"
	"sync"
	"sync/atomic"
)

// ChangeReason narrows the source's info_change reason codes (SIZE_CHANGE,
// COMPRESS_MODE_CHANGE, SCALE_MODE_CHANGE, ...) to what this module
// actually models: only frame size.
type ChangeReason int

const (
	ChangeReasonNone ChangeReason = iota
	ChangeReasonSize
	ChangeReasonOther
)

// Stats are read-only counters, generalizing mpp_buf_slot.cpp's
// decode_count/display_count/error_count trio.
type Stats struct {
	DecodeCount  uint64
	DisplayCount uint64
	ErrorCount   uint64
}

// Table is the slot table façade: the slot array, the mutex, the display
// queue, the op log, and the reconfiguration state.
type Table struct {
	mu sync.Mutex

	cfg Config

	slots []slotEntry
	size  atomic.Int64

	// outputIndex is read lock-free by GetHWDst; it is still written under
	// t.mu like everything else.
	outputIndex atomic.Int32

	display displayQueue
	log     *opLog

	setupDone bool

	infoChanged   bool
	pendingCount  int
	pendingSize   int64
	pendingReason ChangeReason

	decodeCount  uint64
	displayCount uint64
	errorCount   uint64
}

// Init constructs an empty table. The slot array and count are not yet
// established; call Setup next. cfg.Debug[DebugOps] controls whether the
// op log is allocated only when debug tracing is enabled at construction.
func Init(cfg Config) *Table {
	t := &Table{cfg: cfg}
	t.outputIndex.Store(-1)
	if cfg.has(DebugOps) {
		t.log = newOpLog()
	}
	return t
}

// Setup allocates or extends the slot array, or stashes a pending
// reconfiguration. The first call always allocates, regardless of changed:
// mpp_buf_slot_setup checks for a NULL slot array before it ever looks at
// the changed flag, so a first call made with changed=true still brings
// the table up rather than stashing an unreachable pending reconfiguration
// on a table that was never set up.
func (t *Table) Setup(count int, size int64, changed bool) error {
	if t == nil {
		return ErrNullInput
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cfg.has(DebugSetup) {
		log.Printf("bufslot: setup count=%d size=%d changed=%v", count, size, changed)
	}

	if !t.setupDone {
		t.slots = make([]slotEntry, count)
		for i := range t.slots {
			t.initSlotLocked(i)
		}
		t.size.Store(size)
		t.setupDone = true
		return nil
	}

	if changed {
		t.pendingCount = count
		t.pendingSize = size
		t.pendingReason = ChangeReasonSize
		t.infoChanged = true
		return nil
	}

	if size != t.size.Load() {
		t.fatalf("Setup: size changed from %d to %d without changed=true", t.size.Load(), size)
	}
	if count > len(t.slots) {
		old := len(t.slots)
		grown := make([]slotEntry, count)
		copy(grown, t.slots)
		t.slots = grown
		for i := old; i < count; i++ {
			t.initSlotLocked(i)
		}
	}
	return nil
}

// IsChanged observes the info_changed flag.
func (t *Table) IsChanged() (bool, error) {
	if t == nil {
		return false, ErrNullInput
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.infoChanged, nil
}

// ChangeReason observes the reason for the pending reconfiguration, or
// ChangeReasonNone if none is pending.
func (t *Table) ChangeReason() (ChangeReason, error) {
	if t == nil {
		return ChangeReasonNone, ErrNullInput
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.infoChanged {
		return ChangeReasonNone, nil
	}
	return t.pendingReason, nil
}

// Ready commits the pending configuration. Precondition: info_changed set
// and the table previously set up; both are caller programming errors, so
// violations are fatal rather than returned as errors.
func (t *Table) Ready() error {
	if t == nil {
		return ErrNullInput
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.setupDone {
		t.fatalf("Ready: table never set up")
	}
	if !t.infoChanged {
		t.fatalf("Ready: called with info_changed clear")
	}

	t.size.Store(t.pendingSize)
	if t.pendingCount != len(t.slots) {
		t.slots = make([]slotEntry, t.pendingCount)
		for i := range t.slots {
			t.initSlotLocked(i)
		}
		t.display = displayQueue{}
		t.outputIndex.Store(-1)
	}
	if t.log != nil {
		t.log.clear()
	}
	t.infoChanged = false
	t.pendingReason = ChangeReasonNone
	return nil
}

// GetSize observes the current frame size without taking the mutex: size
// is immutable between Setup/Ready commits.
func (t *Table) GetSize() (int64, error) {
	if t == nil {
		return 0, ErrNullInput
	}
	return t.size.Load(), nil
}

// Deinit destroys the slot array and table. Precondition: display queue
// empty and every slot status zero; violation is fatal.
func (t *Table) Deinit() error {
	if t == nil {
		return ErrNullInput
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.display.empty() {
		t.fatalf("Deinit: display queue not empty")
	}
	for _, e := range t.slots {
		if e.status != 0 {
			t.fatalf("Deinit: slot %d status not zero (%s)", e.index, e.status)
		}
	}
	t.slots = nil
	t.log = nil
	t.setupDone = false
	t.size.Store(0)
	t.outputIndex.Store(-1)
	return nil
}

func (t *Table) checkIndexLocked(i int) {
	if i < 0 || i >= len(t.slots) {
		t.fatalf("index %d out of range (count=%d)", i, len(t.slots))
	}
}

// transition applies op to slots[i], asserts the hw-refcount invariant
// (fatal, with the table's diagnostic dump attached), and appends an op-log
// record if enabled. Must be called with t.mu held.
func (t *Table) transition(i int, op Op) Status {
	before := t.slots[i].status
	after := applyStateMachine(before, op)
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.fatalf("%v", r)
			}
		}()
		checkHWRefInvariant(i, before, after)
	}()
	t.slots[i].status = after
	if t.log != nil {
		t.log.append(opRecord{index: i, op: op, before: before, after: after})
	}
	return after
}

// initSlotLocked resets slots[i] to its zero state and logs the reset as an
// INIT transition, mirroring init_slot_entry's call to slot_ops_with_log for
// SLOT_INIT on every initial, grown, or reinitialized entry. Must be called
// with t.mu held and t.slots[i] addressable (i.e. after any reslice/realloc
// that would invalidate it).
func (t *Table) initSlotLocked(i int) {
	t.slots[i].reset(i)
	t.transition(i, OpInit)
}

// GetUnused scans for the first slot with status exactly zero and marks it
// SET_NOT_READY. No free slot is a fatal assertion: the caller's recycling
// logic is broken and continuing would mis-alias a buffer.
func (t *Table) GetUnused() (int, error) {
	return t.getUnusedFrom(0)
}

// GetUnusedHint behaves like GetUnused but starts its scan at preferred and
// wraps, reducing churn on the most-recently released slot (generalizing
// mpp_buf_slot's buffer-type hint). GetUnused itself keeps the documented
// first-fit-from-zero behavior so round-trip and ordering guarantees hold
// exactly as specified.
func (t *Table) GetUnusedHint(preferred int) (int, error) {
	return t.getUnusedFrom(preferred)
}

func (t *Table) getUnusedFrom(start int) (int, error) {
	if t == nil {
		return 0, ErrNullInput
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cfg.has(DebugEntry) {
		log.Printf("bufslot: get_unused start=%d", start)
	}

	n := len(t.slots)
	if n == 0 {
		t.fatalf("GetUnused: table has no slots")
	}
	if start < 0 || start >= n {
		start = 0
	}
	for k := 0; k < n; k++ {
		i := (start + k) % n
		if t.slots[i].status == 0 {
			t.transition(i, OpSetNotReady)
			return i, nil
		}
	}
	t.errorCount++
	t.fatalf("GetUnused: no free slot (count=%d)", n)
	return 0, nil // unreachable
}

// SetDPBRef marks the slot as held by the codec's reference-frame set.
func (t *Table) SetDPBRef(i int) error {
	if t == nil {
		return ErrNullInput
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkIndexLocked(i)
	t.transition(i, OpSetDPBRef)
	return nil
}

// ClrDPBRef clears the DPB reference and runs the release check.
func (t *Table) ClrDPBRef(i int) error {
	if t == nil {
		return ErrNullInput
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkIndexLocked(i)
	t.transition(i, OpClrDPBRef)
	t.checkEntryUnusedLocked(i)
	return nil
}

// SetDisplay marks the slot DISPLAY and appends it to the display queue,
// detaching it from any prior position first. A slot not already queued
// (slots[i].displayed false) can only be absent from the queue, so push
// skips the detach scan entirely in that case.
func (t *Table) SetDisplay(i int) error {
	if t == nil {
		return ErrNullInput
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkIndexLocked(i)
	t.transition(i, OpSetDisplay)
	t.display.push(i, t.slots[i].displayed)
	t.slots[i].displayed = true
	return nil
}

// SetHWDst selects slot i as the hardware write target and attaches a deep
// copy of frame. Precondition: IN_USE set; violation is fatal.
func (t *Table) SetHWDst(i int, frame FrameDescriptor) error {
	if t == nil {
		return ErrNullInput
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkIndexLocked(i)

	if t.cfg.has(DebugFrame) {
		log.Printf("bufslot: slot %d set_hw_dst", i)
	}

	e := &t.slots[i]
	if !e.status.InUse() {
		t.fatalf("SetHWDst: slot %d not IN_USE", i)
	}

	if e.frame != nil {
		// Re-selecting hardware-destination on a slot whose previous
		// frame was never cleared: destroy it before attaching the new
		// deep copy rather than leaking it.
		e.frame.Destroy()
	}
	e.frame = frame.Clone()
	if e.buffer != nil {
		e.frame.SetBuffer(e.buffer)
	}

	t.transition(i, OpSetHWDst)
	t.transition(i, OpSetFrame)
	t.outputIndex.Store(int32(i))
	return nil
}

// ClrHWDst marks the hardware write as complete: clears HW_DST, clears
// IN_USE, and increments decode_count, then runs the release check.
func (t *Table) ClrHWDst(i int) error {
	if t == nil {
		return ErrNullInput
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkIndexLocked(i)
	t.transition(i, OpClrHWDst)
	t.transition(i, OpClrNotReady)
	t.decodeCount++
	t.checkEntryUnusedLocked(i)
	return nil
}

// GetHWDst returns the most-recently-designated hardware destination
// without locking: output_index is read via atomic.Int32 load, since
// reading it as a plain integer across threads is undefined in most
// target languages.
func (t *Table) GetHWDst() (int, error) {
	if t == nil {
		return 0, ErrNullInput
	}
	return int(t.outputIndex.Load()), nil
}

// IncHWRef adds one outstanding hardware reference. Not idempotent:
// repeating it accumulates.
func (t *Table) IncHWRef(i int) error {
	if t == nil {
		return ErrNullInput
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkIndexLocked(i)
	t.transition(i, OpIncHWRef)
	return nil
}

// DecHWRef removes one outstanding hardware reference and runs the release
// check. checkHWRefInvariant (invoked from transition) is fatal if this
// would take the count negative.
func (t *Table) DecHWRef(i int) error {
	if t == nil {
		return ErrNullInput
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkIndexLocked(i)
	t.transition(i, OpDecHWRef)
	t.checkEntryUnusedLocked(i)
	return nil
}

// SetBuffer attaches buf to slot i. Replacing an existing buffer is only
// legal on a "stream buffer" slot (no attached frame): the old buffer is
// released first. When the slot has a frame and no buffer, the new buffer
// is plumbed into the frame; a slot that already holds both a frame and a
// buffer is a fatal violation.
func (t *Table) SetBuffer(i int, buf Buffer) error {
	if t == nil {
		return ErrNullInput
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkIndexLocked(i)

	if t.cfg.has(DebugBuffer) {
		log.Printf("bufslot: slot %d set_buffer", i)
	}

	e := &t.slots[i]
	if e.buffer != nil {
		if e.frame != nil {
			t.fatalf("SetBuffer: slot %d already has both a frame and a buffer", i)
		}
		e.buffer.DecRef()
	}
	e.buffer = buf
	if e.frame != nil {
		e.frame.SetBuffer(buf)
	}
	buf.IncRef()
	t.transition(i, OpSetBuffer)
	return nil
}

// GetBuffer returns the buffer handle attached to slot i, or nil if none.
func (t *Table) GetBuffer(i int) (Buffer, error) {
	if t == nil {
		return nil, ErrNullInput
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkIndexLocked(i)
	return t.slots[i].buffer, nil
}

// GetDisplay pops the display queue head, failing if the queue is empty or
// the head's slot is still IN_USE. Returns a fresh deep copy of the slot's
// frame descriptor, clears DISPLAY, increments display_count, and runs the
// release check.
func (t *Table) GetDisplay() (FrameDescriptor, error) {
	if t == nil {
		return nil, ErrNullInput
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	head, ok := t.display.peekHead()
	if !ok {
		return nil, ErrDisplayEmpty
	}
	if t.slots[head].status.InUse() {
		return nil, ErrHeadNotReady
	}

	t.display.popHead()
	t.slots[head].displayed = false

	e := &t.slots[head]
	out := e.frame.Clone()

	t.transition(head, OpClrDisplay)
	t.displayCount++
	t.checkEntryUnusedLocked(head)
	return out, nil
}

// SetProp attaches a sidecar key/value pair to slot i.
func (t *Table) SetProp(i int, key string, val any) error {
	if t == nil {
		return ErrNullInput
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkIndexLocked(i)
	e := &t.slots[i]
	if e.props == nil {
		e.props = make(map[string]any)
	}
	e.props[key] = val
	return nil
}

// GetProp returns the sidecar value for key on slot i, and whether it was
// present.
func (t *Table) GetProp(i int, key string) (any, bool, error) {
	if t == nil {
		return nil, false, ErrNullInput
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkIndexLocked(i)
	v, ok := t.slots[i].props[key]
	return v, ok, nil
}

// Dump renders the table's current diagnostic snapshot: per-slot status
// plus the op log, in the same form a fatal panic would carry. Intended
// for external monitoring tools, not for control flow.
func (t *Table) Dump() string {
	if t == nil {
		return "bufslot: <nil table>\n"
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dumpLocked()
}

// SlotCount returns the number of slots the table was set up with, or 0
// if Setup has not been called.
func (t *Table) SlotCount() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

// SlotStatus returns the raw status word for slot i, for read-only
// inspection by external tooling. Does not participate in the release
// state machine.
func (t *Table) SlotStatus(i int) (Status, error) {
	if t == nil {
		return 0, ErrNullInput
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.slots) {
		return 0, ErrNotSetUp
	}
	return t.slots[i].status, nil
}

// Stats returns the running decode/display/error counters.
func (t *Table) Stats() (Stats, error) {
	if t == nil {
		return Stats{}, ErrNullInput
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{DecodeCount: t.decodeCount, DisplayCount: t.displayCount, ErrorCount: t.errorCount}, nil
}

// checkEntryUnused is the release check: if the release mask is zero,
// destroy any attached frame (CLR_FRAME) or, for a stream-buffer slot with
// no frame, dec_ref the attached buffer directly (CLR_BUFFER). The branch
// is deliberate: frame destruction transitively releases the buffer
// through the frame's own ownership, so an explicit dec_ref here would
// double-release when a frame is attached.
func (t *Table) checkEntryUnusedLocked(i int) {
	e := &t.slots[i]
	if e.status&ReleaseMask != 0 {
		return
	}
	if e.frame != nil {
		e.frame.Destroy()
		e.frame = nil
		t.transition(i, OpClrFrame)
	} else if e.buffer != nil {
		e.buffer.DecRef()
	}
	if e.buffer != nil {
		e.buffer = nil
		t.transition(i, OpClrBuffer)
	}
	e.props = nil
}
