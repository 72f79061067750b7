// slotentry.go - per-slot state. Grounded on CoprocWorker/CoprocCompletion
// in coprocessor_manager.go: a small struct of primary state (status,
// index) plus optional attachments, held in a fixed-size array under the
// owning façade's mutex.

package bufslot

// slotEntry is one entry in the slot table. index is stable for the
// lifetime of the current configuration; status is only ever mutated
// through applyStateMachine so every transition is logged uniformly.
type slotEntry struct {
	index  int
	status Status

	frame  FrameDescriptor
	buffer Buffer

	// props is the per-slot sidecar payload supplementing frame/buffer
	// state, generalizing mpp_buf_slot.cpp's set_prop/get_prop registry.
	// Allocated lazily.
	props map[string]any

	// displayed marks whether the entry is currently linked into the
	// display queue. SetDisplay passes it to displayQueue.push so a slot
	// known not to be queued skips the detach scan entirely, instead of
	// always scanning on the chance of a re-seat.
	displayed bool
}

func (e *slotEntry) reset(index int) {
	e.index = index
	e.status = 0
	e.frame = nil
	e.buffer = nil
	e.props = nil
	e.displayed = false
}
