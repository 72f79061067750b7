// errors.go - recoverable status codes, returned as errors. Fatal
// invariant violations are panics (see invariants.go), not errors: the line
// is drawn at "programming error in the caller" vs. "caller should retry or
// bail cleanly", and only the latter gets an error return.

package bufslot

import "errors"

var (
	// ErrNullInput is returned by every operation given a nil *Table. Not a
	// panic: callers may legitimately hold a nil table during shutdown.
	ErrNullInput = errors.New("bufslot: null table")

	// ErrDisplayEmpty is returned by GetDisplay when the queue is empty.
	ErrDisplayEmpty = errors.New("bufslot: display queue empty")

	// ErrHeadNotReady is returned by GetDisplay when the queue head's slot
	// is still IN_USE (hardware has not finished writing it yet). The
	// caller should retry after the hardware-completion notifier runs.
	ErrHeadNotReady = errors.New("bufslot: display queue head not ready")

	// ErrNotSetUp is returned by SlotStatus for an index that is not a slot
	// of the table, which is every index before Setup has run.
	ErrNotSetUp = errors.New("bufslot: table not set up")
)
