// Package frametest is a reference FrameDescriptor/Buffer implementation
// used by the table's own tests and exported for downstream decoder tests,
// built as a standalone package rather than a _test.go fixture since it
// must be importable by callers outside this module's own test binary.
//
// Nothing here allocates real frame memory: that remains the allocator's
// job.
package frametest

import (
	"sync/atomic"

	"github.com/intuitionamiga/bufslot"
)

// Frame is a reference FrameDescriptor: a picture-metadata payload plus an
// attached Buffer pointer, with a destroy counter so tests can assert
// Destroy runs at most once.
type Frame struct {
	Width, Height int
	PTS           int64

	attached   *Buf
	destroyedN *atomic.Int32
}

// NewFrame constructs a frame descriptor carrying width/height/pts.
func NewFrame(width, height int, pts int64) *Frame {
	return &Frame{Width: width, Height: height, PTS: pts, destroyedN: &atomic.Int32{}}
}

// Clone returns a deep copy. The returned Frame gets its own destroy
// counter, independent of the receiver's, so callers can assert per-copy
// destruction discipline.
func (f *Frame) Clone() bufslot.FrameDescriptor {
	return &Frame{
		Width:      f.Width,
		Height:     f.Height,
		PTS:        f.PTS,
		attached:   f.attached,
		destroyedN: &atomic.Int32{},
	}
}

// SetBuffer plumbs buf into the frame without taking its own reference:
// the owning slot retains the strong reference.
func (f *Frame) SetBuffer(buf bufslot.Buffer) {
	b, _ := buf.(*Buf)
	f.attached = b
}

// Destroy marks the frame destroyed. Panics if called more than once, so
// tests exercising the release path catch a double-destroy immediately
// instead of silently succeeding.
func (f *Frame) Destroy() {
	if f.destroyedN.Add(1) != 1 {
		panic("frametest: Frame destroyed more than once")
	}
}

// Destroyed reports whether Destroy has run.
func (f *Frame) Destroyed() bool { return f.destroyedN.Load() > 0 }

// AttachedBuffer returns whatever buffer SetBuffer last plumbed in, or nil.
func (f *Frame) AttachedBuffer() *Buf { return f.attached }

// Buf is a reference-counted Buffer. refs starts at 0; IncRef/DecRef track
// the outstanding strong-reference count so tests can assert it matches
// attach count.
type Buf struct {
	ID   int
	refs atomic.Int32
}

// NewBuf constructs a buffer handle with zero outstanding references.
func NewBuf(id int) *Buf { return &Buf{ID: id} }

func (b *Buf) IncRef() { b.refs.Add(1) }

// DecRef removes one reference. Panics if the count would go negative: a
// double-release is as much a programming error here as HW_REFCOUNT
// underflow is in the table itself.
func (b *Buf) DecRef() {
	if b.refs.Add(-1) < 0 {
		panic("frametest: Buf released more times than referenced")
	}
}

// RefCount returns the current outstanding reference count.
func (b *Buf) RefCount() int32 { return b.refs.Load() }
