// contracts.go - external collaborator contracts. FrameDescriptor and
// Buffer are owned by the surrounding decoder in the source system; this
// module only needs the narrow surface it calls.

package bufslot

// FrameDescriptor is an opaque picture-metadata value. The table owns
// exactly one live FrameDescriptor per slot that has SetFrame; it is
// destroyed when the slot's release check clears HasFrame.
type FrameDescriptor interface {
	// Clone returns a deep copy, independent of the receiver's lifetime.
	Clone() FrameDescriptor
	// SetBuffer plumbs a buffer handle into the frame without taking a
	// reference of its own; the slot retains the strong reference.
	SetBuffer(Buffer)
	// Destroy releases anything the descriptor owns. Called at most once.
	Destroy()
}

// Buffer is a reference-counted handle to a physical memory region.
type Buffer interface {
	// IncRef adds one strong reference.
	IncRef()
	// DecRef removes one strong reference, reclaiming the buffer when the
	// count reaches zero.
	DecRef()
}
