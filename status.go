// status.go - bit-packed slot status word and the pure state machine that
// transitions it. Grounded on the register/status-word idioms in
// machine_bus.go (IO bitmap) and terminal_io.go (status bits), adapted to
// the buffer-slot release-mask semantics of the source decoder.

package bufslot

import "fmt"

// Status is the bit-packed per-slot status word. The low 24 bits are the
// release mask: a slot is releasable iff status&ReleaseMask == 0. HasFrame
// and HasBuffer live above the release mask since they survive release-mask
// clearance momentarily while the release check runs.
type Status uint32

const (
	flagInUse   Status = 1 << 0
	flagDPBRef  Status = 1 << 1
	flagDisplay Status = 1 << 2
	flagHWDst   Status = 1 << 3

	hwRefShift        = 8
	hwRefBits         = 16
	hwRefMask  Status = ((1 << hwRefBits) - 1) << hwRefShift

	flagHasFrame  Status = 1 << 24
	flagHasBuffer Status = 1 << 25

	// ReleaseMask covers every bit that must be zero for a slot to be
	// reclaimable: the four reference/role flags plus the hardware
	// refcount, all within the low 24 bits.
	ReleaseMask Status = flagInUse | flagDPBRef | flagDisplay | flagHWDst | hwRefMask
)

// InUse reports whether the slot has been handed out and not yet released.
func (s Status) InUse() bool { return s&flagInUse != 0 }

// DPBRef reports whether the codec holds the slot as a reference frame.
func (s Status) DPBRef() bool { return s&flagDPBRef != 0 }

// Display reports whether the slot is enqueued for display.
func (s Status) Display() bool { return s&flagDisplay != 0 }

// HWDst reports whether the slot is the current hardware write target.
func (s Status) HWDst() bool { return s&flagHWDst != 0 }

// HasFrame reports whether a frame descriptor is attached.
func (s Status) HasFrame() bool { return s&flagHasFrame != 0 }

// HasBuffer reports whether a buffer handle is attached.
func (s Status) HasBuffer() bool { return s&flagHasBuffer != 0 }

// HWRefCount returns the outstanding hardware-reference count.
func (s Status) HWRefCount() int16 {
	return int16((s & hwRefMask) >> hwRefShift)
}

// Releasable reports whether every release-mask bit is clear.
func (s Status) Releasable() bool { return s&ReleaseMask == 0 }

func (s Status) String() string {
	return fmt.Sprintf("{in_use:%v dpb:%v display:%v hw_dst:%v hw_ref:%d frame:%v buffer:%v}",
		s.InUse(), s.DPBRef(), s.Display(), s.HWDst(), s.HWRefCount(), s.HasFrame(), s.HasBuffer())
}

// Op is an operation code applied to a Status by the state machine.
type Op int

const (
	OpInit Op = iota
	OpSetNotReady
	OpClrNotReady
	OpSetDPBRef
	OpClrDPBRef
	OpSetDisplay
	OpClrDisplay
	OpSetHWDst
	OpClrHWDst
	OpIncHWRef
	OpDecHWRef
	OpSetFrame
	OpClrFrame
	OpSetBuffer
	OpClrBuffer
)

func (op Op) String() string {
	switch op {
	case OpInit:
		return "INIT"
	case OpSetNotReady:
		return "SET_NOT_READY"
	case OpClrNotReady:
		return "CLR_NOT_READY"
	case OpSetDPBRef:
		return "SET_DPB_REF"
	case OpClrDPBRef:
		return "CLR_DPB_REF"
	case OpSetDisplay:
		return "SET_DISPLAY"
	case OpClrDisplay:
		return "CLR_DISPLAY"
	case OpSetHWDst:
		return "SET_HW_DST"
	case OpClrHWDst:
		return "CLR_HW_DST"
	case OpIncHWRef:
		return "INC_HW_REF"
	case OpDecHWRef:
		return "DEC_HW_REF"
	case OpSetFrame:
		return "SET_FRAME"
	case OpClrFrame:
		return "CLR_FRAME"
	case OpSetBuffer:
		return "SET_BUFFER"
	case OpClrBuffer:
		return "CLR_BUFFER"
	default:
		return fmt.Sprintf("OP(%d)", int(op))
	}
}

// applyStateMachine is the pure transition function apply(status, op) ->
// status. It never touches anything but the bits of status; owning a
// frame/buffer or appending to a display queue is the façade's job, not
// this function's.
func applyStateMachine(s Status, op Op) Status {
	switch op {
	case OpInit:
		return 0
	case OpSetNotReady:
		return s | flagInUse
	case OpClrNotReady:
		return s &^ flagInUse
	case OpSetDPBRef:
		return s | flagDPBRef
	case OpClrDPBRef:
		return s &^ flagDPBRef
	case OpSetDisplay:
		return s | flagDisplay
	case OpClrDisplay:
		return s &^ flagDisplay
	case OpSetHWDst:
		return s | flagHWDst
	case OpClrHWDst:
		return s &^ flagHWDst
	case OpIncHWRef:
		return s + (1 << hwRefShift)
	case OpDecHWRef:
		return s - (1 << hwRefShift)
	case OpSetFrame:
		return s | flagHasFrame
	case OpClrFrame:
		return s &^ flagHasFrame
	case OpSetBuffer:
		return s | flagHasBuffer
	case OpClrBuffer:
		return s &^ flagHasBuffer
	default:
		panic(fmt.Sprintf("bufslot: unknown op %d", int(op)))
	}
}

// checkHWRefInvariant panics if the hardware refcount has gone negative.
// Treated as a signed 16-bit quantity so a DEC_HW_REF past zero is caught
// instead of wrapping.
func checkHWRefInvariant(index int, before, after Status) {
	if after.HWRefCount() < 0 {
		panic(fmt.Sprintf("bufslot: slot %d hw_refcount went negative (before=%s after=%s)", index, before, after))
	}
}
