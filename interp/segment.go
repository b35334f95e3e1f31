package interp

import (
	"cncmotion/motion"
	"cncmotion/tool"
)

// NoMainAxis marks a block without an unconditionally stepping axis
const NoMainAxis int8 = -1

// Block is the integer stepping state for one motion block. Step counts and
// the total are doubled so the error terms can be pre-biased to half a step.
// Once its first segment is published the block belongs to the step callback.
type Block struct {
	Steps    [motion.MaxAxes]uint32
	Errors   [motion.MaxAxes]uint32
	Total    uint32
	DirBits  motion.DirBits
	MainAxis int8
	IdleMask uint8
	Line     uint32
}

// SegmentFlags tell the step callback what to reload when a segment starts
type SegmentFlags uint8

const (
	UpdateSpeed SegmentFlags = 1 << iota // reload the step timer
	UpdateTool                           // apply the tool snapshot
	Accel
	Const
	Decel
	Delay // timed delay, no stepping
)

// Segment is a fixed time slice of a block executed at one timer rate.
// A nil Block is a pure delay.
type Segment struct {
	Block          *Block
	RemainingSteps uint32 // timer ticks left, oversampled by DSS
	TimerReload    uint16
	TimerPrescale  uint16
	Flags          SegmentFlags
	DSSShift       int8    // oversampling change relative to the previous segment
	DSS            uint8   // oversampling level of this segment
	Feed           float64 // mm/min, for reporting
	Speed          float64 // mm/s
	Tool           tool.State
}
