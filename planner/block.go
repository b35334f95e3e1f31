package planner

import (
	"time"

	"cncmotion/motion"
)

// BlockFlags modify how a block is planned
type BlockFlags uint8

const (
	// FlagExactStop forces a full stop at the entry junction
	FlagExactStop BlockFlags = 1 << iota
	// FlagContinuous relaxes the junction limit by the G64 angle factor
	FlagContinuous
	// FlagRapid requests the maximum speed along the direction
	FlagRapid
	// FlagFeedOverride lets feed, rapid and spindle overrides act on the block
	FlagFeedOverride
)

// BlockData is the metadata submitted with a target position
type BlockData struct {
	Feed    float64       // mm/min, ignored for rapids
	Flags   BlockFlags
	Dwell   time.Duration // non-zero makes the block a motionless dwell
	Spindle float64       // rpm, negative for counter-clockwise
	Coolant uint8
	Line    uint32
}

// Block is one queued straight-line move.
// Speeds are in mm/s, squared speeds in mm²/s², acceleration in mm/s².
type Block struct {
	Target   motion.Vector
	Dir      motion.Vector // unit vector toward Target
	DirBits  motion.DirBits
	Distance float64 // remaining travel, updated by the segment generator

	RequestedFeed float64 // mm/min
	MaxSpeed      float64
	Acceleration  float64
	AccelInv      float64

	EntrySpeedSqr    float64
	EntryMaxSpeedSqr float64
	FeedSqr          float64
	RapidSqr         float64

	// Optimal is sticky: once set the optimizer never revises EntrySpeedSqr
	Optimal bool

	Flags   BlockFlags
	Dwell   time.Duration
	Spindle float64
	Coolant uint8
	Line    uint32
}
