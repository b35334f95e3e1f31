package interp

import (
	"math"
	"time"

	"cncmotion/config"
	"cncmotion/core"
	"cncmotion/kinematics"
	"cncmotion/motion"
	"cncmotion/planner"
	"cncmotion/tool"
)

// Delay segments tick at a fixed rate
const (
	DelayFreq = 100                     // Hz
	DelayTick = time.Second / DelayFreq // 10ms
	maxTicks  = 65535
)

// Relative shortfall of the previous block's exit below the planned entry
// that triggers re-planning. Smaller gaps are float error.
const entryTolerance = 1e-6

// RunResult reports what one Run call produced
type RunResult struct {
	Segments int  // segments published
	Starved  bool // a hold brought the speed to zero
}

// Interpolator is the segment generator. It slices the oldest planner block
// into fixed-duration segments and publishes them to the segment ring. It runs
// only in the background loop.
type Interpolator struct {
	planner *planner.Planner
	kin     kinematics.Kinematics
	exec    *core.ExecFlags
	ring    *SegmentRing

	blocks   []Block
	blkWrite int

	dt          float64
	maxStepRate float64
	dssMax      uint8
	dssCutoff   float64

	// in-flight block
	cur     *planner.Block
	curBlk  *Block
	stepPos motion.Steps
	k       float64 // steps per mm along the block

	unprocessed    uint32
	accelUntil     uint32
	deaccelFrom    uint32
	entrySq        float64 // (steps/s)²
	juncSq         float64
	accel          float64 // steps/s²
	halfSpeedDelta float64
	accelNegative  bool
	transition     bool
	needsUpdate    bool
	prevDSS        uint8
	lastExit       float64 // mm²/s², speed the previous block ended at

	prevTool  tool.State
	toolValid bool
}

// New creates a segment generator feeding ring from p
func New(cfg *config.Machine, p *planner.Planner, kin kinematics.Kinematics, exec *core.ExecFlags, ring *SegmentRing) *Interpolator {
	m := cfg.Motion
	it := &Interpolator{
		planner:     p,
		kin:         kin,
		exec:        exec,
		ring:        ring,
		blocks:      make([]Block, ring.Cap()+1),
		dt:          1 / m.InterpolatorFreq,
		maxStepRate: m.MaxStepRate,
		dssMax:      uint8(m.DSSMaxOversampling),
		dssCutoff:   m.DSSCutoffFreq,
	}
	return it
}

// Update marks the in-flight block's profile dirty
func (it *Interpolator) Update() {
	it.needsUpdate = true
}

// Clear drops the in-flight block. The ring must be cleared separately
// while the step callback is stopped.
func (it *Interpolator) Clear() {
	it.cur = nil
	it.curBlk = nil
	it.blkWrite = 0
	it.unprocessed = 0
	it.needsUpdate = false
	it.prevDSS = 0
	it.lastExit = 0
	it.toolValid = false
}

// SyncSteps sets the step position the next block is measured from
func (it *Interpolator) SyncSteps(steps motion.Steps) {
	it.stepPos = steps
}

// StepPosition returns the step position after the last sliced block
func (it *Interpolator) StepPosition() motion.Steps {
	return it.stepPos
}

// Busy reports whether a block is being sliced
func (it *Interpolator) Busy() bool {
	return it.cur != nil
}

// Feed returns the feed (mm/min) of the oldest pending segment
func (it *Interpolator) Feed() float64 {
	if seg := it.ring.Peek(); seg != nil {
		return seg.Feed
	}
	return 0
}

// Run fills the segment ring until it is full, the planner is empty, an
// alarm is active or a hold has starved the buffer.
func (it *Interpolator) Run() RunResult {
	var res RunResult

	for !it.ring.Full() {
		if it.exec.Is(core.ExecAlarm) {
			return res
		}

		if it.cur == nil {
			b := it.planner.Oldest()
			if b == nil {
				break
			}
			if !it.startBlock(b) {
				// motionless block: a single delay segment was published
				res.Segments++
				it.planner.Discard()
				continue
			}
		}

		if !it.nextSegment() {
			res.Starved = true
			return res
		}
		res.Segments++
	}
	return res
}

// startBlock converts the planner block into integer stepping state. It
// returns false for a block without steps, after publishing its delay segment.
func (it *Interpolator) startBlock(b *planner.Block) bool {
	target := it.kin.ToSteps(b.Target)
	delta := target.Sub(it.stepPos)

	var steps [motion.MaxAxes]uint32
	var dirs motion.DirBits
	var total uint32
	for i, d := range delta {
		if d < 0 {
			dirs |= 1 << i
			d = -d
		}
		steps[i] = uint32(d)
		total = max(total, steps[i])
	}

	if total == 0 || b.Distance <= 0 {
		it.emitDelay(b.Dwell)
		it.lastExit = 0
		return false
	}

	blk := &it.blocks[it.blkWrite]
	if it.blkWrite++; it.blkWrite == len(it.blocks) {
		it.blkWrite = 0
	}
	*blk = Block{
		Total:    total << 1,
		DirBits:  dirs,
		MainAxis: NoMainAxis,
		Line:     b.Line,
	}
	for i := range steps {
		blk.Steps[i] = steps[i] << 1
		blk.Errors[i] = total
		if steps[i] == 0 {
			blk.IdleMask |= 1 << i
		} else if steps[i] == total && blk.MainAxis == NoMainAxis {
			blk.MainAxis = int8(i)
		}
	}

	it.stepPos = target
	it.cur = b
	it.curBlk = blk
	it.unprocessed = total
	it.k = float64(total) / b.Distance
	it.accel = b.Acceleration * it.k
	it.halfSpeedDelta = 0.5 * it.accel * it.dt

	// a hold or a stop can leave the previous block slower than planned.
	// The block then starts from that speed and the junctions after it are
	// re-planned from there.
	entry := it.planner.EntrySpeedSqr()
	if it.lastExit < entry {
		b.EntrySpeedSqr = it.lastExit
		if it.lastExit < entry*(1-entryTolerance) {
			it.planner.Recalculate()
		}
		entry = it.lastExit
	}
	it.entrySq = entry * it.k * it.k
	it.needsUpdate = true
	it.transition = true
	return true
}

// recompute places the accelUntil and deaccelFrom breakpoints for the
// remaining steps of the in-flight block.
func (it *Interpolator) recompute() {
	kk := it.k * it.k
	exitMM := it.planner.ExitSpeedSqr()
	exitSq := exitMM * kk
	it.juncSq = it.planner.TopSpeedSqr(exitMM) * kk

	it.accelUntil = it.unprocessed
	it.deaccelFrom = 0
	if it.juncSq != it.entrySq {
		d := math.Floor(math.Abs(it.juncSq-it.entrySq) / (2 * it.accel))
		it.accelUntil -= uint32(math.Min(d, float64(it.unprocessed)))
		it.accelNegative = it.juncSq < it.entrySq
	}
	if it.accelUntil == it.unprocessed {
		it.entrySq = it.juncSq
	}
	if it.juncSq > exitSq {
		d := math.Floor((it.juncSq - exitSq) / (2 * it.accel))
		it.deaccelFrom = uint32(math.Min(d, float64(it.unprocessed)))
	}
	if it.deaccelFrom > it.accelUntil {
		it.deaccelFrom = it.accelUntil
	}
}

// nextSegment publishes one segment of the in-flight block. It returns
// false when a hold has brought the speed to zero.
func (it *Interpolator) nextSegment() bool {
	hold := it.exec.Is(core.ExecHold)
	if hold {
		if it.accelUntil != it.unprocessed || it.deaccelFrom != it.unprocessed {
			core.RecordTiming(core.EvtHold, 0, 0, it.unprocessed, uint32(math.Sqrt(it.entrySq)))
		}
		it.accelUntil = it.unprocessed
		it.deaccelFrom = it.unprocessed
		it.needsUpdate = true
	} else if it.needsUpdate {
		it.needsUpdate = false
		it.recompute()
	}

	var flags SegmentFlags
	var speedDelta float64
	var limit uint32
	switch {
	case it.unprocessed > it.accelUntil:
		speedDelta = it.halfSpeedDelta
		if it.accelNegative {
			speedDelta = -speedDelta
		}
		limit = it.accelUntil
		flags = UpdateSpeed | Accel
		it.transition = true
	case it.unprocessed > it.deaccelFrom:
		limit = it.deaccelFrom
		flags = Const
		if it.transition {
			flags |= UpdateSpeed
		}
		it.transition = false
	default:
		speedDelta = -it.halfSpeedDelta
		flags = UpdateSpeed | Decel
		it.transition = true
	}

	speed := math.Sqrt(it.entrySq) + speedDelta
	if speed <= 0 {
		if hold {
			it.entrySq = 0
			it.writeBack()
			core.RecordTiming(core.EvtStarved, 0, 0, it.unprocessed, 0)
			return false
		}
		// creep to the end of the block
		speed = math.Abs(speedDelta)
	}

	segm := uint32(math.Floor(math.Min(speed*it.dt, maxTicks)))
	if segm == 0 {
		segm = 1
	}
	if segm > it.unprocessed-limit {
		segm = it.unprocessed - limit
	}

	// energy equation: v² = v0² ± 2·a·d, speed is the mean over the segment
	if speedDelta != 0 {
		dv := 2 * it.accel * float64(segm)
		newSq := it.entrySq + dv
		if speedDelta < 0 {
			newSq = math.Max(it.entrySq-dv, 0)
		}
		speed = (math.Sqrt(newSq) + math.Sqrt(it.entrySq)) / 2
		if speedDelta < 0 {
			speed = math.Max(speed, it.halfSpeedDelta)
		}
		it.entrySq = newSq
	}

	seg := it.ring.Reserve()
	seg.Block = it.curBlk

	dss := it.dssLevel(speed, segm)
	seg.DSS = dss
	seg.DSSShift = int8(dss) - int8(it.prevDSS)
	it.prevDSS = dss
	if seg.DSSShift != 0 {
		flags |= UpdateSpeed
	}
	seg.RemainingSteps = segm << dss
	freq := math.Min(speed*float64(uint32(1)<<dss), it.maxStepRate)
	seg.TimerReload, seg.TimerPrescale = core.FreqToClocks(freq)

	seg.Speed = speed / it.k
	seg.Feed = seg.Speed * 60

	throttle := 1.0
	if it.planner.LaserMode() && it.juncSq > 0 {
		throttle = math.Min(1, speed/math.Sqrt(it.juncSq))
	}
	seg.Tool = it.planner.SpindleSpeed(throttle)
	flags |= it.toolFlag(seg.Tool)
	seg.Flags = flags

	it.unprocessed -= segm
	if !hold && (it.unprocessed == it.accelUntil || it.unprocessed == it.deaccelFrom) {
		// snap accumulated float error at the phase boundary
		it.entrySq = it.juncSq
		core.RecordTiming(core.EvtResync, 0, 0, it.unprocessed, uint32(math.Sqrt(it.juncSq)))
	}
	it.writeBack()

	it.ring.Publish()

	if it.unprocessed == 0 {
		core.RecordTiming(core.EvtBlockDone, 0, 0, it.curBlk.Line, 0)
		it.lastExit = it.entrySq / (it.k * it.k)
		it.planner.Discard()
		it.cur = nil
		it.curBlk = nil
		it.prevDSS = 0
	}
	return true
}

// writeBack exposes the remaining distance and current speed to the planner
func (it *Interpolator) writeBack() {
	it.cur.Distance = float64(it.unprocessed) / it.k
	it.cur.EntrySpeedSqr = it.entrySq / (it.k * it.k)
}

// dssLevel picks the oversampling level for a segment: the step rate is
// doubled while below the cutoff, up to the configured maximum, and only
// for segments with more than one step.
func (it *Interpolator) dssLevel(speed float64, segm uint32) uint8 {
	var dss uint8
	for speed < it.dssCutoff && dss < it.dssMax && segm > 1 {
		speed *= 2
		dss++
	}
	return dss
}

func (it *Interpolator) toolFlag(st tool.State) SegmentFlags {
	if it.toolValid && st == it.prevTool {
		return 0
	}
	it.prevTool = st
	it.toolValid = true
	return UpdateTool
}

// emitDelay publishes a stepless segment lasting dwell, or one delay tick
// when dwell is zero so tool changes still reach the output.
func (it *Interpolator) emitDelay(dwell time.Duration) {
	ticks := uint32(1)
	if dwell > 0 {
		ticks = uint32(min((dwell+DelayTick-1)/DelayTick, maxTicks))
	}

	seg := it.ring.Reserve()
	seg.RemainingSteps = ticks
	seg.TimerReload, seg.TimerPrescale = core.FreqToClocks(DelayFreq)
	seg.Flags = UpdateSpeed | Delay

	if !it.planner.LaserMode() {
		seg.Tool = it.planner.SpindleSpeed(1)
	}
	seg.Flags |= it.toolFlag(seg.Tool)
	it.ring.Publish()
}
