package interp

import (
	"runtime"
	"sync/atomic"

	"cncmotion/core"
	"cncmotion/hal"
	"cncmotion/motion"
	"cncmotion/tool"
)

// Stepper is the step pulse callback. Pulse and Reset run in the timer
// context, alternating each period; they never block, allocate or loop
// beyond the axis count. The real-time position is written only here.
type Stepper struct {
	ring  *SegmentRing
	out   hal.StepOutput
	timer core.StepTimer
	tool  tool.Output

	idleSteps uint8
	dirs      motion.DirBits
	rt        *Segment
	loads     uint32

	busy     atomic.Bool
	finished atomic.Bool
	dropped  atomic.Uint32
	position [motion.MaxAxes]atomic.Int32
}

// NewStepper creates a step callback consuming ring. idleSteps is the step
// line level between pulses.
func NewStepper(ring *SegmentRing, out hal.StepOutput, idleSteps uint8) *Stepper {
	s := &Stepper{
		ring:      ring,
		out:       out,
		idleSteps: idleSteps,
	}
	s.finished.Store(true)
	return s
}

// Attach binds the timer reprogrammed on speed changes and the tool output
func (s *Stepper) Attach(timer core.StepTimer, out tool.Output) {
	s.timer = timer
	s.tool = out
}

// Prime loads the first segment while the timer is stopped so directions
// settle before the first pulse.
func (s *Stepper) Prime() {
	if s.rt == nil {
		s.load()
	}
}

// Pulse runs one Bresenham tick of the current segment and emits the
// resulting step pulses.
func (s *Stepper) Pulse() {
	if !s.busy.CompareAndSwap(false, true) {
		s.dropped.Add(1)
		core.RecordTiming(core.EvtDroppedTick, 0, s.loads, s.dropped.Load(), 0)
		return
	}

	if s.rt == nil {
		s.load()
	}

	if seg := s.rt; seg != nil && seg.RemainingSteps > 0 {
		if blk := seg.Block; blk != nil {
			var bits uint8
			for i := 0; i < motion.MaxAxes; i++ {
				bit := uint8(1) << i
				if blk.IdleMask&bit != 0 {
					continue
				}
				if blk.MainAxis == int8(i) {
					bits |= bit
					continue
				}
				blk.Errors[i] += blk.Steps[i]
				if blk.Errors[i] > blk.Total {
					blk.Errors[i] -= blk.Total
					bits |= bit
				}
			}

			if bits != 0 {
				s.out.ToggleSteps(bits)
				for i := 0; i < motion.MaxAxes; i++ {
					if bits&(1<<i) == 0 {
						continue
					}
					if blk.DirBits.Has(i) {
						s.position[i].Add(-1)
					} else {
						s.position[i].Add(1)
					}
				}
			}
		}
		seg.RemainingSteps--
	}

	s.busy.Store(false)
}

// Reset restores the idle step levels and moves to the next segment once
// the current one is spent.
func (s *Stepper) Reset() {
	s.out.SetSteps(s.idleSteps)

	if !s.busy.CompareAndSwap(false, true) {
		s.dropped.Add(1)
		core.RecordTiming(core.EvtDroppedTick, 1, s.loads, s.dropped.Load(), 0)
		return
	}

	if s.rt != nil && s.rt.RemainingSteps == 0 {
		s.rt = nil
		s.ring.Advance()
		s.load()
	} else if s.rt == nil && s.ring.Empty() {
		s.finished.Store(true)
	}

	s.busy.Store(false)
}

// load takes the oldest segment and applies its oversampling shift, direction,
// timer rate and tool state exactly once.
func (s *Stepper) load() {
	seg := s.ring.Peek()
	if seg == nil {
		s.finished.Store(true)
		return
	}
	s.finished.Store(false)
	s.rt = seg
	s.loads++

	if blk := seg.Block; blk != nil {
		if shift := seg.DSSShift; shift != 0 {
			// step parity changes, every axis goes through the error terms
			blk.MainAxis = NoMainAxis
			if shift > 0 {
				blk.Total <<= uint(shift)
				for i := range blk.Errors {
					blk.Errors[i] <<= uint(shift)
				}
			} else {
				blk.Total >>= uint(-shift)
				for i := range blk.Errors {
					blk.Errors[i] >>= uint(-shift)
				}
			}
		}
		if blk.DirBits != s.dirs {
			s.dirs = blk.DirBits
			s.out.SetDirs(s.dirs)
		}
	}

	if seg.Flags&UpdateSpeed != 0 && s.timer != nil {
		s.timer.Change(seg.TimerReload, seg.TimerPrescale)
	}
	if seg.Flags&UpdateTool != 0 && s.tool != nil {
		s.tool.SetSpeed(seg.Tool)
	}
	core.RecordTiming(core.EvtSegmentLoad, seg.DSS, s.loads, seg.RemainingSteps, uint32(seg.TimerReload))
}

// Finished reports that the ring ran dry. The background loop stops the timer.
func (s *Stepper) Finished() bool {
	return s.finished.Load()
}

// Dropped returns the number of ticks lost to reentrancy
func (s *Stepper) Dropped() uint32 {
	return s.dropped.Load()
}

// Position returns the real-time step position. The step interrupt is
// masked so all axes come from the same tick.
func (s *Stepper) Position() motion.Steps {
	var p motion.Steps
	core.Atomic(func() {
		for i := range p {
			p[i] = s.position[i].Load()
		}
	})
	return p
}

// SetPosition overwrites the real-time position. Only call it while the
// timer is stopped.
func (s *Stepper) SetPosition(p motion.Steps) {
	for i := range p {
		s.position[i].Store(p[i])
	}
}

// WaitIdle returns once a tick running in another context has finished.
// After the timer is stopped no new tick starts, so the loaded segment and
// the ring can then be cleared.
func (s *Stepper) WaitIdle() {
	for s.busy.Load() {
		runtime.Gosched()
	}
}

// Clear drops the loaded segment. Only call it while the timer is stopped.
func (s *Stepper) Clear() {
	s.rt = nil
	s.finished.Store(true)
	s.out.SetSteps(s.idleSteps)
}
