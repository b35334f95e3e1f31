package interp

import (
	"testing"

	"cncmotion/config"
	"cncmotion/core"
	"cncmotion/hal"
	"cncmotion/kinematics"
	"cncmotion/motion"
	"cncmotion/planner"
)

// rig wires the planner, generator and step callback the way the
// controller does, on a virtual clock
type rig struct {
	exec  core.ExecFlags
	cfg   *config.Machine
	plan  *planner.Planner
	kin   kinematics.Kinematics
	ring  *SegmentRing
	gen   *Interpolator
	out   *hal.Recorder
	st    *Stepper
	sched *core.Scheduler
	timer *core.SoftStepTimer
}

func testMachine(dss int) *config.Machine {
	cfg := config.Default()
	for _, name := range []string{"x", "y", "z"} {
		a := cfg.Axes[name]
		a.Acceleration = 50
		cfg.Axes[name] = a
	}
	cfg.Motion.DSSMaxOversampling = dss
	return cfg
}

func newRig(t *testing.T, cfg *config.Machine) *rig {
	t.Helper()
	kin, err := kinematics.New(cfg)
	if err != nil {
		t.Fatalf("kinematics: %v", err)
	}
	r := &rig{
		cfg:   cfg,
		kin:   kin,
		plan:  planner.New(cfg),
		ring:  NewSegmentRing(cfg.Motion.SegmentBufferSize),
		out:   hal.NewRecorder(0),
		sched: core.NewScheduler(),
	}
	r.gen = New(cfg, r.plan, kin, &r.exec, r.ring)
	r.plan.OnUpdate = r.gen.Update
	r.st = NewStepper(r.ring, r.out, 0)
	r.timer = core.NewSoftStepTimer(r.sched, r.st)
	r.st.Attach(r.timer, nil)
	return r
}

func (r *rig) line(t *testing.T, target motion.Vector, data planner.BlockData) {
	t.Helper()
	if err := r.plan.AddLine(target, data); err != nil {
		t.Fatalf("AddLine %v: %v", target, err)
	}
}

// generate slices everything queued without stepping and returns copies of
// the segments in order. It stops early when a hold starves the generator.
func (r *rig) generate(t *testing.T) []Segment {
	t.Helper()
	var segs []Segment
	for i := 0; i < 1000000; i++ {
		res := r.gen.Run()
		segs = append(segs, r.drain()...)
		if res.Starved || (r.plan.IsEmpty() && !r.gen.Busy()) {
			return segs
		}
	}
	t.Fatal("generator did not finish")
	return nil
}

func (r *rig) drain() []Segment {
	var segs []Segment
	for seg := r.ring.Peek(); seg != nil; seg = r.ring.Peek() {
		segs = append(segs, *seg)
		r.ring.Advance()
	}
	return segs
}

// run executes everything queued, stepping the virtual clock 1ms at a time
func (r *rig) run(t *testing.T) {
	t.Helper()
	for i := 0; i < 1000000; i++ {
		r.gen.Run()
		if r.timer.Running() && r.st.Finished() && r.ring.Empty() {
			r.timer.Stop()
		}
		if !r.timer.Running() && !r.ring.Empty() {
			r.st.Prime()
			seg := r.ring.Peek()
			r.timer.Start(seg.TimerReload, seg.TimerPrescale)
		}
		if r.plan.IsEmpty() && !r.gen.Busy() && r.ring.Empty() && !r.timer.Running() {
			return
		}
		r.sched.Advance(r.sched.Now() + core.TimerFreq/1000)
	}
	t.Fatal("motion did not finish")
}

// split groups consecutive segments of the same block
func split(segs []Segment) [][]Segment {
	var out [][]Segment
	for i, seg := range segs {
		if i == 0 || seg.Block != segs[i-1].Block {
			out = append(out, nil)
		}
		out[len(out)-1] = append(out[len(out)-1], seg)
	}
	return out
}
