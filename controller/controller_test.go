package controller

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"cncmotion/config"
	"cncmotion/core"
	"cncmotion/hal"
	"cncmotion/kinematics"
	"cncmotion/motion"
	"cncmotion/planner"
)

type sim struct {
	*Controller
	sched *core.Scheduler
	out   *hal.Recorder
}

func newSim(t *testing.T, queue int) *sim {
	t.Helper()
	cfg := config.Default()
	for _, name := range []string{"x", "y", "z"} {
		a := cfg.Axes[name]
		a.Acceleration = 50
		cfg.Axes[name] = a
	}
	if queue > 0 {
		cfg.Motion.PlannerBufferSize = queue
	}

	out := hal.NewRecorder(0)
	c, sched, err := NewSimulated(cfg, out, nil)
	if err != nil {
		t.Fatalf("NewSimulated: %v", err)
	}
	return &sim{Controller: c, sched: sched, out: out}
}

// tick runs one background loop iteration and 1ms of virtual time
func (s *sim) tick() {
	s.DoTasks()
	s.sched.Advance(s.sched.Now() + SimQuantum)
}

// until ticks until cond holds, failing after limit ticks
func (s *sim) until(t *testing.T, limit int, cond func() bool) {
	t.Helper()
	for i := 0; i < limit; i++ {
		if cond() {
			return
		}
		s.tick()
	}
	t.Fatalf("condition not met within %d ticks", limit)
}

func (s *sim) sync(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

func (s *sim) x() float64 {
	return s.CurrentPosition()[motion.AxisX]
}

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestSubmitAndSync(t *testing.T) {
	s := newSim(t, 0)
	ctx := context.Background()

	targets := []motion.Vector{{10, 5}, {10, 5, -2}, {-3.5, 0.25, -2}, {0, 0, 0}, {1}}
	for _, p := range targets {
		if err := s.SubmitLine(ctx, p, planner.BlockData{Feed: 1500}); err != nil {
			t.Fatalf("SubmitLine %v: %v", p, err)
		}
	}
	s.sync(t)

	if pos := s.CurrentPosition(); pos != (motion.Vector{1}) {
		t.Errorf("Expected (1,0,0), got %v", pos)
	}
	if rt := s.CurrentRealtimePosition(); rt != s.out.Position {
		t.Errorf("Real-time position %v differs from the outputs %v", rt, s.out.Position)
	}
	if !s.IsIdle() || s.State() != 0 {
		t.Errorf("Expected idle, got %s", s.State())
	}
	if s.CurrentFeed() != 0 {
		t.Errorf("Expected no feed at rest, got %f", s.CurrentFeed())
	}
	if s.Dropped() != 0 {
		t.Errorf("Expected no dropped ticks, got %d", s.Dropped())
	}
}

func TestQueueBackpressure(t *testing.T) {
	s := newSim(t, 4)

	for i := 1; i <= 4; i++ {
		if err := s.TrySubmitLine(motion.Vector{float64(i)}, planner.BlockData{Feed: 600}); err != nil {
			t.Fatalf("TrySubmitLine %d: %v", i, err)
		}
	}
	if err := s.TrySubmitLine(motion.Vector{5}, planner.BlockData{Feed: 600}); !errors.Is(err, planner.ErrQueueFull) {
		t.Fatalf("Expected ErrQueueFull, got %v", err)
	}

	// SubmitLine runs the loop until the queue drains enough
	ctx := context.Background()
	for i := 5; i <= 12; i++ {
		if err := s.SubmitLine(ctx, motion.Vector{float64(i)}, planner.BlockData{Feed: 600}); err != nil {
			t.Fatalf("SubmitLine %d: %v", i, err)
		}
		if s.QueueLen() > 4 {
			t.Fatalf("Queue grew to %d", s.QueueLen())
		}
	}
	s.sync(t)

	if s.x() != 12 {
		t.Errorf("Expected x=12, got %f", s.x())
	}
	if s.out.Pulses[motion.AxisX] != 2400 {
		t.Errorf("Expected 2400 pulses, got %d", s.out.Pulses[motion.AxisX])
	}
}

func TestSubmitLineHonorsContext(t *testing.T) {
	s := newSim(t, 2)
	s.FeedHold()
	s.TrySubmitLine(motion.Vector{1}, planner.BlockData{Feed: 600})
	s.TrySubmitLine(motion.Vector{2}, planner.BlockData{Feed: 600})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.SubmitLine(ctx, motion.Vector{3}, planner.BlockData{Feed: 600})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestFeedHoldAndResume(t *testing.T) {
	s := newSim(t, 0)
	if err := s.TrySubmitLine(motion.Vector{50}, planner.BlockData{Feed: 3000}); err != nil {
		t.Fatal(err)
	}

	s.until(t, 5000, func() bool { return s.x() > 10 })
	s.FeedHold()

	// stops within the move and releases the timer
	s.until(t, 5000, func() bool { return s.State()&core.ExecRun == 0 })
	held := s.CurrentRealtimePosition()
	if s.x() >= 50 {
		t.Fatalf("Hold overran the move: x=%f", s.x())
	}
	if s.IsQueueEmpty() {
		t.Fatal("Expected the rest of the move queued")
	}

	for i := 0; i < 200; i++ {
		s.tick()
	}
	if s.CurrentRealtimePosition() != held {
		t.Errorf("Machine moved during hold: %v -> %v", held, s.CurrentRealtimePosition())
	}
	if s.State()&core.ExecHold == 0 {
		t.Errorf("Expected HOLD, got %s", s.State())
	}

	s.Resume()
	s.sync(t)
	if s.x() != 50 {
		t.Errorf("Expected x=50 after resume, got %f", s.x())
	}
	if s.State() != 0 {
		t.Errorf("Expected IDLE, got %s", s.State())
	}
}

func TestAbort(t *testing.T) {
	s := newSim(t, 0)
	s.TrySubmitLine(motion.Vector{40, 20}, planner.BlockData{Feed: 2400})
	s.TrySubmitLine(motion.Vector{0, 40}, planner.BlockData{Feed: 2400})

	s.until(t, 5000, func() bool { return s.x() > 5 })
	s.Abort()

	if s.State()&core.ExecAlarm == 0 {
		t.Errorf("Expected ALARM, got %s", s.State())
	}
	if !s.IsIdle() {
		t.Error("Expected all motion discarded")
	}
	if err := s.TrySubmitLine(motion.Vector{}, planner.BlockData{Feed: 600}); !errors.Is(err, planner.ErrAlarm) {
		t.Errorf("Expected ErrAlarm, got %v", err)
	}

	stopped := s.CurrentRealtimePosition()
	for i := 0; i < 100; i++ {
		s.tick()
	}
	if s.CurrentRealtimePosition() != stopped {
		t.Error("Machine moved after abort")
	}

	// the next move starts from where the steps stopped
	s.ClearAlarm()
	if err := s.TrySubmitLine(motion.Vector{}, planner.BlockData{Feed: 2400}); err != nil {
		t.Fatal(err)
	}
	s.sync(t)
	if rt := s.CurrentRealtimePosition(); rt != (motion.Steps{}) {
		t.Errorf("Expected home, got %v", rt)
	}
	if s.out.Position != (motion.Steps{}) {
		t.Errorf("Outputs disagree: %v", s.out.Position)
	}
}

func TestDwell(t *testing.T) {
	s := newSim(t, 0)
	ctx := context.Background()

	if err := s.Dwell(ctx, 0); err != nil || !s.IsQueueEmpty() {
		t.Fatalf("Expected zero dwell to be a no-op, got %v", err)
	}

	start := s.sched.Now()
	if err := s.Dwell(ctx, 200*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	s.sync(t)

	elapsed := time.Duration(core.TimerToUS(s.sched.Now()-start)) * time.Microsecond
	if elapsed < 200*time.Millisecond {
		t.Errorf("Expected at least 200ms, got %v", elapsed)
	}
	if s.out.Total() != 0 {
		t.Errorf("Dwell stepped %d times", s.out.Total())
	}
}

func TestCurrentFeedAndOverride(t *testing.T) {
	s := newSim(t, 0)
	data := planner.BlockData{Feed: 1200, Flags: planner.FlagFeedOverride}
	if err := s.TrySubmitLine(motion.Vector{100}, data); err != nil {
		t.Fatal(err)
	}

	s.until(t, 5000, func() bool { return s.x() > 10 })
	if f := s.CurrentFeed(); !near(f, 1200, 1) {
		t.Errorf("Expected cruise at 1200mm/min, got %f", f)
	}

	s.SetFeedOverride(50)
	if s.Overrides().Feed != 50 {
		t.Errorf("Expected 50%%, got %d", s.Overrides().Feed)
	}
	for i := 0; i < 500; i++ {
		s.tick()
	}
	if f := s.CurrentFeed(); !near(f, 600, 1) {
		t.Errorf("Expected 600mm/min at 50%%, got %f", f)
	}

	s.sync(t)
	if s.x() != 100 {
		t.Errorf("Expected x=100, got %f", s.x())
	}
}

func TestSetPosition(t *testing.T) {
	s := newSim(t, 0)
	if err := s.SetPosition(motion.Vector{5, 5}); err != nil {
		t.Fatal(err)
	}
	if pos := s.CurrentPosition(); pos != (motion.Vector{5, 5}) {
		t.Errorf("Expected (5,5,0), got %v", pos)
	}

	s.TrySubmitLine(motion.Vector{6, 5}, planner.BlockData{Feed: 600})
	s.tick()
	if err := s.SetPosition(motion.Vector{}); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy while moving, got %v", err)
	}

	s.sync(t)
	if s.out.Pulses[motion.AxisX] != 200 || s.out.Pulses[motion.AxisY] != 0 {
		t.Errorf("Expected 200 X pulses only, got %v", s.out.Pulses)
	}
}

func TestLimitsRejected(t *testing.T) {
	s := newSim(t, 0)
	err := s.TrySubmitLine(motion.Vector{600}, planner.BlockData{Feed: 600})
	if !errors.Is(err, kinematics.ErrOutOfLimits) {
		t.Errorf("Expected ErrOutOfLimits, got %v", err)
	}
	if !s.IsQueueEmpty() {
		t.Error("Rejected move was queued")
	}
}
