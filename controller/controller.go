package controller

import (
	"context"
	"errors"
	"time"

	"cncmotion/config"
	"cncmotion/core"
	"cncmotion/hal"
	"cncmotion/interp"
	"cncmotion/kinematics"
	"cncmotion/motion"
	"cncmotion/planner"
	"cncmotion/tool"
)

// ErrBusy is returned by operations that need the machine at rest
var ErrBusy = errors.New("motion in progress")

// Options are the hardware bindings of a controller
type Options struct {
	// Output drives the step and direction lines (required)
	Output hal.StepOutput

	// Tool receives spindle updates, may be nil
	Tool tool.Output

	// Timer builds the step timer that paces the handler (required)
	Timer func(h core.StepHandler) core.StepTimer

	// Idle runs while a caller waits for queue space or for the machine to
	// drain. Defaults to a 1ms sleep.
	Idle func()
}

// Controller owns the planner, segment generator, segment ring and step
// callback of one machine. All methods except the step callback's run in the
// background loop and must not be called concurrently.
type Controller struct {
	cfg     *config.Machine
	exec    core.ExecFlags
	kin     kinematics.Kinematics
	planner *planner.Planner
	ring    *interp.SegmentRing
	interp  *interp.Interpolator
	stepper *interp.Stepper
	timer   core.StepTimer
	tool    tool.Output
	idle    func()
}

// New wires a controller for cfg
func New(cfg *config.Machine, opts Options) (*Controller, error) {
	if opts.Output == nil || opts.Timer == nil {
		return nil, errors.New("controller needs a step output and a timer")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	kin, err := kinematics.New(cfg)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:  cfg,
		kin:  kin,
		tool: opts.Tool,
		idle: opts.Idle,
	}
	if c.idle == nil {
		c.idle = func() { time.Sleep(time.Millisecond) }
	}

	var idleSteps uint8
	for i := 0; i < motion.MaxAxes; i++ {
		if a, ok := cfg.Axis(i); ok && a.InvertStep {
			idleSteps |= 1 << i
		}
	}

	c.planner = planner.New(cfg)
	c.ring = interp.NewSegmentRing(cfg.Motion.SegmentBufferSize)
	c.interp = interp.New(cfg, c.planner, kin, &c.exec, c.ring)
	c.planner.OnUpdate = c.interp.Update

	c.stepper = interp.NewStepper(c.ring, opts.Output, idleSteps)
	c.timer = opts.Timer(c.stepper)
	c.stepper.Attach(c.timer, opts.Tool)

	opts.Output.SetSteps(idleSteps)
	return c, nil
}

// TrySubmitLine queues a move to target without waiting. It returns
// planner.ErrQueueFull when the look-ahead queue is full.
func (c *Controller) TrySubmitLine(target motion.Vector, data planner.BlockData) error {
	if c.exec.Is(core.ExecAlarm) {
		return planner.ErrAlarm
	}
	if data.Dwell == 0 {
		if err := c.kin.CheckLimits(target); err != nil {
			return err
		}
	}
	return c.planner.AddLine(target, data)
}

// SubmitLine queues a move, running the background loop until the queue
// has room.
func (c *Controller) SubmitLine(ctx context.Context, target motion.Vector, data planner.BlockData) error {
	for {
		err := c.TrySubmitLine(target, data)
		if !errors.Is(err, planner.ErrQueueFull) {
			return err
		}
		if err := c.wait(ctx); err != nil {
			return err
		}
	}
}

// Dwell queues a pause at the current end position
func (c *Controller) Dwell(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return c.SubmitLine(ctx, c.planner.LastPosition(), planner.BlockData{Dwell: d})
}

// DoTasks is one background loop iteration: generate segments, start the
// step timer when work is pending, stop it once the ring ran dry.
func (c *Controller) DoTasks() {
	c.interp.Run()

	if c.timer.Running() && c.stepper.Finished() && c.ring.Empty() {
		c.stopTimer()
	}

	if !c.exec.Is(core.ExecHold|core.ExecAlarm|core.ExecRun) && !c.ring.Empty() {
		c.startTimer()
	}
}

func (c *Controller) startTimer() {
	c.stepper.Prime()
	seg := c.ring.Peek()
	if seg == nil {
		return
	}
	c.exec.Set(core.ExecRun)
	c.timer.Start(seg.TimerReload, seg.TimerPrescale)
}

func (c *Controller) stopTimer() {
	c.timer.Stop()
	c.exec.Clear(core.ExecRun)
	if c.planner.LaserMode() && c.tool != nil {
		c.tool.SetSpeed(tool.State{})
	}
}

// Sync runs the background loop until every queued move has been stepped
func (c *Controller) Sync(ctx context.Context) error {
	for {
		c.DoTasks()
		if c.IsIdle() {
			return nil
		}
		if err := c.wait(ctx); err != nil {
			return err
		}
	}
}

func (c *Controller) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.DoTasks()
	c.idle()
	return nil
}

// FeedHold decelerates to a stop inside the queued path
func (c *Controller) FeedHold() {
	if c.exec.Is(core.ExecHold) {
		return
	}
	c.exec.Set(core.ExecHold)
	c.interp.Update()
}

// Resume continues after a feed hold
func (c *Controller) Resume() {
	if !c.exec.Is(core.ExecHold) || c.exec.Is(core.ExecAlarm) {
		return
	}
	c.exec.Clear(core.ExecHold)
	c.planner.Recalculate()
}

// Abort stops immediately, raises the alarm and drops all queued motion.
// The real-time position stays where the steps left it.
func (c *Controller) Abort() {
	c.exec.Set(core.ExecAlarm)
	core.RecordTiming(core.EvtAbort, 0, 0, uint32(c.planner.Len()), uint32(c.ring.Len()))
	c.StopAndClear()
	core.DebugPrintln("alarm: motion aborted")
}

// ClearAlarm re-enables motion after an abort
func (c *Controller) ClearAlarm() {
	if c.exec.Is(core.ExecAlarm) {
		core.DebugPrintln("alarm cleared")
	}
	c.exec.Clear(core.ExecAlarm)
}

// Stop halts the step timer, keeping queued motion. The next DoTasks
// restarts it unless a hold or an alarm is active.
func (c *Controller) Stop() {
	c.stopTimer()
}

// StopAndClear halts the step timer and, once no tick is running, discards
// all queued motion
func (c *Controller) StopAndClear() {
	c.stopTimer()
	c.stepper.WaitIdle()

	c.ring.Clear()
	c.stepper.Clear()
	c.interp.Clear()
	c.planner.Clear()
	c.exec.Clear(core.ExecHold)

	rt := c.stepper.Position()
	c.interp.SyncSteps(rt)
	c.planner.SyncPosition(c.kin.ToPosition(rt))
}

// SetPosition redefines the current position without moving
func (c *Controller) SetPosition(pos motion.Vector) error {
	if !c.IsIdle() {
		return ErrBusy
	}
	steps := c.kin.ToSteps(pos)
	c.stepper.SetPosition(steps)
	c.interp.SyncSteps(steps)
	c.planner.SyncPosition(pos)
	return nil
}

// RequestRecalculation makes the generator re-plan the in-flight block
func (c *Controller) RequestRecalculation() {
	c.planner.Recalculate()
}

func (c *Controller) SetFeedOverride(pct int)    { c.planner.SetFeedOverride(pct) }
func (c *Controller) SetRapidOverride(pct int)   { c.planner.SetRapidOverride(pct) }
func (c *Controller) SetSpindleOverride(pct int) { c.planner.SetSpindleOverride(pct) }

// Overrides returns the current override state
func (c *Controller) Overrides() planner.Overrides {
	return c.planner.Overrides()
}

// CurrentRealtimePosition returns the actuator step counts
func (c *Controller) CurrentRealtimePosition() motion.Steps {
	return c.stepper.Position()
}

// CurrentPosition returns the machine position from the step counts
func (c *Controller) CurrentPosition() motion.Vector {
	return c.kin.ToPosition(c.stepper.Position())
}

// CurrentFeed returns the feed (mm/min) of the executing segment
func (c *Controller) CurrentFeed() float64 {
	if !c.exec.Is(core.ExecRun) {
		return 0
	}
	return c.interp.Feed()
}

// IsQueueEmpty reports whether no planned or generated motion is pending
func (c *Controller) IsQueueEmpty() bool {
	return c.planner.IsEmpty() && !c.interp.Busy() && c.ring.Empty()
}

// IsIdle reports whether the queue is empty and the step timer stopped
func (c *Controller) IsIdle() bool {
	return c.IsQueueEmpty() && !c.timer.Running()
}

// State returns the execution state flags
func (c *Controller) State() core.ExecState {
	return c.exec.Load()
}

// QueueLen returns the number of blocks in the look-ahead queue
func (c *Controller) QueueLen() int {
	return c.planner.Len()
}

// Dropped returns the number of step ticks lost to reentrancy
func (c *Controller) Dropped() uint32 {
	return c.stepper.Dropped()
}

// Config returns the machine configuration
func (c *Controller) Config() *config.Machine {
	return c.cfg
}
