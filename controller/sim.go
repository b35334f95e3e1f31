package controller

import (
	"time"

	"cncmotion/config"
	"cncmotion/core"
	"cncmotion/hal"
	"cncmotion/tool"
)

// SimQuantum is how far the simulated clock moves per idle call (1ms)
const SimQuantum = core.TimerFreq / 1000

func softTimer(sched *core.Scheduler) func(core.StepHandler) core.StepTimer {
	return func(h core.StepHandler) core.StepTimer {
		return core.NewSoftStepTimer(sched, h)
	}
}

// NewSimulated builds a controller whose step timer runs on a Scheduler in
// virtual time. Waiting callers advance the clock by SimQuantum.
func NewSimulated(cfg *config.Machine, out hal.StepOutput, tl tool.Output) (*Controller, *core.Scheduler, error) {
	sched := core.NewScheduler()
	c, err := New(cfg, Options{
		Output: out,
		Tool:   tl,
		Timer:  softTimer(sched),
		Idle: func() {
			sched.Advance(sched.Now() + SimQuantum)
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return c, sched, nil
}

// NewPaced is NewSimulated with the scheduler clock following the wall
// clock, for driving real outputs from a host. Pulses are released in 1ms
// bursts, so it only suits slow machines and bench tests.
func NewPaced(cfg *config.Machine, out hal.StepOutput, tl tool.Output) (*Controller, *core.Scheduler, error) {
	sched := core.NewScheduler()
	start := time.Now()
	c, err := New(cfg, Options{
		Output: out,
		Tool:   tl,
		Timer:  softTimer(sched),
		Idle: func() {
			time.Sleep(time.Millisecond)
			sched.Advance(core.TimerFromUS(uint64(time.Since(start) / time.Microsecond)))
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return c, sched, nil
}
