package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"cncmotion/config"
	"cncmotion/controller"
	"cncmotion/core"
	"cncmotion/hal"
	"cncmotion/motion"
	"cncmotion/tool"
)

// session runs a simulated controller in virtual time
type session struct {
	ctl     *controller.Controller
	sched   *core.Scheduler
	out     *hal.Recorder
	spindle *tool.Recorder
	cfg     *config.Machine

	last   motion.Vector
	lineNo uint32
	moves  int
}

// newSession builds a virtual-time session. With gpio set, steps also go
// to gpio and the clock follows the wall clock.
func newSession(cfg *config.Machine, gpio hal.StepOutput) (*session, error) {
	var idle uint8
	for i := 0; i < motion.MaxAxes; i++ {
		if a, ok := cfg.Axis(i); ok && a.InvertStep {
			idle |= 1 << i
		}
	}

	s := &session{
		out:     hal.NewRecorder(idle),
		spindle: &tool.Recorder{},
		cfg:     cfg,
	}

	build := controller.NewSimulated
	var out hal.StepOutput = s.out
	if gpio != nil {
		build = controller.NewPaced
		out = hal.Tee{s.out, gpio}
	}
	ctl, sched, err := build(cfg, out, s.spindle)
	if err != nil {
		return nil, err
	}
	s.ctl = ctl
	s.sched = sched
	return s, nil
}

// parse turns an input line into a request relative to the last target
func (s *session) parse(line string) (controller.Request, bool, error) {
	s.lineNo++
	req, ok, err := controller.ParseRequest(line, s.last, s.cfg.DefaultFeed)
	if err != nil {
		return req, false, fmt.Errorf("line %d: %w", s.lineNo, err)
	}
	req.Data.Line = s.lineNo
	return req, ok, nil
}

// submit queues req, running virtual time while the queue is full
func (s *session) submit(ctx context.Context, req controller.Request) error {
	if err := s.ctl.SubmitLine(ctx, req.Target, req.Data); err != nil {
		return fmt.Errorf("line %d: %w", req.Data.Line, err)
	}
	s.accept(req)
	return nil
}

// trySubmit queues req without running the clock
func (s *session) trySubmit(req controller.Request) error {
	if err := s.ctl.TrySubmitLine(req.Target, req.Data); err != nil {
		return err
	}
	s.accept(req)
	return nil
}

func (s *session) accept(req controller.Request) {
	s.last = req.Target
	s.moves++
	if req.Data.Dwell > 0 {
		logLive("line %d: dwell %v", req.Data.Line, req.Data.Dwell)
		return
	}
	logLive("line %d: move to %.3f %.3f %.3f feed %.0f", req.Data.Line,
		req.Target[motion.AxisX], req.Target[motion.AxisY], req.Target[motion.AxisZ], req.Data.Feed)
}

// advance runs the background loop for d of virtual time
func (s *session) advance(d time.Duration) {
	end := s.sched.Now() + core.TimerFromUS(uint64(d/time.Microsecond))
	for s.sched.Now() < end {
		s.ctl.DoTasks()
		s.sched.Advance(min(s.sched.Now()+controller.SimQuantum, end))
	}
}

// elapsed returns the virtual time since start
func (s *session) elapsed() time.Duration {
	return time.Duration(core.TimerToUS(s.sched.Now())) * time.Microsecond
}

// abort stops and clears, and forgets the unexecuted targets
func (s *session) abort() {
	s.ctl.Abort()
	s.last = s.ctl.CurrentPosition()
}

func (s *session) report(w io.Writer) {
	pos := s.ctl.CurrentPosition()
	rt := s.ctl.CurrentRealtimePosition()

	fmt.Fprintf(w, "moves:    %d\n", s.moves)
	fmt.Fprintf(w, "time:     %v\n", s.elapsed())
	fmt.Fprintf(w, "state:    %s\n", s.ctl.State())
	for i, name := range motion.AxisNames {
		if _, ok := s.cfg.Axis(i); !ok {
			continue
		}
		fmt.Fprintf(w, "%-2s  pos %10.4f  steps %8d  pulses %8d\n", name, pos[i], rt[i], s.out.Pulses[i])
	}
	fmt.Fprintf(w, "spindle:  duty %d (%d changes)\n", s.spindle.Last.Duty, s.spindle.Changes)
	fmt.Fprintf(w, "dropped:  %d\n", s.ctl.Dropped())
}
