package controller

import (
	"context"
	"testing"
	"time"

	"cncmotion/config"
	"cncmotion/hal"
	"cncmotion/motion"
	"cncmotion/planner"
)

func TestPacedFollowsWallClock(t *testing.T) {
	out := hal.NewRecorder(0)
	c, sched, err := NewPaced(config.Default(), out, nil)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := c.TrySubmitLine(motion.Vector{0.5}, planner.BlockData{Feed: 600}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Sync(ctx); err != nil {
		t.Fatal(err)
	}

	// 0.5mm at 10mm/s with 100mm/s² takes over 50ms
	if time.Since(start) < 50*time.Millisecond {
		t.Errorf("Expected wall clock pacing, took %v", time.Since(start))
	}
	if sched.Now() == 0 || out.Pulses[motion.AxisX] != 100 {
		t.Errorf("Expected 100 pulses, got %d", out.Pulses[motion.AxisX])
	}
}
