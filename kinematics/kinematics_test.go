package kinematics

import (
	"errors"
	"math"
	"testing"

	"cncmotion/config"
	"cncmotion/motion"
)

func TestCartesianRoundTrip(t *testing.T) {
	cfg := config.Default()
	k, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	pos := motion.Vector{10, -2.5, 1.0025}
	steps := k.ToSteps(pos)
	// x,y at 200 steps/mm, z at 400 steps/mm rounded to the nearest step
	want := motion.Steps{2000, -500, 401}
	if steps != want {
		t.Errorf("Expected %v, got %v", want, steps)
	}

	back := k.ToPosition(want)
	if math.Abs(back[0]-10) > 1e-9 || math.Abs(back[1]+2.5) > 1e-9 {
		t.Errorf("Expected (10,-2.5), got (%f,%f)", back[0], back[1])
	}

	names := k.AxisNames()
	if len(names) != 3 || names[0] != "x" || names[2] != "z" {
		t.Errorf("Unexpected axis names %v", names)
	}
}

func TestCoreXY(t *testing.T) {
	cfg := config.Default()
	cfg.Kinematics = "corexy"
	k, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	steps := k.ToSteps(motion.Vector{10, 0, 0})
	if steps[0] != 2000 || steps[1] != 2000 {
		t.Errorf("Pure X move should drive both motors equally, got %v", steps)
	}

	steps = k.ToSteps(motion.Vector{0, 10, 0})
	if steps[0] != 2000 || steps[1] != -2000 {
		t.Errorf("Pure Y move should drive motors in opposition, got %v", steps)
	}

	pos := k.ToPosition(motion.Steps{3000, 1000, 400})
	if math.Abs(pos[0]-10) > 1e-9 || math.Abs(pos[1]-5) > 1e-9 || math.Abs(pos[2]-1) > 1e-9 {
		t.Errorf("Expected (10,5,1), got (%f,%f,%f)", pos[0], pos[1], pos[2])
	}
}

func TestCheckLimits(t *testing.T) {
	k, err := New(config.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := k.CheckLimits(motion.Vector{100, 100, 0}); err != nil {
		t.Errorf("Expected position within limits, got %v", err)
	}
	if err := k.CheckLimits(motion.Vector{600, 0, 0}); !errors.Is(err, ErrOutOfLimits) {
		t.Errorf("Expected ErrOutOfLimits, got %v", err)
	}
}

func TestUnsupportedKinematics(t *testing.T) {
	cfg := config.Default()
	cfg.Kinematics = "delta"
	if _, err := New(cfg); err == nil {
		t.Error("Expected error for unsupported kinematics")
	}
}
