package hal

import (
	"testing"

	"cncmotion/motion"
)

func TestRecorderCountsPulses(t *testing.T) {
	r := NewRecorder(0)

	r.SetDirs(1 << motion.AxisY)
	for i := 0; i < 3; i++ {
		r.ToggleSteps(0b011)
		r.SetSteps(0)
	}

	if r.Pulses[0] != 3 || r.Pulses[1] != 3 || r.Pulses[2] != 0 {
		t.Errorf("Unexpected pulse counts %v", r.Pulses)
	}
	if r.Position[0] != 3 || r.Position[1] != -3 {
		t.Errorf("Expected position (3,-3), got (%d,%d)", r.Position[0], r.Position[1])
	}
	if r.Total() != 6 {
		t.Errorf("Expected 6 pulses total, got %d", r.Total())
	}
}

func TestRecorderInvertedIdle(t *testing.T) {
	// step lines idle high
	r := NewRecorder(0b001)

	r.ToggleSteps(0b001) // high -> low: pulse
	r.ToggleSteps(0b001) // low -> high: trailing edge
	r.ToggleSteps(0b001)
	r.SetSteps(0b001)

	if r.Pulses[0] != 2 {
		t.Errorf("Expected 2 pulses, got %d", r.Pulses[0])
	}
}

func TestRecorderDirChanges(t *testing.T) {
	r := NewRecorder(0)
	r.SetDirs(0b10)
	r.SetDirs(0b10)
	r.SetDirs(0)
	if r.DirChanges != 2 {
		t.Errorf("Expected 2 direction changes, got %d", r.DirChanges)
	}
	if r.Dirs() != 0 {
		t.Errorf("Expected dirs 0, got %08b", r.Dirs())
	}
}

func TestTeeFansOut(t *testing.T) {
	a, b := NewRecorder(0), NewRecorder(0)
	tee := Tee{a, b}

	tee.SetDirs(1 << motion.AxisX)
	tee.ToggleSteps(0b001)
	tee.SetSteps(0)

	for _, r := range []*Recorder{a, b} {
		if r.Pulses[0] != 1 || r.Position[0] != -1 {
			t.Errorf("Expected one reverse pulse, got %d at %d", r.Pulses[0], r.Position[0])
		}
	}
	if tee.Name() != "tee+recorder+recorder" {
		t.Errorf("Unexpected name %q", tee.Name())
	}
}
