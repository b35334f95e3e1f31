package tool

import (
	"math"

	"cncmotion/config"
)

// MinDuty is the smallest duty emitted for a running spindle
const MinDuty = 1

// State is the spindle output snapshot carried by each execution segment
type State struct {
	Duty   uint8 // 0-255
	Invert bool  // counter-clockwise (M4)
}

// Output drives the physical spindle / laser
type Output interface {
	SetSpeed(st State)
}

// Spindle converts a requested rpm into a PWM duty against the configured range
type Spindle struct {
	MinRPM    float64
	MaxRPM    float64
	LaserMode bool
}

// NewSpindle creates a spindle converter from tool settings
func NewSpindle(cfg config.ToolConfig) *Spindle {
	return &Spindle{
		MinRPM:    cfg.SpindleMinRPM,
		MaxRPM:    cfg.SpindleMaxRPM,
		LaserMode: cfg.LaserMode,
	}
}

// Duty converts rpm to an output state. Negative rpm selects the inverted
// direction. In laser mode an inverted spindle is scaled by throttle (0-1) so
// power follows the instantaneous feed. overridePct is applied when not 100.
func (s *Spindle) Duty(rpm, throttle float64, overridePct uint8) State {
	if rpm == 0 || s.MaxRPM <= 0 {
		return State{}
	}

	st := State{Invert: rpm < 0}
	rpm = math.Abs(rpm)

	if s.LaserMode && st.Invert {
		rpm *= math.Min(math.Max(throttle, 0), 1)
	}
	if overridePct != 100 {
		rpm = 0.01 * float64(overridePct) * rpm
	}

	rpm = math.Min(rpm, s.MaxRPM)
	rpm = math.Max(rpm, s.MinRPM)

	duty := uint8(math.Trunc(255 * (rpm / s.MaxRPM)))
	if duty < MinDuty {
		duty = MinDuty
	}
	st.Duty = duty
	return st
}

// Recorder is an Output that keeps the last state and counts changes
type Recorder struct {
	Last    State
	Changes int
}

func (r *Recorder) SetSpeed(st State) {
	if st != r.Last {
		r.Changes++
	}
	r.Last = st
}
