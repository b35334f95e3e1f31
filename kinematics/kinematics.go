package kinematics

import (
	"errors"
	"fmt"
	"math"

	"cncmotion/config"
	"cncmotion/motion"
)

// ErrOutOfLimits is returned by CheckLimits for targets outside the travel envelope
var ErrOutOfLimits = errors.New("position out of limits")

// Kinematics defines the interface for coordinate transformations
type Kinematics interface {
	// ToSteps converts a Cartesian position to actuator step counts
	ToSteps(pos motion.Vector) motion.Steps

	// ToPosition converts actuator step counts back to a Cartesian position
	ToPosition(steps motion.Steps) motion.Vector

	// CheckLimits validates that a position is within configured limits
	CheckLimits(pos motion.Vector) error

	// AxisNames returns the names of axes controlled by this kinematics
	AxisNames() []string
}

// AxisLimits represents position limits for an axis
type AxisLimits struct {
	Min float64
	Max float64
}

// New selects the kinematics named by cfg.Kinematics
func New(cfg *config.Machine) (Kinematics, error) {
	switch cfg.Kinematics {
	case "", "cartesian":
		return NewCartesian(cfg)
	case "corexy":
		return NewCoreXY(cfg)
	}
	return nil, fmt.Errorf("unsupported kinematics: %s", cfg.Kinematics)
}

// axisTable is the per-axis data shared by the implementations
type axisTable struct {
	names      []string
	configured [motion.MaxAxes]bool
	stepsPerMM motion.Vector
	limits     [motion.MaxAxes]AxisLimits
}

func newAxisTable(cfg *config.Machine) axisTable {
	var t axisTable
	for i := 0; i < motion.MaxAxes; i++ {
		a, ok := cfg.Axis(i)
		if !ok {
			continue
		}
		t.names = append(t.names, motion.AxisNames[i])
		t.configured[i] = true
		t.stepsPerMM[i] = a.StepsPerMM
		t.limits[i] = AxisLimits{Min: a.MinPosition, Max: a.MaxPosition}
	}
	return t
}

func (t *axisTable) checkLimits(pos motion.Vector) error {
	for i := 0; i < motion.MaxAxes; i++ {
		if !t.configured[i] {
			continue
		}
		if pos[i] < t.limits[i].Min || pos[i] > t.limits[i].Max {
			return fmt.Errorf("%w: %s=%.3f", ErrOutOfLimits, motion.AxisNames[i], pos[i])
		}
	}
	return nil
}

// toStep rounds to the nearest step
func toStep(mm, stepsPerMM float64) int32 {
	return int32(math.Round(mm * stepsPerMM))
}

func fromStep(steps int32, stepsPerMM float64) float64 {
	if stepsPerMM == 0 {
		return 0
	}
	return float64(steps) / stepsPerMM
}
