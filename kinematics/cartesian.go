package kinematics

import (
	"errors"

	"cncmotion/config"
	"cncmotion/motion"
)

// Cartesian implements basic Cartesian kinematics (1:1 axis to actuator mapping)
type Cartesian struct {
	axes axisTable
}

// NewCartesian creates a new Cartesian kinematics instance
func NewCartesian(cfg *config.Machine) (*Cartesian, error) {
	if len(cfg.Axes) == 0 {
		return nil, errors.New("no axes configured")
	}
	return &Cartesian{axes: newAxisTable(cfg)}, nil
}

// ToSteps scales each axis by its steps/mm
func (k *Cartesian) ToSteps(pos motion.Vector) motion.Steps {
	var s motion.Steps
	for i := range pos {
		s[i] = toStep(pos[i], k.axes.stepsPerMM[i])
	}
	return s
}

// ToPosition is the inverse of ToSteps
func (k *Cartesian) ToPosition(steps motion.Steps) motion.Vector {
	var v motion.Vector
	for i := range steps {
		v[i] = fromStep(steps[i], k.axes.stepsPerMM[i])
	}
	return v
}

// CheckLimits validates that a position is within configured limits
func (k *Cartesian) CheckLimits(pos motion.Vector) error {
	return k.axes.checkLimits(pos)
}

// AxisNames returns the configured axis names in index order
func (k *Cartesian) AxisNames() []string {
	return k.axes.names
}
