package kinematics

import (
	"errors"

	"cncmotion/config"
	"cncmotion/motion"
)

// CoreXY couples the X and Y motors: A = X+Y, B = X-Y.
// Remaining axes map 1:1. Motor A uses the X steps/mm, motor B the Y steps/mm.
type CoreXY struct {
	axes axisTable
}

// NewCoreXY creates a CoreXY kinematics instance
func NewCoreXY(cfg *config.Machine) (*CoreXY, error) {
	if _, ok := cfg.Axes["x"]; !ok {
		return nil, errors.New("X axis not configured")
	}
	if _, ok := cfg.Axes["y"]; !ok {
		return nil, errors.New("Y axis not configured")
	}
	return &CoreXY{axes: newAxisTable(cfg)}, nil
}

func (k *CoreXY) ToSteps(pos motion.Vector) motion.Steps {
	var s motion.Steps
	s[motion.AxisX] = toStep(pos[motion.AxisX]+pos[motion.AxisY], k.axes.stepsPerMM[motion.AxisX])
	s[motion.AxisY] = toStep(pos[motion.AxisX]-pos[motion.AxisY], k.axes.stepsPerMM[motion.AxisY])
	for i := motion.AxisZ; i < motion.MaxAxes; i++ {
		s[i] = toStep(pos[i], k.axes.stepsPerMM[i])
	}
	return s
}

func (k *CoreXY) ToPosition(steps motion.Steps) motion.Vector {
	var v motion.Vector
	a := fromStep(steps[motion.AxisX], k.axes.stepsPerMM[motion.AxisX])
	b := fromStep(steps[motion.AxisY], k.axes.stepsPerMM[motion.AxisY])
	v[motion.AxisX] = (a + b) / 2
	v[motion.AxisY] = (a - b) / 2
	for i := motion.AxisZ; i < motion.MaxAxes; i++ {
		v[i] = fromStep(steps[i], k.axes.stepsPerMM[i])
	}
	return v
}

func (k *CoreXY) CheckLimits(pos motion.Vector) error {
	return k.axes.checkLimits(pos)
}

func (k *CoreXY) AxisNames() []string {
	return k.axes.names
}
