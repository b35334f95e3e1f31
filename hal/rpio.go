//go:build linux

package hal

import (
	"fmt"

	"cncmotion/config"
	"cncmotion/motion"

	"github.com/stianeikeland/go-rpio/v4"
)

// RPiOutput drives step/dir lines on Raspberry Pi BCM pins through go-rpio.
// Requires /dev/gpiomem access or root.
type RPiOutput struct {
	step       [motion.MaxAxes]rpio.Pin
	dir        [motion.MaxAxes]rpio.Pin
	used       uint8
	invertStep uint8
	invertDir  motion.DirBits
}

// NewRPiOutput maps the configured axes to output pins and drives them idle
func NewRPiOutput(cfg *config.Machine) (*RPiOutput, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}

	o := &RPiOutput{}
	for i := 0; i < motion.MaxAxes; i++ {
		a, ok := cfg.Axis(i)
		if !ok {
			continue
		}
		o.used |= 1 << i
		if a.InvertStep {
			o.invertStep |= 1 << i
		}
		if a.InvertDir {
			o.invertDir |= 1 << i
		}
		o.step[i] = rpio.Pin(a.StepPin)
		o.dir[i] = rpio.Pin(a.DirPin)
		o.step[i].Output()
		o.dir[i].Output()
		if a.EnablePin != 0 {
			en := rpio.Pin(a.EnablePin)
			en.Output()
			// drivers enable on low unless inverted
			if a.InvertEnable {
				en.High()
			} else {
				en.Low()
			}
		}
	}

	o.SetSteps(o.invertStep)
	o.SetDirs(0)
	return o, nil
}

// IdleMask returns the step levels that mean "no pulse"
func (o *RPiOutput) IdleMask() uint8 {
	return o.invertStep
}

func (o *RPiOutput) SetSteps(mask uint8) {
	for i := 0; i < motion.MaxAxes; i++ {
		if o.used&(1<<i) == 0 {
			continue
		}
		if mask&(1<<i) != 0 {
			o.step[i].High()
		} else {
			o.step[i].Low()
		}
	}
}

func (o *RPiOutput) ToggleSteps(mask uint8) {
	mask &= o.used
	for i := 0; i < motion.MaxAxes; i++ {
		if mask&(1<<i) != 0 {
			o.step[i].Toggle()
		}
	}
}

func (o *RPiOutput) SetDirs(dirs motion.DirBits) {
	dirs ^= o.invertDir
	for i := 0; i < motion.MaxAxes; i++ {
		if o.used&(1<<i) == 0 {
			continue
		}
		if dirs.Has(i) {
			o.dir[i].High()
		} else {
			o.dir[i].Low()
		}
	}
}

func (o *RPiOutput) Name() string {
	return "rpio"
}

// Close returns all used pins to inputs and unmaps GPIO memory
func (o *RPiOutput) Close() error {
	for i := 0; i < motion.MaxAxes; i++ {
		if o.used&(1<<i) == 0 {
			continue
		}
		o.step[i].Input()
		o.dir[i].Input()
	}
	return rpio.Close()
}
