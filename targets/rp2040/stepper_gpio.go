//go:build rp2040

package main

import (
	"device/arm"
	"device/rp"
	"machine"

	"cncmotion/config"
	"cncmotion/motion"
)

// SIOOutput drives all step and direction lines through the single-cycle
// I/O block, so every axis changes in one register write.
type SIOOutput struct {
	step      [motion.MaxAxes]uint32 // GPIO masks per actuator
	dir       [motion.MaxAxes]uint32
	stepAll   uint32
	dirAll    uint32
	invertDir motion.DirBits
}

// NewSIOOutput configures the step/dir pins of every configured axis
func NewSIOOutput(cfg *config.Machine) *SIOOutput {
	o := &SIOOutput{}
	var idle uint8
	for i := 0; i < motion.MaxAxes; i++ {
		a, ok := cfg.Axis(i)
		if !ok {
			continue
		}
		for _, pin := range []int{a.StepPin, a.DirPin} {
			machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinOutput})
		}
		if a.EnablePin != 0 {
			en := machine.Pin(a.EnablePin)
			en.Configure(machine.PinConfig{Mode: machine.PinOutput})
			// drivers enable on low unless inverted
			en.Set(a.InvertEnable)
		}

		o.step[i] = 1 << a.StepPin
		o.dir[i] = 1 << a.DirPin
		o.stepAll |= o.step[i]
		o.dirAll |= o.dir[i]
		if a.InvertStep {
			idle |= 1 << i
		}
		if a.InvertDir {
			o.invertDir |= 1 << i
		}
	}

	o.SetSteps(idle)
	o.SetDirs(0)
	return o
}

func (o *SIOOutput) masks(bits uint8, table *[motion.MaxAxes]uint32) uint32 {
	var m uint32
	for i := 0; i < motion.MaxAxes; i++ {
		if bits&(1<<i) != 0 {
			m |= table[i]
		}
	}
	return m
}

func (o *SIOOutput) SetSteps(mask uint8) {
	high := o.masks(mask, &o.step)
	rp.SIO.GPIO_OUT_SET.Set(high)
	rp.SIO.GPIO_OUT_CLR.Set(o.stepAll &^ high)
}

func (o *SIOOutput) ToggleSteps(mask uint8) {
	rp.SIO.GPIO_OUT_XOR.Set(o.masks(mask, &o.step))
}

// SetDirs writes the direction lines and waits out the dir-to-step
// setup time (20ns minimum for TMC drivers)
func (o *SIOOutput) SetDirs(dirs motion.DirBits) {
	high := o.masks(uint8(dirs^o.invertDir), &o.dir)
	rp.SIO.GPIO_OUT_SET.Set(high)
	rp.SIO.GPIO_OUT_CLR.Set(o.dirAll &^ high)

	// 3 NOPs = ~24ns @ 125MHz
	arm.Asm("nop\nnop\nnop")
}

func (o *SIOOutput) Name() string {
	return "SIO"
}
