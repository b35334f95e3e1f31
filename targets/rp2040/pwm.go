//go:build rp2040

package main

import (
	"machine"

	"cncmotion/tool"
)

// pwmPeripheral abstracts over TinyGo's unexported *pwmGroup type
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

// SpindlePWM drives the spindle or laser from the tool state of each segment
type SpindlePWM struct {
	pwm     pwmPeripheral
	channel uint8
	dir     machine.Pin
}

// NewSpindlePWM configures pin for PWM at the given frequency and dirPin as
// the M3/M4 direction output.
func NewSpindlePWM(pin, dirPin machine.Pin, freq uint64) (*SpindlePWM, error) {
	pwm := pwmSlice(uint8((uint32(pin) >> 1) & 0x7))
	if err := pwm.Configure(machine.PWMConfig{Period: 1e9 / freq}); err != nil {
		return nil, err
	}
	channel, err := pwm.Channel(pin)
	if err != nil {
		return nil, err
	}

	dirPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	dirPin.Low()

	s := &SpindlePWM{pwm: pwm, channel: channel, dir: dirPin}
	s.SetSpeed(tool.State{})
	return s, nil
}

// SetSpeed scales the 0-255 duty to the slice's counter top
func (s *SpindlePWM) SetSpeed(st tool.State) {
	s.dir.Set(st.Invert)
	s.pwm.Set(s.channel, uint32(st.Duty)*s.pwm.Top()/255)
}

// pwmSlice maps GPIO N to slice (N >> 1) & 7
func pwmSlice(slice uint8) pwmPeripheral {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}
