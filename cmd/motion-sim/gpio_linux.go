//go:build linux

package main

import (
	"cncmotion/config"
	"cncmotion/hal"
)

// openGPIO drives the configured BCM pins of a Raspberry Pi
func openGPIO(cfg *config.Machine) (hal.StepOutput, func() error, error) {
	out, err := hal.NewRPiOutput(cfg)
	if err != nil {
		return nil, nil, err
	}
	logInfo("driving %s outputs, idle mask %06b", out.Name(), out.IdleMask())
	return out, out.Close, nil
}
