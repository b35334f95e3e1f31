//go:build !linux

package main

import (
	"errors"

	"cncmotion/config"
	"cncmotion/hal"
)

func openGPIO(cfg *config.Machine) (hal.StepOutput, func() error, error) {
	return nil, nil, errors.New("-gpio needs a Raspberry Pi running linux")
}
