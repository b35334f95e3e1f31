package serial

import (
	"io"
)

// Port is a serial link that streams motion requests to the host tools.
// Implementations:
// - Native serial (using github.com/tarm/serial)
// - any io.ReadWriteCloser wrapped with Wrap, for pipes and tests
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate, ignored by USB CDC devices
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the line-oriented defaults used by motion-sim.
// Reads block so a line scanner never sees empty reads.
func DefaultConfig(device string) *Config {
	return &Config{
		Device: device,
		Baud:   115200,
	}
}

type wrapped struct {
	io.ReadWriteCloser
}

func (wrapped) Flush() error { return nil }

// Wrap adapts a stream to Port
func Wrap(rwc io.ReadWriteCloser) Port {
	return wrapped{rwc}
}
