package serial

import (
	"bufio"
	"errors"
	"io"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyUSB0")
	if cfg.Device != "/dev/ttyUSB0" || cfg.Baud != 115200 {
		t.Errorf("Unexpected config %+v", cfg)
	}
	if cfg.ReadTimeout != 0 {
		t.Errorf("Expected blocking reads, got %dms", cfg.ReadTimeout)
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(nil); err == nil {
		t.Error("Expected error for nil config")
	}
	if _, err := Open(&Config{}); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Expected ErrNoDevice, got %v", err)
	}
}

type pipe struct {
	io.Reader
	io.Writer
}

func (pipe) Close() error { return nil }

func TestWrapStreamsLines(t *testing.T) {
	r, w := io.Pipe()
	port := Wrap(pipe{Reader: r, Writer: w})

	go func() {
		port.Write([]byte("10 0 0 600\ndwell 0.5\n"))
		w.Close()
	}()

	var lines []string
	sc := bufio.NewScanner(port)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if len(lines) != 2 || lines[1] != "dwell 0.5" {
		t.Errorf("Expected 2 lines, got %q", lines)
	}
	if err := port.Flush(); err != nil {
		t.Errorf("Expected no flush error, got %v", err)
	}
}
