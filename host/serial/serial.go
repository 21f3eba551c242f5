// Package serial opens the serial port the bridge firmware is reached on.
package serial

import (
	"io"
	"time"
)

// Port is the byte stream to the bridge. Besides the native implementation
// anything satisfying io.ReadWriteCloser works, which is how the tests and
// the simulated bridge plug in.
type Port interface {
	io.ReadWriteCloser
}

// Config holds serial port settings.
type Config struct {
	Device string

	// Baud rate; ignored by USB CDC ports.
	Baud int

	// ReadTimeout bounds a single read so the reader can notice Close.
	ReadTimeout time.Duration
}

// DefaultConfig returns settings matching the bridge firmware's UART.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}
