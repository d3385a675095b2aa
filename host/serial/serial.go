// Package serial opens the PC end of the controller's UART link
package serial

import (
	"io"
	"time"
)

// Port is a serial connection to the controller. Tests substitute pipes.
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input and waits for pending output
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	Baud int

	// Read timeout, 0 blocks
	ReadTimeout time.Duration
}

// DefaultBaud is the controller UART rate
const DefaultBaud = 115200

// DefaultConfig returns the controller's line settings for device
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100 * time.Millisecond,
	}
}
