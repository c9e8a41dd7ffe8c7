//go:build !linux

package gpio

import (
	"context"
	"errors"

	"github.com/htbalar/vehicle-safety/internal/config"
)

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// Probe returns an error on non-Linux platforms.
func Probe(_ context.Context, _ string, _ []config.GPIOLine) (*RealReader, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read() ([]Reading, error) {
	return nil, errors.New("gpio: not supported")
}

// Contacts returns nothing on non-Linux platforms.
func (r *RealReader) Contacts() []Contact {
	return nil
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}
