//go:build !linux

package gpio

import "errors"

// ErrUnsupported is returned on platforms without the GPIO character device.
var ErrUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns ErrUnsupported on non-Linux platforms.
func NewRealReader(string, []Line) (*RealReader, error) {
	return nil, ErrUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read() ([]bool, error) {
	return nil, ErrUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}
