//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads lines from hardware using the Linux GPIO character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
}

// NewRealReader requests every line as an input on the named chip.
// Active-low lines get a pull-up so an open contact reads inactive.
func NewRealReader(chipName string, lines []Line) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealReader{chip: chip}

	for _, l := range lines {
		options := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullDown}
		if l.ActiveLow {
			options = []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.AsActiveLow, gpiocdev.WithPullUp}
		}

		line, err := chip.RequestLine(l.Offset, options...)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("request line %d: %w", l.Offset, err)
		}

		r.lines = append(r.lines, line)
	}

	return r, nil
}

// Read returns the logical value of each line.
func (r *RealReader) Read() ([]bool, error) {
	values := make([]bool, len(r.lines))

	for i, line := range r.lines {
		v, err := line.Value()
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line.Offset(), err)
		}

		values[i] = v == 1
	}

	return values, nil
}

// Close releases all lines and the chip.
func (r *RealReader) Close() error {
	var errs []error

	for _, line := range r.lines {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", line.Offset(), err))
		}
	}

	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
