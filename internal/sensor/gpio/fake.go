package gpio

import (
	"errors"
	"slices"
	"sync"
)

// errNoSamples is returned when a FakeReader has nothing to replay.
var errNoSamples = errors.New("no samples configured")

// FakeReader is a test double that returns scripted line values.
type FakeReader struct {
	mu sync.Mutex

	// samples are consumed one per Read; the last one repeats.
	samples [][]bool
	index   int
	closed  bool

	// ReadError, if set, will be returned by Read().
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples ...[]bool) *FakeReader {
	return &FakeReader{samples: samples}
}

// Read returns the next scripted sample.
func (f *FakeReader) Read() ([]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return nil, f.ReadError
	}

	if len(f.samples) == 0 {
		return nil, errNoSamples
	}

	sample := f.samples[f.index]
	if f.index < len(f.samples)-1 {
		f.index++
	}

	return slices.Clone(sample), nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true

	return nil
}

// Closed reports whether Close was called.
func (f *FakeReader) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}
