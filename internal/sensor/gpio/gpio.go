// Package gpio samples wired sensors connected to GPIO lines and reports
// their readings to the panel.
//
// The real reader uses the Linux GPIO character device; other platforms get
// a stub that always fails. FakeReader replays scripted samples for tests.
package gpio

// Line is a chip line feeding a sensor.
type Line struct {
	// Offset is the line number on the chip.
	Offset int
	// ActiveLow inverts the reading: a low level means the sensor is active.
	ActiveLow bool
}

// Reader reads the logical level of every requested line.
type Reader interface {
	// Read returns one value per line, in request order. True means active.
	Read() ([]bool, error)

	// Close releases GPIO resources.
	Close() error
}
