package alarm

import (
	"errors"
	"fmt"
	"strings"
)

// SensorType is the kind of physical sensor.
type SensorType string

const (
	// Door is a contact sensor on a door.
	Door SensorType = "DOOR"
	// Window is a contact sensor on a window.
	Window SensorType = "WINDOW"
	// Motion is a passive infrared motion detector.
	Motion SensorType = "MOTION"
)

// ErrUnknownSensorType is returned when a string is not a known sensor type.
var ErrUnknownSensorType = errors.New("unknown sensor type")

// ParseSensorType converts case-insensitive input into a SensorType.
func ParseSensorType(s string) (SensorType, error) {
	t := SensorType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%q: %w", s, ErrUnknownSensorType)
	}

	return t, nil
}

// Valid reports whether the value is one of the declared constants.
func (t SensorType) Valid() bool {
	switch t {
	case Door, Window, Motion:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (t SensorType) String() string {
	return string(t)
}

// SensorKey identifies a sensor. Two sensors with the same key are the same logical sensor.
type SensorKey struct {
	Name string
	Type SensorType
}

// String renders the key as "name (TYPE)".
func (k SensorKey) String() string {
	return fmt.Sprintf("%s (%s)", k.Name, k.Type)
}

// Sensor is a physical sensor registered in the panel.
type Sensor struct {
	// Name is the human-readable label, e.g. "Front door".
	Name string
	// Type is the kind of sensor.
	Type SensorType
	// Active is true when the door or window is open or motion is seen.
	Active bool
}

// NewSensor returns an inactive sensor.
func NewSensor(name string, sensorType SensorType) Sensor {
	return Sensor{
		Name: name,
		Type: sensorType,
	}
}

// Key returns the identity of the sensor.
func (s Sensor) Key() SensorKey {
	return SensorKey{
		Name: s.Name,
		Type: s.Type,
	}
}

// Less orders sensors by name, then by type.
func (s Sensor) Less(other Sensor) bool {
	if s.Name != other.Name {
		return s.Name < other.Name
	}

	return s.Type < other.Type
}
