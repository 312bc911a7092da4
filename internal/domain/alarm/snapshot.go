package alarm

import (
	"slices"
	"time"
)

// Snapshot is the complete panel state at a specific point in time.
type Snapshot struct {
	// AlarmStatus is the current escalation level.
	AlarmStatus AlarmStatus
	// ArmingStatus is the current arming mode.
	ArmingStatus ArmingStatus
	// Sensors are the registered sensors ordered by name and type.
	Sensors []Sensor
	// CatDetected is the verdict of the most recently processed camera image.
	CatDetected bool
	// UpdatedAt is when the state last changed.
	UpdatedAt time.Time
}

// DefaultSnapshot is the state of a freshly installed panel.
func DefaultSnapshot() *Snapshot {
	return &Snapshot{
		AlarmStatus:  NoAlarm,
		ArmingStatus: Disarmed,
	}
}

// Clone returns a copy of the snapshot to avoid leaking internal references.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	return &Snapshot{
		AlarmStatus:  s.AlarmStatus,
		ArmingStatus: s.ArmingStatus,
		Sensors:      slices.Clone(s.Sensors),
		CatDetected:  s.CatDetected,
		UpdatedAt:    s.UpdatedAt,
	}
}

// ActiveSensors returns the number of active sensors.
func (s *Snapshot) ActiveSensors() int {
	count := 0

	for _, sensor := range s.Sensors {
		if sensor.Active {
			count++
		}
	}

	return count
}

// SortSensors orders sensors in place by name, then by type.
func SortSensors(sensors []Sensor) {
	slices.SortFunc(sensors, func(a, b Sensor) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})
}
