package alarm

import (
	"errors"
	"fmt"
	"strings"
)

// ArmingStatus is the mode the panel is armed in.
type ArmingStatus string

const (
	// Disarmed ignores every sensor and camera event.
	Disarmed ArmingStatus = "DISARMED"
	// ArmedHome reacts to sensors and to the camera.
	ArmedHome ArmingStatus = "ARMED_HOME"
	// ArmedAway reacts to sensors only.
	ArmedAway ArmingStatus = "ARMED_AWAY"
)

// AlarmStatus is the escalation level derived by the engine.
//
//nolint:revive // alarm.AlarmStatus reads naturally next to alarm.ArmingStatus.
type AlarmStatus string

const (
	// NoAlarm means nothing suspicious is going on.
	NoAlarm AlarmStatus = "NO_ALARM"
	// PendingAlarm means one sensor fired while armed.
	PendingAlarm AlarmStatus = "PENDING_ALARM"
	// Alarm means the alarm is sounding.
	Alarm AlarmStatus = "ALARM"
)

var (
	// ErrUnknownArmingStatus is returned when a string is not a known arming status.
	ErrUnknownArmingStatus = errors.New("unknown arming status")
	// ErrUnknownAlarmStatus is returned when a string is not a known alarm status.
	ErrUnknownAlarmStatus = errors.New("unknown alarm status")
)

// ParseArmingStatus converts user input such as "armed_home", "home" or "away".
func ParseArmingStatus(s string) (ArmingStatus, error) {
	switch normalize(s) {
	case "DISARMED", "DISARM", "OFF":
		return Disarmed, nil
	case "ARMED_HOME", "HOME":
		return ArmedHome, nil
	case "ARMED_AWAY", "AWAY":
		return ArmedAway, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrUnknownArmingStatus)
	}
}

// Valid reports whether the value is one of the declared constants.
func (s ArmingStatus) Valid() bool {
	switch s {
	case Disarmed, ArmedHome, ArmedAway:
		return true
	default:
		return false
	}
}

// Armed reports whether sensor and camera events may escalate.
func (s ArmingStatus) Armed() bool {
	return s == ArmedHome || s == ArmedAway
}

// String implements fmt.Stringer.
func (s ArmingStatus) String() string {
	return string(s)
}

// Description returns the text shown on the control panel.
func (s ArmingStatus) Description() string {
	switch s {
	case Disarmed:
		return "Disarmed"
	case ArmedHome:
		return "Armed - At Home"
	case ArmedAway:
		return "Armed - Away"
	default:
		return "Unknown"
	}
}

// ParseAlarmStatus converts user input such as "pending_alarm" or "alarm".
func ParseAlarmStatus(s string) (AlarmStatus, error) {
	switch normalize(s) {
	case "NO_ALARM", "NONE":
		return NoAlarm, nil
	case "PENDING_ALARM", "PENDING":
		return PendingAlarm, nil
	case "ALARM":
		return Alarm, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrUnknownAlarmStatus)
	}
}

// Valid reports whether the value is one of the declared constants.
func (s AlarmStatus) Valid() bool {
	switch s {
	case NoAlarm, PendingAlarm, Alarm:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (s AlarmStatus) String() string {
	return string(s)
}

// Description returns the text shown on the display panel.
func (s AlarmStatus) Description() string {
	switch s {
	case NoAlarm:
		return "Cool and Good"
	case PendingAlarm:
		return "I'm in Danger..."
	case Alarm:
		return "Awooga!"
	default:
		return "Unknown"
	}
}

// normalize upper-cases input and turns dashes and spaces into underscores.
func normalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))

	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}
