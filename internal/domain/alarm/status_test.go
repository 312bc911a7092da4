package alarm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseArmingStatus verifies accepted spellings and rejection of unknown input.
func TestParseArmingStatus(t *testing.T) {
	t.Parallel()

	cases := map[string]ArmingStatus{
		"DISARMED":   Disarmed,
		"disarm":     Disarmed,
		"armed_home": ArmedHome,
		"Armed-Home": ArmedHome,
		" home ":     ArmedHome,
		"away":       ArmedAway,
		"ARMED AWAY": ArmedAway,
	}
	for s, want := range cases {
		got, err := ParseArmingStatus(s)
		require.NoError(t, err, s)
		require.Equal(t, want, got, s)
	}

	_, err := ParseArmingStatus("vacation")
	require.ErrorIs(t, err, ErrUnknownArmingStatus)
}

// TestParseAlarmStatus verifies accepted spellings and rejection of unknown input.
func TestParseAlarmStatus(t *testing.T) {
	t.Parallel()

	got, err := ParseAlarmStatus("pending")
	require.NoError(t, err)
	require.Equal(t, PendingAlarm, got)

	got, err = ParseAlarmStatus("no-alarm")
	require.NoError(t, err)
	require.Equal(t, NoAlarm, got)

	_, err = ParseAlarmStatus("siren")
	require.ErrorIs(t, err, ErrUnknownAlarmStatus)
}

// TestStatusHelpers checks Armed, Valid and the panel descriptions.
func TestStatusHelpers(t *testing.T) {
	t.Parallel()

	require.False(t, Disarmed.Armed())
	require.True(t, ArmedHome.Armed())
	require.True(t, ArmedAway.Armed())
	require.False(t, ArmingStatus("BOGUS").Valid())
	require.False(t, AlarmStatus("").Valid())

	require.Equal(t, "Armed - At Home", ArmedHome.Description())
	require.Equal(t, "Awooga!", Alarm.Description())
	require.Equal(t, "Unknown", AlarmStatus("x").Description())
}
