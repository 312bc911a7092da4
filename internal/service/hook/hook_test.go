package hook

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/catpoint/internal/domain/alarm"
)

// TestStart_Empty rejects an empty command.
func TestStart_Empty(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, Start(context.Background(), nil, alarm.DefaultSnapshot()), ErrEmptyCommand)
}

// TestStart_PassesEnvironment runs a shell command that records the environment.
func TestStart_PassesEnvironment(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	out := filepath.Join(t.TempDir(), "env.txt")
	snapshot := &alarm.Snapshot{
		AlarmStatus:  alarm.Alarm,
		ArmingStatus: alarm.ArmedAway,
		Sensors:      []alarm.Sensor{{Name: "Door", Type: alarm.Door, Active: true}},
	}

	argv := []string{"/bin/sh", "-c", "echo $" + EnvAlarmStatus + " $" + EnvArmingStatus + " $" + EnvActive + " > " + out}
	require.NoError(t, Start(context.Background(), argv, snapshot))

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(out)
		return err == nil && strings.TrimSpace(string(data)) == "ALARM ARMED_AWAY 1"
	}, 5*time.Second, 10*time.Millisecond)
}

// TestStart_MissingBinary reports start failures.
func TestStart_MissingBinary(t *testing.T) {
	t.Parallel()

	err := Start(context.Background(), []string{"/definitely/not/here"}, alarm.DefaultSnapshot())
	require.Error(t, err)
}
