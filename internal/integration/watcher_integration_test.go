package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/domain/alarm"
	"github.com/oshokin/catpoint/internal/service/watcher"
)

// TestWatcher_RunsHookOnAlarm starts the watcher against a live server and waits for the alarm hook.
func TestWatcher_RunsHookOnAlarm(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	addr := reservePort(t)
	cfgPath := writeConfig(t, dir, addr, config.StorageFile)

	stop := startServer(t, cfgPath)
	defer stop()

	ctx := context.Background()
	c := dial(t, addr)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	marker := filepath.Join(dir, "alarm.txt")

	go func() {
		done <- watcher.Run(runCtx, &watcher.Options{
			ConfigPath:   cfgPath,
			PollInterval: 50 * time.Millisecond,
			OnAlarm:      []string{"sh", "-c", `echo "$CATPOINT_ALARM_STATUS $CATPOINT_ACTIVE_SENSORS" > "$0"`, marker},
		})
	}()

	_, err := c.SetAlarmStatus(ctx, alarm.Alarm)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		contents, err := os.ReadFile(marker)

		return err == nil && strings.TrimSpace(string(contents)) == "ALARM 0"
	}, 3*time.Second, 25*time.Millisecond)

	// Verify watcher exits cleanly on cancellation.
	cancel()
	require.NoError(t, <-done)
}
