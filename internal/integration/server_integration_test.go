package integration

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/domain/alarm"
	"github.com/oshokin/catpoint/internal/notify"
	"github.com/oshokin/catpoint/internal/service/common"
	"github.com/oshokin/catpoint/internal/service/server"
)

// reservePort returns a free local address for a test server.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}

// writeConfig stores a server configuration using the given storage driver under dir.
func writeConfig(t *testing.T, dir, addr, driver string) string {
	t.Helper()

	cfgPath := filepath.Join(dir, "settings.yaml")

	require.NoError(
		t,
		config.Save(cfgPath, &config.Config{
			ServerAddress: addr,
			Timeout:       5 * time.Second,
			Storage: config.Storage{
				Driver:    driver,
				StateFile: filepath.Join(dir, "state.json"),
				Database:  filepath.Join(dir, "catpoint.db"),
			},
			Classifier: config.Classifier{
				Kind: config.ClassifierFake,
			},
		}),
	)

	return cfgPath
}

// startServer runs catpoint-server in the background.
// Returns a stop function that waits for the server to exit.
func startServer(t *testing.T, cfgPath string) (stop func()) {
	t.Helper()

	// Create cancellable context for server lifecycle.
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- server.Run(ctx, &server.Options{ConfigPath: cfgPath})
	}()

	// Wait briefly for server to start listening.
	time.Sleep(200 * time.Millisecond)

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func dial(t *testing.T, addr string) *common.Client {
	t.Helper()

	c, err := common.Dial(context.Background(), addr,
		common.WithCallTimeout(3*time.Second),
		common.WithActor(&alarm.Actor{Hostname: "hallway", Username: "tester"}))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = c.Close()
	})

	return c
}

// TestServer_AlarmFlow drives the real server from disarmed to a sounding alarm and back.
func TestServer_AlarmFlow(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{config.StorageFile, config.StorageSQLite} {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()

			addr := reservePort(t)
			stop := startServer(t, writeConfig(t, t.TempDir(), addr, driver))

			defer stop()

			ctx := context.Background()
			c := dial(t, addr)

			front := alarm.NewSensor("Front door", alarm.Door)
			kitchen := alarm.NewSensor("Kitchen window", alarm.Window)

			_, err := c.AddSensor(ctx, front)
			require.NoError(t, err)

			_, err = c.AddSensor(ctx, kitchen)
			require.NoError(t, err)

			snapshot, err := c.SetArmingStatus(ctx, alarm.ArmedAway)
			require.NoError(t, err)
			require.Equal(t, alarm.ArmedAway, snapshot.ArmingStatus)
			require.Equal(t, alarm.NoAlarm, snapshot.AlarmStatus)

			snapshot, err = c.ChangeSensorActivation(ctx, front, true)
			require.NoError(t, err)
			require.Equal(t, alarm.PendingAlarm, snapshot.AlarmStatus)

			snapshot, err = c.ChangeSensorActivation(ctx, kitchen, true)
			require.NoError(t, err)
			require.Equal(t, alarm.Alarm, snapshot.AlarmStatus)
			require.Equal(t, 2, snapshot.ActiveSensors())

			// Deactivating a sensor never silences a sounding alarm.
			snapshot, err = c.ChangeSensorActivation(ctx, front, false)
			require.NoError(t, err)
			require.Equal(t, alarm.Alarm, snapshot.AlarmStatus)

			snapshot, err = c.SetArmingStatus(ctx, alarm.Disarmed)
			require.NoError(t, err)
			require.Equal(t, alarm.NoAlarm, snapshot.AlarmStatus)
			require.Zero(t, snapshot.ActiveSensors())

			events, err := c.ListEvents(ctx, 100)
			require.NoError(t, err)

			var alarms []alarm.AlarmStatus

			// Events are listed newest first.
			for _, e := range events {
				if e.Event.Kind == notify.KindAlarmStatus {
					alarms = append(alarms, e.Event.AlarmStatus)
				}
			}

			require.Equal(t, []alarm.AlarmStatus{alarm.NoAlarm, alarm.Alarm, alarm.PendingAlarm}, alarms)
		})
	}
}

// TestServer_PersistsAcrossRestart ensures a restarted server resumes from the saved state.
func TestServer_PersistsAcrossRestart(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{config.StorageFile, config.StorageSQLite} {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			addr := reservePort(t)
			cfgPath := writeConfig(t, dir, addr, driver)
			ctx := context.Background()
			motion := alarm.NewSensor("Garage motion", alarm.Motion)

			stop := startServer(t, cfgPath)
			c := dial(t, addr)

			_, err := c.AddSensor(ctx, motion)
			require.NoError(t, err)

			_, err = c.SetArmingStatus(ctx, alarm.ArmedHome)
			require.NoError(t, err)

			_, err = c.ChangeSensorActivation(ctx, motion, true)
			require.NoError(t, err)

			stop()

			stop = startServer(t, cfgPath)
			defer stop()

			snapshot, err := dial(t, addr).Status(ctx)
			require.NoError(t, err)
			require.Equal(t, alarm.ArmedHome, snapshot.ArmingStatus)
			require.Equal(t, alarm.PendingAlarm, snapshot.AlarmStatus)
			require.Len(t, snapshot.Sensors, 1)
			require.True(t, snapshot.Sensors[0].Active)
		})
	}
}
