package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/catpoint/internal/domain/alarm"
	"github.com/oshokin/catpoint/internal/service/client"
	"github.com/oshokin/catpoint/internal/service/watcher"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the alarm status, arming mode and sensors.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return client.Status(ctx, clientOptions(cmd))
		},
	}
}

func newArmCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "arm home|away",
		Short:     "Arm the system while at home or away.",
		Long:      "Arm the system. Arming resets every sensor to inactive; arming at home raises the alarm if the camera last saw a cat.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"home", "away"},
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := alarm.ParseArmingStatus(args[0])
			if err != nil || status == alarm.Disarmed {
				return fmt.Errorf("arm: expected home or away, got %q", args[0])
			}

			ctx, stop := signalContext()
			defer stop()

			return client.SetArmingStatus(ctx, clientOptions(cmd), status)
		},
	}
}

func newDisarmCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disarm",
		Short: "Disarm the system and silence the alarm.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return client.SetArmingStatus(ctx, clientOptions(cmd), alarm.Disarmed)
		},
	}
}

func newSensorCommand() *cobra.Command {
	parent := &cobra.Command{
		Use:   "sensor",
		Short: "Manage sensors and report their readings.",
	}

	actions := []struct {
		action client.SensorAction
		short  string
	}{
		{client.SensorAdd, "Register a sensor."},
		{client.SensorRemove, "Unregister a sensor."},
		{client.SensorActivate, "Report a sensor as active (door or window open, motion seen)."},
		{client.SensorDeactivate, "Report a sensor as inactive."},
	}

	for _, a := range actions {
		parent.AddCommand(&cobra.Command{
			Use:   string(a.action) + " <door|window|motion> <name>",
			Short: a.short,
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				sensorType, err := alarm.ParseSensorType(args[0])
				if err != nil {
					return err
				}

				sensor := alarm.NewSensor(strings.Join(args[1:], " "), sensorType)

				ctx, stop := signalContext()
				defer stop()

				return client.Sensor(ctx, clientOptions(cmd), a.action, sensor)
			},
		})
	}

	return parent
}

func newImageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "image <path>",
		Short: "Submit a camera image for cat detection.",
		Long:  "Submit a camera image (png, jpeg, gif, bmp, tiff or webp) for cat detection.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			return client.Image(ctx, clientOptions(cmd), args[0])
		},
	}
}

func newEventsCommand() *cobra.Command {
	var limit int

	command := &cobra.Command{
		Use:   "events",
		Short: "List recent panel changes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return client.Events(ctx, clientOptions(cmd), limit)
		},
	}

	command.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to show")

	return command
}

func newWatchCommand() *cobra.Command {
	var (
		interval time.Duration
		onAlarm  string
	)

	command := &cobra.Command{
		Use:   "watch",
		Short: "Poll the panel and log alarm transitions.",
		Long: `Poll the panel and log every alarm and arming status change.

With --on-alarm, the given command is started each time the alarm goes off.
The command receives CATPOINT_ALARM_STATUS, CATPOINT_ARMING_STATUS and
CATPOINT_ACTIVE_SENSORS in its environment.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return watcher.Run(ctx, &watcher.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				PollInterval:  interval,
				OnAlarm:       strings.Fields(onAlarm),
			})
		},
	}

	command.Flags().DurationVarP(&interval, "interval", "i", watcher.DefaultPollInterval, "polling interval")
	command.Flags().StringVar(&onAlarm, "on-alarm", "", "command to start when the alarm goes off")

	return command
}
