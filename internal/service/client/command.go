package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/domain/alarm"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/notify"
	"github.com/oshokin/catpoint/internal/service/common"
)

// Options configures how the CLI reaches the server.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerAddress overrides server address from config when specified.
	ServerAddress string

	// Out receives human-readable output; defaults to stdout.
	Out io.Writer
}

// SensorAction is a sensor subcommand.
type SensorAction string

// Sensor actions.
const (
	SensorAdd        SensorAction = "add"
	SensorRemove     SensorAction = "remove"
	SensorActivate   SensorAction = "activate"
	SensorDeactivate SensorAction = "deactivate"
)

// defaultPushInterval defines retry delay when pushing the arming status to server.
const defaultPushInterval = 1 * time.Second

// ErrUnknownSensorAction is returned for an unsupported sensor subcommand.
var ErrUnknownSensorAction = errors.New("unknown sensor action")

// Panel is the part of common.Client the commands use.
type Panel interface {
	Status(ctx context.Context) (*alarm.Snapshot, error)
	SetArmingStatus(ctx context.Context, status alarm.ArmingStatus) (*alarm.Snapshot, error)
	AddSensor(ctx context.Context, sensor alarm.Sensor) (*alarm.Snapshot, error)
	RemoveSensor(ctx context.Context, sensor alarm.Sensor) (*alarm.Snapshot, error)
	ChangeSensorActivation(ctx context.Context, sensor alarm.Sensor, active bool) (*alarm.Snapshot, error)
	ProcessImage(ctx context.Context, data []byte) (*alarm.Snapshot, error)
}

// Status prints the current panel state.
func Status(ctx context.Context, opts *Options) error {
	return withClient(ctx, opts, func(c *common.Client) error {
		snapshot, err := c.Status(ctx)
		if err != nil {
			return err
		}

		return PrintSnapshot(opts.out(), snapshot)
	})
}

// SetArmingStatus pushes the arming status until the server confirms it.
func SetArmingStatus(ctx context.Context, opts *Options, status alarm.ArmingStatus) error {
	return withClient(ctx, opts, func(c *common.Client) error {
		snapshot, err := PushArmingStatus(ctx, c, status, defaultPushInterval)
		if err != nil {
			return err
		}

		return PrintSnapshot(opts.out(), snapshot)
	})
}

// Sensor runs a sensor subcommand.
func Sensor(ctx context.Context, opts *Options, action SensorAction, sensor alarm.Sensor) error {
	return withClient(ctx, opts, func(c *common.Client) error {
		snapshot, err := ApplySensorAction(ctx, c, action, sensor)
		if err != nil {
			return err
		}

		return PrintSnapshot(opts.out(), snapshot)
	})
}

// Image sends a camera frame from disk for classification.
func Image(ctx context.Context, opts *Options, path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	return withClient(ctx, opts, func(c *common.Client) error {
		snapshot, err := c.ProcessImage(ctx, data)
		if err != nil {
			return err
		}

		return PrintSnapshot(opts.out(), snapshot)
	})
}

// Events prints the most recent recorded changes.
func Events(ctx context.Context, opts *Options, limit int) error {
	return withClient(ctx, opts, func(c *common.Client) error {
		events, err := c.ListEvents(ctx, limit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(opts.out(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "TIME\tKIND\tVALUE")

		for _, e := range events {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n",
				e.Event.Timestamp.Local().Format(time.DateTime), e.Event.Kind, describeEvent(e.Event))
		}

		return w.Flush()
	})
}

// PushArmingStatus sets the arming status, retrying on failure until the
// server reports it or ctx is canceled.
func PushArmingStatus(ctx context.Context, panel Panel, status alarm.ArmingStatus, interval time.Duration) (*alarm.Snapshot, error) {
	logger.InfoKV(ctx, "Pushing desired arming status", "arming_status", status)

	// attempt tries once to change the arming status.
	attempt := func() *alarm.Snapshot {
		snapshot, err := panel.SetArmingStatus(ctx, status)
		if err != nil {
			// Log error but continue retrying for transient failures.
			logger.ErrorKV(ctx, "SetArmingStatus failed", "error", err)
			return nil
		}

		// Check if server confirmed the desired state change.
		if snapshot != nil && snapshot.ArmingStatus == status {
			logger.Infof(ctx, "Arming status updated: %s", status.Description())
			return snapshot
		}

		return nil
	}

	// Attempt immediately before starting retry loop.
	if snapshot := attempt(); snapshot != nil {
		return snapshot, nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if snapshot := attempt(); snapshot != nil {
				return snapshot, nil
			}
		}
	}
}

// ApplySensorAction maps a sensor subcommand onto the panel API.
func ApplySensorAction(ctx context.Context, panel Panel, action SensorAction, sensor alarm.Sensor) (*alarm.Snapshot, error) {
	switch action {
	case SensorAdd:
		return panel.AddSensor(ctx, sensor)
	case SensorRemove:
		return panel.RemoveSensor(ctx, sensor)
	case SensorActivate:
		return panel.ChangeSensorActivation(ctx, sensor, true)
	case SensorDeactivate:
		return panel.ChangeSensorActivation(ctx, sensor, false)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSensorAction, action)
	}
}

// PrintSnapshot writes a readable panel summary.
func PrintSnapshot(out io.Writer, s *alarm.Snapshot) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "Alarm:\t%s\t%s\n", s.AlarmStatus, s.AlarmStatus.Description())
	_, _ = fmt.Fprintf(w, "Arming:\t%s\t%s\n", s.ArmingStatus, s.ArmingStatus.Description())

	if !s.UpdatedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "Updated:\t%s\n", s.UpdatedAt.Local().Format(time.DateTime))
	}

	if len(s.Sensors) > 0 {
		_, _ = fmt.Fprintln(w, "\nSENSOR\tTYPE\tSTATE")
	}

	for _, sensor := range s.Sensors {
		state := "Inactive"
		if sensor.Active {
			state = "Active"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", sensor.Name, sensor.Type, state)
	}

	return w.Flush()
}

// describeEvent renders the meaningful field of an event.
func describeEvent(e notify.Event) string {
	switch e.Kind {
	case notify.KindAlarmStatus:
		return e.AlarmStatus.String()
	case notify.KindArmingStatus:
		return e.ArmingStatus.String()
	case notify.KindSensor:
		return fmt.Sprintf("%s active=%t", e.Sensor.Key(), e.Sensor.Active)
	case notify.KindSensorAdded:
		return fmt.Sprintf("%s added", e.Sensor.Key())
	case notify.KindSensorRemoved:
		return fmt.Sprintf("%s removed", e.Sensor.Key())
	default:
		return fmt.Sprintf("cat=%t", e.CatDetected)
	}
}

// withClient loads settings, dials the server and runs fn.
func withClient(ctx context.Context, opts *Options, fn func(*common.Client) error) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	// Identify current user and hostname for the server audit log.
	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Unable to detect actor", "error", err)
	}

	client, err := common.Dial(ctx, serverAddress,
		common.WithCallTimeout(cfg.Timeout),
		common.WithActor(actor))
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	return fn(client)
}

func (o *Options) out() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}

	return o.Out
}
