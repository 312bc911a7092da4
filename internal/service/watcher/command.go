package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/domain/alarm"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/service/common"
	"github.com/oshokin/catpoint/internal/service/hook"
)

// Options controls the watcher polling behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ServerAddress provides an optional gRPC server address override.
	ServerAddress string
	// PollInterval defines the interval between status checks.
	PollInterval time.Duration
	// OnAlarm is a command started each time the alarm goes off.
	OnAlarm []string
}

// DefaultPollInterval defines the default polling interval for status checks.
const DefaultPollInterval = 5 * time.Second

// StatusReader fetches the panel state.
type StatusReader interface {
	Status(ctx context.Context) (*alarm.Snapshot, error)
}

// Run polls the panel and reports transitions until ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "catpoint-watch")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	// Determine server address: command line argument overrides config.
	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Unable to detect actor", "error", err)
	}

	client, err := common.Dial(ctx, serverAddress,
		common.WithCallTimeout(cfg.Timeout),
		common.WithActor(actor))
	if err != nil {
		return fmt.Errorf("dial server: %w", err)
	}

	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Watching panel", "server_address", serverAddress, "interval", opts.PollInterval.String())

	w := &Watcher{
		Panel: client,
	}

	if len(opts.OnAlarm) > 0 {
		w.OnAlarm = func(ctx context.Context, s *alarm.Snapshot) error {
			return hook.Start(ctx, opts.OnAlarm, s)
		}
	}

	w.Watch(ctx, opts.PollInterval)

	logger.Info(ctx, "Context canceled, exiting")

	return nil
}

// Watcher remembers the last observed state and reports changes.
type Watcher struct {
	// Panel is polled for the current state.
	Panel StatusReader
	// OnAlarm, if set, runs when the alarm status becomes ALARM.
	OnAlarm func(ctx context.Context, s *alarm.Snapshot) error

	last *alarm.Snapshot
}

// Watch checks immediately and then on every tick until ctx is canceled.
func (w *Watcher) Watch(ctx context.Context, interval time.Duration) {
	w.checkAndLog(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.checkAndLog(ctx)
		}
	}
}

func (w *Watcher) checkAndLog(ctx context.Context) {
	if err := w.Check(ctx); err != nil {
		logger.ErrorKV(ctx, "Check status failed", "error", err)
	}
}

// Check polls once and reports what changed since the previous poll.
func (w *Watcher) Check(ctx context.Context) error {
	snapshot, err := w.Panel.Status(ctx)
	if err != nil {
		return err
	}

	previous := w.last
	w.last = snapshot

	if previous == nil {
		logger.Infof(ctx, "Panel status: %s, %s, %d active sensor(s)",
			snapshot.AlarmStatus.Description(), snapshot.ArmingStatus.Description(), snapshot.ActiveSensors())
	} else {
		if previous.ArmingStatus != snapshot.ArmingStatus {
			logger.InfoKV(ctx, "Arming status changed",
				"from", previous.ArmingStatus, "to", snapshot.ArmingStatus)
		}

		if previous.AlarmStatus != snapshot.AlarmStatus {
			logger.InfoKV(ctx, "Alarm status changed",
				"from", previous.AlarmStatus, "to", snapshot.AlarmStatus)
		}
	}

	enteredAlarm := snapshot.AlarmStatus == alarm.Alarm &&
		(previous == nil || previous.AlarmStatus != alarm.Alarm)

	if enteredAlarm && w.OnAlarm != nil {
		logger.Warn(ctx, "Alarm is sounding, starting hook")

		if err = w.OnAlarm(ctx, snapshot); err != nil {
			return fmt.Errorf("alarm hook: %w", err)
		}
	}

	return nil
}
