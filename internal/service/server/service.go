package server

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	api "github.com/oshokin/catpoint/internal/api/grpc/security"
	"github.com/oshokin/catpoint/internal/domain/alarm"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/repository/history"
	repo "github.com/oshokin/catpoint/internal/repository/state"
	"github.com/oshokin/catpoint/internal/service/security"
)

// service orchestrates the engine and persistence.
// It is unexported to keep the transport decoupled from the implementation.
type service struct {
	// engine applies the panel rules.
	engine *security.Engine
	// repo handles persistent storage of the panel state.
	repo repo.Repository
	// events lists recorded changes; nil disables ListEvents.
	events *history.Store
	// mu serializes mutations so snapshots are saved in the order they were applied.
	mu sync.Mutex
}

// errHistoryDisabled is returned by ListEvents without a history store.
var errHistoryDisabled = errors.New("event history is not configured")

// loadSnapshot reads the persisted state, falling back to defaults when none exists.
func loadSnapshot(ctx context.Context, repository repo.Repository) (*alarm.Snapshot, error) {
	if repository == nil {
		return alarm.DefaultSnapshot(), nil
	}

	snapshot, err := repository.Load(ctx)
	switch {
	case err == nil:
		if snapshot != nil {
			return snapshot, nil
		}
	case errors.Is(err, repo.ErrNotFound):
		// Keep default state.
	default:
		return nil, fmt.Errorf("load state: %w", err)
	}

	return alarm.DefaultSnapshot(), nil
}

// newService creates a service around an engine.
func newService(engine *security.Engine, repository repo.Repository, events *history.Store) *service {
	return &service{
		engine: engine,
		repo:   repository,
		events: events,
	}
}

// Snapshot returns the current panel state.
func (s *service) Snapshot(ctx context.Context) *alarm.Snapshot {
	snapshot := s.engine.Snapshot()

	logger.DebugKV(ctx, "Status requested",
		"alarm_status", snapshot.AlarmStatus,
		"arming_status", snapshot.ArmingStatus)

	return snapshot
}

// SetArmingStatus changes the arming mode and persists the result.
func (s *service) SetArmingStatus(ctx context.Context, status alarm.ArmingStatus) (*alarm.Snapshot, error) {
	return s.mutate(ctx, func() {
		s.engine.SetArmingStatus(ctx, status)
		logger.InfoKV(ctx, "Arming status set", "arming_status", status)
	})
}

// SetAlarmStatus overrides the alarm status and persists the result.
func (s *service) SetAlarmStatus(ctx context.Context, status alarm.AlarmStatus) (*alarm.Snapshot, error) {
	return s.mutate(ctx, func() {
		s.engine.SetAlarmStatus(ctx, status)
		logger.InfoKV(ctx, "Alarm status set", "alarm_status", status)
	})
}

// AddSensor registers a sensor and persists the result.
func (s *service) AddSensor(ctx context.Context, sensor alarm.Sensor) (*alarm.Snapshot, error) {
	return s.mutate(ctx, func() {
		s.engine.AddSensor(ctx, sensor)
	})
}

// RemoveSensor unregisters a sensor and persists the result.
func (s *service) RemoveSensor(ctx context.Context, sensor alarm.Sensor) (*alarm.Snapshot, error) {
	return s.mutate(ctx, func() {
		s.engine.RemoveSensor(ctx, sensor)
	})
}

// ChangeSensorActivation applies a sensor reading and persists the result.
func (s *service) ChangeSensorActivation(ctx context.Context, sensor alarm.Sensor, active bool) (*alarm.Snapshot, error) {
	return s.mutate(ctx, func() {
		s.engine.ChangeSensorActivationStatus(ctx, sensor, active)
	})
}

// ProcessImage classifies a camera frame and persists the result.
// Classification runs before the mutation lock is taken.
func (s *service) ProcessImage(ctx context.Context, img image.Image) (*alarm.Snapshot, error) {
	detected := s.engine.Classify(ctx, img)

	logger.InfoKV(ctx, "Camera image processed", "cat_detected", detected)

	return s.mutate(ctx, func() {
		s.engine.ApplyCatDetection(ctx, detected)
	})
}

// ListEvents returns the most recent recorded changes.
func (s *service) ListEvents(ctx context.Context, limit int) ([]api.Event, error) {
	if s.events == nil {
		return nil, errHistoryDisabled
	}

	records, err := s.events.List(ctx, limit)
	if err != nil {
		return nil, err
	}

	events := make([]api.Event, 0, len(records))
	for _, r := range records {
		events = append(events, api.Event{ID: r.ID, Event: r.Event})
	}

	return events, nil
}

// mutate applies fn and saves the resulting snapshot.
func (s *service) mutate(ctx context.Context, fn func()) (*alarm.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn()

	snapshot := s.engine.Snapshot()

	if s.repo != nil {
		if err := s.repo.Save(ctx, snapshot); err != nil {
			logger.Errorf(ctx, "Failed to persist panel state: %v", err)

			return nil, fmt.Errorf("persist state: %w", err)
		}
	}

	return snapshot, nil
}
