package server

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/catpoint/internal/classifier"
	"github.com/oshokin/catpoint/internal/database"
	"github.com/oshokin/catpoint/internal/domain/alarm"
	"github.com/oshokin/catpoint/internal/notify"
	"github.com/oshokin/catpoint/internal/repository/history"
	repo "github.com/oshokin/catpoint/internal/repository/state"
	"github.com/oshokin/catpoint/internal/service/security"
)

var (
	errTestLoad = errors.New("test load error")
	errTestSave = errors.New("test save error")
)

// memoryRepository is a minimal in-memory Repository implementation for tests.
type memoryRepository struct {
	mu sync.Mutex
	// state is the snapshot to return from Load operations.
	state *alarm.Snapshot
	// loadErr is the error to return from Load operations.
	loadErr error
	// saveErr is the error to return from Save operations.
	saveErr error
	// saved stores every snapshot passed to Save.
	saved []*alarm.Snapshot
}

// Load retrieves the configured state.
func (m *memoryRepository) Load(context.Context) (*alarm.Snapshot, error) {
	return m.state, m.loadErr
}

// Save records the snapshot.
func (m *memoryRepository) Save(_ context.Context, s *alarm.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return m.saveErr
	}

	m.saved = append(m.saved, s)

	return nil
}

func (m *memoryRepository) last() *alarm.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.saved) == 0 {
		return nil
	}

	return m.saved[len(m.saved)-1]
}

// catClassifier always reports the configured verdict.
func catClassifier(detected bool) classifier.Classifier {
	return classifier.Func(func(context.Context, image.Image, float32) (bool, error) {
		return detected, nil
	})
}

// TestLoadSnapshot asserts loadSnapshot behavior on existing, missing, and error states.
func TestLoadSnapshot(t *testing.T) {
	t.Parallel()

	// Existing state.
	old := &alarm.Snapshot{AlarmStatus: alarm.Alarm, ArmingStatus: alarm.ArmedAway}

	s, err := loadSnapshot(context.Background(), &memoryRepository{state: old})
	require.NoError(t, err)
	require.Equal(t, alarm.Alarm, s.AlarmStatus)

	// Not found -> default.
	s, err = loadSnapshot(context.Background(), &memoryRepository{loadErr: repo.ErrNotFound})
	require.NoError(t, err)
	require.Equal(t, alarm.NoAlarm, s.AlarmStatus)
	require.Equal(t, alarm.Disarmed, s.ArmingStatus)

	// Other error.
	s, err = loadSnapshot(context.Background(), &memoryRepository{loadErr: errTestLoad})
	require.Error(t, err)
	require.Nil(t, s)
}

// TestService_PersistsEveryMutation verifies each operation saves the resulting snapshot.
func TestService_PersistsEveryMutation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	memory := new(memoryRepository)
	svc := newService(security.New(catClassifier(false)), memory, nil)

	door := alarm.NewSensor("Front door", alarm.Door)

	result, err := svc.AddSensor(ctx, door)
	require.NoError(t, err)
	require.Len(t, result.Sensors, 1)

	result, err = svc.SetArmingStatus(ctx, alarm.ArmedAway)
	require.NoError(t, err)
	require.Equal(t, alarm.ArmedAway, result.ArmingStatus)

	result, err = svc.ChangeSensorActivation(ctx, door, true)
	require.NoError(t, err)
	require.Equal(t, alarm.PendingAlarm, result.AlarmStatus)
	require.Equal(t, alarm.PendingAlarm, memory.last().AlarmStatus)

	result, err = svc.SetAlarmStatus(ctx, alarm.Alarm)
	require.NoError(t, err)
	require.Equal(t, alarm.Alarm, result.AlarmStatus)

	result, err = svc.RemoveSensor(ctx, door)
	require.NoError(t, err)
	require.Empty(t, result.Sensors)
	require.Equal(t, alarm.Alarm, result.AlarmStatus)

	require.Len(t, memory.saved, 5)
	require.Equal(t, svc.Snapshot(ctx), memory.last())
}

// TestService_ProcessImage runs the classifier and applies the verdict.
func TestService_ProcessImage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService(security.New(catClassifier(true)), new(memoryRepository), nil)

	_, err := svc.SetArmingStatus(ctx, alarm.ArmedHome)
	require.NoError(t, err)

	result, err := svc.ProcessImage(ctx, image.NewRGBA(image.Rect(0, 0, 1, 1)))
	require.NoError(t, err)
	require.Equal(t, alarm.Alarm, result.AlarmStatus)
}

// TestService_CatVerdictSurvivesRestart restores the last camera verdict from storage.
func TestService_CatVerdictSurvivesRestart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	files := repo.NewFileRepository(filepath.Join(t.TempDir(), "state.json"))
	svc := newService(security.New(catClassifier(true)), files, nil)

	_, err := svc.SetArmingStatus(ctx, alarm.ArmedAway)
	require.NoError(t, err)

	result, err := svc.ProcessImage(ctx, image.NewRGBA(image.Rect(0, 0, 1, 1)))
	require.NoError(t, err)
	require.Equal(t, alarm.NoAlarm, result.AlarmStatus)
	require.True(t, result.CatDetected)

	snapshot, err := loadSnapshot(ctx, files)
	require.NoError(t, err)
	require.True(t, snapshot.CatDetected)

	restarted := newService(security.New(nil, security.WithSnapshot(snapshot)), files, nil)

	result, err = restarted.SetArmingStatus(ctx, alarm.ArmedHome)
	require.NoError(t, err)
	require.Equal(t, alarm.Alarm, result.AlarmStatus)
}

// TestService_SaveError surfaces persistence failures.
func TestService_SaveError(t *testing.T) {
	t.Parallel()

	svc := newService(security.New(nil), &memoryRepository{saveErr: errTestSave}, nil)

	_, err := svc.SetArmingStatus(context.Background(), alarm.ArmedHome)
	require.ErrorIs(t, err, errTestSave)

	_, err = svc.ListEvents(context.Background(), 10)
	require.ErrorIs(t, err, errHistoryDisabled)
}

// TestService_ListEvents reads changes recorded by the history observer.
func TestService_ListEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	db, err := database.Open(ctx, filepath.Join(t.TempDir(), "catpoint.db"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	events := history.NewStore(db)
	engine := security.New(nil, security.WithObserver(events.Observer(ctx)))
	svc := newService(engine, repo.NewSQLiteRepository(db), events)

	_, err = svc.SetArmingStatus(ctx, alarm.ArmedAway)
	require.NoError(t, err)

	_, err = svc.ChangeSensorActivation(ctx, alarm.NewSensor("Hall", alarm.Motion), true)
	require.NoError(t, err)

	list, err := svc.ListEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 4)
	require.Equal(t, alarm.PendingAlarm, list[0].Event.AlarmStatus)
	require.Equal(t, notify.KindSensor, list[1].Event.Kind)
	require.Equal(t, "Hall", list[1].Event.Sensor.Name)
	require.Equal(t, notify.KindSensorAdded, list[2].Event.Kind)
	require.Equal(t, alarm.ArmedAway, list[3].Event.ArmingStatus)

	loaded, err := repo.NewSQLiteRepository(db).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, alarm.PendingAlarm, loaded.AlarmStatus)
}

// TestResolveListenAddress covers override and port extraction.
func TestResolveListenAddress(t *testing.T) {
	t.Parallel()

	addr, err := resolveListenAddress("panel.local:50051", "")
	require.NoError(t, err)
	require.Equal(t, ":50051", addr)

	addr, err = resolveListenAddress("panel.local:50051", "127.0.0.1:9000")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", addr)

	_, err = resolveListenAddress("", "")
	require.ErrorIs(t, err, ErrNoServerAddress)

	_, err = resolveListenAddress("no-port", "")
	require.Error(t, err)
}
