package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/catpoint/internal/database"
	"github.com/oshokin/catpoint/internal/domain/alarm"
	"github.com/oshokin/catpoint/internal/notify"
)

func newStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return NewStore(db)
}

// TestStore_AppendList verifies events come back newest first with their ids.
func TestStore_AppendList(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	first, err := store.Append(ctx, notify.Event{Kind: notify.KindArmingStatus, ArmingStatus: alarm.ArmedHome, Timestamp: ts})
	require.NoError(t, err)

	second, err := store.Append(ctx, notify.Event{
		Kind:      notify.KindSensor,
		Sensor:    alarm.Sensor{Name: "Back door", Type: alarm.Door, Active: true},
		Timestamp: ts.Add(time.Second),
	})
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	records, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, second, records[0].ID)
	require.Equal(t, notify.KindSensor, records[0].Event.Kind)
	require.Equal(t, "Back door", records[0].Event.Sensor.Name)
	require.True(t, records[0].Event.Sensor.Active)

	require.Equal(t, first, records[1].ID)
	require.Equal(t, alarm.ArmedHome, records[1].Event.ArmingStatus)
	require.True(t, ts.Equal(records[1].Event.Timestamp))
}

// TestStore_ListLimit verifies the limit is honoured.
func TestStore_ListLimit(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	for range 5 {
		_, err := store.Append(ctx, notify.Event{Kind: notify.KindCatDetection, CatDetected: true})
		require.NoError(t, err)
	}

	records, err := store.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)

	records, err = store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 5)
}

// TestStore_Observer verifies the observer adapter appends events.
func TestStore_Observer(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	observer := store.Observer(ctx)
	observer.AlarmStatusChanged(alarm.PendingAlarm)
	observer.AlarmStatusChanged(alarm.Alarm)

	records, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, alarm.Alarm, records[0].Event.AlarmStatus)
	require.Equal(t, alarm.PendingAlarm, records[1].Event.AlarmStatus)
}
