package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/catpoint/internal/domain/alarm"
)

// recorder collects delivered events tagged with the recorder name.
type recorder struct {
	name string
	log  *[]string
}

func (r recorder) AlarmStatusChanged(s alarm.AlarmStatus) {
	*r.log = append(*r.log, r.name+":alarm:"+s.String())
}

func (r recorder) ArmingStatusChanged(s alarm.ArmingStatus) {
	*r.log = append(*r.log, r.name+":arming:"+s.String())
}

func (r recorder) SensorStatusChanged(s alarm.Sensor) {
	*r.log = append(*r.log, r.name+":sensor:"+s.Name)
}

func (r recorder) SensorAdded(s alarm.Sensor) {
	*r.log = append(*r.log, r.name+":added:"+s.Name)
}

func (r recorder) SensorRemoved(s alarm.Sensor) {
	*r.log = append(*r.log, r.name+":removed:"+s.Name)
}

func (r recorder) CatDetectionChanged(bool) {
	*r.log = append(*r.log, r.name+":cat")
}

// TestBus_OrderedDelivery verifies event order first, subscription order second.
func TestBus_OrderedDelivery(t *testing.T) {
	t.Parallel()

	var log []string

	bus := NewBus()
	bus.Subscribe(recorder{name: "a", log: &log})
	bus.Subscribe(recorder{name: "b", log: &log})

	bus.Publish(
		Event{Kind: KindSensorAdded, Sensor: alarm.NewSensor("Door", alarm.Door)},
		Event{Kind: KindSensor, Sensor: alarm.NewSensor("Door", alarm.Door)},
		Event{Kind: KindAlarmStatus, AlarmStatus: alarm.PendingAlarm},
		Event{Kind: KindSensorRemoved, Sensor: alarm.NewSensor("Door", alarm.Door)},
	)

	require.Equal(t, []string{
		"a:added:Door",
		"b:added:Door",
		"a:sensor:Door",
		"b:sensor:Door",
		"a:alarm:PENDING_ALARM",
		"b:alarm:PENDING_ALARM",
		"a:removed:Door",
		"b:removed:Door",
	}, log)
}

// TestBus_Unsubscribe removes only the matching subscription.
func TestBus_Unsubscribe(t *testing.T) {
	t.Parallel()

	var log []string

	bus := NewBus()
	obs := recorder{name: "x", log: &log}
	first := bus.Subscribe(obs)
	bus.Subscribe(obs)
	require.Equal(t, 2, bus.SubscriberCount())

	first()
	first()
	require.Equal(t, 1, bus.SubscriberCount())

	bus.Publish(Event{Kind: KindCatDetection, CatDetected: true})
	require.Equal(t, []string{"x:cat"}, log)
}

// TestSink wraps each Observer call into an Event.
func TestSink(t *testing.T) {
	t.Parallel()

	var got []Event

	sink := Sink(func(e Event) { got = append(got, e) })
	sink.ArmingStatusChanged(alarm.ArmedHome)
	sink.CatDetectionChanged(true)

	require.Len(t, got, 2)
	require.Equal(t, KindArmingStatus, got[0].Kind)
	require.Equal(t, alarm.ArmedHome, got[0].ArmingStatus)
	require.Equal(t, KindCatDetection, got[1].Kind)
	require.True(t, got[1].CatDetected)
	require.False(t, got[1].Timestamp.IsZero())
}

// TestSink_KeepsPublishedTimestamp passes bus events through untouched.
func TestSink_KeepsPublishedTimestamp(t *testing.T) {
	t.Parallel()

	var got []Event

	stamp := time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC)
	bus := NewBus()
	bus.Subscribe(Sink(func(e Event) { got = append(got, e) }))

	bus.Publish(
		Event{Kind: KindSensorAdded, Sensor: alarm.NewSensor("Hall", alarm.Motion), Timestamp: stamp},
		Event{Kind: KindAlarmStatus, AlarmStatus: alarm.Alarm, Timestamp: stamp.Add(time.Second)},
	)

	require.Len(t, got, 2)
	require.Equal(t, KindSensorAdded, got[0].Kind)
	require.Equal(t, stamp, got[0].Timestamp)
	require.Equal(t, stamp.Add(time.Second), got[1].Timestamp)
	require.True(t, got[0].Kind.HasSensor())
	require.False(t, got[1].Kind.HasSensor())
}
