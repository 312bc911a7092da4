package notify

import (
	"sync"
	"time"

	"github.com/oshokin/catpoint/internal/domain/alarm"
)

// Observer receives state changes from the engine.
// Calls are synchronous and arrive in the order the engine applied them.
// Implementations may read the engine but must not call its mutators inline.
type Observer interface {
	AlarmStatusChanged(status alarm.AlarmStatus)
	ArmingStatusChanged(status alarm.ArmingStatus)
	SensorStatusChanged(sensor alarm.Sensor)
	SensorAdded(sensor alarm.Sensor)
	SensorRemoved(sensor alarm.Sensor)
	CatDetectionChanged(detected bool)
}

// EventObserver is implemented by observers that want the whole Event,
// including the engine timestamp. Deliver prefers it over the typed methods.
type EventObserver interface {
	Observe(e Event)
}

// Kind tells which field of an Event is meaningful.
type Kind string

const (
	// KindAlarmStatus is emitted when the alarm status changes.
	KindAlarmStatus Kind = "alarm_status"
	// KindArmingStatus is emitted when the arming status changes.
	KindArmingStatus Kind = "arming_status"
	// KindSensor is emitted when a sensor's active flag changes.
	KindSensor Kind = "sensor"
	// KindSensorAdded is emitted when a sensor is registered.
	KindSensorAdded Kind = "sensor_added"
	// KindSensorRemoved is emitted when a sensor is unregistered.
	KindSensorRemoved Kind = "sensor_removed"
	// KindCatDetection is emitted when the camera verdict changes.
	KindCatDetection Kind = "cat_detection"
)

// Event is a single state change in a form suitable for logging, storage and transport.
type Event struct {
	Kind         Kind
	AlarmStatus  alarm.AlarmStatus
	ArmingStatus alarm.ArmingStatus
	Sensor       alarm.Sensor
	CatDetected  bool
	Timestamp    time.Time
}

// Deliver calls the Observer method matching the event kind.
func (e Event) Deliver(o Observer) {
	if eo, ok := o.(EventObserver); ok {
		eo.Observe(e)
		return
	}

	switch e.Kind {
	case KindAlarmStatus:
		o.AlarmStatusChanged(e.AlarmStatus)
	case KindArmingStatus:
		o.ArmingStatusChanged(e.ArmingStatus)
	case KindSensor:
		o.SensorStatusChanged(e.Sensor)
	case KindSensorAdded:
		o.SensorAdded(e.Sensor)
	case KindSensorRemoved:
		o.SensorRemoved(e.Sensor)
	case KindCatDetection:
		o.CatDetectionChanged(e.CatDetected)
	}
}

// HasSensor reports whether the Sensor field is meaningful for the kind.
func (k Kind) HasSensor() bool {
	return k == KindSensor || k == KindSensorAdded || k == KindSensorRemoved
}

// Sink adapts a plain function to the Observer interface.
type Sink func(Event)

// Observe implements EventObserver and passes the event through unchanged.
func (f Sink) Observe(e Event) {
	f(e)
}

// AlarmStatusChanged implements Observer.
func (f Sink) AlarmStatusChanged(status alarm.AlarmStatus) {
	f(Event{Kind: KindAlarmStatus, AlarmStatus: status, Timestamp: time.Now()})
}

// ArmingStatusChanged implements Observer.
func (f Sink) ArmingStatusChanged(status alarm.ArmingStatus) {
	f(Event{Kind: KindArmingStatus, ArmingStatus: status, Timestamp: time.Now()})
}

// SensorStatusChanged implements Observer.
func (f Sink) SensorStatusChanged(sensor alarm.Sensor) {
	f(Event{Kind: KindSensor, Sensor: sensor, Timestamp: time.Now()})
}

// SensorAdded implements Observer.
func (f Sink) SensorAdded(sensor alarm.Sensor) {
	f(Event{Kind: KindSensorAdded, Sensor: sensor, Timestamp: time.Now()})
}

// SensorRemoved implements Observer.
func (f Sink) SensorRemoved(sensor alarm.Sensor) {
	f(Event{Kind: KindSensorRemoved, Sensor: sensor, Timestamp: time.Now()})
}

// CatDetectionChanged implements Observer.
func (f Sink) CatDetectionChanged(detected bool) {
	f(Event{Kind: KindCatDetection, CatDetected: detected, Timestamp: time.Now()})
}

// subscription wraps an observer so the same observer may be subscribed twice.
type subscription struct {
	observer Observer
}

// Bus fans events out to subscribers in subscription order.
type Bus struct {
	subscribers []*subscription
	mu          sync.RWMutex
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return new(Bus)
}

// Subscribe registers an observer and returns a function that removes it.
func (b *Bus) Subscribe(o Observer) func() {
	sub := &subscription{observer: o}

	b.mu.Lock()
	b.subscribers = append(b.subscribers, sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		for i, s := range b.subscribers {
			if s == sub {
				b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the events, in order, to every subscriber.
func (b *Bus) Publish(events ...Event) {
	if len(events) == 0 {
		return
	}

	b.mu.RLock()
	subscribers := make([]*subscription, len(b.subscribers))
	copy(subscribers, b.subscribers)
	b.mu.RUnlock()

	for _, e := range events {
		for _, s := range subscribers {
			e.Deliver(s.observer)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subscribers)
}
