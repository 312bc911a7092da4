package security

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/oshokin/catpoint/internal/classifier"
	"github.com/oshokin/catpoint/internal/domain/alarm"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/notify"
)

// Engine derives the alarm status from the arming mode, the sensors and the camera.
// Observers may read the engine from their callbacks but must not call its
// mutators inline.
type Engine struct {
	// classifier answers whether a camera frame shows a cat.
	classifier classifier.Classifier
	// threshold is the confidence, in percent, passed to the classifier.
	threshold float32
	// bus delivers change events to observers.
	bus *notify.Bus
	// now is the clock used for UpdatedAt and event timestamps.
	now func() time.Time

	// mu protects every field below.
	mu           sync.RWMutex
	alarmStatus  alarm.AlarmStatus
	armingStatus alarm.ArmingStatus
	sensors      map[alarm.SensorKey]*alarm.Sensor
	catDetected  bool
	updatedAt    time.Time
	nextTicket   uint64

	// dispatchMu and dispatched order event delivery by ticket so observers
	// see transitions in the order they were applied.
	dispatchMu sync.Mutex
	dispatched *sync.Cond
	serving    uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithSnapshot starts the engine from previously persisted state.
// Invalid statuses in the snapshot fall back to NO_ALARM / DISARMED.
func WithSnapshot(s *alarm.Snapshot) Option {
	return func(e *Engine) {
		if s == nil {
			return
		}

		if s.AlarmStatus.Valid() {
			e.alarmStatus = s.AlarmStatus
		}

		if s.ArmingStatus.Valid() {
			e.armingStatus = s.ArmingStatus
		}

		for _, sensor := range s.Sensors {
			stored := sensor
			e.sensors[sensor.Key()] = &stored
		}

		e.catDetected = s.CatDetected
		e.updatedAt = s.UpdatedAt
	}
}

// WithConfidenceThreshold overrides the classifier threshold.
func WithConfidenceThreshold(threshold float32) Option {
	return func(e *Engine) {
		if threshold > 0 {
			e.threshold = threshold
		}
	}
}

// WithObserver subscribes an observer at construction time.
func WithObserver(o notify.Observer) Option {
	return func(e *Engine) {
		e.bus.Subscribe(o)
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an engine in the NO_ALARM / DISARMED state.
func New(c classifier.Classifier, opts ...Option) *Engine {
	e := &Engine{
		classifier:   c,
		threshold:    classifier.DefaultConfidenceThreshold,
		bus:          notify.NewBus(),
		now:          time.Now,
		alarmStatus:  alarm.NoAlarm,
		armingStatus: alarm.Disarmed,
		sensors:      make(map[alarm.SensorKey]*alarm.Sensor),
	}

	e.dispatched = sync.NewCond(&e.dispatchMu)

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Subscribe registers an observer and returns a function that removes it.
func (e *Engine) Subscribe(o notify.Observer) func() {
	return e.bus.Subscribe(o)
}

// AlarmStatus returns the current alarm status.
func (e *Engine) AlarmStatus() alarm.AlarmStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.alarmStatus
}

// ArmingStatus returns the current arming status.
func (e *Engine) ArmingStatus() alarm.ArmingStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.armingStatus
}

// CatDetected returns the verdict of the most recently processed image.
func (e *Engine) CatDetected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.catDetected
}

// Sensors returns a copy of the registered sensors ordered by name and type.
func (e *Engine) Sensors() []alarm.Sensor {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.sensorList()
}

// Snapshot returns the full state in one consistent read.
func (e *Engine) Snapshot() *alarm.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return &alarm.Snapshot{
		AlarmStatus:  e.alarmStatus,
		ArmingStatus: e.armingStatus,
		Sensors:      e.sensorList(),
		CatDetected:  e.catDetected,
		UpdatedAt:    e.updatedAt,
	}
}

// AddSensor registers a sensor. Adding a sensor whose name and type are
// already registered keeps the existing one and returns false.
// A new sensor always starts inactive; readings go through
// ChangeSensorActivationStatus.
func (e *Engine) AddSensor(ctx context.Context, sensor alarm.Sensor) bool {
	t := e.begin(ctx)
	defer t.commit()

	key := sensor.Key()
	if _, ok := e.sensors[key]; ok {
		logger.DebugKV(ctx, "Sensor already registered", "sensor", key.String())
		return false
	}

	stored := alarm.NewSensor(sensor.Name, sensor.Type)
	e.sensors[key] = &stored
	t.sensorAdded(stored)

	return true
}

// RemoveSensor unregisters a sensor and reports whether it was registered.
// It never changes the alarm status.
func (e *Engine) RemoveSensor(ctx context.Context, sensor alarm.Sensor) bool {
	t := e.begin(ctx)
	defer t.commit()

	key := sensor.Key()

	stored, ok := e.sensors[key]
	if !ok {
		logger.DebugKV(ctx, "Sensor not registered", "sensor", key.String())
		return false
	}

	delete(e.sensors, key)
	t.sensorRemoved(*stored)

	return true
}

// SetAlarmStatus overrides the alarm status directly, bypassing the rules.
func (e *Engine) SetAlarmStatus(ctx context.Context, status alarm.AlarmStatus) {
	t := e.begin(ctx)
	t.setAlarm(status)
	t.commit()
}

// SetArmingStatus changes the arming mode.
//
// Disarming forces NO_ALARM. Every change resets all sensors to inactive
// without running the sensor rules. Entering ARMED_HOME while the last
// processed image showed a cat raises the alarm.
func (e *Engine) SetArmingStatus(ctx context.Context, status alarm.ArmingStatus) {
	if !status.Valid() {
		logger.WarnKV(ctx, "Ignoring invalid arming status", "arming_status", status)
		return
	}

	t := e.begin(ctx)

	if status == alarm.Disarmed {
		t.setAlarm(alarm.NoAlarm)
	}

	t.resetSensors()
	t.setArming(status)

	if status == alarm.ArmedHome && e.catDetected {
		t.setAlarm(alarm.Alarm)
	}

	t.commit()
}

// ChangeSensorActivationStatus applies a sensor reading.
//
// Unknown sensors are registered on first write. Writing the value a sensor
// already has changes nothing. While armed, an activation escalates
// NO_ALARM to PENDING_ALARM and PENDING_ALARM to ALARM; a deactivation that
// leaves no sensor active de-escalates PENDING_ALARM to NO_ALARM. ALARM is
// never changed by sensors.
func (e *Engine) ChangeSensorActivationStatus(ctx context.Context, sensor alarm.Sensor, active bool) {
	t := e.begin(ctx)
	defer t.commit()

	key := sensor.Key()

	stored, ok := e.sensors[key]
	if !ok {
		registered := alarm.NewSensor(sensor.Name, sensor.Type)
		stored = &registered
		e.sensors[key] = stored
		t.sensorAdded(registered)
	}

	if stored.Active == active {
		return
	}

	stored.Active = active
	t.sensorChanged(*stored)

	if !e.armingStatus.Armed() {
		return
	}

	if active {
		switch e.alarmStatus {
		case alarm.NoAlarm:
			t.setAlarm(alarm.PendingAlarm)
		case alarm.PendingAlarm:
			t.setAlarm(alarm.Alarm)
		case alarm.Alarm:
			// Sticky until disarmed or cleared by the camera.
		}

		return
	}

	if e.alarmStatus == alarm.PendingAlarm && !e.anySensorActive() {
		t.setAlarm(alarm.NoAlarm)
	}
}

// ProcessImage runs the classifier on a camera frame and applies its verdict.
//
// A cat while ARMED_HOME raises the alarm from any status. No cat and no
// active sensor clears it. A classifier failure counts as no cat.
// The classifier runs outside the engine lock.
func (e *Engine) ProcessImage(ctx context.Context, img image.Image) bool {
	detected := e.Classify(ctx, img)
	e.ApplyCatDetection(ctx, detected)

	return detected
}

// ApplyCatDetection applies an already computed camera verdict.
func (e *Engine) ApplyCatDetection(ctx context.Context, detected bool) {
	t := e.begin(ctx)
	t.setCat(detected)

	switch {
	case detected && e.armingStatus == alarm.ArmedHome:
		t.setAlarm(alarm.Alarm)
	case !detected && !e.anySensorActive():
		t.setAlarm(alarm.NoAlarm)
	}

	t.commit()
}

// Classify runs the classifier without touching state. Errors count as no cat.
func (e *Engine) Classify(ctx context.Context, img image.Image) bool {
	if e.classifier == nil || img == nil {
		return false
	}

	detected, err := e.classifier.ImageContainsCat(ctx, img, e.threshold)
	if err != nil {
		logger.WarnKV(ctx, "Image classification failed, treating as no cat", "error", err)
		return false
	}

	return detected
}

// anySensorActive reports whether at least one sensor is active. Caller holds mu.
func (e *Engine) anySensorActive() bool {
	for _, s := range e.sensors {
		if s.Active {
			return true
		}
	}

	return false
}

// sensorList copies and sorts the sensors. Caller holds mu.
func (e *Engine) sensorList() []alarm.Sensor {
	list := make([]alarm.Sensor, 0, len(e.sensors))
	for _, s := range e.sensors {
		list = append(list, *s)
	}

	alarm.SortSensors(list)

	return list
}

// touch records a state change time. Caller holds mu.
func (e *Engine) touch() {
	e.updatedAt = e.now()
}
