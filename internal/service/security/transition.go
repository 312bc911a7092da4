package security

import (
	"context"

	"github.com/oshokin/catpoint/internal/domain/alarm"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/notify"
)

// transition collects the effects of one mutator call while the engine lock is held.
type transition struct {
	ctx    context.Context //nolint:containedctx // Lives only for the duration of one call.
	engine *Engine
	events []notify.Event
}

// begin locks the engine state and opens a transition.
func (e *Engine) begin(ctx context.Context) *transition {
	e.mu.Lock()

	return &transition{
		ctx:    ctx,
		engine: e,
	}
}

// setAlarm changes the alarm status if it differs.
func (t *transition) setAlarm(status alarm.AlarmStatus) {
	e := t.engine
	if e.alarmStatus == status {
		return
	}

	logger.InfoKV(t.ctx, "Alarm status changed", "from", e.alarmStatus, "to", status)

	e.alarmStatus = status
	t.emit(notify.Event{Kind: notify.KindAlarmStatus, AlarmStatus: status})
}

// setArming changes the arming status if it differs.
func (t *transition) setArming(status alarm.ArmingStatus) {
	e := t.engine
	if e.armingStatus == status {
		return
	}

	logger.InfoKV(t.ctx, "Arming status changed", "from", e.armingStatus, "to", status)

	e.armingStatus = status
	t.emit(notify.Event{Kind: notify.KindArmingStatus, ArmingStatus: status})
}

// setCat records the camera verdict if it differs.
func (t *transition) setCat(detected bool) {
	e := t.engine
	if e.catDetected == detected {
		return
	}

	logger.InfoKV(t.ctx, "Cat detection changed", "detected", detected)

	e.catDetected = detected
	t.emit(notify.Event{Kind: notify.KindCatDetection, CatDetected: detected})
}

// resetSensors writes inactive to every sensor without running the sensor rules.
func (t *transition) resetSensors() {
	for _, s := range t.engine.sensorList() {
		if !s.Active {
			continue
		}

		stored := t.engine.sensors[s.Key()]
		stored.Active = false
		t.sensorChanged(*stored)
	}
}

// sensorChanged records a sensor flag change.
func (t *transition) sensorChanged(sensor alarm.Sensor) {
	logger.DebugKV(t.ctx, "Sensor status changed", "sensor", sensor.Key().String(), "active", sensor.Active)
	t.emit(notify.Event{Kind: notify.KindSensor, Sensor: sensor})
}

// sensorAdded records a newly registered sensor.
func (t *transition) sensorAdded(sensor alarm.Sensor) {
	logger.InfoKV(t.ctx, "Sensor added", "sensor", sensor.Key().String())
	t.emit(notify.Event{Kind: notify.KindSensorAdded, Sensor: sensor})
}

// sensorRemoved records an unregistered sensor.
func (t *transition) sensorRemoved(sensor alarm.Sensor) {
	logger.InfoKV(t.ctx, "Sensor removed", "sensor", sensor.Key().String())
	t.emit(notify.Event{Kind: notify.KindSensorRemoved, Sensor: sensor})
}

// emit queues an event stamped with the engine clock.
func (t *transition) emit(ev notify.Event) {
	ev.Timestamp = t.engine.now()
	t.events = append(t.events, ev)
}

// commit releases the state lock and delivers the queued events.
// Each transition with events draws a ticket while still holding the state
// lock; deliveries happen strictly in ticket order, outside of any lock.
func (t *transition) commit() {
	e := t.engine

	if len(t.events) == 0 {
		e.mu.Unlock()
		return
	}

	e.touch()
	ticket := e.nextTicket
	e.nextTicket++
	e.mu.Unlock()

	e.dispatchMu.Lock()
	for e.serving != ticket {
		e.dispatched.Wait()
	}
	e.dispatchMu.Unlock()

	defer func() {
		e.dispatchMu.Lock()
		e.serving++
		e.dispatched.Broadcast()
		e.dispatchMu.Unlock()
	}()

	e.bus.Publish(t.events...)
}
