package gpio

import (
	"context"
	"time"

	"github.com/oshokin/catpoint/internal/domain/alarm"
	"github.com/oshokin/catpoint/internal/logger"
)

// Controller receives sensor readings.
type Controller interface {
	ChangeSensorActivation(ctx context.Context, sensor alarm.Sensor, active bool) (*alarm.Snapshot, error)
}

// Poller samples a Reader on an interval and reports edges.
// The first successful sample is reported in full so sensors are registered
// with their current reading.
type Poller struct {
	reader     Reader
	sensors    []alarm.Sensor
	controller Controller
	interval   time.Duration
	last       []bool
}

// NewPoller binds sensors[i] to the i-th value returned by reader.
func NewPoller(reader Reader, sensors []alarm.Sensor, controller Controller, interval time.Duration) *Poller {
	return &Poller{
		reader:     reader,
		sensors:    sensors,
		controller: controller,
		interval:   interval,
	}
}

// Run polls until ctx is canceled.
func (p *Poller) Run(ctx context.Context) {
	ctx = logger.WithName(ctx, "gpio")

	logger.InfoKV(ctx, "Polling GPIO sensors", "sensors", len(p.sensors), "interval", p.interval.String())

	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll reads once and reports changed lines.
func (p *Poller) poll(ctx context.Context) {
	values, err := p.reader.Read()
	if err != nil {
		logger.WarnKV(ctx, "GPIO read failed", "error", err)
		return
	}

	for i, sensor := range p.sensors {
		if i >= len(values) {
			break
		}

		if p.last != nil && p.last[i] == values[i] {
			continue
		}

		logger.DebugKV(ctx, "GPIO edge", "sensor", sensor.Key().String(), "active", values[i])

		if _, err = p.controller.ChangeSensorActivation(ctx, sensor, values[i]); err != nil {
			logger.ErrorKV(ctx, "Failed to apply sensor reading", "sensor", sensor.Key().String(), "error", err)
		}
	}

	if len(values) >= len(p.sensors) {
		p.last = values
	}
}
