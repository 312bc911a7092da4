package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/domain/alarm"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/mqtt"
	"github.com/oshokin/catpoint/internal/notify"
	"github.com/oshokin/catpoint/internal/sensor/gpio"
	"github.com/oshokin/catpoint/internal/service/security"
	"github.com/oshokin/catpoint/internal/ws"
)

// startAdapters starts the optional status, MQTT and GPIO adapters.
// The returned function stops them and releases their resources.
func startAdapters(
	parent context.Context,
	settings *config.Config,
	engine *security.Engine,
	svc *service,
) (func(), error) {
	ctx, cancel := context.WithCancel(parent)

	var (
		wg      sync.WaitGroup
		closers []func()
	)

	stop := func() {
		cancel()
		wg.Wait()

		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if address := settings.StatusHTTP.ListenAddress; address != "" {
		hub := ws.NewStatusHub(ctx, svc)
		closers = append(closers, engine.Subscribe(hub.Observer()))

		wg.Go(func() {
			if err := serveStatus(ctx, address, ws.NewHandler(hub)); err != nil {
				logger.ErrorKV(ctx, "Status endpoint stopped", "error", err)
			}
		})
	}

	if settings.MQTT.Broker != "" {
		closeMQTT, err := startMQTT(ctx, settings.MQTT, engine, svc, &wg)
		if err != nil {
			stop()
			return nil, err
		}

		closers = append(closers, closeMQTT)
	}

	if len(settings.GPIO.Sensors) > 0 {
		reader, poller, err := newGPIOPoller(settings.GPIO, svc)
		if err != nil {
			stop()
			return nil, err
		}

		closers = append(closers, func() { _ = reader.Close() })

		wg.Go(func() { poller.Run(ctx) })
	}

	return stop, nil
}

// startMQTT connects to the broker, subscribes the command listener and
// mirrors engine changes.
func startMQTT(
	ctx context.Context,
	settings config.MQTT,
	engine *security.Engine,
	svc *service,
	wg *sync.WaitGroup,
) (func(), error) {
	ctx = logger.WithName(ctx, "mqtt")

	publisher := mqtt.NewPublisher(ctx, nil, settings.TopicPrefix, mqtt.DefaultQueueSize)
	listener := mqtt.NewListener(ctx, svc, settings.TopicPrefix)

	client, err := mqtt.Connect(mqtt.Options{
		Broker:   settings.Broker,
		ClientID: settings.ClientID,
		OnConnect: func(b mqtt.Broker) {
			logger.InfoKV(ctx, "MQTT connected", "broker", settings.Broker)
			listener.Subscribe(b)
			publisher.PublishSnapshot(engine.Snapshot())
		},
		OnConnectionLost: func(err error) {
			logger.WarnKV(ctx, "MQTT connection lost", "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mqtt: %w", err)
	}

	publisher.SetBroker(client)
	unsubscribe := engine.Subscribe(publisher)

	wg.Go(func() { publisher.Run(ctx) })

	return func() {
		unsubscribe()
		mqtt.Disconnect(client)
	}, nil
}

// newGPIOPoller opens the configured lines.
func newGPIOPoller(settings config.GPIO, svc *service) (gpio.Reader, *gpio.Poller, error) {
	lines := make([]gpio.Line, 0, len(settings.Sensors))
	sensors := make([]alarm.Sensor, 0, len(settings.Sensors))

	for _, s := range settings.Sensors {
		sensorType, err := alarm.ParseSensorType(s.Type)
		if err != nil {
			return nil, nil, err
		}

		lines = append(lines, gpio.Line{Offset: s.Line, ActiveLow: s.ActiveLow})
		sensors = append(sensors, alarm.NewSensor(s.Name, sensorType))
	}

	reader, err := gpio.NewRealReader(settings.Chip, lines)
	if err != nil {
		return nil, nil, fmt.Errorf("gpio: %w", err)
	}

	return reader, gpio.NewPoller(reader, sensors, svc, settings.PollInterval), nil
}

// logObserver logs every panel change.
func logObserver(ctx context.Context) notify.Observer {
	ctx = logger.WithName(ctx, "panel")

	return notify.Sink(func(e notify.Event) {
		switch e.Kind {
		case notify.KindAlarmStatus:
			logger.InfoKV(ctx, "Alarm status changed",
				"alarm_status", e.AlarmStatus, "description", e.AlarmStatus.Description())
		case notify.KindArmingStatus:
			logger.InfoKV(ctx, "Arming status changed",
				"arming_status", e.ArmingStatus, "description", e.ArmingStatus.Description())
		case notify.KindSensor:
			logger.InfoKV(ctx, "Sensor changed", "sensor", e.Sensor.Key().String(), "active", e.Sensor.Active)
		case notify.KindSensorAdded:
			logger.InfoKV(ctx, "Sensor registered", "sensor", e.Sensor.Key().String())
		case notify.KindSensorRemoved:
			logger.InfoKV(ctx, "Sensor unregistered", "sensor", e.Sensor.Key().String())
		case notify.KindCatDetection:
			logger.InfoKV(ctx, "Cat detection changed", "cat_detected", e.CatDetected)
		}
	})
}
