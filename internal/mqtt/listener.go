package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/catpoint/internal/domain/alarm"
	"github.com/oshokin/catpoint/internal/logger"
)

// Controller is the panel API the listener drives.
type Controller interface {
	Snapshot(ctx context.Context) *alarm.Snapshot
	SetArmingStatus(ctx context.Context, status alarm.ArmingStatus) (*alarm.Snapshot, error)
	ChangeSensorActivation(ctx context.Context, sensor alarm.Sensor, active bool) (*alarm.Snapshot, error)
}

// ErrBadPayload is returned for a sensor command that is neither JSON nor ON/OFF.
var ErrBadPayload = errors.New("mqtt: unrecognized sensor payload")

// Listener turns command messages into panel operations.
type Listener struct {
	controller Controller
	topics     Topics
	ctx        context.Context //nolint:containedctx // paho handlers carry no context.
}

// NewListener creates a listener. ctx is used for every operation it performs.
func NewListener(ctx context.Context, controller Controller, prefix string) *Listener {
	return &Listener{
		controller: controller,
		topics:     Topics{Prefix: prefix},
		ctx:        logger.WithName(ctx, "mqtt"),
	}
}

// Subscribe registers the command subscriptions. Call it from the connect
// handler so subscriptions survive reconnects.
func (l *Listener) Subscribe(broker Broker) {
	subscriptions := map[string]paho.MessageHandler{
		l.topics.SensorSetFilter(): l.onSensorSet,
		l.topics.ArmingSet():       l.onArmingSet,
	}

	for topic, handler := range subscriptions {
		if err := wait(broker.Subscribe(topic, qosAtLeastOnce, handler), publishTimeout); err != nil {
			logger.ErrorKV(l.ctx, "MQTT subscribe failed", "topic", topic, "error", err)
			continue
		}

		logger.InfoKV(l.ctx, "MQTT subscribed", "topic", topic)
	}
}

func (l *Listener) onArmingSet(_ paho.Client, msg paho.Message) {
	if err := l.HandleArmingSet(msg.Payload()); err != nil {
		logger.WarnKV(l.ctx, "Rejected MQTT arming command", "topic", msg.Topic(), "error", err)
	}
}

func (l *Listener) onSensorSet(_ paho.Client, msg paho.Message) {
	if err := l.HandleSensorSet(msg.Topic(), msg.Payload()); err != nil {
		logger.WarnKV(l.ctx, "Rejected MQTT sensor command", "topic", msg.Topic(), "error", err)
	}
}

// HandleArmingSet applies an arming command payload such as "ARMED_HOME".
func (l *Listener) HandleArmingSet(payload []byte) error {
	status, err := alarm.ParseArmingStatus(string(payload))
	if err != nil {
		return err
	}

	if _, err = l.controller.SetArmingStatus(l.ctx, status); err != nil {
		return fmt.Errorf("set arming status: %w", err)
	}

	return nil
}

// HandleSensorSet applies a sensor reading received on topic.
// The name level of the topic is matched against registered sensors by slug;
// an unmatched slug becomes the name of a new sensor.
func (l *Listener) HandleSensorSet(topic string, payload []byte) error {
	sensorType, slug, ok := l.topics.ParseSensorSet(topic)
	if !ok {
		return fmt.Errorf("mqtt: unexpected topic %q", topic)
	}

	active, err := ParseActive(payload)
	if err != nil {
		return err
	}

	sensor := l.resolve(sensorType, slug)
	if _, err = l.controller.ChangeSensorActivation(l.ctx, sensor, active); err != nil {
		return fmt.Errorf("change sensor activation: %w", err)
	}

	return nil
}

// resolve finds the registered sensor addressed by a topic.
func (l *Listener) resolve(sensorType alarm.SensorType, slug string) alarm.Sensor {
	for _, s := range l.controller.Snapshot(l.ctx).Sensors {
		if s.Type == sensorType && Slug(s.Name) == slug {
			return s
		}
	}

	return alarm.NewSensor(slug, sensorType)
}

// ParseActive accepts {"active":bool}, ON/OFF, true/false and 1/0.
func ParseActive(payload []byte) (bool, error) {
	payload = bytes.TrimSpace(payload)

	if len(payload) > 0 && payload[0] == '{' {
		var body struct {
			Active *bool `json:"active"`
		}

		if err := json.Unmarshal(payload, &body); err != nil {
			return false, fmt.Errorf("%w: %w", ErrBadPayload, err)
		}

		if body.Active == nil {
			return false, fmt.Errorf("%w: missing active", ErrBadPayload)
		}

		return *body.Active, nil
	}

	switch strings.ToUpper(string(payload)) {
	case "ON", "TRUE", "1", "OPEN":
		return true, nil
	case "OFF", "FALSE", "0", "CLOSED":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrBadPayload, payload)
	}
}
