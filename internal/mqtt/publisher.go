package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oshokin/catpoint/internal/domain/alarm"
	"github.com/oshokin/catpoint/internal/logger"
)

// DefaultQueueSize is the number of messages buffered between the engine and the broker.
const DefaultQueueSize = 256

// message is a serialized publication waiting for the broker.
type message struct {
	topic   string
	payload []byte
}

// StatusPayload is published on the alarm and arming topics.
type StatusPayload struct {
	Status      string `json:"status"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

// SensorPayload is published on sensor topics.
type SensorPayload struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Active    bool   `json:"active"`
	Timestamp string `json:"timestamp"`
}

// CatPayload is published on the camera topic.
type CatPayload struct {
	Detected  bool   `json:"detected"`
	Timestamp string `json:"timestamp"`
}

// Publisher mirrors panel changes to retained MQTT messages.
// Observer callbacks only enqueue; Run performs the network I/O so the engine
// is never blocked by the broker.
type Publisher struct {
	broker Broker
	topics Topics
	queue  chan message
	now    func() time.Time
	ctx    context.Context //nolint:containedctx // Used for logging from observer callbacks.
}

// NewPublisher creates a publisher. ctx carries the logger for dropped-message warnings.
func NewPublisher(ctx context.Context, broker Broker, prefix string, queueSize int) *Publisher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &Publisher{
		broker: broker,
		topics: Topics{Prefix: prefix},
		queue:  make(chan message, queueSize),
		now:    time.Now,
		ctx:    ctx,
	}
}

// SetBroker replaces the broker. Call it before Run.
func (p *Publisher) SetBroker(broker Broker) {
	p.broker = broker
}

// Run publishes queued messages until ctx is canceled.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-p.queue:
			if err := wait(p.broker.Publish(msg.topic, qosAtLeastOnce, true, msg.payload), publishTimeout); err != nil {
				logger.WarnKV(ctx, "MQTT publish failed", "topic", msg.topic, "error", err)
			}
		}
	}
}

// PublishSnapshot enqueues the full panel state, used on startup.
func (p *Publisher) PublishSnapshot(s *alarm.Snapshot) {
	p.AlarmStatusChanged(s.AlarmStatus)
	p.ArmingStatusChanged(s.ArmingStatus)

	for _, sensor := range s.Sensors {
		p.SensorStatusChanged(sensor)
	}
}

// AlarmStatusChanged implements notify.Observer.
func (p *Publisher) AlarmStatusChanged(status alarm.AlarmStatus) {
	p.enqueue(p.topics.Alarm(), StatusPayload{
		Status:      status.String(),
		Description: status.Description(),
		Timestamp:   p.timestamp(),
	})
}

// ArmingStatusChanged implements notify.Observer.
func (p *Publisher) ArmingStatusChanged(status alarm.ArmingStatus) {
	p.enqueue(p.topics.Arming(), StatusPayload{
		Status:      status.String(),
		Description: status.Description(),
		Timestamp:   p.timestamp(),
	})
}

// SensorStatusChanged implements notify.Observer.
func (p *Publisher) SensorStatusChanged(sensor alarm.Sensor) {
	p.enqueue(p.topics.Sensor(sensor), SensorPayload{
		Name:      sensor.Name,
		Type:      sensor.Type.String(),
		Active:    sensor.Active,
		Timestamp: p.timestamp(),
	})
}

// SensorAdded implements notify.Observer.
func (p *Publisher) SensorAdded(sensor alarm.Sensor) {
	p.SensorStatusChanged(sensor)
}

// SensorRemoved implements notify.Observer. An empty retained message clears
// the sensor topic on the broker.
func (p *Publisher) SensorRemoved(sensor alarm.Sensor) {
	p.push(p.topics.Sensor(sensor), []byte{})
}

// CatDetectionChanged implements notify.Observer.
func (p *Publisher) CatDetectionChanged(detected bool) {
	p.enqueue(p.topics.Cat(), CatPayload{
		Detected:  detected,
		Timestamp: p.timestamp(),
	})
}

func (p *Publisher) timestamp() string {
	return p.now().UTC().Format(time.RFC3339)
}

// enqueue serializes and queues a message, dropping it when the queue is full.
func (p *Publisher) enqueue(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.ErrorKV(p.ctx, "Failed to encode MQTT payload", "topic", topic, "error", err)
		return
	}

	p.push(topic, data)
}

// push queues a serialized message, dropping it when the queue is full.
func (p *Publisher) push(topic string, data []byte) {
	select {
	case p.queue <- message{topic: topic, payload: data}:
	default:
		logger.WarnKV(p.ctx, "MQTT queue full, dropping message", "topic", topic)
	}
}
