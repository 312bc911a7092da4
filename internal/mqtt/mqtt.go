package mqtt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/catpoint/internal/domain/alarm"
)

// Broker is the subset of paho.Client used by this package.
type Broker interface {
	Publish(topic string, qos byte, retained bool, payload any) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

const (
	// QoS used for status messages and command subscriptions.
	qosAtLeastOnce byte = 1

	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	disconnectWait = 1000 // milliseconds
	retryInterval  = 5 * time.Second
	keepAlive      = 30 * time.Second
)

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("mqtt: operation timed out")

// Options configure the broker connection.
type Options struct {
	Broker   string
	ClientID string
	// OnConnect runs after every (re)connect; use it to (re)subscribe.
	OnConnect func(Broker)
	// OnConnectionLost runs when the connection drops.
	OnConnectionLost func(error)
}

// Connect dials the broker with automatic reconnection.
func Connect(opts Options) (paho.Client, error) {
	clientOptions := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(retryInterval).
		SetKeepAlive(keepAlive)

	if opts.OnConnect != nil {
		clientOptions.SetOnConnectHandler(func(c paho.Client) { opts.OnConnect(c) })
	}

	if opts.OnConnectionLost != nil {
		clientOptions.SetConnectionLostHandler(func(_ paho.Client, err error) { opts.OnConnectionLost(err) })
	}

	client := paho.NewClient(clientOptions)

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to broker: %w", ErrTimeout)
	}

	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return client, nil
}

// Disconnect closes the client, waiting briefly for in-flight work.
func Disconnect(client paho.Client) {
	client.Disconnect(disconnectWait)
}

// wait blocks on a token with a timeout.
func wait(token paho.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return ErrTimeout
	}

	return token.Error()
}

// Topics builds topic names under a prefix.
type Topics struct {
	Prefix string
}

// Alarm is the alarm status topic.
func (t Topics) Alarm() string { return t.Prefix + "/status/alarm" }

// Arming is the arming status topic.
func (t Topics) Arming() string { return t.Prefix + "/status/arming" }

// Cat is the camera verdict topic.
func (t Topics) Cat() string { return t.Prefix + "/status/cat" }

// Sensor is the state topic of a sensor.
func (t Topics) Sensor(s alarm.Sensor) string {
	return t.Prefix + "/sensors/" + strings.ToLower(s.Type.String()) + "/" + Slug(s.Name)
}

// ArmingSet is the arming command topic.
func (t Topics) ArmingSet() string { return t.Prefix + "/arming/set" }

// SensorSetFilter matches every sensor command topic.
func (t Topics) SensorSetFilter() string { return t.Prefix + "/sensors/+/+/set" }

// ParseSensorSet extracts the type and name slug from a sensor command topic.
func (t Topics) ParseSensorSet(topic string) (alarm.SensorType, string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/sensors/")
	if !ok {
		return "", "", false
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[2] != "set" || parts[1] == "" {
		return "", "", false
	}

	sensorType, err := alarm.ParseSensorType(parts[0])
	if err != nil {
		return "", "", false
	}

	return sensorType, parts[1], true
}

// Slug turns a sensor name into a single topic level.
func Slug(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))

	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '+', '#':
			return '_'
		default:
			return r
		}
	}, name)
}
