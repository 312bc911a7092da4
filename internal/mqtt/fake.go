package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Published is a message recorded by FakeBroker.
type Published struct {
	Topic    string
	Retained bool
	Payload  []byte
}

// FakeBroker records publications and subscriptions for tests.
type FakeBroker struct {
	mu            sync.Mutex
	published     []Published
	subscriptions map[string]paho.MessageHandler

	// PublishError, if set, is returned by every publish token.
	PublishError error
}

// NewFakeBroker creates an empty fake.
func NewFakeBroker() *FakeBroker {
	return &FakeBroker{subscriptions: make(map[string]paho.MessageHandler)}
}

// Publish records the message.
func (f *FakeBroker) Publish(topic string, _ byte, retained bool, payload any) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()

	var data []byte

	switch p := payload.(type) {
	case []byte:
		data = p
	case string:
		data = []byte(p)
	}

	f.published = append(f.published, Published{Topic: topic, Retained: retained, Payload: data})

	return doneToken{err: f.PublishError}
}

// Subscribe records the handler for a topic filter.
func (f *FakeBroker) Subscribe(topic string, _ byte, callback paho.MessageHandler) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.subscriptions[topic] = callback

	return doneToken{}
}

// Deliver calls the handler registered for filter with a message on topic.
// It reports false when nothing is subscribed to filter.
func (f *FakeBroker) Deliver(filter, topic string, payload []byte) bool {
	f.mu.Lock()
	handler, ok := f.subscriptions[filter]
	f.mu.Unlock()

	if !ok {
		return false
	}

	handler(nil, &fakeMessage{topic: topic, payload: payload})

	return true
}

// Published returns a copy of the recorded messages.
func (f *FakeBroker) Published() []Published {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]Published(nil), f.published...)
}

// Subscriptions returns the subscribed topic filters.
func (f *FakeBroker) Subscriptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	topics := make([]string, 0, len(f.subscriptions))
	for topic := range f.subscriptions {
		topics = append(topics, topic)
	}

	return topics
}

// doneToken is a paho.Token that is already complete.
type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)

	return ch
}

// fakeMessage implements paho.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return qosAtLeastOnce }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}
