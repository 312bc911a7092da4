package ws

import (
	"context"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/catpoint/internal/domain/alarm"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/notify"
	"github.com/oshokin/catpoint/internal/wire"
)

// KindSnapshot marks the message sent on connect.
const KindSnapshot = "snapshot"

// sendBuffer is the number of messages queued per client before it is dropped.
const sendBuffer = 64

// SnapshotSource provides the state sent to new clients.
type SnapshotSource interface {
	Snapshot(ctx context.Context) *alarm.Snapshot
}

// client is one connected subscriber.
type client struct {
	send chan []byte
}

// StatusHub fans panel changes out to connected clients.
type StatusHub struct {
	source SnapshotSource
	ctx    context.Context //nolint:containedctx // Logging from observer callbacks.

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewStatusHub creates a hub that greets clients with source's snapshot.
func NewStatusHub(ctx context.Context, source SnapshotSource) *StatusHub {
	return &StatusHub{
		source:  source,
		ctx:     logger.WithName(ctx, "ws"),
		clients: make(map[*client]struct{}),
	}
}

// Observer returns the engine observer feeding the hub.
func (h *StatusHub) Observer() notify.Observer {
	return notify.Sink(h.broadcastEvent)
}

// ClientCount returns the number of connected clients.
func (h *StatusHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

// register adds a client and queues the current snapshot as its first message.
// Holding mu across both steps keeps later events after the snapshot.
func (h *StatusHub) register() (*client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	doc := wire.SnapshotToStruct(h.source.Snapshot(h.ctx))
	doc.Fields[wire.FieldKind] = structpb.NewStringValue(KindSnapshot)

	data, err := protojson.Marshal(doc)
	if err != nil {
		return nil, err
	}

	c := &client{send: make(chan []byte, sendBuffer)}
	c.send <- data
	h.clients[c] = struct{}{}

	return c, nil
}

// unregister removes a client and closes its queue.
func (h *StatusHub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// broadcastEvent queues an event for every client. Slow clients are dropped.
func (h *StatusHub) broadcastEvent(event notify.Event) {
	data, err := protojson.Marshal(wire.EventToStruct("", event))
	if err != nil {
		logger.ErrorKV(h.ctx, "Failed to encode status event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			logger.Warn(h.ctx, "Status client too slow, dropping")
			delete(h.clients, c)
			close(c.send)
		}
	}
}
