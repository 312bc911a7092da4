//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	api "github.com/oshokin/catpoint/internal/api/grpc/security"
	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/domain/alarm"
	"github.com/oshokin/catpoint/internal/wire"
)

// Client wraps the security service with typed convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the panel server.
	conn grpc.ClientConnInterface
	// closer releases conn when the client owns it.
	closer func() error

	// actor identifies the caller in the server audit log.
	actor *alarm.Actor
	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor sends the given identity with every call.
func WithActor(actor *alarm.Actor) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial establishes a gRPC connection to the panel server.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial panel server: %w", err)
	}

	client := NewClientFromConn(conn, opts...)
	client.closer = conn.Close

	return client, nil
}

// NewClientFromConn wraps an existing connection. Close does not close conn.
func NewClientFromConn(conn grpc.ClientConnInterface, opts ...Option) *Client {
	client := &Client{
		conn:        conn,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}

	return c.closer()
}

// Status retrieves the current panel snapshot.
func (c *Client) Status(ctx context.Context) (*alarm.Snapshot, error) {
	return c.invokeSnapshot(ctx, api.GetStatusMethod, new(emptypb.Empty), "get status")
}

// SetArmingStatus changes the arming mode.
func (c *Client) SetArmingStatus(ctx context.Context, status alarm.ArmingStatus) (*alarm.Snapshot, error) {
	return c.invokeSnapshot(ctx, api.SetArmingStatusMethod, wrapperspb.String(status.String()), "set arming status")
}

// SetAlarmStatus overrides the alarm status.
func (c *Client) SetAlarmStatus(ctx context.Context, status alarm.AlarmStatus) (*alarm.Snapshot, error) {
	return c.invokeSnapshot(ctx, api.SetAlarmStatusMethod, wrapperspb.String(status.String()), "set alarm status")
}

// AddSensor registers a sensor.
func (c *Client) AddSensor(ctx context.Context, sensor alarm.Sensor) (*alarm.Snapshot, error) {
	return c.invokeSnapshot(ctx, api.AddSensorMethod, wire.SensorToStruct(sensor), "add sensor")
}

// RemoveSensor unregisters a sensor.
func (c *Client) RemoveSensor(ctx context.Context, sensor alarm.Sensor) (*alarm.Snapshot, error) {
	return c.invokeSnapshot(ctx, api.RemoveSensorMethod, wire.SensorToStruct(sensor), "remove sensor")
}

// ChangeSensorActivation reports a new reading for a sensor.
func (c *Client) ChangeSensorActivation(ctx context.Context, sensor alarm.Sensor, active bool) (*alarm.Snapshot, error) {
	sensor.Active = active

	return c.invokeSnapshot(ctx, api.ChangeSensorActivationMethod, wire.SensorToStruct(sensor), "change sensor activation")
}

// ProcessImage sends an encoded camera frame for classification.
func (c *Client) ProcessImage(ctx context.Context, data []byte) (*alarm.Snapshot, error) {
	return c.invokeSnapshot(ctx, api.ProcessImageMethod, wrapperspb.Bytes(data), "process image")
}

// ListEvents returns up to limit recent events, newest first.
func (c *Client) ListEvents(ctx context.Context, limit int) ([]api.Event, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, api.ListEventsMethod, wrapperspb.Int32(int32(min(limit, api.MaxListEvents))), out); err != nil { //nolint:gosec // Bounded by MaxListEvents.
		return nil, fmt.Errorf("list events: %w", err)
	}

	values := out.GetFields()[wire.FieldEvents].GetListValue().GetValues()
	events := make([]api.Event, 0, len(values))

	for _, v := range values {
		id, event, err := wire.EventFromStruct(v.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}

		events = append(events, api.Event{ID: id, Event: event})
	}

	return events, nil
}

// invokeSnapshot performs a call whose response is a snapshot document.
func (c *Client) invokeSnapshot(ctx context.Context, method string, in any, op string) (*alarm.Snapshot, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, method, in, out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	snapshot, err := wire.SnapshotFromStruct(out)
	if err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}

	return snapshot, nil
}

// invoke runs a unary call with the call timeout and actor metadata applied.
func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	return c.conn.Invoke(api.ActorToContext(callCtx, c.actor), method, in, out)
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
