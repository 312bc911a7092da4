package security

import (
	"bytes"
	"context"
	"image"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/catpoint/internal/classifier"
	"github.com/oshokin/catpoint/internal/domain/alarm"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/notify"
	"github.com/oshokin/catpoint/internal/wire"
)

// Metadata keys carrying the caller identity.
const (
	MetadataHostname = "x-catpoint-hostname"
	MetadataUsername = "x-catpoint-username"
)

// MaxListEvents caps the number of events returned by ListEvents.
const MaxListEvents = 500

// Event is a stored notification with its identifier.
type Event struct {
	ID    string
	Event notify.Event
}

// Service abstracts the business operations the transport layer depends on.
// Mutators return the snapshot after the change; an error means the change
// could not be persisted.
type Service interface {
	Snapshot(ctx context.Context) *alarm.Snapshot
	SetArmingStatus(ctx context.Context, status alarm.ArmingStatus) (*alarm.Snapshot, error)
	SetAlarmStatus(ctx context.Context, status alarm.AlarmStatus) (*alarm.Snapshot, error)
	AddSensor(ctx context.Context, sensor alarm.Sensor) (*alarm.Snapshot, error)
	RemoveSensor(ctx context.Context, sensor alarm.Sensor) (*alarm.Snapshot, error)
	ChangeSensorActivation(ctx context.Context, sensor alarm.Sensor, active bool) (*alarm.Snapshot, error)
	ProcessImage(ctx context.Context, img image.Image) (*alarm.Snapshot, error)
	ListEvents(ctx context.Context, limit int) ([]Event, error)
}

// Server implements SecurityServiceServer on top of a Service.
type Server struct {
	// service provides the business logic for panel operations.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// GetStatus returns the current panel snapshot.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return wire.SnapshotToStruct(s.service.Snapshot(withActor(ctx))), nil
}

// SetArmingStatus changes the arming mode.
func (s *Server) SetArmingStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	armingStatus, err := alarm.ParseArmingStatus(req.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return respond(s.service.SetArmingStatus(withActor(ctx), armingStatus))
}

// SetAlarmStatus overrides the alarm status.
func (s *Server) SetAlarmStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	alarmStatus, err := alarm.ParseAlarmStatus(req.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return respond(s.service.SetAlarmStatus(withActor(ctx), alarmStatus))
}

// AddSensor registers a sensor.
func (s *Server) AddSensor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sensor, err := wire.SensorFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return respond(s.service.AddSensor(withActor(ctx), sensor))
}

// RemoveSensor unregisters a sensor.
func (s *Server) RemoveSensor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sensor, err := wire.SensorFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return respond(s.service.RemoveSensor(withActor(ctx), sensor))
}

// ChangeSensorActivation reports a sensor reading. The "active" field of the
// request is the new reading.
func (s *Server) ChangeSensorActivation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sensor, err := wire.SensorFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return respond(s.service.ChangeSensorActivation(withActor(ctx), sensor, sensor.Active))
}

// ProcessImage classifies an encoded camera frame.
func (s *Server) ProcessImage(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	if len(req.GetValue()) == 0 {
		return nil, status.Error(codes.InvalidArgument, "image is required")
	}

	img, _, err := classifier.Decode(bytes.NewReader(req.GetValue()))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return respond(s.service.ProcessImage(withActor(ctx), img))
}

// ListEvents returns the most recent events, newest first.
func (s *Server) ListEvents(ctx context.Context, req *wrapperspb.Int32Value) (*structpb.Struct, error) {
	limit := int(req.GetValue())
	if limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must not be negative")
	}

	limit = min(limit, MaxListEvents)

	events, err := s.service.ListEvents(withActor(ctx), limit)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to list events", "error", err)

		return nil, status.Error(codes.Internal, "unable to list events")
	}

	values := make([]*structpb.Value, 0, len(events))
	for _, e := range events {
		values = append(values, structpb.NewStructValue(wire.EventToStruct(e.ID, e.Event)))
	}

	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			wire.FieldEvents: structpb.NewListValue(&structpb.ListValue{Values: values}),
		},
	}, nil
}

// ActorFromContext extracts the caller identity from incoming metadata.
func ActorFromContext(ctx context.Context) *alarm.Actor {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil
	}

	actor := &alarm.Actor{
		Hostname: first(md.Get(MetadataHostname)),
		Username: first(md.Get(MetadataUsername)),
	}

	if actor.String() == "" {
		return nil
	}

	return actor
}

// ActorToContext attaches the caller identity to outgoing metadata.
func ActorToContext(ctx context.Context, actor *alarm.Actor) context.Context {
	if actor == nil {
		return ctx
	}

	return metadata.AppendToOutgoingContext(ctx,
		MetadataHostname, actor.Hostname,
		MetadataUsername, actor.Username,
	)
}

// withActor adds the caller identity to the logger carried by ctx.
func withActor(ctx context.Context) context.Context {
	if actor := ActorFromContext(ctx); actor != nil {
		return logger.WithKV(ctx, "actor", actor.String())
	}

	return ctx
}

// respond converts a service result into a response.
func respond(snapshot *alarm.Snapshot, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, status.Error(codes.Internal, "unable to persist state")
	}

	return wire.SnapshotToStruct(snapshot), nil
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}

	return values[0]
}
