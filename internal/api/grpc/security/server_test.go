package security

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/catpoint/internal/domain/alarm"
	"github.com/oshokin/catpoint/internal/notify"
	"github.com/oshokin/catpoint/internal/wire"
)

var errTestPersist = errors.New("test persist error")

// fakeService implements Service for unit testing the transport.
type fakeService struct {
	snapshot  *alarm.Snapshot
	saveErr   error
	lastImage image.Image
	lastLimit int
	lastActor *alarm.Actor
	events    []Event
}

func newFakeService() *fakeService {
	return &fakeService{snapshot: alarm.DefaultSnapshot()}
}

func (f *fakeService) result() (*alarm.Snapshot, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}

	return f.snapshot.Clone(), nil
}

func (f *fakeService) Snapshot(ctx context.Context) *alarm.Snapshot {
	f.lastActor = ActorFromContext(ctx)

	return f.snapshot.Clone()
}

func (f *fakeService) SetArmingStatus(_ context.Context, s alarm.ArmingStatus) (*alarm.Snapshot, error) {
	f.snapshot.ArmingStatus = s

	return f.result()
}

func (f *fakeService) SetAlarmStatus(_ context.Context, s alarm.AlarmStatus) (*alarm.Snapshot, error) {
	f.snapshot.AlarmStatus = s

	return f.result()
}

func (f *fakeService) AddSensor(_ context.Context, sensor alarm.Sensor) (*alarm.Snapshot, error) {
	f.snapshot.Sensors = append(f.snapshot.Sensors, sensor)

	return f.result()
}

func (f *fakeService) RemoveSensor(_ context.Context, _ alarm.Sensor) (*alarm.Snapshot, error) {
	f.snapshot.Sensors = nil

	return f.result()
}

func (f *fakeService) ChangeSensorActivation(_ context.Context, sensor alarm.Sensor, active bool) (*alarm.Snapshot, error) {
	sensor.Active = active
	f.snapshot.Sensors = []alarm.Sensor{sensor}

	return f.result()
}

func (f *fakeService) ProcessImage(_ context.Context, img image.Image) (*alarm.Snapshot, error) {
	f.lastImage = img

	return f.result()
}

func (f *fakeService) ListEvents(_ context.Context, limit int) ([]Event, error) {
	f.lastLimit = limit

	return f.events, f.saveErr
}

// dial serves the fake over an in-memory listener and returns a client connection.
func dial(t *testing.T, svc Service) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	Register(srv, NewServer(svc))

	go func() {
		_ = srv.Serve(lis)
	}()

	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return buf.Bytes()
}

// TestServer_RoundTrip exercises every method over a real gRPC connection.
func TestServer_RoundTrip(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	svc.events = []Event{{ID: "e1", Event: notify.Event{Kind: notify.KindAlarmStatus, AlarmStatus: alarm.Alarm}}}
	conn := dial(t, svc)

	ctx := ActorToContext(context.Background(), &alarm.Actor{Hostname: "panel", Username: "o.shokin"})
	out := new(structpb.Struct)

	require.NoError(t, conn.Invoke(ctx, GetStatusMethod, new(emptypb.Empty), out))
	require.Equal(t, "panel", svc.lastActor.Hostname)
	require.Equal(t, "o.shokin", svc.lastActor.Username)

	require.NoError(t, conn.Invoke(ctx, SetArmingStatusMethod, wrapperspb.String("armed_home"), out))

	snapshot, err := wire.SnapshotFromStruct(out)
	require.NoError(t, err)
	require.Equal(t, alarm.ArmedHome, snapshot.ArmingStatus)

	require.NoError(t, conn.Invoke(ctx, SetAlarmStatusMethod, wrapperspb.String("PENDING_ALARM"), out))

	snapshot, err = wire.SnapshotFromStruct(out)
	require.NoError(t, err)
	require.Equal(t, alarm.PendingAlarm, snapshot.AlarmStatus)

	door := alarm.Sensor{Name: "Front door", Type: alarm.Door, Active: true}
	require.NoError(t, conn.Invoke(ctx, ChangeSensorActivationMethod, wire.SensorToStruct(door), out))

	snapshot, err = wire.SnapshotFromStruct(out)
	require.NoError(t, err)
	require.Equal(t, []alarm.Sensor{door}, snapshot.Sensors)

	require.NoError(t, conn.Invoke(ctx, ProcessImageMethod, wrapperspb.Bytes(pngBytes(t)), out))
	require.NotNil(t, svc.lastImage)
	require.Equal(t, 2, svc.lastImage.Bounds().Dx())

	require.NoError(t, conn.Invoke(ctx, ListEventsMethod, wrapperspb.Int32(10_000), out))
	require.Equal(t, MaxListEvents, svc.lastLimit)

	events := out.GetFields()[wire.FieldEvents].GetListValue().GetValues()
	require.Len(t, events, 1)

	id, event, err := wire.EventFromStruct(events[0].GetStructValue())
	require.NoError(t, err)
	require.Equal(t, "e1", id)
	require.Equal(t, alarm.Alarm, event.AlarmStatus)
}

// TestServer_Validation ensures invalid requests return InvalidArgument errors.
func TestServer_Validation(t *testing.T) {
	t.Parallel()

	s := NewServer(newFakeService())
	ctx := context.Background()

	_, err := s.SetArmingStatus(ctx, wrapperspb.String("sideways"))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.SetAlarmStatus(ctx, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.AddSensor(ctx, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.RemoveSensor(ctx, wire.SensorToStruct(alarm.Sensor{Type: alarm.Door}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.ProcessImage(ctx, wrapperspb.Bytes(nil))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.ProcessImage(ctx, wrapperspb.Bytes([]byte("not an image")))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.ListEvents(ctx, wrapperspb.Int32(-1))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

// TestServer_PersistFailure maps service errors to Internal.
func TestServer_PersistFailure(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	svc.saveErr = errTestPersist
	s := NewServer(svc)

	_, err := s.SetArmingStatus(context.Background(), wrapperspb.String("DISARMED"))
	require.Equal(t, codes.Internal, status.Code(err))

	_, err = s.ListEvents(context.Background(), wrapperspb.Int32(1))
	require.Equal(t, codes.Internal, status.Code(err))
}

// TestActorFromContext covers missing and partial metadata.
func TestActorFromContext(t *testing.T) {
	t.Parallel()

	require.Nil(t, ActorFromContext(context.Background()))

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(MetadataUsername, "kid"))
	actor := ActorFromContext(ctx)
	require.NotNil(t, actor)
	require.Equal(t, "kid", actor.Username)
	require.Empty(t, actor.Hostname)
}
