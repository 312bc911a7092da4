package security

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "catpoint.v1.SecurityService"

// Full method names, used by clients with grpc.ClientConn.Invoke.
const (
	GetStatusMethod              = "/" + ServiceName + "/GetStatus"
	SetArmingStatusMethod        = "/" + ServiceName + "/SetArmingStatus"
	SetAlarmStatusMethod         = "/" + ServiceName + "/SetAlarmStatus"
	AddSensorMethod              = "/" + ServiceName + "/AddSensor"
	RemoveSensorMethod           = "/" + ServiceName + "/RemoveSensor"
	ChangeSensorActivationMethod = "/" + ServiceName + "/ChangeSensorActivation"
	ProcessImageMethod           = "/" + ServiceName + "/ProcessImage"
	ListEventsMethod             = "/" + ServiceName + "/ListEvents"
)

// SecurityServiceServer is the server API of the security service.
type SecurityServiceServer interface {
	GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	SetArmingStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	SetAlarmStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	AddSensor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RemoveSensor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ChangeSensorActivation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ProcessImage(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error)
	ListEvents(ctx context.Context, req *wrapperspb.Int32Value) (*structpb.Struct, error)
}

// ServiceDesc describes the security service for grpc.Server.RegisterService.
//
//nolint:gochecknoglobals // Service descriptors are package-level by convention.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SecurityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: getStatusHandler},
		{MethodName: "SetArmingStatus", Handler: setArmingStatusHandler},
		{MethodName: "SetAlarmStatus", Handler: setAlarmStatusHandler},
		{MethodName: "AddSensor", Handler: addSensorHandler},
		{MethodName: "RemoveSensor", Handler: removeSensorHandler},
		{MethodName: "ChangeSensorActivation", Handler: changeSensorActivationHandler},
		{MethodName: "ProcessImage", Handler: processImageHandler},
		{MethodName: "ListEvents", Handler: listEventsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "catpoint/v1/security.proto",
}

// Register attaches the server to a gRPC registrar.
func Register(registrar grpc.ServiceRegistrar, srv SecurityServiceServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

// unary decodes the request into a fresh message and runs it through the interceptor chain.
func unary[Req any](
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
	method string,
	call func(SecurityServiceServer, context.Context, *Req) (*structpb.Struct, error),
) (any, error) {
	in := new(Req)
	if err := dec(in); err != nil {
		return nil, err
	}

	server, _ := srv.(SecurityServiceServer)
	if interceptor == nil {
		return call(server, ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: method,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		typed, _ := req.(*Req)

		return call(server, ctx, typed)
	}

	return interceptor(ctx, in, info, handler)
}

func getStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unary(srv, ctx, dec, interceptor, GetStatusMethod, SecurityServiceServer.GetStatus)
}

func setArmingStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unary(srv, ctx, dec, interceptor, SetArmingStatusMethod, SecurityServiceServer.SetArmingStatus)
}

func setAlarmStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unary(srv, ctx, dec, interceptor, SetAlarmStatusMethod, SecurityServiceServer.SetAlarmStatus)
}

func addSensorHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unary(srv, ctx, dec, interceptor, AddSensorMethod, SecurityServiceServer.AddSensor)
}

func removeSensorHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unary(srv, ctx, dec, interceptor, RemoveSensorMethod, SecurityServiceServer.RemoveSensor)
}

func changeSensorActivationHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unary(srv, ctx, dec, interceptor, ChangeSensorActivationMethod, SecurityServiceServer.ChangeSensorActivation)
}

func processImageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unary(srv, ctx, dec, interceptor, ProcessImageMethod, SecurityServiceServer.ProcessImage)
}

func listEventsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unary(srv, ctx, dec, interceptor, ListEventsMethod, SecurityServiceServer.ListEvents)
}
