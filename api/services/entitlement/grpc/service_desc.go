package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "entitlements.v1.EntitlementService"

// Full method names, as they appear on the wire.
const (
	MethodCreateSession = "/" + ServiceName + "/CreateSession"
	MethodSetIdentity   = "/" + ServiceName + "/SetIdentity"
	MethodGetSnapshot   = "/" + ServiceName + "/GetSnapshot"
	MethodCheckFeature  = "/" + ServiceName + "/CheckFeature"
	MethodEndSession    = "/" + ServiceName + "/EndSession"
	MethodStartTrial    = "/" + ServiceName + "/StartTrial"
)

// EntitlementServiceServer is the server API of entitlements.v1.EntitlementService.
// Requests and responses are google.protobuf.Struct objects.
type EntitlementServiceServer interface {
	CreateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetIdentity(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckFeature(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EndSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartTrial(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(EntitlementServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EntitlementServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(EntitlementServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc is the grpc.ServiceDesc for entitlements.v1.EntitlementService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EntitlementServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateSession", Handler: unaryHandler(MethodCreateSession, EntitlementServiceServer.CreateSession)},
		{MethodName: "SetIdentity", Handler: unaryHandler(MethodSetIdentity, EntitlementServiceServer.SetIdentity)},
		{MethodName: "GetSnapshot", Handler: unaryHandler(MethodGetSnapshot, EntitlementServiceServer.GetSnapshot)},
		{MethodName: "CheckFeature", Handler: unaryHandler(MethodCheckFeature, EntitlementServiceServer.CheckFeature)},
		{MethodName: "EndSession", Handler: unaryHandler(MethodEndSession, EntitlementServiceServer.EndSession)},
		{MethodName: "StartTrial", Handler: unaryHandler(MethodStartTrial, EntitlementServiceServer.StartTrial)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "entitlements/v1/entitlements.proto",
}

// Register attaches srv to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv EntitlementServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Invoke calls method on a client connection with a Struct request.
func Invoke(ctx context.Context, cc grpc.ClientConnInterface, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
