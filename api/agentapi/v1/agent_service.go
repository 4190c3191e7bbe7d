// Package agentapiv1 is the gRPC contract between the alphabot agent and its
// clients. Requests and responses are protobuf well-known types: events and
// status reports travel as google.protobuf.Struct documents in their JSON shape.
package agentapiv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	AgentService_ServiceName = "alphabot.agent.v1.AgentService"

	AgentService_EmitEvent_FullMethodName = "/" + AgentService_ServiceName + "/EmitEvent"
	AgentService_GetStatus_FullMethodName = "/" + AgentService_ServiceName + "/GetStatus"
)

// AgentServiceServer is the server API for the agent service.
type AgentServiceServer interface {
	// EmitEvent queues a robot event on the agent.
	EmitEvent(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	// GetStatus reports the current state of the robot.
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// UnimplementedAgentServiceServer can be embedded to stay forward compatible.
type UnimplementedAgentServiceServer struct{}

func (UnimplementedAgentServiceServer) EmitEvent(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, unimplemented("EmitEvent")
}

func (UnimplementedAgentServiceServer) GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, unimplemented("GetStatus")
}

func RegisterAgentServiceServer(s grpc.ServiceRegistrar, srv AgentServiceServer) {
	s.RegisterService(&AgentService_ServiceDesc, srv)
}

func _AgentService_EmitEvent_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentServiceServer).EmitEvent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: AgentService_EmitEvent_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AgentServiceServer).EmitEvent(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _AgentService_GetStatus_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentServiceServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: AgentService_GetStatus_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AgentServiceServer).GetStatus(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// AgentService_ServiceDesc is the grpc.ServiceDesc for the agent service.
var AgentService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: AgentService_ServiceName,
	HandlerType: (*AgentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "EmitEvent",
			Handler:    _AgentService_EmitEvent_Handler,
		},
		{
			MethodName: "GetStatus",
			Handler:    _AgentService_GetStatus_Handler,
		},
	},
	Streams: []grpc.StreamDesc{},
}

// AgentServiceClient is the client API for the agent service.
type AgentServiceClient interface {
	EmitEvent(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type agentServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAgentServiceClient(cc grpc.ClientConnInterface) AgentServiceClient {
	return &agentServiceClient{cc}
}

func (c *agentServiceClient) EmitEvent(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, AgentService_EmitEvent_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *agentServiceClient) GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AgentService_GetStatus_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
