package grpcx

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// realtime.v1.Notifier без сгенерированного кода: запрос и ответ -
// google.protobuf.Struct.
const (
	NotifierServiceName = "realtime.v1.Notifier"
	NotifyFullMethod    = "/" + NotifierServiceName + "/Notify"
)

type NotifierServer interface {
	Notify(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var NotifierServiceDesc = grpc.ServiceDesc{
	ServiceName: NotifierServiceName,
	HandlerType: (*NotifierServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Notify", Handler: notifyHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "realtime/v1/notifier.proto",
}

func notifyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NotifierServer).Notify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: NotifyFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(NotifierServer).Notify(ctx, req.(*structpb.Struct))
	}

	return interceptor(ctx, in, info, handler)
}

// NotifierClient - клиент для сервисов, которые пишут сообщения.
type NotifierClient struct {
	cc grpc.ClientConnInterface
}

func NewNotifierClient(cc grpc.ClientConnInterface) *NotifierClient {
	return &NotifierClient{cc: cc}
}

func (c *NotifierClient) Notify(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, NotifyFullMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
