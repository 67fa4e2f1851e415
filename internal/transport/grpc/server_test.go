package grpcx_test

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/security"
	grpcx "github.com/cwrk-planet/realtime-service/internal/transport/grpc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type recordingNotifier struct {
	mu   sync.Mutex
	envs []domain.Envelope
}

func (n *recordingNotifier) Notify(_ context.Context, env domain.Envelope) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if env.TargetUserID == "" || env.Kind == "" {
		return false, domain.ErrInvalidEnvelope
	}
	n.envs = append(n.envs, env)
	return env.TargetUserID == "online", nil
}

func startGRPC(t *testing.T, n grpcx.Notifier) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	srv := grpcx.NewGRPCServer()
	grpcx.Register(srv, grpcx.NewServer(n, security.NewTokenGuard("internal")))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })

	return cc
}

func withToken(tok string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+tok)
}

func TestNotify(t *testing.T) {
	n := &recordingNotifier{}
	client := grpcx.NewNotifierClient(startGRPC(t, n))

	in, err := structpb.NewStruct(map[string]any{
		"targetUserId": "online",
		"kind":         "chat_message",
		"payload":      map[string]any{"id": "m1"},
		"unreadCount":  3,
	})
	require.NoError(t, err)

	out, err := client.Notify(withToken("internal"), in)
	require.NoError(t, err)
	assert.True(t, out.GetFields()["delivered"].GetBoolValue())

	n.mu.Lock()
	require.Len(t, n.envs, 1)
	env := n.envs[0]
	n.mu.Unlock()
	assert.Equal(t, domain.KindChatMessage, env.Kind)
	assert.JSONEq(t, `{"id":"m1"}`, string(env.Payload))
	require.NotNil(t, env.UnreadCount)
	assert.Equal(t, 3, *env.UnreadCount)

	offline, err := structpb.NewStruct(map[string]any{"targetUserId": "away", "kind": "notification"})
	require.NoError(t, err)
	out, err = client.Notify(withToken("internal"), offline)
	require.NoError(t, err)
	assert.False(t, out.GetFields()["delivered"].GetBoolValue())
}

func TestNotify_Errors(t *testing.T) {
	client := grpcx.NewNotifierClient(startGRPC(t, &recordingNotifier{}))
	in, err := structpb.NewStruct(map[string]any{"targetUserId": "x", "kind": "notification"})
	require.NoError(t, err)

	_, err = client.Notify(context.Background(), in)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.Notify(withToken("wrong"), in)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	bad, err := structpb.NewStruct(map[string]any{"kind": "notification"})
	require.NoError(t, err)
	_, err = client.Notify(withToken("internal"), bad)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	frac, err := structpb.NewStruct(map[string]any{"targetUserId": "x", "kind": "notification", "unreadCount": 1.5})
	require.NoError(t, err)
	_, err = client.Notify(withToken("internal"), frac)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestHealth(t *testing.T) {
	hc := healthpb.NewHealthClient(startGRPC(t, &recordingNotifier{}))

	resp, err := hc.Check(context.Background(), &healthpb.HealthCheckRequest{Service: grpcx.NotifierServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestNotify_RequestIDEchoed(t *testing.T) {
	client := grpcx.NewNotifierClient(startGRPC(t, &recordingNotifier{}))
	in, err := structpb.NewStruct(map[string]any{"targetUserId": "online", "kind": "notification"})
	require.NoError(t, err)

	ctx := metadata.AppendToOutgoingContext(withToken("internal"), "x-request-id", "req-42")
	var hdr metadata.MD
	_, err = client.Notify(ctx, in, grpc.Header(&hdr))
	require.NoError(t, err)
	assert.Equal(t, []string{"req-42"}, hdr.Get("x-request-id"))

	hdr = nil
	_, err = client.Notify(withToken("internal"), in, grpc.Header(&hdr))
	require.NoError(t, err)
	require.Len(t, hdr.Get("x-request-id"), 1)
	assert.NotEmpty(t, hdr.Get("x-request-id")[0])
}
