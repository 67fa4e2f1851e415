package grpcx

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/security"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const mdAuthorization = "authorization"

type Notifier interface {
	Notify(ctx context.Context, env domain.Envelope) (bool, error)
}

type Server struct {
	notifier Notifier
	guard    *security.TokenGuard
}

func NewServer(notifier Notifier, guard *security.TokenGuard) *Server {
	return &Server{notifier: notifier, guard: guard}
}

func NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	}, opts...)

	return grpc.NewServer(opts...)
}

// Register вешает Notifier и стандартный health-сервис.
func Register(grpcServer *grpc.Server, s *Server) *health.Server {
	grpcServer.RegisterService(&NotifierServiceDesc, s)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(NotifierServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, hs)

	return hs
}

func (s *Server) Notify(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}

	env, err := envelopeFromStruct(in)
	if err != nil {
		return nil, mapErr(err)
	}
	delivered, err := s.notifier.Notify(ctx, env)
	if err != nil {
		return nil, mapErr(err)
	}

	return structpb.NewStruct(map[string]any{"delivered": delivered})
}

// Authorization: Bearer <internal token>
func (s *Server) authorize(ctx context.Context) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	auth := first(md.Get(mdAuthorization))
	if len(auth) <= 7 || !strings.EqualFold(auth[:7], "bearer ") {
		return status.Error(codes.Unauthenticated, "missing authorization")
	}
	if !s.guard.Check(auth[7:]) {
		return status.Error(codes.Unauthenticated, "invalid internal token")
	}

	return nil
}

func envelopeFromStruct(in *structpb.Struct) (domain.Envelope, error) {
	var env domain.Envelope
	if in == nil {
		return env, domain.ErrInvalidEnvelope
	}
	b, err := protojson.Marshal(in)
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return env, errors.Join(domain.ErrInvalidEnvelope, err)
	}

	return env, nil
}

func first(ss []string) string {
	if len(ss) == 0 {
		return ""
	}

	return ss[0]
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrInvalidEnvelope):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, domain.ErrUserNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
