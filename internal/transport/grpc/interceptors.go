package grpcx

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/cwrk-planet/realtime-service/pkg/httputil"
	"github.com/cwrk-planet/realtime-service/pkg/logger"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	defaultDeadline = 10 * time.Second
	mdRequestID     = "x-request-id"
)

// UnaryServerInterceptor: request id, deadline guard, recover, access log.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		start := time.Now()
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, defaultDeadline)
			defer cancel()
		}

		reqID := incomingRequestID(ctx)
		ctx = httputil.WithRequestID(ctx, reqID)
		_ = grpc.SetHeader(ctx, metadata.Pairs(mdRequestID, reqID))

		log := logger.FromCtx(ctx).With("method", info.FullMethod, "req_id", reqID, "peer", peerAddr(ctx))

		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc unary panic", "panic", r, "stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal server error")
			}
			code := status.Code(err)
			log.Log(ctx, levelFor(code), "grpc unary",
				"code", code.String(),
				"dur_ms", time.Since(start).Milliseconds(),
				"err", errString(err))
		}()

		return handler(ctx, req)
	}
}

// StreamServerInterceptor ловит панику; стримы здесь только у health.Watch.
func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("grpc stream panic",
					"method", info.FullMethod,
					"panic", r,
					"stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal server error")
			}
		}()

		return handler(srv, ss)
	}
}

func incomingRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := first(md.Get(mdRequestID)); v != "" {
			return v
		}
	}

	return uuid.NewString()
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}

	return ""
}

// клиентские ошибки не шумят на Error
func levelFor(code codes.Code) slog.Level {
	switch code {
	case codes.OK:
		return slog.LevelInfo
	case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
