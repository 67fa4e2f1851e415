package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/cwrk-planet/realtime-service/config"
	"github.com/cwrk-planet/realtime-service/internal/metrics"
	"github.com/cwrk-planet/realtime-service/internal/permission"
	"github.com/cwrk-planet/realtime-service/internal/postgres"
	"github.com/cwrk-planet/realtime-service/internal/security"
	"github.com/cwrk-planet/realtime-service/internal/service"
	grpcx "github.com/cwrk-planet/realtime-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/realtime-service/internal/transport/http"
	"github.com/cwrk-planet/realtime-service/internal/transport/ws"
	"github.com/cwrk-planet/realtime-service/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run())
}

// run возвращает код выхода, чтобы отложенные Close успели отработать.
func run() int {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("load config: %v", err)
		return 1
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting realtime-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- postgres (optional) ---
	var pool *pgxpool.Pool
	if cfg.Postgres.DSN != "" {
		pool, err = postgres.NewPool(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnIdleTime: cfg.Postgres.MaxConnIdle,
			ApplicationName: cfg.Logging.Service,
		})
		if err != nil {
			slog.Error("postgres", "err", err)
			return 1
		}
		defer pool.Close()
	} else {
		slog.Warn("postgres disabled: no role registry lookups, receipts or LISTEN ingress")
	}

	// --- permission gate ---
	gate, err := loadGate(ctx, cfg, pool)
	if err != nil {
		slog.Error("roles", "err", err)
		return 1
	}

	// --- session ---
	pub, err := security.LoadRSAPublicKeyFromPEM(cfg.Session.PublicKeyPath)
	if err != nil {
		slog.Error("session key", "err", err)
		return 1
	}
	verifier := security.NewJWTVerifier(pub, cfg.Session.Issuer, cfg.Session.Audience, cfg.Session.ClockSkew, nil)

	// --- hub ---
	m := metrics.New()
	hubOpts := []ws.Option{
		ws.WithMetrics(m),
		ws.WithTypingTimeout(cfg.Typing.Timeout),
	}
	var roleResolver security.RoleResolver
	if pool != nil {
		users := postgres.NewUserRepository(pool)
		roleResolver = users
		hubOpts = append(hubOpts,
			ws.WithRoleResolver(users),
			ws.WithMessageLookup(postgres.NewMessageRepository(pool)),
		)
	}
	hub := ws.NewHub(gate, hubOpts...)

	auth := security.NewAuthenticator(verifier, cfg.Session.CookieName, roleResolver)
	wsServer := ws.NewServer(hub, auth, ws.Options{
		PingEvery:      cfg.WS.PingEvery,
		WriteWait:      cfg.WS.WriteWait,
		ReadLimit:      cfg.WS.ReadLimit,
		SendQueue:      cfg.WS.SendQueue,
		AllowedOrigins: cfg.WS.AllowedOrigins,
	})

	notifySvc := service.NewNotifyService(hub, m)
	guard := security.NewTokenGuard(cfg.Internal.Token)
	if cfg.Internal.Token == "" {
		slog.Warn("internal token is empty: /internal/notify and gRPC Notify reject every call")
	}

	// --- HTTP ---
	router := httpx.NewRouter(httpx.Deps{
		Handler:        httpx.NewHandler(hub, notifySvc),
		WS:             wsServer.HandleWS,
		SessionAuth:    auth.Middleware,
		InternalAuth:   guard.Middleware,
		Metrics:        m.Handler(),
		AllowedOrigins: cfg.WS.AllowedOrigins,
	})
	httpSrv := httpx.NewServer(httpx.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}, router)

	// --- gRPC ---
	grpcServer := grpcx.NewGRPCServer()
	health := grpcx.Register(grpcServer, grpcx.NewServer(notifySvc, guard))

	// --- run ---
	g, gctx := errgroup.WithContext(ctx)

	// hijacked ws-соединения http.Server.Shutdown не закрывает
	g.Go(func() error {
		<-gctx.Done()
		hub.Shutdown()
		return nil
	})

	g.Go(func() error {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		return httpSrv.Run(gctx)
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return err
		}
		slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
		go func() {
			<-gctx.Done()
			health.Shutdown()
			grpcServer.GracefulStop()
		}()
		return grpcServer.Serve(lis)
	})

	if pool != nil {
		listener := postgres.NewListener(pool, cfg.Postgres.NotifyChannel, notifySvc, nil)
		g.Go(func() error { return listener.Run(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("stopped")

	return 0
}

func loadGate(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (*permission.Gate, error) {
	if cfg.Roles.Source == "postgres" {
		rules, err := postgres.NewRoleRepository(pool).LoadRules(ctx)
		if err != nil {
			return nil, err
		}
		slog.Info("roles loaded", "source", "postgres", "senders", len(rules))
		return permission.NewGate(rules), nil
	}

	g, err := permission.LoadFile(cfg.Roles.File)
	if err != nil {
		return nil, err
	}
	slog.Info("roles loaded", "source", cfg.Roles.File, "senders", len(g.Rules()))

	return g, nil
}
