package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
)

// EnvelopeHandler получает каждое уведомление ровно один раз.
type EnvelopeHandler interface {
	Notify(ctx context.Context, env domain.Envelope) (bool, error)
}

type listenConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Release()
}

type acquireFunc func(ctx context.Context) (listenConn, error)

// Listener слушает NOTIFY от слоя хранения и передаёт конверты в диспетчер.
// При потере соединения переподключается через retryDelay.
type Listener struct {
	acquire    acquireFunc
	channel    string
	handler    EnvelopeHandler
	clock      clockwork.Clock
	retryDelay time.Duration
}

func NewListener(pool *pgxpool.Pool, channel string, handler EnvelopeHandler, clock clockwork.Clock) *Listener {
	return newListener(poolAcquirer(pool), channel, handler, clock)
}

func newListener(acquire acquireFunc, channel string, handler EnvelopeHandler, clock clockwork.Clock) *Listener {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Listener{
		acquire:    acquire,
		channel:    channel,
		handler:    handler,
		clock:      clock,
		retryDelay: 2 * time.Second,
	}
}

// Run блокируется до отмены ctx.
func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("pg listener disconnected", "channel", l.channel, "err", err, "retry_in", l.retryDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-l.clock.After(l.retryDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	slog.Info("pg listener started", "channel", l.channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		env, err := decodeNotification(n.Payload)
		if err != nil {
			slog.Warn("pg notification skipped", "channel", n.Channel, "err", err)
			continue
		}
		if _, err := l.handler.Notify(ctx, env); err != nil {
			slog.Warn("pg notification rejected", "target", env.TargetUserID, "err", err)
		}
	}
}

func decodeNotification(payload string) (domain.Envelope, error) {
	var env domain.Envelope
	if payload == "" {
		return env, fmt.Errorf("%w: empty payload", domain.ErrInvalidEnvelope)
	}
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return env, fmt.Errorf("%w: %v", domain.ErrInvalidEnvelope, err)
	}

	return env, nil
}

type poolConn struct {
	*pgxpool.Conn
}

func (c poolConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	return c.Conn.Conn().WaitForNotification(ctx)
}

func poolAcquirer(pool *pgxpool.Pool) acquireFunc {
	return func(ctx context.Context) (listenConn, error) {
		if pool == nil {
			return nil, errors.New("no pool")
		}
		c, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return poolConn{c}, nil
	}
}
