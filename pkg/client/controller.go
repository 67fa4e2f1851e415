// Package client keeps one logical realtime connection alive across
// transient failures, retrying with capped exponential backoff.
package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var ErrNotConnected = errors.New("not connected")

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateGaveUp
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateGaveUp:
		return "gave_up"
	default:
		return "unknown"
	}
}

// Conn is one physical connection. ReadMessage blocks until a frame arrives
// or the connection fails.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

type Config struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	DialTimeout time.Duration
	Clock       clockwork.Clock

	// OnFrame получает каждый входящий кадр в порядке чтения.
	OnFrame func(data []byte)
	// OnState вызывается после каждого перехода, вне внутренней блокировки.
	OnState func(s State)
}

func (c *Config) setDefaults() {
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
}

// Controller owns a single logical connection. Every intentional action
// (Close, Reconnect) bumps gen, which invalidates in-flight dials, read
// loops and scheduled retries of the previous generation.
type Controller struct {
	dialer Dialer
	cfg    Config

	mu      sync.Mutex
	state   State
	attempt int
	conn    Conn
	retry   clockwork.Timer
	cancel  context.CancelFunc
	gen     uint64
	pending []State
}

func NewController(dialer Dialer, cfg Config) *Controller {
	cfg.setDefaults()

	return &Controller{dialer: dialer, cfg: cfg}
}

// Connect starts connecting unless a connection is already live or being
// established.
func (c *Controller) Connect() {
	c.mu.Lock()
	if c.state != StateDisconnected && c.state != StateGaveUp {
		c.mu.Unlock()
		return
	}
	gen := c.resetLocked()
	c.unlockAndNotify()

	go c.dial(gen)
}

// Reconnect drops whatever is in progress and starts over with a fresh
// attempt counter. Used after GaveUp or when the session identity changes.
func (c *Controller) Reconnect() {
	c.mu.Lock()
	gen := c.resetLocked()
	c.unlockAndNotify()

	go c.dial(gen)
}

// Close is an intentional disconnect: no retry is scheduled.
func (c *Controller) Close() {
	c.mu.Lock()
	c.resetLocked()
	c.setLocked(StateDisconnected)
	c.unlockAndNotify()
}

func (c *Controller) Send(data []byte) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	return conn.WriteMessage(data)
}

func (c *Controller) IsConnected() bool {
	return c.State() == StateConnected
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Attempt returns how many retries have been scheduled since the last
// successful connect.
func (c *Controller) Attempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.attempt
}

// resetLocked invalidates the current generation and returns the new one.
func (c *Controller) resetLocked() uint64 {
	c.gen++
	c.attempt = 0
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	return c.gen
}

func (c *Controller) dial(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	c.cancel = cancel
	c.setLocked(StateConnecting)
	c.unlockAndNotify()

	conn, err := c.dialer.Dial(ctx)

	c.mu.Lock()
	cancel()
	if gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	c.cancel = nil
	if err != nil {
		slog.Debug("realtime dial failed", "attempt", c.attempt, "err", err)
		c.scheduleRetryLocked(gen)
		c.unlockAndNotify()
		return
	}
	c.conn = conn
	c.attempt = 0
	c.setLocked(StateConnected)
	c.unlockAndNotify()

	go c.readLoop(gen, conn)
}

func (c *Controller) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.dropped(gen, conn, err)
			return
		}
		if c.cfg.OnFrame != nil {
			c.cfg.OnFrame(data)
		}
	}
}

// dropped handles a connection that closed on us.
func (c *Controller) dropped(gen uint64, conn Conn, cause error) {
	c.mu.Lock()
	if gen != c.gen || c.conn != conn {
		c.mu.Unlock()
		return
	}
	_ = conn.Close()
	c.conn = nil
	slog.Debug("realtime connection lost", "err", cause)
	c.scheduleRetryLocked(gen)
	c.unlockAndNotify()
}

func (c *Controller) scheduleRetryLocked(gen uint64) {
	if c.attempt >= c.cfg.MaxAttempts {
		slog.Info("realtime reconnect gave up", "attempts", c.attempt)
		c.setLocked(StateGaveUp)
		return
	}

	d := Delay(c.attempt, c.cfg.BaseDelay, c.cfg.MaxDelay)
	c.attempt++
	c.setLocked(StateReconnecting)
	c.retry = c.cfg.Clock.AfterFunc(d, func() { c.dial(gen) })
}

func (c *Controller) setLocked(s State) {
	c.state = s
	c.pending = append(c.pending, s)
}

func (c *Controller) unlockAndNotify() {
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if c.cfg.OnState == nil {
		return
	}
	for _, s := range pending {
		c.cfg.OnState(s)
	}
}
