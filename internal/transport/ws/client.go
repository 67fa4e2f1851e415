package ws

import (
	"sync/atomic"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"

	"github.com/google/uuid"
)

// Transport is the write side of one physical connection. Send must not
// block: a full queue is reported as an error and the frame is dropped.
type Transport interface {
	Send(data []byte) error
	Close() error
}

type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client is one admitted connection. Its state only moves forward.
type Client struct {
	ID       uuid.UUID
	UserID   string
	Role     domain.Role
	OpenedAt time.Time

	tr    Transport
	state atomic.Int32
}

func newClient(userID string, role domain.Role, tr Transport, now time.Time) *Client {
	return &Client{
		ID:       uuid.New(),
		UserID:   userID,
		Role:     role,
		OpenedAt: now,
		tr:       tr,
	}
}

func (c *Client) State() State {
	return State(c.state.Load())
}

// advance moves the client to a later state. Returns false if it is already
// there or past it.
func (c *Client) advance(to State) bool {
	for {
		cur := c.state.Load()
		if State(cur) >= to {
			return false
		}
		if c.state.CompareAndSwap(cur, int32(to)) {
			return true
		}
	}
}
