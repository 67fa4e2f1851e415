package ws

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/metrics"
	"github.com/cwrk-planet/realtime-service/internal/permission"
	"github.com/cwrk-planet/realtime-service/internal/presence"
	"github.com/cwrk-planet/realtime-service/internal/protocol"
	"github.com/cwrk-planet/realtime-service/internal/typing"

	"github.com/jonboulle/clockwork"
)

// RoleResolver looks up the role of a user who is not connected.
type RoleResolver interface {
	RoleOf(ctx context.Context, userID string) (domain.Role, error)
}

// MessageLookup resolves a stored message to its author and recipient.
type MessageLookup interface {
	MessageParties(ctx context.Context, messageID string) (domain.MessageParties, error)
}

// Hub owns the connection registry together with presence and typing state.
// Lock order: hub.mu, then presence.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client // userID -> open connection

	presence *presence.Tracker
	typing   *typing.Machine
	gate     *permission.Gate

	roles    RoleResolver
	messages MessageLookup
	metrics  *metrics.Metrics
	clock    clockwork.Clock
}

type Option func(*hubOptions)

type hubOptions struct {
	roles         RoleResolver
	messages      MessageLookup
	metrics       *metrics.Metrics
	clock         clockwork.Clock
	typingTimeout time.Duration
}

func WithRoleResolver(r RoleResolver) Option {
	return func(o *hubOptions) { o.roles = r }
}

func WithMessageLookup(m MessageLookup) Option {
	return func(o *hubOptions) { o.messages = m }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *hubOptions) { o.metrics = m }
}

func WithClock(c clockwork.Clock) Option {
	return func(o *hubOptions) { o.clock = c }
}

func WithTypingTimeout(d time.Duration) Option {
	return func(o *hubOptions) { o.typingTimeout = d }
}

func NewHub(gate *permission.Gate, opts ...Option) *Hub {
	o := hubOptions{typingTimeout: typing.DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clockwork.NewRealClock()
	}

	h := &Hub{
		clients:  make(map[string]*Client),
		presence: presence.NewTracker(),
		gate:     gate,
		roles:    o.roles,
		messages: o.messages,
		metrics:  o.metrics,
		clock:    o.clock,
	}
	h.typing = typing.NewMachine(o.clock, o.typingTimeout, h.onTypingExpired)

	return h
}

// Admit registers an authenticated connection as Open. An open connection
// already held by the same user is replaced: it moves to Closing and its
// transport is closed, so a page refresh never leaves the user invisible.
// Presence fan-out happens under the registry lock so peers see online and
// offline events in the order the registry changed.
func (h *Hub) Admit(userID string, role domain.Role, tr Transport) *Client {
	c := newClient(userID, role, tr, h.clock.Now())

	h.mu.Lock()
	old := h.clients[userID]
	h.clients[userID] = c
	c.advance(StateOpen)
	wentOnline := h.presence.MarkOnline(userID)
	replaced := old != nil && old.advance(StateClosing)
	if replaced {
		h.presence.MarkOffline(userID)
	}
	online := h.presence.Count()

	h.sendTo(c, protocol.AuthSuccess())
	if wentOnline {
		h.broadcastExceptLocked(userID, protocol.UserOnline(userID))
	}
	h.mu.Unlock()

	h.metrics.ConnectionOpened()
	h.metrics.SetOnline(online)

	if replaced {
		slog.Info("ws connection replaced",
			"user", userID,
			"old_conn", old.ID.String(),
			"new_conn", c.ID.String(),
			"err", domain.ErrDuplicateConnection)
		h.metrics.ConnectionReplaced()
		h.metrics.ConnectionClosed()
		if err := old.tr.Close(); err != nil {
			slog.Debug("ws close replaced transport failed", "user", userID, "err", err)
		}
		old.advance(StateClosed)
	}

	return c
}

// Close tears the connection down. If it was the user's registered
// connection the user is offline before Close returns, their typing timers
// are cancelled and every other peer gets user_offline. All of that happens
// under the registry lock, so a connection admitted right after can not be
// overtaken by a stale user_offline or lose its typing state.
func (h *Hub) Close(c *Client, reason string) {
	h.mu.Lock()
	wasOpen := c.advance(StateClosing)
	if cur, ok := h.clients[c.UserID]; ok && cur == c {
		delete(h.clients, c.UserID)
	}
	wentOffline := false
	if wasOpen {
		wentOffline = h.presence.MarkOffline(c.UserID)
	}
	online := h.presence.Count()
	if wentOffline {
		for _, p := range h.typing.CancelUser(c.UserID) {
			h.sendToUserLocked(p.ReceiverID, protocol.TypingStopped(c.UserID))
		}
		h.broadcastExceptLocked(c.UserID, protocol.UserOffline(c.UserID))
	}
	h.mu.Unlock()

	if err := c.tr.Close(); err != nil {
		slog.Debug("ws transport close failed", "user", c.UserID, "conn", c.ID.String(), "err", err)
	}
	if !c.advance(StateClosed) {
		return
	}
	if wasOpen {
		h.metrics.ConnectionClosed()
		h.metrics.SetOnline(online)
	}
	if wentOffline {
		h.metrics.SetTyping(h.typing.Len())
	}

	slog.Debug("ws connection closed", "user", c.UserID, "conn", c.ID.String(), "reason", reason)
}

// Send delivers a frame to the user's open connection. A missing connection
// or a full queue is a silent drop reported as false.
func (h *Hub) Send(userID string, f protocol.Frame) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.sendToUserLocked(userID, f)
}

// sendToUserLocked expects h.mu held, read or write.
func (h *Hub) sendToUserLocked(userID string, f protocol.Frame) bool {
	c := h.clients[userID]
	if c == nil {
		h.metrics.FrameDropped("offline")
		return false
	}

	return h.sendTo(c, f)
}

func (h *Hub) IsOnline(userID string) bool {
	return h.presence.IsOnline(userID)
}

// Online returns the sorted ids of connected users.
func (h *Hub) Online() []string {
	return h.presence.Online()
}

// Lookup returns the user's open connection, if any.
func (h *Hub) Lookup(userID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[userID]
	return c, ok
}

// Shutdown closes every connection and cancels every typing timer. No
// presence events are sent.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	all := make([]*Client, 0, len(h.clients))
	for uid, c := range h.clients {
		if c.advance(StateClosing) {
			h.presence.MarkOffline(uid)
			h.metrics.ConnectionClosed()
		}
		all = append(all, c)
		delete(h.clients, uid)
	}
	h.mu.Unlock()

	h.typing.Close()

	for _, c := range all {
		_ = c.tr.Close()
		c.advance(StateClosed)
	}
	h.metrics.SetOnline(0)
	h.metrics.SetTyping(0)

	slog.Info("ws hub stopped", "closed", len(all))
}

func (h *Hub) sendTo(c *Client, f protocol.Frame) bool {
	if c.State() != StateOpen {
		h.metrics.FrameDropped("offline")
		return false
	}
	data, err := protocol.Encode(f)
	if err != nil {
		slog.Error("ws encode frame failed", "type", f.Type, "err", err)
		return false
	}
	if err := c.tr.Send(data); err != nil {
		slog.Debug("ws send dropped", "user", c.UserID, "type", f.Type, "err", err)
		h.metrics.FrameDropped("queue_full")
		return false
	}
	h.metrics.FrameSent(f.Type)

	return true
}

// broadcastExceptLocked sends to every connected user except one, in user
// id order. Expects h.mu held; sendTo only enqueues.
func (h *Hub) broadcastExceptLocked(userID string, f protocol.Frame) {
	peers := make([]*Client, 0, len(h.clients))
	for uid, c := range h.clients {
		if uid != userID {
			peers = append(peers, c)
		}
	}

	sort.Slice(peers, func(i, j int) bool { return peers[i].UserID < peers[j].UserID })
	for _, c := range peers {
		h.sendTo(c, f)
	}
}

// onTypingExpired tells the receiver that typing stopped. A pair armed while
// the receiver was unknown is re-checked against the gate once both ends
// are connected.
func (h *Hub) onTypingExpired(p typing.Pair) {
	h.mu.RLock()
	sender, receiver := h.clients[p.SenderID], h.clients[p.ReceiverID]
	if sender != nil && receiver != nil && !h.gate.CanMessage(sender.Role, receiver.Role) {
		h.mu.RUnlock()
		return
	}
	h.sendToUserLocked(p.ReceiverID, protocol.TypingStopped(p.SenderID))
	h.mu.RUnlock()

	h.metrics.SetTyping(h.typing.Len())
}
