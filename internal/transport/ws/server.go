package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"

	"github.com/gorilla/websocket"
)

// Authenticator resolves the session of an upgrade request before admit.
type Authenticator interface {
	Authenticate(r *http.Request) (domain.Identity, error)
}

type Options struct {
	PingEvery      time.Duration
	WriteWait      time.Duration
	ReadLimit      int64
	SendQueue      int
	AllowedOrigins []string
}

func (o *Options) setDefaults() {
	if o.PingEvery <= 0 {
		o.PingEvery = 15 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 1 << 16
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 64
	}
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	auth     Authenticator
	opts     Options
}

func NewServer(hub *Hub, auth Authenticator, opts Options) *Server {
	opts.setDefaults()

	return &Server{
		hub:  hub,
		auth: auth,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
}

// HandleWS: GET /ws. Сессия берётся из cookie / Authorization / ?access_token.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	id, err := s.auth.Authenticate(r)
	if err != nil {
		slog.Debug("ws unauthenticated", "remote", r.RemoteAddr, "err", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		slog.Warn("ws upgrade failed", "user", id.UserID, "err", err)
		return
	}

	tr := newWsConn(conn, s.opts.SendQueue, s.opts.WriteWait)
	go tr.writeLoop(s.opts.PingEvery)

	c := s.hub.Admit(id.UserID, id.Role, tr)
	slog.Info("ws connected", "user", c.UserID, "role", string(c.Role), "conn", c.ID.String())

	s.readLoop(r.Context(), c, tr)
	s.hub.Close(c, "read loop finished")
}

func (s *Server) readLoop(ctx context.Context, c *Client, tr *wsConn) {
	tr.conn.SetReadLimit(s.opts.ReadLimit)
	_ = tr.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
	tr.conn.SetPongHandler(func(string) error {
		return tr.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
	})

	for {
		_, data, err := tr.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				slog.Debug("ws read failed", "user", c.UserID, "conn", c.ID.String(), "err", err)
			}
			return
		}
		if err := s.hub.Dispatch(ctx, c, data); err != nil {
			slog.Debug("ws frame rejected", "user", c.UserID, "err", err)
		}
	}
}

// originChecker allows everything when the list is empty or holds "*".
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[strings.ToLower(o)] = struct{}{}
		}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(strings.TrimRight(origin, "/"))]
		return ok
	}
}
