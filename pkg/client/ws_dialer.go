package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WSDialer dials the realtime endpoint with the caller's session. Each dial
// resends Header (cookie or Authorization), so a new socket is admitted
// without any extra handshake frame.
type WSDialer struct {
	URL    string
	Header http.Header
	Dialer *websocket.Dialer
}

func (d WSDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", d.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}

	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
