package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	errQueueFull  = errors.New("send queue full")
	errConnClosed = errors.New("connection closed")
)

// wsConn is the gorilla-backed Transport. Frames go through a bounded queue
// drained by writeLoop, the only writer of data messages.
type wsConn struct {
	conn      *websocket.Conn
	out       chan []byte
	closed    chan struct{}
	once      sync.Once
	writeWait time.Duration
}

func newWsConn(c *websocket.Conn, queue int, writeWait time.Duration) *wsConn {
	return &wsConn{
		conn:      c,
		out:       make(chan []byte, queue),
		closed:    make(chan struct{}),
		writeWait: writeWait,
	}
}

func (c *wsConn) Send(data []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}

	select {
	case c.out <- data:
		return nil
	default:
		return errQueueFull
	}
}

// Close sends a close frame and drops the socket. Safe to call many times.
func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.writeWait))
		err = c.conn.Close()
	})

	return err
}

func (c *wsConn) writeLoop(pingEvery time.Duration) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait)); err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}
