package controller

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/repository/connection"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var errClientClosed = errors.New("client closed")

// client owns the write side of one websocket. Every outbound message goes
// through its buffered queue and a single write pump.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func newClient(conn *websocket.Conn, sendBuffer int, logger *slog.Logger) *client {
	return &client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Send enqueues data without blocking.
func (cl *client) Send(data []byte) error {
	select {
	case <-cl.done:
		return errClientClosed
	default:
	}

	select {
	case cl.send <- data:
		return nil
	case <-cl.done:
		return errClientClosed
	default:
		return connection.ErrSendBufferFull
	}
}

func (cl *client) close() {
	cl.once.Do(func() {
		close(cl.done)
	})
}

func (cl *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.close()
		cl.conn.Close()
	}()

	for {
		select {
		case <-cl.done:
			cl.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			return
		case msg := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				cl.logger.Debug("failed to write message", "error", err)
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cl.logger.Debug("failed to write ping", "error", err)
				return
			}
		}
	}
}

func (cl *client) extendReadDeadline() {
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
}

func (cl *client) prepareRead() {
	cl.conn.SetReadLimit(maxMessageSize)
	cl.extendReadDeadline()
	cl.conn.SetPongHandler(func(string) error {
		cl.extendReadDeadline()
		return nil
	})
}
