package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/gridarbiter/internal/usecase"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
	egressSize     = 64
)

var (
	ErrClientClosed = errors.New("client connection closed")
	ErrSlowClient   = errors.New("client is not draining its messages")
)

// Client wraps one websocket connection. Outgoing messages are queued on egress and written by
// a single writer goroutine, so Send never blocks the caller.
type Client struct {
	id         string
	connection *websocket.Conn
	logger     *slog.Logger

	egress    chan outboundMessage
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	id := uuid.NewString()

	return &Client{
		id:         id,
		connection: conn,
		logger:     logger.With("conn", id),
		egress:     make(chan outboundMessage, egressSize),
		done:       make(chan struct{}),
	}
}

func (that *Client) ID() string {
	return that.id
}

// Send - queues a notification. A client whose queue is full is closed.
func (that *Client) Send(notification usecase.Notification) error {
	select {
	case <-that.done:
		return ErrClientClosed
	default:
	}

	select {
	case that.egress <- toOutbound(notification):
		return nil
	default:
		that.Close()
		return ErrSlowClient
	}
}

func (that *Client) Close() {
	that.closeOnce.Do(func() {
		close(that.done)
		_ = that.connection.Close()
	})
}

// readMessages - blocks until the connection fails or closes, passing every text frame to handle.
func (that *Client) readMessages(handle func(payload []byte)) error {
	that.connection.SetReadLimit(maxMessageSize)

	if err := that.connection.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}

	that.connection.SetPongHandler(func(string) error {
		return that.connection.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, payload, err := that.connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return err
			}

			return nil
		}

		if messageType != websocket.TextMessage {
			payload = nil
		}

		handle(payload)
	}
}

// writeMessages - drains egress and keeps the peer alive with pings until ctx is done or the
// client is closed.
func (that *Client) writeMessages(ctx context.Context) {
	log := that.logger.With("method", "writeMessages")

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		that.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-that.done:
			return
		case message := <-that.egress:
			if err := that.connection.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Debug("failed to set write deadline", "error", err)
				return
			}

			if err := that.connection.WriteJSON(message); err != nil {
				log.Debug("failed to write message", "error", err)
				return
			}
		case <-ticker.C:
			if err := that.connection.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}

			if err := that.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("failed to ping", "error", err)
				return
			}
		}
	}
}
