package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mossy-p/consult-signaling/internal/auth"
	"github.com/mossy-p/consult-signaling/internal/models"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// Client is one relay connection.
type Client struct {
	ID   string
	conn *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// Written by the reader goroutine only.
	identity atomic.Pointer[auth.Identity]

	// Owned by the hub loop.
	rooms map[string]models.RoomParties
}

func newClient(id string, conn *websocket.Conn, buffer int) *Client {
	return &Client{
		ID:    id,
		conn:  conn,
		send:  make(chan []byte, buffer),
		done:  make(chan struct{}),
		rooms: make(map[string]models.RoomParties),
	}
}

// Identity returns the authenticated participant, or nil before
// authentication.
func (c *Client) Identity() *auth.Identity {
	return c.identity.Load()
}

// participantID is empty for unauthenticated connections.
func (c *Client) participantID() string {
	if id := c.Identity(); id != nil {
		return id.ParticipantID
	}
	return ""
}

// sharesRoomWith reports whether a room c has joined authorizes participantID.
func (c *Client) sharesRoomWith(participantID string) bool {
	for _, parties := range c.rooms {
		if parties.Includes(participantID) {
			return true
		}
	}
	return false
}

var (
	errConnClosed = errors.New("connection closed")
	errQueueFull  = errors.New("send queue full")
)

// enqueue hands data to the writer without blocking.
func (c *Client) enqueue(data []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errQueueFull
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (h *Hub) readPump(ctx context.Context, c *Client) {
	defer func() {
		h.do(func() { h.disconnect(c) })
		c.close()
		h.log.Debug("connection closed", zap.String("conn_id", c.ID), zap.String("participant", c.participantID()))
	}()

	pongWait := h.opts.PingInterval * 10 / 9
	c.conn.SetReadLimit(h.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read error", zap.String("conn_id", c.ID), zap.Error(err))
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			h.log.Debug("failed to parse message", zap.String("conn_id", c.ID), zap.Error(err))
			h.do(func() { h.fail(c, "", ErrInvalidMessage) })
			continue
		}
		h.handle(ctx, c, env)
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.log.Debug("failed to write message", zap.String("conn_id", c.ID), zap.Error(err))
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
