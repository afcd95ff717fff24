// Package relay routes call signaling and chat between the two parties of
// a consultation room.
//
// A single hub goroutine owns room membership, the presence table and the
// pending calls; every inbound message is applied there as one step. Reader
// goroutines only decode, authenticate and perform the room lookup for a
// join before handing the result to the hub.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mossy-p/consult-signaling/internal/auth"
	"github.com/mossy-p/consult-signaling/internal/models"
	"github.com/mossy-p/consult-signaling/internal/presence"
	"go.uber.org/zap"
)

// RoomDirectory is the Room Membership Authority.
type RoomDirectory interface {
	RoomParties(ctx context.Context, roomID string) (models.RoomParties, error)
}

// Authenticator is the Identity Resolver.
type Authenticator interface {
	Authenticate(token string) (auth.Identity, error)
}

type Options struct {
	SendBuffer     int
	MaxMessageSize int64
	PingInterval   time.Duration
	ChatMaxLength  int
	JoinTimeout    time.Duration
}

func (o *Options) setDefaults() {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 64 * 1024
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 54 * time.Second
	}
	if o.ChatMaxLength <= 0 {
		o.ChatMaxLength = 4000
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = 5 * time.Second
	}
}

// Stats is a snapshot of the relay state.
type Stats struct {
	Connections  int `json:"connections"`
	Rooms        int `json:"rooms"`
	Participants int `json:"participants"`
	PendingCalls int `json:"pendingCalls"`
}

type Hub struct {
	dir   RoomDirectory
	authn Authenticator
	opts  Options
	log   *zap.Logger
	now   func() time.Time
	fatal func(msg string, fields ...zap.Field)

	ops     chan func()
	stopped chan struct{}

	// Owned by the loop goroutine.
	clients  map[string]*Client
	rooms    map[string]map[*Client]struct{}
	calls    *callTable
	presence *presence.Table
}

func NewHub(dir RoomDirectory, authn Authenticator, opts Options, log *zap.Logger) *Hub {
	opts.setDefaults()
	return &Hub{
		dir:      dir,
		authn:    authn,
		opts:     opts,
		log:      log,
		now:      time.Now,
		fatal:    log.Fatal,
		ops:      make(chan func(), 1024),
		stopped:  make(chan struct{}),
		clients:  make(map[string]*Client),
		rooms:    make(map[string]map[*Client]struct{}),
		calls:    newCallTable(),
		presence: presence.NewTable(),
	}
}

// Run processes relay operations until ctx is cancelled, then closes every
// connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case op := <-h.ops:
			op()
		case <-ctx.Done():
			for _, c := range h.clients {
				c.close()
			}
			h.log.Info("relay stopped", zap.Int("connections", len(h.clients)))
			return
		}
	}
}

// do schedules op on the loop. It reports false once the hub has stopped.
func (h *Hub) do(op func()) bool {
	select {
	case <-h.stopped:
		return false
	default:
	}
	select {
	case h.ops <- op:
		return true
	case <-h.stopped:
		return false
	}
}

// Serve runs a relay connection until it closes. identity is nil when the
// client did not present a token on connect.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, identity *auth.Identity) {
	c := newClient(uuid.NewString(), conn, h.opts.SendBuffer)
	if identity != nil {
		c.identity.Store(identity)
	}
	if !h.do(func() { h.attach(c) }) {
		conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(ctx, c)
}

// Stats returns counters read on the loop.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	if !h.do(func() {
		reply <- Stats{
			Connections:  len(h.clients),
			Rooms:        len(h.rooms),
			Participants: h.presence.Len(),
			PendingCalls: h.calls.len(),
		}
	}) {
		return Stats{}, errors.New("relay stopped")
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

// CloseRoom removes every connection from roomID and tells them the room is
// closed. Used when a consultation is completed or cancelled.
func (h *Hub) CloseRoom(roomID string) {
	h.do(func() {
		members, ok := h.rooms[roomID]
		if !ok {
			return
		}
		delete(h.rooms, roomID)
		closed := memberList(members)
		for _, c := range closed {
			delete(c.rooms, roomID)
			h.sendTo(c, models.TypeRoomClosed, models.RoomPayload{RoomID: roomID})
		}
		for _, c := range closed {
			if h.attached(c) && len(c.rooms) == 0 {
				h.release(c)
			}
		}
		h.log.Info("room closed", zap.String("room_id", roomID), zap.Int("members", len(members)))
	})
}

func (h *Hub) attach(c *Client) {
	h.clients[c.ID] = c
	if id := c.Identity(); id != nil {
		h.sendTo(c, models.TypeAuthenticated, authenticatedPayload(id))
	}
	h.log.Debug("connection opened", zap.String("conn_id", c.ID), zap.String("participant", c.participantID()))
}

func (h *Hub) attached(c *Client) bool {
	return h.clients[c.ID] == c
}

// lookup resolves a participant to its live connection.
func (h *Hub) lookup(participantID string) (*Client, bool) {
	connID, ok := h.presence.Resolve(participantID)
	if !ok {
		return nil, false
	}
	c, ok := h.clients[connID]
	if !ok {
		// Every bound connection must be attached; anything else means the
		// hub state is corrupt.
		h.fatal("presence table points at unknown connection",
			zap.String("participant", participantID), zap.String("conn_id", connID))
		return nil, false
	}
	return c, true
}

// disconnect runs cleanup for a closed transport.
func (h *Hub) disconnect(c *Client) {
	if !h.attached(c) {
		return
	}
	for roomID := range c.rooms {
		h.removeFromRoom(c, roomID)
	}
	h.release(c)
	delete(h.clients, c.ID)
}

// release unbinds c from presence and abandons its pending calls.
func (h *Hub) release(c *Client) {
	h.presence.Unbind(c.ID)
	self := c.participantID()
	for _, cl := range h.calls.involving(c) {
		if cl.callee == c {
			h.sendTo(cl.caller, models.TypeCallAbandoned, models.CallPeerPayload{Peer: cl.calleeID})
		} else {
			h.sendTo(cl.callee, models.TypeCallAbandoned, models.CallPeerPayload{Peer: cl.callerID})
		}
		h.log.Debug("call abandoned",
			zap.String("caller", cl.callerID), zap.String("callee", cl.calleeID), zap.String("by", self))
	}
}

func (h *Hub) removeFromRoom(c *Client, roomID string) {
	delete(c.rooms, roomID)
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, roomID)
		return
	}

	self := c.participantID()
	for m := range members {
		if m.participantID() == self {
			// Still present in the room through another connection.
			return
		}
	}
	h.broadcast(roomID, models.TypePeerLeft, models.PeerPresencePayload{RoomID: roomID, ParticipantID: self}, nil)
}

// evict drops a connection that cannot keep up with its send queue.
func (h *Hub) evict(c *Client) {
	if !h.attached(c) {
		return
	}
	h.log.Warn("send buffer full, closing connection",
		zap.String("conn_id", c.ID), zap.String("participant", c.participantID()))
	c.close()
	h.disconnect(c)
}

// sendTo delivers one message to c. It reports false if c is gone or was
// evicted.
func (h *Hub) sendTo(c *Client, t models.MessageType, payload interface{}) bool {
	data, err := encode(t, payload)
	if err != nil {
		h.log.Error("failed to marshal message", zap.String("type", string(t)), zap.Error(err))
		return false
	}
	return h.deliver(c, data)
}

func (h *Hub) deliver(c *Client, data []byte) bool {
	if !h.attached(c) {
		return false
	}
	switch err := c.enqueue(data); {
	case err == nil:
		return true
	case errors.Is(err, errQueueFull):
		h.evict(c)
	default:
		// Already closing; the reader schedules the cleanup.
		h.log.Debug("dropping message for closing connection", zap.String("conn_id", c.ID))
	}
	return false
}

// broadcast sends to every member of roomID except exclude.
func (h *Hub) broadcast(roomID string, t models.MessageType, payload interface{}, exclude *Client) {
	data, err := encode(t, payload)
	if err != nil {
		h.log.Error("failed to marshal message", zap.String("type", string(t)), zap.Error(err))
		return
	}
	for _, m := range memberList(h.rooms[roomID]) {
		if m != exclude {
			h.deliver(m, data)
		}
	}
}

// fail reports a rejected action to c.
func (h *Hub) fail(c *Client, ref models.MessageType, err error) {
	h.sendTo(c, models.TypeError, models.ErrorPayload{
		Code:    reasonCode(err),
		Message: err.Error(),
		Ref:     ref,
	})
}

func encode(t models.MessageType, payload interface{}) ([]byte, error) {
	env, err := models.NewEnvelope(t, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func authenticatedPayload(id *auth.Identity) models.AuthenticatedPayload {
	return models.AuthenticatedPayload{
		ParticipantID: id.ParticipantID,
		Role:          string(id.Role),
		Name:          id.Name,
	}
}
