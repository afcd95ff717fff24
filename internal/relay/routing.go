package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mossy-p/consult-signaling/internal/auth"
	"github.com/mossy-p/consult-signaling/internal/models"
	"go.uber.org/zap"
)

// handle runs on the reader goroutine of c. Authentication and the join
// lookup happen here; c sends nothing else until they are applied.
func (h *Hub) handle(ctx context.Context, c *Client, env models.Envelope) {
	switch env.Type {
	case models.TypeAuthenticate:
		h.authenticate(c, env)
	case models.TypeJoin:
		h.resolveJoin(ctx, c, env)
	default:
		h.do(func() { h.route(c, env) })
	}
}

func (h *Hub) authenticate(c *Client, env models.Envelope) {
	var req models.AuthenticatePayload
	if err := env.Decode(&req); err != nil || req.Token == "" {
		h.do(func() { h.fail(c, env.Type, ErrInvalidMessage) })
		return
	}

	id, err := h.authn.Authenticate(req.Token)
	if err != nil {
		h.log.Debug("authentication failed", zap.String("conn_id", c.ID), zap.Error(err))
		h.do(func() { h.fail(c, env.Type, fmt.Errorf("%w: %v", ErrUnauthenticated, err)) })
		return
	}
	if cur := c.Identity(); cur != nil && cur.ParticipantID != id.ParticipantID {
		h.do(func() { h.fail(c, env.Type, ErrAlreadyAuthenticated) })
		return
	}

	c.identity.Store(&id)
	h.do(func() { h.sendTo(c, models.TypeAuthenticated, authenticatedPayload(&id)) })
}

// resolveJoin authorizes a join against the room directory, then applies
// the outcome on the loop.
func (h *Hub) resolveJoin(ctx context.Context, c *Client, env models.Envelope) {
	var req models.RoomPayload
	if err := env.Decode(&req); err != nil || req.RoomID == "" {
		h.do(func() { h.rejectJoin(c, req.RoomID, ErrInvalidMessage) })
		return
	}

	parties, err := h.authorizeJoin(ctx, c.Identity(), req.RoomID)
	h.do(func() {
		if err != nil {
			h.rejectJoin(c, req.RoomID, err)
			return
		}
		h.join(c, parties)
	})
}

func (h *Hub) authorizeJoin(ctx context.Context, id *auth.Identity, roomID string) (models.RoomParties, error) {
	if id == nil {
		return models.RoomParties{}, ErrUnauthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, h.opts.JoinTimeout)
	defer cancel()

	parties, err := h.dir.RoomParties(ctx, roomID)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return models.RoomParties{}, ErrRoomNotFound
		}
		h.log.Error("room lookup failed", zap.String("room_id", roomID), zap.Error(err))
		return models.RoomParties{}, ErrUnavailable
	}
	if !parties.Includes(id.ParticipantID) {
		h.log.Warn("unauthorized join attempt",
			zap.String("room_id", roomID), zap.String("participant", id.ParticipantID))
		return models.RoomParties{}, ErrUnauthorized
	}
	parties.RoomID = roomID
	return parties, nil
}

func (h *Hub) rejectJoin(c *Client, roomID string, err error) {
	h.sendTo(c, models.TypeJoinRejected, models.JoinRejectedPayload{RoomID: roomID, Reason: reasonCode(err)})
}

func (h *Hub) join(c *Client, parties models.RoomParties) {
	if !h.attached(c) {
		// Disconnected while the lookup was in flight.
		return
	}
	roomID := parties.RoomID
	self := c.participantID()

	// Acknowledge before touching membership so an eviction here leaves
	// nothing to announce or undo.
	if !h.sendTo(c, models.TypeJoinAck, models.RoomPayload{RoomID: roomID}) {
		return
	}

	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[roomID] = members
	}
	_, already := members[c]
	members[c] = struct{}{}
	c.rooms[roomID] = parties

	if prev, replaced := h.presence.Bind(self, c.ID); replaced {
		h.log.Info("participant rebound",
			zap.String("participant", self), zap.String("old_conn_id", prev), zap.String("conn_id", c.ID))
	}

	if !already {
		h.broadcast(roomID, models.TypePeerJoined, models.PeerPresencePayload{RoomID: roomID, ParticipantID: self}, c)
		h.log.Info("participant joined room",
			zap.String("room_id", roomID), zap.String("participant", self), zap.Int("members", len(members)))
	}
}

// route applies one non-join message on the loop.
func (h *Hub) route(c *Client, env models.Envelope) {
	if !h.attached(c) {
		return
	}
	id := c.Identity()
	if id == nil {
		h.fail(c, env.Type, ErrUnauthenticated)
		return
	}

	switch env.Type {
	case models.TypeLeave:
		h.leave(c, env)
	case models.TypeCallOffer:
		h.callOffer(c, id, env)
	case models.TypeCallAnswer:
		h.callAnswer(c, id, env)
	case models.TypeCallCancel, models.TypeCallAbandoned:
		h.callCancel(c, id, env)
	case models.TypeChatMessage:
		h.chat(c, id, env)
	default:
		h.log.Debug("unknown message type", zap.String("conn_id", c.ID), zap.String("type", string(env.Type)))
		h.fail(c, env.Type, fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, env.Type))
	}
}

func (h *Hub) leave(c *Client, env models.Envelope) {
	var req models.RoomPayload
	if err := env.Decode(&req); err != nil {
		h.fail(c, env.Type, ErrInvalidMessage)
		return
	}
	if _, ok := c.rooms[req.RoomID]; !ok {
		h.fail(c, env.Type, ErrNotJoined)
		return
	}

	h.removeFromRoom(c, req.RoomID)
	if len(c.rooms) == 0 {
		h.release(c)
	}
}

func (h *Hub) callOffer(c *Client, id *auth.Identity, env models.Envelope) {
	var req models.CallRequest
	if err := env.Decode(&req); err != nil || req.ToParticipant == "" || req.ToParticipant == id.ParticipantID {
		h.fail(c, env.Type, ErrInvalidMessage)
		return
	}
	if !c.sharesRoomWith(req.ToParticipant) {
		h.fail(c, env.Type, ErrUnauthorized)
		return
	}

	callee, ok := h.lookup(req.ToParticipant)
	if ok {
		if pending := h.calls.pendingFor(callee); pending != nil && pending.callerID != id.ParticipantID {
			h.fail(c, env.Type, ErrCalleeBusy)
			return
		}
		ok = h.sendTo(callee, models.TypeCallOffer, models.CallOfferEvent{
			FromParticipant: id.ParticipantID,
			FromName:        id.Name,
			Signal:          req.Signal,
		})
	}
	if !ok {
		h.sendTo(c, models.TypeCallUnreachable, models.CallUnreachablePayload{ToParticipant: req.ToParticipant})
		return
	}

	h.calls.propose(&call{
		callerID:   id.ParticipantID,
		calleeID:   req.ToParticipant,
		caller:     c,
		callee:     callee,
		proposedAt: h.now(),
	})
	h.log.Debug("call proposed", zap.String("caller", id.ParticipantID), zap.String("callee", req.ToParticipant))
}

func (h *Hub) callAnswer(c *Client, id *auth.Identity, env models.Envelope) {
	var req models.CallRequest
	if err := env.Decode(&req); err != nil || req.ToParticipant == "" {
		h.fail(c, env.Type, ErrInvalidMessage)
		return
	}

	cl := h.calls.pendingFor(c)
	if cl == nil || cl.callerID != req.ToParticipant {
		// Caller went away or cancelled before the answer arrived.
		h.sendTo(c, models.TypeCallAbandoned, models.CallPeerPayload{Peer: req.ToParticipant})
		return
	}
	h.calls.remove(cl)

	if !h.sendTo(cl.caller, models.TypeCallAnswer, models.CallAnswerEvent{
		FromParticipant: id.ParticipantID,
		Signal:          req.Signal,
	}) {
		h.sendTo(c, models.TypeCallAbandoned, models.CallPeerPayload{Peer: req.ToParticipant})
		return
	}
	h.log.Debug("call answered",
		zap.String("caller", cl.callerID), zap.String("callee", cl.calleeID),
		zap.Duration("ring", h.now().Sub(cl.proposedAt)))
}

func (h *Hub) callCancel(c *Client, id *auth.Identity, env models.Envelope) {
	var req models.CallPeerPayload
	if err := env.Decode(&req); err != nil || req.Peer == "" {
		h.fail(c, env.Type, ErrInvalidMessage)
		return
	}

	cl := h.calls.between(c, id.ParticipantID, req.Peer)
	if cl == nil {
		return
	}
	h.calls.remove(cl)

	other := cl.callee
	if cl.callee == c {
		other = cl.caller
	}
	h.sendTo(other, models.TypeCallAbandoned, models.CallPeerPayload{Peer: id.ParticipantID})
}

func (h *Hub) chat(c *Client, id *auth.Identity, env models.Envelope) {
	var req models.ChatRequest
	if err := env.Decode(&req); err != nil {
		h.fail(c, env.Type, ErrInvalidMessage)
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" || len(content) > h.opts.ChatMaxLength {
		h.fail(c, env.Type, ErrInvalidMessage)
		return
	}
	if _, ok := c.rooms[req.RoomID]; !ok {
		h.fail(c, env.Type, ErrNotJoined)
		return
	}

	h.broadcast(req.RoomID, models.TypeChatMessage, models.ChatEvent{
		RoomID:    req.RoomID,
		Sender:    id.ParticipantID,
		Content:   content,
		Timestamp: h.now().UTC(),
	}, c)
}

func memberList(members map[*Client]struct{}) []*Client {
	out := make([]*Client, 0, len(members))
	for m := range members {
		out = append(out, m)
	}
	return out
}
