package models

import (
	"encoding/json"
	"time"
)

// MessageType is the type of a relay message
type MessageType string

const (
	TypeAuthenticate    MessageType = "authenticate"
	TypeAuthenticated   MessageType = "authenticated"
	TypeJoin            MessageType = "join"
	TypeJoinAck         MessageType = "join-ack"
	TypeJoinRejected    MessageType = "join-rejected"
	TypeLeave           MessageType = "leave"
	TypePeerJoined      MessageType = "peer-joined"
	TypePeerLeft        MessageType = "peer-left"
	TypeCallOffer       MessageType = "call-offer"
	TypeCallUnreachable MessageType = "call-unreachable"
	TypeCallAnswer      MessageType = "call-answer"
	TypeCallCancel      MessageType = "call-cancel"
	TypeCallAbandoned   MessageType = "call-abandoned"
	TypeChatMessage     MessageType = "chat-message"
	TypeRoomClosed      MessageType = "room-closed"
	TypeError           MessageType = "error"
)

// Envelope wraps every message exchanged over the relay socket.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an envelope of type t.
func NewEnvelope(t MessageType, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: t, Payload: raw}, nil
}

// Decode unmarshals the payload into dst.
func (e Envelope) Decode(dst interface{}) error {
	if len(e.Payload) == 0 {
		return json.Unmarshal([]byte("{}"), dst)
	}
	return json.Unmarshal(e.Payload, dst)
}

type AuthenticatePayload struct {
	Token string `json:"token"`
}

type AuthenticatedPayload struct {
	ParticipantID string `json:"participantId"`
	Role          string `json:"role"`
	Name          string `json:"name,omitempty"`
}

// RoomPayload carries a room id: join, leave, join-ack, room-closed.
type RoomPayload struct {
	RoomID string `json:"roomId"`
}

type JoinRejectedPayload struct {
	RoomID string `json:"roomId"`
	Reason string `json:"reason"`
}

type PeerPresencePayload struct {
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId"`
}

// CallRequest is sent by a client for call-offer and call-answer.
type CallRequest struct {
	ToParticipant string          `json:"toParticipant"`
	Signal        json.RawMessage `json:"signal"`
}

type CallOfferEvent struct {
	FromParticipant string          `json:"fromParticipant"`
	FromName        string          `json:"fromName"`
	Signal          json.RawMessage `json:"signal"`
}

type CallAnswerEvent struct {
	FromParticipant string          `json:"fromParticipant"`
	Signal          json.RawMessage `json:"signal"`
}

type CallUnreachablePayload struct {
	ToParticipant string `json:"toParticipant"`
}

// CallPeerPayload is used by call-cancel and call-abandoned.
type CallPeerPayload struct {
	Peer string `json:"peer"`
}

type ChatRequest struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
}

type ChatEvent struct {
	RoomID    string    `json:"roomId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload reports a rejected client action. Ref is the type of the
// message that caused it.
type ErrorPayload struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Ref     MessageType `json:"ref,omitempty"`
}
