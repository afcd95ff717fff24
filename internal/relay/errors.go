package relay

import (
	"errors"

	"github.com/mossy-p/consult-signaling/internal/models"
)

// Rejections reported back to the originating connection. None of them
// closes the connection.
var (
	ErrUnauthenticated      = errors.New("connection is not authenticated")
	ErrAlreadyAuthenticated = errors.New("connection is bound to another participant")
	ErrUnauthorized         = errors.New("participant is not a party to this room")
	ErrRoomNotFound         = models.ErrRoomNotFound
	ErrNotJoined            = errors.New("connection has not joined this room")
	ErrCalleeUnreachable    = errors.New("the other participant is not currently online, try again")
	ErrCalleeBusy           = errors.New("the other participant has another incoming call")
	ErrInvalidMessage       = errors.New("invalid message")
	ErrUnavailable          = errors.New("unable to join consultation room")
)

// reasonCode maps err to the code carried in join-rejected and error payloads.
func reasonCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrAlreadyAuthenticated):
		return "already-authenticated"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrRoomNotFound):
		return "room-not-found"
	case errors.Is(err, ErrNotJoined):
		return "not-joined"
	case errors.Is(err, ErrCalleeUnreachable):
		return "callee-unreachable"
	case errors.Is(err, ErrCalleeBusy):
		return "callee-busy"
	case errors.Is(err, ErrInvalidMessage):
		return "invalid-message"
	default:
		return "unavailable"
	}
}
