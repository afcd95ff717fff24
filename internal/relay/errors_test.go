package relay

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReasonCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrUnauthenticated, "unauthenticated"},
		{fmt.Errorf("%w: token expired", ErrUnauthenticated), "unauthenticated"},
		{ErrAlreadyAuthenticated, "already-authenticated"},
		{ErrUnauthorized, "unauthorized"},
		{ErrRoomNotFound, "room-not-found"},
		{ErrNotJoined, "not-joined"},
		{ErrCalleeUnreachable, "callee-unreachable"},
		{ErrCalleeBusy, "callee-busy"},
		{ErrInvalidMessage, "invalid-message"},
		{ErrUnavailable, "unavailable"},
		{errors.New("boom"), "unavailable"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, reasonCode(tt.err), tt.err.Error())
	}
}
