package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	raw, err := tokens.Issue(Identity{ParticipantID: "patient-1", Role: RolePatient, Name: "Ann"})
	require.NoError(t, err)

	id, err := tokens.Authenticate(raw)
	require.NoError(t, err)
	assert.Equal(t, Identity{ParticipantID: "patient-1", Role: RolePatient, Name: "Ann"}, id)
}

func TestTokens_RejectsWrongSecret(t *testing.T) {
	raw, err := NewTokens("one", time.Hour).Issue(Identity{ParticipantID: "doctor-9", Role: RoleDoctor})
	require.NoError(t, err)

	_, err = NewTokens("two", time.Hour).Authenticate(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokens_RejectsExpired(t *testing.T) {
	tokens := NewTokens("secret", time.Minute)
	tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	raw, err := tokens.Issue(Identity{ParticipantID: "doctor-9", Role: RoleDoctor})
	require.NoError(t, err)

	tokens.now = time.Now
	_, err = tokens.Authenticate(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokens_RejectsUnknownRole(t *testing.T) {
	_, err := NewTokens("secret", time.Hour).Issue(Identity{ParticipantID: "nurse-3", Role: "nurse"})
	assert.ErrorIs(t, err, ErrInvalidRole)

	claims := Claims{UserID: "nurse-3", Role: "nurse"}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokens("secret", time.Hour).Authenticate(raw)
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestTokens_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{UserID: "patient-1", Role: RolePatient}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokens("secret", time.Hour).Authenticate(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
