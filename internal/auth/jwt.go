// Package auth resolves participant identities from HS256 JWTs issued by
// the consultation API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role")
)

// Role of a participant in a consultation.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// Identity is an authenticated participant.
type Identity struct {
	ParticipantID string
	Role          Role
	Name          string
}

// Claims represents the claims in the JWT token
type Claims struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies access tokens with a shared secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for id.
func (t *Tokens) Issue(id Identity) (string, error) {
	if id.ParticipantID == "" {
		return "", fmt.Errorf("%w: empty participant id", ErrInvalidToken)
	}
	if !id.Role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, id.Role)
	}

	now := t.now()
	claims := Claims{
		UserID: id.ParticipantID,
		Role:   id.Role,
		Name:   id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ParticipantID,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Authenticate validates tokenString and returns the identity it carries.
func (t *Tokens) Authenticate(tokenString string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return Identity{}, ErrInvalidToken
	}
	if !claims.Role.Valid() {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidRole, claims.Role)
	}

	return Identity{
		ParticipantID: claims.UserID,
		Role:          claims.Role,
		Name:          claims.Name,
	}, nil
}
