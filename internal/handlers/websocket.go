package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mossy-p/consult-signaling/internal/auth"
	"github.com/mossy-p/consult-signaling/internal/middleware"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// Relay serves one upgraded signaling connection until it closes.
type Relay interface {
	Serve(ctx context.Context, conn *websocket.Conn, identity *auth.Identity)
}

type SignalingHandler struct {
	relay Relay
	authn middleware.Authenticator
	log   *zap.Logger
}

func NewSignalingHandler(r Relay, authn middleware.Authenticator, log *zap.Logger) *SignalingHandler {
	return &SignalingHandler{relay: r, authn: authn, log: log}
}

// HandleSignaling upgrades to the relay protocol. A token may be presented
// up front as ?token= or a bearer header; otherwise the client must send an
// authenticate message before joining.
func (h *SignalingHandler) HandleSignaling(c *gin.Context) {
	var identity *auth.Identity
	if token := connectToken(c); token != "" {
		id, err := h.authn.Authenticate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		identity = &id
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	h.relay.Serve(c.Request.Context(), conn, identity)
}

func connectToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	if token, ok := middleware.BearerToken(c.GetHeader("Authorization")); ok {
		return token
	}
	return ""
}
