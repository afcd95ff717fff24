package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/consult-signaling/internal/auth"
	"go.uber.org/zap"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Role     string `json:"role" binding:"required"`
	Name     string `json:"name"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a token for any username. Development only; credentials are
// managed by the account service in production.
func Login(tokens *auth.Tokens, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request body",
			})
			return
		}

		role := auth.Role(req.Role)
		if !role.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Role must be patient or doctor",
			})
			return
		}

		token, err := tokens.Issue(auth.Identity{
			ParticipantID: req.Username,
			Role:          role,
			Name:          req.Name,
		})
		if err != nil {
			log.Error("failed to issue token", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to generate token",
			})
			return
		}

		c.JSON(http.StatusOK, LoginResponse{
			Token:  token,
			UserID: req.Username,
			Role:   req.Role,
		})
	}
}
