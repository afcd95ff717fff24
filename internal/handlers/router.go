package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mossy-p/consult-signaling/internal/auth"
	"github.com/mossy-p/consult-signaling/internal/middleware"
	"go.uber.org/zap"
)

// RouterDeps collects what the HTTP surface is built from.
type RouterDeps struct {
	AllowedOrigins []string
	DevLogin       bool
	Tokens         *auth.Tokens
	Consultations  *ConsultationHandler
	Signaling      *SignalingHandler
	Stats          StatsSource
	Log            *zap.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(d.Log))

	// Global CORS middleware (runs before routing)
	router.Use(middleware.OriginFilter(d.AllowedOrigins))

	router.GET("/health", Health(d.Stats))

	api := router.Group("/api")
	{
		if d.DevLogin {
			api.POST("/auth/login", Login(d.Tokens, d.Log))
		}
		d.Consultations.Register(api.Group("/consultations", middleware.JWTAuth(d.Tokens)))
	}

	router.GET("/ws/signal", d.Signaling.HandleSignaling)
	return router
}
