package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/consult-signaling/internal/relay"
)

type StatsSource interface {
	Stats(ctx context.Context) (relay.Stats, error)
}

// Health reports liveness together with relay counters.
func Health(src StatsSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		stats, err := src.Stats(ctx)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "relay": stats})
	}
}
