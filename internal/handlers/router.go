package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mossy-p/signaling-relay/internal/middleware"
	"github.com/mossy-p/signaling-relay/internal/relay"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	Signaling      SignalingOptions
}

// NewRouter wires every HTTP route of the relay.
func NewRouter(reg *relay.Registry, opts RouterOptions, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))

	// Global CORS middleware (runs before routing)
	router.Use(OriginFilter(opts.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/rooms", ListRooms(reg))
		apiGroup.GET("/rooms/:roomId", GetRoom(reg))
	}

	// WebSocket signaling endpoint
	router.GET("/rooms/:roomId", middleware.Identity(), HandleSignaling(reg, opts.Signaling, log))

	return router
}
