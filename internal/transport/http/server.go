package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/chatme/relay-server/internal/config"
	"github.com/chatme/relay-server/internal/core"
	"github.com/chatme/relay-server/internal/store"
)

// NewServer builds the HTTP server: health probe, websocket endpoint and
// the REST directory API.
func NewServer(hub *core.Hub, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(LoggerMiddleware(logger), gin.Recovery())

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, logger)))

	handlers := NewDirectoryHandlers(st, hub, logger)
	api := router.Group("/api")
	{
		api.POST("/register", handlers.Register)
		api.POST("/groups", handlers.CreateGroup)
		api.GET("/users", handlers.ListUsers)
		api.GET("/groups", handlers.ListGroups)
		api.GET("/history", handlers.History)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
