package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/core"
)

// NewServer builds the HTTP server: health check, WebSocket gateway and history API.
// /ws is served outside gin: gin's writer refuses to hijack once the upgrade response is flushed.
func NewServer(gateway *core.Gateway, clients *core.Clients, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	ws := NewWSHandler(gateway, clients, WSOptions{
		ClientBuffer:      cfg.ClientBuffer,
		MaxMessageBytes:   cfg.MaxMessageBytes,
		MessagesPerMinute: cfg.MessagesPerMinute,
	}, logger)
	history := NewHistoryHandlers(gateway, logger)

	router.GET("/health", healthHandler)

	api := router.Group("/api")
	api.GET("/messages/:room", history.ListMessages)

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", ws)
	mux.Handle("/", router)

	server := &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	// Hijacked WebSocket connections are not closed by Shutdown on their own.
	server.RegisterOnShutdown(ws.Shutdown)
	return server
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
