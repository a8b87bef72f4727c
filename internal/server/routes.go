package server

import (
	"github.com/gin-gonic/gin"
	"github.com/neekaru/whatsappgo-gateway/internal/auth"
	"github.com/neekaru/whatsappgo-gateway/internal/contact"
	"github.com/neekaru/whatsappgo-gateway/internal/health"
	"github.com/neekaru/whatsappgo-gateway/internal/media"
	"github.com/neekaru/whatsappgo-gateway/internal/session"
	"github.com/neekaru/whatsappgo-gateway/internal/startup"
)

// SetupRoutes configures all the routes for the application
func (s *Server) SetupRoutes() {
	log := s.logger

	healthHandlers := health.NewHandlers(s.app.Sessions, s.app.StartTime)
	s.router.GET("/", healthHandlers.RootHandler)
	s.router.GET("/health", healthHandlers.HealthCheckHandler)

	s.router.GET("/ws", gin.WrapH(s.app.Broadcaster))

	api := s.router.Group("/api")

	// Administrative routes carry the secret key where session routes carry the id
	authHandlers := auth.NewHandlers(s.app.Sessions, log)
	startupHandlers := startup.NewHandlers(s.app.Startup)
	api.GET("/show-all-sessions", authHandlers.ShowAllSessionsHandler)
	api.GET("/:session/show-all-sessions", authHandlers.ShowAllSessionsHandler)
	api.POST("/:session/start-all", authHandlers.RequireSecret(), startupHandlers.StartAllHandler)

	scoped := session.RequireSessionID()

	sessionHandlers := session.NewHandlers(s.app.Sessions, log)
	api.POST("/:session/start-session", scoped, sessionHandlers.StartSessionHandler)
	api.POST("/:session/close-session", scoped, sessionHandlers.CloseSessionHandler)
	api.POST("/:session/logout-session", scoped, sessionHandlers.LogoutSessionHandler)
	api.POST("/:session/restart-session", scoped, sessionHandlers.RestartSessionHandler)
	api.GET("/:session/status-session", scoped, sessionHandlers.StatusSessionHandler)
	api.GET("/:session/check-connection-session", scoped, sessionHandlers.CheckConnectionHandler)
	api.GET("/:session/qrcode-session", scoped, authHandlers.QRImageHandler)

	contactHandlers := contact.NewHandlers(s.app.Contacts, log)
	api.POST("/:session/subscribe-presence", scoped, contactHandlers.SubscribePresenceHandler)

	mediaHandlers := media.NewHandlers(s.app.Media, log)
	api.GET("/:session/get-media-by-message/:"+media.ParamMessageID, scoped, mediaHandlers.GetMediaByMessageHandler)
	api.POST("/:session/download-media", scoped, mediaHandlers.DownloadMediaHandler)
}
