package contact

import (
	"github.com/gin-gonic/gin"
	"github.com/neekaru/whatsappgo-gateway/internal/response"
	"github.com/neekaru/whatsappgo-gateway/internal/session"
	"github.com/rs/zerolog"
)

// Handlers contains HTTP handlers for contact presence
type Handlers struct {
	service *Service
	logger  zerolog.Logger
}

// NewHandlers creates a new contact handlers instance
func NewHandlers(service *Service, logger zerolog.Logger) *Handlers {
	return &Handlers{service: service, logger: logger}
}

// SubscribePresenceHandler handles POST /api/:session/subscribe-presence
func (h *Handlers) SubscribePresenceHandler(c *gin.Context) {
	var req SubscribePresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request. Required: {\"phone\": \"628...\"} or {\"all\": true}")
		return
	}

	n, err := h.service.SubscribePresence(c.Request.Context(), c.Param(session.ParamSession), req.Phone, req.IsGroup, req.All)
	if err != nil {
		response.Fail(c, h.logger, "Error on subscribe presence", err, nil)
		return
	}
	response.Success(c, "Subscribe presence executed", SubscribePresenceResponse{Subscribed: n})
}
