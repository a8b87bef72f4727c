package media

import (
	"github.com/gin-gonic/gin"
	"github.com/neekaru/whatsappgo-gateway/internal/response"
	"github.com/neekaru/whatsappgo-gateway/internal/session"
	"github.com/rs/zerolog"
)

// ParamMessageID is the route parameter carrying the message id
const ParamMessageID = "messageId"

// DownloadRequest is the body of download-media
type DownloadRequest struct {
	MessageID string `json:"messageId" binding:"required"`
}

// Handlers contains HTTP handlers for media retrieval
type Handlers struct {
	service *Service
	logger  zerolog.Logger
}

// NewHandlers creates a new media handlers instance
func NewHandlers(service *Service, logger zerolog.Logger) *Handlers {
	return &Handlers{service: service, logger: logger}
}

// GetMediaByMessageHandler returns the media of a message as base64
func (h *Handlers) GetMediaByMessageHandler(c *gin.Context) {
	h.resolve(c, c.Param(ParamMessageID))
}

// DownloadMediaHandler is the body-addressed variant of GetMediaByMessageHandler
func (h *Handlers) DownloadMediaHandler(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "messageId is required")
		return
	}
	h.resolve(c, req.MessageID)
}

func (h *Handlers) resolve(c *gin.Context, messageID string) {
	id := c.Param(session.ParamSession)
	res, err := h.service.Resolve(c.Request.Context(), id, messageID)
	if err != nil {
		response.Fail(c, h.logger, "Error retrieving media", err, nil)
		return
	}
	response.Success(c, "", res)
}
