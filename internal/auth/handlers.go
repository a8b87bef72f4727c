package auth

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/neekaru/whatsappgo-gateway/internal/response"
	"github.com/neekaru/whatsappgo-gateway/internal/session"
	"github.com/rs/zerolog"
)

// SessionEntry is one item of the session listing
type SessionEntry struct {
	Session string `json:"session"`
}

// Handlers contains HTTP handlers for pairing and administrative access
type Handlers struct {
	manager *session.Manager
	logger  zerolog.Logger
}

// NewHandlers creates a new authentication handlers instance
func NewHandlers(manager *session.Manager, logger zerolog.Logger) *Handlers {
	return &Handlers{manager: manager, logger: logger}
}

// SecretFromRequest returns the secret from the route, or else the first
// token of the Authorization header. Administrative routes share the
// position of the session parameter, so the secret is read from it.
func SecretFromRequest(c *gin.Context) string {
	if key := c.Param(session.ParamSession); key != "" {
		return key
	}
	fields := strings.Fields(c.GetHeader("Authorization"))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// RequireSecret rejects requests that do not carry the configured secret
func (h *Handlers) RequireSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.manager.Authorized(SecretFromRequest(c)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Envelope{
				Status:  response.StatusError,
				Message: "The token is incorrect",
			})
			return
		}
		c.Next()
	}
}

// QRImageHandler serves the pending QR code as a PNG image. Without a
// pending challenge it answers with a JSON "not available" notice.
func (h *Handlers) QRImageHandler(c *gin.Context) {
	id := c.Param(session.ParamSession)
	view := h.manager.QueryState(id)
	if view.URLCode == "" {
		c.JSON(http.StatusOK, response.Envelope{
			Status:  response.StatusSuccess,
			Message: "QRCode is not available...",
			Data:    gin.H{"status": view.Status},
		})
		return
	}

	png, err := RenderQRPNG(view.URLCode)
	if err != nil {
		response.Fail(c, h.logger, "Error retrieving QRCode", err, nil)
		return
	}
	c.Header("Content-Length", strconv.Itoa(len(png)))
	c.Data(http.StatusOK, "image/png", png)
}

// ShowAllSessionsHandler lists every known session
func (h *Handlers) ShowAllSessionsHandler(c *gin.Context) {
	ids, err := h.manager.List(SecretFromRequest(c))
	if err != nil {
		response.Fail(c, h.logger, "The token is incorrect", err, nil)
		return
	}

	entries := make([]SessionEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, SessionEntry{Session: id})
	}
	response.Success(c, "", entries)
}
