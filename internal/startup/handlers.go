package startup

import (
	"github.com/gin-gonic/gin"
	"github.com/neekaru/whatsappgo-gateway/internal/response"
)

// Handlers exposes the coordinator over HTTP
type Handlers struct {
	coordinator *Coordinator
}

// NewHandlers creates a new startup handlers instance
func NewHandlers(coordinator *Coordinator) *Handlers {
	return &Handlers{coordinator: coordinator}
}

// StartAllHandler re-runs the bulk startup and returns its report. The
// request must already be authorized.
func (h *Handlers) StartAllHandler(c *gin.Context) {
	report := h.coordinator.Run(c.Request.Context())
	response.Success(c, "Finished attempting to start all sessions", gin.H{
		"started": report.Count(ResultStarted),
		"skipped": report.Count(ResultNoCredentials),
		"failed":  report.Count(ResultFailed),
		"report":  report,
	})
}
