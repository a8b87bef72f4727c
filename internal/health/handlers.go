package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neekaru/whatsappgo-gateway/internal/session"
)

// Version is reported by the health endpoints
const Version = "2.0.0"

// Summarizer counts sessions per status
type Summarizer interface {
	Summary() session.Summary
}

// Handlers contains HTTP handlers for health checks
type Handlers struct {
	sessions  Summarizer
	startTime time.Time
}

// NewHandlers creates a new health handlers instance
func NewHandlers(sessions Summarizer, startTime time.Time) *Handlers {
	return &Handlers{sessions: sessions, startTime: startTime}
}

// RootHandler handles the root endpoint for Docker health checks
func (h *Handlers) RootHandler(c *gin.Context) {
	sum := h.sessions.Summary()
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"uptime":        time.Since(h.startTime).String(),
		"session_count": sum.Total,
		"version":       Version,
	})
}

// HealthCheckHandler handles the health check endpoint. It always answers 200.
func (h *Handlers) HealthCheckHandler(c *gin.Context) {
	sum := h.sessions.Summary()
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"uptime":          time.Since(h.startTime).String(),
		"total_sessions":  sum.Total,
		"active_sessions": sum.ByStatus[session.StatusConnected],
		"by_status":       sum.ByStatus,
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}
