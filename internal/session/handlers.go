package session

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/neekaru/whatsappgo-gateway/internal/response"
	"github.com/rs/zerolog"
)

// ParamSession is the route parameter carrying the session id
const ParamSession = "session"

// Handlers contains HTTP handlers for session lifecycle management
type Handlers struct {
	manager *Manager
	logger  zerolog.Logger
}

// NewHandlers creates a new session handlers instance
func NewHandlers(manager *Manager, logger zerolog.Logger) *Handlers {
	return &Handlers{manager: manager, logger: logger}
}

// RequireSessionID rejects requests whose session parameter cannot name a session
func RequireSessionID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ValidID(c.Param(ParamSession)) {
			response.BadRequest(c, "Invalid session id")
			c.Abort()
			return
		}
		c.Next()
	}
}

// StartSessionHandler opens a session, optionally waiting for its QR code
func (h *Handlers) StartSessionHandler(c *gin.Context) {
	id := c.Param(ParamSession)
	var req StartSessionRequest
	if err := response.BindOptionalJSON(c, &req); err != nil {
		response.BadRequest(c, "Invalid request")
		return
	}

	if _, err := h.manager.Open(c.Request.Context(), id, req.WaitQRCode); err != nil {
		response.Fail(c, h.logger, "Error starting session", err, h.manager.QueryState(id))
		return
	}
	response.Success(c, "Session started", h.manager.QueryState(id))
}

// CloseSessionHandler closes a session, optionally deleting its credentials
func (h *Handlers) CloseSessionHandler(c *gin.Context) {
	id := c.Param(ParamSession)
	var req CloseSessionRequest
	if err := response.BindOptionalJSON(c, &req); err != nil {
		response.BadRequest(c, "Invalid request")
		return
	}

	res := h.manager.Close(id, req.ClearSession)
	response.Success(c, "Session successfully closed", res)
}

// LogoutSessionHandler unlinks a connected session
func (h *Handlers) LogoutSessionHandler(c *gin.Context) {
	id := c.Param(ParamSession)
	if err := h.manager.Logout(c.Request.Context(), id); err != nil {
		response.Fail(c, h.logger, "Error logging out session", err, nil)
		return
	}
	response.Success(c, "Session successfully logged out", h.manager.QueryState(id))
}

// RestartSessionHandler closes a session and opens it again, keeping its credentials
func (h *Handlers) RestartSessionHandler(c *gin.Context) {
	id := c.Param(ParamSession)
	var req StartSessionRequest
	if err := response.BindOptionalJSON(c, &req); err != nil {
		response.BadRequest(c, "Invalid request")
		return
	}

	h.logger.Info().Str("session", id).Msg("Restarting session")
	if _, err := h.manager.Restart(c.Request.Context(), id, req.WaitQRCode); err != nil {
		response.Fail(c, h.logger, "Error restarting session", err, h.manager.QueryState(id))
		return
	}
	response.Success(c, "Session restarted", h.manager.QueryState(id))
}

// StatusSessionHandler returns the state of a session
func (h *Handlers) StatusSessionHandler(c *gin.Context) {
	id := c.Param(ParamSession)
	if wait, _ := strconv.ParseBool(c.Query("waitQrCode")); wait {
		if _, err := h.manager.WaitForQR(c.Request.Context(), id); err != nil {
			response.Fail(c, h.logger, "Error waiting for QR code", err, h.manager.QueryState(id))
			return
		}
	}
	response.Success(c, "", h.manager.QueryState(id))
}

// CheckConnectionHandler probes the live connection. It always answers 200.
func (h *Handlers) CheckConnectionHandler(c *gin.Context) {
	connected := h.manager.CheckConnectivity(c.Param(ParamSession))
	msg := "Disconnected"
	if connected {
		msg = "Connected"
	}
	c.JSON(http.StatusOK, response.Envelope{
		Status:  response.StatusSuccess,
		Message: msg,
		Data:    gin.H{"connected": connected},
	})
}
