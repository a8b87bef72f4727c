package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neekaru/whatsappgo-gateway/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSummary session.Summary

func (s staticSummary) Summary() session.Summary { return session.Summary(s) }

func TestHealthCheckCountsSessions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandlers(staticSummary{
		Total:    3,
		ByStatus: map[session.Status]int{session.StatusConnected: 2, session.StatusClosed: 1},
	}, time.Now().Add(-time.Minute))

	r := gin.New()
	r.GET("/", h.RootHandler)
	r.GET("/health", h.HealthCheckHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 3, body["total_sessions"])
	assert.EqualValues(t, 2, body["active_sessions"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 3, body["session_count"])
	assert.Equal(t, Version, body["version"])
}
