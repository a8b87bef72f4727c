package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/neekaru/whatsappgo-gateway/internal/app"
	"github.com/neekaru/whatsappgo-gateway/internal/client/clienttest"
	"github.com/neekaru/whatsappgo-gateway/internal/config"
	"github.com/neekaru/whatsappgo-gateway/internal/response"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, dialer *clienttest.Dialer) *Server {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Server.SecretKey = "s3cret"
	cfg.DataDir = "tokens"
	cfg.Session.QRWaitTimeout = time.Second
	cfg.Media.IndexPath = filepath.Join(t.TempDir(), "media.db")

	a, err := app.New(cfg, zerolog.Nop(), app.WithDialer(dialer), app.WithFs(afero.NewMemMapFs()))
	require.NoError(t, err)
	a.Start()
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return NewServer(a, cfg)
}

func do(t *testing.T, s *Server, method, path, body string, header ...string) (*httptest.ResponseRecorder, response.Envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	var env response.Envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHealthRoutes(t *testing.T) {
	s := newTestServer(t, &clienttest.Dialer{})

	w, _ := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_sessions":0`)

	w, _ = do(t, s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInvalidSessionID(t *testing.T) {
	s := newTestServer(t, &clienttest.Dialer{})

	w, env := do(t, s, http.MethodPost, "/api/%24bad/start-session", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.StatusError, env.Status)
}

func TestStartSessionWithQRAndImage(t *testing.T) {
	s := newTestServer(t, &clienttest.Dialer{OnConnect: clienttest.Issue("2@abc")})

	w, env := do(t, s, http.MethodPost, "/api/alpha/start-session", `{"waitQrCode":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	data := env.Data.(map[string]any)
	assert.Equal(t, "QR_PENDING", data["status"])
	assert.Equal(t, "2@abc", data["urlcode"])
	assert.True(t, strings.HasPrefix(data["qrcode"].(string), "data:image/png;base64,"))

	w, _ = do(t, s, http.MethodGet, "/api/alpha/qrcode-session", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.NotZero(t, w.Body.Len())
}

func TestQRImageNotAvailable(t *testing.T) {
	s := newTestServer(t, &clienttest.Dialer{})

	w, env := do(t, s, http.MethodGet, "/api/ghost/qrcode-session", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "QRCode is not available...", env.Message)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, &clienttest.Dialer{OnConnect: clienttest.Connected("628111@s.whatsapp.net")})

	w, _ := do(t, s, http.MethodPost, "/api/alpha/start-session", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Eventually(t, func() bool {
		_, env := do(t, s, http.MethodGet, "/api/alpha/check-connection-session", "")
		return env.Data.(map[string]any)["connected"] == true
	}, time.Second, 10*time.Millisecond)

	w, env := do(t, s, http.MethodGet, "/api/alpha/status-session", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CONNECTED", env.Data.(map[string]any)["status"])

	w, env = do(t, s, http.MethodPost, "/api/alpha/close-session", `{"clearSession":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, env.Data.(map[string]any)["status"])

	_, env = do(t, s, http.MethodGet, "/api/alpha/check-connection-session", "")
	assert.Equal(t, false, env.Data.(map[string]any)["connected"])
}

func TestCheckConnectionUnknownSession(t *testing.T) {
	s := newTestServer(t, &clienttest.Dialer{})

	w, env := do(t, s, http.MethodGet, "/api/ghost/check-connection-session", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, env.Data.(map[string]any)["connected"])
}

func TestShowAllSessions(t *testing.T) {
	s := newTestServer(t, &clienttest.Dialer{OnConnect: clienttest.Issue("2@abc")})
	w, _ := do(t, s, http.MethodPost, "/api/bravo/start-session", "")
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, s, http.MethodGet, "/api/wrong/show-all-sessions", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := do(t, s, http.MethodGet, "/api/s3cret/show-all-sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{map[string]any{"session": "bravo"}}, env.Data)

	w, _ = do(t, s, http.MethodGet, "/api/show-all-sessions", "", "Authorization", "s3cret")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, s, http.MethodGet, "/api/show-all-sessions", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStartAllRequiresSecret(t *testing.T) {
	dialer := &clienttest.Dialer{}
	s := newTestServer(t, dialer)

	w, env := do(t, s, http.MethodPost, "/api/wrong/start-all", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "The token is incorrect", env.Message)

	w, env = do(t, s, http.MethodPost, "/api/s3cret/start-all", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), env.Data.(map[string]any)["started"])
	assert.Zero(t, dialer.Dials())
}

func TestMediaRoutesRequireConnectedSession(t *testing.T) {
	s := newTestServer(t, &clienttest.Dialer{})

	w, env := do(t, s, http.MethodGet, "/api/alpha/get-media-by-message/ABC", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.StatusError, env.Status)

	w, _ = do(t, s, http.MethodPost, "/api/alpha/download-media", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
