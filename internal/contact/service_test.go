package contact

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neekaru/whatsappgo-gateway/internal/apperror"
	"github.com/neekaru/whatsappgo-gateway/internal/client/clienttest"
	"github.com/neekaru/whatsappgo-gateway/internal/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopCreds struct{}

func (nopCreds) MarkAuthenticated(string, string) error { return nil }
func (nopCreds) Unmark(string) error                    { return nil }
func (nopCreds) Purge(string) error                     { return nil }

func connectedService(t *testing.T, setup func(*clienttest.Conn)) (*Service, *clienttest.Conn) {
	t.Helper()
	dialer := &clienttest.Dialer{OnConnect: clienttest.Connected("1@s.whatsapp.net"), Setup: setup}
	m := session.NewManager(session.NewRegistry(), dialer, nopCreds{}, nil, zerolog.Nop(), session.Options{
		QRWaitTimeout:  time.Second,
		ConnectTimeout: time.Second,
	})
	_, err := m.Open(context.Background(), "alice", true)
	require.NoError(t, err)
	return NewService(m, zerolog.Nop()), dialer.Last()
}

func TestSubscribeExplicitTargets(t *testing.T) {
	svc, conn := connectedService(t, nil)

	n, err := svc.SubscribePresence(context.Background(), "alice", []string{"+62 812-3456", "628999@s.whatsapp.net"}, false, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"628123456@s.whatsapp.net", "628999@s.whatsapp.net"}, conn.Subscribed())
}

func TestSubscribeAllGroups(t *testing.T) {
	svc, conn := connectedService(t, func(c *clienttest.Conn) {
		c.SetContacts([]string{"1@s.whatsapp.net", "2@s.whatsapp.net"}, []string{"120363@g.us"})
	})

	n, err := svc.SubscribePresence(context.Background(), "alice", nil, true, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"120363@g.us"}, conn.Subscribed())

	n, err = svc.SubscribePresence(context.Background(), "alice", nil, false, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSubscribeRequiresTargets(t *testing.T) {
	svc, _ := connectedService(t, nil)
	_, err := svc.SubscribePresence(context.Background(), "alice", nil, false, false)
	assert.True(t, apperror.Is(err, apperror.KindInvalid))
}

func TestSubscribeRequiresConnectedSession(t *testing.T) {
	svc, _ := connectedService(t, nil)
	_, err := svc.SubscribePresence(context.Background(), "bob", []string{"1"}, false, false)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestSubscribeStopsOnFailure(t *testing.T) {
	svc, _ := connectedService(t, func(c *clienttest.Conn) {
		c.SetPresenceError(errors.New("not authorized"))
	})
	_, err := svc.SubscribePresence(context.Background(), "alice", []string{"1", "2"}, false, false)
	assert.True(t, apperror.Is(err, apperror.KindConnection))
}

func TestTargetsDecoding(t *testing.T) {
	var req SubscribePresenceRequest
	require.NoError(t, json.Unmarshal([]byte(`{"phone":"111, 222"}`), &req))
	assert.Equal(t, Targets{"111", "222"}, req.Phone)

	require.NoError(t, json.Unmarshal([]byte(`{"phone":["333","444,555"],"isGroup":true}`), &req))
	assert.Equal(t, Targets{"333", "444", "555"}, req.Phone)
	assert.True(t, req.IsGroup)

	assert.Error(t, json.Unmarshal([]byte(`{"phone":42}`), &req))
}

func TestSubscribePresenceHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _ := connectedService(t, nil)
	r := gin.New()
	r.POST("/api/:session/subscribe-presence", NewHandlers(svc, zerolog.Nop()).SubscribePresenceHandler)

	req := httptest.NewRequest(http.MethodPost, "/api/alice/subscribe-presence", strings.NewReader(`{"phone":"628111"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"subscribed":1`)
}
