package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/neekaru/whatsappgo-gateway/internal/apperror"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestFailMapsKindToStatus(t *testing.T) {
	cases := []struct {
		kind apperror.Kind
		want int
	}{
		{apperror.KindNotFound, http.StatusNotFound},
		{apperror.KindAuth, http.StatusUnauthorized},
		{apperror.KindStateConflict, http.StatusConflict},
		{apperror.KindConnection, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			Fail(c, zerolog.Nop(), "operation failed", apperror.New(tc.kind, "op", "s1", "boom"), nil)

			assert.Equal(t, tc.want, w.Code)
			var env Envelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
			assert.Equal(t, StatusError, env.Status)
			assert.Equal(t, "operation failed", env.Message)
			assert.Contains(t, env.Error, "boom")
		})
	}
}

func TestBindOptionalJSON(t *testing.T) {
	type body struct {
		Wait bool `json:"waitQrCode"`
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	var b body
	require.NoError(t, BindOptionalJSON(c, &b))
	assert.False(t, b.Wait)

	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"waitQrCode":true}`))
	c.Request.Header.Set("Content-Type", "application/json")
	require.NoError(t, BindOptionalJSON(c, &b))
	assert.True(t, b.Wait)

	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{nope`))
	assert.Error(t, BindOptionalJSON(c, &b))
}
