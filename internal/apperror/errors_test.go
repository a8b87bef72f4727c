package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(KindConnection, "open", "alice", cause)

	assert.Equal(t, KindConnection, KindOf(err))
	assert.Equal(t, KindConnection, KindOf(fmt.Errorf("outer: %w", err)))
	assert.Equal(t, KindInternal, KindOf(cause))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.True(t, errors.Is(err, cause))
}

func TestIs(t *testing.T) {
	err := New(KindStateConflict, "logout", "bob", "no active connection")
	assert.True(t, Is(err, KindStateConflict))
	assert.False(t, Is(err, KindNotFound))
	assert.False(t, Is(nil, KindStateConflict))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "logout [bob]: no active connection",
		New(KindStateConflict, "logout", "bob", "no active connection").Error())
	assert.Equal(t, "list: bad secret", New(KindAuth, "list", "", "bad secret").Error())
	assert.Equal(t, "fetch [s1]: both strategies failed: boom",
		Wrapf(KindConnection, "fetch", "s1", errors.New("boom"), "both strategies failed").Error())
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:      http.StatusNotFound,
		KindAuth:          http.StatusUnauthorized,
		KindStateConflict: http.StatusConflict,
		KindInvalid:       http.StatusBadRequest,
		KindTimeout:       http.StatusRequestTimeout,
		KindConnection:    http.StatusBadGateway,
		KindInternal:      http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), string(kind))
	}
}
