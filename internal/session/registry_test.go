package session

import (
	"testing"

	"github.com/neekaru/whatsappgo-gateway/internal/client/clienttest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetDoesNotCreate(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("alice")
	assert.False(t, ok)
	assert.Empty(t, r.List())
}

func TestRegistryAttachStartsFreshCycle(t *testing.T) {
	r := NewRegistry()
	first := &clienttest.Conn{}
	gen1, displaced := r.Attach("alice", first)
	assert.Nil(t, displaced)

	_, ok := r.Apply("alice", gen1, Transition{Status: StatusQRPending, QRCode: "qr-1"})
	require.True(t, ok)

	second := &clienttest.Conn{}
	gen2, displaced := r.Attach("alice", second)
	assert.Same(t, first, displaced)
	assert.Greater(t, gen2, gen1)

	st, _ := r.Get("alice")
	assert.Equal(t, StatusUninitialized, st.Status)
	assert.Empty(t, st.QRCode)
	assert.True(t, st.Connecting())
}

func TestRegistryQRPresentOnlyWhilePending(t *testing.T) {
	r := NewRegistry()
	gen, _ := r.Attach("alice", &clienttest.Conn{})

	st, ok := r.Apply("alice", gen, Transition{Status: StatusQRPending, QRCode: "qr-1"})
	require.True(t, ok)
	assert.Equal(t, "qr-1", st.QRCode)

	st, ok = r.Apply("alice", gen, Transition{Status: StatusConnected, QRCode: "ignored", JID: "1@s.whatsapp.net"})
	require.True(t, ok)
	assert.Empty(t, st.QRCode)
	assert.True(t, st.Connected)
	assert.Equal(t, "1@s.whatsapp.net", st.JID)
}

func TestRegistryDropsStaleTransitions(t *testing.T) {
	r := NewRegistry()
	gen, _ := r.Attach("alice", &clienttest.Conn{})

	conn, changed := r.MarkClosed("alice")
	assert.NotNil(t, conn)
	assert.True(t, changed)

	st, ok := r.Apply("alice", gen, Transition{Status: StatusConnected})
	assert.False(t, ok)
	assert.Equal(t, StatusClosed, st.Status)
}

func TestRegistryMarkClosedIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Attach("alice", &clienttest.Conn{})

	_, changed := r.MarkClosed("alice")
	assert.True(t, changed)
	conn, changed := r.MarkClosed("alice")
	assert.Nil(t, conn)
	assert.False(t, changed)

	_, changed = r.MarkClosed("nobody")
	assert.False(t, changed)
}

func TestRegistryWatchWakesOnChange(t *testing.T) {
	r := NewRegistry()
	gen, _ := r.Attach("alice", &clienttest.Conn{})
	h, _ := r.lookup("alice")

	_, changed := h.watch()
	r.Apply("alice", gen, Transition{Status: StatusQRPending, QRCode: "qr"})

	select {
	case <-changed:
	default:
		t.Fatal("watch channel not closed after transition")
	}
}

func TestRegistryFailDetaches(t *testing.T) {
	r := NewRegistry()
	conn := &clienttest.Conn{}
	r.Attach("alice", conn)

	detached := r.Fail("alice", "dial failed")
	assert.Same(t, conn, detached)

	st, _ := r.Get("alice")
	assert.Equal(t, StatusDisconnected, st.Status)
	assert.Equal(t, "dial failed", st.LastError)
	assert.False(t, st.Connecting())
}

func TestRegistrySummarize(t *testing.T) {
	r := NewRegistry()
	gen, _ := r.Attach("a", &clienttest.Conn{})
	r.Apply("a", gen, Transition{Status: StatusConnected})
	r.Attach("b", &clienttest.Conn{})
	r.Attach("c", &clienttest.Conn{})
	r.MarkClosed("c")

	sum := r.Summarize()
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.ByStatus[StatusConnected])
	assert.Equal(t, 1, sum.ByStatus[StatusUninitialized])
	assert.Equal(t, 1, sum.ByStatus[StatusClosed])
	assert.Equal(t, []string{"a", "b", "c"}, r.List())
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("tenant_01.main-x"))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID(".."))
	assert.False(t, ValidID("a/b"))
	assert.False(t, ValidID("with space"))
}
