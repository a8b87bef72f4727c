package session

import (
	"sort"
	"sync"
	"time"

	"github.com/neekaru/whatsappgo-gateway/internal/client"
)

// Handle is the registry's record of one session. Its fields are only
// changed through Registry methods.
type Handle struct {
	id string

	// op serializes lifecycle operations on this session
	op sync.Mutex

	mu        sync.Mutex
	status    Status
	conn      client.Connection
	qr        string
	jid       string
	lastError string
	gen       uint64
	updatedAt time.Time
	changed   chan struct{}
}

func newHandle(id string) *Handle {
	return &Handle{
		id:        id,
		status:    StatusUninitialized,
		updatedAt: time.Now().UTC(),
		changed:   make(chan struct{}),
	}
}

// Snapshot returns the current state of the handle
func (h *Handle) Snapshot() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

func (h *Handle) snapshotLocked() State {
	return State{
		ID:        h.id,
		Status:    h.status,
		QRCode:    h.qr,
		Connected: h.status == StatusConnected,
		JID:       h.jid,
		LastError: h.lastError,
		UpdatedAt: h.updatedAt,
		attached:  h.conn != nil,
	}
}

// watch returns the current state and a channel closed on the next change
func (h *Handle) watch() (State, <-chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked(), h.changed
}

func (h *Handle) touchLocked() {
	h.updatedAt = time.Now().UTC()
	close(h.changed)
	h.changed = make(chan struct{})
}

// connection returns the attached connection and its generation
func (h *Handle) connection() (client.Connection, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn, h.gen
}

// Transition is a status change requested by a connection event
type Transition struct {
	Status Status
	QRCode string
	JID    string
	Err    string
}

// Registry maps session ids to handles. Entries are created lazily and live
// as long as the registry.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// Get returns the state of a session without creating it
func (r *Registry) Get(id string) (State, bool) {
	h, ok := r.lookup(id)
	if !ok {
		return State{}, false
	}
	return h.Snapshot(), true
}

func (r *Registry) lookup(id string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	return h, ok
}

// Upsert returns the handle of id, creating it when absent
func (r *Registry) Upsert(id string) *Handle {
	if h, ok := r.lookup(id); ok {
		return h
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handles[id]; ok {
		return h
	}
	h := newHandle(id)
	r.handles[id] = h
	return h
}

// Attach installs conn as the connection of id and starts a fresh cycle in
// UNINITIALIZED. It returns the new generation and the connection it
// displaced, which the caller must close.
func (r *Registry) Attach(id string, conn client.Connection) (uint64, client.Connection) {
	h := r.Upsert(id)
	h.mu.Lock()
	defer h.mu.Unlock()

	displaced := h.conn
	h.gen++
	h.conn = conn
	h.status = StatusUninitialized
	h.qr = ""
	h.lastError = ""
	h.touchLocked()
	return h.gen, displaced
}

// Apply moves the handle of id to t if gen is still its current
// generation. Transitions from stale connections are dropped.
func (r *Registry) Apply(id string, gen uint64, t Transition) (State, bool) {
	h, ok := r.lookup(id)
	if !ok {
		return State{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.gen != gen {
		return h.snapshotLocked(), false
	}

	h.status = t.Status
	h.qr = ""
	if t.Status == StatusQRPending {
		h.qr = t.QRCode
	}
	if t.JID != "" {
		h.jid = t.JID
	}
	if t.Status == StatusDisconnected {
		h.lastError = t.Err
	} else {
		h.lastError = ""
	}
	h.touchLocked()
	return h.snapshotLocked(), true
}

// Fail detaches the connection of id, if any, and marks the session
// DISCONNECTED with reason. It returns the detached connection.
func (r *Registry) Fail(id, reason string) client.Connection {
	h := r.Upsert(id)
	h.mu.Lock()
	defer h.mu.Unlock()

	conn := h.conn
	h.conn = nil
	h.gen++
	h.status = StatusDisconnected
	h.qr = ""
	h.lastError = reason
	h.touchLocked()
	return conn
}

// MarkClosed detaches the connection of id and marks it CLOSED. It returns
// the detached connection, if any, and whether the handle was not already
// closed. Waiters on the handle are released.
func (r *Registry) MarkClosed(id string) (client.Connection, bool) {
	h, ok := r.lookup(id)
	if !ok {
		return nil, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.status == StatusClosed && h.conn == nil {
		return nil, false
	}
	conn := h.conn
	h.conn = nil
	h.gen++
	h.status = StatusClosed
	h.qr = ""
	h.lastError = ""
	h.touchLocked()
	return conn, true
}

// List returns every known session id in order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Summarize counts sessions per status
func (r *Registry) Summarize() Summary {
	sum := Summary{ByStatus: make(map[Status]int)}
	for _, id := range r.List() {
		if st, ok := r.Get(id); ok {
			sum.Total++
			sum.ByStatus[st.Status]++
		}
	}
	return sum
}
