package session

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neekaru/whatsappgo-gateway/internal/apperror"
	"github.com/neekaru/whatsappgo-gateway/internal/client"
	"github.com/neekaru/whatsappgo-gateway/internal/notify"
	"github.com/rs/zerolog"
)

// Credentials is the part of the credential store the manager writes to
type Credentials interface {
	MarkAuthenticated(sessionID, jid string) error
	Unmark(sessionID string) error
	Purge(sessionID string) error
}

// Emitter accepts lifecycle events without blocking
type Emitter interface {
	Emit(ev notify.Event) bool
}

// MediaRecorder stores inbound media messages for later retrieval
type MediaRecorder interface {
	Record(sessionID string, msg *client.MediaMessage) error
	Forget(sessionID string) error
}

// QRRenderer turns a pairing challenge into a displayable data URL
type QRRenderer func(code string) (string, error)

// Options configures a Manager
type Options struct {
	QRWaitTimeout  time.Duration
	ConnectTimeout time.Duration
	SecretKey      string
	RenderQR       QRRenderer
}

// Manager drives session lifecycles against the registry and the dialer.
// Operations on one session are serialized; different sessions proceed in
// parallel.
type Manager struct {
	registry *Registry
	dialer   client.Dialer
	creds    Credentials
	events   Emitter
	opts     Options
	logger   zerolog.Logger

	media atomic.Pointer[MediaRecorder]

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lifeMu  sync.Mutex
	stopped bool
}

// NewManager creates a manager
func NewManager(registry *Registry, dialer client.Dialer, creds Credentials, events Emitter, logger zerolog.Logger, opts Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		registry: registry,
		dialer:   dialer,
		creds:    creds,
		events:   events,
		opts:     opts,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetMediaRecorder installs the store inbound media is recorded into
func (m *Manager) SetMediaRecorder(r MediaRecorder) {
	m.media.Store(&r)
}

// Registry returns the registry the manager mutates
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Open starts a session. A connected session is left alone and a pending
// connection attempt is reused. Without waitForQR the state known right
// after dispatch is returned and connect failures surface only as state.
// With waitForQR the call blocks until a QR challenge is issued or the
// attempt resolves. After Shutdown every Open fails with a state conflict.
func (m *Manager) Open(ctx context.Context, id string, waitForQR bool) (State, error) {
	h := m.registry.Upsert(id)

	st, dialErr := m.open(h)
	if !waitForQR {
		if apperror.Is(dialErr, apperror.KindStateConflict) {
			return st, dialErr
		}
		return st, nil
	}
	if dialErr != nil {
		return st, dialErr
	}
	return m.waitForQR(ctx, h)
}

func (m *Manager) open(h *Handle) (State, error) {
	h.op.Lock()
	defer h.op.Unlock()

	log := m.logger.With().Str("session", h.id).Logger()
	st := h.Snapshot()
	if conn, _ := h.connection(); conn != nil {
		switch st.Status {
		case StatusConnected:
			if m.probe(conn) {
				log.Debug().Msg("Session already connected")
				return st, nil
			}
		case StatusUninitialized, StatusQRPending:
			log.Debug().Str("status", string(st.Status)).Msg("Reusing pending connection")
			return st, nil
		}
	}

	if !m.track() {
		return st, apperror.New(apperror.KindStateConflict, "open", h.id, "gateway is shutting down")
	}

	var gen atomic.Uint64
	conn, err := m.dialer.Dial(h.id, func(ev client.Event) {
		m.handleEvent(h.id, gen.Load(), ev)
	})
	if err != nil {
		m.wg.Done()
		log.Error().Err(err).Msg("Failed to create connection")
		if stale := m.registry.Fail(h.id, err.Error()); stale != nil {
			m.closeConn(h.id, stale)
		}
		return h.Snapshot(), apperror.Wrapf(apperror.KindConnection, "open", h.id, err, "failed to create connection")
	}

	next, stale := m.registry.Attach(h.id, conn)
	gen.Store(next)
	if stale != nil {
		m.closeConn(h.id, stale)
	}

	go m.connect(h.id, next, conn)

	log.Info().Uint64("generation", next).Msg("Session opened")
	m.emit(notify.NewEvent(h.id, notify.KindSessionOpened, false, map[string]any{
		"message": fmt.Sprintf("Session: %s opened", h.id),
	}))
	return h.Snapshot(), nil
}

// track reserves a slot for a connect goroutine unless Shutdown has begun
func (m *Manager) track() bool {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	if m.stopped {
		return false
	}
	m.wg.Add(1)
	return true
}

func (m *Manager) connect(id string, gen uint64, conn client.Connection) {
	defer m.wg.Done()

	ctx, cancel := context.WithTimeout(m.ctx, m.opts.ConnectTimeout)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		m.logger.Warn().Err(err).Str("session", id).Msg("Connect failed")
		m.transition(id, gen, Transition{Status: StatusDisconnected, Err: err.Error()})
	}
}

// WaitForQR blocks until the session has a QR challenge or its connection
// attempt has resolved. An unknown session reports CLOSED.
func (m *Manager) WaitForQR(ctx context.Context, id string) (State, error) {
	h, ok := m.registry.lookup(id)
	if !ok {
		return State{ID: id, Status: StatusClosed}, nil
	}
	return m.waitForQR(ctx, h)
}

func (m *Manager) waitForQR(ctx context.Context, h *Handle) (State, error) {
	timer := time.NewTimer(m.opts.QRWaitTimeout)
	defer timer.Stop()

	for {
		st, changed := h.watch()
		switch st.Status {
		case StatusQRPending, StatusConnected, StatusClosed:
			return st, nil
		case StatusDisconnected:
			return st, apperror.New(apperror.KindConnection, "open", h.id, "connection failed: "+st.LastError)
		}
		if !st.Connecting() {
			return st, nil
		}

		select {
		case <-changed:
		case <-timer.C:
			return st, apperror.New(apperror.KindTimeout, "open", h.id, "timed out waiting for QR code")
		case <-ctx.Done():
			return st, apperror.Wrap(apperror.KindTimeout, "open", h.id, ctx.Err())
		}
	}
}

// AwaitSettled blocks until the session's connection attempt is no longer
// pending, or ctx expires.
func (m *Manager) AwaitSettled(ctx context.Context, id string) (State, error) {
	h, ok := m.registry.lookup(id)
	if !ok {
		return State{}, apperror.New(apperror.KindNotFound, "await", id, "session not found")
	}
	for {
		st, changed := h.watch()
		if !st.Connecting() {
			return st, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return st, apperror.Wrap(apperror.KindTimeout, "await", id, ctx.Err())
		}
	}
}

// Close stops a session and optionally purges its credentials. Closing a
// closed or unknown session succeeds. A purge failure is reported in the
// result and does not undo the close.
func (m *Manager) Close(id string, clearCredentials bool) CloseResult {
	var (
		conn   client.Connection
		closed bool
	)
	if h, ok := m.registry.lookup(id); ok {
		h.op.Lock()
		defer h.op.Unlock()
		conn, closed = m.registry.MarkClosed(id)
	}
	if conn != nil {
		m.closeConn(id, conn)
	}

	res := CloseResult{Ack: true}
	if clearCredentials {
		if err := m.creds.Purge(id); err != nil {
			m.logger.Error().Err(err).Str("session", id).Msg("Failed to purge credentials")
			res.PurgeError = err.Error()
		} else {
			res.CredentialsPurged = true
		}
		if r := m.media.Load(); r != nil {
			if err := (*r).Forget(id); err != nil {
				m.logger.Warn().Err(err).Str("session", id).Msg("Failed to drop recorded media")
			}
		}
	}

	if closed {
		m.logger.Info().Str("session", id).Bool("purged", res.CredentialsPurged).Msg("Session closed")
		m.emit(notify.NewEvent(id, notify.KindSessionClosed, false, map[string]any{
			"message": fmt.Sprintf("Session: %s disconnected", id),
		}))
	}
	return res
}

// Logout unlinks a connected session. On failure the session is unchanged.
func (m *Manager) Logout(ctx context.Context, id string) error {
	h, ok := m.registry.lookup(id)
	if !ok {
		return apperror.New(apperror.KindStateConflict, "logout", id, "session is not connected")
	}
	h.op.Lock()
	defer h.op.Unlock()

	conn, gen := h.connection()
	if conn == nil || h.Snapshot().Status != StatusConnected {
		return apperror.New(apperror.KindStateConflict, "logout", id, "session is not connected")
	}
	if err := conn.Logout(ctx); err != nil {
		return apperror.Wrapf(apperror.KindConnection, "logout", id, err, "logout failed")
	}

	m.registry.Apply(id, gen, Transition{Status: StatusDisconnected, Err: "logged out"})
	if err := m.creds.Unmark(id); err != nil {
		m.logger.Warn().Err(err).Str("session", id).Msg("Failed to remove credential marker")
	}

	m.logger.Info().Str("session", id).Msg("Session logged out")
	m.emit(notify.NewEvent(id, notify.KindSessionLoggedOut, false, map[string]any{
		"message": fmt.Sprintf("Session: %s logged out", id),
	}))
	return nil
}

// Restart closes a session, keeping its credentials, and opens it again
func (m *Manager) Restart(ctx context.Context, id string, waitForQR bool) (State, error) {
	m.Close(id, false)
	return m.Open(ctx, id, waitForQR)
}

// QueryState returns the read model of a session. It never creates an entry.
func (m *Manager) QueryState(id string) StateView {
	st, ok := m.registry.Get(id)
	if !ok {
		return StateView{Status: StatusClosed}
	}
	view := StateView{Status: st.Status, URLCode: st.QRCode}
	if st.QRCode != "" && m.opts.RenderQR != nil {
		img, err := m.opts.RenderQR(st.QRCode)
		if err != nil {
			m.logger.Warn().Err(err).Str("session", id).Msg("Failed to render QR code")
		} else {
			view.QRImage = img
		}
	}
	return view
}

// State returns the snapshot of a session
func (m *Manager) State(id string) (State, bool) {
	return m.registry.Get(id)
}

// CheckConnectivity probes the live connection. Any failure reads as false.
func (m *Manager) CheckConnectivity(id string) bool {
	h, ok := m.registry.lookup(id)
	if !ok {
		return false
	}
	conn, _ := h.connection()
	if conn == nil {
		return false
	}
	return m.probe(conn)
}

func (m *Manager) probe(conn client.Connection) (connected bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn().Interface("panic", r).Msg("Connectivity probe panicked")
			connected = false
		}
	}()
	return conn.IsConnected()
}

// WithConnection runs fn with the connection of a connected session. fn must
// not retain the connection.
func (m *Manager) WithConnection(id string, fn func(client.Connection) error) error {
	h, ok := m.registry.lookup(id)
	if !ok {
		return apperror.New(apperror.KindNotFound, "session", id, "session not found")
	}
	conn, _ := h.connection()
	if conn == nil || h.Snapshot().Status != StatusConnected {
		return apperror.New(apperror.KindStateConflict, "session", id, "session is not connected")
	}
	return fn(conn)
}

// List returns every known session id when secret matches the configured key
func (m *Manager) List(secret string) ([]string, error) {
	if m.opts.SecretKey == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(m.opts.SecretKey)) != 1 {
		return nil, apperror.New(apperror.KindAuth, "list", "", "the token is incorrect")
	}
	return m.registry.List(), nil
}

// Authorized reports whether secret matches the configured key
func (m *Manager) Authorized(secret string) bool {
	_, err := m.List(secret)
	return err == nil
}

// Summary counts sessions per status
func (m *Manager) Summary() Summary {
	return m.registry.Summarize()
}

// Shutdown closes every live connection. Credentials are kept.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.lifeMu.Lock()
	m.stopped = true
	m.lifeMu.Unlock()
	m.cancel()
	for _, id := range m.registry.List() {
		h, ok := m.registry.lookup(id)
		if !ok {
			continue
		}
		h.op.Lock()
		conn, _ := m.registry.MarkClosed(id)
		h.op.Unlock()
		if conn != nil {
			m.closeConn(id, conn)
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) closeConn(id string, conn client.Connection) {
	if err := conn.Close(); err != nil {
		m.logger.Warn().Err(err).Str("session", id).Msg("Error closing connection")
	}
}

func (m *Manager) emit(ev notify.Event) {
	if m.events != nil {
		m.events.Emit(ev)
	}
}

// transition applies t and publishes the matching event
func (m *Manager) transition(id string, gen uint64, t Transition) (State, bool) {
	st, ok := m.registry.Apply(id, gen, t)
	if !ok {
		m.logger.Debug().Str("session", id).Uint64("generation", gen).Msg("Dropping event from stale connection")
		return st, false
	}

	switch t.Status {
	case StatusQRPending:
		m.emit(notify.NewEvent(id, notify.KindQRUpdated, false, map[string]any{"urlcode": t.QRCode}))
	case StatusConnected:
		m.emit(notify.NewEvent(id, notify.KindStatusChanged, true, map[string]any{"jid": st.JID}))
	case StatusDisconnected:
		m.emit(notify.NewEvent(id, notify.KindStatusChanged, false, map[string]any{"reason": t.Err}))
	}
	return st, true
}

func (m *Manager) handleEvent(id string, gen uint64, ev client.Event) {
	log := m.logger.With().Str("session", id).Str("event", ev.Kind.String()).Logger()

	switch ev.Kind {
	case client.EventQR:
		log.Debug().Msg("QR code received")
		m.transition(id, gen, Transition{Status: StatusQRPending, QRCode: ev.QRCode})

	case client.EventConnected:
		if _, ok := m.transition(id, gen, Transition{Status: StatusConnected, JID: ev.JID}); !ok {
			return
		}
		log.Info().Str("jid", ev.JID).Msg("Session connected")
		if err := m.creds.MarkAuthenticated(id, ev.JID); err != nil {
			log.Error().Err(err).Msg("Failed to write credential marker")
		}

	case client.EventLoggedOut:
		if _, ok := m.transition(id, gen, Transition{Status: StatusDisconnected, Err: ev.Reason}); !ok {
			return
		}
		log.Warn().Str("reason", ev.Reason).Msg("Session logged out remotely")
		if err := m.creds.Unmark(id); err != nil {
			log.Warn().Err(err).Msg("Failed to remove credential marker")
		}

	case client.EventDisconnected, client.EventConnectFailed, client.EventQRTimeout:
		log.Warn().Str("reason", ev.Reason).Msg("Session disconnected")
		m.transition(id, gen, Transition{Status: StatusDisconnected, Err: ev.Reason})

	case client.EventMedia:
		m.recordMedia(id, gen, ev.Media)
	}
}

func (m *Manager) recordMedia(id string, gen uint64, msg *client.MediaMessage) {
	if msg == nil {
		return
	}
	h, ok := m.registry.lookup(id)
	if !ok {
		return
	}
	if _, current := h.connection(); current != gen {
		return
	}

	if r := m.media.Load(); r != nil {
		if err := (*r).Record(id, msg); err != nil {
			m.logger.Error().Err(err).Str("session", id).Str("message", msg.ID).Msg("Failed to record media message")
		}
	}
	m.emit(notify.NewEvent(id, notify.KindMediaReceived, true, map[string]any{
		"messageId": msg.ID,
		"type":      msg.Type,
		"mimetype":  msg.MimeType,
		"chat":      msg.Chat,
		"sender":    msg.Sender,
	}))
}
