package session

import (
	"sync"
	"time"

	"github.com/neekaru/whatsappgo-gateway/internal/client/clienttest"
	"github.com/neekaru/whatsappgo-gateway/internal/notify"
	"github.com/rs/zerolog"
)

type fakeCreds struct {
	mu       sync.Mutex
	marked   map[string]string
	purged   []string
	purgeErr error
}

func newFakeCreds() *fakeCreds {
	return &fakeCreds{marked: make(map[string]string)}
}

func (f *fakeCreds) MarkAuthenticated(id, jid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked[id] = jid
	return nil
}

func (f *fakeCreds) Unmark(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.marked, id)
	return nil
}

func (f *fakeCreds) Purge(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.purgeErr != nil {
		return f.purgeErr
	}
	f.purged = append(f.purged, id)
	delete(f.marked, id)
	return nil
}

func (f *fakeCreds) jid(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marked[id]
}

type eventLog struct {
	mu     sync.Mutex
	events []notify.Event
}

func (l *eventLog) Emit(ev notify.Event) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return true
}

func (l *eventLog) kinds(sessionID string) []notify.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	var kinds []notify.Kind
	for _, ev := range l.events {
		if ev.SessionID == sessionID {
			kinds = append(kinds, ev.Kind)
		}
	}
	return kinds
}

func (l *eventLog) count(kind notify.Kind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	manager *Manager
	dialer  *clienttest.Dialer
	creds   *fakeCreds
	events  *eventLog
}

func newFixture(dialer *clienttest.Dialer) *fixture {
	f := &fixture{
		dialer: dialer,
		creds:  newFakeCreds(),
		events: &eventLog{},
	}
	f.manager = NewManager(NewRegistry(), dialer, f.creds, f.events, zerolog.Nop(), Options{
		QRWaitTimeout:  500 * time.Millisecond,
		ConnectTimeout: time.Second,
		SecretKey:      "s3cret",
		RenderQR: func(code string) (string, error) {
			return "data:image/png;base64," + code, nil
		},
	})
	return f
}
