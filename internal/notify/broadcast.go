package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// StatusMessageType is the frame type sent to live listeners
const StatusMessageType = "whatsapp-status"

// StatusMessage is one frame on the live notification channel
type StatusMessage struct {
	Type      string         `json:"type"`
	Session   string         `json:"session"`
	Event     Kind           `json:"event"`
	Connected bool           `json:"connected"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type listener struct {
	conn *websocket.Conn
	send chan []byte
}

func newListener(conn *websocket.Conn) *listener {
	l := &listener{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go l.writePump()
	return l
}

func (l *listener) writePump() {
	defer l.conn.Close()
	for msg := range l.send {
		_ = l.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := l.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Broadcaster pushes events to every connected websocket listener
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*listener]bool
	upgrader  websocket.Upgrader
	logger    zerolog.Logger
}

// NewBroadcaster creates a broadcaster. checkOrigin may be nil to accept any origin.
func NewBroadcaster(logger zerolog.Logger, checkOrigin func(r *http.Request) bool) *Broadcaster {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Broadcaster{
		listeners: make(map[*listener]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin:      checkOrigin,
			HandshakeTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// ServeHTTP upgrades the request and keeps the listener until it disconnects
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	l := b.add(conn)
	b.logger.Debug().Str("remote", r.RemoteAddr).Msg("Live listener connected")

	go func() {
		defer func() {
			b.remove(l)
			b.logger.Debug().Str("remote", r.RemoteAddr).Msg("Live listener disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (b *Broadcaster) add(conn *websocket.Conn) *listener {
	l := newListener(conn)
	b.mu.Lock()
	b.listeners[l] = true
	b.mu.Unlock()
	return l
}

func (b *Broadcaster) remove(l *listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.listeners[l]; ok {
		delete(b.listeners, l)
		close(l.send)
	}
}

// OnEvent broadcasts the event. Listeners that cannot keep up are dropped.
func (b *Broadcaster) OnEvent(_ context.Context, event Event) error {
	data, err := json.Marshal(StatusMessage{
		Type:      StatusMessageType,
		Session:   event.SessionID,
		Event:     event.Kind,
		Connected: event.Connected,
		Payload:   event.Payload,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		return err
	}

	// Sends happen under the read lock so remove cannot close a channel mid-send
	var slow []*listener
	b.mu.RLock()
	for l := range b.listeners {
		select {
		case l.send <- data:
		default:
			slow = append(slow, l)
		}
	}
	b.mu.RUnlock()

	for _, l := range slow {
		b.logger.Warn().Msg("Live listener too slow, disconnecting")
		b.remove(l)
	}
	return nil
}

// ListenerCount returns the number of connected listeners
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Close disconnects every listener
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for l := range b.listeners {
		delete(b.listeners, l)
		close(l.send)
	}
}
