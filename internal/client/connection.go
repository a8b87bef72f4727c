package client

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a connection after Close
var ErrClosed = errors.New("connection closed")

// Connection is one session's link to the messaging network. Implementations
// report asynchronous status changes through the EventSink given to Dial.
type Connection interface {
	// Connect starts connecting. It returns once the connection attempt is
	// under way; pairing and authentication complete asynchronously.
	Connect(ctx context.Context) error
	IsConnected() bool
	// Logout unlinks the account and invalidates its credentials
	Logout(ctx context.Context) error
	// Close drops the connection and releases its resources. Credentials are kept.
	Close() error

	// Decrypt downloads and decrypts the media attached to msg
	Decrypt(ctx context.Context, msg *MediaMessage) ([]byte, error)
	// Download fetches the media of msg by its direct path
	Download(ctx context.Context, msg *MediaMessage) ([]byte, error)

	SubscribePresence(ctx context.Context, jid string) error
	ContactJIDs(ctx context.Context) ([]string, error)
	GroupJIDs(ctx context.Context) ([]string, error)
}

// Dialer creates connections. Dial must not block on the network.
type Dialer interface {
	Dial(sessionID string, sink EventSink) (Connection, error)
}

// DialerFunc adapts a function to the Dialer interface
type DialerFunc func(sessionID string, sink EventSink) (Connection, error)

// Dial calls f
func (f DialerFunc) Dial(sessionID string, sink EventSink) (Connection, error) {
	return f(sessionID, sink)
}
