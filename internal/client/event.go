package client

// EventKind identifies what happened on a connection
type EventKind int

const (
	// EventQR carries a fresh pairing challenge
	EventQR EventKind = iota
	// EventConnected is emitted once the account is connected and authenticated
	EventConnected
	// EventDisconnected is emitted when an established connection drops
	EventDisconnected
	// EventLoggedOut is emitted when the account was unlinked remotely
	EventLoggedOut
	// EventConnectFailed is emitted when the server rejected the connection
	EventConnectFailed
	// EventQRTimeout is emitted when every pairing challenge expired unscanned
	EventQRTimeout
	// EventMedia carries an inbound message with downloadable media
	EventMedia
)

// String returns a string representation of the event kind
func (k EventKind) String() string {
	switch k {
	case EventQR:
		return "qr"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventLoggedOut:
		return "logged_out"
	case EventConnectFailed:
		return "connect_failed"
	case EventQRTimeout:
		return "qr_timeout"
	case EventMedia:
		return "media"
	default:
		return "unknown"
	}
}

// Event is a status change or inbound item reported by a connection
type Event struct {
	Kind   EventKind
	QRCode string
	// JID is the account address, set on EventConnected
	JID    string
	Reason string
	Media  *MediaMessage
}

// EventSink receives the events of one connection. It is called from the
// connection's own goroutines and must not block for long.
type EventSink func(Event)

// NewQREvent creates a new QR event
func NewQREvent(code string) Event {
	return Event{Kind: EventQR, QRCode: code}
}

// NewConnectedEvent creates a new connected event
func NewConnectedEvent(jid string) Event {
	return Event{Kind: EventConnected, JID: jid}
}

// NewFailureEvent creates an event of kind with a human readable reason
func NewFailureEvent(kind EventKind, reason string) Event {
	return Event{Kind: kind, Reason: reason}
}

// NewMediaEvent creates a new media event
func NewMediaEvent(msg *MediaMessage) Event {
	return Event{Kind: EventMedia, Media: msg}
}
