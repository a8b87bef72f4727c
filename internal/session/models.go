package session

import (
	"regexp"
	"time"
)

// Status is the lifecycle state of a session
type Status string

const (
	StatusUninitialized Status = "UNINITIALIZED"
	StatusQRPending     Status = "QR_PENDING"
	StatusConnected     Status = "CONNECTED"
	StatusDisconnected  Status = "DISCONNECTED"
	StatusClosed        Status = "CLOSED"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// ValidID reports whether id can name a session. Ids name directories on disk.
func ValidID(id string) bool {
	return idPattern.MatchString(id) && id != "." && id != ".."
}

// State is an immutable snapshot of a session handle
type State struct {
	ID        string    `json:"session"`
	Status    Status    `json:"status"`
	QRCode    string    `json:"urlcode,omitempty"`
	Connected bool      `json:"connected"`
	JID       string    `json:"jid,omitempty"`
	LastError string    `json:"lastError,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`

	attached bool
}

// Connecting reports whether a connection attempt is still unresolved
func (s State) Connecting() bool {
	return s.Status == StatusUninitialized && s.attached
}

// StateView is the read model served to clients. QRImage is a PNG data URL.
type StateView struct {
	Status  Status `json:"status"`
	QRImage string `json:"qrcode"`
	URLCode string `json:"urlcode"`
}

// CloseResult reports the two independent halves of a close
type CloseResult struct {
	Ack               bool   `json:"status"`
	CredentialsPurged bool   `json:"credentialsPurged"`
	PurgeError        string `json:"purgeError,omitempty"`
}

// Summary counts sessions per status
type Summary struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"byStatus"`
}

// StartSessionRequest is the body of start-session and restart-session
type StartSessionRequest struct {
	WaitQRCode bool `json:"waitQrCode"`
}

// CloseSessionRequest is the body of close-session
type CloseSessionRequest struct {
	ClearSession bool `json:"clearSession"`
}
