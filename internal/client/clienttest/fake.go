// Package clienttest provides an in-memory client.Dialer for tests.
package clienttest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/neekaru/whatsappgo-gateway/internal/client"
)

// ErrNotConfigured is returned by media operations without a configured result
var ErrNotConfigured = errors.New("clienttest: not configured")

// Conn is a scriptable client.Connection
type Conn struct {
	ID   string
	sink client.EventSink

	// OnConnect runs inside Connect; nil succeeds without events
	OnConnect func(ctx context.Context, c *Conn) error

	DecryptCalls  atomic.Int32
	DownloadCalls atomic.Int32

	mu          sync.Mutex
	connected   bool
	closed      bool
	logoutErr   error
	panicProbe  bool
	decrypt     func(*client.MediaMessage) ([]byte, error)
	download    func(*client.MediaMessage) ([]byte, error)
	contacts    []string
	groups      []string
	subscribed  []string
	presenceErr error
}

// Connect runs OnConnect
func (c *Conn) Connect(ctx context.Context) error {
	if c.OnConnect != nil {
		return c.OnConnect(ctx, c)
	}
	return nil
}

// IsConnected reports whether EmitConnected was called and the connection is open
func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.panicProbe {
		panic("clienttest: probe failure")
	}
	return c.connected && !c.closed
}

// Logout fails with the configured error or marks the connection logged out
func (c *Conn) Logout(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.logoutErr != nil {
		return c.logoutErr
	}
	c.connected = false
	return nil
}

// Close marks the connection closed
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.connected = false
	return nil
}

// Closed reports whether Close was called
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Decrypt runs the function set by SetDecrypt
func (c *Conn) Decrypt(_ context.Context, msg *client.MediaMessage) ([]byte, error) {
	c.DecryptCalls.Add(1)
	c.mu.Lock()
	fn := c.decrypt
	c.mu.Unlock()
	if fn == nil {
		return nil, ErrNotConfigured
	}
	return fn(msg)
}

// Download runs the function set by SetDownload
func (c *Conn) Download(_ context.Context, msg *client.MediaMessage) ([]byte, error) {
	c.DownloadCalls.Add(1)
	c.mu.Lock()
	fn := c.download
	c.mu.Unlock()
	if fn == nil {
		return nil, ErrNotConfigured
	}
	return fn(msg)
}

// SubscribePresence records jid
func (c *Conn) SubscribePresence(_ context.Context, jid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.presenceErr != nil {
		return c.presenceErr
	}
	c.subscribed = append(c.subscribed, jid)
	return nil
}

// ContactJIDs returns the contacts set by SetContacts
func (c *Conn) ContactJIDs(context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.contacts...), nil
}

// GroupJIDs returns the groups set by SetGroups
func (c *Conn) GroupJIDs(context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.groups...), nil
}

// SetDecrypt configures the result of Decrypt
func (c *Conn) SetDecrypt(fn func(*client.MediaMessage) ([]byte, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decrypt = fn
}

// SetDownload configures the result of Download
func (c *Conn) SetDownload(fn func(*client.MediaMessage) ([]byte, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.download = fn
}

// SetLogoutError makes Logout fail with err
func (c *Conn) SetLogoutError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logoutErr = err
}

// SetProbePanics makes IsConnected panic
func (c *Conn) SetProbePanics() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.panicProbe = true
}

// SetContacts configures ContactJIDs and GroupJIDs
func (c *Conn) SetContacts(contacts, groups []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contacts = contacts
	c.groups = groups
}

// SetPresenceError makes SubscribePresence fail with err
func (c *Conn) SetPresenceError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presenceErr = err
}

// Subscribed returns the jids passed to SubscribePresence
func (c *Conn) Subscribed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.subscribed...)
}

// Emit delivers ev to the session that dialed this connection
func (c *Conn) Emit(ev client.Event) {
	c.sink(ev)
}

// EmitQR simulates the network issuing a pairing challenge
func (c *Conn) EmitQR(code string) {
	c.sink(client.NewQREvent(code))
}

// EmitConnected simulates a successful authentication
func (c *Conn) EmitConnected(jid string) {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	c.sink(client.NewConnectedEvent(jid))
}

// Dialer is a client.Dialer handing out Conns
type Dialer struct {
	// OnConnect is installed on every dialed connection
	OnConnect func(ctx context.Context, c *Conn) error
	// Setup runs on every connection before it is returned
	Setup func(c *Conn)
	// Err fails every Dial
	Err error
	// Fail fails Dial for the listed session ids
	Fail map[string]error

	dials atomic.Int32

	mu    sync.Mutex
	conns []*Conn
}

// Dial creates a Conn for sessionID
func (d *Dialer) Dial(sessionID string, sink client.EventSink) (client.Connection, error) {
	d.dials.Add(1)
	if d.Err != nil {
		return nil, d.Err
	}
	if err, ok := d.Fail[sessionID]; ok {
		return nil, err
	}

	c := &Conn{ID: sessionID, sink: sink, OnConnect: d.OnConnect}
	if d.Setup != nil {
		d.Setup(c)
	}
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

// Dials returns how many times Dial was called
func (d *Dialer) Dials() int {
	return int(d.dials.Load())
}

// Conns returns every connection dialed so far
func (d *Dialer) Conns() []*Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Conn(nil), d.conns...)
}

// Last returns the most recent connection, or nil
func (d *Dialer) Last() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// Connected is an OnConnect hook that authenticates immediately as jid
func Connected(jid string) func(context.Context, *Conn) error {
	return func(_ context.Context, c *Conn) error {
		c.EmitConnected(jid)
		return nil
	}
}

// Refused is an OnConnect hook that fails every attempt with err
func Refused(err error) func(context.Context, *Conn) error {
	return func(context.Context, *Conn) error {
		return err
	}
}

// Issue is an OnConnect hook that emits a QR challenge asynchronously
func Issue(code string) func(context.Context, *Conn) error {
	return func(_ context.Context, c *Conn) error {
		go c.EmitQR(code)
		return nil
	}
}
