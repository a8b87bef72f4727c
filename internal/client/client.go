package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCompanionReg"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"
)

// CredentialPaths resolves where a session keeps its device database
type CredentialPaths interface {
	EnsureDir(sessionID string) error
	DBPath(sessionID string) string
}

// WhatsmeowDialer creates whatsmeow-backed connections, one sqlite device
// database per session.
type WhatsmeowDialer struct {
	paths  CredentialPaths
	logger zerolog.Logger
}

// NewWhatsmeowDialer creates a dialer storing credentials under paths
func NewWhatsmeowDialer(paths CredentialPaths, logger zerolog.Logger) *WhatsmeowDialer {
	store.SetOSInfo("Linux", store.GetWAVersion())
	store.DeviceProps.PlatformType = waCompanionReg.DeviceProps_CHROME.Enum()
	return &WhatsmeowDialer{paths: paths, logger: logger}
}

// Dial returns an unconnected client. The device database is opened lazily by
// Connect so that dialing never touches the disk or the network.
func (d *WhatsmeowDialer) Dial(sessionID string, sink EventSink) (Connection, error) {
	if sink == nil {
		sink = func(Event) {}
	}
	return &Client{
		ID:     sessionID,
		paths:  d.paths,
		sink:   sink,
		logger: d.logger.With().Str("session", sessionID).Logger(),
	}, nil
}

// Client represents a WhatsApp client
type Client struct {
	ID              string
	WhatsmeowClient *whatsmeow.Client
	Container       *sqlstore.Container

	paths    CredentialPaths
	sink     EventSink
	logger   zerolog.Logger
	cancelQR context.CancelFunc
	closed   bool

	// Mutex for protecting client state
	mu sync.Mutex
}

// open creates the device store and whatsmeow client on first use
func (c *Client) open(ctx context.Context) error {
	if c.WhatsmeowClient != nil {
		return nil
	}
	if err := c.paths.EnsureDir(c.ID); err != nil {
		return err
	}

	dbPath := c.paths.DBPath(c.ID)
	dbLog := waLog.Zerolog(c.logger.With().Str("module", "database").Logger())
	container, err := sqlstore.New(ctx, "sqlite3", "file:"+dbPath+"?_foreign_keys=on", dbLog)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return fmt.Errorf("device error: %w", err)
	}

	clientLog := waLog.Zerolog(c.logger.With().Str("module", "whatsmeow").Logger())
	wc := whatsmeow.NewClient(deviceStore, clientLog)
	wc.AddEventHandler(c.handleWhatsmeowEvent)

	c.Container = container
	c.WhatsmeowClient = wc
	return nil
}

// Connect connects the client to WhatsApp. Unpaired devices start a QR
// pairing flow whose challenges are reported as EventQR.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err := c.open(ctx); err != nil {
		c.mu.Unlock()
		return err
	}
	wc := c.WhatsmeowClient
	if wc.IsConnected() {
		c.mu.Unlock()
		return nil
	}

	if wc.Store.ID == nil {
		qrCtx, cancel := context.WithCancel(context.Background())
		qrChan, err := wc.GetQRChannel(qrCtx)
		if err != nil {
			cancel()
			c.mu.Unlock()
			return fmt.Errorf("failed to create QR channel: %w", err)
		}
		c.cancelQR = cancel
		go c.pumpQR(qrChan)
	}
	c.mu.Unlock()

	return c.goLive(wc.Connect, wc.Disconnect)
}

// goLive runs connect without holding the lock. A Close that ran meanwhile
// found no socket to disconnect, so the fresh one is torn down here.
func (c *Client) goLive(connect func() error, disconnect func()) error {
	if err := connect(); err != nil {
		c.logger.Error().Err(err).Msg("Error connecting client")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.logger.Debug().Msg("Client closed while connecting, dropping socket")
		disconnect()
		return ErrClosed
	}
	return nil
}

// pumpQR translates the pairing channel into events
func (c *Client) pumpQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			c.logger.Info().Msg("Received QR code")
			c.sink(NewQREvent(item.Code))
		case whatsmeow.QRChannelSuccess.Event:
			c.logger.Info().Msg("QR pairing succeeded")
		case whatsmeow.QRChannelTimeout.Event:
			c.sink(NewFailureEvent(EventQRTimeout, "QR code was not scanned in time"))
		default:
			reason := item.Event
			if item.Error != nil {
				reason = item.Error.Error()
			}
			c.sink(NewFailureEvent(EventConnectFailed, "pairing failed: "+reason))
		}
	}
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	wc := c.WhatsmeowClient
	c.mu.Unlock()
	return wc != nil && wc.IsConnected()
}

// Logout unlinks the device from the account
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	wc := c.WhatsmeowClient
	c.mu.Unlock()
	if wc == nil || !wc.IsConnected() {
		return errors.New("client is not connected")
	}
	if err := wc.Logout(ctx); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	return nil
}

// Close disconnects the client and closes its device database
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if c.cancelQR != nil {
		c.cancelQR()
		c.cancelQR = nil
	}
	if c.WhatsmeowClient != nil {
		c.WhatsmeowClient.Disconnect()
	}
	if c.Container != nil {
		if err := c.Container.Close(); err != nil {
			return fmt.Errorf("failed to close device database: %w", err)
		}
	}
	return nil
}

func (c *Client) connected() (*whatsmeow.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.WhatsmeowClient == nil || !c.WhatsmeowClient.IsConnected() {
		return nil, errors.New("client is not connected")
	}
	return c.WhatsmeowClient, nil
}

// Decrypt downloads and decrypts the media of msg
func (c *Client) Decrypt(ctx context.Context, msg *MediaMessage) ([]byte, error) {
	wc, err := c.connected()
	if err != nil {
		return nil, err
	}
	waMsg, err := unmarshalMessage(msg)
	if err != nil {
		return nil, err
	}
	return wc.DownloadAny(ctx, waMsg)
}

// Download fetches the media of msg through its direct path only
func (c *Client) Download(ctx context.Context, msg *MediaMessage) ([]byte, error) {
	wc, err := c.connected()
	if err != nil {
		return nil, err
	}
	waMsg, err := unmarshalMessage(msg)
	if err != nil {
		return nil, err
	}
	media, length := downloadable(waMsg)
	if media == nil {
		return nil, errors.New("message does not contain media")
	}
	return wc.DownloadMediaWithPath(
		ctx,
		media.GetDirectPath(),
		media.GetFileEncSHA256(),
		media.GetFileSHA256(),
		media.GetMediaKey(),
		length,
		whatsmeow.GetMediaType(media),
		"",
	)
}

// SubscribePresence asks to receive presence updates of jid
func (c *Client) SubscribePresence(ctx context.Context, jid string) error {
	wc, err := c.connected()
	if err != nil {
		return err
	}
	parsed, err := types.ParseJID(jid)
	if err != nil {
		return fmt.Errorf("invalid jid %q: %w", jid, err)
	}
	return wc.SubscribePresence(parsed)
}

// ContactJIDs lists the addresses of every known contact
func (c *Client) ContactJIDs(ctx context.Context) ([]string, error) {
	wc, err := c.connected()
	if err != nil {
		return nil, err
	}
	contacts, err := wc.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get contacts: %w", err)
	}
	jids := make([]string, 0, len(contacts))
	for jid := range contacts {
		// Skip hidden-id contacts, presence is keyed by phone number
		if jid.Server == types.HiddenUserServer {
			continue
		}
		jids = append(jids, jid.String())
	}
	return jids, nil
}

// GroupJIDs lists the addresses of every joined group
func (c *Client) GroupJIDs(ctx context.Context) ([]string, error) {
	wc, err := c.connected()
	if err != nil {
		return nil, err
	}
	groups, err := wc.GetJoinedGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get groups: %w", err)
	}
	jids := make([]string, 0, len(groups))
	for _, group := range groups {
		jids = append(jids, group.JID.String())
	}
	return jids, nil
}

// handleWhatsmeowEvent handles events from the whatsmeow client
func (c *Client) handleWhatsmeowEvent(evt interface{}) {
	switch e := evt.(type) {
	case *events.Connected:
		jid := ""
		c.mu.Lock()
		if c.WhatsmeowClient != nil && c.WhatsmeowClient.Store.ID != nil {
			jid = c.WhatsmeowClient.Store.ID.String()
		}
		c.mu.Unlock()
		c.logger.Info().Msg("Client connected and logged in")
		c.sink(NewConnectedEvent(jid))

	case *events.PairSuccess:
		c.logger.Info().Str("jid", e.ID.String()).Msg("Client paired")

	case *events.LoggedOut:
		if e.OnConnect {
			c.logger.Warn().Str("reason", e.Reason.String()).Msg("Client logged out on connect")
		} else {
			c.logger.Warn().Msg("Client logged out (stream error)")
		}
		c.sink(NewFailureEvent(EventLoggedOut, "logged out remotely"))

	case *events.Disconnected:
		c.logger.Info().Msg("Client disconnected")
		c.sink(NewFailureEvent(EventDisconnected, "connection lost"))

	case *events.StreamReplaced:
		c.sink(NewFailureEvent(EventDisconnected, "connection replaced by another client"))

	case *events.ConnectFailure:
		c.sink(NewFailureEvent(EventConnectFailed, fmt.Sprintf("connect failure: %s %s", e.Reason.String(), e.Message)))

	case *events.TemporaryBan:
		c.sink(NewFailureEvent(EventConnectFailed, "temporary ban: "+e.String()))

	case *events.Message:
		if msg := c.toMediaMessage(e); msg != nil {
			c.sink(NewMediaEvent(msg))
		}
	}
}

// toMediaMessage extracts downloadable media from an inbound message
func (c *Client) toMediaMessage(e *events.Message) *MediaMessage {
	if e.Message == nil {
		return nil
	}
	kind, mimeType, caption, fileName := describeMedia(e.Message)
	if kind == "" {
		return nil
	}
	raw, err := proto.Marshal(e.Message)
	if err != nil {
		c.logger.Error().Err(err).Str("message_id", e.Info.ID).Msg("Failed to serialize media message")
		return nil
	}
	return &MediaMessage{
		ID:        e.Info.ID,
		Chat:      e.Info.Chat.String(),
		Sender:    e.Info.Sender.String(),
		Timestamp: e.Info.Timestamp,
		Type:      kind,
		MimeType:  mimeType,
		Caption:   caption,
		FileName:  fileName,
		Raw:       raw,
	}
}

func unmarshalMessage(msg *MediaMessage) (*waE2E.Message, error) {
	if !msg.HasMedia() {
		return nil, errors.New("message does not contain media")
	}
	var waMsg waE2E.Message
	if err := proto.Unmarshal(msg.Raw, &waMsg); err != nil {
		return nil, fmt.Errorf("corrupt stored message: %w", err)
	}
	return &waMsg, nil
}

// describeMedia returns the media kind, mime type, caption and file name of msg
func describeMedia(msg *waE2E.Message) (kind, mimeType, caption, fileName string) {
	switch {
	case msg.GetImageMessage() != nil:
		m := msg.GetImageMessage()
		return "image", m.GetMimetype(), m.GetCaption(), ""
	case msg.GetVideoMessage() != nil:
		m := msg.GetVideoMessage()
		return "video", m.GetMimetype(), m.GetCaption(), ""
	case msg.GetAudioMessage() != nil:
		m := msg.GetAudioMessage()
		if m.GetPTT() {
			return "ptt", m.GetMimetype(), "", ""
		}
		return "audio", m.GetMimetype(), "", ""
	case msg.GetDocumentMessage() != nil:
		m := msg.GetDocumentMessage()
		return "document", m.GetMimetype(), m.GetCaption(), m.GetFileName()
	case msg.GetStickerMessage() != nil:
		m := msg.GetStickerMessage()
		return "sticker", m.GetMimetype(), "", ""
	}
	return "", "", "", ""
}

// downloadable returns the media part of msg and its declared length
func downloadable(msg *waE2E.Message) (whatsmeow.DownloadableMessage, int) {
	switch {
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage(), int(msg.GetImageMessage().GetFileLength())
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage(), int(msg.GetVideoMessage().GetFileLength())
	case msg.GetAudioMessage() != nil:
		return msg.GetAudioMessage(), int(msg.GetAudioMessage().GetFileLength())
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage(), int(msg.GetDocumentMessage().GetFileLength())
	case msg.GetStickerMessage() != nil:
		return msg.GetStickerMessage(), int(msg.GetStickerMessage().GetFileLength())
	}
	return nil, 0
}

// NormalizeJID turns a phone number or group id into a JID string
func NormalizeJID(target string, isGroup bool) string {
	target = strings.TrimSpace(target)
	if strings.Contains(target, "@") {
		return target
	}
	if isGroup {
		return target + "@" + types.GroupServer
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, target)
	return digits + "@" + types.DefaultUserServer
}
