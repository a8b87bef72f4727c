package client

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func TestNormalizeJID(t *testing.T) {
	assert.Equal(t, "628123456@s.whatsapp.net", NormalizeJID("+62 812-3456", false))
	assert.Equal(t, "120363-1600@g.us", NormalizeJID("120363-1600", true))
	assert.Equal(t, "abc@g.us", NormalizeJID("abc@g.us", false))
}

func TestDescribeMedia(t *testing.T) {
	cases := []struct {
		name string
		msg  *waE2E.Message
		kind string
		mime string
	}{
		{"image", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Mimetype: proto.String("image/jpeg")}}, "image", "image/jpeg"},
		{"ptt", &waE2E.Message{AudioMessage: &waE2E.AudioMessage{Mimetype: proto.String("audio/ogg; codecs=opus"), PTT: proto.Bool(true)}}, "ptt", "audio/ogg; codecs=opus"},
		{"audio", &waE2E.Message{AudioMessage: &waE2E.AudioMessage{Mimetype: proto.String("audio/mpeg")}}, "audio", "audio/mpeg"},
		{"document", &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{Mimetype: proto.String("application/pdf"), FileName: proto.String("a.pdf")}}, "document", "application/pdf"},
		{"text", &waE2E.Message{Conversation: proto.String("hi")}, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, mimeType, _, _ := describeMedia(tc.msg)
			assert.Equal(t, tc.kind, kind)
			assert.Equal(t, tc.mime, mimeType)
		})
	}
}

func TestMediaEventRoundTrip(t *testing.T) {
	var got []Event
	c := &Client{ID: "alice", sink: func(e Event) { got = append(got, e) }, logger: zerolog.Nop()}

	ts := time.Unix(1700000000, 0)
	c.handleWhatsmeowEvent(&events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Chat:   types.NewJID("628111", types.DefaultUserServer),
				Sender: types.NewJID("628111", types.DefaultUserServer),
			},
			ID:        "MSG1",
			Timestamp: ts,
		},
		Message: &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			Mimetype:   proto.String("image/png"),
			Caption:    proto.String("look"),
			DirectPath: proto.String("/v/t62/abc"),
			FileLength: proto.Uint64(42),
		}},
	})
	c.handleWhatsmeowEvent(&events.Message{Message: &waE2E.Message{Conversation: proto.String("plain")}})

	require.Len(t, got, 1)
	msg := got[0].Media
	require.NotNil(t, msg)
	assert.Equal(t, EventMedia, got[0].Kind)
	assert.Equal(t, "MSG1", msg.ID)
	assert.Equal(t, "image", msg.Type)
	assert.Equal(t, "look", msg.Caption)
	assert.True(t, msg.Timestamp.Equal(ts))

	waMsg, err := unmarshalMessage(msg)
	require.NoError(t, err)
	media, length := downloadable(waMsg)
	require.NotNil(t, media)
	assert.Equal(t, "/v/t62/abc", media.GetDirectPath())
	assert.Equal(t, 42, length)
}

func TestStatusEventsReachSink(t *testing.T) {
	var kinds []EventKind
	c := &Client{ID: "alice", sink: func(e Event) { kinds = append(kinds, e.Kind) }, logger: zerolog.Nop()}

	c.handleWhatsmeowEvent(&events.Connected{})
	c.handleWhatsmeowEvent(&events.Disconnected{})
	c.handleWhatsmeowEvent(&events.LoggedOut{})

	assert.Equal(t, []EventKind{EventConnected, EventDisconnected, EventLoggedOut}, kinds)
}

func TestClosedClientRejectsOperations(t *testing.T) {
	c := &Client{ID: "alice", sink: func(Event) {}, logger: zerolog.Nop()}
	require.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.Connect(t.Context()), ErrClosed)
	assert.False(t, c.IsConnected())
	_, err := c.Decrypt(t.Context(), &MediaMessage{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "qr", EventQR.String())
	assert.Equal(t, "media", EventMedia.String())
	assert.Equal(t, "unknown", EventKind(99).String())
}

func TestConnectDropsSocketWhenClosedMidway(t *testing.T) {
	c := &Client{ID: "alpha", logger: zerolog.Nop()}
	disconnected := false

	err := c.goLive(func() error {
		require.NoError(t, c.Close())
		return nil
	}, func() { disconnected = true })

	assert.ErrorIs(t, err, ErrClosed)
	assert.True(t, disconnected)
}

func TestConnectKeepsSocketWhenOpen(t *testing.T) {
	c := &Client{ID: "alpha", logger: zerolog.Nop()}
	disconnected := false

	err := c.goLive(func() error { return nil }, func() { disconnected = true })

	assert.NoError(t, err)
	assert.False(t, disconnected)
}

func TestConnectAfterCloseFails(t *testing.T) {
	c := &Client{ID: "alpha", logger: zerolog.Nop()}
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Connect(t.Context()), ErrClosed)
}
