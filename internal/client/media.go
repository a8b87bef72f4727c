package client

import "time"

// MediaMessage is the metadata of an inbound message with downloadable media.
// Raw holds the serialized protocol message needed to download it again.
type MediaMessage struct {
	ID        string    `json:"id"`
	Chat      string    `json:"chat"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	// Type is one of image, video, audio, ptt, document or sticker
	Type     string `json:"type"`
	MimeType string `json:"mimetype"`
	Caption  string `json:"caption,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Raw      []byte `json:"raw"`
}

// HasMedia reports whether the message carries anything downloadable
func (m *MediaMessage) HasMedia() bool {
	return m != nil && m.Type != "" && len(m.Raw) > 0
}
