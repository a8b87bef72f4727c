package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/neekaru/whatsappgo-gateway/internal/apperror"
	"github.com/neekaru/whatsappgo-gateway/internal/client"
	bolt "go.etcd.io/bbolt"
)

const bucketPrefix = "session:"

// Index persists inbound media messages per session so they can be
// retrieved by message id later.
type Index struct {
	db *bolt.DB
}

// OpenIndex opens or creates the index database at path
func OpenIndex(path string) (*Index, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open media index %s: %w", path, err)
	}
	return &Index{db: db}, nil
}

func bucketName(sessionID string) []byte {
	return []byte(bucketPrefix + sessionID)
}

// Put stores msg under its id
func (i *Index) Put(sessionID string, msg *client.MediaMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal media message: %w", err)
	}
	return i.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName(sessionID))
		if err != nil {
			return err
		}
		return b.Put([]byte(msg.ID), data)
	})
}

// Get returns the message with id messageID
func (i *Index) Get(sessionID, messageID string) (*client.MediaMessage, error) {
	var msg *client.MediaMessage
	err := i.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(sessionID))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(messageID))
		if data == nil {
			return nil
		}
		msg = &client.MediaMessage{}
		return json.Unmarshal(data, msg)
	})
	if err != nil {
		return nil, apperror.Wrapf(apperror.KindInternal, "media", sessionID, err, "failed to read media index")
	}
	if msg == nil {
		return nil, apperror.New(apperror.KindNotFound, "media", sessionID, "message not found")
	}
	return msg, nil
}

// DeleteSession drops every message of a session
func (i *Index) DeleteSession(sessionID string) error {
	return i.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket(bucketName(sessionID))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

// Count returns the number of messages stored for a session
func (i *Index) Count(sessionID string) int {
	n := 0
	_ = i.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(bucketName(sessionID)); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n
}

// Close closes the database
func (i *Index) Close() error {
	return i.db.Close()
}
