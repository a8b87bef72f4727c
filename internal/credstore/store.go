// Package credstore lays out per-session credential directories.
//
// Every session owns <root>/<sessionID>/. The whatsmeow device database lives
// in session.db and session.data.json marks a session that has completed
// pairing at least once, which makes it eligible for bulk startup.
package credstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"
)

const (
	// DBFile is the whatsmeow device database inside a session directory
	DBFile = "session.db"
	// MarkerFile signals a session with usable credentials
	MarkerFile = "session.data.json"
)

// Marker is the content of MarkerFile
type Marker struct {
	SessionID       string    `json:"session_id"`
	JID             string    `json:"jid"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
}

// Store manages credential directories on a filesystem
type Store struct {
	fs   afero.Fs
	root string
}

// New creates a store rooted at root on fs
func New(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, root: root}
}

// NewOS creates a store on the operating system filesystem
func NewOS(root string) *Store {
	return New(afero.NewOsFs(), root)
}

// Root returns the directory holding all session directories
func (s *Store) Root() string {
	return s.root
}

// Dir returns the credential directory of a session
func (s *Store) Dir(sessionID string) string {
	return filepath.Join(s.root, sessionID)
}

// DBPath returns the path of the device database of a session
func (s *Store) DBPath(sessionID string) string {
	return filepath.Join(s.Dir(sessionID), DBFile)
}

// EnsureDir creates the credential directory of a session
func (s *Store) EnsureDir(sessionID string) error {
	if err := s.fs.MkdirAll(s.Dir(sessionID), 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	return nil
}

// Discover lists the session ids that have a directory under the root. A
// missing root is created and yields no sessions.
func (s *Store) Discover() ([]string, error) {
	exists, err := afero.DirExists(s.fs, s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", s.root, err)
	}
	if !exists {
		if err := s.fs.MkdirAll(s.root, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", s.root, err)
		}
		return nil, nil
	}

	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.root, err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// HasCredentials reports whether a session has completed pairing before
func (s *Store) HasCredentials(sessionID string) bool {
	ok, err := afero.Exists(s.fs, filepath.Join(s.Dir(sessionID), MarkerFile))
	return err == nil && ok
}

// MarkAuthenticated writes the eligibility marker of a session
func (s *Store) MarkAuthenticated(sessionID, jid string) error {
	if err := s.EnsureDir(sessionID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(Marker{
		SessionID:       sessionID,
		JID:             jid,
		AuthenticatedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(s.fs, filepath.Join(s.Dir(sessionID), MarkerFile), data, 0o600)
}

// ReadMarker returns the eligibility marker of a session
func (s *Store) ReadMarker(sessionID string) (*Marker, error) {
	data, err := afero.ReadFile(s.fs, filepath.Join(s.Dir(sessionID), MarkerFile))
	if err != nil {
		return nil, err
	}
	var marker Marker
	if err := json.Unmarshal(data, &marker); err != nil {
		return nil, fmt.Errorf("corrupt marker for %s: %w", sessionID, err)
	}
	return &marker, nil
}

// Unmark removes the eligibility marker and keeps the rest of the session
// directory. A missing marker is not an error.
func (s *Store) Unmark(sessionID string) error {
	err := s.fs.Remove(filepath.Join(s.Dir(sessionID), MarkerFile))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Purge deletes every persisted credential of a session. Purging a session
// without a directory is not an error.
func (s *Store) Purge(sessionID string) error {
	dir := s.Dir(sessionID)
	if _, err := s.fs.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := s.fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete %s: %w", dir, err)
	}
	return nil
}
