package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/neekaru/whatsappgo-gateway/internal/apperror"
	"github.com/neekaru/whatsappgo-gateway/internal/client"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Lender lends the connection of a connected session
type Lender interface {
	WithConnection(id string, fn func(client.Connection) error) error
}

// Strategy is one way of obtaining the bytes of a media message
type Strategy struct {
	Name string
	// FailureKind labels failures of this strategy in logs and errors
	FailureKind string
	Fetch       func(ctx context.Context, conn client.Connection, msg *client.MediaMessage) ([]byte, error)
}

// StrategyError is the failure of a single strategy
type StrategyError struct {
	Strategy    string
	FailureKind string
	Err         error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Strategy, e.FailureKind, e.Err)
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}

// DefaultStrategies decrypts in place first and falls back to a raw download
func DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Name:        "decrypt",
			FailureKind: "decrypt_failed",
			Fetch: func(ctx context.Context, conn client.Connection, msg *client.MediaMessage) ([]byte, error) {
				return conn.Decrypt(ctx, msg)
			},
		},
		{
			Name:        "download",
			FailureKind: "download_failed",
			Fetch: func(ctx context.Context, conn client.Connection, msg *client.MediaMessage) ([]byte, error) {
				return conn.Download(ctx, msg)
			},
		},
	}
}

// Artifact is retrieved media
type Artifact struct {
	Data     []byte
	MimeType string
	Path     string
	Cached   bool
}

// Resolved is retrieved media encoded for the control API
type Resolved struct {
	Base64   string `json:"base64"`
	MimeType string `json:"mimetype"`
	Path     string `json:"path,omitempty"`
}

// Service retrieves the media of recorded messages and caches it on disk
type Service struct {
	index      *Index
	lender     Lender
	fs         afero.Fs
	dir        string
	strategies []Strategy
	logger     zerolog.Logger
}

// NewService creates a media service caching under dir on fs
func NewService(index *Index, lender Lender, fs afero.Fs, dir string, logger zerolog.Logger) *Service {
	return &Service{
		index:      index,
		lender:     lender,
		fs:         fs,
		dir:        dir,
		strategies: DefaultStrategies(),
		logger:     logger,
	}
}

// WithStrategies replaces the ordered strategy list
func (s *Service) WithStrategies(strategies ...Strategy) *Service {
	s.strategies = strategies
	return s
}

// Record stores an inbound media message
func (s *Service) Record(sessionID string, msg *client.MediaMessage) error {
	if !msg.HasMedia() {
		return nil
	}
	if err := s.index.Put(sessionID, msg); err != nil {
		return err
	}
	s.logger.Debug().Str("session", sessionID).Str("message", msg.ID).Str("type", msg.Type).Msg("Recorded media message")
	return nil
}

// Forget drops the recorded messages and cached files of a session
func (s *Service) Forget(sessionID string) error {
	if err := s.index.DeleteSession(sessionID); err != nil {
		return err
	}
	return s.fs.RemoveAll(filepath.Join(s.dir, sessionID))
}

// CachePath returns where the media of msg is materialized
func (s *Service) CachePath(sessionID string, msg *client.MediaMessage) string {
	var ts int64
	if !msg.Timestamp.IsZero() {
		ts = msg.Timestamp.Unix()
	}
	name := "file" + strconv.FormatInt(ts, 10) + "-" + sanitize(msg.ID) + extensionFor(msg)
	return filepath.Join(s.dir, sessionID, name)
}

// Fetch returns the media of a recorded message. A previously materialized
// file is served without contacting the network. Otherwise each strategy
// is tried in order; when all fail a single connection error is returned.
func (s *Service) Fetch(ctx context.Context, sessionID, messageID string) (Artifact, error) {
	msg, err := s.index.Get(sessionID, messageID)
	if err != nil {
		return Artifact{}, err
	}
	if !msg.HasMedia() {
		return Artifact{}, apperror.New(apperror.KindInvalid, "media", sessionID, "message does not contain media")
	}

	log := s.logger.With().Str("session", sessionID).Str("message", messageID).Logger()
	path := s.CachePath(sessionID, msg)
	if data, err := afero.ReadFile(s.fs, path); err == nil {
		log.Debug().Str("path", path).Msg("Serving cached media")
		return Artifact{Data: data, MimeType: mimeOf(msg, data), Path: path, Cached: true}, nil
	}

	var data []byte
	err = s.lender.WithConnection(sessionID, func(conn client.Connection) error {
		var errs []error
		for _, st := range s.strategies {
			out, err := st.Fetch(ctx, conn, msg)
			if err == nil {
				data = out
				return nil
			}
			serr := &StrategyError{Strategy: st.Name, FailureKind: st.FailureKind, Err: err}
			log.Warn().Err(err).Str("strategy", st.Name).Str("failure", st.FailureKind).Msg("Media strategy failed")
			errs = append(errs, serr)
		}
		return apperror.Wrapf(apperror.KindConnection, "media", sessionID, errors.Join(errs...), "could not retrieve media")
	})
	if err != nil {
		return Artifact{}, err
	}

	art := Artifact{Data: data, MimeType: mimeOf(msg, data), Path: path}
	if err := s.persist(path, data); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to cache media")
		art.Path = ""
	}
	return art, nil
}

// Resolve fetches media and encodes it for the control API
func (s *Service) Resolve(ctx context.Context, sessionID, messageID string) (Resolved, error) {
	art, err := s.Fetch(ctx, sessionID, messageID)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{
		Base64:   base64.StdEncoding.EncodeToString(art.Data),
		MimeType: art.MimeType,
		Path:     art.Path,
	}, nil
}

func (s *Service) persist(path string, data []byte) error {
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, path, data, 0o644)
}

func extensionFor(msg *client.MediaMessage) string {
	if msg.Type == "ptt" {
		return ".oga"
	}
	base, _, _ := strings.Cut(msg.MimeType, ";")
	if m := mimetype.Lookup(strings.TrimSpace(base)); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	if ext := filepath.Ext(msg.FileName); ext != "" {
		return ext
	}
	return ".bin"
}

func mimeOf(msg *client.MediaMessage, data []byte) string {
	if msg.MimeType != "" {
		return msg.MimeType
	}
	return mimetype.Detect(data).String()
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
