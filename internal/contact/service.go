// Package contact subscribes sessions to the presence of their contacts.
package contact

import (
	"context"

	"github.com/neekaru/whatsappgo-gateway/internal/apperror"
	"github.com/neekaru/whatsappgo-gateway/internal/client"
	"github.com/rs/zerolog"
)

// Lender lends the connection of a connected session
type Lender interface {
	WithConnection(id string, fn func(client.Connection) error) error
}

// Service handles presence subscriptions
type Service struct {
	sessions Lender
	logger   zerolog.Logger
}

// NewService creates a new contact service
func NewService(sessions Lender, logger zerolog.Logger) *Service {
	return &Service{sessions: sessions, logger: logger}
}

// SubscribePresence subscribes a session to presence updates of targets, or
// of every contact (every joined group with isGroup) when all is set. It
// returns the number of subscribed JIDs.
func (s *Service) SubscribePresence(ctx context.Context, sessionID string, targets []string, isGroup, all bool) (int, error) {
	if !all && len(targets) == 0 {
		return 0, apperror.New(apperror.KindInvalid, "presence", sessionID, "phone is required unless all is set")
	}

	count := 0
	err := s.sessions.WithConnection(sessionID, func(conn client.Connection) error {
		jids, err := s.resolve(ctx, conn, targets, isGroup, all)
		if err != nil {
			return apperror.Wrapf(apperror.KindConnection, "presence", sessionID, err, "failed to list targets")
		}
		for _, jid := range jids {
			if err := conn.SubscribePresence(ctx, jid); err != nil {
				return apperror.Wrapf(apperror.KindConnection, "presence", sessionID, err, "failed to subscribe to %s", jid)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return count, err
	}

	s.logger.Info().
		Str("session", sessionID).
		Int("count", count).
		Bool("group", isGroup).
		Bool("all", all).
		Msg("Subscribe presence executed")
	return count, nil
}

func (s *Service) resolve(ctx context.Context, conn client.Connection, targets []string, isGroup, all bool) ([]string, error) {
	if all {
		if isGroup {
			return conn.GroupJIDs(ctx)
		}
		return conn.ContactJIDs(ctx)
	}
	jids := make([]string, 0, len(targets))
	for _, t := range targets {
		jids = append(jids, client.NormalizeJID(t, isGroup))
	}
	return jids, nil
}
