package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Observer is the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event Event) error
}

// ObserverFunc is a function that implements the Observer interface
type ObserverFunc func(ctx context.Context, event Event) error

// OnEvent calls the observer function
func (f ObserverFunc) OnEvent(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// FilteredObserver is an observer that only receives events of the given kinds
type FilteredObserver struct {
	Kinds    map[Kind]bool
	Observer Observer
}

// NewFilteredObserver creates a new filtered observer. With no kinds every
// event passes.
func NewFilteredObserver(observer Observer, kinds ...Kind) *FilteredObserver {
	f := &FilteredObserver{Observer: observer}
	if len(kinds) > 0 {
		f.Kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			f.Kinds[k] = true
		}
	}
	return f
}

// OnEvent calls the underlying observer if the event kind matches
func (f *FilteredObserver) OnEvent(ctx context.Context, event Event) error {
	if f.Kinds != nil && !f.Kinds[event.Kind] {
		return nil
	}
	return f.Observer.OnEvent(ctx, event)
}

// SessionFilteredObserver is an observer that only receives events for a specific session
type SessionFilteredObserver struct {
	SessionID string
	Observer  Observer
}

// NewSessionFilteredObserver creates a new session-filtered observer
func NewSessionFilteredObserver(sessionID string, observer Observer) *SessionFilteredObserver {
	return &SessionFilteredObserver{
		SessionID: sessionID,
		Observer:  observer,
	}
}

// OnEvent calls the underlying observer if the session id matches
func (f *SessionFilteredObserver) OnEvent(ctx context.Context, event Event) error {
	if event.SessionID == f.SessionID {
		return f.Observer.OnEvent(ctx, event)
	}
	return nil
}

// LoggingObserver is a simple observer that logs events
type LoggingObserver struct {
	logger zerolog.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger zerolog.Logger) *LoggingObserver {
	return &LoggingObserver{logger: logger}
}

// OnEvent logs the event
func (o *LoggingObserver) OnEvent(_ context.Context, event Event) error {
	o.logger.Info().
		Str("session", event.SessionID).
		Str("event", string(event.Kind)).
		Bool("connected", event.Connected).
		Msg("Session event")
	return nil
}
