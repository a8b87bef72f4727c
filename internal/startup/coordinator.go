// Package startup reopens every previously authenticated session at boot.
package startup

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/neekaru/whatsappgo-gateway/internal/apperror"
	"github.com/neekaru/whatsappgo-gateway/internal/session"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one session
type Result string

const (
	ResultStarted       Result = "started"
	ResultNoCredentials Result = "skipped-no-credentials"
	ResultFailed        Result = "failed"
)

// Outcome reports what happened to one discovered session
type Outcome struct {
	ID     string         `json:"session"`
	Result Result         `json:"result"`
	Status session.Status `json:"status,omitempty"`
	Reason string         `json:"reason,omitempty"`
	Kind   apperror.Kind  `json:"kind,omitempty"`
}

// Report aggregates a bulk startup
type Report struct {
	Disabled bool      `json:"disabled"`
	Outcomes []Outcome `json:"outcomes"`
}

// Count returns the number of outcomes with result r
func (r Report) Count(result Result) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Result == result {
			n++
		}
	}
	return n
}

// Manifest lists the sessions persisted on disk
type Manifest interface {
	Discover() ([]string, error)
	HasCredentials(sessionID string) bool
}

// Opener opens a session and waits for its connection attempt to resolve
type Opener interface {
	Open(ctx context.Context, id string, waitForQR bool) (session.State, error)
	AwaitSettled(ctx context.Context, id string) (session.State, error)
}

// Options configures a Coordinator
type Options struct {
	Enabled     bool
	Timeout     time.Duration
	Concurrency int
}

// Coordinator starts every eligible persisted session. One session failing
// or timing out never affects the others.
type Coordinator struct {
	manifest Manifest
	opener   Opener
	opts     Options
	logger   zerolog.Logger
}

// NewCoordinator creates a coordinator
func NewCoordinator(manifest Manifest, opener Opener, logger zerolog.Logger, opts Options) *Coordinator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Coordinator{manifest: manifest, opener: opener, opts: opts, logger: logger}
}

// StartAll dispatches every discovered session and reports per session. It
// never fails as a whole.
func (c *Coordinator) StartAll(ctx context.Context) Report {
	if !c.opts.Enabled {
		c.logger.Info().Msg("Bulk startup is disabled in config")
		return Report{Disabled: true}
	}
	return c.Run(ctx)
}

// Run is StartAll without the enabled check, used for manual re-runs
func (c *Coordinator) Run(ctx context.Context) Report {
	ids, err := c.manifest.Discover()
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to discover sessions")
		return Report{}
	}
	if len(ids) == 0 {
		c.logger.Info().Msg("No sessions found to start")
		return Report{}
	}
	c.logger.Info().Int("count", len(ids)).Msg("Found sessions to start")

	var (
		mu       sync.Mutex
		outcomes = make([]Outcome, 0, len(ids))
	)
	record := func(o Outcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
	}

	g := new(errgroup.Group)
	g.SetLimit(c.opts.Concurrency)
	for _, id := range ids {
		if !c.manifest.HasCredentials(id) {
			c.logger.Warn().Str("session", id).Msg("Session has no credentials, skipping")
			record(Outcome{ID: id, Result: ResultNoCredentials})
			continue
		}

		g.Go(func() error {
			record(c.start(ctx, id))
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].ID < outcomes[j].ID })
	report := Report{Outcomes: outcomes}
	c.logger.Info().
		Int("started", report.Count(ResultStarted)).
		Int("skipped", report.Count(ResultNoCredentials)).
		Int("failed", report.Count(ResultFailed)).
		Msg("Finished attempting to start all sessions")
	return report
}

func (c *Coordinator) start(parent context.Context, id string) (out Outcome) {
	out = Outcome{ID: id}
	log := c.logger.With().Str("session", id).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Session startup panicked")
			out.Result = ResultFailed
			out.Kind = apperror.KindInternal
			out.Reason = "startup panicked"
		}
	}()

	ctx, cancel := context.WithTimeout(parent, c.opts.Timeout)
	defer cancel()

	log.Info().Msg("Starting session")
	if _, err := c.opener.Open(ctx, id, false); err != nil {
		return failed(log, out, err)
	}
	st, err := c.opener.AwaitSettled(ctx, id)
	out.Status = st.Status
	if err != nil {
		return failed(log, out, err)
	}

	switch st.Status {
	case session.StatusConnected, session.StatusQRPending:
		log.Info().Str("status", string(st.Status)).Msg("Session started successfully")
		out.Result = ResultStarted
		if st.Status == session.StatusQRPending {
			out.Reason = "credentials rejected, waiting for QR scan"
		}
		return out
	case session.StatusClosed:
		return failed(log, out, apperror.New(apperror.KindStateConflict, "startup", id, "session closed during startup"))
	default:
		return failed(log, out, apperror.New(apperror.KindConnection, "startup", id, "connection failed: "+st.LastError))
	}
}

func failed(log zerolog.Logger, out Outcome, err error) Outcome {
	out.Result = ResultFailed
	out.Kind = apperror.KindOf(err)
	if errors.Is(err, context.DeadlineExceeded) {
		out.Kind = apperror.KindTimeout
	}
	out.Reason = err.Error()
	log.Error().Err(err).Str("kind", string(out.Kind)).Msg("Failed to start session")
	return out
}
