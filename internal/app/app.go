// Package app wires the gateway's components together and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/neekaru/whatsappgo-gateway/internal/auth"
	"github.com/neekaru/whatsappgo-gateway/internal/client"
	"github.com/neekaru/whatsappgo-gateway/internal/config"
	"github.com/neekaru/whatsappgo-gateway/internal/contact"
	"github.com/neekaru/whatsappgo-gateway/internal/credstore"
	"github.com/neekaru/whatsappgo-gateway/internal/media"
	"github.com/neekaru/whatsappgo-gateway/internal/notify"
	"github.com/neekaru/whatsappgo-gateway/internal/session"
	"github.com/neekaru/whatsappgo-gateway/internal/startup"
	"github.com/neekaru/whatsappgo-gateway/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// App holds the gateway's long-lived components
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	StartTime time.Time

	Credentials *credstore.Store
	Sessions    *session.Manager
	Notifier    *notify.Notifier
	Broadcaster *notify.Broadcaster
	MediaIndex  *media.Index
	Media       *media.Service
	Contacts    *contact.Service
	Startup     *startup.Coordinator
}

type options struct {
	dialer client.Dialer
	fs     afero.Fs
}

// Option customizes New
type Option func(*options)

// WithDialer replaces the whatsmeow dialer
func WithDialer(d client.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithFs replaces the filesystem holding credentials and cached media
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// New creates every component from cfg
func New(cfg *config.Config, log zerolog.Logger, opts ...Option) (*App, error) {
	o := options{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(&o)
	}

	creds := credstore.New(o.fs, cfg.DataDir)
	if o.dialer == nil {
		o.dialer = client.NewWhatsmeowDialer(creds, logger.Component(log, "whatsmeow"))
	}

	notifier := notify.New(logger.Component(log, "notify"), cfg.Notify.Workers, cfg.Notify.QueueSize)
	broadcaster := notify.NewBroadcaster(logger.Component(log, "broadcast"), originChecker(cfg.Server.CorsOrigins))
	notifier.Register("log", notify.NewLoggingObserver(logger.Component(log, "events")))
	notifier.Register("live", broadcaster)
	if cfg.Webhook.URL != "" {
		kinds := make([]notify.Kind, 0, len(cfg.Webhook.Events))
		for _, k := range cfg.Webhook.Events {
			kinds = append(kinds, notify.Kind(k))
		}
		sink := notify.NewWebhookSink(cfg.Webhook.URL, cfg.Webhook.Timeout)
		notifier.Register("webhook", notify.NewFilteredObserver(sink, kinds...))
		log.Info().Str("url", cfg.Webhook.URL).Int("filters", len(kinds)).Msg("Webhook delivery enabled")
	}

	manager := session.NewManager(session.NewRegistry(), o.dialer, creds, notifier, logger.Component(log, "session"), session.Options{
		QRWaitTimeout:  cfg.Session.QRWaitTimeout,
		ConnectTimeout: cfg.Session.ConnectTimeout,
		SecretKey:      cfg.Server.SecretKey,
		RenderQR:       auth.RenderQRDataURL,
	})

	if err := os.MkdirAll(filepath.Dir(cfg.Media.IndexPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media index directory: %w", err)
	}
	index, err := media.OpenIndex(cfg.Media.IndexPath)
	if err != nil {
		return nil, err
	}
	mediaService := media.NewService(index, manager, o.fs, cfg.Media.Dir, logger.Component(log, "media"))
	manager.SetMediaRecorder(mediaService)

	coordinator := startup.NewCoordinator(creds, manager, logger.Component(log, "startup"), startup.Options{
		Enabled:     cfg.Startup.Enabled,
		Timeout:     cfg.Startup.Timeout,
		Concurrency: cfg.Startup.Concurrency,
	})

	return &App{
		Config:      cfg,
		Logger:      log,
		StartTime:   time.Now(),
		Credentials: creds,
		Sessions:    manager,
		Notifier:    notifier,
		Broadcaster: broadcaster,
		MediaIndex:  index,
		Media:       mediaService,
		Contacts:    contact.NewService(manager, logger.Component(log, "contact")),
		Startup:     coordinator,
	}, nil
}

// Start begins event delivery
func (a *App) Start() {
	a.Notifier.Start()
}

// StartAll reopens every persisted session
func (a *App) StartAll(ctx context.Context) startup.Report {
	return a.Startup.StartAll(ctx)
}

// Shutdown closes every session and flushes pending events
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.Sessions.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("sessions: %w", err))
	}
	if err := a.Notifier.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("notifier: %w", err))
	}
	a.Broadcaster.Close()
	if err := a.MediaIndex.Close(); err != nil {
		errs = append(errs, fmt.Errorf("media index: %w", err))
	}
	return errors.Join(errs...)
}

// originChecker admits live listeners from the configured CORS origins.
// Without configured origins any origin is accepted.
func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}
