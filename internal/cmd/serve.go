package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neekaru/whatsappgo-gateway/internal/app"
	"github.com/neekaru/whatsappgo-gateway/internal/server"
	"github.com/neekaru/whatsappgo-gateway/pkg/logger"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP control API (default)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logger.SetupLogging(logger.Options{
		Dir:      cfg.Log.Dir,
		KeepDays: cfg.Log.KeepDays,
		Level:    cfg.Log.Level,
		Console:  cfg.Log.Console,
	})
	if err != nil {
		log = logger.SetupFallbackLogger()
		log.Warn().Err(err).Msg("Failed to set up file logging, using console only")
	}
	defer func() {
		if err := logger.CloseLogger(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
	}()

	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if cfg.Server.SecretKey == "" {
		log.Warn().Msg("server.secret_key is empty, administrative endpoints are disabled")
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	a.Start()

	srv := server.NewServer(a, cfg)
	if err := srv.Start(); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startupDone := make(chan struct{})
	go func() {
		defer close(startupDone)
		a.StartAll(ctx)
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	select {
	case <-startupDone:
	case <-shutdownCtx.Done():
	}
	if err := a.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		log.Error().Err(err).Msg("Shutdown finished with errors")
		return err
	}
	log.Info().Msg("Gateway stopped")
	return nil
}
