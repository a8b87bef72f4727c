package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPrefix names the daily log files
const DefaultPrefix = "whatsapp-gateway"

// Options controls where and how verbosely the gateway logs
type Options struct {
	Dir      string
	Prefix   string
	KeepDays int
	Level    string
	Console  bool
}

// activeFile is closed by CloseLogger
var activeFile *DailyFile

// SetupLogging configures the application logger writing to the console and
// to a daily rotating file under opts.Dir.
func SetupLogging(opts Options) (zerolog.Logger, error) {
	level := ParseLevel(opts.Level)
	zerolog.TimeFieldFormat = time.RFC3339

	if opts.Dir == "" {
		opts.Dir = "logs"
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return zerolog.Nop(), fmt.Errorf("failed to create logs directory: %w", err)
	}

	fileWriter, err := OpenDailyFile(opts.Dir, opts.Prefix, opts.KeepDays)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("failed to create log writer: %w", err)
	}
	activeFile = fileWriter

	writers := []io.Writer{fileWriter}
	if opts.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime})
	}

	log := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	log.Info().Str("path", fileWriter.Path()).Int("keep_days", opts.KeepDays).Msg("Logging initialized")
	return log, nil
}

// SetupFallbackLogger creates a console-only logger when file logging fails
func SetupFallbackLogger() zerolog.Logger {
	fmt.Printf("Failed to set up file logging, using console logging only\n")
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}).
		With().
		Timestamp().
		Logger()
}

// ParseLevel parses a level name, defaulting to info
func ParseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return parsed
}

// Component returns a child logger tagged with the component name
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// CloseLogger properly closes the log file
func CloseLogger() error {
	if activeFile != nil {
		err := activeFile.Close()
		activeFile = nil
		return err
	}
	return nil
}
