package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyFileRollsOverAtMidnight(t *testing.T) {
	dir := t.TempDir()
	d, err := OpenDailyFile(dir, "test", 0)
	require.NoError(t, err)
	defer d.Close()

	day1 := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	d.now = func() time.Time { return day1 }
	_, err = d.Write([]byte("first\n"))
	require.NoError(t, err)

	day2 := day1.Add(2 * time.Minute)
	d.now = func() time.Time { return day2 }
	_, err = d.Write([]byte("second\n"))
	require.NoError(t, err)

	first, err := os.ReadFile(filepath.Join(dir, "test-2026-03-01.log"))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, "test-2026-03-02.log"))
	require.NoError(t, err)

	assert.Equal(t, "first\n", string(first))
	assert.Equal(t, "second\n", string(second))
	assert.Equal(t, filepath.Join(dir, "test-2026-03-02.log"), d.Path())
}

func TestDailyFilePrunesExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"test-2026-02-01.log", "test-2026-02-27.log", "other-2026-01-01.log", "test-notes.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	d := &DailyFile{dir: dir, prefix: "test", keepDays: 3, now: func() time.Time {
		return time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	}}
	defer d.Close()
	_, err := d.Write([]byte("hello\n"))
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(dir, "test-2026-02-01.log"))
	assert.FileExists(t, filepath.Join(dir, "test-2026-02-27.log"))
	assert.FileExists(t, filepath.Join(dir, "other-2026-01-01.log"))
	assert.FileExists(t, filepath.Join(dir, "test-notes.log"))
	assert.FileExists(t, filepath.Join(dir, "test-2026-03-02.log"))
}

func TestSetupLoggingWritesFile(t *testing.T) {
	dir := t.TempDir()
	log, err := SetupLogging(Options{Dir: dir, Prefix: "gw", Level: "debug"})
	require.NoError(t, err)
	defer CloseLogger()

	log.Debug().Str("session", "alice").Msg("hello")

	data, err := os.ReadFile(filepath.Join(dir, "gw-"+time.Now().Format(time.DateOnly)+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"session":"alice"`)
	assert.Contains(t, string(data), `"message":"hello"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}
