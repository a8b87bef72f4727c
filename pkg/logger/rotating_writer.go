package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// DailyFile appends to one log file per calendar day, named
// <prefix>-YYYY-MM-DD.log, and prunes files older than keepDays.
type DailyFile struct {
	dir      string
	prefix   string
	keepDays int
	now      func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
}

// OpenDailyFile opens today's file under dir. keepDays <= 0 keeps every file.
func OpenDailyFile(dir, prefix string, keepDays int) (*DailyFile, error) {
	d := &DailyFile{dir: dir, prefix: prefix, keepDays: keepDays, now: time.Now}
	if err := d.roll(); err != nil {
		return nil, err
	}
	return d, nil
}

// NameFor returns the file name used on day
func (d *DailyFile) NameFor(day time.Time) string {
	return d.prefix + "-" + day.Format(time.DateOnly) + ".log"
}

// Path returns the file currently written to
func (d *DailyFile) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return ""
	}
	return d.file.Name()
}

func (d *DailyFile) roll() error {
	now := d.now()
	day := now.Format(time.DateOnly)
	if d.file != nil && day == d.day {
		return nil
	}

	f, err := os.OpenFile(filepath.Join(d.dir, d.NameFor(now)), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if d.file != nil {
		_ = d.file.Close()
	}
	d.file, d.day = f, day
	d.prune(now)
	return nil
}

// prune removes files of this prefix dated before the retention window
func (d *DailyFile) prune(now time.Time) {
	if d.keepDays <= 0 {
		return
	}
	matches, err := filepath.Glob(filepath.Join(d.dir, d.prefix+"-*.log"))
	if err != nil {
		return
	}
	sort.Strings(matches)
	cutoff := now.AddDate(0, 0, -d.keepDays).Format(time.DateOnly)
	for _, m := range matches {
		stamp := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), d.prefix+"-"), ".log")
		if _, err := time.Parse(time.DateOnly, stamp); err != nil {
			continue
		}
		if stamp < cutoff {
			_ = os.Remove(m)
		}
	}
}

// Write implements io.Writer
func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.roll(); err != nil {
		return 0, err
	}
	return d.file.Write(p)
}

// Close closes the current file
func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}
