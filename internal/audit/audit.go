// Package audit keeps an append-only JSONL log of split runs.
package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry represents one split run.
type Entry struct {
	RunID      string    `json:"run_id"`
	Timestamp  time.Time `json:"timestamp"`
	Machine    string    `json:"machine"`
	Command    string    `json:"command"`
	Input      string    `json:"input,omitempty"`
	Sheet      string    `json:"sheet,omitempty"`
	Column     string    `json:"column"`
	Mode       string    `json:"mode"`
	Normalize  bool      `json:"normalize"`
	Groups     int       `json:"groups"`
	Rows       int       `json:"rows"`
	Output     string    `json:"output,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
}

// Failed reports whether the run ended in an error.
func (e Entry) Failed() bool { return e.Error != "" }

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// Logger appends run entries to a file.
type Logger struct {
	FilePath string
	Enabled  bool
}

// NewLogger creates a Logger. A disabled logger writes nothing.
func NewLogger(filePath string, enabled bool) *Logger {
	return &Logger{FilePath: filePath, Enabled: enabled}
}

// Log writes a single entry, filling RunID, Timestamp and Machine when
// unset. Best-effort: a run never fails because its log line could not be
// written.
func (l *Logger) Log(_ context.Context, entry Entry) error {
	if l == nil || !l.Enabled || l.FilePath == "" {
		return nil
	}
	if entry.RunID == "" {
		entry.RunID = NewRunID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Machine == "" {
		entry.Machine, _ = os.Hostname()
	}

	// Ensure parent directory exists
	dir := filepath.Dir(l.FilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil
	}

	f, err := os.OpenFile(l.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return nil
	}
	data = append(data, '\n')
	_, _ = f.Write(data)
	return nil
}

// ReadEntries reads all entries from the log file.
func ReadEntries(filePath string) ([]Entry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue // skip malformed lines
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Filter selects entries for listing.
type Filter struct {
	Since, Until time.Time
	// Input matches a substring of the input path.
	Input      string
	FailedOnly bool
}

// FilterEntries returns entries matching f.
func FilterEntries(entries []Entry, f Filter) []Entry {
	var result []Entry
	for _, e := range entries {
		if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
			continue
		}
		if f.Input != "" && !strings.Contains(e.Input, f.Input) {
			continue
		}
		if f.FailedOnly && !e.Failed() {
			continue
		}
		result = append(result, e)
	}
	return result
}

// LogSize returns the size of the log in bytes, or 0 if not found.
func LogSize(filePath string) int64 {
	info, err := os.Stat(filePath)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Clear truncates the log file.
func Clear(filePath string) error {
	if err := os.Truncate(filePath, 0); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
