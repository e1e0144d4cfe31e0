// Package watch monitors directories for workbooks dropped into them and
// hands each one to a split handler once it has stopped changing.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/klytics/drsplit/internal/logger"
)

// DefaultDebounce is the quiet period, in milliseconds, before a file is processed.
const DefaultDebounce = 500

// WatchConfig holds the complete watcher configuration.
type WatchConfig struct {
	Directories []string `json:"directories"`
	Recursive   bool     `json:"recursive"`
	Debounce    int      `json:"debounceMs"` // Milliseconds to wait before processing
	// Pattern filters base names, e.g. "drv_*.xlsx". Empty matches every .xlsx.
	Pattern string `json:"pattern,omitempty"`
	// SkipPrefixes lists base-name prefixes of files the handler itself
	// produces, so outputs are not split again.
	SkipPrefixes []string `json:"skipPrefixes,omitempty"`
	// Column and Mode are recorded for the status command.
	Column string `json:"column,omitempty"`
	Mode   string `json:"mode,omitempty"`
}

// Event represents a file event that was detected and processed.
type Event struct {
	Time      time.Time `json:"time"`
	Path      string    `json:"path"`
	Operation string    `json:"operation"`
	Status    string    `json:"status"` // "processed", "error", "skipped"
	Error     string    `json:"error,omitempty"`
}

// EventHandler is called once per settled workbook.
type EventHandler func(ctx context.Context, path string) error

// Watcher monitors directories for file changes and triggers the handler.
type Watcher struct {
	Config  WatchConfig
	Log     *logger.Logger
	Handler EventHandler
	// OnEvent, when set, observes every recorded event.
	OnEvent func(Event)

	mu       sync.Mutex
	events   []Event
	watcher  *fsnotify.Watcher
	debounce map[string]*time.Timer
	inflight sync.WaitGroup
	started  time.Time
}

// Status represents the current watcher status.
type Status struct {
	Running     bool     `json:"running"`
	Directories []string `json:"directories"`
	EventCount  int      `json:"eventCount"`
	StartedAt   string   `json:"startedAt,omitempty"`
}

// New creates a new Watcher with the given configuration.
func New(config WatchConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not create file watcher: %w", err)
	}

	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}

	return &Watcher{
		Config:   config,
		watcher:  fsw,
		debounce: make(map[string]*time.Timer),
	}, nil
}

// Start begins watching the configured directories. It blocks until the
// context is cancelled, then waits for in-flight handlers to return.
func (w *Watcher) Start(ctx context.Context) error {
	log := logger.OrNop(w.Log)

	for _, dir := range w.Config.Directories {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("could not resolve %s: %w", dir, err)
		}

		if w.Config.Recursive {
			if err := w.addRecursive(absDir); err != nil {
				return err
			}
		} else {
			if err := w.watcher.Add(absDir); err != nil {
				return fmt.Errorf("could not watch %s: %w", absDir, err)
			}
		}
	}

	w.mu.Lock()
	w.started = time.Now()
	w.mu.Unlock()
	log.Info().Strs("directories", w.Config.Directories).Int("debounce_ms", w.Config.Debounce).Msg("watching")

	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping watcher")
			w.stopTimers()
			w.inflight.Wait()
			return w.watcher.Close()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(handlerCtx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("watch error")
		}
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if info.IsDir() {
			// Skip hidden directories
			if strings.HasPrefix(filepath.Base(path), ".") && path != dir {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if w.Config.Recursive && event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
			return
		}
	}

	// Only process create and write events
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	path := event.Name
	if !w.Matches(path) {
		return
	}

	// Debounce: Excel and copy tools write in several bursts
	op := event.Op.String()
	w.schedule(path, func() { w.processFile(ctx, path, op) })
}

// schedule runs fire once path has been quiet for the debounce interval,
// replacing any pending timer for the same path.
func (w *Watcher) schedule(path string, fire func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.debounce[path]; ok && timer.Stop() {
		w.inflight.Done()
	}
	w.inflight.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(time.Duration(w.Config.Debounce)*time.Millisecond, func() {
		defer w.inflight.Done()
		w.mu.Lock()
		// A newer timer may already own the entry if this one fired late.
		if w.debounce[path] == timer {
			delete(w.debounce, path)
		}
		w.mu.Unlock()
		fire()
	})
	w.debounce[path] = timer
}

// stopTimers cancels pending debounced files.
func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.debounce {
		if timer.Stop() {
			w.inflight.Done()
		}
		delete(w.debounce, path)
	}
}

// Matches reports whether path is a workbook the watcher should split.
func (w *Watcher) Matches(path string) bool {
	base := filepath.Base(path)
	if !strings.EqualFold(filepath.Ext(base), ".xlsx") {
		return false
	}

	// Skip temp and lock files
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".") {
		return false
	}

	for _, p := range w.Config.SkipPrefixes {
		if p != "" && strings.HasPrefix(base, p) {
			return false
		}
	}

	if w.Config.Pattern != "" {
		matched, _ := filepath.Match(w.Config.Pattern, base)
		return matched
	}
	return true
}

func (w *Watcher) processFile(ctx context.Context, path, operation string) {
	log := logger.OrNop(w.Log)
	evt := Event{Time: time.Now(), Path: path, Operation: operation}

	if _, err := os.Stat(path); err != nil {
		// Renamed or deleted before it settled
		evt.Status = "skipped"
		w.record(evt)
		return
	}

	switch {
	case w.Handler == nil:
		evt.Status = "skipped"
	default:
		if err := w.Handler(ctx, path); err != nil {
			evt.Status = "error"
			evt.Error = err.Error()
			log.Error().Err(err).Str("path", path).Msg("could not split")
		} else {
			evt.Status = "processed"
			log.Info().Str("path", path).Msg("processed")
		}
	}
	w.record(evt)
}

func (w *Watcher) record(evt Event) {
	w.mu.Lock()
	w.events = append(w.events, evt)
	w.mu.Unlock()
	if w.OnEvent != nil {
		w.OnEvent(evt)
	}
}

// GetStatus returns the current watcher status.
func (w *Watcher) GetStatus() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := Status{
		Running:     !w.started.IsZero(),
		Directories: w.Config.Directories,
		EventCount:  len(w.events),
	}
	if !w.started.IsZero() {
		s.StartedAt = w.started.Format(time.RFC3339)
	}
	return s
}

// GetEvents returns all recorded events.
func (w *Watcher) GetEvents() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	events := make([]Event, len(w.events))
	copy(events, w.events)
	return events
}

const pidFile = "watch.pid"

// WritePIDFile writes the current process ID to the PID file in the given directory.
func WritePIDFile(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(dir, pidFile)
	return os.WriteFile(path, []byte(fmt.Sprintf("%d", os.Getpid())), 0644)
}

// ReadPIDFile reads the PID from the PID file.
func ReadPIDFile(dir string) (int, error) {
	path := filepath.Join(dir, pidFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, fmt.Errorf("invalid PID file: %w", err)
	}
	return pid, nil
}

// RemovePIDFile removes the PID file.
func RemovePIDFile(dir string) error {
	return os.Remove(filepath.Join(dir, pidFile))
}

// SaveConfig writes the watcher config to a JSON file.
func SaveConfig(dir string, config WatchConfig) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "watch-config.json"), data, 0644)
}

// LoadConfig reads the watcher config from a JSON file.
func LoadConfig(dir string) (*WatchConfig, error) {
	data, err := os.ReadFile(filepath.Join(dir, "watch-config.json"))
	if err != nil {
		return nil, err
	}
	var config WatchConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("invalid watch config: %w", err)
	}
	return &config, nil
}

// DefaultStateDir returns the directory holding the PID and config files.
func DefaultStateDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".drsplit")
}
