// Package progress provides terminal progress bars and spinners for long
// workbook reads and group rendering.
// All output goes to stderr to avoid polluting stdout/pipes.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Bar renders an ASCII progress bar, one step per rendered group.
type Bar struct {
	Total   int
	Current int
	Label   string
	Width   int
	Enabled bool
	// Out defaults to stderr.
	Out io.Writer

	mu sync.Mutex
}

// New creates a progress bar.
// Automatically disabled if not a TTY, if --json is set, or DRSPLIT_NO_PROGRESS=1.
func New(label string, total int) *Bar {
	return &Bar{
		Total:   total,
		Label:   label,
		Width:   30,
		Enabled: shouldEnable(),
	}
}

// SetTotal fixes the number of steps once it is known, e.g. after grouping.
func (b *Bar) SetTotal(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Total = n
	if b.Current > n {
		b.Current = n
	}
}

// Increment advances the bar by 1 and redraws.
func (b *Bar) Increment(status string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Current++
	if b.Current > b.Total {
		b.Current = b.Total
	}
	b.render(status)
}

// Set sets the bar to a specific value.
func (b *Bar) Set(n int, status string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Current = n
	if b.Current > b.Total {
		b.Current = b.Total
	}
	b.render(status)
}

// Step matches the splitter's per-group callback.
func (b *Bar) Step(done, total int, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Total = total
	b.Current = min(done, total)
	b.render(name)
}

// Finish prints a final completion line.
func (b *Bar) Finish(summary string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.Enabled {
		return
	}
	fmt.Fprintf(b.out(), "\r\033[K✓ %s\n", summary)
}

func (b *Bar) out() io.Writer {
	if b.Out == nil {
		return os.Stderr
	}
	return b.Out
}

func (b *Bar) render(status string) {
	if !b.Enabled {
		return
	}

	pct := 0.0
	if b.Total > 0 {
		pct = float64(b.Current) / float64(b.Total)
	}

	filled := min(int(pct*float64(b.Width)), b.Width)

	bar := strings.Repeat("=", filled) + strings.Repeat(" ", b.Width-filled)
	fmt.Fprintf(b.out(), "\r\033[K%s [%s] %d/%d  %s",
		b.Label, bar, b.Current, b.Total, status)
}

// Pct returns the current percentage (0-100) of the bar.
func (b *Bar) Pct() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Total == 0 {
		return 0
	}
	return float64(b.Current) / float64(b.Total) * 100
}

// Spinner shows a spinner for operations where total is unknown, such as
// parsing the source workbook.
type Spinner struct {
	Label   string
	Enabled bool

	mu      sync.Mutex
	done    chan struct{}
	stopped bool
}

// NewSpinner creates a spinner.
func NewSpinner(label string) *Spinner {
	return &Spinner{
		Label:   label,
		Enabled: shouldEnable(),
		done:    make(chan struct{}),
	}
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	if !s.Enabled {
		return
	}

	s.mu.Lock()
	s.stopped = false
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		frames := []rune{'⠋', '⠙', '⠹', '⠸', '⠼', '⠴', '⠦', '⠧', '⠇', '⠏'}
		i := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.mu.Lock()
				if !s.stopped {
					fmt.Fprintf(os.Stderr, "\r\033[K%c %s", frames[i%len(frames)], s.Label)
					i++
				}
				s.mu.Unlock()
			}
		}
	}()
}

// Stop stops the spinner and prints a result. An empty result just clears the line.
func (s *Spinner) Stop(result string) {
	s.mu.Lock()
	s.stopped = true
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.mu.Unlock()

	if !s.Enabled {
		return
	}
	if result == "" {
		fmt.Fprint(os.Stderr, "\r\033[K")
		return
	}
	fmt.Fprintf(os.Stderr, "\r\033[K✓ %s\n", result)
}

// Update changes the spinner label while it's running.
func (s *Spinner) Update(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Label = label
}

func shouldEnable() bool {
	// Disabled via env var
	if os.Getenv("DRSPLIT_NO_PROGRESS") == "1" {
		return false
	}
	// Disabled when JSON output is requested
	if os.Getenv("DRSPLIT_JSON") == "true" {
		return false
	}
	return isTTY()
}

func isTTY() bool {
	stat, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
