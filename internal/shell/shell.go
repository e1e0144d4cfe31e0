// Package shell provides the guided interactive split: pick a workbook,
// sheet and column with tab completion, choose how to split, then write it.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/klytics/drsplit/internal/formats/xlsx"
	"github.com/klytics/drsplit/internal/inspect"
	"github.com/klytics/drsplit/internal/jobs"
	"github.com/klytics/drsplit/internal/splitter"
)

// ErrAborted is returned when the user quits a prompt with Ctrl+C or Ctrl+D.
var ErrAborted = errors.New("aborted")

// Prompter asks one question at a time. Choices feed tab completion; an
// empty answer selects def.
type Prompter interface {
	Ask(label string, choices []string, def string) (string, error)
	Close() error
}

// Session holds the defaults and sinks of an interactive split.
type Session struct {
	Prompter Prompter
	Out      io.Writer
	// Defaults pre-fills the answers; Env is passed to the split job.
	Defaults  jobs.Job
	Env       jobs.Env
	StartTime time.Time
}

// NewSession creates a session reading from the terminal.
func NewSession(defaults jobs.Job, env jobs.Env) (*Session, error) {
	home, _ := os.UserHomeDir()
	histFile := filepath.Join(home, ".drsplit", "interactive_history")

	// Ensure parent dir exists
	os.MkdirAll(filepath.Dir(histFile), 0755)

	p, err := NewPrompter(histFile)
	if err != nil {
		return nil, err
	}
	return &Session{
		Prompter:  p,
		Out:       os.Stdout,
		Defaults:  defaults,
		Env:       env,
		StartTime: time.Now(),
	}, nil
}

// Run walks through the selection and runs the split. input may be empty,
// in which case the workbook is asked for too.
func (s *Session) Run(ctx context.Context, input string) (*jobs.Result, error) {
	defer s.Prompter.Close()
	bold := color.New(color.Bold)

	if input == "" {
		var err error
		input, err = s.ask("Workbook", workbooksIn("."), "", nil)
		if err != nil {
			return nil, err
		}
	}

	src, err := xlsx.OpenFile(input)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	job := s.Defaults
	job.Input = input

	sheets := src.Sheets()
	job.Sheet, err = s.ask("Sheet", sheets, first(job.Sheet, sheets), oneOf(sheets))
	if err != nil {
		return nil, err
	}

	t, err := src.Table(job.Sheet)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(s.Out, "%s %d rows, %d columns\n", bold.Sprint(job.Sheet+":"), t.Len(), len(t.Columns))

	def := job.Column
	if !t.HasColumn(def) {
		def = ""
	}
	job.Column, err = s.ask("Column", t.Columns, def, oneOf(t.Columns))
	if err != nil {
		return nil, err
	}

	mode, err := s.ask("Mode (workbook/archive)", []string{"workbook", "archive"}, first(job.Mode, []string{"workbook"}), func(v string) (string, error) {
		m, err := splitter.ParseMode(v)
		return string(m), err
	})
	if err != nil {
		return nil, err
	}
	job.Mode = mode

	yn := "n"
	if job.NormalizeOn() {
		yn = "y"
	}
	answer, err := s.ask("Normalize values (y/n)", []string{"y", "n"}, yn, yesNo)
	if err != nil {
		return nil, err
	}
	normalize := isYes(answer)
	job.Normalize = &normalize

	report, err := inspect.Profile(t, inspect.Options{
		Column:      job.Column,
		Normalize:   normalize,
		FoldAccents: job.FoldAccentsOn(),
		PreviewRows: -1,
		Fallbacks:   s.Env.Fallbacks,
	})
	if err != nil {
		return nil, err
	}
	s.printGroups(report)

	answer, err = s.ask("Write "+s.outputPath(job)+"? (y/n)", []string{"y", "n"}, "y", yesNo)
	if err != nil {
		return nil, err
	}
	if !isYes(answer) {
		return nil, ErrAborted
	}

	res := jobs.Execute(ctx, job, s.Env)
	if res.Err != nil {
		return &res, res.Err
	}
	color.New(color.FgGreen).Fprintf(s.Out, "✓ Wrote %s (%d groups, %d rows) in %s\n",
		res.Output, res.Stats.GroupCount, res.Stats.TotalRowCount, formatDuration(time.Since(s.StartTime)))
	return &res, nil
}

// ask repeats the question until check accepts the answer.
func (s *Session) ask(label string, choices []string, def string, check func(string) (string, error)) (string, error) {
	for {
		v, err := s.Prompter.Ask(label, choices, def)
		if err != nil {
			return "", err
		}
		v = strings.TrimSpace(v)
		if v == "" {
			v = def
		}
		if v == "" {
			fmt.Fprintln(s.Out, "  a value is required")
			continue
		}
		if check != nil {
			canonical, err := check(v)
			if err != nil {
				color.New(color.FgRed).Fprintf(s.Out, "  %s\n", err)
				continue
			}
			v = canonical
		}
		return v, nil
	}
}

func (s *Session) printGroups(r *inspect.Report) {
	if r.Groups == nil {
		return
	}
	fmt.Fprintf(s.Out, "%d groups over %d rows\n", r.Groups.GroupCount, r.Groups.TotalRowCount)
	for i, v := range r.Values {
		if i == 10 {
			fmt.Fprintf(s.Out, "  … %d more\n", len(r.Values)-i)
			break
		}
		fmt.Fprintf(s.Out, "  %-31s %d\n", v.Sheet, v.Count)
	}
}

func (s *Session) outputPath(job jobs.Job) string {
	mode, _ := splitter.ParseMode(job.Mode)
	prefix := job.Prefix
	if prefix == "" {
		prefix = s.Env.Prefix
	}
	dir := job.OutputDir
	if dir == "" {
		dir = s.Env.OutputDir
	}
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, splitter.SuggestName(prefix, job.Input, job.Column, mode))
}

// oneOf accepts an exact choice, or a case-insensitive match when only one
// choice matches that way.
func oneOf(choices []string) func(string) (string, error) {
	return func(v string) (string, error) {
		var folded []string
		for _, c := range choices {
			if c == v {
				return c, nil
			}
			if strings.EqualFold(c, v) {
				folded = append(folded, c)
			}
		}
		if len(folded) == 1 {
			return folded[0], nil
		}
		return "", fmt.Errorf("%q is not one of: %s", v, strings.Join(choices, ", "))
	}
}

func yesNo(v string) (string, error) {
	switch strings.ToLower(v) {
	case "y", "yes":
		return "y", nil
	case "n", "no":
		return "n", nil
	}
	return "", fmt.Errorf("answer y or n")
}

func isYes(v string) bool { return v == "y" }

// first returns v when it is set, else the first choice.
func first(v string, choices []string) string {
	if v != "" || len(choices) == 0 {
		return v
	}
	return choices[0]
}

// workbooksIn lists .xlsx files in dir for completion, skipping lock files.
func workbooksIn(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "~$") || !strings.EqualFold(filepath.Ext(name), ".xlsx") {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Complete returns the choices starting with input, case-insensitively.
func Complete(choices []string, input string) []string {
	prefix := strings.ToLower(input)
	var matches []string
	for _, c := range choices {
		if strings.HasPrefix(strings.ToLower(c), prefix) {
			matches = append(matches, c)
		}
	}
	return matches
}

// choiceCompleter completes the whole line against the current choices.
type choiceCompleter struct {
	choices []string
}

func (c *choiceCompleter) Do(line []rune, pos int) ([][]rune, int) {
	typed := string(line[:pos])
	var out [][]rune
	n := len([]rune(typed))
	for _, m := range Complete(c.choices, typed) {
		// readline inserts the suffix after what was typed
		if r := []rune(m); len(r) >= n {
			out = append(out, r[n:])
		}
	}
	return out, n
}

type readlinePrompter struct {
	rl        *readline.Instance
	completer *choiceCompleter
}

// NewPrompter returns a terminal Prompter with history and tab completion.
func NewPrompter(historyFile string) (Prompter, error) {
	c := &choiceCompleter{}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     historyFile,
		AutoComplete:    c,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}
	return &readlinePrompter{rl: rl, completer: c}, nil
}

func (p *readlinePrompter) Ask(label string, choices []string, def string) (string, error) {
	p.completer.choices = choices
	prompt := label
	if def != "" {
		prompt += " [" + def + "]"
	}
	p.rl.SetPrompt(color.CyanString(prompt) + ": ")

	line, err := p.rl.Readline()
	if err != nil { // io.EOF or interrupt
		return "", ErrAborted
	}
	return line, nil
}

func (p *readlinePrompter) Close() error { return p.rl.Close() }

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", m, s)
}
