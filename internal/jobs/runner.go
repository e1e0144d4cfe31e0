package jobs

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/klytics/drsplit/internal/apperr"
	"github.com/klytics/drsplit/internal/audit"
	"github.com/klytics/drsplit/internal/formats/xlsx"
	"github.com/klytics/drsplit/internal/group"
	"github.com/klytics/drsplit/internal/logger"
	"github.com/klytics/drsplit/internal/naming"
	"github.com/klytics/drsplit/internal/splitter"
)

// Env carries what every job shares: config-derived defaults, hooks and sinks.
type Env struct {
	// Prefix and OutputDir apply to jobs that leave them unset.
	Prefix    string
	OutputDir string
	Fallbacks naming.Fallbacks
	Log       *logger.Logger
	Audit     *audit.Logger
	// Command is recorded in the run log.
	Command string
	// Progress, when set, receives per-job split hooks.
	Progress func(Job) splitter.Options
}

// Result is the outcome of one job.
type Result struct {
	RunID    string        `json:"runId"`
	Job      Job           `json:"job"`
	Output   string        `json:"output,omitempty"`
	Stats    group.Stats   `json:"stats"`
	Groups   []string      `json:"groups,omitempty"`
	Duration time.Duration `json:"-"`
	Err      error         `json:"-"`
}

// OK reports whether the job succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Execute loads the job's sheet, splits it and writes the artifact to the
// output directory. The run is recorded in env.Audit when enabled.
func Execute(ctx context.Context, job Job, env Env) Result {
	log := logger.OrNop(env.Log).With().Str("input", job.Input).Logger()
	res := Result{RunID: audit.NewRunID(), Job: job}
	start := time.Now()

	res.Err = execute(ctx, job, env, &log, &res)
	res.Duration = time.Since(start)

	entry := audit.Entry{
		RunID:      res.RunID,
		Command:    env.Command,
		Input:      job.Input,
		Sheet:      job.Sheet,
		Column:     job.Column,
		Mode:       job.Mode,
		Normalize:  job.NormalizeOn(),
		Groups:     res.Stats.GroupCount,
		Rows:       res.Stats.TotalRowCount,
		Output:     res.Output,
		DurationMs: res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		entry.Error = res.Err.Error()
		if kind := apperr.KindOf(res.Err); kind != apperr.KindUnknown {
			entry.ErrorKind = kind.String()
		}
		log.Warn().Err(res.Err).Msg("split failed")
	} else {
		log.Info().
			Str("output", res.Output).
			Int("groups", res.Stats.GroupCount).
			Int("rows", res.Stats.TotalRowCount).
			Dur("took", res.Duration).
			Msg("split done")
	}
	_ = env.Audit.Log(ctx, entry)

	return res
}

func execute(ctx context.Context, job Job, env Env, log *logger.Logger, res *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mode, err := splitter.ParseMode(job.Mode)
	if err != nil {
		return err
	}

	t, err := xlsx.ReadFile(job.Input, job.Sheet)
	if err != nil {
		return err
	}
	log.Debug().Int("rows", t.Len()).Strs("columns", t.Columns).Msg("loaded sheet")

	prefix := job.Prefix
	if prefix == "" {
		prefix = env.Prefix
	}
	var opts splitter.Options
	if env.Progress != nil {
		opts = env.Progress(job)
	}
	opts.Log = env.Log

	out, err := splitter.Split(t, splitter.Request{
		Column:      job.Column,
		Mode:        mode,
		Normalize:   job.NormalizeOn(),
		FoldAccents: job.FoldAccentsOn(),
		SourceName:  job.Input,
		Prefix:      prefix,
		Fallbacks:   env.Fallbacks,
	}, opts)
	if err != nil {
		return err
	}
	res.Stats = out.Stats
	res.Groups = out.Groups

	dir := job.OutputDir
	if dir == "" {
		dir = env.OutputDir
	}
	if dir == "" {
		dir = "."
	}
	if job.Output != "" {
		dir = filepath.Dir(job.Output)
		out.Artifact.Name = filepath.Base(job.Output)
	}
	path, err := out.Artifact.Save(dir)
	if err != nil {
		return err
	}
	res.Output = path
	return nil
}

// Runner executes jobs with bounded concurrency. Every job loads its own
// table, so jobs share nothing but the Env.
type Runner struct {
	Concurrency int
	Env         Env
	// OnDone fires after each job, from the job's goroutine.
	OnDone func(i int, r Result)
}

// Run executes all jobs and returns their results in input order. A failing
// job does not stop the others; cancelling ctx stops jobs not yet started.
func (r *Runner) Run(ctx context.Context, jobs []Job) []Result {
	n := r.Concurrency
	if n < 1 {
		n = 1
	}
	sem := semaphore.NewWeighted(int64(n))
	results := make([]Result, len(jobs))

	var wg sync.WaitGroup
	for i, job := range jobs {
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(jobs); j++ {
				results[j] = Result{Job: jobs[j], Err: fmt.Errorf("not started: %w", err)}
			}
			break
		}
		wg.Add(1)
		go func(i int, job Job) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = Execute(ctx, job, r.Env)
			if r.OnDone != nil {
				r.OnDone(i, results[i])
			}
		}(i, job)
	}
	wg.Wait()
	return results
}

// Summary counts outcomes.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Summarize counts succeeded and failed results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.OK() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}
