// Package batch provides the "drsplit batch" command for running job files.
package batch

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/drsplit/cmd/cmdutil"
	"github.com/klytics/drsplit/internal/apperr"
	"github.com/klytics/drsplit/internal/jobs"
	"github.com/klytics/drsplit/internal/output"
)

type batchResultItem struct {
	jobs.Result
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Kind   string `json:"kind,omitempty"`
}

// NewCommand returns the batch subcommand.
func NewCommand() *cobra.Command {
	var (
		concurrency int
		outDir      string
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "batch <jobs.yaml>",
		Short: "Run the splits described in a YAML job file",
		Long: `Runs every job of a YAML job file. Inputs may be glob patterns, which
expand to one job per matching .xlsx file.

On error, the batch logs the failure and continues with the next job.

Example job file:
  defaults:
    column: zone_drvnew
    normalize: true
  jobs:
    - input: exports/*.xlsx
      mode: archive
      output_dir: out/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonFlag := cmdutil.JSON(cmd)

			cfg, err := cmdutil.Config()
			if err != nil {
				return err
			}

			file, err := jobs.Load(args[0])
			if err != nil {
				return err
			}
			list, err := jobs.Expand(file.Jobs)
			if err != nil {
				return err
			}
			defaults := cmdutil.Defaults(cfg)
			for i := range list {
				if list[i].Mode == "" {
					list[i].Mode = defaults.Mode
				}
				if list[i].Normalize == nil {
					list[i].Normalize = defaults.Normalize
				}
				if list[i].FoldAccents == nil {
					list[i].FoldAccents = defaults.FoldAccents
				}
			}

			if dryRun {
				if jsonFlag {
					return output.PrintJSON("batch", list)
				}
				for i, j := range list {
					fmt.Printf("[%d/%d] %s  column=%s mode=%s normalize=%v\n",
						i+1, len(list), j.Input, j.Column, j.Mode, j.NormalizeOn())
				}
				return nil
			}

			env := cmdutil.Env(cfg, "batch")
			if outDir != "" {
				env.OutputDir = outDir
			}

			var mu sync.Mutex
			done := 0
			runner := &jobs.Runner{
				Concurrency: concurrency,
				Env:         env,
				OnDone: func(i int, r jobs.Result) {
					if jsonFlag {
						return
					}
					mu.Lock()
					defer mu.Unlock()
					done++
					if r.OK() {
						fmt.Printf("[%d/%d] %s → %s (%d groups)\n", done, len(list), r.Job.Label(), filepath.Base(r.Output), r.Stats.GroupCount)
					} else {
						color.New(color.FgRed).Printf("[%d/%d] %s failed: %s\n", done, len(list), r.Job.Label(), r.Err)
					}
				},
			}
			results := runner.Run(cmd.Context(), list)
			summary := jobs.Summarize(results)

			if jsonFlag {
				items := make([]batchResultItem, len(results))
				for i, r := range results {
					items[i] = batchResultItem{Result: r, Status: "ok"}
					if !r.OK() {
						items[i].Status = "error"
						items[i].Error = r.Err.Error()
						if kind := apperr.KindOf(r.Err); kind != apperr.KindUnknown {
							items[i].Kind = kind.String()
						}
					}
				}
				return output.PrintJSON("batch", map[string]any{"summary": summary, "results": items})
			}

			fmt.Printf("\nProcessed %d jobs. %d succeeded, %d failed.\n", summary.Total, summary.Succeeded, summary.Failed)
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d jobs failed", summary.Failed, summary.Total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "Number of jobs to run in parallel")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Output directory for jobs without output_dir")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the expanded jobs without running them")

	return cmd
}
