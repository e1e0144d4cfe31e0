// Package split provides the "drsplit split" command.
package split

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/drsplit/cmd/cmdutil"
	"github.com/klytics/drsplit/internal/group"
	"github.com/klytics/drsplit/internal/jobs"
	"github.com/klytics/drsplit/internal/output"
	"github.com/klytics/drsplit/internal/progress"
	"github.com/klytics/drsplit/internal/splitter"
)

// NewCommand returns the split command.
func NewCommand() *cobra.Command {
	var (
		sheet       string
		column      string
		mode        string
		normalize   bool
		foldAccents bool
		outFile     string
		outDir      string
		prefix      string
	)

	cmd := &cobra.Command{
		Use:   "split <file.xlsx>",
		Short: "Split a sheet into one group per distinct column value",
		Long: `Reads one sheet of an .xlsx file and partitions its rows by the value of
a column. Each group is written either as a sheet of a new workbook
(--mode workbook) or as its own workbook inside a zip (--mode archive).

With --normalize, values that differ only by case, spaces, dashes or
underscores ("DAKAR-1", "dakar 1") land in the same group.

Example:
  drsplit split ventes.xlsx --column zone_drvnew
  drsplit split ventes.xlsx -c zone_drvnew --mode archive --normalize`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonFlag := cmdutil.JSON(cmd)
			input := args[0]
			if !strings.HasSuffix(strings.ToLower(input), ".xlsx") {
				return fmt.Errorf("expected an .xlsx file, got %q — use 'drsplit split <file.xlsx> --column <name>'", input)
			}

			cfg, err := cmdutil.Config()
			if err != nil {
				return err
			}

			job := cmdutil.Defaults(cfg)
			job.Input = input
			job.Sheet = sheet
			job.Column = column
			job.Output = outFile
			if cmd.Flags().Changed("mode") {
				job.Mode = mode
			}
			if cmd.Flags().Changed("normalize") {
				job.Normalize = &normalize
			}
			if cmd.Flags().Changed("fold-accents") {
				job.FoldAccents = &foldAccents
			}
			if outDir != "" {
				job.OutputDir = outDir
			}
			if prefix != "" {
				job.Prefix = prefix
			}

			spinner := progress.NewSpinner("Reading " + input)
			spinner.Start()
			bar := progress.New("Writing groups", 0)

			env := cmdutil.Env(cfg, "split")
			env.Progress = func(jobs.Job) splitter.Options {
				spinner.Stop("")
				return splitter.Options{
					OnGrouped:      func(s group.Stats) { bar.SetTotal(s.GroupCount) },
					OnGroupWritten: bar.Step,
				}
			}

			res := jobs.Execute(cmd.Context(), job, env)
			spinner.Stop("")
			if res.Err != nil {
				return res.Err
			}
			bar.Finish(fmt.Sprintf("%d groups written", res.Stats.GroupCount))

			if jsonFlag {
				return output.PrintJSON("split", res)
			}

			color.New(color.FgGreen).Printf("✓ Split %d rows into %d groups\n", res.Stats.TotalRowCount, res.Stats.GroupCount)
			fmt.Printf("  Output: %s\n", res.Output)
			if len(res.Groups) <= 20 {
				fmt.Printf("  Groups: %s\n", strings.Join(res.Groups, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&column, "column", "c", "", "Column to group by (required)")
	cmd.Flags().StringVarP(&sheet, "sheet", "s", "", "Sheet to read (default: first sheet)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "workbook", "Output mode: workbook | archive")
	cmd.Flags().BoolVarP(&normalize, "normalize", "n", false, "Group values that differ only by case, spaces or dashes")
	cmd.Flags().BoolVar(&foldAccents, "fold-accents", false, "Strip accents before normalizing (Thiès → THIES)")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Output file path (default: <prefix><input name> in the output directory)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Output directory (default: output.dir from config)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Output file name prefix (default: output.prefix from config)")
	_ = cmd.MarkFlagRequired("column")

	return cmd
}
