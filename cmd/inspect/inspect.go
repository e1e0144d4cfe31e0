// Package inspect provides the "drsplit inspect" command.
package inspect

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/drsplit/cmd/cmdutil"
	"github.com/klytics/drsplit/internal/formats/xlsx"
	inspectpkg "github.com/klytics/drsplit/internal/inspect"
	"github.com/klytics/drsplit/internal/output"
)

// NewCommand returns the inspect command.
func NewCommand() *cobra.Command {
	var (
		sheet     string
		column    string
		normalize bool
		rows      int
	)

	cmd := &cobra.Command{
		Use:   "inspect <file.xlsx>",
		Short: "Show sheets, columns and the groups a split would produce",
		Long: `Lists the sheets and columns of a workbook and previews the first rows.
With --column, also lists every distinct value of that column with its row
count and the sheet name it would get, plus group size statistics.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdutil.Config()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("normalize") {
				normalize = cfg.Normalize.Enabled
			}

			src, err := xlsx.OpenFile(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			report, err := inspectpkg.Source(src, sheet, inspectpkg.Options{
				Column:      column,
				Normalize:   normalize,
				FoldAccents: cfg.Normalize.FoldAccents,
				PreviewRows: rows,
				Fallbacks:   cmdutil.Fallbacks(cfg),
			})
			if err != nil {
				return err
			}

			if cmdutil.JSON(cmd) {
				return output.PrintJSON("inspect", report)
			}
			printReport(report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&sheet, "sheet", "s", "", "Sheet to inspect (default: first sheet)")
	cmd.Flags().StringVarP(&column, "column", "c", "", "Column to profile as a grouping column")
	cmd.Flags().BoolVarP(&normalize, "normalize", "n", false, "Profile normalized groups")
	cmd.Flags().IntVar(&rows, "rows", inspectpkg.DefaultPreviewRows, "Preview rows to show (negative to hide)")

	return cmd
}

func printReport(r *inspectpkg.Report) {
	headerStyle := color.New(color.Bold, color.FgCyan)
	dim := color.New(color.FgHiBlack)
	w := output.NewWriter(nil)

	headerStyle.Printf("Sheet: %s\n", r.Sheet)
	if len(r.Sheets) > 1 {
		dim.Printf("  (workbook sheets: %v)\n", r.Sheets)
	}
	fmt.Printf("  %d rows, %d columns\n\n", r.Rows, len(r.Columns))

	if len(r.Preview) > 0 {
		w.Table(r.Columns, r.Preview)
		fmt.Println()
	}

	if r.Column == "" {
		return
	}

	headerStyle.Printf("Column: %s\n", r.Column)
	rows := make([][]string, 0, len(r.Values))
	for _, v := range r.Values {
		label := v.Label
		if v.Missing {
			label += " (empty)"
		}
		rows = append(rows, []string{label, strconv.Itoa(v.Count), v.Sheet})
	}
	w.Table([]string{"VALUE", "ROWS", "SHEET"}, rows)

	if r.Groups != nil {
		fmt.Printf("\n  %d groups over %d rows\n", r.Groups.GroupCount, r.Groups.TotalRowCount)
	}
	if r.Sizes != nil {
		dim.Printf("  group size: min %.0f, max %.0f, mean %.1f, median %.1f\n",
			r.Sizes.Min, r.Sizes.Max, r.Sizes.Mean, r.Sizes.Median)
	}
}
