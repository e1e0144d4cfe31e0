// Package audit provides the "drsplit runs" commands for the run log.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/drsplit/cmd/cmdutil"
	auditpkg "github.com/klytics/drsplit/internal/audit"
)

// NewCommand creates the "runs" command with all subcommands.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "runs",
		Aliases: []string{"audit"},
		Short:   "View and manage the run log",
		Long: `Every split run is appended to a JSONL run log when audit.enabled is set:
  drsplit config set audit.enabled true`,
	}

	cmd.AddCommand(newLogCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

func runLogPath() (string, error) {
	cfg, err := cmdutil.Config()
	if err != nil {
		return "", err
	}
	return cfg.Audit.Path, nil
}

func newLogCmd() *cobra.Command {
	var (
		last   int
		input  string
		since  string
		failed bool
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := runLogPath()
			if err != nil {
				return err
			}
			entries, err := auditpkg.ReadEntries(path)
			if err != nil {
				return err
			}

			f := auditpkg.Filter{Input: input, FailedOnly: failed}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date: %w (use YYYY-MM-DD)", err)
				}
				f.Since = t
			}

			filtered := auditpkg.FilterEntries(entries, f)

			if last > 0 && len(filtered) > last {
				filtered = filtered[len(filtered)-last:]
			}

			if cmdutil.JSON(cmd) {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(filtered)
			}

			if len(filtered) == 0 {
				fmt.Println("No runs found.")
				return nil
			}

			fmt.Printf("Run Log — %d Entries\n", len(filtered))
			fmt.Printf("File: %s\n\n", path)

			red := color.New(color.FgRed)
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "TIMESTAMP\tCOMMAND\tINPUT\tCOLUMN\tGROUPS\tROWS\tDURATION\tRESULT\n")
			for _, e := range filtered {
				ts := e.Timestamp.Format("2006-01-02 15:04:05")
				dur := fmt.Sprintf("%dms", e.DurationMs)
				if e.DurationMs >= 1000 {
					dur = fmt.Sprintf("%.1fs", float64(e.DurationMs)/1000)
				}
				result := filepath.Base(e.Output)
				if e.Failed() {
					result = red.Sprint(e.ErrorKind)
					if e.ErrorKind == "" {
						result = red.Sprint("error")
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					ts, e.Command, filepath.Base(e.Input), e.Column, e.Groups, e.Rows, dur, result)
			}
			tw.Flush()
			return nil
		},
	}

	cmd.Flags().IntVar(&last, "last", 20, "Show last N entries")
	cmd.Flags().StringVar(&input, "input", "", "Filter by input path substring")
	cmd.Flags().StringVar(&since, "since", "", "Filter entries since date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&failed, "failed", false, "Show only failed runs")
	return cmd
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the run log",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := runLogPath()
			if err != nil {
				return err
			}
			if err := auditpkg.Clear(path); err != nil {
				return err
			}
			if cmdutil.JSON(cmd) {
				return json.NewEncoder(os.Stdout).Encode(map[string]string{"cleared": path})
			}
			fmt.Printf("Run log cleared: %s\n", path)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show run log path, size and whether logging is on",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdutil.Config()
			if err != nil {
				return err
			}
			path := cfg.Audit.Path
			size := auditpkg.LogSize(path)

			if cmdutil.JSON(cmd) {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"enabled": cfg.Audit.Enabled,
					"path":    path,
					"size":    size,
				})
			}

			fmt.Printf("Run log:   %s\n", path)
			fmt.Printf("Enabled:   %v\n", cfg.Audit.Enabled)
			if size == 0 {
				fmt.Println("Size:      empty (no entries)")
			} else {
				fmt.Printf("Size:      %s\n", formatSize(size))
			}

			entries, _ := auditpkg.ReadEntries(path)
			fmt.Printf("Entries:   %d\n", len(entries))
			return nil
		},
	}
}

func formatSize(bytes int64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}
	if bytes < 1024*1024 {
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	}
	return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
}
