// Package watch provides the "drsplit watch" commands for splitting workbooks
// as they are dropped into a folder.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/drsplit/cmd/cmdutil"
	"github.com/klytics/drsplit/internal/jobs"
	"github.com/klytics/drsplit/internal/logger"
	"github.com/klytics/drsplit/internal/splitter"
	w "github.com/klytics/drsplit/internal/watch"
)

// NewCommand creates the "watch" command with subcommands.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Split workbooks automatically as they land in a folder",
		Long: `Watch directories for new or modified .xlsx files and split each one
once it has stopped changing.

Example:
  drsplit watch start ./inbox --column zone_drvnew --out-dir ./out
  drsplit watch status
  drsplit watch stop`,
	}

	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func newStartCmd() *cobra.Command {
	var (
		column    string
		mode      string
		normalize bool
		outDir    string
		pattern   string
		recursive bool
		debounce  int
	)

	cmd := &cobra.Command{
		Use:   "start <directory> [directory...]",
		Short: "Start watching directories and split every workbook dropped in",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdutil.Config()
			if err != nil {
				return err
			}

			defaults := cmdutil.Defaults(cfg)
			if cmd.Flags().Changed("mode") {
				defaults.Mode = mode
			}
			if _, err := splitter.ParseMode(defaults.Mode); err != nil {
				return err
			}
			if cmd.Flags().Changed("normalize") {
				defaults.Normalize = &normalize
			}
			defaults.Column = column
			if outDir != "" {
				defaults.OutputDir = outDir
			}
			if !cmd.Flags().Changed("debounce") {
				debounce = cfg.Watch.DebounceMS
			}

			config := w.WatchConfig{
				Directories:  args,
				Recursive:    recursive,
				Debounce:     debounce,
				Pattern:      pattern,
				SkipPrefixes: []string{defaults.Prefix},
				Column:       column,
				Mode:         defaults.Mode,
			}

			watcher, err := w.New(config)
			if err != nil {
				return err
			}

			env := cmdutil.Env(cfg, "watch")
			log := logger.Get()
			watcher.Log = log
			watcher.Handler = func(ctx context.Context, path string) error {
				job := defaults
				job.Input = path
				res := jobs.Execute(ctx, job, env)
				if res.Err != nil {
					return res.Err
				}
				fmt.Printf("%s → %s (%d groups, %d rows)\n", path, res.Output, res.Stats.GroupCount, res.Stats.TotalRowCount)
				return nil
			}

			// Write PID
			stateDir := w.DefaultStateDir()
			if err := w.WritePIDFile(stateDir); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not write PID file: %v\n", err)
			}
			defer w.RemovePIDFile(stateDir)

			// Save config for status command
			if err := w.SaveConfig(stateDir, watcher.Config); err != nil {
				log.Warn().Err(err).Msg("could not save watch config")
			}

			color.New(color.Bold).Printf("Watching %s for .xlsx files\n", strings.Join(args, ", "))
			fmt.Printf("  Column: %s  Mode: %s  Output: %s\n", column, defaults.Mode, orDot(defaults.OutputDir))
			fmt.Println("Press Ctrl+C to stop")

			return watcher.Start(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&column, "column", "c", "", "Column to group by (required)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "workbook", "Output mode: workbook | archive")
	cmd.Flags().BoolVarP(&normalize, "normalize", "n", false, "Group normalized values")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Output directory (default: output.dir from config)")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Only split files whose name matches this glob, e.g. 'drv_*.xlsx'")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Watch directories recursively")
	cmd.Flags().IntVar(&debounce, "debounce", w.DefaultDebounce, "Debounce interval in milliseconds")
	_ = cmd.MarkFlagRequired("column")

	return cmd
}

func orDot(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			stateDir := w.DefaultStateDir()
			pid, err := w.ReadPIDFile(stateDir)
			if err != nil {
				return fmt.Errorf("no watcher running (PID file not found)")
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("could not find process %d: %w", pid, err)
			}

			if err := process.Signal(syscall.SIGTERM); err != nil {
				w.RemovePIDFile(stateDir)
				return fmt.Errorf("could not stop watcher (PID %d): %w", pid, err)
			}

			w.RemovePIDFile(stateDir)

			if cmdutil.JSON(cmd) {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"stopped": true,
					"pid":     pid,
				})
			}

			fmt.Printf("Stopped watcher (PID %d)\n", pid)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current watcher status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stateDir := w.DefaultStateDir()

			pid, err := w.ReadPIDFile(stateDir)
			running := err == nil

			// Check if process is actually running
			if running {
				process, err := os.FindProcess(pid)
				if err != nil {
					running = false
				} else if err := process.Signal(syscall.Signal(0)); err != nil {
					// Stale PID file
					running = false
					w.RemovePIDFile(stateDir)
				}
			}

			jsonOut := cmdutil.JSON(cmd)

			if !running {
				if jsonOut {
					return json.NewEncoder(os.Stdout).Encode(map[string]any{"running": false})
				}
				fmt.Println("Watcher is not running")
				return nil
			}

			config, _ := w.LoadConfig(stateDir)

			status := map[string]any{
				"running": true,
				"pid":     pid,
			}
			if config != nil {
				status["directories"] = config.Directories
				status["column"] = config.Column
				status["mode"] = config.Mode
				status["recursive"] = config.Recursive
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(status)
			}

			fmt.Printf("Watcher is running (PID %d)\n", pid)
			if config != nil {
				fmt.Printf("  Directories: %s\n", strings.Join(config.Directories, ", "))
				fmt.Printf("  Column:      %s\n", config.Column)
				fmt.Printf("  Mode:        %s\n", config.Mode)
				fmt.Printf("  Recursive:   %v\n", config.Recursive)
			}
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the configuration of the last started watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := w.LoadConfig(w.DefaultStateDir())
			if err != nil {
				return fmt.Errorf("no watcher configuration found (run 'drsplit watch start' first)")
			}

			if cmdutil.JSON(cmd) {
				return json.NewEncoder(os.Stdout).Encode(config)
			}

			fmt.Printf("Directories: %s\n", strings.Join(config.Directories, ", "))
			fmt.Printf("Recursive:   %v\n", config.Recursive)
			fmt.Printf("Debounce:    %dms\n", config.Debounce)
			fmt.Printf("Column:      %s\n", config.Column)
			fmt.Printf("Mode:        %s\n", config.Mode)
			if config.Pattern != "" {
				fmt.Printf("Pattern:     %s\n", config.Pattern)
			}
			if len(config.SkipPrefixes) > 0 {
				fmt.Printf("Skipping:    %s*\n", strings.Join(config.SkipPrefixes, "*, "))
			}
			return nil
		},
	}
}
