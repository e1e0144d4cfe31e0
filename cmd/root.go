// Package cmd contains all CLI commands for the drsplit binary.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/drsplit/cmd/audit"
	"github.com/klytics/drsplit/cmd/batch"
	"github.com/klytics/drsplit/cmd/cmdutil"
	"github.com/klytics/drsplit/cmd/completion"
	cmdconfig "github.com/klytics/drsplit/cmd/config"
	"github.com/klytics/drsplit/cmd/doctor"
	"github.com/klytics/drsplit/cmd/inspect"
	"github.com/klytics/drsplit/cmd/serve"
	"github.com/klytics/drsplit/cmd/shell"
	"github.com/klytics/drsplit/cmd/split"
	"github.com/klytics/drsplit/cmd/version"
	cmdwatch "github.com/klytics/drsplit/cmd/watch"
	"github.com/klytics/drsplit/internal/config"
	"github.com/klytics/drsplit/internal/logger"
	"github.com/klytics/drsplit/internal/output"
)

var (
	jsonOutput bool
	verbose    bool
	noColor    bool
	configFile string
)

// NewRootCommand creates and returns the root cobra command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "drsplit",
		Short: "Split an Excel sheet into one sheet or file per group",
		Long: `drsplit — one workbook in, one sheet or file per group out.

Reads a sheet, groups its rows on a column (optionally normalizing values
such as "DAKAR-1" and "dakar 1" into one group) and writes either a
multi-sheet workbook or a zip of per-group workbooks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				color.NoColor = true
			}
			if jsonOutput {
				os.Setenv("DRSPLIT_JSON", "true")
			}
			if configFile != "" {
				config.SetFile(configFile)
			}

			cfg, err := config.Load()
			if err != nil {
				// config subcommands must still run to repair a broken file
				if !isConfigCommand(cmd) {
					return err
				}
				fmt.Fprintf(os.Stderr, "%s %v\n", color.YellowString("Warning:"), err)
				cfg = &config.Config{}
			}

			level := cfg.Log.Level
			if verbose {
				level = "debug"
			}
			logger.Init(logger.Options{Level: level, Format: cfg.Log.Format})
			cmdutil.SetConfig(cfg)
			return nil
		},
	}

	// Global persistent flags
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as machine-readable JSON")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable ANSI color output")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default ~/.drsplit/config.yaml)")

	// Register subcommands
	rootCmd.AddCommand(split.NewCommand())
	rootCmd.AddCommand(inspect.NewCommand())
	rootCmd.AddCommand(batch.NewCommand())
	rootCmd.AddCommand(cmdwatch.NewCommand())
	rootCmd.AddCommand(serve.NewCommand())
	rootCmd.AddCommand(shell.NewCommand())
	rootCmd.AddCommand(cmdconfig.NewCommand())
	rootCmd.AddCommand(audit.NewCommand())
	rootCmd.AddCommand(doctor.NewCommand())
	rootCmd.AddCommand(completion.NewCommand(rootCmd))
	rootCmd.AddCommand(version.NewCommand())

	return rootCmd
}

func isConfigCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" {
			return true
		}
	}
	return false
}

// Execute runs the root command and handles any returned errors.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCommand()
	c, err := rootCmd.ExecuteContextC(ctx)
	if err == nil {
		return
	}
	if jsonOutput {
		output.PrintJSONError(c.Name(), err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	stop()
	os.Exit(output.ExitCode(err))
}
