// Package cmdutil holds the state the root command prepares for its
// subcommands: the loaded config and the derived job environment.
package cmdutil

import (
	"sync"

	"github.com/spf13/cobra"

	"github.com/klytics/drsplit/internal/audit"
	"github.com/klytics/drsplit/internal/config"
	"github.com/klytics/drsplit/internal/jobs"
	"github.com/klytics/drsplit/internal/logger"
	"github.com/klytics/drsplit/internal/naming"
)

var (
	mu  sync.Mutex
	cfg *config.Config
)

// SetConfig stores the config loaded by the root command.
func SetConfig(c *config.Config) {
	mu.Lock()
	defer mu.Unlock()
	cfg = c
}

// Config returns the loaded config, loading it on first use.
func Config() (*config.Config, error) {
	mu.Lock()
	defer mu.Unlock()
	if cfg != nil {
		return cfg, nil
	}
	c, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

// JSON reports whether --json was passed.
func JSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

// Fallbacks returns the naming literals from c.
func Fallbacks(c *config.Config) naming.Fallbacks {
	return naming.Fallbacks{Missing: c.Naming.Missing, Empty: c.Naming.Empty}.WithDefaults()
}

// AuditLogger returns the run log configured in c.
func AuditLogger(c *config.Config) *audit.Logger {
	return audit.NewLogger(c.Audit.Path, c.Audit.Enabled)
}

// Env builds the job environment for command.
func Env(c *config.Config, command string) jobs.Env {
	return jobs.Env{
		Prefix:    c.Output.Prefix,
		OutputDir: c.Output.Dir,
		Fallbacks: Fallbacks(c),
		Log:       logger.Get(),
		Audit:     AuditLogger(c),
		Command:   command,
	}
}

// Defaults returns the job fields taken from config when a flag is unset.
func Defaults(c *config.Config) jobs.Job {
	normalize := c.Normalize.Enabled
	fold := c.Normalize.FoldAccents
	return jobs.Job{
		Mode:        c.Output.Mode,
		Normalize:   &normalize,
		FoldAccents: &fold,
		Prefix:      c.Output.Prefix,
		OutputDir:   c.Output.Dir,
	}
}
