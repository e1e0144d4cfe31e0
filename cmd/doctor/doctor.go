// Package doctor provides the "drsplit doctor" command for checking setup.
package doctor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/drsplit/cmd/cmdutil"
	"github.com/klytics/drsplit/internal/config"
	"github.com/klytics/drsplit/internal/splitter"
	"github.com/klytics/drsplit/internal/table"
)

// Check represents a single health check result.
type Check struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", "error"
	Message string `json:"message"`
}

// NewCommand creates the "doctor" command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and output locations",
		Long:  "Run diagnostic checks to verify drsplit is properly configured.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdutil.Config()
			if err != nil {
				return err
			}
			checks := runChecks(cfg)

			if cmdutil.JSON(cmd) {
				return json.NewEncoder(os.Stdout).Encode(checks)
			}

			green := color.New(color.FgGreen).SprintFunc()
			yellow := color.New(color.FgYellow).SprintFunc()
			red := color.New(color.FgRed).SprintFunc()

			fmt.Println("drsplit doctor")
			fmt.Println("==============")
			fmt.Println()

			okCount, warnCount, errCount := 0, 0, 0
			for _, c := range checks {
				var icon string
				switch c.Status {
				case "ok":
					icon = green("✓")
					okCount++
				case "warning":
					icon = yellow("!")
					warnCount++
				case "error":
					icon = red("✗")
					errCount++
				}
				fmt.Printf("  %s %s: %s\n", icon, c.Name, c.Message)
			}

			fmt.Println()
			fmt.Printf("  %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

			if errCount > 0 {
				return fmt.Errorf("%d check(s) failed", errCount)
			}
			return nil
		},
	}
}

func runChecks(cfg *config.Config) []Check {
	var checks []Check

	checks = append(checks, Check{
		Name:    "Go Runtime",
		Status:  "ok",
		Message: fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	})

	configFile := config.ConfigPath()
	if _, err := os.Stat(configFile); err == nil {
		checks = append(checks, Check{Name: "Config File", Status: "ok", Message: configFile})
	} else {
		checks = append(checks, Check{
			Name:    "Config File",
			Status:  "warning",
			Message: "Not found, using defaults — run 'drsplit config set <key> <value>' to create it",
		})
	}

	for _, issue := range config.Validate() {
		if issue.Severity == "info" {
			continue
		}
		checks = append(checks, Check{Name: "Config " + issue.Key, Status: issue.Severity, Message: issue.Message})
	}

	checks = append(checks, writable("Output Directory", cfg.Output.Dir, "error"))

	if cfg.Audit.Enabled {
		checks = append(checks, writable("Run Log", filepath.Dir(cfg.Audit.Path), "warning"))
	} else {
		checks = append(checks, Check{Name: "Run Log", Status: "ok", Message: "Disabled"})
	}

	checks = append(checks, selfTest(cfg))
	return checks
}

// writable checks that dir exists, or can be created, and accepts files.
func writable(name, dir, severity string) Check {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Check{Name: name, Status: severity, Message: fmt.Sprintf("%s cannot be created: %v", dir, err)}
	}
	f, err := os.CreateTemp(dir, ".drsplit-doctor-*")
	if err != nil {
		return Check{Name: name, Status: severity, Message: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	f.Close()
	os.Remove(f.Name())
	return Check{Name: name, Status: "ok", Message: dir}
}

// selfTest splits a tiny table in both modes without touching disk.
func selfTest(cfg *config.Config) Check {
	t := table.New([]string{"zone"}, []table.Row{
		{table.StrValue("DAKAR-1")},
		{table.StrValue("dakar 1")},
		{table.Value{}},
	})
	for _, mode := range []splitter.Mode{splitter.Workbook, splitter.Archive} {
		res, err := splitter.Split(t, splitter.Request{
			Column:    "zone",
			Mode:      mode,
			Normalize: true,
			Fallbacks: cmdutil.Fallbacks(cfg),
		}, splitter.Options{})
		if err != nil {
			return Check{Name: "Split Self-Test", Status: "error", Message: err.Error()}
		}
		if res.Stats.GroupCount != 2 {
			return Check{Name: "Split Self-Test", Status: "error", Message: fmt.Sprintf("%s mode produced %d groups, want 2", mode, res.Stats.GroupCount)}
		}
	}
	return Check{Name: "Split Self-Test", Status: "ok", Message: "workbook and archive modes"}
}
