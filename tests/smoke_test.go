// Package tests provides smoke tests that validate every drsplit command
// exists, runs, and exits cleanly without panicking.
// These tests run the compiled binary, so they are integration tests.
package tests

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// drsplitBin returns the path to the compiled drsplit binary.
func drsplitBin(t *testing.T) string {
	t.Helper()
	_, filename, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(filename), "..")
	bin := filepath.Join(root, "bin", "drsplit")
	if runtime.GOOS == "windows" {
		bin += ".exe"
	}
	if _, err := os.Stat(bin); os.IsNotExist(err) {
		t.Skipf("drsplit binary not found at %s — run 'go build -o bin/drsplit ./cmd/drsplit' first", bin)
	}
	return bin
}

// run executes drsplit with args under an isolated HOME and returns
// stdout, stderr, and exit code.
func run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	cmd := exec.Command(drsplitBin(t), args...)
	home := t.TempDir()
	cmd.Env = append(os.Environ(), "HOME="+home, "USERPROFILE="+home, "DRSPLIT_NO_PROGRESS=1")
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
	}
	return stdout.String(), stderr.String(), code
}

// writeWorkbook creates a small Zone workbook for the split commands.
func writeWorkbook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{
		{"ID", "Zone"},
		{1, "DAKAR-1"},
		{2, "dakar 1"},
		{3, "Kaolack"},
		{4, nil},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(t.TempDir(), "drv.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestAllCommandsExist validates that every command appears in --help.
func TestAllCommandsExist(t *testing.T) {
	commands := []string{
		"split", "inspect", "batch", "watch", "serve", "interactive",
		"config", "runs", "doctor", "completion", "version",
	}

	stdout, _, code := run(t, "--help")
	if code != 0 {
		t.Fatalf("drsplit --help exited with code %d", code)
	}
	for _, cmd := range commands {
		if !strings.Contains(stdout, cmd) {
			t.Errorf("command %q not found in drsplit --help output", cmd)
		}
	}
}

// TestSplitWorkbook validates the core read + split + write path.
func TestSplitWorkbook(t *testing.T) {
	in := writeWorkbook(t)
	out := filepath.Join(t.TempDir(), "zones.xlsx")

	_, stderr, code := run(t, "split", in, "--column", "Zone", "--output", out)
	if code != 0 {
		t.Fatalf("drsplit split should exit 0, stderr: %s", stderr)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatalf("output is not a workbook: %v", err)
	}
	defer f.Close()
	if got := len(f.GetSheetList()); got != 4 {
		t.Errorf("expected 4 sheets without normalization, got %d: %v", got, f.GetSheetList())
	}
}

// TestSplitArchiveJSON validates the JSON envelope of a normalized archive split.
func TestSplitArchiveJSON(t *testing.T) {
	in := writeWorkbook(t)
	dir := t.TempDir()

	stdout, _, code := run(t, "split", in, "-c", "Zone", "-m", "archive", "-n", "--out-dir", dir, "--json")
	if code != 0 {
		t.Fatalf("drsplit split --json should exit 0, got %d", code)
	}
	var result struct {
		OK   bool `json:"ok"`
		Data struct {
			Output string   `json:"output"`
			Groups []string `json:"groups"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("--json output is not valid JSON: %v\nOutput: %s", err, stdout)
	}
	if !result.OK {
		t.Fatal("expected ok result")
	}
	if filepath.Ext(result.Data.Output) != ".zip" {
		t.Errorf("expected a zip artifact, got %s", result.Data.Output)
	}
	if len(result.Data.Groups) != 3 {
		t.Errorf("expected 3 normalized groups, got %v", result.Data.Groups)
	}
}

// TestSplitMissingColumn validates the error envelope and exit code.
func TestSplitMissingColumn(t *testing.T) {
	in := writeWorkbook(t)

	stdout, _, code := run(t, "split", in, "-c", "Region", "--out-dir", t.TempDir(), "--json")
	if code == 0 {
		t.Fatal("split on a missing column should fail")
	}
	if !strings.Contains(stdout, "missing_column") {
		t.Errorf("expected missing_column kind, got: %s", stdout)
	}
}

// TestInspectJSON validates inspect reports the groups of a column.
func TestInspectJSON(t *testing.T) {
	in := writeWorkbook(t)

	stdout, _, code := run(t, "inspect", in, "--column", "Zone", "--normalize", "--json")
	if code != 0 {
		t.Fatal("drsplit inspect --json should exit 0")
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("--json output is not valid JSON: %v\nOutput: %s", err, stdout)
	}
}

// TestVersionOutput validates version command format.
func TestVersionOutput(t *testing.T) {
	stdout, _, code := run(t, "version")
	if code != 0 {
		t.Fatal("drsplit version should exit 0")
	}
	if !strings.Contains(stdout, "drsplit") {
		t.Errorf("version output should contain 'drsplit', got: %s", stdout)
	}
}

// TestDoctorRuns validates doctor command runs without panic.
func TestDoctorRuns(t *testing.T) {
	_, _, code := run(t, "doctor")
	if code > 2 {
		t.Errorf("doctor should exit 0, 1, or 2, got: %d", code)
	}
}

// TestWatchStatusNotRunning validates watch status when the watcher is off.
func TestWatchStatusNotRunning(t *testing.T) {
	stdout, _, _ := run(t, "watch", "status")
	if strings.Contains(stdout, "panic") {
		t.Error("watch status should not panic")
	}
}

// TestConfigShowRuns validates config show does not panic.
func TestConfigShowRuns(t *testing.T) {
	_, _, code := run(t, "config", "show")
	if code > 1 {
		t.Errorf("config show should exit 0 or 1, got %d", code)
	}
}

// TestAllCommandsHaveHelp validates every command accepts --help.
func TestAllCommandsHaveHelp(t *testing.T) {
	commandPaths := [][]string{
		{"split"}, {"inspect"}, {"batch"}, {"serve"}, {"interactive"},
		{"watch", "start"}, {"watch", "status"}, {"watch", "stop"}, {"watch", "config"},
		{"config", "show"}, {"config", "set"}, {"config", "get"}, {"config", "validate"}, {"config", "env"},
		{"runs", "log"}, {"runs", "status"}, {"runs", "clear"},
		{"completion", "bash"}, {"completion", "zsh"},
		{"doctor"}, {"version"},
	}

	for _, path := range commandPaths {
		args := append(path, "--help")
		t.Run(strings.Join(path, "_"), func(t *testing.T) {
			_, _, code := run(t, args...)
			if code != 0 {
				t.Errorf("drsplit %s --help should exit 0", strings.Join(path, " "))
			}
		})
	}
}
