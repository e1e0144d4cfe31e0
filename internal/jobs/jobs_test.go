package jobs

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/klytics/drsplit/internal/apperr"
	"github.com/klytics/drsplit/internal/audit"
	"github.com/klytics/drsplit/internal/formats/xlsx"
	"github.com/klytics/drsplit/internal/group"
	"github.com/klytics/drsplit/internal/splitter"
)

func writeWorkbook(t *testing.T, path string, zones ...string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"id", "zone_drvnew"}))
	for i, z := range zones {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &[]any{i + 1, z}))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestParseAppliesDefaults(t *testing.T) {
	f, err := Parse([]byte(`
defaults:
  column: zone_drvnew
  normalize: true
  prefix: ZONES_
jobs:
  - input: a.xlsx
  - input: b.xlsx
    column: region
    normalize: false
    mode: archive
`))
	require.NoError(t, err)
	require.Len(t, f.Jobs, 2)

	assert.Equal(t, "zone_drvnew", f.Jobs[0].Column)
	assert.True(t, f.Jobs[0].NormalizeOn())
	assert.Equal(t, "ZONES_", f.Jobs[0].Prefix)

	assert.Equal(t, "region", f.Jobs[1].Column)
	assert.False(t, f.Jobs[1].NormalizeOn())
	assert.Equal(t, "archive", f.Jobs[1].Mode)
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no jobs", "jobs: []", "no jobs defined"},
		{"jobs missing", "defaults:\n  column: x", "no jobs defined"},
		{"missing input", "jobs:\n  - column: zone", "job 1 is missing a 'input' field"},
		{"missing column", "jobs:\n  - input: a.xlsx\n  - input: b.xlsx", "job 1 is missing a 'column' field"},
		{"bad mode", "jobs:\n  - input: a.xlsx\n    column: z\n    mode: pdf", `job 1 has unknown mode "pdf"`},
		{"bad yaml", "jobs: [", "invalid job YAML"},
		{"output on glob", "jobs:\n  - input: in/*.xlsx\n    column: z\n    output: out/result.xlsx", "'output' cannot be used with the glob input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jobs:\n  - input: in/a.xlsx\n    column: z\n    output_dir: out\n"), 0644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "in", "a.xlsx"), f.Jobs[0].Input)
	assert.Equal(t, filepath.Join(dir, "out"), f.Jobs[0].OutputDir)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "job file not found")
}

func TestExpandGlobs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.xlsx", "a.xlsx", "~$a.xlsx", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	got, err := Expand([]Job{
		{Name: "all", Input: filepath.Join(dir, "*"), Column: "z"},
		{Input: "/fixed.xlsx", Column: "z"},
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, filepath.Join(dir, "a.xlsx"), got[0].Input)
	assert.Equal(t, filepath.Join(dir, "b.xlsx"), got[1].Input)
	assert.Equal(t, "", got[0].Name)
	assert.Equal(t, "/fixed.xlsx", got[2].Input)

	_, err = Expand([]Job{{Input: filepath.Join(dir, "*.csv")}})
	assert.ErrorContains(t, err, "no files matched")
}

func TestExecuteWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "drv.xlsx")
	writeWorkbook(t, in, "DAKAR-1", "dakar1", "", "Thiès")

	on := true
	logPath := filepath.Join(dir, "runs.jsonl")
	var grouped group.Stats
	res := Execute(context.Background(), Job{Input: in, Column: "zone_drvnew", Mode: "zip", Normalize: &on}, Env{
		OutputDir: filepath.Join(dir, "out"),
		Audit:     audit.NewLogger(logPath, true),
		Command:   "batch",
		Progress: func(Job) splitter.Options {
			return splitter.Options{OnGrouped: func(s group.Stats) { grouped = s }}
		},
	})
	require.NoError(t, res.Err)
	assert.Equal(t, filepath.Join(dir, "out", "SPLIT_drv.zip"), res.Output)
	assert.Equal(t, group.Stats{GroupCount: 3, TotalRowCount: 4}, res.Stats)
	assert.Equal(t, res.Stats, grouped)
	assert.Equal(t, []string{"DAKAR 1", "INCONNU", "THIS"}, res.Groups)

	zr, err := zip.OpenReader(res.Output)
	require.NoError(t, err)
	defer zr.Close()
	assert.Len(t, zr.File, 3)

	entries, err := audit.ReadEntries(logPath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, res.RunID, entries[0].RunID)
	assert.Equal(t, 3, entries[0].Groups)
	assert.Equal(t, "batch", entries[0].Command)
}

func TestExecuteFailureIsClassified(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "drv.xlsx")
	writeWorkbook(t, in, "A")
	logPath := filepath.Join(dir, "runs.jsonl")

	res := Execute(context.Background(), Job{Input: in, Column: "region"}, Env{
		OutputDir: dir,
		Audit:     audit.NewLogger(logPath, true),
	})
	assert.True(t, errors.Is(res.Err, apperr.ErrMissingColumn))
	assert.Empty(t, res.Output)

	entries, _ := audit.ReadEntries(logPath)
	require.Len(t, entries, 1)
	assert.Equal(t, "missing_column", entries[0].ErrorKind)

	res = Execute(context.Background(), Job{Input: filepath.Join(dir, "nope.xlsx"), Column: "z"}, Env{})
	assert.True(t, errors.Is(res.Err, apperr.ErrUnreadableSource))
}

func TestRunnerIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	var inputs []string
	for _, name := range []string{"a.xlsx", "b.xlsx", "c.xlsx"} {
		p := filepath.Join(dir, name)
		writeWorkbook(t, p, "X", "Y", "X")
		inputs = append(inputs, p)
	}

	jobs := []Job{
		{Input: inputs[0], Column: "zone_drvnew"},
		{Input: inputs[1], Column: "missing"},
		{Input: inputs[2], Column: "zone_drvnew", Prefix: "ZONES_"},
	}
	var done atomic.Int32
	r := &Runner{Concurrency: 2, Env: Env{OutputDir: filepath.Join(dir, "out")}, OnDone: func(int, Result) { done.Add(1) }}
	results := r.Run(context.Background(), jobs)

	require.Len(t, results, 3)
	assert.Equal(t, int32(3), done.Load())
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, Summary{Total: 3, Succeeded: 2, Failed: 1}, Summarize(results))

	got, err := xlsx.ReadFile(results[2].Output, "X")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
	assert.Equal(t, "ZONES_c.xlsx", filepath.Base(results[2].Output))
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Runner{Concurrency: 1}
	results := r.Run(ctx, []Job{{Input: "a.xlsx", Column: "z"}, {Input: "b.xlsx", Column: "z"}})
	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, errors.Is(res.Err, context.Canceled), "got %v", res.Err)
	}
}

func TestExecuteExplicitOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "drv.xlsx")
	writeWorkbook(t, in, "A", "B")

	out := filepath.Join(dir, "reports", "par_zone.xlsx")
	res := Execute(context.Background(), Job{Input: in, Column: "zone_drvnew", Output: out}, Env{OutputDir: filepath.Join(dir, "ignored")})
	require.NoError(t, res.Err)
	assert.Equal(t, out, res.Output)
	assert.FileExists(t, out)
	assert.NoDirExists(t, filepath.Join(dir, "ignored"))
}

func TestExpandRejectsSharedOutput(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.xlsx", "b.xlsx"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	_, err := Expand([]Job{{Input: filepath.Join(dir, "*.xlsx"), Column: "z", Output: filepath.Join(dir, "out", "result.xlsx")}})
	assert.ErrorContains(t, err, "'output' cannot be used with the glob input")

	got, err := Expand([]Job{{Input: filepath.Join(dir, "*.xlsx"), Column: "z", OutputDir: filepath.Join(dir, "out")}})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
