// Package jobs runs splits described in YAML job files, and the single
// load-split-save unit shared by the CLI, the watcher and batch runs.
package jobs

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// File is a parsed job file.
//
//	defaults:
//	  column: zone_drvnew
//	  normalize: true
//	jobs:
//	  - input: exports/*.xlsx
//	    mode: archive
//	    output_dir: out/
type File struct {
	Defaults Job   `yaml:"defaults" validate:"-"`
	Jobs     []Job `yaml:"jobs" validate:"required,min=1,dive"`
}

// Job is one split to run. Input may be a glob; Expand turns it into one
// job per matching file.
type Job struct {
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Input       string `yaml:"input" json:"input" validate:"required"`
	Sheet       string `yaml:"sheet,omitempty" json:"sheet,omitempty"`
	Column      string `yaml:"column" json:"column" validate:"required"`
	Mode        string `yaml:"mode,omitempty" json:"mode,omitempty" validate:"omitempty,splitmode"`
	Normalize   *bool  `yaml:"normalize,omitempty" json:"normalize,omitempty"`
	FoldAccents *bool  `yaml:"fold_accents,omitempty" json:"foldAccents,omitempty"`
	OutputDir   string `yaml:"output_dir,omitempty" json:"outputDir,omitempty"`
	// Output, when set, is the artifact path and overrides OutputDir and Prefix.
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

// Label names the job in reports.
func (j Job) Label() string {
	if j.Name != "" {
		return j.Name
	}
	return filepath.Base(j.Input)
}

// NormalizeOn reports whether normalized grouping is requested.
func (j Job) NormalizeOn() bool { return j.Normalize != nil && *j.Normalize }

// FoldAccentsOn reports whether accent folding is requested.
func (j Job) FoldAccentsOn() bool { return j.FoldAccents != nil && *j.FoldAccents }

// withDefaults fills unset fields of j from d.
func (j Job) withDefaults(d Job) Job {
	if j.Sheet == "" {
		j.Sheet = d.Sheet
	}
	if j.Column == "" {
		j.Column = d.Column
	}
	if j.Mode == "" {
		j.Mode = d.Mode
	}
	if j.Normalize == nil {
		j.Normalize = d.Normalize
	}
	if j.FoldAccents == nil {
		j.FoldAccents = d.FoldAccents
	}
	if j.OutputDir == "" {
		j.OutputDir = d.OutputDir
	}
	if j.Prefix == "" {
		j.Prefix = d.Prefix
	}
	return j
}

var (
	vOnce sync.Once
	v     *validator.Validate
)

func validate() *validator.Validate {
	vOnce.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())

		// prefer yaml tag names in messages
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("yaml")
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			if tag == "" || tag == "-" {
				return fld.Name
			}
			return tag
		})

		_ = v.RegisterValidation("splitmode", func(fl validator.FieldLevel) bool {
			switch strings.ToLower(fl.Field().String()) {
			case "workbook", "sheets", "xlsx", "archive", "zip", "files":
				return true
			}
			return false
		})
	})
	return v
}

// Load reads and validates a job file. Relative paths inside it are
// resolved against the file's directory.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("job file not found: %s — check that the path is correct", path)
		}
		return nil, fmt.Errorf("could not read job file %s: %w", path, err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i := range f.Jobs {
		f.Jobs[i].Input = resolve(base, f.Jobs[i].Input)
		if f.Jobs[i].OutputDir != "" {
			f.Jobs[i].OutputDir = resolve(base, f.Jobs[i].OutputDir)
		}
		f.Jobs[i].Output = resolve(base, f.Jobs[i].Output)
	}
	return f, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Parse parses a job file from YAML bytes and applies defaults.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid job YAML: %w", err)
	}

	for i := range f.Jobs {
		f.Jobs[i] = f.Jobs[i].withDefaults(f.Defaults)
	}

	if err := validate().Struct(&f); err != nil {
		return nil, describe(err)
	}
	for i, j := range f.Jobs {
		if err := checkGlobOutput(i, j); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

func isGlob(input string) bool { return strings.ContainsAny(input, "*?[") }

// checkGlobOutput rejects a single output path shared by every file a glob matches.
func checkGlobOutput(i int, j Job) error {
	if j.Output != "" && isGlob(j.Input) {
		return fmt.Errorf("job %d: 'output' cannot be used with the glob input %q — use output_dir instead", i+1, j.Input)
	}
	return nil
}

// describe turns the first validation failure into a readable message.
func describe(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]

	where := "job file"
	if ns := fe.Namespace(); strings.Contains(ns, "jobs[") {
		var idx int
		if _, scanErr := fmt.Sscanf(ns[strings.Index(ns, "jobs[")+5:], "%d]", &idx); scanErr == nil {
			where = fmt.Sprintf("job %d", idx+1)
		}
	}

	switch fe.Tag() {
	case "required":
		if fe.Field() == "jobs" {
			return fmt.Errorf("job file has no jobs defined")
		}
		return fmt.Errorf("%s is missing a '%s' field", where, fe.Field())
	case "min":
		return fmt.Errorf("job file has no jobs defined")
	case "splitmode":
		return fmt.Errorf("%s has unknown mode %q — use workbook or archive", where, fe.Value())
	default:
		return fmt.Errorf("%s: invalid %s", where, fe.Field())
	}
}

// Expand replaces every job whose input is a glob pattern with one job per
// matching file, in lexical order. A pattern matching nothing is an error.
func Expand(jobs []Job) ([]Job, error) {
	var out []Job
	for i, j := range jobs {
		if !isGlob(j.Input) {
			out = append(out, j)
			continue
		}
		if err := checkGlobOutput(i, j); err != nil {
			return nil, err
		}
		matches, err := filepath.Glob(j.Input)
		if err != nil {
			return nil, fmt.Errorf("job %d: invalid glob pattern %q: %w", i+1, j.Input, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("job %d: no files matched pattern %q", i+1, j.Input)
		}
		for _, m := range matches {
			if skipInput(m) {
				continue
			}
			jm := j
			jm.Input = m
			jm.Name = ""
			out = append(out, jm)
		}
	}
	return out, nil
}

// skipInput reports files a glob should not pick up: Excel lock files and
// anything that is not a workbook.
func skipInput(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, "~$") || !strings.EqualFold(filepath.Ext(base), ".xlsx")
}
