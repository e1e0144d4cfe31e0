// Package splitter is the single entry point of the pipeline: it validates
// a request, groups an already-loaded table and renders the artifact.
//
// Split does no I/O. Each call works on its own table and buffers, so
// concurrent calls need no coordination as long as they do not share a
// *table.Table that someone else mutates.
package splitter

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/klytics/drsplit/internal/apperr"
	"github.com/klytics/drsplit/internal/artifact"
	"github.com/klytics/drsplit/internal/group"
	"github.com/klytics/drsplit/internal/logger"
	"github.com/klytics/drsplit/internal/naming"
	"github.com/klytics/drsplit/internal/normalize"
	"github.com/klytics/drsplit/internal/table"
)

// Mode selects the artifact shape.
type Mode string

const (
	// Workbook writes one sheet per group in a single workbook.
	Workbook Mode = "workbook"
	// Archive writes one single-sheet workbook per group into a zip.
	Archive Mode = "archive"
)

// DefaultPrefix is prepended to suggested output names.
const DefaultPrefix = "SPLIT_"

// ParseMode accepts the mode names used on the command line and in job files.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "workbook", "sheets", "xlsx":
		return Workbook, nil
	case "archive", "zip", "files":
		return Archive, nil
	default:
		return "", apperr.Invalid("unknown output mode %q — use workbook or archive", s)
	}
}

// Ext returns the file extension of artifacts in this mode.
func (m Mode) Ext() string {
	if m == Archive {
		return ".zip"
	}
	return ".xlsx"
}

// Request describes one split.
type Request struct {
	Column string
	Mode   Mode
	// Normalize groups by canonical key instead of exact value.
	Normalize   bool
	FoldAccents bool
	// SourceName is the input file name, used to suggest the output name.
	SourceName string
	// Prefix defaults to DefaultPrefix.
	Prefix    string
	Fallbacks naming.Fallbacks
}

// Options are the caller hooks of a split.
type Options struct {
	// OnGrouped fires once grouping is done, before any rendering.
	OnGrouped func(group.Stats)
	// OnGroupWritten fires after each group is rendered.
	OnGroupWritten func(done, total int, name string)
	Log            *logger.Logger
	Now            func() time.Time
}

// Result is a finished split.
type Result struct {
	Artifact artifact.NamedBuffer `json:"artifact"`
	Stats    group.Stats          `json:"stats"`
	// Groups lists display labels in output order.
	Groups []string `json:"groups"`
}

// Split groups t on req.Column and renders the artifact selected by req.Mode.
// Either the full artifact is returned or an error; never both.
func Split(t *table.Table, req Request, opts Options) (*Result, error) {
	log := logger.OrNop(opts.Log)

	if strings.TrimSpace(req.Column) == "" {
		return nil, apperr.Invalid("no grouping column given")
	}
	if !t.HasColumn(req.Column) {
		return nil, apperr.MissingColumn(req.Column, t.Columns)
	}
	mode := req.Mode
	if mode == "" {
		mode = Workbook
	}
	if mode != Workbook && mode != Archive {
		return nil, apperr.Invalid("unknown output mode %q — use workbook or archive", mode)
	}
	if t.Len() == 0 {
		return nil, apperr.Invalid("sheet has no data rows to split")
	}

	key := group.Raw
	label := artifact.RawLabel
	if req.Normalize {
		key = group.Normalized(normalize.New(normalize.WithAccentFolding(req.FoldAccents)))
		label = func(g *group.Group) (string, bool) { return normalize.Restore(g.Key), false }
	}

	start := time.Now()
	groups, err := group.By(t, req.Column, key)
	if err != nil {
		return nil, err
	}
	stats := group.Summarize(groups)
	log.Debug().
		Str("column", req.Column).
		Bool("normalize", req.Normalize).
		Int("groups", stats.GroupCount).
		Int("rows", stats.TotalRowCount).
		Dur("took", time.Since(start)).
		Msg("grouped rows")
	if opts.OnGrouped != nil {
		opts.OnGrouped(stats)
	}

	b := &artifact.Builder{
		Columns:   t.Columns,
		Label:     label,
		Fallbacks: req.Fallbacks,
		Progress:  opts.OnGroupWritten,
		Log:       opts.Log,
		Now:       opts.Now,
	}

	name := SuggestName(req.Prefix, req.SourceName, req.Column, mode)
	var buf artifact.NamedBuffer
	if mode == Archive {
		buf, err = b.Archive(groups, name)
	} else {
		buf, err = b.Workbook(groups, name)
	}
	if err != nil {
		return nil, err
	}

	labels := make([]string, len(groups))
	for i := range groups {
		l, missing := label(&groups[i])
		if missing {
			l = req.Fallbacks.WithDefaults().Missing
		}
		labels[i] = l
	}

	log.Debug().Str("name", buf.Name).Int("bytes", buf.Size()).Msg("artifact ready")
	return &Result{Artifact: buf, Stats: stats, Groups: labels}, nil
}

// SuggestName derives the artifact file name: prefix plus the source file
// name, with the extension swapped to match mode. Without a source name the
// column name stands in.
func SuggestName(prefix, source, column string, mode Mode) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	base := filepath.Base(strings.TrimSpace(source))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = column
	} else {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	base = naming.FileName(base, naming.Fallbacks{Empty: "table"})
	return prefix + base + mode.Ext()
}
