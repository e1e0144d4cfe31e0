// Package inspect profiles a worksheet before it is split: its columns,
// the distinct values of the grouping column and how evenly rows would be
// distributed across groups.
package inspect

import (
	"github.com/montanaflynn/stats"

	"github.com/klytics/drsplit/internal/apperr"
	"github.com/klytics/drsplit/internal/formats/xlsx"
	"github.com/klytics/drsplit/internal/group"
	"github.com/klytics/drsplit/internal/naming"
	"github.com/klytics/drsplit/internal/normalize"
	"github.com/klytics/drsplit/internal/table"
)

// DefaultPreviewRows is the number of leading rows included in a profile.
const DefaultPreviewRows = 5

// Options selects what to profile.
type Options struct {
	// Column, when set, adds value counts and group sizes for that column.
	Column      string
	Normalize   bool
	FoldAccents bool
	// PreviewRows defaults to DefaultPreviewRows; negative disables the preview.
	PreviewRows int
	Fallbacks   naming.Fallbacks
}

// ValueCount is one distinct grouping value and how many rows carry it.
type ValueCount struct {
	Label   string `json:"label"`
	Count   int    `json:"count"`
	Missing bool   `json:"missing,omitempty"`
	// Sheet is the worksheet name the group would get in workbook mode.
	Sheet string `json:"sheet"`
}

// SizeStats describes the distribution of group sizes.
type SizeStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// Report is the result of profiling one sheet.
type Report struct {
	Sheets  []string     `json:"sheets,omitempty"`
	Sheet   string       `json:"sheet,omitempty"`
	Columns []string     `json:"columns"`
	Rows    int          `json:"rows"`
	Preview [][]string   `json:"preview,omitempty"`
	Column  string       `json:"column,omitempty"`
	Values  []ValueCount `json:"values,omitempty"`
	Groups  *group.Stats `json:"groups,omitempty"`
	Sizes   *SizeStats   `json:"sizes,omitempty"`
}

// Profile inspects a loaded table.
func Profile(t *table.Table, opts Options) (*Report, error) {
	r := &Report{Columns: t.Columns, Rows: t.Len()}

	n := opts.PreviewRows
	if n == 0 {
		n = DefaultPreviewRows
	}
	if n > 0 {
		for _, row := range t.Head(n) {
			cells := make([]string, len(row))
			for j, v := range row {
				cells[j] = v.Text()
			}
			r.Preview = append(r.Preview, cells)
		}
	}

	if opts.Column == "" {
		return r, nil
	}
	r.Column = opts.Column

	key := group.Raw
	if opts.Normalize {
		key = group.Normalized(normalize.New(normalize.WithAccentFolding(opts.FoldAccents)))
	}
	groups, err := group.By(t, opts.Column, key)
	if err != nil {
		return nil, err
	}

	fb := opts.Fallbacks.WithDefaults()
	sheets := naming.NewNamer(naming.Sheet, fb)
	for i := range groups {
		g := &groups[i]
		vc := ValueCount{Label: g.Value.Text(), Count: g.Len(), Missing: g.Missing}
		if opts.Normalize {
			vc.Label, vc.Missing = normalize.Restore(g.Key), false
		}
		vc.Sheet = sheets.Name(vc.Label, vc.Missing)
		if vc.Missing {
			vc.Label = fb.Missing
		}
		r.Values = append(r.Values, vc)
	}

	s := group.Summarize(groups)
	r.Groups = &s
	if len(groups) > 0 {
		sizes, err := sizeStats(group.Sizes(groups))
		if err != nil {
			return nil, err
		}
		r.Sizes = sizes
	}
	return r, nil
}

func sizeStats(sizes stats.Float64Data) (*SizeStats, error) {
	var s SizeStats
	var err error
	if s.Min, err = sizes.Min(); err != nil {
		return nil, err
	}
	if s.Max, err = sizes.Max(); err != nil {
		return nil, err
	}
	if s.Mean, err = sizes.Mean(); err != nil {
		return nil, err
	}
	if s.Median, err = sizes.Median(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Source profiles one sheet of an opened workbook. An empty sheet selects
// the first one.
func Source(src *xlsx.Source, sheet string, opts Options) (*Report, error) {
	name, err := src.Resolve(sheet)
	if err != nil {
		return nil, err
	}
	t, err := src.Table(name)
	if err != nil {
		return nil, err
	}
	if len(t.Columns) == 0 {
		return nil, apperr.Unreadable(nil, "sheet %q is empty", name)
	}
	r, err := Profile(t, opts)
	if err != nil {
		return nil, err
	}
	r.Sheets = src.Sheets()
	r.Sheet = name
	return r, nil
}
