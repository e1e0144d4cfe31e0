// Package group partitions a table into ordered groups keyed by one column.
package group

import (
	"github.com/klytics/drsplit/internal/apperr"
	"github.com/klytics/drsplit/internal/normalize"
	"github.com/klytics/drsplit/internal/table"
)

// KeyFunc maps a grouping cell to its comparison key. Rows whose keys are
// equal strings land in the same group.
type KeyFunc func(table.Value) string

// Raw groups by exact cell value. All missing cells share one group.
func Raw(v table.Value) string { return v.Identity() }

// Normalized returns a KeyFunc grouping by the canonical key of n.
func Normalized(n *normalize.Normalizer) KeyFunc {
	return n.Key
}

// Group is one partition of the input table.
type Group struct {
	// Key is the comparison key produced by the KeyFunc.
	Key string
	// Value is the grouping cell of the first row in the group.
	Value table.Value
	// Missing reports that the grouping cell of this group is empty.
	Missing bool
	// Rows are the member rows in input order. They share storage with the table.
	Rows []table.Row
}

// Len returns the number of rows in the group.
func (g *Group) Len() int { return len(g.Rows) }

// By partitions t on column using key. Groups come out in first-appearance
// order of their key and every row lands in exactly one group.
func By(t *table.Table, column string, key KeyFunc) ([]Group, error) {
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return nil, apperr.MissingColumn(column, t.Columns)
	}
	if key == nil {
		key = Raw
	}

	var groups []Group
	index := make(map[string]int)
	for _, row := range t.Rows {
		v := row[idx]
		k := key(v)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k, Value: v, Missing: v.IsMissing()})
		}
		groups[i].Rows = append(groups[i].Rows, row)
	}
	return groups, nil
}

// Stats summarizes a grouping.
type Stats struct {
	GroupCount    int `json:"groupCount"`
	TotalRowCount int `json:"totalRowCount"`
}

// Summarize counts groups and rows.
func Summarize(groups []Group) Stats {
	s := Stats{GroupCount: len(groups)}
	for i := range groups {
		s.TotalRowCount += groups[i].Len()
	}
	return s
}

// Sizes returns the row count of each group, in group order.
func Sizes(groups []Group) []float64 {
	out := make([]float64, len(groups))
	for i := range groups {
		out[i] = float64(groups[i].Len())
	}
	return out
}
