// Package table holds the in-memory tabular model the splitter works on.
package table

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the scalar type of a cell.
type Kind uint8

const (
	// Empty marks a missing cell.
	Empty Kind = iota
	String
	Number
	Bool
	Time
)

// Value is one cell. The zero Value is empty.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Bool bool
	Time time.Time
}

// StrValue returns a text cell. An empty string is an empty cell.
func StrValue(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{Kind: String, Str: s}
}

// NumValue returns a numeric cell.
func NumValue(f float64) Value { return Value{Kind: Number, Num: f} }

// BoolValue returns a boolean cell.
func BoolValue(b bool) Value { return Value{Kind: Bool, Bool: b} }

// TimeValue returns a date/time cell.
func TimeValue(t time.Time) Value { return Value{Kind: Time, Time: t} }

// IsMissing reports whether the cell holds no data.
func (v Value) IsMissing() bool {
	return v.Kind == Empty || (v.Kind == String && v.Str == "")
}

// Text is the textual form of the value. Numbers use the shortest decimal
// representation, so 1.0 renders as "1".
func (v Value) Text() string {
	switch v.Kind {
	case String:
		return v.Str
	case Number:
		if math.IsInf(v.Num, 0) || math.IsNaN(v.Num) {
			return strconv.FormatFloat(v.Num, 'g', -1, 64)
		}
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case Bool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case Time:
		if v.Time.Hour() == 0 && v.Time.Minute() == 0 && v.Time.Second() == 0 {
			return v.Time.Format(time.DateOnly)
		}
		return v.Time.Format(time.DateTime)
	default:
		return ""
	}
}

// Identity is a comparison key that is equal for two values iff they are
// exactly equal: same kind and same content. All missing cells share one identity.
func (v Value) Identity() string {
	if v.IsMissing() {
		return "\x00"
	}
	switch v.Kind {
	case Number:
		return "n:" + strconv.FormatFloat(v.Num, 'g', -1, 64)
	case Bool:
		return "b:" + strconv.FormatBool(v.Bool)
	case Time:
		return "t:" + v.Time.Format(time.RFC3339Nano)
	default:
		return "s:" + v.Str
	}
}

// Any returns the value as a Go scalar for writers: nil, string, float64,
// bool or time.Time.
func (v Value) Any() any {
	switch v.Kind {
	case String:
		if v.Str == "" {
			return nil
		}
		return v.Str
	case Number:
		return v.Num
	case Bool:
		return v.Bool
	case Time:
		return v.Time
	default:
		return nil
	}
}

// Row is one record, positionally aligned with Table.Columns.
type Row []Value

// Table is an ordered set of rows sharing one column set. It is read-only
// once constructed.
type Table struct {
	Columns []string
	Rows    []Row
}

// New builds a table, padding or truncating every row to the column count.
func New(columns []string, rows []Row) *Table {
	t := &Table{Columns: columns, Rows: make([]Row, len(rows))}
	for i, r := range rows {
		switch {
		case len(r) == len(columns):
			t.Rows[i] = r
		case len(r) > len(columns):
			t.Rows[i] = r[:len(columns)]
		default:
			padded := make(Row, len(columns))
			copy(padded, r)
			t.Rows[i] = padded
		}
	}
	return t
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether name is one of the table's columns.
func (t *Table) HasColumn(name string) bool { return t.ColumnIndex(name) >= 0 }

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Head returns up to n leading rows.
func (t *Table) Head(n int) []Row {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.Rows[:n]
}

// UniqueColumns makes header names usable as column keys: blank names become
// "Unnamed: <index>" and repeats get ".1", ".2", ... suffixes.
func UniqueColumns(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if seen[name] == 0 {
			seen[name] = 1
			out[i] = name
			continue
		}
		base := name
		for n := seen[base]; ; n++ {
			cand := base + "." + strconv.Itoa(n)
			if seen[cand] == 0 {
				seen[base] = n + 1
				seen[cand] = 1
				name = cand
				break
			}
		}
		out[i] = name
	}
	return out
}
