// Package output provides formatting utilities for CLI output.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

// MaxCellWidth caps table columns, in terminal cells.
const MaxCellWidth = 40

// Writer handles formatted output to a destination.
type Writer struct {
	dest io.Writer
}

// NewWriter creates a writer on dest, or stdout when dest is nil.
func NewWriter(dest io.Writer) *Writer {
	if dest == nil {
		dest = os.Stdout
	}
	return &Writer{dest: dest}
}

// WriteJSON encodes a value as pretty-printed JSON.
func (w *Writer) WriteJSON(v any) error {
	enc := json.NewEncoder(w.dest)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteLn writes a line of text.
func (w *Writer) WriteLn(s string) error {
	_, err := fmt.Fprintln(w.dest, s)
	return err
}

// Table renders header and rows as an aligned grid. Widths are measured in
// terminal cells so accented and wide characters line up.
func (w *Writer) Table(header []string, rows [][]string) {
	dim := color.New(color.FgHiBlack)
	bold := color.New(color.Bold)

	widths := make([]int, len(header))
	for j, h := range header {
		widths[j] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for j := 0; j < len(row) && j < len(widths); j++ {
			widths[j] = max(widths[j], runewidth.StringWidth(row[j]))
		}
	}
	for j := range widths {
		widths[j] = min(max(widths[j], 3), MaxCellWidth)
	}

	w.row(header, widths, bold)
	fmt.Fprint(w.dest, "  ")
	for j, n := range widths {
		if j > 0 {
			dim.Fprint(w.dest, "+-")
		}
		dim.Fprint(w.dest, strings.Repeat("-", n+1))
	}
	fmt.Fprintln(w.dest)

	for _, row := range rows {
		w.row(row, widths, nil)
	}
}

func (w *Writer) row(cells []string, widths []int, style *color.Color) {
	fmt.Fprint(w.dest, "  ")
	for j, n := range widths {
		if j > 0 {
			fmt.Fprint(w.dest, "| ")
		}
		cell := ""
		if j < len(cells) {
			cell = strings.ReplaceAll(cells[j], "\n", " ")
		}
		cell = runewidth.FillRight(runewidth.Truncate(cell, n, "~"), n+1)
		if style != nil {
			style.Fprint(w.dest, cell)
		} else {
			fmt.Fprint(w.dest, cell)
		}
	}
	fmt.Fprintln(w.dest)
}

// WriteError writes an error message to stderr.
func WriteError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
