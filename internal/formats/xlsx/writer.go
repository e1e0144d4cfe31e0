package xlsx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/drsplit/internal/table"
)

// Errors for cell values the workbook format cannot store.
var (
	ErrCellTooLong     = fmt.Errorf("text exceeds %d characters", excelize.TotalCellChars)
	ErrNonFiniteNumber = errors.New("number is NaN or infinite")
	ErrEmptySheetName  = errors.New("sheet name is empty")
	ErrNoSheetsToWrite = errors.New("workbook has no sheets")
)

// Sheet is one worksheet to write: a header row followed by data rows.
type Sheet struct {
	Name    string
	Columns []string
	Rows    []table.Row
}

// CellError locates an unwritable cell.
type CellError struct {
	Sheet string
	Cell  string
	Err   error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("sheet %q cell %s: %v", e.Sheet, e.Cell, e.Err)
}

func (e *CellError) Unwrap() error { return e.Err }

// WriteOption configures Write.
type WriteOption func(*writeConfig)

type writeConfig struct {
	afterSheet func(i int, name string)
}

// AfterSheet registers fn to run once each sheet's rows are written.
func AfterSheet(fn func(i int, name string)) WriteOption {
	return func(c *writeConfig) { c.afterSheet = fn }
}

// Write renders sheets as a single workbook into w. Sheet names must
// already be valid and unique.
func Write(w io.Writer, sheets []Sheet, opts ...WriteOption) error {
	if len(sheets) == 0 {
		return ErrNoSheetsToWrite
	}

	var cfg writeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		if sheet.Name == "" {
			return ErrEmptySheetName
		}

		if i == 0 {
			// Rename default sheet
			defaultSheet := f.GetSheetName(0)
			if err := f.SetSheetName(defaultSheet, sheet.Name); err != nil {
				return fmt.Errorf("could not rename sheet to %q: %w", sheet.Name, err)
			}
		} else {
			if _, err := f.NewSheet(sheet.Name); err != nil {
				return fmt.Errorf("could not create sheet %q: %w", sheet.Name, err)
			}
		}

		if err := writeSheet(f, sheet); err != nil {
			return err
		}
		if cfg.afterSheet != nil {
			cfg.afterSheet(i, sheet.Name)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("could not encode workbook: %w", err)
	}
	return nil
}

// WriteBytes renders sheets as a single workbook and returns its bytes.
func WriteBytes(sheets []Sheet) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, sheets); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet Sheet) error {
	header := make([]any, len(sheet.Columns))
	for i, c := range sheet.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet.Name, "A1", &header); err != nil {
		return fmt.Errorf("could not write header of sheet %q: %w", sheet.Name, err)
	}

	cells := make([]any, len(sheet.Columns))
	for r, row := range sheet.Rows {
		for c := range cells {
			cells[c] = nil
			if c >= len(row) {
				continue
			}
			if err := checkValue(row[c]); err != nil {
				cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
				return &CellError{Sheet: sheet.Name, Cell: cell, Err: err}
			}
			cells[c] = row[c].Any()
		}
		start, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return fmt.Errorf("invalid cell coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet.Name, start, &cells); err != nil {
			return fmt.Errorf("could not write row %d of sheet %q: %w", r+2, sheet.Name, err)
		}
	}
	return nil
}

func checkValue(v table.Value) error {
	switch v.Kind {
	case table.String:
		if utf8.RuneCountInString(v.Str) > excelize.TotalCellChars {
			return ErrCellTooLong
		}
	case table.Number:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return ErrNonFiniteNumber
		}
	}
	return nil
}
