// Package xlsx provides reading and writing capabilities for .xlsx (Excel) files.
package xlsx

import (
	"bytes"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/drsplit/internal/apperr"
	"github.com/klytics/drsplit/internal/table"
)

// Source is an opened workbook from which tables can be loaded.
type Source struct {
	f        *excelize.File
	date1904 bool
}

// OpenFile opens an .xlsx file on disk.
func OpenFile(path string) (*Source, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, apperr.Unreadable(err, "file not found: %s — check that the path is correct", path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperr.Unreadable(err, "could not open %s — is this a valid .xlsx file?", path)
	}
	return newSource(f), nil
}

// Open reads a workbook from r.
func Open(r io.Reader) (*Source, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Unreadable(err, "could not read Excel data")
	}
	return newSource(f), nil
}

// OpenBytes reads a workbook from an in-memory buffer.
func OpenBytes(data []byte) (*Source, error) {
	return Open(bytes.NewReader(data))
}

func newSource(f *excelize.File) *Source {
	s := &Source{f: f}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		s.date1904 = *props.Date1904
	}
	return s
}

// Close releases the workbook.
func (s *Source) Close() error { return s.f.Close() }

// Sheets lists the worksheet names in workbook order.
func (s *Source) Sheets() []string { return s.f.GetSheetList() }

// Resolve returns the worksheet an empty or explicit sheet name refers to.
func (s *Source) Resolve(sheet string) (string, error) {
	sheets := s.f.GetSheetList()
	if len(sheets) == 0 {
		return "", apperr.Unreadable(nil, "workbook has no sheets")
	}
	if sheet == "" {
		return sheets[0], nil
	}
	if !contains(sheets, sheet) {
		return "", apperr.Unreadable(nil, "sheet %q not found — available sheets: %v", sheet, sheets)
	}
	return sheet, nil
}

// Table loads a worksheet as a table. An empty name selects the first sheet.
//
// The first non-blank row is the header. Fully blank data rows are dropped
// and short rows are padded with empty cells.
func (s *Source) Table(sheet string) (*table.Table, error) {
	sheet, err := s.Resolve(sheet)
	if err != nil {
		return nil, err
	}

	formatted, err := s.f.GetRows(sheet)
	if err != nil {
		return nil, apperr.Unreadable(err, "could not read sheet %q", sheet)
	}
	raw, err := s.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperr.Unreadable(err, "could not read sheet %q", sheet)
	}

	headerIdx := -1
	for i, row := range formatted {
		if !blank(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return table.New(nil, nil), nil
	}

	// Cells right of the last header cell still form columns; GetRows trims
	// trailing blanks, so the header can be shorter than a data row.
	width := len(formatted[headerIdx])
	for i := headerIdx + 1; i < len(formatted); i++ {
		if !blank(formatted[i]) && len(formatted[i]) > width {
			width = len(formatted[i])
		}
	}
	header := make([]string, width)
	copy(header, formatted[headerIdx])

	columns := table.UniqueColumns(header)
	var rows []table.Row
	for i := headerIdx + 1; i < len(formatted); i++ {
		if blank(formatted[i]) {
			continue
		}
		row := make(table.Row, len(columns))
		for j := range row {
			if j >= len(formatted[i]) {
				break
			}
			var rawCell string
			if i < len(raw) && j < len(raw[i]) {
				rawCell = raw[i][j]
			}
			v, err := s.cellValue(sheet, j+1, i+1, formatted[i][j], rawCell)
			if err != nil {
				return nil, apperr.Unreadable(err, "could not read sheet %q", sheet)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}

	return table.New(columns, rows), nil
}

func (s *Source) cellValue(sheet string, col, row int, text, raw string) (table.Value, error) {
	if text == "" && raw == "" {
		return table.Value{}, nil
	}

	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return table.Value{}, err
	}
	typ, err := s.f.GetCellType(sheet, cell)
	if err != nil {
		return table.Value{}, err
	}

	switch typ {
	case excelize.CellTypeBool:
		return table.BoolValue(raw == "1" || strings.EqualFold(raw, "true")), nil
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return table.StrValue(text), nil
		}
		if s.isDateCell(sheet, cell) {
			if t, err := excelize.ExcelDateToTime(f, s.date1904); err == nil {
				return table.TimeValue(t), nil
			}
		}
		return table.NumValue(f), nil
	default:
		return table.StrValue(text), nil
	}
}

// isDateCell reports whether the cell's number format displays a date or time.
func (s *Source) isDateCell(sheet, cell string) bool {
	idx, err := s.f.GetCellStyle(sheet, cell)
	if err != nil || idx == 0 {
		return false
	}
	style, err := s.f.GetStyle(idx)
	if err != nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return isDateFormat(*style.CustomNumFmt)
	}
	switch n := style.NumFmt; {
	case n >= 14 && n <= 22, n >= 45 && n <= 47:
		return true
	}
	return false
}

// isDateFormat checks a custom number format code for date/time tokens,
// ignoring quoted literals and bracketed sections like [Red].
func isDateFormat(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		default:
			b.WriteRune(r)
		}
	}
	return strings.ContainsAny(b.String(), "ydhms")
}

// ReadFile loads one sheet of an .xlsx file as a table.
func ReadFile(path, sheet string) (*table.Table, error) {
	src, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return src.Table(sheet)
}

// ReadBytes loads one sheet of an in-memory workbook as a table.
func ReadBytes(data []byte, sheet string) (*table.Table, error) {
	src, err := OpenBytes(data)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return src.Table(sheet)
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
