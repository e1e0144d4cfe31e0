package xlsx

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/drsplit/internal/apperr"
	"github.com/klytics/drsplit/internal/table"
)

func TestWriteAndRead(t *testing.T) {
	// Create a workbook, write it, then read it back
	sheets := []Sheet{
		{
			Name:    "Ventes",
			Columns: []string{"zone", "montant", "actif", "date"},
			Rows: []table.Row{
				{table.StrValue("DAKAR-1"), table.NumValue(1250), table.BoolValue(true), table.TimeValue(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))},
				{table.StrValue("Thies"), table.NumValue(2.5), table.BoolValue(false), table.Value{}},
			},
		},
	}

	data, err := WriteBytes(sheets)
	if err != nil {
		t.Fatalf("WriteBytes failed: %v", err)
	}

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.xlsx")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	tbl, err := ReadFile(path, "Ventes")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if got := strings.Join(tbl.Columns, ","); got != "zone,montant,actif,date" {
		t.Errorf("unexpected columns %q", got)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}

	row := tbl.Rows[0]
	if row[0].Kind != table.String || row[0].Str != "DAKAR-1" {
		t.Errorf("expected text DAKAR-1, got %+v", row[0])
	}
	if row[1].Kind != table.Number || row[1].Num != 1250 {
		t.Errorf("expected number 1250, got %+v", row[1])
	}
	if row[2].Kind != table.Bool || !row[2].Bool {
		t.Errorf("expected true, got %+v", row[2])
	}
	if row[3].Kind != table.Time || row[3].Text() != "2024-03-01" {
		t.Errorf("expected date 2024-03-01, got %+v", row[3])
	}
	if !tbl.Rows[1][3].IsMissing() {
		t.Errorf("expected missing date, got %+v", tbl.Rows[1][3])
	}
}

func TestReadDefaultsToFirstSheet(t *testing.T) {
	data, err := WriteBytes([]Sheet{
		{Name: "Premier", Columns: []string{"a"}, Rows: []table.Row{{table.StrValue("x")}}},
		{Name: "Second", Columns: []string{"b"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	src, err := OpenBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if got := src.Sheets(); len(got) != 2 || got[1] != "Second" {
		t.Errorf("unexpected sheets %v", got)
	}

	tbl, err := src.Table("")
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Columns[0] != "a" {
		t.Errorf("expected first sheet, got columns %v", tbl.Columns)
	}
}

func TestReadMissingSheet(t *testing.T) {
	data, err := WriteBytes([]Sheet{{Name: "One", Columns: []string{"a"}}})
	if err != nil {
		t.Fatal(err)
	}

	_, err = ReadBytes(data, "Missing")
	if !errors.Is(err, apperr.ErrUnreadableSource) {
		t.Errorf("expected unreadable source, got %v", err)
	}
}

func TestReadGarbage(t *testing.T) {
	_, err := ReadBytes([]byte("not a workbook"), "")
	if !errors.Is(err, apperr.ErrUnreadableSource) {
		t.Errorf("expected unreadable source, got %v", err)
	}
}

func TestReadFileNotFound(t *testing.T) {
	_, err := ReadFile("/nonexistent/file.xlsx", "")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReadSkipsBlankRowsAndNamesHeaders(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	f.SetCellValue(sheet, "A2", "zone")
	f.SetCellValue(sheet, "C2", "zone")
	f.SetCellValue(sheet, "A3", "DAKAR")
	f.SetCellValue(sheet, "A5", "THIES")
	f.SetCellValue(sheet, "B5", 3)

	path := filepath.Join(t.TempDir(), "blank.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	tbl, err := ReadFile(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(tbl.Columns, "|"); got != "zone|Unnamed: 1|zone.1" {
		t.Errorf("unexpected columns %q", got)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}
	if tbl.Rows[1][1].Kind != table.Number || tbl.Rows[1][1].Num != 3 {
		t.Errorf("expected number 3, got %+v", tbl.Rows[1][1])
	}
	if !tbl.Rows[0][2].IsMissing() {
		t.Errorf("expected padded empty cell, got %+v", tbl.Rows[0][2])
	}
}

func TestWriteRejectsPathologicalValues(t *testing.T) {
	tests := []struct {
		name  string
		value table.Value
		want  error
	}{
		{"nan", table.NumValue(math.NaN()), ErrNonFiniteNumber},
		{"inf", table.NumValue(math.Inf(1)), ErrNonFiniteNumber},
		{"long text", table.StrValue(strings.Repeat("x", excelize.TotalCellChars+1)), ErrCellTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := WriteBytes([]Sheet{{
				Name:    "S",
				Columns: []string{"a", "b"},
				Rows:    []table.Row{{table.StrValue("ok"), tt.value}},
			}})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var cellErr *CellError
			if !errors.As(err, &cellErr) || cellErr.Cell != "B2" {
				t.Errorf("expected cell B2, got %v", err)
			}
		})
	}
}

func TestWriteNoSheets(t *testing.T) {
	if _, err := WriteBytes(nil); !errors.Is(err, ErrNoSheetsToWrite) {
		t.Errorf("expected ErrNoSheetsToWrite, got %v", err)
	}
}

func TestIsDateFormat(t *testing.T) {
	tests := map[string]bool{
		"yyyy-mm-dd":       true,
		"hh:mm":            true,
		"dd/mm/yyyy hh:mm": true,
		"0.00":             false,
		`#,##0 "days"`:     false,
		"[Red]0.00":        false,
		"General":          false,
	}
	for code, want := range tests {
		if got := isDateFormat(code); got != want {
			t.Errorf("isDateFormat(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestReadKeepsCellsBeyondHeader(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	f.SetCellValue(sheet, "A1", "zone")
	f.SetCellValue(sheet, "B1", "amount")
	f.SetCellValue(sheet, "A2", "DAKAR")
	f.SetCellValue(sheet, "B2", 10)
	f.SetCellValue(sheet, "C2", "note-in-C")
	f.SetCellValue(sheet, "A3", "THIES")

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	tbl, err := ReadBytes(buf.Bytes(), "")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(tbl.Columns, "|"); got != "zone|amount|Unnamed: 2" {
		t.Errorf("unexpected columns %q", got)
	}
	if got := tbl.Rows[0][2]; got.Kind != table.String || got.Str != "note-in-C" {
		t.Errorf("expected note-in-C in third column, got %+v", got)
	}
	if len(tbl.Rows[1]) != 3 || !tbl.Rows[1][2].IsMissing() {
		t.Errorf("expected short row padded to 3 cells, got %+v", tbl.Rows[1])
	}
}
