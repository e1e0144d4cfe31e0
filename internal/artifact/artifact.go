// Package artifact renders groups into the deliverable: one multi-sheet
// workbook, or a zip archive holding one single-sheet workbook per group.
package artifact

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klytics/drsplit/internal/apperr"
	"github.com/klytics/drsplit/internal/formats/xlsx"
	"github.com/klytics/drsplit/internal/group"
	"github.com/klytics/drsplit/internal/logger"
	"github.com/klytics/drsplit/internal/naming"
)

// Content types of the two artifact shapes.
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeZIP  = "application/zip"
)

// NamedBuffer is a finished artifact: bytes plus a suggested file name.
type NamedBuffer struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
}

// Reader returns a reader positioned at the start of the buffer.
func (b NamedBuffer) Reader() *bytes.Reader { return bytes.NewReader(b.Data) }

// Size returns the artifact length in bytes.
func (b NamedBuffer) Size() int { return len(b.Data) }

// WriteTo writes the whole artifact to w.
func (b NamedBuffer) WriteTo(w io.Writer) (int64, error) {
	return b.Reader().WriteTo(w)
}

// Save writes the artifact as dir/Name and returns the path.
func (b NamedBuffer) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("could not create output directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, b.Name)
	if err := os.WriteFile(path, b.Data, 0644); err != nil {
		return "", fmt.Errorf("could not write %s: %w", path, err)
	}
	return path, nil
}

// LabelFunc returns the display label of a group and whether it stands for
// missing grouping values.
type LabelFunc func(g *group.Group) (label string, missing bool)

// RawLabel labels a group by the text of its grouping value.
func RawLabel(g *group.Group) (string, bool) { return g.Value.Text(), g.Missing }

// Builder renders groups. The zero value is usable with RawLabel.
type Builder struct {
	// Columns is the header written to every sheet, in table order.
	Columns   []string
	Label     LabelFunc
	Fallbacks naming.Fallbacks
	// Progress, when set, is called after each group is rendered.
	Progress func(done, total int, name string)
	Log      *logger.Logger
	// Now stamps archive members; defaults to time.Now.
	Now func() time.Time
}

func (b *Builder) label(g *group.Group) (string, bool) {
	if b.Label == nil {
		return RawLabel(g)
	}
	return b.Label(g)
}

// errorLabel names a group in failures; the missing-value group has no text
// of its own.
func errorLabel(label string, missing bool, fb naming.Fallbacks) string {
	if missing {
		return fb.Missing
	}
	return label
}

func (b *Builder) progress(done, total int, name string) {
	if b.Progress != nil {
		b.Progress(done, total, name)
	}
}

func (b *Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

// Workbook writes every group as one sheet of a single workbook, in group order.
func (b *Builder) Workbook(groups []group.Group, name string) (NamedBuffer, error) {
	log := logger.OrNop(b.Log)
	fb := b.Fallbacks.WithDefaults()
	namer := naming.NewNamer(naming.Sheet, fb)

	sheets := make([]xlsx.Sheet, len(groups))
	labels := make(map[string]string, len(groups))
	for i := range groups {
		label, missing := b.label(&groups[i])
		sheetName := namer.Name(label, missing)
		labels[sheetName] = errorLabel(label, missing, fb)
		sheets[i] = xlsx.Sheet{Name: sheetName, Columns: b.Columns, Rows: groups[i].Rows}
		log.Debug().Str("sheet", sheetName).Int("rows", groups[i].Len()).Msg("queued sheet")
	}

	var buf bytes.Buffer
	done := xlsx.AfterSheet(func(i int, sheet string) {
		b.progress(i+1, len(sheets), sheet)
	})
	if err := xlsx.Write(&buf, sheets, done); err != nil {
		var cellErr *xlsx.CellError
		if errors.As(err, &cellErr) {
			return NamedBuffer{}, apperr.Serialization(labels[cellErr.Sheet], err)
		}
		return NamedBuffer{}, apperr.Serialization("", err)
	}

	return NamedBuffer{Name: name, ContentType: ContentTypeXLSX, Data: buf.Bytes()}, nil
}

// Archive writes each group as a standalone single-sheet workbook stored in
// a zip archive under "<label>.xlsx".
func (b *Builder) Archive(groups []group.Group, name string) (NamedBuffer, error) {
	log := logger.OrNop(b.Log)
	fb := b.Fallbacks.WithDefaults()
	files := naming.NewNamer(naming.File, fb)
	stamp := b.now()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for i := range groups {
		g := &groups[i]
		label, missing := b.label(g)
		member := files.Name(label, missing) + ".xlsx"
		errLabel := errorLabel(label, missing, fb)

		sheetName := naming.SheetName(label, fb)
		if missing {
			sheetName = naming.SheetName(fb.Missing, fb)
		}

		data, err := xlsx.WriteBytes([]xlsx.Sheet{{Name: sheetName, Columns: b.Columns, Rows: g.Rows}})
		if err != nil {
			return NamedBuffer{}, apperr.Serialization(errLabel, err)
		}

		w, err := zw.CreateHeader(&zip.FileHeader{Name: member, Method: zip.Deflate, Modified: stamp})
		if err != nil {
			return NamedBuffer{}, apperr.Serialization(errLabel, fmt.Errorf("could not add %s to archive: %w", member, err))
		}
		if _, err := w.Write(data); err != nil {
			return NamedBuffer{}, apperr.Serialization(errLabel, fmt.Errorf("could not add %s to archive: %w", member, err))
		}

		log.Debug().Str("member", member).Int("rows", g.Len()).Int("bytes", len(data)).Msg("archived group")
		b.progress(i+1, len(groups), member)
	}

	if err := zw.Close(); err != nil {
		return NamedBuffer{}, apperr.Serialization("", fmt.Errorf("could not finalize archive: %w", err))
	}

	return NamedBuffer{Name: name, ContentType: ContentTypeZIP, Data: buf.Bytes()}, nil
}
