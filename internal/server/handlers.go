package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/klytics/drsplit/internal/apperr"
	"github.com/klytics/drsplit/internal/audit"
	"github.com/klytics/drsplit/internal/formats/xlsx"
	"github.com/klytics/drsplit/internal/inspect"
	"github.com/klytics/drsplit/internal/splitter"
)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Group string `json:"group,omitempty"`
	RunID string `json:"runId,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.cfg.Version})
}

// upload is a parsed multipart request.
type upload struct {
	filename string
	data     []byte
	form     func(string) string
}

// readUpload parses the multipart body and reads the "file" part into memory.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	maxSize := s.cfg.maxUpload()
	if r.ContentLength > maxSize {
		return nil, errTooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, errTooLarge
		}
		return nil, apperr.Invalid("invalid multipart form: %v", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, apperr.Invalid("no file provided — send the workbook in the 'file' field")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperr.Unreadable(err, "could not read uploaded file")
	}
	return &upload{
		filename: header.Filename,
		data:     data,
		form:     func(k string) string { return strings.TrimSpace(r.FormValue(k)) },
	}, nil
}

var errTooLarge = errors.New("upload exceeds the size limit")

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, "")
		return
	}

	src, err := xlsx.OpenBytes(up.data)
	if err != nil {
		s.respondError(w, r, err, "")
		return
	}
	defer src.Close()

	normalize, err := s.formBool(up, "normalize", s.cfg.Normalize)
	if err != nil {
		s.respondError(w, r, err, "")
		return
	}
	report, err := inspect.Source(src, up.form("sheet"), inspect.Options{
		Column:      up.form("column"),
		Normalize:   normalize,
		FoldAccents: s.cfg.FoldAccents,
		Fallbacks:   s.cfg.Fallbacks,
	})
	if err != nil {
		s.respondError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	runID := audit.NewRunID()
	start := time.Now()
	entry := audit.Entry{RunID: runID, Command: "serve"}

	fail := func(err error) {
		entry.Error = err.Error()
		if kind := apperr.KindOf(err); kind != apperr.KindUnknown {
			entry.ErrorKind = kind.String()
		}
		entry.DurationMs = time.Since(start).Milliseconds()
		_ = s.cfg.Audit.Log(r.Context(), entry)
		s.respondError(w, r, err, runID)
	}

	up, err := s.readUpload(w, r)
	if err != nil {
		fail(err)
		return
	}
	entry.Input = up.filename
	entry.Sheet = up.form("sheet")
	entry.Column = up.form("column")

	mode, err := splitter.ParseMode(up.form("mode"))
	if err != nil {
		fail(err)
		return
	}
	entry.Mode = string(mode)
	normalize, err := s.formBool(up, "normalize", s.cfg.Normalize)
	if err != nil {
		fail(err)
		return
	}
	entry.Normalize = normalize

	t, err := xlsx.ReadBytes(up.data, entry.Sheet)
	if err != nil {
		fail(err)
		return
	}

	res, err := splitter.Split(t, splitter.Request{
		Column:      entry.Column,
		Mode:        mode,
		Normalize:   normalize,
		FoldAccents: s.cfg.FoldAccents,
		SourceName:  up.filename,
		Prefix:      s.cfg.Prefix,
		Fallbacks:   s.cfg.Fallbacks,
	}, splitter.Options{Log: s.log})
	if err != nil {
		fail(err)
		return
	}

	entry.Groups = res.Stats.GroupCount
	entry.Rows = res.Stats.TotalRowCount
	entry.Output = res.Artifact.Name
	entry.DurationMs = time.Since(start).Milliseconds()
	_ = s.cfg.Audit.Log(r.Context(), entry)

	h := w.Header()
	h.Set("Content-Type", res.Artifact.ContentType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Artifact.Name}))
	h.Set("Content-Length", strconv.Itoa(res.Artifact.Size()))
	h.Set("X-Group-Count", strconv.Itoa(res.Stats.GroupCount))
	h.Set("X-Row-Count", strconv.Itoa(res.Stats.TotalRowCount))
	h.Set("X-Run-ID", runID)
	w.WriteHeader(http.StatusOK)
	if _, err := res.Artifact.WriteTo(w); err != nil {
		s.log.Warn().Err(err).Str("run_id", runID).Msg("could not write response")
	}
}

// formBool reads an optional boolean field. Checkbox "on" counts as true.
func (s *Server) formBool(up *upload, key string, def bool) (bool, error) {
	v := strings.ToLower(up.form(key))
	switch v {
	case "":
		return def, nil
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, apperr.Invalid("invalid %s value %q — use true or false", key, v)
	}
	return b, nil
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	if errors.Is(err, errTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch apperr.KindOf(err) {
	case apperr.KindInvalidRequest, apperr.KindMissingColumn:
		return http.StatusBadRequest
	case apperr.KindUnreadableSource:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes it as a JSON error body.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, runID string) {
	status := statusFor(err)
	body := ErrorResponse{Error: err.Error(), RunID: runID}
	if kind := apperr.KindOf(err); kind != apperr.KindUnknown {
		body.Kind = kind.String()
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		body.Group = ae.Group
	}

	ev := s.log.Warn()
	if status >= http.StatusInternalServerError {
		ev = s.log.Error()
	}
	ev.Err(err).
		Str("path", r.URL.Path).
		Int("status", status).
		Str("kind", body.Kind).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("request error")

	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
