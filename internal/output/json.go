package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klytics/drsplit/cmd/version"
	"github.com/klytics/drsplit/internal/apperr"
)

// Exit codes for consistent error reporting.
const (
	ExitOK          = 0 // success
	ExitUserError   = 1 // bad flags, missing file or column, unreadable workbook
	ExitSystemError = 2 // IO error, unwritable group
)

// JSONResult is the standard JSON output envelope for all commands.
type JSONResult struct {
	OK      bool   `json:"ok"`
	Command string `json:"command"`
	Version string `json:"version"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, apperr.ErrSerializationFailure):
		return ExitSystemError
	case apperr.KindOf(err) != apperr.KindUnknown:
		return ExitUserError
	case errors.Is(err, os.ErrPermission):
		return ExitSystemError
	default:
		return ExitUserError
	}
}

// PrintJSON writes a standard success JSON result to stdout.
func PrintJSON(cmd string, data any) error {
	return FprintJSON(os.Stdout, cmd, data)
}

// FprintJSON writes a standard success JSON result to w.
func FprintJSON(w io.Writer, cmd string, data any) error {
	result := JSONResult{
		OK:      true,
		Command: cmd,
		Version: version.Version,
		Data:    data,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// PrintJSONError writes a standard error JSON result to stdout.
func PrintJSONError(cmd string, err error) error {
	return FprintJSONError(os.Stdout, cmd, err)
}

// FprintJSONError writes a standard error JSON result to w.
func FprintJSONError(w io.Writer, cmd string, err error) error {
	result := JSONResult{
		OK:      false,
		Command: cmd,
		Version: version.Version,
		Error:   err.Error(),
		Code:    ExitCode(err),
	}
	if kind := apperr.KindOf(err); kind != apperr.KindUnknown {
		result.Kind = kind.String()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(result); encErr != nil {
		return fmt.Errorf("could not encode JSON error: %w", encErr)
	}
	return nil
}
