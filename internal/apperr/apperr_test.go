package apperr

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesOwnSentinelOnly(t *testing.T) {
	err := Unreadable(io.ErrUnexpectedEOF, "could not open %s", "drv.xlsx")

	assert.ErrorIs(t, err, ErrUnreadableSource)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.NotErrorIs(t, err, ErrMissingColumn)
	assert.Equal(t, "could not open drv.xlsx: unexpected EOF", err.Error())
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("job 3: %w", MissingColumn("Zone", []string{"ID", "Region"}))

	assert.Equal(t, KindMissingColumn, KindOf(err))
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), `column "Zone" not found`)
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestSerializationNamesGroup(t *testing.T) {
	err := Serialization("DAKAR 1", errors.New("cell too long"))

	assert.Equal(t, KindSerializationFailure, err.Kind)
	assert.Equal(t, `could not write group (group "DAKAR 1"): cell too long`, err.Error())
}

func TestKindString(t *testing.T) {
	tests := map[Kind]string{
		KindUnreadableSource:     "unreadable_source",
		KindMissingColumn:        "missing_column",
		KindSerializationFailure: "serialization_failure",
		KindInvalidRequest:       "invalid_request",
		KindUnknown:              "unknown",
	}
	for kind, want := range tests {
		assert.Equal(t, want, kind.String())
	}
}
