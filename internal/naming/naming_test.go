package naming

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSheetName(t *testing.T) {
	fb := DefaultFallbacks()
	tests := []struct {
		in, want string
	}{
		{"DAKAR 1", "DAKAR 1"},
		{"a/b\\c*d?e:f[g]h", "abcdefgh"},
		{"  'quoted'  ", "quoted"},
		{"???", "zone_vide"},
		{"", "zone_vide"},
		{strings.Repeat("x", 40), strings.Repeat("x", 31)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SheetName(tt.in, fb), "SheetName(%q)", tt.in)
	}
}

func TestSheetNameNeverEmptyOrLong(t *testing.T) {
	inputs := []string{"", " ", "[]", "'", strings.Repeat("é", 50), "ok", "::::x", strings.Repeat("a ", 20)}
	for _, in := range inputs {
		got := SheetName(in, Fallbacks{})
		assert.NotEmpty(t, got)
		assert.LessOrEqual(t, utf8.RuneCountInString(got), MaxSheetNameLen)
	}
}

func TestFileName(t *testing.T) {
	fb := DefaultFallbacks()
	assert.Equal(t, "DAKAR 1", FileName("DAKAR 1", fb))
	assert.Equal(t, "ab", FileName(`a<|>"b`, fb))
	assert.Equal(t, "zone_vide", FileName("../", fb))
	long := FileName(strings.Repeat("é", 150), fb)
	assert.LessOrEqual(t, len(long), maxFileNameBytes)
	assert.True(t, utf8.ValidString(long))
	// no 31-character ceiling for archive members
	assert.Equal(t, strings.Repeat("z", 40), FileName(strings.Repeat("z", 40), fb))
}

func TestCustomFallbacks(t *testing.T) {
	fb := Fallbacks{Missing: "vide", Empty: "sans_nom"}
	assert.Equal(t, "sans_nom", SheetName("*", fb))
	n := NewNamer(Sheet, fb)
	assert.Equal(t, "vide", n.Name("ignored", true))
}

func TestNamerDisambiguates(t *testing.T) {
	n := NewNamer(Sheet, DefaultFallbacks())
	assert.Equal(t, "DAKAR", n.Name("DAKAR", false))
	assert.Equal(t, "DAKAR_2", n.Name("DA:KAR", false))
	assert.Equal(t, "dakar_3", n.Name("dakar", false))
	assert.Equal(t, "inconnu", n.Name("", true))
	assert.Equal(t, "zone_vide", n.Name("", false))
	assert.Equal(t, "zone_vide_2", n.Name("?", false))
}

func TestNamerSheetSuffixFitsCeiling(t *testing.T) {
	n := NewNamer(Sheet, DefaultFallbacks())
	long := strings.Repeat("A", 35)
	first := n.Name(long, false)
	second := n.Name(long+"B", false)
	assert.Equal(t, strings.Repeat("A", 31), first)
	assert.Equal(t, strings.Repeat("A", 29)+"_2", second)
	assert.LessOrEqual(t, utf8.RuneCountInString(second), MaxSheetNameLen)
}

func TestNamerFiles(t *testing.T) {
	n := NewNamer(File, DefaultFallbacks())
	assert.Equal(t, "DAKAR 1", n.Name("DAKAR 1", false))
	assert.Equal(t, "dakar 1_2", n.Name("dakar 1", false))
	assert.Equal(t, "INCONNU", n.Name("INCONNU", false))
}
