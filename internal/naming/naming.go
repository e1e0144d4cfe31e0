// Package naming turns group labels into worksheet names and archive member
// names that the workbook format and common filesystems accept.
package naming

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxSheetNameLen is the worksheet name ceiling of the .xlsx format, in characters.
const MaxSheetNameLen = 31

// maxFileNameBytes leaves room for the extension and a dedupe suffix under
// the usual 255-byte filename limit.
const maxFileNameBytes = 200

// Fallback names.
const (
	// DefaultMissing names the group of rows whose grouping value is missing.
	DefaultMissing = "inconnu"
	// DefaultEmpty names a group whose label is empty once reserved characters are removed.
	DefaultEmpty = "zone_vide"
)

const sheetReserved = `\/*?:[]`

const fileReserved = sheetReserved + `"<>|`

// Fallbacks holds the literals used when a label cannot produce a name.
type Fallbacks struct {
	Missing string
	Empty   string
}

// DefaultFallbacks returns the built-in fallback literals.
func DefaultFallbacks() Fallbacks {
	return Fallbacks{Missing: DefaultMissing, Empty: DefaultEmpty}
}

// WithDefaults fills unset literals with the built-in ones.
func (fb Fallbacks) WithDefaults() Fallbacks {
	if fb.Missing == "" {
		fb.Missing = DefaultMissing
	}
	if fb.Empty == "" {
		fb.Empty = DefaultEmpty
	}
	return fb
}

// SheetName returns a worksheet-safe form of label: reserved characters
// removed, surrounding spaces and apostrophes trimmed, at most 31 characters.
// It never returns an empty string.
func SheetName(label string, fb Fallbacks) string {
	fb = fb.WithDefaults()
	name := cleanSheet(strip(label, sheetReserved))
	name = cleanSheet(truncateRunes(name, MaxSheetNameLen))
	if name == "" {
		return truncateRunes(fb.Empty, MaxSheetNameLen)
	}
	return name
}

// FileName returns a filesystem-safe base name (no extension) for label.
// It never returns an empty string.
func FileName(label string, fb Fallbacks) string {
	fb = fb.WithDefaults()
	name := cleanFile(strip(label, fileReserved))
	name = cleanFile(truncateBytes(name, maxFileNameBytes))
	if name == "" {
		return fb.Empty
	}
	return name
}

func strip(s, reserved string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(reserved, r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func cleanSheet(s string) string {
	return strings.Trim(strings.TrimSpace(s), "'")
}

func cleanFile(s string) string {
	return strings.Trim(strings.TrimSpace(s), ". ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Kind selects the naming rules a Namer applies.
type Kind int

const (
	// Sheet names are capped at 31 characters.
	Sheet Kind = iota
	// File names are archive member base names.
	File
)

// Namer hands out names that are unique within one artifact. Collisions,
// compared case-insensitively, are resolved by appending _2, _3, ... in the
// order names are requested. A Namer is not safe for concurrent use.
type Namer struct {
	kind Kind
	fb   Fallbacks
	used map[string]bool
}

// NewNamer returns a Namer for the given kind.
func NewNamer(kind Kind, fb Fallbacks) *Namer {
	return &Namer{kind: kind, fb: fb.WithDefaults(), used: make(map[string]bool)}
}

// Name returns a unique safe name for label. missing marks a group whose
// raw grouping value was absent; it is named after the Missing fallback.
func (n *Namer) Name(label string, missing bool) string {
	if missing {
		label = n.fb.Missing
	}

	base := n.safe(label)
	name := base
	for i := 2; n.used[strings.ToLower(name)]; i++ {
		suffix := "_" + strconv.Itoa(i)
		if n.kind == Sheet {
			name = cleanSheet(truncateRunes(base, MaxSheetNameLen-utf8.RuneCountInString(suffix))) + suffix
		} else {
			name = base + suffix
		}
	}
	n.used[strings.ToLower(name)] = true
	return name
}

func (n *Namer) safe(label string) string {
	if n.kind == Sheet {
		return SheetName(label, n.fb)
	}
	return FileName(label, n.fb)
}
