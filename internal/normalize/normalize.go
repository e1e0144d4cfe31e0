// Package normalize maps grouping values to canonical comparison keys and
// back to display labels.
//
// Pipeline order for Normalize
// 1 missing or empty value -> Unknown
// 2 textual form, optionally accent-folded (NFD, drop combining marks)
// 3 uppercase
// 4 drop whitespace, '-' and '_'
// 5 keep only A-Z and 0-9
// 6 empty result -> Unknown
package normalize

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/klytics/drsplit/internal/table"
)

// Unknown is the canonical key of a missing or unusable value.
const Unknown = "INCONNU"

// Normalizer is safe for concurrent use.
type Normalizer struct {
	foldAccents bool
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithAccentFolding strips diacritics before filtering, so "Thiès" keys as
// "THIES" rather than "THIS".
func WithAccentFolding(on bool) Option {
	return func(n *Normalizer) { n.foldAccents = on }
}

// New constructs a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var foldPool = sync.Pool{
	New: func() any {
		return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	},
}

// Full case mapping expands runes like 'ß' to "SS" where strings.ToUpper
// leaves them lowercase. A Caser keeps state, hence the pool.
var upperPool = sync.Pool{
	New: func() any { return cases.Upper(language.Und) },
}

// Key returns the canonical key of a cell value.
func (n *Normalizer) Key(v table.Value) string {
	if v.IsMissing() {
		return Unknown
	}
	return n.KeyString(v.Text())
}

// KeyString returns the canonical key of a textual value.
func (n *Normalizer) KeyString(s string) string {
	if s == "" {
		return Unknown
	}

	if n.foldAccents {
		tr := foldPool.Get().(transform.Transformer)
		if folded, _, err := transform.String(tr, s); err == nil {
			s = folded
		}
		tr.Reset()
		foldPool.Put(tr)
	}

	upper := upperPool.Get().(cases.Caser)
	s = upper.String(s)
	upperPool.Put(upper)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || r == '-' || r == '_' {
			continue
		}
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	if b.Len() == 0 {
		return Unknown
	}
	return b.String()
}

var letterDigits = regexp.MustCompile(`^([A-Z]+)([0-9]+)$`)

// Restore turns a canonical key into a display label by separating a
// trailing digit run from its letter prefix: "DAKAR1" -> "DAKAR 1".
// Other keys are returned unchanged.
func Restore(key string) string {
	m := letterDigits.FindStringSubmatch(key)
	if m == nil {
		return key
	}
	return m[1] + " " + m[2]
}

var std = New()

// Normalize returns the canonical key of v using the default Normalizer.
func Normalize(v table.Value) string { return std.Key(v) }
