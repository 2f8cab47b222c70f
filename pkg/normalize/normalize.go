// Package normalize canonicalizes inbound text before detection. The goal is
// to neutralize unicode tricks used to slip past pattern matching (homoglyph
// substitution, zero-width characters, fullwidth forms) without changing what
// an analyst reading the text would see.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxLength bounds the text a single request may carry into the
// pipeline. Longer inputs are truncated, never rejected.
const DefaultMaxLength = 8192

// Input is the canonical form of a request's text. Derived deterministically;
// owned by the pipeline invocation and never persisted.
type Input struct {
	Text      string // canonicalized text
	Truncated bool   // set when the original exceeded the max length
}

// Normalizer converts raw request text to its canonical form. The zero value
// is not usable; construct with New.
type Normalizer struct {
	maxLength int
}

// New creates a Normalizer with the given maximum text length. Non-positive
// values fall back to DefaultMaxLength.
func New(maxLength int) *Normalizer {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Normalizer{maxLength: maxLength}
}

// Normalize canonicalizes text. Pure and total: any input string yields a
// valid Input, and normalizing an already-normalized text is a no-op.
//
// Steps, in order:
//  1. NFKC normalization (folds fullwidth forms, compatibility characters)
//  2. homoglyph folding (Cyrillic/Greek lookalikes to Latin)
//  3. stripping of format/control characters (zero-width, bidi overrides),
//     keeping ordinary whitespace
//  4. truncation to the configured maximum, flagged for downstream stages
func (n *Normalizer) Normalize(text string) Input {
	out := norm.NFKC.String(text)
	out = foldHomoglyphs(out)
	out = stripInvisible(out)

	truncated := false
	if len(out) > n.maxLength {
		out = truncateRunes(out, n.maxLength)
		truncated = true
	}

	return Input{Text: out, Truncated: truncated}
}

// truncateRunes cuts at a rune boundary at or below max bytes.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// homoglyphs maps Cyrillic, Greek and IPA lookalikes to their Latin
// counterparts. Fullwidth forms are already folded by NFKC before this runs.
var homoglyphs = map[rune]rune{
	// Cyrillic lowercase
	'а': 'a', 'е': 'e', 'і': 'i', 'о': 'o', 'р': 'p', 'с': 'c', 'у': 'y', 'х': 'x',
	// Cyrillic uppercase
	'А': 'A', 'В': 'B', 'С': 'C', 'Е': 'E', 'Н': 'H', 'І': 'I', 'К': 'K',
	'М': 'M', 'О': 'O', 'Р': 'P', 'Т': 'T', 'Х': 'X',
	// Greek
	'α': 'a', 'β': 'b', 'ε': 'e', 'η': 'n', 'ι': 'i', 'κ': 'k', 'ν': 'v',
	'ο': 'o', 'ρ': 'p', 'τ': 't', 'υ': 'u', 'χ': 'x',
	// IPA
	'ɑ': 'a', 'ɡ': 'g', 'ɩ': 'i', 'ɪ': 'i',
	// Misc symbols
	'ℓ': 'l',
}

func foldHomoglyphs(text string) string {
	return strings.Map(func(r rune) rune {
		if mapped, ok := homoglyphs[r]; ok {
			return mapped
		}
		return r
	}, text)
}

// stripInvisible drops format characters (Cf: zero-width spaces/joiners,
// bidi overrides, unicode tags), variation selectors and non-whitespace
// control characters. Tabs and newlines survive.
func stripInvisible(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.Is(unicode.Cf, r):
			return -1
		case r == 0xFE0E || r == 0xFE0F: // variation selectors
			return -1
		case unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r':
			return -1
		}
		return r
	}, text)
}
