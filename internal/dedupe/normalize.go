// Package dedupe implements duplicate detection over product tables:
// exact-match bucketing on normalization keys plus a bounded fuzzy phase
// that unions transitively similar records into groups.
//
// Only analyzed, unprotected columns participate in comparison; protected
// and ignored columns (price, stock) never drive duplicate classification.
package dedupe

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents decomposes to NFD, drops combining marks, and recomposes,
// so "café" and "cafe" normalize to the same key.
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeKey canonicalizes a string for exact-match bucketing: lowercase,
// trimmed, internal whitespace collapsed, diacritics stripped, punctuation
// removed.
func NormalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if out, _, err := transform.String(stripAccents, s); err == nil {
		s = out
	}
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		default:
			// Punctuation is stripped; treat it as a token boundary so
			// "mouse-gamer" and "mouse gamer" share a key.
			pendingSpace = b.Len() > 0
		}
	}
	return b.String()
}

// firstToken returns the first whitespace-delimited token of an already
// normalized key. Used as the cheap pre-filter for the fuzzy phase.
func firstToken(key string) string {
	if i := strings.IndexByte(key, ' '); i >= 0 {
		return key[:i]
	}
	return key
}
