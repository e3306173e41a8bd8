package enrich

import (
	"strings"
	"unicode"
)

// AbbreviationTable maps lowercase abbreviation tokens to their expanded
// form. Lookup is case-insensitive; the expansion adopts the casing of the
// token it replaces where feasible.
type AbbreviationTable map[string]string

// normalized returns a copy with all keys lowercased, so lookups are
// case-insensitive regardless of how the table was authored.
func (a AbbreviationTable) normalized() AbbreviationTable {
	out := make(AbbreviationTable, len(a))
	for k, v := range a {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

// Expand replaces every abbreviation token in s with its expansion and
// returns the rewritten string plus the number of substitutions performed.
//
// Tokens are maximal runs of letters and digits; whitespace and punctuation
// are preserved as-is. The table must already have lowercase keys (see
// normalized).
func (a AbbreviationTable) Expand(s string) (string, int) {
	if len(a) == 0 || s == "" {
		return s, 0
	}
	var b strings.Builder
	b.Grow(len(s))
	count := 0
	runes := []rune(s)
	for i := 0; i < len(runes); {
		if !isTokenRune(runes[i]) {
			b.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		for j < len(runes) && isTokenRune(runes[j]) {
			j++
		}
		token := string(runes[i:j])
		if exp, ok := a[strings.ToLower(token)]; ok {
			b.WriteString(matchCase(token, exp))
			count++
		} else {
			b.WriteString(token)
		}
		i = j
	}
	return b.String(), count
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// matchCase reshapes expansion to follow the casing of the original token:
// all-caps tokens yield all-caps expansions, capitalized tokens yield
// capitalized expansions, everything else is returned as authored.
func matchCase(token, expansion string) string {
	if expansion == "" {
		return expansion
	}
	if isAllUpper(token) && len([]rune(token)) > 1 {
		return strings.ToUpper(expansion)
	}
	first := []rune(token)[0]
	if unicode.IsUpper(first) {
		er := []rune(expansion)
		er[0] = unicode.ToUpper(er[0])
		return string(er)
	}
	return expansion
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
