package parse

import (
	"strings"
	"unicode"
)

// Legal form suffixes dropped from company names before comparison.
var legalSuffixes = map[string]struct{}{
	"inc": {}, "incorporated": {}, "incorporee": {}, "ltd": {}, "ltee": {}, "limited": {},
	"limitee": {}, "corp": {}, "corporation": {}, "co": {}, "cie": {}, "senc": {}, "sec": {},
	"llc": {}, "enr": {}, "the": {},
}

// NormalizeName folds a person or company name into its comparison form:
// lowercase, no accents, punctuation as spaces, legal suffixes removed.
func NormalizeName(name string) string {
	folded := Fold(name)
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case r == '.' || r == '\'':
			return -1
		}
		return ' '
	}, folded)

	words := strings.Fields(cleaned)
	out := words[:0]
	for _, w := range words {
		if _, ok := legalSuffixes[w]; ok {
			continue
		}
		out = append(out, w)
	}
	if len(out) == 0 {
		return strings.Join(words, " ")
	}
	return strings.Join(out, " ")
}
