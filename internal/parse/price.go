package parse

import (
	"regexp"
	"strings"
)

var (
	pricePrefixPattern = regexp.MustCompile(`(?i)(?:CA\$|C\$|US\$|CAD\s*|\$|€)\s*(` + numberExpr + `)`)
	priceSuffixPattern = regexp.MustCompile(`(?i)(` + numberExpr + `)\s*(?:\$|€|CAD\b|dollars?\b)`)
	freePattern        = regexp.MustCompile(`(?i)\b(?:free|gratuit)\b`)
)

// Price extracts a monetary amount. A number next to a currency marker wins
// over a bare number; "CA$2,175 / Month" -> 2175 and "2 175 $" -> 2175.
func Price(raw string) (*float64, error) {
	s := strings.TrimSpace(normalizeSpaces(raw))
	if s == "" {
		return nil, nil
	}
	for _, re := range []*regexp.Regexp{pricePrefixPattern, priceSuffixPattern} {
		if m := re.FindStringSubmatch(s); m != nil {
			if v, ok := parseNumberToken(m[1]); ok {
				return &v, nil
			}
		}
	}
	if freePattern.MatchString(s) {
		return nil, mismatch("price", raw)
	}
	if token := numberPattern.FindString(s); token != "" {
		if v, ok := parseNumberToken(token); ok {
			return &v, nil
		}
	}
	return nil, mismatch("price", raw)
}

// Currency guesses the ISO currency of a price string; listings default to CAD.
func Currency(raw string) string {
	upper := strings.ToUpper(raw)
	switch {
	case strings.Contains(upper, "US$"), strings.Contains(upper, "USD"):
		return "USD"
	case strings.Contains(upper, "€"), strings.Contains(upper, "EUR"):
		return "EUR"
	}
	return "CAD"
}
