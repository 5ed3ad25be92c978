package parse

import (
	"math"
	"regexp"
	"strings"
)

const squareFeetPerSquareMetre = 10.7639

var (
	sqftPattern = regexp.MustCompile(`(?i)(` + numberExpr + `)\s*(?:sq\.?\s*ft\.?|ft2|ft²|pi2|pi²|pc\b|square\s+feet|sqft|pieds\s+carr[ée]s)`)
	sqmPattern  = regexp.MustCompile(`(?i)(` + numberExpr + `)\s*(?:m2|m²|sq\.?\s*m\b|square\s+met(?:er|re)s?|m[èe]tres\s+carr[ée]s)`)
)

// SquareFeet extracts a floor or land area in square feet, converting metric areas.
func SquareFeet(raw string) (*int, error) {
	s := strings.TrimSpace(normalizeSpaces(raw))
	if s == "" {
		return nil, nil
	}
	if m := sqftPattern.FindStringSubmatch(s); m != nil {
		if v, ok := parseNumberToken(m[1]); ok {
			n := int(math.Round(v))
			return &n, nil
		}
	}
	if m := sqmPattern.FindStringSubmatch(s); m != nil {
		if v, ok := parseNumberToken(m[1]); ok {
			n := int(math.Round(v * squareFeetPerSquareMetre))
			return &n, nil
		}
	}
	return nil, mismatch("square_feet", raw)
}
