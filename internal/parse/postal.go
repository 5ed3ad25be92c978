package parse

import (
	"regexp"
	"strings"
)

var (
	postalSearch = regexp.MustCompile(`(?i)\b([A-Z]\d[A-Z])[ -]?(\d[A-Z]\d)\b`)
	postalStrict = regexp.MustCompile(`^[ABCEGHJ-NPRSTVXY]\d[ABCEGHJ-NPRSTV-Z] \d[ABCEGHJ-NPRSTV-Z]\d$`)
)

// PostalCode finds a Canadian postal code and returns it as "H2X 1Y4".
func PostalCode(raw string) (*string, error) {
	s := strings.TrimSpace(normalizeSpaces(raw))
	if s == "" {
		return nil, nil
	}
	m := postalSearch.FindStringSubmatch(s)
	if m == nil {
		return nil, mismatch("postal_code", raw)
	}
	code := strings.ToUpper(m[1] + " " + m[2])
	return &code, nil
}

// ValidPostalCode reports whether code is a well-formed Canadian postal code
// in canonical "A1A 1A1" form.
func ValidPostalCode(code string) bool {
	return postalStrict.MatchString(code)
}
