package parse

import (
	"regexp"
	"strings"
)

var (
	provinceSuffix = regexp.MustCompile(`(?i)\s*(?:\((?:qu[ée]bec|qc)\)|,?\s*\b(?:qu[ée]bec|qc)\b)\s*$`)
	postalAnywhere = regexp.MustCompile(`(?i)\s*\b[A-Z]\d[A-Z][ -]?\d[A-Z]\d\b`)
)

// Address is a postal address split into parts.
type Address struct {
	Street     string
	City       string
	PostalCode string
}

// SplitAddress splits "1234 rue Saint-Denis, Montréal (Québec) H2X 1Y4" into
// street, city and postal code. Missing parts are left blank.
func SplitAddress(raw string) Address {
	s := CleanText(raw)
	var out Address
	if code, err := PostalCode(s); err == nil && code != nil {
		out.PostalCode = *code
		s = postalAnywhere.ReplaceAllString(s, "")
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	out.Street = parts[0]
	if len(parts) > 1 {
		out.City = strings.TrimSpace(provinceSuffix.ReplaceAllString(parts[1], ""))
	}
	return out
}

// CityOf extracts the city of a short "Montréal, QC" location string.
func CityOf(location string) string {
	s := CleanText(location)
	if i := strings.Index(s, ","); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(provinceSuffix.ReplaceAllString(s, ""))
}
