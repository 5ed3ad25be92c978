package parse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const numberExpr = `\d{1,3}(?:[ .,]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?`

var (
	// Grouped thousands ("2 175", "2,175", "1.200,50") before plain numbers ("2175", "12.5").
	numberPattern  = regexp.MustCompile(numberExpr)
	groupedPattern = regexp.MustCompile(`^\d{1,3}(?:[ .,]\d{3})+`)
	spaceRunes     = strings.NewReplacer(" ", " ", " ", " ", " ", " ", "\t", " ")
	separators     = strings.NewReplacer(" ", "", ",", "", ".", "")
)

// normalizeSpaces maps the non-breaking and thin spaces used as French
// thousands separators to plain spaces.
func normalizeSpaces(s string) string {
	return spaceRunes.Replace(s)
}

// Number extracts the first locale-formatted number in raw.
// "2 175,50 $" -> 2175.5, "2,175" -> 2175, "1.200" -> 1200, "12.5" -> 12.5.
func Number(raw string) (*float64, error) {
	s := strings.TrimSpace(normalizeSpaces(raw))
	if s == "" {
		return nil, nil
	}
	token := numberPattern.FindString(s)
	if token == "" {
		return nil, mismatch("number", raw)
	}
	v, ok := parseNumberToken(token)
	if !ok {
		return nil, mismatch("number", raw)
	}
	return &v, nil
}

// parseNumberToken converts a numberPattern match to a float. A separator
// followed by exactly three digits groups thousands; one or two digits are decimals.
func parseNumberToken(token string) (float64, bool) {
	intPart, frac := token, ""
	if prefix := groupedPattern.FindString(token); prefix != "" {
		intPart = separators.Replace(prefix)
		if rest := token[len(prefix):]; len(rest) > 1 {
			frac = rest[1:]
		}
	} else if i := strings.IndexAny(token, ".,"); i >= 0 {
		intPart, frac = token[:i], token[i+1:]
	}

	digits := intPart
	if frac != "" {
		digits += "." + frac
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Integer extracts the first number in raw and rounds it.
func Integer(raw string) (*int, error) {
	f, err := Number(raw)
	if err != nil || f == nil {
		return nil, err
	}
	n := int(math.Round(*f))
	return &n, nil
}
