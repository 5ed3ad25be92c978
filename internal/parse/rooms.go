package parse

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// Quebec notation counts the living room, kitchen and a half bathroom: "4 ½" is a 2-bedroom.
	halfRoomPattern = regexp.MustCompile(`(\d{1,2})\s*(?:½|1/2)`)
	bedroomPattern  = regexp.MustCompile(`(?i)(\d{1,2})\s*[-]?\s*(?:bedrooms?|beds?|bdrms?|bd|br|chambres?(?:\s+[àa]\s+coucher)?|cac)\b`)
	bathFollows     = regexp.MustCompile(`(?i)^\W*\s*(?:bath|ba\b|sdb|salle)`)
	studioPattern   = regexp.MustCompile(`(?i)\b(?:studio|bachelor)\b`)

	bathroomPattern = regexp.MustCompile(`(?i)(\d{1,2}(?:[.,]5)?)\s*[-]?\s*(?:bathrooms?|baths?|ba|salles?\s+de\s+bains?|sdb)\b`)
	halfBathPattern = regexp.MustCompile(`(?i)(\d{1,2})\s*(?:half[- ]baths?|salles?\s+d'eau)\b`)
)

// Bedrooms extracts a bedroom count. Rules run in order and the first match wins:
// Quebec half-room notation, an explicit bedroom count, then studio keywords.
func Bedrooms(raw string) (*int, error) {
	s := strings.TrimSpace(normalizeSpaces(raw))
	if s == "" {
		return nil, nil
	}
	for _, loc := range halfRoomPattern.FindAllStringSubmatchIndex(s, -1) {
		rest := s[loc[1]:]
		// "4 1/25" is not room notation and "1 1/2 bath" is a bathroom count.
		if (rest != "" && rest[0] >= '0' && rest[0] <= '9') || bathFollows.MatchString(rest) {
			continue
		}
		rooms, _ := strconv.Atoi(s[loc[2]:loc[3]])
		n := rooms - 2
		if n < 0 {
			n = 0
		}
		return &n, nil
	}
	if m := bedroomPattern.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return &n, nil
	}
	if studioPattern.MatchString(s) {
		n := 0
		return &n, nil
	}
	return nil, mismatch("bedrooms", raw)
}

// Bathrooms extracts a bathroom count; a half bathroom alone counts as 0.5.
func Bathrooms(raw string) (*float64, error) {
	s := strings.TrimSpace(normalizeSpaces(raw))
	if s == "" {
		return nil, nil
	}
	if m := bathroomPattern.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
		if err == nil {
			return &v, nil
		}
	}
	if m := halfBathPattern.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		v := float64(n) * 0.5
		return &v, nil
	}
	return nil, mismatch("bathrooms", raw)
}
