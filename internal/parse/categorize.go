package parse

import (
	"fmt"
	"strings"
)

// Category buckets of listing detail strings. Known categories are matched
// before anything falls into the amenities catch-all.
const (
	CategoryUnitType  = "unit_type"
	CategoryPetPolicy = "pet_policy"
	CategoryAmenity   = "amenity"
)

type keyword struct {
	phrase string
	value  string
}

// Order matters: the first phrase contained in a detail decides its value.
var unitTypeKeywords = []keyword{
	{"townhouse", "townhouse"},
	{"maison de ville", "townhouse"},
	{"basement", "basement"},
	{"sous-sol", "basement"},
	{"apartment", "apartment"},
	{"appartement", "apartment"},
	{"condo", "condo"},
	{"loft", "loft"},
	{"studio", "studio"},
	{"duplex", "duplex"},
	{"triplex", "triplex"},
	{"house", "house"},
	{"maison", "house"},
	{"room for rent", "room"},
	{"chambre a louer", "room"},
}

var petPolicyKeywords = []keyword{
	{"no pets", "not_allowed"},
	{"pets not allowed", "not_allowed"},
	{"pas d'animaux", "not_allowed"},
	{"animaux non acceptes", "not_allowed"},
	{"animaux interdits", "not_allowed"},
	{"cats only", "cats_only"},
	{"chats seulement", "cats_only"},
	{"cat friendly", "cats_allowed"},
	{"cats allowed", "cats_allowed"},
	{"chats acceptes", "cats_allowed"},
	{"dog friendly", "dogs_allowed"},
	{"dogs allowed", "dogs_allowed"},
	{"chiens acceptes", "dogs_allowed"},
	{"pet friendly", "allowed"},
	{"pets allowed", "allowed"},
	{"animaux acceptes", "allowed"},
}

// Categories is the disjoint bucketing of a listing's detail strings.
type Categories struct {
	UnitType  *string
	PetPolicy *string
	Amenities []string
	Warnings  []string
}

// Categorize assigns every detail string to exactly one bucket. Matching is
// case- and accent-insensitive. When several details name different values for
// the same category the first one is kept and a warning is recorded.
func Categorize(details []string) Categories {
	var out Categories
	seen := make(map[string]struct{})
	for _, raw := range details {
		detail := CleanText(raw)
		if detail == "" {
			continue
		}
		folded := Fold(detail)
		if _, dup := seen[folded]; dup {
			continue
		}
		seen[folded] = struct{}{}

		if v, ok := match(folded, petPolicyKeywords); ok {
			out.PetPolicy = assign(&out, CategoryPetPolicy, out.PetPolicy, v)
			continue
		}
		if v, ok := match(folded, unitTypeKeywords); ok {
			out.UnitType = assign(&out, CategoryUnitType, out.UnitType, v)
			continue
		}
		out.Amenities = append(out.Amenities, detail)
	}
	return out
}

func match(folded string, keywords []keyword) (string, bool) {
	for _, kw := range keywords {
		if containsWord(folded, kw.phrase) {
			return kw.value, true
		}
	}
	return "", false
}

func assign(out *Categories, category string, current *string, value string) *string {
	if current == nil {
		return &value
	}
	if *current != value {
		out.Warnings = append(out.Warnings, fmt.Sprintf("%s: ambiguous, kept %q over %q", category, *current, value))
	}
	return current
}

// containsWord reports whether phrase occurs in s on word boundaries.
func containsWord(s, phrase string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], phrase)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(phrase)
		if (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		i = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b >= 0x80
}
