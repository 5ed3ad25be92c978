package parse

import (
	"errors"
	"strings"
	"testing"
)

func TestPrice(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"CA$2,175 / Month", 2175},
		{"2 175 $", 2175},
		{"2 175,50 $", 2175.5},
		{"2 175 $", 2175},
		{"$1,200.50", 1200.5},
		{"1.200,50 €", 1200.5},
		{"1200$/mois", 1200},
		{"Loyer: 950", 950},
		{"4 ½ - 1 350 $", 1350},
	}
	for _, tc := range cases {
		got, err := Price(tc.in)
		if err != nil {
			t.Errorf("Price(%q) error: %v", tc.in, err)
			continue
		}
		if got == nil || *got != tc.want {
			t.Errorf("Price(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestPriceMismatch(t *testing.T) {
	got, err := Price("not a price")
	if got != nil {
		t.Fatalf("expected nil price, got %v", *got)
	}
	var mm *MismatchError
	if !errors.As(err, &mm) || mm.Rule != "price" {
		t.Fatalf("expected price mismatch, got %v", err)
	}

	got, err = Price("   ")
	if got != nil || err != nil {
		t.Fatalf("expected blank input to be absent without warning, got %v, %v", got, err)
	}
}

func TestCurrency(t *testing.T) {
	if Currency("CA$2,175") != "CAD" || Currency("US$900") != "USD" || Currency("900 €") != "EUR" {
		t.Fatalf("unexpected currency detection")
	}
}

func TestBedrooms(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"4 ½", 2},
		{"3½ à louer", 1},
		{"1 1/2", 0},
		{"2 beds · 1 bath", 2},
		{"3 chambres à coucher", 3},
		{"Studio near metro", 0},
		{"2 beds, 1 1/2 bath", 2},
	}
	for _, tc := range cases {
		got, err := Bedrooms(tc.in)
		if err != nil || got == nil || *got != tc.want {
			t.Errorf("Bedrooms(%q) = %v, %v; want %d", tc.in, got, err, tc.want)
		}
	}
	if got, err := Bedrooms("spacious and bright"); got != nil || err == nil {
		t.Fatalf("expected mismatch, got %v, %v", got, err)
	}
}

func TestBathrooms(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"2 beds · 1 bath", 1},
		{"1.5 baths", 1.5},
		{"2 salles de bain", 2},
		{"1 half bath", 0.5},
	}
	for _, tc := range cases {
		got, err := Bathrooms(tc.in)
		if err != nil || got == nil || *got != tc.want {
			t.Errorf("Bathrooms(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}
}

func TestPostalCode(t *testing.T) {
	got, err := PostalCode("1234 rue Saint-Denis, Montréal, QC h2x1y4")
	if err != nil || got == nil || *got != "H2X 1Y4" {
		t.Fatalf("unexpected postal code %v, %v", got, err)
	}
	if !ValidPostalCode("H2X 1Y4") {
		t.Fatalf("expected H2X 1Y4 to be valid")
	}
	for _, bad := range []string{"H2X1Y4", "D2X 1Y4", "12345", "W1A 0AX"} {
		if ValidPostalCode(bad) {
			t.Errorf("expected %q to be invalid", bad)
		}
	}
	if _, err := PostalCode("Montréal"); err == nil {
		t.Fatalf("expected mismatch")
	}
}

func TestSquareFeet(t *testing.T) {
	got, err := SquareFeet("850 sq ft")
	if err != nil || got == nil || *got != 850 {
		t.Fatalf("unexpected sqft %v, %v", got, err)
	}
	got, err = SquareFeet("1 200 pi²")
	if err != nil || got == nil || *got != 1200 {
		t.Fatalf("unexpected sqft %v, %v", got, err)
	}
	got, err = SquareFeet("100 m²")
	if err != nil || got == nil || *got != 1076 {
		t.Fatalf("expected metric conversion to 1076, got %v, %v", got, err)
	}
}

func TestCategorizeDisjointBuckets(t *testing.T) {
	cats := Categorize([]string{
		"Appartement",
		"Animaux acceptés",
		"Stationnement extérieur",
		"<b>Laveuse-sécheuse</b>",
		"No pets",
		"stationnement exterieur",
	})
	if cats.UnitType == nil || *cats.UnitType != "apartment" {
		t.Fatalf("unexpected unit type %v", cats.UnitType)
	}
	if cats.PetPolicy == nil || *cats.PetPolicy != "allowed" {
		t.Fatalf("unexpected pet policy %v", cats.PetPolicy)
	}
	if len(cats.Amenities) != 2 || cats.Amenities[0] != "Stationnement extérieur" || cats.Amenities[1] != "Laveuse-sécheuse" {
		t.Fatalf("unexpected amenities %v", cats.Amenities)
	}
	if len(cats.Warnings) != 1 || !strings.Contains(cats.Warnings[0], "pet_policy") {
		t.Fatalf("expected ambiguity warning, got %v", cats.Warnings)
	}
}

func TestFoldAndCleanText(t *testing.T) {
	if got := Fold("  Été   À Montréal "); got != "ete a montreal" {
		t.Fatalf("unexpected fold %q", got)
	}
	if got := CleanText("<p>Grand <b>4 ½</b>&nbsp;lumineux</p>"); got != "Grand 4 ½ lumineux" {
		t.Fatalf("unexpected clean text %q", got)
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown("<p>Bright unit</p><ul><li>Heated</li><li>Near metro</li></ul>")
	if !strings.Contains(md, "Bright unit") || !strings.Contains(md, "- Heated") {
		t.Fatalf("unexpected markdown %q", md)
	}
	if got := Markdown("plain text"); got != "plain text" {
		t.Fatalf("expected plain text passthrough, got %q", got)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Gestion Immobilière Tremblay Inc.": "gestion immobiliere tremblay",
		"9123-4567 QUÉBEC INC":              "9123 4567 quebec",
		"Les Immeubles O'Neil Ltée":         "les immeubles oneil",
		"Inc.":                              "inc",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitAddress(t *testing.T) {
	got := SplitAddress("1234 rue Saint-Denis, Montréal (Québec) H2X 1Y4")
	if got.Street != "1234 rue Saint-Denis" || got.City != "Montréal" || got.PostalCode != "H2X 1Y4" {
		t.Fatalf("unexpected split %+v", got)
	}
	got = SplitAddress("55 avenue du Parc, Laval, QC")
	if got.Street != "55 avenue du Parc" || got.City != "Laval" || got.PostalCode != "" {
		t.Fatalf("unexpected split %+v", got)
	}
	if city := CityOf("Montréal, QC"); city != "Montréal" {
		t.Fatalf("unexpected city %q", city)
	}
}
