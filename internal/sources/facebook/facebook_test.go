package facebook

import (
	"testing"

	"github.com/mkoziy/habitat/ingest/internal/capture"
	"github.com/mkoziy/habitat/ingest/internal/models"
)

var key = models.ItemKey{Source: models.SourceFacebook, SourceItemID: "1093847562"}

const wrappedAd = `{
  "version": 2,
  "source": "facebook",
  "source_item_id": "1093847562",
  "url": "https://www.facebook.com/marketplace/item/1093847562",
  "captured_at": "2026-03-02T14:05:00Z",
  "status": "success",
  "data": {
    "id": "1093847562",
    "title": "Grand 4 ½ Plateau",
    "price": "CA$1,850 / Month",
    "description": "<p>Bright unit near <b>Mont-Royal</b> metro.</p>",
    "location": "Montréal, QC",
    "address": "4520 rue Saint-Denis, Montréal, QC H2J 2L3",
    "unit_details": ["2 beds · 1 bath", "850 sq ft"],
    "details": ["Apartment", "Cats allowed", "In-unit laundry", "In-unit laundry"],
    "images": ["https://scontent.example/a.jpg", "https://scontent.example/a.jpg", "https://scontent.example/b.jpg"],
    "seller": {"name": "Marie Tremblay"},
    "listed_at": "2026-03-01T09:00:00Z"
  }
}`

const legacyAd = `{
  "id": "1093847562",
  "marketplace_listing_title": "Studio meublé",
  "formatted_price": "Free",
  "location_text": "Laval, QC",
  "custom_sub_titles": ["Studio"],
  "attributes": ["No pets", "Pet friendly"],
  "photos": [{"uri": "https://scontent.example/c.jpg"}],
  "creation_time": 1767225600,
  "location": {"latitude": 45.57, "longitude": -73.69}
}`

func decode(t *testing.T, raw string) capture.Document {
	t.Helper()
	doc, err := capture.Decode([]byte(raw), key)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return doc
}

func TestCurateWrapped(t *testing.T) {
	rec, r := New().Curate(decode(t, wrappedAd))
	if !r.OK() {
		t.Fatalf("unexpected errors %v", r.Errors)
	}
	c := rec.(*models.CuratedRental)
	if c.Rent == nil || *c.Rent != 1850 || c.Currency != "CAD" {
		t.Fatalf("unexpected rent %v %s", c.Rent, c.Currency)
	}
	if c.Bedrooms == nil || *c.Bedrooms != 2 {
		t.Fatalf("unexpected bedrooms %v", c.Bedrooms)
	}
	if c.Bathrooms == nil || *c.Bathrooms != 1 {
		t.Fatalf("unexpected bathrooms %v", c.Bathrooms)
	}
	if c.SquareFeet == nil || *c.SquareFeet != 850 {
		t.Fatalf("unexpected square feet %v", c.SquareFeet)
	}
	if c.UnitType == nil || *c.UnitType != "apartment" || c.PetPolicy == nil || *c.PetPolicy != "cats_allowed" {
		t.Fatalf("unexpected categories %v %v", c.UnitType, c.PetPolicy)
	}
	if len(c.Amenities) != 1 || c.Amenities[0] != "In-unit laundry" {
		t.Fatalf("unexpected amenities %v", c.Amenities)
	}
	if len(c.ImageURLs) != 2 {
		t.Fatalf("expected duplicate images collapsed, got %v", c.ImageURLs)
	}
	if c.PostalCode == nil || *c.PostalCode != "H2J 2L3" || c.City == nil || *c.City != "Montréal" {
		t.Fatalf("unexpected address %v %v", c.City, c.PostalCode)
	}
	if len(c.Contacts) != 1 || c.ListedAt == nil {
		t.Fatalf("unexpected contacts or listing date %v %v", c.Contacts, c.ListedAt)
	}
}

func TestCurateLegacyDegrades(t *testing.T) {
	rec, r := New().Curate(decode(t, legacyAd))
	if !r.OK() {
		t.Fatalf("unexpected errors %v", r.Errors)
	}
	c := rec.(*models.CuratedRental)
	if c.Rent != nil {
		t.Fatalf("expected free rent to stay null, got %v", *c.Rent)
	}
	if c.Bedrooms == nil || *c.Bedrooms != 0 {
		t.Fatalf("expected studio to mean 0 bedrooms, got %v", c.Bedrooms)
	}
	if c.PetPolicy == nil || *c.PetPolicy != "not_allowed" {
		t.Fatalf("expected first pet policy kept, got %v", c.PetPolicy)
	}
	var rentWarned, petWarned bool
	for _, w := range r.Warnings {
		rentWarned = rentWarned || w.Field == "rent"
		petWarned = petWarned || w.Field == "details"
	}
	if !rentWarned || !petWarned {
		t.Fatalf("expected rent and details warnings, got %v", r.Warnings)
	}
	if c.ListedAt == nil || c.ListedAt.Year() != 2026 {
		t.Fatalf("unexpected listing date %v", c.ListedAt)
	}
	if c.City == nil || *c.City != "Laval" {
		t.Fatalf("unexpected city %v", c.City)
	}
}

func TestCurateRejectsMismatchedID(t *testing.T) {
	doc := decode(t, `{"id": "42", "marketplace_listing_title": "x"}`)
	if rec, r := New().Curate(doc); r.OK() || rec != nil {
		t.Fatalf("expected id mismatch to fail")
	}
}

func TestProject(t *testing.T) {
	tr := New()
	rec, _ := tr.Curate(decode(t, wrappedAd))
	d, r := tr.Project(rec)
	if !r.OK() {
		t.Fatalf("unexpected errors %v", r.Errors)
	}
	rental := d.Entity.(*models.Rental)
	if rental.FacebookID == nil || *rental.FacebookID != key.SourceItemID {
		t.Fatalf("unexpected rental key %v", rental.FacebookID)
	}
	if d.Address == nil || d.Address.PostalCode != "H2J 2L3" {
		t.Fatalf("unexpected address query %+v", d.Address)
	}
	if len(d.MediaURLs[models.MediaImage]) != 2 {
		t.Fatalf("unexpected media %v", d.MediaURLs)
	}
}

func TestPreview(t *testing.T) {
	p := New().Preview(decode(t, wrappedAd))
	if p.Title != "Grand 4 ½ Plateau" || p.Price != "CA$1,850 / Month" {
		t.Fatalf("unexpected preview %+v", p)
	}
}
