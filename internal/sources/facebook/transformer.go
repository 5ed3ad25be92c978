package facebook

import (
	"strings"
	"time"

	"github.com/mkoziy/habitat/ingest/internal/capture"
	"github.com/mkoziy/habitat/ingest/internal/models"
	"github.com/mkoziy/habitat/ingest/internal/parse"
	"github.com/mkoziy/habitat/ingest/internal/transform"
)

// Transformer turns marketplace captures into rentals.
type Transformer struct{}

var _ transform.Transformer = Transformer{}

// New returns the marketplace transformer.
func New() Transformer { return Transformer{} }

func (Transformer) Source() models.Source { return models.SourceFacebook }

// Preview extracts the ad title, price and location.
func (Transformer) Preview(doc capture.Document) models.Preview {
	l, _, err := decodeListing(doc)
	if err != nil {
		return models.Preview{}
	}
	address := l.Address
	if address == "" {
		address = l.Location
	}
	return models.Preview{
		Title:   parse.CleanText(l.Title),
		Price:   parse.CleanText(l.Price),
		Address: parse.CleanText(address),
	}
}

// Curate parses the ad into a curated rental. Unparseable fields degrade to
// null with a warning; only an undecodable payload fails.
func (Transformer) Curate(doc capture.Document) (models.CuratedRecord, transform.Report) {
	var r transform.Report
	l, created, err := decodeListing(doc)
	if err != nil {
		r.Fail("document", "%v", err)
		return nil, r
	}
	if l.ID != "" && l.ID != doc.SourceItemID {
		r.Fail("id", "payload id %q does not match %q", l.ID, doc.SourceItemID)
		return nil, r
	}

	title := parse.CleanText(l.Title)
	units := strings.Join(l.UnitDetails, " · ")
	description := parse.Markdown(l.Description)

	rec := &models.CuratedRental{
		Source:       models.SourceFacebook,
		SourceItemID: doc.SourceItemID,
		Title:        title,
		Description:  parse.Optional(description),
		Currency:     parse.Currency(l.Price),
		SourceURL:    parse.Optional(firstNonEmpty(l.URL, doc.URL)),
		Latitude:     l.Latitude,
		Longitude:    l.Longitude,
		ImageURLs:    models.StringArray(dedupe(l.Images)),
		VideoURLs:    models.StringArray(dedupe(l.Videos)),
		Contacts:     models.StringArray{},
	}

	rec.Rent, err = parse.Price(l.Price)
	r.Degrade("rent", err)
	rec.Bedrooms = transform.First(&r, "bedrooms", parse.Bedrooms, units, title)
	rec.Bathrooms = transform.First(&r, "bathrooms", parse.Bathrooms, units)
	rec.SquareFeet = transform.First(&r, "square_feet", parse.SquareFeet, l.SquareFeet, units)

	cats := parse.Categorize(l.Details)
	rec.UnitType, rec.PetPolicy = cats.UnitType, cats.PetPolicy
	rec.Amenities = models.StringArray(cats.Amenities)
	if rec.Amenities == nil {
		rec.Amenities = models.StringArray{}
	}
	rec.BuildingDetails = models.StringArray{}
	for _, w := range cats.Warnings {
		r.Warn("details", "%s", w)
	}

	addr := parse.SplitAddress(l.Address)
	rec.Address = parse.Optional(addr.Street)
	city := addr.City
	if city == "" {
		city = parse.CityOf(l.Location)
	}
	rec.City = parse.Optional(city)
	rec.PostalCode = parse.Optional(addr.PostalCode)
	if rec.PostalCode == nil {
		rec.PostalCode, _ = parse.PostalCode(l.Location)
	}

	if l.Seller != nil {
		if name := parse.CleanText(l.Seller.Name); name != "" {
			rec.Contacts = append(rec.Contacts, name)
		}
	}

	switch {
	case l.ListedAt != "":
		at, err := time.Parse(time.RFC3339, l.ListedAt)
		if err != nil {
			r.Warn("listed_at", "unparsed value %q", l.ListedAt)
		} else {
			at = at.UTC()
			rec.ListedAt = &at
		}
	case created > 0:
		at := time.Unix(created, 0).UTC()
		rec.ListedAt = &at
	}
	return rec, r
}

// Project validates the curated rental and builds the canonical rental.
func (Transformer) Project(rec models.CuratedRecord) (transform.Draft, transform.Report) {
	c, ok := rec.(*models.CuratedRental)
	if !ok || c.Source != models.SourceFacebook {
		var r transform.Report
		r.Fail("record", "unexpected curated record %T", rec)
		return transform.Draft{}, r
	}
	return transform.RentalDraft(c)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func dedupe(urls []string) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
