package transform

import (
	"github.com/mkoziy/habitat/ingest/internal/models"
	"github.com/mkoziy/habitat/ingest/internal/parse"
)

// First runs rule over inputs in order and returns the first value found.
// A warning is recorded only when some input was present and none matched.
func First[T any](r *Report, field string, rule func(string) (*T, error), inputs ...string) *T {
	var firstErr error
	for _, in := range inputs {
		v, err := rule(in)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if v != nil {
			return v
		}
	}
	r.Degrade(field, firstErr)
	return nil
}

// RentalDraft validates a curated rental and projects it onto the unified
// rental listing. Both rental sources share this shape.
func RentalDraft(c *models.CuratedRental) (Draft, Report) {
	var r Report
	CheckRequired(&r, "title", c.Title)
	CheckRent(&r, c.Rent)
	CheckRooms(&r, c.Bedrooms, c.Bathrooms)
	CheckCoordinates(&r, c.Latitude, c.Longitude)
	CheckPostalCode(&r, c.PostalCode)
	if c.SquareFeet != nil && *c.SquareFeet <= 0 {
		r.Fail("square_feet", "%d must be positive", *c.SquareFeet)
	}
	if !r.OK() {
		return Draft{}, r
	}

	id := c.SourceItemID
	rental := &models.Rental{
		Title:           c.Title,
		Description:     c.Description,
		Rent:            c.Rent,
		Currency:        c.Currency,
		Bedrooms:        c.Bedrooms,
		Bathrooms:       c.Bathrooms,
		SquareFeet:      c.SquareFeet,
		UnitType:        c.UnitType,
		PetPolicy:       c.PetPolicy,
		Amenities:       nonNil(c.Amenities),
		BuildingDetails: nonNil(c.BuildingDetails),
		Address:         c.Address,
		City:            c.City,
		PostalCode:      c.PostalCode,
		Contacts:        nonNil(c.Contacts),
		SourceURL:       c.SourceURL,
		ListedAt:        c.ListedAt,
		Latitude:        c.Latitude,
		Longitude:       c.Longitude,
		Images:          models.StringArray{},
		Videos:          models.StringArray{},
	}
	switch c.Source {
	case models.SourceFacebook:
		rental.FacebookID = &id
	case models.SourceCentris:
		rental.CentrisID = &id
	default:
		r.Fail("source", "%q does not produce rentals", c.Source)
		return Draft{}, r
	}
	if rental.Currency == "" {
		rental.Currency = "CAD"
	}

	d := Draft{
		Entity:    rental,
		Address:   NewAddressQuery(parse.Deref(c.Address), parse.Deref(c.City), parse.Deref(c.PostalCode)),
		MediaURLs: map[models.MediaKind][]string{},
	}
	if len(c.ImageURLs) > 0 {
		d.MediaURLs[models.MediaImage] = []string(c.ImageURLs)
	}
	if len(c.VideoURLs) > 0 {
		d.MediaURLs[models.MediaVideo] = []string(c.VideoURLs)
	}
	return d, r
}

// NewAddressQuery returns nil when there is nothing to geocode.
func NewAddressQuery(address, city, postal string) *AddressQuery {
	if address == "" && city == "" && postal == "" {
		return nil
	}
	return &AddressQuery{Address: address, City: city, PostalCode: postal}
}

func nonNil(s models.StringArray) models.StringArray {
	if s == nil {
		return models.StringArray{}
	}
	return s
}
