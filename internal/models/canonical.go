package models

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// Rental is the unified rental listing exposed to consumers.
type Rental struct {
	bun.BaseModel `bun:"table:rentals,alias:rl"`

	ID              int64       `bun:"id,pk,autoincrement" json:"id"`
	FacebookID      *string     `bun:"facebook_id,unique" json:"facebook_id,omitempty"`
	CentrisID       *string     `bun:"centris_id,unique" json:"centris_id,omitempty"`
	Title           string      `bun:"title,notnull" json:"title"`
	Description     *string     `bun:"description" json:"description,omitempty"`
	Rent            *float64    `bun:"rent" json:"rent,omitempty"`
	Currency        string      `bun:"currency,notnull" json:"currency"`
	Bedrooms        *int        `bun:"bedrooms" json:"bedrooms,omitempty"`
	Bathrooms       *float64    `bun:"bathrooms" json:"bathrooms,omitempty"`
	SquareFeet      *int        `bun:"square_feet" json:"square_feet,omitempty"`
	UnitType        *string     `bun:"unit_type" json:"unit_type,omitempty"`
	PetPolicy       *string     `bun:"pet_policy" json:"pet_policy,omitempty"`
	Amenities       StringArray `bun:"amenities,type:json,notnull" json:"amenities"`
	BuildingDetails StringArray `bun:"building_details,type:json,notnull" json:"building_details"`
	Address         *string     `bun:"address" json:"address,omitempty"`
	City            *string     `bun:"city" json:"city,omitempty"`
	PostalCode      *string     `bun:"postal_code" json:"postal_code,omitempty"`
	Contacts        StringArray `bun:"contacts,type:json,notnull" json:"contacts"`
	SourceURL       *string     `bun:"source_url" json:"source_url,omitempty"`
	ListedAt        *time.Time  `bun:"listed_at" json:"listed_at,omitempty"`

	Latitude   *float64    `bun:"latitude" json:"latitude,omitempty"`
	Longitude  *float64    `bun:"longitude" json:"longitude,omitempty"`
	GeocodedAt *time.Time  `bun:"geocoded_at" json:"geocoded_at,omitempty"`
	Images     StringArray `bun:"images,type:json,notnull" json:"images"`
	Videos     StringArray `bun:"videos,type:json,notnull" json:"videos"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

var _ bun.BeforeAppendModelHook = (*Rental)(nil)

// BeforeAppendModel stamps the update time on every write.
func (r *Rental) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery, *bun.UpdateQuery:
		r.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// Key returns the per-source key the rental was built from.
func (r *Rental) Key() ItemKey {
	switch {
	case r.FacebookID != nil:
		return ItemKey{Source: SourceFacebook, SourceItemID: *r.FacebookID}
	case r.CentrisID != nil:
		return ItemKey{Source: SourceCentris, SourceItemID: *r.CentrisID}
	}
	return ItemKey{}
}

// Coordinates returns the stored location, if any.
func (r *Rental) Coordinates() (lat, lng *float64, at *time.Time) {
	return r.Latitude, r.Longitude, r.GeocodedAt
}

// SetCoordinates records a location.
func (r *Rental) SetCoordinates(lat, lng float64, at time.Time) {
	r.Latitude, r.Longitude = &lat, &lng
	r.GeocodedAt = &at
}

// Media returns materialized media paths of the given kind.
func (r *Rental) Media(kind MediaKind) []string {
	if kind == MediaVideo {
		return r.Videos
	}
	return r.Images
}

// SetMedia replaces materialized media paths of the given kind.
func (r *Rental) SetMedia(kind MediaKind, paths []string) {
	if kind == MediaVideo {
		r.Videos = StringArray(paths)
		return
	}
	r.Images = StringArray(paths)
}

// Property is the unified property record built from the assessment roll.
type Property struct {
	bun.BaseModel `bun:"table:properties,alias:pr"`

	ID               int64       `bun:"id,pk,autoincrement" json:"id"`
	MunicipalID      *string     `bun:"municipal_id,unique" json:"municipal_id,omitempty"`
	Address          string      `bun:"address,notnull" json:"address"`
	City             *string     `bun:"city" json:"city,omitempty"`
	PostalCode       *string     `bun:"postal_code" json:"postal_code,omitempty"`
	Units            *int        `bun:"units" json:"units,omitempty"`
	YearBuilt        *int        `bun:"year_built" json:"year_built,omitempty"`
	LandAreaSqft     *int        `bun:"land_area_sqft" json:"land_area_sqft,omitempty"`
	BuildingAreaSqft *int        `bun:"building_area_sqft" json:"building_area_sqft,omitempty"`
	AssessedValue    *float64    `bun:"assessed_value" json:"assessed_value,omitempty"`
	UseCode          *string     `bun:"use_code" json:"use_code,omitempty"`
	UseLabel         *string     `bun:"use_label" json:"use_label,omitempty"`
	Owners           StringArray `bun:"owners,type:json,notnull" json:"owners"`

	Latitude       *float64   `bun:"latitude" json:"latitude,omitempty"`
	Longitude      *float64   `bun:"longitude" json:"longitude,omitempty"`
	GeocodedAt     *time.Time `bun:"geocoded_at" json:"geocoded_at,omitempty"`
	OwnerCompanyID *int64     `bun:"owner_company_id" json:"owner_company_id,omitempty"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// BeforeAppendModel stamps the update time on every write.
func (p *Property) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery, *bun.UpdateQuery:
		p.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// Key returns the per-source key the property was built from.
func (p *Property) Key() ItemKey {
	if p.MunicipalID == nil {
		return ItemKey{}
	}
	return ItemKey{Source: SourceMunicipal, SourceItemID: *p.MunicipalID}
}

// Coordinates returns the stored location, if any.
func (p *Property) Coordinates() (lat, lng *float64, at *time.Time) {
	return p.Latitude, p.Longitude, p.GeocodedAt
}

// SetCoordinates records a location.
func (p *Property) SetCoordinates(lat, lng float64, at time.Time) {
	p.Latitude, p.Longitude = &lat, &lng
	p.GeocodedAt = &at
}

// Company is a corporate registry entity.
type Company struct {
	bun.BaseModel `bun:"table:companies,alias:co"`

	ID             int64       `bun:"id,pk,autoincrement" json:"id"`
	RegistryID     *string     `bun:"registry_id,unique" json:"registry_id,omitempty"`
	Name           string      `bun:"name,notnull" json:"name"`
	NormalizedName string      `bun:"normalized_name,notnull" json:"normalized_name"`
	OtherNames     StringArray `bun:"other_names,type:json,notnull" json:"other_names"`
	Status         *string     `bun:"status" json:"status,omitempty"`
	Address        *string     `bun:"address" json:"address,omitempty"`
	City           *string     `bun:"city" json:"city,omitempty"`
	PostalCode     *string     `bun:"postal_code" json:"postal_code,omitempty"`
	IncorporatedAt *time.Time  `bun:"incorporated_at" json:"incorporated_at,omitempty"`
	Directors      StringArray `bun:"directors,type:json,notnull" json:"directors"`
	Shareholders   StringArray `bun:"shareholders,type:json,notnull" json:"shareholders"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// BeforeAppendModel stamps the update time on every write.
func (c *Company) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery, *bun.UpdateQuery:
		c.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// Key returns the per-source key the company was built from.
func (c *Company) Key() ItemKey {
	if c.RegistryID == nil {
		return ItemKey{}
	}
	return ItemKey{Source: SourceRegistry, SourceItemID: *c.RegistryID}
}

// Validate checks that the company can be matched against.
func (c *Company) Validate() error {
	if c.Name == "" {
		return errors.New("company name is required")
	}
	if c.NormalizedName == "" {
		return errors.New("normalized name is required")
	}
	return nil
}
