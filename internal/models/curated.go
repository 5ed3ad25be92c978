package models

import (
	"time"

	"github.com/uptrace/bun"
)

// CuratedRental is the Stage-1 output for rental ads (facebook, centris).
type CuratedRental struct {
	bun.BaseModel `bun:"table:curated_rentals,alias:cr"`

	ID              int64       `bun:"id,pk,autoincrement" json:"id"`
	Source          Source      `bun:"source,notnull,unique:curated_rental_item" json:"source"`
	SourceItemID    string      `bun:"source_item_id,notnull,unique:curated_rental_item" json:"source_item_id"`
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
	Latitude        *float64    `bun:"latitude" json:"latitude,omitempty"`
	Longitude       *float64    `bun:"longitude" json:"longitude,omitempty"`
	ImageURLs       StringArray `bun:"image_urls,type:json,notnull" json:"image_urls"`
	VideoURLs       StringArray `bun:"video_urls,type:json,notnull" json:"video_urls"`
	Contacts        StringArray `bun:"contacts,type:json,notnull" json:"contacts"`
	SourceURL       *string     `bun:"source_url" json:"source_url,omitempty"`
	ListedAt        *time.Time  `bun:"listed_at" json:"listed_at,omitempty"`
	CuratedAt       time.Time   `bun:"curated_at,nullzero,notnull,default:current_timestamp" json:"curated_at"`
}

// Key returns the natural key of the curated record.
func (c *CuratedRental) Key() ItemKey {
	return ItemKey{Source: c.Source, SourceItemID: c.SourceItemID}
}

// CuratedProperty is the Stage-1 output for municipal assessment roll units.
type CuratedProperty struct {
	bun.BaseModel `bun:"table:curated_properties,alias:cp"`

	ID               int64       `bun:"id,pk,autoincrement" json:"id"`
	Source           Source      `bun:"source,notnull,unique:curated_property_item" json:"source"`
	SourceItemID     string      `bun:"source_item_id,notnull,unique:curated_property_item" json:"source_item_id"`
	Matricule        string      `bun:"matricule,notnull" json:"matricule"`
	Address          *string     `bun:"address" json:"address,omitempty"`
	City             *string     `bun:"city" json:"city,omitempty"`
	PostalCode       *string     `bun:"postal_code" json:"postal_code,omitempty"`
	Latitude         *float64    `bun:"latitude" json:"latitude,omitempty"`
	Longitude        *float64    `bun:"longitude" json:"longitude,omitempty"`
	Units            *int        `bun:"units" json:"units,omitempty"`
	YearBuilt        *int        `bun:"year_built" json:"year_built,omitempty"`
	LandAreaSqft     *int        `bun:"land_area_sqft" json:"land_area_sqft,omitempty"`
	BuildingAreaSqft *int        `bun:"building_area_sqft" json:"building_area_sqft,omitempty"`
	AssessedValue    *float64    `bun:"assessed_value" json:"assessed_value,omitempty"`
	UseCode          *string     `bun:"use_code" json:"use_code,omitempty"`
	UseLabel         *string     `bun:"use_label" json:"use_label,omitempty"`
	Owners           StringArray `bun:"owners,type:json,notnull" json:"owners"`
	CuratedAt        time.Time   `bun:"curated_at,nullzero,notnull,default:current_timestamp" json:"curated_at"`
}

// Key returns the natural key of the curated record.
func (c *CuratedProperty) Key() ItemKey {
	return ItemKey{Source: c.Source, SourceItemID: c.SourceItemID}
}

// CuratedCompany is the Stage-1 output for corporate registry pages.
type CuratedCompany struct {
	bun.BaseModel `bun:"table:curated_companies,alias:cc"`

	ID             int64       `bun:"id,pk,autoincrement" json:"id"`
	Source         Source      `bun:"source,notnull,unique:curated_company_item" json:"source"`
	SourceItemID   string      `bun:"source_item_id,notnull,unique:curated_company_item" json:"source_item_id"`
	NEQ            string      `bun:"neq,notnull" json:"neq"`
	Name           string      `bun:"name,notnull" json:"name"`
	OtherNames     StringArray `bun:"other_names,type:json,notnull" json:"other_names"`
	Status         *string     `bun:"status" json:"status,omitempty"`
	Address        *string     `bun:"address" json:"address,omitempty"`
	City           *string     `bun:"city" json:"city,omitempty"`
	PostalCode     *string     `bun:"postal_code" json:"postal_code,omitempty"`
	IncorporatedAt *time.Time  `bun:"incorporated_at" json:"incorporated_at,omitempty"`
	Directors      StringArray `bun:"directors,type:json,notnull" json:"directors"`
	Shareholders   StringArray `bun:"shareholders,type:json,notnull" json:"shareholders"`
	CuratedAt      time.Time   `bun:"curated_at,nullzero,notnull,default:current_timestamp" json:"curated_at"`
}

// Key returns the natural key of the curated record.
func (c *CuratedCompany) Key() ItemKey {
	return ItemKey{Source: c.Source, SourceItemID: c.SourceItemID}
}
