package models

import "time"

// CuratedRecord is a Stage-1 row keyed by (source, source_item_id).
type CuratedRecord interface {
	Key() ItemKey
	RecordID() int64
}

// Entity is a canonical row keyed by its per-source foreign key.
type Entity interface {
	Key() ItemKey
	EntityID() int64
}

// Locatable entities carry geocoding enrichment.
type Locatable interface {
	Coordinates() (lat, lng *float64, at *time.Time)
	SetCoordinates(lat, lng float64, at time.Time)
}

// MediaHolder entities carry materialized media paths.
type MediaHolder interface {
	Media(kind MediaKind) []string
	SetMedia(kind MediaKind, paths []string)
}

// HasCoordinates reports whether a locatable entity already has a location.
func HasCoordinates(l Locatable) bool {
	lat, lng, _ := l.Coordinates()
	return lat != nil && lng != nil
}

func (c *CuratedRental) RecordID() int64   { return c.ID }
func (c *CuratedProperty) RecordID() int64 { return c.ID }
func (c *CuratedCompany) RecordID() int64  { return c.ID }

func (r *Rental) EntityID() int64   { return r.ID }
func (p *Property) EntityID() int64 { return p.ID }
func (c *Company) EntityID() int64  { return c.ID }

var (
	_ Entity      = (*Rental)(nil)
	_ Locatable   = (*Rental)(nil)
	_ MediaHolder = (*Rental)(nil)
	_ Entity      = (*Property)(nil)
	_ Locatable   = (*Property)(nil)
	_ Entity      = (*Company)(nil)
)
