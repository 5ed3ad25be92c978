package municipal

import (
	"strings"
	"time"

	"github.com/mkoziy/habitat/ingest/internal/capture"
	"github.com/mkoziy/habitat/ingest/internal/models"
	"github.com/mkoziy/habitat/ingest/internal/parse"
	"github.com/mkoziy/habitat/ingest/internal/transform"
)

const (
	minYearBuilt = 1600
	maxUnits     = 5000
)

// Transformer turns assessment roll captures into properties.
type Transformer struct {
	now func() time.Time
}

var _ transform.Transformer = Transformer{}

// New returns the assessment roll transformer.
func New() Transformer { return Transformer{now: time.Now} }

func (Transformer) Source() models.Source { return models.SourceMunicipal }

func (Transformer) Preview(doc capture.Document) models.Preview {
	u, err := decodeUnit(doc)
	if err != nil {
		return models.Preview{}
	}
	return models.Preview{
		Title:   parse.CleanText(u.UseLabel),
		Price:   parse.CleanText(u.AssessedValue),
		Address: parse.CleanText(u.Address),
	}
}

// Curate parses the roll unit into a curated property.
func (Transformer) Curate(doc capture.Document) (models.CuratedRecord, transform.Report) {
	var r transform.Report
	u, err := decodeUnit(doc)
	if err != nil {
		r.Fail("document", "%v", err)
		return nil, r
	}
	matricule := strings.TrimSpace(u.Matricule)
	if matricule == "" {
		matricule = doc.SourceItemID
	} else if matricule != doc.SourceItemID {
		r.Fail("matricule", "payload matricule %q does not match %q", matricule, doc.SourceItemID)
		return nil, r
	}

	addr := parse.SplitAddress(u.Address)
	rec := &models.CuratedProperty{
		Source:       models.SourceMunicipal,
		SourceItemID: doc.SourceItemID,
		Matricule:    matricule,
		Address:      parse.Optional(addr.Street),
		City:         parse.Optional(firstNonEmpty(parse.CleanText(u.City), addr.City)),
		Latitude:     u.Latitude,
		Longitude:    u.Longitude,
		UseCode:      parse.Optional(u.UseCode),
		UseLabel:     parse.Optional(parse.CleanText(u.UseLabel)),
		Owners:       models.StringArray{},
	}

	code := firstNonEmpty(u.PostalCode, addr.PostalCode)
	if code != "" {
		rec.PostalCode, err = parse.PostalCode(code)
		r.Degrade("postal_code", err)
	}
	rec.Units, err = parse.Integer(u.Units)
	r.Degrade("units", err)
	rec.YearBuilt, err = parse.Integer(u.YearBuilt)
	r.Degrade("year_built", err)
	rec.LandAreaSqft, err = parse.SquareFeet(u.LandArea)
	r.Degrade("land_area", err)
	rec.BuildingAreaSqft, err = parse.SquareFeet(u.BuildingArea)
	r.Degrade("building_area", err)
	rec.AssessedValue, err = parse.Price(u.AssessedValue)
	r.Degrade("assessed_value", err)

	seen := make(map[string]struct{})
	for _, o := range u.Owners {
		name := parse.CleanText(o.Name)
		if name == "" {
			continue
		}
		if _, dup := seen[parse.NormalizeName(name)]; dup {
			continue
		}
		seen[parse.NormalizeName(name)] = struct{}{}
		rec.Owners = append(rec.Owners, name)
	}
	return rec, r
}

// Project validates the curated unit and builds the canonical property.
// Implausible build years and unit counts are dropped with a warning.
func (t Transformer) Project(rec models.CuratedRecord) (transform.Draft, transform.Report) {
	var r transform.Report
	c, ok := rec.(*models.CuratedProperty)
	if !ok {
		r.Fail("record", "unexpected curated record %T", rec)
		return transform.Draft{}, r
	}
	transform.CheckRequired(&r, "address", parse.Deref(c.Address))
	transform.CheckCoordinates(&r, c.Latitude, c.Longitude)
	transform.CheckPostalCode(&r, c.PostalCode)
	if c.AssessedValue != nil && *c.AssessedValue < 0 {
		r.Fail("assessed_value", "%.0f must not be negative", *c.AssessedValue)
	}
	if !r.OK() {
		return transform.Draft{}, r
	}

	yearBuilt := c.YearBuilt
	if yearBuilt != nil && (*yearBuilt < minYearBuilt || *yearBuilt > t.clock().Year()+1) {
		r.Warn("year_built", "%d out of range, dropped", *yearBuilt)
		yearBuilt = nil
	}
	units := c.Units
	if units != nil && (*units < 0 || *units > maxUnits) {
		r.Warn("units", "%d out of range, dropped", *units)
		units = nil
	}

	id := c.SourceItemID
	p := &models.Property{
		MunicipalID:      &id,
		Address:          parse.Deref(c.Address),
		City:             c.City,
		PostalCode:       c.PostalCode,
		Units:            units,
		YearBuilt:        yearBuilt,
		LandAreaSqft:     c.LandAreaSqft,
		BuildingAreaSqft: c.BuildingAreaSqft,
		AssessedValue:    c.AssessedValue,
		UseCode:          c.UseCode,
		UseLabel:         c.UseLabel,
		Owners:           c.Owners,
		Latitude:         c.Latitude,
		Longitude:        c.Longitude,
	}
	if p.Owners == nil {
		p.Owners = models.StringArray{}
	}
	return transform.Draft{
		Entity:     p,
		Address:    transform.NewAddressQuery(p.Address, parse.Deref(c.City), parse.Deref(c.PostalCode)),
		OwnerNames: []string(c.Owners),
	}, r
}

func (t Transformer) clock() time.Time {
	if t.now == nil {
		return time.Now()
	}
	return t.now()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
