package registry

import (
	"strings"
	"time"

	"github.com/mkoziy/habitat/ingest/internal/capture"
	"github.com/mkoziy/habitat/ingest/internal/models"
	"github.com/mkoziy/habitat/ingest/internal/parse"
	"github.com/mkoziy/habitat/ingest/internal/transform"
)

var dateLayouts = []string{"2006-01-02", "2006/01/02", "02-01-2006", time.RFC3339}

// Transformer turns enterprise register captures into companies.
type Transformer struct{}

var _ transform.Transformer = Transformer{}

// New returns the enterprise register transformer.
func New() Transformer { return Transformer{} }

func (Transformer) Source() models.Source { return models.SourceRegistry }

func (Transformer) Preview(doc capture.Document) models.Preview {
	c, err := decodeCompany(doc)
	if err != nil {
		return models.Preview{}
	}
	return models.Preview{Title: parse.CleanText(c.Name), Address: parse.CleanText(c.Address)}
}

// Curate parses the register page into a curated company.
func (Transformer) Curate(doc capture.Document) (models.CuratedRecord, transform.Report) {
	var r transform.Report
	c, err := decodeCompany(doc)
	if err != nil {
		r.Fail("document", "%v", err)
		return nil, r
	}
	neq := strings.ReplaceAll(strings.TrimSpace(c.NEQ), " ", "")
	if neq == "" {
		neq = doc.SourceItemID
	} else if neq != doc.SourceItemID {
		r.Fail("neq", "payload NEQ %q does not match %q", neq, doc.SourceItemID)
		return nil, r
	}

	name := parse.CleanText(c.Name)
	addr := parse.SplitAddress(c.Address)
	rec := &models.CuratedCompany{
		Source:       models.SourceRegistry,
		SourceItemID: doc.SourceItemID,
		NEQ:          neq,
		Name:         name,
		OtherNames:   models.StringArray{},
		Status:       parse.Optional(parse.CleanText(c.Status)),
		Address:      parse.Optional(addr.Street),
		City:         parse.Optional(addr.City),
		PostalCode:   parse.Optional(addr.PostalCode),
		Directors:    people(c.Directors),
		Shareholders: people(c.Shareholders),
	}

	seen := map[string]struct{}{parse.NormalizeName(name): {}}
	for _, other := range c.OtherNames {
		other = parse.CleanText(other)
		norm := parse.NormalizeName(other)
		if other == "" {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		rec.OtherNames = append(rec.OtherNames, other)
	}

	if raw := strings.TrimSpace(c.IncorporatedAt); raw != "" {
		if at, ok := parseDate(raw); ok {
			rec.IncorporatedAt = &at
		} else {
			r.Warn("incorporated_at", "unparsed value %q", raw)
		}
	}
	return rec, r
}

// Project validates the curated company and builds the canonical company
// with its comparison name.
func (Transformer) Project(rec models.CuratedRecord) (transform.Draft, transform.Report) {
	var r transform.Report
	c, ok := rec.(*models.CuratedCompany)
	if !ok {
		r.Fail("record", "unexpected curated record %T", rec)
		return transform.Draft{}, r
	}
	transform.CheckRequired(&r, "name", c.Name)
	transform.CheckPostalCode(&r, c.PostalCode)
	if !r.OK() {
		return transform.Draft{}, r
	}

	id := c.SourceItemID
	company := &models.Company{
		RegistryID:     &id,
		Name:           c.Name,
		NormalizedName: parse.NormalizeName(c.Name),
		OtherNames:     c.OtherNames,
		Status:         c.Status,
		Address:        c.Address,
		City:           c.City,
		PostalCode:     c.PostalCode,
		IncorporatedAt: c.IncorporatedAt,
		Directors:      c.Directors,
		Shareholders:   c.Shareholders,
	}
	if err := company.Validate(); err != nil {
		r.Fail("name", "%v", err)
		return transform.Draft{}, r
	}
	return transform.Draft{Entity: company}, r
}

func people(in []Person) models.StringArray {
	out := models.StringArray{}
	for _, p := range in {
		name := parse.CleanText(p.Name)
		if name == "" {
			continue
		}
		if role := parse.CleanText(p.Role); role != "" {
			name += " (" + role + ")"
		}
		out = append(out, name)
	}
	return out
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if at, err := time.Parse(layout, raw); err == nil {
			return at.UTC(), true
		}
	}
	return time.Time{}, false
}
