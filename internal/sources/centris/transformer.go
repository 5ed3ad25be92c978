package centris

import (
	"fmt"
	"strings"
	"time"

	"github.com/mkoziy/habitat/ingest/internal/capture"
	"github.com/mkoziy/habitat/ingest/internal/models"
	"github.com/mkoziy/habitat/ingest/internal/parse"
	"github.com/mkoziy/habitat/ingest/internal/transform"
)

// Characteristic labels, folded.
var (
	roomLabels     = []string{"pieces", "nombre de pieces", "rooms"}
	bedroomLabels  = []string{"chambres", "chambres a coucher", "bedrooms"}
	bathroomLabels = []string{"salles de bain", "salle de bain", "bathrooms"}
	halfBathLabels = []string{"salles d'eau", "salle d'eau", "powder rooms"}
	areaLabels     = []string{"superficie habitable", "superficie", "living area", "net area"}
	petLabels      = []string{"animaux", "animaux acceptes", "pets"}
	typeLabels     = []string{"genre de propriete", "type", "property type"}
)

// Transformer turns brokerage captures into rentals.
type Transformer struct{}

var _ transform.Transformer = Transformer{}

// New returns the brokerage transformer.
func New() Transformer { return Transformer{} }

func (Transformer) Source() models.Source { return models.SourceCentris }

func (Transformer) Preview(doc capture.Document) models.Preview {
	var l Listing
	if err := doc.Unmarshal(&l); err != nil {
		return models.Preview{}
	}
	address := strings.TrimSpace(strings.Join(nonBlank(l.Address.Street, l.Address.City), ", "))
	return models.Preview{
		Title:   parse.CleanText(l.Title),
		Price:   parse.CleanText(l.Price),
		Address: address,
	}
}

// Curate parses the listing into a curated rental.
func (Transformer) Curate(doc capture.Document) (models.CuratedRecord, transform.Report) {
	var r transform.Report
	var l Listing
	if err := doc.Unmarshal(&l); err != nil {
		r.Fail("document", "%v", err)
		return nil, r
	}
	if l.ListingID != "" && l.ListingID != doc.SourceItemID {
		r.Fail("listing_id", "payload id %q does not match %q", l.ListingID, doc.SourceItemID)
		return nil, r
	}

	rows := index(l.Characteristics)
	title := parse.CleanText(l.Title)
	rec := &models.CuratedRental{
		Source:       models.SourceCentris,
		SourceItemID: doc.SourceItemID,
		Title:        title,
		Description:  parse.Optional(parse.Markdown(l.Description)),
		Currency:     parse.Currency(l.Price),
		Address:      parse.Optional(parse.CleanText(l.Address.Street)),
		City:         parse.Optional(parse.CleanText(l.Address.City)),
		ImageURLs:    models.StringArray(nonBlank(l.Photos...)),
		VideoURLs:    models.StringArray(nonBlank(l.Videos...)),
		Contacts:     models.StringArray{},
		SourceURL:    parse.Optional(l.URL),
	}
	if rec.SourceURL == nil {
		rec.SourceURL = parse.Optional(doc.URL)
	}

	var err error
	rec.Rent, err = parse.Price(l.Price)
	r.Degrade("rent", err)

	rooms, _ := rows.take(roomLabels)
	if v, ok := rows.take(bedroomLabels); ok {
		rec.Bedrooms, err = parse.Integer(v)
		r.Degrade("bedrooms", err)
	} else {
		rec.Bedrooms = transform.First(&r, "bedrooms", parse.Bedrooms, roomNotation(rooms), title)
	}

	if v, ok := rows.take(bathroomLabels); ok {
		n, err := parse.Number(v)
		r.Degrade("bathrooms", err)
		rec.Bathrooms = n
	}
	if v, ok := rows.take(halfBathLabels); ok {
		if n, err := parse.Integer(v); err == nil && n != nil {
			total := float64(*n) * 0.5
			if rec.Bathrooms != nil {
				total += *rec.Bathrooms
			}
			rec.Bathrooms = &total
		}
	}

	if v, ok := rows.take(areaLabels); ok {
		rec.SquareFeet, err = parse.SquareFeet(v)
		r.Degrade("square_feet", err)
	}

	details := append([]string{}, l.Category)
	if v, ok := rows.take(typeLabels); ok {
		details = append(details, v)
	}
	if v, ok := rows.take(petLabels); ok {
		details = append(details, petDetail(v))
	}
	details = append(details, l.Features...)
	cats := parse.Categorize(details)
	rec.UnitType, rec.PetPolicy = cats.UnitType, cats.PetPolicy
	rec.Amenities = models.StringArray(cats.Amenities)
	if rec.Amenities == nil {
		rec.Amenities = models.StringArray{}
	}
	for _, w := range cats.Warnings {
		r.Warn("features", "%s", w)
	}

	rec.BuildingDetails = models.StringArray{}
	for _, row := range rows.rest() {
		rec.BuildingDetails = append(rec.BuildingDetails, row.Label+": "+row.Value)
	}

	if l.Address.PostalCode != "" {
		rec.PostalCode, err = parse.PostalCode(l.Address.PostalCode)
		r.Degrade("postal_code", err)
	}
	if l.Coordinates != nil {
		lat, lng := l.Coordinates.Lat, l.Coordinates.Lng
		rec.Latitude, rec.Longitude = &lat, &lng
	}

	for _, b := range l.Brokers {
		if contact := brokerContact(b); contact != "" {
			rec.Contacts = append(rec.Contacts, contact)
		}
	}

	if l.PublishedAt != "" {
		if at, err := time.Parse("2006-01-02", l.PublishedAt); err == nil {
			rec.ListedAt = &at
		} else {
			r.Warn("listed_at", "unparsed value %q", l.PublishedAt)
		}
	}
	return rec, r
}

// Project validates the curated rental and builds the canonical rental.
func (Transformer) Project(rec models.CuratedRecord) (transform.Draft, transform.Report) {
	c, ok := rec.(*models.CuratedRental)
	if !ok || c.Source != models.SourceCentris {
		var r transform.Report
		r.Fail("record", "unexpected curated record %T", rec)
		return transform.Draft{}, r
	}
	return transform.RentalDraft(c)
}

type rowIndex struct {
	rows []Characteristic
	used []bool
}

func index(rows []Characteristic) *rowIndex {
	out := &rowIndex{used: make([]bool, len(rows))}
	for _, row := range rows {
		out.rows = append(out.rows, Characteristic{
			Label: parse.CleanText(row.Label),
			Value: parse.CleanText(row.Value),
		})
	}
	return out
}

// take returns the value of the first unused row whose folded label is in labels.
func (x *rowIndex) take(labels []string) (string, bool) {
	for i, row := range x.rows {
		if x.used[i] {
			continue
		}
		folded := parse.Fold(row.Label)
		for _, l := range labels {
			if folded == l {
				x.used[i] = true
				return row.Value, row.Value != ""
			}
		}
	}
	return "", false
}

func (x *rowIndex) rest() []Characteristic {
	var out []Characteristic
	for i, row := range x.rows {
		if !x.used[i] && row.Label != "" && row.Value != "" {
			out = append(out, row)
		}
	}
	return out
}

// roomNotation turns a bare room count like "4.5" or "4 ½" into half-room notation.
func roomNotation(v string) string {
	v = strings.TrimSpace(v)
	for _, suffix := range []string{".5", ",5"} {
		if strings.HasSuffix(v, suffix) {
			return strings.TrimSuffix(v, suffix) + " ½"
		}
	}
	return v
}

func petDetail(v string) string {
	switch parse.Fold(v) {
	case "oui", "yes", "acceptes", "permis":
		return "animaux acceptés"
	case "non", "no", "non acceptes", "interdits":
		return "pas d'animaux"
	}
	return v
}

func brokerContact(b Broker) string {
	name := parse.CleanText(b.Name)
	if name == "" {
		return ""
	}
	parts := []string{name}
	if agency := parse.CleanText(b.Agency); agency != "" {
		parts[0] = fmt.Sprintf("%s (%s)", name, agency)
	}
	if phone := parse.CleanText(b.Phone); phone != "" {
		parts = append(parts, phone)
	}
	return strings.Join(parts, " ")
}

func nonBlank(values ...string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
