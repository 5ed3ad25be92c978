package repositories

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/mkoziy/habitat/ingest/internal/models"
)

var (
	curatedRentalColumns = []string{
		"title", "description", "rent", "currency", "bedrooms", "bathrooms", "square_feet",
		"unit_type", "pet_policy", "amenities", "building_details", "address", "city",
		"postal_code", "latitude", "longitude", "image_urls", "video_urls", "contacts",
		"source_url", "listed_at", "curated_at",
	}
	curatedPropertyColumns = []string{
		"matricule", "address", "city", "postal_code", "latitude", "longitude", "units",
		"year_built", "land_area_sqft", "building_area_sqft", "assessed_value", "use_code",
		"use_label", "owners", "curated_at",
	}
	curatedCompanyColumns = []string{
		"neq", "name", "other_names", "status", "address", "city", "postal_code",
		"incorporated_at", "directors", "shareholders", "curated_at",
	}
)

// setExcluded overwrites cols from the conflicting insert.
func setExcluded(q *bun.InsertQuery, cols []string) *bun.InsertQuery {
	for _, col := range cols {
		q = q.Set(col + " = EXCLUDED." + col)
	}
	return q
}

// UpsertCurated writes a Stage-1 record keyed by (source, source_item_id) and
// returns its id. Re-curating the same item updates the row in place.
func (r *Repository) UpsertCurated(ctx context.Context, rec models.CuratedRecord) (int64, error) {
	var (
		model any
		cols  []string
	)
	now := r.now()
	switch c := rec.(type) {
	case *models.CuratedRental:
		c.CuratedAt = now
		model, cols = c, curatedRentalColumns
	case *models.CuratedProperty:
		c.CuratedAt = now
		model, cols = c, curatedPropertyColumns
	case *models.CuratedCompany:
		c.CuratedAt = now
		model, cols = c, curatedCompanyColumns
	default:
		return 0, fmt.Errorf("unsupported curated record %T", rec)
	}

	key := rec.Key()
	q := r.db.NewInsert().
		Model(model).
		On("CONFLICT (source, source_item_id) DO UPDATE")
	if _, err := setExcluded(q, cols).Returning("NULL").Exec(ctx); err != nil {
		return 0, fmt.Errorf("upsert curated %s: %w", key, err)
	}

	var id int64
	err := r.db.NewSelect().
		Model(model).
		Column("id").
		Where("source = ?", key.Source).
		Where("source_item_id = ?", key.SourceItemID).
		Scan(ctx, &id)
	if err != nil {
		return 0, fmt.Errorf("resolve curated %s: %w", key, err)
	}
	setCuratedID(rec, id)
	return id, nil
}

func setCuratedID(rec models.CuratedRecord, id int64) {
	switch c := rec.(type) {
	case *models.CuratedRental:
		c.ID = id
	case *models.CuratedProperty:
		c.ID = id
	case *models.CuratedCompany:
		c.ID = id
	}
}

// GetCurated loads the Stage-1 record of an item.
func (r *Repository) GetCurated(ctx context.Context, key models.ItemKey) (models.CuratedRecord, error) {
	var rec models.CuratedRecord
	switch key.Source {
	case models.SourceFacebook, models.SourceCentris:
		rec = new(models.CuratedRental)
	case models.SourceMunicipal:
		rec = new(models.CuratedProperty)
	case models.SourceRegistry:
		rec = new(models.CuratedCompany)
	default:
		return nil, fmt.Errorf("unknown source %q", key.Source)
	}
	err := r.db.NewSelect().
		Model(rec).
		Where("source = ?", key.Source).
		Where("source_item_id = ?", key.SourceItemID).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return rec, nil
}
