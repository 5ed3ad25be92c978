package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/mkoziy/habitat/ingest/internal/models"
)

var (
	rentalColumns = []string{
		"title", "description", "rent", "currency", "bedrooms", "bathrooms", "square_feet",
		"unit_type", "pet_policy", "amenities", "building_details", "address", "city",
		"postal_code", "contacts", "source_url", "listed_at",
		"latitude", "longitude", "geocoded_at", "images", "videos", "updated_at",
	}
	propertyColumns = []string{
		"address", "city", "postal_code", "units", "year_built", "land_area_sqft",
		"building_area_sqft", "assessed_value", "use_code", "use_label", "owners",
		"latitude", "longitude", "geocoded_at", "owner_company_id", "updated_at",
	}
	companyColumns = []string{
		"name", "normalized_name", "other_names", "status", "address", "city", "postal_code",
		"incorporated_at", "directors", "shareholders", "updated_at",
	}
)

// entityTarget returns the empty model and foreign-key column of a source.
func entityTarget(source models.Source) (models.Entity, string, error) {
	switch source {
	case models.SourceFacebook:
		return new(models.Rental), "facebook_id", nil
	case models.SourceCentris:
		return new(models.Rental), "centris_id", nil
	case models.SourceMunicipal:
		return new(models.Property), "municipal_id", nil
	case models.SourceRegistry:
		return new(models.Company), "registry_id", nil
	}
	return nil, "", fmt.Errorf("unknown source %q", source)
}

// FindEntity loads the canonical row built from an item, keyed by its per-source FK.
func (r *Repository) FindEntity(ctx context.Context, key models.ItemKey) (models.Entity, error) {
	entity, fk, err := entityTarget(key.Source)
	if err != nil {
		return nil, err
	}
	if err := r.db.NewSelect().Model(entity).Where("? = ?", bunIdent(fk), key.SourceItemID).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return entity, nil
}

// UpsertEntity writes a canonical row keyed by its per-source FK and returns
// its id. Every column is overwritten; carrying enrichment values over is the
// caller's job.
func (r *Repository) UpsertEntity(ctx context.Context, e models.Entity) (int64, error) {
	key := e.Key()
	if key.SourceItemID == "" {
		return 0, fmt.Errorf("canonical %T has no source key", e)
	}
	_, fk, err := entityTarget(key.Source)
	if err != nil {
		return 0, err
	}

	var cols []string
	switch e.(type) {
	case *models.Rental:
		cols = rentalColumns
	case *models.Property:
		cols = propertyColumns
	case *models.Company:
		cols = companyColumns
	default:
		return 0, fmt.Errorf("unsupported canonical entity %T", e)
	}

	q := r.db.NewInsert().
		Model(e).
		On(fmt.Sprintf("CONFLICT (%s) DO UPDATE", fk))
	if _, err := setExcluded(q, cols).Returning("NULL").Exec(ctx); err != nil {
		return 0, fmt.Errorf("upsert canonical %s: %w", key, err)
	}

	var id int64
	err = r.db.NewSelect().
		Model(e).
		Column("id").
		Where("? = ?", bunIdent(fk), key.SourceItemID).
		Scan(ctx, &id)
	if err != nil {
		return 0, fmt.Errorf("resolve canonical %s: %w", key, err)
	}
	switch v := e.(type) {
	case *models.Rental:
		v.ID = id
	case *models.Property:
		v.ID = id
	case *models.Company:
		v.ID = id
	}
	return id, nil
}

// UpdateCoordinates stores a geocoding result on a canonical row.
func (r *Repository) UpdateCoordinates(ctx context.Context, e models.Entity, lat, lng float64, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model(e).
		Set("latitude = ?", lat).
		Set("longitude = ?", lng).
		Set("geocoded_at = ?", at).
		Set("updated_at = ?", r.now()).
		Where("id = ?", e.EntityID()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update coordinates %s: %w", e.Key(), err)
	}
	return nil
}

// UpdateMedia stores materialized media paths of one kind on a rental.
func (r *Repository) UpdateMedia(ctx context.Context, e models.Entity, kind models.MediaKind, paths []string) error {
	col := "images"
	if kind == models.MediaVideo {
		col = "videos"
	}
	_, err := r.db.NewUpdate().
		Model(e).
		Set("? = ?", bunIdent(col), models.StringArray(paths)).
		Set("updated_at = ?", r.now()).
		Where("id = ?", e.EntityID()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", col, e.Key(), err)
	}
	return nil
}

// SetOwnerCompany links a property to the registry company that owns it.
func (r *Repository) SetOwnerCompany(ctx context.Context, propertyID, companyID int64) error {
	_, err := r.db.NewUpdate().
		Model((*models.Property)(nil)).
		Set("owner_company_id = ?", companyID).
		Set("updated_at = ?", r.now()).
		Where("id = ?", propertyID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set owner company of property %d: %w", propertyID, err)
	}
	return nil
}
