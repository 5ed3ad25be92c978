package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/mkoziy/habitat/ingest/internal/models"
)

var coreModels = []interface{}{
	(*models.IngestionMetadata)(nil),
	(*models.CuratedRental)(nil),
	(*models.CuratedProperty)(nil),
	(*models.CuratedCompany)(nil),
	(*models.Rental)(nil),
	(*models.Property)(nil),
	(*models.Company)(nil),
	(*models.RollUnit)(nil),
	(*models.ScrapeZone)(nil),
	(*models.ZoneJob)(nil),
	(*models.ZoneJobItem)(nil),
}

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		return createTables(ctx, db, coreModels)
	}, func(ctx context.Context, db *bun.DB) error {
		return dropTables(ctx, db, coreModels)
	})
}
