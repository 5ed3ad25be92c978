package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		return execAll(ctx, db, []string{
			"CREATE INDEX IF NOT EXISTS idx_ingestion_transform_status ON ingestion_metadata(transform_status, source)",
			"CREATE INDEX IF NOT EXISTS idx_ingestion_capture_status ON ingestion_metadata(capture_status)",
			"CREATE INDEX IF NOT EXISTS idx_companies_normalized_name ON companies(normalized_name)",
			"CREATE INDEX IF NOT EXISTS idx_roll_units_location ON roll_units(latitude, longitude)",
			"CREATE INDEX IF NOT EXISTS idx_zone_jobs_zone ON zone_jobs(zone_id, created_at)",
			"CREATE INDEX IF NOT EXISTS idx_zone_job_items_job ON zone_job_items(job_id, position)",
		})
	}, func(ctx context.Context, db *bun.DB) error {
		return execAll(ctx, db, []string{
			"DROP INDEX IF EXISTS idx_ingestion_transform_status",
			"DROP INDEX IF EXISTS idx_ingestion_capture_status",
			"DROP INDEX IF EXISTS idx_companies_normalized_name",
			"DROP INDEX IF EXISTS idx_roll_units_location",
			"DROP INDEX IF EXISTS idx_zone_jobs_zone",
			"DROP INDEX IF EXISTS idx_zone_job_items_job",
		})
	})
}
