package repositories

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/mkoziy/habitat/ingest/internal/models"
)

// eligibleUnits selects roll units inside a zone's box that pass its filters.
func eligibleUnits(q *bun.SelectQuery, zone *models.ScrapeZone) *bun.SelectQuery {
	q = q.Where("ru.latitude BETWEEN ? AND ?", zone.MinLat, zone.MaxLat).
		Where("ru.longitude BETWEEN ? AND ?", zone.MinLng, zone.MaxLng)
	if zone.MinUnits != nil {
		q = q.Where("ru.units >= ?", *zone.MinUnits)
	}
	if zone.MaxUnits != nil {
		q = q.Where("ru.units <= ?", *zone.MaxUnits)
	}
	if zone.UseCode != nil {
		q = q.Where("ru.use_code = ?", *zone.UseCode)
	}
	return q
}

const (
	hasProperty = "EXISTS (SELECT 1 FROM properties AS p WHERE p.municipal_id = ru.matricule)"
	hasCapture  = "EXISTS (SELECT 1 FROM ingestion_metadata AS m WHERE m.source = ? AND m.source_item_id = ru.matricule AND m.capture_status = ?)"
)

// scrapedExists keeps units with a canonical property or a successful capture
// still waiting for its transform.
func scrapedExists(q *bun.SelectQuery) *bun.SelectQuery {
	return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where(hasProperty).
			WhereOr(hasCapture, models.SourceMunicipal, models.CaptureSuccess)
	})
}

func notScraped(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Where("NOT "+hasProperty).
		Where("NOT "+hasCapture, models.SourceMunicipal, models.CaptureSuccess)
}

// ZoneStats counts eligible roll units in a zone and how many already have a
// property or a successful capture.
func (r *Repository) ZoneStats(ctx context.Context, zone *models.ScrapeZone) (total, scraped int, err error) {
	total, err = eligibleUnits(r.db.NewSelect().Model((*models.RollUnit)(nil)), zone).Count(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("count zone units: %w", err)
	}
	scraped, err = scrapedExists(eligibleUnits(r.db.NewSelect().Model((*models.RollUnit)(nil)), zone)).Count(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("count scraped zone units: %w", err)
	}
	return total, scraped, nil
}

// PendingUnits returns up to limit eligible roll units with neither a canonical
// property nor a successful capture, in insertion order.
func (r *Repository) PendingUnits(ctx context.Context, zone *models.ScrapeZone, limit int) ([]*models.RollUnit, error) {
	var units []*models.RollUnit
	q := notScraped(eligibleUnits(r.db.NewSelect().Model(&units), zone)).OrderExpr("ru.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("select pending units: %w", err)
	}
	return units, nil
}

// InsertRollUnits loads assessment roll rows, ignoring matricules already present.
func (r *Repository) InsertRollUnits(ctx context.Context, units []*models.RollUnit) error {
	if len(units) == 0 {
		return nil
	}
	_, err := r.db.NewInsert().
		Model(&units).
		On("CONFLICT (matricule) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	return err
}

// CreateZone inserts a zone with its initial stats.
func (r *Repository) CreateZone(ctx context.Context, zone *models.ScrapeZone) error {
	zone.CreatedAt = r.now()
	_, err := r.db.NewInsert().Model(zone).Returning("id").Exec(ctx)
	return err
}

// GetZone fetches a zone by id.
func (r *Repository) GetZone(ctx context.Context, id int64) (*models.ScrapeZone, error) {
	zone := new(models.ScrapeZone)
	if err := r.db.NewSelect().Model(zone).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return zone, nil
}

// UpdateZoneStats stores refreshed counters.
func (r *Repository) UpdateZoneStats(ctx context.Context, zone *models.ScrapeZone) error {
	_, err := r.db.NewUpdate().
		Model(zone).
		Column("total_properties", "scraped_count", "stats_refreshed_at").
		WherePK().
		Exec(ctx)
	return err
}

// CreateJob inserts a job and its ordered items in one transaction.
func (r *Repository) CreateJob(ctx context.Context, job *models.ZoneJob, items []*models.ZoneJobItem) error {
	job.CreatedAt = r.now()
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(job).Returning("id").Exec(ctx); err != nil {
			return err
		}
		for i, item := range items {
			item.JobID = job.ID
			item.Position = i + 1
		}
		if len(items) > 0 {
			if _, err := tx.NewInsert().Model(&items).Returning("NULL").Exec(ctx); err != nil {
				return err
			}
		}
		job.Items = items
		return nil
	})
}

// GetJob fetches a job with its items in selection order.
func (r *Repository) GetJob(ctx context.Context, id int64) (*models.ZoneJob, error) {
	job := new(models.ZoneJob)
	err := r.db.NewSelect().
		Model(job).
		Relation("Items", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("zi.position ASC")
		}).
		Where("zj.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return job, nil
}

// ListJobs returns the jobs of a zone, newest first.
func (r *Repository) ListJobs(ctx context.Context, zoneID int64) ([]*models.ZoneJob, error) {
	var jobs []*models.ZoneJob
	err := r.db.NewSelect().
		Model(&jobs).
		Where("zone_id = ?", zoneID).
		OrderExpr("id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// UpdateJobStatus moves a job from one status to another. It reports false when
// the job was no longer in the expected status.
func (r *Repository) UpdateJobStatus(ctx context.Context, id int64, from, to models.JobStatus, errMsg string) (bool, error) {
	now := r.now()
	q := r.db.NewUpdate().
		Model((*models.ZoneJob)(nil)).
		Set("status = ?", to).
		Where("id = ?", id).
		Where("status = ?", from)
	if to == models.JobRunning {
		q = q.Set("started_at = ?", now)
	}
	if to.Terminal() {
		q = q.Set("finished_at = ?", now)
	}
	if errMsg != "" {
		q = q.Set("error = ?", errMsg)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return false, err
	}
	return affected(res) == 1, nil
}

// RecordJobItem stores the capture outcome of one job item and bumps the job counters.
func (r *Repository) RecordJobItem(ctx context.Context, jobID int64, matricule string, status models.ItemStatus, errMsg string) error {
	now := r.now()
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		item := new(models.ZoneJobItem)
		err := tx.NewSelect().
			Model(item).
			Where("job_id = ?", jobID).
			Where("matricule = ?", matricule).
			Scan(ctx)
		if err != nil {
			return notFound(err)
		}
		if item.Status == status {
			return nil
		}

		q := tx.NewUpdate().
			Model((*models.ZoneJobItem)(nil)).
			Set("status = ?", status).
			Set("updated_at = ?", now).
			Where("id = ?", item.ID)
		if errMsg != "" {
			q = q.Set("error = ?", errMsg)
		} else {
			q = q.Set("error = NULL")
		}
		if _, err := q.Exec(ctx); err != nil {
			return err
		}

		counters := tx.NewUpdate().Model((*models.ZoneJob)(nil)).Where("id = ?", jobID)
		switch item.Status {
		case models.ItemCaptured:
			counters = counters.Set("scraped_count = scraped_count - 1")
		case models.ItemFailed:
			counters = counters.Set("failed_count = failed_count - 1")
		}
		switch status {
		case models.ItemCaptured:
			counters = counters.Set("scraped_count = scraped_count + 1")
		case models.ItemFailed:
			counters = counters.Set("failed_count = failed_count + 1")
		}
		_, err = counters.Exec(ctx)
		return err
	})
}

