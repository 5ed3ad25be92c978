package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/mkoziy/habitat/ingest/internal/models"
)

// CaptureRecord is what the capture collaborator reports for one item.
type CaptureRecord struct {
	Key         models.ItemKey
	StoragePath string
	Preview     models.Preview
	Status      models.CaptureStatus
	Error       string
	CapturedAt  time.Time
}

// Outcome is the result of a pipeline step applied to the tracker.
type Outcome struct {
	Status      models.TransformStatus
	Stage       string
	Error       string
	CuratedID   int64
	CanonicalID int64
}

// BackfillFilter selects items for a batch transformation.
type BackfillFilter struct {
	Source models.Source
	Force  bool
	Limit  int
}

// GetMetadata fetches the tracker row of an item.
func (r *Repository) GetMetadata(ctx context.Context, key models.ItemKey) (*models.IngestionMetadata, error) {
	m := new(models.IngestionMetadata)
	err := r.db.NewSelect().
		Model(m).
		Where("source = ?", key.Source).
		Where("source_item_id = ?", key.SourceItemID).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

// GetMetadataByID fetches a tracker row by primary key.
func (r *Repository) GetMetadataByID(ctx context.Context, id int64) (*models.IngestionMetadata, error) {
	m := new(models.IngestionMetadata)
	if err := r.db.NewSelect().Model(m).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

// RecordCapture creates or replaces the tracker row of a capture. A row whose
// previous capture succeeded is returned unchanged with existed=true; partial
// or failed captures are replaced and the item goes back to pending.
func (r *Repository) RecordCapture(ctx context.Context, rec CaptureRecord) (int64, bool, error) {
	if !rec.Status.Valid() {
		return 0, false, fmt.Errorf("invalid capture status %q", rec.Status)
	}
	capturedAt := rec.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = r.now()
	}

	var (
		id      int64
		existed bool
	)
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current := new(models.IngestionMetadata)
		err := tx.NewSelect().
			Model(current).
			Where("source = ?", rec.Key.Source).
			Where("source_item_id = ?", rec.Key.SourceItemID).
			Scan(ctx)
		switch notFound(err) {
		case nil:
			id = current.ID
			if current.CaptureStatus == models.CaptureSuccess {
				existed = true
				return nil
			}
			row := metadataRow(rec, capturedAt)
			_, err := tx.NewUpdate().
				Model((*models.IngestionMetadata)(nil)).
				Set("storage_path = ?", row.StoragePath).
				Set("capture_status = ?", row.CaptureStatus).
				Set("capture_error = ?", row.CaptureError).
				Set("preview_title = ?", row.PreviewTitle).
				Set("preview_price = ?", row.PreviewPrice).
				Set("preview_address = ?", row.PreviewAddress).
				Set("captured_at = ?", row.CapturedAt).
				Set("transform_status = ?", models.TransformPending).
				Set("transform_error = NULL").
				Set("updated_at = ?", r.now()).
				Where("id = ?", id).
				Exec(ctx)
			return err
		case ErrNotFound:
		default:
			return err
		}

		row := metadataRow(rec, capturedAt)
		row.CreatedAt = r.now()
		row.UpdatedAt = row.CreatedAt
		res, err := tx.NewInsert().
			Model(row).
			On("CONFLICT (source, source_item_id) DO NOTHING").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			return err
		}
		// A concurrent capture of the same key won the insert.
		existed = affected(res) == 0
		return tx.NewSelect().
			Model((*models.IngestionMetadata)(nil)).
			Column("id").
			Where("source = ?", rec.Key.Source).
			Where("source_item_id = ?", rec.Key.SourceItemID).
			Scan(ctx, &id)
	})
	if err != nil {
		return 0, false, fmt.Errorf("record capture %s: %w", rec.Key, err)
	}
	return id, existed, nil
}

func metadataRow(rec CaptureRecord, capturedAt time.Time) *models.IngestionMetadata {
	row := &models.IngestionMetadata{
		Source:          rec.Key.Source,
		SourceItemID:    rec.Key.SourceItemID,
		StoragePath:     rec.StoragePath,
		CaptureStatus:   rec.Status,
		CapturedAt:      capturedAt.UTC(),
		TransformStatus: models.TransformPending,
	}
	if rec.Error != "" {
		e := rec.Error
		row.CaptureError = &e
	}
	row.ApplyPreview(rec.Preview)
	return row
}

// BeginAttempt increments the attempt counter and takes the transform lease
// for runID. A lease older than ttl is considered abandoned and is taken over.
// Without force the claim also requires that no canonical row is linked yet;
// when another run has already completed the item ErrAlreadyTransformed is
// returned and nothing is written.
func (r *Repository) BeginAttempt(ctx context.Context, id int64, runID string, ttl time.Duration, force bool) error {
	now := r.now()
	q := r.db.NewUpdate().
		Model((*models.IngestionMetadata)(nil)).
		Set("transform_attempts = transform_attempts + 1").
		Set("transform_run_id = ?", runID).
		Set("transform_started_at = ?", now).
		Set("transform_stage = ?", "captured").
		Set("updated_at = ?", now).
		Where("id = ?", id).
		WhereGroup(" AND ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.Where("transform_run_id IS NULL").
				WhereOr("transform_started_at IS NULL").
				WhereOr("transform_started_at < ?", now.Add(-ttl))
		})
	if !force {
		q = q.Where("canonical_id IS NULL")
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("begin attempt %d: %w", id, err)
	}
	if affected(res) == 0 {
		m, err := r.GetMetadataByID(ctx, id)
		if err != nil {
			return err
		}
		if !force && m.CanonicalID != nil && !leaseLive(m, now, ttl) {
			return ErrAlreadyTransformed
		}
		return ErrLeaseHeld
	}
	return nil
}

func leaseLive(m *models.IngestionMetadata, now time.Time, ttl time.Duration) bool {
	return m.TransformRunID != nil && m.TransformStartedAt != nil && !m.TransformStartedAt.Before(now.Add(-ttl))
}

// AdvanceTransform records a pipeline step for the run holding the lease.
// Terminal outcomes release the lease and stamp transformed_at.
func (r *Repository) AdvanceTransform(ctx context.Context, id int64, runID string, out Outcome) error {
	now := r.now()
	q := r.db.NewUpdate().
		Model((*models.IngestionMetadata)(nil)).
		Set("transform_status = ?", out.Status).
		Set("transform_stage = ?", out.Stage).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("transform_run_id = ?", runID)

	if out.Error != "" {
		q = q.Set("transform_error = ?", out.Error)
	} else if out.Status != models.TransformPending {
		q = q.Set("transform_error = NULL")
	}
	if out.CuratedID != 0 {
		q = q.Set("curated_id = ?", out.CuratedID)
	}
	if out.CanonicalID != 0 {
		q = q.Set("canonical_id = ?", out.CanonicalID)
	}
	if out.Status != models.TransformPending {
		q = q.Set("transform_run_id = NULL").Set("transform_started_at = NULL")
	}
	if out.Status == models.TransformSuccess {
		q = q.Set("transformed_at = ?", now)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("advance transform %d: %w", id, err)
	}
	if affected(res) == 0 {
		return ErrLeaseLost
	}
	return nil
}

// MarkSkipped records that an item cannot be transformed. The refusal still
// counts as an attempt.
func (r *Repository) MarkSkipped(ctx context.Context, id int64, reason string) error {
	_, err := r.db.NewUpdate().
		Model((*models.IngestionMetadata)(nil)).
		Set("transform_attempts = transform_attempts + 1").
		Set("transform_status = ?", models.TransformSkipped).
		Set("transform_stage = ?", "captured").
		Set("transform_error = ?", reason).
		Set("updated_at = ?", r.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark skipped %d: %w", id, err)
	}
	return nil
}

// ListForBackfill returns tracker rows due for transformation, oldest first.
// Without Force only pending and failed items are returned.
func (r *Repository) ListForBackfill(ctx context.Context, f BackfillFilter) ([]*models.IngestionMetadata, error) {
	var rows []*models.IngestionMetadata
	q := r.db.NewSelect().Model(&rows).OrderExpr("id ASC")
	if f.Source != "" {
		q = q.Where("source = ?", f.Source)
	}
	if !f.Force {
		q = q.Where("transform_status IN (?)", bun.In([]models.TransformStatus{models.TransformPending, models.TransformFailed}))
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}
