package models

import (
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// IngestionMetadata is the per-item tracking row written at capture time and
// advanced by every transformation attempt.
type IngestionMetadata struct {
	bun.BaseModel `bun:"table:ingestion_metadata,alias:im"`

	ID             int64         `bun:"id,pk,autoincrement" json:"id"`
	Source         Source        `bun:"source,notnull,unique:ingestion_item" json:"source"`
	SourceItemID   string        `bun:"source_item_id,notnull,unique:ingestion_item" json:"source_item_id"`
	StoragePath    string        `bun:"storage_path,notnull" json:"storage_path"`
	CaptureStatus  CaptureStatus `bun:"capture_status,notnull" json:"capture_status"`
	CaptureError   *string       `bun:"capture_error" json:"capture_error,omitempty"`
	PreviewTitle   *string       `bun:"preview_title" json:"preview_title,omitempty"`
	PreviewPrice   *string       `bun:"preview_price" json:"preview_price,omitempty"`
	PreviewAddress *string       `bun:"preview_address" json:"preview_address,omitempty"`
	CapturedAt     time.Time     `bun:"captured_at,notnull" json:"captured_at"`

	TransformStatus    TransformStatus `bun:"transform_status,notnull" json:"transform_status"`
	TransformStage     *string         `bun:"transform_stage" json:"transform_stage,omitempty"`
	TransformError     *string         `bun:"transform_error" json:"transform_error,omitempty"`
	TransformAttempts  int             `bun:"transform_attempts,notnull,default:0" json:"transform_attempts"`
	TransformRunID     *string         `bun:"transform_run_id" json:"-"`
	TransformStartedAt *time.Time      `bun:"transform_started_at" json:"-"`
	CuratedID          *int64          `bun:"curated_id" json:"curated_id,omitempty"`
	CanonicalID        *int64          `bun:"canonical_id" json:"canonical_id,omitempty"`
	TransformedAt      *time.Time      `bun:"transformed_at" json:"transformed_at,omitempty"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// Preview holds short excerpts shown in listings without fetching the raw blob.
type Preview struct {
	Title   string `json:"title,omitempty"`
	Price   string `json:"price,omitempty"`
	Address string `json:"address,omitempty"`
}

// Key returns the natural key of the tracked item.
func (m *IngestionMetadata) Key() ItemKey {
	return ItemKey{Source: m.Source, SourceItemID: m.SourceItemID}
}

// ApplyPreview copies preview excerpts onto the row.
func (m *IngestionMetadata) ApplyPreview(p Preview) {
	m.PreviewTitle = stringPtr(p.Title)
	m.PreviewPrice = stringPtr(p.Price)
	m.PreviewAddress = stringPtr(p.Address)
}

// Preview returns the stored preview excerpts.
func (m *IngestionMetadata) Preview() Preview {
	return Preview{
		Title:   derefString(m.PreviewTitle),
		Price:   derefString(m.PreviewPrice),
		Address: derefString(m.PreviewAddress),
	}
}

// Transformable reports whether the capture produced content worth transforming.
func (m *IngestionMetadata) Transformable() bool {
	return m.CaptureStatus == CaptureSuccess || m.CaptureStatus == CapturePartial
}

// Validate checks the tracker invariants.
func (m *IngestionMetadata) Validate() error {
	if !m.Source.Valid() {
		return errors.New("source is invalid")
	}
	if m.SourceItemID == "" {
		return errors.New("source item id is required")
	}
	if !m.CaptureStatus.Valid() {
		return errors.New("capture status is invalid")
	}
	if m.TransformStatus == TransformSuccess && (m.CuratedID == nil || m.CanonicalID == nil) {
		return errors.New("successful transform requires curated and canonical ids")
	}
	return nil
}
