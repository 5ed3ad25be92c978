package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkoziy/habitat/ingest/internal/blobstore"
	"github.com/mkoziy/habitat/ingest/internal/models"
	"github.com/mkoziy/habitat/ingest/internal/repositories"
)

var (
	// ErrAlreadyCaptured marks a capture of an item whose previous capture succeeded.
	ErrAlreadyCaptured = errors.New("already captured")
	// ErrInvalidCapture wraps every rejection of a malformed capture request.
	ErrInvalidCapture = errors.New("invalid capture")
)

// Tracker is the slice of the metadata store the recorder needs.
type Tracker interface {
	GetMetadata(ctx context.Context, key models.ItemKey) (*models.IngestionMetadata, error)
	RecordCapture(ctx context.Context, rec repositories.CaptureRecord) (int64, bool, error)
}

// Previewer extracts listing excerpts from a decoded document.
type Previewer interface {
	Preview(doc Document) models.Preview
}

// Request is one capture handed over by the browser-side collaborator.
type Request struct {
	Source       models.Source
	SourceItemID string
	Body         []byte
	Status       models.CaptureStatus
	Error        string
	CapturedAt   time.Time
}

// Result describes where a capture landed.
type Result struct {
	MetadataID  int64          `json:"metadata_id"`
	StoragePath string         `json:"storage_path"`
	Existed     bool           `json:"existed"`
	Preview     models.Preview `json:"preview"`
}

// Recorder persists raw captures and registers them with the tracker.
type Recorder struct {
	store    blobstore.Store
	tracker  Tracker
	previews Previewer
	logger   *slog.Logger
	now      func() time.Time
}

// NewRecorder wires a recorder. previews may be nil.
func NewRecorder(store blobstore.Store, tracker Tracker, previews Previewer, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{
		store:    store,
		tracker:  tracker,
		previews: previews,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Record stores the raw bytes under their partitioned path and records the
// capture. Capturing an item whose earlier capture succeeded writes nothing and
// returns the existing record together with ErrAlreadyCaptured.
func (r *Recorder) Record(ctx context.Context, req Request) (Result, error) {
	if !req.Source.Valid() {
		return Result{}, fmt.Errorf("%w: unknown source %q", ErrInvalidCapture, req.Source)
	}
	if req.SourceItemID == "" {
		return Result{}, fmt.Errorf("%w: source item id is required", ErrInvalidCapture)
	}
	if req.Status == "" {
		req.Status = models.CaptureSuccess
	}
	if !req.Status.Valid() {
		return Result{}, fmt.Errorf("%w: status %q", ErrInvalidCapture, req.Status)
	}
	if req.CapturedAt.IsZero() {
		req.CapturedAt = r.now()
	}
	key := models.ItemKey{Source: req.Source, SourceItemID: req.SourceItemID}
	logger := r.logger.With(slog.String("source", string(key.Source)), slog.String("source_item_id", key.SourceItemID))

	existing, err := r.tracker.GetMetadata(ctx, key)
	switch {
	case err == nil && existing.CaptureStatus == models.CaptureSuccess:
		logger.Debug("capture skipped, item already captured")
		return Result{MetadataID: existing.ID, StoragePath: existing.StoragePath, Existed: true, Preview: existing.Preview()}, ErrAlreadyCaptured
	case err != nil && !errors.Is(err, repositories.ErrNotFound):
		return Result{}, err
	}

	preview := models.Preview{}
	if req.Status != models.CaptureFailed && len(req.Body) > 0 {
		doc, err := Decode(req.Body, key)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrInvalidCapture, err)
		}
		if req.Error == "" && doc.Error != "" {
			req.Error = doc.Error
		}
		if r.previews != nil {
			preview = r.previews.Preview(doc)
		}
	}

	body := req.Body
	if len(body) == 0 {
		body = []byte("{}")
	}
	path, err := r.put(ctx, key, body, req.CapturedAt)
	if err != nil {
		return Result{}, err
	}

	id, existed, err := r.tracker.RecordCapture(ctx, repositories.CaptureRecord{
		Key:         key,
		StoragePath: path,
		Preview:     preview,
		Status:      req.Status,
		Error:       req.Error,
		CapturedAt:  req.CapturedAt,
	})
	if err != nil {
		return Result{}, err
	}
	res := Result{MetadataID: id, StoragePath: path, Existed: existed, Preview: preview}
	if existed {
		return res, ErrAlreadyCaptured
	}
	logger.Info("capture recorded", slog.String("path", path), slog.String("status", string(req.Status)))
	return res, nil
}

// put writes the capture under its canonical path, or beside it when an
// earlier capture of the item already took that path.
func (r *Recorder) put(ctx context.Context, key models.ItemKey, body []byte, at time.Time) (string, error) {
	for _, path := range []string{
		blobstore.RawPath(key.Source, key.SourceItemID, at),
		blobstore.RecapturePath(key.Source, key.SourceItemID, at),
	} {
		res, err := r.store.Put(ctx, path, body, "application/json")
		if err != nil {
			return "", err
		}
		if res == blobstore.Created {
			return path, nil
		}
	}
	return "", fmt.Errorf("capture %s: raw artifact paths for %s already taken", key, at.Format(time.RFC3339))
}
