// Package pipeline drives captured items through curation, canonicalization
// and enrichment, recording every step on the ingestion tracker.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mkoziy/habitat/ingest/internal/blobstore"
	"github.com/mkoziy/habitat/ingest/internal/capture"
	"github.com/mkoziy/habitat/ingest/internal/enrich/geocode"
	"github.com/mkoziy/habitat/ingest/internal/matching"
	"github.com/mkoziy/habitat/ingest/internal/models"
	"github.com/mkoziy/habitat/ingest/internal/repositories"
	"github.com/mkoziy/habitat/ingest/internal/transform"
)

// Pipeline states recorded in transform_stage.
const (
	StageCaptured       = "captured"
	StageCurating       = "curating"
	StageCurated        = "curated"
	StageCanonicalizing = "canonicalizing"
	StageCanonicalized  = "canonicalized"
	StageEnriching      = "enriching"
	StageComplete       = "complete"
)

// Result statuses.
const (
	StatusTransformed        = "transformed"
	StatusAlreadyTransformed = "already_transformed"
)

// Geocoder resolves an address to coordinates; nil coordinates mean no match.
type Geocoder interface {
	Geocode(ctx context.Context, address, city, postalCode string) (*geocode.Coordinates, error)
}

// Materializer stores remote media and returns the stored paths.
type Materializer interface {
	Materialize(ctx context.Context, urls []string, ownerID int64, kind models.MediaKind, source models.Source) ([]string, []string)
}

// Deps are the collaborators of an Orchestrator. Geocoder, Media and Matcher
// are optional; a nil one disables that enrichment.
type Deps struct {
	Repo     *repositories.Repository
	Blobs    blobstore.Store
	Registry *transform.Registry
	Geocoder Geocoder
	Media    Materializer
	Matcher  matching.Strategy
	Logger   *slog.Logger
}

// Options tunes the orchestrator.
type Options struct {
	LeaseTTL       time.Duration `yaml:"lease_ttl"`
	ItemDelay      time.Duration `yaml:"item_delay"`
	Concurrency    int           `yaml:"concurrency"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	CandidateLimit int           `yaml:"candidate_limit"`
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		LeaseTTL:       10 * time.Minute,
		ItemDelay:      0,
		Concurrency:    1,
		MaxConcurrency: 8,
		CandidateLimit: 25,
	}
}

// Result is the outcome of one pipeline run.
type Result struct {
	Key       models.ItemKey       `json:"key"`
	Status    string               `json:"status"`
	RunID     string               `json:"run_id,omitempty"`
	Curated   models.CuratedRecord `json:"curated,omitempty"`
	Canonical models.Entity        `json:"canonical,omitempty"`
	Warnings  []string             `json:"warnings"`
}

// Orchestrator runs the fixed capture -> curate -> canonicalize -> enrich pipeline.
type Orchestrator struct {
	repo     *repositories.Repository
	blobs    blobstore.Store
	registry *transform.Registry
	geocoder Geocoder
	media    Materializer
	matcher  matching.Strategy
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// New builds an orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	def := DefaultOptions()
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = def.LeaseTTL
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = def.MaxConcurrency
	}
	opts.MaxConcurrency = max(opts.MaxConcurrency, opts.Concurrency)
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = def.CandidateLimit
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{
		repo:     deps.Repo,
		blobs:    deps.Blobs,
		registry: deps.Registry,
		geocoder: deps.Geocoder,
		media:    deps.Media,
		matcher:  deps.Matcher,
		opts:     opts,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// run carries the state of one attempt.
type run struct {
	key      models.ItemKey
	meta     *models.IngestionMetadata
	id       string
	logger   *slog.Logger
	warnings []string
}

// Run transforms one captured item. Without force an item that already has a
// canonical row is returned as already transformed without any write.
func (o *Orchestrator) Run(ctx context.Context, key models.ItemKey, force bool) (*Result, error) {
	if !key.Source.Valid() || key.SourceItemID == "" {
		return nil, newError(KindValidation, fmt.Sprintf("invalid item key %q", key), nil)
	}
	t, err := o.registry.Get(key.Source)
	if err != nil {
		return nil, newError(KindValidation, err.Error(), nil)
	}

	meta, err := o.repo.GetMetadata(ctx, key)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, newError(KindNotFound, fmt.Sprintf("no capture recorded for %s", key), err)
	}
	if err != nil {
		return nil, newError(KindInternal, "load metadata", err)
	}

	if !meta.Transformable() {
		reason := "capture failed"
		if meta.CaptureError != nil {
			reason += ": " + *meta.CaptureError
		}
		if err := o.repo.MarkSkipped(ctx, meta.ID, reason); err != nil {
			return nil, newError(KindInternal, "mark skipped", err)
		}
		return nil, newError(KindCapture, reason, nil)
	}

	if !force {
		existing, err := o.repo.FindEntity(ctx, key)
		switch {
		case err == nil:
			return o.alreadyTransformed(ctx, key, existing), nil
		case !errors.Is(err, repositories.ErrNotFound):
			return nil, newError(KindInternal, "load canonical", err)
		}
	}

	r := &run{key: key, meta: meta, id: uuid.NewString()}
	r.logger = o.logger.With(
		slog.String("source", string(key.Source)),
		slog.String("source_item_id", key.SourceItemID),
		slog.String("run_id", r.id),
	)
	if err := o.repo.BeginAttempt(ctx, meta.ID, r.id, o.opts.LeaseTTL, force); err != nil {
		if errors.Is(err, repositories.ErrAlreadyTransformed) {
			existing, ferr := o.repo.FindEntity(ctx, key)
			if ferr != nil {
				return nil, newError(KindInternal, "load canonical", ferr)
			}
			r.logger.Debug("completed by a concurrent run")
			return o.alreadyTransformed(ctx, key, existing), nil
		}
		if errors.Is(err, repositories.ErrLeaseHeld) {
			return nil, newError(KindConflict, fmt.Sprintf("%s: run in progress", key), err)
		}
		return nil, newError(KindInternal, "begin attempt", err)
	}

	res, err := o.execute(ctx, t, r)
	if err != nil {
		r.logger.Warn("transform failed", slog.String("error", err.Error()))
		return nil, err
	}
	r.logger.Info("transform complete",
		slog.Int64("canonical_id", res.Canonical.EntityID()),
		slog.Int("warnings", len(res.Warnings)))
	return res, nil
}

func (o *Orchestrator) alreadyTransformed(ctx context.Context, key models.ItemKey, existing models.Entity) *Result {
	res := &Result{Key: key, Status: StatusAlreadyTransformed, Canonical: existing, Warnings: []string{}}
	if rec, err := o.repo.GetCurated(ctx, key); err == nil {
		res.Curated = rec
	}
	return res
}

func (o *Orchestrator) execute(ctx context.Context, t transform.Transformer, r *run) (*Result, error) {
	if err := o.advance(ctx, r, repositories.Outcome{Status: models.TransformPending, Stage: StageCurating}); err != nil {
		return nil, err
	}

	raw, err := o.blobs.Get(ctx, r.meta.StoragePath)
	if err != nil {
		return nil, o.fail(ctx, r, StageCurating, newError(KindInternal, "load raw artifact "+r.meta.StoragePath, err))
	}
	doc, err := capture.Decode(raw, r.key)
	if err != nil {
		return nil, o.fail(ctx, r, StageCurating, newError(KindValidation, err.Error(), err))
	}

	rec, curateReport := t.Curate(doc)
	if !curateReport.OK() || rec == nil {
		return nil, o.fail(ctx, r, StageCurating, validationError(StageCurating, curateReport))
	}
	r.warnings = append(r.warnings, curateReport.WarningStrings()...)

	curatedID, err := o.repo.UpsertCurated(ctx, rec)
	if err != nil {
		return nil, o.fail(ctx, r, StageCurating, newError(KindInternal, "upsert curated record", err))
	}
	if err := o.advance(ctx, r, repositories.Outcome{Status: models.TransformPending, Stage: StageCurated, CuratedID: curatedID}); err != nil {
		return nil, err
	}
	if err := o.advance(ctx, r, repositories.Outcome{Status: models.TransformPending, Stage: StageCanonicalizing}); err != nil {
		return nil, err
	}

	draft, projectReport := t.Project(rec)
	if !projectReport.OK() || draft.Entity == nil {
		return nil, o.fail(ctx, r, StageCanonicalizing, validationError(StageCanonicalizing, projectReport))
	}
	r.warnings = append(r.warnings, projectReport.WarningStrings()...)

	existing, err := o.repo.FindEntity(ctx, r.key)
	switch {
	case err == nil:
		carryOver(draft.Entity, existing)
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, o.fail(ctx, r, StageCanonicalizing, newError(KindInternal, "load canonical", err))
	}

	canonicalID, err := o.repo.UpsertEntity(ctx, draft.Entity)
	if err != nil {
		return nil, o.fail(ctx, r, StageCanonicalizing, newError(KindInternal, "upsert canonical entity", err))
	}
	if err := o.advance(ctx, r, repositories.Outcome{Status: models.TransformPending, Stage: StageCanonicalized, CanonicalID: canonicalID}); err != nil {
		return nil, err
	}
	if err := o.advance(ctx, r, repositories.Outcome{Status: models.TransformPending, Stage: StageEnriching}); err != nil {
		return nil, err
	}

	r.warnings = append(r.warnings, o.enrich(ctx, r, draft)...)

	err = o.advance(ctx, r, repositories.Outcome{
		Status:      models.TransformSuccess,
		Stage:       StageComplete,
		CuratedID:   curatedID,
		CanonicalID: canonicalID,
	})
	if err != nil {
		return nil, err
	}

	warnings := r.warnings
	if warnings == nil {
		warnings = []string{}
	}
	return &Result{
		Key:       r.key,
		Status:    StatusTransformed,
		RunID:     r.id,
		Curated:   rec,
		Canonical: draft.Entity,
		Warnings:  warnings,
	}, nil
}

func (o *Orchestrator) advance(ctx context.Context, r *run, out repositories.Outcome) error {
	if err := o.repo.AdvanceTransform(ctx, r.meta.ID, r.id, out); err != nil {
		if errors.Is(err, repositories.ErrLeaseLost) {
			return newError(KindConflict, fmt.Sprintf("%s: lease lost at %s", r.key, out.Stage), err)
		}
		return newError(KindInternal, "advance to "+out.Stage, err)
	}
	r.logger.Debug("stage reached", slog.String("stage", out.Stage))
	return nil
}

// fail records the failure on the tracker and returns perr.
func (o *Orchestrator) fail(ctx context.Context, r *run, stage string, perr *Error) error {
	out := repositories.Outcome{Status: models.TransformFailed, Stage: stage, Error: perr.Details}
	if perr.Err != nil && perr.Kind == KindInternal {
		out.Error = perr.Details + ": " + perr.Err.Error()
	}
	if err := o.repo.AdvanceTransform(ctx, r.meta.ID, r.id, out); err != nil {
		r.logger.Error("record failure", slog.String("stage", stage), slog.String("error", err.Error()))
	}
	return perr
}

// carryOver keeps enrichment already stored on the canonical row when the
// fresh projection has none.
func carryOver(fresh, stored models.Entity) {
	if f, ok := fresh.(models.Locatable); ok {
		if s, ok := stored.(models.Locatable); ok && !models.HasCoordinates(f) && models.HasCoordinates(s) {
			lat, lng, at := s.Coordinates()
			when := time.Time{}
			if at != nil {
				when = *at
			}
			f.SetCoordinates(*lat, *lng, when)
			if at == nil {
				clearGeocodedAt(f)
			}
		}
	}
	if f, ok := fresh.(models.MediaHolder); ok {
		if s, ok := stored.(models.MediaHolder); ok {
			for _, kind := range []models.MediaKind{models.MediaImage, models.MediaVideo} {
				if len(f.Media(kind)) == 0 && len(s.Media(kind)) > 0 {
					f.SetMedia(kind, s.Media(kind))
				}
			}
		}
	}
	if f, ok := fresh.(*models.Property); ok {
		if s, ok := stored.(*models.Property); ok && f.OwnerCompanyID == nil {
			f.OwnerCompanyID = s.OwnerCompanyID
		}
	}
}

func clearGeocodedAt(l models.Locatable) {
	switch v := l.(type) {
	case *models.Rental:
		v.GeocodedAt = nil
	case *models.Property:
		v.GeocodedAt = nil
	}
}
