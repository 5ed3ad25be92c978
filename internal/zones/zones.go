// Package zones selects bounded batches of assessment roll units for capture
// and tracks the lifecycle of those batch jobs.
package zones

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mkoziy/habitat/ingest/internal/models"
	"github.com/mkoziy/habitat/ingest/internal/ratelimit"
	"github.com/mkoziy/habitat/ingest/internal/repositories"
)

var (
	// ErrZoneComplete is returned by CreateJob when no eligible unit is left.
	ErrZoneComplete = errors.New("zone complete: every eligible property is captured")
	// ErrInvalidTransition is returned when a job cannot move to the requested status.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Config bounds job creation and pacing.
type Config struct {
	DefaultLimit int           `yaml:"default_limit"`
	MaxLimit     int           `yaml:"max_limit"`
	MinDelay     time.Duration `yaml:"min_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// DefaultConfig paces captures 90 to 180 seconds apart.
func DefaultConfig() Config {
	return Config{DefaultLimit: 50, MaxLimit: 500, MinDelay: 90 * time.Second, MaxDelay: 180 * time.Second}
}

// Pacing is the window the capture driver draws its per-item delay from.
type Pacing struct {
	MinDelay time.Duration `json:"min_delay"`
	MaxDelay time.Duration `json:"max_delay"`
}

// Delay draws a delay uniformly from the window.
func (p Pacing) Delay() time.Duration {
	return ratelimit.Policy{MinDelay: p.MinDelay, MaxDelay: p.MaxDelay}.Backoff(1)
}

// JobDescriptor is a created job handed to the capture driver.
type JobDescriptor struct {
	Job    *models.ZoneJob `json:"job"`
	Pacing Pacing          `json:"pacing"`
}

// Service is the zone batch orchestrator. It never captures anything itself.
type Service struct {
	repo   *repositories.Repository
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a zone service.
func New(repo *repositories.Repository, cfg Config, logger *slog.Logger) *Service {
	def := DefaultConfig()
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = def.MaxLimit
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = def.MinDelay
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = max(def.MaxDelay, cfg.MinDelay)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, cfg: cfg, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// CreateZone stores a zone and computes its stats immediately.
func (s *Service) CreateZone(ctx context.Context, name string, bounds models.Bounds, filters models.ZoneFilters) (*models.ScrapeZone, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("zone name is required")
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	zone := &models.ScrapeZone{
		Name:     name,
		MinLat:   bounds.MinLat,
		MaxLat:   bounds.MaxLat,
		MinLng:   bounds.MinLng,
		MaxLng:   bounds.MaxLng,
		MinUnits: filters.MinUnits,
		MaxUnits: filters.MaxUnits,
		UseCode:  filters.UseCode,
	}
	if err := s.computeStats(ctx, zone); err != nil {
		return nil, err
	}
	if err := s.repo.CreateZone(ctx, zone); err != nil {
		return nil, fmt.Errorf("create zone: %w", err)
	}
	s.logger.Info("zone created", slog.Int64("zone_id", zone.ID), slog.Int("total", zone.TotalProperties), slog.Int("scraped", zone.ScrapedCount))
	return zone, nil
}

// RefreshStats recomputes the cached counters of a zone.
func (s *Service) RefreshStats(ctx context.Context, zoneID int64) (*models.ScrapeZone, error) {
	zone, err := s.repo.GetZone(ctx, zoneID)
	if err != nil {
		return nil, err
	}
	if err := s.computeStats(ctx, zone); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateZoneStats(ctx, zone); err != nil {
		return nil, fmt.Errorf("update zone stats: %w", err)
	}
	return zone, nil
}

func (s *Service) computeStats(ctx context.Context, zone *models.ScrapeZone) error {
	total, scraped, err := s.repo.ZoneStats(ctx, zone)
	if err != nil {
		return err
	}
	now := s.now()
	zone.TotalProperties, zone.ScrapedCount, zone.StatsRefreshedAt = total, scraped, &now
	return nil
}

// CreateJob selects up to limit uncaptured units of a zone in insertion order.
// It returns ErrZoneComplete, without creating a job, when none is left; the
// zone stats are refreshed first so they report the zone as fully scraped.
func (s *Service) CreateJob(ctx context.Context, zoneID int64, limit int) (*JobDescriptor, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}
	zone, err := s.repo.GetZone(ctx, zoneID)
	if err != nil {
		return nil, err
	}
	units, err := s.repo.PendingUnits(ctx, zone, limit)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		if _, err := s.RefreshStats(ctx, zone.ID); err != nil {
			s.logger.Warn("refresh complete zone stats", slog.Int64("zone_id", zone.ID), slog.String("error", err.Error()))
		}
		return nil, ErrZoneComplete
	}

	job := &models.ZoneJob{ZoneID: zone.ID, RequestedLimit: limit, Status: models.JobPending}
	items := make([]*models.ZoneJobItem, 0, len(units))
	for _, u := range units {
		items = append(items, &models.ZoneJobItem{Matricule: u.Matricule, Address: u.Address, Status: models.ItemPending})
	}
	if err := s.repo.CreateJob(ctx, job, items); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.logger.Info("zone job created", slog.Int64("zone_id", zone.ID), slog.Int64("job_id", job.ID), slog.Int("items", len(items)))
	return &JobDescriptor{Job: job, Pacing: Pacing{MinDelay: s.cfg.MinDelay, MaxDelay: s.cfg.MaxDelay}}, nil
}

// GetJob returns a job with its items.
func (s *Service) GetJob(ctx context.Context, jobID int64) (*models.ZoneJob, error) {
	return s.repo.GetJob(ctx, jobID)
}

// ListJobs returns the jobs of a zone, newest first.
func (s *Service) ListJobs(ctx context.Context, zoneID int64) ([]*models.ZoneJob, error) {
	if _, err := s.repo.GetZone(ctx, zoneID); err != nil {
		return nil, err
	}
	return s.repo.ListJobs(ctx, zoneID)
}

// StartJob moves a pending job to running.
func (s *Service) StartJob(ctx context.Context, jobID int64) (*models.ZoneJob, error) {
	return s.transition(ctx, jobID, models.JobRunning, "")
}

// FinishJob moves a job to a terminal status and refreshes the zone stats.
func (s *Service) FinishJob(ctx context.Context, jobID int64, status models.JobStatus, errMsg string) (*models.ZoneJob, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("%w: %s is not a final status", ErrInvalidTransition, status)
	}
	job, err := s.transition(ctx, jobID, status, errMsg)
	if err != nil {
		return nil, err
	}
	if _, err := s.RefreshStats(ctx, job.ZoneID); err != nil {
		s.logger.Warn("refresh zone stats", slog.Int64("zone_id", job.ZoneID), slog.String("error", err.Error()))
	}
	return job, nil
}

// RecordJobItem stores the capture outcome of one item of a running job.
func (s *Service) RecordJobItem(ctx context.Context, jobID int64, matricule string, ok bool, errMsg string) error {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != models.JobRunning {
		return fmt.Errorf("%w: job %d is %s", ErrInvalidTransition, jobID, job.Status)
	}
	status := models.ItemCaptured
	if !ok {
		status = models.ItemFailed
		if errMsg == "" {
			errMsg = "capture failed"
		}
	} else {
		errMsg = ""
	}
	return s.repo.RecordJobItem(ctx, jobID, matricule, status, errMsg)
}

func (s *Service) transition(ctx context.Context, jobID int64, to models.JobStatus, errMsg string) (*models.ZoneJob, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, to)
	}
	moved, err := s.repo.UpdateJobStatus(ctx, jobID, job.Status, to, errMsg)
	if err != nil {
		return nil, fmt.Errorf("update job %d: %w", jobID, err)
	}
	if !moved {
		return nil, fmt.Errorf("%w: job %d changed concurrently", ErrInvalidTransition, jobID)
	}
	s.logger.Info("zone job status", slog.Int64("job_id", jobID), slog.String("from", string(job.Status)), slog.String("to", string(to)))
	return s.repo.GetJob(ctx, jobID)
}
