package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mkoziy/habitat/ingest/internal/models"
	"github.com/mkoziy/habitat/ingest/internal/repositories"
)

// BackfillOptions selects the items of a batch run.
type BackfillOptions struct {
	Source      models.Source
	Force       bool
	Limit       int
	Concurrency int
	ItemDelay   time.Duration
}

// Failure is one item a batch could not transform.
type Failure struct {
	Key   models.ItemKey `json:"key"`
	Error string         `json:"error"`
}

// Summary is the outcome of a batch run.
type Summary struct {
	RunID       string    `json:"run_id"`
	Concurrency int       `json:"concurrency"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	Failures    []Failure `json:"failures"`
}

func (s *Summary) record(key models.ItemKey, res *Result, err error) {
	switch {
	case err == nil && res.Status == StatusAlreadyTransformed:
		s.Skipped++
	case err == nil:
		s.Succeeded++
	case KindOf(err) == KindCapture:
		s.Skipped++
	default:
		s.Failed++
		s.Failures = append(s.Failures, Failure{Key: key, Error: err.Error()})
	}
}

// Backfill transforms every due item. Per-item failures are collected and the
// batch continues; cancellation is checked between items and an item already
// started runs to completion. Concurrency is capped at Options.MaxConcurrency.
func (o *Orchestrator) Backfill(ctx context.Context, opts BackfillOptions) (*Summary, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = o.opts.Concurrency
	}
	opts.Concurrency = min(opts.Concurrency, o.opts.MaxConcurrency)
	if opts.ItemDelay == 0 {
		opts.ItemDelay = o.opts.ItemDelay
	}
	if opts.ItemDelay < 0 {
		opts.ItemDelay = 0
	}

	summary := &Summary{RunID: uuid.NewString(), Concurrency: opts.Concurrency, Failures: []Failure{}}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	rows, err := o.repo.ListForBackfill(ctx, repositories.BackfillFilter{Source: opts.Source, Force: opts.Force, Limit: opts.Limit})
	if err != nil {
		return nil, newError(KindInternal, "list backfill items", err)
	}

	logger := o.logger.With(slog.String("run_id", summary.RunID))
	logger.Info("backfill started",
		slog.String("source", string(opts.Source)),
		slog.Int("items", len(rows)),
		slog.Int("concurrency", opts.Concurrency))

	var mu sync.Mutex
	process := func(key models.ItemKey) {
		res, err := o.Run(context.WithoutCancel(ctx), key, opts.Force)
		mu.Lock()
		summary.record(key, res, err)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(opts.Concurrency)
	var stopErr error
	for i, row := range rows {
		if i > 0 {
			if err := wait(ctx, opts.ItemDelay); err != nil {
				stopErr = err
				break
			}
		}
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}
		key := row.Key()
		if opts.Concurrency == 1 {
			process(key)
			continue
		}
		g.Go(func() error {
			process(key)
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("backfill finished",
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Int("skipped", summary.Skipped))
	return summary, stopErr
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
