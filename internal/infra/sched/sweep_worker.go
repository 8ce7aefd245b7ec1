package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"arcana-reading-server/internal/domain/ports/repository"
	"arcana-reading-server/internal/infra/metrics"
)

// SweepWorker periodically removes old terminal jobs from the store so the
// memory-resident registry stays bounded. It never touches processing jobs.
type SweepWorker struct {
	interval  time.Duration
	retention time.Duration
	jobs      repository.JobRepository
	log       *zerolog.Logger
}

func NewSweepWorker(interval, retention time.Duration, jobs repository.JobRepository, logger *zerolog.Logger) *SweepWorker {
	swLog := logger.With().Str("component", "SweepWorker").Logger()
	return &SweepWorker{
		interval:  interval,
		retention: retention,
		jobs:      jobs,
		log:       &swLog,
	}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("retention", w.retention).Msg("Starting sweep worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping sweep worker")
			return ctx.Err()
		case <-ticker.C:
			n := w.jobs.Sweep(ctx, w.retention)
			if n > 0 {
				metrics.AddJobsSwept(n)
				w.log.Info().Int("count", n).Msg("old readings swept")
			}
		}
	}
}
