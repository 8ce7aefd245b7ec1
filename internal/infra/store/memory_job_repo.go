package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"arcana-reading-server/internal/domain"
	"arcana-reading-server/internal/domain/model"
	"arcana-reading-server/internal/domain/ports/repository"
)

// Compile-time check
var _ repository.JobRepository = (*MemoryJobRepo)(nil)

// MemoryJobRepo keeps reading jobs in process memory. Persistence across
// restarts is out of scope; the retention sweep bounds growth. A single
// mutex guards the map since job goroutines and HTTP lookups share it.
type MemoryJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.ReadingJob
}

func NewMemoryJobRepo() *MemoryJobRepo {
	return &MemoryJobRepo{jobs: make(map[string]*model.ReadingJob)}
}

func (r *MemoryJobRepo) Create(ctx context.Context, sessionID, question, category, spreadType string, items []model.CardItem) *model.ReadingJob {
	now := time.Now()
	job := &model.ReadingJob{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Question:   question,
		Category:   category,
		SpreadType: spreadType,
		Items:      append([]model.CardItem(nil), items...),
		Status:     model.JobStatusProcessing,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()
	return job
}

func (r *MemoryJobRepo) AppendItemResult(ctx context.Context, jobID string, res model.ItemResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.ItemResults = append(job.ItemResults, res)
	job.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryJobRepo) Complete(ctx context.Context, jobID, finalResult string) error {
	return r.finish(jobID, func(job *model.ReadingJob, now time.Time) {
		job.Status = model.JobStatusCompleted
		job.FinalResult = finalResult
		job.CompletedAt = &now
		job.ProcessingDuration = now.Sub(job.CreatedAt)
	})
}

func (r *MemoryJobRepo) Fail(ctx context.Context, jobID, reason string) error {
	return r.finish(jobID, func(job *model.ReadingJob, now time.Time) {
		job.Status = model.JobStatusFailed
		job.FailReason = reason
	})
}

func (r *MemoryJobRepo) Cancel(ctx context.Context, jobID string) error {
	return r.finish(jobID, func(job *model.ReadingJob, now time.Time) {
		job.Status = model.JobStatusCancelled
	})
}

// finish applies a terminal transition. Calling it on an already-terminal
// job is a no-op, not an error: cancellation and completion may race.
func (r *MemoryJobRepo) finish(jobID string, apply func(*model.ReadingJob, time.Time)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	if job.Status.Terminal() {
		return nil
	}
	now := time.Now()
	apply(job, now)
	job.UpdatedAt = now
	return nil
}

// Find returns a copy so callers cannot mutate stored state.
func (r *MemoryJobRepo) Find(ctx context.Context, jobID string) (*model.ReadingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	cp.Items = append([]model.CardItem(nil), job.Items...)
	cp.ItemResults = append([]model.ItemResult(nil), job.ItemResults...)
	return &cp, nil
}

func (r *MemoryJobRepo) Progress(ctx context.Context, jobID string) (model.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return model.Progress{}, domain.ErrJobNotFound
	}
	return job.ProgressSnapshot(), nil
}

func (r *MemoryJobRepo) Sweep(ctx context.Context, olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, job := range r.jobs {
		if job.Status.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(r.jobs, id)
			n++
		}
	}
	return n
}
