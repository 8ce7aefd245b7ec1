package repository

import (
	"context"
	"time"

	"arcana-reading-server/internal/domain/model"
)

// JobRepository is the port for reading-job bookkeeping. It is a passive
// record keeper: only the orchestrator drives transitions, and the terminal
// setters are idempotent because cancellation and completion may race.
type JobRepository interface {
	// Create allocates a fresh job in processing state. It never fails.
	Create(ctx context.Context, sessionID, question, category, spreadType string, items []model.CardItem) *model.ReadingJob

	// AppendItemResult appends one card result. The caller guarantees
	// ascending, contiguous item indexes.
	AppendItemResult(ctx context.Context, jobID string, res model.ItemResult) error

	Complete(ctx context.Context, jobID, finalResult string) error
	Fail(ctx context.Context, jobID, reason string) error
	Cancel(ctx context.Context, jobID string) error

	Find(ctx context.Context, jobID string) (*model.ReadingJob, error)
	Progress(ctx context.Context, jobID string) (model.Progress, error)

	// Sweep removes terminal jobs whose UpdatedAt predates the cutoff and
	// returns how many were deleted. Processing jobs are never swept.
	Sweep(ctx context.Context, olderThan time.Duration) int
}
