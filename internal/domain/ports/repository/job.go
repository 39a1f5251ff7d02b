package repository

import (
	"context"

	"reel-compare/internal/domain/model"
)

// JobRepository owns CompareJob records. It is the single mutation path:
// the orchestrator never touches a job field directly, so pollers always
// read a consistent snapshot.
type JobRepository interface {
	Create(ctx context.Context, job *model.CompareJob) error

	// Get returns a snapshot copy. domain.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*model.CompareJob, error)

	// Update applies mutate under the record's write lock and returns the
	// resulting snapshot.
	Update(ctx context.Context, id string, mutate func(*model.CompareJob) error) (*model.CompareJob, error)

	// MarkProcessing performs the queued->processing transition. It fails
	// with domain.ErrAlreadyRunning when the job is mid-flight, which is
	// the guard against two concurrent orchestrator runs for one id.
	MarkProcessing(ctx context.Context, id string) error

	// ResetForRetry moves a non-processing job back to queued, clearing
	// errorCode, result, completedAt and metrics.
	ResetForRetry(ctx context.Context, id string) error
}
