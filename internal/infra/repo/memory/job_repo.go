// File: internal/infra/repo/memory/job_repo.go
package memory

import (
	"context"
	"sync"
	"time"

	"reel-compare/internal/domain"
	"reel-compare/internal/domain/model"
	"reel-compare/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*JobRepo)(nil)

// JobRepo is the memory-resident job store. Records do not survive a
// process restart; that is deliberate for this service.
type JobRepo struct {
	mu   sync.RWMutex
	jobs map[string]*model.CompareJob
}

func NewJobRepo() *JobRepo {
	return &JobRepo{jobs: make(map[string]*model.CompareJob)}
}

func (r *JobRepo) Create(ctx context.Context, job *model.CompareJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return domain.ErrInvalidRequest
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *JobRepo) Get(ctx context.Context, id string) (*model.CompareJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

func (r *JobRepo) Update(ctx context.Context, id string, mutate func(*model.CompareJob) error) (*model.CompareJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	// Mutate a copy, then swap the pointer, so a concurrent Get that
	// already cloned the old record never sees a half-applied write.
	cp := job.Clone()
	if err := mutate(cp); err != nil {
		return nil, err
	}
	r.jobs[id] = cp
	return cp.Clone(), nil
}

func (r *JobRepo) MarkProcessing(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status == model.JobStatusProcessing {
		return domain.ErrAlreadyRunning
	}
	cp := job.Clone()
	cp.Status = model.JobStatusProcessing
	cp.Stage = model.StagePreparing
	cp.Metrics.StartedAt = time.Now().UTC()
	r.jobs[id] = cp
	return nil
}

func (r *JobRepo) ResetForRetry(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status == model.JobStatusProcessing {
		return domain.ErrAlreadyRunning
	}
	cp := job.Clone()
	cp.Status = model.JobStatusQueued
	cp.Stage = ""
	cp.ErrorCode = ""
	cp.Result = nil
	cp.CompletedAt = time.Time{}
	cp.Metrics = model.JobMetrics{}
	r.jobs[id] = cp
	return nil
}
