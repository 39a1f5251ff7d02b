// File: internal/infra/repo/redisjob/job_repo.go
package redisjob

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"reel-compare/internal/domain"
	"reel-compare/internal/domain/model"
	"reel-compare/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*JobRepo)(nil)

const keyPrefix = "cmpjob:"

// JobRepo stores JSON-encoded job records in redis with a TTL. It exists
// as the substitutable backend behind JobRepository; the state-machine
// transitions use WATCH so two processes cannot both win a
// queued->processing race.
type JobRepo struct {
	cli *redis.Client
	ttl time.Duration
}

func NewJobRepo(cli *redis.Client, ttl time.Duration) *JobRepo {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JobRepo{cli: cli, ttl: ttl}
}

func key(id string) string { return keyPrefix + id }

func (r *JobRepo) Create(ctx context.Context, job *model.CompareJob) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	ok, err := r.cli.SetNX(ctx, key(job.ID), b, r.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidRequest
	}
	return nil
}

func (r *JobRepo) Get(ctx context.Context, id string) (*model.CompareJob, error) {
	raw, err := r.cli.Get(ctx, key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var job model.CompareJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// mutateCAS runs mutate inside a WATCH/MULTI transaction, retrying on
// concurrent modification.
func (r *JobRepo) mutateCAS(ctx context.Context, id string, mutate func(*model.CompareJob) error) (*model.CompareJob, error) {
	var out *model.CompareJob
	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key(id)).Result()
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		var job model.CompareJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return err
		}
		if err := mutate(&job); err != nil {
			return err
		}
		b, err := json.Marshal(&job)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key(id), b, r.ttl)
			return nil
		})
		if err == nil {
			out = &job
		}
		return err
	}

	for i := 0; i < 5; i++ {
		err := r.cli.Watch(ctx, txn, key(id))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return out, err
	}
	return nil, redis.TxFailedErr
}

func (r *JobRepo) Update(ctx context.Context, id string, mutate func(*model.CompareJob) error) (*model.CompareJob, error) {
	return r.mutateCAS(ctx, id, mutate)
}

func (r *JobRepo) MarkProcessing(ctx context.Context, id string) error {
	_, err := r.mutateCAS(ctx, id, func(job *model.CompareJob) error {
		if job.Status == model.JobStatusProcessing {
			return domain.ErrAlreadyRunning
		}
		job.Status = model.JobStatusProcessing
		job.Stage = model.StagePreparing
		job.Metrics.StartedAt = time.Now().UTC()
		return nil
	})
	return err
}

func (r *JobRepo) ResetForRetry(ctx context.Context, id string) error {
	_, err := r.mutateCAS(ctx, id, func(job *model.CompareJob) error {
		if job.Status == model.JobStatusProcessing {
			return domain.ErrAlreadyRunning
		}
		job.Status = model.JobStatusQueued
		job.Stage = ""
		job.ErrorCode = ""
		job.Result = nil
		job.CompletedAt = time.Time{}
		job.Metrics = model.JobMetrics{}
		return nil
	})
	return err
}
