package mirror

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"repo-mirror/internal/events"
	"repo-mirror/internal/model"
	"repo-mirror/internal/retry"
	"repo-mirror/internal/store"
)

// BatchOptions override the per-batch concurrency. Zero uses the service default.
type BatchOptions struct {
	Concurrency int
}

// BatchResult summarizes one RunBatch call.
type BatchResult struct {
	Total     int
	Succeeded int
	Failed    int
	Errors    []error
}

// StartBatch creates the in-progress job that tracks repos. org is optional.
func (s *Service) StartBatch(ctx context.Context, cfg *model.Configuration, jobType model.JobType, repos []model.Repository, org *model.Organization) (*model.MirrorJob, error) {
	now := s.opts.Now()
	batchID := uuid.New()
	ids := make([]string, 0, len(repos))
	for _, r := range repos {
		ids = append(ids, r.ID.String())
	}
	status := model.StatusMirroring
	if jobType == model.JobTypeSync {
		status = model.StatusSyncing
	}
	job := &model.MirrorJob{
		UserID:     cfg.UserID,
		Status:     status,
		Message:    fmt.Sprintf("Processing %d repositories", len(repos)),
		JobType:    jobType,
		BatchID:    &batchID,
		TotalItems: len(repos),
		ItemIDs:    ids,
		InProgress: true,
		StartedAt:  &now,
		// A fresh batch counts as checkpointed so recovery measures staleness from its start.
		LastCheckpoint: &now,
	}
	if org != nil {
		orgID := org.ID
		job.OrganizationID = &orgID
		job.OrganizationName = org.Name
	}
	created, err := s.store.CreateJob(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch job: %w", err)
	}
	s.events.Emit(ctx, cfg.UserID, events.JobEvent(created))
	return created, nil
}

// RunBatch drives repos through the retry executor with the operation matching the
// job type, checkpointing every settled unit, and completes the job. Repos are
// processed in chunks of the schedule's batch size with the configured pause between them.
func (s *Service) RunBatch(ctx context.Context, job *model.MirrorJob, cfg *model.Configuration, repos []model.Repository, opts BatchOptions) BatchResult {
	op := s.MirrorRepository
	operation := "mirror"
	if job.JobType == model.JobTypeSync {
		op = s.SyncRepository
		operation = "sync"
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = cfg.Schedule.Concurrency
	}
	if concurrency <= 0 {
		concurrency = s.opts.Concurrency
	}

	logger := s.logger.With("user_id", job.UserID, "job_id", job.ID, "job_type", job.JobType)
	result := BatchResult{Total: len(repos)}
	completed := len(job.CompletedItemIDs)
	total := job.TotalItems
	if total == 0 {
		total = len(repos)
	}

	for i, chunk := range chunks(repos, cfg.Schedule.BatchSize) {
		if i > 0 && cfg.Schedule.PauseBetweenBatches > 0 {
			if err := s.opts.Sleep(ctx, cfg.Schedule.PauseBetweenBatches); err != nil {
				break
			}
		}

		ropts := executorOptions[model.Repository, *model.Repository](s, cfg, concurrency, operation)
		ropts.OnProgress = func(_, _ int, res retry.Result[model.Repository, *model.Repository]) {
			completed++
			if _, err := s.store.CheckpointJob(ctx, job.ID, res.Item.ID.String()); err != nil {
				logger.Error("Failed to checkpoint job", "repo", res.Item.FullName, "error", err)
			}
			s.events.Emit(ctx, job.UserID, events.JobPayload{
				Kind:           events.KindJob,
				JobID:          job.ID,
				JobType:        job.JobType,
				RepositoryName: res.Item.FullName,
				Status:         job.Status,
				Message:        fmt.Sprintf("Processed %d of %d repositories", completed, total),
				Completed:      completed,
				Total:          total,
			})
		}

		results := retry.Run(ctx, chunk, func(ctx context.Context, repo model.Repository) (*model.Repository, error) {
			return op(ctx, &repo, cfg)
		}, ropts)

		for _, res := range results {
			if res.Err != nil {
				result.Failed++
				result.Errors = append(result.Errors, res.Err)
				continue
			}
			result.Succeeded++
		}
	}

	s.completeBatch(ctx, job, result)
	logger.Info("Batch finished", "total", result.Total, "succeeded", result.Succeeded, "failed", result.Failed)
	return result
}

func (s *Service) completeBatch(ctx context.Context, job *model.MirrorJob, result BatchResult) {
	if err := ctx.Err(); err != nil {
		// The job stays in progress so recovery resumes the unprocessed items.
		s.logger.Warn("Batch interrupted", "job_id", job.ID, "error", err)
		return
	}
	now := s.opts.Now()
	status := model.StatusMirrored
	if job.JobType == model.JobTypeSync {
		status = model.StatusSynced
	}
	message := fmt.Sprintf("Processed %d repositories", result.Total)
	if result.Failed > 0 {
		status = model.StatusFailed
		message = fmt.Sprintf("Processed %d repositories, %d failed", result.Total, result.Failed)
	}
	updated, err := s.store.UpdateJobStatus(ctx, store.JobStatusUpdate{
		ID:          job.ID,
		Status:      status,
		Message:     message,
		InProgress:  false,
		CompletedAt: &now,
	})
	if err != nil {
		s.logger.Error("Failed to complete batch job", "job_id", job.ID, "error", err)
		return
	}
	s.events.Emit(ctx, job.UserID, events.JobEvent(updated))
}

// MirrorRepositories mirrors or syncs repos as a single tracked batch.
func (s *Service) MirrorRepositories(ctx context.Context, cfg *model.Configuration, jobType model.JobType, repos []model.Repository) (BatchResult, error) {
	if len(repos) == 0 {
		return BatchResult{}, nil
	}
	job, err := s.StartBatch(ctx, cfg, jobType, repos, nil)
	if err != nil {
		return BatchResult{}, err
	}
	return s.RunBatch(ctx, job, cfg, repos, BatchOptions{}), nil
}

func chunks[T any](items []T, size int) [][]T {
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
