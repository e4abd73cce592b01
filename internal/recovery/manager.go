// Package recovery finds batch jobs abandoned by a previous process and either resumes
// their unprocessed items or fails them.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "repo-mirror/internal/errors"
	"repo-mirror/internal/events"
	"repo-mirror/internal/mirror"
	"repo-mirror/internal/model"
	"repo-mirror/internal/store"
)

const (
	DefaultStaleAfter = 10 * time.Minute

	// MessageRemediated is written by FailAllInProgress.
	MessageRemediated = "Marked failed by remediation: job was left in progress"
	messageInterrupted = "interrupted before completion"
)

// BatchRunner re-enters the retry executor for a job's remaining units.
type BatchRunner interface {
	RunBatch(ctx context.Context, job *model.MirrorJob, cfg *model.Configuration, repos []model.Repository, opts mirror.BatchOptions) mirror.BatchResult
}

// Report summarizes one recovery pass.
type Report struct {
	Found     int
	Resumed   int
	Completed int
	Failed    int
}

type Manager struct {
	store      store.Store
	runner     BatchRunner
	events     *events.Publisher
	logger     *slog.Logger
	staleAfter time.Duration
	now        func() time.Time
}

// NewManager builds a Manager. A zero staleAfter means DefaultStaleAfter; a nil now means time.Now.
func NewManager(st store.Store, runner BatchRunner, publisher *events.Publisher, logger *slog.Logger, staleAfter time.Duration, now func() time.Time) *Manager {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{
		store:      st,
		runner:     runner,
		events:     publisher,
		logger:     logger,
		staleAfter: staleAfter,
		now:        now,
	}
}

// Interrupted returns in-progress jobs whose last checkpoint is older than the
// staleness threshold or missing.
func (m *Manager) Interrupted(ctx context.Context) ([]model.MirrorJob, error) {
	jobs, err := m.store.FindInterruptedJobs(ctx, m.now().Add(-m.staleAfter))
	if err != nil {
		return nil, fmt.Errorf("failed to find interrupted jobs: %w", err)
	}
	return jobs, nil
}

// Resolve settles the bookkeeping of one interrupted job and returns the item ids
// that still need processing. Jobs without item tracking are failed with a
// NotResumableError. Jobs with nothing left are completed and return no items.
func (m *Manager) Resolve(ctx context.Context, job *model.MirrorJob) ([]string, error) {
	logger := m.logger.With("job_id", job.ID, "job_type", job.JobType)

	if len(job.ItemIDs) == 0 && len(job.CompletedItemIDs) == 0 {
		cause := &apperrors.NotResumableError{JobID: job.ID.String()}
		logger.Warn("Job cannot be resumed", "error", cause)
		if err := m.finish(ctx, job, model.StatusFailed, "Recovery failed: "+cause.Error()); err != nil {
			return nil, err
		}
		return nil, cause
	}

	remaining := job.RemainingItemIDs()
	if len(remaining) == 0 {
		logger.Info("Interrupted job had already processed every item")
		return nil, m.finish(ctx, job, succeeded(job.JobType),
			fmt.Sprintf("Recovered: all %d items were already processed", len(job.ItemIDs)))
	}

	updated, err := m.store.UpdateJobStatus(ctx, store.JobStatusUpdate{
		ID:         job.ID,
		Status:     job.Status,
		Message:    fmt.Sprintf("Resuming: %d of %d items remaining", len(remaining), len(job.ItemIDs)),
		InProgress: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark job %s resuming: %w", job.ID, err)
	}
	*job = *updated
	m.events.Emit(ctx, job.UserID, events.JobEvent(job))
	logger.Info("Resuming interrupted job", "remaining", len(remaining), "total", len(job.ItemIDs))
	return remaining, nil
}

// Run recovers every interrupted job. Jobs are handled one after another; a job that
// cannot be resumed never stops the others.
func (m *Manager) Run(ctx context.Context) (Report, error) {
	var report Report
	jobs, err := m.Interrupted(ctx)
	if err != nil {
		return report, err
	}
	report.Found = len(jobs)
	if len(jobs) == 0 {
		m.logger.Info("No interrupted jobs found")
		return report, nil
	}
	m.logger.Info("Recovering interrupted jobs", "count", len(jobs))

	for i := range jobs {
		job := &jobs[i]
		remaining, err := m.Resolve(ctx, job)
		var nr *apperrors.NotResumableError
		switch {
		case errors.As(err, &nr):
			report.Failed++
			continue
		case err != nil:
			return report, err
		case len(remaining) == 0:
			report.Completed++
			continue
		}

		if err := m.resume(ctx, job, remaining); err != nil {
			m.logger.Error("Failed to resume job", "job_id", job.ID, "error", err)
			if ferr := m.finish(ctx, job, model.StatusFailed, "Recovery failed: "+err.Error()); ferr != nil {
				return report, ferr
			}
			report.Failed++
			continue
		}
		report.Resumed++
	}

	m.logger.Info("Recovery finished", "found", report.Found, "resumed", report.Resumed,
		"completed", report.Completed, "failed", report.Failed)
	return report, nil
}

// resume runs the executor over exactly the remaining units of job.
func (m *Manager) resume(ctx context.Context, job *model.MirrorJob, remaining []string) error {
	ids := make([]uuid.UUID, 0, len(remaining))
	for _, raw := range remaining {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("job %s has malformed item id %q: %w", job.ID, raw, err)
		}
		ids = append(ids, id)
	}
	repos, err := m.store.ListRepositoriesByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load remaining repositories: %w", err)
	}
	if len(repos) == 0 {
		return m.finish(ctx, job, succeeded(job.JobType), "Recovered: remaining repositories no longer exist")
	}

	cfg, err := m.store.GetConfig(ctx, repos[0].ConfigID)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if !cfg.HasCredentials() {
		return apperrors.ErrMissingCredentials
	}

	for i := range repos {
		if err := m.release(ctx, &repos[i]); err != nil {
			return err
		}
	}

	m.runner.RunBatch(ctx, job, cfg, repos, mirror.BatchOptions{})
	return nil
}

// release moves a unit left mid-flight to failed so the operation may pick it up again.
func (m *Manager) release(ctx context.Context, repo *model.Repository) error {
	if repo.Status != model.StatusMirroring && repo.Status != model.StatusSyncing {
		return nil
	}
	updated, err := m.store.UpdateRepositoryStatus(ctx, store.RepositoryStatusUpdate{
		ID:               repo.ID,
		Status:           model.StatusFailed,
		ErrorMessage:     messageInterrupted,
		MirroredLocation: repo.MirroredLocation,
		LastMirrored:     repo.LastMirrored,
	})
	if err != nil {
		return fmt.Errorf("failed to release %s: %w", repo.FullName, err)
	}
	*repo = *updated
	m.events.Emit(ctx, repo.UserID, events.RepositoryEvent(repo))
	return nil
}

func (m *Manager) finish(ctx context.Context, job *model.MirrorJob, status model.RepoStatus, message string) error {
	now := m.now()
	updated, err := m.store.UpdateJobStatus(ctx, store.JobStatusUpdate{
		ID:          job.ID,
		Status:      status,
		Message:     message,
		InProgress:  false,
		CompletedAt: &now,
	})
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", job.ID, err)
	}
	*job = *updated
	m.events.Emit(ctx, job.UserID, events.JobEvent(job))
	return nil
}

// FailAllInProgress marks every in-progress job failed. Running it twice is harmless;
// the second call finds nothing.
func (m *Manager) FailAllInProgress(ctx context.Context) (int64, error) {
	n, err := m.store.FailInProgressJobs(ctx, MessageRemediated)
	if err != nil {
		return 0, fmt.Errorf("failed to mark in-progress jobs failed: %w", err)
	}
	m.logger.Info("Marked in-progress jobs failed", "count", n)
	return n, nil
}

func succeeded(jobType model.JobType) model.RepoStatus {
	if jobType == model.JobTypeSync {
		return model.StatusSynced
	}
	return model.StatusMirrored
}
