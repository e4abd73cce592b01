// Package mirror implements the unit level operations of the engine: mirroring and
// syncing single repositories, mirroring organizations, batches of units and status
// repair. Every status change is paired with a MirrorJob record.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	apperrors "repo-mirror/internal/errors"
	"repo-mirror/internal/events"
	"repo-mirror/internal/model"
	"repo-mirror/internal/ratelimit"
	"repo-mirror/internal/retry"
	"repo-mirror/internal/store"
	"repo-mirror/internal/telemetry"
)

const (
	DefaultConcurrency    = 3
	DefaultOrgConcurrency = 3
	DefaultReleaseLimit   = 10

	// rateLimitRetries is how often a single platform call may wait out a quota.
	rateLimitRetries = 3
)

// Options tune a Service. Zero values select the defaults.
type Options struct {
	Concurrency    int
	OrgConcurrency int
	MaxRetries     int
	RetryDelay     time.Duration

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Service runs mirror, sync and organization operations for any configuration.
type Service struct {
	store    store.Store
	clients  Clients
	governor *ratelimit.Governor
	events   *events.Publisher
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	opts     Options

	orgs singleflight.Group
}

func NewService(st store.Store, clients Clients, governor *ratelimit.Governor, publisher *events.Publisher, metrics *telemetry.Metrics, logger *slog.Logger, opts Options) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.OrgConcurrency <= 0 {
		opts.OrgConcurrency = DefaultOrgConcurrency
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Service{
		store:    st,
		clients:  clients,
		governor: governor,
		events:   publisher,
		metrics:  metrics,
		logger:   logger,
		opts:     opts,
	}
}

// Clients exposes the client factory so the scheduler discovers with the same clients.
func (s *Service) Clients() Clients {
	return s.clients
}

// executorOptions builds retry options from the schedule section of a configuration.
func executorOptions[T, R any](s *Service, cfg *model.Configuration, concurrency int, operation string) retry.Options[T, R] {
	opts := retry.Options[T, R]{
		Concurrency: concurrency,
		MaxRetries:  s.opts.MaxRetries,
		RetryDelay:  s.opts.RetryDelay,
		Sleep:       s.opts.Sleep,
		OnRetry: func(_ T, attempt int, err error) {
			s.metrics.RecordRetry(operation)
			s.logger.Warn("Retrying operation", "operation", operation, "attempt", attempt, "error", err)
		},
	}
	if cfg != nil {
		if cfg.Schedule.RetryAttempts > 0 {
			opts.MaxRetries = cfg.Schedule.RetryAttempts
		}
		if cfg.Schedule.RetryDelay > 0 {
			opts.RetryDelay = cfg.Schedule.RetryDelay
		}
	}
	return opts
}

// source calls fn under the source platform's quota.
func source[T any](ctx context.Context, s *Service, userID uuid.UUID, fn func(context.Context) (T, error)) (T, error) {
	if err := s.governor.Pace(ctx, userID, model.ProviderGitHub); err != nil {
		var zero T
		return zero, err
	}
	return ratelimit.Call(ctx, s.governor, userID, model.ProviderGitHub, rateLimitRetries, fn)
}

// destination calls fn under the destination platform's quota.
func destination[T any](ctx context.Context, s *Service, userID uuid.UUID, fn func(context.Context) (T, error)) (T, error) {
	if err := s.governor.Pace(ctx, userID, model.ProviderGitea); err != nil {
		var zero T
		return zero, err
	}
	return ratelimit.Call(ctx, s.governor, userID, model.ProviderGitea, rateLimitRetries, fn)
}

func destinationDo(ctx context.Context, s *Service, userID uuid.UUID, fn func(context.Context) error) error {
	_, err := destination(ctx, s, userID, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// transition moves repo to a new status and refreshes *repo from the store.
func (s *Service) transition(ctx context.Context, repo *model.Repository, upd store.RepositoryStatusUpdate) error {
	if !model.CanTransition(repo.Status, upd.Status) {
		return &apperrors.InvalidTransitionError{Repo: repo.FullName, From: string(repo.Status), To: string(upd.Status)}
	}
	upd.ID = repo.ID
	updated, err := s.store.UpdateRepositoryStatus(ctx, upd)
	if err != nil {
		return fmt.Errorf("failed to update status of %s: %w", repo.FullName, err)
	}
	*repo = *updated
	s.events.Emit(ctx, repo.UserID, events.RepositoryEvent(repo))
	return nil
}

// record writes a unit level job row and publishes it.
func (s *Service) record(ctx context.Context, repo *model.Repository, jobType model.JobType, status model.RepoStatus, message, details string) {
	now := s.opts.Now()
	repoID := repo.ID
	job := &model.MirrorJob{
		UserID:         repo.UserID,
		RepositoryID:   &repoID,
		RepositoryName: repo.FullName,
		Status:         status,
		Message:        message,
		Details:        details,
		JobType:        jobType,
		StartedAt:      &now,
	}
	if status.IsTerminal() {
		job.CompletedAt = &now
	}
	if org := repo.OrganizationName(); org != "" {
		job.OrganizationName = org
	}
	created, err := s.store.CreateJob(ctx, job)
	if err != nil {
		s.logger.Error("Failed to record mirror job", "repo", repo.FullName, "status", status, "error", err)
		return
	}
	s.events.Emit(ctx, repo.UserID, events.JobEvent(created))
}

// fail marks a unit failed and records the outcome. It returns the cause wrapped
// with the unit name.
func (s *Service) fail(ctx context.Context, repo *model.Repository, jobType model.JobType, cause error) error {
	wrapped := fmt.Errorf("%s %s: %w", jobType, repo.FullName, cause)
	s.logger.Error("Repository operation failed", "repo", repo.FullName, "job_type", jobType, "error", cause)

	if model.CanTransition(repo.Status, model.StatusFailed) {
		var nd *apperrors.NoDestinationError
		if err := s.transition(ctx, repo, store.RepositoryStatusUpdate{
			Status:        model.StatusFailed,
			ErrorMessage:  cause.Error(),
			ClearLocation: errors.As(cause, &nd),
		}); err != nil {
			s.logger.Error("Failed to persist failure", "repo", repo.FullName, "error", err)
		}
	}
	s.record(ctx, repo, jobType, model.StatusFailed, fmt.Sprintf("Failed to %s %s", jobType, repo.FullName), cause.Error())
	return wrapped
}

func location(owner, name string) string {
	return owner + "/" + name
}

func splitLocation(loc string) (string, string, bool) {
	owner, name, ok := strings.Cut(loc, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", false
	}
	return owner, name, true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
