package mirror

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	apperrors "repo-mirror/internal/errors"
	"repo-mirror/internal/gitea"
	"repo-mirror/internal/model"
	"repo-mirror/internal/ownership"
	"repo-mirror/internal/store"
)

// MessageNoRepositories marks an organization that was processed but had nothing to mirror.
const MessageNoRepositories = "processed, no repositories found"

// GetOrCreateOrganization returns the destination organization, creating it when it
// does not exist. A lost creation race is returned as a ConflictError; callers that
// can tolerate it should re-query.
func (s *Service) GetOrCreateOrganization(ctx context.Context, name string, cfg *model.Configuration) (*gitea.Organization, error) {
	dest, err := s.clients.Destination(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s.getOrCreateOrganization(ctx, dest, cfg.UserID, name, cfg.Destination.Visibility)
}

func (s *Service) getOrCreateOrganization(ctx context.Context, dest DestinationClient, userID uuid.UUID, name string, visibility model.Visibility) (*gitea.Organization, error) {
	org, err := destination(ctx, s, userID, func(ctx context.Context) (*gitea.Organization, error) {
		return dest.GetOrganization(ctx, name)
	})
	if err == nil {
		return org, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, fmt.Errorf("get organization %s: %w", name, err)
	}

	if visibility == "" {
		visibility = model.VisibilityPublic
	}
	s.logger.Info("Creating destination organization", "user_id", userID, "organization", name, "visibility", visibility)
	org, err = destination(ctx, s, userID, func(ctx context.Context) (*gitea.Organization, error) {
		return dest.CreateOrganization(ctx, name, visibility)
	})
	if err != nil {
		return nil, fmt.Errorf("create organization %s: %w", name, err)
	}
	return org, nil
}

// ensureOrganization is getOrCreateOrganization for callers inside a batch: concurrent
// calls for the same name share one request, and a lost race is resolved by re-querying.
// The shared request outlives any single caller's cancellation.
func (s *Service) ensureOrganization(ctx context.Context, dest DestinationClient, userID uuid.UUID, name string, visibility model.Visibility) (*gitea.Organization, error) {
	key := userID.String() + "/" + model.NormalizeName(name)
	shared := context.WithoutCancel(ctx)
	ch := s.orgs.DoChan(key, func() (any, error) {
		org, err := s.getOrCreateOrganization(shared, dest, userID, name, visibility)
		if err == nil || !apperrors.IsConflict(err) {
			return org, err
		}
		s.logger.Info("Organization created concurrently, re-querying", "organization", name)
		org, rerr := destination(shared, s, userID, func(ctx context.Context) (*gitea.Organization, error) {
			return dest.GetOrganization(ctx, name)
		})
		if rerr != nil {
			return nil, fmt.Errorf("%w (re-query failed: %v)", err, rerr)
		}
		return org, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		org, _ := res.Val.(*gitea.Organization)
		return org, nil
	}
}

// MirrorOrganization mirrors every tracked unit of a source organization as one batch
// job with per-unit checkpoints. The returned job is the batch record.
func (s *Service) MirrorOrganization(ctx context.Context, org *model.Organization, cfg *model.Configuration) (*model.MirrorJob, error) {
	logger := s.logger.With("user_id", org.UserID, "organization", org.Name)

	if !cfg.HasCredentials() {
		return nil, apperrors.ErrMissingCredentials
	}
	dest, err := s.clients.Destination(ctx, cfg)
	if err != nil {
		return nil, s.failOrganization(ctx, org, fmt.Errorf("destination client: %w", err))
	}

	if err := s.store.UpdateOrganizationStatus(ctx, store.OrganizationStatusUpdate{
		ID:              org.ID,
		Status:          model.StatusMirroring,
		RepositoryCount: org.RepositoryCnt,
	}); err != nil {
		return nil, fmt.Errorf("failed to mark organization %s mirroring: %w", org.Name, err)
	}
	org.Status = model.StatusMirroring

	if target, ok := ownership.OrganizationTarget(org, cfg); ok {
		if _, err := s.ensureOrganization(ctx, dest, org.UserID, target, cfg.Destination.Visibility); err != nil {
			return nil, s.failOrganization(ctx, org, err)
		}
	}

	repos, err := s.store.ListRepositoriesByOrganization(ctx, org.UserID, org.Name)
	if err != nil {
		return nil, s.failOrganization(ctx, org, fmt.Errorf("list repositories: %w", err))
	}
	repos = mirrorable(repos)

	if len(repos) == 0 {
		logger.Info("Organization has no repositories to mirror")
		now := s.opts.Now()
		if err := s.store.UpdateOrganizationStatus(ctx, store.OrganizationStatusUpdate{
			ID:           org.ID,
			Status:       model.StatusMirrored,
			LastMirrored: &now,
		}); err != nil {
			return nil, err
		}
		orgID := org.ID
		return s.store.CreateJob(ctx, &model.MirrorJob{
			UserID:           org.UserID,
			OrganizationID:   &orgID,
			OrganizationName: org.Name,
			Status:           model.StatusMirrored,
			Message:          MessageNoRepositories,
			JobType:          model.JobTypeMirror,
			StartedAt:        &now,
			CompletedAt:      &now,
		})
	}

	job, err := s.StartBatch(ctx, cfg, model.JobTypeMirror, repos, org)
	if err != nil {
		return nil, s.failOrganization(ctx, org, err)
	}
	logger.Info("Mirroring organization", "repositories", len(repos), "job_id", job.ID)

	result := s.RunBatch(ctx, job, cfg, repos, BatchOptions{Concurrency: s.opts.OrgConcurrency})

	now := s.opts.Now()
	status := model.StatusMirrored
	message := ""
	if result.Failed > 0 {
		status = model.StatusFailed
		message = fmt.Sprintf("%d of %d repositories failed", result.Failed, result.Total)
	}
	if err := s.store.UpdateOrganizationStatus(ctx, store.OrganizationStatusUpdate{
		ID:              org.ID,
		Status:          status,
		ErrorMessage:    message,
		LastMirrored:    &now,
		RepositoryCount: len(repos),
	}); err != nil {
		return nil, err
	}
	org.Status = status
	org.RepositoryCnt = len(repos)
	logger.Info("Organization mirrored", "succeeded", result.Succeeded, "failed", result.Failed)
	return s.store.GetJob(ctx, job.ID)
}

func (s *Service) failOrganization(ctx context.Context, org *model.Organization, cause error) error {
	s.logger.Error("Organization mirror failed", "organization", org.Name, "error", cause)
	if err := s.store.UpdateOrganizationStatus(ctx, store.OrganizationStatusUpdate{
		ID:              org.ID,
		Status:          model.StatusFailed,
		ErrorMessage:    cause.Error(),
		RepositoryCount: org.RepositoryCnt,
	}); err != nil {
		s.logger.Error("Failed to persist organization failure", "organization", org.Name, "error", err)
	}
	now := s.opts.Now()
	orgID := org.ID
	if _, err := s.store.CreateJob(ctx, &model.MirrorJob{
		UserID:           org.UserID,
		OrganizationID:   &orgID,
		OrganizationName: org.Name,
		Status:           model.StatusFailed,
		Message:          "Failed to mirror organization " + org.Name,
		Details:          cause.Error(),
		JobType:          model.JobTypeMirror,
		StartedAt:        &now,
		CompletedAt:      &now,
	}); err != nil {
		s.logger.Error("Failed to record organization job", "organization", org.Name, "error", err)
	}
	return fmt.Errorf("mirror organization %s: %w", org.Name, cause)
}

// mirrorable drops units that must never be auto-selected.
func mirrorable(repos []model.Repository) []model.Repository {
	out := repos[:0:0]
	for _, r := range repos {
		switch r.Status {
		case model.StatusSkipped, model.StatusIgnored, model.StatusArchived, model.StatusMirroring, model.StatusSyncing:
			continue
		}
		out = append(out, r)
	}
	return out
}
