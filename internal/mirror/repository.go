package mirror

import (
	"context"
	"fmt"
	"net/url"
	"time"

	apperrors "repo-mirror/internal/errors"
	"repo-mirror/internal/gitea"
	"repo-mirror/internal/model"
	"repo-mirror/internal/ownership"
	"repo-mirror/internal/store"
)

// MirrorRepository creates the destination mirror of repo. A unit that already exists
// at the destination converges to mirrored without another migrate call. Any failure
// after the precondition checks marks the unit failed and is recorded.
func (s *Service) MirrorRepository(ctx context.Context, repo *model.Repository, cfg *model.Configuration) (*model.Repository, error) {
	start := s.opts.Now()
	logger := s.logger.With("user_id", repo.UserID, "repo", repo.FullName)

	if !cfg.HasCredentials() {
		return nil, apperrors.ErrMissingCredentials
	}
	if repo.Status == model.StatusMirroring {
		return nil, &apperrors.InvalidTransitionError{Repo: repo.FullName, From: string(repo.Status), To: string(model.StatusMirroring)}
	}
	if !model.CanTransition(repo.Status, model.StatusMirrored) {
		return nil, &apperrors.InvalidTransitionError{Repo: repo.FullName, From: string(repo.Status), To: string(model.StatusMirrored)}
	}

	dest, err := s.clients.Destination(ctx, cfg)
	if err != nil {
		s.metrics.RecordOperation("mirror", "failed", time.Since(start))
		return nil, s.fail(ctx, repo, model.JobTypeMirror, fmt.Errorf("destination client: %w", err))
	}

	owner, err := ownership.OwnerWithOverrides(ctx, repo, cfg, s.store)
	if err != nil {
		s.metrics.RecordOperation("mirror", "failed", time.Since(start))
		return nil, s.fail(ctx, repo, model.JobTypeMirror, fmt.Errorf("resolve destination owner: %w", err))
	}
	target := location(owner, repo.Name)
	logger = logger.With("destination", target)

	existing, err := destination(ctx, s, repo.UserID, func(ctx context.Context) (*gitea.Repository, error) {
		return dest.GetRepository(ctx, owner, repo.Name)
	})
	switch {
	case err == nil && existing != nil:
		logger.Info("Repository already present at destination")
		if err := s.converge(ctx, repo, target, model.JobTypeMirror, "Repository already mirrored to "+target); err != nil {
			return nil, s.fail(ctx, repo, model.JobTypeMirror, err)
		}
		s.metrics.RecordOperation("mirror", "converged", time.Since(start))
		return repo, nil
	case err != nil && !apperrors.IsNotFound(err):
		s.metrics.RecordOperation("mirror", "failed", time.Since(start))
		return nil, s.fail(ctx, repo, model.JobTypeMirror, fmt.Errorf("check destination: %w", err))
	}

	if err := s.transition(ctx, repo, store.RepositoryStatusUpdate{Status: model.StatusMirroring}); err != nil {
		s.metrics.RecordOperation("mirror", "failed", time.Since(start))
		return nil, s.fail(ctx, repo, model.JobTypeMirror, err)
	}
	s.record(ctx, repo, model.JobTypeMirror, model.StatusMirroring, "Started mirroring "+repo.FullName, "")
	logger.Info("Mirroring repository")

	summary, err := s.mirrorToDestination(ctx, dest, repo, cfg, owner)
	if err != nil {
		s.metrics.RecordOperation("mirror", "failed", time.Since(start))
		return nil, s.fail(ctx, repo, model.JobTypeMirror, err)
	}

	now := s.opts.Now()
	if err := s.transition(ctx, repo, store.RepositoryStatusUpdate{
		Status:           model.StatusMirrored,
		MirroredLocation: target,
		LastMirrored:     &now,
	}); err != nil {
		s.metrics.RecordOperation("mirror", "failed", time.Since(start))
		return nil, s.fail(ctx, repo, model.JobTypeMirror, err)
	}
	message := fmt.Sprintf("Successfully mirrored %s to %s", repo.FullName, target)
	s.record(ctx, repo, model.JobTypeMirror, model.StatusMirrored, message, summary)
	s.metrics.RecordOperation("mirror", "success", time.Since(start))
	logger.Info("Repository mirrored", "duration", time.Since(start).String())
	return repo, nil
}

// mirrorToDestination performs the network side of a first mirror and returns a
// summary of the metadata that was carried over.
func (s *Service) mirrorToDestination(ctx context.Context, dest DestinationClient, repo *model.Repository, cfg *model.Configuration, owner string) (string, error) {
	cloneAddr, err := s.cloneAddress(ctx, repo, cfg)
	if err != nil {
		return "", err
	}

	if model.NormalizeName(owner) != model.NormalizeName(cfg.Destination.DefaultOwner) {
		if _, err := s.ensureOrganization(ctx, dest, repo.UserID, owner, cfg.Destination.Visibility); err != nil {
			return "", err
		}
	}

	_, err = destination(ctx, s, repo.UserID, func(ctx context.Context) (*gitea.Repository, error) {
		return dest.MigrateRepository(ctx, gitea.MigrateOptions{
			CloneAddr:   cloneAddr,
			RepoName:    repo.Name,
			RepoOwner:   owner,
			Mirror:      true,
			Private:     repo.IsPrivate || cfg.Destination.Visibility == model.VisibilityPrivate,
			Description: repo.Description,
			Wiki:        cfg.Source.MirrorWiki,
		})
	})
	if err != nil {
		if !apperrors.IsConflict(err) {
			return "", fmt.Errorf("migrate: %w", err)
		}
		// Another writer created it between the presence check and the migrate call.
		if _, gerr := dest.GetRepository(ctx, owner, repo.Name); gerr != nil {
			return "", fmt.Errorf("migrate: %w (re-query: %v)", err, gerr)
		}
	}

	if !cfg.Source.MirrorIssues && !cfg.Source.MirrorReleases {
		return "", nil
	}
	src, err := s.clients.Source(ctx, cfg)
	if err != nil {
		return "", err
	}
	return s.mirrorMetadata(ctx, src, dest, repo, cfg, owner)
}

// cloneAddress injects the source token only for private units.
func (s *Service) cloneAddress(ctx context.Context, repo *model.Repository, cfg *model.Configuration) (string, error) {
	if !repo.IsPrivate {
		return repo.CloneURL, nil
	}
	token, err := s.clients.SourceToken(ctx, cfg)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(repo.CloneURL)
	if err != nil {
		return "", fmt.Errorf("parse clone url of %s: %w", repo.FullName, err)
	}
	u.User = url.User(token)
	return u.String(), nil
}

// converge records a unit found at the destination as mirrored.
func (s *Service) converge(ctx context.Context, repo *model.Repository, target string, jobType model.JobType, message string) error {
	now := s.opts.Now()
	if err := s.transition(ctx, repo, store.RepositoryStatusUpdate{
		Status:           model.StatusMirrored,
		MirroredLocation: target,
		LastMirrored:     &now,
	}); err != nil {
		return err
	}
	s.record(ctx, repo, jobType, model.StatusMirrored, message, "")
	return nil
}

// SyncRepository asks the destination to pull the latest state of an existing mirror.
// The recorded location is tried first, then the one the resolver expects now.
func (s *Service) SyncRepository(ctx context.Context, repo *model.Repository, cfg *model.Configuration) (*model.Repository, error) {
	start := s.opts.Now()
	logger := s.logger.With("user_id", repo.UserID, "repo", repo.FullName)

	if !cfg.HasCredentials() {
		return nil, apperrors.ErrMissingCredentials
	}
	if !model.CanTransition(repo.Status, model.StatusSyncing) {
		return nil, &apperrors.InvalidTransitionError{Repo: repo.FullName, From: string(repo.Status), To: string(model.StatusSyncing)}
	}

	dest, err := s.clients.Destination(ctx, cfg)
	if err != nil {
		s.metrics.RecordOperation("sync", "failed", time.Since(start))
		return nil, s.fail(ctx, repo, model.JobTypeSync, fmt.Errorf("destination client: %w", err))
	}

	target, err := s.locate(ctx, dest, repo, cfg)
	if err != nil {
		s.metrics.RecordOperation("sync", "failed", time.Since(start))
		return nil, s.fail(ctx, repo, model.JobTypeSync, err)
	}
	owner, name, _ := splitLocation(target)
	logger = logger.With("destination", target)

	if err := s.transition(ctx, repo, store.RepositoryStatusUpdate{Status: model.StatusSyncing}); err != nil {
		s.metrics.RecordOperation("sync", "failed", time.Since(start))
		return nil, s.fail(ctx, repo, model.JobTypeSync, err)
	}
	s.record(ctx, repo, model.JobTypeSync, model.StatusSyncing, "Started syncing "+repo.FullName, "")
	logger.Info("Syncing repository")

	err = destinationDo(ctx, s, repo.UserID, func(ctx context.Context) error {
		return dest.MirrorSync(ctx, owner, name)
	})
	if err != nil {
		s.metrics.RecordOperation("sync", "failed", time.Since(start))
		return nil, s.fail(ctx, repo, model.JobTypeSync, fmt.Errorf("mirror sync: %w", err))
	}

	now := s.opts.Now()
	if err := s.transition(ctx, repo, store.RepositoryStatusUpdate{
		Status:           model.StatusSynced,
		MirroredLocation: target,
		LastMirrored:     &now,
	}); err != nil {
		s.metrics.RecordOperation("sync", "failed", time.Since(start))
		return nil, s.fail(ctx, repo, model.JobTypeSync, err)
	}
	s.record(ctx, repo, model.JobTypeSync, model.StatusSynced, fmt.Sprintf("Successfully synced %s at %s", repo.FullName, target), "")
	s.metrics.RecordOperation("sync", "success", time.Since(start))
	return repo, nil
}

// locate finds where a unit currently lives on the destination.
func (s *Service) locate(ctx context.Context, dest DestinationClient, repo *model.Repository, cfg *model.Configuration) (string, error) {
	var candidates []string
	if repo.MirroredLocation != "" {
		candidates = append(candidates, repo.MirroredLocation)
	}
	owner, err := ownership.OwnerWithOverrides(ctx, repo, cfg, s.store)
	if err != nil {
		return "", fmt.Errorf("resolve destination owner: %w", err)
	}
	if expected := location(owner, repo.Name); expected != repo.MirroredLocation {
		candidates = append(candidates, expected)
	}

	for _, loc := range candidates {
		o, n, ok := splitLocation(loc)
		if !ok {
			continue
		}
		_, err := destination(ctx, s, repo.UserID, func(ctx context.Context) (*gitea.Repository, error) {
			return dest.GetRepository(ctx, o, n)
		})
		if err == nil {
			return loc, nil
		}
		if !apperrors.IsNotFound(err) {
			return "", fmt.Errorf("check destination %s: %w", loc, err)
		}
	}
	return "", &apperrors.NoDestinationError{Repo: repo.FullName, Locations: candidates}
}
