package scheduler

import (
	"context"
	"fmt"

	apperrors "repo-mirror/internal/errors"
	"repo-mirror/internal/events"
	"repo-mirror/internal/github"
	"repo-mirror/internal/mirror"
	"repo-mirror/internal/model"
	"repo-mirror/internal/ratelimit"
	"repo-mirror/internal/store"
)

// cleanup applies the orphan policy to units of cfg that are no longer upstream.
// Protected units and units in flight are never touched; a dry run only reports.
func (s *Scheduler) cleanup(ctx context.Context, cfg *model.Configuration, upstream map[string]struct{}) error {
	policy := cfg.Cleanup
	if !policy.Enabled {
		return nil
	}
	logger := s.logger.With("config_id", cfg.ID, "user_id", cfg.UserID, "action", policy.OrphanAction, "dry_run", policy.DryRun)

	repos, err := s.store.ListRepositories(ctx, cfg.UserID)
	if err != nil {
		return fmt.Errorf("cleanup: list repositories: %w", err)
	}

	now := s.opts.Now()
	var dest mirror.DestinationClient
	handled := 0
	for i := range repos {
		repo := &repos[i]
		if repo.ConfigID != cfg.ID {
			continue
		}
		if _, ok := upstream[repo.NormalizedFullName()]; ok {
			continue
		}
		if matchesAny(policy.ProtectedRepos, repo.FullName) {
			logger.Info("Keeping protected orphaned repository", "repo", repo.FullName)
			continue
		}
		if policy.RetentionDays > 0 && repo.UpdatedAt.After(now.AddDate(0, 0, -policy.RetentionDays)) {
			continue
		}
		if repo.Status == model.StatusMirroring || repo.Status == model.StatusSyncing {
			continue
		}

		if policy.DryRun {
			logger.Info("Dry run, orphaned repository left in place", "repo", repo.FullName)
			s.events.Emit(ctx, repo.UserID, events.RepositoryPayload{
				Kind:         events.KindRepository,
				RepositoryID: repo.ID,
				FullName:     repo.FullName,
				Status:       repo.Status,
				Message:      fmt.Sprintf("dry run: would %s orphaned repository", policy.OrphanAction),
			})
			continue
		}

		switch policy.OrphanAction {
		case model.OrphanDelete:
			if err := s.store.DeleteRepository(ctx, repo.ID); err != nil {
				return fmt.Errorf("cleanup: delete %s: %w", repo.FullName, err)
			}
		case model.OrphanArchive:
			if !model.CanTransition(repo.Status, model.StatusArchived) {
				continue
			}
			if dest == nil {
				if dest, err = s.mirror.Clients().Destination(ctx, cfg); err != nil {
					return fmt.Errorf("cleanup: %w", err)
				}
			}
			if err := s.archive(ctx, dest, repo); err != nil {
				logger.Error("Failed to archive orphaned repository", "repo", repo.FullName, "error", err)
				continue
			}
			if err := s.setStatus(ctx, repo, model.StatusArchived, "archived: no longer present upstream"); err != nil {
				return err
			}
		default:
			if !model.CanTransition(repo.Status, model.StatusSkipped) {
				continue
			}
			if err := s.setStatus(ctx, repo, model.StatusSkipped, "skipped: no longer present upstream"); err != nil {
				return err
			}
		}
		handled++
		logger.Info("Handled orphaned repository", "repo", repo.FullName)
	}

	policy.LastRun = &now
	if err := s.store.UpdateCleanup(ctx, cfg.ID, policy); err != nil {
		return fmt.Errorf("cleanup: persist last run: %w", err)
	}
	cfg.Cleanup = policy
	logger.Info("Cleanup finished", "handled", handled)
	return nil
}

// archive marks the destination mirror read-only. A mirror that is already gone is fine.
func (s *Scheduler) archive(ctx context.Context, dest mirror.DestinationClient, repo *model.Repository) error {
	if repo.MirroredLocation == "" {
		return nil
	}
	owner, name, err := github.SplitFullName(repo.MirroredLocation)
	if err != nil {
		return err
	}
	_, err = ratelimit.Call(ctx, s.governor, repo.UserID, model.ProviderGitea, sourceRetries, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, dest.ArchiveRepository(ctx, owner, name)
	})
	if apperrors.IsNotFound(err) {
		return nil
	}
	return err
}

func (s *Scheduler) setStatus(ctx context.Context, repo *model.Repository, status model.RepoStatus, message string) error {
	updated, err := s.store.UpdateRepositoryStatus(ctx, store.RepositoryStatusUpdate{
		ID:           repo.ID,
		Status:       status,
		ErrorMessage: message,
	})
	if err != nil {
		return fmt.Errorf("cleanup: update %s: %w", repo.FullName, err)
	}
	s.events.Emit(ctx, repo.UserID, events.RepositoryEvent(updated))
	return nil
}
