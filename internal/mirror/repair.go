package mirror

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	apperrors "repo-mirror/internal/errors"
	"repo-mirror/internal/model"
	"repo-mirror/internal/store"
)

// RepairReport lists what RepairStatus changed.
type RepairReport struct {
	Checked   int
	Converged []string
	Failed    []string
	Unchanged []string
}

// RepairStatus re-checks the destination for units stuck in mirroring, syncing or
// failed. Units found there converge to mirrored (synced when they were syncing);
// in-flight units that are missing are marked failed.
func (s *Service) RepairStatus(ctx context.Context, userID uuid.UUID) (RepairReport, error) {
	var report RepairReport

	repos, err := s.store.ListRepositoriesByStatus(ctx, userID, model.RepairCandidateStatuses)
	if err != nil {
		return report, fmt.Errorf("list repositories to repair: %w", err)
	}

	configs := make(map[uuid.UUID]*model.Configuration)
	dests := make(map[uuid.UUID]DestinationClient)
	for i := range repos {
		repo := &repos[i]
		report.Checked++

		cfg, ok := configs[repo.ConfigID]
		if !ok {
			cfg, err = s.store.GetConfig(ctx, repo.ConfigID)
			if err != nil {
				return report, fmt.Errorf("load configuration for %s: %w", repo.FullName, err)
			}
			configs[repo.ConfigID] = cfg
		}
		dest, ok := dests[repo.ConfigID]
		if !ok {
			dest, err = s.clients.Destination(ctx, cfg)
			if err != nil {
				return report, err
			}
			dests[repo.ConfigID] = dest
		}

		loc, err := s.locate(ctx, dest, repo, cfg)
		var nd *apperrors.NoDestinationError
		switch {
		case err == nil:
			if err := s.repairFound(ctx, repo, loc); err != nil {
				return report, err
			}
			report.Converged = append(report.Converged, repo.FullName)
		case errors.As(err, &nd):
			if repo.Status == model.StatusFailed {
				report.Unchanged = append(report.Unchanged, repo.FullName)
				continue
			}
			if err := s.transition(ctx, repo, store.RepositoryStatusUpdate{
				Status:        model.StatusFailed,
				ErrorMessage:  nd.Error(),
				ClearLocation: true,
			}); err != nil {
				return report, err
			}
			s.record(ctx, repo, model.JobTypeRetry, model.StatusFailed, "Repair: repository missing at destination", nd.Error())
			report.Failed = append(report.Failed, repo.FullName)
		default:
			s.logger.Warn("Skipping repair, destination check failed", "repo", repo.FullName, "error", err)
			report.Unchanged = append(report.Unchanged, repo.FullName)
		}
	}

	s.logger.Info("Status repair finished", "user_id", userID, "checked", report.Checked,
		"converged", len(report.Converged), "failed", len(report.Failed))
	return report, nil
}

func (s *Service) repairFound(ctx context.Context, repo *model.Repository, loc string) error {
	to := model.StatusMirrored
	if repo.Status == model.StatusSyncing {
		to = model.StatusSynced
	}
	now := s.opts.Now()
	if err := s.transition(ctx, repo, store.RepositoryStatusUpdate{
		Status:           to,
		MirroredLocation: loc,
		LastMirrored:     &now,
	}); err != nil {
		return err
	}
	s.record(ctx, repo, model.JobTypeRetry, to, fmt.Sprintf("Repair: found %s at %s", repo.FullName, loc), "")
	return nil
}
