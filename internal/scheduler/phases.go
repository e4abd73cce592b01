package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"repo-mirror/internal/model"
)

// autoMirror mirrors organizations that have never been mirrored as one batch each,
// then every remaining unit of cfg in a mirror candidate status. It returns the ids
// of the units it handled so the sync phase of the same cycle leaves them alone.
func (s *Scheduler) autoMirror(ctx context.Context, cfg *model.Configuration) (map[uuid.UUID]struct{}, error) {
	processed := make(map[uuid.UUID]struct{})
	logger := s.logger.With("config_id", cfg.ID, "user_id", cfg.UserID)
	var errs []error

	orgs, err := s.store.ListOrganizations(ctx, cfg.UserID)
	if err != nil {
		return processed, fmt.Errorf("auto-mirror: list organizations: %w", err)
	}
	for i := range orgs {
		org := &orgs[i]
		if org.ConfigID != cfg.ID || !org.IsIncluded {
			continue
		}
		if org.Status != model.StatusImported && org.Status != model.StatusPending && org.Status != model.StatusFailed {
			continue
		}
		units, err := s.store.ListRepositoriesByOrganization(ctx, cfg.UserID, org.Name)
		if err != nil {
			errs = append(errs, fmt.Errorf("auto-mirror: list repositories of %s: %w", org.Name, err))
			continue
		}
		for _, u := range units {
			processed[u.ID] = struct{}{}
		}
		if _, err := s.mirror.MirrorOrganization(ctx, org, cfg); err != nil {
			errs = append(errs, fmt.Errorf("auto-mirror: %w", err))
		}
	}

	candidates, err := s.store.ListRepositoriesByStatus(ctx, cfg.UserID, model.MirrorCandidateStatuses)
	if err != nil {
		return processed, errors.Join(append(errs, fmt.Errorf("auto-mirror: list candidates: %w", err))...)
	}
	var batch []model.Repository
	for _, r := range candidates {
		if r.ConfigID != cfg.ID {
			continue
		}
		if _, done := processed[r.ID]; done {
			continue
		}
		// A failed unit that already reached the destination is retried by the sync
		// phase at its recorded location.
		if r.Status == model.StatusFailed && r.MirroredLocation != "" {
			continue
		}
		batch = append(batch, r)
		processed[r.ID] = struct{}{}
	}
	if len(batch) == 0 {
		return processed, errors.Join(errs...)
	}

	logger.Info("Mirroring repositories", "count", len(batch))
	result, err := s.mirror.MirrorRepositories(ctx, cfg, model.JobTypeMirror, batch)
	if err != nil {
		errs = append(errs, fmt.Errorf("auto-mirror: %w", err))
	} else if result.Failed > 0 {
		logger.Warn("Some repositories failed to mirror", "failed", result.Failed, "total", result.Total)
	}
	return processed, errors.Join(errs...)
}

// syncPhase re-syncs units in a sync candidate status, honoring the recent-mirror
// and upstream-update filters. Units in skip were handled earlier in the cycle.
func (s *Scheduler) syncPhase(ctx context.Context, cfg *model.Configuration, skip map[uuid.UUID]struct{}) error {
	candidates, err := s.store.ListRepositoriesByStatus(ctx, cfg.UserID, model.SyncCandidateStatuses)
	if err != nil {
		return fmt.Errorf("sync: list candidates: %w", err)
	}

	var batch []model.Repository
	for _, r := range candidates {
		if r.ConfigID != cfg.ID {
			continue
		}
		if _, done := skip[r.ID]; done {
			continue
		}
		if s.wantsSync(cfg.Schedule, r) {
			batch = append(batch, r)
		}
	}
	if len(batch) == 0 {
		return nil
	}

	s.logger.Info("Syncing repositories", "config_id", cfg.ID, "user_id", cfg.UserID, "count", len(batch))
	result, err := s.mirror.MirrorRepositories(ctx, cfg, model.JobTypeSync, batch)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if result.Failed > 0 {
		s.logger.Warn("Some repositories failed to sync", "config_id", cfg.ID, "failed", result.Failed, "total", result.Total)
	}
	return nil
}

func (s *Scheduler) wantsSync(sch model.ScheduleConfig, r model.Repository) bool {
	// A unit that failed before ever reaching the destination has nothing to sync.
	if r.Status == model.StatusFailed && r.MirroredLocation == "" {
		return false
	}
	if sch.SkipRecentlyMirrored && r.LastMirrored != nil {
		threshold := sch.RecentThreshold
		if threshold <= 0 {
			threshold = DefaultRecentThreshold
		}
		if s.opts.Now().Sub(*r.LastMirrored) < threshold {
			return false
		}
	}
	if sch.OnlyMirrorUpdated && r.SourceUpdatedAt != nil && r.LastMirrored != nil {
		if !r.SourceUpdatedAt.After(*r.LastMirrored) {
			return false
		}
	}
	return true
}
