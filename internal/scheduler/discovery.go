package scheduler

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"repo-mirror/internal/mirror"
	"repo-mirror/internal/model"
	"repo-mirror/internal/ratelimit"
)

const sourceRetries = 3

// discover fetches the source units of cfg, tracks new ones and returns the
// normalized full names of everything present upstream, filtered or not.
func (s *Scheduler) discover(ctx context.Context, cfg *model.Configuration) (map[string]struct{}, error) {
	logger := s.logger.With("config_id", cfg.ID, "user_id", cfg.UserID)
	userID := cfg.UserID

	src, err := s.mirror.Clients().Source(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	state, err := s.governor.CheckQuota(ctx, userID, model.ProviderGitHub, src.GetRateLimit)
	if err != nil {
		return nil, fmt.Errorf("discovery: check source quota: %w", err)
	}
	logger.Debug("Source quota checked", "remaining", state.Remaining, "limit", state.Limit, "status", state.Status)
	if err := s.governor.Pace(ctx, userID, model.ProviderGitHub); err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	found, err := s.fetchSource(ctx, src, cfg)
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	upstream := make(map[string]struct{}, len(found))
	var kept []model.SourceRepository
	for _, r := range found {
		key := model.NormalizeName(r.FullName)
		if _, dup := upstream[key]; dup {
			continue
		}
		upstream[key] = struct{}{}
		if keep(cfg.Filter, r) {
			kept = append(kept, r)
		}
	}

	existing, err := s.store.ListRepositories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("discovery: list known repositories: %w", err)
	}
	known := make(map[string]model.Repository, len(existing))
	for _, r := range existing {
		known[r.NormalizedFullName()] = r
	}

	var fresh []model.Repository
	for _, r := range kept {
		if have, ok := known[model.NormalizeName(r.FullName)]; ok {
			s.touch(ctx, have, r)
			continue
		}
		fresh = append(fresh, newRepository(cfg, r))
	}

	inserted := 0
	if len(fresh) > 0 {
		inserted, err = s.store.InsertRepositories(ctx, fresh)
		if err != nil {
			return nil, fmt.Errorf("discovery: insert repositories: %w", err)
		}
	}
	logger.Info("Discovery finished", "upstream", len(upstream), "matched_filters", len(kept), "inserted", inserted)
	return upstream, nil
}

// fetchSource lists owned, starred and included organization repositories.
func (s *Scheduler) fetchSource(ctx context.Context, src mirror.SourceClient, cfg *model.Configuration) ([]model.SourceRepository, error) {
	userID := cfg.UserID
	call := func(fn func(context.Context) ([]model.SourceRepository, error)) ([]model.SourceRepository, error) {
		return ratelimit.Call(ctx, s.governor, userID, model.ProviderGitHub, sourceRetries, fn)
	}

	repos, err := call(func(ctx context.Context) ([]model.SourceRepository, error) {
		return src.ListRepositories(ctx, cfg.Filter.SkipForks)
	})
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}

	if cfg.Filter.MirrorStarred {
		starred, err := call(src.ListStarred)
		if err != nil {
			return nil, fmt.Errorf("list starred repositories: %w", err)
		}
		for i := range starred {
			starred[i].IsStarred = true
		}
		repos = append(repos, starred...)
	}

	if len(cfg.Filter.IncludeOrganizations) == 0 {
		return repos, nil
	}
	orgs, err := ratelimit.Call(ctx, s.governor, userID, model.ProviderGitHub, sourceRetries, src.ListOrganizations)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	for _, org := range orgs {
		if !included(cfg.Filter.IncludeOrganizations, org.Name) {
			continue
		}
		if _, err := s.store.InsertOrganization(ctx, &model.Organization{
			UserID:         userID,
			ConfigID:       cfg.ID,
			Name:           org.Name,
			MembershipRole: org.Role,
			IsIncluded:     true,
		}); err != nil {
			return nil, fmt.Errorf("track organization %s: %w", org.Name, err)
		}
		orgRepos, err := call(func(ctx context.Context) ([]model.SourceRepository, error) {
			return src.ListOrganizationRepositories(ctx, org.Name)
		})
		if err != nil {
			return nil, fmt.Errorf("list repositories of %s: %w", org.Name, err)
		}
		for i := range orgRepos {
			orgRepos[i].Organization = org.Name
		}
		repos = append(repos, orgRepos...)
	}
	return repos, nil
}

// touch records a newer upstream push on a known unit.
func (s *Scheduler) touch(ctx context.Context, have model.Repository, r model.SourceRepository) {
	if r.PushedAt == nil {
		return
	}
	if have.SourceUpdatedAt != nil && !r.PushedAt.After(*have.SourceUpdatedAt) {
		return
	}
	if err := s.store.UpdateSourceUpdatedAt(ctx, have.ID, *r.PushedAt); err != nil {
		s.logger.Warn("Failed to record upstream push", "repo", have.FullName, "error", err)
	}
}

func newRepository(cfg *model.Configuration, r model.SourceRepository) model.Repository {
	repo := model.Repository{
		ID:              uuid.New(),
		UserID:          cfg.UserID,
		ConfigID:        cfg.ID,
		Name:            r.Name,
		FullName:        r.FullName,
		CloneURL:        r.CloneURL,
		HTMLURL:         r.HTMLURL,
		Owner:           r.Owner,
		Description:     r.Description,
		IsPrivate:       r.IsPrivate,
		IsFork:          r.IsFork,
		IsArchived:      r.IsArchived,
		IsStarred:       r.IsStarred,
		IsDisabled:      r.IsDisabled,
		Status:          model.StatusImported,
		SourceUpdatedAt: r.PushedAt,
	}
	if r.Organization != "" {
		org := r.Organization
		repo.Organization = &org
	}
	return repo
}

// keep applies the configuration's filters to one source repository.
func keep(f model.FilterConfig, r model.SourceRepository) bool {
	switch {
	case r.IsDisabled:
		return false
	case f.SkipForks && r.IsFork:
		return false
	case f.SkipArchived && r.IsArchived:
		return false
	case !f.IncludePrivate && r.IsPrivate:
		return false
	}
	if len(f.IncludePatterns) > 0 && !matchesAny(f.IncludePatterns, r.FullName) {
		return false
	}
	return !matchesAny(f.ExcludePatterns, r.FullName)
}

// matchesAny reports whether a glob matches the full name or the bare name, ignoring case.
func matchesAny(patterns []string, fullName string) bool {
	full := strings.ToLower(fullName)
	_, name, _ := strings.Cut(full, "/")
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if ok, _ := path.Match(p, full); ok {
			return true
		}
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

func included(names []string, org string) bool {
	for _, n := range names {
		if n == "*" || model.NormalizeName(n) == model.NormalizeName(org) {
			return true
		}
	}
	return false
}
