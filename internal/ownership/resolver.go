// Package ownership decides which destination account or organization a
// repository is mirrored into.
package ownership

import (
	"context"
	"strings"

	"github.com/google/uuid"

	apperrors "repo-mirror/internal/errors"
	"repo-mirror/internal/model"
)

// OrganizationLookup finds a tracked source organization by name.
type OrganizationLookup interface {
	GetOrganizationByName(ctx context.Context, userID uuid.UUID, name string) (*model.Organization, error)
}

// Owner resolves the destination owner without consulting the store. Priority:
// starred placement, the repository's own override, then the mirror strategy.
func Owner(repo *model.Repository, cfg *model.Configuration) string {
	if owner, ok := starredOwner(repo, cfg); ok {
		return owner
	}
	if dest := trimmed(repo.DestinationOrg); dest != "" {
		return dest
	}
	return strategyOwner(repo, cfg)
}

// OwnerWithOverrides is Owner plus the per-organization destination override kept
// in the store. Lookup failures other than not-found are returned.
func OwnerWithOverrides(ctx context.Context, repo *model.Repository, cfg *model.Configuration, lookup OrganizationLookup) (string, error) {
	if _, ok := starredOwner(repo, cfg); ok {
		return Owner(repo, cfg), nil
	}
	if trimmed(repo.DestinationOrg) != "" {
		return Owner(repo, cfg), nil
	}

	if org := repo.OrganizationName(); org != "" && lookup != nil {
		tracked, err := lookup.GetOrganizationByName(ctx, repo.UserID, org)
		switch {
		case err == nil:
			if dest := trimmed(tracked.DestinationOrg); dest != "" {
				return dest, nil
			}
		case !apperrors.IsNotFound(err):
			return "", err
		}
	}
	return Owner(repo, cfg), nil
}

// OrganizationTarget resolves where a whole source organization is mirrored.
// It reports false for flat-user, where each repository resolves its own owner.
func OrganizationTarget(org *model.Organization, cfg *model.Configuration) (string, bool) {
	if dest := trimmed(org.DestinationOrg); dest != "" {
		return dest, true
	}
	switch cfg.Destination.Strategy {
	case model.StrategyFlatUser:
		return "", false
	case model.StrategySingleOrg, model.StrategyMixed:
		if cfg.Destination.Organization != "" {
			return cfg.Destination.Organization, true
		}
		return cfg.Destination.DefaultOwner, true
	default:
		return org.Name, true
	}
}

func starredOwner(repo *model.Repository, cfg *model.Configuration) (string, bool) {
	if !repo.IsStarred {
		return "", false
	}
	if cfg.Source.StarredMode == model.StarredPreserveOwner {
		if org := repo.OrganizationName(); org != "" {
			return org, true
		}
		return repo.Owner, true
	}
	if cfg.Source.StarredOrg != "" {
		return cfg.Source.StarredOrg, true
	}
	return model.DefaultStarredOrg, true
}

func strategyOwner(repo *model.Repository, cfg *model.Configuration) string {
	dst := cfg.Destination
	org := repo.OrganizationName()

	switch dst.Strategy {
	case model.StrategyFlatUser:
		return dst.DefaultOwner
	case model.StrategySingleOrg:
		if dst.Organization != "" {
			return dst.Organization
		}
		return dst.DefaultOwner
	case model.StrategyMixed:
		if org != "" {
			return org
		}
		if dst.Organization != "" {
			return dst.Organization
		}
		return dst.DefaultOwner
	default:
		if org != "" {
			return org
		}
		return dst.DefaultOwner
	}
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
