package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repo-mirror/internal/model"
)

// runStoreContract checks behavior every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("status update keeps recorded mirror location", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		cfg := createConfig(ctx, t, s)
		repo := insertRepository(ctx, t, s, cfg, "me/alpha")

		mirroredAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		_, err := s.UpdateRepositoryStatus(ctx, RepositoryStatusUpdate{
			ID: repo.ID, Status: model.StatusMirrored, MirroredLocation: "me/alpha", LastMirrored: &mirroredAt,
		})
		require.NoError(t, err)

		_, err = s.UpdateRepositoryStatus(ctx, RepositoryStatusUpdate{ID: repo.ID, Status: model.StatusSyncing})
		require.NoError(t, err)
		got, err := s.UpdateRepositoryStatus(ctx, RepositoryStatusUpdate{
			ID: repo.ID, Status: model.StatusFailed, ErrorMessage: "mirror-sync: 500",
		})
		require.NoError(t, err)

		assert.Equal(t, model.StatusFailed, got.Status)
		assert.Equal(t, "mirror-sync: 500", got.ErrorMessage)
		assert.Equal(t, "me/alpha", got.MirroredLocation)
		require.NotNil(t, got.LastMirrored)
		assert.True(t, mirroredAt.Equal(*got.LastMirrored), "last mirrored %s", got.LastMirrored)

		stored, err := s.GetRepository(ctx, repo.ID)
		require.NoError(t, err)
		assert.Equal(t, "me/alpha", stored.MirroredLocation)

		later := mirroredAt.Add(time.Hour)
		got, err = s.UpdateRepositoryStatus(ctx, RepositoryStatusUpdate{
			ID: repo.ID, Status: model.StatusMirrored, MirroredLocation: "acme/alpha", LastMirrored: &later,
		})
		require.NoError(t, err)
		assert.Equal(t, "acme/alpha", got.MirroredLocation)
		assert.True(t, later.Equal(*got.LastMirrored))
		assert.Empty(t, got.ErrorMessage)
	})

	t.Run("status update can forget the location", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		cfg := createConfig(ctx, t, s)
		repo := insertRepository(ctx, t, s, cfg, "me/beta")

		mirroredAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		_, err := s.UpdateRepositoryStatus(ctx, RepositoryStatusUpdate{
			ID: repo.ID, Status: model.StatusMirrored, MirroredLocation: "me/beta", LastMirrored: &mirroredAt,
		})
		require.NoError(t, err)

		got, err := s.UpdateRepositoryStatus(ctx, RepositoryStatusUpdate{
			ID: repo.ID, Status: model.StatusFailed, ErrorMessage: "gone", ClearLocation: true,
		})
		require.NoError(t, err)
		assert.Empty(t, got.MirroredLocation)
		require.NotNil(t, got.LastMirrored)
		assert.True(t, mirroredAt.Equal(*got.LastMirrored))
	})

	t.Run("organization status update keeps last mirrored", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		cfg := createConfig(ctx, t, s)
		_, err := s.InsertOrganization(ctx, &model.Organization{UserID: cfg.UserID, ConfigID: cfg.ID, Name: "acme", IsIncluded: true})
		require.NoError(t, err)
		org, err := s.GetOrganizationByName(ctx, cfg.UserID, "acme")
		require.NoError(t, err)

		mirroredAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, s.UpdateOrganizationStatus(ctx, OrganizationStatusUpdate{
			ID: org.ID, Status: model.StatusMirrored, LastMirrored: &mirroredAt, RepositoryCount: 4,
		}))
		require.NoError(t, s.UpdateOrganizationStatus(ctx, OrganizationStatusUpdate{
			ID: org.ID, Status: model.StatusFailed, ErrorMessage: "boom", RepositoryCount: 4,
		}))

		got, err := s.GetOrganization(ctx, org.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusFailed, got.Status)
		require.NotNil(t, got.LastMirrored)
		assert.True(t, mirroredAt.Equal(*got.LastMirrored))
	})

	t.Run("rate limit without a known reset is stored", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		userID := uuid.New()

		require.NoError(t, s.UpsertRateLimit(ctx, model.RateLimitState{
			UserID: userID, Provider: model.ProviderGitHub, Limit: 5000, Remaining: 0, Status: model.RateLimitExceeded,
		}))

		got, err := s.GetRateLimit(ctx, userID, model.ProviderGitHub)
		require.NoError(t, err)
		assert.True(t, got.Reset.IsZero())
		assert.Equal(t, model.RateLimitExceeded, got.Status)
	})
}

func createConfig(ctx context.Context, t *testing.T, s Store) *model.Configuration {
	t.Helper()
	cfg, err := s.CreateConfig(ctx, &model.Configuration{UserID: uuid.New(), Name: "contract", IsActive: true})
	require.NoError(t, err)
	return cfg
}

func insertRepository(ctx context.Context, t *testing.T, s Store, cfg *model.Configuration, fullName string) model.Repository {
	t.Helper()
	repo := model.Repository{
		ID: uuid.New(), UserID: cfg.UserID, ConfigID: cfg.ID, Name: fullName, FullName: fullName,
		CloneURL: "https://github.com/" + fullName + ".git",
	}
	n, err := s.InsertRepositories(ctx, []model.Repository{repo})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	return repo
}

func TestMemory_Contract(t *testing.T) {
	runStoreContract(t, func(*testing.T) Store { return NewMemory() })
}
