package mirror_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "repo-mirror/internal/errors"
	"repo-mirror/internal/events"
	"repo-mirror/internal/mirror"
	"repo-mirror/internal/mirror/mirrortest"
	"repo-mirror/internal/model"
	"repo-mirror/internal/ratelimit"
	"repo-mirror/internal/store"
)

func TestMirrorRepository_MigratesAndRecordsJobs(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.StrategyPreserve)
	repos := h.addRepos(t,
		model.Repository{Name: "widget", FullName: "me/widget", Owner: "me", Description: "tool"},
		model.Repository{Name: "secret", FullName: "me/secret", Owner: "me", IsPrivate: true},
	)

	for i := range repos {
		got, err := h.svc.MirrorRepository(ctx, &repos[i], h.cfg)
		require.NoError(t, err)
		assert.Equal(t, model.StatusMirrored, got.Status)
		assert.NotNil(t, got.LastMirrored)
		assert.Empty(t, got.ErrorMessage)
	}

	assert.Equal(t, 2, h.dest.MigrateCalls)
	assert.Equal(t, "me/widget", h.repo(t, repos[0].ID).MirroredLocation)

	public := h.dest.Repos[mirrortest.RepoKey("me", "widget")]
	assert.Equal(t, "https://github.com/me/widget.git", public.CloneAddr)
	assert.True(t, public.Mirror)
	assert.False(t, public.Private)

	private := h.dest.Repos[mirrortest.RepoKey("me", "secret")]
	assert.Equal(t, "https://ghp_secret@github.com/me/secret.git", private.CloneAddr)
	assert.True(t, private.Private)

	assert.Len(t, h.unitJobs(t, model.StatusMirroring), 2, "one started record per unit")
	success := h.unitJobs(t, model.StatusMirrored)
	require.Len(t, success, 2)
	for _, j := range success {
		assert.Contains(t, j.Message, "Successfully mirrored")
		assert.NotNil(t, j.CompletedAt)
		assert.False(t, j.InProgress)
	}
	assert.Equal(t, 0, h.dest.CreateOrgCalls, "default owner needs no organization")
}

func TestMirrorRepository_IdempotentConvergence(t *testing.T) {
	ctx := context.Background()

	t.Run("already present at destination", func(t *testing.T) {
		h := newHarness(t, model.StrategyPreserve)
		h.dest.AddRepo("me", "widget")
		repo := h.addRepos(t, model.Repository{Name: "widget", FullName: "me/widget", Owner: "me"})[0]

		for range 2 {
			got, err := h.svc.MirrorRepository(ctx, &repo, h.cfg)
			require.NoError(t, err)
			assert.Equal(t, model.StatusMirrored, got.Status)
		}

		assert.Equal(t, 0, h.dest.MigrateCalls)
		assert.Len(t, h.unitJobs(t, model.StatusMirrored), 2)
		assert.Empty(t, h.unitJobs(t, model.StatusMirroring), "convergence never enters mirroring")
	})

	t.Run("second call after a real migrate", func(t *testing.T) {
		h := newHarness(t, model.StrategyPreserve)
		repo := h.addRepos(t, model.Repository{Name: "widget", FullName: "me/widget", Owner: "me"})[0]

		for range 2 {
			got, err := h.svc.MirrorRepository(ctx, &repo, h.cfg)
			require.NoError(t, err)
			assert.Equal(t, model.StatusMirrored, got.Status)
		}

		assert.Equal(t, 1, h.dest.MigrateCalls)
	})
}

func TestMirrorRepository_CreatesDestinationOrganization(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.StrategySingleOrg)
	h.cfg.Destination.Visibility = model.VisibilityPrivate
	repos := h.addRepos(t,
		model.Repository{Name: "a", FullName: "me/a", Owner: "me"},
		model.Repository{Name: "b", FullName: "me/b", Owner: "me"},
	)

	for i := range repos {
		_, err := h.svc.MirrorRepository(ctx, &repos[i], h.cfg)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, h.dest.CreateOrgCalls)
	assert.True(t, h.dest.Orgs["mirrors"])
	assert.Equal(t, "mirrors/a", h.repo(t, repos[0].ID).MirroredLocation)
	assert.True(t, h.dest.Repos[mirrortest.RepoKey("mirrors", "b")].Private, "configured visibility applies")
}

func TestMirrorRepository_OrganizationRaceIsResolved(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.StrategySingleOrg)
	h.dest.OrgRace = true
	repo := h.addRepos(t, model.Repository{Name: "a", FullName: "me/a", Owner: "me"})[0]

	got, err := h.svc.MirrorRepository(ctx, &repo, h.cfg)

	require.NoError(t, err)
	assert.Equal(t, model.StatusMirrored, got.Status)
	assert.Equal(t, 1, h.dest.MigrateCalls)
}

func TestMirrorRepository_FailureIsPersisted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.StrategyPreserve)
	h.dest.FailMigrate["widget"] = &apperrors.APIError{Method: "POST", URL: "/repos/migrate", StatusCode: 403, Message: "forbidden"}
	repo := h.addRepos(t, model.Repository{Name: "widget", FullName: "me/widget", Owner: "me"})[0]

	_, err := h.svc.MirrorRepository(ctx, &repo, h.cfg)

	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	stored := h.repo(t, repo.ID)
	assert.Equal(t, model.StatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "forbidden")

	failed := h.unitJobs(t, model.StatusFailed)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Details, "forbidden")
	assert.Equal(t, model.JobTypeMirror, failed[0].JobType)
}

func TestMirrorRepository_DestinationClientFailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.StrategyPreserve)
	h.clients.DestErr = errors.New("secret reveal failed")
	repo := h.addRepos(t, model.Repository{Name: "widget", FullName: "me/widget", Owner: "me"})[0]

	_, err := h.svc.MirrorRepository(ctx, &repo, h.cfg)

	require.Error(t, err)
	stored := h.repo(t, repo.ID)
	assert.Equal(t, model.StatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "secret reveal failed")
	require.Len(t, h.unitJobs(t, model.StatusFailed), 1)
	assert.Equal(t, 0, h.dest.MigrateCalls)
}

// rejectingStore fails status writes to one status.
type rejectingStore struct {
	*store.Memory
	reject model.RepoStatus
}

func (r *rejectingStore) UpdateRepositoryStatus(ctx context.Context, upd store.RepositoryStatusUpdate) (*model.Repository, error) {
	if upd.Status == r.reject {
		return nil, errors.New("connection reset")
	}
	return r.Memory.UpdateRepositoryStatus(ctx, upd)
}

func TestMirrorRepository_StatusWriteFailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.StrategyPreserve)
	st := &rejectingStore{Memory: h.store, reject: model.StatusMirrored}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := events.NewPublisher(st, logger)
	governor := ratelimit.NewGovernor(st, publisher, nil, logger, ratelimit.Options{Sleep: noSleep})
	svc := mirror.NewService(st, h.clients, governor, publisher, nil, logger, mirror.Options{Sleep: noSleep})
	repo := h.addRepos(t, model.Repository{Name: "widget", FullName: "me/widget", Owner: "me"})[0]

	_, err := svc.MirrorRepository(ctx, &repo, h.cfg)

	require.ErrorContains(t, err, "connection reset")
	stored := h.repo(t, repo.ID)
	assert.Equal(t, model.StatusFailed, stored.Status, "the unit is not left mirroring")
	assert.Contains(t, stored.ErrorMessage, "connection reset")
	require.Len(t, h.unitJobs(t, model.StatusFailed), 1)
}

func TestMirrorRepository_RejectsManualStates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.StrategyPreserve)
	repo := h.addRepos(t, model.Repository{Name: "widget", FullName: "me/widget", Owner: "me", Status: model.StatusSkipped})[0]

	_, err := h.svc.MirrorRepository(ctx, &repo, h.cfg)

	var it *apperrors.InvalidTransitionError
	require.ErrorAs(t, err, &it)
	assert.Equal(t, model.StatusSkipped, h.repo(t, repo.ID).Status)
	assert.Equal(t, 0, h.dest.MigrateCalls)
	assert.Empty(t, h.jobs(t))
}

func TestMirrorRepository_MissingCredentials(t *testing.T) {
	h := newHarness(t, model.StrategyPreserve)
	h.cfg.Destination.Token = ""
	repo := h.addRepos(t, model.Repository{Name: "widget", FullName: "me/widget", Owner: "me"})[0]

	_, err := h.svc.MirrorRepository(context.Background(), &repo, h.cfg)

	assert.ErrorIs(t, err, apperrors.ErrMissingCredentials)
	assert.Equal(t, model.StatusImported, h.repo(t, repo.ID).Status)
}

func TestSyncRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("syncs at the recorded location first", func(t *testing.T) {
		h := newHarness(t, model.StrategyPreserve)
		h.dest.AddRepo("old-owner", "widget")
		h.dest.AddRepo("me", "widget")
		repo := h.addRepos(t, model.Repository{Name: "widget", FullName: "me/widget", Owner: "me"})[0]
		_, err := h.store.UpdateRepositoryStatus(ctx, store.RepositoryStatusUpdate{
			ID: repo.ID, Status: model.StatusMirrored, MirroredLocation: "old-owner/widget",
		})
		require.NoError(t, err)
		repo = h.repo(t, repo.ID)

		got, err := h.svc.SyncRepository(ctx, &repo, h.cfg)

		require.NoError(t, err)
		assert.Equal(t, model.StatusSynced, got.Status)
		assert.Equal(t, []string{"old-owner/widget"}, h.dest.SyncCalls)
		assert.Len(t, h.unitJobs(t, model.StatusSynced), 1)
	})

	t.Run("falls back to the expected location", func(t *testing.T) {
		h := newHarness(t, model.StrategyPreserve)
		h.dest.AddRepo("me", "widget")
		repo := h.addRepos(t, model.Repository{Name: "widget", FullName: "me/widget", Owner: "me", Status: model.StatusMirrored})[0]

		got, err := h.svc.SyncRepository(ctx, &repo, h.cfg)

		require.NoError(t, err)
		assert.Equal(t, "me/widget", got.MirroredLocation)
		assert.Equal(t, []string{"me/widget"}, h.dest.SyncCalls)
	})

	t.Run("fails fast without a destination", func(t *testing.T) {
		h := newHarness(t, model.StrategyPreserve)
		repo := h.addRepos(t, model.Repository{Name: "widget", FullName: "me/widget", Owner: "me", Status: model.StatusMirrored})[0]

		_, err := h.svc.SyncRepository(ctx, &repo, h.cfg)

		var nd *apperrors.NoDestinationError
		require.ErrorAs(t, err, &nd)
		assert.Equal(t, []string{"me/widget"}, nd.Locations)
		assert.Equal(t, model.StatusFailed, h.repo(t, repo.ID).Status)
		assert.Empty(t, h.dest.SyncCalls)
		assert.Len(t, h.unitJobs(t, model.StatusFailed), 1)
	})

	t.Run("failure keeps the recorded location", func(t *testing.T) {
		h := newHarness(t, model.StrategyPreserve)
		h.dest.AddRepo("old-owner", "widget")
		h.dest.FailSync["widget"] = &apperrors.APIError{Method: "POST", URL: "/repos/old-owner/widget/mirror-sync", StatusCode: 500, Message: "boom"}
		repo := h.addRepos(t, model.Repository{Name: "widget", FullName: "me/widget", Owner: "me"})[0]
		mirroredAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		_, err := h.store.UpdateRepositoryStatus(ctx, store.RepositoryStatusUpdate{
			ID: repo.ID, Status: model.StatusMirrored, MirroredLocation: "old-owner/widget", LastMirrored: &mirroredAt,
		})
		require.NoError(t, err)
		repo = h.repo(t, repo.ID)

		_, err = h.svc.SyncRepository(ctx, &repo, h.cfg)

		require.Error(t, err)
		stored := h.repo(t, repo.ID)
		assert.Equal(t, model.StatusFailed, stored.Status)
		assert.Equal(t, "old-owner/widget", stored.MirroredLocation)
		require.NotNil(t, stored.LastMirrored)
		assert.True(t, mirroredAt.Equal(*stored.LastMirrored))
	})

	t.Run("missing destination forgets the recorded location", func(t *testing.T) {
		h := newHarness(t, model.StrategyPreserve)
		repo := h.addRepos(t, model.Repository{Name: "widget", FullName: "me/widget", Owner: "me"})[0]
		_, err := h.store.UpdateRepositoryStatus(ctx, store.RepositoryStatusUpdate{
			ID: repo.ID, Status: model.StatusMirrored, MirroredLocation: "gone/widget",
		})
		require.NoError(t, err)
		repo = h.repo(t, repo.ID)

		_, err = h.svc.SyncRepository(ctx, &repo, h.cfg)

		var nd *apperrors.NoDestinationError
		require.ErrorAs(t, err, &nd)
		stored := h.repo(t, repo.ID)
		assert.Equal(t, model.StatusFailed, stored.Status)
		assert.Empty(t, stored.MirroredLocation, "the unit is mirrored again instead of synced")
	})

	t.Run("destination client failure is recorded", func(t *testing.T) {
		h := newHarness(t, model.StrategyPreserve)
		h.clients.DestErr = errors.New("secret reveal failed")
		repo := h.addRepos(t, model.Repository{Name: "widget", FullName: "me/widget", Owner: "me", Status: model.StatusMirrored})[0]

		_, err := h.svc.SyncRepository(ctx, &repo, h.cfg)

		require.Error(t, err)
		assert.Equal(t, model.StatusFailed, h.repo(t, repo.ID).Status)
		require.Len(t, h.unitJobs(t, model.StatusFailed), 1)
		assert.Equal(t, model.JobTypeSync, h.unitJobs(t, model.StatusFailed)[0].JobType)
	})

	t.Run("imported units cannot be synced", func(t *testing.T) {
		h := newHarness(t, model.StrategyPreserve)
		h.dest.AddRepo("me", "widget")
		repo := h.addRepos(t, model.Repository{Name: "widget", FullName: "me/widget", Owner: "me"})[0]

		_, err := h.svc.SyncRepository(ctx, &repo, h.cfg)

		var it *apperrors.InvalidTransitionError
		require.ErrorAs(t, err, &it)
		assert.Equal(t, model.StatusImported, h.repo(t, repo.ID).Status)
	})
}

func TestOperations_StatusTransitionsAreLegal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.StrategyPreserve)
	h.dest.FailMigrate["flaky"] = errors.New("connection reset")
	repos := h.addRepos(t,
		model.Repository{Name: "widget", FullName: "me/widget", Owner: "me"},
		model.Repository{Name: "flaky", FullName: "me/flaky", Owner: "me"},
	)

	widget := repos[0]
	_, err := h.svc.MirrorRepository(ctx, &widget, h.cfg)
	require.NoError(t, err)
	_, err = h.svc.SyncRepository(ctx, &widget, h.cfg)
	require.NoError(t, err)
	_, err = h.svc.MirrorRepository(ctx, &widget, h.cfg)
	require.NoError(t, err)

	flaky := repos[1]
	_, err = h.svc.MirrorRepository(ctx, &flaky, h.cfg)
	require.Error(t, err)
	delete(h.dest.FailMigrate, "flaky")
	_, err = h.svc.MirrorRepository(ctx, &flaky, h.cfg)
	require.NoError(t, err)

	for _, r := range repos {
		prev := model.StatusImported
		trail := h.statusTrail(t, r.ID)
		require.NotEmpty(t, trail)
		for _, next := range trail {
			assert.True(t, model.CanTransition(prev, next), "%s: %s -> %s", r.FullName, prev, next)
			prev = next
		}
	}
	assert.Equal(t, []model.RepoStatus{
		model.StatusMirroring, model.StatusMirrored, model.StatusSyncing, model.StatusSynced, model.StatusMirrored,
	}, h.statusTrail(t, widget.ID))
	assert.Equal(t, []model.RepoStatus{
		model.StatusMirroring, model.StatusFailed, model.StatusMirroring, model.StatusMirrored,
	}, h.statusTrail(t, flaky.ID))
}

func TestMirrorRepositories_ThreeUnitScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.StrategyPreserve)
	repos := h.addRepos(t,
		model.Repository{Name: "a", FullName: "me/a", Owner: "me"},
		model.Repository{Name: "b", FullName: "me/b", Owner: "me"},
		model.Repository{Name: "c", FullName: "me/c", Owner: "me"},
	)

	result, err := h.svc.MirrorRepositories(ctx, h.cfg, model.JobTypeMirror, repos)

	require.NoError(t, err)
	assert.Equal(t, mirror.BatchResult{Total: 3, Succeeded: 3}, result)
	for _, r := range repos {
		assert.Equal(t, model.StatusMirrored, h.repo(t, r.ID).Status)
	}
	assert.Len(t, h.unitJobs(t, model.StatusMirrored), 3)

	var batch *model.MirrorJob
	for _, j := range h.jobs(t) {
		if j.BatchID != nil {
			batch = &j
		}
	}
	require.NotNil(t, batch)
	assert.False(t, batch.InProgress)
	assert.Equal(t, model.StatusMirrored, batch.Status)
	assert.ElementsMatch(t, batch.ItemIDs, batch.CompletedItemIDs)
	assert.Equal(t, 3, batch.CompletedItems)
}

func TestRunBatch_PausesBetweenChunks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.StrategyPreserve)
	h.cfg.Schedule.BatchSize = 2
	h.cfg.Schedule.PauseBetweenBatches = 250 * time.Millisecond
	var repos []model.Repository
	for i := range 5 {
		name := fmt.Sprintf("r%d", i)
		repos = append(repos, model.Repository{Name: name, FullName: "me/" + name, Owner: "me"})
	}
	repos = h.addRepos(t, repos...)

	result, err := h.svc.MirrorRepositories(ctx, h.cfg, model.JobTypeMirror, repos)

	require.NoError(t, err)
	assert.Equal(t, 5, result.Succeeded)
	assert.Equal(t, 5, h.dest.MigrateCalls)
	assert.Equal(t, 2, h.sleptFor(250*time.Millisecond), "three chunks, two pauses")
}

func TestGetOrCreateOrganization(t *testing.T) {
	ctx := context.Background()

	t.Run("existing organization is returned", func(t *testing.T) {
		h := newHarness(t, model.StrategyPreserve)
		h.dest.Orgs["acme"] = true

		org, err := h.svc.GetOrCreateOrganization(ctx, "acme", h.cfg)

		require.NoError(t, err)
		assert.Equal(t, "acme", org.UserName)
		assert.Equal(t, 0, h.dest.CreateOrgCalls)
	})

	t.Run("missing organization is created", func(t *testing.T) {
		h := newHarness(t, model.StrategyPreserve)

		_, err := h.svc.GetOrCreateOrganization(ctx, "acme", h.cfg)

		require.NoError(t, err)
		assert.Equal(t, 1, h.dest.CreateOrgCalls)
	})

	t.Run("lost race surfaces as a conflict", func(t *testing.T) {
		h := newHarness(t, model.StrategyPreserve)
		h.dest.OrgRace = true

		_, err := h.svc.GetOrCreateOrganization(ctx, "acme", h.cfg)

		assert.True(t, apperrors.IsConflict(err))
		assert.False(t, apperrors.IsRetryable(err))
	})
}

func TestMirrorOrganization(t *testing.T) {
	ctx := context.Background()

	t.Run("zero repositories still completes", func(t *testing.T) {
		h := newHarness(t, model.StrategyPreserve)
		org := &model.Organization{UserID: h.cfg.UserID, ConfigID: h.cfg.ID, Name: "empty", IsIncluded: true}
		_, err := h.store.InsertOrganization(ctx, org)
		require.NoError(t, err)
		org, err = h.store.GetOrganizationByName(ctx, h.cfg.UserID, "empty")
		require.NoError(t, err)

		job, err := h.svc.MirrorOrganization(ctx, org, h.cfg)

		require.NoError(t, err)
		assert.Equal(t, mirror.MessageNoRepositories, job.Message)
		assert.Equal(t, model.StatusMirrored, job.Status)
		stored, err := h.store.GetOrganization(ctx, org.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusMirrored, stored.Status)
	})

	t.Run("isolated failure with checkpoints", func(t *testing.T) {
		h := newHarness(t, model.StrategyPreserve)
		_, err := h.store.InsertOrganization(ctx, &model.Organization{UserID: h.cfg.UserID, ConfigID: h.cfg.ID, Name: "acme", IsIncluded: true})
		require.NoError(t, err)
		org, err := h.store.GetOrganizationByName(ctx, h.cfg.UserID, "acme")
		require.NoError(t, err)
		repos := h.addRepos(t,
			model.Repository{Name: "a", FullName: "acme/a", Owner: "acme", Organization: strPtr("acme")},
			model.Repository{Name: "b", FullName: "acme/b", Owner: "acme", Organization: strPtr("acme")},
			model.Repository{Name: "c", FullName: "acme/c", Owner: "acme", Organization: strPtr("acme")},
		)
		h.dest.FailMigrate["b"] = &apperrors.APIError{StatusCode: 500, Message: "boom"}

		job, err := h.svc.MirrorOrganization(ctx, org, h.cfg)

		require.NoError(t, err)
		assert.Equal(t, model.StatusFailed, job.Status)
		assert.False(t, job.InProgress)
		assert.NotNil(t, job.CompletedAt)
		assert.Equal(t, 3, job.TotalItems)
		assert.Len(t, job.CompletedItemIDs, 3)
		assert.Equal(t, 1, h.dest.CreateOrgCalls, "organization created once")
		assert.Equal(t, 4, h.dest.MigrateCalls, "the failing unit is retried once")

		assert.Equal(t, model.StatusMirrored, h.repo(t, repos[0].ID).Status)
		assert.Equal(t, model.StatusFailed, h.repo(t, repos[1].ID).Status)
		assert.Equal(t, model.StatusMirrored, h.repo(t, repos[2].ID).Status)
		assert.Equal(t, "acme/c", h.repo(t, repos[2].ID).MirroredLocation)

		stored, err := h.store.GetOrganization(ctx, org.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusFailed, stored.Status)
		assert.Equal(t, 3, stored.RepositoryCnt)
	})

	t.Run("organization override is used", func(t *testing.T) {
		h := newHarness(t, model.StrategyPreserve)
		_, err := h.store.InsertOrganization(ctx, &model.Organization{UserID: h.cfg.UserID, ConfigID: h.cfg.ID, Name: "acme", IsIncluded: true})
		require.NoError(t, err)
		org, err := h.store.GetOrganizationByName(ctx, h.cfg.UserID, "acme")
		require.NoError(t, err)
		h.store.SetOrganizationDestination(org.ID, "acme-archive")
		org, err = h.store.GetOrganization(ctx, org.ID)
		require.NoError(t, err)
		repo := h.addRepos(t, model.Repository{Name: "a", FullName: "acme/a", Owner: "acme", Organization: strPtr("acme")})[0]

		_, err = h.svc.MirrorOrganization(ctx, org, h.cfg)

		require.NoError(t, err)
		assert.Equal(t, "acme-archive/a", h.repo(t, repo.ID).MirroredLocation)
		assert.True(t, h.dest.Orgs["acme-archive"])
	})
}

func TestMirrorRepository_Metadata(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.StrategyPreserve)
	h.cfg.Source.MirrorIssues = true
	h.cfg.Source.MirrorReleases = true
	h.cfg.Source.ReleaseLimit = 2

	h.src.Labels = []model.Label{{Name: "bug", Color: "ff0000"}, {Name: "feature", Color: "00ff00"}}
	h.src.Issues = []model.Issue{
		{Number: 1, Title: "Crash", Body: "it crashes", Author: "alice", Labels: []model.Label{{Name: "bug"}}},
		{Number: 2, Title: "Idea", Author: "bob", Closed: true},
	}
	h.src.IssueComment[1] = []model.Comment{{Author: "carol", Body: "same here"}, {Author: "alice", Body: "fixed"}}
	h.src.Releases = []model.Release{{TagName: "v3"}, {TagName: "v2"}, {TagName: "v1"}}

	repo := h.addRepos(t, model.Repository{Name: "widget", FullName: "me/widget", Owner: "me"})[0]

	_, err := h.svc.MirrorRepository(ctx, &repo, h.cfg)
	require.NoError(t, err)

	k := mirrortest.RepoKey("me", "widget")
	assert.Len(t, h.dest.Labels[k], 2)
	require.Len(t, h.dest.Issues[k], 2)
	for _, issue := range h.dest.Issues[k] {
		assert.Contains(t, issue.Body, "*Originally created by @")
		if issue.Title == "Crash" {
			assert.Len(t, issue.Labels, 1)
			assert.False(t, issue.Closed)
		} else {
			assert.True(t, issue.Closed)
		}
	}
	comments := 0
	for _, c := range h.dest.Comments {
		comments += len(c)
	}
	assert.Equal(t, 2, comments)
	assert.ElementsMatch(t, []string{"v3", "v2"}, h.dest.Releases[k])

	success := h.unitJobs(t, model.StatusMirrored)
	require.Len(t, success, 1)
	assert.Equal(t, "labels=2 issues=2 comments=2 releases=2", success[0].Details)
}

func TestRepairStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.StrategyPreserve)
	h.dest.AddRepo("me", "present")
	h.dest.AddRepo("me", "resynced")
	repos := h.addRepos(t,
		model.Repository{Name: "present", FullName: "me/present", Owner: "me", Status: model.StatusMirroring},
		model.Repository{Name: "resynced", FullName: "me/resynced", Owner: "me", Status: model.StatusSyncing},
		model.Repository{Name: "gone", FullName: "me/gone", Owner: "me", Status: model.StatusMirroring},
		model.Repository{Name: "broken", FullName: "me/broken", Owner: "me", Status: model.StatusFailed},
		model.Repository{Name: "fine", FullName: "me/fine", Owner: "me", Status: model.StatusMirrored},
	)

	report, err := h.svc.RepairStatus(ctx, h.cfg.UserID)

	require.NoError(t, err)
	assert.Equal(t, 4, report.Checked)
	assert.ElementsMatch(t, []string{"me/present", "me/resynced"}, report.Converged)
	assert.Equal(t, []string{"me/gone"}, report.Failed)
	assert.Equal(t, []string{"me/broken"}, report.Unchanged)

	assert.Equal(t, model.StatusMirrored, h.repo(t, repos[0].ID).Status)
	assert.Equal(t, model.StatusSynced, h.repo(t, repos[1].ID).Status)
	assert.Equal(t, model.StatusFailed, h.repo(t, repos[2].ID).Status)
	assert.Equal(t, model.StatusFailed, h.repo(t, repos[3].ID).Status)
	assert.Equal(t, model.StatusMirrored, h.repo(t, repos[4].ID).Status)
}
