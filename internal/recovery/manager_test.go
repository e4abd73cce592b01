package recovery

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
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

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	mgr   *Manager
	svc   *mirror.Service
	store *store.Memory
	dest  *mirrortest.Destination
	cfg   *model.Configuration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := func() time.Time { return t0 }
	noSleep := func(context.Context, time.Duration) error { return nil }

	mem := store.NewMemory().WithClock(clock)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := events.NewPublisher(mem, logger)
	governor := ratelimit.NewGovernor(mem, publisher, nil, logger, ratelimit.Options{Sleep: noSleep})
	dest := mirrortest.NewDestination()
	svc := mirror.NewService(mem, &mirrortest.Clients{Src: &mirrortest.Source{}, Dest: dest}, governor, publisher, nil, logger,
		mirror.Options{Concurrency: 2, Now: clock, Sleep: noSleep})

	cfg, err := mem.CreateConfig(context.Background(), &model.Configuration{
		UserID:   uuid.New(),
		IsActive: true,
		Source:   model.SourceConfig{Username: "me", Token: "ghp"},
		Destination: model.DestinationConfig{
			URL: "http://gitea.local", Token: "tok", DefaultOwner: "me", Strategy: model.StrategyPreserve,
		},
	})
	require.NoError(t, err)

	later := func() time.Time { return t0.Add(11 * time.Minute) }
	return &fixture{
		mgr:   NewManager(mem, svc, publisher, logger, 0, later),
		svc:   svc,
		store: mem,
		dest:  dest,
		cfg:   cfg,
	}
}

func (f *fixture) repos(t *testing.T, names ...string) []model.Repository {
	t.Helper()
	var repos []model.Repository
	for _, n := range names {
		repos = append(repos, model.Repository{
			ID: uuid.New(), UserID: f.cfg.UserID, ConfigID: f.cfg.ID,
			Name: n, FullName: "me/" + n, Owner: "me", CloneURL: "https://github.com/me/" + n + ".git",
		})
	}
	_, err := f.store.InsertRepositories(context.Background(), repos)
	require.NoError(t, err)
	return repos
}

func (f *fixture) batch(t *testing.T, repos []model.Repository, done ...model.Repository) *model.MirrorJob {
	t.Helper()
	ctx := context.Background()
	job, err := f.svc.StartBatch(ctx, f.cfg, model.JobTypeMirror, repos, nil)
	require.NoError(t, err)
	for _, r := range done {
		job, err = f.store.CheckpointJob(ctx, job.ID, r.ID.String())
		require.NoError(t, err)
	}
	return job
}

func TestResolve_RemainingIsSetDifference(t *testing.T) {
	f := newFixture(t)
	repos := f.repos(t, "a", "b", "c", "d")
	job := f.batch(t, repos, repos[0], repos[2])

	remaining, err := f.mgr.Resolve(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, []string{repos[1].ID.String(), repos[3].ID.String()}, remaining)
	assert.True(t, job.InProgress)
	assert.Nil(t, job.CompletedAt)
	assert.Equal(t, "Resuming: 2 of 4 items remaining", job.Message)
}

func TestRun_ResumesOnlyRemainingItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repos := f.repos(t, "a", "b", "c", "d")
	job := f.batch(t, repos, repos[0], repos[2])

	report, err := f.mgr.Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, Report{Found: 1, Resumed: 1}, report)
	assert.Equal(t, 2, f.dest.MigrateCalls)
	assert.Contains(t, f.dest.Repos, mirrortest.RepoKey("me", "b"))
	assert.Contains(t, f.dest.Repos, mirrortest.RepoKey("me", "d"))
	assert.NotContains(t, f.dest.Repos, mirrortest.RepoKey("me", "a"))

	stored, err := f.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, stored.InProgress)
	assert.NotNil(t, stored.CompletedAt)
	assert.Equal(t, model.StatusMirrored, stored.Status)
	assert.ElementsMatch(t, stored.ItemIDs, stored.CompletedItemIDs)
}

func TestRun_ReleasesUnitsLeftMidFlight(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repos := f.repos(t, "a", "b")
	f.batch(t, repos, repos[0])
	_, err := f.store.UpdateRepositoryStatus(ctx, store.RepositoryStatusUpdate{ID: repos[1].ID, Status: model.StatusMirroring})
	require.NoError(t, err)

	_, err = f.mgr.Run(ctx)

	require.NoError(t, err)
	stored, err := f.store.GetRepository(ctx, repos[1].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusMirrored, stored.Status)
}

func TestRun_FailsJobsWithoutItemTracking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	legacy, err := f.store.CreateJob(ctx, &model.MirrorJob{
		UserID: f.cfg.UserID, Status: model.StatusMirroring, JobType: model.JobTypeMirror, InProgress: true,
	})
	require.NoError(t, err)

	report, err := f.mgr.Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, Report{Found: 1, Failed: 1}, report)
	stored, err := f.store.GetJob(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, stored.Status)
	assert.False(t, stored.InProgress)
	assert.Contains(t, stored.Message, "cannot be resumed")
}

func TestResolve_NotResumable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	job, err := f.store.CreateJob(ctx, &model.MirrorJob{
		UserID: f.cfg.UserID, Status: model.StatusSyncing, JobType: model.JobTypeSync, InProgress: true,
	})
	require.NoError(t, err)

	remaining, err := f.mgr.Resolve(ctx, job)

	var nr *apperrors.NotResumableError
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, job.ID.String(), nr.JobID)
	assert.Empty(t, remaining)
	assert.Equal(t, model.StatusFailed, job.Status)
}

func TestRun_CompletesFullyCheckpointedJobs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repos := f.repos(t, "a", "b")
	job := f.batch(t, repos, repos...)

	report, err := f.mgr.Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, Report{Found: 1, Completed: 1}, report)
	assert.Equal(t, 0, f.dest.MigrateCalls)
	stored, err := f.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusMirrored, stored.Status)
	assert.False(t, stored.InProgress)
}

func TestRun_IgnoresFreshJobs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repos := f.repos(t, "a")
	f.batch(t, repos)
	f.mgr.now = func() time.Time { return t0.Add(5 * time.Minute) }

	report, err := f.mgr.Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
	assert.Equal(t, 0, f.dest.MigrateCalls)
}

func TestFailAllInProgress_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repos := f.repos(t, "a", "b")
	f.batch(t, repos[:1])
	f.batch(t, repos[1:])

	n, err := f.mgr.FailAllInProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = f.mgr.FailAllInProgress(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	jobs, err := f.store.ListJobs(ctx, f.cfg.UserID, 0)
	require.NoError(t, err)
	for _, j := range jobs {
		assert.Equal(t, model.StatusFailed, j.Status)
		assert.Equal(t, MessageRemediated, j.Message)
	}
}
