//go:build integration

// cmd/service/integration_test.go
package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	apperrors "repo-mirror/internal/errors"
	"repo-mirror/internal/events"
	"repo-mirror/internal/mirror"
	"repo-mirror/internal/mirror/mirrortest"
	"repo-mirror/internal/model"
	"repo-mirror/internal/ratelimit"
	"repo-mirror/internal/recovery"
	"repo-mirror/internal/scheduler"
	"repo-mirror/internal/store"
	"repo-mirror/migrations"
)

func setupTestDatabase(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, pgContainer)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, migrations.Up(connStr))
	require.NoError(t, migrations.Down(connStr))
	require.NoError(t, migrations.Up(connStr))

	dbpool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(dbpool.Close)
	return dbpool
}

type stack struct {
	store     *store.Postgres
	src       *mirrortest.Source
	dest      *mirrortest.Destination
	service   *mirror.Service
	scheduler *scheduler.Scheduler
	publisher *events.Publisher
	logger    *slog.Logger
}

func newStack(t *testing.T, pool *pgxpool.Pool) *stack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	noSleep := func(context.Context, time.Duration) error { return nil }
	st := store.NewPostgres(pool)
	publisher := events.NewPublisher(st, logger)
	governor := ratelimit.NewGovernor(st, publisher, nil, logger, ratelimit.Options{Sleep: noSleep})
	src := &mirrortest.Source{OrgRepos: map[string][]model.SourceRepository{}}
	dest := mirrortest.NewDestination()
	svc := mirror.NewService(st, &mirrortest.Clients{Src: src, Dest: dest}, governor, publisher, nil, logger,
		mirror.Options{Concurrency: 2, Sleep: noSleep})
	return &stack{
		store:     st,
		src:       src,
		dest:      dest,
		service:   svc,
		scheduler: scheduler.New(st, svc, governor, publisher, nil, logger, scheduler.Options{}),
		publisher: publisher,
		logger:    logger,
	}
}

func (s *stack) config(ctx context.Context, t *testing.T) *model.Configuration {
	t.Helper()
	cfg, err := s.store.CreateConfig(ctx, &model.Configuration{
		UserID:   uuid.New(),
		Name:     "integration",
		IsActive: true,
		Source:   model.SourceConfig{Username: "me", Token: "ghp", StarredMode: model.StarredDedicatedOrg},
		Destination: model.DestinationConfig{
			URL: "http://gitea.local", Token: "tok", DefaultOwner: "me", Strategy: model.StrategyPreserve,
		},
		Filter:   model.FilterConfig{IncludePrivate: true},
		Schedule: model.ScheduleConfig{Enabled: true, Interval: "1h"},
		Cleanup:  model.CleanupConfig{OrphanAction: model.OrphanSkip},
	})
	require.NoError(t, err)
	return cfg
}

func sourceRepo(owner, name string) model.SourceRepository {
	return model.SourceRepository{
		Name: name, FullName: owner + "/" + name, Owner: owner,
		CloneURL: "https://github.com/" + owner + "/" + name + ".git",
	}
}

func TestSchedulerCycle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	s := newStack(t, setupTestDatabase(ctx, t))
	s.src.Repos = []model.SourceRepository{sourceRepo("me", "alpha"), sourceRepo("me", "beta"), sourceRepo("me", "Alpha")}
	cfg := s.config(ctx, t)

	require.NoError(t, s.scheduler.Tick(ctx))

	repos, err := s.store.ListRepositories(ctx, cfg.UserID)
	require.NoError(t, err)
	require.Len(t, repos, 2, "names differing only in case are one unit")
	for _, r := range repos {
		assert.Equal(t, model.StatusMirrored, r.Status, r.FullName)
		assert.NotEmpty(t, r.MirroredLocation)
		assert.NotNil(t, r.LastMirrored)
	}

	stored, err := s.store.GetConfig(ctx, cfg.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Schedule.LastRun)
	require.NotNil(t, stored.Schedule.NextRun)
	assert.True(t, stored.Schedule.LastRun.Add(time.Hour).Equal(*stored.Schedule.NextRun),
		"next run %s is exactly one interval after %s", stored.Schedule.NextRun, stored.Schedule.LastRun)

	jobs, err := s.store.ListJobs(ctx, cfg.UserID, 50)
	require.NoError(t, err)
	var batches int
	for _, j := range jobs {
		if j.BatchID != nil {
			batches++
			assert.False(t, j.InProgress)
			assert.Equal(t, 2, j.CompletedItems)
			assert.ElementsMatch(t, j.ItemIDs, j.CompletedItemIDs)
		}
	}
	assert.Equal(t, 1, batches)

	evs, err := s.store.ListUnreadEvents(ctx, cfg.UserID, events.Channel(cfg.UserID), time.Time{}, 100)
	require.NoError(t, err)
	assert.NotEmpty(t, evs)

	// A failed sync keeps the recorded destination.
	before := repoNamed(t, repos, "me/alpha")
	s.dest.FailSync[before.Name] = &apperrors.APIError{Method: "POST", URL: "/repos/" + before.FullName + "/mirror-sync", StatusCode: 500, Message: "boom"}
	require.NoError(t, s.scheduler.RunConfigNow(ctx, cfg.ID))

	after, err := s.store.GetRepository(ctx, before.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, after.Status)
	assert.Equal(t, before.MirroredLocation, after.MirroredLocation)
	require.NotNil(t, after.LastMirrored)
	assert.True(t, before.LastMirrored.Equal(*after.LastMirrored))

	beta, err := s.store.GetRepository(ctx, repoNamed(t, repos, "me/beta").ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSynced, beta.Status)

	// The next run syncs it where it lives instead of migrating it again.
	delete(s.dest.FailSync, before.Name)
	require.NoError(t, s.scheduler.RunConfigNow(ctx, cfg.ID))
	after, err = s.store.GetRepository(ctx, before.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSynced, after.Status)
	assert.Equal(t, 2, s.dest.MigrateCalls)
}

func repoNamed(t *testing.T, repos []model.Repository, fullName string) model.Repository {
	t.Helper()
	for _, r := range repos {
		if model.NormalizeName(r.FullName) == model.NormalizeName(fullName) {
			return r
		}
	}
	require.Failf(t, "repository not found", "%s", fullName)
	return model.Repository{}
}

func TestRecovery_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	s := newStack(t, setupTestDatabase(ctx, t))
	cfg := s.config(ctx, t)

	var repos []model.Repository
	for _, name := range []string{"one", "two", "three"} {
		repos = append(repos, model.Repository{
			ID: uuid.New(), UserID: cfg.UserID, ConfigID: cfg.ID, Name: name, FullName: "me/" + name, Owner: "me",
			CloneURL: "https://github.com/me/" + name + ".git", Status: model.StatusImported,
		})
	}
	n, err := s.store.InsertRepositories(ctx, repos)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	job, err := s.service.StartBatch(ctx, cfg, model.JobTypeMirror, repos, nil)
	require.NoError(t, err)
	_, err = s.store.CheckpointJob(ctx, job.ID, repos[0].ID.String())
	require.NoError(t, err)
	again, err := s.store.CheckpointJob(ctx, job.ID, repos[0].ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, again.CompletedItems, "checkpointing twice is a no-op")

	later := func() time.Time { return time.Now().Add(time.Hour) }
	mgr := recovery.NewManager(s.store, s.service, s.publisher, s.logger, 10*time.Minute, later)

	report, err := mgr.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Found)
	assert.Equal(t, 1, report.Resumed)
	assert.Equal(t, 2, s.dest.MigrateCalls, "only the unprocessed items run again")

	finished, err := s.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, finished.InProgress)
	assert.ElementsMatch(t, finished.ItemIDs, finished.CompletedItemIDs)

	interrupted, err := mgr.Interrupted(ctx)
	require.NoError(t, err)
	assert.Empty(t, interrupted)
}

func TestFailAllInProgress_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	s := newStack(t, setupTestDatabase(ctx, t))
	cfg := s.config(ctx, t)

	for range 2 {
		_, err := s.service.StartBatch(ctx, cfg, model.JobTypeSync, nil, nil)
		require.NoError(t, err)
	}
	mgr := recovery.NewManager(s.store, s.service, s.publisher, s.logger, 0, nil)

	n, err := mgr.FailAllInProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = mgr.FailAllInProgress(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	jobs, err := s.store.ListJobs(ctx, cfg.UserID, 10)
	require.NoError(t, err)
	for _, j := range jobs {
		assert.Equal(t, model.StatusFailed, j.Status)
		assert.Equal(t, recovery.MessageRemediated, j.Message)
		assert.NotNil(t, j.CompletedAt)
	}
}
