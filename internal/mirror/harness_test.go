package mirror_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"repo-mirror/internal/events"
	"repo-mirror/internal/mirror"
	"repo-mirror/internal/mirror/mirrortest"
	"repo-mirror/internal/model"
	"repo-mirror/internal/ratelimit"
	"repo-mirror/internal/store"
)

type harness struct {
	svc     *mirror.Service
	store   *store.Memory
	src     *mirrortest.Source
	dest    *mirrortest.Destination
	clients *mirrortest.Clients
	cfg     *model.Configuration

	mu    sync.Mutex
	slept []time.Duration
}

func noSleep(context.Context, time.Duration) error { return nil }

func newHarness(t *testing.T, strategy model.MirrorStrategy) *harness {
	t.Helper()
	mem := store.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := events.NewPublisher(mem, logger)
	governor := ratelimit.NewGovernor(mem, publisher, nil, logger, ratelimit.Options{Sleep: noSleep})
	src := &mirrortest.Source{IssueComment: map[int][]model.Comment{}}
	dest := mirrortest.NewDestination()

	cfg, err := mem.CreateConfig(context.Background(), &model.Configuration{
		UserID:   uuid.New(),
		Name:     "default",
		IsActive: true,
		Source:   model.SourceConfig{Username: "me", Token: "ghp_secret"},
		Destination: model.DestinationConfig{
			URL:          "http://gitea.local",
			Token:        "gitea-token",
			DefaultOwner: "me",
			Organization: "mirrors",
			Strategy:     strategy,
		},
	})
	require.NoError(t, err)

	h := &harness{store: mem, src: src, dest: dest, clients: &mirrortest.Clients{Src: src, Dest: dest}, cfg: cfg}
	h.svc = mirror.NewService(mem, h.clients, governor, publisher, nil, logger, mirror.Options{
		Concurrency: 2,
		MaxRetries:  1,
		Sleep:       h.sleep,
	})
	return h
}

func (h *harness) sleep(_ context.Context, d time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.slept = append(h.slept, d)
	return nil
}

func (h *harness) sleptFor(d time.Duration) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, s := range h.slept {
		if s == d {
			n++
		}
	}
	return n
}

func (h *harness) addRepos(t *testing.T, repos ...model.Repository) []model.Repository {
	t.Helper()
	for i := range repos {
		repos[i].UserID = h.cfg.UserID
		repos[i].ConfigID = h.cfg.ID
		if repos[i].ID == uuid.Nil {
			repos[i].ID = uuid.New()
		}
		if repos[i].CloneURL == "" {
			repos[i].CloneURL = "https://github.com/" + repos[i].FullName + ".git"
		}
	}
	n, err := h.store.InsertRepositories(context.Background(), repos)
	require.NoError(t, err)
	require.Equal(t, len(repos), n)
	out := make([]model.Repository, 0, len(repos))
	for _, r := range repos {
		out = append(out, h.repo(t, r.ID))
	}
	return out
}

func (h *harness) repo(t *testing.T, id uuid.UUID) model.Repository {
	t.Helper()
	r, err := h.store.GetRepository(context.Background(), id)
	require.NoError(t, err)
	return *r
}

func (h *harness) jobs(t *testing.T) []model.MirrorJob {
	t.Helper()
	jobs, err := h.store.ListJobs(context.Background(), h.cfg.UserID, 0)
	require.NoError(t, err)
	return jobs
}

// unitJobs returns the per-repository job records with the given status.
func (h *harness) unitJobs(t *testing.T, status model.RepoStatus) []model.MirrorJob {
	t.Helper()
	var out []model.MirrorJob
	for _, j := range h.jobs(t) {
		if j.Status == status && j.RepositoryID != nil {
			out = append(out, j)
		}
	}
	return out
}

// statusTrail returns the statuses a repository went through, in order.
func (h *harness) statusTrail(t *testing.T, repoID uuid.UUID) []model.RepoStatus {
	t.Helper()
	evs, err := h.store.ListUnreadEvents(context.Background(), h.cfg.UserID, events.Channel(h.cfg.UserID), time.Time{}, 0)
	require.NoError(t, err)
	var trail []model.RepoStatus
	for _, ev := range evs {
		var p events.RepositoryPayload
		require.NoError(t, json.Unmarshal(ev.Payload, &p))
		if p.Kind == events.KindRepository && p.RepositoryID == repoID {
			trail = append(trail, p.Status)
		}
	}
	return trail
}

func strPtr(s string) *string { return &s }
