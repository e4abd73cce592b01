// internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "repo-mirror/internal/errors"
	"repo-mirror/internal/model"
)

// Memory is an in-process Store. It enforces the same uniqueness and checkpoint
// rules as the Postgres schema and is safe for concurrent use.
type Memory struct {
	mu sync.RWMutex

	now func() time.Time

	configs    map[uuid.UUID]model.Configuration
	repos      map[uuid.UUID]model.Repository
	orgs       map[uuid.UUID]model.Organization
	jobs       map[uuid.UUID]model.MirrorJob
	rateLimits map[string]model.RateLimitState
	events     []model.Event
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		now:        time.Now,
		configs:    make(map[uuid.UUID]model.Configuration),
		repos:      make(map[uuid.UUID]model.Repository),
		orgs:       make(map[uuid.UUID]model.Organization),
		jobs:       make(map[uuid.UUID]model.MirrorJob),
		rateLimits: make(map[string]model.RateLimitState),
	}
}

// WithClock replaces the timestamp source.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func memNotFound(what string) error {
	return fmt.Errorf("%s: %w", what, apperrors.ErrNotFound)
}

// --- configurations ---

func (m *Memory) CreateConfig(_ context.Context, cfg *model.Configuration) (*model.Configuration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *cfg
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = m.now()
	c.UpdatedAt = c.CreatedAt
	m.configs[c.ID] = c
	return &c, nil
}

func (m *Memory) GetConfig(_ context.Context, id uuid.UUID) (*model.Configuration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.configs[id]
	if !ok {
		return nil, memNotFound("config " + id.String())
	}
	return &c, nil
}

func (m *Memory) ListActiveConfigs(_ context.Context) ([]model.Configuration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Configuration
	for _, c := range m.configs {
		if c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateSchedule(_ context.Context, id uuid.UUID, schedule model.ScheduleConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[id]
	if !ok {
		return memNotFound("config " + id.String())
	}
	c.Schedule = schedule
	c.UpdatedAt = m.now()
	m.configs[id] = c
	return nil
}

func (m *Memory) UpdateCleanup(_ context.Context, id uuid.UUID, cleanup model.CleanupConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[id]
	if !ok {
		return memNotFound("config " + id.String())
	}
	c.Cleanup = cleanup
	c.UpdatedAt = m.now()
	m.configs[id] = c
	return nil
}

// --- repositories ---

func (m *Memory) GetRepository(_ context.Context, id uuid.UUID) (*model.Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.repos[id]
	if !ok {
		return nil, memNotFound("repository " + id.String())
	}
	return &r, nil
}

func (m *Memory) listRepos(keep func(model.Repository) bool) []model.Repository {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Repository
	for _, r := range m.repos {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NormalizedFullName() < out[j].NormalizedFullName() })
	return out
}

func (m *Memory) ListRepositories(_ context.Context, userID uuid.UUID) ([]model.Repository, error) {
	return m.listRepos(func(r model.Repository) bool { return r.UserID == userID }), nil
}

func (m *Memory) ListRepositoriesByStatus(_ context.Context, userID uuid.UUID, statuses []model.RepoStatus) ([]model.Repository, error) {
	return m.listRepos(func(r model.Repository) bool {
		return r.UserID == userID && slices.Contains(statuses, r.Status)
	}), nil
}

func (m *Memory) ListRepositoriesByOrganization(_ context.Context, userID uuid.UUID, org string) ([]model.Repository, error) {
	return m.listRepos(func(r model.Repository) bool {
		return r.UserID == userID && r.Organization != nil && strings.EqualFold(*r.Organization, org)
	}), nil
}

func (m *Memory) ListRepositoriesByIDs(_ context.Context, ids []uuid.UUID) ([]model.Repository, error) {
	return m.listRepos(func(r model.Repository) bool { return slices.Contains(ids, r.ID) }), nil
}

func (m *Memory) InsertRepositories(_ context.Context, repos []model.Repository) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	taken := make(map[string]struct{}, len(m.repos))
	for _, r := range m.repos {
		taken[r.UserID.String()+"/"+r.NormalizedFullName()] = struct{}{}
	}
	inserted := 0
	now := m.now()
	for _, r := range repos {
		key := r.UserID.String() + "/" + r.NormalizedFullName()
		if _, dup := taken[key]; dup {
			continue
		}
		taken[key] = struct{}{}
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		if r.Status == "" {
			r.Status = model.StatusImported
		}
		r.CreatedAt = now
		r.UpdatedAt = now
		m.repos[r.ID] = r
		inserted++
	}
	return inserted, nil
}

func (m *Memory) UpdateRepositoryStatus(_ context.Context, upd RepositoryStatusUpdate) (*model.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.repos[upd.ID]
	if !ok {
		return nil, memNotFound("repository " + upd.ID.String())
	}
	r.Status = upd.Status
	r.ErrorMessage = upd.ErrorMessage
	switch {
	case upd.ClearLocation:
		r.MirroredLocation = ""
	case upd.MirroredLocation != "":
		r.MirroredLocation = upd.MirroredLocation
	}
	if upd.LastMirrored != nil {
		t := *upd.LastMirrored
		r.LastMirrored = &t
	}
	r.UpdatedAt = m.now()
	m.repos[r.ID] = r
	return &r, nil
}

func (m *Memory) UpdateSourceUpdatedAt(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.repos[id]
	if !ok {
		return memNotFound("repository " + id.String())
	}
	r.SourceUpdatedAt = &at
	m.repos[id] = r
	return nil
}

func (m *Memory) DeleteRepository(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.repos, id)
	return nil
}

// --- organizations ---

func (m *Memory) GetOrganization(_ context.Context, id uuid.UUID) (*model.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orgs[id]
	if !ok {
		return nil, memNotFound("organization " + id.String())
	}
	return &o, nil
}

func (m *Memory) GetOrganizationByName(_ context.Context, userID uuid.UUID, name string) (*model.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orgs {
		if o.UserID == userID && model.NormalizeName(o.Name) == model.NormalizeName(name) {
			return &o, nil
		}
	}
	return nil, memNotFound("organization " + name)
}

func (m *Memory) ListOrganizations(_ context.Context, userID uuid.UUID) ([]model.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Organization
	for _, o := range m.orgs {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return model.NormalizeName(out[i].Name) < model.NormalizeName(out[j].Name) })
	return out, nil
}

func (m *Memory) InsertOrganization(_ context.Context, org *model.Organization) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orgs {
		if o.UserID == org.UserID && model.NormalizeName(o.Name) == model.NormalizeName(org.Name) {
			return false, nil
		}
	}
	o := *org
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = model.StatusImported
	}
	o.CreatedAt = m.now()
	o.UpdatedAt = o.CreatedAt
	m.orgs[o.ID] = o
	return true, nil
}

func (m *Memory) UpdateOrganizationStatus(_ context.Context, upd OrganizationStatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[upd.ID]
	if !ok {
		return memNotFound("organization " + upd.ID.String())
	}
	o.Status = upd.Status
	o.ErrorMessage = upd.ErrorMessage
	if upd.LastMirrored != nil {
		t := *upd.LastMirrored
		o.LastMirrored = &t
	}
	o.RepositoryCnt = upd.RepositoryCount
	o.UpdatedAt = m.now()
	m.orgs[o.ID] = o
	return nil
}

// SetOrganizationDestination records a per-organization destination override.
func (m *Memory) SetOrganizationDestination(id uuid.UUID, dest string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orgs[id]; ok {
		o.DestinationOrg = &dest
		m.orgs[id] = o
	}
}

// --- jobs ---

func cloneJob(j model.MirrorJob) model.MirrorJob {
	j.ItemIDs = slices.Clone(j.ItemIDs)
	j.CompletedItemIDs = slices.Clone(j.CompletedItemIDs)
	return j
}

func (m *Memory) CreateJob(_ context.Context, job *model.MirrorJob) (*model.MirrorJob, error) {
	if job.InProgress && job.CompletedAt != nil {
		return nil, fmt.Errorf("create mirror job: in-progress job cannot have completedAt")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j := cloneJob(*job)
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.CompletedItemIDs == nil {
		j.CompletedItemIDs = []string{}
	}
	j.CompletedItems = len(j.CompletedItemIDs)
	j.CreatedAt = m.now()
	m.jobs[j.ID] = j
	out := cloneJob(j)
	return &out, nil
}

func (m *Memory) GetJob(_ context.Context, id uuid.UUID) (*model.MirrorJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, memNotFound("mirror job " + id.String())
	}
	out := cloneJob(j)
	return &out, nil
}

func (m *Memory) CheckpointJob(_ context.Context, id uuid.UUID, itemID string) (*model.MirrorJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || !slices.Contains(j.ItemIDs, itemID) {
		return nil, memNotFound(fmt.Sprintf("mirror job %s item %s", id, itemID))
	}
	if !slices.Contains(j.CompletedItemIDs, itemID) {
		j.CompletedItemIDs = append(j.CompletedItemIDs, itemID)
		j.CompletedItems++
	}
	now := m.now()
	j.LastCheckpoint = &now
	m.jobs[id] = j
	out := cloneJob(j)
	return &out, nil
}

func (m *Memory) UpdateJobStatus(_ context.Context, upd JobStatusUpdate) (*model.MirrorJob, error) {
	if upd.InProgress && upd.CompletedAt != nil {
		return nil, fmt.Errorf("update mirror job %s: in-progress job cannot have completedAt", upd.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[upd.ID]
	if !ok {
		return nil, memNotFound("mirror job " + upd.ID.String())
	}
	j.Status = upd.Status
	j.Message = upd.Message
	j.InProgress = upd.InProgress
	j.CompletedAt = upd.CompletedAt
	now := m.now()
	j.LastCheckpoint = &now
	m.jobs[j.ID] = j
	out := cloneJob(j)
	return &out, nil
}

func (m *Memory) FindInterruptedJobs(_ context.Context, staleBefore time.Time) ([]model.MirrorJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.MirrorJob
	for _, j := range m.jobs {
		if !j.InProgress {
			continue
		}
		if j.LastCheckpoint == nil || j.LastCheckpoint.Before(staleBefore) {
			out = append(out, cloneJob(j))
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out, nil
}

func (m *Memory) FailInProgressJobs(_ context.Context, message string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := m.now()
	for id, j := range m.jobs {
		if !j.InProgress {
			continue
		}
		j.Status = model.StatusFailed
		j.Message = message
		j.InProgress = false
		j.CompletedAt = &now
		m.jobs[id] = j
		n++
	}
	return n, nil
}

func (m *Memory) ListJobs(_ context.Context, userID uuid.UUID, limit int) ([]model.MirrorJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.MirrorJob
	for _, j := range m.jobs {
		if j.UserID == userID {
			out = append(out, cloneJob(j))
		}
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- rate limits ---

func rateLimitKey(userID uuid.UUID, provider model.Provider) string {
	return userID.String() + "/" + string(provider)
}

func (m *Memory) UpsertRateLimit(_ context.Context, state model.RateLimitState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state.UpdatedAt = m.now()
	m.rateLimits[rateLimitKey(state.UserID, state.Provider)] = state
	return nil
}

func (m *Memory) GetRateLimit(_ context.Context, userID uuid.UUID, provider model.Provider) (*model.RateLimitState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.rateLimits[rateLimitKey(userID, provider)]
	if !ok {
		return nil, memNotFound("rate limit " + string(provider))
	}
	return &s, nil
}

func (m *Memory) ListRateLimits(_ context.Context, userID uuid.UUID) ([]model.RateLimitState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.RateLimitState
	for _, s := range m.rateLimits {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out, nil
}

// --- events ---

func (m *Memory) InsertEvent(_ context.Context, ev model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = m.now()
	}
	ev.Read = false
	m.events = append(m.events, ev)
	return nil
}

func (m *Memory) ListUnreadEvents(_ context.Context, userID uuid.UUID, channel string, since time.Time, limit int) ([]model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Event
	for _, ev := range m.events {
		if ev.UserID != userID || ev.Channel != channel || ev.Read || !ev.CreatedAt.After(since) {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) MarkEventsRead(_ context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		if slices.Contains(ids, m.events[i].ID) {
			m.events[i].Read = true
		}
	}
	return nil
}
