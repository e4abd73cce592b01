// internal/store/store.go
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"repo-mirror/internal/model"
)

// Store is the persistence boundary of the mirror engine. Lookups that find nothing
// return an error satisfying errors.IsNotFound.
type Store interface {
	ConfigStore
	RepositoryStore
	OrganizationStore
	JobStore
	RateLimitStore
	EventStore
}

type ConfigStore interface {
	CreateConfig(ctx context.Context, cfg *model.Configuration) (*model.Configuration, error)
	GetConfig(ctx context.Context, id uuid.UUID) (*model.Configuration, error)
	ListActiveConfigs(ctx context.Context) ([]model.Configuration, error)
	UpdateSchedule(ctx context.Context, id uuid.UUID, schedule model.ScheduleConfig) error
	UpdateCleanup(ctx context.Context, id uuid.UUID, cleanup model.CleanupConfig) error
}

type RepositoryStore interface {
	GetRepository(ctx context.Context, id uuid.UUID) (*model.Repository, error)
	ListRepositories(ctx context.Context, userID uuid.UUID) ([]model.Repository, error)
	ListRepositoriesByStatus(ctx context.Context, userID uuid.UUID, statuses []model.RepoStatus) ([]model.Repository, error)
	ListRepositoriesByOrganization(ctx context.Context, userID uuid.UUID, org string) ([]model.Repository, error)
	ListRepositoriesByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Repository, error)
	// InsertRepositories inserts new units, silently dropping any whose
	// (user, normalized full name) already exists. It returns the number inserted.
	InsertRepositories(ctx context.Context, repos []model.Repository) (int, error)
	UpdateRepositoryStatus(ctx context.Context, upd RepositoryStatusUpdate) (*model.Repository, error)
	UpdateSourceUpdatedAt(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteRepository(ctx context.Context, id uuid.UUID) error
}

type OrganizationStore interface {
	GetOrganization(ctx context.Context, id uuid.UUID) (*model.Organization, error)
	GetOrganizationByName(ctx context.Context, userID uuid.UUID, name string) (*model.Organization, error)
	ListOrganizations(ctx context.Context, userID uuid.UUID) ([]model.Organization, error)
	// InsertOrganization reports false when the organization was already tracked.
	InsertOrganization(ctx context.Context, org *model.Organization) (bool, error)
	UpdateOrganizationStatus(ctx context.Context, upd OrganizationStatusUpdate) error
}

type JobStore interface {
	CreateJob(ctx context.Context, job *model.MirrorJob) (*model.MirrorJob, error)
	GetJob(ctx context.Context, id uuid.UUID) (*model.MirrorJob, error)
	// CheckpointJob records itemID as completed and refreshes lastCheckpoint.
	// Checkpointing an item twice is a no-op for the completed set.
	CheckpointJob(ctx context.Context, id uuid.UUID, itemID string) (*model.MirrorJob, error)
	UpdateJobStatus(ctx context.Context, upd JobStatusUpdate) (*model.MirrorJob, error)
	FindInterruptedJobs(ctx context.Context, staleBefore time.Time) ([]model.MirrorJob, error)
	FailInProgressJobs(ctx context.Context, message string) (int64, error)
	ListJobs(ctx context.Context, userID uuid.UUID, limit int) ([]model.MirrorJob, error)
}

type RateLimitStore interface {
	UpsertRateLimit(ctx context.Context, state model.RateLimitState) error
	GetRateLimit(ctx context.Context, userID uuid.UUID, provider model.Provider) (*model.RateLimitState, error)
	ListRateLimits(ctx context.Context, userID uuid.UUID) ([]model.RateLimitState, error)
}

type EventStore interface {
	InsertEvent(ctx context.Context, ev model.Event) error
	ListUnreadEvents(ctx context.Context, userID uuid.UUID, channel string, since time.Time, limit int) ([]model.Event, error)
	MarkEventsRead(ctx context.Context, ids []uuid.UUID) error
}

// RepositoryStatusUpdate moves a unit to a new status. An empty MirroredLocation or
// nil LastMirrored keeps the previously recorded value.
type RepositoryStatusUpdate struct {
	ID               uuid.UUID
	Status           model.RepoStatus
	ErrorMessage     string
	MirroredLocation string
	LastMirrored     *time.Time
	// ClearLocation forgets the recorded location once the destination copy is gone.
	ClearLocation bool
}

type OrganizationStatusUpdate struct {
	ID              uuid.UUID
	Status          model.RepoStatus
	ErrorMessage    string
	LastMirrored    *time.Time
	RepositoryCount int
}

type JobStatusUpdate struct {
	ID          uuid.UUID
	Status      model.RepoStatus
	Message     string
	InProgress  bool
	CompletedAt *time.Time
}

// CalcBatchSizeForInsert returns how many rows of columnCount bind parameters fit
// into one statement limited to maxParams parameters. It is never below 1.
func CalcBatchSizeForInsert(columnCount, maxParams int) int {
	if columnCount < 1 {
		columnCount = 1
	}
	size := maxParams / columnCount
	if size < 1 {
		return 1
	}
	return size
}
