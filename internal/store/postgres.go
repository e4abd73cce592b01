// internal/store/postgres.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"repo-mirror/internal/database"
	apperrors "repo-mirror/internal/errors"
	"repo-mirror/internal/model"
)

// Postgres is the Store backed by pgx and the generated query layer.
type Postgres struct {
	pool *pgxpool.Pool
	q    *database.Queries
}

var _ Store = (*Postgres)(nil)

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, q: database.New(pool)}
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, apperrors.ErrNotFound)
	}
	return err
}

// --- configurations ---

func (p *Postgres) CreateConfig(ctx context.Context, cfg *model.Configuration) (*model.Configuration, error) {
	params := database.CreateConfigParams{
		ID:       cfg.ID,
		UserID:   cfg.UserID,
		Name:     cfg.Name,
		IsActive: cfg.IsActive,
	}
	if params.ID == uuid.Nil {
		params.ID = uuid.New()
	}
	var err error
	if params.SourceConfig, err = json.Marshal(cfg.Source); err != nil {
		return nil, err
	}
	if params.DestinationConfig, err = json.Marshal(cfg.Destination); err != nil {
		return nil, err
	}
	if params.FilterConfig, err = json.Marshal(cfg.Filter); err != nil {
		return nil, err
	}
	if params.ScheduleConfig, err = json.Marshal(cfg.Schedule); err != nil {
		return nil, err
	}
	if params.CleanupConfig, err = json.Marshal(cfg.Cleanup); err != nil {
		return nil, err
	}
	row, err := p.q.CreateConfig(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create config: %w", err)
	}
	return configFromRow(row)
}

func (p *Postgres) GetConfig(ctx context.Context, id uuid.UUID) (*model.Configuration, error) {
	row, err := p.q.GetConfig(ctx, id)
	if err != nil {
		return nil, notFound(err, "config "+id.String())
	}
	return configFromRow(row)
}

func (p *Postgres) ListActiveConfigs(ctx context.Context) ([]model.Configuration, error) {
	rows, err := p.q.ListActiveConfigs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Configuration, 0, len(rows))
	for _, row := range rows {
		cfg, err := configFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", row.ID, err)
		}
		out = append(out, *cfg)
	}
	return out, nil
}

func (p *Postgres) UpdateSchedule(ctx context.Context, id uuid.UUID, schedule model.ScheduleConfig) error {
	raw, err := json.Marshal(schedule)
	if err != nil {
		return err
	}
	return p.q.UpdateConfigSchedule(ctx, database.UpdateConfigScheduleParams{ID: id, ScheduleConfig: raw})
}

func (p *Postgres) UpdateCleanup(ctx context.Context, id uuid.UUID, cleanup model.CleanupConfig) error {
	raw, err := json.Marshal(cleanup)
	if err != nil {
		return err
	}
	return p.q.UpdateConfigCleanup(ctx, database.UpdateConfigCleanupParams{ID: id, CleanupConfig: raw})
}

// --- repositories ---

func (p *Postgres) GetRepository(ctx context.Context, id uuid.UUID) (*model.Repository, error) {
	row, err := p.q.GetRepository(ctx, id)
	if err != nil {
		return nil, notFound(err, "repository "+id.String())
	}
	repo := repositoryFromRow(row)
	return &repo, nil
}

func (p *Postgres) ListRepositories(ctx context.Context, userID uuid.UUID) ([]model.Repository, error) {
	rows, err := p.q.ListRepositoriesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return repositoriesFromRows(rows), nil
}

func (p *Postgres) ListRepositoriesByStatus(ctx context.Context, userID uuid.UUID, statuses []model.RepoStatus) ([]model.Repository, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	rows, err := p.q.ListRepositoriesByStatuses(ctx, database.ListRepositoriesByStatusesParams{UserID: userID, Statuses: names})
	if err != nil {
		return nil, err
	}
	return repositoriesFromRows(rows), nil
}

func (p *Postgres) ListRepositoriesByOrganization(ctx context.Context, userID uuid.UUID, org string) ([]model.Repository, error) {
	rows, err := p.q.ListRepositoriesByOrganization(ctx, database.ListRepositoriesByOrganizationParams{UserID: userID, Organization: org})
	if err != nil {
		return nil, err
	}
	return repositoriesFromRows(rows), nil
}

func (p *Postgres) ListRepositoriesByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Repository, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := p.q.ListRepositoriesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return repositoriesFromRows(rows), nil
}

// InsertRepositories writes all chunks in one transaction.
func (p *Postgres) InsertRepositories(ctx context.Context, repos []model.Repository) (int, error) {
	if len(repos) == 0 {
		return 0, nil
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	qtx := p.q.WithTx(tx)
	batchSize := CalcBatchSizeForInsert(database.InsertRepositoryColumnCount(), database.PostgresMaxParams)
	var inserted int64
	for start := 0; start < len(repos); start += batchSize {
		end := min(start+batchSize, len(repos))
		rows := make([]database.InsertRepositoryParams, 0, end-start)
		for _, r := range repos[start:end] {
			rows = append(rows, insertParamsFromRepository(r))
		}
		n, err := qtx.InsertRepositoriesIgnoreConflicts(ctx, rows)
		if err != nil {
			return 0, fmt.Errorf("insert repositories %d-%d: %w", start, end, err)
		}
		inserted += n
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(inserted), nil
}

func (p *Postgres) UpdateRepositoryStatus(ctx context.Context, upd RepositoryStatusUpdate) (*model.Repository, error) {
	row, err := p.q.UpdateRepositoryStatus(ctx, database.UpdateRepositoryStatusParams{
		ID:               upd.ID,
		Status:           string(upd.Status),
		ErrorMessage:     upd.ErrorMessage,
		MirroredLocation: upd.MirroredLocation,
		LastMirrored:     toTimestamptz(upd.LastMirrored),
		ClearLocation:    upd.ClearLocation,
	})
	if err != nil {
		return nil, notFound(err, "repository "+upd.ID.String())
	}
	repo := repositoryFromRow(row)
	return &repo, nil
}

func (p *Postgres) UpdateSourceUpdatedAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	return p.q.UpdateRepositorySourceUpdatedAt(ctx, database.UpdateRepositorySourceUpdatedAtParams{
		ID:              id,
		SourceUpdatedAt: toTimestamptz(&at),
	})
}

func (p *Postgres) DeleteRepository(ctx context.Context, id uuid.UUID) error {
	return p.q.DeleteRepository(ctx, id)
}

// --- organizations ---

func (p *Postgres) GetOrganization(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	row, err := p.q.GetOrganization(ctx, id)
	if err != nil {
		return nil, notFound(err, "organization "+id.String())
	}
	org := organizationFromRow(row)
	return &org, nil
}

func (p *Postgres) GetOrganizationByName(ctx context.Context, userID uuid.UUID, name string) (*model.Organization, error) {
	row, err := p.q.GetOrganizationByName(ctx, database.GetOrganizationByNameParams{UserID: userID, Name: name})
	if err != nil {
		return nil, notFound(err, "organization "+name)
	}
	org := organizationFromRow(row)
	return &org, nil
}

func (p *Postgres) ListOrganizations(ctx context.Context, userID uuid.UUID) ([]model.Organization, error) {
	rows, err := p.q.ListOrganizationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Organization, 0, len(rows))
	for _, row := range rows {
		out = append(out, organizationFromRow(row))
	}
	return out, nil
}

func (p *Postgres) InsertOrganization(ctx context.Context, org *model.Organization) (bool, error) {
	id := org.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	status := org.Status
	if status == "" {
		status = model.StatusImported
	}
	n, err := p.q.InsertOrganization(ctx, database.InsertOrganizationParams{
		ID:             id,
		UserID:         org.UserID,
		ConfigID:       org.ConfigID,
		Name:           org.Name,
		NormalizedName: model.NormalizeName(org.Name),
		MembershipRole: org.MembershipRole,
		IsIncluded:     org.IsIncluded,
		Status:         string(status),
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *Postgres) UpdateOrganizationStatus(ctx context.Context, upd OrganizationStatusUpdate) error {
	return p.q.UpdateOrganizationStatus(ctx, database.UpdateOrganizationStatusParams{
		ID:              upd.ID,
		Status:          string(upd.Status),
		ErrorMessage:    upd.ErrorMessage,
		LastMirrored:    toTimestamptz(upd.LastMirrored),
		RepositoryCount: int32(upd.RepositoryCount),
	})
}

// --- jobs ---

func (p *Postgres) CreateJob(ctx context.Context, job *model.MirrorJob) (*model.MirrorJob, error) {
	id := job.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	completed := job.CompletedItemIDs
	if completed == nil {
		completed = []string{}
	}
	row, err := p.q.CreateMirrorJob(ctx, database.CreateMirrorJobParams{
		ID:               id,
		UserID:           job.UserID,
		RepositoryID:     toNullUUID(job.RepositoryID),
		RepositoryName:   job.RepositoryName,
		OrganizationID:   toNullUUID(job.OrganizationID),
		OrganizationName: job.OrganizationName,
		Status:           string(job.Status),
		Message:          job.Message,
		Details:          job.Details,
		JobType:          string(job.JobType),
		BatchID:          toNullUUID(job.BatchID),
		TotalItems:       int32(job.TotalItems),
		CompletedItems:   int32(len(completed)),
		ItemIds:          job.ItemIDs,
		CompletedItemIds: completed,
		InProgress:       job.InProgress,
		StartedAt:        toTimestamptz(job.StartedAt),
		CompletedAt:      toTimestamptz(job.CompletedAt),
		LastCheckpoint:   toTimestamptz(job.LastCheckpoint),
	})
	if err != nil {
		return nil, fmt.Errorf("create mirror job: %w", err)
	}
	out := jobFromRow(row)
	return &out, nil
}

func (p *Postgres) GetJob(ctx context.Context, id uuid.UUID) (*model.MirrorJob, error) {
	row, err := p.q.GetMirrorJob(ctx, id)
	if err != nil {
		return nil, notFound(err, "mirror job "+id.String())
	}
	out := jobFromRow(row)
	return &out, nil
}

func (p *Postgres) CheckpointJob(ctx context.Context, id uuid.UUID, itemID string) (*model.MirrorJob, error) {
	row, err := p.q.CheckpointMirrorJob(ctx, database.CheckpointMirrorJobParams{ItemID: itemID, ID: id})
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("mirror job %s item %s", id, itemID))
	}
	out := jobFromRow(row)
	return &out, nil
}

func (p *Postgres) UpdateJobStatus(ctx context.Context, upd JobStatusUpdate) (*model.MirrorJob, error) {
	row, err := p.q.UpdateMirrorJobStatus(ctx, database.UpdateMirrorJobStatusParams{
		ID:          upd.ID,
		Status:      string(upd.Status),
		Message:     upd.Message,
		InProgress:  upd.InProgress,
		CompletedAt: toTimestamptz(upd.CompletedAt),
	})
	if err != nil {
		return nil, notFound(err, "mirror job "+upd.ID.String())
	}
	out := jobFromRow(row)
	return &out, nil
}

func (p *Postgres) FindInterruptedJobs(ctx context.Context, staleBefore time.Time) ([]model.MirrorJob, error) {
	rows, err := p.q.ListInterruptedMirrorJobs(ctx, toTimestamptz(&staleBefore))
	if err != nil {
		return nil, err
	}
	return jobsFromRows(rows), nil
}

func (p *Postgres) FailInProgressJobs(ctx context.Context, message string) (int64, error) {
	return p.q.FailInProgressMirrorJobs(ctx, message)
}

func (p *Postgres) ListJobs(ctx context.Context, userID uuid.UUID, limit int) ([]model.MirrorJob, error) {
	rows, err := p.q.ListMirrorJobsByUser(ctx, database.ListMirrorJobsByUserParams{UserID: userID, Limit: int32(limit)})
	if err != nil {
		return nil, err
	}
	return jobsFromRows(rows), nil
}

// --- rate limits ---

func (p *Postgres) UpsertRateLimit(ctx context.Context, state model.RateLimitState) error {
	var retryAfter pgtype.Int4
	if state.RetryAfter != nil {
		retryAfter = pgtype.Int4{Int32: int32(state.RetryAfter.Seconds()), Valid: true}
	}
	return p.q.UpsertRateLimit(ctx, database.UpsertRateLimitParams{
		UserID:            state.UserID,
		Provider:          string(state.Provider),
		RateLimit:         int32(state.Limit),
		Remaining:         int32(state.Remaining),
		Used:              int32(state.Used),
		ResetAt:           toTimestamptz(&state.Reset),
		RetryAfterSeconds: retryAfter,
		Status:            string(state.Status),
	})
}

func (p *Postgres) GetRateLimit(ctx context.Context, userID uuid.UUID, provider model.Provider) (*model.RateLimitState, error) {
	row, err := p.q.GetRateLimit(ctx, database.GetRateLimitParams{UserID: userID, Provider: string(provider)})
	if err != nil {
		return nil, notFound(err, "rate limit "+string(provider))
	}
	state := rateLimitFromRow(row)
	return &state, nil
}

func (p *Postgres) ListRateLimits(ctx context.Context, userID uuid.UUID) ([]model.RateLimitState, error) {
	rows, err := p.q.ListRateLimitsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]model.RateLimitState, 0, len(rows))
	for _, row := range rows {
		out = append(out, rateLimitFromRow(row))
	}
	return out, nil
}

// --- events ---

func (p *Postgres) InsertEvent(ctx context.Context, ev model.Event) error {
	id := ev.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return p.q.InsertEvent(ctx, database.InsertEventParams{
		ID:        id,
		UserID:    ev.UserID,
		Channel:   ev.Channel,
		Payload:   ev.Payload,
		CreatedAt: toTimestamptz(&createdAt),
	})
}

func (p *Postgres) ListUnreadEvents(ctx context.Context, userID uuid.UUID, channel string, since time.Time, limit int) ([]model.Event, error) {
	rows, err := p.q.ListUnreadEvents(ctx, database.ListUnreadEventsParams{
		UserID:    userID,
		Channel:   channel,
		Since:     toTimestamptz(&since),
		MaxEvents: int32(limit),
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.Event{
			ID:        row.ID,
			UserID:    row.UserID,
			Channel:   row.Channel,
			Payload:   row.Payload,
			Read:      row.Read,
			CreatedAt: row.CreatedAt.Time,
		})
	}
	return out, nil
}

func (p *Postgres) MarkEventsRead(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return p.q.MarkEventsRead(ctx, ids)
}
