// internal/store/convert.go
package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"repo-mirror/internal/database"
	"repo-mirror/internal/model"
)

func toTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil || t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func fromTimestamptz(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func toText(s *string) pgtype.Text {
	if s == nil || *s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func fromText(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func toNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func fromNullUUID(id uuid.NullUUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	u := id.UUID
	return &u
}

func configFromRow(row database.Config) (*model.Configuration, error) {
	src, dst, flt, sch, cln, err := model.DecodeSections(
		row.SourceConfig, row.DestinationConfig, row.FilterConfig, row.ScheduleConfig, row.CleanupConfig)
	if err != nil {
		return nil, err
	}
	return &model.Configuration{
		ID:          row.ID,
		UserID:      row.UserID,
		Name:        row.Name,
		IsActive:    row.IsActive,
		Source:      src,
		Destination: dst,
		Filter:      flt,
		Schedule:    sch,
		Cleanup:     cln,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}, nil
}

func repositoryFromRow(row database.Repository) model.Repository {
	return model.Repository{
		ID:               row.ID,
		UserID:           row.UserID,
		ConfigID:         row.ConfigID,
		Name:             row.Name,
		FullName:         row.FullName,
		CloneURL:         row.CloneUrl,
		HTMLURL:          row.HtmlUrl,
		Owner:            row.Owner,
		Organization:     fromText(row.Organization),
		DestinationOrg:   fromText(row.DestinationOrg),
		Description:      row.Description,
		IsPrivate:        row.IsPrivate,
		IsFork:           row.IsFork,
		IsArchived:       row.IsArchived,
		IsStarred:        row.IsStarred,
		IsDisabled:       row.IsDisabled,
		Status:           model.RepoStatus(row.Status),
		MirroredLocation: row.MirroredLocation,
		LastMirrored:     fromTimestamptz(row.LastMirrored),
		ErrorMessage:     row.ErrorMessage,
		SourceUpdatedAt:  fromTimestamptz(row.SourceUpdatedAt),
		CreatedAt:        row.CreatedAt.Time,
		UpdatedAt:        row.UpdatedAt.Time,
	}
}

func repositoriesFromRows(rows []database.Repository) []model.Repository {
	out := make([]model.Repository, 0, len(rows))
	for _, row := range rows {
		out = append(out, repositoryFromRow(row))
	}
	return out
}

func insertParamsFromRepository(r model.Repository) database.InsertRepositoryParams {
	id := r.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	status := r.Status
	if status == "" {
		status = model.StatusImported
	}
	return database.InsertRepositoryParams{
		ID:                 id,
		UserID:             r.UserID,
		ConfigID:           r.ConfigID,
		Name:               r.Name,
		FullName:           r.FullName,
		NormalizedFullName: r.NormalizedFullName(),
		CloneUrl:           r.CloneURL,
		HtmlUrl:            r.HTMLURL,
		Owner:              r.Owner,
		Organization:       toText(r.Organization),
		DestinationOrg:     toText(r.DestinationOrg),
		Description:        r.Description,
		IsPrivate:          r.IsPrivate,
		IsFork:             r.IsFork,
		IsArchived:         r.IsArchived,
		IsStarred:          r.IsStarred,
		IsDisabled:         r.IsDisabled,
		Status:             string(status),
		SourceUpdatedAt:    toTimestamptz(r.SourceUpdatedAt),
	}
}

func organizationFromRow(row database.Organization) model.Organization {
	return model.Organization{
		ID:             row.ID,
		UserID:         row.UserID,
		ConfigID:       row.ConfigID,
		Name:           row.Name,
		MembershipRole: row.MembershipRole,
		DestinationOrg: fromText(row.DestinationOrg),
		IsIncluded:     row.IsIncluded,
		Status:         model.RepoStatus(row.Status),
		LastMirrored:   fromTimestamptz(row.LastMirrored),
		ErrorMessage:   row.ErrorMessage,
		RepositoryCnt:  int(row.RepositoryCount),
		CreatedAt:      row.CreatedAt.Time,
		UpdatedAt:      row.UpdatedAt.Time,
	}
}

func jobFromRow(row database.MirrorJob) model.MirrorJob {
	return model.MirrorJob{
		ID:               row.ID,
		UserID:           row.UserID,
		RepositoryID:     fromNullUUID(row.RepositoryID),
		RepositoryName:   row.RepositoryName,
		OrganizationID:   fromNullUUID(row.OrganizationID),
		OrganizationName: row.OrganizationName,
		Status:           model.RepoStatus(row.Status),
		Message:          row.Message,
		Details:          row.Details,
		JobType:          model.JobType(row.JobType),
		BatchID:          fromNullUUID(row.BatchID),
		TotalItems:       int(row.TotalItems),
		CompletedItems:   int(row.CompletedItems),
		ItemIDs:          row.ItemIds,
		CompletedItemIDs: row.CompletedItemIds,
		InProgress:       row.InProgress,
		StartedAt:        fromTimestamptz(row.StartedAt),
		CompletedAt:      fromTimestamptz(row.CompletedAt),
		LastCheckpoint:   fromTimestamptz(row.LastCheckpoint),
		CreatedAt:        row.CreatedAt.Time,
	}
}

func jobsFromRows(rows []database.MirrorJob) []model.MirrorJob {
	out := make([]model.MirrorJob, 0, len(rows))
	for _, row := range rows {
		out = append(out, jobFromRow(row))
	}
	return out
}

func rateLimitFromRow(row database.RateLimit) model.RateLimitState {
	state := model.RateLimitState{
		UserID:    row.UserID,
		Provider:  model.Provider(row.Provider),
		Limit:     int(row.RateLimit),
		Remaining: int(row.Remaining),
		Used:      int(row.Used),
		Reset:     row.ResetAt.Time,
		Status:    model.RateLimitStatus(row.Status),
		UpdatedAt: row.UpdatedAt.Time,
	}
	if row.RetryAfterSeconds.Valid {
		d := time.Duration(row.RetryAfterSeconds.Int32) * time.Second
		state.RetryAfter = &d
	}
	return state
}
