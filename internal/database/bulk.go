// internal/database/bulk.go
package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// PostgresMaxParams is the bind parameter ceiling of the extended query protocol.
const PostgresMaxParams = 65535

var insertRepositoryColumns = []string{
	"id", "user_id", "config_id", "name", "full_name", "normalized_full_name",
	"clone_url", "html_url", "owner", "organization", "destination_org", "description",
	"is_private", "is_fork", "is_archived", "is_starred", "is_disabled",
	"status", "source_updated_at",
}

// InsertRepositoryParams is one row of a bulk repository insert.
type InsertRepositoryParams struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	ConfigID           uuid.UUID
	Name               string
	FullName           string
	NormalizedFullName string
	CloneUrl           string
	HtmlUrl            string
	Owner              string
	Organization       pgtype.Text
	DestinationOrg     pgtype.Text
	Description        string
	IsPrivate          bool
	IsFork             bool
	IsArchived         bool
	IsStarred          bool
	IsDisabled         bool
	Status             string
	SourceUpdatedAt    pgtype.Timestamptz
}

func (p InsertRepositoryParams) values() []any {
	return []any{
		p.ID, p.UserID, p.ConfigID, p.Name, p.FullName, p.NormalizedFullName,
		p.CloneUrl, p.HtmlUrl, p.Owner, p.Organization, p.DestinationOrg, p.Description,
		p.IsPrivate, p.IsFork, p.IsArchived, p.IsStarred, p.IsDisabled,
		p.Status, p.SourceUpdatedAt,
	}
}

// InsertRepositoryColumnCount is the number of bind parameters per row.
func InsertRepositoryColumnCount() int {
	return len(insertRepositoryColumns)
}

// InsertRepositoriesIgnoreConflicts inserts rows in a single multi-row statement.
// Rows colliding with an existing (user_id, normalized_full_name) are dropped.
// Callers are responsible for keeping len(rows)*InsertRepositoryColumnCount()
// under PostgresMaxParams.
func (q *Queries) InsertRepositoriesIgnoreConflicts(ctx context.Context, rows []InsertRepositoryParams) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	cols := len(insertRepositoryColumns)
	args := make([]any, 0, len(rows)*cols)

	var sb strings.Builder
	sb.WriteString("INSERT INTO repositories (")
	sb.WriteString(strings.Join(insertRepositoryColumns, ", "))
	sb.WriteString(") VALUES ")
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*cols+c+1)
		}
		sb.WriteByte(')')
		args = append(args, row.values()...)
	}
	sb.WriteString(" ON CONFLICT (user_id, normalized_full_name) DO NOTHING")

	tag, err := q.db.Exec(ctx, sb.String(), args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
