// internal/model/models.go
package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository is a single source repository tracked for mirroring (a unit).
type Repository struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	ConfigID uuid.UUID

	Name     string
	FullName string
	CloneURL string
	HTMLURL  string

	Owner          string
	Organization   *string
	DestinationOrg *string
	Description    string

	IsPrivate  bool
	IsFork     bool
	IsArchived bool
	IsStarred  bool
	IsDisabled bool

	Status           RepoStatus
	MirroredLocation string
	LastMirrored     *time.Time
	ErrorMessage     string
	SourceUpdatedAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizedFullName is the key used by the (user, full name) uniqueness constraint.
func (r *Repository) NormalizedFullName() string {
	return NormalizeName(r.FullName)
}

// OrganizationName returns the source organization or "" for personal repositories.
func (r *Repository) OrganizationName() string {
	if r.Organization == nil {
		return ""
	}
	return *r.Organization
}

// Organization is a source organization a user has opted into.
type Organization struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	ConfigID       uuid.UUID
	Name           string
	MembershipRole string
	DestinationOrg *string
	IsIncluded     bool
	Status         RepoStatus
	LastMirrored   *time.Time
	ErrorMessage   string
	RepositoryCnt  int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// JobType distinguishes what a MirrorJob did.
type JobType string

const (
	JobTypeMirror JobType = "mirror"
	JobTypeSync   JobType = "sync"
	JobTypeRetry  JobType = "retry"
)

// MirrorJob is the audit and resilience record of one execution.
type MirrorJob struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	RepositoryID     *uuid.UUID
	RepositoryName   string
	OrganizationID   *uuid.UUID
	OrganizationName string
	Status           RepoStatus
	Message          string
	Details          string
	JobType          JobType
	BatchID          *uuid.UUID
	TotalItems       int
	CompletedItems   int
	ItemIDs          []string
	CompletedItemIDs []string
	InProgress       bool
	StartedAt        *time.Time
	CompletedAt      *time.Time
	LastCheckpoint   *time.Time
	CreatedAt        time.Time
}

// RemainingItemIDs returns ItemIDs minus CompletedItemIDs, preserving ItemIDs order.
func (j *MirrorJob) RemainingItemIDs() []string {
	done := make(map[string]struct{}, len(j.CompletedItemIDs))
	for _, id := range j.CompletedItemIDs {
		done[id] = struct{}{}
	}
	remaining := make([]string, 0, len(j.ItemIDs))
	for _, id := range j.ItemIDs {
		if _, ok := done[id]; !ok {
			remaining = append(remaining, id)
		}
	}
	return remaining
}

// Provider identifies a platform whose API quota is tracked.
type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderGitea  Provider = "gitea"
)

// RateLimitStatus is derived from remaining/limit.
type RateLimitStatus string

const (
	RateLimitOK       RateLimitStatus = "ok"
	RateLimitWarning  RateLimitStatus = "warning"
	RateLimitLimited  RateLimitStatus = "limited"
	RateLimitExceeded RateLimitStatus = "exceeded"
)

// RateLimitState is the per (user, provider) quota snapshot.
type RateLimitState struct {
	UserID     uuid.UUID
	Provider   Provider
	Limit      int
	Remaining  int
	Used       int
	Reset      time.Time
	RetryAfter *time.Duration
	Status     RateLimitStatus
	UpdatedAt  time.Time
}

// Event is an append-only notification on a per-user channel.
type Event struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Channel   string
	Payload   json.RawMessage
	Read      bool
	CreatedAt time.Time
}

// SourceRepository is a repository as reported by the source platform.
type SourceRepository struct {
	Name         string
	FullName     string
	Owner        string
	Organization string
	CloneURL     string
	HTMLURL      string
	Description  string
	IsPrivate    bool
	IsFork       bool
	IsArchived   bool
	IsStarred    bool
	IsDisabled   bool
	PushedAt     *time.Time
}

// SourceOrganization is an organization membership reported by the source platform.
type SourceOrganization struct {
	Name string
	Role string
}

// Issue is a source issue with the data needed to recreate it.
type Issue struct {
	Number    int
	Title     string
	Body      string
	Author    string
	HTMLURL   string
	Closed    bool
	Labels    []Label
	CreatedAt time.Time
}

// Label is an issue label.
type Label struct {
	Name        string
	Color       string
	Description string
}

// Comment is an issue comment.
type Comment struct {
	Author    string
	Body      string
	CreatedAt time.Time
}

// Release is a source release.
type Release struct {
	TagName    string
	Name       string
	Body       string
	Draft      bool
	Prerelease bool
	CreatedAt  time.Time
}

// NormalizeName lower-cases and trims a repository or organization name for comparison.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
