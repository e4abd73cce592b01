// Package events writes notifications to per-user channels for polling readers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"repo-mirror/internal/model"
)

// Payload kinds.
const (
	KindJob        = "job"
	KindRepository = "repository"
	KindRateLimit  = "rate_limit"
)

// Sink persists events.
type Sink interface {
	InsertEvent(ctx context.Context, ev model.Event) error
}

// Channel is the per-user channel every mirror notification is written to.
func Channel(userID uuid.UUID) string {
	return "mirror:" + userID.String()
}

type JobPayload struct {
	Kind           string           `json:"kind"`
	JobID          uuid.UUID        `json:"jobId"`
	JobType        model.JobType    `json:"jobType"`
	RepositoryID   *uuid.UUID       `json:"repositoryId,omitempty"`
	RepositoryName string           `json:"repositoryName,omitempty"`
	Organization   string           `json:"organizationName,omitempty"`
	Status         model.RepoStatus `json:"status"`
	Message        string           `json:"message"`
	Completed      int              `json:"completedItems,omitempty"`
	Total          int              `json:"totalItems,omitempty"`
}

type RepositoryPayload struct {
	Kind         string           `json:"kind"`
	RepositoryID uuid.UUID        `json:"repositoryId"`
	FullName     string           `json:"fullName"`
	Status       model.RepoStatus `json:"status"`
	Message      string           `json:"message,omitempty"`
}

// RateLimitPayload reports a threshold crossing or a pause/resume around a reset.
type RateLimitPayload struct {
	Kind        string                `json:"kind"`
	Provider    model.Provider        `json:"provider"`
	Event       string                `json:"event"`
	Threshold   int                   `json:"threshold,omitempty"`
	Status      model.RateLimitStatus `json:"status"`
	Limit       int                   `json:"limit"`
	Remaining   int                   `json:"remaining"`
	ResetAt     time.Time             `json:"resetAt"`
	WaitSeconds int                   `json:"waitSeconds,omitempty"`
}

// Publisher serializes payloads into Event rows. A nil Publisher drops everything.
type Publisher struct {
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
}

func NewPublisher(sink Sink, logger *slog.Logger) *Publisher {
	return &Publisher{sink: sink, logger: logger, now: time.Now}
}

// Publish writes payload to the user's channel.
func (p *Publisher) Publish(ctx context.Context, userID uuid.UUID, payload any) error {
	if p == nil || p.sink == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	return p.sink.InsertEvent(ctx, model.Event{
		ID:        uuid.New(),
		UserID:    userID,
		Channel:   Channel(userID),
		Payload:   raw,
		CreatedAt: p.now(),
	})
}

// Emit is Publish for callers that must not fail because a notification was lost.
func (p *Publisher) Emit(ctx context.Context, userID uuid.UUID, payload any) {
	if err := p.Publish(ctx, userID, payload); err != nil {
		p.logger.Warn("Failed to publish event", "user_id", userID, "error", err)
	}
}

// JobEvent builds the payload announcing a job record.
func JobEvent(job *model.MirrorJob) JobPayload {
	return JobPayload{
		Kind:           KindJob,
		JobID:          job.ID,
		JobType:        job.JobType,
		RepositoryID:   job.RepositoryID,
		RepositoryName: job.RepositoryName,
		Organization:   job.OrganizationName,
		Status:         job.Status,
		Message:        job.Message,
		Completed:      job.CompletedItems,
		Total:          job.TotalItems,
	}
}

func RepositoryEvent(repo *model.Repository) RepositoryPayload {
	return RepositoryPayload{
		Kind:         KindRepository,
		RepositoryID: repo.ID,
		FullName:     repo.FullName,
		Status:       repo.Status,
		Message:      repo.ErrorMessage,
	}
}
