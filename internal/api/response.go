// internal/api/response.go
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"repo-mirror/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
}

type eventResponse struct {
	ID        uuid.UUID       `json:"id"`
	Channel   string          `json:"channel"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

type rateLimitResponse struct {
	Provider  model.Provider        `json:"provider"`
	Limit     int                   `json:"limit"`
	Remaining int                   `json:"remaining"`
	Used      int                   `json:"used"`
	Reset     time.Time             `json:"reset"`
	Status    model.RateLimitStatus `json:"status"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

type jobResponse struct {
	ID               uuid.UUID        `json:"id"`
	JobType          model.JobType    `json:"jobType"`
	Status           model.RepoStatus `json:"status"`
	Message          string           `json:"message"`
	RepositoryName   string           `json:"repositoryName,omitempty"`
	OrganizationName string           `json:"organizationName,omitempty"`
	BatchID          *uuid.UUID       `json:"batchId,omitempty"`
	TotalItems       int              `json:"totalItems"`
	CompletedItems   int              `json:"completedItems"`
	InProgress       bool             `json:"inProgress"`
	StartedAt        *time.Time       `json:"startedAt,omitempty"`
	CompletedAt      *time.Time       `json:"completedAt,omitempty"`
}

type repairResponse struct {
	Checked   int      `json:"checked"`
	Converged []string `json:"converged"`
	Failed    []string `json:"failed"`
	Unchanged []string `json:"unchanged"`
}

func toEventResponse(ev model.Event) eventResponse {
	return eventResponse{ID: ev.ID, Channel: ev.Channel, Payload: ev.Payload, CreatedAt: ev.CreatedAt}
}

func toRateLimitResponse(s model.RateLimitState) rateLimitResponse {
	return rateLimitResponse{
		Provider:  s.Provider,
		Limit:     s.Limit,
		Remaining: s.Remaining,
		Used:      s.Used,
		Reset:     s.Reset,
		Status:    s.Status,
		UpdatedAt: s.UpdatedAt,
	}
}

func toJobResponse(j *model.MirrorJob) jobResponse {
	return jobResponse{
		ID:               j.ID,
		JobType:          j.JobType,
		Status:           j.Status,
		Message:          j.Message,
		RepositoryName:   j.RepositoryName,
		OrganizationName: j.OrganizationName,
		BatchID:          j.BatchID,
		TotalItems:       j.TotalItems,
		CompletedItems:   j.CompletedItems,
		InProgress:       j.InProgress,
		StartedAt:        j.StartedAt,
		CompletedAt:      j.CompletedAt,
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Error: message})
}
