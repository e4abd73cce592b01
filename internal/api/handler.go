// internal/api/handler.go
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "repo-mirror/internal/errors"
	"repo-mirror/internal/events"
	"repo-mirror/internal/mirror"
	"repo-mirror/internal/model"
	"repo-mirror/internal/scheduler"
	"repo-mirror/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// Runner triggers a configuration's cycle outside the schedule.
type Runner interface {
	RunConfigNow(ctx context.Context, configID uuid.UUID) error
}

// Operations are the mirror operations exposed over HTTP.
type Operations interface {
	MirrorOrganization(ctx context.Context, org *model.Organization, cfg *model.Configuration) (*model.MirrorJob, error)
	RepairStatus(ctx context.Context, userID uuid.UUID) (mirror.RepairReport, error)
}

// Remediator fails every job left in progress.
type Remediator interface {
	FailAllInProgress(ctx context.Context) (int64, error)
}

// Dependencies wires the router. A nil Gatherer disables /metrics.
type Dependencies struct {
	Store      store.Store
	Runner     Runner
	Operations Operations
	Remediator Remediator
	Gatherer   prometheus.Gatherer
	Logger     *slog.Logger
}

// Handler is the container for API dependencies.
type Handler struct {
	store      store.Store
	runner     Runner
	ops        Operations
	remediator Remediator
	logger     *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(deps Dependencies) http.Handler {
	h := &Handler{
		store:      deps.Store,
		runner:     deps.Runner,
		ops:        deps.Operations,
		remediator: deps.Remediator,
		logger:     deps.Logger,
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.healthCheck)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Get("/users/{userID}/events", h.getEvents)
			r.Get("/users/{userID}/rate-limits", h.getRateLimits)
			r.Get("/users/{userID}/jobs", h.getJobs)
			r.Post("/jobs/fail-in-progress", h.failInProgress)
		})
		// Mirror runs can outlast any sensible request timeout.
		r.Post("/configs/{configID}/run", h.runConfig)
		r.Post("/organizations/{orgID}/mirror", h.mirrorOrganization)
		r.Post("/users/{userID}/repair", h.repairStatus)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getEvents returns unread events and marks them read.
// GET /v1/users/{userID}/events?channel=&since=&limit=
func (h *Handler) getEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := uuidParam(w, r, "userID")
	if !ok {
		return
	}
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		channel = events.Channel(userID)
	}
	var since time.Time
	if s := r.URL.Query().Get("since"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid 'since' parameter. Must be an RFC3339 timestamp.")
			return
		}
		since = parsed
	}

	evs, err := h.store.ListUnreadEvents(r.Context(), userID, channel, since, limit)
	if err != nil {
		h.internalError(w, "Failed to list events", err)
		return
	}
	ids := make([]uuid.UUID, 0, len(evs))
	out := make([]eventResponse, 0, len(evs))
	for _, ev := range evs {
		ids = append(ids, ev.ID)
		out = append(out, toEventResponse(ev))
	}
	if len(ids) > 0 {
		if err := h.store.MarkEventsRead(r.Context(), ids); err != nil {
			h.internalError(w, "Failed to mark events read", err)
			return
		}
	}
	respondWithJSON(w, http.StatusOK, out)
}

// GET /v1/users/{userID}/rate-limits
func (h *Handler) getRateLimits(w http.ResponseWriter, r *http.Request) {
	userID, ok := uuidParam(w, r, "userID")
	if !ok {
		return
	}
	states, err := h.store.ListRateLimits(r.Context(), userID)
	if err != nil {
		h.internalError(w, "Failed to list rate limits", err)
		return
	}
	out := make([]rateLimitResponse, 0, len(states))
	for _, s := range states {
		out = append(out, toRateLimitResponse(s))
	}
	respondWithJSON(w, http.StatusOK, out)
}

// GET /v1/users/{userID}/jobs?limit=N
func (h *Handler) getJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := uuidParam(w, r, "userID")
	if !ok {
		return
	}
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	jobs, err := h.store.ListJobs(r.Context(), userID, limit)
	if err != nil {
		h.internalError(w, "Failed to list jobs", err)
		return
	}
	out := make([]jobResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, toJobResponse(&jobs[i]))
	}
	respondWithJSON(w, http.StatusOK, out)
}

// runConfig runs one configuration's cycle now.
// POST /v1/configs/{configID}/run
func (h *Handler) runConfig(w http.ResponseWriter, r *http.Request) {
	configID, ok := uuidParam(w, r, "configID")
	if !ok {
		return
	}
	err := h.runner.RunConfigNow(r.Context(), configID)
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "completed"})
	case errors.Is(err, scheduler.ErrBusy):
		respondWithError(w, http.StatusConflict, "A sync cycle is already running")
	default:
		h.operationError(w, "Failed to run configuration", err)
	}
}

// POST /v1/organizations/{orgID}/mirror
func (h *Handler) mirrorOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, ok := uuidParam(w, r, "orgID")
	if !ok {
		return
	}
	org, err := h.store.GetOrganization(r.Context(), orgID)
	if err != nil {
		h.operationError(w, "Failed to get organization", err)
		return
	}
	cfg, err := h.store.GetConfig(r.Context(), org.ConfigID)
	if err != nil {
		h.operationError(w, "Failed to get configuration", err)
		return
	}
	job, err := h.ops.MirrorOrganization(r.Context(), org, cfg)
	if err != nil {
		h.operationError(w, "Failed to mirror organization", err)
		return
	}
	respondWithJSON(w, http.StatusOK, toJobResponse(job))
}

// POST /v1/jobs/fail-in-progress
func (h *Handler) failInProgress(w http.ResponseWriter, r *http.Request) {
	n, err := h.remediator.FailAllInProgress(r.Context())
	if err != nil {
		h.internalError(w, "Failed to fail in-progress jobs", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int64{"failed": n})
}

// POST /v1/users/{userID}/repair
func (h *Handler) repairStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := uuidParam(w, r, "userID")
	if !ok {
		return
	}
	report, err := h.ops.RepairStatus(r.Context(), userID)
	if err != nil {
		h.operationError(w, "Failed to repair status", err)
		return
	}
	respondWithJSON(w, http.StatusOK, repairResponse{
		Checked:   report.Checked,
		Converged: nonNil(report.Converged),
		Failed:    nonNil(report.Failed),
		Unchanged: nonNil(report.Unchanged),
	})
}

// operationError maps domain errors to a status code.
func (h *Handler) operationError(w http.ResponseWriter, msg string, err error) {
	var transition *apperrors.InvalidTransitionError
	switch {
	case apperrors.IsNotFound(err):
		respondWithError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, apperrors.ErrMissingCredentials):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &transition):
		respondWithError(w, http.StatusConflict, err.Error())
	default:
		h.internalError(w, msg, err)
	}
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, "error", err)
	respondWithError(w, http.StatusInternalServerError, "Internal server error")
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid '"+name+"' parameter. Must be a UUID.")
		return uuid.Nil, false
	}
	return id, true
}

func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return defaultListLimit, true
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > maxListLimit {
		respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 100.")
		return 0, false
	}
	return limit, true
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
