// Package ratelimit tracks provider API quotas per user and paces calls around them.
package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	apperrors "repo-mirror/internal/errors"
	"repo-mirror/internal/events"
	"repo-mirror/internal/model"
	"repo-mirror/internal/telemetry"
)

const (
	// MinBuffer is the absolute remaining-call floor below which work pauses.
	MinBuffer = 100
	// PauseThreshold is the remaining/limit ratio below which work pauses.
	PauseThreshold = 0.05
	// WarningThreshold is the remaining/limit ratio below which the state is a warning.
	WarningThreshold = 0.20

	// Usage percentages that trigger a notification, and the level that re-arms them.
	notifyWarningUsed   = 80
	notifyExhaustedUsed = 100
	rearmBelowUsed      = 50

	DefaultMaxBackoff     = 60 * time.Second
	DefaultInitialBackoff = time.Second
)

// Store persists quota snapshots.
type Store interface {
	UpsertRateLimit(ctx context.Context, state model.RateLimitState) error
	GetRateLimit(ctx context.Context, userID uuid.UUID, provider model.Provider) (*model.RateLimitState, error)
}

// Options tunes a Governor. Zero values select the defaults.
type Options struct {
	MaxBackoff     time.Duration
	InitialBackoff time.Duration
	Now            func() time.Time
	Sleep          func(ctx context.Context, d time.Duration) error
}

type key struct {
	userID   uuid.UUID
	provider model.Provider
}

// Governor maintains RateLimitState per (user, provider).
type Governor struct {
	store   Store
	events  *events.Publisher
	metrics *telemetry.Metrics
	logger  *slog.Logger

	maxBackoff     time.Duration
	initialBackoff time.Duration
	now            func() time.Time
	sleep          func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	states   map[key]model.RateLimitState
	notified map[key]int
}

func NewGovernor(store Store, publisher *events.Publisher, metrics *telemetry.Metrics, logger *slog.Logger, opts Options) *Governor {
	g := &Governor{
		store:          store,
		events:         publisher,
		metrics:        metrics,
		logger:         logger,
		maxBackoff:     opts.MaxBackoff,
		initialBackoff: opts.InitialBackoff,
		now:            opts.Now,
		sleep:          opts.Sleep,
		states:         make(map[key]model.RateLimitState),
		notified:       make(map[key]int),
	}
	if g.maxBackoff <= 0 {
		g.maxBackoff = DefaultMaxBackoff
	}
	if g.initialBackoff <= 0 {
		g.initialBackoff = DefaultInitialBackoff
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.sleep == nil {
		g.sleep = sleepContext
	}
	return g
}

// Classify derives a status from a quota snapshot.
func Classify(limit, remaining int) model.RateLimitStatus {
	if remaining <= 0 {
		return model.RateLimitExceeded
	}
	ratio := 1.0
	if limit > 0 {
		ratio = float64(remaining) / float64(limit)
	}
	switch {
	case remaining < MinBuffer || ratio < PauseThreshold:
		return model.RateLimitLimited
	case ratio < WarningThreshold:
		return model.RateLimitWarning
	default:
		return model.RateLimitOK
	}
}

// Update records a snapshot, classifies it, persists it and emits threshold
// notifications. It returns the stored state.
func (g *Governor) Update(ctx context.Context, state model.RateLimitState) (model.RateLimitState, error) {
	if state.Used == 0 && state.Limit > 0 {
		state.Used = state.Limit - state.Remaining
	}
	state.Status = Classify(state.Limit, state.Remaining)
	state.UpdatedAt = g.now()

	k := key{state.UserID, state.Provider}
	g.mu.Lock()
	g.states[k] = state
	threshold := g.crossedThreshold(k, state)
	g.mu.Unlock()

	g.metrics.SetRateLimitRemaining(string(state.Provider), state.Remaining)

	if threshold > 0 {
		g.logger.Warn("Rate limit threshold crossed",
			"user_id", state.UserID, "provider", state.Provider, "used_percent", threshold, "remaining", state.Remaining)
		g.events.Emit(ctx, state.UserID, events.RateLimitPayload{
			Kind:      events.KindRateLimit,
			Provider:  state.Provider,
			Event:     "threshold",
			Threshold: threshold,
			Status:    state.Status,
			Limit:     state.Limit,
			Remaining: state.Remaining,
			ResetAt:   state.Reset,
		})
	}

	if err := g.store.UpsertRateLimit(ctx, state); err != nil {
		return state, err
	}
	return state, nil
}

// crossedThreshold returns the usage threshold newly crossed by state, or 0.
// Each threshold fires once until usage falls back under the re-arm level.
// Callers hold g.mu.
func (g *Governor) crossedThreshold(k key, state model.RateLimitState) int {
	if state.Limit <= 0 {
		return 0
	}
	usedPct := state.Used * 100 / state.Limit
	last := g.notified[k]
	switch {
	case usedPct >= notifyExhaustedUsed && last < notifyExhaustedUsed:
		g.notified[k] = notifyExhaustedUsed
		return notifyExhaustedUsed
	case usedPct >= notifyWarningUsed && last < notifyWarningUsed:
		g.notified[k] = notifyWarningUsed
		return notifyWarningUsed
	case usedPct < rearmBelowUsed:
		delete(g.notified, k)
	}
	return 0
}

// UpdateFromHeaders ingests X-RateLimit-* and Retry-After response headers.
// Responses without quota headers are ignored.
func (g *Governor) UpdateFromHeaders(ctx context.Context, userID uuid.UUID, provider model.Provider, h http.Header) error {
	limit, okLimit := headerInt(h, "X-RateLimit-Limit")
	remaining, okRemaining := headerInt(h, "X-RateLimit-Remaining")
	if !okLimit || !okRemaining {
		return nil
	}
	state := model.RateLimitState{
		UserID:    userID,
		Provider:  provider,
		Limit:     limit,
		Remaining: remaining,
	}
	if used, ok := headerInt(h, "X-RateLimit-Used"); ok {
		state.Used = used
	}
	if reset, ok := headerInt(h, "X-RateLimit-Reset"); ok {
		state.Reset = time.Unix(int64(reset), 0)
	}
	if secs, ok := headerInt(h, "Retry-After"); ok {
		d := time.Duration(secs) * time.Second
		state.RetryAfter = &d
	}
	_, err := g.Update(ctx, state)
	return err
}

// Observer adapts UpdateFromHeaders to a platform client's header hook.
func (g *Governor) Observer(userID uuid.UUID, provider model.Provider) func(ctx context.Context, h http.Header) {
	return func(ctx context.Context, h http.Header) {
		if err := g.UpdateFromHeaders(ctx, userID, provider, h); err != nil {
			g.logger.Warn("Failed to record rate limit headers", "user_id", userID, "provider", provider, "error", err)
		}
	}
}

// State returns the last known snapshot.
func (g *Governor) State(userID uuid.UUID, provider model.Provider) (model.RateLimitState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.states[key{userID, provider}]
	return s, ok
}

// ShouldPause reports whether work for the user should stop until the quota resets.
func (g *Governor) ShouldPause(userID uuid.UUID, provider model.Provider) bool {
	s, ok := g.State(userID, provider)
	if !ok {
		return false
	}
	return s.Status == model.RateLimitLimited || s.Status == model.RateLimitExceeded
}

// CheckQuota fetches a fresh snapshot through fetch and records it.
func (g *Governor) CheckQuota(ctx context.Context, userID uuid.UUID, provider model.Provider, fetch func(context.Context) (model.RateLimitState, error)) (model.RateLimitState, error) {
	state, err := fetch(ctx)
	if err != nil {
		return model.RateLimitState{}, err
	}
	state.UserID = userID
	state.Provider = provider
	return g.Update(ctx, state)
}

// WaitForReset sleeps until the quota resets, announcing the pause before and the
// resumption after, then resets the local counters to a full quota.
func (g *Governor) WaitForReset(ctx context.Context, userID uuid.UUID, provider model.Provider) error {
	state, ok := g.State(userID, provider)
	if !ok {
		stored, err := g.store.GetRateLimit(ctx, userID, provider)
		if err != nil && !apperrors.IsNotFound(err) {
			return err
		}
		if stored != nil {
			state = *stored
		} else {
			state = model.RateLimitState{UserID: userID, Provider: provider}
		}
	}

	var wait time.Duration
	if state.RetryAfter != nil {
		wait = *state.RetryAfter
	} else if !state.Reset.IsZero() {
		wait = state.Reset.Sub(g.now())
	}
	if wait < 0 {
		wait = 0
	}

	g.logger.Info("Waiting for rate limit reset", "user_id", userID, "provider", provider, "wait", wait)
	g.metrics.RecordRateLimitWait(string(provider))
	g.events.Emit(ctx, userID, events.RateLimitPayload{
		Kind:        events.KindRateLimit,
		Provider:    provider,
		Event:       "waiting",
		Status:      state.Status,
		Limit:       state.Limit,
		Remaining:   state.Remaining,
		ResetAt:     state.Reset,
		WaitSeconds: int(wait.Seconds()),
	})

	if err := g.sleep(ctx, wait); err != nil {
		return err
	}

	state.Remaining = state.Limit
	state.Used = 0
	state.RetryAfter = nil
	state.Status = model.RateLimitOK
	state.UpdatedAt = g.now()

	k := key{userID, provider}
	g.mu.Lock()
	g.states[k] = state
	delete(g.notified, k)
	g.mu.Unlock()

	g.events.Emit(ctx, userID, events.RateLimitPayload{
		Kind:      events.KindRateLimit,
		Provider:  provider,
		Event:     "resumed",
		Status:    state.Status,
		Limit:     state.Limit,
		Remaining: state.Remaining,
		ResetAt:   state.Reset,
	})
	g.logger.Info("Resumed after rate limit reset", "user_id", userID, "provider", provider)

	return g.store.UpsertRateLimit(ctx, state)
}

// Pace blocks until the reset when the known state says work should pause.
func (g *Governor) Pace(ctx context.Context, userID uuid.UUID, provider model.Provider) error {
	if !g.ShouldPause(userID, provider) {
		return nil
	}
	return g.WaitForReset(ctx, userID, provider)
}

// RetryWithBackoff runs fn. On a rate-limit error it waits for the reset and
// retries; on a too-many-requests error it backs off exponentially up to the
// configured maximum delay. Any other error is returned at once without
// consuming a retry.
func (g *Governor) RetryWithBackoff(ctx context.Context, userID uuid.UUID, provider model.Provider, maxRetries int, fn func(context.Context) error) error {
	_, err := Call(ctx, g, userID, provider, maxRetries, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call is RetryWithBackoff for functions that return a value.
func Call[T any](ctx context.Context, g *Governor, userID uuid.UUID, provider model.Provider, maxRetries int, fn func(context.Context) (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.initialBackoff
	bo.MaxInterval = g.maxBackoff
	bo.Reset()

	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		var rle *apperrors.RateLimitError
		var tmr *apperrors.TooManyRequestsError
		switch {
		case errors.As(err, &rle):
			if attempt >= maxRetries {
				return result, err
			}
			g.recordExhausted(ctx, userID, provider, rle)
			if werr := g.WaitForReset(ctx, userID, provider); werr != nil {
				return result, werr
			}
		case errors.As(err, &tmr):
			if attempt >= maxRetries {
				return result, err
			}
			delay := bo.NextBackOff()
			if tmr.RetryAfter > delay {
				delay = tmr.RetryAfter
			}
			if delay > g.maxBackoff || delay < 0 {
				delay = g.maxBackoff
			}
			g.logger.Warn("Too many requests, backing off",
				"user_id", userID, "provider", provider, "attempt", attempt+1, "delay", delay)
			if serr := g.sleep(ctx, delay); serr != nil {
				return result, serr
			}
		default:
			return result, err
		}
	}
}

// recordExhausted folds the reset information of a rate-limit error into the state.
func (g *Governor) recordExhausted(ctx context.Context, userID uuid.UUID, provider model.Provider, rle *apperrors.RateLimitError) {
	state, _ := g.State(userID, provider)
	state.UserID = userID
	state.Provider = provider
	state.Remaining = 0
	if state.Limit > 0 {
		state.Used = state.Limit
	}
	if !rle.Reset.IsZero() {
		state.Reset = rle.Reset
	}
	state.RetryAfter = rle.RetryAfter
	if _, err := g.Update(ctx, state); err != nil {
		g.logger.Warn("Failed to persist exhausted rate limit", "user_id", userID, "provider", provider, "error", err)
	}
}

func headerInt(h http.Header, name string) (int, bool) {
	v := h.Get(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
