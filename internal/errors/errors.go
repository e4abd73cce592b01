// internal/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by platform clients and stores when a resource does not exist.
var ErrNotFound = stderrors.New("not found")

// ErrMissingCredentials is returned for configurations without source or destination tokens.
var ErrMissingCredentials = stderrors.New("configuration is missing source or destination credentials")

// ErrInvalidRepoFormat is returned when a repository name is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// ConflictError means another creator won a race for the same resource. Callers should
// re-query existence instead of failing.
type ConflictError struct {
	Resource string
	Name     string
	Detail   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists (re-query): %s", e.Resource, e.Name, e.Detail)
}

// MalformedResponseError wraps a response that violated the API contract.
type MalformedResponseError struct {
	Method      string
	URL         string
	StatusCode  int
	ContentType string
	Body        string
	Err         error
}

func (e *MalformedResponseError) Error() string {
	msg := fmt.Sprintf("malformed response from %s %s: status %d, content-type %q, body %q",
		e.Method, e.URL, e.StatusCode, e.ContentType, e.Body)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// APIError is a non-success status from a platform API.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
}

// RateLimitError signals an exhausted quota. The governor waits for reset.
type RateLimitError struct {
	Provider   string
	Reset      time.Time
	RetryAfter *time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limit exceeded, resets at %s", e.Provider, e.Reset.Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// TooManyRequestsError is a generic 429 / secondary limit. Handled with exponential backoff.
type TooManyRequestsError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *TooManyRequestsError) Error() string {
	return fmt.Sprintf("%s: too many requests", e.Provider)
}

func (e *TooManyRequestsError) Unwrap() error {
	return e.Err
}

// NoDestinationError is returned by sync when the unit exists at no known destination location.
type NoDestinationError struct {
	Repo      string
	Locations []string
}

func (e *NoDestinationError) Error() string {
	return fmt.Sprintf("repository %s not found at destination (checked %v)", e.Repo, e.Locations)
}

// NotResumableError is returned by recovery for jobs without item tracking.
type NotResumableError struct {
	JobID string
}

func (e *NotResumableError) Error() string {
	return fmt.Sprintf("job %s has no item tracking and cannot be resumed", e.JobID)
}

// InvalidTransitionError is returned when an operation would move a unit to a status
// that is not a legal successor of its current one.
type InvalidTransitionError struct {
	Repo string
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("repository %s cannot move from %s to %s", e.Repo, e.From, e.To)
}

// IsConflict reports whether err is a resolvable creation race.
func IsConflict(err error) bool {
	var c *ConflictError
	return stderrors.As(err, &c)
}

// IsRateLimited reports whether err carries an exhausted-quota signal.
func IsRateLimited(err error) bool {
	var r *RateLimitError
	return stderrors.As(err, &r)
}

// IsTooManyRequests reports whether err is a generic throttling signal.
func IsTooManyRequests(err error) bool {
	var t *TooManyRequestsError
	return stderrors.As(err, &t)
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}

// IsRetryable reports whether a failure is worth another attempt through the executor.
// Malformed responses, conflicts and 4xx errors are not. Quota errors are not either:
// the rate-limit governor owns those.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsConflict(err) || IsNotFound(err) || IsRateLimited(err) || IsTooManyRequests(err) {
		return false
	}
	var m *MalformedResponseError
	if stderrors.As(err, &m) {
		return false
	}
	var nd *NoDestinationError
	if stderrors.As(err, &nd) {
		return false
	}
	var it *InvalidTransitionError
	if stderrors.As(err, &it) {
		return false
	}
	if stderrors.Is(err, ErrMissingCredentials) {
		return false
	}
	var api *APIError
	if stderrors.As(err, &api) {
		return api.StatusCode >= 500
	}
	return true
}
