// Package retry runs a batch of independent items with bounded concurrency and
// per-item retries. One item exhausting its retries never stops the others.
package retry

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "repo-mirror/internal/errors"
)

const (
	DefaultConcurrency = 3
	DefaultMaxRetries  = 2
	DefaultRetryDelay  = 2 * time.Second
)

// Result is the outcome of one item.
type Result[T, R any] struct {
	Index    int
	Item     T
	Value    R
	Err      error
	Attempts int
}

// Options configure Run. A zero Concurrency means DefaultConcurrency; a zero
// MaxRetries means a single attempt per item.
type Options[T, R any] struct {
	Concurrency int
	MaxRetries  int
	RetryDelay  time.Duration

	// OnProgress is called once per item after it settles. Calls are serialized.
	OnProgress func(completed, total int, result Result[T, R])
	// OnRetry is called before each re-attempt; attempt starts at 1.
	OnRetry func(item T, attempt int, err error)
	// ShouldRetry decides whether a failure gets another attempt. Defaults to errors.IsRetryable.
	ShouldRetry func(err error) bool

	// Sleep replaces the context-aware delay between attempts. Used by tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run calls fn for every item and returns one Result per item in input order.
// At most Concurrency calls are in flight. A cancelled ctx stops retries; items
// not yet started fail with ctx.Err().
func Run[T, R any](ctx context.Context, items []T, fn func(ctx context.Context, item T) (R, error), opts Options[T, R]) []Result[T, R] {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.ShouldRetry == nil {
		opts.ShouldRetry = apperrors.IsRetryable
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	results := make([]Result[T, R], len(items))
	var (
		mu        sync.Mutex
		completed int
	)

	var g errgroup.Group
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			res := runItem(ctx, i, item, fn, opts)
			results[i] = res

			mu.Lock()
			defer mu.Unlock()
			completed++
			if opts.OnProgress != nil {
				opts.OnProgress(completed, len(items), res)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func runItem[T, R any](ctx context.Context, index int, item T, fn func(context.Context, T) (R, error), opts Options[T, R]) Result[T, R] {
	res := Result[T, R]{Index: index, Item: item}
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}
		res.Attempts++
		value, err := fn(ctx, item)
		if err == nil {
			res.Value = value
			res.Err = nil
			return res
		}
		res.Err = err
		if attempt >= opts.MaxRetries || !opts.ShouldRetry(err) {
			return res
		}
		if opts.OnRetry != nil {
			opts.OnRetry(item, attempt+1, err)
		}
		if opts.RetryDelay > 0 {
			if err := opts.Sleep(ctx, opts.RetryDelay); err != nil {
				return res
			}
		}
	}
}

// Failures returns the results that ended in an error.
func Failures[T, R any](results []Result[T, R]) []Result[T, R] {
	var out []Result[T, R]
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Succeeded counts the results without an error.
func Succeeded[T, R any](results []Result[T, R]) int {
	n := 0
	for _, r := range results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
