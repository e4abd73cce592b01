package retry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "repo-mirror/internal/errors"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestRun_FailureIsIsolated(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	var (
		mu       sync.Mutex
		attempts = map[int]int{}
		inFlight int32
		peak     int32
		retries  []int
		progress []int
	)

	results := Run(context.Background(), items, func(ctx context.Context, item int) (int, error) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		attempts[item]++
		mu.Unlock()
		if item == 3 {
			return 0, errors.New("always fails")
		}
		return item * 10, nil
	}, Options[int, int]{
		Concurrency: 2,
		MaxRetries:  2,
		RetryDelay:  time.Second,
		Sleep:       noSleep,
		OnRetry: func(item, attempt int, err error) {
			mu.Lock()
			defer mu.Unlock()
			retries = append(retries, item)
		},
		OnProgress: func(completed, total int, _ Result[int, int]) {
			assert.Equal(t, 5, total)
			progress = append(progress, completed)
		},
	})

	require.Len(t, results, 5)
	failures := Failures(results)
	require.Len(t, failures, 1)
	assert.Equal(t, 3, failures[0].Item)
	assert.Equal(t, 3, failures[0].Attempts)
	assert.Equal(t, 4, Succeeded(results))

	assert.Equal(t, 3, attempts[3])
	for _, item := range []int{1, 2, 4, 5} {
		assert.Equal(t, 1, attempts[item])
		assert.Equal(t, item*10, results[item-1].Value)
	}
	assert.Equal(t, []int{3, 3}, retries)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, progress)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestRun_NonRetryableErrorsStopImmediately(t *testing.T) {
	var calls int32
	results := Run(context.Background(), []string{"a"}, func(ctx context.Context, item string) (struct{}, error) {
		atomic.AddInt32(&calls, 1)
		return struct{}{}, &apperrors.MalformedResponseError{StatusCode: 200, ContentType: "text/html"}
	}, Options[string, struct{}]{MaxRetries: 5, Sleep: noSleep})

	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRun_CustomShouldRetry(t *testing.T) {
	var calls int32
	results := Run(context.Background(), []int{1}, func(ctx context.Context, item int) (int, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return 0, &apperrors.APIError{StatusCode: 404}
		}
		return 7, nil
	}, Options[int, int]{
		MaxRetries:  3,
		Sleep:       noSleep,
		ShouldRetry: func(error) bool { return true },
	})

	require.NoError(t, results[0].Err)
	assert.Equal(t, 7, results[0].Value)
	assert.Equal(t, 3, results[0].Attempts)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	results := Run(ctx, []int{1, 2, 3}, func(ctx context.Context, item int) (int, error) {
		atomic.AddInt32(&calls, 1)
		return item, nil
	}, Options[int, int]{})

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestRun_DelayRespectsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	results := Run(ctx, []int{1}, func(ctx context.Context, item int) (int, error) {
		return 0, errors.New("flaky")
	}, Options[int, int]{MaxRetries: 3, RetryDelay: time.Minute})

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.EqualError(t, results[0].Err, "flaky")
	assert.Equal(t, 1, results[0].Attempts)
}

func TestRun_Empty(t *testing.T) {
	results := Run(context.Background(), nil, func(ctx context.Context, item int) (int, error) {
		return item, nil
	}, Options[int, int]{})
	assert.Empty(t, results)
}
