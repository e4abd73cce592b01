package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var errEmptyInterval = errors.New("empty interval")

// every activates a fixed duration after the previous run. Unlike cron.Every it
// keeps the sub-second part of the start time.
type every time.Duration

func (e every) Next(t time.Time) time.Time {
	return t.Add(time.Duration(e))
}

// ParseInterval accepts a plain number of seconds ("3600"), a duration ("8h"), a day
// count ("2d") or a standard cron expression ("0 */6 * * *", "@daily").
func ParseInterval(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errEmptyInterval
	}

	if secs, err := strconv.Atoi(expr); err == nil {
		if secs <= 0 {
			return nil, fmt.Errorf("interval must be positive, got %d seconds", secs)
		}
		return every(time.Duration(secs) * time.Second), nil
	}

	if days, ok := strings.CutSuffix(expr, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil {
			if n <= 0 {
				return nil, fmt.Errorf("interval must be positive, got %d days", n)
			}
			return every(time.Duration(n) * 24 * time.Hour), nil
		}
	}

	if d, err := time.ParseDuration(expr); err == nil {
		if d < time.Second {
			return nil, fmt.Errorf("interval must be at least one second, got %s", d)
		}
		return every(d), nil
	}

	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("unrecognized interval %q: %w", expr, err)
	}
	return sched, nil
}

// NextRun is the first activation of sched after lastRun. It depends only on
// lastRun, never on when the cycle finished.
func NextRun(sched cron.Schedule, lastRun time.Time) time.Time {
	return sched.Next(lastRun)
}
