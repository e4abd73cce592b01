// Package scheduler runs the periodic discovery, cleanup, mirror and sync cycle for
// every active configuration.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	apperrors "repo-mirror/internal/errors"
	"repo-mirror/internal/events"
	"repo-mirror/internal/mirror"
	"repo-mirror/internal/model"
	"repo-mirror/internal/ratelimit"
	"repo-mirror/internal/store"
	"repo-mirror/internal/telemetry"
)

const (
	DefaultTick            = 60 * time.Second
	DefaultInterval        = time.Hour
	DefaultRecentThreshold = time.Hour
)

// ErrBusy is returned when a tick or manual run finds another cycle in progress.
var ErrBusy = errors.New("scheduler: a cycle is already running")

// Options tune a Scheduler. Zero values select the defaults.
type Options struct {
	Tick            time.Duration
	DefaultInterval time.Duration
	AutoStart       bool
	Now             func() time.Time
}

// Scheduler assumes it is the only one running against the store.
type Scheduler struct {
	store    store.Store
	mirror   *mirror.Service
	governor *ratelimit.Governor
	events   *events.Publisher
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	opts     Options

	running     atomic.Bool
	autoStarted atomic.Bool
	wg          sync.WaitGroup
}

func New(st store.Store, svc *mirror.Service, governor *ratelimit.Governor, publisher *events.Publisher, metrics *telemetry.Metrics, logger *slog.Logger, opts Options) *Scheduler {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.DefaultInterval <= 0 {
		opts.DefaultInterval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		store:    st,
		mirror:   svc,
		governor: governor,
		events:   publisher,
		metrics:  metrics,
		logger:   logger,
		opts:     opts,
	}
}

// Start runs the optional auto-start pass and then ticks until ctx is done. Ticks run
// in the background so a slow cycle makes the following ticks skip instead of queue.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting scheduler", "tick", s.opts.Tick.String(), "auto_start", s.opts.AutoStart)
	if s.opts.AutoStart {
		if err := s.AutoStart(ctx); err != nil {
			s.logger.Error("Auto-start failed", "error", err)
		}
	}

	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()

	s.launch(ctx)
	for {
		select {
		case <-ticker.C:
			s.launch(ctx)
		case <-ctx.Done():
			s.logger.Info("Scheduler shutting down, waiting for the running cycle", "reason", ctx.Err())
			s.wg.Wait()
			return
		}
	}
}

func (s *Scheduler) launch(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Tick(ctx); err != nil && !errors.Is(err, ErrBusy) && !errors.Is(err, context.Canceled) {
			s.logger.Error("Scheduler tick failed", "error", err)
		}
	}()
}

// Tick runs the cycle of every eligible configuration that is due. It returns ErrBusy
// without doing anything when the previous tick is still running.
func (s *Scheduler) Tick(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("Previous tick still running, skipping")
		return ErrBusy
	}
	defer s.running.Store(false)

	configs, err := s.store.ListActiveConfigs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active configurations: %w", err)
	}

	now := s.opts.Now()
	for i := range configs {
		if err := ctx.Err(); err != nil {
			return err
		}
		cfg := &configs[i]
		if !s.eligible(cfg) {
			continue
		}
		if next := cfg.Schedule.NextRun; next != nil && next.After(now) {
			s.logger.Debug("Configuration not due", "config_id", cfg.ID, "next_run", next.Format(time.RFC3339))
			continue
		}
		// A failing configuration never stops the others.
		if err := s.runCycle(ctx, cfg); err != nil {
			s.logger.Error("Sync cycle finished with errors", "config_id", cfg.ID, "user_id", cfg.UserID, "error", err)
		}
	}
	return nil
}

func (s *Scheduler) eligible(cfg *model.Configuration) bool {
	if !cfg.Schedule.Enabled {
		s.logger.Debug("Scheduling disabled for configuration", "config_id", cfg.ID)
		return false
	}
	if !cfg.HasCredentials() {
		s.logger.Info("Skipping configuration without credentials", "config_id", cfg.ID, "user_id", cfg.UserID)
		return false
	}
	return true
}

// RunConfigNow runs one configuration's full cycle immediately, regardless of its
// next run time. It shares the tick's running guard.
func (s *Scheduler) RunConfigNow(ctx context.Context, configID uuid.UUID) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.running.Store(false)

	cfg, err := s.store.GetConfig(ctx, configID)
	if err != nil {
		return err
	}
	if !cfg.HasCredentials() {
		return apperrors.ErrMissingCredentials
	}
	return s.runCycle(ctx, cfg)
}

// AutoStart runs one discovery and mirror pass for every configuration with
// credentials that is enabled or asks for automatic import or mirroring, enabling
// its schedule. Only the first call does anything.
func (s *Scheduler) AutoStart(ctx context.Context) error {
	if !s.autoStarted.CompareAndSwap(false, true) {
		return nil
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.running.Store(false)

	configs, err := s.store.ListActiveConfigs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active configurations: %w", err)
	}

	var errs []error
	for i := range configs {
		cfg := &configs[i]
		sch := cfg.Schedule
		if !cfg.HasCredentials() || !(sch.Enabled || sch.AutoImport || sch.AutoMirror) {
			continue
		}
		logger := s.logger.With("config_id", cfg.ID, "user_id", cfg.UserID)
		logger.Info("Running auto-start pass")

		start := s.opts.Now()
		if _, err := s.discover(ctx, cfg); err != nil {
			errs = append(errs, err)
		}
		if _, err := s.autoMirror(ctx, cfg); err != nil {
			errs = append(errs, err)
		}

		sch.Enabled = true
		if err := s.persistSchedule(ctx, cfg, sch, start); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runCycle executes discovery, cleanup, auto-mirror and sync in that order, then
// records lastRun as the cycle start and nextRun from it.
func (s *Scheduler) runCycle(ctx context.Context, cfg *model.Configuration) error {
	start := s.opts.Now()
	logger := s.logger.With("config_id", cfg.ID, "user_id", cfg.UserID)
	logger.Info("Starting sync cycle")

	var errs []error
	upstream, err := s.discover(ctx, cfg)
	if err != nil {
		errs = append(errs, err)
	} else if err := s.cleanup(ctx, cfg, upstream); err != nil {
		errs = append(errs, err)
	}

	processed, err := s.autoMirror(ctx, cfg)
	if err != nil {
		errs = append(errs, err)
	}
	if err := s.syncPhase(ctx, cfg, processed); err != nil {
		errs = append(errs, err)
	}

	if err := s.persistSchedule(ctx, cfg, cfg.Schedule, start); err != nil {
		errs = append(errs, err)
	}

	err = errors.Join(errs...)
	if err != nil {
		s.metrics.RecordCycle("failed")
	} else {
		s.metrics.RecordCycle("success")
	}
	logger.Info("Sync cycle finished", "duration", s.opts.Now().Sub(start).String(), "failed", err != nil)
	return err
}

func (s *Scheduler) persistSchedule(ctx context.Context, cfg *model.Configuration, sch model.ScheduleConfig, lastRun time.Time) error {
	next := NextRun(s.cadence(cfg), lastRun)
	sch.LastRun = &lastRun
	sch.NextRun = &next
	if err := s.store.UpdateSchedule(ctx, cfg.ID, sch); err != nil {
		return fmt.Errorf("failed to persist schedule: %w", err)
	}
	cfg.Schedule = sch
	return nil
}

// cadence parses the configured interval, falling back to the default.
func (s *Scheduler) cadence(cfg *model.Configuration) cron.Schedule {
	sched, err := ParseInterval(cfg.Schedule.Interval)
	if err == nil {
		return sched
	}
	if !errors.Is(err, errEmptyInterval) {
		s.logger.Warn("Invalid schedule interval, using default",
			"config_id", cfg.ID, "interval", cfg.Schedule.Interval, "default", s.opts.DefaultInterval.String(), "error", err)
	}
	return every(s.opts.DefaultInterval)
}
