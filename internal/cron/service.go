package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	defaultInterval    = 15 * time.Minute
	defaultConcurrency = 4
)

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.Recorder
	Interval time.Duration
	// Concurrency caps how many jobs of one cycle run at once.
	Concurrency int
}

// Service ticks every Interval. Each tick, the replica that wins the lock runs
// every registered job; a job is cut off when the next tick is due so cycles
// never overlap.
type Service struct {
	logg        *logger.Logger
	registry    *Registry
	lock        Lock
	metrics     *metrics.Recorder
	interval    time.Duration
	concurrency int
	now         func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Lock == nil:
		return nil, fmt.Errorf("lock required")
	}
	s := &Service{
		logg:        params.Logger,
		registry:    params.Registry,
		lock:        params.Lock,
		metrics:     params.Metrics,
		interval:    params.Interval,
		concurrency: params.Concurrency,
		now:         time.Now,
	}
	if s.registry == nil {
		s.registry, _ = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.concurrency <= 0 {
		s.concurrency = defaultConcurrency
	}
	return s, nil
}

// Run performs a cycle right away, then one per tick, until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "cron.cycle_failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runCycle returns lock failures and the combined job failures.
func (s *Service) runCycle(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire cron lock: %w", err)
	}
	if !acquired {
		s.logg.Info(ctx, "cron.cycle_skipped_lock_held")
		return nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron.lock_release_failed", err)
		}
	}()

	cycleCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	var (
		mu     sync.Mutex
		failed error
	)
	group := new(errgroup.Group)
	group.SetLimit(s.concurrency)
	for _, job := range s.registry.Jobs() {
		group.Go(func() error {
			if err := s.runJob(cycleCtx, job); err != nil {
				mu.Lock()
				failed = multierr.Append(failed, fmt.Errorf("%s: %w", job.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()
	return failed
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	ctx = s.logg.WithField(ctx, "job", job.Name())
	started := s.now()
	err := job.Run(ctx)
	elapsed := s.now().Sub(started)
	s.metrics.CronJob(job.Name(), err, elapsed)

	ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Warn(ctx, "cron.job_failed")
		return err
	}
	s.logg.Info(ctx, "cron.job_completed")
	return nil
}
