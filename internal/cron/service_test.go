package cron

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type fakeLock struct {
	held     bool
	releases int
	err      error
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	err  error
	runs atomic.Int32
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs.Add(1)
	return t.err
}

func mustRegistry(t *testing.T, jobs ...Job) *Registry {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	require.NoError(t, err)
	return registry
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "success"}
	failing := &testJob{name: "fail", err: errors.New("boom")}
	lock := &fakeLock{}
	reg := prometheus.NewRegistry()

	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: mustRegistry(t, ok, failing),
		Lock:     lock,
		Metrics:  metrics.NewRecorder(reg),
	})
	require.NoError(t, err)

	err = service.runCycle(context.Background())
	require.ErrorContains(t, err, "fail: boom")
	require.EqualValues(t, 1, ok.runs.Load())
	require.EqualValues(t, 1, failing.runs.Load())
	require.Equal(t, 1, lock.releases)
	require.False(t, lock.held)

	families, err := reg.Gather()
	require.NoError(t, err)
	var runs float64
	for _, mf := range families {
		if mf.GetName() != "storefront_cron_job_runs_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			runs += m.GetCounter().GetValue()
		}
	}
	require.Equal(t, float64(2), runs)
}

func TestServiceSkipsCycleWhenLockHeld(t *testing.T) {
	job := &testJob{name: "job"}
	lock := &fakeLock{held: true}
	service, err := NewService(ServiceParams{Logger: testLogger(), Registry: mustRegistry(t, job), Lock: lock})
	require.NoError(t, err)

	require.NoError(t, service.runCycle(context.Background()))
	require.Zero(t, job.runs.Load())
	require.Zero(t, lock.releases)
}

func TestServiceSurfacesLockErrors(t *testing.T) {
	job := &testJob{name: "job"}
	service, err := NewService(ServiceParams{Logger: testLogger(), Registry: mustRegistry(t, job), Lock: &fakeLock{err: errors.New("redis down")}})
	require.NoError(t, err)

	require.Error(t, service.runCycle(context.Background()))
	require.Zero(t, job.runs.Load())
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "job"}
	service, err := NewService(ServiceParams{Logger: testLogger(), Registry: mustRegistry(t, job), Lock: &fakeLock{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, service.Run(ctx), context.Canceled)
	require.Zero(t, job.runs.Load(), "a cancelled context must not start a cycle")
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &fakeLock{}})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Logger: testLogger()})
	require.Error(t, err)

	service, err := NewService(ServiceParams{Logger: testLogger(), Lock: &fakeLock{}})
	require.NoError(t, err)
	require.Equal(t, defaultInterval, service.interval)
	require.Equal(t, defaultConcurrency, service.concurrency)
}

func TestServiceCutsOffJobsAtInterval(t *testing.T) {
	slow := jobFunc{name: "slow", run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: mustRegistry(t, slow),
		Lock:     &fakeLock{},
		Interval: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	err = service.runCycle(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

type jobFunc struct {
	name string
	run  func(context.Context) error
}

func (j jobFunc) Name() string                  { return j.name }
func (j jobFunc) Run(ctx context.Context) error { return j.run(ctx) }
