package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeExpirer struct {
	before time.Time
	limit  int
	result int
	err    error
}

func (f *fakeExpirer) ExpirePending(_ context.Context, before time.Time, limit int) (int, error) {
	f.before = before
	f.limit = limit
	return f.result, f.err
}

func TestPendingOrdersJobUsesTTLCutoff(t *testing.T) {
	now := time.Date(2026, 5, 3, 12, 0, 0, 0, time.UTC)
	expirer := &fakeExpirer{result: 3}
	job, err := NewPendingOrdersJob(PendingOrdersJobParams{
		Logger:    testLogger(),
		Orders:    expirer,
		TTL:       6 * time.Hour,
		BatchSize: 50,
	})
	require.NoError(t, err)
	job.(*pendingOrdersJob).now = func() time.Time { return now }

	require.Equal(t, "expire-pending-orders", job.Name())
	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, now.Add(-6*time.Hour), expirer.before)
	require.Equal(t, 50, expirer.limit)
}

func TestPendingOrdersJobDefaultsTTL(t *testing.T) {
	job, err := NewPendingOrdersJob(PendingOrdersJobParams{Logger: testLogger(), Orders: &fakeExpirer{}})
	require.NoError(t, err)
	require.Equal(t, defaultPendingOrderTTL, job.(*pendingOrdersJob).ttl)
}

func TestPendingOrdersJobWrapsFailures(t *testing.T) {
	cause := errors.New("db down")
	job, err := NewPendingOrdersJob(PendingOrdersJobParams{Logger: testLogger(), Orders: &fakeExpirer{err: cause}})
	require.NoError(t, err)
	require.ErrorIs(t, job.Run(context.Background()), cause)
}

func TestNewPendingOrdersJobValidates(t *testing.T) {
	_, err := NewPendingOrdersJob(PendingOrdersJobParams{Orders: &fakeExpirer{}})
	require.Error(t, err)
	_, err = NewPendingOrdersJob(PendingOrdersJobParams{Logger: testLogger()})
	require.Error(t, err)
}
