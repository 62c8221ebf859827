package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const defaultPendingOrderTTL = 48 * time.Hour

type pendingOrderExpirer interface {
	ExpirePending(ctx context.Context, before time.Time, limit int) (int, error)
}

// PendingOrdersJobParams configure the unpaid order sweep.
type PendingOrdersJobParams struct {
	Logger    *logger.Logger
	Orders    pendingOrderExpirer
	TTL       time.Duration
	BatchSize int
}

type pendingOrdersJob struct {
	logg      *logger.Logger
	orders    pendingOrderExpirer
	ttl       time.Duration
	batchSize int
	now       func() time.Time
}

// NewPendingOrdersJob builds the job that cancels orders whose payment result
// never arrived within the TTL.
func NewPendingOrdersJob(params PendingOrdersJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	return &pendingOrdersJob{
		logg:      params.Logger,
		orders:    params.Orders,
		ttl:       ttl,
		batchSize: params.BatchSize,
		now:       time.Now,
	}, nil
}

func (j *pendingOrdersJob) Name() string { return "expire-pending-orders" }

func (j *pendingOrdersJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired, err := j.orders.ExpirePending(ctx, cutoff, j.batchSize)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"expired": expired,
	})
	if err != nil {
		return fmt.Errorf("expire pending orders: %w", err)
	}
	j.logg.Info(logCtx, "pending order sweep complete")
	return nil
}
