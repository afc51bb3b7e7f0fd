package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
	"github.com/angelmondragon/storefront-backoffice/pkg/metrics"
)

// RestockExpiryReportJobParams configure the expiry report.
type RestockExpiryReportJobParams struct {
	Logger   *logger.Logger
	Requests expiredRequestCounter
	Metrics  *metrics.RestockMetrics
}

type expiredRequestCounter interface {
	CountExpiredOpen(ctx context.Context) (int64, error)
}

// NewRestockExpiryReportJob reports requests that expired without being fulfilled or
// cancelled. It only reads; expiry stays a derived state.
func NewRestockExpiryReportJob(params RestockExpiryReportJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Requests == nil {
		return nil, fmt.Errorf("restock request counter required")
	}
	return &restockExpiryReportJob{
		logg:     params.Logger,
		requests: params.Requests,
		metrics:  params.Metrics,
	}, nil
}

type restockExpiryReportJob struct {
	logg     *logger.Logger
	requests expiredRequestCounter
	metrics  *metrics.RestockMetrics
}

func (j *restockExpiryReportJob) Name() string { return "restock-expiry-report" }

func (j *restockExpiryReportJob) Run(ctx context.Context) error {
	count, err := j.requests.CountExpiredOpen(ctx)
	if err != nil {
		return fmt.Errorf("restock expiry report: %w", err)
	}
	j.metrics.SetExpiredOpen(count)

	logCtx := j.logg.WithField(ctx, "expired_open", count)
	if count > 0 {
		j.logg.Warn(logCtx, "restock requests expired without fulfillment")
		return nil
	}
	j.logg.Info(logCtx, "no expired restock requests")
	return nil
}
