package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
	"github.com/angelmondragon/storefront-backoffice/pkg/metrics"
)

type fakeExpiredCounter struct {
	count int64
	err   error
	calls int
}

func (f *fakeExpiredCounter) CountExpiredOpen(context.Context) (int64, error) {
	f.calls++
	return f.count, f.err
}

func TestRestockExpiryReportSetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := &fakeExpiredCounter{count: 3}
	job, err := NewRestockExpiryReportJob(RestockExpiryReportJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Requests: counter,
		Metrics:  metrics.NewRestockMetrics(reg),
	})
	if err != nil {
		t.Fatalf("NewRestockExpiryReportJob: %v", err)
	}
	if job.Name() != "restock-expiry-report" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if counter.calls != 1 {
		t.Fatalf("expected one count query, got %d", counter.calls)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var found bool
	for _, family := range families {
		if family.GetName() == "storefront_restock_expired_open" {
			found = true
			if got := family.GetMetric()[0].GetGauge().GetValue(); got != 3 {
				t.Fatalf("expected gauge 3, got %v", got)
			}
		}
	}
	if !found {
		t.Fatal("expired gauge not registered")
	}
}

func TestRestockExpiryReportPropagatesErrors(t *testing.T) {
	job, err := NewRestockExpiryReportJob(RestockExpiryReportJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Requests: &fakeExpiredCounter{err: errors.New("db down")},
	})
	if err != nil {
		t.Fatalf("NewRestockExpiryReportJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
