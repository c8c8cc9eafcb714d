// Package jobs holds background schedules. The warm-up job precomputes the
// trailing-thirty-day dashboard so the first request after a cache expiry
// does not pay the full computation cost.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"waste-insights/internal/core/logger"
	"waste-insights/internal/features/analytics/service"
	"waste-insights/internal/features/analytics/workflow"
	"waste-insights/internal/features/reports/domain"
)

// warmupWindowDays is the trailing range the dashboard warm-up covers.
const warmupWindowDays = 30

// Warmup schedules periodic dashboard precomputation.
type Warmup struct {
	analytics *service.AnalyticsService
	runner    *cron.Cron
	timeout   time.Duration
	now       func() time.Time
}

// NewWarmup creates the warm-up scheduler. It does nothing until Start.
func NewWarmup(analytics *service.AnalyticsService) *Warmup {
	return &Warmup{
		analytics: analytics,
		runner:    cron.New(),
		timeout:   time.Minute,
		now:       time.Now,
	}
}

// Start registers the job under spec (any expression cron/v3 accepts,
// @hourly included) and begins the schedule.
func (w *Warmup) Start(spec string) error {
	if _, err := w.runner.AddFunc(spec, w.Run); err != nil {
		return err
	}
	w.runner.Start()
	logger.Named("warmup").Info("dashboard warm-up scheduled", zap.String("spec", spec))
	return nil
}

// Stop halts the schedule. Already-running jobs finish.
func (w *Warmup) Stop() {
	w.runner.Stop()
}

// Run computes the trailing window dashboard once. The computation path
// writes through the analytics cache, so subsequent requests for the same
// window are served from it.
func (w *Warmup) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	end := w.now().UTC()
	dateRange := domain.DateRange{
		Start: end.AddDate(0, 0, -warmupWindowDays),
		End:   end,
	}

	started := time.Now()
	dashboard, err := w.analytics.Dashboard(ctx, dateRange, domain.Filter{}, workflow.GranularityDay, nil)
	if err != nil {
		logger.Named("warmup").Error("dashboard warm-up failed", zap.Error(err))
		return
	}

	logger.Named("warmup").Info("dashboard warm-up complete",
		zap.Duration("took", time.Since(started)),
		zap.Int("total_fetched", dashboard.Meta.TotalFetched),
		zap.Strings("degraded", dashboard.Meta.Degraded),
	)
}
