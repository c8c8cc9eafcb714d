// Package service composes the analytics engine: it fetches raw records,
// validates them once, fans the requested sections out across goroutines and
// assembles JSON-serializable reports. One failing section degrades to its
// zero value and is named in the response Meta; siblings are unaffected.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"waste-insights/internal/core/cache"
	"waste-insights/internal/core/logger"
	"waste-insights/internal/features/analytics/performance"
	"waste-insights/internal/features/analytics/trend"
	"waste-insights/internal/features/analytics/validate"
	"waste-insights/internal/features/analytics/workflow"
	"waste-insights/internal/features/reports/domain"
	"waste-insights/internal/features/reports/ports"
)

// Meta describes how trustworthy a report is. Callers must inspect it before
// treating a zeroed section as a genuine "no incidents": a degraded section
// and an empty dataset both render as zeros otherwise.
type Meta struct {
	GeneratedAt      string   `json:"generatedAt"`
	TotalFetched     int      `json:"totalFetched"`
	ValidRecords     int      `json:"validRecords"`
	ExcludedRecords  int      `json:"excludedRecords"`
	DataQualityScore int      `json:"dataQualityScore"`
	Degraded         []string `json:"degraded,omitempty"`
}

// TrendReport is the trends operation result.
type TrendReport struct {
	Meta             Meta                    `json:"meta"`
	Trends           *trend.Summary          `json:"trends"`
	PeriodComparison *trend.PeriodComparison `json:"periodComparison"`
}

// WorkflowReport bundles every lifecycle analytics section.
type WorkflowReport struct {
	Meta                Meta                           `json:"meta"`
	Distribution        *workflow.Distribution         `json:"distribution"`
	Transitions         *workflow.TransitionAnalytics  `json:"transitions"`
	CommonPaths         []workflow.CommonPath          `json:"commonPaths"`
	StatusTimeAnalytics map[string]workflow.StatusTime `json:"statusTimeAnalytics"`
	Bottlenecks         []workflow.Bottleneck          `json:"bottlenecks"`
	Timeline            *workflow.Timeline             `json:"timeline"`
}

// DriverReport is the driver performance operation result.
type DriverReport struct {
	Meta       Meta                             `json:"meta"`
	Drivers    []performance.DriverPerformance  `json:"drivers"`
	Benchmarks *performance.Benchmarks          `json:"benchmarks"`
	Rankings   map[string][]performance.Ranking `json:"rankings"`
}

// ComparisonReport is the per-driver peer comparison result.
type ComparisonReport struct {
	Meta       Meta                        `json:"meta"`
	Comparison *performance.PeerComparison `json:"comparison"`
}

// QualityReport is the data-quality operation result.
type QualityReport struct {
	Meta    Meta                    `json:"meta"`
	Quality *validate.QualityReport `json:"quality"`
}

// Dashboard composes the sections a combined caller view needs. Sections
// that failed are nil and listed in Meta.Degraded.
type Dashboard struct {
	Meta     Meta            `json:"meta"`
	Trends   *TrendReport    `json:"trends"`
	Workflow *WorkflowReport `json:"workflow"`
	Drivers  *DriverReport   `json:"drivers"`
	Quality  *QualityReport  `json:"dataQuality"`
}

// Options tunes the engine. Zero values select the documented defaults.
type Options struct {
	// CacheTTL bounds how long computed reports stay cached.
	CacheTTL time.Duration
	// EfficiencyTargetHours is the workflow duration target.
	EfficiencyTargetHours float64
	// Now overrides the clock, for tests.
	Now func() time.Time
	// TopPaths bounds the common-path list length.
	TopPaths int
}

// AnalyticsService orchestrates the analytics engine. It holds no mutable
// state between calls; every invocation validates its own batch and returns
// a fresh structure, so results are cacheable and retries are safe.
type AnalyticsService struct {
	store    ports.ReportStore
	cache    cache.Cache
	ttl      time.Duration
	target   float64
	topPaths int
	now      func() time.Time
}

// NewAnalyticsService creates the engine. The cache may be nil; caching is
// then skipped entirely and results are identical, just recomputed.
func NewAnalyticsService(store ports.ReportStore, c cache.Cache, opts Options) *AnalyticsService {
	svc := &AnalyticsService{
		store:    store,
		cache:    c,
		ttl:      opts.CacheTTL,
		target:   opts.EfficiencyTargetHours,
		topPaths: opts.TopPaths,
		now:      opts.Now,
	}
	if svc.ttl <= 0 {
		svc.ttl = 5 * time.Minute
	}
	if svc.target <= 0 {
		svc.target = workflow.DefaultEfficiencyTargetHours
	}
	if svc.topPaths <= 0 {
		svc.topPaths = 5
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// fetchValidated pulls raw records and runs them through the validation
// boundary. A store failure is surfaced to the caller, never hidden.
func (s *AnalyticsService) fetchValidated(ctx context.Context, dateRange domain.DateRange, filter domain.Filter) (validate.Batch, error) {
	raws, err := s.store.Fetch(ctx, dateRange, filter)
	if err != nil {
		return validate.Batch{}, fmt.Errorf("report store fetch failed: %w", err)
	}
	return validate.ExcludeInvalid(raws, s.now().UTC()), nil
}

func (s *AnalyticsService) meta(batch validate.Batch) Meta {
	return Meta{
		GeneratedAt:      s.now().UTC().Format(time.RFC3339),
		TotalFetched:     batch.TotalRecords,
		ValidRecords:     batch.TotalRecords - batch.ExcludedCount,
		ExcludedRecords:  batch.ExcludedCount,
		DataQualityScore: batch.DataQualityScore,
	}
}

// Trends computes the trend time-series for the range plus the change
// against the immediately preceding equal-length period.
func (s *AnalyticsService) Trends(ctx context.Context, dateRange domain.DateRange, filter domain.Filter) (*TrendReport, error) {
	key := newCacheKey("trends", dateRange, filter, "")
	var cached TrendReport
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	batch, err := s.fetchValidated(ctx, dateRange, filter)
	if err != nil {
		return nil, err
	}

	report := &TrendReport{Meta: s.meta(batch)}

	s.runSection("trends", &report.Meta, func() error {
		summary, err := trend.Aggregate(batch.Valid, dateRange)
		if err != nil {
			return err
		}
		report.Trends = &summary
		return nil
	})

	s.runSection("periodComparison", &report.Meta, func() error {
		previousBatch, err := s.fetchValidated(ctx, dateRange.Previous(), filter)
		if err != nil {
			return err
		}
		comparison := trend.ComparePeriods(countInRange(batch.Valid, dateRange), len(previousBatch.Valid))
		report.PeriodComparison = &comparison
		return nil
	})

	// Degraded reports are never cached: the next request retries.
	if len(report.Meta.Degraded) == 0 {
		s.cacheSet(ctx, key, report)
	}
	return report, nil
}

// countInRange counts validated reports created inside the range. Aggregate
// applies the same bound, so the comparison and the series always agree.
func countInRange(reports []domain.Report, dateRange domain.DateRange) int {
	count := 0
	for _, report := range reports {
		if dateRange.Contains(report.CreatedAt) {
			count++
		}
	}
	return count
}

// Workflow computes every lifecycle section concurrently over one fetch.
func (s *AnalyticsService) Workflow(ctx context.Context, dateRange domain.DateRange, filter domain.Filter, granularity workflow.Granularity) (*WorkflowReport, error) {
	if granularity == "" {
		granularity = workflow.GranularityDay
	}

	key := newCacheKey("workflow", dateRange, filter, string(granularity))
	var cached WorkflowReport
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	batch, err := s.fetchValidated(ctx, dateRange, filter)
	if err != nil {
		return nil, err
	}

	report := &WorkflowReport{Meta: s.meta(batch)}
	now := s.now().UTC()

	var mu sync.Mutex
	var wg sync.WaitGroup
	section := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := runProtected(name, fn)
			if err != nil {
				mu.Lock()
				report.Meta.Degraded = append(report.Meta.Degraded, name)
				mu.Unlock()
			}
		}()
	}

	section("distribution", func() error {
		dist := workflow.Distribute(batch.Valid)
		report.Distribution = &dist
		return nil
	})
	section("transitions", func() error {
		transitions := workflow.ExtractTransitions(batch.Valid)
		report.Transitions = &transitions
		return nil
	})
	section("commonPaths", func() error {
		report.CommonPaths = workflow.CommonPaths(batch.Valid, s.topPaths)
		return nil
	})
	section("statusTimeAnalytics", func() error {
		report.StatusTimeAnalytics = workflow.TimeInStatus(batch.Valid, now)
		return nil
	})
	section("bottlenecks", func() error {
		report.Bottlenecks = workflow.DetectBottlenecks(batch.Valid, now)
		return nil
	})
	section("timeline", func() error {
		timeline, err := workflow.BuildTimeline(batch.Valid, granularity, now, s.target)
		if err != nil {
			return err
		}
		report.Timeline = &timeline
		return nil
	})

	wg.Wait()
	sortDegraded(report.Meta.Degraded)

	if len(report.Meta.Degraded) == 0 {
		s.cacheSet(ctx, key, report)
	}
	return report, nil
}

// Drivers computes per-driver performance, benchmarks and rankings.
func (s *AnalyticsService) Drivers(ctx context.Context, dateRange domain.DateRange, filter domain.Filter) (*DriverReport, error) {
	key := newCacheKey("drivers", dateRange, filter, "")
	var cached DriverReport
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	batch, err := s.fetchValidated(ctx, dateRange, filter)
	if err != nil {
		return nil, err
	}

	report := &DriverReport{Meta: s.meta(batch)}

	s.runSection("drivers", &report.Meta, func() error {
		report.Drivers = performance.ComputeAll(batch.Valid)
		benchmarks := performance.ComputeBenchmarks(report.Drivers)
		report.Benchmarks = &benchmarks

		report.Rankings = make(map[string][]performance.Ranking, 4)
		for _, metric := range []string{
			performance.MetricCompletionRate,
			performance.MetricProductivity,
			performance.MetricConsistency,
			performance.MetricResolutionTime,
		} {
			rankings, err := performance.Rank(report.Drivers, metric)
			if err != nil {
				return err
			}
			report.Rankings[metric] = rankings
		}
		return nil
	})

	if len(report.Meta.Degraded) == 0 {
		s.cacheSet(ctx, key, report)
	}
	return report, nil
}

// DriverComparison measures one driver against the population benchmarks.
// An unknown driver is a caller error, not a degradation.
func (s *AnalyticsService) DriverComparison(ctx context.Context, dateRange domain.DateRange, driverID string) (*ComparisonReport, error) {
	batch, err := s.fetchValidated(ctx, dateRange, domain.Filter{})
	if err != nil {
		return nil, err
	}

	drivers := performance.ComputeAll(batch.Valid)
	benchmarks := performance.ComputeBenchmarks(drivers)

	comparison, err := performance.ComparePeer(driverID, drivers, benchmarks)
	if err != nil {
		return nil, err
	}

	return &ComparisonReport{
		Meta:       s.meta(batch),
		Comparison: &comparison,
	}, nil
}

// DataQuality reports how trustworthy the range's records are.
func (s *AnalyticsService) DataQuality(ctx context.Context, dateRange domain.DateRange, filter domain.Filter) (*QualityReport, error) {
	batch, err := s.fetchValidated(ctx, dateRange, filter)
	if err != nil {
		return nil, err
	}

	quality := validate.BuildQualityReport(batch)
	return &QualityReport{
		Meta:    s.meta(batch),
		Quality: &quality,
	}, nil
}

// DashboardSections returns every section name Dashboard understands, in
// presentation order.
func DashboardSections() []string {
	return []string{"trends", "workflow", "drivers", "dataQuality"}
}

// ErrUnknownSection rejects a dashboard section request nothing can serve.
var ErrUnknownSection = errors.New("unknown dashboard section")

// Dashboard fans the requested sections out against independent fetches.
// An empty sections list means all of them. A failed branch degrades to nil
// and is recorded; siblings still render.
func (s *AnalyticsService) Dashboard(ctx context.Context, dateRange domain.DateRange, filter domain.Filter, granularity workflow.Granularity, sections []string) (*Dashboard, error) {
	known := make(map[string]bool, 4)
	for _, name := range DashboardSections() {
		known[name] = true
	}
	wanted := make(map[string]bool, len(sections))
	for _, name := range sections {
		if !known[name] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSection, name)
		}
		wanted[name] = true
	}
	include := func(name string) bool {
		return len(wanted) == 0 || wanted[name]
	}

	dashboard := &Dashboard{
		Meta: Meta{GeneratedAt: s.now().UTC().Format(time.RFC3339)},
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	branch := func(name string, fn func() error) {
		if !include(name) {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runProtected(name, fn); err != nil {
				mu.Lock()
				dashboard.Meta.Degraded = append(dashboard.Meta.Degraded, name)
				mu.Unlock()
			}
		}()
	}

	branch("trends", func() error {
		report, err := s.Trends(ctx, dateRange, filter)
		if err != nil {
			return err
		}
		mu.Lock()
		dashboard.Trends = report
		mu.Unlock()
		return nil
	})
	branch("workflow", func() error {
		report, err := s.Workflow(ctx, dateRange, filter, granularity)
		if err != nil {
			return err
		}
		mu.Lock()
		dashboard.Workflow = report
		mu.Unlock()
		return nil
	})
	branch("drivers", func() error {
		report, err := s.Drivers(ctx, dateRange, filter)
		if err != nil {
			return err
		}
		mu.Lock()
		dashboard.Drivers = report
		mu.Unlock()
		return nil
	})
	branch("dataQuality", func() error {
		report, err := s.DataQuality(ctx, dateRange, filter)
		if err != nil {
			return err
		}
		mu.Lock()
		dashboard.Quality = report
		mu.Unlock()
		return nil
	})

	wg.Wait()
	sortDegraded(dashboard.Meta.Degraded)

	// Promote the richest section's record counts into the top-level meta.
	if dashboard.Workflow != nil {
		m := dashboard.Meta
		dashboard.Meta = dashboard.Workflow.Meta
		dashboard.Meta.GeneratedAt = m.GeneratedAt
		dashboard.Meta.Degraded = m.Degraded
	}

	return dashboard, nil
}

// runSection executes one section synchronously with the same containment
// the concurrent paths get.
func (s *AnalyticsService) runSection(name string, meta *Meta, fn func() error) {
	if err := runProtected(name, fn); err != nil {
		meta.Degraded = append(meta.Degraded, name)
	}
}

// runProtected contains both errors and panics from a section so a local
// fault zeroes one metric instead of aborting the response.
func runProtected(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("section panicked: %v", r)
			logger.Get().Error("analytics section panicked",
				zap.String("section", name),
				zap.Any("panic", r),
			)
		}
	}()

	if err = fn(); err != nil {
		logger.Get().Warn("analytics section degraded",
			zap.String("section", name),
			zap.Error(err),
		)
	}
	return err
}
