package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"waste-insights/internal/core/cache"
	"waste-insights/internal/features/analytics/workflow"
	"waste-insights/internal/features/reports/domain"
)

type MockReportStore struct {
	mock.Mock
}

func (m *MockReportStore) Fetch(ctx context.Context, dateRange domain.DateRange, filter domain.Filter) ([]domain.RawReport, error) {
	args := m.Called(ctx, dateRange, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RawReport), args.Error(1)
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testRange() domain.DateRange {
	return domain.DateRange{
		Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
	}
}

func rawLifecycle(id string, created time.Time, statuses ...domain.Status) domain.RawReport {
	raw := domain.RawReport{
		ID:        id,
		Category:  string(domain.CategoryRecyclable),
		Status:    string(statuses[len(statuses)-1]),
		CreatedAt: created.Format(domain.TimestampLayout),
	}
	updated := created.Add(time.Duration(len(statuses)-1) * time.Hour).Format(domain.TimestampLayout)
	raw.UpdatedAt = updated
	for i, status := range statuses {
		raw.StatusHistory = append(raw.StatusHistory, domain.RawStatusEntry{
			Status:    string(status),
			Timestamp: created.Add(time.Duration(i) * time.Hour).Format(domain.TimestampLayout),
		})
	}
	return raw
}

func completedLifecycle(id, driver string, created time.Time) domain.RawReport {
	raw := rawLifecycle(id, created,
		domain.StatusPending, domain.StatusAssigned, domain.StatusInProgress, domain.StatusCompleted)
	raw.AssignedDriver = driver
	return raw
}

func newService(store *MockReportStore, c cache.Cache) *AnalyticsService {
	return NewAnalyticsService(store, c, Options{Now: func() time.Time { return testNow }})
}

func matchRange(want domain.DateRange) any {
	return mock.MatchedBy(func(got domain.DateRange) bool {
		return got.Start.Equal(want.Start) && got.End.Equal(want.End)
	})
}

func TestTrendsComputesSeriesAndComparison(t *testing.T) {
	dateRange := testRange()
	current := []domain.RawReport{
		rawLifecycle("r-1", dateRange.Start.Add(time.Hour), domain.StatusPending),
		rawLifecycle("r-2", dateRange.Start.Add(25*time.Hour), domain.StatusPending),
		rawLifecycle("r-3", dateRange.Start.Add(26*time.Hour), domain.StatusPending),
	}
	previous := []domain.RawReport{
		rawLifecycle("r-0", dateRange.Previous().Start.Add(time.Hour), domain.StatusPending),
	}

	store := new(MockReportStore)
	store.On("Fetch", mock.Anything, matchRange(dateRange), domain.Filter{}).Return(current, nil)
	store.On("Fetch", mock.Anything, matchRange(dateRange.Previous()), domain.Filter{}).Return(previous, nil)

	report, err := newService(store, nil).Trends(context.Background(), dateRange, domain.Filter{})
	require.NoError(t, err)

	require.NotNil(t, report.Trends)
	assert.Equal(t, 3, report.Trends.TotalIncidents)

	require.NotNil(t, report.PeriodComparison)
	assert.Equal(t, 3, report.PeriodComparison.CurrentTotal)
	assert.Equal(t, 1, report.PeriodComparison.PreviousTotal)
	assert.Equal(t, "increase", report.PeriodComparison.Trend)

	assert.Equal(t, 3, report.Meta.TotalFetched)
	assert.Equal(t, 3, report.Meta.ValidRecords)
	assert.Equal(t, 0, report.Meta.ExcludedRecords)
	assert.Equal(t, 100, report.Meta.DataQualityScore)
	assert.Empty(t, report.Meta.Degraded)
}

func TestTrendsPreviousFetchFailureDegradesComparisonOnly(t *testing.T) {
	dateRange := testRange()

	store := new(MockReportStore)
	store.On("Fetch", mock.Anything, matchRange(dateRange), domain.Filter{}).
		Return([]domain.RawReport{rawLifecycle("r-1", dateRange.Start.Add(time.Hour), domain.StatusPending)}, nil)
	store.On("Fetch", mock.Anything, matchRange(dateRange.Previous()), domain.Filter{}).
		Return(nil, errors.New("connection reset"))

	report, err := newService(store, nil).Trends(context.Background(), dateRange, domain.Filter{})
	require.NoError(t, err)

	assert.NotNil(t, report.Trends)
	assert.Nil(t, report.PeriodComparison)
	assert.Equal(t, []string{"periodComparison"}, report.Meta.Degraded)
}

func TestTrendsStoreFailureSurfaces(t *testing.T) {
	store := new(MockReportStore)
	store.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("primary unreachable"))

	report, err := newService(store, nil).Trends(context.Background(), testRange(), domain.Filter{})
	assert.Error(t, err)
	assert.Nil(t, report)
}

func TestWorkflowComputesEverySection(t *testing.T) {
	dateRange := testRange()
	raws := []domain.RawReport{
		completedLifecycle("r-1", "driver-1", dateRange.Start.Add(time.Hour)),
		completedLifecycle("r-2", "driver-1", dateRange.Start.Add(2*time.Hour)),
		rawLifecycle("r-3", dateRange.Start.Add(3*time.Hour), domain.StatusPending),
	}

	store := new(MockReportStore)
	store.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(raws, nil)

	report, err := newService(store, nil).Workflow(context.Background(), dateRange, domain.Filter{}, workflow.GranularityDay)
	require.NoError(t, err)

	assert.Empty(t, report.Meta.Degraded)
	require.NotNil(t, report.Distribution)
	assert.Equal(t, 2, report.Distribution.Counts[string(domain.StatusCompleted)])
	assert.NotNil(t, report.Transitions)
	assert.NotEmpty(t, report.CommonPaths)
	assert.NotEmpty(t, report.StatusTimeAnalytics)
	assert.NotNil(t, report.Bottlenecks)
	require.NotNil(t, report.Timeline)
	assert.Equal(t, string(workflow.GranularityDay), report.Timeline.Granularity)
}

func TestWorkflowInvalidGranularityDegradesTimelineOnly(t *testing.T) {
	dateRange := testRange()
	store := new(MockReportStore)
	store.On("Fetch", mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.RawReport{completedLifecycle("r-1", "driver-1", dateRange.Start.Add(time.Hour))}, nil)

	report, err := newService(store, nil).Workflow(context.Background(), dateRange, domain.Filter{}, workflow.Granularity("quarter"))
	require.NoError(t, err)

	assert.Nil(t, report.Timeline)
	assert.Equal(t, []string{"timeline"}, report.Meta.Degraded)
	assert.NotNil(t, report.Distribution)
	assert.NotNil(t, report.Transitions)
}

func TestDriversReport(t *testing.T) {
	dateRange := testRange()
	raws := []domain.RawReport{
		completedLifecycle("r-1", "driver-1", dateRange.Start.Add(time.Hour)),
		completedLifecycle("r-2", "driver-2", dateRange.Start.Add(2*time.Hour)),
	}

	store := new(MockReportStore)
	store.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(raws, nil)

	report, err := newService(store, nil).Drivers(context.Background(), dateRange, domain.Filter{})
	require.NoError(t, err)

	assert.Empty(t, report.Meta.Degraded)
	require.Len(t, report.Drivers, 2)
	assert.NotNil(t, report.Benchmarks)
	require.Contains(t, report.Rankings, "completionRate")
	assert.Len(t, report.Rankings["completionRate"], 2)
}

func TestDriverComparisonUnknownDriver(t *testing.T) {
	store := new(MockReportStore)
	store.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return([]domain.RawReport{}, nil)

	report, err := newService(store, nil).DriverComparison(context.Background(), testRange(), "driver-404")
	assert.Error(t, err)
	assert.Nil(t, report)
}

func TestDataQualityReport(t *testing.T) {
	dateRange := testRange()
	broken := domain.RawReport{ID: "r-2", Status: string(domain.StatusPending)}
	raws := []domain.RawReport{
		rawLifecycle("r-1", dateRange.Start.Add(time.Hour), domain.StatusPending),
		broken,
	}

	store := new(MockReportStore)
	store.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(raws, nil)

	report, err := newService(store, nil).DataQuality(context.Background(), dateRange, domain.Filter{})
	require.NoError(t, err)

	require.NotNil(t, report.Quality)
	assert.Equal(t, 50, report.Quality.QualityScore)
	assert.Equal(t, 1, report.Meta.ExcludedRecords)
}

func TestDashboardComposesEveryBranch(t *testing.T) {
	dateRange := testRange()
	raws := []domain.RawReport{
		completedLifecycle("r-1", "driver-1", dateRange.Start.Add(time.Hour)),
		rawLifecycle("r-2", dateRange.Start.Add(2*time.Hour), domain.StatusPending),
	}

	store := new(MockReportStore)
	store.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(raws, nil)

	dashboard, err := newService(store, nil).Dashboard(context.Background(), dateRange, domain.Filter{}, workflow.GranularityDay, nil)
	require.NoError(t, err)

	assert.Empty(t, dashboard.Meta.Degraded)
	assert.NotNil(t, dashboard.Trends)
	assert.NotNil(t, dashboard.Workflow)
	assert.NotNil(t, dashboard.Drivers)
	assert.NotNil(t, dashboard.Quality)
	assert.Equal(t, 2, dashboard.Meta.TotalFetched)
}

func TestDashboardSectionSubset(t *testing.T) {
	dateRange := testRange()
	store := new(MockReportStore)
	store.On("Fetch", mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.RawReport{rawLifecycle("r-1", dateRange.Start.Add(time.Hour), domain.StatusPending)}, nil)

	svc := newService(store, nil)

	dashboard, err := svc.Dashboard(context.Background(), dateRange, domain.Filter{}, workflow.GranularityDay, []string{"trends"})
	require.NoError(t, err)
	assert.NotNil(t, dashboard.Trends)
	assert.Nil(t, dashboard.Workflow)
	assert.Nil(t, dashboard.Drivers)
	assert.Nil(t, dashboard.Quality)

	_, err = svc.Dashboard(context.Background(), dateRange, domain.Filter{}, workflow.GranularityDay, []string{"bogus"})
	assert.ErrorIs(t, err, ErrUnknownSection)
}

func TestDashboardStoreFailureDegradesBranchesNotRequest(t *testing.T) {
	store := new(MockReportStore)
	store.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("primary unreachable"))

	dashboard, err := newService(store, nil).Dashboard(context.Background(), testRange(), domain.Filter{}, workflow.GranularityDay, nil)
	require.NoError(t, err)

	assert.Nil(t, dashboard.Trends)
	assert.Nil(t, dashboard.Workflow)
	assert.Nil(t, dashboard.Drivers)
	assert.Nil(t, dashboard.Quality)
	assert.Equal(t, []string{"dataQuality", "drivers", "trends", "workflow"}, dashboard.Meta.Degraded)
}

func TestTrendsCacheHitSkipsStore(t *testing.T) {
	mr := miniredis.RunT(t)
	adapter, err := cache.NewRedisAdapter("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })

	dateRange := testRange()
	store := new(MockReportStore)
	store.On("Fetch", mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.RawReport{rawLifecycle("r-1", dateRange.Start.Add(time.Hour), domain.StatusPending)}, nil)

	svc := newService(store, adapter)

	first, err := svc.Trends(context.Background(), dateRange, domain.Filter{})
	require.NoError(t, err)
	fetchesAfterFirst := len(store.Calls)

	second, err := svc.Trends(context.Background(), dateRange, domain.Filter{})
	require.NoError(t, err)

	assert.Equal(t, fetchesAfterFirst, len(store.Calls))
	assert.Equal(t, first, second)
}

func TestDegradedReportsAreNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	adapter, err := cache.NewRedisAdapter("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })

	dateRange := testRange()
	store := new(MockReportStore)
	store.On("Fetch", mock.Anything, matchRange(dateRange), domain.Filter{}).
		Return([]domain.RawReport{rawLifecycle("r-1", dateRange.Start.Add(time.Hour), domain.StatusPending)}, nil)
	store.On("Fetch", mock.Anything, matchRange(dateRange.Previous()), domain.Filter{}).
		Return(nil, errors.New("connection reset"))

	report, err := newService(store, adapter).Trends(context.Background(), dateRange, domain.Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, report.Meta.Degraded)

	assert.Empty(t, mr.Keys())
}

func TestCacheKeysDistinguishQueries(t *testing.T) {
	dateRange := testRange()
	base := newCacheKey("trends", dateRange, domain.Filter{}, "")
	byCategory := newCacheKey("trends", dateRange, domain.Filter{Category: "recyclable"}, "")
	bySection := newCacheKey("workflow", dateRange, domain.Filter{}, "day")

	assert.NotEqual(t, base.String(), byCategory.String())
	assert.NotEqual(t, base.String(), bySection.String())

	for i := 0; i < 3; i++ {
		assert.Equal(t, base.String(), newCacheKey("trends", dateRange, domain.Filter{}, "").String(),
			fmt.Sprintf("key must be deterministic, attempt %d", i))
	}
}

func TestNilCacheRecomputesIdentically(t *testing.T) {
	dateRange := testRange()
	store := new(MockReportStore)
	store.On("Fetch", mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.RawReport{completedLifecycle("r-1", "driver-1", dateRange.Start.Add(time.Hour))}, nil)

	svc := newService(store, nil)

	first, err := svc.Drivers(context.Background(), dateRange, domain.Filter{})
	require.NoError(t, err)
	second, err := svc.Drivers(context.Background(), dateRange, domain.Filter{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
