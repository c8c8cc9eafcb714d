package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waste-insights/internal/features/analytics/service"
	"waste-insights/internal/features/reports/domain"
)

// stubStore is a fixed-response ReportStore for handler tests.
type stubStore struct {
	raws []domain.RawReport
	err  error
}

func (s *stubStore) Fetch(ctx context.Context, dateRange domain.DateRange, filter domain.Filter) ([]domain.RawReport, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.raws, nil
}

func newTestApp(store *stubStore) *fiber.App {
	svc := service.NewAnalyticsService(store, nil, service.Options{})
	h := NewAnalyticsHandler(svc)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("requestid", "test-ray-id")
		return c.Next()
	})
	app.Get("/api/analytics/trends", h.Trends)
	app.Get("/api/analytics/workflow", h.Workflow)
	app.Get("/api/analytics/drivers", h.Drivers)
	app.Get("/api/analytics/drivers/:id/comparison", h.DriverComparison)
	app.Get("/api/analytics/data-quality", h.DataQuality)
	app.Get("/api/analytics/dashboard", h.Dashboard)
	return app
}

func seedRaw(id, driver string, created time.Time) domain.RawReport {
	ts := created.Format(domain.TimestampLayout)
	done := created.Add(2 * time.Hour).Format(domain.TimestampLayout)
	return domain.RawReport{
		ID:             id,
		Category:       string(domain.CategoryRecyclable),
		Status:         string(domain.StatusCompleted),
		CreatedAt:      ts,
		UpdatedAt:      done,
		AssignedDriver: driver,
		StatusHistory: []domain.RawStatusEntry{
			{Status: string(domain.StatusPending), Timestamp: ts},
			{Status: string(domain.StatusCompleted), Timestamp: done},
		},
	}
}

func TestTrendsEndpoint(t *testing.T) {
	store := &stubStore{raws: []domain.RawReport{
		seedRaw("r-1", "driver-1", time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)),
	}}
	app := newTestApp(store)

	req := httptest.NewRequest("GET", "/api/analytics/trends?start=2025-06-01&end=2025-06-10", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var report service.TrendReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	require.NotNil(t, report.Trends)
	assert.Equal(t, 1, report.Trends.TotalIncidents)
	assert.Equal(t, 1, report.Meta.TotalFetched)
}

func TestTrendsEndpointRejectsInvertedRange(t *testing.T) {
	app := newTestApp(&stubStore{})

	req := httptest.NewRequest("GET", "/api/analytics/trends?start=2025-06-10&end=2025-06-01", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "test-ray-id", errResp.RayID)
}

func TestTrendsEndpointRejectsMissingDates(t *testing.T) {
	app := newTestApp(&stubStore{})

	req := httptest.NewRequest("GET", "/api/analytics/trends", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestWorkflowEndpointRejectsUnknownGranularity(t *testing.T) {
	app := newTestApp(&stubStore{})

	req := httptest.NewRequest("GET", "/api/analytics/workflow?start=2025-06-01&end=2025-06-10&granularity=quarter", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Contains(t, errResp.Message, "granularity")
}

func TestWorkflowEndpoint(t *testing.T) {
	store := &stubStore{raws: []domain.RawReport{
		seedRaw("r-1", "driver-1", time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)),
	}}
	app := newTestApp(store)

	req := httptest.NewRequest("GET", "/api/analytics/workflow?start=2025-06-01&end=2025-06-10&granularity=week", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var report service.WorkflowReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	require.NotNil(t, report.Distribution)
	assert.Equal(t, 1, report.Distribution.TotalReports)
	assert.Empty(t, report.Meta.Degraded)
}

func TestDriverComparisonEndpointUnknownDriver(t *testing.T) {
	app := newTestApp(&stubStore{})

	req := httptest.NewRequest("GET", "/api/analytics/drivers/driver-404/comparison?start=2025-06-01&end=2025-06-10", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDriverComparisonEndpoint(t *testing.T) {
	store := &stubStore{raws: []domain.RawReport{
		seedRaw("r-1", "driver-1", time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)),
		seedRaw("r-2", "driver-2", time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC)),
	}}
	app := newTestApp(store)

	req := httptest.NewRequest("GET", "/api/analytics/drivers/driver-1/comparison?start=2025-06-01&end=2025-06-10", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var report service.ComparisonReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	require.NotNil(t, report.Comparison)
	assert.Equal(t, "driver-1", report.Comparison.DriverID)
}

func TestDataQualityEndpoint(t *testing.T) {
	store := &stubStore{raws: []domain.RawReport{
		seedRaw("r-1", "driver-1", time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)),
		{ID: "r-2"},
	}}
	app := newTestApp(store)

	req := httptest.NewRequest("GET", "/api/analytics/data-quality?start=2025-06-01&end=2025-06-10", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var report service.QualityReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	require.NotNil(t, report.Quality)
	assert.Equal(t, 50, report.Quality.QualityScore)
}

func TestDashboardEndpointSectionSubset(t *testing.T) {
	store := &stubStore{raws: []domain.RawReport{
		seedRaw("r-1", "driver-1", time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)),
	}}
	app := newTestApp(store)

	req := httptest.NewRequest("GET", "/api/analytics/dashboard?start=2025-06-01&end=2025-06-10&sections=trends,dataQuality", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var dashboard service.Dashboard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dashboard))
	assert.NotNil(t, dashboard.Trends)
	assert.NotNil(t, dashboard.Quality)
	assert.Nil(t, dashboard.Workflow)
	assert.Nil(t, dashboard.Drivers)
}

func TestDashboardEndpointRejectsUnknownSection(t *testing.T) {
	app := newTestApp(&stubStore{})

	req := httptest.NewRequest("GET", "/api/analytics/dashboard?start=2025-06-01&end=2025-06-10&sections=bogus", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestDashboardEndpointDegradesOnStoreFailure(t *testing.T) {
	app := newTestApp(&stubStore{err: errors.New("primary unreachable")})

	req := httptest.NewRequest("GET", "/api/analytics/dashboard?start=2025-06-01&end=2025-06-10", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var dashboard service.Dashboard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dashboard))
	assert.Nil(t, dashboard.Trends)
	assert.Len(t, dashboard.Meta.Degraded, 4)
}
