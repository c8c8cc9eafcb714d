package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"waste-insights/internal/features/analytics/performance"
	"waste-insights/internal/features/analytics/service"
	"waste-insights/internal/features/analytics/workflow"
	"waste-insights/internal/features/reports/domain"
)

// AnalyticsHandler handles HTTP requests for the analytics endpoints.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	Message string `json:"message"`
	RayID   string `json:"ray_id,omitempty"`
}

func rayID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Message: err.Error(),
		RayID:   rayID(c),
	})
}

func internalError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Message: err.Error(),
		RayID:   rayID(c),
	})
}

func parseQuery(c *fiber.Ctx) (domain.DateRange, domain.Filter, error) {
	dateRange, err := domain.ParseDateRange(c.Query("start"), c.Query("end"))
	if err != nil {
		return domain.DateRange{}, domain.Filter{}, err
	}
	filter := domain.Filter{
		Category:       c.Query("category"),
		Status:         c.Query("status"),
		AssignedDriver: c.Query("driver"),
	}
	return dateRange, filter, nil
}

func parseGranularity(c *fiber.Ctx) (workflow.Granularity, error) {
	raw := c.Query("granularity", string(workflow.GranularityDay))
	granularity := workflow.Granularity(raw)
	switch granularity {
	case workflow.GranularityHour, workflow.GranularityDay, workflow.GranularityWeek:
		return granularity, nil
	}
	return "", workflow.ErrInvalidGranularity
}

// Trends godoc
// @Summary Incident trends over a date range
// @Description Daily incident counts, category breakdown and the change against the previous period
// @Tags analytics
// @Produce json
// @Param start query string true "Range start (ISO date)"
// @Param end query string true "Range end (ISO date)"
// @Param category query string false "Category filter"
// @Param status query string false "Status filter"
// @Param driver query string false "Assigned driver filter"
// @Success 200 {object} service.TrendReport
// @Failure 400 {object} ErrorResponse
// @Router /api/analytics/trends [get]
func (h *AnalyticsHandler) Trends(c *fiber.Ctx) error {
	dateRange, filter, err := parseQuery(c)
	if err != nil {
		return badRequest(c, err)
	}

	report, err := h.analytics.Trends(c.Context(), dateRange, filter)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(report)
}

// Workflow godoc
// @Summary Workflow analytics for a date range
// @Description Status distribution, transitions, common paths, time in status, bottlenecks and timeline
// @Tags analytics
// @Produce json
// @Param start query string true "Range start (ISO date)"
// @Param end query string true "Range end (ISO date)"
// @Param granularity query string false "Timeline grain: hour, day or week" default(day)
// @Success 200 {object} service.WorkflowReport
// @Failure 400 {object} ErrorResponse
// @Router /api/analytics/workflow [get]
func (h *AnalyticsHandler) Workflow(c *fiber.Ctx) error {
	dateRange, filter, err := parseQuery(c)
	if err != nil {
		return badRequest(c, err)
	}
	granularity, err := parseGranularity(c)
	if err != nil {
		return badRequest(c, err)
	}

	report, err := h.analytics.Workflow(c.Context(), dateRange, filter, granularity)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(report)
}

// Drivers godoc
// @Summary Driver performance for a date range
// @Description Per-driver metrics plus population benchmarks and rankings
// @Tags analytics
// @Produce json
// @Param start query string true "Range start (ISO date)"
// @Param end query string true "Range end (ISO date)"
// @Success 200 {object} service.DriverReport
// @Failure 400 {object} ErrorResponse
// @Router /api/analytics/drivers [get]
func (h *AnalyticsHandler) Drivers(c *fiber.Ctx) error {
	dateRange, filter, err := parseQuery(c)
	if err != nil {
		return badRequest(c, err)
	}

	report, err := h.analytics.Drivers(c.Context(), dateRange, filter)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(report)
}

// DriverComparison godoc
// @Summary Compare a driver against population benchmarks
// @Tags analytics
// @Produce json
// @Param id path string true "Driver ID"
// @Param start query string true "Range start (ISO date)"
// @Param end query string true "Range end (ISO date)"
// @Success 200 {object} service.ComparisonReport
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/analytics/drivers/{id}/comparison [get]
func (h *AnalyticsHandler) DriverComparison(c *fiber.Ctx) error {
	dateRange, _, err := parseQuery(c)
	if err != nil {
		return badRequest(c, err)
	}

	report, err := h.analytics.DriverComparison(c.Context(), dateRange, c.Params("id"))
	if err != nil {
		if errors.Is(err, performance.ErrUnknownDriver) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Message: "driver has no reports in range",
				RayID:   rayID(c),
			})
		}
		return internalError(c, err)
	}
	return c.JSON(report)
}

// DataQuality godoc
// @Summary Data quality report for a date range
// @Description Exclusion tallies per reason plus operator recommendations
// @Tags analytics
// @Produce json
// @Param start query string true "Range start (ISO date)"
// @Param end query string true "Range end (ISO date)"
// @Success 200 {object} service.QualityReport
// @Failure 400 {object} ErrorResponse
// @Router /api/analytics/data-quality [get]
func (h *AnalyticsHandler) DataQuality(c *fiber.Ctx) error {
	dateRange, filter, err := parseQuery(c)
	if err != nil {
		return badRequest(c, err)
	}

	report, err := h.analytics.DataQuality(c.Context(), dateRange, filter)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(report)
}

// Dashboard godoc
// @Summary Combined analytics dashboard
// @Description Trends, workflow, drivers and data quality in one response; failed sections are null and listed in meta.degraded
// @Tags analytics
// @Produce json
// @Param start query string true "Range start (ISO date)"
// @Param end query string true "Range end (ISO date)"
// @Param granularity query string false "Timeline grain: hour, day or week" default(day)
// @Param sections query string false "Comma-separated subset: trends,workflow,drivers,dataQuality"
// @Success 200 {object} service.Dashboard
// @Failure 400 {object} ErrorResponse
// @Router /api/analytics/dashboard [get]
func (h *AnalyticsHandler) Dashboard(c *fiber.Ctx) error {
	dateRange, filter, err := parseQuery(c)
	if err != nil {
		return badRequest(c, err)
	}
	granularity, err := parseGranularity(c)
	if err != nil {
		return badRequest(c, err)
	}

	var sections []string
	if raw := c.Query("sections"); raw != "" {
		sections = strings.Split(raw, ",")
	}

	dashboard, err := h.analytics.Dashboard(c.Context(), dateRange, filter, granularity, sections)
	if err != nil {
		if errors.Is(err, service.ErrUnknownSection) {
			return badRequest(c, err)
		}
		return internalError(c, err)
	}
	return c.JSON(dashboard)
}
