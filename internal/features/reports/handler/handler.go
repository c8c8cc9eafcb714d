package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"waste-insights/internal/features/reports/adapters"
	"waste-insights/internal/features/reports/domain"
	"waste-insights/internal/features/reports/service"
)

// ReportHandler handles HTTP requests for report intake and lifecycle updates.
type ReportHandler struct {
	reportService *service.ReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportService *service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

func rayID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}

// SubmitReport godoc
// @Summary Submit a waste incident report
// @Description Citizens submit a new incident with category and optional coordinates
// @Tags reports
// @Accept json
// @Produce json
// @Param report body service.Submission true "Report payload"
// @Success 201 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Router /api/reports [post]
func (h *ReportHandler) SubmitReport(c *fiber.Ctx) error {
	var sub service.Submission
	if err := c.BodyParser(&sub); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "invalid JSON body",
			RayID:   rayID(c),
		})
	}

	id, err := h.reportService.Submit(c.Context(), sub)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCategory) || errors.Is(err, service.ErrInvalidCoordinates) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Message: err.Error(),
				RayID:   rayID(c),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   rayID(c),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

type statusUpdateRequest struct {
	Status    string `json:"status"`
	ChangedBy string `json:"changedBy,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// UpdateStatus godoc
// @Summary Update a report's lifecycle status
// @Tags reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param update body statusUpdateRequest true "Status update"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/reports/{id}/status [patch]
func (h *ReportHandler) UpdateStatus(c *fiber.Ctx) error {
	var req statusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "invalid JSON body",
			RayID:   rayID(c),
		})
	}

	err := h.reportService.UpdateStatus(c.Context(), c.Params("id"), req.Status, req.ChangedBy, req.Notes)
	if err != nil {
		return h.mapUpdateError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type assignRequest struct {
	DriverID  string `json:"driverId"`
	ChangedBy string `json:"changedBy,omitempty"`
}

// AssignDriver godoc
// @Summary Assign a driver to a report
// @Tags reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param assignment body assignRequest true "Driver assignment"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/reports/{id}/assign [patch]
func (h *ReportHandler) AssignDriver(c *fiber.Ctx) error {
	var req assignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "invalid JSON body",
			RayID:   rayID(c),
		})
	}

	err := h.reportService.Assign(c.Context(), c.Params("id"), req.DriverID, req.ChangedBy)
	if err != nil {
		return h.mapUpdateError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListReports godoc
// @Summary List reports in a date range
// @Tags reports
// @Produce json
// @Param start query string true "Range start (ISO date)"
// @Param end query string true "Range end (ISO date)"
// @Param category query string false "Category filter"
// @Param status query string false "Status filter"
// @Param driver query string false "Assigned driver filter"
// @Success 200 {array} domain.RawReport
// @Failure 400 {object} ErrorResponse
// @Router /api/reports [get]
func (h *ReportHandler) ListReports(c *fiber.Ctx) error {
	dateRange, err := domain.ParseDateRange(c.Query("start"), c.Query("end"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   rayID(c),
		})
	}

	filter := domain.Filter{
		Category:       c.Query("category"),
		Status:         c.Query("status"),
		AssignedDriver: c.Query("driver"),
	}

	raws, err := h.reportService.List(c.Context(), dateRange, filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   rayID(c),
		})
	}

	return c.JSON(raws)
}

func (h *ReportHandler) mapUpdateError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidStatus), errors.Is(err, service.ErrMissingDriver):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   rayID(c),
		})
	case errors.Is(err, adapters.ErrReportNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Message: "report not found",
			RayID:   rayID(c),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   rayID(c),
		})
	}
}
