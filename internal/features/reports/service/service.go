package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"waste-insights/internal/features/reports/domain"
	"waste-insights/internal/features/reports/ports"
)

var (
	// ErrInvalidCategory is returned when a submission carries an unknown category.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrInvalidStatus is returned when a status update carries an unknown status.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidCoordinates is returned when only one coordinate is supplied
	// or a coordinate is out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrMissingDriver is returned when an assignment has no driver id.
	ErrMissingDriver = errors.New("driver id is required")
)

// ReportService handles report intake and lifecycle updates.
type ReportService struct {
	store  ports.ReportStore
	writer ports.ReportWriter
}

// NewReportService creates a new ReportService.
func NewReportService(store ports.ReportStore, writer ports.ReportWriter) *ReportService {
	return &ReportService{store: store, writer: writer}
}

// Submission is a citizen's new report payload.
type Submission struct {
	Category    string   `json:"category"`
	Description string   `json:"description,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// Submit validates the submission, mints an id and stores the report with a
// seeded Pending history entry. Returns the new report id.
func (s *ReportService) Submit(ctx context.Context, sub Submission) (string, error) {
	if !domain.Category(sub.Category).IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, sub.Category)
	}
	if err := checkCoordinates(sub.Latitude, sub.Longitude); err != nil {
		return "", err
	}

	now := time.Now().UTC().Format(domain.TimestampLayout)
	report := domain.RawReport{
		ID:          uuid.NewString(),
		Category:    sub.Category,
		Status:      string(domain.StatusPending),
		CreatedAt:   now,
		UpdatedAt:   now,
		Latitude:    sub.Latitude,
		Longitude:   sub.Longitude,
		Description: sub.Description,
		StatusHistory: []domain.RawStatusEntry{
			{Status: string(domain.StatusPending), Timestamp: now},
		},
	}

	if err := s.writer.Insert(ctx, report); err != nil {
		return "", fmt.Errorf("service: failed to store report: %w", err)
	}
	return report.ID, nil
}

// UpdateStatus appends a lifecycle event to a report.
func (s *ReportService) UpdateStatus(ctx context.Context, reportID, status, changedBy, notes string) error {
	if !domain.Status(status).IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	entry := domain.RawStatusEntry{
		Status:    status,
		Timestamp: time.Now().UTC().Format(domain.TimestampLayout),
	}
	if changedBy != "" {
		entry.ChangedBy = &changedBy
	}
	if notes != "" {
		entry.Notes = &notes
	}

	if err := s.writer.AppendStatus(ctx, reportID, entry); err != nil {
		return fmt.Errorf("service: failed to update status: %w", err)
	}
	return nil
}

// Assign sets the driver on a report and records the Assigned transition.
func (s *ReportService) Assign(ctx context.Context, reportID, driverID, changedBy string) error {
	if driverID == "" {
		return ErrMissingDriver
	}

	entry := domain.RawStatusEntry{
		Status:    string(domain.StatusAssigned),
		Timestamp: time.Now().UTC().Format(domain.TimestampLayout),
	}
	if changedBy != "" {
		entry.ChangedBy = &changedBy
	}

	if err := s.writer.AssignDriver(ctx, reportID, driverID, entry); err != nil {
		return fmt.Errorf("service: failed to assign driver: %w", err)
	}
	return nil
}

// List returns raw reports in the range matching the filter.
func (s *ReportService) List(ctx context.Context, dateRange domain.DateRange, filter domain.Filter) ([]domain.RawReport, error) {
	raws, err := s.store.Fetch(ctx, dateRange, filter)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list reports: %w", err)
	}
	return raws, nil
}

func checkCoordinates(lat, lng *float64) error {
	if (lat == nil) != (lng == nil) {
		return fmt.Errorf("%w: latitude and longitude must be provided together", ErrInvalidCoordinates)
	}
	if lat == nil {
		return nil
	}
	if *lat < -90 || *lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinates, *lat)
	}
	if *lng < -180 || *lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinates, *lng)
	}
	return nil
}
