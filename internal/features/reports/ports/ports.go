package ports

import (
	"context"

	"waste-insights/internal/features/reports/domain"
)

// ReportStore defines the read-side port the analytics engine fetches from.
// Implementations return raw, unvalidated documents; validation happens in
// the analytics layer.
type ReportStore interface {
	// Fetch returns every report created inside the range that matches the
	// filter, in no particular order.
	Fetch(ctx context.Context, dateRange domain.DateRange, filter domain.Filter) ([]domain.RawReport, error)
}

// ReportWriter defines the write-side port used by the intake feature.
type ReportWriter interface {
	// Insert stores a newly submitted report.
	Insert(ctx context.Context, report domain.RawReport) error
	// AppendStatus pushes a history entry and updates the current status.
	AppendStatus(ctx context.Context, reportID string, entry domain.RawStatusEntry) error
	// AssignDriver sets the assigned driver and pushes an Assigned entry.
	AssignDriver(ctx context.Context, reportID string, driverID string, entry domain.RawStatusEntry) error
}
