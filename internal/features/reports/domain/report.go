package domain

import "time"

// Category classifies the kind of waste incident being reported.
type Category string

const (
	// CategoryRecyclable indicates recyclable material left uncollected.
	CategoryRecyclable Category = "recyclable"
	// CategoryIllegalDumping indicates waste dumped outside designated areas.
	CategoryIllegalDumping Category = "illegal_dumping"
	// CategoryHazardousWaste indicates material requiring special handling.
	CategoryHazardousWaste Category = "hazardous_waste"
)

// Categories returns every recognized report category.
func Categories() []Category {
	return []Category{CategoryRecyclable, CategoryIllegalDumping, CategoryHazardousWaste}
}

// IsValid reports whether c is one of the recognized categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryRecyclable, CategoryIllegalDumping, CategoryHazardousWaste:
		return true
	}
	return false
}

// Status represents a report's position in its resolution lifecycle.
type Status string

const (
	// StatusPending indicates a newly submitted, unassigned report.
	StatusPending Status = "Pending"
	// StatusAssigned indicates a driver has been assigned.
	StatusAssigned Status = "Assigned"
	// StatusInProgress indicates the assigned driver is working the incident.
	StatusInProgress Status = "In Progress"
	// StatusCompleted indicates the incident was resolved.
	StatusCompleted Status = "Completed"
	// StatusRejected indicates the report was dismissed.
	StatusRejected Status = "Rejected"
)

// Statuses returns every recognized lifecycle status.
func Statuses() []Status {
	return []Status{StatusPending, StatusAssigned, StatusInProgress, StatusCompleted, StatusRejected}
}

// IsValid reports whether s is one of the recognized statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusInProgress, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether s ends a report's lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// StatusHistoryEntry records one lifecycle event of a report.
type StatusHistoryEntry struct {
	// Status is the status the report entered at Timestamp.
	Status Status `json:"status"`
	// Timestamp is when the status change happened.
	Timestamp time.Time `json:"timestamp"`
	// ChangedBy identifies who made the change, when known.
	ChangedBy string `json:"changedBy,omitempty"`
	// Notes carries free-form operator remarks.
	Notes string `json:"notes,omitempty"`
}

// Report is a fully validated waste-incident record. Analytics code operates
// exclusively on this type; schemaless store documents are parsed into it at
// the validation boundary.
type Report struct {
	// ID uniquely identifies the report.
	ID string `json:"id"`
	// Category classifies the incident.
	Category Category `json:"category"`
	// Status is the current lifecycle status.
	Status Status `json:"status"`
	// CreatedAt is when the report was submitted.
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is when the report was last modified. Never before CreatedAt.
	UpdatedAt time.Time `json:"updatedAt"`
	// Latitude and Longitude locate the incident. Present together or not at all.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	// AssignedDriver is the opaque id of the driver working the incident.
	AssignedDriver string `json:"assignedDriver,omitempty"`
	// StatusHistory holds lifecycle events in the order they were recorded.
	StatusHistory []StatusHistoryEntry `json:"statusHistory,omitempty"`
}

// RawStatusEntry is an unvalidated status-history document as stored.
type RawStatusEntry struct {
	Status    string  `bson:"status" json:"status"`
	Timestamp string  `bson:"timestamp" json:"timestamp"`
	ChangedBy *string `bson:"changed_by,omitempty" json:"changedBy,omitempty"`
	Notes     *string `bson:"notes,omitempty" json:"notes,omitempty"`
}

// RawReport is an unvalidated report document exactly as it comes out of the
// store. Historical documents were written by several client generations, so
// every field is optional and timestamps are plain strings. Nothing downstream
// of the validator may touch this type.
type RawReport struct {
	ID             string           `bson:"_id" json:"id"`
	Category       string           `bson:"category" json:"category"`
	Status         string           `bson:"status" json:"status"`
	CreatedAt      string           `bson:"created_at" json:"createdAt"`
	UpdatedAt      string           `bson:"updated_at,omitempty" json:"updatedAt,omitempty"`
	Latitude       *float64         `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude      *float64         `bson:"longitude,omitempty" json:"longitude,omitempty"`
	AssignedDriver string           `bson:"assigned_driver,omitempty" json:"assignedDriver,omitempty"`
	Description    string           `bson:"description,omitempty" json:"description,omitempty"`
	StatusHistory  []RawStatusEntry `bson:"status_history,omitempty" json:"statusHistory,omitempty"`
}

// Filter narrows a report query. Empty fields match everything.
type Filter struct {
	Category       string `json:"category,omitempty"`
	Status         string `json:"status,omitempty"`
	AssignedDriver string `json:"assignedDriver,omitempty"`
}
