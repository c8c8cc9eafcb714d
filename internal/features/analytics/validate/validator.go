// Package validate is the single parse boundary between schemaless store
// documents and the typed records the analytics engine computes on. A record
// either parses into a domain.Report or is excluded with a reason; one bad
// record never aborts a batch.
package validate

import (
	"fmt"
	"time"

	"waste-insights/internal/features/reports/domain"
)

// Reason classifies why a record was flagged.
type Reason string

const (
	ReasonMissingData        Reason = "missingData"
	ReasonInvalidDates       Reason = "invalidDates"
	ReasonInvalidCoordinates Reason = "invalidCoordinates"
	ReasonDuplicates         Reason = "duplicates"
	ReasonInvalidCategory    Reason = "invalidCategory"
	ReasonInvalidStatus      Reason = "invalidStatus"
	ReasonValidationErrors   Reason = "validationErrors"
)

// Issue is one validation finding on a record.
type Issue struct {
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

// Result is the outcome of validating a single record. Errors exclude the
// record; warnings keep it with reduced confidence. When IsValid, Report
// holds the fully parsed typed record.
type Result struct {
	IsValid  bool    `json:"isValid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
	Report   *domain.Report `json:"-"`
}

// Records older than this are implausible for a live reporting system.
var plausibleEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// futureSkew tolerates small clock drift between writers before flagging a
// createdAt as being in the future.
const futureSkew = 5 * time.Minute

// Validate checks one raw record against the structural and semantic rules
// and, when it passes, parses it into a typed Report. Duplicate detection is
// batch-scoped and happens in ExcludeInvalid, not here.
func Validate(raw domain.RawReport, now time.Time) Result {
	var result Result

	addError := func(reason Reason, format string, args ...any) {
		result.Errors = append(result.Errors, Issue{Reason: reason, Message: fmt.Sprintf(format, args...)})
	}
	addWarning := func(reason Reason, format string, args ...any) {
		result.Warnings = append(result.Warnings, Issue{Reason: reason, Message: fmt.Sprintf(format, args...)})
	}

	if raw.ID == "" {
		addError(ReasonMissingData, "missing id")
	}
	if raw.Category == "" {
		addError(ReasonMissingData, "missing category")
	} else if !domain.Category(raw.Category).IsValid() {
		addError(ReasonInvalidCategory, "unknown category %q", raw.Category)
	}
	if raw.Status == "" {
		addError(ReasonMissingData, "missing status")
	} else if !domain.Status(raw.Status).IsValid() {
		addError(ReasonInvalidStatus, "unknown status %q", raw.Status)
	}

	var createdAt time.Time
	if raw.CreatedAt == "" {
		addError(ReasonMissingData, "missing createdAt")
	} else {
		parsed, err := parseTimestamp(raw.CreatedAt)
		if err != nil {
			addError(ReasonInvalidDates, "unparseable createdAt %q", raw.CreatedAt)
		} else {
			createdAt = parsed
			if createdAt.After(now.Add(futureSkew)) {
				addWarning(ReasonInvalidDates, "createdAt %s is in the future", raw.CreatedAt)
			} else if createdAt.Before(plausibleEpoch) {
				addWarning(ReasonInvalidDates, "createdAt %s is implausibly old", raw.CreatedAt)
			}
		}
	}

	updatedAt := createdAt
	if raw.UpdatedAt != "" {
		parsed, err := parseTimestamp(raw.UpdatedAt)
		switch {
		case err != nil:
			addError(ReasonInvalidDates, "unparseable updatedAt %q", raw.UpdatedAt)
		case !createdAt.IsZero() && parsed.Before(createdAt):
			addError(ReasonInvalidDates, "updatedAt %s before createdAt %s", raw.UpdatedAt, raw.CreatedAt)
		default:
			updatedAt = parsed
		}
	} else if !createdAt.IsZero() {
		addWarning(ReasonMissingData, "missing updatedAt, assuming createdAt")
	}

	latitude, longitude := raw.Latitude, raw.Longitude
	if coordIssue := checkCoordinates(latitude, longitude); coordIssue != "" {
		addWarning(ReasonInvalidCoordinates, "%s", coordIssue)
		latitude, longitude = nil, nil
	}

	history, historyWarnings := parseHistory(raw)
	result.Warnings = append(result.Warnings, historyWarnings...)

	if len(result.Errors) > 0 {
		return result
	}

	result.IsValid = true
	result.Report = &domain.Report{
		ID:             raw.ID,
		Category:       domain.Category(raw.Category),
		Status:         domain.Status(raw.Status),
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
		Latitude:       latitude,
		Longitude:      longitude,
		AssignedDriver: raw.AssignedDriver,
		StatusHistory:  history,
	}
	return result
}

func parseTimestamp(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func checkCoordinates(lat, lng *float64) string {
	if lat == nil && lng == nil {
		return ""
	}
	if (lat == nil) != (lng == nil) {
		return "latitude and longitude must be present together"
	}
	if *lat < -90 || *lat > 90 {
		return fmt.Sprintf("latitude %v out of range", *lat)
	}
	if *lng < -180 || *lng > 180 {
		return fmt.Sprintf("longitude %v out of range", *lng)
	}
	return ""
}

// parseHistory converts the raw status history, skipping malformed entries
// with warnings. Out-of-order timestamps are tolerated but flagged.
func parseHistory(raw domain.RawReport) ([]domain.StatusHistoryEntry, []Issue) {
	var entries []domain.StatusHistoryEntry
	var warnings []Issue

	warn := func(reason Reason, format string, args ...any) {
		warnings = append(warnings, Issue{Reason: reason, Message: fmt.Sprintf(format, args...)})
	}

	for i, rawEntry := range raw.StatusHistory {
		if rawEntry.Status == "" || rawEntry.Timestamp == "" {
			warn(ReasonMissingData, "history entry %d missing status or timestamp", i)
			continue
		}
		if !domain.Status(rawEntry.Status).IsValid() {
			warn(ReasonInvalidStatus, "history entry %d has unknown status %q", i, rawEntry.Status)
			continue
		}
		ts, err := parseTimestamp(rawEntry.Timestamp)
		if err != nil {
			warn(ReasonInvalidDates, "history entry %d has unparseable timestamp %q", i, rawEntry.Timestamp)
			continue
		}

		entry := domain.StatusHistoryEntry{
			Status:    domain.Status(rawEntry.Status),
			Timestamp: ts,
		}
		if rawEntry.ChangedBy != nil {
			entry.ChangedBy = *rawEntry.ChangedBy
		}
		if rawEntry.Notes != nil {
			entry.Notes = *rawEntry.Notes
		}

		if n := len(entries); n > 0 && ts.Before(entries[n-1].Timestamp) {
			warn(ReasonInvalidDates, "history entry %d timestamp precedes entry %d", i, n-1)
		}
		entries = append(entries, entry)
	}

	return entries, warnings
}

// ExclusionDetail records why one record was dropped from a batch.
type ExclusionDetail struct {
	ID     string  `json:"id,omitempty"`
	Index  int     `json:"index"`
	Issues []Issue `json:"issues"`
}

// Batch is the outcome of validating a record collection. Every analytics
// component consumes Valid; the rest is bookkeeping for the quality report.
type Batch struct {
	Valid            []domain.Report   `json:"-"`
	TotalRecords     int               `json:"totalRecords"`
	ExcludedCount    int               `json:"excludedCount"`
	DataQualityScore int               `json:"dataQualityScore"`
	ExclusionDetails []ExclusionDetail `json:"exclusionDetails,omitempty"`
	WarningCount     int               `json:"warningCount"`
	issueTally       map[Reason]int
}

// ExcludeInvalid validates every record, drops the invalid ones and computes
// the batch quality score. Duplicate ids are excluded with the first
// occurrence winning. An empty batch scores 100.
func ExcludeInvalid(raws []domain.RawReport, now time.Time) Batch {
	batch := Batch{
		TotalRecords: len(raws),
		issueTally:   make(map[Reason]int),
	}

	seen := make(map[string]struct{}, len(raws))
	for i, raw := range raws {
		result := Validate(raw, now)

		if result.IsValid {
			if _, dup := seen[raw.ID]; dup {
				issue := Issue{Reason: ReasonDuplicates, Message: fmt.Sprintf("duplicate id %q", raw.ID)}
				batch.ExclusionDetails = append(batch.ExclusionDetails, ExclusionDetail{
					ID: raw.ID, Index: i, Issues: []Issue{issue},
				})
				batch.issueTally[ReasonDuplicates]++
				batch.ExcludedCount++
				continue
			}
			seen[raw.ID] = struct{}{}
			batch.Valid = append(batch.Valid, *result.Report)
		} else {
			batch.ExclusionDetails = append(batch.ExclusionDetails, ExclusionDetail{
				ID: raw.ID, Index: i, Issues: result.Errors,
			})
			for _, issue := range result.Errors {
				batch.issueTally[issue.Reason]++
			}
			batch.ExcludedCount++
		}

		for _, issue := range result.Warnings {
			batch.issueTally[issue.Reason]++
		}
		batch.WarningCount += len(result.Warnings)
	}

	if batch.TotalRecords == 0 {
		batch.DataQualityScore = 100
	} else {
		valid := batch.TotalRecords - batch.ExcludedCount
		batch.DataQualityScore = int(float64(valid)/float64(batch.TotalRecords)*100 + 0.5)
	}

	return batch
}
