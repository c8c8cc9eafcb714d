package validate

// ReasonTally counts detected issues by reason across a batch. Hard reasons
// reflect exclusions; invalidCoordinates also counts retained records whose
// coordinates were flagged and dropped.
type ReasonTally struct {
	MissingData        int `json:"missingData"`
	InvalidDates       int `json:"invalidDates"`
	InvalidCoordinates int `json:"invalidCoordinates"`
	Duplicates         int `json:"duplicates"`
	InvalidCategory    int `json:"invalidCategory"`
	InvalidStatus      int `json:"invalidStatus"`
	ValidationErrors   int `json:"validationErrors"`
}

// QualityReport summarizes how trustworthy a batch is. Callers must consult
// it before treating a zeroed analytics section as a genuine "no incidents".
type QualityReport struct {
	TotalRecords     int               `json:"totalRecords"`
	ValidRecords     int               `json:"validRecords"`
	ExcludedRecords  int               `json:"excludedRecords"`
	WarningCount     int               `json:"warningCount"`
	QualityScore     int               `json:"qualityScore"`
	Reasons          ReasonTally       `json:"reasons"`
	Recommendations  []string          `json:"recommendations"`
	ExclusionDetails []ExclusionDetail `json:"exclusionDetails,omitempty"`
}

const (
	criticalScoreBand = 50
	warningScoreBand  = 80
)

// BuildQualityReport aggregates a validated batch into a data-quality report
// with rule-based recommendations.
func BuildQualityReport(batch Batch) QualityReport {
	tally := ReasonTally{
		MissingData:        batch.issueTally[ReasonMissingData],
		InvalidDates:       batch.issueTally[ReasonInvalidDates],
		InvalidCoordinates: batch.issueTally[ReasonInvalidCoordinates],
		Duplicates:         batch.issueTally[ReasonDuplicates],
		InvalidCategory:    batch.issueTally[ReasonInvalidCategory],
		InvalidStatus:      batch.issueTally[ReasonInvalidStatus],
		ValidationErrors:   batch.ExcludedCount,
	}

	report := QualityReport{
		TotalRecords:     batch.TotalRecords,
		ValidRecords:     batch.TotalRecords - batch.ExcludedCount,
		ExcludedRecords:  batch.ExcludedCount,
		WarningCount:     batch.WarningCount,
		QualityScore:     batch.DataQualityScore,
		Reasons:          tally,
		Recommendations:  recommend(tally, batch.DataQualityScore),
		ExclusionDetails: batch.ExclusionDetails,
	}
	return report
}

// recommend applies the fixed rule table keyed on nonzero reason counts and
// score bands.
func recommend(tally ReasonTally, score int) []string {
	var recs []string

	if score < criticalScoreBand {
		recs = append(recs, "CRITICAL: more than half of the batch failed validation; audit the ingestion pipeline before trusting any analytics")
	} else if score < warningScoreBand {
		recs = append(recs, "WARNING: data quality is degraded; treat aggregate numbers as lower bounds")
	}

	if tally.MissingData > 0 {
		recs = append(recs, "Records are missing required fields; enforce id, category, status and createdAt at the client")
	}
	if tally.InvalidDates > 0 {
		recs = append(recs, "Timestamp anomalies detected; check device clocks and server-side timestamping")
	}
	if tally.InvalidCoordinates > 0 {
		recs = append(recs, "Coordinate issues detected; require both latitude and longitude and validate ranges at capture")
	}
	if tally.Duplicates > 0 {
		recs = append(recs, "Duplicate report ids detected; review id generation and retry handling in the submission path")
	}
	if tally.InvalidCategory > 0 {
		recs = append(recs, "Unknown categories detected; reconcile client category lists with the server enum")
	}
	if tally.InvalidStatus > 0 {
		recs = append(recs, "Unknown statuses detected; reconcile workflow tooling with the server status enum")
	}

	if len(recs) == 0 {
		recs = append(recs, "Data quality is healthy; no action required")
	}
	return recs
}
