package workflow

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"waste-insights/internal/core/logger"
	"waste-insights/internal/features/analytics/stats"
	"waste-insights/internal/features/reports/domain"
)

// StatusTime aggregates how long reports spend in one status, in hours.
type StatusTime struct {
	AverageTime float64 `json:"averageTime"`
	MedianTime  float64 `json:"medianTime"`
	MinTime     float64 `json:"minTime"`
	MaxTime     float64 `json:"maxTime"`
	TotalTime   float64 `json:"totalTime"`
	Count       int     `json:"count"`
}

// TimeInStatus computes per-status duration statistics across all reports.
// Each history entry lasts until the next entry; the terminal entry lasts
// until updatedAt when the report is in a terminal status, otherwise until
// now (the entry is still active).
func TimeInStatus(reports []domain.Report, now time.Time) map[string]StatusTime {
	durations := statusDurations(reports, now)

	result := make(map[string]StatusTime, len(durations))
	for status, values := range durations {
		result[status] = StatusTime{
			AverageTime: stats.Average(values),
			MedianTime:  stats.Round2(stats.Median(values)),
			MinTime:     stats.Round2(stats.Min(values)),
			MaxTime:     stats.Round2(stats.Max(values)),
			TotalTime:   stats.Round2(stats.Sum(values)),
			Count:       len(values),
		}
	}
	return result
}

// statusDurations collects raw per-status durations in hours. Negative
// durations from out-of-order history are dropped with a logged warning so
// they cannot poison the aggregates.
func statusDurations(reports []domain.Report, now time.Time) map[string][]float64 {
	durations := make(map[string][]float64)

	for _, report := range reports {
		for i, entry := range report.StatusHistory {
			var end time.Time
			switch {
			case i+1 < len(report.StatusHistory):
				end = report.StatusHistory[i+1].Timestamp
			case report.Status.IsTerminal():
				end = report.UpdatedAt
			default:
				end = now
			}

			hours := end.Sub(entry.Timestamp).Hours()
			if hours < 0 {
				logger.Get().Warn("negative time-in-status dropped",
					zap.String("report_id", report.ID),
					zap.Int("entry_index", i),
					zap.String("status", string(entry.Status)),
				)
				continue
			}
			durations[string(entry.Status)] = append(durations[string(entry.Status)], hours)
		}
	}
	return durations
}

// BottleneckMetrics carries the distribution numbers a bottleneck was
// flagged on.
type BottleneckMetrics struct {
	AverageHours float64 `json:"averageHours"`
	MedianHours  float64 `json:"medianHours"`
	P90Hours     float64 `json:"p90Hours"`
	P95Hours     float64 `json:"p95Hours"`
	Count        int     `json:"count"`
}

// Bottleneck is a status whose time-in-status distribution indicates
// disproportionate delay.
type Bottleneck struct {
	Status          string            `json:"status"`
	Severity        int               `json:"severity"`
	Metrics         BottleneckMetrics `json:"metrics"`
	Recommendations []string          `json:"recommendations"`
}

// Flagging thresholds, in hours.
const (
	bottleneckAvgThreshold = 24
	bottleneckP90Threshold = 72
	bottleneckSkewRatio    = 2
	escalationAvgThreshold = 168
)

// DetectBottlenecks flags statuses whose duration distribution indicates
// delay: mean above a day, p90 above three days, or a mean more than twice
// the median (a few very slow outliers skew the mean). Severity is additive
// across the average, p90 and tail-spread bands, capped at 100.
func DetectBottlenecks(reports []domain.Report, now time.Time) []Bottleneck {
	durations := statusDurations(reports, now)

	var bottlenecks []Bottleneck
	for status, values := range durations {
		avg := stats.Average(values)
		median := stats.Median(values)
		p90 := stats.Percentile(values, 90)
		p95 := stats.Percentile(values, 95)

		skewed := median > 0 && avg/median > bottleneckSkewRatio
		if avg <= bottleneckAvgThreshold && p90 <= bottleneckP90Threshold && !skewed {
			continue
		}

		bottlenecks = append(bottlenecks, Bottleneck{
			Status:   status,
			Severity: severity(avg, p90, p95),
			Metrics: BottleneckMetrics{
				AverageHours: avg,
				MedianHours:  stats.Round2(median),
				P90Hours:     stats.Round2(p90),
				P95Hours:     stats.Round2(p95),
				Count:        len(values),
			},
			Recommendations: recommendations(status, avg),
		})
	}

	sort.Slice(bottlenecks, func(i, j int) bool {
		if bottlenecks[i].Severity != bottlenecks[j].Severity {
			return bottlenecks[i].Severity > bottlenecks[j].Severity
		}
		return bottlenecks[i].Status < bottlenecks[j].Status
	})
	return bottlenecks
}

// severity scores a flagged status 0-100. Each metric contributes its
// highest matching band; the sum is capped.
func severity(avg, p90, p95 float64) int {
	score := 0

	switch {
	case avg > 168:
		score += 40
	case avg > 72:
		score += 30
	case avg > 24:
		score += 20
	case avg > 12:
		score += 10
	}

	switch {
	case p90 > 336:
		score += 30
	case p90 > 168:
		score += 20
	case p90 > 72:
		score += 15
	}

	switch spread := p95 - p90; {
	case spread > 168:
		score += 20
	case spread > 72:
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}

// recommendations is the status-keyed rule table for flagged bottlenecks.
func recommendations(status string, avg float64) []string {
	var recs []string

	switch domain.Status(status) {
	case domain.StatusPending:
		recs = append(recs,
			"Reports are waiting too long for assignment; consider automated assignment rules",
			"Review intake triage coverage during peak reporting hours")
	case domain.StatusAssigned:
		recs = append(recs,
			"Assigned reports are not being started promptly; review driver workload distribution",
			"Check whether assignments match driver service areas")
	case domain.StatusInProgress:
		recs = append(recs,
			"In-progress work is stalling; check field crews for equipment or access blockers")
	default:
		recs = append(recs, fmt.Sprintf("Review handling procedures for the %s stage", status))
	}

	if avg > escalationAvgThreshold {
		recs = append(recs, fmt.Sprintf("ESCALATE: average time in %s exceeds one week", status))
	}
	return recs
}
