// Package performance computes per-driver benchmarks: rates, resolution
// statistics, composite scores, population benchmarks, rankings and peer
// comparisons.
package performance

import (
	"math"
	"sort"

	"waste-insights/internal/features/analytics/stats"
	"waste-insights/internal/features/reports/domain"
)

// ReportsPerDayWindow is the fixed normalization window for the
// reports-per-day figure. Deliberately not derived from the queried range:
// the figure is a 30-day load proxy, not a range-local rate.
const ReportsPerDayWindow = 30.0

// ResolutionStats summarizes completed-resolution durations in hours.
type ResolutionStats struct {
	AverageHours float64 `json:"averageHours"`
	MedianHours  float64 `json:"medianHours"`
	MinHours     float64 `json:"minHours"`
	MaxHours     float64 `json:"maxHours"`
	Count        int     `json:"count"`
}

// DriverPerformance is the per-driver benchmark record. It is constructed
// fresh per call and never persisted.
type DriverPerformance struct {
	DriverID string `json:"driverId"`

	Assigned   int `json:"assigned"`
	Completed  int `json:"completed"`
	Rejected   int `json:"rejected"`
	InProgress int `json:"inProgress"`

	CompletionRate float64 `json:"completionRate"`
	RejectionRate  float64 `json:"rejectionRate"`
	InProgressRate float64 `json:"inProgressRate"`

	ResolutionTime       ResolutionStats    `json:"resolutionTime"`
	CategoryDistribution map[string]float64 `json:"categoryDistribution"`
	WorkloadBalance      float64            `json:"workloadBalance"`
	ReportsPerDay        float64            `json:"reportsPerDay"`

	ProductivityScore  float64 `json:"productivityScore"`
	ConsistencyScore   float64 `json:"consistencyScore"`
	AssignmentAccuracy float64 `json:"assignmentAccuracy"`
}

// ComputeAll groups reports by assigned driver and computes every driver's
// performance record, sorted by driver id. Unassigned reports are ignored.
func ComputeAll(reports []domain.Report) []DriverPerformance {
	byDriver := make(map[string][]domain.Report)
	for _, report := range reports {
		if report.AssignedDriver == "" {
			continue
		}
		byDriver[report.AssignedDriver] = append(byDriver[report.AssignedDriver], report)
	}

	drivers := make([]DriverPerformance, 0, len(byDriver))
	for driverID, assigned := range byDriver {
		drivers = append(drivers, computeDriver(driverID, assigned))
	}
	sort.Slice(drivers, func(i, j int) bool { return drivers[i].DriverID < drivers[j].DriverID })
	return drivers
}

// computeDriver builds one driver's record from their assigned reports.
func computeDriver(driverID string, assigned []domain.Report) DriverPerformance {
	perf := DriverPerformance{
		DriverID:             driverID,
		Assigned:             len(assigned),
		CategoryDistribution: make(map[string]float64, 3),
	}

	categoryCounts := make(map[string]int, 3)
	var resolutionHours []float64

	for _, report := range assigned {
		switch report.Status {
		case domain.StatusCompleted:
			perf.Completed++
			if hours := resolutionDuration(report); hours > 0 {
				resolutionHours = append(resolutionHours, hours)
			}
		case domain.StatusRejected:
			perf.Rejected++
		case domain.StatusInProgress:
			perf.InProgress++
		}
		categoryCounts[string(report.Category)]++
	}

	perf.CompletionRate = rate(perf.Completed, perf.Assigned)
	perf.RejectionRate = rate(perf.Rejected, perf.Assigned)
	perf.InProgressRate = rate(perf.InProgress, perf.Assigned)

	perf.ResolutionTime = ResolutionStats{
		AverageHours: stats.Average(resolutionHours),
		MedianHours:  stats.Round2(stats.Median(resolutionHours)),
		MinHours:     stats.Round2(stats.Min(resolutionHours)),
		MaxHours:     stats.Round2(stats.Max(resolutionHours)),
		Count:        len(resolutionHours),
	}

	for _, category := range domain.Categories() {
		perf.CategoryDistribution[string(category)] = rate(categoryCounts[string(category)], perf.Assigned)
	}
	perf.WorkloadBalance = workloadBalance(categoryCounts, perf.Assigned)

	perf.ReportsPerDay = stats.Round2(float64(perf.Assigned) / ReportsPerDayWindow)
	perf.ProductivityScore = productivityScore(perf.CompletionRate, perf.Assigned)
	perf.ConsistencyScore = consistencyScore(stats.Variance(resolutionHours))
	perf.AssignmentAccuracy = rate(perf.Completed+perf.InProgress, perf.Assigned)

	return perf
}

// resolutionDuration is the hours from submission to completion, taken from
// the Completed history entry when present and updatedAt otherwise.
func resolutionDuration(report domain.Report) float64 {
	end := report.UpdatedAt
	for _, entry := range report.StatusHistory {
		if entry.Status == domain.StatusCompleted {
			end = entry.Timestamp
			break
		}
	}
	return end.Sub(report.CreatedAt).Hours()
}

func rate(count, assigned int) float64 {
	if assigned == 0 {
		return 0
	}
	return stats.Round2(float64(count) / float64(assigned) * 100)
}

// workloadBalance scores how evenly a driver's work spreads across the three
// categories: 100 minus three times the mean absolute deviation of the
// percentage shares from an even third, floored at 0. Computed on exact
// shares so a perfect third-third-third split scores exactly 100.
func workloadBalance(categoryCounts map[string]int, assigned int) float64 {
	if assigned == 0 {
		return 0
	}
	const evenShare = 100.0 / 3

	var deviation float64
	for _, category := range domain.Categories() {
		share := float64(categoryCounts[string(category)]) / float64(assigned) * 100
		deviation += math.Abs(share - evenShare)
	}
	deviation /= 3

	balance := 100 - 3*deviation
	if balance < 0 {
		return 0
	}
	return stats.Round2(balance)
}

// productivityScore blends completion quality with raw volume: 70% of the
// completion rate plus 30% of the volume score, where ten assignments is
// full volume.
func productivityScore(completionRate float64, assigned int) float64 {
	volume := float64(assigned) / 10 * 100
	if volume > 100 {
		volume = 100
	}
	return stats.Round2(0.7*completionRate + 0.3*volume)
}

// consistencyScore penalizes erratic resolution times: 100 minus a tenth of
// the variance, floored at 0. No variance means perfectly consistent.
func consistencyScore(variance float64) float64 {
	if variance <= 0 {
		return 100
	}
	score := 100 - variance/10
	if score < 0 {
		return 0
	}
	return stats.Round2(score)
}
