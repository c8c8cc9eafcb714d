// Package workflow analyzes report lifecycles: status distribution,
// transition graphs, common paths, time-in-status, bottlenecks and bucketed
// timelines. The status machine (Pending initial, Completed/Rejected
// terminal) is assumed but never enforced; any observed transition is
// counted, not rejected.
package workflow

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"waste-insights/internal/core/logger"
	"waste-insights/internal/features/analytics/stats"
	"waste-insights/internal/features/reports/domain"
)

// Distribution summarizes current statuses over a report set. Percentages
// are integers 0-100; downstream exporters rely on that.
type Distribution struct {
	TotalReports   int            `json:"totalReports"`
	Counts         map[string]int `json:"counts"`
	Percentages    map[string]int `json:"percentages"`
	CompletionRate int            `json:"completionRate"`
	RejectionRate  int            `json:"rejectionRate"`
	InProgressRate int            `json:"inProgressRate"`
}

// Distribute counts reports per current status and derives completion,
// rejection and in-progress rates.
func Distribute(reports []domain.Report) Distribution {
	dist := Distribution{
		TotalReports: len(reports),
		Counts:       make(map[string]int),
		Percentages:  make(map[string]int),
	}
	for _, status := range domain.Statuses() {
		dist.Counts[string(status)] = 0
		dist.Percentages[string(status)] = 0
	}

	for _, report := range reports {
		dist.Counts[string(report.Status)]++
	}

	if dist.TotalReports == 0 {
		return dist
	}

	for status, count := range dist.Counts {
		dist.Percentages[status] = intPercent(count, dist.TotalReports)
	}
	dist.CompletionRate = dist.Percentages[string(domain.StatusCompleted)]
	dist.RejectionRate = dist.Percentages[string(domain.StatusRejected)]
	dist.InProgressRate = dist.Percentages[string(domain.StatusInProgress)]
	return dist
}

func intPercent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(float64(part)/float64(total)*100 + 0.5)
}

// TransitionStat aggregates one observed (from, to) status pair.
type TransitionStat struct {
	FromStatus   string  `json:"fromStatus"`
	ToStatus     string  `json:"toStatus"`
	Count        int     `json:"count"`
	AverageHours float64 `json:"averageHours"`
	MedianHours  float64 `json:"medianHours"`
	MinHours     float64 `json:"minHours"`
	MaxHours     float64 `json:"maxHours"`
}

// TransitionAnalytics is the full transition-graph extraction result.
type TransitionAnalytics struct {
	TotalTransitions  int              `json:"totalTransitions"`
	Transitions       []TransitionStat `json:"transitions"`
	NegativeDurations int              `json:"negativeDurations"`
}

// ExtractTransitions walks consecutive history pairs of every report and
// aggregates per (from, to) pair. A negative elapsed time is a data error:
// the transition is still counted, but its timing is excluded from the
// duration statistics.
func ExtractTransitions(reports []domain.Report) TransitionAnalytics {
	type pairKey struct{ from, to string }

	counts := make(map[pairKey]int)
	durations := make(map[pairKey][]float64)
	analytics := TransitionAnalytics{Transitions: []TransitionStat{}}

	for _, report := range reports {
		if len(report.StatusHistory) < 2 {
			continue
		}
		for i := 1; i < len(report.StatusHistory); i++ {
			prev, next := report.StatusHistory[i-1], report.StatusHistory[i]
			key := pairKey{from: string(prev.Status), to: string(next.Status)}
			counts[key]++
			analytics.TotalTransitions++

			elapsed := next.Timestamp.Sub(prev.Timestamp).Hours()
			if elapsed < 0 {
				analytics.NegativeDurations++
				logger.Get().Warn("negative transition duration excluded from timing stats",
					zap.String("report_id", report.ID),
					zap.Int("pair_index", i-1),
					zap.String("from", key.from),
					zap.String("to", key.to),
				)
				continue
			}
			durations[key] = append(durations[key], elapsed)
		}
	}

	for key, count := range counts {
		timing := durations[key]
		analytics.Transitions = append(analytics.Transitions, TransitionStat{
			FromStatus:   key.from,
			ToStatus:     key.to,
			Count:        count,
			AverageHours: stats.Average(timing),
			MedianHours:  stats.Round2(stats.Median(timing)),
			MinHours:     stats.Round2(stats.Min(timing)),
			MaxHours:     stats.Round2(stats.Max(timing)),
		})
	}

	sort.Slice(analytics.Transitions, func(i, j int) bool {
		a, b := analytics.Transitions[i], analytics.Transitions[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.FromStatus != b.FromStatus {
			return a.FromStatus < b.FromStatus
		}
		return a.ToStatus < b.ToStatus
	})

	return analytics
}

// pathSeparator joins status sequences into path strings.
const pathSeparator = " -> "

// CommonPath is one observed status sequence with its frequency.
type CommonPath struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// CommonPaths reduces each report's status sequence to a path string and
// returns the topN most frequent, with the percentage of history-bearing
// reports that followed each.
func CommonPaths(reports []domain.Report, topN int) []CommonPath {
	pathCounts := make(map[string]int)
	withHistory := 0

	for _, report := range reports {
		if len(report.StatusHistory) == 0 {
			continue
		}
		withHistory++
		statuses := make([]string, len(report.StatusHistory))
		for i, entry := range report.StatusHistory {
			statuses[i] = string(entry.Status)
		}
		pathCounts[strings.Join(statuses, pathSeparator)]++
	}

	paths := make([]CommonPath, 0, len(pathCounts))
	for path, count := range pathCounts {
		paths = append(paths, CommonPath{
			Path:       path,
			Count:      count,
			Percentage: intPercent(count, withHistory),
		})
	}

	sort.Slice(paths, func(i, j int) bool {
		if paths[i].Count != paths[j].Count {
			return paths[i].Count > paths[j].Count
		}
		return paths[i].Path < paths[j].Path
	})

	if topN > 0 && len(paths) > topN {
		paths = paths[:topN]
	}
	return paths
}
