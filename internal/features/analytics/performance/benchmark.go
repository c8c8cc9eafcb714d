package performance

import (
	"errors"
	"fmt"
	"sort"

	"waste-insights/internal/features/analytics/stats"
)

// ErrUnknownDriver is returned when a peer comparison targets a driver with
// no assignments in the analyzed set.
var ErrUnknownDriver = errors.New("unknown driver")

// Metric names used in benchmarks, rankings and comparisons.
const (
	MetricCompletionRate = "completionRate"
	MetricProductivity   = "productivityScore"
	MetricConsistency    = "consistencyScore"
	MetricResolutionTime = "resolutionTime"
)

// MetricBenchmark is the population baseline for a higher-is-better metric.
type MetricBenchmark struct {
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
	Top25   float64 `json:"top25"`
}

// ResolutionBenchmark is the population baseline for resolution time, where
// lower is better, so the headline quartile is the 25th percentile.
type ResolutionBenchmark struct {
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
	Best25  float64 `json:"best25"`
}

// Benchmarks holds population-level baselines across all drivers.
type Benchmarks struct {
	DriverCount    int                 `json:"driverCount"`
	CompletionRate MetricBenchmark     `json:"completionRate"`
	Productivity   MetricBenchmark     `json:"productivityScore"`
	Consistency    MetricBenchmark     `json:"consistencyScore"`
	ResolutionTime ResolutionBenchmark `json:"resolutionTime"`
}

// ComputeBenchmarks derives system benchmarks from every driver's record.
// Drivers with no completed resolutions are excluded from the resolution
// baseline so their zero durations cannot masquerade as instant work.
func ComputeBenchmarks(drivers []DriverPerformance) Benchmarks {
	benchmarks := Benchmarks{DriverCount: len(drivers)}
	if len(drivers) == 0 {
		return benchmarks
	}

	completion := make([]float64, len(drivers))
	productivity := make([]float64, len(drivers))
	consistency := make([]float64, len(drivers))
	var resolution []float64

	for i, driver := range drivers {
		completion[i] = driver.CompletionRate
		productivity[i] = driver.ProductivityScore
		consistency[i] = driver.ConsistencyScore
		if driver.ResolutionTime.Count > 0 {
			resolution = append(resolution, driver.ResolutionTime.AverageHours)
		}
	}

	benchmarks.CompletionRate = metricBenchmark(completion)
	benchmarks.Productivity = metricBenchmark(productivity)
	benchmarks.Consistency = metricBenchmark(consistency)
	benchmarks.ResolutionTime = ResolutionBenchmark{
		Average: stats.Average(resolution),
		Median:  stats.Round2(stats.Median(resolution)),
		Best25:  stats.Round2(stats.Percentile(resolution, 25)),
	}
	return benchmarks
}

func metricBenchmark(values []float64) MetricBenchmark {
	return MetricBenchmark{
		Average: stats.Average(values),
		Median:  stats.Round2(stats.Median(values)),
		Top25:   stats.Round2(stats.Percentile(values, 75)),
	}
}

// Ranking is one driver's 1-based position for a metric, with the share of
// peers it outranks.
type Ranking struct {
	DriverID   string  `json:"driverId"`
	Rank       int     `json:"rank"`
	Percentile float64 `json:"percentile"`
	Value      float64 `json:"value"`
}

// Rank orders drivers by a metric: descending for rate-like metrics,
// ascending for resolution time. Drivers without completed resolutions are
// left out of the resolution ranking.
func Rank(drivers []DriverPerformance, metric string) ([]Ranking, error) {
	value, err := metricExtractor(metric)
	if err != nil {
		return nil, err
	}

	eligible := make([]DriverPerformance, 0, len(drivers))
	for _, driver := range drivers {
		if metric == MetricResolutionTime && driver.ResolutionTime.Count == 0 {
			continue
		}
		eligible = append(eligible, driver)
	}

	ascending := metric == MetricResolutionTime
	sort.Slice(eligible, func(i, j int) bool {
		a, b := value(eligible[i]), value(eligible[j])
		if a != b {
			if ascending {
				return a < b
			}
			return a > b
		}
		return eligible[i].DriverID < eligible[j].DriverID
	})

	rankings := make([]Ranking, len(eligible))
	for i, driver := range eligible {
		rankings[i] = Ranking{
			DriverID:   driver.DriverID,
			Rank:       i + 1,
			Percentile: stats.Round2(float64(len(eligible)-(i+1)) / float64(len(eligible)) * 100),
			Value:      value(driver),
		}
	}
	return rankings, nil
}

func metricExtractor(metric string) (func(DriverPerformance) float64, error) {
	switch metric {
	case MetricCompletionRate:
		return func(d DriverPerformance) float64 { return d.CompletionRate }, nil
	case MetricProductivity:
		return func(d DriverPerformance) float64 { return d.ProductivityScore }, nil
	case MetricConsistency:
		return func(d DriverPerformance) float64 { return d.ConsistencyScore }, nil
	case MetricResolutionTime:
		return func(d DriverPerformance) float64 { return d.ResolutionTime.AverageHours }, nil
	default:
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
}

// Comparison status labels.
const (
	StatusAbove = "above"
	StatusBelow = "below"
	StatusEqual = "equal"
)

// MetricComparison contrasts one driver metric against its benchmark. Gap is
// actual minus benchmark, inverted for resolution time so that positive
// always means better than the baseline.
type MetricComparison struct {
	Metric    string  `json:"metric"`
	Actual    float64 `json:"actual"`
	Benchmark float64 `json:"benchmark"`
	Gap       float64 `json:"gap"`
	Status    string  `json:"status"`
}

// Insight is a rule-derived, priority-tagged observation about a driver.
type Insight struct {
	Priority string `json:"priority"`
	Message  string `json:"message"`
}

// PeerComparison is one driver measured against the population.
type PeerComparison struct {
	DriverID    string             `json:"driverId"`
	DriverCount int                `json:"driverCount"`
	Comparisons []MetricComparison `json:"comparisons"`
	Insights    []Insight          `json:"insights"`
}

// ComparePeer measures one driver against the population benchmarks and
// derives insights.
func ComparePeer(driverID string, drivers []DriverPerformance, benchmarks Benchmarks) (PeerComparison, error) {
	var target *DriverPerformance
	for i := range drivers {
		if drivers[i].DriverID == driverID {
			target = &drivers[i]
			break
		}
	}
	if target == nil {
		return PeerComparison{}, fmt.Errorf("%w: %s", ErrUnknownDriver, driverID)
	}

	comparison := PeerComparison{
		DriverID:    driverID,
		DriverCount: benchmarks.DriverCount,
		Comparisons: []MetricComparison{
			compare(MetricCompletionRate, target.CompletionRate, benchmarks.CompletionRate.Average, false),
			compare(MetricProductivity, target.ProductivityScore, benchmarks.Productivity.Average, false),
			compare(MetricConsistency, target.ConsistencyScore, benchmarks.Consistency.Average, false),
			compare(MetricResolutionTime, target.ResolutionTime.AverageHours, benchmarks.ResolutionTime.Average, true),
		},
	}
	comparison.Insights = insights(*target, comparison.Comparisons, benchmarks)
	return comparison, nil
}

func compare(metric string, actual, benchmark float64, lowerIsBetter bool) MetricComparison {
	gap := actual - benchmark
	if lowerIsBetter {
		gap = benchmark - actual
	}
	gap = stats.Round2(gap)

	status := StatusEqual
	if gap > 0 {
		status = StatusAbove
	} else if gap < 0 {
		status = StatusBelow
	}

	return MetricComparison{
		Metric:    metric,
		Actual:    actual,
		Benchmark: benchmark,
		Gap:       gap,
		Status:    status,
	}
}

// insights is the rule table turning comparisons into tagged messages.
func insights(driver DriverPerformance, comparisons []MetricComparison, benchmarks Benchmarks) []Insight {
	var result []Insight

	if benchmarks.CompletionRate.Top25 > 0 && driver.CompletionRate >= benchmarks.CompletionRate.Top25 {
		result = append(result, Insight{
			Priority: "info",
			Message:  "Completion rate is in the top 25% of all drivers",
		})
	}

	for _, c := range comparisons {
		if c.Status != StatusBelow {
			continue
		}
		switch c.Metric {
		case MetricCompletionRate:
			result = append(result, Insight{
				Priority: "high",
				Message:  "Completion rate is below the driver average; review open assignments",
			})
		case MetricResolutionTime:
			result = append(result, Insight{
				Priority: "medium",
				Message:  "Resolutions take longer than the driver average; check routing and workload",
			})
		case MetricConsistency:
			result = append(result, Insight{
				Priority: "low",
				Message:  "Resolution times vary more than the driver average",
			})
		}
	}

	if driver.WorkloadBalance < 50 {
		result = append(result, Insight{
			Priority: "low",
			Message:  "Assignments are concentrated in few categories; consider diversifying",
		})
	}

	if len(result) == 0 {
		result = append(result, Insight{
			Priority: "info",
			Message:  "Performance is at or above the driver average on every metric",
		})
	}
	return result
}
