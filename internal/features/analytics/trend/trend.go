// Package trend turns validated reports into date-by-category time series
// and period-over-period comparisons.
package trend

import (
	"fmt"
	"sort"

	"waste-insights/internal/features/analytics/stats"
	"waste-insights/internal/features/reports/domain"
)

// dayKeyLayout is the ISO day used for bucket keys; downstream chart and
// export consumers depend on this exact format.
const dayKeyLayout = "2006-01-02"

// DailyTrend is one day's incident counts with a per-category breakdown.
type DailyTrend struct {
	Date       string         `json:"date"`
	Total      int            `json:"total"`
	Categories map[string]int `json:"categories"`
}

// Summary is the full trend result for a range.
type Summary struct {
	TotalIncidents    int            `json:"totalIncidents"`
	DailyTrends       []DailyTrend   `json:"dailyTrends"`
	CategoryBreakdown map[string]int `json:"categoryBreakdown"`
}

// Trend direction labels for period comparisons.
const (
	TrendIncrease = "increase"
	TrendDecrease = "decrease"
	TrendStable   = "stable"
)

// PeriodComparison contrasts a period against the equal-length period
// immediately preceding it.
type PeriodComparison struct {
	CurrentTotal     int     `json:"currentTotal"`
	PreviousTotal    int     `json:"previousTotal"`
	PercentageChange float64 `json:"percentageChange"`
	Trend            string  `json:"trend"`
}

// Aggregate groups reports by (day, category) inside the range and pivots to
// per-day totals plus global category totals. Reports outside the range are
// ignored. The per-day category sums are re-checked against the day totals;
// a mismatch is a bug and is returned as an error so the caller can degrade
// this section rather than serve corrupt numbers.
func Aggregate(reports []domain.Report, dateRange domain.DateRange) (Summary, error) {
	summary := Summary{
		DailyTrends:       []DailyTrend{},
		CategoryBreakdown: emptyBreakdown(),
	}

	days := make(map[string]map[string]int)
	for _, report := range reports {
		if !dateRange.Contains(report.CreatedAt) {
			continue
		}
		day := report.CreatedAt.UTC().Format(dayKeyLayout)
		if days[day] == nil {
			days[day] = make(map[string]int)
		}
		days[day][string(report.Category)]++
		summary.CategoryBreakdown[string(report.Category)]++
		summary.TotalIncidents++
	}

	keys := make([]string, 0, len(days))
	for day := range days {
		keys = append(keys, day)
	}
	sort.Strings(keys)

	for _, day := range keys {
		categories := days[day]
		total := 0
		for _, count := range categories {
			total += count
		}
		summary.DailyTrends = append(summary.DailyTrends, DailyTrend{
			Date:       day,
			Total:      total,
			Categories: categories,
		})
	}

	if err := checkInvariants(summary); err != nil {
		return Summary{}, err
	}
	return summary, nil
}

// checkInvariants re-verifies that per-day category sums match day totals and
// that day totals sum to the grand total.
func checkInvariants(summary Summary) error {
	grand := 0
	for _, day := range summary.DailyTrends {
		sum := 0
		for _, count := range day.Categories {
			sum += count
		}
		if sum != day.Total {
			return fmt.Errorf("trend invariant violated: day %s categories sum to %d, total is %d", day.Date, sum, day.Total)
		}
		grand += day.Total
	}
	if grand != summary.TotalIncidents {
		return fmt.Errorf("trend invariant violated: day totals sum to %d, grand total is %d", grand, summary.TotalIncidents)
	}
	return nil
}

func emptyBreakdown() map[string]int {
	breakdown := make(map[string]int, 3)
	for _, category := range domain.Categories() {
		breakdown[string(category)] = 0
	}
	return breakdown
}

// ComparePeriods computes the period-over-period change between a current
// count and the count of the immediately preceding equal-length period.
// With no previous activity the change is 100 when anything happened and 0
// otherwise; the trend is stable only on an exact zero change.
func ComparePeriods(currentTotal, previousTotal int) PeriodComparison {
	var change float64
	switch {
	case previousTotal > 0:
		change = stats.Round2(float64(currentTotal-previousTotal) / float64(previousTotal) * 100)
	case currentTotal > 0:
		change = 100
	default:
		change = 0
	}

	trend := TrendStable
	if change > 0 {
		trend = TrendIncrease
	} else if change < 0 {
		trend = TrendDecrease
	}

	return PeriodComparison{
		CurrentTotal:     currentTotal,
		PreviousTotal:    previousTotal,
		PercentageChange: change,
		Trend:            trend,
	}
}
