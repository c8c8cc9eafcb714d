package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"go.uber.org/zap"

	"waste-insights/internal/core/logger"
	"waste-insights/internal/features/reports/domain"
)

// cacheKey identifies one computed report. Every field that changes the
// result participates, so distinct queries can never collide.
type cacheKey struct {
	section     string
	start       string
	end         string
	category    string
	status      string
	driver      string
	granularity string
}

func newCacheKey(section string, dateRange domain.DateRange, filter domain.Filter, granularity string) cacheKey {
	return cacheKey{
		section:     section,
		start:       dateRange.Start.UTC().Format(domain.TimestampLayout),
		end:         dateRange.End.UTC().Format(domain.TimestampLayout),
		category:    filter.Category,
		status:      filter.Status,
		driver:      filter.AssignedDriver,
		granularity: granularity,
	}
}

func (k cacheKey) String() string {
	return strings.Join([]string{
		"analytics", "v1",
		k.section, k.start, k.end,
		k.category, k.status, k.driver, k.granularity,
	}, ":")
}

// cacheGet loads a cached report into out. Any failure is a miss: the
// cache is an accelerator, never a dependency.
func (s *AnalyticsService) cacheGet(ctx context.Context, key cacheKey, out any) bool {
	if s.cache == nil {
		return false
	}

	payload, err := s.cache.Get(ctx, key.String())
	if err != nil {
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		logger.Get().Warn("discarding malformed cached report",
			zap.String("key", key.String()),
			zap.Error(err),
		)
		return false
	}
	return true
}

// cacheSet stores a computed report. Failures are logged and swallowed.
func (s *AnalyticsService) cacheSet(ctx context.Context, key cacheKey, report any) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(report)
	if err != nil {
		logger.Get().Warn("could not encode report for cache",
			zap.String("key", key.String()),
			zap.Error(err),
		)
		return
	}
	if err := s.cache.Set(ctx, key.String(), payload, s.ttl); err != nil {
		logger.Get().Warn("could not cache report",
			zap.String("key", key.String()),
			zap.Error(err),
		)
	}
}

// sortDegraded keeps the degraded list deterministic regardless of which
// goroutine lost the race.
func sortDegraded(names []string) {
	sort.Strings(names)
}
