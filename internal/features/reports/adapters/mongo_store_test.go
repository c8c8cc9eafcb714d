package adapters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"waste-insights/internal/features/reports/domain"
)

// TestBuildFetchFilter_RangeOnly verifies the minimal query shape.
func TestBuildFetchFilter_RangeOnly(t *testing.T) {
	dateRange, err := domain.ParseDateRange("2025-01-01", "2025-01-31")
	require.NoError(t, err)

	query := BuildFetchFilter(dateRange, domain.Filter{})

	require.Len(t, query, 1)
	bounds, ok := query["created_at"].(bson.M)
	require.True(t, ok)
	assert.Contains(t, bounds, "$gte")
	assert.Contains(t, bounds, "$lte")
}

// TestBuildFetchFilter_AllFilters verifies optional filters land in the query.
func TestBuildFetchFilter_AllFilters(t *testing.T) {
	dateRange, err := domain.ParseDateRange("2025-01-01", "2025-01-31")
	require.NoError(t, err)

	query := BuildFetchFilter(dateRange, domain.Filter{
		Category:       "recyclable",
		Status:         "Pending",
		AssignedDriver: "driver-7",
	})

	assert.Equal(t, "recyclable", query["category"])
	assert.Equal(t, "Pending", query["status"])
	assert.Equal(t, "driver-7", query["assigned_driver"])
}

// TestBuildFetchFilter_BoundsAreRFC3339 verifies the stored-string contract.
func TestBuildFetchFilter_BoundsAreRFC3339(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC)
	query := BuildFetchFilter(domain.DateRange{Start: start, End: end}, domain.Filter{})

	bounds, ok := query["created_at"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, "2025-03-01T00:00:00Z", bounds["$gte"])
	assert.Equal(t, "2025-03-31T23:59:59Z", bounds["$lte"])
}
