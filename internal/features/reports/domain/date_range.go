package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDateRange is returned when a caller supplies an unparseable or
// inverted date range. This signals a caller bug, not data noise.
var ErrInvalidDateRange = errors.New("invalid date range")

// DateRange is an inclusive [Start, End] interval.
type DateRange struct {
	Start time.Time `json:"startDate"`
	End   time.Time `json:"endDate"`
}

// TimestampLayout is the wire format for report timestamps.
const TimestampLayout = time.RFC3339

// ParseDateRange builds a DateRange from ISO-8601 bounds. Date-only bounds
// ("2006-01-02") are accepted; a date-only end is extended to the last instant
// of that day so the interval stays inclusive.
func ParseDateRange(start, end string) (DateRange, error) {
	startTime, _, err := parseBound(start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: start %q: %v", ErrInvalidDateRange, start, err)
	}

	endTime, dateOnly, err := parseBound(end)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: end %q: %v", ErrInvalidDateRange, end, err)
	}
	if dateOnly {
		endTime = endTime.Add(24*time.Hour - time.Nanosecond)
	}

	if startTime.After(endTime) {
		return DateRange{}, fmt.Errorf("%w: start %q after end %q", ErrInvalidDateRange, start, end)
	}

	return DateRange{Start: startTime, End: endTime}, nil
}

func parseBound(value string) (time.Time, bool, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, false, nil
}

// Contains reports whether t falls inside the inclusive interval.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Days returns the number of calendar days the range spans, minimum 1.
func (r DateRange) Days() int {
	days := int(r.End.Sub(r.Start).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}

// Previous returns the equal-length range immediately preceding this one,
// used for period-over-period comparisons.
func (r DateRange) Previous() DateRange {
	span := r.End.Sub(r.Start)
	return DateRange{
		Start: r.Start.Add(-span - time.Nanosecond),
		End:   r.Start.Add(-time.Nanosecond),
	}
}
