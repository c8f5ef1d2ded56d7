package model

import (
	"fmt"
	"time"
)

// DateLayout is the day.month.year format used by the upstream and the cache.
const DateLayout = "02.01.2006"

// DateRange is an inclusive, forward interval of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange truncates both bounds to calendar days and rejects backward ranges.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: Day(start), End: Day(end)}
	if r.End.Before(r.Start) {
		return DateRange{}, fmt.Errorf("date range end %s is before start %s", FormatDate(r.End), FormatDate(r.Start))
	}
	return r, nil
}

// Days returns the number of calendar days covered by the range.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24+0.5) + 1
}

func (r DateRange) String() string {
	return FormatDate(r.Start) + "-" + FormatDate(r.End)
}

// Day strips the clock part of t, keeping its location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// FormatDate renders t as dd.mm.yyyy.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a dd.mm.yyyy string in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, s, loc)
}
