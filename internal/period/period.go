// Package period resolves dashboard date-range filters and maps dates onto
// time buckets. Bucketing is a pure function of the date and the granularity.
package period

import (
	"strconv"
	"strings"
	"time"
)

// Granularity is the width of a time bucket.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// Known filter ids.
const (
	Last7Days    = "last7days"
	Last30Days   = "last30days"
	Last3Months  = "last3months"
	Last6Months  = "last6months"
	Last12Months = "last12months"
	ThisYear     = "thisyear"
	YearToDate   = "ytd"
	LastYear     = "lastyear"
	AllTime      = "all"
)

// Filter is a resolved date-range filter. A zero Start or End means the
// range is unbounded on that side.
type Filter struct {
	ID          string
	Start       time.Time
	End         time.Time
	Granularity Granularity
	// YearScale marks filters spanning a year or more, including all-time and
	// specific-year filters.
	YearScale bool
	Known     bool
}

// Resolve turns a filter id into a concrete range relative to now.
// Unrecognized ids resolve to an unbounded range bucketed by month.
func Resolve(id string, now time.Time) Filter {
	id = strings.TrimSpace(strings.ToLower(id))
	today := truncateDay(now)
	tomorrow := today.AddDate(0, 0, 1)

	f := Filter{ID: id, Granularity: Month, Known: true}
	switch id {
	case Last7Days:
		f.Start, f.End, f.Granularity = today.AddDate(0, 0, -6), tomorrow, Day
	case Last30Days:
		f.Start, f.End, f.Granularity = today.AddDate(0, 0, -29), tomorrow, Week
	case Last3Months:
		f.Start, f.End = today.AddDate(0, -3, 0), tomorrow
	case Last6Months:
		f.Start, f.End = today.AddDate(0, -6, 0), tomorrow
	case Last12Months:
		f.Start, f.End, f.YearScale = today.AddDate(-1, 0, 0), tomorrow, true
	case ThisYear, YearToDate:
		f.Start, f.End, f.YearScale = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC), tomorrow, true
	case LastYear:
		f.Start = time.Date(now.Year()-1, 1, 1, 0, 0, 0, 0, time.UTC)
		f.End = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		f.YearScale = true
	case AllTime, "", "null":
		f.ID = AllTime
		f.YearScale = true
	default:
		if year, ok := parseYear(id); ok {
			f.Start = time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
			f.End = time.Date(year+1, 1, 1, 0, 0, 0, 0, time.UTC)
			f.YearScale = true
			return f
		}
		f.Known = false
	}
	return f
}

func parseYear(id string) (int, bool) {
	if len(id) != 4 {
		return 0, false
	}
	y, err := strconv.Atoi(id)
	if err != nil || y < 1900 || y > 9999 {
		return 0, false
	}
	return y, true
}

// Contains reports whether t falls inside the filter's range.
func (f Filter) Contains(t time.Time) bool {
	if !f.Start.IsZero() && t.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && !t.Before(f.End) {
		return false
	}
	return true
}

// Bounded reports whether the filter restricts dates at all.
func (f Filter) Bounded() bool {
	return !f.Start.IsZero() || !f.End.IsZero()
}

// BucketKey maps a date to its bucket label: YYYY-MM-DD for days, the
// Sunday starting the week for weeks and YYYY-MM for months.
func BucketKey(t time.Time, g Granularity) string {
	switch g {
	case Day:
		return t.Format("2006-01-02")
	case Week:
		return WeekStart(t).Format("2006-01-02")
	default:
		return t.Format("2006-01")
	}
}

// GranularityFor is the bucket width for a filter id.
func GranularityFor(id string) Granularity {
	return Resolve(id, time.Now()).Granularity
}

// WeekStart returns the Sunday on or before t, at midnight.
func WeekStart(t time.Time) time.Time {
	d := truncateDay(t)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
