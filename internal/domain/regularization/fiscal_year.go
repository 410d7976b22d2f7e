package regularization

import "time"

const dateLayout = "2006-01-02"

// IsLeapYear reports whether year has 366 days
func IsLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// DaysInYear returns 366 for leap years and 365 otherwise
func DaysInYear(year int) int {
	if IsLeapYear(year) {
		return 366
	}
	return 365
}

// civilDate drops time of day and location, keeping the calendar date
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// occupancy is the part of a lease that falls inside a fiscal year
type occupancy struct {
	start time.Time
	end   time.Time
	days  int
}

// occupancyWithin clips [start, end] to the fiscal year. ok is false when the
// lease does not overlap the year at all.
func occupancyWithin(start time.Time, end *time.Time, fiscalYear int) (occupancy, bool) {
	yearStart := time.Date(fiscalYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := time.Date(fiscalYear, time.December, 31, 0, 0, 0, 0, time.UTC)

	from := civilDate(start)
	if from.Before(yearStart) {
		from = yearStart
	}
	to := yearEnd
	if end != nil {
		if e := civilDate(*end); e.Before(to) {
			to = e
		}
	}
	if to.Before(from) {
		return occupancy{}, false
	}
	return occupancy{
		start: from,
		end:   to,
		days:  int(to.Sub(from)/(24*time.Hour)) + 1,
	}, true
}

// occupiedMonths is ceil(days / (daysInYear/12)) computed on integers
func occupiedMonths(days, daysInYear int) int64 {
	return ceilDiv(int64(days)*12, int64(daysInYear))
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	return -floorDiv(-a, b)
}
