package domain

import "time"

// AllMonths and AllYears are the zero values of a PeriodFilter axis,
// meaning "no restriction" on that axis.
const (
	AllMonths time.Month = 0
	AllYears  int        = 0
)

// PeriodFilter selects a reporting period. Month and Year are independent:
// each is either a specific value or "all" (the zero value). A filter is
// ephemeral UI state, never persisted.
type PeriodFilter struct {
	Month time.Month // 1-12, or AllMonths
	Year  int        // e.g. 2024, or AllYears
}

// Contains reports whether the transaction date falls inside the period.
func (f PeriodFilter) Contains(d Date) bool {
	if f.Month != AllMonths && d.Month() != f.Month {
		return false
	}
	if f.Year != AllYears && d.Year() != f.Year {
		return false
	}
	return true
}

// Before reports whether the transaction date falls strictly before the
// period. With Year == AllYears there is no meaningful "before all time",
// so Before is false for every date.
func (f PeriodFilter) Before(d Date) bool {
	if f.Year == AllYears {
		return false
	}
	if d.Year() < f.Year {
		return true
	}
	if f.Month == AllMonths {
		return false
	}
	return d.Year() == f.Year && d.Month() < f.Month
}
