// Package analytics turns already-fetched expense, income and budget
// collections into the derived figures shown to a user: period spend,
// category breakdowns, monthly trends and budget health.
//
// Every function is pure. Inputs are never mutated and the same inputs with
// the same now always produce the same result.
package analytics

import (
	"strings"
	"time"

	"fintrack/internal/core"
)

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the calendar date d, taken at midnight in the
// window's location, falls inside the window. Zero dates never match.
func (w Window) Contains(d core.Date) bool {
	if d.IsZero() {
		return false
	}
	t := d.In(w.Start.Location())
	return !t.Before(w.Start) && t.Before(w.End)
}

// PeriodWindow returns the current window of period around now, computed in
// now's location. Weekly windows start on the most recent Sunday (today when
// now is a Sunday); monthly windows start on the 1st of now's month.
// Unknown periods fall back to monthly.
func PeriodWindow(period core.Period, now time.Time) Window {
	loc := now.Location()
	y, m, d := now.Date()

	if period == core.Weekly {
		start := time.Date(y, m, d-int(now.Weekday()), 0, 0, 0, 0, loc)
		return Window{Start: start, End: start.AddDate(0, 0, 7)}
	}

	start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 1, 0)}
}

// CategorySpent sums expenses whose category equals category exactly and
// whose date falls in the current window of period.
func CategorySpent(expenses []core.Expense, category string, period core.Period, now time.Time) core.Money {
	return categorySpent(expenses, period, now, func(c string) bool { return c == category })
}

// CategorySpentFold is CategorySpent with case-insensitive category matching.
func CategorySpentFold(expenses []core.Expense, category string, period core.Period, now time.Time) core.Money {
	return categorySpent(expenses, period, now, func(c string) bool { return strings.EqualFold(c, category) })
}

func categorySpent(expenses []core.Expense, period core.Period, now time.Time, match func(string) bool) core.Money {
	w := PeriodWindow(period, now)
	var total core.Money
	for _, e := range expenses {
		if match(e.Category) && w.Contains(e.Date) {
			total = total.Add(e.Amount)
		}
	}
	return total
}
