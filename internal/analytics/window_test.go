package analytics

import (
	"testing"
	"time"

	"fintrack/internal/core"
)

func cents(c int64) core.Money { return core.Money{Cents: c} }

func expense(category string, c int64, y, m, d int) core.Expense {
	return core.Expense{UserID: 1, Category: category, Amount: cents(c), Date: core.NewDate(y, m, d)}
}

func income(source string, c int64, y, m, d int) core.Income {
	return core.Income{UserID: 1, Source: source, Amount: cents(c), Date: core.NewDate(y, m, d)}
}

func TestPeriodWindowMonthlyStartsOnFirst(t *testing.T) {
	loc := time.FixedZone("EAT", 3*60*60)
	for day := 1; day <= 31; day++ {
		now := time.Date(2025, time.January, day, 17, 45, 12, 0, loc)
		w := PeriodWindow(core.Monthly, now)
		want := time.Date(2025, time.January, 1, 0, 0, 0, 0, loc)
		if !w.Start.Equal(want) {
			t.Fatalf("day %d: start %v, want %v", day, w.Start, want)
		}
		if !w.End.Equal(time.Date(2025, time.February, 1, 0, 0, 0, 0, loc)) {
			t.Fatalf("day %d: unexpected end %v", day, w.End)
		}
	}
}

func TestPeriodWindowWeekly(t *testing.T) {
	cases := []struct {
		name  string
		now   time.Time
		start time.Time
	}{
		{"wednesday", time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC), time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)},
		{"sunday is today", time.Date(2025, 3, 9, 23, 59, 0, 0, time.UTC), time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)},
		{"saturday", time.Date(2025, 3, 15, 1, 0, 0, 0, time.UTC), time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)},
		{"crosses month", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), time.Date(2025, 2, 23, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := PeriodWindow(core.Weekly, tc.now)
			if !w.Start.Equal(tc.start) {
				t.Fatalf("start %v, want %v", w.Start, tc.start)
			}
			if !w.End.Equal(tc.start.AddDate(0, 0, 7)) {
				t.Fatalf("end %v, want start+7d", w.End)
			}
		})
	}
}

func TestWindowIsHalfOpen(t *testing.T) {
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	w := PeriodWindow(core.Monthly, now)
	if !w.Contains(core.NewDate(2025, 3, 1)) || !w.Contains(core.NewDate(2025, 3, 31)) {
		t.Fatalf("month edges should be inside")
	}
	if w.Contains(core.NewDate(2025, 4, 1)) || w.Contains(core.NewDate(2025, 2, 28)) {
		t.Fatalf("neighbouring months should be outside")
	}
	if w.Contains(core.Date{}) {
		t.Fatalf("zero date should never match")
	}
}

func TestCategorySpent(t *testing.T) {
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	expenses := []core.Expense{
		expense("Food", 1000, 2025, 3, 10),
		expense("food", 500, 2025, 3, 11),
		expense("Food", 700, 2025, 3, 2),  // previous week
		expense("Food", 900, 2025, 2, 28), // previous month
		expense("Transport", 300, 2025, 3, 12),
		{UserID: 1, Category: "Food", Amount: cents(4000)}, // unparseable date
	}

	if got := CategorySpent(nil, "Food", core.Monthly, now); got.Cents != 0 {
		t.Fatalf("empty collection should sum to 0, got %d", got.Cents)
	}
	if got := CategorySpent(expenses, "Food", core.Monthly, now); got.Cents != 1700 {
		t.Fatalf("monthly exact = %d, want 1700", got.Cents)
	}
	if got := CategorySpent(expenses, "Food", core.Weekly, now); got.Cents != 1000 {
		t.Fatalf("weekly exact = %d, want 1000", got.Cents)
	}
	if got := CategorySpentFold(expenses, "FOOD", core.Monthly, now); got.Cents != 2200 {
		t.Fatalf("monthly fold = %d, want 2200", got.Cents)
	}
}
