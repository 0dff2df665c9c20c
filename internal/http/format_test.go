package http

import (
	"testing"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
)

func TestFormatKES(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "KES 0.00"},
		{5, "KES 0.05"},
		{12345, "KES 123.45"},
		{100000, "KES 1,000.00"},
		{123456789, "KES 1,234,567.89"},
		{-5000, "-KES 50.00"},
	}
	for _, tt := range tests {
		if got := formatKES(core.Money{Cents: tt.cents}); got != tt.want {
			t.Errorf("formatKES(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestBudgetRowsRemainingText(t *testing.T) {
	rows := budgetRows([]analytics.BudgetStatus{
		{Budget: core.Budget{Amount: core.Money{Cents: 10000}}, Spent: core.Money{Cents: 4000}, Remaining: core.Money{Cents: 6000}},
		{Budget: core.Budget{Amount: core.Money{Cents: 10000}}, Spent: core.Money{Cents: 15000}, Remaining: core.Money{Cents: -5000}, Over: true},
	})

	if rows[0].RemainingText != "KES 60.00" || rows[0].SpentText != "KES 40.00" {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].RemainingText != "KES 50.00 over" || rows[1].AmountText != "KES 100.00" {
		t.Errorf("row 1 = %+v", rows[1])
	}
}
