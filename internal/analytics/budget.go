package analytics

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Per-budget progress classes.
const (
	ClassNormal  = "normal"
	ClassWarning = "warning"
	ClassDanger  = "danger"
)

// Health labels for aggregate and per-period summaries.
const (
	HealthGood       = "Good"
	HealthWarning    = "Warning"
	HealthOverBudget = "Over Budget"
	HealthNoBudget   = "No Budget"
	HealthNoBudgets  = "No Budgets"
)

var (
	hundred = decimal.NewFromInt(100)

	// per-budget row thresholds
	rowWarningAbove = decimal.NewFromInt(80)
	rowDangerAbove  = decimal.NewFromInt(100)

	// dashboard-wide thresholds
	aggregateWarningAbove = decimal.NewFromInt(70)
	aggregateOverAbove    = decimal.NewFromInt(90)
)

// Percent is a spent-to-budget ratio in percent. It encodes to JSON rounded
// to two decimals, and infinite values encode as null.
type Percent float64

func (p Percent) MarshalJSON() ([]byte, error) {
	f := float64(p)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)), nil
}

// BudgetStatus is the evaluation of a single budget against its current
// period window.
type BudgetStatus struct {
	Budget        core.Budget `json:"budget"`
	Spent         core.Money  `json:"spent"`
	Remaining     core.Money  `json:"remaining"`
	Percentage    Percent     `json:"percentage"`
	ProgressClass string      `json:"progressClass"`
	Over          bool        `json:"over"`
}

// RemainingText renders the remaining amount with format. An overspent
// budget shows the overspent magnitude followed by "over".
func (s BudgetStatus) RemainingText(format func(core.Money) string) string {
	if s.Over {
		return format(s.Remaining.Abs()) + " over"
	}
	return format(s.Remaining)
}

// Health is the dashboard-wide status over all monthly budgets.
type Health struct {
	Status      string     `json:"status"`
	TotalBudget core.Money `json:"totalBudget"`
	TotalSpent  core.Money `json:"totalSpent"`
	Percentage  Percent    `json:"percentage"`
}

// Overview summarizes every budget of one period.
type Overview struct {
	Period         core.Period `json:"period"`
	TotalBudget    core.Money  `json:"totalBudget"`
	TotalSpent     core.Money  `json:"totalSpent"`
	TotalRemaining core.Money  `json:"totalRemaining"`
	Health         string      `json:"health"`
}

// EvaluateBudget compares a budget with the expenses of its category in the
// current period. Category matching is exact.
func EvaluateBudget(b core.Budget, expenses []core.Expense, now time.Time) BudgetStatus {
	spent := CategorySpent(expenses, b.Category, b.Period, now)
	s := BudgetStatus{
		Budget:    b,
		Spent:     spent,
		Remaining: b.Amount.Sub(spent),
	}
	s.Over = s.Remaining.Cents < 0

	if b.Amount.Cents <= 0 {
		s.Percentage = Percent(math.Inf(1))
		s.ProgressClass = ClassDanger
		return s
	}

	pct := percentOf(spent, b.Amount)
	s.Percentage = Percent(pct.InexactFloat64())
	switch {
	case pct.GreaterThan(rowDangerAbove):
		s.ProgressClass = ClassDanger
	case pct.GreaterThan(rowWarningAbove):
		s.ProgressClass = ClassWarning
	default:
		s.ProgressClass = ClassNormal
	}
	return s
}

// EvaluateBudgets evaluates every budget, preserving input order.
func EvaluateBudgets(budgets []core.Budget, expenses []core.Expense, now time.Time) []BudgetStatus {
	out := make([]BudgetStatus, len(budgets))
	for i, b := range budgets {
		out[i] = EvaluateBudget(b, expenses, now)
	}
	return out
}

// AggregateStatus rolls all monthly budgets up into one health label.
// Spend is matched to budgets case-insensitively.
func AggregateStatus(budgets []core.Budget, expenses []core.Expense, now time.Time) Health {
	var h Health
	found := false
	for _, b := range budgets {
		if b.Period != core.Monthly {
			continue
		}
		found = true
		h.TotalBudget = h.TotalBudget.Add(b.Amount)
		h.TotalSpent = h.TotalSpent.Add(CategorySpentFold(expenses, b.Category, core.Monthly, now))
	}
	if !found {
		h.Status = HealthNoBudget
		return h
	}

	pct := decimal.Zero
	if h.TotalBudget.Cents > 0 {
		pct = percentOf(h.TotalSpent, h.TotalBudget)
	}
	h.Percentage = Percent(pct.InexactFloat64())
	switch {
	case pct.GreaterThan(aggregateOverAbove):
		h.Status = HealthOverBudget
	case pct.GreaterThan(aggregateWarningAbove):
		h.Status = HealthWarning
	default:
		h.Status = HealthGood
	}
	return h
}

// PeriodOverview totals the budgets of period against their exact-category
// spend. Above 100% is over budget, above 80% is a warning.
func PeriodOverview(budgets []core.Budget, expenses []core.Expense, period core.Period, now time.Time) Overview {
	o := Overview{Period: period}
	for _, b := range budgets {
		if b.Period != period {
			continue
		}
		o.TotalBudget = o.TotalBudget.Add(b.Amount)
		o.TotalSpent = o.TotalSpent.Add(CategorySpent(expenses, b.Category, b.Period, now))
	}
	o.TotalRemaining = o.TotalBudget.Sub(o.TotalSpent)

	if o.TotalBudget.Cents <= 0 {
		o.Health = HealthNoBudgets
		return o
	}
	pct := percentOf(o.TotalSpent, o.TotalBudget)
	switch {
	case pct.GreaterThan(rowDangerAbove):
		o.Health = HealthOverBudget
	case pct.GreaterThan(rowWarningAbove):
		o.Health = HealthWarning
	default:
		o.Health = HealthGood
	}
	return o
}

// percentOf returns part/whole*100. whole must be positive.
func percentOf(part, whole core.Money) decimal.Decimal {
	return decimal.NewFromInt(part.Cents).Mul(hundred).Div(decimal.NewFromInt(whole.Cents))
}
