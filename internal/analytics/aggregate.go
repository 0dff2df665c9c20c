package analytics

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

const (
	// NoCategory is returned by TopCategory and TopSource for empty input.
	NoCategory = "None"

	DefaultSeriesMonths  = 6
	DefaultRecentLimit   = 5
	DefaultAverageMonths = 6
)

const (
	TrendPositive = "positive"
	TrendNegative = "negative"
	TrendEven     = "even"
)

// MonthPoint is one calendar month of a trend series.
type MonthPoint struct {
	Key      string     `json:"key"`   // 2006-01
	Label    string     `json:"label"` // Jan 06
	Expenses core.Money `json:"expenses"`
	Incomes  core.Money `json:"incomes"`
}

// Transaction is an expense or income flattened for a combined feed.
type Transaction struct {
	Kind        core.TransactionKind `json:"kind"`
	ID          int64                `json:"id"`
	Title       string               `json:"title"`
	Description string               `json:"description,omitempty"`
	Amount      core.Money           `json:"amount"`
	Date        core.Date            `json:"date"`
}

// Comparison holds current-month income against expenses.
type Comparison struct {
	Income   core.Money `json:"income"`
	Expenses core.Money `json:"expenses"`
	Balance  core.Money `json:"balance"`
	Trend    string     `json:"trend"`
}

type ExpenseFilter struct {
	Category string
	Month    string // YYYY-MM
}

type IncomeFilter struct {
	Source string
	Month  string // YYYY-MM
}

// CategoryTotals sums expense amounts per category.
func CategoryTotals(expenses []core.Expense) map[string]core.Money {
	totals := make(map[string]core.Money)
	for _, e := range expenses {
		totals[e.Category] = totals[e.Category].Add(e.Amount)
	}
	return totals
}

// TopCategory returns the category with the highest total, or NoCategory
// when expenses is empty. On a tie the category seen first wins.
func TopCategory(expenses []core.Expense) string {
	keys := make([]string, len(expenses))
	amounts := make([]core.Money, len(expenses))
	for i, e := range expenses {
		keys[i], amounts[i] = e.Category, e.Amount
	}
	return topKey(keys, amounts)
}

// TopSource is TopCategory over income sources.
func TopSource(incomes []core.Income) string {
	keys := make([]string, len(incomes))
	amounts := make([]core.Money, len(incomes))
	for i, in := range incomes {
		keys[i], amounts[i] = in.Source, in.Amount
	}
	return topKey(keys, amounts)
}

func topKey(keys []string, amounts []core.Money) string {
	if len(keys) == 0 {
		return NoCategory
	}

	var order []string
	sums := make(map[string]int64)
	for i, k := range keys {
		if _, seen := sums[k]; !seen {
			order = append(order, k)
		}
		sums[k] += amounts[i].Cents
	}

	best := order[0]
	for _, k := range order[1:] {
		if sums[k] > sums[best] {
			best = k
		}
	}
	return best
}

// MonthlySeries returns exactly monthCount months (DefaultSeriesMonths when
// monthCount <= 0) ending at now's month, oldest first. A record belongs to
// a month when its year and month match.
func MonthlySeries(expenses []core.Expense, incomes []core.Income, now time.Time, monthCount int) []MonthPoint {
	if monthCount <= 0 {
		monthCount = DefaultSeriesMonths
	}

	y, m, _ := now.Date()
	series := make([]MonthPoint, monthCount)
	index := make(map[string]int, monthCount)
	for i := 0; i < monthCount; i++ {
		// Day 1 keeps month arithmetic from overflowing into the next month
		first := time.Date(y, m-time.Month(monthCount-1-i), 1, 0, 0, 0, 0, now.Location())
		key := first.Format("2006-01")
		series[i] = MonthPoint{Key: key, Label: first.Format("Jan 06")}
		index[key] = i
	}

	for _, e := range expenses {
		if i, ok := index[e.Date.YearMonth()]; ok {
			series[i].Expenses = series[i].Expenses.Add(e.Amount)
		}
	}
	for _, in := range incomes {
		if i, ok := index[in.Date.YearMonth()]; ok {
			series[i].Incomes = series[i].Incomes.Add(in.Amount)
		}
	}
	return series
}

// RecentTransactions merges expenses and incomes and returns the newest
// limit entries (DefaultRecentLimit when limit <= 0). Entries with equal
// dates keep their input order, expenses before incomes.
func RecentTransactions(expenses []core.Expense, incomes []core.Income, limit int) []Transaction {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	all := make([]Transaction, 0, len(expenses)+len(incomes))
	for _, e := range expenses {
		all = append(all, Transaction{
			Kind:        core.KindExpense,
			ID:          e.ID,
			Title:       e.Category,
			Description: e.Note,
			Amount:      e.Amount,
			Date:        e.Date,
		})
	}
	for _, in := range incomes {
		all = append(all, Transaction{
			Kind:        core.KindIncome,
			ID:          in.ID,
			Title:       in.Source,
			Description: in.Note,
			Amount:      in.Amount,
			Date:        in.Date,
		})
	}

	slices.SortStableFunc(all, func(a, b Transaction) int { return newestFirst(a.Date, b.Date) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// newestFirst orders dates descending with zero dates last.
func newestFirst(a, b core.Date) int {
	switch {
	case a.IsZero() && b.IsZero():
		return 0
	case a.IsZero():
		return 1
	case b.IsZero():
		return -1
	}
	return b.Compare(a.Time)
}

// AverageMonthlyIncome averages incomes dated from the same calendar day
// months months ago through today, both inclusive, over the number of
// distinct year-months that have at least one income. It returns zero when
// no income falls in that range. months <= 0 means DefaultAverageMonths.
func AverageMonthlyIncome(incomes []core.Income, now time.Time, months int) core.Money {
	if months <= 0 {
		months = DefaultAverageMonths
	}

	today := core.DateOf(now)
	from := addMonthsClamped(today, -months)

	var sum int64
	seen := make(map[string]struct{})
	for _, in := range incomes {
		if in.Date.IsZero() || in.Date.Before(from.Time) || in.Date.After(today.Time) {
			continue
		}
		sum += in.Amount.Cents
		seen[in.Date.YearMonth()] = struct{}{}
	}
	if len(seen) == 0 {
		return core.Money{}
	}

	avg := decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(len(seen)))).Round(0)
	return core.Money{Cents: avg.IntPart()}
}

// addMonthsClamped shifts d by n months, clamping the day to the end of the
// target month (Aug 31 minus 6 months is Feb 28 or 29).
func addMonthsClamped(d core.Date, n int) core.Date {
	y, m, day := d.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return core.NewDate(first.Year(), int(first.Month()), day)
}

// MonthComparison compares income and expenses of now's calendar month.
func MonthComparison(expenses []core.Expense, incomes []core.Income, now time.Time) Comparison {
	c := Comparison{
		Income:   MonthIncomes(incomes, now),
		Expenses: MonthExpenses(expenses, now),
	}
	c.Balance = c.Income.Sub(c.Expenses)
	switch {
	case c.Balance.Cents > 0:
		c.Trend = TrendPositive
	case c.Balance.Cents < 0:
		c.Trend = TrendNegative
	default:
		c.Trend = TrendEven
	}
	return c
}

func TotalExpenses(expenses []core.Expense) core.Money {
	var total core.Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

func TotalIncomes(incomes []core.Income) core.Money {
	var total core.Money
	for _, in := range incomes {
		total = total.Add(in.Amount)
	}
	return total
}

// MonthExpenses sums expenses dated in now's calendar month.
func MonthExpenses(expenses []core.Expense, now time.Time) core.Money {
	return TotalExpenses(FilterExpenses(expenses, ExpenseFilter{Month: now.Format("2006-01")}))
}

// MonthIncomes sums incomes dated in now's calendar month.
func MonthIncomes(incomes []core.Income, now time.Time) core.Money {
	return TotalIncomes(FilterIncomes(incomes, IncomeFilter{Month: now.Format("2006-01")}))
}

// FilterExpenses keeps expenses matching every non-empty filter field.
func FilterExpenses(expenses []core.Expense, f ExpenseFilter) []core.Expense {
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if f.Month != "" && e.Date.YearMonth() != f.Month {
			continue
		}
		out = append(out, e)
	}
	return out
}

// FilterIncomes keeps incomes matching every non-empty filter field.
func FilterIncomes(incomes []core.Income, f IncomeFilter) []core.Income {
	out := make([]core.Income, 0, len(incomes))
	for _, in := range incomes {
		if f.Source != "" && in.Source != f.Source {
			continue
		}
		if f.Month != "" && in.Date.YearMonth() != f.Month {
			continue
		}
		out = append(out, in)
	}
	return out
}

// SortExpensesByDate returns a copy of expenses ordered newest first.
func SortExpensesByDate(expenses []core.Expense) []core.Expense {
	out := slices.Clone(expenses)
	slices.SortStableFunc(out, func(a, b core.Expense) int { return newestFirst(a.Date, b.Date) })
	return out
}

// SortIncomesByDate returns a copy of incomes ordered newest first.
func SortIncomesByDate(incomes []core.Income) []core.Income {
	out := slices.Clone(incomes)
	slices.SortStableFunc(out, func(a, b core.Income) int { return newestFirst(a.Date, b.Date) })
	return out
}
