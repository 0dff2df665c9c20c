package http

import (
	"fmt"
	"strconv"
	"strings"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
)

// formatKES formats an amount as Kenyan shillings with thousands grouping
// (e.g., "KES 1,234.50").
func formatKES(m core.Money) string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := "KES " + groupThousands(cents/100) + "." + fmt.Sprintf("%02d", cents%100)
	if neg {
		return "-" + s
	}
	return s
}

func groupThousands(n int64) string {
	digits := strconv.FormatInt(n, 10)
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// budgetRow is a budget status plus its display strings.
type budgetRow struct {
	analytics.BudgetStatus
	SpentText     string `json:"spentText"`
	AmountText    string `json:"amountText"`
	RemainingText string `json:"remainingText"`
}

func budgetRows(statuses []analytics.BudgetStatus) []budgetRow {
	rows := make([]budgetRow, 0, len(statuses))
	for _, st := range statuses {
		rows = append(rows, budgetRow{
			BudgetStatus:  st,
			SpentText:     formatKES(st.Spent),
			AmountText:    formatKES(st.Budget.Amount),
			RemainingText: st.RemainingText(formatKES),
		})
	}
	return rows
}
