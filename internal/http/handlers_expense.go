package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	expense, err := s.ledger.CreateExpense(r.Context(), core.Expense{
		UserID:   mustUserID(r),
		Amount:   req.Amount,
		Category: sanitizeInput(req.Category),
		Note:     sanitizeInput(req.Note),
		Date:     req.Date,
	})
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	NewJSONResponse().Created("expense", expense).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.ledger.ListExpenses(r.Context(), mustUserID(r), ParseExpenseFilter(r.URL.Query()))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}

	NewJSONResponse().Field("expenses", expenses).Write(w)
}

func (s *Server) handleExpenseSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.dashboard.ExpenseSummary(r.Context(), mustUserID(r))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}

	NewJSONResponse().
		Field("summary", summary).
		Field("monthTotalText", formatKES(summary.MonthTotal)).
		Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.ledger.DeleteExpense(r.Context(), mustUserID(r), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}

	NewJSONResponse().Field("deleted", true).Write(w)
}
