package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// handleSetBudget creates a budget or replaces the amount of the one with
// the same category and period.
func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	budget, err := s.ledger.SetBudget(r.Context(), core.Budget{
		UserID:   mustUserID(r),
		Category: sanitizeInput(req.Category),
		Amount:   req.Amount,
		Period:   req.Period,
	})
	if err != nil {
		writeError(w, r, log.OpUpsert, err)
		return
	}

	NewJSONResponse().Created("budget", budget).Write(w)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.ledger.ListBudgets(r.Context(), mustUserID(r), ParsePeriod(r.URL.Query()))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if budgets == nil {
		budgets = []core.Budget{}
	}

	NewJSONResponse().Field("budgets", budgets).Write(w)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.dashboard.BudgetReport(r.Context(), mustUserID(r), ParsePeriod(r.URL.Query()))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}

	NewJSONResponse().
		Field("overview", report.Overview).
		Field("budgets", budgetRows(report.Budgets)).
		Write(w)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.ledger.DeleteBudget(r.Context(), mustUserID(r), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}

	NewJSONResponse().Field("deleted", true).Write(w)
}
