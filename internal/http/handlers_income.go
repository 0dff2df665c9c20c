package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	income, err := s.ledger.CreateIncome(r.Context(), core.Income{
		UserID: mustUserID(r),
		Amount: req.Amount,
		Source: sanitizeInput(req.Source),
		Note:   sanitizeInput(req.Note),
		Date:   req.Date,
	})
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	NewJSONResponse().Created("income", income).Write(w)
}

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	incomes, err := s.ledger.ListIncomes(r.Context(), mustUserID(r), ParseIncomeFilter(r.URL.Query()))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if incomes == nil {
		incomes = []core.Income{}
	}

	NewJSONResponse().Field("incomes", incomes).Write(w)
}

func (s *Server) handleIncomeSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.dashboard.IncomeSummary(r.Context(), mustUserID(r))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}

	NewJSONResponse().
		Field("summary", summary).
		Field("averageMonthlyText", formatKES(summary.AverageMonthly)).
		Write(w)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.ledger.DeleteIncome(r.Context(), mustUserID(r), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}

	NewJSONResponse().Field("deleted", true).Write(w)
}
