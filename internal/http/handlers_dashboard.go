package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

const (
	defaultAlertLimit = 20
	maxAlertLimit     = 100
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := s.dashboard.Dashboard(r.Context(), mustUserID(r))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}

	NewJSONResponse().
		Field("dashboard", dash).
		Field("balanceText", formatKES(dash.Comparison.Balance)).
		Write(w)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := ParseLimit(r.URL.Query(), defaultAlertLimit, maxAlertLimit)
	alerts, err := s.ledger.ListAlerts(r.Context(), mustUserID(r), limit)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if alerts == nil {
		alerts = []core.BudgetAlert{}
	}

	NewJSONResponse().Field("alerts", alerts).Write(w)
}
