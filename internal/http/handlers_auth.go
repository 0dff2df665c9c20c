package http

import (
	"net/http"

	"fintrack/internal/log"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	userID, err := s.accounts.Register(r.Context(), sanitizeInput(req.Username), req.Password)
	if err != nil {
		writeError(w, r, log.OpRegister, err)
		return
	}

	NewJSONResponse().Created("userId", userID).Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	session, err := s.accounts.Login(r.Context(), sanitizeInput(req.Username), req.Password)
	if err != nil {
		writeError(w, r, log.OpLogin, err)
		return
	}

	NewJSONResponse().
		Field("user", map[string]any{"id": session.User.ID, "username": session.User.Username}).
		Field("token", session.Token).
		Field("expiresAt", session.ExpiresAt).
		Write(w)
}
