// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating HTTP request data:
// typed JSON bodies, path ids, list filters and input sanitization.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
)

const maxBodyBytes = 1 << 20

var (
	errEmptyBody = errors.New("request body is empty")
	errInvalidID = errors.New("invalid id")
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type expenseRequest struct {
	Amount   core.Money `json:"amount"`
	Category string     `json:"category"`
	Note     string     `json:"note"`
	Date     core.Date  `json:"date"`
}

type incomeRequest struct {
	Amount core.Money `json:"amount"`
	Source string     `json:"source"`
	Note   string     `json:"note"`
	Date   core.Date  `json:"date"`
}

type budgetRequest struct {
	Category string      `json:"category"`
	Amount   core.Money  `json:"amount"`
	Period   core.Period `json:"period"`
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields
// and trailing data. Domain decode errors (amount, date) are returned as is.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return errEmptyBody
		case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidDate):
			return err
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return fmt.Errorf("invalid value for field %q", typeErr.Field)
		}
		if msg, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
			return fmt.Errorf("unknown field %s", msg)
		}
		return errors.New("malformed JSON body")
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// pathID parses the {id} URL parameter as a positive integer.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// ParseExpenseFilter extracts ?category= and ?month= from query parameters.
func ParseExpenseFilter(query url.Values) analytics.ExpenseFilter {
	return analytics.ExpenseFilter{
		Category: sanitizeInput(query.Get("category")),
		Month:    strings.TrimSpace(query.Get("month")),
	}
}

// ParseIncomeFilter extracts ?source= and ?month= from query parameters.
func ParseIncomeFilter(query url.Values) analytics.IncomeFilter {
	return analytics.IncomeFilter{
		Source: sanitizeInput(query.Get("source")),
		Month:  strings.TrimSpace(query.Get("month")),
	}
}

// ParsePeriod reads ?period=; an empty value is returned unchanged and the
// caller decides the default.
func ParsePeriod(query url.Values) core.Period {
	return core.Period(strings.ToLower(strings.TrimSpace(query.Get("period"))))
}

// ParseLimit reads a positive ?limit=, falling back to def.
func ParseLimit(query url.Values, def, upper int) int {
	n, err := strconv.Atoi(strings.TrimSpace(query.Get("limit")))
	if err != nil || n < 1 {
		return def
	}
	if n > upper {
		return upper
	}
	return n
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// bearerToken returns the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
