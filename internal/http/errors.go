package http

import (
	"context"
	"errors"
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/records"
	"fintrack/internal/services"
)

var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidDate,
	core.ErrInvalidPeriod,
	core.ErrEmptyCategory,
	core.ErrEmptySource,
	core.ErrEmptyUsername,
	core.ErrShortPassword,
	core.ErrLongLabel,
	core.ErrLongNote,
	core.ErrLongUsername,
	services.ErrInvalidMonth,
	errEmptyBody,
	errInvalidID,
}

// writeError maps a service error onto a response. Unknown errors are
// logged and reported as a generic 500 so internals never leak.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			BadRequestError(target.Error()).Write(w)
			return
		}
	}

	switch {
	case errors.Is(err, records.ErrNotFound):
		NotFoundError("not found").Write(w)
	case errors.Is(err, services.ErrUsernameTaken):
		ConflictError(err.Error()).Write(w)
	case errors.Is(err, records.ErrConflict):
		ConflictError("conflict").Write(w)
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		UnauthorizedError(err.Error()).Write(w)
	case errors.Is(err, context.DeadlineExceeded):
		logError(r, op, err)
		ErrorResponse(http.StatusServiceUnavailable, "storage timed out").Write(w)
	default:
		logError(r, op, err)
		InternalServerError("internal error").Write(w)
	}
}

func logError(r *http.Request, op string, err error) {
	fields := log.NewFields().WithOperation(op).WithError(err)
	fields[log.FieldPath] = r.URL.Path
	if userID, ok := userIDFrom(r.Context()); ok {
		fields = fields.WithUser(userID)
	}
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed", fields.ToSlice()...)
}
