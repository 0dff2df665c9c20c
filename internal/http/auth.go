package http

import (
	"context"
	"net/http"

	"fintrack/internal/log"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Authenticator resolves a bearer token to a user id.
type Authenticator interface {
	Authenticate(token string) (int64, error)
}

// requireUser rejects requests without a valid bearer token and stores the
// authenticated user id in the request context.
func requireUser(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				UnauthorizedError("authentication required").Write(w)
				return
			}
			userID, err := authn.Authenticate(token)
			if err != nil {
				log.FromContext(r.Context()).DebugContext(r.Context(), "Rejected bearer token",
					log.FieldComponent, log.ComponentAuth,
					log.FieldError, err.Error())
				UnauthorizedError("invalid or expired token").Write(w)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			logger := log.FromContext(ctx).With(log.FieldUserID, userID)
			ctx = context.WithValue(ctx, log.LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func userIDFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// mustUserID returns the id stored by requireUser. Handlers behind that
// middleware always have one.
func mustUserID(r *http.Request) int64 {
	id, _ := userIDFrom(r.Context())
	return id
}
