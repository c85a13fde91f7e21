package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"selns/pkg/domain"
)

// TokenValidator validates a bearer token and returns the principal it was
// issued to.
type TokenValidator interface {
	Validate(tokenString string) (domain.Principal, error)
}

type contextKeyPrincipal struct{}

// GetPrincipal retrieves the authenticated caller principal from the
// context. Zero when the request did not pass RequireAuth.
func GetPrincipal(ctx context.Context) domain.Principal {
	p, ok := ctx.Value(contextKeyPrincipal{}).(domain.Principal)
	if !ok {
		return domain.Zero
	}
	return p
}

// WithPrincipal injects a principal directly, for handler tests.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal{}, p)
}

// RequireAuth authenticates the caller from a Bearer token and stores the
// principal in the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			p, err := validator.Validate(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, p)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
