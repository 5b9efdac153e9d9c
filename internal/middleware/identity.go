package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/joblinker/backend/internal/apperr"
	"github.com/joblinker/backend/internal/httpapi"
)

type contextKey string

const ctxRequesterKey contextKey = "requester"

// TokenValidator is the slice of auth.Service the identity middleware needs.
type TokenValidator interface {
	ValidateToken(token string) (uuid.UUID, string, error)
}

// Requester is the identity resolved from the bearer token.
type Requester struct {
	ID   uuid.UUID
	Role string
}

// Identity resolves the requester from "Authorization: Bearer <jwt>". A
// request without the header passes through anonymously; a malformed or
// invalid token is rejected with 401.
func Identity(tokens TokenValidator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" {
				next.ServeHTTP(w, r)
				return
			}
			raw := extractBearer(h)
			if raw == "" {
				httpapi.WriteError(w, log, apperr.Unauthenticated("malformed Authorization header"))
				return
			}
			id, role, err := tokens.ValidateToken(raw)
			if err != nil {
				httpapi.WriteError(w, log, err)
				return
			}
			ctx := WithRequester(r.Context(), Requester{ID: id, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequesterFromCtx returns the resolved requester, if any.
func RequesterFromCtx(ctx context.Context) (Requester, bool) {
	req, ok := ctx.Value(ctxRequesterKey).(Requester)
	return req, ok
}

// WithRequester returns a context carrying the given requester.
func WithRequester(ctx context.Context, req Requester) context.Context {
	return context.WithValue(ctx, ctxRequesterKey, req)
}

// RequireRequester returns the requester's user id, or Unauthenticated when
// the request is anonymous.
func RequireRequester(r *http.Request) (uuid.UUID, error) {
	req, ok := RequesterFromCtx(r.Context())
	if !ok || req.ID == uuid.Nil {
		return uuid.Nil, apperr.Unauthenticated("a bearer token is required")
	}
	return req.ID, nil
}

func extractBearer(h string) string {
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
