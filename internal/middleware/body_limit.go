package middleware

import (
	"log/slog"
	"net/http"

	"github.com/joblinker/backend/internal/apperr"
	"github.com/joblinker/backend/internal/httpapi"
)

// BodyLimit caps request bodies at limit bytes. A declared Content-Length
// over the limit is rejected up front; otherwise reads past it fail inside
// the handler.
func BodyLimit(limit int64, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				httpapi.WriteError(w, log, apperr.InvalidArgument("request body exceeds %d bytes", limit))
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Chain applies mws so the first one is outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
