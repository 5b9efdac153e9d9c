// Package httpapi holds the JSON response helpers shared by every handler.
package httpapi

import (
	"encoding/json"
	"iter"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/joblinker/backend/internal/apperr"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err onto its HTTP status. Only the client-safe message is
// written; 5xx causes are logged.
func WriteError(w http.ResponseWriter, log *slog.Logger, err error) {
	status, kind := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status, "error", err)
	}
	WriteJSON(w, status, ErrorResponse{Error: kind, Message: apperr.PublicMessage(err)})
}

// PathUUID parses the named path wildcard as a UUID.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := r.PathValue(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.InvalidArgument("invalid %s %q", name, raw)
	}
	return id, nil
}

// QueryUUID parses an optional query parameter. Absent means uuid.Nil.
func QueryUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.InvalidArgument("invalid %s %q", name, raw)
	}
	return id, nil
}

// Collect drains seq into a slice that encodes as [] when empty.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	out := make([]T, 0)
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
