package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/joblinker/backend/internal/httpapi"
	"github.com/joblinker/backend/internal/models"
	"github.com/joblinker/backend/internal/validate"
)

type TokenRequest struct {
	Email string `json:"email"`
}

type TokenResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type Handler struct {
	svc Service
	v   *validate.Validator
	log *slog.Logger
}

func NewHandler(svc Service, v *validate.Validator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, v: v, log: log}
}

// Token handles POST /auth/token.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := h.v.Decode(r.Body, validate.IssueToken, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	tok, exp, u, err := h.svc.TokenForEmail(r.Context(), req.Email)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, TokenResponse{Token: tok, ExpiresAt: exp, User: u})
}
