package ledger

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/joblinker/backend/internal/apperr"
	"github.com/joblinker/backend/internal/httpapi"
	"github.com/joblinker/backend/internal/models"
	"github.com/joblinker/backend/internal/validate"
)

type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Photo string `json:"photo"`
	Role  string `json:"role"`
	Coins *int64 `json:"coins"`
}

type CreateUserResponse struct {
	*models.User
	Token          string    `json:"token"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// TokenIssuer is the slice of auth.Service used to sign in a new user.
type TokenIssuer interface {
	IssueToken(userID uuid.UUID, role string) (string, time.Time, error)
}

type Handler struct {
	svc    Service
	tokens TokenIssuer
	v      *validate.Validator
	log    *slog.Logger
}

func NewHandler(svc Service, tokens TokenIssuer, v *validate.Validator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, tokens: tokens, v: v, log: log}
}

// CreateUser handles POST /users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := h.v.Decode(r.Body, validate.CreateUser, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	u, err := h.svc.CreateUser(r.Context(), NewUser{
		Name:  req.Name,
		Email: req.Email,
		Photo: req.Photo,
		Role:  req.Role,
		Coins: req.Coins,
	})
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	tok, exp, err := h.tokens.IssueToken(u.ID, u.Role)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	h.log.Info("user created", "user_id", u.ID, "role", u.Role, "coins", u.Coins)
	httpapi.WriteJSON(w, http.StatusCreated, CreateUserResponse{User: u, Token: tok, TokenExpiresAt: exp})
}

// ListUsers handles GET /users[?role=].
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role != "" && !models.ValidRole(role) {
		httpapi.WriteError(w, h.log, apperr.InvalidArgument("unknown role %q", role))
		return
	}
	h.writeUsers(w, r, role)
}

// ListWorkers handles GET /users/workers.
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	h.writeUsers(w, r, models.RoleWorker)
}

func (h *Handler) writeUsers(w http.ResponseWriter, r *http.Request, role string) {
	list, err := httpapi.Collect(h.svc.ListUsers(r.Context(), role))
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, list)
}

// GetUser handles GET /users/{email}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.GetUser(r.Context(), r.PathValue("email"))
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, u)
}

// UpdateRole handles PATCH /users/{id}/role.
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathUUID(r, "id")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	var req UpdateRoleRequest
	if err := h.v.Decode(r.Body, validate.UpdateRole, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	u, err := h.svc.UpdateRole(r.Context(), id, req.Role)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, u)
}

// DeleteUser handles DELETE /users/{id}.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathUUID(r, "id")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	if err := h.svc.DeleteUser(r.Context(), id); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	h.log.Info("user deleted", "user_id", id)
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": id})
}

// Entries handles GET /users/{id}/ledger.
func (h *Handler) Entries(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathUUID(r, "id")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	if _, err := h.svc.GetUserByID(r.Context(), id); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	list, err := httpapi.Collect(h.svc.Entries(r.Context(), id))
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, list)
}
