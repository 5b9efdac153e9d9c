package submissions

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/joblinker/backend/internal/apperr"
	"github.com/joblinker/backend/internal/httpapi"
	"github.com/joblinker/backend/internal/middleware"
	"github.com/joblinker/backend/internal/models"
	"github.com/joblinker/backend/internal/validate"
)

type CreateSubmissionRequest struct {
	TaskID  uuid.UUID `json:"task_id"`
	Details string    `json:"details"`
}

type DecideRequest struct {
	Decision string `json:"decision"`
}

// UserResolver maps the email query parameters onto user ids.
type UserResolver interface {
	GetUser(ctx context.Context, email string) (*models.User, error)
}

type Handler struct {
	svc   Service
	users UserResolver
	v     *validate.Validator
	log   *slog.Logger
}

func NewHandler(svc Service, users UserResolver, v *validate.Validator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, users: users, v: v, log: log}
}

// Submit handles POST /submissions. The requester is the worker.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	workerID, err := middleware.RequireRequester(r)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	var req CreateSubmissionRequest
	if err := h.v.Decode(r.Body, validate.CreateSubmission, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	sub, err := h.svc.Submit(r.Context(), req.TaskID, workerID, req.Details)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, sub)
}

// List handles GET /submissions?workerEmail= or ?creatorEmail=. Exactly one
// must be given. An unknown email lists nothing.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	workerEmail, creatorEmail := q.Get("workerEmail"), q.Get("creatorEmail")
	if (workerEmail == "") == (creatorEmail == "") {
		httpapi.WriteError(w, h.log, apperr.InvalidArgument("give exactly one of workerEmail or creatorEmail"))
		return
	}
	var f Filter
	email := workerEmail
	if creatorEmail != "" {
		email = creatorEmail
	}
	u, err := h.users.GetUser(r.Context(), email)
	if errors.Is(err, apperr.ErrNotFound) {
		httpapi.WriteJSON(w, http.StatusOK, []*models.Submission{})
		return
	}
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	if workerEmail != "" {
		f.WorkerID = u.ID
	} else {
		f.CreatorID = u.ID
	}
	seq, err := h.svc.ListSubmissions(r.Context(), f)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	list, err := httpapi.Collect(seq)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, list)
}

// Get handles GET /submissions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathUUID(r, "id")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	sub, err := h.svc.GetSubmission(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, sub)
}

// Decide handles PATCH /submissions/{id}. The requester must be the task's
// creator.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	requesterID, err := middleware.RequireRequester(r)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	id, err := httpapi.PathUUID(r, "id")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	var req DecideRequest
	if err := h.v.Decode(r.Body, validate.DecideSubmission, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	sub, err := h.svc.Decide(r.Context(), id, req.Decision, requesterID)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	h.log.Info("submission decided", "submission_id", id, "status", sub.Status, "task_id", sub.TaskID)
	httpapi.WriteJSON(w, http.StatusOK, sub)
}
