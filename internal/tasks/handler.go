package tasks

import (
	"log/slog"
	"net/http"

	"github.com/joblinker/backend/internal/httpapi"
	"github.com/joblinker/backend/internal/middleware"
	"github.com/joblinker/backend/internal/validate"
)

type CreateTaskRequest struct {
	Title          string `json:"title"`
	Detail         string `json:"detail"`
	Image          string `json:"image"`
	SubmissionInfo string `json:"submission_info"`
	Quantity       int64  `json:"quantity"`
	PayableAmount  int64  `json:"payable_amount"`
}

type UpdateTaskRequest struct {
	Title          *string `json:"title"`
	Detail         *string `json:"detail"`
	SubmissionInfo *string `json:"submission_info"`
}

type DeleteTaskResponse struct {
	Deleted bool  `json:"deleted"`
	Refund  int64 `json:"refund"`
}

// TaskHandler serves /tasks endpoints.
type TaskHandler struct {
	svc Service
	v   *validate.Validator
	log *slog.Logger
}

func NewHandler(svc Service, v *validate.Validator, log *slog.Logger) *TaskHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TaskHandler{svc: svc, v: v, log: log}
}

// --- GET /tasks[?creatorId=] ---

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	creatorID, err := httpapi.QueryUUID(r, "creatorId")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	list, err := httpapi.Collect(h.svc.ListTasks(r.Context(), creatorID))
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, list)
}

// --- GET /tasks/{id} ---

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathUUID(r, "id")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	t, err := h.svc.GetTask(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, t)
}

// --- POST /tasks ---

// CreateTask reserves the whole pool from the requester, who becomes the
// task's creator.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	creatorID, err := middleware.RequireRequester(r)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	var req CreateTaskRequest
	if err := h.v.Decode(r.Body, validate.CreateTask, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	t, err := h.svc.CreateTask(r.Context(), NewTask{
		CreatorID:      creatorID,
		Title:          req.Title,
		Detail:         req.Detail,
		Image:          req.Image,
		SubmissionInfo: req.SubmissionInfo,
		Quantity:       req.Quantity,
		PayableAmount:  req.PayableAmount,
	})
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, t)
}

// --- PATCH /tasks/{id} ---

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
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
	var req UpdateTaskRequest
	if err := h.v.Decode(r.Body, validate.UpdateTask, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	t, err := h.svc.UpdateTask(r.Context(), id, requesterID, Edit(req))
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, t)
}

// --- DELETE /tasks/{id} ---

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
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
	refund, err := h.svc.DeleteTask(r.Context(), id, requesterID)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	h.log.Info("task deleted", "task_id", id, "refund", refund)
	httpapi.WriteJSON(w, http.StatusOK, DeleteTaskResponse{Deleted: true, Refund: refund})
}
