package withdrawals

import (
	"log/slog"
	"net/http"

	"github.com/joblinker/backend/internal/httpapi"
	"github.com/joblinker/backend/internal/middleware"
	"github.com/joblinker/backend/internal/validate"
)

type CreateWithdrawalRequest struct {
	CoinAmount    int64  `json:"coin_amount"`
	PaymentSystem string `json:"payment_system"`
	AccountNumber string `json:"account_number"`
}

type DecideRequest struct {
	Decision string `json:"decision"`
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

// Request handles POST /withdrawals. The requester is the worker.
func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	workerID, err := middleware.RequireRequester(r)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	var req CreateWithdrawalRequest
	if err := h.v.Decode(r.Body, validate.CreateWithdrawal, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	wd, err := h.svc.RequestWithdrawal(r.Context(), NewRequest{
		WorkerID:      workerID,
		CoinAmount:    req.CoinAmount,
		PaymentSystem: req.PaymentSystem,
		AccountNumber: req.AccountNumber,
	})
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	h.log.Info("withdrawal requested", "withdrawal_id", wd.ID, "worker_id", workerID, "coins", wd.CoinAmount)
	httpapi.WriteJSON(w, http.StatusCreated, wd)
}

// List handles GET /withdrawals[?workerId=].
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	workerID, err := httpapi.QueryUUID(r, "workerId")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	list, err := httpapi.Collect(h.svc.ListWithdrawals(r.Context(), workerID))
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, list)
}

// Get handles GET /withdrawals/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathUUID(r, "id")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	wd, err := h.svc.GetWithdrawal(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, wd)
}

// Decide handles PATCH /withdrawals/{id}.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathUUID(r, "id")
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	var req DecideRequest
	if err := h.v.Decode(r.Body, validate.DecideWithdrawal, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	wd, err := h.svc.DecideWithdrawal(r.Context(), id, req.Decision)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	h.log.Info("withdrawal decided", "withdrawal_id", id, "status", wd.Status)
	httpapi.WriteJSON(w, http.StatusOK, wd)
}
