package memstore

import (
	"context"
	"iter"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joblinker/backend/internal/apperr"
	"github.com/joblinker/backend/internal/models"
)

// Withdrawals implements withdrawals.Store.
type Withdrawals struct{ db *DB }

func (db *DB) Withdrawals() *Withdrawals { return &Withdrawals{db: db} }

func (r *Withdrawals) Insert(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) error {
	st := r.db.inTx(tx)
	w.RequestedAt = r.db.now()
	st.withdrawals[w.ID] = *w
	return nil
}

func (r *Withdrawals) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	var (
		w  models.Withdrawal
		ok bool
	)
	r.db.locked(func(st *state) { w, ok = st.withdrawals[id] })
	if !ok {
		return nil, apperr.NotFound("withdrawal %s not found", id)
	}
	return &w, nil
}

func (r *Withdrawals) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Withdrawal, error) {
	w, ok := r.db.inTx(tx).withdrawals[id]
	if !ok {
		return nil, apperr.NotFound("withdrawal %s not found", id)
	}
	return &w, nil
}

func (r *Withdrawals) List(ctx context.Context, workerID uuid.UUID) iter.Seq2[*models.Withdrawal, error] {
	return collect(r.db, func(st *state) []models.Withdrawal {
		var out []models.Withdrawal
		for _, w := range st.withdrawals {
			if workerID == uuid.Nil || w.WorkerID == workerID {
				out = append(out, w)
			}
		}
		newestFirst(out, func(w *models.Withdrawal) int64 { return w.RequestedAt.UnixNano() })
		return out
	})
}

func (r *Withdrawals) SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) (*models.Withdrawal, error) {
	st := r.db.inTx(tx)
	w, ok := st.withdrawals[id]
	if !ok {
		return nil, apperr.NotFound("withdrawal %s not found", id)
	}
	now := r.db.now()
	w.Status = status
	w.DecidedAt = &now
	st.withdrawals[id] = w
	return &w, nil
}
