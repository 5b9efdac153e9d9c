package memstore

import (
	"context"
	"iter"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joblinker/backend/internal/apperr"
	"github.com/joblinker/backend/internal/models"
)

// Tasks implements tasks.Store.
type Tasks struct{ db *DB }

func (db *DB) Tasks() *Tasks { return &Tasks{db: db} }

func (r *Tasks) Insert(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	st := r.db.inTx(tx)
	t.ApprovedCount = 0
	t.CreatedAt = r.db.now()
	t.UpdatedAt = t.CreatedAt
	st.tasks[t.ID] = *t
	return nil
}

func (r *Tasks) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var (
		t  models.Task
		ok bool
	)
	r.db.locked(func(st *state) { t, ok = st.tasks[id] })
	if !ok {
		return nil, apperr.NotFound("task %s not found", id)
	}
	return &t, nil
}

func (r *Tasks) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	t, ok := r.db.inTx(tx).tasks[id]
	if !ok {
		return nil, apperr.NotFound("task %s not found", id)
	}
	return &t, nil
}

func (r *Tasks) GetOpenForShare(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	t, ok := r.db.inTx(tx).tasks[id]
	if !ok || t.Status != models.TaskStatusOpen {
		return nil, apperr.NotFound("task %s not found or not accepting submissions", id)
	}
	return &t, nil
}

func (r *Tasks) List(ctx context.Context, creatorID uuid.UUID) iter.Seq2[*models.Task, error] {
	return collect(r.db, func(st *state) []models.Task {
		var out []models.Task
		for _, t := range st.tasks {
			if t.Status == models.TaskStatusDeleting {
				continue
			}
			if creatorID == uuid.Nil || t.CreatorID == creatorID {
				out = append(out, t)
			}
		}
		newestFirst(out, func(t *models.Task) int64 { return t.CreatedAt.UnixNano() })
		return out
	})
}

func (r *Tasks) UpdateContent(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	st := r.db.inTx(tx)
	cur, ok := st.tasks[t.ID]
	if !ok {
		return apperr.NotFound("task %s not found", t.ID)
	}
	cur.Title, cur.Detail, cur.SubmissionInfo = t.Title, t.Detail, t.SubmissionInfo
	cur.UpdatedAt = r.db.now()
	st.tasks[t.ID] = cur
	t.UpdatedAt = cur.UpdatedAt
	return nil
}

func (r *Tasks) SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error {
	st := r.db.inTx(tx)
	t, ok := st.tasks[id]
	if !ok {
		return apperr.NotFound("task %s not found", id)
	}
	t.Status = status
	t.UpdatedAt = r.db.now()
	st.tasks[id] = t
	return nil
}

func (r *Tasks) ReserveApproval(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	st := r.db.inTx(tx)
	t, ok := st.tasks[id]
	if !ok {
		return nil, apperr.NotFound("task %s not found", id)
	}
	if t.Status != models.TaskStatusOpen || t.ApprovedCount >= t.Quantity {
		return nil, apperr.Conflict("task %s is %s and accepts no more approvals", id, t.Status)
	}
	t.ApprovedCount++
	if t.ApprovedCount >= t.Quantity {
		t.Status = models.TaskStatusCompleted
	}
	t.UpdatedAt = r.db.now()
	st.tasks[id] = t
	return &t, nil
}

func (r *Tasks) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	delete(r.db.inTx(tx).tasks, id)
	return nil
}
