package memstore

import (
	"context"
	"iter"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joblinker/backend/internal/apperr"
	"github.com/joblinker/backend/internal/models"
)

// Submissions implements submissions.Store and tasks.SubmissionCloser.
type Submissions struct{ db *DB }

func (db *DB) Submissions() *Submissions { return &Submissions{db: db} }

func (r *Submissions) Insert(ctx context.Context, tx pgx.Tx, s *models.Submission) error {
	st := r.db.inTx(tx)
	s.SubmittedAt = r.db.now()
	st.submissions[s.ID] = *s
	return nil
}

func (r *Submissions) GetByID(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	var (
		s  models.Submission
		ok bool
	)
	r.db.locked(func(st *state) { s, ok = st.submissions[id] })
	if !ok {
		return nil, apperr.NotFound("submission %s not found", id)
	}
	return &s, nil
}

func (r *Submissions) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Submission, error) {
	s, ok := r.db.inTx(tx).submissions[id]
	if !ok {
		return nil, apperr.NotFound("submission %s not found", id)
	}
	return &s, nil
}

func (r *Submissions) list(match func(*models.Submission) bool) iter.Seq2[*models.Submission, error] {
	return collect(r.db, func(st *state) []models.Submission {
		var out []models.Submission
		for _, s := range st.submissions {
			if match(&s) {
				out = append(out, s)
			}
		}
		newestFirst(out, func(s *models.Submission) int64 { return s.SubmittedAt.UnixNano() })
		return out
	})
}

func (r *Submissions) ListByWorker(ctx context.Context, workerID uuid.UUID) iter.Seq2[*models.Submission, error] {
	return r.list(func(s *models.Submission) bool { return s.WorkerID == workerID })
}

func (r *Submissions) ListByCreator(ctx context.Context, creatorID uuid.UUID) iter.Seq2[*models.Submission, error] {
	return r.list(func(s *models.Submission) bool { return s.CreatorID == creatorID })
}

func (r *Submissions) SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) (*models.Submission, error) {
	st := r.db.inTx(tx)
	s, ok := st.submissions[id]
	if !ok {
		return nil, apperr.NotFound("submission %s not found", id)
	}
	now := r.db.now()
	s.Status = status
	s.DecidedAt = &now
	st.submissions[id] = s
	return &s, nil
}

func (r *Submissions) RejectPending(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (int64, error) {
	st := r.db.inTx(tx)
	var n int64
	for id, s := range st.submissions {
		if s.TaskID != taskID || s.Status != models.SubmissionStatusPending {
			continue
		}
		now := r.db.now()
		s.Status = models.SubmissionStatusRejected
		s.DecidedAt = &now
		st.submissions[id] = s
		n++
	}
	return n, nil
}
