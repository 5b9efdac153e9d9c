package submissions

import (
	"context"
	"iter"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joblinker/backend/internal/models"
	"github.com/joblinker/backend/internal/store"
)

const submissionColumns = `id, task_id, task_title, task_detail, task_image, payable_amount, worker_id,
	worker_email, worker_name, creator_id, creator_email, details, status, submitted_at, decided_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func scanSubmission(row pgx.Row) (*models.Submission, error) {
	var s models.Submission
	err := row.Scan(&s.ID, &s.TaskID, &s.TaskTitle, &s.TaskDetail, &s.TaskImage, &s.PayableAmount, &s.WorkerID,
		&s.WorkerEmail, &s.WorkerName, &s.CreatorID, &s.CreatorEmail, &s.Details, &s.Status, &s.SubmittedAt, &s.DecidedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, s *models.Submission) error {
	return tx.QueryRow(ctx, `
		INSERT INTO submissions (id, task_id, task_title, task_detail, task_image, payable_amount, worker_id,
			worker_email, worker_name, creator_id, creator_email, details, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING submitted_at
	`, s.ID, s.TaskID, s.TaskTitle, s.TaskDetail, s.TaskImage, s.PayableAmount, s.WorkerID,
		s.WorkerEmail, s.WorkerName, s.CreatorID, s.CreatorEmail, s.Details, s.Status).Scan(&s.SubmittedAt)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	s, err := scanSubmission(r.pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
	if err != nil {
		return nil, store.NotFound(err, "submission %s not found", id)
	}
	return s, nil
}

func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Submission, error) {
	s, err := scanSubmission(tx.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, store.NotFound(err, "submission %s not found", id)
	}
	return s, nil
}

func (r *Repository) ListByWorker(ctx context.Context, workerID uuid.UUID) iter.Seq2[*models.Submission, error] {
	return r.list(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE worker_id = $1 ORDER BY submitted_at DESC`, workerID)
}

func (r *Repository) ListByCreator(ctx context.Context, creatorID uuid.UUID) iter.Seq2[*models.Submission, error] {
	return r.list(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE creator_id = $1 ORDER BY submitted_at DESC`, creatorID)
}

func (r *Repository) list(ctx context.Context, sql string, id uuid.UUID) iter.Seq2[*models.Submission, error] {
	return func(yield func(*models.Submission, error) bool) {
		rows, err := r.pool.Query(ctx, sql, id)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()
		for rows.Next() {
			s, err := scanSubmission(rows)
			if !yield(s, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// SetStatus records a decision and stamps decided_at.
func (r *Repository) SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) (*models.Submission, error) {
	s, err := scanSubmission(tx.QueryRow(ctx, `
		UPDATE submissions SET status = $2, decided_at = now()
		WHERE id = $1
		RETURNING `+submissionColumns, id, status))
	if err != nil {
		return nil, store.NotFound(err, "submission %s not found", id)
	}
	return s, nil
}

// RejectPending implements tasks.SubmissionCloser.
func (r *Repository) RejectPending(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (int64, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE submissions SET status = 'rejected', decided_at = now()
		WHERE task_id = $1 AND status = 'pending'
	`, taskID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
