package tasks

import (
	"context"
	"errors"
	"iter"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joblinker/backend/internal/apperr"
	"github.com/joblinker/backend/internal/models"
	"github.com/joblinker/backend/internal/store"
)

const taskColumns = `id, title, detail, image, quantity, payable_amount, creator_id, creator_email,
	creator_name, submission_info, status, approved_count, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.Title, &t.Detail, &t.Image, &t.Quantity, &t.PayableAmount, &t.CreatorID, &t.CreatorEmail,
		&t.CreatorName, &t.SubmissionInfo, &t.Status, &t.ApprovedCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	return tx.QueryRow(ctx, `
		INSERT INTO tasks (id, title, detail, image, quantity, payable_amount, creator_id, creator_email,
			creator_name, submission_info, status, approved_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0)
		RETURNING created_at, updated_at
	`, t.ID, t.Title, t.Detail, t.Image, t.Quantity, t.PayableAmount, t.CreatorID, t.CreatorEmail,
		t.CreatorName, t.SubmissionInfo, t.Status).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		return nil, store.NotFound(err, "task %s not found", id)
	}
	return t, nil
}

// GetForUpdate locks the task row. Call within a transaction.
func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	t, err := scanTask(tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, store.NotFound(err, "task %s not found", id)
	}
	return t, nil
}

// GetOpenForShare share-locks an open task so it cannot start deleting
// until tx ends.
func (r *Repository) GetOpenForShare(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	t, err := scanTask(tx.QueryRow(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND status = 'open' FOR SHARE
	`, id))
	if err != nil {
		return nil, store.NotFound(err, "task %s not found or not accepting submissions", id)
	}
	return t, nil
}

// List streams tasks, newest first. uuid.Nil lists every creator's tasks.
func (r *Repository) List(ctx context.Context, creatorID uuid.UUID) iter.Seq2[*models.Task, error] {
	return func(yield func(*models.Task, error) bool) {
		rows, err := r.pool.Query(ctx, `
			SELECT `+taskColumns+` FROM tasks
			WHERE status <> 'deleting' AND ($1::uuid IS NULL OR creator_id = $1)
			ORDER BY created_at DESC
		`, nullableID(creatorID))
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanTask(rows)
			if !yield(t, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (r *Repository) UpdateContent(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	return tx.QueryRow(ctx, `
		UPDATE tasks SET title = $2, detail = $3, submission_info = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, t.ID, t.Title, t.Detail, t.SubmissionInfo).Scan(&t.UpdatedAt)
}

func (r *Repository) SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error {
	tag, err := tx.Exec(ctx, `UPDATE tasks SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("task %s not found", id)
	}
	return nil
}

// ReserveApproval claims one unit of the task's pool in a single conditional
// update and closes the task once every unit is claimed.
func (r *Repository) ReserveApproval(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	t, err := scanTask(tx.QueryRow(ctx, `
		UPDATE tasks SET
			approved_count = approved_count + 1,
			status = CASE WHEN approved_count + 1 >= quantity THEN 'completed' ELSE status END,
			updated_at = now()
		WHERE id = $1 AND status = 'open' AND approved_count < quantity
		RETURNING `+taskColumns, id))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	var status string
	if err := tx.QueryRow(ctx, `SELECT status FROM tasks WHERE id = $1`, id).Scan(&status); err != nil {
		return nil, store.NotFound(err, "task %s not found", id)
	}
	return nil, apperr.Conflict("task %s is %s and accepts no more approvals", id, status)
}

func (r *Repository) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return err
}

func nullableID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
