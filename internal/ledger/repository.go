package ledger

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

const userColumns = `id, name, email, photo, role, coins, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Photo, &u.Role, &u.Coins, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Insert creates the user row. A duplicate email is reported as Conflict.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, u *models.User) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO users (id, name, email, photo, role, coins)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, u.ID, u.Name, u.Email, u.Photo, u.Role, u.Coins).Scan(&u.CreatedAt, &u.UpdatedAt)
	if store.IsUniqueViolation(err) {
		return apperr.Conflict("user with email %s already exists", u.Email)
	}
	return err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, store.NotFound(err, "user %s not found", id)
	}
	return u, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return nil, store.NotFound(err, "user %s not found", email)
	}
	return u, nil
}

// List streams users, newest first. An empty role lists everyone.
func (r *Repository) List(ctx context.Context, role string) iter.Seq2[*models.User, error] {
	return func(yield func(*models.User, error) bool) {
		rows, err := r.pool.Query(ctx, `
			SELECT `+userColumns+` FROM users
			WHERE ($1 = '' OR role = $1)
			ORDER BY created_at DESC
		`, role)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()
		for rows.Next() {
			u, err := scanUser(rows)
			if !yield(u, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (r *Repository) UpdateRole(ctx context.Context, id uuid.UUID, role string) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		UPDATE users SET role = $2, updated_at = CASE WHEN role = $2 THEN updated_at ELSE now() END
		WHERE id = $1
		RETURNING `+userColumns, id, role))
	if err != nil {
		return nil, store.NotFound(err, "user %s not found", id)
	}
	return u, nil
}

// OpenReference locks the user row and names the first kind of record that
// still depends on the account, or returns "" when nothing does.
func (r *Repository) OpenReference(ctx context.Context, tx pgx.Tx, id uuid.UUID) (string, error) {
	var ref string
	err := tx.QueryRow(ctx, `
		SELECT CASE
			WHEN EXISTS (SELECT 1 FROM tasks WHERE creator_id = u.id) THEN $2::text
			WHEN EXISTS (SELECT 1 FROM submissions WHERE creator_id = u.id AND status = 'pending') THEN $3::text
			WHEN EXISTS (SELECT 1 FROM submissions WHERE worker_id = u.id AND status = 'pending') THEN $4::text
			WHEN EXISTS (SELECT 1 FROM withdrawals WHERE worker_id = u.id AND status = 'pending') THEN $5::text
			ELSE ''
		END
		FROM users u WHERE u.id = $1
		FOR UPDATE OF u
	`, id, models.RefTasks, models.RefSubmissionsToReview, models.RefPendingSubmissions, models.RefPendingWithdrawals).Scan(&ref)
	if err != nil {
		return "", store.NotFound(err, "user %s not found", id)
	}
	return ref, nil
}

func (r *Repository) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user %s not found", id)
	}
	return nil
}

// ApplyDelta adds delta to the user's balance with a single conditional
// UPDATE, so concurrent debits can never drive the balance below zero.
func (r *Repository) ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64) (int64, error) {
	var balance int64
	err := tx.QueryRow(ctx, `
		UPDATE users SET coins = coins + $1, updated_at = now()
		WHERE id = $2 AND coins + $1 >= 0
		RETURNING coins
	`, delta, id).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	if err := tx.QueryRow(ctx, `SELECT coins FROM users WHERE id = $1`, id).Scan(&balance); err != nil {
		return 0, store.NotFound(err, "user %s not found", id)
	}
	return 0, apperr.InsufficientFunds("balance %d is less than %d", balance, -delta)
}

func (r *Repository) InsertEntry(ctx context.Context, tx pgx.Tx, e *models.CoinEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO coin_entries (id, user_id, entry_type, amount, balance_after, ref_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, e.ID, e.UserID, e.EntryType, e.Amount, e.BalanceAfter, e.RefID).Scan(&e.CreatedAt)
}

func (r *Repository) ListEntries(ctx context.Context, userID uuid.UUID) iter.Seq2[*models.CoinEntry, error] {
	return func(yield func(*models.CoinEntry, error) bool) {
		rows, err := r.pool.Query(ctx, `
			SELECT id, user_id, entry_type, amount, balance_after, ref_id, created_at
			FROM coin_entries WHERE user_id = $1 ORDER BY created_at DESC
		`, userID)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()
		for rows.Next() {
			var e models.CoinEntry
			if err := rows.Scan(&e.ID, &e.UserID, &e.EntryType, &e.Amount, &e.BalanceAfter, &e.RefID, &e.CreatedAt); err != nil {
				yield(nil, err)
				return
			}
			if !yield(&e, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}
