package withdrawals

import (
	"context"
	"iter"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/joblinker/backend/internal/models"
	"github.com/joblinker/backend/internal/store"
)

// cash_amount travels as text so NUMERIC round-trips through decimal exactly.
const withdrawalColumns = `id, worker_id, worker_email, worker_name, coin_amount, cash_amount::text,
	payment_system, account_number, status, requested_at, decided_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func scanWithdrawal(row pgx.Row) (*models.Withdrawal, error) {
	var (
		w    models.Withdrawal
		cash string
	)
	err := row.Scan(&w.ID, &w.WorkerID, &w.WorkerEmail, &w.WorkerName, &w.CoinAmount, &cash,
		&w.PaymentSystem, &w.AccountNumber, &w.Status, &w.RequestedAt, &w.DecidedAt)
	if err != nil {
		return nil, err
	}
	if w.CashAmount, err = decimal.NewFromString(cash); err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) error {
	return tx.QueryRow(ctx, `
		INSERT INTO withdrawals (id, worker_id, worker_email, worker_name, coin_amount, cash_amount,
			payment_system, account_number, status)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)
		RETURNING requested_at
	`, w.ID, w.WorkerID, w.WorkerEmail, w.WorkerName, w.CoinAmount, w.CashAmount.StringFixed(2),
		w.PaymentSystem, w.AccountNumber, w.Status).Scan(&w.RequestedAt)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	w, err := scanWithdrawal(r.pool.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id))
	if err != nil {
		return nil, store.NotFound(err, "withdrawal %s not found", id)
	}
	return w, nil
}

func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Withdrawal, error) {
	w, err := scanWithdrawal(tx.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, store.NotFound(err, "withdrawal %s not found", id)
	}
	return w, nil
}

// List streams requests, newest first. uuid.Nil lists every worker's.
func (r *Repository) List(ctx context.Context, workerID uuid.UUID) iter.Seq2[*models.Withdrawal, error] {
	return func(yield func(*models.Withdrawal, error) bool) {
		var filter *uuid.UUID
		if workerID != uuid.Nil {
			filter = &workerID
		}
		rows, err := r.pool.Query(ctx, `
			SELECT `+withdrawalColumns+` FROM withdrawals
			WHERE ($1::uuid IS NULL OR worker_id = $1)
			ORDER BY requested_at DESC
		`, filter)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()
		for rows.Next() {
			w, err := scanWithdrawal(rows)
			if !yield(w, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (r *Repository) SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) (*models.Withdrawal, error) {
	w, err := scanWithdrawal(tx.QueryRow(ctx, `
		UPDATE withdrawals SET status = $2, decided_at = now()
		WHERE id = $1
		RETURNING `+withdrawalColumns, id, status))
	if err != nil {
		return nil, store.NotFound(err, "withdrawal %s not found", id)
	}
	return w, nil
}
