package store

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/joblinker/backend/internal/apperr"
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RetryPolicy bounds retries of transient store failures. Delay doubles from
// BaseDelay up to MaxDelay.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

var DefaultRetryPolicy = RetryPolicy{Attempts: 4, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}

// Runner executes units of work against the store with transient-fault retry.
type Runner struct {
	db     TxBeginner
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRunner(db TxBeginner, policy RetryPolicy) *Runner {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = DefaultRetryPolicy.MaxDelay
	}
	return &Runner{db: db, policy: policy, sleep: sleepCtx}
}

// InTx runs fn inside one transaction and commits it. fn may run more than
// once, so it must not have side effects outside tx.
func (r *Runner) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return r.Do(ctx, func(ctx context.Context) error {
		tx, err := r.db.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

// Do runs fn, retrying transient failures. On exhaustion the last error is
// returned as apperr.ErrUnavailable.
func (r *Runner) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	delay := r.policy.BaseDelay
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil || !IsTransient(err) {
			return err
		}
		if attempt >= r.policy.Attempts || ctx.Err() != nil {
			break
		}
		if serr := r.sleep(ctx, delay); serr != nil {
			break
		}
		delay *= 2
		if delay > r.policy.MaxDelay {
			delay = r.policy.MaxDelay
		}
	}
	return apperr.Unavailable(err)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "57P01", "57P02", "57P03", "53300":
			return true
		}
		return strings.HasPrefix(pgErr.Code, "08")
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}

// Classify maps a transient err to apperr.ErrUnavailable without retrying.
func Classify(err error) error {
	if IsTransient(err) {
		return apperr.Unavailable(err)
	}
	return err
}

// Classified wraps a lazy query so transient failures surface as Unavailable.
func Classified[T any](seq iter.Seq2[T, error]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for v, err := range seq {
			if !yield(v, Classify(err)) {
				return
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
