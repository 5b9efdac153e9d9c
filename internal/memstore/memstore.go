// Package memstore is an in-memory implementation of every repository
// contract. Transactions are serialized by one mutex and roll back by
// restoring a snapshot, which lets tests run the real services without a
// database.
//
// It is a test double only. cmd/api wires the pgx repositories.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/joblinker/backend/internal/models"
)

type state struct {
	users       map[uuid.UUID]models.User
	entries     []models.CoinEntry
	tasks       map[uuid.UUID]models.Task
	submissions map[uuid.UUID]models.Submission
	withdrawals map[uuid.UUID]models.Withdrawal
	reviews     []models.Review
}

func (s *state) clone() state {
	return state{
		users:       maps.Clone(s.users),
		entries:     slices.Clone(s.entries),
		tasks:       maps.Clone(s.tasks),
		submissions: maps.Clone(s.submissions),
		withdrawals: maps.Clone(s.withdrawals),
		reviews:     slices.Clone(s.reviews),
	}
}

// DB holds all collections. The zero value is not usable; call New.
type DB struct {
	mu    sync.Mutex
	st    state
	clock time.Time

	faultMu   sync.Mutex
	failBegin int
	failErr   error
}

func New() *DB {
	return &DB{
		st: state{
			users:       make(map[uuid.UUID]models.User),
			tasks:       make(map[uuid.UUID]models.Task),
			submissions: make(map[uuid.UUID]models.Submission),
			withdrawals: make(map[uuid.UUID]models.Withdrawal),
		},
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// FailBegin makes the next n calls to Begin return err.
func (db *DB) FailBegin(n int, err error) {
	db.faultMu.Lock()
	defer db.faultMu.Unlock()
	db.failBegin, db.failErr = n, err
}

// Begin starts a transaction. It blocks until any other open transaction
// ends.
func (db *DB) Begin(ctx context.Context) (pgx.Tx, error) {
	db.faultMu.Lock()
	if db.failBegin > 0 {
		db.failBegin--
		err := db.failErr
		db.faultMu.Unlock()
		return nil, err
	}
	db.faultMu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.mu.Lock()
	return &Tx{db: db, snap: db.st.clone()}, nil
}

// now must be called with mu held. Timestamps strictly increase so
// newest-first ordering is deterministic.
func (db *DB) now() time.Time {
	db.clock = db.clock.Add(time.Millisecond)
	return db.clock
}

// locked runs fn outside any transaction.
func (db *DB) locked(fn func(st *state)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	fn(&db.st)
}

// inTx checks that tx is an open transaction of db. Callers already hold mu
// through tx.
func (db *DB) inTx(tx pgx.Tx) *state {
	t, ok := tx.(*Tx)
	if !ok || t.db != db || t.done {
		panic("memstore: operation requires an open transaction of this DB")
	}
	return &db.st
}

// Tx implements pgx.Tx. Only Commit and Rollback do anything; the adapters
// operate on the DB directly while the transaction holds the lock.
type Tx struct {
	db   *DB
	snap state
	done bool
}

var _ pgx.Tx = (*Tx)(nil)

func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.mu.Unlock()
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.st = t.snap
	t.db.mu.Unlock()
	return nil
}

func (t *Tx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errUnsupported
}

func (t *Tx) CopyFrom(ctx context.Context, _ pgx.Identifier, _ []string, _ pgx.CopyFromSource) (int64, error) {
	return 0, errUnsupported
}

func (t *Tx) SendBatch(ctx context.Context, _ *pgx.Batch) pgx.BatchResults { return nil }
func (t *Tx) LargeObjects() pgx.LargeObjects                             { return pgx.LargeObjects{} }

func (t *Tx) Prepare(ctx context.Context, _, _ string) (*pgconn.StatementDescription, error) {
	return nil, errUnsupported
}

func (t *Tx) Exec(ctx context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errUnsupported
}

func (t *Tx) Query(ctx context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, errUnsupported
}

func (t *Tx) QueryRow(ctx context.Context, _ string, _ ...any) pgx.Row {
	return errRow{}
}

func (t *Tx) Conn() *pgx.Conn { return nil }

type unsupportedError struct{}

func (unsupportedError) Error() string { return "memstore: SQL is not supported" }

var errUnsupported error = unsupportedError{}

type errRow struct{}

func (errRow) Scan(...any) error { return errUnsupported }

// collect copies matching values out under the lock and yields them after it
// is released, so callers may issue further store calls while ranging.
func collect[T any](db *DB, pick func(st *state) []T) func(yield func(*T, error) bool) {
	return func(yield func(*T, error) bool) {
		var out []T
		db.locked(func(st *state) { out = pick(st) })
		for i := range out {
			if !yield(&out[i], nil) {
				return
			}
		}
	}
}
