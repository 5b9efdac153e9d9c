package memstore

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joblinker/backend/internal/apperr"
	"github.com/joblinker/backend/internal/models"
)

// Users implements ledger.Store.
type Users struct{ db *DB }

func (db *DB) Users() *Users { return &Users{db: db} }

func newestFirst[T any](items []T, at func(*T) int64) {
	slices.SortFunc(items, func(a, b T) int { return cmp.Compare(at(&b), at(&a)) })
}

func (r *Users) Insert(ctx context.Context, tx pgx.Tx, u *models.User) error {
	st := r.db.inTx(tx)
	for _, existing := range st.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperr.Conflict("user with email %s already exists", u.Email)
		}
	}
	u.CreatedAt = r.db.now()
	u.UpdatedAt = u.CreatedAt
	st.users[u.ID] = *u
	return nil
}

func (r *Users) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var (
		u  models.User
		ok bool
	)
	r.db.locked(func(st *state) { u, ok = st.users[id] })
	if !ok {
		return nil, apperr.NotFound("user %s not found", id)
	}
	return &u, nil
}

func (r *Users) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var found *models.User
	r.db.locked(func(st *state) {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, email) {
				found = &u
				return
			}
		}
	})
	if found == nil {
		return nil, apperr.NotFound("user %s not found", email)
	}
	return found, nil
}

func (r *Users) List(ctx context.Context, role string) iter.Seq2[*models.User, error] {
	return collect(r.db, func(st *state) []models.User {
		var out []models.User
		for _, u := range st.users {
			if role == "" || u.Role == role {
				out = append(out, u)
			}
		}
		newestFirst(out, func(u *models.User) int64 { return u.CreatedAt.UnixNano() })
		return out
	})
}

func (r *Users) UpdateRole(ctx context.Context, id uuid.UUID, role string) (*models.User, error) {
	var (
		u  models.User
		ok bool
	)
	r.db.locked(func(st *state) {
		u, ok = st.users[id]
		if !ok || u.Role == role {
			return
		}
		u.Role = role
		u.UpdatedAt = r.db.now()
		st.users[id] = u
	})
	if !ok {
		return nil, apperr.NotFound("user %s not found", id)
	}
	return &u, nil
}

func (r *Users) OpenReference(ctx context.Context, tx pgx.Tx, id uuid.UUID) (string, error) {
	st := r.db.inTx(tx)
	if _, ok := st.users[id]; !ok {
		return "", apperr.NotFound("user %s not found", id)
	}
	for _, t := range st.tasks {
		if t.CreatorID == id {
			return models.RefTasks, nil
		}
	}
	pending := func(match func(s models.Submission) bool) bool {
		for _, s := range st.submissions {
			if s.Status == models.SubmissionStatusPending && match(s) {
				return true
			}
		}
		return false
	}
	if pending(func(s models.Submission) bool { return s.CreatorID == id }) {
		return models.RefSubmissionsToReview, nil
	}
	if pending(func(s models.Submission) bool { return s.WorkerID == id }) {
		return models.RefPendingSubmissions, nil
	}
	for _, w := range st.withdrawals {
		if w.WorkerID == id && w.Status == models.WithdrawalStatusPending {
			return models.RefPendingWithdrawals, nil
		}
	}
	return "", nil
}

func (r *Users) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	st := r.db.inTx(tx)
	if _, ok := st.users[id]; !ok {
		return apperr.NotFound("user %s not found", id)
	}
	delete(st.users, id)
	st.entries = slices.DeleteFunc(st.entries, func(e models.CoinEntry) bool { return e.UserID == id })
	return nil
}

func (r *Users) ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64) (int64, error) {
	st := r.db.inTx(tx)
	u, ok := st.users[id]
	if !ok {
		return 0, apperr.NotFound("user %s not found", id)
	}
	if u.Coins+delta < 0 {
		return 0, apperr.InsufficientFunds("balance %d is less than %d", u.Coins, -delta)
	}
	u.Coins += delta
	u.UpdatedAt = r.db.now()
	st.users[id] = u
	return u.Coins, nil
}

func (r *Users) InsertEntry(ctx context.Context, tx pgx.Tx, e *models.CoinEntry) error {
	st := r.db.inTx(tx)
	e.CreatedAt = r.db.now()
	st.entries = append(st.entries, *e)
	return nil
}

func (r *Users) ListEntries(ctx context.Context, userID uuid.UUID) iter.Seq2[*models.CoinEntry, error] {
	return collect(r.db, func(st *state) []models.CoinEntry {
		var out []models.CoinEntry
		for _, e := range st.entries {
			if e.UserID == userID {
				out = append(out, e)
			}
		}
		newestFirst(out, func(e *models.CoinEntry) int64 { return e.CreatedAt.UnixNano() })
		return out
	})
}
