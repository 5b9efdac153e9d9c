// Package ledger is the Account Ledger: it owns user records and their coin
// balances, and is the only code path that changes a balance.
package ledger

import (
	"context"
	"iter"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joblinker/backend/internal/apperr"
	"github.com/joblinker/backend/internal/config"
	"github.com/joblinker/backend/internal/models"
	"github.com/joblinker/backend/internal/store"
)

// Store is the persistence contract behind the ledger. Methods taking a tx
// must run inside it.
type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, u *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, role string) iter.Seq2[*models.User, error]
	UpdateRole(ctx context.Context, id uuid.UUID, role string) (*models.User, error)
	OpenReference(ctx context.Context, tx pgx.Tx, id uuid.UUID) (string, error)
	Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64) (int64, error)
	InsertEntry(ctx context.Context, tx pgx.Tx, e *models.CoinEntry) error
	ListEntries(ctx context.Context, userID uuid.UUID) iter.Seq2[*models.CoinEntry, error]
}

// NewUser is a registration request. A nil Coins applies the role's grant.
type NewUser struct {
	Name  string
	Email string
	Photo string
	Role  string
	Coins *int64
}

type Service interface {
	CreateUser(ctx context.Context, in NewUser) (*models.User, error)
	GetUser(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context, role string) iter.Seq2[*models.User, error]
	UpdateRole(ctx context.Context, id uuid.UUID, role string) (*models.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	AdjustBalance(ctx context.Context, id uuid.UUID, delta int64, entryType string, ref *uuid.UUID) (int64, error)
	AdjustBalanceTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64, entryType string, ref *uuid.UUID) (int64, error)
	Entries(ctx context.Context, id uuid.UUID) iter.Seq2[*models.CoinEntry, error]
}

type service struct {
	repo   Store
	run    *store.Runner
	grants config.Grants
}

func NewService(repo Store, run *store.Runner, grants config.Grants) Service {
	return &service{repo: repo, run: run, grants: grants}
}

var _ Service = (*service)(nil)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) grantFor(role string) int64 {
	switch role {
	case models.RoleCreator:
		return s.grants.Creator
	case models.RoleAdmin:
		return s.grants.Admin
	default:
		return s.grants.Worker
	}
}

func (s *service) CreateUser(ctx context.Context, in NewUser) (*models.User, error) {
	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if name == "" || email == "" {
		return nil, apperr.InvalidArgument("name and email are required")
	}
	if !models.ValidRole(in.Role) {
		return nil, apperr.InvalidArgument("unknown role %q", in.Role)
	}
	coins := s.grantFor(in.Role)
	if in.Coins != nil {
		if *in.Coins < 0 {
			return nil, apperr.InvalidArgument("coins must be >= 0")
		}
		coins = *in.Coins
	}

	u := &models.User{
		ID:    uuid.New(),
		Name:  name,
		Email: email,
		Photo: strings.TrimSpace(in.Photo),
		Role:  in.Role,
	}
	err := s.run.InTx(ctx, func(tx pgx.Tx) error {
		u.Coins = 0
		if err := s.repo.Insert(ctx, tx, u); err != nil {
			return err
		}
		if coins == 0 {
			return nil
		}
		balance, err := s.AdjustBalanceTx(ctx, tx, u.ID, coins, models.CoinEntryInitialGrant, nil)
		u.Coins = balance
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) GetUser(ctx context.Context, email string) (*models.User, error) {
	var u *models.User
	err := s.run.Do(ctx, func(ctx context.Context) (err error) {
		u, err = s.repo.GetByEmail(ctx, normalizeEmail(email))
		return err
	})
	return u, err
}

func (s *service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u *models.User
	err := s.run.Do(ctx, func(ctx context.Context) (err error) {
		u, err = s.repo.GetByID(ctx, id)
		return err
	})
	return u, err
}

func (s *service) ListUsers(ctx context.Context, role string) iter.Seq2[*models.User, error] {
	return store.Classified(s.repo.List(ctx, role))
}

// UpdateRole is idempotent: setting the current role again succeeds unchanged.
func (s *service) UpdateRole(ctx context.Context, id uuid.UUID, role string) (*models.User, error) {
	if !models.ValidRole(role) {
		return nil, apperr.InvalidArgument("unknown role %q", role)
	}
	var u *models.User
	err := s.run.Do(ctx, func(ctx context.Context) (err error) {
		u, err = s.repo.UpdateRole(ctx, id, role)
		return err
	})
	return u, err
}

// DeleteUser refuses to remove a user that tasks, pending submissions or
// pending withdrawals still point at. Those need the account to settle a
// refund, an earning or a reversal.
func (s *service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.run.InTx(ctx, func(tx pgx.Tx) error {
		ref, err := s.repo.OpenReference(ctx, tx, id)
		if err != nil {
			return err
		}
		if ref != "" {
			return apperr.Conflict("user %s still has %s", id, ref)
		}
		return s.repo.Delete(ctx, tx, id)
	})
}

// AdjustBalance applies delta in its own transaction.
func (s *service) AdjustBalance(ctx context.Context, id uuid.UUID, delta int64, entryType string, ref *uuid.UUID) (int64, error) {
	var balance int64
	err := s.run.InTx(ctx, func(tx pgx.Tx) (err error) {
		balance, err = s.AdjustBalanceTx(ctx, tx, id, delta, entryType, ref)
		return err
	})
	return balance, err
}

// AdjustBalanceTx runs inside the caller's transaction. It:
// a) applies delta with a conditional update (InsufficientFunds if the result would be negative)
// b) journals the change as a coin entry carrying the resulting balance
func (s *service) AdjustBalanceTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64, entryType string, ref *uuid.UUID) (int64, error) {
	balance, err := s.repo.ApplyDelta(ctx, tx, id, delta)
	if err != nil {
		return 0, err
	}
	entry := &models.CoinEntry{
		ID:           uuid.New(),
		UserID:       id,
		EntryType:    entryType,
		Amount:       delta,
		BalanceAfter: balance,
		RefID:        ref,
	}
	if err := s.repo.InsertEntry(ctx, tx, entry); err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *service) Entries(ctx context.Context, id uuid.UUID) iter.Seq2[*models.CoinEntry, error] {
	return store.Classified(s.repo.ListEntries(ctx, id))
}
