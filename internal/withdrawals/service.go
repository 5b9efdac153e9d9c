// Package withdrawals is the Withdrawal Queue. Requesting a payout holds
// the coins immediately; rejecting it credits them back.
package withdrawals

import (
	"context"
	"iter"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/joblinker/backend/internal/apperr"
	"github.com/joblinker/backend/internal/models"
	"github.com/joblinker/backend/internal/store"
)

type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Withdrawal, error)
	List(ctx context.Context, workerID uuid.UUID) iter.Seq2[*models.Withdrawal, error]
	SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) (*models.Withdrawal, error)
}

type Ledger interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	AdjustBalanceTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64, entryType string, ref *uuid.UUID) (int64, error)
}

// Decision values accepted by DecideWithdrawal.
const (
	DecisionComplete = "complete"
	DecisionReject   = "reject"
)

type NewRequest struct {
	WorkerID      uuid.UUID
	CoinAmount    int64
	PaymentSystem string
	AccountNumber string
}

type Service interface {
	RequestWithdrawal(ctx context.Context, in NewRequest) (*models.Withdrawal, error)
	DecideWithdrawal(ctx context.Context, id uuid.UUID, decision string) (*models.Withdrawal, error)
	GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	ListWithdrawals(ctx context.Context, workerID uuid.UUID) iter.Seq2[*models.Withdrawal, error]
}

type service struct {
	repo   Store
	run    *store.Runner
	ledger Ledger
	rate   decimal.Decimal
}

// NewService creates the queue. rate is coins per cash unit and must be
// positive.
func NewService(repo Store, run *store.Runner, ledger Ledger, rate decimal.Decimal) Service {
	return &service{repo: repo, run: run, ledger: ledger, rate: rate}
}

var _ Service = (*service)(nil)

// CashFor converts coins to cash at rate, rounded half away from zero to
// two places.
func CashFor(coins int64, rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(coins).DivRound(rate, 2)
}

func (s *service) RequestWithdrawal(ctx context.Context, in NewRequest) (*models.Withdrawal, error) {
	in.PaymentSystem = strings.TrimSpace(in.PaymentSystem)
	in.AccountNumber = strings.TrimSpace(in.AccountNumber)
	if in.CoinAmount <= 0 {
		return nil, apperr.InvalidArgument("coin amount must be positive")
	}
	if in.PaymentSystem == "" || in.AccountNumber == "" {
		return nil, apperr.InvalidArgument("payment system and account number are required")
	}
	worker, err := s.ledger.GetUserByID(ctx, in.WorkerID)
	if err != nil {
		return nil, err
	}
	w := &models.Withdrawal{
		ID:            uuid.New(),
		WorkerID:      worker.ID,
		WorkerEmail:   worker.Email,
		WorkerName:    worker.Name,
		CoinAmount:    in.CoinAmount,
		CashAmount:    CashFor(in.CoinAmount, s.rate),
		PaymentSystem: in.PaymentSystem,
		AccountNumber: in.AccountNumber,
		Status:        models.WithdrawalStatusPending,
	}
	err = s.run.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.ledger.AdjustBalanceTx(ctx, tx, worker.ID, -w.CoinAmount, models.CoinEntryWithdrawalHold, &w.ID); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, w)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// DecideWithdrawal settles a pending request. Completing it is terminal and
// leaves the held coins spent; rejecting it returns them to the worker.
func (s *service) DecideWithdrawal(ctx context.Context, id uuid.UUID, decision string) (*models.Withdrawal, error) {
	var status string
	switch decision {
	case DecisionComplete:
		status = models.WithdrawalStatusCompleted
	case DecisionReject:
		status = models.WithdrawalStatusRejected
	default:
		return nil, apperr.InvalidArgument("decision must be %q or %q", DecisionComplete, DecisionReject)
	}
	var out *models.Withdrawal
	err := s.run.InTx(ctx, func(tx pgx.Tx) error {
		w, err := s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if w.Status != models.WithdrawalStatusPending {
			return apperr.Conflict("withdrawal %s is already %s", id, w.Status)
		}
		if status == models.WithdrawalStatusRejected {
			if _, err := s.ledger.AdjustBalanceTx(ctx, tx, w.WorkerID, w.CoinAmount, models.CoinEntryWithdrawalReversal, &w.ID); err != nil {
				return err
			}
		}
		out, err = s.repo.SetStatus(ctx, tx, id, status)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	var w *models.Withdrawal
	err := s.run.Do(ctx, func(ctx context.Context) (err error) {
		w, err = s.repo.GetByID(ctx, id)
		return err
	})
	return w, err
}

func (s *service) ListWithdrawals(ctx context.Context, workerID uuid.UUID) iter.Seq2[*models.Withdrawal, error] {
	return store.Classified(s.repo.List(ctx, workerID))
}
