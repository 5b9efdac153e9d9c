// Package tasks is the Task Registry. Creating a task reserves its whole
// pool from the creator's balance; deleting it refunds what was not paid out.
package tasks

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joblinker/backend/internal/apperr"
	"github.com/joblinker/backend/internal/models"
	"github.com/joblinker/backend/internal/store"
)

type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, t *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
	GetOpenForShare(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
	List(ctx context.Context, creatorID uuid.UUID) iter.Seq2[*models.Task, error]
	UpdateContent(ctx context.Context, tx pgx.Tx, t *models.Task) error
	SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error
	ReserveApproval(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
	Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// Ledger is the slice of the account ledger the registry needs.
type Ledger interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	AdjustBalanceTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64, entryType string, ref *uuid.UUID) (int64, error)
}

// SubmissionCloser rejects a task's pending submissions when the task goes away.
type SubmissionCloser interface {
	RejectPending(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (int64, error)
}

// EnqueueFinalizeTxFunc schedules FinalizeDeletion for taskID within tx.
// Provided by main using river.Client.InsertTx.
type EnqueueFinalizeTxFunc func(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) error

type NewTask struct {
	CreatorID      uuid.UUID
	Title          string
	Detail         string
	Image          string
	SubmissionInfo string
	Quantity       int64
	PayableAmount  int64
}

// Edit holds the content fields a creator may change. Nil fields are kept.
type Edit struct {
	Title          *string
	Detail         *string
	SubmissionInfo *string
}

type Service interface {
	CreateTask(ctx context.Context, in NewTask) (*models.Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListTasks(ctx context.Context, creatorID uuid.UUID) iter.Seq2[*models.Task, error]
	UpdateTask(ctx context.Context, id, requesterID uuid.UUID, edit Edit) (*models.Task, error)
	DeleteTask(ctx context.Context, id, requesterID uuid.UUID) (int64, error)
	LockOpenTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
	ReserveApprovalTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
}

type service struct {
	repo    Store
	run     *store.Runner
	ledger  Ledger
	closer  SubmissionCloser
	enqueue EnqueueFinalizeTxFunc
	log     *slog.Logger
}

// NewService creates the registry. Returns *service so it can be used as
// execution.TaskFinalizer for the River worker.
func NewService(repo Store, run *store.Runner, ledger Ledger, closer SubmissionCloser, enqueue EnqueueFinalizeTxFunc, log *slog.Logger) *service {
	if log == nil {
		log = slog.Default()
	}
	return &service{repo: repo, run: run, ledger: ledger, closer: closer, enqueue: enqueue, log: log}
}

var _ Service = (*service)(nil)

func (s *service) CreateTask(ctx context.Context, in NewTask) (*models.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apperr.InvalidArgument("title is required")
	}
	if in.Quantity < 1 {
		return nil, apperr.InvalidArgument("quantity must be at least 1")
	}
	if in.PayableAmount < 0 {
		return nil, apperr.InvalidArgument("payable amount must not be negative")
	}
	if in.PayableAmount > 0 && in.Quantity > math.MaxInt64/in.PayableAmount {
		return nil, apperr.InvalidArgument("task pool is too large")
	}
	creator, err := s.ledger.GetUserByID(ctx, in.CreatorID)
	if err != nil {
		return nil, err
	}

	t := &models.Task{
		ID:             uuid.New(),
		Title:          in.Title,
		Detail:         strings.TrimSpace(in.Detail),
		Image:          strings.TrimSpace(in.Image),
		Quantity:       in.Quantity,
		PayableAmount:  in.PayableAmount,
		CreatorID:      creator.ID,
		CreatorEmail:   creator.Email,
		CreatorName:    creator.Name,
		SubmissionInfo: strings.TrimSpace(in.SubmissionInfo),
		Status:         models.TaskStatusOpen,
	}
	err = s.run.InTx(ctx, func(tx pgx.Tx) error {
		if pool := t.Pool(); pool > 0 {
			if _, err := s.ledger.AdjustBalanceTx(ctx, tx, creator.ID, -pool, models.CoinEntryTaskReserve, &t.ID); err != nil {
				return err
			}
		}
		return s.repo.Insert(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("task created", "task_id", t.ID, "creator_id", creator.ID, "pool", t.Pool())
	return t, nil
}

// GetTask hides tasks that are being deleted.
func (s *service) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var t *models.Task
	err := s.run.Do(ctx, func(ctx context.Context) (err error) {
		t, err = s.repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if t.Status == models.TaskStatusDeleting {
		return nil, apperr.NotFound("task %s not found", id)
	}
	return t, nil
}

func (s *service) ListTasks(ctx context.Context, creatorID uuid.UUID) iter.Seq2[*models.Task, error] {
	return store.Classified(s.repo.List(ctx, creatorID))
}

// UpdateTask edits content only. Once any unit has been approved the task is
// frozen, so approved workers keep the terms they were paid against.
func (s *service) UpdateTask(ctx context.Context, id, requesterID uuid.UUID, edit Edit) (*models.Task, error) {
	if edit.Title == nil && edit.Detail == nil && edit.SubmissionInfo == nil {
		return nil, apperr.InvalidArgument("nothing to update")
	}
	if edit.Title != nil && strings.TrimSpace(*edit.Title) == "" {
		return nil, apperr.InvalidArgument("title cannot be empty")
	}
	var t *models.Task
	err := s.run.InTx(ctx, func(tx pgx.Tx) (err error) {
		t, err = s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if t.CreatorID != requesterID {
			return apperr.Forbidden("task %s belongs to another creator", id)
		}
		if t.Status == models.TaskStatusDeleting {
			return apperr.Conflict("task %s is being deleted", id)
		}
		if t.ApprovedCount > 0 {
			return apperr.Conflict("task %s already has approved submissions", id)
		}
		if edit.Title != nil {
			t.Title = strings.TrimSpace(*edit.Title)
		}
		if edit.Detail != nil {
			t.Detail = strings.TrimSpace(*edit.Detail)
		}
		if edit.SubmissionInfo != nil {
			t.SubmissionInfo = strings.TrimSpace(*edit.SubmissionInfo)
		}
		return s.repo.UpdateContent(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTask marks the task deleting and queues its finalization in one
// transaction, then finalizes right away. If finalization fails here the
// queued job completes it later.
func (s *service) DeleteTask(ctx context.Context, id, requesterID uuid.UUID) (int64, error) {
	err := s.run.InTx(ctx, func(tx pgx.Tx) error {
		t, err := s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if t.CreatorID != requesterID {
			return apperr.Forbidden("task %s belongs to another creator", id)
		}
		if t.Status == models.TaskStatusDeleting {
			return nil
		}
		if err := s.repo.SetStatus(ctx, tx, id, models.TaskStatusDeleting); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, id)
	})
	if err != nil {
		return 0, err
	}
	refund, err := s.FinalizeDeletion(ctx, id)
	if err != nil {
		s.log.Warn("task deletion deferred to background finalizer", "task_id", id, "error", err)
		return 0, err
	}
	return refund, nil
}

// FinalizeDeletion implements execution.TaskFinalizer. It rejects pending
// submissions, refunds the unpaid pool to the creator and removes the task.
// A task that is already gone is a no-op, so it is safe to run twice.
func (s *service) FinalizeDeletion(ctx context.Context, id uuid.UUID) (int64, error) {
	var refund int64
	err := s.run.InTx(ctx, func(tx pgx.Tx) error {
		refund = 0
		t, err := s.repo.GetForUpdate(ctx, tx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if t.Status != models.TaskStatusDeleting {
			return apperr.Conflict("task %s is not being deleted", id)
		}
		rejected, err := s.closer.RejectPending(ctx, tx, id)
		if err != nil {
			return err
		}
		if rejected > 0 {
			s.log.Info("rejected pending submissions of deleted task", "task_id", id, "count", rejected)
		}
		if remaining := t.RemainingPool(); remaining > 0 {
			_, err := s.ledger.AdjustBalanceTx(ctx, tx, t.CreatorID, remaining, models.CoinEntryTaskRefund, &t.ID)
			switch {
			case errors.Is(err, apperr.ErrNotFound):
				s.log.Warn("creator gone, task refund dropped", "task_id", id, "creator_id", t.CreatorID, "amount", remaining)
			case err != nil:
				return err
			default:
				refund = remaining
			}
		}
		return s.repo.Delete(ctx, tx, id)
	})
	if err != nil {
		return 0, err
	}
	return refund, nil
}

// LockOpenTx share-locks an open task for the rest of tx. Anything else is
// reported as NotFound.
func (s *service) LockOpenTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	return s.repo.GetOpenForShare(ctx, tx, id)
}

// ReserveApprovalTx claims one pool unit, failing with Conflict once the
// task is full or no longer open.
func (s *service) ReserveApprovalTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	return s.repo.ReserveApproval(ctx, tx, id)
}
