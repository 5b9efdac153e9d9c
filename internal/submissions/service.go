// Package submissions is the Submission Log: worker proofs of work against
// tasks, and the creator's approve or reject decision on each.
package submissions

import (
	"context"
	"iter"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joblinker/backend/internal/apperr"
	"github.com/joblinker/backend/internal/models"
	"github.com/joblinker/backend/internal/store"
)

type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, s *models.Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Submission, error)
	ListByWorker(ctx context.Context, workerID uuid.UUID) iter.Seq2[*models.Submission, error]
	ListByCreator(ctx context.Context, creatorID uuid.UUID) iter.Seq2[*models.Submission, error]
	SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) (*models.Submission, error)
	RejectPending(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (int64, error)
}

type TaskRegistry interface {
	LockOpenTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
	ReserveApprovalTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
}

type Ledger interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	AdjustBalanceTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64, entryType string, ref *uuid.UUID) (int64, error)
}

// Filter selects submissions by exactly one party.
type Filter struct {
	WorkerID  uuid.UUID
	CreatorID uuid.UUID
}

// Decision values accepted by Decide.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

type Service interface {
	Submit(ctx context.Context, taskID, workerID uuid.UUID, details string) (*models.Submission, error)
	GetSubmission(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	ListSubmissions(ctx context.Context, f Filter) (iter.Seq2[*models.Submission, error], error)
	Decide(ctx context.Context, id uuid.UUID, decision string, requesterID uuid.UUID) (*models.Submission, error)
}

type service struct {
	repo   Store
	run    *store.Runner
	tasks  TaskRegistry
	ledger Ledger
}

func NewService(repo Store, run *store.Runner, tasks TaskRegistry, ledger Ledger) Service {
	return &service{repo: repo, run: run, tasks: tasks, ledger: ledger}
}

var _ Service = (*service)(nil)

// Submit snapshots the task while holding a share lock on it, so the task
// cannot start deleting between the check and the insert.
func (s *service) Submit(ctx context.Context, taskID, workerID uuid.UUID, details string) (*models.Submission, error) {
	details = strings.TrimSpace(details)
	if details == "" {
		return nil, apperr.InvalidArgument("submission details are required")
	}
	worker, err := s.ledger.GetUserByID(ctx, workerID)
	if err != nil {
		return nil, err
	}
	sub := &models.Submission{
		ID:          uuid.New(),
		TaskID:      taskID,
		WorkerID:    worker.ID,
		WorkerEmail: worker.Email,
		WorkerName:  worker.Name,
		Details:     details,
		Status:      models.SubmissionStatusPending,
	}
	err = s.run.InTx(ctx, func(tx pgx.Tx) error {
		task, err := s.tasks.LockOpenTx(ctx, tx, taskID)
		if err != nil {
			return err
		}
		sub.TaskTitle = task.Title
		sub.TaskDetail = task.Detail
		sub.TaskImage = task.Image
		sub.PayableAmount = task.PayableAmount
		sub.CreatorID = task.CreatorID
		sub.CreatorEmail = task.CreatorEmail
		return s.repo.Insert(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *service) GetSubmission(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	var sub *models.Submission
	err := s.run.Do(ctx, func(ctx context.Context) (err error) {
		sub, err = s.repo.GetByID(ctx, id)
		return err
	})
	return sub, err
}

func (s *service) ListSubmissions(ctx context.Context, f Filter) (iter.Seq2[*models.Submission, error], error) {
	byWorker, byCreator := f.WorkerID != uuid.Nil, f.CreatorID != uuid.Nil
	switch {
	case byWorker && !byCreator:
		return store.Classified(s.repo.ListByWorker(ctx, f.WorkerID)), nil
	case byCreator && !byWorker:
		return store.Classified(s.repo.ListByCreator(ctx, f.CreatorID)), nil
	default:
		return nil, apperr.InvalidArgument("filter by exactly one of worker or creator")
	}
}

// Decide runs in one transaction. Approval:
// a) claims a unit of the task's pool (Conflict once it is full)
// b) pays the worker the snapshotted payable amount
// c) marks the submission approved
func (s *service) Decide(ctx context.Context, id uuid.UUID, decision string, requesterID uuid.UUID) (*models.Submission, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, apperr.InvalidArgument("decision must be %q or %q", DecisionApprove, DecisionReject)
	}
	var out *models.Submission
	err := s.run.InTx(ctx, func(tx pgx.Tx) error {
		sub, err := s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub.CreatorID != requesterID {
			return apperr.Forbidden("submission %s belongs to another creator's task", id)
		}
		if sub.Status != models.SubmissionStatusPending {
			return apperr.Conflict("submission %s is already %s", id, sub.Status)
		}
		status := models.SubmissionStatusRejected
		if decision == DecisionApprove {
			if _, err := s.tasks.ReserveApprovalTx(ctx, tx, sub.TaskID); err != nil {
				return err
			}
			if sub.PayableAmount > 0 {
				if _, err := s.ledger.AdjustBalanceTx(ctx, tx, sub.WorkerID, sub.PayableAmount, models.CoinEntryTaskEarning, &sub.ID); err != nil {
					return err
				}
			}
			status = models.SubmissionStatusApproved
		}
		out, err = s.repo.SetStatus(ctx, tx, id, status)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
