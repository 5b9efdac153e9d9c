package submissions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joblinker/backend/internal/apperr"
	"github.com/joblinker/backend/internal/config"
	"github.com/joblinker/backend/internal/ledger"
	"github.com/joblinker/backend/internal/memstore"
	"github.com/joblinker/backend/internal/models"
	"github.com/joblinker/backend/internal/store"
	"github.com/joblinker/backend/internal/tasks"
)

var _ Store = (*memstore.Submissions)(nil)

type fixture struct {
	ledger ledger.Service
	tasks  tasks.Service
	svc    Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memstore.New()
	run := store.NewRunner(db, store.RetryPolicy{Attempts: 2, BaseDelay: time.Millisecond})
	led := ledger.NewService(db.Users(), run, config.Grants{})
	noEnqueue := func(context.Context, pgx.Tx, uuid.UUID) error { return nil }
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := tasks.NewService(db.Tasks(), run, led, db.Submissions(), noEnqueue, log)
	return &fixture{
		ledger: led,
		tasks:  reg,
		svc:    NewService(db.Submissions(), run, reg, led),
	}
}

func (f *fixture) user(t *testing.T, email, role string, coins int64) *models.User {
	t.Helper()
	u, err := f.ledger.CreateUser(context.Background(), ledger.NewUser{Name: email, Email: email, Role: role, Coins: &coins})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func (f *fixture) balance(t *testing.T, id uuid.UUID) int64 {
	t.Helper()
	u, err := f.ledger.GetUserByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	return u.Coins
}

func (f *fixture) task(t *testing.T, creator *models.User, quantity, payable int64) *models.Task {
	t.Helper()
	task, err := f.tasks.CreateTask(context.Background(), tasks.NewTask{
		CreatorID: creator.ID, Title: "Like our post", Detail: "Screenshot required", Quantity: quantity, PayableAmount: payable,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return task
}

func (f *fixture) submit(t *testing.T, taskID uuid.UUID, worker *models.User) *models.Submission {
	t.Helper()
	sub, err := f.svc.Submit(context.Background(), taskID, worker.ID, "done, see screenshot")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return sub
}

// 100 coins, a 10x5 task, one approval, then delete.
func TestWorkedExample(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "creator@example.com", models.RoleCreator, 100)
	worker := f.user(t, "worker@example.com", models.RoleWorker, 0)

	task := f.task(t, creator, 10, 5)
	if got := f.balance(t, creator.ID); got != 50 {
		t.Fatalf("after create: creator = %d, want 50", got)
	}

	sub := f.submit(t, task.ID, worker)
	if _, err := f.svc.Decide(ctx, sub.ID, DecisionApprove, creator.ID); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if got := f.balance(t, worker.ID); got != 5 {
		t.Errorf("worker = %d, want 5", got)
	}

	refund, err := f.tasks.DeleteTask(ctx, task.ID, creator.ID)
	if err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if refund != 45 {
		t.Errorf("refund = %d, want 45", refund)
	}
	if got := f.balance(t, creator.ID); got != 95 {
		t.Errorf("final creator = %d, want 95", got)
	}
}

func TestSubmit_Snapshot(t *testing.T) {
	f := newFixture(t)
	creator := f.user(t, "c@example.com", models.RoleCreator, 100)
	worker := f.user(t, "w@example.com", models.RoleWorker, 0)
	task := f.task(t, creator, 2, 7)

	sub := f.submit(t, task.ID, worker)
	if sub.Status != models.SubmissionStatusPending {
		t.Errorf("status = %s", sub.Status)
	}
	if sub.TaskTitle != task.Title || sub.TaskDetail != task.Detail || sub.PayableAmount != 7 {
		t.Errorf("snapshot = %+v", sub)
	}
	if sub.CreatorID != creator.ID || sub.CreatorEmail != creator.Email || sub.WorkerEmail != worker.Email {
		t.Errorf("parties = %+v", sub)
	}

	title := "Edited later"
	if _, err := f.tasks.UpdateTask(context.Background(), task.ID, creator.ID, tasks.Edit{Title: &title}); err != nil {
		t.Fatal(err)
	}
	got, err := f.svc.GetSubmission(context.Background(), sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TaskTitle != task.Title {
		t.Errorf("snapshot changed with task edit: %q", got.TaskTitle)
	}
}

func TestSubmit_TaskNotOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "c@example.com", models.RoleCreator, 100)
	worker := f.user(t, "w@example.com", models.RoleWorker, 0)

	if _, err := f.svc.Submit(ctx, uuid.New(), worker.ID, "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing task: expected ErrNotFound, got %v", err)
	}

	full := f.task(t, creator, 1, 1)
	sub := f.submit(t, full.ID, worker)
	if _, err := f.svc.Decide(ctx, sub.ID, DecisionApprove, creator.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Submit(ctx, full.ID, worker.ID, "again"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("completed task: expected ErrNotFound, got %v", err)
	}

	if _, err := f.svc.Submit(ctx, full.ID, worker.ID, "  "); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("empty details: expected ErrInvalidArgument, got %v", err)
	}
}

func TestDecide_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "c@example.com", models.RoleCreator, 100)
	worker := f.user(t, "w@example.com", models.RoleWorker, 0)
	task := f.task(t, creator, 3, 2)
	sub := f.submit(t, task.ID, worker)

	if _, err := f.svc.Decide(ctx, uuid.New(), DecisionApprove, creator.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Decide(ctx, sub.ID, DecisionApprove, worker.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Decide(ctx, sub.ID, "maybe", creator.ID); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}

	got, err := f.svc.Decide(ctx, sub.ID, DecisionReject, creator.ID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != models.SubmissionStatusRejected || got.DecidedAt == nil {
		t.Errorf("rejected = %+v", got)
	}
	if bal := f.balance(t, worker.ID); bal != 0 {
		t.Errorf("reject paid the worker %d", bal)
	}
	if _, err := f.svc.Decide(ctx, sub.ID, DecisionApprove, creator.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected ErrConflict on second decision, got %v", err)
	}
}

// More approvals than units: exactly quantity succeed and the pool is never
// over-disbursed.
func TestDecide_ConcurrentApprovalsRespectQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "c@example.com", models.RoleCreator, 100)
	worker := f.user(t, "w@example.com", models.RoleWorker, 0)
	task := f.task(t, creator, 3, 4)

	var subs []*models.Submission
	for range 6 {
		subs = append(subs, f.submit(t, task.ID, worker))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		approved  int
		conflicts int
	)
	for _, sub := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Decide(ctx, sub.ID, DecisionApprove, creator.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				approved++
			case errors.Is(err, apperr.ErrConflict):
				conflicts++
			default:
				t.Errorf("Decide: %v", err)
			}
		}()
	}
	wg.Wait()

	if approved != 3 || conflicts != 3 {
		t.Errorf("approved=%d conflicts=%d, want 3/3", approved, conflicts)
	}
	if bal := f.balance(t, worker.ID); bal != 12 {
		t.Errorf("worker = %d, want 12", bal)
	}
	refund, err := f.tasks.DeleteTask(ctx, task.ID, creator.ID)
	if err != nil || refund != 0 {
		t.Errorf("DeleteTask = %d, %v; want 0", refund, err)
	}
	if bal := f.balance(t, creator.ID); bal != 88 {
		t.Errorf("creator = %d, want 88", bal)
	}
}

func TestListSubmissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "c@example.com", models.RoleCreator, 100)
	w1 := f.user(t, "w1@example.com", models.RoleWorker, 0)
	w2 := f.user(t, "w2@example.com", models.RoleWorker, 0)
	task := f.task(t, creator, 5, 1)
	f.submit(t, task.ID, w1)
	f.submit(t, task.ID, w2)
	latest := f.submit(t, task.ID, w1)

	count := func(filter Filter) []uuid.UUID {
		t.Helper()
		seq, err := f.svc.ListSubmissions(ctx, filter)
		if err != nil {
			t.Fatalf("ListSubmissions: %v", err)
		}
		var ids []uuid.UUID
		for s, err := range seq {
			if err != nil {
				t.Fatal(err)
			}
			ids = append(ids, s.ID)
		}
		return ids
	}
	if ids := count(Filter{WorkerID: w1.ID}); len(ids) != 2 || ids[0] != latest.ID {
		t.Errorf("by worker = %v", ids)
	}
	if ids := count(Filter{CreatorID: creator.ID}); len(ids) != 3 {
		t.Errorf("by creator = %v", ids)
	}

	for _, bad := range []Filter{{}, {WorkerID: w1.ID, CreatorID: creator.ID}} {
		if _, err := f.svc.ListSubmissions(ctx, bad); !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("filter %+v: expected ErrInvalidArgument, got %v", bad, err)
		}
	}
}

func TestDeleteTask_AutoRejectsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "c@example.com", models.RoleCreator, 100)
	worker := f.user(t, "w@example.com", models.RoleWorker, 0)
	task := f.task(t, creator, 2, 10)
	sub := f.submit(t, task.ID, worker)

	if err := f.ledger.DeleteUser(ctx, creator.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected ErrConflict deleting a creator with pending work, got %v", err)
	}
	if _, err := f.tasks.DeleteTask(ctx, task.ID, creator.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	got, err := f.svc.GetSubmission(ctx, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.SubmissionStatusRejected {
		t.Errorf("status = %s, want rejected", got.Status)
	}
	if _, err := f.svc.Decide(ctx, sub.ID, DecisionApprove, creator.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected ErrConflict approving after delete, got %v", err)
	}
	if bal := f.balance(t, creator.ID); bal != 100 {
		t.Errorf("creator = %d, want 100", bal)
	}
}
