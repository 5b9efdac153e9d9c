package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// FinalizeDelay is how long a queued finalization waits before running, so
// the synchronous path in DeleteTask normally gets there first.
const FinalizeDelay = 30 * time.Second

type FinalizeTaskDeletionArgs struct {
	TaskID uuid.UUID `json:"task_id"`
}

func (FinalizeTaskDeletionArgs) Kind() string { return "finalize_task_deletion" }

// InsertOpts makes the job unique per task, so deleting twice queues it once.
func (FinalizeTaskDeletionArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: 25,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	}
}

// TaskFinalizer defines the contract the worker needs to complete a deletion.
type TaskFinalizer interface {
	FinalizeDeletion(ctx context.Context, taskID uuid.UUID) (int64, error)
}

type FinalizeTaskDeletionWorker struct {
	river.WorkerDefaults[FinalizeTaskDeletionArgs]
	finalizer TaskFinalizer
	log       *slog.Logger
}

func NewFinalizeTaskDeletionWorker(f TaskFinalizer, log *slog.Logger) *FinalizeTaskDeletionWorker {
	if log == nil {
		log = slog.Default()
	}
	return &FinalizeTaskDeletionWorker{finalizer: f, log: log}
}

// Work finalizes the deletion. Finalizing an already removed task is a
// no-op, so the job normally finds nothing left to do. Errors are returned
// for River to retry with backoff.
func (w *FinalizeTaskDeletionWorker) Work(ctx context.Context, job *river.Job[FinalizeTaskDeletionArgs]) error {
	refund, err := w.finalizer.FinalizeDeletion(ctx, job.Args.TaskID)
	if err != nil {
		return fmt.Errorf("finalize deletion of task %s: %w", job.Args.TaskID, err)
	}
	if refund > 0 {
		w.log.Info("background finalizer refunded deleted task", "task_id", job.Args.TaskID, "refund", refund)
	}
	return nil
}

// EnqueueOpts schedules a finalization FinalizeDelay after now.
func EnqueueOpts(now time.Time) *river.InsertOpts {
	return &river.InsertOpts{ScheduledAt: now.Add(FinalizeDelay)}
}
