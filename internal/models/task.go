package models

import (
	"time"

	"github.com/google/uuid"
)

// Task status values. A task is completed once every unit has been approved,
// and deleting while its refund and removal are still being finalized.
const (
	TaskStatusOpen      = "open"
	TaskStatusCompleted = "completed"
	TaskStatusDeleting  = "deleting"
)

type Task struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Detail         string    `json:"detail"`
	Image          string    `json:"image"`
	Quantity       int64     `json:"quantity"`
	PayableAmount  int64     `json:"payable_amount"`
	CreatorID      uuid.UUID `json:"creator_id"`
	CreatorEmail   string    `json:"creator_email"`
	CreatorName    string    `json:"creator_name"`
	SubmissionInfo string    `json:"submission_info"`
	Status         string    `json:"status"`
	ApprovedCount  int64     `json:"approved_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Pool is the total number of coins reserved for the task.
func (t *Task) Pool() int64 { return t.Quantity * t.PayableAmount }

// RemainingPool is the part of the pool not yet paid out to workers.
func (t *Task) RemainingPool() int64 { return (t.Quantity - t.ApprovedCount) * t.PayableAmount }
