package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SubmissionStatusPending  = "pending"
	SubmissionStatusApproved = "approved"
	SubmissionStatusRejected = "rejected"
)

// Submission carries a snapshot of the task taken at submission time, so
// later task edits do not change what a pending submission was made against.
type Submission struct {
	ID            uuid.UUID  `json:"id"`
	TaskID        uuid.UUID  `json:"task_id"`
	TaskTitle     string     `json:"task_title"`
	TaskDetail    string     `json:"task_detail"`
	TaskImage     string     `json:"task_image"`
	PayableAmount int64      `json:"payable_amount"`
	WorkerID      uuid.UUID  `json:"worker_id"`
	WorkerEmail   string     `json:"worker_email"`
	WorkerName    string     `json:"worker_name"`
	CreatorID     uuid.UUID  `json:"creator_id"`
	CreatorEmail  string     `json:"creator_email"`
	Details       string     `json:"details"`
	Status        string     `json:"status"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	DecidedAt     *time.Time `json:"decided_at,omitempty"`
}
