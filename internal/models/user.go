package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles. Creator is also called Buyer in the client.
const (
	RoleWorker  = "Worker"
	RoleCreator = "Creator"
	RoleAdmin   = "Admin"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleWorker, RoleCreator, RoleAdmin:
		return true
	}
	return false
}

// Records that keep a user from being deleted, as reported by the ledger.
const (
	RefTasks               = "tasks"
	RefSubmissionsToReview = "submissions awaiting review"
	RefPendingSubmissions  = "pending submissions"
	RefPendingWithdrawals  = "pending withdrawals"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Photo     string    `json:"photo"`
	Role      string    `json:"role"`
	Coins     int64     `json:"coins"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
