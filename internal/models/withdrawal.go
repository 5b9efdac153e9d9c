package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusCompleted = "completed"
	WithdrawalStatusRejected  = "rejected"
)

type Withdrawal struct {
	ID            uuid.UUID       `json:"id"`
	WorkerID      uuid.UUID       `json:"worker_id"`
	WorkerEmail   string          `json:"worker_email"`
	WorkerName    string          `json:"worker_name"`
	CoinAmount    int64           `json:"coin_amount"`
	CashAmount    decimal.Decimal `json:"cash_amount"`
	PaymentSystem string          `json:"payment_system"`
	AccountNumber string          `json:"account_number"`
	Status        string          `json:"status"`
	RequestedAt   time.Time       `json:"requested_at"`
	DecidedAt     *time.Time      `json:"decided_at,omitempty"`
}
