package models

import (
	"time"

	"github.com/google/uuid"
)

// Coin journal entry_type values. Amount is the signed delta applied to the
// owner's balance.
const (
	CoinEntryInitialGrant       = "initial_grant"
	CoinEntryTaskReserve        = "task_reserve"
	CoinEntryTaskRefund         = "task_refund"
	CoinEntryTaskEarning        = "task_earning"
	CoinEntryWithdrawalHold     = "withdrawal_hold"
	CoinEntryWithdrawalReversal = "withdrawal_reversal"
)

type CoinEntry struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	EntryType    string     `json:"entry_type"`
	Amount       int64      `json:"amount"`
	BalanceAfter int64      `json:"balance_after"`
	RefID        *uuid.UUID `json:"ref_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
