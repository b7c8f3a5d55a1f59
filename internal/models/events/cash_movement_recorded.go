package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashMovementRecorded is published after the ledger commits a transaction.
type CashMovementRecorded struct {
	TransactionID string          `json:"transaction_id"`
	OperatorID    string          `json:"operator_id"`
	YardID        string          `json:"yard_id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
