package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a cash movement.
type TransactionType string

const (
	TransactionPurchase   TransactionType = "purchase"
	TransactionSale       TransactionType = "sale"
	TransactionAdjustment TransactionType = "adjustment"
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionPurchase, TransactionSale, TransactionAdjustment,
		TransactionDeposit, TransactionWithdrawal:
		return true
	}
	return false
}

// CashTransaction is a single immutable ledger record. Negative amounts are
// cash going out, positive amounts cash coming in. BalanceAfter snapshots the
// operator's balance immediately after this transaction was applied.
type CashTransaction struct {
	ID                   string          `json:"id"`
	OperatorID           string          `json:"operator_id"`
	YardID               string          `json:"yard_id"`
	Type                 TransactionType `json:"type"`
	Amount               decimal.Decimal `json:"amount"`
	BalanceAfter         decimal.Decimal `json:"balance_after"`
	RelatedTransactionID string          `json:"related_transaction_id,omitempty"` // originating vehicle transaction, if any
	RelatedVIN           string          `json:"related_vin,omitempty"`
	Description          string          `json:"description"`
	Timestamp            time.Time       `json:"timestamp"`
	RecordedBy           string          `json:"recorded_by"`
}

// CashMovement represents an intent to record a cash movement against an
// operator's account. The ledger turns it into a CashTransaction.
type CashMovement struct {
	OperatorID           string          `json:"operator_id"`
	OperatorName         string          `json:"operator_name"`
	YardID               string          `json:"yard_id"`
	Amount               decimal.Decimal `json:"amount"`
	Type                 TransactionType `json:"type"`
	Description          string          `json:"description"`
	RelatedTransactionID string          `json:"related_transaction_id,omitempty"`
	RelatedVIN           string          `json:"related_vin,omitempty"`
	RecordedBy           string          `json:"recorded_by"`
}
