package interfaces

import (
	"context"

	"github.com/salvageops/salvage-cash-ledger/internal/models"
)

// LedgerStore persists cash accounts and their append-only transaction log.
// SaveTransactionWithAccount must write both records as a single atomic unit
// so the account never drifts from its history on a partial failure.
type LedgerStore interface {
	// GetAccount returns nil with no error when the operator has no account yet.
	GetAccount(ctx context.Context, operatorID string) (*models.CashAccount, error)
	SaveTransactionWithAccount(ctx context.Context, account models.CashAccount, txn models.CashTransaction) error
	// GetTransactionsByOperator returns transactions newest first.
	// A limit <= 0 returns the full history.
	GetTransactionsByOperator(ctx context.Context, operatorID string, limit int) ([]models.CashTransaction, error)
}
