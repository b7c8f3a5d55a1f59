package memory

import (
	"context"
	"sync"

	interfaces "github.com/salvageops/salvage-cash-ledger/internal/interfaces"
	"github.com/salvageops/salvage-cash-ledger/internal/models"
)

// LedgerStore is an in-memory implementation of interfaces.LedgerStore,
// used by tests and by single-yard installs that run without Postgres.
type LedgerStore struct {
	mu           sync.Mutex
	accounts     map[string]models.CashAccount
	transactions map[string][]models.CashTransaction // operatorID -> append order
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		accounts:     make(map[string]models.CashAccount),
		transactions: make(map[string][]models.CashTransaction),
	}
}

func (s *LedgerStore) GetAccount(ctx context.Context, operatorID string) (*models.CashAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, exists := s.accounts[operatorID]
	if !exists {
		return nil, nil
	}
	return &account, nil
}

// SaveTransactionWithAccount writes the account and appends the transaction
// under one lock, mirroring the atomic commit the Postgres store gets from a
// database transaction.
func (s *LedgerStore) SaveTransactionWithAccount(ctx context.Context, account models.CashAccount, txn models.CashTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[account.OperatorID] = account
	s.transactions[txn.OperatorID] = append(s.transactions[txn.OperatorID], txn)
	return nil
}

func (s *LedgerStore) GetTransactionsByOperator(ctx context.Context, operatorID string, limit int) ([]models.CashTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.transactions[operatorID]

	// Newest first: stored order is append order.
	result := make([]models.CashTransaction, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		result = append(result, stored[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

var _ interfaces.LedgerStore = (*LedgerStore)(nil)
