package memory

import (
	"context"
	"sync"

	interfaces "github.com/salvageops/salvage-cash-ledger/internal/interfaces"
	"github.com/salvageops/salvage-cash-ledger/internal/models"
)

// VehicleStore is an in-memory implementation of interfaces.VehicleStore.
// The real vehicle records live in the surrounding application; this store
// stands in for them in tests and standalone runs.
type VehicleStore struct {
	mu           sync.Mutex
	transactions map[string]models.VehicleTransaction
}

func NewVehicleStore() *VehicleStore {
	return &VehicleStore{transactions: make(map[string]models.VehicleTransaction)}
}

// Put seeds a vehicle transaction.
func (s *VehicleStore) Put(txn models.VehicleTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[txn.ID] = txn
}

// Remove deletes a vehicle transaction, simulating the surrounding
// application deleting the originating record.
func (s *VehicleStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transactions, id)
}

func (s *VehicleStore) GetTransaction(ctx context.Context, id string) (*models.VehicleTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, exists := s.transactions[id]
	if !exists {
		return nil, nil
	}
	return &txn, nil
}

var _ interfaces.VehicleStore = (*VehicleStore)(nil)
