package memory

import (
	"context"
	"fmt"
	"sync"

	interfaces "github.com/salvageops/salvage-cash-ledger/internal/interfaces"
	"github.com/salvageops/salvage-cash-ledger/internal/models"
)

// QueueStore is an in-memory implementation of interfaces.QueueStore.
// Entries do not survive a restart; installs that need that use the SQLite
// store instead.
type QueueStore struct {
	mu      sync.Mutex
	entries []models.QueueEntry
}

func NewQueueStore() *QueueStore {
	return &QueueStore{}
}

func (s *QueueStore) Append(ctx context.Context, entry models.QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *QueueStore) List(ctx context.Context) ([]models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]models.QueueEntry, len(s.entries))
	copy(copied, s.entries)
	return copied, nil
}

func (s *QueueStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, entry := range s.entries {
		if entry.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("queue entry %s does not exist", id)
}

func (s *QueueStore) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

var _ interfaces.QueueStore = (*QueueStore)(nil)
