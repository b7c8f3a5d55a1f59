package interfaces

import (
	"context"

	"github.com/salvageops/salvage-cash-ledger/internal/models"
)

// QueueStore holds cash movements buffered while disconnected.
// List must return entries in enqueue order.
type QueueStore interface {
	Append(ctx context.Context, entry models.QueueEntry) error
	List(ctx context.Context) ([]models.QueueEntry, error)
	Delete(ctx context.Context, id string) error
	Len(ctx context.Context) (int, error)
}
