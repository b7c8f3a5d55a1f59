package interfaces

import (
	"context"

	"github.com/salvageops/salvage-cash-ledger/internal/models"
)

// WriteSink accepts cash movements for permanent recording. The ledger is
// the usual implementation; the offline queue replays through it on flush.
type WriteSink interface {
	Apply(ctx context.Context, movement models.CashMovement) (models.CashTransaction, error)
}
