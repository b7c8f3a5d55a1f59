package interfaces

import (
	"context"

	"github.com/salvageops/salvage-cash-ledger/internal/models"
)

// VehicleStore is the read-only view of vehicle purchase/sale records owned
// by the surrounding application. Returns nil with no error when the
// transaction does not exist.
type VehicleStore interface {
	GetTransaction(ctx context.Context, id string) (*models.VehicleTransaction, error)
}
