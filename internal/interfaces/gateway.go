package interfaces

import (
	"context"

	"github.com/salvageops/salvage-cash-ledger/internal/models"
)

// SubmitResult is the gateway's answer to a report submission.
// Success=false with a nil transport error means the gateway examined and
// rejected the payload.
type SubmitResult struct {
	Success  bool
	Message  string
	ReportID string
}

// ReportingGateway submits compliance reports to the regulator. A returned
// error means the gateway could not be reached at all (network failure,
// timeout); the scheduler records both outcomes on the report rather than
// propagating them to the business caller.
type ReportingGateway interface {
	Submit(ctx context.Context, kind models.ReportKind, payload models.ReportPayload) (SubmitResult, error)
}
