package gateway

import (
	"context"

	interfaces "github.com/salvageops/salvage-cash-ledger/internal/interfaces"
	"github.com/salvageops/salvage-cash-ledger/internal/models"
)

// ManualGateway is the placeholder used by yards whose state has no
// electronic reporting API. Every submission succeeds immediately; the
// operator files the paper form from the recorded report data. The scheduler
// treats it exactly like the live gateway.
type ManualGateway struct{}

func NewManualGateway() *ManualGateway {
	return &ManualGateway{}
}

func (g *ManualGateway) Submit(ctx context.Context, kind models.ReportKind, payload models.ReportPayload) (interfaces.SubmitResult, error) {
	return interfaces.SubmitResult{
		Success: true,
		Message: "recorded for manual submission",
	}, nil
}

var _ interfaces.ReportingGateway = (*ManualGateway)(nil)
