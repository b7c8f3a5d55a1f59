package events

import "time"

// ReportSubmitted is published when the gateway accepts a compliance report.
type ReportSubmitted struct {
	ReportID                 string    `json:"report_id"`
	VIN                      string    `json:"vin"`
	Kind                     string    `json:"kind"`
	OriginatingTransactionID string    `json:"originating_transaction_id"`
	GatewayReportID          string    `json:"gateway_report_id,omitempty"`
	SubmittedAt              time.Time `json:"submitted_at"`
}
