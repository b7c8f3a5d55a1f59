package models

import "time"

// ReportKind identifies which regulatory report a ScheduledReport produces.
type ReportKind string

const (
	ReportPurchase ReportKind = "purchase"
	ReportSale     ReportKind = "sale"
)

// ReportStatus is the lifecycle state of a ScheduledReport.
// Sent is terminal; Failed reports stay queryable and retryable forever.
type ReportStatus string

const (
	ReportScheduled ReportStatus = "scheduled"
	ReportSent      ReportStatus = "sent"
	ReportFailed    ReportStatus = "failed"
)

// ReportPayload carries the vehicle data submitted to the reporting gateway.
// ObtainDate is a calendar date in YYYY-MM-DD form. Odometer of 0 means
// not recorded.
type ReportPayload struct {
	VIN              string `json:"vin"`
	ObtainDate       string `json:"obtain_date"`
	CounterpartyName string `json:"counterparty_name"`
	BuyerName        string `json:"buyer_name,omitempty"`
	Odometer         int    `json:"odometer,omitempty"`
}

// ScheduledReport is one pending or completed compliance report. Exactly one
// exists per (OriginatingTransactionID, Kind) pair.
type ScheduledReport struct {
	ID                       string        `json:"id"`
	VIN                      string        `json:"vin"`
	Kind                     ReportKind    `json:"kind"`
	ScheduleAt               time.Time     `json:"schedule_at"`
	Payload                  ReportPayload `json:"payload"`
	OriginatingTransactionID string        `json:"originating_transaction_id"`
	Status                   ReportStatus  `json:"status"`
	AttemptCount             int           `json:"attempt_count"`
	LastAttemptAt            *time.Time    `json:"last_attempt_at,omitempty"`
	LastError                string        `json:"last_error,omitempty"`
	GatewayReportID          string        `json:"gateway_report_id,omitempty"`
}
