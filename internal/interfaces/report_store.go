package interfaces

import (
	"context"
	"time"

	"github.com/salvageops/salvage-cash-ledger/internal/models"
)

// ReportStore persists scheduled compliance reports. Reports are never
// deleted; Update is only ever called on a report the caller has claimed.
type ReportStore interface {
	Save(ctx context.Context, report models.ScheduledReport) error
	Update(ctx context.Context, report models.ScheduledReport) error
	// GetByID returns nil with no error when the report does not exist.
	GetByID(ctx context.Context, id string) (*models.ScheduledReport, error)
	// GetByOriginatingTransaction looks up the report for an idempotency key.
	// Returns nil with no error when none exists.
	GetByOriginatingTransaction(ctx context.Context, transactionID string, kind models.ReportKind) (*models.ScheduledReport, error)
	GetByVIN(ctx context.Context, vin string, kind models.ReportKind) ([]models.ScheduledReport, error)
	// GetDue returns reports in Scheduled state with ScheduleAt <= now.
	GetDue(ctx context.Context, now time.Time) ([]models.ScheduledReport, error)
	// Claim atomically increments the report's attempt count and stamps
	// LastAttemptAt, but only if the attempt count still equals
	// expectedAttempts and the report is not Sent. It reports whether the
	// caller won the claim; a false result means another scan got there first.
	Claim(ctx context.Context, id string, expectedAttempts int, at time.Time) (bool, error)
	ListByStatus(ctx context.Context, status models.ReportStatus) ([]models.ScheduledReport, error)
}
