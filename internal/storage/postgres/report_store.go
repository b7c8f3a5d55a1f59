package postgres

import (
	"context"
	"database/sql"
	"time"

	interfaces "github.com/salvageops/salvage-cash-ledger/internal/interfaces"
	"github.com/salvageops/salvage-cash-ledger/internal/models"
)

// ReportStore is the Postgres implementation of interfaces.ReportStore.
type ReportStore struct {
	db *sql.DB
}

func NewReportStore(db *sql.DB) *ReportStore {
	return &ReportStore{db: db}
}

const reportColumns = `id, vin, report_type, schedule_date, obtain_date, counterparty_name, buyer_name, odometer,
	original_transaction_id, status, attempts, last_attempt, error_message, gateway_report_id`

func (s *ReportStore) Save(ctx context.Context, report models.ScheduledReport) error {
	const query = `INSERT INTO scheduled_reports (` + reportColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.db.ExecContext(ctx, query,
		report.ID, report.VIN, string(report.Kind), report.ScheduleAt,
		report.Payload.ObtainDate, report.Payload.CounterpartyName, report.Payload.BuyerName, report.Payload.Odometer,
		report.OriginatingTransactionID, string(report.Status), report.AttemptCount,
		nullTime(report.LastAttemptAt), report.LastError, report.GatewayReportID)
	return err
}

func (s *ReportStore) Update(ctx context.Context, report models.ScheduledReport) error {
	const query = `UPDATE scheduled_reports
	SET status = $2, attempts = $3, last_attempt = $4, error_message = $5, gateway_report_id = $6
	WHERE id = $1`

	_, err := s.db.ExecContext(ctx, query,
		report.ID, string(report.Status), report.AttemptCount,
		nullTime(report.LastAttemptAt), report.LastError, report.GatewayReportID)
	return err
}

func (s *ReportStore) GetByID(ctx context.Context, id string) (*models.ScheduledReport, error) {
	const query = `SELECT ` + reportColumns + ` FROM scheduled_reports WHERE id = $1`
	return s.getOne(ctx, query, id)
}

func (s *ReportStore) GetByOriginatingTransaction(ctx context.Context, transactionID string, kind models.ReportKind) (*models.ScheduledReport, error) {
	const query = `SELECT ` + reportColumns + ` FROM scheduled_reports
	WHERE original_transaction_id = $1 AND report_type = $2`
	return s.getOne(ctx, query, transactionID, string(kind))
}

func (s *ReportStore) getOne(ctx context.Context, query string, args ...any) (*models.ScheduledReport, error) {
	report, err := scanReport(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *ReportStore) GetByVIN(ctx context.Context, vin string, kind models.ReportKind) ([]models.ScheduledReport, error) {
	const query = `SELECT ` + reportColumns + ` FROM scheduled_reports
	WHERE vin = $1 AND report_type = $2 ORDER BY schedule_date`
	return s.list(ctx, query, vin, string(kind))
}

func (s *ReportStore) GetDue(ctx context.Context, now time.Time) ([]models.ScheduledReport, error) {
	const query = `SELECT ` + reportColumns + ` FROM scheduled_reports
	WHERE status = 'scheduled' AND schedule_date <= $1 ORDER BY schedule_date`
	return s.list(ctx, query, now)
}

func (s *ReportStore) ListByStatus(ctx context.Context, status models.ReportStatus) ([]models.ScheduledReport, error) {
	const query = `SELECT ` + reportColumns + ` FROM scheduled_reports
	WHERE status = $1 ORDER BY schedule_date`
	return s.list(ctx, query, string(status))
}

// Claim bumps the attempt count only when it still matches what the caller
// read, so two overlapping scans cannot both win the same report.
func (s *ReportStore) Claim(ctx context.Context, id string, expectedAttempts int, at time.Time) (bool, error) {
	const query = `UPDATE scheduled_reports
	SET attempts = attempts + 1, last_attempt = $3
	WHERE id = $1 AND attempts = $2 AND status <> 'sent'`

	result, err := s.db.ExecContext(ctx, query, id, expectedAttempts, at)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *ReportStore) list(ctx context.Context, query string, args ...any) ([]models.ScheduledReport, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []models.ScheduledReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reports, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (models.ScheduledReport, error) {
	var (
		report      models.ScheduledReport
		kind        string
		status      string
		lastAttempt sql.NullTime
	)
	err := row.Scan(
		&report.ID,
		&report.VIN,
		&kind,
		&report.ScheduleAt,
		&report.Payload.ObtainDate,
		&report.Payload.CounterpartyName,
		&report.Payload.BuyerName,
		&report.Payload.Odometer,
		&report.OriginatingTransactionID,
		&status,
		&report.AttemptCount,
		&lastAttempt,
		&report.LastError,
		&report.GatewayReportID,
	)
	if err != nil {
		return models.ScheduledReport{}, err
	}
	report.Kind = models.ReportKind(kind)
	report.Status = models.ReportStatus(status)
	report.Payload.VIN = report.VIN
	if lastAttempt.Valid {
		report.LastAttemptAt = &lastAttempt.Time
	}
	return report, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ interfaces.ReportStore = (*ReportStore)(nil)
