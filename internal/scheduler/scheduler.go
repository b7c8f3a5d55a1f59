package scheduler

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	interfaces "github.com/salvageops/salvage-cash-ledger/internal/interfaces"
	"github.com/salvageops/salvage-cash-ledger/internal/models"
	"github.com/salvageops/salvage-cash-ledger/internal/models/events"
)

var (
	// ErrInvalidPayload means the report data is unusable (malformed VIN,
	// missing required field). Rejected before any state is written.
	ErrInvalidPayload = errors.New("invalid report payload")
	// ErrDuplicateVIN means a purchase report for the same VIN already exists
	// under a different originating transaction.
	ErrDuplicateVIN   = errors.New("purchase report already exists for vin")
	ErrReportNotFound = errors.New("report not found")
	ErrAlreadySent    = errors.New("report already sent")
	ErrNotFailed      = errors.New("report is not in a failed state")
)

const (
	// PurchaseReportDelay is the statutory lead before a purchase report is
	// due. Sales are reported immediately.
	PurchaseReportDelay = 40 * time.Hour

	// TopicReportsSubmitted is the event topic for accepted submissions.
	TopicReportsSubmitted = "compliance_report_submitted"

	defaultGatewayTimeout = 15 * time.Second
)

// 17 characters, letters and digits, I/O/Q excluded per ISO 3779.
var vinPattern = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

// Scheduler guarantees exactly one outbound compliance report per qualifying
// vehicle event. Reports are keyed by (originating transaction, kind) so
// retries and overlapping scans can never create or submit duplicates.
// There is deliberately no cancel operation; Sent is the only terminal state.
type Scheduler struct {
	reports   interfaces.ReportStore
	vehicles  interfaces.VehicleStore
	gateway   interfaces.ReportingGateway
	publisher interfaces.EventPublisher // optional; nil disables events
	log       zerolog.Logger

	gatewayTimeout time.Duration
	now            func() time.Time
}

func NewScheduler(reports interfaces.ReportStore, vehicles interfaces.VehicleStore, gateway interfaces.ReportingGateway, publisher interfaces.EventPublisher, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		reports:        reports,
		vehicles:       vehicles,
		gateway:        gateway,
		publisher:      publisher,
		log:            log.With().Str("component", "scheduler").Logger(),
		gatewayTimeout: defaultGatewayTimeout,
		now:            time.Now,
	}
}

// SchedulePurchaseReport creates a purchase report due PurchaseReportDelay
// from now. Calling it again for the same transaction returns the existing
// report instead of creating a duplicate. A purchase report for the same VIN
// under a different transaction is rejected with ErrDuplicateVIN.
func (s *Scheduler) SchedulePurchaseReport(ctx context.Context, transactionID, vin, obtainDate, counterpartyName string, odometer int) (models.ScheduledReport, error) {
	if err := validateCommon(transactionID, vin, obtainDate); err != nil {
		return models.ScheduledReport{}, err
	}
	if counterpartyName == "" {
		return models.ScheduledReport{}, fmt.Errorf("%w: counterparty name is required", ErrInvalidPayload)
	}

	existing, err := s.reports.GetByOriginatingTransaction(ctx, transactionID, models.ReportPurchase)
	if err != nil {
		return models.ScheduledReport{}, fmt.Errorf("check existing report: %w", err)
	}
	if existing != nil {
		return *existing, nil
	}

	sameVIN, err := s.reports.GetByVIN(ctx, vin, models.ReportPurchase)
	if err != nil {
		return models.ScheduledReport{}, fmt.Errorf("check vin: %w", err)
	}
	for _, other := range sameVIN {
		if other.OriginatingTransactionID != transactionID {
			return models.ScheduledReport{}, fmt.Errorf("%w: %s (transaction %s)", ErrDuplicateVIN, vin, other.OriginatingTransactionID)
		}
	}

	now := s.now().UTC()
	report := models.ScheduledReport{
		ID:         uuid.New().String(),
		VIN:        vin,
		Kind:       models.ReportPurchase,
		ScheduleAt: now.Add(PurchaseReportDelay),
		Payload: models.ReportPayload{
			VIN:              vin,
			ObtainDate:       obtainDate,
			CounterpartyName: counterpartyName,
			Odometer:         odometer,
		},
		OriginatingTransactionID: transactionID,
		Status:                   models.ReportScheduled,
	}

	if err := s.reports.Save(ctx, report); err != nil {
		return models.ScheduledReport{}, fmt.Errorf("save report: %w", err)
	}

	s.log.Info().
		Str("report_id", report.ID).
		Str("vin", vin).
		Time("schedule_at", report.ScheduleAt).
		Msg("purchase report scheduled")
	return report, nil
}

// ReportSaleImmediately submits a sale report synchronously and records the
// outcome. A gateway failure lands the report in Failed for later retry; it
// is never returned as an error so the sale itself is not blocked.
func (s *Scheduler) ReportSaleImmediately(ctx context.Context, transactionID, vin, obtainDate, sellerName, buyerName string) (models.ScheduledReport, error) {
	if err := validateCommon(transactionID, vin, obtainDate); err != nil {
		return models.ScheduledReport{}, err
	}
	if sellerName == "" || buyerName == "" {
		return models.ScheduledReport{}, fmt.Errorf("%w: seller and buyer names are required", ErrInvalidPayload)
	}

	existing, err := s.reports.GetByOriginatingTransaction(ctx, transactionID, models.ReportSale)
	if err != nil {
		return models.ScheduledReport{}, fmt.Errorf("check existing report: %w", err)
	}
	if existing != nil {
		return *existing, nil
	}

	now := s.now().UTC()
	report := models.ScheduledReport{
		ID:         uuid.New().String(),
		VIN:        vin,
		Kind:       models.ReportSale,
		ScheduleAt: now,
		Payload: models.ReportPayload{
			VIN:              vin,
			ObtainDate:       obtainDate,
			CounterpartyName: sellerName,
			BuyerName:        buyerName,
		},
		OriginatingTransactionID: transactionID,
		Status:                   models.ReportScheduled,
	}

	// Persist before calling out. If the process dies mid-submission the
	// report survives as due-now Scheduled and the next scan picks it up; the
	// gateway is never called for a report that has no record.
	if err := s.reports.Save(ctx, report); err != nil {
		return models.ScheduledReport{}, fmt.Errorf("save report: %w", err)
	}

	report.AttemptCount = 1
	s.submit(ctx, &report)

	if err := s.reports.Update(ctx, report); err != nil {
		return models.ScheduledReport{}, fmt.Errorf("update report: %w", err)
	}
	return report, nil
}

// ProcessResult summarizes one scan over due reports.
type ProcessResult struct {
	Due     int
	Sent    int
	Failed  int
	Skipped int
}

// ProcessDueReports scans for scheduled reports whose due time has passed and
// submits each one. Each due report is claimed before submission so an
// overlapping or retried scan processes it at most once. A failure on one
// report never aborts the rest of the scan.
func (s *Scheduler) ProcessDueReports(ctx context.Context) (ProcessResult, error) {
	due, err := s.reports.GetDue(ctx, s.now().UTC())
	if err != nil {
		return ProcessResult{}, fmt.Errorf("scan due reports: %w", err)
	}

	result := ProcessResult{Due: len(due)}
	for _, report := range due {
		claimed, err := s.reports.Claim(ctx, report.ID, report.AttemptCount, s.now().UTC())
		if err != nil {
			s.log.Error().Err(err).Str("report_id", report.ID).Msg("claim report failed")
			result.Skipped++
			continue
		}
		if !claimed {
			// Another scan already took this one.
			result.Skipped++
			continue
		}
		report.AttemptCount++

		if s.processClaimed(ctx, &report) {
			result.Sent++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

// processClaimed submits one claimed report and persists the outcome.
func (s *Scheduler) processClaimed(ctx context.Context, report *models.ScheduledReport) bool {
	// A report whose originating transaction has since been deleted is
	// flagged, not silently submitted or discarded.
	vehicle, err := s.vehicles.GetTransaction(ctx, report.OriginatingTransactionID)
	if err != nil {
		s.log.Error().Err(err).Str("report_id", report.ID).Msg("load originating transaction failed")
		s.fail(ctx, report, fmt.Sprintf("load originating transaction: %v", err))
		return false
	}
	if vehicle == nil {
		s.fail(ctx, report, "originating transaction not found")
		return false
	}

	sent := s.submit(ctx, report)
	if err := s.reports.Update(ctx, *report); err != nil {
		s.log.Error().Err(err).Str("report_id", report.ID).Msg("update report failed")
		return false
	}
	return sent
}

func (s *Scheduler) fail(ctx context.Context, report *models.ScheduledReport, reason string) {
	now := s.now().UTC()
	report.Status = models.ReportFailed
	report.LastAttemptAt = &now
	report.LastError = reason
	if err := s.reports.Update(ctx, *report); err != nil {
		s.log.Error().Err(err).Str("report_id", report.ID).Msg("update report failed")
	}
}

// RetryReport re-submits a single failed report, applying the same claim and
// update rules as one item of a scan.
func (s *Scheduler) RetryReport(ctx context.Context, reportID string) (models.ScheduledReport, error) {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return models.ScheduledReport{}, fmt.Errorf("load report: %w", err)
	}
	if report == nil {
		return models.ScheduledReport{}, fmt.Errorf("%w: %s", ErrReportNotFound, reportID)
	}
	switch report.Status {
	case models.ReportSent:
		return models.ScheduledReport{}, fmt.Errorf("%w: %s", ErrAlreadySent, reportID)
	case models.ReportFailed:
	default:
		return models.ScheduledReport{}, fmt.Errorf("%w: %s is %s", ErrNotFailed, reportID, report.Status)
	}

	claimed, err := s.reports.Claim(ctx, report.ID, report.AttemptCount, s.now().UTC())
	if err != nil {
		return models.ScheduledReport{}, fmt.Errorf("claim report: %w", err)
	}
	if !claimed {
		return models.ScheduledReport{}, fmt.Errorf("report %s is already being processed", reportID)
	}
	report.AttemptCount++

	s.submit(ctx, report)
	if err := s.reports.Update(ctx, *report); err != nil {
		return models.ScheduledReport{}, fmt.Errorf("update report: %w", err)
	}
	return *report, nil
}

// submit performs one bounded gateway call and records the outcome on the
// report in memory. A timeout or transport error counts as the gateway being
// unavailable; a rejection means the payload needs correcting. Either way the
// report lands in Failed and stays retryable.
func (s *Scheduler) submit(ctx context.Context, report *models.ScheduledReport) bool {
	callCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	result, err := s.gateway.Submit(callCtx, report.Kind, report.Payload)

	now := s.now().UTC()
	report.LastAttemptAt = &now

	switch {
	case err != nil:
		report.Status = models.ReportFailed
		report.LastError = fmt.Sprintf("gateway unavailable: %v", err)
		s.log.Warn().Err(err).Str("report_id", report.ID).Str("vin", report.VIN).Msg("report submission failed")
		return false
	case !result.Success:
		report.Status = models.ReportFailed
		report.LastError = fmt.Sprintf("gateway rejected report: %s", result.Message)
		s.log.Warn().Str("report_id", report.ID).Str("reason", result.Message).Msg("report rejected")
		return false
	default:
		report.Status = models.ReportSent
		report.LastError = ""
		report.GatewayReportID = result.ReportID
		s.publishSubmitted(*report, now)
		s.log.Info().Str("report_id", report.ID).Str("vin", report.VIN).Msg("report submitted")
		return true
	}
}

func (s *Scheduler) publishSubmitted(report models.ScheduledReport, at time.Time) {
	if s.publisher == nil {
		return
	}
	event := events.ReportSubmitted{
		ReportID:                 report.ID,
		VIN:                      report.VIN,
		Kind:                     string(report.Kind),
		OriginatingTransactionID: report.OriginatingTransactionID,
		GatewayReportID:          report.GatewayReportID,
		SubmittedAt:              at,
	}
	if err := s.publisher.Publish(TopicReportsSubmitted, event); err != nil {
		s.log.Warn().Err(err).Str("report_id", report.ID).Msg("publish report event failed")
	}
}

// FailedReports returns every report currently in Failed state. Failed
// reports are kept forever and stay queryable.
func (s *Scheduler) FailedReports(ctx context.Context) ([]models.ScheduledReport, error) {
	return s.reports.ListByStatus(ctx, models.ReportFailed)
}

// Report looks up one report by id, nil when it does not exist.
func (s *Scheduler) Report(ctx context.Context, id string) (*models.ScheduledReport, error) {
	return s.reports.GetByID(ctx, id)
}

func validateCommon(transactionID, vin, obtainDate string) error {
	if transactionID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidPayload)
	}
	if !vinPattern.MatchString(vin) {
		return fmt.Errorf("%w: malformed vin %q", ErrInvalidPayload, vin)
	}
	if obtainDate == "" {
		return fmt.Errorf("%w: obtain date is required", ErrInvalidPayload)
	}
	return nil
}
