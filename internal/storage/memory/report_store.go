package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	interfaces "github.com/salvageops/salvage-cash-ledger/internal/interfaces"
	"github.com/salvageops/salvage-cash-ledger/internal/models"
)

// ReportStore is an in-memory implementation of interfaces.ReportStore.
type ReportStore struct {
	mu      sync.Mutex
	reports map[string]models.ScheduledReport // by report ID
	order   []string                          // creation order, for stable listings
}

func NewReportStore() *ReportStore {
	return &ReportStore{
		reports: make(map[string]models.ScheduledReport),
	}
}

func (s *ReportStore) Save(ctx context.Context, report models.ScheduledReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[report.ID]; exists {
		return fmt.Errorf("report %s already exists", report.ID)
	}
	for _, existing := range s.reports {
		if existing.OriginatingTransactionID == report.OriginatingTransactionID && existing.Kind == report.Kind {
			return fmt.Errorf("report for transaction %s kind %s already exists", report.OriginatingTransactionID, report.Kind)
		}
	}
	s.reports[report.ID] = report
	s.order = append(s.order, report.ID)
	return nil
}

func (s *ReportStore) Update(ctx context.Context, report models.ScheduledReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[report.ID]; !exists {
		return fmt.Errorf("report %s does not exist", report.ID)
	}
	s.reports[report.ID] = report
	return nil
}

func (s *ReportStore) GetByID(ctx context.Context, id string) (*models.ScheduledReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, exists := s.reports[id]
	if !exists {
		return nil, nil
	}
	return &report, nil
}

func (s *ReportStore) GetByOriginatingTransaction(ctx context.Context, transactionID string, kind models.ReportKind) (*models.ScheduledReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, report := range s.reports {
		if report.OriginatingTransactionID == transactionID && report.Kind == kind {
			found := report
			return &found, nil
		}
	}
	return nil, nil
}

func (s *ReportStore) GetByVIN(ctx context.Context, vin string, kind models.ReportKind) ([]models.ScheduledReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.ScheduledReport
	for _, id := range s.order {
		report := s.reports[id]
		if report.VIN == vin && report.Kind == kind {
			result = append(result, report)
		}
	}
	return result, nil
}

func (s *ReportStore) GetDue(ctx context.Context, now time.Time) ([]models.ScheduledReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []models.ScheduledReport
	for _, id := range s.order {
		report := s.reports[id]
		if report.Status == models.ReportScheduled && !report.ScheduleAt.After(now) {
			due = append(due, report)
		}
	}
	return due, nil
}

// Claim increments the attempt count iff it still matches expectedAttempts
// and the report has not already been sent. The check and the increment
// happen under one lock, making the claim atomic.
func (s *ReportStore) Claim(ctx context.Context, id string, expectedAttempts int, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, exists := s.reports[id]
	if !exists {
		return false, fmt.Errorf("report %s does not exist", id)
	}
	if report.Status == models.ReportSent || report.AttemptCount != expectedAttempts {
		return false, nil
	}
	report.AttemptCount++
	report.LastAttemptAt = &at
	s.reports[id] = report
	return true, nil
}

func (s *ReportStore) ListByStatus(ctx context.Context, status models.ReportStatus) ([]models.ScheduledReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.ScheduledReport
	for _, id := range s.order {
		if report := s.reports[id]; report.Status == status {
			result = append(result, report)
		}
	}
	return result, nil
}

var _ interfaces.ReportStore = (*ReportStore)(nil)
