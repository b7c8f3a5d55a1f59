package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	interfaces "github.com/salvageops/salvage-cash-ledger/internal/interfaces"
	"github.com/salvageops/salvage-cash-ledger/internal/models"
	"github.com/salvageops/salvage-cash-ledger/internal/storage/memory"
)

const (
	vinOne = "1HGCM82633A004352"
	vinTwo = "5YJSA1DN5CFP01657"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeGateway answers submissions from a per-VIN table, falling back to a
// default, and records every call.
type fakeGateway struct {
	mu       sync.Mutex
	result   interfaces.SubmitResult
	err      error
	byVIN    map[string]fakeAnswer
	payloads []models.ReportPayload
	onSubmit func() // runs at the start of every Submit
}

type fakeAnswer struct {
	result interfaces.SubmitResult
	err    error
}

func (g *fakeGateway) Submit(ctx context.Context, kind models.ReportKind, payload models.ReportPayload) (interfaces.SubmitResult, error) {
	if g.onSubmit != nil {
		g.onSubmit()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payloads = append(g.payloads, payload)
	if answer, ok := g.byVIN[payload.VIN]; ok {
		return answer.result, answer.err
	}
	return g.result, g.err
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.payloads)
}

func (g *fakeGateway) set(result interfaces.SubmitResult, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.result, g.err = result, err
}

type fixture struct {
	scheduler *Scheduler
	reports   *memory.ReportStore
	vehicles  *memory.VehicleStore
	gateway   *fakeGateway
	clock     *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		reports:  memory.NewReportStore(),
		vehicles: memory.NewVehicleStore(),
		gateway:  &fakeGateway{result: interfaces.SubmitResult{Success: true, ReportID: "GW-1"}},
		clock:    &fakeClock{t: time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)},
	}
	f.scheduler = NewScheduler(f.reports, f.vehicles, f.gateway, nil, zerolog.Nop())
	f.scheduler.now = f.clock.now
	return f
}

func (f *fixture) seedVehicle(t *testing.T, id, vin string) {
	t.Helper()
	f.vehicles.Put(models.VehicleTransaction{
		ID:               id,
		VIN:              vin,
		ObtainDate:       "2024-01-01",
		CounterpartyName: "Jane Doe",
	})
}

func (f *fixture) schedulePurchase(t *testing.T, txnID, vin string) models.ScheduledReport {
	t.Helper()
	f.seedVehicle(t, txnID, vin)
	report, err := f.scheduler.SchedulePurchaseReport(context.Background(), txnID, vin, "2024-01-01", "Jane Doe", 88123)
	if err != nil {
		t.Fatalf("SchedulePurchaseReport: %v", err)
	}
	return report
}

func TestSchedulePurchaseReport(t *testing.T) {
	f := newFixture(t)
	start := f.clock.now()

	report := f.schedulePurchase(t, "TXN-1", vinOne)

	if want := start.Add(PurchaseReportDelay); !report.ScheduleAt.Equal(want) {
		t.Errorf("ScheduleAt = %v, want %v", report.ScheduleAt, want)
	}
	if report.Status != models.ReportScheduled {
		t.Errorf("Status = %s, want scheduled", report.Status)
	}
	if report.AttemptCount != 0 {
		t.Errorf("AttemptCount = %d, want 0", report.AttemptCount)
	}
	if f.gateway.calls() != 0 {
		t.Errorf("gateway calls = %d, want 0 before due time", f.gateway.calls())
	}
}

func TestSchedulePurchaseIdempotent(t *testing.T) {
	f := newFixture(t)

	first := f.schedulePurchase(t, "TXN-1", vinOne)
	second, err := f.scheduler.SchedulePurchaseReport(context.Background(), "TXN-1", vinOne, "2024-01-01", "Jane Doe", 88123)
	if err != nil {
		t.Fatalf("second SchedulePurchaseReport: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second call created report %s, want existing %s", second.ID, first.ID)
	}

	all, _ := f.reports.ListByStatus(context.Background(), models.ReportScheduled)
	if len(all) != 1 {
		t.Errorf("scheduled reports = %d, want 1", len(all))
	}
}

func TestSchedulePurchaseRejectsBadPayload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name             string
		txnID, vin, date string
		counterparty     string
	}{
		{"short vin", "TXN-1", "1HGCM82633A00435", "2024-01-01", "Jane Doe"},
		{"vin with I", "TXN-1", "IHGCM82633A004352", "2024-01-01", "Jane Doe"},
		{"missing transaction", "", vinOne, "2024-01-01", "Jane Doe"},
		{"missing date", "TXN-1", vinOne, "", "Jane Doe"},
		{"missing counterparty", "TXN-1", vinOne, "2024-01-01", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.scheduler.SchedulePurchaseReport(ctx, tc.txnID, tc.vin, tc.date, tc.counterparty, 0)
			if !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("err = %v, want ErrInvalidPayload", err)
			}
		})
	}

	all, _ := f.reports.ListByStatus(ctx, models.ReportScheduled)
	if len(all) != 0 {
		t.Errorf("rejected payloads created %d reports", len(all))
	}
}

func TestSchedulePurchaseRejectsDuplicateVIN(t *testing.T) {
	f := newFixture(t)

	f.schedulePurchase(t, "TXN-1", vinOne)

	_, err := f.scheduler.SchedulePurchaseReport(context.Background(), "TXN-2", vinOne, "2024-01-02", "John Roe", 0)
	if !errors.Is(err, ErrDuplicateVIN) {
		t.Errorf("err = %v, want ErrDuplicateVIN", err)
	}
}

func TestReportSaleImmediatelySuccess(t *testing.T) {
	f := newFixture(t)

	report, err := f.scheduler.ReportSaleImmediately(context.Background(), "TXN-1", vinOne, "2024-01-01", "Scrap Co", "Jane Doe")
	if err != nil {
		t.Fatalf("ReportSaleImmediately: %v", err)
	}
	if report.Status != models.ReportSent {
		t.Errorf("Status = %s, want sent", report.Status)
	}
	if report.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, want 1", report.AttemptCount)
	}
	if report.GatewayReportID != "GW-1" {
		t.Errorf("GatewayReportID = %q, want GW-1", report.GatewayReportID)
	}
	if !report.ScheduleAt.Equal(f.clock.now()) {
		t.Errorf("ScheduleAt = %v, want now", report.ScheduleAt)
	}
}

// A gateway outage must not fail the sale itself; the report lands in Failed
// for retry.
func TestReportSaleImmediatelyGatewayDown(t *testing.T) {
	f := newFixture(t)
	f.gateway.set(interfaces.SubmitResult{}, errors.New("connection refused"))

	report, err := f.scheduler.ReportSaleImmediately(context.Background(), "TXN-1", vinOne, "2024-01-01", "Scrap Co", "Jane Doe")
	if err != nil {
		t.Fatalf("ReportSaleImmediately returned error: %v", err)
	}
	if report.Status != models.ReportFailed {
		t.Errorf("Status = %s, want failed", report.Status)
	}
	if report.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, want 1", report.AttemptCount)
	}
	if !strings.Contains(report.LastError, "gateway unavailable") {
		t.Errorf("LastError = %q, want gateway unavailable", report.LastError)
	}
}

// The sale report is on record before the gateway is contacted, so a crash
// mid-submission leaves a due Scheduled report for the next scan instead of
// no trace of a possibly-delivered submission.
func TestReportSaleSavedBeforeSubmit(t *testing.T) {
	f := newFixture(t)

	var atSubmit *models.ScheduledReport
	f.gateway.onSubmit = func() {
		atSubmit, _ = f.reports.GetByOriginatingTransaction(context.Background(), "TXN-1", models.ReportSale)
	}

	if _, err := f.scheduler.ReportSaleImmediately(context.Background(), "TXN-1", vinOne, "2024-01-01", "Scrap Co", "Jane Doe"); err != nil {
		t.Fatalf("ReportSaleImmediately: %v", err)
	}
	if atSubmit == nil {
		t.Fatal("report not persisted before gateway submission")
	}
	if atSubmit.Status != models.ReportScheduled {
		t.Errorf("Status at submit time = %s, want scheduled", atSubmit.Status)
	}
	if !atSubmit.ScheduleAt.Equal(f.clock.now()) {
		t.Errorf("ScheduleAt = %v, want due now", atSubmit.ScheduleAt)
	}
}

func TestReportSaleIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.scheduler.ReportSaleImmediately(ctx, "TXN-1", vinOne, "2024-01-01", "Scrap Co", "Jane Doe")
	if err != nil {
		t.Fatalf("ReportSaleImmediately: %v", err)
	}
	second, err := f.scheduler.ReportSaleImmediately(ctx, "TXN-1", vinOne, "2024-01-01", "Scrap Co", "Jane Doe")
	if err != nil {
		t.Fatalf("second ReportSaleImmediately: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second call created report %s, want existing %s", second.ID, first.ID)
	}
	if f.gateway.calls() != 1 {
		t.Errorf("gateway calls = %d, want 1", f.gateway.calls())
	}
}

func TestProcessDueNothingBeforeDueTime(t *testing.T) {
	f := newFixture(t)
	f.schedulePurchase(t, "TXN-1", vinOne)

	f.clock.advance(1 * time.Hour)

	result, err := f.scheduler.ProcessDueReports(context.Background())
	if err != nil {
		t.Fatalf("ProcessDueReports: %v", err)
	}
	if result.Due != 0 {
		t.Errorf("Due = %d, want 0", result.Due)
	}
	if f.gateway.calls() != 0 {
		t.Errorf("gateway calls = %d, want 0", f.gateway.calls())
	}
}

func TestProcessDueRecordsFailure(t *testing.T) {
	f := newFixture(t)
	report := f.schedulePurchase(t, "TXN-1", vinOne)
	f.gateway.set(interfaces.SubmitResult{Success: false, Message: "missing odometer"}, nil)

	f.clock.advance(41 * time.Hour)

	result, err := f.scheduler.ProcessDueReports(context.Background())
	if err != nil {
		t.Fatalf("ProcessDueReports: %v", err)
	}
	if result.Due != 1 || result.Failed != 1 {
		t.Errorf("result = %+v, want Due=1 Failed=1", result)
	}

	got, _ := f.scheduler.Report(context.Background(), report.ID)
	if got.Status != models.ReportFailed {
		t.Errorf("Status = %s, want failed", got.Status)
	}
	if got.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, want 1", got.AttemptCount)
	}
	if !strings.Contains(got.LastError, "missing odometer") {
		t.Errorf("LastError = %q, want rejection reason", got.LastError)
	}
	if got.LastAttemptAt == nil {
		t.Error("LastAttemptAt = nil, want set")
	}

	failed, _ := f.scheduler.FailedReports(context.Background())
	if len(failed) != 1 {
		t.Errorf("failed reports = %d, want 1 (still queryable)", len(failed))
	}
}

func TestProcessDuePerItemIsolation(t *testing.T) {
	f := newFixture(t)
	f.schedulePurchase(t, "TXN-1", vinOne)
	f.schedulePurchase(t, "TXN-2", vinTwo)
	f.gateway.byVIN = map[string]fakeAnswer{
		vinOne: {err: errors.New("timeout")},
	}

	f.clock.advance(41 * time.Hour)

	result, err := f.scheduler.ProcessDueReports(context.Background())
	if err != nil {
		t.Fatalf("ProcessDueReports: %v", err)
	}
	if result.Sent != 1 || result.Failed != 1 {
		t.Errorf("result = %+v, want Sent=1 Failed=1", result)
	}
}

func TestProcessDueSkipsAlreadyClaimed(t *testing.T) {
	f := newFixture(t)
	report := f.schedulePurchase(t, "TXN-1", vinOne)

	f.clock.advance(41 * time.Hour)

	// An overlapping scan got to the report first.
	claimed, err := f.reports.Claim(context.Background(), report.ID, 0, f.clock.now())
	if err != nil || !claimed {
		t.Fatalf("Claim = (%v, %v), want (true, nil)", claimed, err)
	}

	result, err := f.scheduler.ProcessDueReports(context.Background())
	if err != nil {
		t.Fatalf("ProcessDueReports: %v", err)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if f.gateway.calls() != 0 {
		t.Errorf("gateway calls = %d, want 0 for claimed report", f.gateway.calls())
	}
}

func TestProcessDueFlagsMissingVehicle(t *testing.T) {
	f := newFixture(t)
	report := f.schedulePurchase(t, "TXN-1", vinOne)
	f.vehicles.Remove("TXN-1")

	f.clock.advance(41 * time.Hour)

	if _, err := f.scheduler.ProcessDueReports(context.Background()); err != nil {
		t.Fatalf("ProcessDueReports: %v", err)
	}

	got, _ := f.scheduler.Report(context.Background(), report.ID)
	if got.Status != models.ReportFailed {
		t.Errorf("Status = %s, want failed", got.Status)
	}
	if !strings.Contains(got.LastError, "originating transaction not found") {
		t.Errorf("LastError = %q, want originating transaction not found", got.LastError)
	}
	if f.gateway.calls() != 0 {
		t.Errorf("gateway calls = %d, want 0 for orphaned report", f.gateway.calls())
	}
}

func TestRetryReport(t *testing.T) {
	f := newFixture(t)
	report := f.schedulePurchase(t, "TXN-1", vinOne)
	f.gateway.set(interfaces.SubmitResult{}, errors.New("connection refused"))

	f.clock.advance(41 * time.Hour)
	if _, err := f.scheduler.ProcessDueReports(context.Background()); err != nil {
		t.Fatalf("ProcessDueReports: %v", err)
	}

	// Gateway comes back; retry succeeds.
	f.gateway.set(interfaces.SubmitResult{Success: true, ReportID: "GW-9"}, nil)
	retried, err := f.scheduler.RetryReport(context.Background(), report.ID)
	if err != nil {
		t.Fatalf("RetryReport: %v", err)
	}
	if retried.Status != models.ReportSent {
		t.Errorf("Status = %s, want sent", retried.Status)
	}
	if retried.AttemptCount != 2 {
		t.Errorf("AttemptCount = %d, want 2", retried.AttemptCount)
	}
	if retried.LastError != "" {
		t.Errorf("LastError = %q, want cleared", retried.LastError)
	}

	// Sent is terminal.
	if _, err := f.scheduler.RetryReport(context.Background(), report.ID); !errors.Is(err, ErrAlreadySent) {
		t.Errorf("retry of sent report: err = %v, want ErrAlreadySent", err)
	}
}

func TestRetryReportStateChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.scheduler.RetryReport(ctx, "nope"); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("unknown report: err = %v, want ErrReportNotFound", err)
	}

	report := f.schedulePurchase(t, "TXN-1", vinOne)
	if _, err := f.scheduler.RetryReport(ctx, report.ID); !errors.Is(err, ErrNotFailed) {
		t.Errorf("scheduled report: err = %v, want ErrNotFailed", err)
	}
}
