package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	interfaces "github.com/salvageops/salvage-cash-ledger/internal/interfaces"
	"github.com/salvageops/salvage-cash-ledger/internal/models"
	"github.com/salvageops/salvage-cash-ledger/internal/models/events"
)

// Validation failures, returned before any state is touched.
var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrMissingOperator = errors.New("operator id is required")
)

// TopicCashMovements is the event topic for committed ledger transactions.
const TopicCashMovements = "cash_movement_recorded"

// Ledger maintains per-operator cash balances with a full audit trail.
// Every write goes through a single path that updates the account and appends
// a transaction as one atomic unit, serialized per operator so interleaved
// writes cannot lose an update.
type Ledger struct {
	store     interfaces.LedgerStore
	publisher interfaces.EventPublisher // optional; nil disables events
	log       zerolog.Logger

	muMap map[string]*sync.Mutex // one lock per operator
	mapMu sync.Mutex             // protects muMap itself
}

func NewLedger(store interfaces.LedgerStore, publisher interfaces.EventPublisher, log zerolog.Logger) *Ledger {
	return &Ledger{
		store:     store,
		publisher: publisher,
		log:       log.With().Str("component", "ledger").Logger(),
		muMap:     make(map[string]*sync.Mutex),
	}
}

// operatorLock returns the mutex for one operator, creating it on first use.
// Locks are never released: the map holds one entry per operator ever seen,
// retained for the process lifetime.
func (l *Ledger) operatorLock(operatorID string) *sync.Mutex {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()

	if _, exists := l.muMap[operatorID]; !exists {
		l.muMap[operatorID] = &sync.Mutex{}
	}
	return l.muMap[operatorID]
}

// Apply records a cash movement against the operator's account. The account
// is created on first use. A resulting negative balance is a valid, surfaced
// state, not an error; deficits happen when an operator buys before floating.
func (l *Ledger) Apply(ctx context.Context, m models.CashMovement) (models.CashTransaction, error) {
	if err := ValidateMovement(m); err != nil {
		return models.CashTransaction{}, err
	}

	mu := l.operatorLock(m.OperatorID)
	mu.Lock()
	defer mu.Unlock()

	return l.applyLocked(ctx, m)
}

// applyLocked is the single write path. Callers must hold the operator lock.
func (l *Ledger) applyLocked(ctx context.Context, m models.CashMovement) (models.CashTransaction, error) {
	account, err := l.store.GetAccount(ctx, m.OperatorID)
	if err != nil {
		return models.CashTransaction{}, fmt.Errorf("load account: %w", err)
	}
	if account == nil {
		account = &models.CashAccount{
			OperatorID:     m.OperatorID,
			OperatorName:   m.OperatorName,
			YardID:         m.YardID,
			CurrentBalance: decimal.Zero,
		}
	}

	now := time.Now().UTC()
	newBalance := account.CurrentBalance.Add(m.Amount)

	txn := models.CashTransaction{
		ID:                   uuid.New().String(),
		OperatorID:           m.OperatorID,
		YardID:               m.YardID,
		Type:                 m.Type,
		Amount:               m.Amount,
		BalanceAfter:         newBalance,
		RelatedTransactionID: m.RelatedTransactionID,
		RelatedVIN:           m.RelatedVIN,
		Description:          m.Description,
		Timestamp:            now,
		RecordedBy:           m.RecordedBy,
	}

	account.CurrentBalance = newBalance
	account.LastUpdated = now
	if m.OperatorName != "" {
		account.OperatorName = m.OperatorName
	}

	if err := l.store.SaveTransactionWithAccount(ctx, *account, txn); err != nil {
		return models.CashTransaction{}, fmt.Errorf("save transaction: %w", err)
	}

	l.publishRecorded(txn)
	return txn, nil
}

func (l *Ledger) publishRecorded(txn models.CashTransaction) {
	if l.publisher == nil {
		return
	}
	event := events.CashMovementRecorded{
		TransactionID: txn.ID,
		OperatorID:    txn.OperatorID,
		YardID:        txn.YardID,
		Type:          string(txn.Type),
		Amount:        txn.Amount,
		BalanceAfter:  txn.BalanceAfter,
		OccurredAt:    txn.Timestamp,
	}
	// Events are best-effort; the ledger write already committed.
	if err := l.publisher.Publish(TopicCashMovements, event); err != nil {
		l.log.Warn().Err(err).Str("transaction_id", txn.ID).Msg("publish cash movement event failed")
	}
}

// Balance returns the operator's current balance, zero for operators that
// have never had a transaction.
func (l *Ledger) Balance(ctx context.Context, operatorID string) (decimal.Decimal, error) {
	account, err := l.store.GetAccount(ctx, operatorID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load account: %w", err)
	}
	if account == nil {
		return decimal.Zero, nil
	}
	return account.CurrentBalance, nil
}

// History returns the operator's transactions newest first. A limit <= 0
// returns the full history.
func (l *Ledger) History(ctx context.Context, operatorID string, limit int) ([]models.CashTransaction, error) {
	return l.store.GetTransactionsByOperator(ctx, operatorID, limit)
}

// SetBalanceRequest is an administrative balance override.
type SetBalanceRequest struct {
	OperatorID   string
	OperatorName string
	YardID       string
	NewBalance   decimal.Decimal
	Reason       string
	SetBy        string
}

// SetBalance overrides an operator's balance by recording the difference as
// an adjustment transaction. Overrides are never silent; the adjustment is a
// normal audit entry. Setting the balance to its current value is rejected
// because it would produce a zero-amount transaction.
func (l *Ledger) SetBalance(ctx context.Context, req SetBalanceRequest) (models.CashTransaction, error) {
	if req.OperatorID == "" {
		return models.CashTransaction{}, ErrMissingOperator
	}

	mu := l.operatorLock(req.OperatorID)
	mu.Lock()
	defer mu.Unlock()

	account, err := l.store.GetAccount(ctx, req.OperatorID)
	if err != nil {
		return models.CashTransaction{}, fmt.Errorf("load account: %w", err)
	}
	current := decimal.Zero
	if account != nil {
		current = account.CurrentBalance
	}

	adjustment := req.NewBalance.Sub(current)
	if adjustment.IsZero() {
		return models.CashTransaction{}, fmt.Errorf("%w: balance already %s", ErrInvalidAmount, current)
	}

	return l.applyLocked(ctx, models.CashMovement{
		OperatorID:   req.OperatorID,
		OperatorName: req.OperatorName,
		YardID:       req.YardID,
		Amount:       adjustment,
		Type:         models.TransactionAdjustment,
		Description:  req.Reason,
		RecordedBy:   req.SetBy,
	})
}

// ReconcileResult compares an account's cached balance against the sum of
// its full transaction history.
type ReconcileResult struct {
	OperatorID       string
	CachedBalance    decimal.Decimal
	ComputedBalance  decimal.Decimal
	TransactionCount int
	Consistent       bool
}

// Reconcile recomputes the operator's balance from the transaction log and
// compares it to the cached account value. A mismatch is logged for manual
// reconciliation, never auto-corrected.
func (l *Ledger) Reconcile(ctx context.Context, operatorID string) (ReconcileResult, error) {
	account, err := l.store.GetAccount(ctx, operatorID)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("load account: %w", err)
	}

	txns, err := l.store.GetTransactionsByOperator(ctx, operatorID, 0)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("load history: %w", err)
	}

	computed := decimal.Zero
	for _, txn := range txns {
		computed = computed.Add(txn.Amount)
	}

	cached := decimal.Zero
	if account != nil {
		cached = account.CurrentBalance
	}

	result := ReconcileResult{
		OperatorID:       operatorID,
		CachedBalance:    cached,
		ComputedBalance:  computed,
		TransactionCount: len(txns),
		Consistent:       cached.Equal(computed),
	}

	if !result.Consistent {
		l.log.Error().
			Str("operator_id", operatorID).
			Str("cached_balance", cached.String()).
			Str("computed_balance", computed.String()).
			Int("transactions", len(txns)).
			Msg("ledger balance mismatch")
	}
	return result, nil
}

// ValidateMovement checks a movement against the ledger's acceptance rules
// without touching any state. Callers that buffer movements for later replay
// use it to reject input up front, so nothing unapplyable is ever stored.
func ValidateMovement(m models.CashMovement) error {
	if m.OperatorID == "" {
		return ErrMissingOperator
	}
	if !m.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, m.Type)
	}
	if m.Amount.IsZero() {
		return fmt.Errorf("%w: amount must be non-zero", ErrInvalidAmount)
	}
	return nil
}

// Compile-time check: the ledger is a valid write sink for the offline queue.
var _ interfaces.WriteSink = (*Ledger)(nil)
