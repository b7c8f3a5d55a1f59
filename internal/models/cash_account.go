package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashAccount tracks the running cash balance for one operator.
// CurrentBalance must equal the sum of Amount over the operator's full
// transaction history at all times; it is only ever mutated through the
// ledger's single write path.
type CashAccount struct {
	OperatorID     string          `json:"operator_id"`
	OperatorName   string          `json:"operator_name"`
	YardID         string          `json:"yard_id"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	LastUpdated    time.Time       `json:"last_updated"`
}
