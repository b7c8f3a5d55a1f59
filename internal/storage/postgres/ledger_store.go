package postgres

import (
	"context"
	"database/sql"

	interfaces "github.com/salvageops/salvage-cash-ledger/internal/interfaces"
	"github.com/salvageops/salvage-cash-ledger/internal/models"
)

// LedgerStore is the Postgres implementation of interfaces.LedgerStore.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) GetAccount(ctx context.Context, operatorID string) (*models.CashAccount, error) {
	const query = `SELECT operator_id, operator_name, yard_id, current_cash, last_updated
	FROM cash_accounts WHERE operator_id = $1`

	var account models.CashAccount
	err := s.db.QueryRowContext(ctx, query, operatorID).Scan(
		&account.OperatorID,
		&account.OperatorName,
		&account.YardID,
		&account.CurrentBalance,
		&account.LastUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// SaveTransactionWithAccount upserts the account and appends the transaction
// in one database transaction so a partial failure leaves neither behind.
func (s *LedgerStore) SaveTransactionWithAccount(ctx context.Context, account models.CashAccount, txn models.CashTransaction) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	const upsertAccount = `INSERT INTO cash_accounts (operator_id, operator_name, yard_id, current_cash, last_updated)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (operator_id) DO UPDATE
	SET operator_name = EXCLUDED.operator_name,
	    yard_id = EXCLUDED.yard_id,
	    current_cash = EXCLUDED.current_cash,
	    last_updated = EXCLUDED.last_updated`

	_, err = dbTx.ExecContext(ctx, upsertAccount,
		account.OperatorID, account.OperatorName, account.YardID, account.CurrentBalance, account.LastUpdated)
	if err != nil {
		return err
	}

	const insertTxn = `INSERT INTO cash_transactions
	(id, operator_id, yard_id, type, amount, balance, related_transaction_id, related_vin, description, timestamp, recorded_by)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = dbTx.ExecContext(ctx, insertTxn,
		txn.ID, txn.OperatorID, txn.YardID, string(txn.Type), txn.Amount, txn.BalanceAfter,
		txn.RelatedTransactionID, txn.RelatedVIN, txn.Description, txn.Timestamp, txn.RecordedBy)
	if err != nil {
		return err
	}

	return dbTx.Commit()
}

func (s *LedgerStore) GetTransactionsByOperator(ctx context.Context, operatorID string, limit int) ([]models.CashTransaction, error) {
	query := `SELECT id, operator_id, yard_id, type, amount, balance, related_transaction_id, related_vin, description, timestamp, recorded_by
	FROM cash_transactions WHERE operator_id = $1
	ORDER BY timestamp DESC, id DESC`

	args := []any{operatorID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []models.CashTransaction
	for rows.Next() {
		var txn models.CashTransaction
		var txnType string
		err := rows.Scan(
			&txn.ID,
			&txn.OperatorID,
			&txn.YardID,
			&txnType,
			&txn.Amount,
			&txn.BalanceAfter,
			&txn.RelatedTransactionID,
			&txn.RelatedVIN,
			&txn.Description,
			&txn.Timestamp,
			&txn.RecordedBy,
		)
		if err != nil {
			return nil, err
		}
		txn.Type = models.TransactionType(txnType)
		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txns, nil
}

var _ interfaces.LedgerStore = (*LedgerStore)(nil)
