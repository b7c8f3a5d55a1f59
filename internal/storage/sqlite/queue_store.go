package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	interfaces "github.com/salvageops/salvage-cash-ledger/internal/interfaces"
	"github.com/salvageops/salvage-cash-ledger/internal/models"
)

// The offline queue spills to a local SQLite file so buffered writes survive
// a process restart while the yard is still disconnected. Amounts are stored
// as decimal strings; rowid preserves enqueue order.
const queueSchema = `
CREATE TABLE IF NOT EXISTS offline_queue (
	id                      TEXT PRIMARY KEY,
	operator_id             TEXT NOT NULL,
	operator_name           TEXT NOT NULL DEFAULT '',
	yard_id                 TEXT NOT NULL DEFAULT '',
	amount                  TEXT NOT NULL,
	type                    TEXT NOT NULL,
	description             TEXT NOT NULL DEFAULT '',
	related_transaction_id  TEXT NOT NULL DEFAULT '',
	related_vin             TEXT NOT NULL DEFAULT '',
	recorded_by             TEXT NOT NULL DEFAULT '',
	queued_at               TEXT NOT NULL
);
`

// Open opens (creating if needed) the queue database at path.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}
	if _, err := db.Exec(queueSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create queue schema: %w", err)
	}
	return db, nil
}

// QueueStore is the SQLite implementation of interfaces.QueueStore.
type QueueStore struct {
	db *sql.DB
}

func NewQueueStore(db *sql.DB) *QueueStore {
	return &QueueStore{db: db}
}

func (s *QueueStore) Append(ctx context.Context, entry models.QueueEntry) error {
	const query = `INSERT INTO offline_queue
	(id, operator_id, operator_name, yard_id, amount, type, description, related_transaction_id, related_vin, recorded_by, queued_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	m := entry.Movement
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, m.OperatorID, m.OperatorName, m.YardID, m.Amount.String(), string(m.Type),
		m.Description, m.RelatedTransactionID, m.RelatedVIN, m.RecordedBy,
		entry.QueuedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *QueueStore) List(ctx context.Context) ([]models.QueueEntry, error) {
	const query = `SELECT id, operator_id, operator_name, yard_id, amount, type, description,
	related_transaction_id, related_vin, recorded_by, queued_at
	FROM offline_queue ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		var (
			entry    models.QueueEntry
			amount   string
			txnType  string
			queuedAt string
		)
		err := rows.Scan(
			&entry.ID,
			&entry.Movement.OperatorID,
			&entry.Movement.OperatorName,
			&entry.Movement.YardID,
			&amount,
			&txnType,
			&entry.Movement.Description,
			&entry.Movement.RelatedTransactionID,
			&entry.Movement.RelatedVIN,
			&entry.Movement.RecordedBy,
			&queuedAt,
		)
		if err != nil {
			return nil, err
		}
		entry.Movement.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse queued amount %q: %w", amount, err)
		}
		entry.Movement.Type = models.TransactionType(txnType)
		entry.QueuedAt, err = time.Parse(time.RFC3339Nano, queuedAt)
		if err != nil {
			return nil, fmt.Errorf("parse queued_at %q: %w", queuedAt, err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *QueueStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM offline_queue WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("queue entry %s does not exist", id)
	}
	return nil
}

func (s *QueueStore) Len(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offline_queue`).Scan(&count)
	return count, err
}

var _ interfaces.QueueStore = (*QueueStore)(nil)
