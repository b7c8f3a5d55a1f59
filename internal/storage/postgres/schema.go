package postgres

import "database/sql"

const schema = `
CREATE TABLE IF NOT EXISTS cash_accounts (
	operator_id    TEXT PRIMARY KEY,
	operator_name  TEXT NOT NULL DEFAULT '',
	yard_id        TEXT NOT NULL DEFAULT '',
	current_cash   NUMERIC NOT NULL DEFAULT 0,
	last_updated   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS cash_transactions (
	id                      TEXT PRIMARY KEY,
	operator_id             TEXT NOT NULL,
	yard_id                 TEXT NOT NULL DEFAULT '',
	type                    TEXT NOT NULL,
	amount                  NUMERIC NOT NULL,
	balance                 NUMERIC NOT NULL,
	related_transaction_id  TEXT NOT NULL DEFAULT '',
	related_vin             TEXT NOT NULL DEFAULT '',
	description             TEXT NOT NULL DEFAULT '',
	timestamp               TIMESTAMPTZ NOT NULL,
	recorded_by             TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_cash_transactions_operator
	ON cash_transactions (operator_id, timestamp DESC);

CREATE TABLE IF NOT EXISTS scheduled_reports (
	id                       TEXT PRIMARY KEY,
	vin                      TEXT NOT NULL,
	report_type              TEXT NOT NULL,
	schedule_date            TIMESTAMPTZ NOT NULL,
	obtain_date              TEXT NOT NULL DEFAULT '',
	counterparty_name        TEXT NOT NULL DEFAULT '',
	buyer_name               TEXT NOT NULL DEFAULT '',
	odometer                 INTEGER NOT NULL DEFAULT 0,
	original_transaction_id  TEXT NOT NULL,
	status                   TEXT NOT NULL,
	attempts                 INTEGER NOT NULL DEFAULT 0,
	last_attempt             TIMESTAMPTZ,
	error_message            TEXT NOT NULL DEFAULT '',
	gateway_report_id        TEXT NOT NULL DEFAULT '',
	UNIQUE (original_transaction_id, report_type)
);

CREATE INDEX IF NOT EXISTS idx_scheduled_reports_due
	ON scheduled_reports (status, schedule_date);
`

// EnsureSchema creates the tables if they do not exist yet.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
