package models

import "time"

// QueueEntry is a cash movement buffered while the permanent store is
// unreachable. Entries exist only between enqueue and successful replay.
type QueueEntry struct {
	ID       string       `json:"id"`
	Movement CashMovement `json:"movement"`
	QueuedAt time.Time    `json:"queued_at"`
}
