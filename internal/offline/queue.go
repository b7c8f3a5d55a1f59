package offline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	interfaces "github.com/salvageops/salvage-cash-ledger/internal/interfaces"
	"github.com/salvageops/salvage-cash-ledger/internal/models"
)

// Queue buffers ledger-affecting writes made while the permanent store is
// unreachable and replays them in enqueue order once it is back. An entry is
// deleted only after its replay succeeds, so nothing is ever silently
// dropped; a flush that fails midway leaves the remainder queued.
type Queue struct {
	store interfaces.QueueStore
	sink  interfaces.WriteSink
	log   zerolog.Logger

	flushMu sync.Mutex // one flush at a time
}

func NewQueue(store interfaces.QueueStore, sink interfaces.WriteSink, log zerolog.Logger) *Queue {
	return &Queue{
		store: store,
		sink:  sink,
		log:   log.With().Str("component", "offline_queue").Logger(),
	}
}

// Enqueue buffers one cash movement for later replay.
func (q *Queue) Enqueue(ctx context.Context, m models.CashMovement) (models.QueueEntry, error) {
	entry := models.QueueEntry{
		ID:       uuid.New().String(),
		Movement: m,
		QueuedAt: time.Now().UTC(),
	}
	if err := q.store.Append(ctx, entry); err != nil {
		return models.QueueEntry{}, fmt.Errorf("append queue entry: %w", err)
	}
	q.log.Info().Str("entry_id", entry.ID).Str("operator_id", m.OperatorID).Msg("cash movement queued offline")
	return entry, nil
}

// FlushResult reports how far a flush got.
type FlushResult struct {
	Applied   int
	Remaining int
}

// Flush replays all queued entries through the write sink in enqueue order.
// It stops at the first failure and returns it; already-applied entries are
// removed, the rest stay queued for the next attempt.
func (q *Queue) Flush(ctx context.Context) (FlushResult, error) {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	entries, err := q.store.List(ctx)
	if err != nil {
		return FlushResult{}, fmt.Errorf("list queue: %w", err)
	}

	result := FlushResult{Remaining: len(entries)}
	for _, entry := range entries {
		if _, err := q.sink.Apply(ctx, entry.Movement); err != nil {
			q.log.Warn().Err(err).Str("entry_id", entry.ID).Int("remaining", result.Remaining).Msg("flush stopped")
			return result, fmt.Errorf("replay entry %s: %w", entry.ID, err)
		}
		if err := q.store.Delete(ctx, entry.ID); err != nil {
			// The write landed; failing to delete means this entry may replay
			// again next flush. Surface it rather than continue past it.
			return result, fmt.Errorf("remove replayed entry %s: %w", entry.ID, err)
		}
		result.Applied++
		result.Remaining--
	}

	if result.Applied > 0 {
		q.log.Info().Int("applied", result.Applied).Msg("offline queue flushed")
	}
	return result, nil
}

// Depth returns the number of queued entries.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	return q.store.Len(ctx)
}
