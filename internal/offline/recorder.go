package offline

import (
	"context"

	interfaces "github.com/salvageops/salvage-cash-ledger/internal/interfaces"
	"github.com/salvageops/salvage-cash-ledger/internal/ledger"
	"github.com/salvageops/salvage-cash-ledger/internal/models"
)

// Recorder is the write entry point that the rest of the application uses.
// While connected it writes straight through to the sink; while disconnected
// it buffers into the queue so the business action still completes locally.
type Recorder struct {
	monitor *Monitor
	queue   *Queue
	sink    interfaces.WriteSink
}

func NewRecorder(monitor *Monitor, queue *Queue, sink interfaces.WriteSink) *Recorder {
	return &Recorder{monitor: monitor, queue: queue, sink: sink}
}

// Outcome tells the caller whether the movement was committed or buffered.
type Outcome struct {
	Transaction *models.CashTransaction
	Entry       *models.QueueEntry
	Queued      bool
}

// Record applies the movement immediately when online, otherwise queues it
// for replay. Validation happens up front on both paths: a movement the
// ledger would reject is refused before it is buffered, so a queued entry
// can never wedge the replay.
func (r *Recorder) Record(ctx context.Context, m models.CashMovement) (Outcome, error) {
	if err := ledger.ValidateMovement(m); err != nil {
		return Outcome{}, err
	}

	if r.monitor.Online() {
		txn, err := r.sink.Apply(ctx, m)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Transaction: &txn}, nil
	}

	entry, err := r.queue.Enqueue(ctx, m)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Entry: &entry, Queued: true}, nil
}
