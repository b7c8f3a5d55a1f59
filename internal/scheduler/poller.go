package scheduler

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPollInterval is the reference scan cadence. Reports are due hours
// out, so a report due at T being submitted anywhere in [T, T+interval] is
// intended behavior, not drift to fix.
const DefaultPollInterval = 30 * time.Minute

// Poller drives the scheduler: one scan on start, then one per interval with
// a little jitter so restarts across yards do not line their scans up.
type Poller struct {
	scheduler *Scheduler
	interval  time.Duration
	jitter    time.Duration
	log       zerolog.Logger
}

func NewPoller(s *Scheduler, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		scheduler: s,
		interval:  interval,
		jitter:    interval / 10,
		log:       log.With().Str("component", "poller").Logger(),
	}
}

// Run blocks until ctx is canceled.
func (p *Poller) Run(ctx context.Context) {
	p.scan(ctx)

	for {
		timer := time.NewTimer(p.nextWait())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			p.scan(ctx)
		}
	}
}

func (p *Poller) nextWait() time.Duration {
	if p.jitter <= 0 {
		return p.interval
	}
	return p.interval + time.Duration(rand.Int63n(int64(p.jitter)))
}

func (p *Poller) scan(ctx context.Context) {
	result, err := p.scheduler.ProcessDueReports(ctx)
	if err != nil {
		// The next cycle retries; a missed scan only delays submission.
		p.log.Error().Err(err).Msg("due report scan failed")
		return
	}
	if result.Due > 0 {
		p.log.Info().
			Int("due", result.Due).
			Int("sent", result.Sent).
			Int("failed", result.Failed).
			Int("skipped", result.Skipped).
			Msg("processed due reports")
	}
}
