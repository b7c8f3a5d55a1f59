package offline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Probe reports whether the permanent store is currently reachable.
type Probe func(ctx context.Context) bool

// Monitor tracks connectivity and triggers an automatic flush on every
// down-to-up transition. Connectivity can also be set explicitly, for callers
// that learn about it from elsewhere (a failed write, an OS signal).
type Monitor struct {
	probe    Probe
	queue    *Queue
	interval time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	online bool
}

func NewMonitor(probe Probe, queue *Queue, interval time.Duration, log zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Monitor{
		probe:    probe,
		queue:    queue,
		interval: interval,
		log:      log.With().Str("component", "connectivity").Logger(),
		online:   true, // assume connected until a probe says otherwise
	}
}

// Online reports the last known connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records a connectivity change. A down-to-up edge flushes the
// queue.
func (m *Monitor) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	wasOnline := m.online
	m.online = online
	m.mu.Unlock()

	if online == wasOnline {
		return
	}
	if online {
		m.log.Info().Msg("connectivity restored")
		if _, err := m.queue.Flush(ctx); err != nil {
			m.log.Warn().Err(err).Msg("automatic flush failed")
		}
	} else {
		m.log.Warn().Msg("connectivity lost")
	}
}

// Run probes on a fixed interval until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SetOnline(ctx, m.probe(ctx))
		}
	}
}
