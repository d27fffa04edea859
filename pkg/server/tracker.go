package server

import (
	"sync"
	"time"

	"github.com/DimasIb47/google-trend-notification/internal/scheduler"
)

// Tracker holds the transient per-region poll state the health endpoints
// expose. It is the scheduler's status sink.
type Tracker struct {
	mu    sync.RWMutex
	start time.Time
	polls map[string]scheduler.PollOutcome
}

// NewTracker creates an empty tracker; uptime counts from now.
func NewTracker() *Tracker {
	return &Tracker{
		start: time.Now(),
		polls: make(map[string]scheduler.PollOutcome),
	}
}

// RecordPoll stores the latest outcome for the region, replacing the
// previous one. A success therefore clears an earlier error.
func (t *Tracker) RecordPoll(outcome scheduler.PollOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.polls[outcome.Region] = outcome
}

// Snapshot returns a copy of the most recent outcome per region.
func (t *Tracker) Snapshot() map[string]scheduler.PollOutcome {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]scheduler.PollOutcome, len(t.polls))
	for region, outcome := range t.polls {
		out[region] = outcome
	}
	return out
}

// ErrorCount reports how many regions' latest polls failed.
func (t *Tracker) ErrorCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, outcome := range t.polls {
		if !outcome.Success {
			n++
		}
	}
	return n
}

// Uptime reports how long the tracker has existed.
func (t *Tracker) Uptime() time.Duration {
	return time.Since(t.start)
}
