package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default janitor tuning. Finished sessions stay retrievable for the
// retention window so clients can fetch results after the fact.
const (
	defaultSweepInterval = 5 * time.Minute
	defaultRetention     = 2 * time.Hour
)

// JanitorConfig configures a [Janitor].
type JanitorConfig struct {
	// Store is the session store to sweep. Required.
	Store *Store

	// Interval is how often to sweep. Defaults to 5 minutes if zero.
	Interval time.Duration

	// Retention is how long finished sessions are kept after their last
	// update. Defaults to 2 hours if zero.
	Retention time.Duration
}

// Janitor periodically evicts finished sessions from a [Store] so the
// in-memory store stays bounded over long uptimes. Sessions that are still
// pending or processing are never evicted.
type Janitor struct {
	store     *Store
	interval  time.Duration
	retention time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

// NewJanitor creates a janitor for the given store.
func NewJanitor(cfg JanitorConfig) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSweepInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	return &Janitor{
		store:     cfg.Store,
		interval:  cfg.Interval,
		retention: cfg.Retention,
		done:      make(chan struct{}),
	}
}

// Start launches the background sweep loop. The loop exits when ctx is
// cancelled or [Janitor.Stop] is called.
func (j *Janitor) Start(ctx context.Context) {
	go j.loop(ctx)
}

// Stop halts the sweep loop. Safe to call multiple times.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
	})
}

// SweepNow evicts finished sessions whose last update is older than the
// retention window and returns the number evicted.
func (j *Janitor) SweepNow() int {
	cutoff := time.Now().UTC().Add(-j.retention)

	j.store.mu.Lock()
	defer j.store.mu.Unlock()

	evicted := 0
	for id, sess := range j.store.sessions {
		if sess.State.Terminal() && sess.UpdatedAt.Before(cutoff) {
			delete(j.store.sessions, id)
			evicted++
		}
	}
	return evicted
}

func (j *Janitor) loop(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.done:
			return
		case <-ticker.C:
			if n := j.SweepNow(); n > 0 {
				slog.Debug("session janitor evicted finished sessions", "count", n)
			}
		}
	}
}
