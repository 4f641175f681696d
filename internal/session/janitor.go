package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor periodically deletes sessions that have been idle past their TTL.
type Janitor struct {
	store *Store
	ttl   time.Duration
	cron  *cron.Cron
}

// NewJanitor validates the cron spec and registers the sweep.
func NewJanitor(store *Store, ttl time.Duration, spec string) (*Janitor, error) {
	j := &Janitor{
		store: store,
		ttl:   ttl,
		cron:  cron.New(),
	}
	if _, err := j.cron.AddFunc(spec, j.Sweep); err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", spec, err)
	}
	return j, nil
}

// Start begins the scheduled sweeps.
func (j *Janitor) Start() {
	j.cron.Start()
	slog.Info("session janitor started", "ttl", j.ttl)
}

// Stop halts scheduling; a running sweep finishes on its own.
func (j *Janitor) Stop() {
	j.cron.Stop()
}

// Sweep deletes every session whose last activity is older than the TTL.
func (j *Janitor) Sweep() {
	cutoff := time.Now().Add(-j.ttl)
	removed := 0
	for _, entry := range j.store.List() {
		if entry.UpdatedAt.After(cutoff) {
			continue
		}
		if err := j.store.Delete(entry.SessionID); err != nil {
			slog.Warn("session sweep delete failed", "sessionId", entry.SessionID, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("session sweep completed", "removed", removed)
	}
}
