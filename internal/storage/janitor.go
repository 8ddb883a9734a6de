package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/3tharva/split-the-tab-ai/internal/metrics"
)

// DefaultJanitorInterval is how often idle sessions are swept when no interval is given.
const DefaultJanitorInterval = time.Minute

// RunJanitor deletes sessions idle for longer than ttl, checking every
// interval, until ctx is cancelled. A non-positive ttl disables pruning and
// RunJanitor returns immediately. m may be nil.
func RunJanitor(ctx context.Context, store Store, ttl, interval time.Duration, m *metrics.Metrics) {
	if ttl <= 0 {
		slog.Info("Session expiry disabled")
		return
	}
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			PruneOnce(ctx, store, now.Add(-ttl), m)
		}
	}
}

// PruneOnce removes sessions last updated before cutoff and returns how many went.
func PruneOnce(ctx context.Context, store Store, cutoff time.Time, m *metrics.Metrics) int {
	n, err := store.PruneSessions(ctx, cutoff)
	if err != nil {
		slog.Error("Failed to prune sessions", "error", err)
		return 0
	}
	if n > 0 {
		m.SessionsRemoved(n)
		slog.Info("Pruned idle sessions", "count", n)
	}
	return n
}
