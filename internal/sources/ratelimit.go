// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package sources

import (
	"context"
	"sync"
	"time"

	"github.com/eventscout/eventscout/internal/metrics"
)

// slidingWindow defers requests once the per-window budget is spent,
// sleeping only the minimum time needed for the oldest request to exit
// the window. Each adapter owns its limiter, so concurrent runs sharing
// an adapter share one budget and separate adapters never cross-contaminate.
type slidingWindow struct {
	mu     sync.Mutex
	source string
	limit  int
	window time.Duration
	stamps []time.Time
}

func newSlidingWindow(source string, limit int, window time.Duration) *slidingWindow {
	return &slidingWindow{source: source, limit: limit, window: window}
}

// wait blocks until a request slot is available or the context ends. The
// slot is claimed before returning.
func (w *slidingWindow) wait(ctx context.Context) error {
	if w.limit <= 0 || w.window <= 0 {
		return nil
	}
	for {
		w.mu.Lock()
		now := time.Now()
		w.prune(now)
		if len(w.stamps) < w.limit {
			w.stamps = append(w.stamps, now)
			w.mu.Unlock()
			return nil
		}
		sleepFor := w.stamps[0].Add(w.window).Sub(now)
		w.mu.Unlock()

		metrics.SourceRateLimitWaits.WithLabelValues(w.source).Inc()
		timer := time.NewTimer(sleepFor)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// prune drops timestamps that have left the window. Caller holds the lock.
func (w *slidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	w.stamps = w.stamps[i:]
}
