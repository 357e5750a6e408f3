// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package taskengine

import (
	"sync"
	"time"
)

// Stats accumulates engine-lifetime counters. Counters grow monotonically
// until Reset.
type Stats struct {
	mu            sync.Mutex
	total         int64
	completed     int64
	failed        int64
	totalDuration time.Duration
}

// StatsSnapshot is a point-in-time copy of the engine counters.
type StatsSnapshot struct {
	TotalTasks      int64         `json:"total_tasks"`
	CompletedTasks  int64         `json:"completed_tasks"`
	FailedTasks     int64         `json:"failed_tasks"`
	AverageDuration time.Duration `json:"average_duration"`
}

func (s *Stats) record(res SpawnResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	if res.Success {
		s.completed++
	} else {
		s.failed++
	}
	s.totalDuration += res.Duration
}

// Snapshot returns a consistent copy of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := StatsSnapshot{
		TotalTasks:     s.total,
		CompletedTasks: s.completed,
		FailedTasks:    s.failed,
	}
	if s.total > 0 {
		snap.AverageDuration = s.totalDuration / time.Duration(s.total)
	}
	return snap
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = 0
	s.completed = 0
	s.failed = 0
	s.totalDuration = 0
}
