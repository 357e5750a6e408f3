// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package taskengine

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/eventscout/eventscout/internal/logging"
)

// TopicLifecycle is the watermill topic lifecycle signals are published on.
const TopicLifecycle = "engine.lifecycle"

// Signal types emitted around task execution.
const (
	SignalWorkerStart    = "worker:start"
	SignalWorkerComplete = "worker:complete"
)

// Signal is a worker lifecycle notification. Signals are observability
// side channels: they carry no result data and consumers may drop them.
type Signal struct {
	Type     string        `json:"type"`
	TaskName string        `json:"task_name"`
	WorkerID int           `json:"worker_id"`
	Time     time.Time     `json:"time"`
	Success  bool          `json:"success,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// SignalSink receives lifecycle signals. Emit must not block task
// execution for long; sinks that fan out should buffer internally.
type SignalSink interface {
	Emit(Signal)
}

// CallbackSink adapts a plain function to a SignalSink.
type CallbackSink func(Signal)

// Emit invokes the wrapped callback.
func (f CallbackSink) Emit(sig Signal) { f(sig) }

// PublisherSink publishes signals as JSON messages on TopicLifecycle
// through a watermill publisher (gochannel in-process by default).
// Publish failures are logged and dropped; signals are best-effort.
type PublisherSink struct {
	pub message.Publisher
}

// NewPublisherSink wraps a watermill publisher as a SignalSink.
func NewPublisherSink(pub message.Publisher) *PublisherSink {
	return &PublisherSink{pub: pub}
}

// Emit publishes one signal.
func (s *PublisherSink) Emit(sig Signal) {
	payload, err := json.Marshal(sig)
	if err != nil {
		logging.Error().Err(err).Msg("Marshal lifecycle signal")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := s.pub.Publish(TopicLifecycle, msg); err != nil {
		logging.Warn().Err(err).Str("signal", sig.Type).Msg("Publish lifecycle signal")
	}
}

// MultiSink fans one signal out to several sinks.
type MultiSink []SignalSink

// Emit delivers the signal to every sink in order.
func (m MultiSink) Emit(sig Signal) {
	for _, s := range m {
		s.Emit(sig)
	}
}
