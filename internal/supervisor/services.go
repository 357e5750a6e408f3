// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eventscout/eventscout/internal/logging"
	"github.com/eventscout/eventscout/internal/models"
	"github.com/eventscout/eventscout/internal/orchestrator"
)

// HTTPServer matches the *http.Server lifecycle methods the service
// needs, so tests can substitute a fake.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService runs an HTTP server under supervision, translating the
// blocking ListenAndServe into suture's context-aware Serve.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPService wraps server. shutdownTimeout bounds graceful drain on
// shutdown; values <= 0 become 10s.
func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		// The serve context is already canceled; shutdown needs its own.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *HTTPService) String() string { return "http-server" }

// GCRunner is the storage upkeep loop, satisfied by store.Store.RunGC.
type GCRunner interface {
	RunGC(ctx context.Context, interval time.Duration)
}

// StoreGCService periodically runs badger value-log garbage collection.
type StoreGCService struct {
	store    GCRunner
	interval time.Duration
}

// NewStoreGCService wraps the store GC loop. Intervals <= 0 become 10m.
func NewStoreGCService(store GCRunner, interval time.Duration) *StoreGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &StoreGCService{store: store, interval: interval}
}

// Serve implements suture.Service. RunGC blocks until ctx is canceled.
func (s *StoreGCService) Serve(ctx context.Context) error {
	s.store.RunGC(ctx, s.interval)
	return ctx.Err()
}

func (s *StoreGCService) String() string { return "store-gc" }

// DiscoveryRunner starts discovery runs, satisfied by the orchestrator.
type DiscoveryRunner interface {
	Run(ctx context.Context, params orchestrator.RunParams) (*models.RunReport, error)
}

// SchedulerService triggers a full discovery run on a fixed interval.
// The first run fires one interval after startup, not immediately, so a
// crash-looping process does not hammer the providers.
type SchedulerService struct {
	runner   DiscoveryRunner
	interval time.Duration
	params   orchestrator.RunParams
}

// NewSchedulerService builds the periodic runner. Intervals <= 0 become 6h.
func NewSchedulerService(runner DiscoveryRunner, interval time.Duration, params orchestrator.RunParams) *SchedulerService {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &SchedulerService{runner: runner, interval: interval, params: params}
}

// Serve implements suture.Service. Run failures are logged and the loop
// keeps ticking; only context cancellation stops it.
func (s *SchedulerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			report, err := s.runner.Run(ctx, s.params)
			if err != nil {
				logging.Error().Err(err).Msg("Scheduled discovery run failed")
				continue
			}
			logging.Info().Str("session_id", report.SessionID).
				Str("status", string(report.Status)).
				Int("total_events", report.TotalEvents).
				Msg("Scheduled discovery run finished")
		}
	}
}

func (s *SchedulerService) String() string { return "discovery-scheduler" }
