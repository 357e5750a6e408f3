// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

// Package main is the entry point for the Eventscout server.
//
// Eventscout ingests local event listings from provider APIs (Eventbrite,
// Ticketmaster, Yelp), normalizes them into a canonical schema, gates them
// on data quality, and persists the survivors for querying.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered defaults, config file, environment
//  2. Store: BadgerDB event storage with slug uniqueness
//  3. Task engine: bounded worker pool for provider fetches
//  4. Source adapters: one per enabled provider, rate limited and
//     circuit-broken independently
//  5. Pipeline: normalizer, quality gate, run orchestrator
//  6. HTTP server: admin REST API plus Prometheus metrics
//  7. Supervisor tree: suture v4 restarts crashed components with backoff
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config.yaml, built-in defaults.
// Provider API keys come from EVENTBRITE_API_KEY, TICKETMASTER_API_KEY,
// and YELP_API_KEY.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: in-flight discovery runs
// observe cancellation, the HTTP server drains, and the store closes last.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/eventscout/eventscout/internal/api"
	"github.com/eventscout/eventscout/internal/config"
	"github.com/eventscout/eventscout/internal/logging"
	"github.com/eventscout/eventscout/internal/normalize"
	"github.com/eventscout/eventscout/internal/orchestrator"
	"github.com/eventscout/eventscout/internal/sources"
	"github.com/eventscout/eventscout/internal/store"
	"github.com/eventscout/eventscout/internal/supervisor"
	"github.com/eventscout/eventscout/internal/taskengine"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("level", cfg.Logging.Level).Msg("Eventscout starting")

	st, err := store.Open(cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("Failed to open event store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event store")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// In-process pub/sub carries task engine lifecycle signals. Consumers
	// are observability-only; the engine never blocks on them.
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, watermill.NewStdLogger(false, false))
	defer pubsub.Close()

	engine := taskengine.New(taskengine.Options{
		MaxWorkers:    cfg.Engine.MaxWorkers,
		Timeout:       cfg.Engine.Timeout,
		RetryAttempts: cfg.Engine.RetryAttempts,
		RetryDelay:    cfg.Engine.RetryDelay,
		Signals:       taskengine.NewPublisherSink(pubsub),
	})
	defer engine.Stop()

	consumeLifecycleSignals(ctx, pubsub)

	adapters := sources.BuildAdapters(&cfg.Sources)
	if len(adapters) == 0 {
		logging.Warn().Msg("No source adapters enabled; runs will fail until a provider is configured")
	}
	for _, a := range adapters {
		logging.Info().Str("source", a.Name()).Msg("Source adapter enabled")
	}

	orch := orchestrator.New(engine, st, normalize.New(st), adapters, cfg.Discovery)

	router := api.NewRouter(api.NewHandler(orch, st), cfg.Server)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddDataService(supervisor.NewStoreGCService(st, cfg.Store.GCInterval))

	if cfg.Scheduler.Enabled {
		tree.AddPipelineService(supervisor.NewSchedulerService(orch, cfg.Scheduler.Interval, orchestrator.RunParams{
			Locations:          cfg.Discovery.Locations,
			MaxEventsPerSource: cfg.Discovery.MaxEventsPerSource,
		}))
		logging.Info().Dur("interval", cfg.Scheduler.Interval).Msg("Discovery scheduler enabled")
	}

	tree.AddAPIService(supervisor.NewHTTPService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	logging.Info().Msg("Eventscout stopped gracefully")
}

// consumeLifecycleSignals drains engine lifecycle messages into the debug
// log. The subscription lives until ctx is canceled.
func consumeLifecycleSignals(ctx context.Context, pubsub *gochannel.GoChannel) {
	messages, err := pubsub.Subscribe(ctx, taskengine.TopicLifecycle)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to subscribe to engine lifecycle signals")
		return
	}
	go func() {
		for msg := range messages {
			logging.Debug().Str("payload", string(msg.Payload)).Msg("Engine signal")
			msg.Ack()
		}
	}()
}
