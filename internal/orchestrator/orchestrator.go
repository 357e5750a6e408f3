// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

/*
Package orchestrator drives discovery runs: it partitions the target
locations into chunks bounded by the location concurrency cap, fans each
location's per-source fetches through the task engine, pushes accepted
events to the store in paced batches, and produces a run report with
first-class error accounting.

The location cap and the engine's worker cap are independent: the cap here
bounds how many locations are in flight, the engine bounds how many
provider requests run at once.
*/
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eventscout/eventscout/internal/config"
	"github.com/eventscout/eventscout/internal/logging"
	"github.com/eventscout/eventscout/internal/metrics"
	"github.com/eventscout/eventscout/internal/models"
	"github.com/eventscout/eventscout/internal/normalize"
	"github.com/eventscout/eventscout/internal/quality"
	"github.com/eventscout/eventscout/internal/sources"
	"github.com/eventscout/eventscout/internal/taskengine"
)

// ErrNoLocations is fatal to a run: without a location list there is
// nothing to discover.
var ErrNoLocations = errors.New("no locations configured for discovery run")

// EventStore is the persistence surface the orchestrator needs.
type EventStore interface {
	Upsert(ctx context.Context, e *models.CanonicalEvent) error
	SaveProgress(ctx context.Context, snap *models.ProgressSnapshot) error
	SaveReport(ctx context.Context, report *models.RunReport) error
	GetReport(ctx context.Context, sessionID string) (*models.RunReport, error)
}

// RunParams selects what a discovery run covers. Zero values fall back to
// the configured defaults.
type RunParams struct {
	Sources            []string
	Locations          []string
	Categories         []string
	From               time.Time
	To                 time.Time
	MaxEventsPerSource int
}

// Orchestrator coordinates discovery runs. Safe for concurrent use; each
// run tracks its own state.
type Orchestrator struct {
	engine     *taskengine.Engine
	store      EventStore
	normalizer *normalize.Normalizer
	adapters   []sources.Adapter
	cfg        config.DiscoveryConfig
	log        zerolog.Logger

	mu   sync.Mutex
	runs map[string]*runState
}

// runState is the mutable state of one active or finished run. The mutex
// covers both the cancel flag and the report, which the executing
// goroutine mutates while API readers take snapshots.
type runState struct {
	mu       sync.Mutex
	report   *models.RunReport
	canceled bool
}

func (rs *runState) cancel() {
	rs.mu.Lock()
	rs.canceled = true
	rs.mu.Unlock()
}

func (rs *runState) isCanceled() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.canceled
}

func (rs *runState) status() models.RunStatus {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.report.Status
}

// snapshot returns a shallow copy of the report safe to serialize while
// the run is still appending to it.
func (rs *runState) snapshot() models.RunReport {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return *rs.report
}

// New builds an orchestrator over the given engine, store, and adapters.
func New(engine *taskengine.Engine, st EventStore, normalizer *normalize.Normalizer, adapters []sources.Adapter, cfg config.DiscoveryConfig) *Orchestrator {
	return &Orchestrator{
		engine:     engine,
		store:      st,
		normalizer: normalizer,
		adapters:   adapters,
		cfg:        cfg,
		log:        logging.With().Str("component", "orchestrator").Logger(),
		runs:       make(map[string]*runState),
	}
}

// Run executes a discovery run to completion and returns its report.
// Partial failure never aborts the run; only a missing location list does.
func (o *Orchestrator) Run(ctx context.Context, params RunParams) (*models.RunReport, error) {
	state, locations, adapters, err := o.prepare(&params)
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, state, locations, adapters, params), nil
}

// Start launches a run in the background and returns its session id
// immediately. The run outlives the caller's request context; progress is
// observable through GetReport and the progress sink.
func (o *Orchestrator) Start(params RunParams) (string, error) {
	state, locations, adapters, err := o.prepare(&params)
	if err != nil {
		return "", err
	}
	go o.execute(context.Background(), state, locations, adapters, params)
	return state.report.SessionID, nil
}

// prepare resolves defaults, registers the run, and fails fast on a
// missing location list.
func (o *Orchestrator) prepare(params *RunParams) (*runState, []string, []sources.Adapter, error) {
	locations := params.Locations
	if len(locations) == 0 {
		locations = o.cfg.Locations
	}
	if len(locations) == 0 {
		return nil, nil, nil, ErrNoLocations
	}
	if params.MaxEventsPerSource <= 0 {
		params.MaxEventsPerSource = o.cfg.MaxEventsPerSource
	}

	adapters := o.selectAdapters(params.Sources)
	sessionID := uuid.New().String()

	report := &models.RunReport{
		SessionID:    sessionID,
		Status:       models.RunStatusRunning,
		StartedAt:    time.Now().UTC(),
		TargetEvents: o.cfg.TargetEvents,
	}
	state := &runState{report: report}
	o.mu.Lock()
	o.runs[sessionID] = state
	o.mu.Unlock()
	return state, locations, adapters, nil
}

func (o *Orchestrator) execute(ctx context.Context, state *runState, locations []string, adapters []sources.Adapter, params RunParams) *models.RunReport {
	report := state.report
	sessionID := report.SessionID

	o.log.Info().Str("session_id", sessionID).Int("locations", len(locations)).
		Int("sources", len(adapters)).Msg("Discovery run started")

	var accepted []*models.CanonicalEvent
	chunks := chunkLocations(locations, o.cfg.LocationConcurrency)

	for _, chunk := range chunks {
		if state.isCanceled() || ctx.Err() != nil {
			break
		}

		outcomes := make([]locationOutcome, len(chunk))
		var wg sync.WaitGroup
		for i, location := range chunk {
			wg.Add(1)
			go func(i int, location string) {
				defer wg.Done()
				outcomes[i] = o.processLocation(ctx, location, adapters, params)
			}(i, location)
		}
		wg.Wait()

		for _, out := range outcomes {
			res := out.result
			state.mu.Lock()
			report.Locations = append(report.Locations, *res)
			if res.Success {
				report.SuccessfulLocations++
				metrics.DiscoveryLocationsProcessed.WithLabelValues("success").Inc()
			} else {
				report.FailedLocations++
				metrics.DiscoveryLocationsProcessed.WithLabelValues("failure").Inc()
			}
			for _, msg := range res.Errors {
				report.Errors = append(report.Errors, models.RunError{Location: res.Location, Message: msg})
			}
			report.TotalEvents += res.EventsFound
			state.mu.Unlock()

			accepted = append(accepted, out.accepted...)
			o.saveProgress(ctx, state, len(locations), res.Location)
		}
	}

	writeErrors := o.writeEvents(ctx, accepted)

	state.mu.Lock()
	report.Errors = append(report.Errors, writeErrors...)
	report.QualityWarnings = quality.CheckBatch(accepted)
	report.CompletedAt = time.Now().UTC()
	report.Status = finalRunStatus(state.canceled, ctx, report)
	finalizeReport(report)
	state.mu.Unlock()

	if err := o.store.SaveReport(ctx, report); err != nil {
		o.log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to persist run report")
	} else {
		// The report is durable; drop the in-memory state so long-lived
		// processes (scheduler mode) do not accumulate finished runs.
		// GetReport falls back to the store for evicted sessions.
		o.mu.Lock()
		delete(o.runs, sessionID)
		o.mu.Unlock()
	}
	o.saveProgress(ctx, state, len(locations), "")

	metrics.DiscoveryRunsTotal.WithLabelValues(string(report.Status)).Inc()
	o.log.Info().Str("session_id", sessionID).Str("status", string(report.Status)).
		Int("events", report.TotalEvents).Int("failed_locations", report.FailedLocations).
		Dur("duration", report.CompletedAt.Sub(report.StartedAt)).Msg("Discovery run finished")

	return report
}

// CancelRun requests best-effort cancellation: no new chunks are scheduled,
// in-flight tasks run to completion or timeout. Returns false for unknown
// or already-finished runs.
func (o *Orchestrator) CancelRun(sessionID string) bool {
	o.mu.Lock()
	state, ok := o.runs[sessionID]
	o.mu.Unlock()
	if !ok || state.status() != models.RunStatusRunning {
		return false
	}
	state.cancel()
	o.log.Info().Str("session_id", sessionID).Msg("Discovery run cancellation requested")
	return true
}

// Status summarizes the orchestrator for the status endpoint.
type Status struct {
	ActiveJobs int                      `json:"active_jobs"`
	Engine     taskengine.StatsSnapshot `json:"engine"`
}

// GetStatus reports active runs plus engine counters.
func (o *Orchestrator) GetStatus() Status {
	o.mu.Lock()
	states := make([]*runState, 0, len(o.runs))
	for _, state := range o.runs {
		states = append(states, state)
	}
	o.mu.Unlock()

	active := 0
	for _, state := range states {
		if state.status() == models.RunStatusRunning {
			active++
		}
	}
	return Status{ActiveJobs: active, Engine: o.engine.Stats()}
}

// GetReport returns the report for a known run, preferring in-memory state
// for active runs and falling back to the store for completed ones.
func (o *Orchestrator) GetReport(ctx context.Context, sessionID string) (*models.RunReport, error) {
	o.mu.Lock()
	state, ok := o.runs[sessionID]
	o.mu.Unlock()
	if ok {
		snap := state.snapshot()
		return &snap, nil
	}
	return o.store.GetReport(ctx, sessionID)
}

// selectAdapters filters the configured adapters to the requested subset;
// an empty subset selects all of them.
func (o *Orchestrator) selectAdapters(requested []string) []sources.Adapter {
	if len(requested) == 0 {
		return o.adapters
	}
	want := make(map[string]bool, len(requested))
	for _, name := range requested {
		want[name] = true
	}
	var selected []sources.Adapter
	for _, a := range o.adapters {
		if want[a.Name()] {
			selected = append(selected, a)
		}
	}
	return selected
}

// chunkLocations partitions locations into slices of at most cap entries,
// preserving order. Five locations with a cap of two yield chunks of
// sizes 2, 2, 1.
func chunkLocations(locations []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	var chunks [][]string
	for start := 0; start < len(locations); start += size {
		end := start + size
		if end > len(locations) {
			end = len(locations)
		}
		chunks = append(chunks, locations[start:end])
	}
	return chunks
}

// finalRunStatus decides the terminal status. Caller holds the run lock.
func finalRunStatus(canceled bool, ctx context.Context, report *models.RunReport) models.RunStatus {
	if canceled || ctx.Err() != nil {
		return models.RunStatusCanceled
	}
	if report.SuccessfulLocations == 0 && report.FailedLocations > 0 {
		return models.RunStatusFailed
	}
	return models.RunStatusCompleted
}

// finalizeReport computes the derived rates once the run is over.
func finalizeReport(report *models.RunReport) {
	elapsed := report.CompletedAt.Sub(report.StartedAt)
	if minutes := elapsed.Minutes(); minutes > 0 {
		report.EventsPerMinute = float64(report.TotalEvents) / minutes
	}
	if n := len(report.Locations); n > 0 {
		var total time.Duration
		for _, loc := range report.Locations {
			total += loc.Duration
		}
		report.AvgLocationSeconds = total.Seconds() / float64(n)
	}
	report.TargetAchieved = report.TargetEvents > 0 && report.TotalEvents >= report.TargetEvents
}

func (o *Orchestrator) saveProgress(ctx context.Context, state *runState, citiesTotal int, lastLocation string) {
	report := state.snapshot()
	snap := &models.ProgressSnapshot{
		SessionID: report.SessionID,
		StartTime: report.StartedAt,
		Status:    report.Status,
		Progress: models.Progress{
			CitiesTotal:     citiesTotal,
			CitiesCompleted: len(report.Locations),
			EventsScraped:   report.TotalEvents,
			TargetEvents:    report.TargetEvents,
		},
		LastCompletedLocation: lastLocation,
	}
	if lastLocation == "" && len(report.Locations) > 0 {
		snap.LastCompletedLocation = report.Locations[len(report.Locations)-1].Location
	}
	if err := o.store.SaveProgress(ctx, snap); err != nil {
		o.log.Warn().Err(err).Str("session_id", report.SessionID).Msg("Failed to persist progress snapshot")
	}
}
