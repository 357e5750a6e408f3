// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/eventscout/eventscout/internal/metrics"
	"github.com/eventscout/eventscout/internal/models"
	"github.com/eventscout/eventscout/internal/quality"
	"github.com/eventscout/eventscout/internal/sources"
	"github.com/eventscout/eventscout/internal/taskengine"
)

// locationOutcome pairs a location's result with the events that passed
// the quality gate there.
type locationOutcome struct {
	result   *models.CityJobResult
	accepted []*models.CanonicalEvent
}

// processLocation fetches every source for one location through the task
// engine, normalizes and gates the records, and aggregates the outcome.
// A failing source contributes zero events plus an error entry; the
// location fails only when every source fails.
func (o *Orchestrator) processLocation(ctx context.Context, location string, adapters []sources.Adapter, params RunParams) locationOutcome {
	start := time.Now()
	res := &models.CityJobResult{
		Location:       location,
		EventsBySource: make(map[string]int, len(adapters)),
	}

	fetchParams := sources.FetchParams{
		Categories: params.Categories,
		From:       params.From,
		To:         params.To,
		MaxEvents:  params.MaxEventsPerSource,
	}

	tasks := make([]taskengine.Task, len(adapters))
	for i, adapter := range adapters {
		adapter := adapter
		tasks[i] = taskengine.Task{
			Name: fmt.Sprintf("fetch:%s:%s", adapter.Name(), location),
			Handler: func(ctx context.Context, _ interface{}) (interface{}, error) {
				return adapter.Fetch(ctx, location, fetchParams)
			},
		}
	}

	var accepted []*models.CanonicalEvent
	anySourceSucceeded := false

	for i, taskRes := range o.engine.SpawnBatch(ctx, tasks) {
		source := adapters[i].Name()
		if !taskRes.Success {
			res.EventsBySource[source] = 0
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", source, taskRes.Err))
			o.log.Warn().Str("location", location).Str("source", source).
				Int("attempts", taskRes.Attempts).Err(taskRes.Err).Msg("Source fetch failed")
			continue
		}
		anySourceSucceeded = true

		records, ok := taskRes.Data.([]models.RawRecord)
		if !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: unexpected fetch result type", source))
			continue
		}

		kept := o.gateRecords(ctx, location, records, res)
		res.EventsBySource[source] = len(kept)
		res.EventsFound += len(kept)
		accepted = append(accepted, kept...)
	}

	res.Duration = time.Since(start)
	res.Success = anySourceSucceeded

	o.log.Info().Str("location", location).Int("events", res.EventsFound).
		Bool("success", res.Success).Dur("duration", res.Duration).Msg("Location processed")

	return locationOutcome{result: res, accepted: accepted}
}

// gateRecords runs raw records through the normalizer and the quality
// gate. Rejections drop the single record; the batch never aborts.
func (o *Orchestrator) gateRecords(ctx context.Context, location string, records []models.RawRecord, res *models.CityJobResult) []*models.CanonicalEvent {
	var kept []*models.CanonicalEvent
	for i := range records {
		event, err := o.normalizer.Normalize(ctx, &records[i])
		if err != nil {
			o.log.Debug().Str("location", location).Err(err).Msg("Record rejected by normalizer")
			continue
		}
		issues := quality.Validate(event)
		if !quality.Accepted(issues) {
			o.log.Debug().Str("location", location).Str("title", event.Title).
				Int("issues", len(issues)).Msg("Event rejected by quality gate")
			continue
		}
		// Accepted events keep their score and recoverable warnings so
		// downstream consumers see what the gate saw.
		event.QualityScore = quality.Score(event)
		event.Warnings = issues
		kept = append(kept, event)
	}
	return kept
}

// writeEvents persists accepted events in paced batches so a large run
// does not overwhelm downstream write capacity. Failed writes come back
// as run-level errors; they never abort the batch.
func (o *Orchestrator) writeEvents(ctx context.Context, events []*models.CanonicalEvent) []models.RunError {
	batchSize := o.cfg.WriteBatchSize
	if batchSize < 1 {
		batchSize = 25
	}

	var errs []models.RunError
	for start := 0; start < len(events); start += batchSize {
		if ctx.Err() != nil {
			return errs
		}
		end := start + batchSize
		if end > len(events) {
			end = len(events)
		}

		for _, e := range events[start:end] {
			if err := o.store.Upsert(ctx, e); err != nil {
				errs = append(errs, models.RunError{
					Source:  e.SourceID,
					Message: fmt.Sprintf("persist %q: %v", e.Slug, err),
				})
				continue
			}
			metrics.DiscoveryEventsScraped.Inc()
		}

		if end < len(events) && o.cfg.WriteBatchPause > 0 {
			select {
			case <-ctx.Done():
				return errs
			case <-time.After(o.cfg.WriteBatchPause):
			}
		}
	}
	return errs
}
