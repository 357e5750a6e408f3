// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

// Package sources implements the provider adapters. Each adapter translates
// one external provider's API (Eventbrite, Ticketmaster, Yelp) into raw
// records the normalizer accepts, handling its own authentication,
// pagination, rate limiting, and circuit breaking.
package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/eventscout/eventscout/internal/config"
	"github.com/eventscout/eventscout/internal/models"
)

// FetchParams narrows a fetch beyond the location.
type FetchParams struct {
	Categories []string
	From       time.Time
	To         time.Time

	// MaxEvents caps how many records the adapter returns; pagination
	// stops once the cap is reached.
	MaxEvents int
}

// Adapter is the contract the orchestrator invokes through the task engine.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, location string, params FetchParams) ([]models.RawRecord, error)
}

// TransientError marks a fetch failure worth retrying: network hiccups,
// provider 5xx responses, rate-limit rejections.
type TransientError struct {
	Source string
	Err    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient fetch error: %v", e.Source, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ConfigError marks a source as unusable for the whole run: missing or
// rejected credentials, bad base URL. Not retried.
type ConfigError struct {
	Source string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: configuration error: %s", e.Source, e.Reason)
}

// BuildAdapters constructs one adapter per enabled source.
func BuildAdapters(cfg *config.SourcesConfig) []Adapter {
	var adapters []Adapter
	if cfg.Eventbrite.Enabled {
		adapters = append(adapters, NewEventbrite(cfg.Eventbrite))
	}
	if cfg.Ticketmaster.Enabled {
		adapters = append(adapters, NewTicketmaster(cfg.Ticketmaster))
	}
	if cfg.Yelp.Enabled {
		adapters = append(adapters, NewYelp(cfg.Yelp))
	}
	return adapters
}
