// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

// Package config defines the application configuration and its koanf-based
// loading pipeline. Precedence is ENV > YAML file > built-in defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Logging   LoggingConfig   `koanf:"logging"`
	Server    ServerConfig    `koanf:"server"`
	Engine    EngineConfig    `koanf:"engine"`
	Discovery DiscoveryConfig `koanf:"discovery"`
	Sources   SourcesConfig   `koanf:"sources"`
	Store     StoreConfig     `koanf:"store"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
}

// LoggingConfig controls the zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ServerConfig controls the admin HTTP server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// EngineConfig bounds the task engine. MaxWorkers caps concurrent task
// execution; excess submissions queue FIFO until a slot frees.
type EngineConfig struct {
	MaxWorkers    int           `koanf:"max_workers"`
	Timeout       time.Duration `koanf:"timeout"`
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
}

// DiscoveryConfig controls a discovery run. LocationConcurrency caps how
// many locations are processed at once, independent of Engine.MaxWorkers
// which bounds individual provider requests.
type DiscoveryConfig struct {
	Locations           []string      `koanf:"locations"`
	LocationConcurrency int           `koanf:"location_concurrency"`
	MaxEventsPerSource  int           `koanf:"max_events_per_source"`
	TargetEvents        int           `koanf:"target_events"`
	WriteBatchSize      int           `koanf:"write_batch_size"`
	WriteBatchPause     time.Duration `koanf:"write_batch_pause"`
}

// SourceConfig configures one provider adapter.
type SourceConfig struct {
	Enabled           bool          `koanf:"enabled"`
	BaseURL           string        `koanf:"base_url"`
	APIKey            string        `koanf:"api_key"`
	RequestsPerWindow int           `koanf:"requests_per_window"`
	Window            time.Duration `koanf:"window"`
	PageSize          int           `koanf:"page_size"`
}

// SourcesConfig holds per-provider adapter settings.
type SourcesConfig struct {
	Eventbrite   SourceConfig `koanf:"eventbrite"`
	Ticketmaster SourceConfig `koanf:"ticketmaster"`
	Yelp         SourceConfig `koanf:"yelp"`
}

// StoreConfig controls the badger-backed event store.
type StoreConfig struct {
	Path       string        `koanf:"path"`
	InMemory   bool          `koanf:"in_memory"`
	GCInterval time.Duration `koanf:"gc_interval"`
}

// SchedulerConfig controls optional periodic discovery runs.
type SchedulerConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

// defaultConfig returns a Config with all defaults applied. These are layered
// first, then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8480,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Engine: EngineConfig{
			MaxWorkers:    5,
			Timeout:       30 * time.Second,
			RetryAttempts: 3,
			RetryDelay:    500 * time.Millisecond,
		},
		Discovery: DiscoveryConfig{
			Locations:           []string{},
			LocationConcurrency: 2,
			MaxEventsPerSource:  200,
			TargetEvents:        1000,
			WriteBatchSize:      25,
			WriteBatchPause:     250 * time.Millisecond,
		},
		Sources: SourcesConfig{
			Eventbrite: SourceConfig{
				Enabled:           false,
				BaseURL:           "https://www.eventbriteapi.com",
				RequestsPerWindow: 50,
				Window:            time.Minute,
				PageSize:          50,
			},
			Ticketmaster: SourceConfig{
				Enabled:           false,
				BaseURL:           "https://app.ticketmaster.com",
				RequestsPerWindow: 20,
				Window:            time.Minute,
				PageSize:          100,
			},
			Yelp: SourceConfig{
				Enabled:           false,
				BaseURL:           "https://api.yelp.com",
				RequestsPerWindow: 30,
				Window:            time.Minute,
				PageSize:          50,
			},
		},
		Store: StoreConfig{
			Path:       "/data/eventscout",
			InMemory:   false,
			GCInterval: 10 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Interval: 6 * time.Hour,
		},
	}
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	if c.Engine.MaxWorkers < 1 {
		return fmt.Errorf("engine.max_workers must be >= 1, got %d", c.Engine.MaxWorkers)
	}
	if c.Engine.RetryAttempts < 1 {
		return fmt.Errorf("engine.retry_attempts must be >= 1, got %d", c.Engine.RetryAttempts)
	}
	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("engine.timeout must be positive, got %s", c.Engine.Timeout)
	}
	if c.Discovery.LocationConcurrency < 1 {
		return fmt.Errorf("discovery.location_concurrency must be >= 1, got %d", c.Discovery.LocationConcurrency)
	}
	if c.Discovery.WriteBatchSize < 1 {
		return fmt.Errorf("discovery.write_batch_size must be >= 1, got %d", c.Discovery.WriteBatchSize)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Scheduler.Enabled && len(c.Discovery.Locations) == 0 {
		return fmt.Errorf("scheduler.enabled requires discovery.locations to be set")
	}
	for name, src := range c.EnabledSources() {
		if src.BaseURL == "" {
			return fmt.Errorf("sources.%s.base_url is required when enabled", name)
		}
		if src.RequestsPerWindow < 1 {
			return fmt.Errorf("sources.%s.requests_per_window must be >= 1", name)
		}
		if src.Window <= 0 {
			return fmt.Errorf("sources.%s.window must be positive", name)
		}
	}
	return nil
}

// EnabledSources returns the configured providers that are switched on,
// keyed by source id.
func (c *Config) EnabledSources() map[string]SourceConfig {
	out := make(map[string]SourceConfig)
	if c.Sources.Eventbrite.Enabled {
		out["eventbrite"] = c.Sources.Eventbrite
	}
	if c.Sources.Ticketmaster.Enabled {
		out["ticketmaster"] = c.Sources.Ticketmaster
	}
	if c.Sources.Yelp.Enabled {
		out["yelp"] = c.Sources.Yelp
	}
	return out
}
