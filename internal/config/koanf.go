// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/eventscout/config.yaml",
	"/etc/eventscout/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists paths parsed as comma-separated slices when set
// from the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"discovery.locations",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars arrive as strings; the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables return "" and are skipped, so unrelated environment
// variables never pollute the configuration.
//
// Examples:
//   - ENGINE_MAX_WORKERS -> engine.max_workers
//   - EVENTBRITE_API_KEY -> sources.eventbrite.api_key
//   - DISCOVERY_LOCATIONS -> discovery.locations
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Server
		"http_host":         "server.host",
		"http_port":         "server.port",
		"http_timeout":      "server.timeout",
		"cors_origins":      "server.cors_origins",
		"rate_limit_reqs":   "server.rate_limit_reqs",
		"rate_limit_window": "server.rate_limit_window",

		// Task engine
		"engine_max_workers":    "engine.max_workers",
		"engine_timeout":        "engine.timeout",
		"engine_retry_attempts": "engine.retry_attempts",
		"engine_retry_delay":    "engine.retry_delay",

		// Discovery
		"discovery_locations":             "discovery.locations",
		"discovery_location_concurrency":  "discovery.location_concurrency",
		"discovery_max_events_per_source": "discovery.max_events_per_source",
		"discovery_target_events":         "discovery.target_events",
		"discovery_write_batch_size":      "discovery.write_batch_size",
		"discovery_write_batch_pause":     "discovery.write_batch_pause",

		// Sources
		"eventbrite_enabled":       "sources.eventbrite.enabled",
		"eventbrite_base_url":      "sources.eventbrite.base_url",
		"eventbrite_api_key":       "sources.eventbrite.api_key",
		"eventbrite_rate_requests": "sources.eventbrite.requests_per_window",
		"eventbrite_rate_window":   "sources.eventbrite.window",
		"eventbrite_page_size":     "sources.eventbrite.page_size",
		"ticketmaster_enabled":     "sources.ticketmaster.enabled",
		"ticketmaster_base_url":    "sources.ticketmaster.base_url",
		"ticketmaster_api_key":     "sources.ticketmaster.api_key",
		"ticketmaster_rate_reqs":   "sources.ticketmaster.requests_per_window",
		"ticketmaster_rate_window": "sources.ticketmaster.window",
		"ticketmaster_page_size":   "sources.ticketmaster.page_size",
		"yelp_enabled":             "sources.yelp.enabled",
		"yelp_base_url":            "sources.yelp.base_url",
		"yelp_api_key":             "sources.yelp.api_key",
		"yelp_rate_requests":       "sources.yelp.requests_per_window",
		"yelp_rate_window":         "sources.yelp.window",
		"yelp_page_size":           "sources.yelp.page_size",

		// Store
		"store_path":        "store.path",
		"store_in_memory":   "store.in_memory",
		"store_gc_interval": "store.gc_interval",

		// Scheduler
		"scheduler_enabled":  "scheduler.enabled",
		"scheduler_interval": "scheduler.interval",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped.
	return ""
}
