// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Engine.MaxWorkers != 5 {
		t.Errorf("Engine.MaxWorkers = %d, want 5", cfg.Engine.MaxWorkers)
	}
	if cfg.Discovery.LocationConcurrency != 2 {
		t.Errorf("Discovery.LocationConcurrency = %d, want 2", cfg.Discovery.LocationConcurrency)
	}
	if cfg.Discovery.WriteBatchSize != 25 {
		t.Errorf("Discovery.WriteBatchSize = %d, want 25", cfg.Discovery.WriteBatchSize)
	}
	if cfg.Server.Port != 8480 {
		t.Errorf("Server.Port = %d, want 8480", cfg.Server.Port)
	}
	if len(cfg.EnabledSources()) != 0 {
		t.Errorf("no sources should be enabled by default, got %v", cfg.EnabledSources())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ENGINE_MAX_WORKERS", "12")
	t.Setenv("DISCOVERY_LOCATIONS", "austin, seattle ,denver")
	t.Setenv("EVENTBRITE_ENABLED", "true")
	t.Setenv("EVENTBRITE_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Engine.MaxWorkers != 12 {
		t.Errorf("Engine.MaxWorkers = %d, want 12", cfg.Engine.MaxWorkers)
	}
	want := []string{"austin", "seattle", "denver"}
	if len(cfg.Discovery.Locations) != len(want) {
		t.Fatalf("Discovery.Locations = %v, want %v", cfg.Discovery.Locations, want)
	}
	for i, loc := range want {
		if cfg.Discovery.Locations[i] != loc {
			t.Errorf("Discovery.Locations[%d] = %q, want %q", i, cfg.Discovery.Locations[i], loc)
		}
	}
	if _, ok := cfg.EnabledSources()["eventbrite"]; !ok {
		t.Error("eventbrite should be enabled via env")
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
engine:
  max_workers: 8
  timeout: 10s
discovery:
  locations:
    - portland
    - boise
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Engine.MaxWorkers != 8 {
		t.Errorf("Engine.MaxWorkers = %d, want 8", cfg.Engine.MaxWorkers)
	}
	if cfg.Engine.Timeout != 10*time.Second {
		t.Errorf("Engine.Timeout = %s, want 10s", cfg.Engine.Timeout)
	}
	if len(cfg.Discovery.Locations) != 2 || cfg.Discovery.Locations[0] != "portland" {
		t.Errorf("Discovery.Locations = %v, want [portland boise]", cfg.Discovery.Locations)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Engine.MaxWorkers = 0 },
			wantErr: true,
		},
		{
			name:    "zero retry attempts",
			mutate:  func(c *Config) { c.Engine.RetryAttempts = 0 },
			wantErr: true,
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Engine.Timeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "zero location concurrency",
			mutate:  func(c *Config) { c.Discovery.LocationConcurrency = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "scheduler without locations",
			mutate:  func(c *Config) { c.Scheduler.Enabled = true },
			wantErr: true,
		},
		{
			name: "enabled source without base url",
			mutate: func(c *Config) {
				c.Sources.Yelp.Enabled = true
				c.Sources.Yelp.BaseURL = ""
			},
			wantErr: true,
		},
		{
			name: "enabled source with bad window",
			mutate: func(c *Config) {
				c.Sources.Eventbrite.Enabled = true
				c.Sources.Eventbrite.Window = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
