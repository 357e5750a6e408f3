// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/eventscout/eventscout/internal/config"
	"github.com/eventscout/eventscout/internal/logging"
	"github.com/eventscout/eventscout/internal/metrics"
	"github.com/eventscout/eventscout/internal/models"
)

// maxResponseBody caps how much of a provider response is read, so a
// misbehaving provider cannot exhaust memory.
const maxResponseBody = 10 << 20

// client is the shared plumbing under every provider adapter: HTTP
// transport, per-source sliding-window rate limiting, circuit breaking,
// and outcome metrics.
type client struct {
	source  string
	cfg     config.SourceConfig
	http    *http.Client
	limiter *slidingWindow
	cb      *gobreaker.CircuitBreaker[[]models.RawRecord]
	log     zerolog.Logger
}

func newClient(source string, cfg config.SourceConfig) *client {
	metrics.CircuitBreakerState.WithLabelValues(source).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]models.RawRecord](gobreaker.Settings{
		Name:        source,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("source", name).
				Str("from", breakerStateLabel(from)).Str("to", breakerStateLabel(to)).
				Msg("Circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
		IsSuccessful: func(err error) bool {
			// Config errors reflect our credentials, not provider health;
			// they must not open the circuit.
			var ce *ConfigError
			return err == nil || errors.As(err, &ce)
		},
	})

	return &client{
		source:  source,
		cfg:     cfg,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: newSlidingWindow(source, cfg.RequestsPerWindow, cfg.Window),
		cb:      cb,
		log:     logging.With().Str("source", source).Logger(),
	}
}

// fetch runs fn behind the circuit breaker, recording outcome metrics.
// Breaker rejections surface as transient errors so the task engine's
// retry budget applies. Rate limiting happens per HTTP request inside
// getJSON, not here: fn is a whole pagination loop.
func (c *client) fetch(ctx context.Context, fn func() ([]models.RawRecord, error)) ([]models.RawRecord, error) {
	start := time.Now()
	records, err := c.cb.Execute(fn)
	metrics.SourceFetchDuration.WithLabelValues(c.source).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.SourceFetchesTotal.WithLabelValues(c.source, "success").Inc()
		return records, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.SourceFetchesTotal.WithLabelValues(c.source, "rate_limited").Inc()
		return nil, &TransientError{Source: c.source, Err: err}
	default:
		metrics.SourceFetchesTotal.WithLabelValues(c.source, "error").Inc()
		return nil, err
	}
}

// getJSON performs one authenticated GET and decodes the response into v.
// Every call claims a slot in the source's sliding window, so paginated
// fetches are deferred page by page once the budget is spent. Status
// codes are mapped onto the error taxonomy: 401/403 are config errors,
// 429 and 5xx are transient, anything else non-2xx is permanent.
func (c *client) getJSON(ctx context.Context, url string, header http.Header, v interface{}) error {
	if err := c.limiter.wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.source, err)
	}
	for k, vals := range header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransientError{Source: c.source, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &ConfigError{Source: c.source, Reason: fmt.Sprintf("provider rejected credentials (HTTP %d)", resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return &TransientError{Source: c.source, Err: fmt.Errorf("provider returned HTTP %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%s: provider returned HTTP %d", c.source, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxResponseBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return &TransientError{Source: c.source, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *client) requireAPIKey() error {
	if c.cfg.APIKey == "" {
		return &ConfigError{Source: c.source, Reason: "no API key configured"}
	}
	return nil
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func breakerStateLabel(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
