// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

// Package api exposes the admin HTTP surface over chi: starting and
// inspecting discovery runs, ad-hoc batch validation, event queries, and
// operational endpoints (health, status, Prometheus metrics).
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eventscout/eventscout/internal/config"
)

// Router builds the HTTP handler tree for the admin server.
type Router struct {
	handler *Handler
	cfg     config.ServerConfig
}

// NewRouter wires the handlers into a router factory.
func NewRouter(handler *Handler, cfg config.ServerConfig) *Router {
	return &Router{handler: handler, cfg: cfg}
}

// Setup configures all routes and the global middleware stack.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	}))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/api/v1/health", router.handler.Health)
	r.Get("/api/v1/health/live", router.handler.HealthLive)
	r.Get("/api/v1/health/ready", router.handler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		if router.cfg.RateLimitReqs > 0 {
			r.Use(httprate.Limit(router.cfg.RateLimitReqs, router.cfg.RateLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP)))
		}
		r.Use(metricsMiddleware)

		r.Route("/discovery/runs", func(r chi.Router) {
			r.Post("/", router.handler.StartRun)
			r.Get("/{sessionID}", router.handler.GetRun)
			r.Get("/{sessionID}/progress", router.handler.GetRunProgress)
			r.Delete("/{sessionID}", router.handler.CancelRun)
		})

		r.Get("/events", router.handler.ListEvents)
		r.Post("/events/validate", router.handler.ValidateBatch)
		r.Get("/status", router.handler.Status)
	})

	return r
}
