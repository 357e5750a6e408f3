// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/eventscout/eventscout/internal/logging"
	"github.com/eventscout/eventscout/internal/models"
	"github.com/eventscout/eventscout/internal/orchestrator"
	"github.com/eventscout/eventscout/internal/quality"
	"github.com/eventscout/eventscout/internal/store"
	"github.com/eventscout/eventscout/internal/validation"
)

// maxRequestBody caps request payloads; batch validation requests carry
// whole event lists.
const maxRequestBody = 5 << 20

// EventQuerier is the read surface the API needs from the store.
type EventQuerier interface {
	Query(ctx context.Context, f store.QueryFilters) ([]*models.CanonicalEvent, error)
	Count(ctx context.Context) (int, error)
	LatestProgress(ctx context.Context, sessionID string) (*models.ProgressSnapshot, error)
}

// Handler carries the dependencies of all admin endpoints.
type Handler struct {
	orch   *orchestrator.Orchestrator
	events EventQuerier
}

// NewHandler builds the handler set.
func NewHandler(orch *orchestrator.Orchestrator, events EventQuerier) *Handler {
	return &Handler{orch: orch, events: events}
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// startRunRequest is the POST /discovery/runs payload.
type startRunRequest struct {
	Sources            []string `json:"sources" validate:"omitempty,dive,oneof=eventbrite ticketmaster yelp"`
	Locations          []string `json:"locations" validate:"omitempty,dive,min=1"`
	Categories         []string `json:"categories"`
	From               string   `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To                 string   `json:"to" validate:"omitempty,datetime=2006-01-02"`
	MaxEventsPerSource int      `json:"max_events_per_source" validate:"omitempty,min=1,max=10000"`
}

// StartRun launches a discovery run asynchronously and returns its
// session id with 202 Accepted.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}

	params := orchestrator.RunParams{
		Sources:            req.Sources,
		Locations:          req.Locations,
		Categories:         req.Categories,
		MaxEventsPerSource: req.MaxEventsPerSource,
	}
	if req.From != "" {
		params.From, _ = time.Parse("2006-01-02", req.From)
	}
	if req.To != "" {
		params.To, _ = time.Parse("2006-01-02", req.To)
	}

	sessionID, err := h.orch.Start(params)
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoLocations) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"session_id": sessionID})
}

// GetRun returns the report of a run, final or in progress.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	report, err := h.orch.GetReport(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown session id")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetRunProgress returns the latest per-location progress snapshot of a
// run. Snapshots update after each completed location, so a long run can
// be followed without pulling the full report.
func (h *Handler) GetRunProgress(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	snap, err := h.events.LatestProgress(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "no progress for session")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// CancelRun requests best-effort cancellation of a running session.
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !h.orch.CancelRun(sessionID) {
		writeError(w, http.StatusConflict, "session is not running")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"canceled": true})
}

// validateBatchRequest is the POST /events/validate payload.
type validateBatchRequest struct {
	Events []*models.CanonicalEvent `json:"events" validate:"required,min=1,max=1000"`
}

// ValidateBatch runs the quality gate over a caller-supplied batch without
// persisting anything.
func (h *Handler) ValidateBatch(w http.ResponseWriter, r *http.Request) {
	var req validateBatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}

	writeJSON(w, http.StatusOK, quality.ValidateBatch(req.Events))
}

// ListEvents queries stored events with optional filters.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := store.QueryFilters{
		Source:   q.Get("source"),
		Category: q.Get("category"),
		City:     q.Get("city"),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
		filters.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
		filters.To = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be in 1..1000")
			return
		}
		filters.Limit = n
	}

	events, err := h.events.Query(r.Context(), filters)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// Status reports active jobs and engine counters.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.GetStatus())
}

// HealthLive is the liveness probe; it answers whenever the process
// serves requests.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Health reports liveness plus a store round-trip. Also mounted as the
// readiness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	total, err := h.events.Count(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"events": total,
	})
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}
