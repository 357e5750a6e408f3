// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

// Package models defines the record types shared across the ingestion
// pipeline: the raw provider record produced by source adapters, the
// canonical event produced by the normalizer, and the validation and
// reporting types consumed by the quality gate and orchestrator.
package models

import (
	"time"

	"github.com/google/uuid"
)

// NormalizerVersion stamps every canonical event with the normalization
// revision that produced it. Increment when normalization semantics change.
const NormalizerVersion = 3

// RawRecord is the normalizer's input shape. Source adapters translate each
// provider's payload (Eventbrite, Ticketmaster, Yelp, ...) into this form.
// All fields except Title and StartTime are optional; adapters leave fields
// zero-valued when the provider does not supply them.
type RawRecord struct {
	ExternalID  string `json:"external_id"`
	Source      string `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// StartTime is the provider's raw start timestamp. Adapters pass it
	// through unparsed; the normalizer owns date parsing and rejection.
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time,omitempty"`

	VenueName    string   `json:"venue_name,omitempty"`
	VenueAddress string   `json:"venue_address,omitempty"`
	VenueCity    string   `json:"venue_city,omitempty"`
	VenueLat     *float64 `json:"venue_lat,omitempty"`
	VenueLon     *float64 `json:"venue_lon,omitempty"`

	PriceMin *float64 `json:"price_min,omitempty"`
	PriceMax *float64 `json:"price_max,omitempty"`
	Currency string   `json:"currency,omitempty"`

	TicketURL  string      `json:"ticket_url,omitempty"`
	ImageURL   string      `json:"image_url,omitempty"`
	Performers []Performer `json:"performers,omitempty"`

	Recurrence *Recurrence `json:"recurrence,omitempty"`
}

// Performer is an act, speaker, or team attached to an event.
type Performer struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Recurrence describes a repeating schedule reported by a provider.
// DaysOfWeek uses 0=Sunday through 6=Saturday.
type Recurrence struct {
	IntervalDays int   `json:"interval_days"`
	DaysOfWeek   []int `json:"days_of_week,omitempty"`
}

// CanonicalEvent is the single normalized event shape all downstream logic
// depends on. It is created once by the normalizer and never mutated after
// creation, except for slug resolution during the uniqueness loop.
//
// Uniqueness invariants:
//   - Slug is unique among all committed events.
//   - ExternalID+Source is the idempotency key for upserts.
type CanonicalEvent struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Date    time.Time  `json:"date"`
	Time    string     `json:"time,omitempty"` // local clock time, "19:30"
	EndDate *time.Time `json:"end_date,omitempty"`

	VenueName string   `json:"venue_name,omitempty"`
	Address   string   `json:"address,omitempty"`
	City      string   `json:"city,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Category string   `json:"category"`
	Tags     []string `json:"tags,omitempty"`

	PriceMin *float64 `json:"price_min,omitempty"`
	PriceMax *float64 `json:"price_max,omitempty"`

	TicketURL  string      `json:"ticket_url,omitempty"`
	ImageURL   string      `json:"image_url,omitempty"`
	Performers []Performer `json:"performers,omitempty"`
	Recurrence *Recurrence `json:"recurrence,omitempty"`

	Slug       string `json:"slug"`
	SourceID   string `json:"source_id"`
	ExternalID string `json:"external_id"`

	// QualityScore and Warnings are stamped by the quality gate when the
	// event is accepted into a run, and persist with the record.
	QualityScore int               `json:"quality_score"`
	Warnings     []ValidationIssue `json:"warnings,omitempty"`

	Metadata  EventMetadata `json:"metadata"`
	CreatedAt time.Time     `json:"created_at"`
}

// EventMetadata carries normalization audit flags attached by the normalizer.
type EventMetadata struct {
	HasVenue          bool `json:"has_venue"`
	HasCoordinates    bool `json:"has_coordinates"`
	NormalizerVersion int  `json:"normalizer_version"`
}

// NewCanonicalEvent allocates an event with a fresh ID and creation time.
func NewCanonicalEvent(sourceID, externalID string) *CanonicalEvent {
	return &CanonicalEvent{
		ID:         uuid.New().String(),
		SourceID:   sourceID,
		ExternalID: externalID,
		CreatedAt:  time.Now().UTC(),
	}
}

// UpsertKey returns the externalId+source conflict key used by the store.
func (e *CanonicalEvent) UpsertKey() string {
	return e.SourceID + ":" + e.ExternalID
}

// HasLocation reports whether the event carries usable coordinates.
// Events without coordinates are kept but excluded from location features.
func (e *CanonicalEvent) HasLocation() bool {
	return e.Latitude != nil && e.Longitude != nil
}
