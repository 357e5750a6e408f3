// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

// Package normalize turns raw provider records into canonical events:
// text cleanup, date parsing, slug assignment, geocoding fallback, and
// keyword categorization. Every step other than title and date is
// best-effort; partial records are the norm, not the exception.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/eventscout/eventscout/internal/logging"
	"github.com/eventscout/eventscout/internal/metrics"
	"github.com/eventscout/eventscout/internal/models"
)

// Rejection sentinels. Only a missing title or an unparseable start time
// rejects a record; everything else degrades gracefully.
var (
	ErrMissingTitle = errors.New("record has no title")
	ErrBadStartTime = errors.New("start time could not be parsed")
)

// maxDescriptionLength bounds stored descriptions. Longer text is cut at
// the limit with an ellipsis marker.
const maxDescriptionLength = 500

// dateLayouts are tried in order when parsing provider timestamps.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"01/02/2006",
}

// SlugLookup answers whether a slug is already taken, optionally ignoring
// one record id so updates do not collide with themselves.
type SlugLookup interface {
	ExistsSlug(ctx context.Context, slug, excludingID string) (bool, error)
}

// Normalizer converts raw provider records into canonical events. The
// geocoder and categorizer are plain functions so they can be swapped for
// a real geocoding service or classifier without touching the pipeline.
type Normalizer struct {
	slugs      SlugLookup
	geocode    GeocodeFunc
	categorize CategorizeFunc
	log        zerolog.Logger
}

// New builds a normalizer with the default heuristics: city-center
// geocoding and keyword categorization.
func New(slugs SlugLookup) *Normalizer {
	return &Normalizer{
		slugs:      slugs,
		geocode:    CityCenterGeocoder(),
		categorize: KeywordCategorizer(),
		log:        logging.With().Str("component", "normalizer").Logger(),
	}
}

// WithGeocoder replaces the geocoding strategy.
func (n *Normalizer) WithGeocoder(fn GeocodeFunc) *Normalizer {
	n.geocode = fn
	return n
}

// WithCategorizer replaces the categorization strategy.
func (n *Normalizer) WithCategorizer(fn CategorizeFunc) *Normalizer {
	n.categorize = fn
	return n
}

// Normalize converts one raw record into a canonical event, or returns a
// rejection error when the title is missing or the start time unparseable.
func (n *Normalizer) Normalize(ctx context.Context, rec *models.RawRecord) (*models.CanonicalEvent, error) {
	title := strings.TrimSpace(rec.Title)
	if title == "" {
		metrics.EventsNormalized.WithLabelValues(rec.Source, "rejected").Inc()
		return nil, fmt.Errorf("%s record %s: %w", rec.Source, rec.ExternalID, ErrMissingTitle)
	}

	date, clock, err := parseStartTime(rec.StartTime)
	if err != nil {
		metrics.EventsNormalized.WithLabelValues(rec.Source, "rejected").Inc()
		return nil, fmt.Errorf("%s record %s: %w", rec.Source, rec.ExternalID, err)
	}

	e := models.NewCanonicalEvent(rec.Source, rec.ExternalID)
	e.Title = title
	e.Description = truncateDescription(rec.Description)
	e.Date = date
	e.Time = clock
	e.VenueName = strings.TrimSpace(rec.VenueName)
	e.Address = strings.TrimSpace(rec.VenueAddress)
	e.City = strings.TrimSpace(rec.VenueCity)
	e.PriceMin = rec.PriceMin
	e.PriceMax = rec.PriceMax
	e.TicketURL = rec.TicketURL
	e.ImageURL = rec.ImageURL
	e.Performers = rec.Performers
	e.Recurrence = rec.Recurrence

	if rec.EndTime != "" {
		if end, _, err := parseStartTime(rec.EndTime); err == nil {
			e.EndDate = &end
		} else {
			n.log.Debug().Str("external_id", rec.ExternalID).Str("end_time", rec.EndTime).
				Msg("unparseable end time dropped")
		}
	}

	slug, err := n.assignSlug(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("assign slug for %q: %w", title, err)
	}
	e.Slug = slug

	lat, lon, ok := n.geocode(GeocodeInput{
		VenueLat: rec.VenueLat,
		VenueLon: rec.VenueLon,
		Address:  e.Address,
		City:     e.City,
	})
	if ok {
		e.Latitude = &lat
		e.Longitude = &lon
	}

	category, tags := n.categorize(title + " " + e.Description)
	e.Category = category
	e.Tags = tags

	e.Metadata = models.EventMetadata{
		HasVenue:          e.VenueName != "",
		HasCoordinates:    ok,
		NormalizerVersion: models.NormalizerVersion,
	}

	metrics.EventsNormalized.WithLabelValues(rec.Source, "ok").Inc()
	return e, nil
}

// parseStartTime tries each known layout and returns the parsed time plus
// the local clock component ("19:30") when the layout carries one.
func parseStartTime(raw string) (time.Time, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, "", ErrBadStartTime
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		clock := ""
		if strings.Contains(layout, "15:04") {
			clock = t.Format("15:04")
		}
		return t.UTC(), clock, nil
	}
	return time.Time{}, "", fmt.Errorf("%w: %q", ErrBadStartTime, raw)
}

func truncateDescription(desc string) string {
	desc = strings.TrimSpace(desc)
	runes := []rune(desc)
	if len(runes) <= maxDescriptionLength {
		return desc
	}
	return string(runes[:maxDescriptionLength]) + "..."
}
