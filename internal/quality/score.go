// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

// Package quality implements the quality gate: structural validation of
// single events, completeness scoring, and batch consistency checks over
// the events of one discovery run.
package quality

import (
	"strings"

	"github.com/eventscout/eventscout/internal/metrics"
	"github.com/eventscout/eventscout/internal/models"
)

// Completeness weights. The sum is the maximum attainable score; Score
// normalizes against it so the result is always a 0-100 integer.
const (
	weightTitle       = 25
	weightDate        = 25
	weightDescription = 15
	weightPrice       = 10
	weightTicketURL   = 10
	weightImage       = 5
	weightPerformer   = 5
	weightTag         = 3
	weightAddress     = 2

	maxWeight = weightTitle + weightDate + weightDescription + weightPrice +
		weightTicketURL + weightImage + weightPerformer + weightTag + weightAddress
)

// minScoredDescription is the description length a record must exceed to
// earn the description weight. Single-word stubs carry no signal.
const minScoredDescription = 10

// Score computes the weighted completeness score of an event, normalized
// to 0-100. A record with every scored field present scores 100; a record
// carrying only a title and a valid date scores 50.
func Score(e *models.CanonicalEvent) int {
	points := 0
	if strings.TrimSpace(e.Title) != "" {
		points += weightTitle
	}
	if !e.Date.IsZero() {
		points += weightDate
	}
	if len(e.Description) > minScoredDescription {
		points += weightDescription
	}
	if e.PriceMin != nil || e.PriceMax != nil {
		points += weightPrice
	}
	if e.TicketURL != "" {
		points += weightTicketURL
	}
	if e.ImageURL != "" {
		points += weightImage
	}
	if len(e.Performers) > 0 {
		points += weightPerformer
	}
	if len(e.Tags) > 0 {
		points += weightTag
	}
	if e.Address != "" {
		points += weightAddress
	}

	score := points * 100 / maxWeight
	metrics.QualityScore.Observe(float64(score))
	return score
}
