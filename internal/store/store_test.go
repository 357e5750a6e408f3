// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eventscout/eventscout/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeEvent(source, externalID, title, slug string) *models.CanonicalEvent {
	e := models.NewCanonicalEvent(source, externalID)
	e.Title = title
	e.Slug = slug
	e.Date = time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC)
	e.Category = "music"
	e.City = "austin"
	return e
}

func TestUpsert_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := makeEvent("eventbrite", "ev-1", "Jazz Night", "jazz-night")
	if err := s.Upsert(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Re-ingesting the same provider record must not create a second row,
	// and must keep the committed id and slug.
	second := makeEvent("eventbrite", "ev-1", "Jazz Night (updated)", "jazz-night-updated")
	if err := s.Upsert(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Count = %d, want 1", count)
	}
	if second.ID != first.ID {
		t.Errorf("upsert changed id: %s -> %s", first.ID, second.ID)
	}
	if second.Slug != "jazz-night" {
		t.Errorf("upsert changed slug: got %q, want %q", second.Slug, "jazz-night")
	}

	stored, err := s.GetBySlug(ctx, "jazz-night")
	if err != nil {
		t.Fatalf("GetBySlug: %v", err)
	}
	if stored.Title != "Jazz Night (updated)" {
		t.Errorf("Title = %q, fields should be replaced on conflict", stored.Title)
	}
}

func TestUpsert_QualityFieldsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := makeEvent("eventbrite", "ev-q", "Jazz Night", "jazz-night")
	e.QualityScore = 72
	e.Warnings = []models.ValidationIssue{{
		Kind:        models.IssueInvertedPrice,
		Message:     "price range inverted: min 50.00 exceeds max 20.00",
		Recoverable: true,
	}}
	if err := s.Upsert(ctx, e); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	stored, err := s.GetBySlug(ctx, "jazz-night")
	if err != nil {
		t.Fatalf("GetBySlug: %v", err)
	}
	if stored.QualityScore != 72 {
		t.Errorf("QualityScore = %d, want 72", stored.QualityScore)
	}
	if len(stored.Warnings) != 1 || stored.Warnings[0].Kind != models.IssueInvertedPrice {
		t.Errorf("Warnings = %+v, want the inverted price finding", stored.Warnings)
	}
}

func TestUpsert_SlugCollisionResolved(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := makeEvent("eventbrite", "ev-1", "Jazz Night", "jazz-night")
	b := makeEvent("ticketmaster", "tm-9", "Jazz Night", "jazz-night")
	c := makeEvent("yelp", "yl-3", "Jazz Night", "jazz-night")

	for _, e := range []*models.CanonicalEvent{a, b, c} {
		if err := s.Upsert(ctx, e); err != nil {
			t.Fatalf("upsert %s: %v", e.SourceID, err)
		}
	}

	slugs := map[string]bool{a.Slug: true, b.Slug: true, c.Slug: true}
	if len(slugs) != 3 {
		t.Errorf("slugs not pairwise distinct: %q, %q, %q", a.Slug, b.Slug, c.Slug)
	}
	if b.Slug != "jazz-night-1" {
		t.Errorf("second slug = %q, want jazz-night-1", b.Slug)
	}
	if c.Slug != "jazz-night-2" {
		t.Errorf("third slug = %q, want jazz-night-2", c.Slug)
	}
}

func TestExistsSlug(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := makeEvent("eventbrite", "ev-1", "Jazz Night", "jazz-night")
	if err := s.Upsert(ctx, e); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		slug        string
		excludingID string
		want        bool
	}{
		{"taken slug", "jazz-night", "", true},
		{"free slug", "rock-show", "", false},
		{"own id excluded", "jazz-night", e.ID, false},
		{"other id not excluded", "jazz-night", "someone-else", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ExistsSlug(ctx, tt.slug, tt.excludingID)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("ExistsSlug(%q, %q) = %v, want %v", tt.slug, tt.excludingID, got, tt.want)
			}
		})
	}
}

func TestQuery_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	events := []*models.CanonicalEvent{
		makeEvent("eventbrite", "ev-1", "Jazz Night", "jazz-night"),
		makeEvent("ticketmaster", "tm-1", "Rock Show", "rock-show"),
		makeEvent("eventbrite", "ev-2", "Art Walk", "art-walk"),
	}
	events[1].Category = "music"
	events[2].Category = "arts"
	events[2].City = "denver"
	events[2].Date = time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)

	for _, e := range events {
		if err := s.Upsert(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		filters QueryFilters
		want    int
	}{
		{"all", QueryFilters{}, 3},
		{"by source", QueryFilters{Source: "eventbrite"}, 2},
		{"by category", QueryFilters{Category: "arts"}, 1},
		{"by city case-insensitive", QueryFilters{City: "Austin"}, 2},
		{"by date range", QueryFilters{From: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)}, 1},
		{"limit", QueryFilters{Limit: 2}, 2},
		{"no match", QueryFilters{Source: "meetup"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(ctx, tt.filters)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("Query(%+v) returned %d events, want %d", tt.filters, len(got), tt.want)
			}
		})
	}
}

func TestProgressRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := &models.ProgressSnapshot{
		SessionID: "run-1",
		StartTime: time.Now().UTC().Truncate(time.Second),
		Status:    models.RunStatusRunning,
		Progress: models.Progress{
			CitiesTotal:     5,
			CitiesCompleted: 2,
			EventsScraped:   120,
			TargetEvents:    1000,
		},
		LastCompletedLocation: "seattle",
	}
	if err := s.SaveProgress(ctx, snap); err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}

	// Overwrite with newer progress; the latest write wins.
	snap.Progress.CitiesCompleted = 3
	snap.LastCompletedLocation = "denver"
	if err := s.SaveProgress(ctx, snap); err != nil {
		t.Fatal(err)
	}

	got, err := s.LatestProgress(ctx, "run-1")
	if err != nil {
		t.Fatalf("LatestProgress: %v", err)
	}
	if got.Progress.CitiesCompleted != 3 || got.LastCompletedLocation != "denver" {
		t.Errorf("got %+v, want latest snapshot", got)
	}

	if _, err := s.LatestProgress(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing session error = %v, want ErrNotFound", err)
	}
}

func TestReportRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	report := &models.RunReport{
		SessionID:           "run-7",
		Status:              models.RunStatusCompleted,
		TotalEvents:         42,
		SuccessfulLocations: 4,
		FailedLocations:     1,
		TargetEvents:        40,
		TargetAchieved:      true,
	}
	if err := s.SaveReport(ctx, report); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	got, err := s.GetReport(ctx, "run-7")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if got.TotalEvents != 42 || !got.TargetAchieved {
		t.Errorf("GetReport = %+v, want persisted report", got)
	}
}
