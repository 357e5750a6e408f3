// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/eventscout/eventscout/internal/config"
	"github.com/eventscout/eventscout/internal/models"
	"github.com/eventscout/eventscout/internal/normalize"
	"github.com/eventscout/eventscout/internal/sources"
	"github.com/eventscout/eventscout/internal/taskengine"
)

// fakeStore records persistence calls in memory.
type fakeStore struct {
	mu        sync.Mutex
	upserts   []*models.CanonicalEvent
	snapshots []*models.ProgressSnapshot
	reports   map[string]*models.RunReport
}

func newFakeStore() *fakeStore {
	return &fakeStore{reports: make(map[string]*models.RunReport)}
}

func (s *fakeStore) Upsert(_ context.Context, e *models.CanonicalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, e)
	return nil
}

func (s *fakeStore) SaveProgress(_ context.Context, snap *models.ProgressSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	return nil
}

func (s *fakeStore) SaveReport(_ context.Context, report *models.RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.SessionID] = report
	return nil
}

func (s *fakeStore) GetReport(_ context.Context, sessionID string) (*models.RunReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[sessionID]
	if !ok {
		return nil, errors.New("not found")
	}
	return report, nil
}

func (s *fakeStore) ExistsSlug(_ context.Context, slug, excludingID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.upserts {
		if e.Slug == slug && e.ID != excludingID {
			return true, nil
		}
	}
	return false, nil
}

// fakeAdapter serves canned records per location, optionally failing or
// blocking on a gate channel.
type fakeAdapter struct {
	name    string
	perLoc  int
	failFor map[string]error
	gate    chan struct{}

	mu      sync.Mutex
	fetches []string
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) Fetch(ctx context.Context, location string, params sources.FetchParams) ([]models.RawRecord, error) {
	if a.gate != nil {
		select {
		case <-a.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	a.mu.Lock()
	a.fetches = append(a.fetches, location)
	a.mu.Unlock()

	if err, ok := a.failFor[location]; ok {
		return nil, err
	}

	records := make([]models.RawRecord, a.perLoc)
	for i := range records {
		records[i] = models.RawRecord{
			ExternalID: fmt.Sprintf("%s-%s-%d", a.name, location, i),
			Source:     a.name,
			Title:      fmt.Sprintf("Concert %s %d", location, i),
			StartTime:  "2026-09-12T19:30:00Z",
			VenueName:  "Venue " + location,
			VenueCity:  location,
		}
	}
	return records, nil
}

func newTestOrchestrator(t *testing.T, st *fakeStore, adapters []sources.Adapter, cfg config.DiscoveryConfig) *Orchestrator {
	t.Helper()
	engine := taskengine.New(taskengine.Options{MaxWorkers: 4, RetryAttempts: 1})
	t.Cleanup(engine.Stop)
	return New(engine, st, normalize.New(st), adapters, cfg)
}

func TestChunkLocations(t *testing.T) {
	tests := []struct {
		name      string
		locations []string
		size      int
		want      []int
	}{
		{"five with cap two", []string{"a", "b", "c", "d", "e"}, 2, []int{2, 2, 1}},
		{"exact multiple", []string{"a", "b", "c", "d"}, 2, []int{2, 2}},
		{"cap larger than list", []string{"a", "b"}, 5, []int{2}},
		{"cap of zero treated as one", []string{"a", "b"}, 0, []int{1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := chunkLocations(tt.locations, tt.size)
			if len(chunks) != len(tt.want) {
				t.Fatalf("got %d chunks, want %d", len(chunks), len(tt.want))
			}
			for i, chunk := range chunks {
				if len(chunk) != tt.want[i] {
					t.Errorf("chunk %d size = %d, want %d", i, len(chunk), tt.want[i])
				}
			}
		})
	}
}

func TestRun_HappyPath(t *testing.T) {
	st := newFakeStore()
	adapter := &fakeAdapter{name: "eventbrite", perLoc: 3}
	o := newTestOrchestrator(t, st, []sources.Adapter{adapter}, config.DiscoveryConfig{
		LocationConcurrency: 2,
		TargetEvents:        5,
		WriteBatchSize:      2,
	})

	report, err := o.Run(context.Background(), RunParams{Locations: []string{"austin", "denver"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Status != models.RunStatusCompleted {
		t.Errorf("Status = %s, want completed", report.Status)
	}
	if report.TotalEvents != 6 {
		t.Errorf("TotalEvents = %d, want 6", report.TotalEvents)
	}
	if report.SuccessfulLocations != 2 || report.FailedLocations != 0 {
		t.Errorf("locations = %d/%d, want 2/0", report.SuccessfulLocations, report.FailedLocations)
	}
	if !report.TargetAchieved {
		t.Error("TargetAchieved should be true for 6 >= 5")
	}
	if len(st.upserts) != 6 {
		t.Errorf("persisted %d events, want 6", len(st.upserts))
	}
	if len(st.snapshots) < 2 {
		t.Errorf("got %d progress snapshots, want one per location", len(st.snapshots))
	}
	if got, err := st.GetReport(context.Background(), report.SessionID); err != nil || got.TotalEvents != 6 {
		t.Errorf("persisted report = %+v, %v", got, err)
	}
}

func TestRun_EvictsFinishedRunState(t *testing.T) {
	st := newFakeStore()
	adapter := &fakeAdapter{name: "eventbrite", perLoc: 1}
	o := newTestOrchestrator(t, st, []sources.Adapter{adapter}, config.DiscoveryConfig{LocationConcurrency: 1})

	report, err := o.Run(context.Background(), RunParams{Locations: []string{"austin"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	o.mu.Lock()
	_, held := o.runs[report.SessionID]
	o.mu.Unlock()
	if held {
		t.Error("finished run state still held in memory after report persisted")
	}

	// The report must remain reachable through the store fallback.
	got, err := o.GetReport(context.Background(), report.SessionID)
	if err != nil {
		t.Fatalf("GetReport after eviction: %v", err)
	}
	if got.SessionID != report.SessionID || got.Status != models.RunStatusCompleted {
		t.Errorf("report = %+v", got)
	}
}

// cannedAdapter serves one fixed batch regardless of location.
type cannedAdapter struct {
	name    string
	records []models.RawRecord
}

func (a *cannedAdapter) Name() string { return a.name }

func (a *cannedAdapter) Fetch(_ context.Context, _ string, _ sources.FetchParams) ([]models.RawRecord, error) {
	return a.records, nil
}

func TestRun_AcceptedEventsCarryQuality(t *testing.T) {
	min, max := 50.0, 20.0
	adapter := &cannedAdapter{name: "eventbrite", records: []models.RawRecord{{
		ExternalID: "ev-1",
		Source:     "eventbrite",
		Title:      "Live Jazz Night",
		StartTime:  "2026-09-12T19:30:00Z",
		VenueName:  "The Blue Room",
		VenueCity:  "austin",
		PriceMin:   &min,
		PriceMax:   &max,
	}}}
	st := newFakeStore()
	o := newTestOrchestrator(t, st, []sources.Adapter{adapter}, config.DiscoveryConfig{LocationConcurrency: 1})

	if _, err := o.Run(context.Background(), RunParams{Locations: []string{"austin"}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(st.upserts) != 1 {
		t.Fatalf("persisted %d events, want 1", len(st.upserts))
	}

	e := st.upserts[0]
	if e.QualityScore <= 0 {
		t.Errorf("QualityScore = %d, accepted event should carry its score", e.QualityScore)
	}
	var inverted bool
	for _, w := range e.Warnings {
		if !w.Recoverable {
			t.Errorf("persisted warning %s is non-recoverable", w.Kind)
		}
		if w.Kind == models.IssueInvertedPrice {
			inverted = true
		}
	}
	if !inverted {
		t.Errorf("Warnings = %v, want the inverted price range finding", e.Warnings)
	}
}

func TestRun_SourceFailureDoesNotFailLocation(t *testing.T) {
	st := newFakeStore()
	good := &fakeAdapter{name: "eventbrite", perLoc: 2}
	bad := &fakeAdapter{name: "yelp", failFor: map[string]error{
		"austin": errors.New("provider down"),
	}}
	o := newTestOrchestrator(t, st, []sources.Adapter{good, bad}, config.DiscoveryConfig{LocationConcurrency: 1})

	report, err := o.Run(context.Background(), RunParams{Locations: []string{"austin"}})
	if err != nil {
		t.Fatal(err)
	}

	if report.SuccessfulLocations != 1 {
		t.Errorf("SuccessfulLocations = %d, a single source failure must not fail the location", report.SuccessfulLocations)
	}
	if report.TotalEvents != 2 {
		t.Errorf("TotalEvents = %d, want 2 from the healthy source", report.TotalEvents)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("Errors = %v, want one run-level entry", report.Errors)
	}
	if report.Locations[0].EventsBySource["yelp"] != 0 {
		t.Errorf("failed source contribution = %d, want 0", report.Locations[0].EventsBySource["yelp"])
	}
}

func TestRun_AllSourcesFailingFailsLocation(t *testing.T) {
	st := newFakeStore()
	bad := &fakeAdapter{name: "eventbrite", failFor: map[string]error{
		"austin": errors.New("down"),
	}}
	o := newTestOrchestrator(t, st, []sources.Adapter{bad}, config.DiscoveryConfig{LocationConcurrency: 1})

	report, err := o.Run(context.Background(), RunParams{Locations: []string{"austin", "denver"}})
	if err != nil {
		t.Fatal(err)
	}

	if report.FailedLocations != 1 || report.SuccessfulLocations != 1 {
		t.Errorf("locations = %d ok / %d failed, want 1/1", report.SuccessfulLocations, report.FailedLocations)
	}
	if report.Status != models.RunStatusCompleted {
		t.Errorf("Status = %s, run continues past a failed location", report.Status)
	}
}

func TestRun_NoLocationsIsFatal(t *testing.T) {
	st := newFakeStore()
	o := newTestOrchestrator(t, st, []sources.Adapter{&fakeAdapter{name: "eventbrite"}}, config.DiscoveryConfig{})

	if _, err := o.Run(context.Background(), RunParams{}); !errors.Is(err, ErrNoLocations) {
		t.Errorf("err = %v, want ErrNoLocations", err)
	}
}

func TestRun_SourceFilter(t *testing.T) {
	st := newFakeStore()
	eb := &fakeAdapter{name: "eventbrite", perLoc: 1}
	yl := &fakeAdapter{name: "yelp", perLoc: 1}
	o := newTestOrchestrator(t, st, []sources.Adapter{eb, yl}, config.DiscoveryConfig{LocationConcurrency: 1})

	report, err := o.Run(context.Background(), RunParams{
		Locations: []string{"austin"},
		Sources:   []string{"yelp"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(eb.fetches) != 0 {
		t.Errorf("unselected source was fetched: %v", eb.fetches)
	}
	if report.TotalEvents != 1 {
		t.Errorf("TotalEvents = %d, want 1 from the selected source", report.TotalEvents)
	}
}

func TestCancelRun(t *testing.T) {
	st := newFakeStore()
	gate := make(chan struct{})
	adapter := &fakeAdapter{name: "eventbrite", perLoc: 1, gate: gate}
	o := newTestOrchestrator(t, st, []sources.Adapter{adapter}, config.DiscoveryConfig{LocationConcurrency: 1})

	done := make(chan *models.RunReport, 1)
	go func() {
		report, _ := o.Run(context.Background(), RunParams{Locations: []string{"a", "b", "c", "d"}})
		done <- report
	}()

	// Wait for the run to register, then cancel it mid-flight.
	var sessionID string
	for i := 0; i < 100; i++ {
		o.mu.Lock()
		for id := range o.runs {
			sessionID = id
		}
		o.mu.Unlock()
		if sessionID != "" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if sessionID == "" {
		t.Fatal("run never registered")
	}
	if !o.CancelRun(sessionID) {
		t.Fatal("CancelRun returned false for a running session")
	}
	close(gate)

	report := <-done
	if report.Status != models.RunStatusCanceled {
		t.Errorf("Status = %s, want canceled", report.Status)
	}
	if len(report.Locations) >= 4 {
		t.Errorf("processed %d locations after cancel, want fewer than all", len(report.Locations))
	}

	if o.CancelRun(sessionID) {
		t.Error("CancelRun should return false once the run has finished")
	}
	if o.CancelRun("unknown") {
		t.Error("CancelRun should return false for unknown sessions")
	}
}

func TestGetStatus(t *testing.T) {
	st := newFakeStore()
	o := newTestOrchestrator(t, st, []sources.Adapter{&fakeAdapter{name: "eventbrite", perLoc: 1}}, config.DiscoveryConfig{LocationConcurrency: 1})

	if got := o.GetStatus(); got.ActiveJobs != 0 {
		t.Errorf("ActiveJobs = %d, want 0 before any run", got.ActiveJobs)
	}

	if _, err := o.Run(context.Background(), RunParams{Locations: []string{"austin"}}); err != nil {
		t.Fatal(err)
	}

	status := o.GetStatus()
	if status.ActiveJobs != 0 {
		t.Errorf("ActiveJobs = %d, want 0 after completion", status.ActiveJobs)
	}
	if status.Engine.TotalTasks == 0 {
		t.Error("engine stats should count the run's fetch tasks")
	}
}
