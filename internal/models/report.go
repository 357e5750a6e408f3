// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package models

import "time"

// IssueKind identifies a class of validation finding.
type IssueKind string

// Validation issue kinds produced by the quality gate.
const (
	IssueMissingTitle      IssueKind = "missing_title"
	IssueShortTitle        IssueKind = "short_title"
	IssueInvalidDate       IssueKind = "invalid_date"
	IssueMissingVenue      IssueKind = "missing_venue"
	IssueDatePast          IssueKind = "date_in_past"
	IssueDateFarFuture     IssueKind = "date_far_future"
	IssueEndBeforeStart    IssueKind = "end_before_start"
	IssueNegativePrice     IssueKind = "negative_price"
	IssueInvertedPrice     IssueKind = "inverted_price_range"
	IssueExcessivePrice    IssueKind = "excessive_price"
	IssueMalformedURL      IssueKind = "malformed_url"
	IssueMalformedPerf     IssueKind = "malformed_performer"
	IssueBadRecurrence     IssueKind = "bad_recurrence_interval"
	IssueBadRecurrenceDays IssueKind = "bad_recurrence_days"
	IssueExactDuplicate    IssueKind = "exact_duplicate"
	IssueNearDuplicate     IssueKind = "near_duplicate"
	IssueWideDateSpan      IssueKind = "wide_date_span"
	IssueWidePriceSpread   IssueKind = "wide_price_spread"
)

// ValidationIssue is a single finding against an event or a batch.
// Recoverable issues are warnings kept with the record; a non-recoverable
// issue rejects the event.
type ValidationIssue struct {
	Kind        IssueKind `json:"kind"`
	Message     string    `json:"message"`
	Recoverable bool      `json:"recoverable"`
}

// CityJobResult aggregates the outcome of one location within a run.
// Written once when the location finishes; never mutated afterwards.
type CityJobResult struct {
	Location       string         `json:"location"`
	EventsBySource map[string]int `json:"events_by_source"`
	EventsFound    int            `json:"events_found"`
	Errors         []string       `json:"errors,omitempty"`
	Duration       time.Duration  `json:"duration"`
	Success        bool           `json:"success"`
}

// RunError is one entry in a run's error list, attributed to the location
// and source where it occurred.
type RunError struct {
	Location string `json:"location,omitempty"`
	Source   string `json:"source,omitempty"`
	Message  string `json:"message"`
}

// RunStatus is the lifecycle state of a discovery run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusCanceled  RunStatus = "canceled"
	RunStatusFailed    RunStatus = "failed"
)

// RunReport is the final product of a discovery run. Every run produces a
// report, even under partial failure, with first-class error accounting.
type RunReport struct {
	SessionID   string    `json:"session_id"`
	Status      RunStatus `json:"status"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	TotalEvents         int     `json:"total_events"`
	SuccessfulLocations int     `json:"successful_locations"`
	FailedLocations     int     `json:"failed_locations"`
	EventsPerMinute     float64 `json:"events_per_minute"`
	AvgLocationSeconds  float64 `json:"avg_location_seconds"`
	TargetEvents        int     `json:"target_events"`
	TargetAchieved      bool    `json:"target_achieved"`

	Locations []CityJobResult `json:"locations"`
	Errors    []RunError      `json:"errors,omitempty"`

	// QualityWarnings holds the batch consistency findings over the run's
	// accepted events: duplicates, date span, price spread.
	QualityWarnings []ValidationIssue `json:"quality_warnings,omitempty"`
}

// Progress is the inner counters block of a progress snapshot.
type Progress struct {
	CitiesTotal     int `json:"citiesTotal"`
	CitiesCompleted int `json:"citiesCompleted"`
	EventsScraped   int `json:"eventsScraped"`
	TargetEvents    int `json:"targetEvents"`
}

// ProgressSnapshot is written to the progress sink after each location
// completes, so an external monitor can observe run progress without
// polling the full result set. The snapshot for a session is overwritten
// in place on every update.
type ProgressSnapshot struct {
	SessionID             string    `json:"sessionId"`
	StartTime             time.Time `json:"startTime"`
	Status                RunStatus `json:"status"`
	Progress              Progress  `json:"progress"`
	LastCompletedLocation string    `json:"lastCompletedLocation,omitempty"`
}

// ValidationSummary is the aggregate returned by batch validation.
type ValidationSummary struct {
	TotalEvents         int               `json:"total_events"`
	ValidEvents         int               `json:"valid_events"`
	AverageQuality      float64           `json:"average_quality"`
	Errors              []ValidationIssue `json:"errors,omitempty"`
	Warnings            []ValidationIssue `json:"warnings,omitempty"`
	QualityDistribution map[string]int    `json:"quality_distribution"`
}
