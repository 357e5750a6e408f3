// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package quality

import (
	"fmt"
	"strings"
	"time"

	"github.com/eventscout/eventscout/internal/models"
)

const (
	// nearDuplicateThreshold is the title similarity above which two
	// distinct events are flagged as probable duplicates.
	nearDuplicateThreshold = 0.8

	// maxBatchDateSpan flags batches whose events span more than a year,
	// usually a sign of a provider returning recurring-series artifacts.
	maxBatchDateSpan = 365 * 24 * time.Hour

	// maxPriceSpreadRatio flags batches where the highest price exceeds
	// the lowest by this factor, usually a currency or cents/dollars mixup.
	maxPriceSpreadRatio = 100
)

// CheckBatch runs consistency checks over the events of one run: exact
// duplicates by venue+title+date, near-duplicate titles, date-span sanity,
// and price-spread sanity. Findings are warnings only; no event is ever
// rejected here.
func CheckBatch(events []*models.CanonicalEvent) []models.ValidationIssue {
	var issues []models.ValidationIssue
	issues = append(issues, checkExactDuplicates(events)...)
	issues = append(issues, checkNearDuplicates(events)...)
	issues = append(issues, checkDateSpan(events)...)
	issues = append(issues, checkPriceSpread(events)...)
	return issues
}

func checkExactDuplicates(events []*models.CanonicalEvent) []models.ValidationIssue {
	var issues []models.ValidationIssue
	seen := make(map[string]string, len(events))
	for _, e := range events {
		key := strings.ToLower(e.VenueName) + "|" + normalizeTitle(e.Title) + "|" + e.Date.Format("2006-01-02")
		if firstID, ok := seen[key]; ok {
			issues = append(issues, models.ValidationIssue{
				Kind:        models.IssueExactDuplicate,
				Message:     fmt.Sprintf("event %s duplicates %s (same venue, title, and date)", e.ID, firstID),
				Recoverable: true,
			})
			continue
		}
		seen[key] = e.ID
	}
	return issues
}

func checkNearDuplicates(events []*models.CanonicalEvent) []models.ValidationIssue {
	var issues []models.ValidationIssue
	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events); j++ {
			sim := Similarity(events[i].Title, events[j].Title)
			if sim > nearDuplicateThreshold {
				issues = append(issues, models.ValidationIssue{
					Kind: models.IssueNearDuplicate,
					Message: fmt.Sprintf("titles %q and %q are %.0f%% similar",
						events[i].Title, events[j].Title, sim*100),
					Recoverable: true,
				})
			}
		}
	}
	return issues
}

func checkDateSpan(events []*models.CanonicalEvent) []models.ValidationIssue {
	var earliest, latest time.Time
	for _, e := range events {
		if e.Date.IsZero() {
			continue
		}
		if earliest.IsZero() || e.Date.Before(earliest) {
			earliest = e.Date
		}
		if latest.IsZero() || e.Date.After(latest) {
			latest = e.Date
		}
	}
	if earliest.IsZero() || latest.Sub(earliest) <= maxBatchDateSpan {
		return nil
	}
	return []models.ValidationIssue{{
		Kind: models.IssueWideDateSpan,
		Message: fmt.Sprintf("batch spans %.0f days (%s to %s)",
			latest.Sub(earliest).Hours()/24, earliest.Format("2006-01-02"), latest.Format("2006-01-02")),
		Recoverable: true,
	}}
}

func checkPriceSpread(events []*models.CanonicalEvent) []models.ValidationIssue {
	var lowest, highest float64
	havePrices := false
	for _, e := range events {
		for _, p := range []*float64{e.PriceMin, e.PriceMax} {
			if p == nil || *p <= 0 {
				continue
			}
			if !havePrices {
				lowest, highest = *p, *p
				havePrices = true
				continue
			}
			if *p < lowest {
				lowest = *p
			}
			if *p > highest {
				highest = *p
			}
		}
	}
	if !havePrices || highest <= lowest*maxPriceSpreadRatio {
		return nil
	}
	return []models.ValidationIssue{{
		Kind: models.IssueWidePriceSpread,
		Message: fmt.Sprintf("batch price spread %.2f to %.2f exceeds %dx",
			lowest, highest, maxPriceSpreadRatio),
		Recoverable: true,
	}}
}

// ValidateBatch validates every event individually, scores it, runs the
// batch consistency checks, and folds everything into a summary. An event
// counts as valid when it carries no non-recoverable issue.
func ValidateBatch(events []*models.CanonicalEvent) *models.ValidationSummary {
	summary := &models.ValidationSummary{
		TotalEvents:         len(events),
		QualityDistribution: make(map[string]int),
	}

	scoreSum := 0
	for _, e := range events {
		issues := Validate(e)
		for _, iss := range issues {
			if iss.Recoverable {
				summary.Warnings = append(summary.Warnings, iss)
			} else {
				summary.Errors = append(summary.Errors, iss)
			}
		}
		if Accepted(issues) {
			summary.ValidEvents++
		}
		score := Score(e)
		scoreSum += score
		summary.QualityDistribution[scoreBucket(score)]++
	}

	if len(events) > 0 {
		summary.AverageQuality = float64(scoreSum) / float64(len(events))
	}
	summary.Warnings = append(summary.Warnings, CheckBatch(events)...)
	return summary
}

// scoreBucket labels a score for the distribution histogram.
func scoreBucket(score int) string {
	switch {
	case score >= 80:
		return "excellent"
	case score >= 60:
		return "good"
	case score >= 40:
		return "fair"
	default:
		return "poor"
	}
}
