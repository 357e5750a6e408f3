// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package quality

import (
	"fmt"
	"strings"
	"time"

	"github.com/eventscout/eventscout/internal/metrics"
	"github.com/eventscout/eventscout/internal/models"
	"github.com/eventscout/eventscout/internal/validation"
)

const (
	// minTitleLength is the shortest title accepted as meaningful.
	minTitleLength = 3

	// pastGrace tolerates events that started earlier today; anything more
	// than a day old is flagged as stale.
	pastGrace = 24 * time.Hour

	// farFutureWindow bounds how far ahead a listing is trusted.
	farFutureWindow = 365 * 24 * time.Hour

	// maxSanePrice is the ceiling above which a price is presumed to be a
	// provider data error (cents reported as dollars, for example).
	maxSanePrice = 10000
)

// Validate runs structural validation of a single event and returns every
// finding. An event is accepted iff none of the findings is non-recoverable;
// recoverable findings travel with the record as warnings.
func Validate(e *models.CanonicalEvent) []models.ValidationIssue {
	issues := validateAt(e, time.Now().UTC())
	outcome := "accepted"
	if !Accepted(issues) {
		outcome = "rejected"
	}
	metrics.EventsValidated.WithLabelValues(outcome).Inc()
	return issues
}

// Accepted reports whether a finding list contains no non-recoverable issue.
func Accepted(issues []models.ValidationIssue) bool {
	for _, iss := range issues {
		if !iss.Recoverable {
			return false
		}
	}
	return true
}

func validateAt(e *models.CanonicalEvent, now time.Time) []models.ValidationIssue {
	var issues []models.ValidationIssue

	reject := func(kind models.IssueKind, format string, args ...interface{}) {
		issues = append(issues, models.ValidationIssue{
			Kind:    kind,
			Message: fmt.Sprintf(format, args...),
		})
	}
	warn := func(kind models.IssueKind, format string, args ...interface{}) {
		issues = append(issues, models.ValidationIssue{
			Kind:        kind,
			Message:     fmt.Sprintf(format, args...),
			Recoverable: true,
		})
	}

	title := strings.TrimSpace(e.Title)
	switch {
	case title == "":
		reject(models.IssueMissingTitle, "event has no title")
	case len([]rune(title)) < minTitleLength:
		reject(models.IssueShortTitle, "title %q is shorter than %d characters", title, minTitleLength)
	}

	if e.Date.IsZero() {
		reject(models.IssueInvalidDate, "event has no usable date")
	} else {
		if e.Date.Before(now.Add(-pastGrace)) {
			warn(models.IssueDatePast, "event date %s is in the past", e.Date.Format("2006-01-02"))
		}
		if e.Date.After(now.Add(farFutureWindow)) {
			warn(models.IssueDateFarFuture, "event date %s is more than a year out", e.Date.Format("2006-01-02"))
		}
		if e.EndDate != nil && e.EndDate.Before(e.Date) {
			warn(models.IssueEndBeforeStart, "end date %s precedes start date %s",
				e.EndDate.Format("2006-01-02"), e.Date.Format("2006-01-02"))
		}
	}

	if e.VenueName == "" || e.City == "" {
		reject(models.IssueMissingVenue, "event has no venue name or city")
	}

	validatePrices(e, warn)
	validateURLs(e, warn)
	validatePerformers(e, warn)
	validateRecurrence(e, warn)

	return issues
}

type warnFunc func(kind models.IssueKind, format string, args ...interface{})

func validatePrices(e *models.CanonicalEvent, warn warnFunc) {
	if e.PriceMin != nil && *e.PriceMin < 0 {
		warn(models.IssueNegativePrice, "minimum price %.2f is negative", *e.PriceMin)
	}
	if e.PriceMax != nil && *e.PriceMax < 0 {
		warn(models.IssueNegativePrice, "maximum price %.2f is negative", *e.PriceMax)
	}
	if e.PriceMin != nil && e.PriceMax != nil && *e.PriceMax < *e.PriceMin {
		warn(models.IssueInvertedPrice, "price range inverted: min %.2f exceeds max %.2f", *e.PriceMin, *e.PriceMax)
	}
	if e.PriceMax != nil && *e.PriceMax > maxSanePrice {
		warn(models.IssueExcessivePrice, "maximum price %.2f exceeds sanity ceiling %d", *e.PriceMax, maxSanePrice)
	}
}

func validateURLs(e *models.CanonicalEvent, warn warnFunc) {
	if e.TicketURL != "" && !validURL(e.TicketURL) {
		warn(models.IssueMalformedURL, "ticket URL %q is not a valid URL", e.TicketURL)
	}
	if e.ImageURL != "" && !validURL(e.ImageURL) {
		warn(models.IssueMalformedURL, "image URL %q is not a valid URL", e.ImageURL)
	}
}

func validatePerformers(e *models.CanonicalEvent, warn warnFunc) {
	for i, p := range e.Performers {
		if strings.TrimSpace(p.Name) == "" {
			warn(models.IssueMalformedPerf, "performer %d has no name", i)
			continue
		}
		if p.URL != "" && !validURL(p.URL) {
			warn(models.IssueMalformedPerf, "performer %q has malformed URL %q", p.Name, p.URL)
		}
	}
}

func validateRecurrence(e *models.CanonicalEvent, warn warnFunc) {
	r := e.Recurrence
	if r == nil {
		return
	}
	if r.IntervalDays <= 0 {
		warn(models.IssueBadRecurrence, "recurrence interval %d is not positive", r.IntervalDays)
	}
	for _, day := range r.DaysOfWeek {
		if day < 0 || day > 6 {
			warn(models.IssueBadRecurrenceDays, "recurrence day %d is outside 0-6", day)
		}
	}
}

func validURL(u string) bool {
	return validation.GetValidator().Var(u, "url") == nil
}
