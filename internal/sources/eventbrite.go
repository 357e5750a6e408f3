// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/eventscout/eventscout/internal/config"
	"github.com/eventscout/eventscout/internal/models"
)

// Eventbrite fetches events from the Eventbrite v3 search API using
// bearer-token auth and page-number pagination.
type Eventbrite struct {
	c *client
}

func NewEventbrite(cfg config.SourceConfig) *Eventbrite {
	return &Eventbrite{c: newClient("eventbrite", cfg)}
}

func (a *Eventbrite) Name() string { return "eventbrite" }

// Eventbrite wire types. Name and description arrive as {text, html}
// wrappers; venue coordinates arrive as strings.
type ebSearchResponse struct {
	Pagination struct {
		PageNumber   int  `json:"page_number"`
		PageCount    int  `json:"page_count"`
		HasMoreItems bool `json:"has_more_items"`
	} `json:"pagination"`
	Events []ebEvent `json:"events"`
}

type ebEvent struct {
	ID          string  `json:"id"`
	Name        ebText  `json:"name"`
	Description ebText  `json:"description"`
	URL         string  `json:"url"`
	Start       ebTime  `json:"start"`
	End         ebTime  `json:"end"`
	Venue       ebVenue `json:"venue"`
	Logo        struct {
		URL string `json:"url"`
	} `json:"logo"`
	TicketAvailability struct {
		MinimumTicketPrice ebPrice `json:"minimum_ticket_price"`
		MaximumTicketPrice ebPrice `json:"maximum_ticket_price"`
	} `json:"ticket_availability"`
}

type ebText struct {
	Text string `json:"text"`
}

type ebTime struct {
	UTC string `json:"utc"`
}

type ebVenue struct {
	Name    string `json:"name"`
	Address struct {
		LocalizedAddressDisplay string `json:"localized_address_display"`
		City                    string `json:"city"`
	} `json:"address"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

type ebPrice struct {
	MajorValue string `json:"major_value"`
	Currency   string `json:"currency"`
}

// Fetch pages through the search results for a location until the page
// count or the MaxEvents cap is exhausted.
func (a *Eventbrite) Fetch(ctx context.Context, location string, params FetchParams) ([]models.RawRecord, error) {
	if err := a.c.requireAPIKey(); err != nil {
		return nil, err
	}

	return a.c.fetch(ctx, func() ([]models.RawRecord, error) {
		header := http.Header{"Authorization": {"Bearer " + a.c.cfg.APIKey}}

		var records []models.RawRecord
		for page := 1; ; page++ {
			q := url.Values{}
			q.Set("location.address", location)
			q.Set("expand", "venue,ticket_availability")
			q.Set("page", strconv.Itoa(page))
			if !params.From.IsZero() {
				q.Set("start_date.range_start", params.From.Format("2006-01-02T15:04:05Z"))
			}
			if !params.To.IsZero() {
				q.Set("start_date.range_end", params.To.Format("2006-01-02T15:04:05Z"))
			}

			var resp ebSearchResponse
			reqURL := fmt.Sprintf("%s/v3/events/search/?%s", a.c.cfg.BaseURL, q.Encode())
			if err := a.c.getJSON(ctx, reqURL, header, &resp); err != nil {
				return nil, err
			}

			for _, ev := range resp.Events {
				records = append(records, a.toRawRecord(ev))
				if params.MaxEvents > 0 && len(records) >= params.MaxEvents {
					return records, nil
				}
			}

			if !resp.Pagination.HasMoreItems || resp.Pagination.PageNumber >= resp.Pagination.PageCount {
				return records, nil
			}
		}
	})
}

func (a *Eventbrite) toRawRecord(ev ebEvent) models.RawRecord {
	rec := models.RawRecord{
		ExternalID:   ev.ID,
		Source:       a.Name(),
		Title:        ev.Name.Text,
		Description:  ev.Description.Text,
		StartTime:    ev.Start.UTC,
		EndTime:      ev.End.UTC,
		VenueName:    ev.Venue.Name,
		VenueAddress: ev.Venue.Address.LocalizedAddressDisplay,
		VenueCity:    ev.Venue.Address.City,
		TicketURL:    ev.URL,
		ImageURL:     ev.Logo.URL,
	}
	rec.VenueLat = parseCoordinate(ev.Venue.Latitude)
	rec.VenueLon = parseCoordinate(ev.Venue.Longitude)

	if p := parsePrice(ev.TicketAvailability.MinimumTicketPrice.MajorValue); p != nil {
		rec.PriceMin = p
		rec.Currency = ev.TicketAvailability.MinimumTicketPrice.Currency
	}
	rec.PriceMax = parsePrice(ev.TicketAvailability.MaximumTicketPrice.MajorValue)
	return rec
}

// parseCoordinate converts a provider's string coordinate, returning nil
// for absent or malformed values.
func parseCoordinate(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parsePrice(s string) *float64 {
	return parseCoordinate(s)
}
