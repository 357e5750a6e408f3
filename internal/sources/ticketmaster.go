// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/eventscout/eventscout/internal/config"
	"github.com/eventscout/eventscout/internal/models"
)

// Ticketmaster fetches events from the Discovery v2 API. Auth is an
// apikey query parameter; pagination is zero-based page numbers.
type Ticketmaster struct {
	c *client
}

func NewTicketmaster(cfg config.SourceConfig) *Ticketmaster {
	return &Ticketmaster{c: newClient("ticketmaster", cfg)}
}

func (a *Ticketmaster) Name() string { return "ticketmaster" }

type tmSearchResponse struct {
	Embedded struct {
		Events []tmEvent `json:"events"`
	} `json:"_embedded"`
	Page struct {
		Number     int `json:"number"`
		TotalPages int `json:"totalPages"`
	} `json:"page"`
}

type tmEvent struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Info   string `json:"info"`
	URL    string `json:"url"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
	Dates struct {
		Start struct {
			DateTime  string `json:"dateTime"`
			LocalDate string `json:"localDate"`
		} `json:"start"`
		End struct {
			DateTime string `json:"dateTime"`
		} `json:"end"`
	} `json:"dates"`
	PriceRanges []struct {
		Min      float64 `json:"min"`
		Max      float64 `json:"max"`
		Currency string  `json:"currency"`
	} `json:"priceRanges"`
	Embedded struct {
		Venues      []tmVenue `json:"venues"`
		Attractions []struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"attractions"`
	} `json:"_embedded"`
}

type tmVenue struct {
	Name    string `json:"name"`
	Address struct {
		Line1 string `json:"line1"`
	} `json:"address"`
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	Location struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"location"`
}

func (a *Ticketmaster) Fetch(ctx context.Context, location string, params FetchParams) ([]models.RawRecord, error) {
	if err := a.c.requireAPIKey(); err != nil {
		return nil, err
	}

	return a.c.fetch(ctx, func() ([]models.RawRecord, error) {
		var records []models.RawRecord
		for page := 0; ; page++ {
			q := url.Values{}
			q.Set("apikey", a.c.cfg.APIKey)
			q.Set("city", location)
			q.Set("page", strconv.Itoa(page))
			if a.c.cfg.PageSize > 0 {
				q.Set("size", strconv.Itoa(a.c.cfg.PageSize))
			}
			if !params.From.IsZero() {
				q.Set("startDateTime", params.From.Format("2006-01-02T15:04:05Z"))
			}
			if !params.To.IsZero() {
				q.Set("endDateTime", params.To.Format("2006-01-02T15:04:05Z"))
			}

			var resp tmSearchResponse
			reqURL := fmt.Sprintf("%s/discovery/v2/events.json?%s", a.c.cfg.BaseURL, q.Encode())
			if err := a.c.getJSON(ctx, reqURL, nil, &resp); err != nil {
				return nil, err
			}

			for _, ev := range resp.Embedded.Events {
				records = append(records, a.toRawRecord(ev))
				if params.MaxEvents > 0 && len(records) >= params.MaxEvents {
					return records, nil
				}
			}

			if len(resp.Embedded.Events) == 0 || resp.Page.Number >= resp.Page.TotalPages-1 {
				return records, nil
			}
		}
	})
}

func (a *Ticketmaster) toRawRecord(ev tmEvent) models.RawRecord {
	start := ev.Dates.Start.DateTime
	if start == "" {
		start = ev.Dates.Start.LocalDate
	}

	rec := models.RawRecord{
		ExternalID:  ev.ID,
		Source:      a.Name(),
		Title:       ev.Name,
		Description: ev.Info,
		StartTime:   start,
		EndTime:     ev.Dates.End.DateTime,
		TicketURL:   ev.URL,
	}
	if len(ev.Images) > 0 {
		rec.ImageURL = ev.Images[0].URL
	}
	if len(ev.Embedded.Venues) > 0 {
		v := ev.Embedded.Venues[0]
		rec.VenueName = v.Name
		rec.VenueAddress = v.Address.Line1
		rec.VenueCity = v.City.Name
		rec.VenueLat = parseCoordinate(v.Location.Latitude)
		rec.VenueLon = parseCoordinate(v.Location.Longitude)
	}
	if len(ev.PriceRanges) > 0 {
		pr := ev.PriceRanges[0]
		rec.PriceMin = &pr.Min
		rec.PriceMax = &pr.Max
		rec.Currency = pr.Currency
	}
	for _, attr := range ev.Embedded.Attractions {
		rec.Performers = append(rec.Performers, models.Performer{Name: attr.Name, URL: attr.URL})
	}
	return rec
}
