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
	"strings"
	"time"

	"github.com/eventscout/eventscout/internal/config"
	"github.com/eventscout/eventscout/internal/models"
)

// Yelp fetches events from the Yelp Fusion events API using bearer-token
// auth and offset pagination.
type Yelp struct {
	c *client
}

func NewYelp(cfg config.SourceConfig) *Yelp {
	return &Yelp{c: newClient("yelp", cfg)}
}

func (a *Yelp) Name() string { return "yelp" }

// yelpDefaultPageSize is Yelp's maximum events page size.
const yelpDefaultPageSize = 50

type yelpEventsResponse struct {
	Events []yelpEvent `json:"events"`
	Total  int         `json:"total"`
}

type yelpEvent struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	TimeStart    string   `json:"time_start"`
	TimeEnd      string   `json:"time_end"`
	Cost         *float64 `json:"cost"`
	CostMax      *float64 `json:"cost_max"`
	EventSiteURL string   `json:"event_site_url"`
	ImageURL     string   `json:"image_url"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Category     string   `json:"category"`
	Location     struct {
		Address1       string   `json:"address1"`
		City           string   `json:"city"`
		DisplayAddress []string `json:"display_address"`
	} `json:"location"`
	BusinessID string `json:"business_id"`
}

func (a *Yelp) Fetch(ctx context.Context, location string, params FetchParams) ([]models.RawRecord, error) {
	if err := a.c.requireAPIKey(); err != nil {
		return nil, err
	}

	return a.c.fetch(ctx, func() ([]models.RawRecord, error) {
		header := http.Header{"Authorization": {"Bearer " + a.c.cfg.APIKey}}
		pageSize := a.c.cfg.PageSize
		if pageSize <= 0 || pageSize > yelpDefaultPageSize {
			pageSize = yelpDefaultPageSize
		}

		var records []models.RawRecord
		for offset := 0; ; offset += pageSize {
			q := url.Values{}
			q.Set("location", location)
			q.Set("limit", strconv.Itoa(pageSize))
			q.Set("offset", strconv.Itoa(offset))
			if len(params.Categories) > 0 {
				q.Set("categories", strings.Join(params.Categories, ","))
			}
			if !params.From.IsZero() {
				q.Set("start_date", strconv.FormatInt(params.From.Unix(), 10))
			}
			if !params.To.IsZero() {
				q.Set("end_date", strconv.FormatInt(params.To.Unix(), 10))
			}

			var resp yelpEventsResponse
			reqURL := fmt.Sprintf("%s/v3/events?%s", a.c.cfg.BaseURL, q.Encode())
			if err := a.c.getJSON(ctx, reqURL, header, &resp); err != nil {
				return nil, err
			}

			for _, ev := range resp.Events {
				records = append(records, a.toRawRecord(ev))
				if params.MaxEvents > 0 && len(records) >= params.MaxEvents {
					return records, nil
				}
			}

			if len(resp.Events) < pageSize || offset+pageSize >= resp.Total {
				return records, nil
			}
		}
	})
}

func (a *Yelp) toRawRecord(ev yelpEvent) models.RawRecord {
	rec := models.RawRecord{
		ExternalID:  ev.ID,
		Source:      a.Name(),
		Title:       ev.Name,
		Description: ev.Description,
		StartTime:   normalizeYelpTime(ev.TimeStart),
		EndTime:     normalizeYelpTime(ev.TimeEnd),
		VenueCity:   ev.Location.City,
		PriceMin:    ev.Cost,
		PriceMax:    ev.CostMax,
		TicketURL:   ev.EventSiteURL,
		ImageURL:    ev.ImageURL,
		VenueLat:    ev.Latitude,
		VenueLon:    ev.Longitude,
	}
	if len(ev.Location.DisplayAddress) > 0 {
		rec.VenueAddress = strings.Join(ev.Location.DisplayAddress, ", ")
	} else {
		rec.VenueAddress = ev.Location.Address1
	}
	return rec
}

// normalizeYelpTime rewrites Yelp's offset timestamps ("2026-09-12T19:30:00-05:00")
// into UTC RFC3339 so the normalizer's layout table stays small.
func normalizeYelpTime(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.UTC().Format(time.RFC3339)
}
