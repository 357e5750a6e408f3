// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package normalize

import (
	"math/rand"
	"strings"
)

// GeocodeInput carries everything a geocoding strategy may use.
type GeocodeInput struct {
	VenueLat *float64
	VenueLon *float64
	Address  string
	City     string
}

// GeocodeFunc resolves coordinates for a record, or reports ok=false to
// leave them unset. Records without coordinates are kept; they are only
// excluded from location-based features downstream.
type GeocodeFunc func(in GeocodeInput) (lat, lon float64, ok bool)

// cityCenter is an approximate downtown coordinate for keyword matching.
type cityCenter struct {
	keyword string
	lat     float64
	lon     float64
}

// cityCenters is a small table of known markets, matched as substrings of
// the address and city fields. Not a real geocoder; see GeocodeFunc for
// swapping one in.
var cityCenters = []cityCenter{
	{"new york", 40.7128, -74.0060},
	{"los angeles", 34.0522, -118.2437},
	{"chicago", 41.8781, -87.6298},
	{"houston", 29.7604, -95.3698},
	{"phoenix", 33.4484, -112.0740},
	{"philadelphia", 39.9526, -75.1652},
	{"san antonio", 29.4241, -98.4936},
	{"san diego", 32.7157, -117.1611},
	{"dallas", 32.7767, -96.7970},
	{"austin", 30.2672, -97.7431},
	{"seattle", 47.6062, -122.3321},
	{"denver", 39.7392, -104.9903},
	{"boston", 42.3601, -71.0589},
	{"portland", 45.5152, -122.6784},
	{"miami", 25.7617, -80.1918},
	{"atlanta", 33.7490, -84.3880},
	{"nashville", 36.1627, -86.7816},
	{"san francisco", 37.7749, -122.4194},
}

// jitterRange spreads city-center fallback coordinates by roughly a
// kilometer so co-located fallbacks do not stack on one exact point.
const jitterRange = 0.01

// CityCenterGeocoder returns the default fallback chain: venue coordinates
// when present, then a city-keyword match with a small random jitter, then
// nothing.
func CityCenterGeocoder() GeocodeFunc {
	return func(in GeocodeInput) (float64, float64, bool) {
		if in.VenueLat != nil && in.VenueLon != nil {
			return *in.VenueLat, *in.VenueLon, true
		}

		haystack := strings.ToLower(in.Address + " " + in.City)
		if strings.TrimSpace(haystack) == "" {
			return 0, 0, false
		}
		for _, c := range cityCenters {
			if strings.Contains(haystack, c.keyword) {
				return c.lat + jitter(), c.lon + jitter(), true
			}
		}
		return 0, 0, false
	}
}

func jitter() float64 {
	return (rand.Float64() - 0.5) * jitterRange
}
