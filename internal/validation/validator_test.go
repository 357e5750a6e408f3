// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package validation

import (
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same instance")
	}
}

type sampleRequest struct {
	Name      string   `validate:"required,min=1,max=100"`
	TicketURL string   `validate:"omitempty,url"`
	Latitude  *float64 `validate:"omitempty,latitude"`
	Limit     int      `validate:"min=1,max=1000"`
}

func TestValidateStruct(t *testing.T) {
	lat := 47.6
	badLat := 123.0

	tests := []struct {
		name      string
		input     sampleRequest
		wantField string
		wantTag   string
	}{
		{
			name:  "valid",
			input: sampleRequest{Name: "Jazz Night", TicketURL: "https://example.com/t", Latitude: &lat, Limit: 10},
		},
		{
			name:      "missing name",
			input:     sampleRequest{Limit: 10},
			wantField: "Name",
			wantTag:   "required",
		},
		{
			name:      "bad url",
			input:     sampleRequest{Name: "x", TicketURL: "not a url", Limit: 10},
			wantField: "TicketURL",
			wantTag:   "url",
		},
		{
			name:      "latitude out of range",
			input:     sampleRequest{Name: "x", Latitude: &badLat, Limit: 10},
			wantField: "Latitude",
			wantTag:   "latitude",
		},
		{
			name:      "limit too small",
			input:     sampleRequest{Name: "x", Limit: 0},
			wantField: "Limit",
			wantTag:   "min",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			found := false
			for _, fe := range err.Fields() {
				if fe.Field == tt.wantField && fe.Tag == tt.wantTag {
					found = true
					if fe.Message == "" {
						t.Error("field error should carry a message")
					}
				}
			}
			if !found {
				t.Errorf("expected error on %s/%s, got %v", tt.wantField, tt.wantTag, err)
			}
		})
	}
}

func TestErrors_CombinedMessage(t *testing.T) {
	err := ValidateStruct(&sampleRequest{})
	if err == nil {
		t.Fatal("expected errors")
	}
	if !strings.Contains(err.Error(), "Name is required") {
		t.Errorf("combined message = %q, should mention required Name", err.Error())
	}
}
