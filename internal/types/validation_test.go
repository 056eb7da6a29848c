package types

import (
	"errors"
	"testing"
)

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		wantCode ErrorCode
	}{
		{name: "valid mid-latitude", lat: 41.6833, lon: -82.8833},
		{name: "valid extremes", lat: 90, lon: -180},
		{name: "latitude too high", lat: 90.01, lon: 0, wantCode: ErrCodeValidationInvalidLat},
		{name: "latitude too low", lat: -95, lon: 0, wantCode: ErrCodeValidationInvalidLat},
		{name: "longitude too high", lat: 0, lon: 181, wantCode: ErrCodeValidationInvalidLon},
		{name: "longitude too low", lat: 0, lon: -180.5, wantCode: ErrCodeValidationInvalidLon},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoordinates(tt.lat, tt.lon)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			var appErr *AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected AppError, got %T", err)
			}
			if appErr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", appErr.Code, tt.wantCode)
			}
		})
	}
}

func TestClampVariable(t *testing.T) {
	tests := []struct {
		variable string
		value    float64
		want     float64
	}{
		{"temperature_c", 25.5, 25.5},
		{"temperature_c", -100, -60},
		{"temperature_c", 99, 60},
		{"uv_index", 22, 15},
		{"uv_index", -1, 0},
		{"humidity_percent", 140, 100},
		{"cells_per_ml", -5, 0},
		{"unknown_variable", 1e12, 1e12},
	}
	for _, tt := range tests {
		if got := ClampVariable(tt.variable, tt.value); got != tt.want {
			t.Errorf("ClampVariable(%q, %.1f) = %.1f, want %.1f", tt.variable, tt.value, got, tt.want)
		}
	}
}

func TestValidateWebhookURL(t *testing.T) {
	if err := ValidateWebhookURL("https://hooks.example.com/bloom"); err != nil {
		t.Errorf("valid HTTPS URL rejected: %v", err)
	}
	if err := ValidateWebhookURL("http://hooks.example.com/bloom"); err == nil {
		t.Error("plain HTTP URL should be rejected")
	}
	if err := ValidateWebhookURL("not a url"); err == nil {
		t.Error("garbage URL should be rejected")
	}
}

func TestRawObservationDailySplit(t *testing.T) {
	obs := buildObservationFixture()
	past := obs.PastDaily()
	future := obs.ForecastDaily()
	if len(past) != 7 {
		t.Errorf("PastDaily() returned %d entries, want 7", len(past))
	}
	if len(future) != 7 {
		t.Errorf("ForecastDaily() returned %d entries, want 7", len(future))
	}
	for _, d := range past {
		if !d.Date.Before(obs.FetchedAt) {
			t.Errorf("past entry %v is not before fetch time", d.Date)
		}
	}
}
