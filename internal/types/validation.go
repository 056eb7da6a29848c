package types

import (
	"fmt"
	"net/url"
)

// Validation constraint constants.
const (
	MinLat           = -90.0
	MaxLat           = 90.0
	MinLon           = -180.0
	MaxLon           = 180.0
	MaxNameLength    = 200
	MaxHistoryDays   = 365
	MinGridDimension = 2
	MaxGridDimension = 50
	MinGridRadius    = 0.005
	MaxGridRadius    = 2.0
)

// ValidateCoordinates checks that a lat/lon pair is on the globe.
func ValidateCoordinates(lat, lon float64) error {
	if lat < MinLat || lat > MaxLat {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidLat,
			fmt.Sprintf("latitude %.4f outside [%.0f, %.0f]", lat, MinLat, MaxLat),
			nil, map[string]any{"latitude": lat})
	}
	if lon < MinLon || lon > MaxLon {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidLon,
			fmt.Sprintf("longitude %.4f outside [%.0f, %.0f]", lon, MinLon, MaxLon),
			nil, map[string]any{"longitude": lon})
	}
	return nil
}

// VariableMetadata defines the canonical rules for an observation variable.
type VariableMetadata struct {
	ID          string     `json:"id"`
	Unit        string     `json:"unit"`
	Range       [2]float64 `json:"valid_range"`
	Description string     `json:"description"`
}

// StandardVariables defines the authoritative constraints for observation
// fields. Ingest clients clamp out-of-range readings against these.
var StandardVariables = map[string]VariableMetadata{
	"temperature_c":       {ID: "temperature_c", Unit: "celsius", Range: [2]float64{-60, 60}, Description: "Air temperature at 2m above ground level"},
	"water_temperature_c": {ID: "water_temperature_c", Unit: "celsius", Range: [2]float64{-2, 45}, Description: "Water surface temperature"},
	"precipitation_mm":    {ID: "precipitation_mm", Unit: "mm", Range: [2]float64{0, 500}, Description: "Accumulated precipitation"},
	"wind_speed_kmh":      {ID: "wind_speed_kmh", Unit: "kmh", Range: [2]float64{0, 300}, Description: "Wind speed at 10m above ground level"},
	"humidity_percent":    {ID: "humidity_percent", Unit: "percent", Range: [2]float64{0, 100}, Description: "Relative humidity"},
	"cloud_cover_percent": {ID: "cloud_cover_percent", Unit: "percent", Range: [2]float64{0, 100}, Description: "Cloud cover percentage"},
	"uv_index":            {ID: "uv_index", Unit: "index", Range: [2]float64{0, 15}, Description: "UV radiation index"},
	"cells_per_ml":        {ID: "cells_per_ml", Unit: "cells/mL", Range: [2]float64{0, 1e9}, Description: "Cyanobacteria cell density"},
}

// ClampVariable forces a reading into the valid range for its variable.
// Unknown variables pass through unchanged.
func ClampVariable(variable string, value float64) float64 {
	meta, ok := StandardVariables[variable]
	if !ok {
		return value
	}
	if value < meta.Range[0] {
		return meta.Range[0]
	}
	if value > meta.Range[1] {
		return meta.Range[1]
	}
	return value
}

// ValidateWebhookURL checks that a URL is safe for escalation delivery.
func ValidateWebhookURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("invalid webhook URL")
	}
	if parsed.Scheme != "https" {
		return fmt.Errorf("webhook URL must use HTTPS")
	}
	// SSRF check is performed at delivery time, not validation
	return nil
}

// SSRFBlockedCIDRs defines the IP ranges that MUST be blocked for SSRF
// protection when delivering escalation webhooks.
var SSRFBlockedCIDRs = []string{
	"127.0.0.0/8",    // Localhost
	"10.0.0.0/8",     // Private Class A
	"172.16.0.0/12",  // Private Class B
	"192.168.0.0/16", // Private Class C
	"169.254.0.0/16", // Link-local (AWS Metadata!)
	"0.0.0.0/8",      // Current network
	"224.0.0.0/4",    // Multicast
	"240.0.0.0/4",    // Reserved
	"100.64.0.0/10",  // Shared Address Space (CGN)
	"198.18.0.0/15",  // Benchmark testing
	"fc00::/7",       // IPv6 private
	"fe80::/10",      // IPv6 link-local
	"::1/128",        // IPv6 localhost
}
