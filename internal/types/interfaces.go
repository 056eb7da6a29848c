package types

import (
	"context"
	"time"
)

// Validator is implemented by entities to self-validate.
type Validator interface {
	Validate() error
}

// RateLimitInfo contains the current state of a rate limit.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter provides rate limiting for API requests.
type RateLimiter interface {
	// Allow checks if the caller can perform the action.
	Allow(ctx context.Context, callerID string, action string) (RateLimitInfo, bool, error)
}

// ObservationSource retrieves the combined current + 14-day daily weather
// payload for a coordinate in one provider call. Implemented by the
// Open-Meteo forecast client and by test fakes.
type ObservationSource interface {
	Weather(ctx context.Context, lat, lon float64) (*WeatherReport, error)
}

// ArchiveSource retrieves long-term history for a coordinate: the
// multi-year daily temperature archive and the trailing precipitation
// window.
type ArchiveSource interface {
	TemperatureHistory(ctx context.Context, lat, lon float64) (*HistoricalSeries, error)
	RecentRain(ctx context.Context, lat, lon float64) (*RainWindow, error)
}

// ThermalSource retrieves a water temperature estimate for a coordinate.
type ThermalSource interface {
	WaterTemperature(ctx context.Context, lat, lon float64) (*ThermalReading, error)
}

// ThermalGridSource retrieves an n-by-n grid of surface temperature
// estimates centered on a coordinate.
type ThermalGridSource interface {
	SurfaceGrid(ctx context.Context, lat, lon float64, n int, radius float64) ([]ThermalCell, error)
}

// DensityAnchorSource retrieves the nearest ground-truth cell density estimate.
type DensityAnchorSource interface {
	NearestAnchor(ctx context.Context, lat, lon float64) (*DensityAnchor, error)
}

// LandCoverSource retrieves the land cover composition around a coordinate.
type LandCoverSource interface {
	Composition(ctx context.Context, lat, lon float64) (*LandCover, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Logger defines the structured logging interface used throughout the platform.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}
