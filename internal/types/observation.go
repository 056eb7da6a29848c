package types

import "time"

// Defaults substituted for missing observation fields. The pipeline never
// fails on an absent input; it fills these and degrades confidence instead.
const (
	DefaultAirTemp       = 20.0
	DefaultTempMax       = 22.0
	DefaultTempMin       = 15.0
	DefaultWindSpeed     = 10.0
	DefaultWindDirection = 180.0
	DefaultUVIndex       = 5.0
	DefaultCloudCover    = 50.0
	DefaultHumidity      = 60.0
	DefaultPrecipitation = 0.0
)

// WeatherSnapshot holds the current conditions at a coordinate.
type WeatherSnapshot struct {
	Temperature   float64   `json:"temperature"`    // air, degrees C
	Humidity      float64   `json:"humidity"`       // percent
	Precipitation float64   `json:"precipitation"`  // mm, current hour
	WindSpeed     float64   `json:"wind_speed"`     // km/h
	WindDirection float64   `json:"wind_direction"` // meteorological bearing, degrees
	CloudCover    float64   `json:"cloud_cover"`    // percent
	UVIndex       float64   `json:"uv_index"`
	ObservedAt    time.Time `json:"observed_at"`
}

// DailyWeather is one entry of the 14-day daily series (7 past + 7 forecast).
type DailyWeather struct {
	Date          time.Time `json:"date"`
	TempMax       float64   `json:"temp_max"`
	TempMin       float64   `json:"temp_min"`
	TempMean      float64   `json:"temp_mean"`
	Precipitation float64   `json:"precipitation"` // daily sum, mm
	WindMax       float64   `json:"wind_max"`      // km/h
	UVMax         float64   `json:"uv_max"`
	CloudCover    float64   `json:"cloud_cover"` // daily mean, percent
}

// DailyForecast is the forecast-only view of a daily entry, used by the
// forecast engine when synthesizing future-day snapshots.
type DailyForecast = DailyWeather

// WeatherReport is the combined payload of one forecast-provider call:
// current conditions plus the 14-day daily series (7 past + 7 forecast).
type WeatherReport struct {
	Current WeatherSnapshot `json:"current"`
	Daily   []DailyWeather  `json:"daily"`
}

// HistoricalSeries is the multi-year daily temperature archive used for
// the seasonal baseline, z-scores, and percentile ranking.
type HistoricalSeries struct {
	Dates []time.Time `json:"dates"`
	Temps []float64   `json:"temps"` // daily mean air temperature, degrees C
}

// Len returns the number of rows in the series.
func (h HistoricalSeries) Len() int { return len(h.Temps) }

// RainWindow is the trailing daily precipitation history, newest last.
type RainWindow struct {
	Days []float64 `json:"days"` // mm per day
}

// ThermalReading is a satellite or model-derived water surface temperature.
type ThermalReading struct {
	Current    float64    `json:"current"` // degrees C
	Series     []float64  `json:"series"`  // recent daily values, oldest first
	Source     string     `json:"source"`  // e.g. "openmeteo_soil", "nasa_power", "none"
	Method     string     `json:"method"`
	Resolution string     `json:"resolution"`
	Confidence Confidence `json:"confidence"`
}

// Missing reports whether no thermal source answered.
func (t ThermalReading) Missing() bool {
	return t.Source == "" || t.Source == "none"
}

// DensityAnchor is an external ground-truth cell density estimate used to
// calibrate the aggregated score. Source "unavailable" disables the blend.
type DensityAnchor struct {
	Cells    float64  `json:"cells"` // cells/mL
	Severity Severity `json:"severity"`
	Source   string   `json:"source"`
}

// Available reports whether the anchor carries a usable reading.
func (d DensityAnchor) Available() bool {
	return d.Source != "" && d.Source != "unavailable" && d.Severity != SeverityUnknown
}

// UnavailableAnchor is the documented fallback when the density source
// cannot be reached.
func UnavailableAnchor() DensityAnchor {
	return DensityAnchor{Cells: 0, Severity: SeverityUnknown, Source: "unavailable"}
}

// LandCover holds land-use composition percentages around a coordinate.
// Percentages are of total area and need not sum to exactly 100.
type LandCover struct {
	Agricultural float64 `json:"agricultural"`
	Urban        float64 `json:"urban"`
	Forest       float64 `json:"forest"`
	Water        float64 `json:"water"`
	Wetland      float64 `json:"wetland"`
	Industrial   float64 `json:"industrial"`
	Source       string  `json:"source"`
}

// DefaultLandCover is the global fallback composition when no shapefile or
// catalog match is available.
func DefaultLandCover() LandCover {
	return LandCover{
		Agricultural: 25,
		Urban:        15,
		Forest:       35,
		Water:        10,
		Wetland:      5,
		Industrial:   5,
		Source:       "default",
	}
}

// DataQuality records which sources answered and grades overall confidence.
type DataQuality struct {
	Confidence   Confidence        `json:"confidence"`
	SourceErrors map[string]string `json:"source_errors,omitempty"`
}

// RawObservation is the fully-merged input to one pipeline run. It is
// immutable once fetched; the pipeline never mutates it.
type RawObservation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	Current WeatherSnapshot `json:"current"`
	Daily   []DailyWeather  `json:"daily"` // 7 past + up to 7 forecast days

	History HistoricalSeries `json:"history"`
	Rain    RainWindow       `json:"rain"`

	Thermal *ThermalReading `json:"thermal,omitempty"`
	Density DensityAnchor   `json:"density"`
	Land    LandCover       `json:"land"`

	Quality   DataQuality `json:"quality"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// PastDaily returns the daily entries strictly before the observation time.
func (o *RawObservation) PastDaily() []DailyWeather {
	return o.splitDaily(true)
}

// ForecastDaily returns the daily entries on or after the observation time.
func (o *RawObservation) ForecastDaily() []DailyWeather {
	return o.splitDaily(false)
}

func (o *RawObservation) splitDaily(past bool) []DailyWeather {
	cutoff := o.FetchedAt.Truncate(24 * time.Hour)
	var out []DailyWeather
	for _, d := range o.Daily {
		isPast := d.Date.Before(cutoff)
		if isPast == past {
			out = append(out, d)
		}
	}
	return out
}
