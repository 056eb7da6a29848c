package external

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bloomwatch/internal/types"
)

// Open-Meteo API base URLs. Free tier, no API key. Overridable in tests and
// config via the client config structs.
const (
	openMeteoForecastBase = "https://api.open-meteo.com"
	openMeteoArchiveBase  = "https://archive-api.open-meteo.com"
)

// historyYears is how far back the archive temperature series reaches. The
// seasonal baseline needs multiple full annual cycles for day-of-year
// statistics.
const historyYears = 5

// archiveLagDays trims the archive request to data the reanalysis has
// actually published; the most recent two weeks are incomplete.
const archiveLagDays = 14

// rainWindowDays is the precipitation history length for the stagnation and
// runoff models.
const rainWindowDays = 30

// currentWeatherFields and dailyWeatherFields are the Open-Meteo variable
// lists for the combined current+daily forecast call.
var (
	currentWeatherFields = strings.Join([]string{
		"temperature_2m",
		"relative_humidity_2m",
		"precipitation",
		"wind_speed_10m",
		"wind_direction_10m",
		"cloud_cover",
		"uv_index",
	}, ",")

	dailyWeatherFields = strings.Join([]string{
		"temperature_2m_max",
		"temperature_2m_min",
		"temperature_2m_mean",
		"precipitation_sum",
		"uv_index_max",
		"wind_speed_10m_max",
		"wind_direction_10m_dominant",
		"cloud_cover_mean",
	}, ",")
)

// openMeteoCurrent is the wire shape of the forecast API "current" block.
// Pointers distinguish absent variables from zero values.
type openMeteoCurrent struct {
	Time          string   `json:"time"`
	Temperature   *float64 `json:"temperature_2m"`
	Humidity      *float64 `json:"relative_humidity_2m"`
	Precipitation *float64 `json:"precipitation"`
	WindSpeed     *float64 `json:"wind_speed_10m"`
	WindDirection *float64 `json:"wind_direction_10m"`
	CloudCover    *float64 `json:"cloud_cover"`
	UVIndex       *float64 `json:"uv_index"`
}

// openMeteoDaily is the wire shape of the "daily" block: parallel arrays
// indexed by date.
type openMeteoDaily struct {
	Time          []string   `json:"time"`
	TempMax       []*float64 `json:"temperature_2m_max"`
	TempMin       []*float64 `json:"temperature_2m_min"`
	TempMean      []*float64 `json:"temperature_2m_mean"`
	Precipitation []*float64 `json:"precipitation_sum"`
	UVMax         []*float64 `json:"uv_index_max"`
	WindMax       []*float64 `json:"wind_speed_10m_max"`
	WindDirection []*float64 `json:"wind_direction_10m_dominant"`
	CloudCover    []*float64 `json:"cloud_cover_mean"`
}

type openMeteoForecastResponse struct {
	Current openMeteoCurrent `json:"current"`
	Daily   openMeteoDaily   `json:"daily"`
}

type openMeteoArchiveResponse struct {
	Daily openMeteoDaily `json:"daily"`
}

// WeatherClientConfig holds the configuration for creating a WeatherClient.
type WeatherClientConfig struct {
	BaseURL   string // Override for testing; defaults to openMeteoForecastBase
	UserAgent string
	Logger    *slog.Logger
	Clock     types.Clock
}

// WeatherClient fetches current conditions plus the 14-day daily series
// (7 past + 7 forecast) from the Open-Meteo forecast API in a single call.
// It implements types.ObservationSource.
type WeatherClient struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
	clock   types.Clock
}

// NewWeatherClient creates a WeatherClient routed through a fresh BaseClient.
func NewWeatherClient(httpClient *http.Client, cfg WeatherClientConfig) *WeatherClient {
	base := NewBaseClient(httpClient, "openmeteo-forecast", DefaultRetryPolicy(), cfg.UserAgent)
	return NewWeatherClientWithBase(base, cfg)
}

// NewWeatherClientWithBase creates a WeatherClient with a pre-configured
// BaseClient. This is useful for testing when you want to control retry
// and breaker behavior.
func NewWeatherClientWithBase(base *BaseClient, cfg WeatherClientConfig) *WeatherClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openMeteoForecastBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &WeatherClient{
		base:    base,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
		clock:   clock,
	}
}

// Weather fetches current conditions and the daily series for a coordinate.
// Missing variables substitute the documented observation defaults; the
// pipeline degrades confidence instead of failing.
func (c *WeatherClient) Weather(ctx context.Context, lat, lon float64) (*types.WeatherReport, error) {
	params := url.Values{}
	params.Set("latitude", coord(lat))
	params.Set("longitude", coord(lon))
	params.Set("current", currentWeatherFields)
	params.Set("daily", dailyWeatherFields)
	params.Set("past_days", "7")
	params.Set("forecast_days", "7")
	params.Set("timezone", "auto")

	var payload openMeteoForecastResponse
	if err := c.getJSON(ctx, c.baseURL+"/v1/forecast", params, &payload); err != nil {
		return nil, wrapProviderError("Open-Meteo forecast", "Weather", types.ErrCodeUpstreamWeather, err)
	}

	report := &types.WeatherReport{
		Current: types.WeatherSnapshot{
			Temperature:   floatOr(payload.Current.Temperature, types.DefaultAirTemp),
			Humidity:      floatOr(payload.Current.Humidity, types.DefaultHumidity),
			Precipitation: floatOr(payload.Current.Precipitation, types.DefaultPrecipitation),
			WindSpeed:     floatOr(payload.Current.WindSpeed, types.DefaultWindSpeed),
			WindDirection: floatOr(payload.Current.WindDirection, types.DefaultWindDirection),
			CloudCover:    floatOr(payload.Current.CloudCover, types.DefaultCloudCover),
			UVIndex:       floatOr(payload.Current.UVIndex, types.DefaultUVIndex),
			ObservedAt:    c.observedAt(payload.Current.Time),
		},
		Daily: dailyFromWire(payload.Daily),
	}

	c.logger.DebugContext(ctx, "fetched weather report",
		"lat", lat,
		"lon", lon,
		"daily_rows", len(report.Daily),
	)

	return report, nil
}

// observedAt parses the provider's current-conditions timestamp, falling
// back to the wall clock when absent or malformed.
func (c *WeatherClient) observedAt(raw string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return c.clock.Now()
}

func (c *WeatherClient) getJSON(ctx context.Context, rawURL string, params url.Values, dst any) error {
	return getJSON(ctx, c.base, c.logger, rawURL, params, dst)
}

// ArchiveClientConfig holds the configuration for creating an ArchiveClient.
type ArchiveClientConfig struct {
	BaseURL   string // Override for testing; defaults to openMeteoArchiveBase
	UserAgent string
	Logger    *slog.Logger
	Clock     types.Clock
}

// ArchiveClient fetches the multi-year temperature baseline and the recent
// precipitation window from the Open-Meteo archive API. It implements
// types.ArchiveSource.
type ArchiveClient struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
	clock   types.Clock
}

// NewArchiveClient creates an ArchiveClient routed through a fresh BaseClient.
func NewArchiveClient(httpClient *http.Client, cfg ArchiveClientConfig) *ArchiveClient {
	base := NewBaseClient(httpClient, "openmeteo-archive", DefaultRetryPolicy(), cfg.UserAgent)
	return NewArchiveClientWithBase(base, cfg)
}

// NewArchiveClientWithBase creates an ArchiveClient with a pre-configured
// BaseClient.
func NewArchiveClientWithBase(base *BaseClient, cfg ArchiveClientConfig) *ArchiveClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openMeteoArchiveBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &ArchiveClient{
		base:    base,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
		clock:   clock,
	}
}

// TemperatureHistory fetches ~5 years of daily mean temperature ending 14
// days ago. Rows without a mean temperature are dropped; an entirely empty
// series is an error so the caller can degrade confidence.
func (c *ArchiveClient) TemperatureHistory(ctx context.Context, lat, lon float64) (*types.HistoricalSeries, error) {
	end := c.clock.Now().AddDate(0, 0, -archiveLagDays)
	start := end.AddDate(-historyYears, 0, 0)

	params := url.Values{}
	params.Set("latitude", coord(lat))
	params.Set("longitude", coord(lon))
	params.Set("start_date", start.Format("2006-01-02"))
	params.Set("end_date", end.Format("2006-01-02"))
	params.Set("daily", "temperature_2m_max,temperature_2m_min,temperature_2m_mean")
	params.Set("timezone", "auto")

	var payload openMeteoArchiveResponse
	if err := c.getJSON(ctx, c.baseURL+"/v1/archive", params, &payload); err != nil {
		return nil, wrapProviderError("Open-Meteo archive", "TemperatureHistory", types.ErrCodeUpstreamWeather, err)
	}

	series := &types.HistoricalSeries{}
	for i, rawDate := range payload.Daily.Time {
		mean := ptrAt(payload.Daily.TempMean, i)
		if mean == nil {
			continue
		}
		date, err := time.Parse("2006-01-02", rawDate)
		if err != nil {
			continue
		}
		series.Dates = append(series.Dates, date)
		series.Temps = append(series.Temps, *mean)
	}

	if series.Len() == 0 {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamSparse,
			"archive returned no usable temperature rows",
			nil,
		)
	}

	c.logger.DebugContext(ctx, "fetched temperature history",
		"lat", lat,
		"lon", lon,
		"rows", series.Len(),
	)

	return series, nil
}

// RecentRain fetches the 30-day daily precipitation history ending
// yesterday. Missing days count as dry.
func (c *ArchiveClient) RecentRain(ctx context.Context, lat, lon float64) (*types.RainWindow, error) {
	end := c.clock.Now().AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -rainWindowDays)

	params := url.Values{}
	params.Set("latitude", coord(lat))
	params.Set("longitude", coord(lon))
	params.Set("start_date", start.Format("2006-01-02"))
	params.Set("end_date", end.Format("2006-01-02"))
	params.Set("daily", "precipitation_sum,rain_sum")
	params.Set("timezone", "auto")

	var payload openMeteoArchiveResponse
	if err := c.getJSON(ctx, c.baseURL+"/v1/archive", params, &payload); err != nil {
		return nil, wrapProviderError("Open-Meteo archive", "RecentRain", types.ErrCodeUpstreamWeather, err)
	}

	window := &types.RainWindow{Days: make([]float64, 0, len(payload.Daily.Time))}
	for i := range payload.Daily.Time {
		window.Days = append(window.Days, floatAt(payload.Daily.Precipitation, i, 0))
	}

	return window, nil
}

func (c *ArchiveClient) getJSON(ctx context.Context, rawURL string, params url.Values, dst any) error {
	return getJSON(ctx, c.base, c.logger, rawURL, params, dst)
}

// dailyFromWire converts the parallel daily arrays into dated rows, skipping
// entries whose date does not parse and substituting defaults for absent
// variables.
func dailyFromWire(daily openMeteoDaily) []types.DailyWeather {
	rows := make([]types.DailyWeather, 0, len(daily.Time))
	for i, rawDate := range daily.Time {
		date, err := time.Parse("2006-01-02", rawDate)
		if err != nil {
			continue
		}
		tempMax := floatAt(daily.TempMax, i, types.DefaultTempMax)
		tempMin := floatAt(daily.TempMin, i, types.DefaultTempMin)
		rows = append(rows, types.DailyWeather{
			Date:          date,
			TempMax:       tempMax,
			TempMin:       tempMin,
			TempMean:      floatAt(daily.TempMean, i, (tempMax+tempMin)/2),
			Precipitation: floatAt(daily.Precipitation, i, types.DefaultPrecipitation),
			WindMax:       floatAt(daily.WindMax, i, types.DefaultWindSpeed),
			UVMax:         floatAt(daily.UVMax, i, types.DefaultUVIndex),
			CloudCover:    floatAt(daily.CloudCover, i, types.DefaultCloudCover),
		})
	}
	return rows
}

// getJSON performs a GET through the BaseClient and decodes the JSON body.
// Non-2xx statuses that survive the retry layer (4xx other than 429) are
// returned as errors carrying the status and a body excerpt.
func getJSON(ctx context.Context, base *BaseClient, logger *slog.Logger, rawURL string, params url.Values, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+params.Encode(), nil)
	if err != nil {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create upstream request",
			err,
		)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		excerpt := readErrorBody(resp)
		logger.ErrorContext(ctx, "upstream provider error",
			"url", rawURL,
			"status_code", resp.StatusCode,
			"response_body", excerpt,
		)
		return fmt.Errorf("status %d: %s", resp.StatusCode, excerpt)
	}

	if err := decodeJSON(resp, dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// readErrorBody drains up to 4 KB of an error response for logging.
func readErrorBody(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return strings.TrimSpace(string(b))
}

// wrapProviderError preserves the AppError code assigned by BaseClient.Do
// while prefixing the provider and operation; anything else becomes a
// provider-specific upstream error.
func wrapProviderError(provider, operation string, code types.ErrorCode, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return types.NewAppError(
			appErr.Code,
			fmt.Sprintf("%s %s: %s", provider, operation, appErr.Message),
			appErr.Err,
		)
	}
	return types.NewAppError(
		code,
		fmt.Sprintf("%s %s failed", provider, operation),
		err,
	)
}

// coord formats a coordinate rounded to four decimals, matching provider
// cache granularity.
func coord(v float64) string {
	return strconv.FormatFloat(round4(v), 'f', -1, 64)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }
func round5(v float64) float64 { return math.Round(v*1e5) / 1e5 }

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// floatAt reads a parallel-array element, tolerating short or sparse arrays.
func floatAt(vs []*float64, i int, def float64) float64 {
	return floatOr(ptrAt(vs, i), def)
}

func ptrAt(vs []*float64, i int) *float64 {
	if i < 0 || i >= len(vs) {
		return nil
	}
	return vs[i]
}

var (
	_ types.ObservationSource = (*WeatherClient)(nil)
	_ types.ArchiveSource     = (*ArchiveClient)(nil)
)
