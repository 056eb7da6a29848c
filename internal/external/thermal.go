package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"bloomwatch/internal/types"
)

// Default bases for the thermal chain's two non-forecast providers.
const (
	openMeteoMarineBase = "https://marine-api.open-meteo.com"
	nasaPowerBase       = "https://power.larc.nasa.gov"
)

// Source identifiers recorded on ThermalReading.Source, ordered by
// preference. Method and Resolution carry the human-readable attribution.
const (
	thermalSourceSoil   = "openmeteo_soil"
	thermalSourceMarine = "openmeteo_marine"
	thermalSourceERA5   = "era5"
	thermalSourceNASA   = "nasa_power"
	thermalSourceNone   = "none"
)

// era5LagDays accounts for reanalysis publication delay; nasaPowerLagDays
// likewise for MERRA-2.
const (
	era5LagDays      = 5
	nasaPowerLagDays = 3
)

// era5SkinOffset converts the two-metre air mid-range to an approximate
// skin temperature.
const era5SkinOffset = -0.5

// thermalBatchSize is the Open-Meteo batch API location limit per request.
const thermalBatchSize = 50

// quickRetryPolicy keeps failover fast for sources with fallbacks: one retry,
// then the next provider (or the documented default) takes over.
var quickRetryPolicy = RetryPolicy{
	MaxRetries: 1,
	MinWait:    250 * time.Millisecond,
	MaxWait:    2 * time.Second,
}

// ThermalClientConfig holds the configuration for creating a ThermalClient.
// Empty URLs fall back to the public provider endpoints.
type ThermalClientConfig struct {
	ForecastBaseURL string
	MarineBaseURL   string
	ArchiveBaseURL  string // ERA5 reanalysis lives under the archive host
	NASAPowerURL    string
	UserAgent       string
	Logger          *slog.Logger
	Clock           types.Clock

	// BaseOptions apply to every per-provider BaseClient; tests use this
	// to stub out retry sleeps.
	BaseOptions []BaseClientOption
}

// ThermalClient resolves water surface temperature through a chain of free
// meteorological sources, first success wins: Open-Meteo forecast surface
// skin temperature, Open-Meteo marine SST, ERA5 reanalysis mid-range, NASA
// POWER. Each provider gets its own circuit breaker so one dead upstream
// does not poison the rest of the chain. It implements types.ThermalSource
// and types.ThermalGridSource.
type ThermalClient struct {
	forecast *BaseClient
	marine   *BaseClient
	era5     *BaseClient
	nasa     *BaseClient

	forecastURL string
	marineURL   string
	era5URL     string
	nasaURL     string

	logger *slog.Logger
	clock  types.Clock
}

// NewThermalClient creates a ThermalClient with one BaseClient per provider.
func NewThermalClient(httpClient *http.Client, cfg ThermalClientConfig) *ThermalClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}

	newBase := func(name string) *BaseClient {
		return NewBaseClient(httpClient, name, quickRetryPolicy, cfg.UserAgent, cfg.BaseOptions...)
	}

	return &ThermalClient{
		forecast:    newBase("thermal-forecast"),
		marine:      newBase("thermal-marine"),
		era5:        newBase("thermal-era5"),
		nasa:        newBase("nasa-power"),
		forecastURL: baseOr(cfg.ForecastBaseURL, openMeteoForecastBase),
		marineURL:   baseOr(cfg.MarineBaseURL, openMeteoMarineBase),
		era5URL:     baseOr(cfg.ArchiveBaseURL, openMeteoArchiveBase),
		nasaURL:     baseOr(cfg.NASAPowerURL, nasaPowerBase),
		logger:      logger,
		clock:       clock,
	}
}

func baseOr(base, def string) string {
	if base == "" {
		base = def
	}
	return strings.TrimSuffix(base, "/")
}

// WaterTemperature walks the source chain and returns the first usable
// reading. When every source misses it returns the documented fallback
// (source "none", confidence LOW) with a nil error; the caller records the
// degradation in data quality rather than failing the assessment.
func (c *ThermalClient) WaterTemperature(ctx context.Context, lat, lon float64) (*types.ThermalReading, error) {
	type sourceFn struct {
		name  string
		fetch func(context.Context, float64, float64) (*types.ThermalReading, error)
	}

	chain := []sourceFn{
		{thermalSourceSoil, c.fetchForecastSurface},
		{thermalSourceMarine, c.fetchMarineSurface},
		{thermalSourceERA5, c.fetchERA5Surface},
		{thermalSourceNASA, c.fetchNASAPower},
	}

	for _, src := range chain {
		reading, err := src.fetch(ctx, lat, lon)
		if err != nil {
			c.logger.DebugContext(ctx, "thermal source unavailable",
				"source", src.name,
				"error", err.Error(),
			)
			continue
		}
		return reading, nil
	}

	return &types.ThermalReading{
		Source:     thermalSourceNone,
		Method:     "none",
		Resolution: "unknown",
		Confidence: types.ConfidenceLow,
	}, nil
}

// thermalForecastResponse carries the surface skin temperature variables of
// the forecast API.
type thermalForecastResponse struct {
	Current struct {
		SurfaceTemp *float64 `json:"soil_temperature_0cm"`
		AirTemp     *float64 `json:"temperature_2m"`
	} `json:"current"`
	Daily openMeteoDaily `json:"daily"`
}

// fetchForecastSurface reads real-time surface skin temperature
// (soil_temperature_0cm) from the Open-Meteo forecast models. The daily
// series approximates surface temperature by the air mid-range since the
// soil variable has no daily aggregate.
func (c *ThermalClient) fetchForecastSurface(ctx context.Context, lat, lon float64) (*types.ThermalReading, error) {
	params := url.Values{}
	params.Set("latitude", coord(lat))
	params.Set("longitude", coord(lon))
	params.Set("current", "temperature_2m,soil_temperature_0cm,soil_temperature_6cm")
	params.Set("daily", "temperature_2m_max,temperature_2m_min")
	params.Set("past_days", "7")
	params.Set("forecast_days", "1")
	params.Set("timezone", "auto")

	var payload thermalForecastResponse
	if err := getJSON(ctx, c.forecast, c.logger, c.forecastURL+"/v1/forecast", params, &payload); err != nil {
		return nil, err
	}
	if payload.Current.SurfaceTemp == nil {
		return nil, fmt.Errorf("soil_temperature_0cm not present in response")
	}

	return &types.ThermalReading{
		Current:    round1(*payload.Current.SurfaceTemp),
		Series:     midrangeSeries(payload.Daily.TempMax, payload.Daily.TempMin),
		Source:     thermalSourceSoil,
		Method:     "NWP model surface skin temperature (real-time)",
		Resolution: "~11 km (0.1°)",
		Confidence: types.ConfidenceHigh,
	}, nil
}

type marineResponse struct {
	Current struct {
		OceanTemp *float64 `json:"ocean_temperature"`
	} `json:"current"`
	Daily struct {
		Time []string   `json:"time"`
		Max  []*float64 `json:"ocean_temperature_max"`
		Min  []*float64 `json:"ocean_temperature_min"`
	} `json:"daily"`
}

// fetchMarineSurface reads sea/lake surface temperature from the Open-Meteo
// marine API. Inland coordinates typically 404 here and the chain moves on.
func (c *ThermalClient) fetchMarineSurface(ctx context.Context, lat, lon float64) (*types.ThermalReading, error) {
	params := url.Values{}
	params.Set("latitude", coord(lat))
	params.Set("longitude", coord(lon))
	params.Set("current", "ocean_temperature")
	params.Set("daily", "ocean_temperature_max,ocean_temperature_min")
	params.Set("past_days", "7")
	params.Set("forecast_days", "1")
	params.Set("timezone", "auto")

	var payload marineResponse
	if err := getJSON(ctx, c.marine, c.logger, c.marineURL+"/v1/marine", params, &payload); err != nil {
		return nil, err
	}
	if payload.Current.OceanTemp == nil {
		return nil, fmt.Errorf("ocean_temperature not present in response")
	}

	return &types.ThermalReading{
		Current:    round1(*payload.Current.OceanTemp),
		Series:     midrangeSeries(payload.Daily.Max, payload.Daily.Min),
		Source:     thermalSourceMarine,
		Method:     "Satellite SST reanalysis",
		Resolution: "~0.25° (~25 km)",
		Confidence: types.ConfidenceHigh,
	}, nil
}

// fetchERA5Surface estimates skin temperature from the ERA5 reanalysis daily
// mid-range with a fixed offset. ERA5 publishes with a ~5-day lag, so the
// window ends era5LagDays ago.
func (c *ThermalClient) fetchERA5Surface(ctx context.Context, lat, lon float64) (*types.ThermalReading, error) {
	end := c.clock.Now().AddDate(0, 0, -era5LagDays)
	start := end.AddDate(0, 0, -14)

	params := url.Values{}
	params.Set("latitude", coord(lat))
	params.Set("longitude", coord(lon))
	params.Set("start_date", start.Format("2006-01-02"))
	params.Set("end_date", end.Format("2006-01-02"))
	params.Set("daily", "temperature_2m_max,temperature_2m_min")
	params.Set("timezone", "auto")

	var payload openMeteoArchiveResponse
	if err := getJSON(ctx, c.era5, c.logger, c.era5URL+"/v1/era5", params, &payload); err != nil {
		return nil, err
	}

	// Skin estimate needs both extremes; one-sided rows are skipped.
	var series []float64
	for i := range payload.Daily.Time {
		mx, mn := ptrAt(payload.Daily.TempMax, i), ptrAt(payload.Daily.TempMin, i)
		if mx == nil || mn == nil {
			continue
		}
		series = append(series, round1((*mx+*mn)/2+era5SkinOffset))
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no complete temperature rows in reanalysis window")
	}

	return &types.ThermalReading{
		Current:    series[len(series)-1],
		Series:     lastN(series, 7),
		Source:     thermalSourceERA5,
		Method:     "Satellite skin temperature (radiometric)",
		Resolution: "~9 km",
		Confidence: types.ConfidenceMedium,
	}, nil
}

type nasaPowerResponse struct {
	Properties struct {
		Parameter struct {
			TS map[string]*float64 `json:"TS"`
		} `json:"parameter"`
	} `json:"properties"`
}

// fetchNASAPower reads MERRA-2 surface skin temperature (parameter TS) from
// the NASA POWER daily point API. POWER marks missing days with large
// negative fill values, filtered here.
func (c *ThermalClient) fetchNASAPower(ctx context.Context, lat, lon float64) (*types.ThermalReading, error) {
	end := c.clock.Now().AddDate(0, 0, -nasaPowerLagDays)
	start := end.AddDate(0, 0, -10)

	params := url.Values{}
	params.Set("parameters", "TS")
	params.Set("community", "RE")
	params.Set("latitude", coord(lat))
	params.Set("longitude", coord(lon))
	params.Set("start", start.Format("20060102"))
	params.Set("end", end.Format("20060102"))
	params.Set("format", "JSON")

	var payload nasaPowerResponse
	if err := getJSON(ctx, c.nasa, c.logger, c.nasaURL+"/api/temporal/daily/point", params, &payload); err != nil {
		return nil, err
	}
	if len(payload.Properties.Parameter.TS) == 0 {
		return nil, fmt.Errorf("TS parameter not present in response")
	}

	dates := make([]string, 0, len(payload.Properties.Parameter.TS))
	for d := range payload.Properties.Parameter.TS {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var series []float64
	for _, d := range dates {
		v := payload.Properties.Parameter.TS[d]
		if v == nil || *v <= -90 {
			continue
		}
		series = append(series, round1(*v))
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no valid TS values in response")
	}

	return &types.ThermalReading{
		Current:    series[len(series)-1],
		Series:     lastN(series, 7),
		Source:     thermalSourceNASA,
		Method:     "Satellite-derived surface energy balance",
		Resolution: "~0.5° × 0.625°",
		Confidence: types.ConfidenceMedium,
	}, nil
}

// thermalBatchPoint is one element of the batch forecast response.
type thermalBatchPoint struct {
	Current struct {
		SurfaceTemp *float64 `json:"soil_temperature_0cm"`
		AirTemp     *float64 `json:"temperature_2m"`
	} `json:"current"`
}

// SurfaceGrid fetches real surface temperature at n×n points spread radius
// degrees around the center using the Open-Meteo batch API, chunked to the
// provider's location limit. A batch failure degrades to a single-cell grid
// at the center.
func (c *ThermalClient) SurfaceGrid(ctx context.Context, lat, lon float64, n int, radius float64) ([]types.ThermalCell, error) {
	if n < 1 {
		n = 1
	}

	lats := linspace(lat-radius, lat+radius, n)
	lons := linspace(lon-radius, lon+radius, n)

	gridLats := make([]float64, 0, n*n)
	gridLons := make([]float64, 0, n*n)
	for _, gLat := range lats {
		for _, gLon := range lons {
			gridLats = append(gridLats, round4(gLat))
			gridLons = append(gridLons, round4(gLon))
		}
	}

	cells, err := c.fetchBatchSurface(ctx, gridLats, gridLons)
	if err == nil && len(cells) > 0 {
		return cells, nil
	}
	if err != nil {
		c.logger.WarnContext(ctx, "thermal grid batch failed; falling back to center point",
			"error", err.Error(),
			"points", len(gridLats),
		)
	}

	reading, err := c.fetchForecastSurface(ctx, lat, lon)
	if err != nil {
		return nil, wrapProviderError("Open-Meteo forecast", "SurfaceGrid", types.ErrCodeUpstreamThermal, err)
	}
	return []types.ThermalCell{{Lat: round5(lat), Lon: round5(lon), Temp: reading.Current}}, nil
}

// fetchBatchSurface queries soil_temperature_0cm for many coordinates in
// chunks. The batch API returns a JSON array for multiple locations but a
// bare object when the chunk has exactly one.
func (c *ThermalClient) fetchBatchSurface(ctx context.Context, lats, lons []float64) ([]types.ThermalCell, error) {
	cells := make([]types.ThermalCell, 0, len(lats))

	for startIdx := 0; startIdx < len(lats); startIdx += thermalBatchSize {
		endIdx := startIdx + thermalBatchSize
		if endIdx > len(lats) {
			endIdx = len(lats)
		}
		chunkLats := lats[startIdx:endIdx]
		chunkLons := lons[startIdx:endIdx]

		params := url.Values{}
		params.Set("latitude", joinCoords(chunkLats))
		params.Set("longitude", joinCoords(chunkLons))
		params.Set("current", "soil_temperature_0cm,temperature_2m")
		params.Set("timezone", "auto")

		points, err := c.fetchBatchChunk(ctx, params)
		if err != nil {
			return nil, err
		}

		for i, pt := range points {
			if i >= len(chunkLats) {
				break
			}
			temp := pt.Current.SurfaceTemp
			if temp == nil {
				temp = pt.Current.AirTemp
			}
			if temp == nil {
				continue
			}
			cells = append(cells, types.ThermalCell{
				Lat:  round5(chunkLats[i]),
				Lon:  round5(chunkLons[i]),
				Temp: round1(*temp),
			})
		}
	}

	return cells, nil
}

func (c *ThermalClient) fetchBatchChunk(ctx context.Context, params url.Values) ([]thermalBatchPoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.forecastURL+"/v1/forecast?"+params.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create batch request",
			err,
		)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.forecast.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, readErrorBody(resp))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading batch response: %w", err)
	}

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var points []thermalBatchPoint
		if err := json.Unmarshal(body, &points); err != nil {
			return nil, fmt.Errorf("decoding batch response: %w", err)
		}
		return points, nil
	}

	var single thermalBatchPoint
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("decoding batch response: %w", err)
	}
	return []thermalBatchPoint{single}, nil
}

// midrangeSeries builds a daily series from max/min extremes, keeping
// one-sided rows.
func midrangeSeries(tmax, tmin []*float64) []float64 {
	n := len(tmax)
	if len(tmin) > n {
		n = len(tmin)
	}
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		mx, mn := ptrAt(tmax, i), ptrAt(tmin, i)
		switch {
		case mx != nil && mn != nil:
			out = append(out, round1((*mx+*mn)/2))
		case mx != nil:
			out = append(out, round1(*mx))
		case mn != nil:
			out = append(out, round1(*mn))
		}
	}
	return out
}

func lastN(vs []float64, n int) []float64 {
	if len(vs) <= n {
		return vs
	}
	return vs[len(vs)-n:]
}

// linspace returns n evenly spaced values across [lo, hi] inclusive.
func linspace(lo, hi float64, n int) []float64 {
	if n == 1 {
		return []float64{(lo + hi) / 2}
	}
	step := (hi - lo) / float64(n-1)
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

func joinCoords(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = coord(v)
	}
	return strings.Join(parts, ",")
}

var (
	_ types.ThermalSource     = (*ThermalClient)(nil)
	_ types.ThermalGridSource = (*ThermalClient)(nil)
)
