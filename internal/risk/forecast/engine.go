// Package forecast projects the bloom risk model forward over the coming
// week for the BloomWatch platform. Each future day is a full re-run of
// the model chain under synthesized conditions, never a score
// extrapolation, so driver attribution stays valid at every horizon. The
// companion quantifier attaches Monte Carlo uncertainty bands.
package forecast

import (
	"math"
	"time"

	"bloomwatch/internal/risk"
	"bloomwatch/internal/types"
)

const (
	// HorizonDays is the number of future days projected.
	HorizonDays = 7

	// rollingCap bounds the synthetic rolling precipitation window.
	rollingCap = 30

	// Synthetic snapshots have no humidity or wind-direction forecast;
	// both get neutral values.
	syntheticHumidity = 60.0
	syntheticWindDir  = 180.0
)

// Backfill defaults when the forecast arrays hold nothing at all.
const (
	defaultTempMean = 20.0
	defaultTempMax  = 22.0
	defaultTempMin  = 15.0
	defaultPrecip   = 0.0
	defaultWind     = 10.0
	defaultUV       = 5.0
	defaultCloud    = 50.0
)

// Engine re-runs the risk chain once per future day.
type Engine struct {
	model *risk.Model
}

// NewEngine constructs an Engine on the given model.
func NewEngine(model *risk.Model) *Engine {
	return &Engine{model: model}
}

// Project builds the 8-entry day-by-day projection: today's
// already-computed result followed by seven synthetic re-evaluations.
// P10/P90 bands stay empty; the Quantifier fills them.
func (e *Engine) Project(obs *types.RawObservation, current types.RiskResult) types.ForecastSeries {
	inputs := forecastInputs(obs)
	today := obs.FetchedAt.Truncate(24 * time.Hour)

	series := types.ForecastSeries{
		Dates:      []time.Time{today},
		Scores:     []float64{current.Score},
		Severities: []types.Severity{current.Severity},
		MeanTemps:  []float64{round1(obs.Current.Temperature)},
		Precip:     []float64{round1(obs.Current.Precipitation)},
	}

	window := pastPrecipWindow(obs)
	for i := 0; i < HorizonDays; i++ {
		window = append(window, inputs.precip[i])
		if len(window) > rollingCap {
			window = window[1:]
		}

		at := today.AddDate(0, 0, i+1)
		ev := e.model.Evaluate(syntheticDay(obs, at, inputs, i, window))

		series.Dates = append(series.Dates, at)
		series.Scores = append(series.Scores, ev.Risk.Score)
		series.Severities = append(series.Severities, ev.Risk.Severity)
		series.MeanTemps = append(series.MeanTemps, round1(inputs.tmean[i]))
		series.Precip = append(series.Precip, round1(inputs.precip[i]))
	}
	return series
}

// dayInputs are the forecast arrays padded to exactly HorizonDays each.
type dayInputs struct {
	tmean  []float64
	tmax   []float64
	tmin   []float64
	precip []float64
	wind   []float64
	uv     []float64
	cloud  []float64
}

func forecastInputs(obs *types.RawObservation) dayInputs {
	fc := obs.ForecastDaily()
	get := func(pick func(types.DailyWeather) float64) []float64 {
		out := make([]float64, 0, len(fc))
		for _, d := range fc {
			out = append(out, pick(d))
		}
		return out
	}
	return dayInputs{
		tmean:  fill(get(func(d types.DailyWeather) float64 { return d.TempMean }), defaultTempMean),
		tmax:   fill(get(func(d types.DailyWeather) float64 { return d.TempMax }), defaultTempMax),
		tmin:   fill(get(func(d types.DailyWeather) float64 { return d.TempMin }), defaultTempMin),
		precip: fill(get(func(d types.DailyWeather) float64 { return d.Precipitation }), defaultPrecip),
		wind:   fill(get(func(d types.DailyWeather) float64 { return d.WindMax }), defaultWind),
		uv:     fill(get(func(d types.DailyWeather) float64 { return d.UVMax }), defaultUV),
		cloud:  fill(get(func(d types.DailyWeather) float64 { return d.CloudCover }), defaultCloud),
	}
}

// fill pads or truncates to exactly HorizonDays, carrying the last known
// value forward; the fallback stands in when nothing is known at all.
func fill(values []float64, fallback float64) []float64 {
	out := make([]float64, HorizonDays)
	last := fallback
	for i := range out {
		if i < len(values) {
			last = values[i]
		}
		out[i] = last
	}
	return out
}

// pastPrecipWindow seeds the rolling precipitation window with the past
// week, zero-padded on the old side to a full seven days.
func pastPrecipWindow(obs *types.RawObservation) []float64 {
	past := obs.PastDaily()
	if len(past) > HorizonDays {
		past = past[len(past)-HorizonDays:]
	}
	window := make([]float64, 0, rollingCap)
	for i := len(past); i < HorizonDays; i++ {
		window = append(window, 0)
	}
	for _, d := range past {
		window = append(window, d.Precipitation)
	}
	return window
}

// syntheticDay synthesizes the model input for one forecast day: the
// day's values as current conditions, a flat week of daily entries, and
// the rolling precipitation window as rainfall history. Site-fixed
// inputs (land cover, temperature history, density anchor) carry over
// from the base observation so re-runs score against the same baseline.
func syntheticDay(base *types.RawObservation, at time.Time, inputs dayInputs, i int, window []float64) *types.RawObservation {
	trailing := window
	if len(trailing) > HorizonDays {
		trailing = trailing[len(trailing)-HorizonDays:]
	}

	daily := make([]types.DailyWeather, 0, HorizonDays)
	for j := 0; j < HorizonDays; j++ {
		p := 0.0
		if j < len(trailing) {
			p = trailing[j]
		}
		daily = append(daily, types.DailyWeather{
			Date:          at.AddDate(0, 0, j-HorizonDays),
			TempMax:       inputs.tmax[i],
			TempMin:       inputs.tmin[i],
			TempMean:      inputs.tmean[i],
			Precipitation: p,
			WindMax:       inputs.wind[i],
			UVMax:         inputs.uv[i],
			CloudCover:    inputs.cloud[i],
		})
	}

	return &types.RawObservation{
		Latitude:  base.Latitude,
		Longitude: base.Longitude,
		Current: types.WeatherSnapshot{
			Temperature:   inputs.tmean[i],
			Humidity:      syntheticHumidity,
			Precipitation: inputs.precip[i],
			WindSpeed:     inputs.wind[i],
			WindDirection: syntheticWindDir,
			CloudCover:    inputs.cloud[i],
			UVIndex:       inputs.uv[i],
			ObservedAt:    at,
		},
		Daily:     daily,
		History:   base.History,
		Rain:      types.RainWindow{Days: append([]float64(nil), window...)},
		Land:      base.Land,
		Density:   base.Density,
		Quality:   base.Quality,
		FetchedAt: at,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
