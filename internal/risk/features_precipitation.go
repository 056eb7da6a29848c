package risk

import (
	"fmt"
	"math"

	"bloomwatch/internal/types"
)

// PrecipitationFeatures is the output of the rainfall extractor: cumulative
// windows, dry-spell length, the stagnation index, and flush detection.
type PrecipitationFeatures struct {
	Rainfall48h float64 `json:"rainfall_48h"`
	Rainfall7d  float64 `json:"rainfall_7d"`
	Rainfall30d float64 `json:"rainfall_30d"`

	// DaysSinceRain counts days since the last significant rain event;
	// equals the series length when the series holds no such event.
	DaysSinceRain int `json:"days_since_significant_rain"`

	// StagnationIndex is 1 - (recent weekly rain / expected weekly rain),
	// in [0,1]. High values mean the water body is poorly flushed.
	StagnationIndex float64 `json:"stagnation_index"`

	// FirstFlush is 0, 0.6 or 1.0: a burst of rain after a dry spell that
	// delivers accumulated nutrients in one pulse.
	FirstFlush float64 `json:"first_flush_event"`

	// Intensity weights recent rain exponentially (decay 0.3/day),
	// normalized to [0,1].
	Intensity float64 `json:"rainfall_intensity"`

	Factors []types.Factor `json:"factors,omitempty"`
}

// PrecipitationFeatures extracts rainfall features from the trailing daily
// series, newest last. The dedicated rainfall history wins when it holds
// more than a few days; otherwise the past week of the daily forecast
// series stands in, and with no data at all a single dry day is assumed.
func (m *Model) PrecipitationFeatures(obs *types.RawObservation) PrecipitationFeatures {
	series := obs.Rain.Days
	if len(series) <= 3 {
		series = pastField(obs, func(d types.DailyWeather) float64 { return d.Precipitation })
	}
	if len(series) == 0 {
		series = []float64{0}
	}

	var f PrecipitationFeatures

	rain48 := 0.0
	if len(series) >= 2 {
		rain48 = sumOf(series[len(series)-2:])
	}
	rain7 := sumOf(series)
	if len(series) >= 7 {
		rain7 = sumOf(series[len(series)-7:])
	}
	f.Rainfall48h = roundTo(rain48, 1)
	f.Rainfall7d = roundTo(rain7, 1)
	f.Rainfall30d = roundTo(sumOf(series), 1)

	f.DaysSinceRain = len(series)
	for i := len(series) - 1; i >= 0; i-- {
		if series[i] >= m.cal.RainSignificant {
			f.DaysSinceRain = len(series) - 1 - i
			break
		}
	}

	stagnation := 0.5
	if len(series) >= 7 {
		weekly := sumOf(series[len(series)-7:])
		var windows []float64
		for i := 0; i+7 <= len(series); i++ {
			windows = append(windows, sumOf(series[i:i+7]))
		}
		expected := math.Max(medianOf(windows), 5.0)
		stagnation = 1.0 - math.Min(weekly/expected, 1.0)
	}
	f.StagnationIndex = roundTo(math.Max(0, stagnation), 3)

	if f.DaysSinceRain <= 2 && rain48 >= m.cal.FirstFlushRain && len(series) >= 5 {
		dryDays := 0
		for _, r := range series[len(series)-5 : len(series)-2] {
			if r < m.cal.DryDayMax {
				dryDays++
			}
		}
		switch {
		case dryDays >= m.cal.FirstFlushDryDays:
			f.FirstFlush = 1.0
		case dryDays >= 2 && rain48 >= m.cal.RainHeavy:
			f.FirstFlush = 0.6
		}
	}

	const decayRate = 0.3
	intensity := 0.0
	for i := len(series) - 1; i >= 0; i-- {
		intensity += series[i] * math.Exp(-decayRate*float64(len(series)-1-i))
	}
	f.Intensity = roundTo(math.Min(intensity/50.0, 1.0), 3)

	if f.DaysSinceRain >= m.cal.StagnationDays {
		f.Factors = append(f.Factors, types.Factor{
			Code:   "dry_spell",
			Detail: fmt.Sprintf("No significant rain for %d days — stagnant conditions", f.DaysSinceRain),
		})
	}
	if f.FirstFlush >= 0.6 {
		f.Factors = append(f.Factors, types.Factor{
			Code:   "first_flush",
			Detail: fmt.Sprintf("First flush event: %.0fmm rain after dry period", rain48),
		})
	}
	if rain48 >= m.cal.RainHeavy {
		f.Factors = append(f.Factors, types.Factor{
			Code:   "heavy_rain",
			Detail: fmt.Sprintf("Heavy rainfall (%.0fmm in 48h) driving nutrient runoff", rain48),
		})
	}
	if f.StagnationIndex > 0.7 {
		f.Factors = append(f.Factors, types.Factor{
			Code:   "high_stagnation",
			Detail: fmt.Sprintf("High stagnation index (%.2f) — water body poorly flushed", f.StagnationIndex),
		})
	}

	return f
}
