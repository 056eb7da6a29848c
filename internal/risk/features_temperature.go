package risk

import (
	"fmt"
	"math"
	"time"

	"bloomwatch/internal/types"
)

// TemperatureFeatures is the output of the temperature extractor: derived
// water temperature, anomaly statistics against the historical archive, and
// the short-term warming trend.
type TemperatureFeatures struct {
	CurrentAirTemp float64 `json:"current_air_temp"`
	AvgAirTemp7d   float64 `json:"avg_air_temp_7d"`

	// WaterTemp is the surface water temperature the rest of the model
	// runs on: the satellite reading when one is usable, otherwise the
	// air-to-water estimate.
	WaterTemp       float64          `json:"water_temp"`
	WaterTempSource string           `json:"water_temp_source"` // "satellite" or "estimated"
	SourceDetail    string           `json:"water_temp_source_detail"`
	Confidence      types.Confidence `json:"water_temp_confidence"`

	WarmingTrend     float64 `json:"warming_trend_per_day"`
	TrendSignificant bool    `json:"trend_significant"`

	ZScore           float64 `json:"z_score"`
	AnomalyC         float64 `json:"temp_anomaly_c"`
	Percentile       float64 `json:"percentile"`
	SeasonalBaseline float64 `json:"seasonal_baseline"`

	BloomTempProbability float64 `json:"bloom_temp_probability"`
	AboveBloomThreshold  bool    `json:"above_bloom_threshold"`

	Factors []types.Factor `json:"factors,omitempty"`
}

// EstimateWaterTemp derives surface water temperature from air temperature
// (Livingstone & Lotter 1998). Wind strips heat from the surface layer;
// humid air slows evaporative cooling. Fallback path only; satellite
// readings win when present.
func EstimateWaterTemp(currentAirTemp, avgAirTemp7d, windSpeedKmh, humidityPct float64) float64 {
	base := 0.65*currentAirTemp + 0.35*avgAirTemp7d
	windCooling := math.Max(0, (windSpeedKmh-5.0)*0.08)
	humidityCorrection := (humidityPct - 50.0) / 100.0 * 1.5
	return roundTo(math.Max(base-windCooling+humidityCorrection, 0.5), 1)
}

// TemperatureFeatures extracts all temperature-derived features from an
// observation. Pure; the evaluation instant is obs.FetchedAt.
func (m *Model) TemperatureFeatures(obs *types.RawObservation) TemperatureFeatures {
	cur := obs.Current

	pastTemps := pastField(obs, func(d types.DailyWeather) float64 { return d.TempMean })
	avg7d := cur.Temperature
	if len(pastTemps) > 0 {
		avg7d = meanOf(pastTemps)
	}

	f := TemperatureFeatures{
		CurrentAirTemp: cur.Temperature,
		AvgAirTemp7d:   roundTo(avg7d, 1),
		Percentile:     50.0,
	}

	if obs.Thermal != nil && obs.Thermal.Source != "" && obs.Thermal.Source != "none" {
		f.WaterTemp = roundTo(obs.Thermal.Current, 1)
		f.WaterTempSource = "satellite"
		f.SourceDetail = obs.Thermal.Source
		f.Confidence = obs.Thermal.Confidence
		if f.Confidence == "" {
			f.Confidence = types.ConfidenceMedium
		}
	} else {
		f.WaterTemp = EstimateWaterTemp(cur.Temperature, avg7d, cur.WindSpeed, cur.Humidity)
		f.WaterTempSource = "estimated"
		f.SourceDetail = "Livingstone & Lotter 1998 (air→water model)"
		f.Confidence = types.ConfidenceLow
	}

	// Warming trend over the last week: the satellite skin series when it
	// has enough points, else the daily air means.
	trendSeries := pastTemps
	if obs.Thermal != nil && len(obs.Thermal.Series) >= 4 {
		trendSeries = obs.Thermal.Series
	}
	if len(trendSeries) >= 4 {
		slope, p := olsTrend(trendSeries)
		f.WarmingTrend = roundTo(slope, 3)
		f.TrendSignificant = p < 0.1
	}

	// Anomaly statistics need a real archive behind them.
	f.SeasonalBaseline = roundTo(avg7d, 1)
	if obs.History.Len() > 30 {
		month := obs.FetchedAt.Month()
		sameMonth := monthTemps(obs.History, month)
		if len(sameMonth) < 10 {
			sameMonth = append([]float64(nil), obs.History.Temps...)
		}

		histMean := meanOf(sameMonth)
		histStd := sampleStd(sameMonth)
		if histStd > 0 && !math.IsNaN(histStd) {
			f.ZScore = roundTo((cur.Temperature-histMean)/histStd, 2)
			f.AnomalyC = roundTo(cur.Temperature-histMean, 2)
		}
		f.Percentile = roundTo(percentileOfScore(sameMonth, cur.Temperature), 1)
		f.SeasonalBaseline = roundTo(harmonicBaseline(obs.History, obs.FetchedAt.YearDay()), 1)
	}

	f.BloomTempProbability = roundTo(sigmoid(0.3*(f.WaterTemp-m.cal.TempOptimalMin)), 3)
	f.AboveBloomThreshold = f.WaterTemp >= m.cal.TempOptimalMin

	if f.WaterTemp > m.cal.TempOptimalMin {
		f.Factors = append(f.Factors, types.Factor{
			Code:   "above_bloom_threshold",
			Detail: fmt.Sprintf("Water temp %s°C exceeds bloom threshold (%s°C)", trimFloat(f.WaterTemp), trimFloat(m.cal.TempOptimalMin)),
		})
	}
	if f.WarmingTrend > 0.3 && f.TrendSignificant {
		f.Factors = append(f.Factors, types.Factor{
			Code:   "warming_trend",
			Detail: fmt.Sprintf("Temperature rising %s°C/day", trimFloat(f.WarmingTrend)),
		})
	}
	if f.ZScore > 1.5 {
		f.Factors = append(f.Factors, types.Factor{
			Code:   "temp_anomaly",
			Detail: fmt.Sprintf("Temperature anomaly: z-score %s (significantly above baseline)", trimFloat(f.ZScore)),
		})
	}
	if f.Percentile > 90 {
		f.Factors = append(f.Factors, types.Factor{
			Code:   "temp_percentile",
			Detail: fmt.Sprintf("Current temp is in %sth percentile for this month", trimFloat(f.Percentile)),
		})
	}
	if f.WaterTempSource == "satellite" {
		f.Factors = append(f.Factors, types.Factor{
			Code:   "satellite_thermal",
			Detail: "Water temp from " + f.SourceDetail,
		})
	}

	return f
}

// monthTemps returns the archive temperatures whose date falls in the
// given calendar month.
func monthTemps(h types.HistoricalSeries, month time.Month) []float64 {
	var out []float64
	for i, d := range h.Dates {
		if i >= len(h.Temps) {
			break
		}
		if d.Month() == month {
			out = append(out, h.Temps[i])
		}
	}
	return out
}

// harmonicBaseline fits T(doy) = a + b*sin(2π doy/365) + c*cos(2π doy/365)
// by least squares over the archive and evaluates it at the given day of
// year. Falls back to the archive mean when the fit is underdetermined.
func harmonicBaseline(h types.HistoricalSeries, doy int) float64 {
	var (
		temps []float64
		sins  []float64
		coss  []float64
	)
	for i, t := range h.Temps {
		if math.IsNaN(t) || i >= len(h.Dates) {
			continue
		}
		d := float64(h.Dates[i].YearDay())
		temps = append(temps, t)
		sins = append(sins, math.Sin(2*math.Pi*d/365))
		coss = append(coss, math.Cos(2*math.Pi*d/365))
	}
	if len(temps) < 30 {
		return meanOf(temps)
	}

	// Normal equations for the three-coefficient fit.
	n := float64(len(temps))
	var ss, sc, sss, scc, ssc, sy, sys, syc float64
	for i, y := range temps {
		s, c := sins[i], coss[i]
		ss += s
		sc += c
		sss += s * s
		scc += c * c
		ssc += s * c
		sy += y
		sys += y * s
		syc += y * c
	}
	a, b, c, ok := solve3x3(
		[3][3]float64{
			{n, ss, sc},
			{ss, sss, ssc},
			{sc, ssc, scc},
		},
		[3]float64{sy, sys, syc},
	)
	if !ok {
		return meanOf(temps)
	}
	angle := 2 * math.Pi * float64(doy) / 365
	return a + b*math.Sin(angle) + c*math.Cos(angle)
}

// solve3x3 solves A x = v by Cramer's rule. ok is false when A is singular.
func solve3x3(a [3][3]float64, v [3]float64) (x0, x1, x2 float64, ok bool) {
	det := func(m [3][3]float64) float64 {
		return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
			m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
			m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
	}
	d := det(a)
	if math.Abs(d) < 1e-12 {
		return 0, 0, 0, false
	}
	col := func(m [3][3]float64, i int) [3][3]float64 {
		for r := 0; r < 3; r++ {
			m[r][i] = v[r]
		}
		return m
	}
	return det(col(a, 0)) / d, det(col(a, 1)) / d, det(col(a, 2)) / d, true
}
