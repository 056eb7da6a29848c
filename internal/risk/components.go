package risk

import (
	"fmt"
	"math"

	"bloomwatch/internal/types"
)

// ComponentResult is a clamped 0-100 component score plus the qualitative
// factors behind it. When an extractor produced no factors of its own, the
// scoring layer annotates the dominant contributors instead.
type ComponentResult struct {
	Score   float64        `json:"score"`
	Factors []types.Factor `json:"factors,omitempty"`
}

// TemperatureScoreResult keeps the intermediate terms of the temperature
// component visible for diagnostics.
type TemperatureScoreResult struct {
	Score      float64        `json:"score"`
	Bracket    float64        `json:"absolute_bracket"`
	ZComponent float64        `json:"z_component"`
	TrendBonus float64        `json:"trend_bonus"`
	Factors    []types.Factor `json:"factors,omitempty"`
}

// TemperatureScore combines the absolute biological bracket with the
// statistical anomaly, then adds warming-trend and percentile bonuses.
// The bracket dominates (0.60 weight): a 27°C lake is bloom-prone even
// when 27°C is normal for the season.
func (m *Model) TemperatureScore(f TemperatureFeatures) TemperatureScoreResult {
	cal := m.cal
	t := f.WaterTemp

	var bracket float64
	switch {
	case t < cal.TempMinGrowth:
		bracket = 5.0
	case t < cal.TempAccelerated:
		bracket = 20.0 + (t-cal.TempMinGrowth)/(cal.TempAccelerated-cal.TempMinGrowth)*20.0
	case t < cal.TempOptimalMin:
		bracket = 40.0 + (t-cal.TempAccelerated)/(cal.TempOptimalMin-cal.TempAccelerated)*25.0
	case t < cal.TempPeak:
		bracket = 65.0 + (t-cal.TempOptimalMin)/(cal.TempPeak-cal.TempOptimalMin)*25.0
	case t < cal.TempOptimalMax:
		bracket = 90.0 + (t-cal.TempPeak)/(cal.TempOptimalMax-cal.TempPeak)*5.0
	default:
		// Heat stress above the optimal band shaves a little off.
		bracket = 95.0 - (t-cal.TempOptimalMax)*3.0
		if bracket < 80.0 {
			bracket = 80.0
		}
	}
	bracket = clampf(bracket, 0, 100)

	// z=0 maps to 50, z=+2 to ~83, z=-2 to ~17.
	zComponent := sigmoid(0.8*f.ZScore) * 100

	base := 0.60*bracket + 0.40*zComponent

	var trendBonus float64
	switch {
	case f.WarmingTrend > 0.5 && f.TrendSignificant:
		trendBonus = math.Min(f.WarmingTrend*12.0, 20.0)
	case f.WarmingTrend > 0.3 && f.TrendSignificant:
		trendBonus = math.Min(f.WarmingTrend*8.0, 12.0)
	}

	var percentileBonus float64
	switch {
	case f.Percentile > 95:
		percentileBonus = 10.0
	case f.Percentile > 90:
		percentileBonus = 5.0
	}

	factors := append([]types.Factor(nil), f.Factors...)
	if len(factors) == 0 {
		if f.WaterTemp >= cal.TempOptimalMin {
			factors = append(factors, types.Factor{
				Code: "optimal_range",
				Detail: fmt.Sprintf("Water temp %s°C in optimal bloom range (%s–%s°C)",
					trimFloat(f.WaterTemp), trimFloat(cal.TempOptimalMin), trimFloat(cal.TempOptimalMax)),
			})
		}
		if f.ZScore > 1.0 {
			factors = append(factors, types.Factor{
				Code:   "temp_anomaly",
				Detail: fmt.Sprintf("Temperature %+.1f°C above seasonal baseline (z=%.1f)", f.AnomalyC, f.ZScore),
			})
		}
	}

	return TemperatureScoreResult{
		Score:      roundTo(clampf(base+trendBonus+percentileBonus, 0, 100), 1),
		Bracket:    roundTo(bracket, 1),
		ZComponent: roundTo(zComponent, 1),
		TrendBonus: roundTo(trendBonus, 1),
		Factors:    factors,
	}
}

// NutrientScore clamps the extractor's score and annotates the dominant
// contributors when the extractor stayed silent.
func (m *Model) NutrientScore(f NutrientFeatures) ComponentResult {
	factors := append([]types.Factor(nil), f.Factors...)
	if len(factors) == 0 {
		if f.AgriculturalPct > 20 {
			factors = append(factors, types.Factor{
				Code:   "agricultural_catchment",
				Detail: fmt.Sprintf("%.0f%% agricultural land in catchment", f.AgriculturalPct),
			})
		}
		if f.UrbanPct > 20 {
			factors = append(factors, types.Factor{
				Code:   "urban_catchment",
				Detail: fmt.Sprintf("%.0f%% urban land — sewage/runoff risk", f.UrbanPct),
			})
		}
		if f.DeliveryScore >= 0.7 {
			factors = append(factors, types.Factor{
				Code:   "active_delivery",
				Detail: "High rainfall delivery — nutrients actively washing into water",
			})
		} else if f.DeliveryScore <= 0.2 {
			factors = append(factors, types.Factor{
				Code:   "dry_accumulation",
				Detail: "Dry conditions — nutrients accumulating but not yet delivered",
			})
		}
	}
	return ComponentResult{
		Score:   roundTo(clampf(f.Score, 0, 100), 1),
		Factors: factors,
	}
}

// StagnationScore clamps the extractor's score and annotates the dominant
// contributors when the extractor stayed silent.
func (m *Model) StagnationScore(f StagnationFeatures) ComponentResult {
	factors := append([]types.Factor(nil), f.Factors...)
	if len(factors) == 0 {
		if f.WindMixingScore >= 0.7 {
			factors = append(factors, types.Factor{
				Code:   "low_wind",
				Detail: fmt.Sprintf("Low wind (%.0f km/h) — insufficient mixing", f.AvgWind7d),
			})
		}
		if f.HydroStagnation >= 0.7 {
			factors = append(factors, types.Factor{
				Code:   "poor_flushing",
				Detail: "Below-average rainfall — water body poorly flushed",
			})
		}
		if f.StratificationScore >= 0.6 {
			factors = append(factors, types.Factor{
				Code:   "stratification",
				Detail: fmt.Sprintf("Thermal stratification likely (diurnal range %.1f°C)", f.DiurnalTempRange),
			})
		}
	}
	return ComponentResult{
		Score:   roundTo(clampf(f.Score, 0, 100), 1),
		Factors: factors,
	}
}

// LightScore clamps the extractor's score and annotates the dominant
// contributors when the extractor stayed silent.
func (m *Model) LightScore(f LightFeatures) ComponentResult {
	factors := append([]types.Factor(nil), f.Factors...)
	if len(factors) == 0 {
		if f.UVIndex >= 6 {
			factors = append(factors, types.Factor{
				Code:   "high_uv",
				Detail: fmt.Sprintf("UV index %s — high photosynthesis potential", trimFloat(f.UVIndex)),
			})
		}
		if f.DayLengthHours > 13 {
			factors = append(factors, types.Factor{
				Code:   "long_days",
				Detail: fmt.Sprintf("Day length %.1fh — extended bloom-forming window", f.DayLengthHours),
			})
		}
		if f.CloudCoverPct > 80 {
			factors = append(factors, types.Factor{
				Code:   "heavy_cloud",
				Detail: fmt.Sprintf("Heavy cloud cover (%.0f%%) suppressing photosynthesis", f.CloudCoverPct),
			})
		}
	}
	return ComponentResult{
		Score:   roundTo(clampf(f.Score, 0, 100), 1),
		Factors: factors,
	}
}
