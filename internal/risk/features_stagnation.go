package risk

import (
	"fmt"

	"bloomwatch/internal/types"
)

// StagnationFeatures is the output of the stagnation extractor: wind
// mixing, hydrological flushing, and a thermal-stratification proxy.
type StagnationFeatures struct {
	AvgWind7d float64 `json:"avg_wind_7d"`

	// WindMixingScore inverts wind: calm water concentrates surface scum.
	WindMixingScore float64 `json:"wind_mixing_score"`

	// HydroStagnation reuses the precipitation stagnation index.
	HydroStagnation float64 `json:"hydro_stagnation"`

	// StratificationScore proxies thermal layering from the diurnal
	// temperature swing and wind. No profile data exists at this scale.
	StratificationScore float64 `json:"stratification_score"`

	DiurnalTempRange float64 `json:"diurnal_temp_range"`

	// Score is the weighted combination on a 0-100 scale.
	Score float64 `json:"stagnation_score"`

	Factors []types.Factor `json:"factors,omitempty"`
}

// StagnationFeatures extracts the stagnation index from wind history, the
// rainfall features, and the derived water temperature.
func (m *Model) StagnationFeatures(obs *types.RawObservation, precip PrecipitationFeatures, waterTemp float64) StagnationFeatures {
	windMaxes := pastField(obs, func(d types.DailyWeather) float64 { return d.WindMax })
	avgWind := obs.Current.WindSpeed
	if len(windMaxes) > 0 {
		avgWind = meanOf(windMaxes)
	}

	var windMixing float64
	switch {
	case avgWind > 20:
		windMixing = 0.10
	case avgWind > 10:
		windMixing = 0.40
	case avgWind > 5:
		windMixing = 0.70
	default:
		windMixing = 1.00
	}

	hydro := precip.StagnationIndex

	tempMaxes := pastField(obs, func(d types.DailyWeather) float64 { return d.TempMax })
	tempMins := pastField(obs, func(d types.DailyWeather) float64 { return d.TempMin })
	diurnal := 8.0
	if len(tempMaxes) > 0 && len(tempMins) > 0 {
		diurnal = meanOf(tempMaxes) - meanOf(tempMins)
	}

	var stratification float64
	switch {
	case diurnal > 10 && avgWind < 10:
		stratification = 0.80
	case waterTemp > m.cal.TempOptimalMin && avgWind < 15:
		stratification = 0.60
	default:
		stratification = 0.20
	}

	score := (0.40*windMixing + 0.40*hydro + 0.20*stratification) * 100

	f := StagnationFeatures{
		AvgWind7d:           roundTo(avgWind, 1),
		WindMixingScore:     roundTo(windMixing, 3),
		HydroStagnation:     roundTo(hydro, 3),
		StratificationScore: roundTo(stratification, 3),
		DiurnalTempRange:    roundTo(diurnal, 1),
		Score:               roundTo(clampf(score, 0, 100), 1),
	}

	if avgWind < 10 {
		f.Factors = append(f.Factors, types.Factor{
			Code:   "low_wind",
			Detail: fmt.Sprintf("Low wind (%.0f km/h) — poor water mixing", avgWind),
		})
	}
	if precip.DaysSinceRain >= 5 {
		f.Factors = append(f.Factors, types.Factor{
			Code:   "dry_spell",
			Detail: fmt.Sprintf("No significant rain for %d days — stagnant", precip.DaysSinceRain),
		})
	}
	if stratification >= 0.6 {
		f.Factors = append(f.Factors, types.Factor{
			Code:   "stratification",
			Detail: fmt.Sprintf("Thermal stratification likely at %s°C", trimFloat(waterTemp)),
		})
	}

	return f
}
