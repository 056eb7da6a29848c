package risk

import "bloomwatch/internal/types"

// Model evaluates the full risk pipeline for one observation. It is
// stateless apart from its calibration and safe for concurrent use.
type Model struct {
	cal Calibration
}

// New constructs a Model with the given calibration.
func New(cal Calibration) *Model {
	return &Model{cal: cal}
}

// Calibration returns the model's calibration values.
func (m *Model) Calibration() Calibration {
	return m.cal
}

// Evaluation is the complete intermediate and final state of one pipeline
// run: every extracted feature set, the four component scores, the growth
// kinetics, and the aggregated risk result.
type Evaluation struct {
	Temperature   TemperatureFeatures   `json:"temperature_features"`
	Precipitation PrecipitationFeatures `json:"precipitation_features"`
	Nutrients     NutrientFeatures      `json:"nutrient_features"`
	Light         LightFeatures         `json:"light_features"`
	Stagnation    StagnationFeatures    `json:"stagnation_features"`

	TemperatureScore TemperatureScoreResult `json:"temperature_score"`
	NutrientScore    ComponentResult        `json:"nutrient_score"`
	StagnationScore  ComponentResult        `json:"stagnation_score"`
	LightScore       ComponentResult        `json:"light_score"`

	Components types.ComponentScores `json:"component_scores"`
	Growth     types.GrowthResult    `json:"growth"`
	Risk       types.RiskResult      `json:"risk"`
}

// Evaluate runs the whole chain on one observation: extractors, component
// scoring, growth kinetics, aggregation. Pure; never fails. Missing inputs
// were already defaulted upstream and show up only as lower confidence.
func (m *Model) Evaluate(obs *types.RawObservation) Evaluation {
	tf := m.TemperatureFeatures(obs)
	pf := m.PrecipitationFeatures(obs)
	nf := m.NutrientFeatures(obs, pf)
	lf := m.LightFeatures(obs)
	sf := m.StagnationFeatures(obs, pf, tf.WaterTemp)

	ts := m.TemperatureScore(tf)
	ns := m.NutrientScore(nf)
	ss := m.StagnationScore(sf)
	ls := m.LightScore(lf)

	components := types.ComponentScores{
		Temperature: ts.Score,
		Nutrients:   ns.Score,
		Stagnation:  ss.Score,
		Light:       ls.Score,
	}

	growth := m.GrowthRate(components, tf.WaterTemp)
	result := m.BloomProbability(components, growth, obs.Density, obs.Quality.Confidence)
	result.Factors = mergeFactors(ts.Factors, ns.Factors, ss.Factors, ls.Factors, growth.Factors)

	return Evaluation{
		Temperature:      tf,
		Precipitation:    pf,
		Nutrients:        nf,
		Light:            lf,
		Stagnation:       sf,
		TemperatureScore: ts,
		NutrientScore:    ns,
		StagnationScore:  ss,
		LightScore:       ls,
		Components:       components,
		Growth:           growth,
		Risk:             result,
	}
}

// mergeFactors concatenates factor lists in component order, dropping
// exact duplicates.
func mergeFactors(lists ...[]types.Factor) []types.Factor {
	var out []types.Factor
	seen := make(map[types.Factor]struct{})
	for _, list := range lists {
		for _, f := range list {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}

// pastField collects one field from the past daily entries, capped at the
// trailing week.
func pastField(obs *types.RawObservation, get func(types.DailyWeather) float64) []float64 {
	past := obs.PastDaily()
	if len(past) > 7 {
		past = past[len(past)-7:]
	}
	out := make([]float64, 0, len(past))
	for _, d := range past {
		out = append(out, get(d))
	}
	return out
}
