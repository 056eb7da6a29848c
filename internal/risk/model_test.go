package risk

import (
	"reflect"
	"testing"
	"time"

	"bloomwatch/internal/types"
)

func TestEvaluateSummerLake(t *testing.T) {
	m := New(DefaultCalibration())
	ev := m.Evaluate(summerObs())

	want := types.ComponentScores{Temperature: 66.5, Nutrients: 8.8, Stagnation: 80, Light: 80.8}
	if ev.Components != want {
		t.Errorf("Components = %+v, want %+v", ev.Components, want)
	}

	// Nutrients starve growth: the catchment exports plenty but nothing is
	// being delivered during the dry spell.
	if ev.Growth.LimitingFactor != types.ComponentNutrients {
		t.Errorf("LimitingFactor = %v, want Nutrients", ev.Growth.LimitingFactor)
	}
	if !hasFactor(ev.Growth.Factors, "nutrient_limited") {
		t.Errorf("Growth.Factors = %+v, want nutrient_limited", ev.Growth.Factors)
	}

	if ev.Risk.Score != 38.1 {
		t.Errorf("Risk.Score = %v, want 38.1", ev.Risk.Score)
	}
	if ev.Risk.GeometricMean != 43.3 {
		t.Errorf("GeometricMean = %v, want 43.3", ev.Risk.GeometricMean)
	}
	if ev.Risk.GrowthModifier != -5.13 {
		t.Errorf("GrowthModifier = %v, want -5.13", ev.Risk.GrowthModifier)
	}
	if ev.Risk.Level != types.LevelLow {
		t.Errorf("Level = %v, want LOW", ev.Risk.Level)
	}
	if ev.Risk.Severity != types.SeverityModerate {
		t.Errorf("Severity = %v, want moderate", ev.Risk.Severity)
	}
	if ev.Risk.PrimaryDriver != types.ComponentLight {
		t.Errorf("PrimaryDriver = %v, want Light", ev.Risk.PrimaryDriver)
	}
	if ev.Risk.LimitingDriver != types.ComponentNutrients {
		t.Errorf("LimitingDriver = %v, want Nutrients", ev.Risk.LimitingDriver)
	}
	if ev.Risk.Confidence != types.ConfidenceMedium {
		t.Errorf("Confidence = %q, want MEDIUM", ev.Risk.Confidence)
	}
}

func TestEvaluateMergesFactors(t *testing.T) {
	m := New(DefaultCalibration())
	ev := m.Evaluate(summerObs())

	for _, code := range []string{
		"above_bloom_threshold",  // temperature extractor
		"agricultural_catchment", // nutrient extractor
		"low_wind",               // stagnation extractor
		"high_uv",                // light extractor
		"nutrient_limited",       // growth kinetics
	} {
		if !hasFactor(ev.Risk.Factors, code) {
			t.Errorf("merged factors missing %s", code)
		}
	}

	seen := make(map[types.Factor]int)
	for _, f := range ev.Risk.Factors {
		seen[f]++
		if seen[f] > 1 {
			t.Errorf("duplicate factor %+v", f)
		}
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	m := New(DefaultCalibration())
	obs := summerObs()

	a := m.Evaluate(obs)
	b := m.Evaluate(obs)

	if !reflect.DeepEqual(a, b) {
		t.Error("two evaluations of the same observation differ")
	}
}

func TestEvaluateWinterLake(t *testing.T) {
	m := New(DefaultCalibration())

	fetched := time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)
	daily := make([]types.DailyWeather, 0, 7)
	for i := 0; i < 7; i++ {
		daily = append(daily, types.DailyWeather{
			Date:       time.Date(2025, time.January, 8+i, 0, 0, 0, 0, time.UTC),
			TempMax:    2,
			TempMin:    -2,
			TempMean:   0,
			WindMax:    25,
			UVMax:      1,
			CloudCover: 90,
		})
	}
	obs := &types.RawObservation{
		Latitude:  41.6833,
		Longitude: -82.8833,
		Current: types.WeatherSnapshot{
			Temperature: -2,
			Humidity:    70,
			WindSpeed:   25,
			CloudCover:  90,
			UVIndex:     1,
			ObservedAt:  fetched,
		},
		Daily:     daily,
		Rain:      types.RainWindow{Days: []float64{5, 8, 3, 6, 2, 7, 4, 9, 5, 3, 6, 2, 8, 4}},
		Land:      summerObs().Land,
		Density:   types.UnavailableAnchor(),
		Quality:   types.DataQuality{Confidence: types.ConfidenceMedium},
		FetchedAt: fetched,
	}

	ev := m.Evaluate(obs)

	if ev.Temperature.WaterTemp != 0.5 {
		t.Errorf("WaterTemp = %v, want floor 0.5", ev.Temperature.WaterTemp)
	}
	if ev.Risk.Score >= 15 {
		t.Errorf("Risk.Score = %v, want well under 15 in midwinter", ev.Risk.Score)
	}
	if ev.Risk.Level != types.LevelSafe {
		t.Errorf("Level = %v, want SAFE", ev.Risk.Level)
	}
	if ev.Risk.Severity != types.SeverityLow {
		t.Errorf("Severity = %v, want low", ev.Risk.Severity)
	}
	if ev.Growth.Mu != 0 {
		t.Errorf("Mu = %v, want 0 near freezing", ev.Growth.Mu)
	}
}
