package risk

import (
	"testing"

	"bloomwatch/internal/types"
)

func TestPrecipitationFeaturesDrySpell(t *testing.T) {
	m := New(DefaultCalibration())
	obs := summerObs() // 14 dry days

	f := m.PrecipitationFeatures(obs)

	if f.Rainfall48h != 0 || f.Rainfall7d != 0 || f.Rainfall30d != 0 {
		t.Errorf("rainfall windows = %v/%v/%v, want all 0", f.Rainfall48h, f.Rainfall7d, f.Rainfall30d)
	}
	if f.DaysSinceRain != 14 {
		t.Errorf("DaysSinceRain = %d, want 14", f.DaysSinceRain)
	}
	if f.StagnationIndex != 1 {
		t.Errorf("StagnationIndex = %v, want 1", f.StagnationIndex)
	}
	if f.FirstFlush != 0 {
		t.Errorf("FirstFlush = %v, want 0", f.FirstFlush)
	}
	if f.Intensity != 0 {
		t.Errorf("Intensity = %v, want 0", f.Intensity)
	}
	if !hasFactor(f.Factors, "dry_spell") {
		t.Error("missing dry_spell factor")
	}
	if !hasFactor(f.Factors, "high_stagnation") {
		t.Error("missing high_stagnation factor")
	}
	for _, fac := range f.Factors {
		if fac.Code == "high_stagnation" && fac.Detail != "High stagnation index (1.00) — water body poorly flushed" {
			t.Errorf("high_stagnation detail = %q", fac.Detail)
		}
	}
}

func TestPrecipitationFeaturesFirstFlush(t *testing.T) {
	m := New(DefaultCalibration())
	obs := summerObs()
	obs.Rain.Days = []float64{0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 12, 18}

	f := m.PrecipitationFeatures(obs)

	if f.Rainfall48h != 30 {
		t.Errorf("Rainfall48h = %v, want 30", f.Rainfall48h)
	}
	if f.Rainfall7d != 31 {
		t.Errorf("Rainfall7d = %v, want 31", f.Rainfall7d)
	}
	if f.DaysSinceRain != 0 {
		t.Errorf("DaysSinceRain = %d, want 0", f.DaysSinceRain)
	}
	if f.FirstFlush != 1.0 {
		t.Errorf("FirstFlush = %v, want 1.0", f.FirstFlush)
	}
	// The week of rain saturates against the dry median baseline.
	if f.StagnationIndex != 0 {
		t.Errorf("StagnationIndex = %v, want 0", f.StagnationIndex)
	}
	if f.Intensity != 0.542 {
		t.Errorf("Intensity = %v, want 0.542", f.Intensity)
	}
	if !hasFactor(f.Factors, "first_flush") {
		t.Error("missing first_flush factor")
	}
	if !hasFactor(f.Factors, "heavy_rain") {
		t.Error("missing heavy_rain factor")
	}
	for _, fac := range f.Factors {
		if fac.Code == "first_flush" && fac.Detail != "First flush event: 30mm rain after dry period" {
			t.Errorf("first_flush detail = %q", fac.Detail)
		}
	}
}

func TestPrecipitationFeaturesPartialFlush(t *testing.T) {
	m := New(DefaultCalibration())
	obs := summerObs()
	// Only two of the three pre-event days were dry, but the burst is heavy.
	obs.Rain.Days = []float64{0, 0, 0, 3, 0, 0, 25}

	f := m.PrecipitationFeatures(obs)

	if f.FirstFlush != 0.6 {
		t.Errorf("FirstFlush = %v, want 0.6", f.FirstFlush)
	}
	if f.Rainfall48h != 25 {
		t.Errorf("Rainfall48h = %v, want 25", f.Rainfall48h)
	}
	if f.Intensity != 0.524 {
		t.Errorf("Intensity = %v, want 0.524", f.Intensity)
	}
}

func TestPrecipitationFeaturesDailyFallback(t *testing.T) {
	m := New(DefaultCalibration())
	obs := summerObs()
	obs.Rain.Days = nil
	for i := range obs.Daily[:7] {
		obs.Daily[i].Precipitation = float64(i + 1)
	}

	f := m.PrecipitationFeatures(obs)

	if f.Rainfall48h != 13 {
		t.Errorf("Rainfall48h = %v, want 13 from the daily series", f.Rainfall48h)
	}
	if f.Rainfall7d != 28 {
		t.Errorf("Rainfall7d = %v, want 28", f.Rainfall7d)
	}
	if f.DaysSinceRain != 0 {
		t.Errorf("DaysSinceRain = %d, want 0", f.DaysSinceRain)
	}
	if f.FirstFlush != 0 {
		t.Errorf("FirstFlush = %v, want 0 after a wet run-up", f.FirstFlush)
	}
	if f.Intensity != 0.347 {
		t.Errorf("Intensity = %v, want 0.347", f.Intensity)
	}
}

func TestPrecipitationFeaturesNoData(t *testing.T) {
	m := New(DefaultCalibration())
	obs := &types.RawObservation{FetchedAt: summerObs().FetchedAt}

	f := m.PrecipitationFeatures(obs)

	if f.Rainfall48h != 0 {
		t.Errorf("Rainfall48h = %v, want 0", f.Rainfall48h)
	}
	if f.DaysSinceRain != 1 {
		t.Errorf("DaysSinceRain = %d, want 1", f.DaysSinceRain)
	}
	if f.StagnationIndex != 0.5 {
		t.Errorf("StagnationIndex = %v, want neutral 0.5", f.StagnationIndex)
	}
	if len(f.Factors) != 0 {
		t.Errorf("Factors = %+v, want none", f.Factors)
	}
}

func TestPrecipitationFeaturesDaysSinceMidSeries(t *testing.T) {
	m := New(DefaultCalibration())
	obs := summerObs()
	obs.Rain.Days = []float64{0, 0, 6, 0, 0}

	f := m.PrecipitationFeatures(obs)

	if f.DaysSinceRain != 2 {
		t.Errorf("DaysSinceRain = %d, want 2", f.DaysSinceRain)
	}
	if f.FirstFlush != 0 {
		t.Errorf("FirstFlush = %v, want 0 without a fresh burst", f.FirstFlush)
	}
}
