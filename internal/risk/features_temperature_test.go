package risk

import (
	"math"
	"testing"
	"time"

	"bloomwatch/internal/types"
)

func TestEstimateWaterTemp(t *testing.T) {
	tests := []struct {
		name                       string
		air, avg7d, wind, humidity float64
		want                       float64
	}{
		{"warm breezy", 25, 24, 10, 60, 24.4},
		{"calm dry", 22, 20, 3, 50, 21.3},
		{"floor at half degree", -5, -5, 30, 80, 0.5},
		{"hot humid still", 30, 28, 0, 90, 29.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateWaterTemp(tt.air, tt.avg7d, tt.wind, tt.humidity)
			if got != tt.want {
				t.Errorf("EstimateWaterTemp(%v, %v, %v, %v) = %v, want %v",
					tt.air, tt.avg7d, tt.wind, tt.humidity, got, tt.want)
			}
		})
	}
}

func TestTemperatureFeaturesEstimated(t *testing.T) {
	m := New(DefaultCalibration())
	obs := summerObs()

	f := m.TemperatureFeatures(obs)

	if f.AvgAirTemp7d != 25.5 {
		t.Errorf("AvgAirTemp7d = %v, want 25.5", f.AvgAirTemp7d)
	}
	if f.WaterTemp != 25.7 {
		t.Errorf("WaterTemp = %v, want 25.7", f.WaterTemp)
	}
	if f.WaterTempSource != "estimated" {
		t.Errorf("WaterTempSource = %q, want estimated", f.WaterTempSource)
	}
	if f.Confidence != types.ConfidenceLow {
		t.Errorf("Confidence = %q, want LOW", f.Confidence)
	}

	// Past week warms 0.5°C/day on a perfect line.
	if f.WarmingTrend != 0.5 {
		t.Errorf("WarmingTrend = %v, want 0.5", f.WarmingTrend)
	}
	if !f.TrendSignificant {
		t.Error("TrendSignificant = false, want true")
	}

	// No archive: anomaly stats stay at their neutral defaults.
	if f.ZScore != 0 {
		t.Errorf("ZScore = %v, want 0", f.ZScore)
	}
	if f.Percentile != 50 {
		t.Errorf("Percentile = %v, want 50", f.Percentile)
	}
	if f.SeasonalBaseline != 25.5 {
		t.Errorf("SeasonalBaseline = %v, want 25.5", f.SeasonalBaseline)
	}

	if f.BloomTempProbability != 0.552 {
		t.Errorf("BloomTempProbability = %v, want 0.552", f.BloomTempProbability)
	}
	if !f.AboveBloomThreshold {
		t.Error("AboveBloomThreshold = false, want true")
	}

	if !hasFactor(f.Factors, "above_bloom_threshold") {
		t.Error("missing above_bloom_threshold factor")
	}
	if !hasFactor(f.Factors, "warming_trend") {
		t.Error("missing warming_trend factor")
	}
	if len(f.Factors) != 2 {
		t.Errorf("len(Factors) = %d, want 2: %+v", len(f.Factors), f.Factors)
	}
}

func TestTemperatureFeaturesSatellite(t *testing.T) {
	m := New(DefaultCalibration())

	t.Run("usable reading wins", func(t *testing.T) {
		obs := summerObs()
		obs.Thermal = &types.ThermalReading{
			Current:    24.64,
			Source:     "openmeteo_sst",
			Confidence: types.ConfidenceHigh,
		}

		f := m.TemperatureFeatures(obs)

		if f.WaterTemp != 24.6 {
			t.Errorf("WaterTemp = %v, want 24.6", f.WaterTemp)
		}
		if f.WaterTempSource != "satellite" {
			t.Errorf("WaterTempSource = %q, want satellite", f.WaterTempSource)
		}
		if f.SourceDetail != "openmeteo_sst" {
			t.Errorf("SourceDetail = %q, want openmeteo_sst", f.SourceDetail)
		}
		if f.Confidence != types.ConfidenceHigh {
			t.Errorf("Confidence = %q, want HIGH", f.Confidence)
		}
		if f.AboveBloomThreshold {
			t.Error("AboveBloomThreshold = true, want false at 24.6")
		}
		if f.BloomTempProbability != 0.47 {
			t.Errorf("BloomTempProbability = %v, want 0.47", f.BloomTempProbability)
		}
		if !hasFactor(f.Factors, "satellite_thermal") {
			t.Error("missing satellite_thermal factor")
		}
		if hasFactor(f.Factors, "above_bloom_threshold") {
			t.Error("above_bloom_threshold fired below the threshold")
		}
	})

	t.Run("source none falls back to estimate", func(t *testing.T) {
		obs := summerObs()
		obs.Thermal = &types.ThermalReading{Current: 24.64, Source: "none"}

		f := m.TemperatureFeatures(obs)
		if f.WaterTempSource != "estimated" {
			t.Errorf("WaterTempSource = %q, want estimated", f.WaterTempSource)
		}
		if f.WaterTemp != 25.7 {
			t.Errorf("WaterTemp = %v, want 25.7", f.WaterTemp)
		}
	})

	t.Run("missing confidence defaults to medium", func(t *testing.T) {
		obs := summerObs()
		obs.Thermal = &types.ThermalReading{Current: 24.64, Source: "copernicus_lswt"}

		f := m.TemperatureFeatures(obs)
		if f.Confidence != types.ConfidenceMedium {
			t.Errorf("Confidence = %q, want MEDIUM", f.Confidence)
		}
	})
}

func TestTemperatureFeaturesSatelliteTrendSeries(t *testing.T) {
	m := New(DefaultCalibration())
	obs := summerObs()
	obs.Thermal = &types.ThermalReading{
		Current:    24.8,
		Source:     "openmeteo_sst",
		Confidence: types.ConfidenceHigh,
		Series:     []float64{24, 24.2, 24.1, 24.6, 24.8},
	}

	f := m.TemperatureFeatures(obs)

	// The skin series replaces the air means: slope 0.2 over five points.
	if f.WarmingTrend != 0.2 {
		t.Errorf("WarmingTrend = %v, want 0.2", f.WarmingTrend)
	}
	if !f.TrendSignificant {
		t.Error("TrendSignificant = false, want true")
	}
	if hasFactor(f.Factors, "warming_trend") {
		t.Error("warming_trend factor fired below the 0.3°C/day threshold")
	}
}

func TestTemperatureFeaturesWithArchive(t *testing.T) {
	m := New(DefaultCalibration())
	obs := summerObs()
	obs.History = julyHistory()

	f := m.TemperatureFeatures(obs)

	// 36 July rows, mean 24, sample std 1.0142; current air 26.
	if f.ZScore != 1.97 {
		t.Errorf("ZScore = %v, want 1.97", f.ZScore)
	}
	if f.AnomalyC != 2 {
		t.Errorf("AnomalyC = %v, want 2", f.AnomalyC)
	}
	if f.Percentile != 100 {
		t.Errorf("Percentile = %v, want 100", f.Percentile)
	}
	if !hasFactor(f.Factors, "temp_anomaly") {
		t.Error("missing temp_anomaly factor")
	}
	if !hasFactor(f.Factors, "temp_percentile") {
		t.Error("missing temp_percentile factor")
	}
	// Harmonic fit over a narrow July window still lands near the data.
	if f.SeasonalBaseline < 22 || f.SeasonalBaseline > 26 {
		t.Errorf("SeasonalBaseline = %v, want within [22, 26]", f.SeasonalBaseline)
	}
}

func TestTemperatureFeaturesArchiveMonthFallback(t *testing.T) {
	m := New(DefaultCalibration())
	obs := summerObs()

	// Archive holds no July rows at all: the extractor widens to the whole
	// history rather than skipping anomaly stats.
	var h types.HistoricalSeries
	for _, year := range []int{2022, 2023} {
		for day := 1; day <= 20; day++ {
			h.Dates = append(h.Dates, time.Date(year, time.January, day, 0, 0, 0, 0, time.UTC))
			temp := 18.0
			if day%2 == 0 {
				temp = 22.0
			}
			h.Temps = append(h.Temps, temp)
		}
	}
	obs.History = h

	f := m.TemperatureFeatures(obs)

	if f.ZScore != 2.96 {
		t.Errorf("ZScore = %v, want 2.96", f.ZScore)
	}
	if f.AnomalyC != 6 {
		t.Errorf("AnomalyC = %v, want 6", f.AnomalyC)
	}
	if f.Percentile != 100 {
		t.Errorf("Percentile = %v, want 100", f.Percentile)
	}
}

func TestHarmonicBaseline(t *testing.T) {
	t.Run("recovers an exact harmonic", func(t *testing.T) {
		h := sinusoidHistory(10, 5, 3)
		for _, doy := range []int{1, 100, 196, 365} {
			angle := 2 * math.Pi * float64(doy) / 365
			want := 10 + 5*math.Sin(angle) + 3*math.Cos(angle)
			got := harmonicBaseline(h, doy)
			if !almostEqual(got, want, 1e-6) {
				t.Errorf("harmonicBaseline(doy=%d) = %v, want %v", doy, got, want)
			}
		}
	})

	t.Run("short archive falls back to mean", func(t *testing.T) {
		h := types.HistoricalSeries{
			Dates: []time.Time{
				time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2024, time.June, 2, 0, 0, 0, 0, time.UTC),
				time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC),
			},
			Temps: []float64{20, 22, 24},
		}
		if got := harmonicBaseline(h, 150); got != 22 {
			t.Errorf("harmonicBaseline = %v, want mean 22", got)
		}
	})

	t.Run("empty archive", func(t *testing.T) {
		if got := harmonicBaseline(types.HistoricalSeries{}, 150); got != 0 {
			t.Errorf("harmonicBaseline = %v, want 0", got)
		}
	})
}
