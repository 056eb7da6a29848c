package risk

import (
	"testing"

	"bloomwatch/internal/types"
)

func TestTemperatureScoreBrackets(t *testing.T) {
	m := New(DefaultCalibration())

	tests := []struct {
		temp string
		f    TemperatureFeatures
		want float64
	}{
		{"10", TemperatureFeatures{WaterTemp: 10}, 5},
		{"15", TemperatureFeatures{WaterTemp: 15}, 20},
		{"17.5", TemperatureFeatures{WaterTemp: 17.5}, 30},
		{"20", TemperatureFeatures{WaterTemp: 20}, 40},
		{"22.5", TemperatureFeatures{WaterTemp: 22.5}, 52.5},
		{"25", TemperatureFeatures{WaterTemp: 25}, 65},
		{"26.5", TemperatureFeatures{WaterTemp: 26.5}, 77.5},
		{"28", TemperatureFeatures{WaterTemp: 28}, 90},
		{"31.5", TemperatureFeatures{WaterTemp: 31.5}, 92.5},
		{"35", TemperatureFeatures{WaterTemp: 35}, 95},
		{"36", TemperatureFeatures{WaterTemp: 36}, 92},
		{"40", TemperatureFeatures{WaterTemp: 40}, 80},
		{"45", TemperatureFeatures{WaterTemp: 45}, 80},
	}
	for _, tt := range tests {
		t.Run(tt.temp, func(t *testing.T) {
			got := m.TemperatureScore(tt.f)
			if got.Bracket != tt.want {
				t.Errorf("Bracket = %v, want %v", got.Bracket, tt.want)
			}
			// With z=0 the anomaly term contributes a flat 20 points.
			wantScore := roundTo(0.6*tt.want+20, 1)
			if got.Score != wantScore {
				t.Errorf("Score = %v, want %v", got.Score, wantScore)
			}
		})
	}
}

func TestTemperatureScoreAnomaly(t *testing.T) {
	m := New(DefaultCalibration())

	got := m.TemperatureScore(TemperatureFeatures{WaterTemp: 26, ZScore: 1})

	if got.ZComponent != 69 {
		t.Errorf("ZComponent = %v, want 69", got.ZComponent)
	}
	if got.Score != 71.6 {
		t.Errorf("Score = %v, want 71.6", got.Score)
	}
}

func TestTemperatureScoreTrendBonus(t *testing.T) {
	m := New(DefaultCalibration())

	tests := []struct {
		name      string
		trend     float64
		sig       bool
		wantBonus float64
	}{
		{"strong warming", 0.6, true, 7.2},
		{"strong warming capped", 2.0, true, 20},
		{"moderate warming", 0.4, true, 3.2},
		{"not significant", 0.6, false, 0},
		{"too slow", 0.2, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.TemperatureScore(TemperatureFeatures{
				WaterTemp:        20,
				WarmingTrend:     tt.trend,
				TrendSignificant: tt.sig,
			})
			if got.TrendBonus != tt.wantBonus {
				t.Errorf("TrendBonus = %v, want %v", got.TrendBonus, tt.wantBonus)
			}
			if want := roundTo(44+tt.wantBonus, 1); got.Score != want {
				t.Errorf("Score = %v, want %v", got.Score, want)
			}
		})
	}
}

func TestTemperatureScorePercentileBonus(t *testing.T) {
	m := New(DefaultCalibration())

	tests := []struct {
		pct  float64
		want float64
	}{
		{96, 54},
		{92, 49},
		{90, 44},
	}
	for _, tt := range tests {
		got := m.TemperatureScore(TemperatureFeatures{WaterTemp: 20, Percentile: tt.pct})
		if got.Score != tt.want {
			t.Errorf("pct %v: Score = %v, want %v", tt.pct, got.Score, tt.want)
		}
	}
}

func TestTemperatureScoreFallbackFactors(t *testing.T) {
	m := New(DefaultCalibration())

	got := m.TemperatureScore(TemperatureFeatures{WaterTemp: 26, ZScore: 1.2, AnomalyC: 1.8})

	if !hasFactor(got.Factors, "optimal_range") {
		t.Error("missing optimal_range fallback factor")
	}
	if !hasFactor(got.Factors, "temp_anomaly") {
		t.Error("missing temp_anomaly fallback factor")
	}
	for _, fac := range got.Factors {
		if fac.Code == "temp_anomaly" && fac.Detail != "Temperature +1.8°C above seasonal baseline (z=1.2)" {
			t.Errorf("temp_anomaly detail = %q", fac.Detail)
		}
	}
}

func TestTemperatureScoreKeepsExtractorFactors(t *testing.T) {
	m := New(DefaultCalibration())

	in := TemperatureFeatures{
		WaterTemp: 26,
		ZScore:    2,
		Factors:   []types.Factor{{Code: "above_bloom_threshold", Detail: "x"}},
	}
	got := m.TemperatureScore(in)

	if len(got.Factors) != 1 || got.Factors[0].Code != "above_bloom_threshold" {
		t.Errorf("Factors = %+v, want the extractor factor untouched", got.Factors)
	}
}

func TestNutrientScoreFallbackFactors(t *testing.T) {
	m := New(DefaultCalibration())

	t.Run("dry accumulation", func(t *testing.T) {
		got := m.NutrientScore(NutrientFeatures{Score: 50, AgriculturalPct: 30, DeliveryScore: 0.15})
		if got.Score != 50 {
			t.Errorf("Score = %v, want 50", got.Score)
		}
		if !hasFactor(got.Factors, "agricultural_catchment") {
			t.Error("missing agricultural_catchment fallback")
		}
		if !hasFactor(got.Factors, "dry_accumulation") {
			t.Error("missing dry_accumulation fallback")
		}
	})

	t.Run("active delivery", func(t *testing.T) {
		got := m.NutrientScore(NutrientFeatures{Score: 50, UrbanPct: 25, DeliveryScore: 0.9})
		if !hasFactor(got.Factors, "urban_catchment") {
			t.Error("missing urban_catchment fallback")
		}
		if !hasFactor(got.Factors, "active_delivery") {
			t.Error("missing active_delivery fallback")
		}
	})

	t.Run("mid delivery stays silent", func(t *testing.T) {
		got := m.NutrientScore(NutrientFeatures{Score: 50, DeliveryScore: 0.5})
		if len(got.Factors) != 0 {
			t.Errorf("Factors = %+v, want none", got.Factors)
		}
	})
}

func TestStagnationScoreFallbackFactors(t *testing.T) {
	m := New(DefaultCalibration())

	got := m.StagnationScore(StagnationFeatures{
		Score:               60,
		WindMixingScore:     0.7,
		HydroStagnation:     0.8,
		StratificationScore: 0.6,
		AvgWind7d:           7,
		DiurnalTempRange:    9.5,
	})

	for _, code := range []string{"low_wind", "poor_flushing", "stratification"} {
		if !hasFactor(got.Factors, code) {
			t.Errorf("missing %s fallback factor", code)
		}
	}
	for _, fac := range got.Factors {
		if fac.Code == "stratification" && fac.Detail != "Thermal stratification likely (diurnal range 9.5°C)" {
			t.Errorf("stratification detail = %q", fac.Detail)
		}
	}
}

func TestLightScoreFallbackFactors(t *testing.T) {
	m := New(DefaultCalibration())

	got := m.LightScore(LightFeatures{Score: 70, UVIndex: 8, DayLengthHours: 14.5, CloudCoverPct: 85})

	for _, code := range []string{"high_uv", "long_days", "heavy_cloud"} {
		if !hasFactor(got.Factors, code) {
			t.Errorf("missing %s fallback factor", code)
		}
	}
}

func TestComponentScoreClamping(t *testing.T) {
	m := New(DefaultCalibration())

	if got := m.NutrientScore(NutrientFeatures{Score: 120, DeliveryScore: 0.5}); got.Score != 100 {
		t.Errorf("Score = %v, want clamped 100", got.Score)
	}
	if got := m.LightScore(LightFeatures{Score: -5}); got.Score != 0 {
		t.Errorf("Score = %v, want clamped 0", got.Score)
	}
}
