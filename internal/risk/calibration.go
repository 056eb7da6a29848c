// Package risk implements the cyanobacterial bloom risk model for the
// BloomWatch platform: feature extraction from merged observations, the four
// component scores, Monod growth kinetics, and the weighted aggregation to a
// 0-100 risk score with WHO severity mapping.
//
// Everything in this package is pure computation over in-memory values. No
// I/O, no clocks, no shared mutable state; the evaluation timestamp travels
// inside the observation. Callers may evaluate concurrently.
package risk

import "bloomwatch/internal/types"

// Calibration carries every tunable constant of the model. Values are
// treated as immutable after construction; the model copies the struct and
// never writes to it.
//
// The defaults encode published literature values (Paerl & Huisman 2008,
// Robarts & Zohary 1987, Beaulac & Reckhow 1982, Reynolds 2006, WHO 2003)
// and must not be changed casually: the score-to-cells mapping and the WHO
// reference scores are calibrated against each other.
type Calibration struct {
	// Temperature bracket edges, degrees C.
	TempMinGrowth   float64
	TempAccelerated float64
	TempOptimalMin  float64
	TempPeak        float64
	TempOptimalMax  float64

	// Gaussian temperature response and Monod kinetics.
	MuMax               float64 // per day
	TempResponseSigma   float64 // degrees C
	NutrientHalfSat     float64 // half-saturation on the 0-100 nutrient scale
	MinStagnationFactor float64 // f(S) floor; blooms grow in moving water too

	// Component weights for the geometric mean. They need not sum to 1;
	// the mean normalizes by their sum.
	WeightTemperature float64
	WeightNutrients   float64
	WeightStagnation  float64
	WeightLight       float64

	// Growth modifier: clamp((mu - GrowthNeutralMu) * GrowthGain, min, max).
	GrowthNeutralMu   float64
	GrowthGain        float64
	GrowthModifierMin float64
	GrowthModifierMax float64

	// External density anchor blend weight.
	AnchorBlendWeight float64

	// Log-linear score-to-cells mapping: cells = 10^(slope*score + intercept).
	// Calibrated: score 30 -> 20,000 cells/mL, score 85 -> 10,000,000.
	CellsSlope     float64
	CellsIntercept float64

	// Rainfall event thresholds, mm.
	RainSignificant   float64 // counts as a rain event
	RainHeavy         float64 // triggers runoff flush
	FirstFlushRain    float64 // rain after a dry spell that counts as a flush
	DryDayMax         float64 // below this a day is dry for flush detection
	FirstFlushDryDays int     // dry days before rain for a full flush
	StagnationDays    int     // days without rain that reads as stagnation

	// Nutrient export coefficients per land-use class (Beaulac & Reckhow).
	ExportCropland float64
	ExportUrban    float64
	ExportForest   float64
	ExportWetland  float64
}

// DefaultCalibration returns the canonical published-literature values.
func DefaultCalibration() Calibration {
	return Calibration{
		TempMinGrowth:   15.0,
		TempAccelerated: 20.0,
		TempOptimalMin:  25.0,
		TempPeak:        28.0,
		TempOptimalMax:  35.0,

		MuMax:               1.0,
		TempResponseSigma:   5.0,
		NutrientHalfSat:     50.0,
		MinStagnationFactor: 0.3,

		WeightTemperature: 0.35,
		WeightNutrients:   0.25,
		WeightStagnation:  0.22,
		WeightLight:       0.18,

		GrowthNeutralMu:   0.35,
		GrowthGain:        20.0,
		GrowthModifierMin: -10.0,
		GrowthModifierMax: 15.0,

		AnchorBlendWeight: 0.20,

		CellsSlope:     0.049,
		CellsIntercept: 2.83,

		RainSignificant:   5.0,
		RainHeavy:         20.0,
		FirstFlushRain:    10.0,
		DryDayMax:         2.0,
		FirstFlushDryDays: 3,
		StagnationDays:    7,

		ExportCropland: 0.80,
		ExportUrban:    0.50,
		ExportForest:   0.10,
		ExportWetland:  0.05,
	}
}

// AnchorScore maps an external density-source severity class onto the
// 0-100 score scale used for the calibration blend.
func (c Calibration) AnchorScore(sev types.Severity) float64 {
	switch sev {
	case types.SeverityLow:
		return 15
	case types.SeverityModerate:
		return 45
	case types.SeverityHigh:
		return 75
	case types.SeverityVeryHigh:
		return 95
	}
	return 0
}
