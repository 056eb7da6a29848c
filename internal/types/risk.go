package types

import "time"

// Component names the four canonical risk components in their fixed order.
// The order is load-bearing: driver attribution and limiting-factor
// tie-breaks resolve first-wins in this sequence.
type Component string

const (
	ComponentTemperature Component = "Temperature"
	ComponentNutrients   Component = "Nutrients"
	ComponentLight       Component = "Light"
	ComponentStagnation  Component = "Stagnation"
)

// ComponentOrder is the fixed iteration order for the four components.
var ComponentOrder = []Component{
	ComponentTemperature,
	ComponentNutrients,
	ComponentLight,
	ComponentStagnation,
}

// Factor is a threshold-triggered qualitative diagnostic surfaced to
// consumers unchanged. Factors are advisory; scoring math never reads them.
type Factor struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// FeatureSet is one extractor's output: named numeric sub-features plus
// the qualitative factors its thresholds triggered.
type FeatureSet struct {
	Values  map[string]float64 `json:"values"`
	Factors []Factor           `json:"factors,omitempty"`
}

// Get returns the named sub-feature, or the fallback when absent.
func (f FeatureSet) Get(name string, fallback float64) float64 {
	if v, ok := f.Values[name]; ok {
		return v
	}
	return fallback
}

// ComponentScores holds the four calibrated 0-100 component scores.
type ComponentScores struct {
	Temperature float64 `json:"temperature"`
	Nutrients   float64 `json:"nutrients"`
	Stagnation  float64 `json:"stagnation"`
	Light       float64 `json:"light"`
}

// Get returns the score for the named component.
func (c ComponentScores) Get(name Component) float64 {
	switch name {
	case ComponentTemperature:
		return c.Temperature
	case ComponentNutrients:
		return c.Nutrients
	case ComponentLight:
		return c.Light
	case ComponentStagnation:
		return c.Stagnation
	}
	return 0
}

// Primary returns the highest-scoring component (first wins on ties).
func (c ComponentScores) Primary() Component {
	best := ComponentOrder[0]
	for _, name := range ComponentOrder[1:] {
		if c.Get(name) > c.Get(best) {
			best = name
		}
	}
	return best
}

// Limiting returns the lowest-scoring component (first wins on ties).
func (c ComponentScores) Limiting() Component {
	worst := ComponentOrder[0]
	for _, name := range ComponentOrder[1:] {
		if c.Get(name) < c.Get(worst) {
			worst = name
		}
	}
	return worst
}

// LimitationFactors are the four Monod limitation terms, each in [0,1].
type LimitationFactors struct {
	Temperature float64 `json:"temperature"`
	Nutrients   float64 `json:"nutrients"`
	Light       float64 `json:"light"`
	Stagnation  float64 `json:"stagnation"`
}

// Get returns the factor for the named component.
func (f LimitationFactors) Get(name Component) float64 {
	switch name {
	case ComponentTemperature:
		return f.Temperature
	case ComponentNutrients:
		return f.Nutrients
	case ComponentLight:
		return f.Light
	case ComponentStagnation:
		return f.Stagnation
	}
	return 0
}

// GrowthResult is the Monod-kinetics output for one day.
type GrowthResult struct {
	// Mu is the specific growth rate in 1/day, clamped to [0, mu_max].
	Mu float64 `json:"mu_per_day"`
	// DoublingHours is ln2/mu in hours; nil when mu <= 0.001.
	DoublingHours *float64 `json:"doubling_time_hours,omitempty"`
	// Biomass is the 8-point relative trajectory, Biomass[0] = 1.0.
	Biomass []float64 `json:"biomass_trajectory"`
	// Limitation holds the four limitation terms that produced mu.
	Limitation LimitationFactors `json:"limitation"`
	// LimitingFactor is the smallest limitation term (fixed-order tie-break).
	LimitingFactor Component `json:"limiting_factor"`
	// Factors are qualitative notes on what limits or accelerates growth.
	Factors []Factor `json:"factors,omitempty"`
}

// RiskResult is the complete scored outcome for one day at one location.
// Produced once per day being scored; immutable.
type RiskResult struct {
	Score          float64         `json:"risk_score"`      // 0-100, 1 decimal
	Severity       Severity        `json:"who_severity"`    // WHO class by cell density
	SeverityLabel  string          `json:"who_label"`
	EstimatedCells int64           `json:"estimated_cells"` // cells/mL, >= 0
	Level          RiskLevel       `json:"risk_level"`
	Confidence     Confidence      `json:"confidence"`
	Components     ComponentScores `json:"components"`
	GeometricMean  float64         `json:"geometric_mean"`  // 1 decimal
	GrowthModifier float64         `json:"growth_modifier"` // 2 decimals
	Mu             float64         `json:"mu_per_day"`
	PrimaryDriver  Component       `json:"primary_driver"`
	LimitingDriver Component       `json:"limiting_driver"`
	Advisory       string          `json:"advisory"`
	Factors        []Factor        `json:"factors,omitempty"`
}

// ForecastSeries is the day-by-day projection: 8 aligned entries
// (today + 7 future days).
type ForecastSeries struct {
	Dates      []time.Time `json:"dates"`
	Scores     []float64   `json:"risk_scores"`
	Severities []Severity  `json:"severities"`
	MeanTemps  []float64   `json:"mean_temps"`
	Precip     []float64   `json:"precipitation"`
	// P10/P90 are the Monte Carlo uncertainty bands, populated by the
	// uncertainty quantifier. Entry 0 is zero-width at the day-0 score.
	P10 []float64 `json:"p10,omitempty"`
	P90 []float64 `json:"p90,omitempty"`
}

// TrendResult classifies the historical risk trajectory.
type TrendResult struct {
	Direction   TrendDirection `json:"direction"`
	Slope       float64        `json:"slope"` // Sen's slope, points/day
	PValue      float64        `json:"p_value"`
	Significant bool           `json:"significant"`
	N           int            `json:"n"`
	Description string         `json:"description"`
}

// GridCell is one point of the spatial risk field.
type GridCell struct {
	Lat       float64 `json:"lat"`       // 6 decimals
	Lon       float64 `json:"lon"`       // 6 decimals
	Intensity float64 `json:"intensity"` // [0,1], 4 decimals
}

// ShorePoint is one point of the shore risk ring.
type ShorePoint struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Risk float64 `json:"risk"` // [0,100], 1 decimal
}

// SpatialGrid is the full spatial risk field for one request.
// Regenerated per request; never persisted.
type SpatialGrid struct {
	Cells []GridCell   `json:"cells"`
	Shore []ShorePoint `json:"shore"`
}

// ThermalCell is one point of the surface-temperature grid.
type ThermalCell struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Temp float64 `json:"temp"` // degrees C
}

// WHOThreshold is one rung of the WHO guideline ladder.
type WHOThreshold struct {
	Label string  `json:"label"`
	Cells float64 `json:"cells"`
	Score float64 `json:"score"`
}

// WHOComparison positions an estimate against the WHO guideline ladder.
type WHOComparison struct {
	Severity       Severity       `json:"who_severity"`
	SeverityLabel  string         `json:"who_label"`
	EstimatedCells int64          `json:"estimated_cells"`
	RiskScore      float64        `json:"risk_score"`
	DisplayLevel   RiskLevel      `json:"display_level"`
	Thresholds     []WHOThreshold `json:"thresholds"`
	NextThreshold  *WHOThreshold  `json:"next_threshold,omitempty"`
	ProximityPct   float64        `json:"proximity_pct"` // 0 when above all rungs
	ProximityText  string         `json:"proximity_text"`
}
