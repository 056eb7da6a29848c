package risk

import (
	"fmt"
	"math"

	"bloomwatch/internal/types"
)

// BloomProbability combines the four component scores into the final risk
// result via a weighted geometric mean. The geometric mean is deliberate:
// growth needs all factors favorable at once, so any component near zero
// collapses the overall score no matter how high the others run.
func (m *Model) BloomProbability(
	scores types.ComponentScores,
	growth types.GrowthResult,
	anchor types.DensityAnchor,
	confidence types.Confidence,
) types.RiskResult {
	cal := m.cal

	values := [4]float64{scores.Temperature, scores.Nutrients, scores.Stagnation, scores.Light}
	weights := [4]float64{cal.WeightTemperature, cal.WeightNutrients, cal.WeightStagnation, cal.WeightLight}

	// Log-space mean with each score floored at 1 to keep ln defined.
	var logSum, weightSum float64
	for i, v := range values {
		logSum += weights[i] * math.Log(math.Max(v, 1.0))
		weightSum += weights[i]
	}
	geoMean := clampf(math.Exp(logSum/weightSum), 0, 100)

	// Fast growth nudges the score up, near-zero growth pulls it down.
	growthModifier := clampf((growth.Mu-cal.GrowthNeutralMu)*cal.GrowthGain,
		cal.GrowthModifierMin, cal.GrowthModifierMax)

	// External density anchor, blended softly when the source answered.
	var anchorBlend float64
	if anchor.Available() {
		anchorBlend = (cal.AnchorScore(anchor.Severity) - geoMean) * cal.AnchorBlendWeight
	}

	score := clampf(geoMean+growthModifier+anchorBlend, 0, 100)

	cells := math.Pow(10, cal.CellsSlope*score+cal.CellsIntercept)
	severity := types.SeverityForCells(cells)
	level := types.RiskLevelForScore(score)

	if confidence == "" {
		confidence = types.ConfidenceMedium
	}

	primary := scores.Primary()
	limiting := scores.Limiting()

	return types.RiskResult{
		Score:          roundTo(score, 1),
		Severity:       severity,
		SeverityLabel:  severity.Label(),
		EstimatedCells: int64(cells),
		Level:          level,
		Confidence:     confidence,
		Components:     scores,
		GeometricMean:  roundTo(geoMean, 1),
		GrowthModifier: roundTo(growthModifier, 2),
		Mu:             growth.Mu,
		PrimaryDriver:  primary,
		LimitingDriver: limiting,
		Advisory:       buildAdvisory(level, primary, cells, confidence),
	}
}

// buildAdvisory composes the plain-English health advisory: the action for
// the risk level, the dominant driver, and the confidence-qualified cell
// estimate.
func buildAdvisory(level types.RiskLevel, primary types.Component, cells float64, confidence types.Confidence) string {
	var base string
	switch level {
	case types.LevelSafe:
		base = "The water body shows low cyanobacteria bloom risk. " +
			"Normal recreational use is considered safe under current conditions. " +
			"Continue routine monitoring."
	case types.LevelLow:
		base = "Low-to-moderate bloom risk detected. " +
			"Recreational use is generally safe but advisable to monitor over coming days. " +
			"Avoid swallowing water. Watch for surface scum or discolouration."
	case types.LevelWarning:
		base = "Elevated cyanobacteria bloom risk. " +
			"Avoid direct water contact, especially for children and pets. " +
			"Do not use for drinking without treatment. " +
			"Notify local environmental health authority."
	case types.LevelCritical:
		base = "CRITICAL bloom risk. Acute danger. " +
			"DO NOT use this water for drinking, bathing, or livestock. " +
			"Immediately notify local health authority and post warning signs. " +
			"Seek alternative water sources."
	default:
		base = "Risk assessment unavailable."
	}

	var driver string
	switch primary {
	case types.ComponentTemperature:
		driver = "abnormally warm water temperature"
	case types.ComponentNutrients:
		driver = "high nutrient loading from agricultural or urban runoff"
	case types.ComponentStagnation:
		driver = "stagnant water and low mixing conditions"
	case types.ComponentLight:
		driver = "high light availability and UV exposure"
	default:
		driver = string(primary)
	}

	return fmt.Sprintf("%s Primary driver: %s. Confidence: %s (%s est. cells/mL).",
		base, driver, confidence, groupThousands(int64(math.Round(cells))))
}
