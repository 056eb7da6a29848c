package risk

import (
	"fmt"

	"bloomwatch/internal/types"
)

// WHOThresholds returns the WHO recreational-water guideline ladder with
// the reference risk scores each rung corresponds to under the calibrated
// score-to-cells mapping.
func WHOThresholds() []types.WHOThreshold {
	return []types.WHOThreshold{
		{Label: "WHO Low", Cells: types.WHOCellsLow, Score: 30},
		{Label: "WHO Moderate", Cells: types.WHOCellsModerate, Score: 55},
		{Label: "WHO High", Cells: types.WHOCellsHigh, Score: 80},
	}
}

// WHOCompare positions a risk result against the WHO guideline ladder:
// which rung the estimate sits below, how close it is, and a display-ready
// sentence for dashboards.
func WHOCompare(r types.RiskResult) types.WHOComparison {
	thresholds := WHOThresholds()

	var next *types.WHOThreshold
	for i := range thresholds {
		if float64(r.EstimatedCells) < thresholds[i].Cells {
			next = &thresholds[i]
			break
		}
	}

	cmp := types.WHOComparison{
		Severity:       r.Severity,
		SeverityLabel:  r.Severity.Label(),
		EstimatedCells: r.EstimatedCells,
		RiskScore:      r.Score,
		DisplayLevel:   r.Severity.DisplayLevel(),
		Thresholds:     thresholds,
		NextThreshold:  next,
	}

	if next != nil {
		cmp.ProximityPct = roundTo(float64(r.EstimatedCells)/next.Cells*100, 1)
		cmp.ProximityText = fmt.Sprintf("%s cells/mL — %s%% of %s threshold (%s cells/mL)",
			groupThousands(r.EstimatedCells), trimFloat(cmp.ProximityPct),
			next.Label, groupThousands(int64(next.Cells)))
	} else {
		cmp.ProximityText = fmt.Sprintf("%s cells/mL — EXCEEDS all WHO thresholds",
			groupThousands(r.EstimatedCells))
	}

	return cmp
}
