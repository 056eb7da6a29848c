package risk

import (
	"fmt"
	"math"

	"bloomwatch/internal/types"
)

// GrowthRate computes the specific growth rate via Monod kinetics:
//
//	µ = µ_max · f(T) · f(N) · f(L) · f(S)
//
// with a Gaussian temperature response (Robarts & Zohary 1987, calibrated
// for Microcystis aeruginosa), half-saturation nutrient limitation (Monod
// 1949), normalized light limitation, and a floored stagnation factor.
// Also derives doubling time and an 8-point relative biomass trajectory.
func (m *Model) GrowthRate(scores types.ComponentScores, waterTemp float64) types.GrowthResult {
	cal := m.cal

	dT := waterTemp - cal.TempPeak
	fT := clampf(math.Exp(-(dT*dT)/(2*cal.TempResponseSigma*cal.TempResponseSigma)), 0, 1)

	n := scores.Nutrients
	fN := clampf(n/(n+cal.NutrientHalfSat), 0, 1)

	fL := clampf(scores.Light/100.0, 0, 1)

	// Stagnation helps surface accumulation but blooms grow in moving
	// water too, hence the floor.
	fS := clampf(cal.MinStagnationFactor+(scores.Stagnation/100.0)*(1.0-cal.MinStagnationFactor),
		cal.MinStagnationFactor, 1)

	mu := roundTo(clampf(cal.MuMax*fT*fN*fL*fS, 0, cal.MuMax), 4)

	var doubling *float64
	if mu > 0.001 {
		d := roundTo(math.Ln2/mu*24.0, 1)
		doubling = &d
	}

	// Discrete daily compounding: B(t+1) = B(t) * e^µ, day 0 through 7.
	biomass := make([]float64, 0, 8)
	b := 1.0
	for i := 0; i < 8; i++ {
		biomass = append(biomass, roundTo(b, 4))
		b *= math.Exp(mu)
	}

	limiting := types.ComponentTemperature
	lowest := fT
	for _, pair := range []struct {
		name  types.Component
		value float64
	}{
		{types.ComponentNutrients, fN},
		{types.ComponentLight, fL},
		{types.ComponentStagnation, fS},
	} {
		if pair.value < lowest {
			lowest = pair.value
			limiting = pair.name
		}
	}

	var factors []types.Factor
	if fT < 0.3 {
		factors = append(factors, types.Factor{
			Code: "temperature_limited",
			Detail: fmt.Sprintf("Temperature limiting — f(T)=%.2f (water %s°C far from %s°C optimum)",
				fT, trimFloat(waterTemp), trimFloat(cal.TempPeak)),
		})
	}
	if fN < 0.3 {
		factors = append(factors, types.Factor{
			Code:   "nutrient_limited",
			Detail: fmt.Sprintf("Nutrients limiting — f(N)=%.2f (low nutrient loading)", fN),
		})
	}
	if fL < 0.3 {
		factors = append(factors, types.Factor{
			Code:   "light_limited",
			Detail: fmt.Sprintf("Light limiting — f(L)=%.2f (low UV/cloud/short days)", fL),
		})
	}
	if mu > 0.5 && doubling != nil {
		factors = append(factors, types.Factor{
			Code:   "rapid_growth",
			Detail: fmt.Sprintf("Rapid growth: µ=%.2f/day — doubling every %.0fh", mu, *doubling),
		})
	} else if mu > 0.3 {
		factors = append(factors, types.Factor{
			Code:   "moderate_growth",
			Detail: fmt.Sprintf("Moderate growth: µ=%.2f/day", mu),
		})
	}

	return types.GrowthResult{
		Mu:            mu,
		DoublingHours: doubling,
		Biomass:       biomass,
		Limitation: types.LimitationFactors{
			Temperature: roundTo(fT, 3),
			Nutrients:   roundTo(fN, 3),
			Light:       roundTo(fL, 3),
			Stagnation:  roundTo(fS, 3),
		},
		LimitingFactor: limiting,
		Factors:        factors,
	}
}
