package risk

import (
	"fmt"
	"time"

	"bloomwatch/internal/types"
)

// NutrientFeatures is the output of the nutrient-loading proxy: land-use
// export potential, rainfall delivery, and seasonal activity. Nitrogen and
// phosphorus cannot be measured remotely, so loading is modeled as
// catchment export x delivery x season.
type NutrientFeatures struct {
	// LandUseCoefficient is the catchment export potential in [0,1],
	// weighted by the per-class coefficients.
	LandUseCoefficient float64 `json:"land_use_coefficient"`

	// DeliveryScore reflects how actively rainfall is washing nutrients
	// into the water right now, one of five ladder rungs in [0.15, 0.90].
	DeliveryScore float64 `json:"delivery_score"`

	SeasonWeight float64 `json:"season_weight"`
	SeasonLabel  string  `json:"season_label"`

	// Score is coefficient x delivery x season on a 0-100 scale. The
	// component layer passes it through unchanged apart from clamping.
	Score float64 `json:"nutrient_score"`

	AgriculturalPct float64 `json:"agricultural_pct"`
	UrbanPct        float64 `json:"urban_pct"`

	Factors []types.Factor `json:"factors,omitempty"`
}

// NutrientFeatures estimates nutrient loading from land use, the rainfall
// features, and the season at the observation's hemisphere.
func (m *Model) NutrientFeatures(obs *types.RawObservation, precip PrecipitationFeatures) NutrientFeatures {
	land := obs.Land

	coeff := (land.Agricultural*m.cal.ExportCropland +
		land.Urban*m.cal.ExportUrban +
		land.Forest*m.cal.ExportForest +
		land.Wetland*m.cal.ExportWetland) / 100.0

	var delivery float64
	switch {
	case precip.FirstFlush >= 0.6:
		delivery = 0.90
	case precip.Rainfall48h >= m.cal.RainHeavy:
		delivery = 0.70
	case precip.Rainfall7d > 30:
		delivery = 0.50
	case precip.Rainfall48h >= m.cal.RainSignificant:
		delivery = 0.30
	default:
		delivery = 0.15
	}

	weight, label := seasonWeight(obs.FetchedAt, obs.Latitude)

	score := coeff * delivery * weight * 100
	if score > 100 {
		score = 100
	}

	f := NutrientFeatures{
		LandUseCoefficient: roundTo(coeff, 3),
		DeliveryScore:      roundTo(delivery, 2),
		SeasonWeight:       weight,
		SeasonLabel:        label,
		Score:              roundTo(score, 1),
		AgriculturalPct:    land.Agricultural,
		UrbanPct:           land.Urban,
	}

	if land.Agricultural > 40 {
		f.Factors = append(f.Factors, types.Factor{
			Code:   "agricultural_catchment",
			Detail: fmt.Sprintf("%.0f%% agricultural land — high fertilizer runoff potential", land.Agricultural),
		})
	}
	if land.Urban > 40 {
		f.Factors = append(f.Factors, types.Factor{
			Code:   "urban_catchment",
			Detail: fmt.Sprintf("%.0f%% urban land — sewage/lawn fertilizer runoff", land.Urban),
		})
	}
	if precip.FirstFlush >= 0.6 {
		f.Factors = append(f.Factors, types.Factor{
			Code:   "first_flush_delivery",
			Detail: "First flush event delivering accumulated nutrients to water body",
		})
	}
	if weight >= 0.8 {
		f.Factors = append(f.Factors, types.Factor{
			Code:   "active_season",
			Detail: fmt.Sprintf("Season: %s — elevated nutrient availability", label),
		})
	}

	return f
}

// seasonWeight maps the calendar month to agricultural activity, shifting
// six months below the equator.
func seasonWeight(at time.Time, lat float64) (float64, string) {
	month := int(at.Month())
	if lat < 0 {
		month = (month+6-1)%12 + 1
	}
	switch {
	case month >= 4 && month <= 9:
		return 1.0, "Growing season"
	case month == 10 || month == 11:
		return 0.8, "Post-harvest"
	default:
		return 0.3, "Winter (low activity)"
	}
}
