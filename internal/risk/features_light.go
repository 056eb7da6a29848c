package risk

import (
	"fmt"
	"math"

	"bloomwatch/internal/types"
)

// LightFeatures is the output of the light extractor: UV, astronomical
// photoperiod, cloud suppression, and the seasonal bloom window.
type LightFeatures struct {
	UVIndex float64 `json:"uv_index"`
	UVScore float64 `json:"uv_score"` // UV normalized to an index of 11

	DayLengthHours   float64 `json:"day_length_hours"`
	PhotoperiodScore float64 `json:"photoperiod_score"` // day length against a 16 h cap

	CloudCoverPct float64 `json:"cloud_cover_pct"`
	CloudFactor   float64 `json:"cloud_factor"` // clouds suppress but never eliminate light

	// SeasonalScore is a cosine wave in [0,1] peaking at mid-summer for
	// the observation's hemisphere.
	SeasonalScore float64 `json:"seasonal_score"`

	// Score is the weighted combination on a 0-100 scale.
	Score float64 `json:"light_score"`

	Factors []types.Factor `json:"factors,omitempty"`
}

// LightFeatures extracts light-availability features for photosynthesis
// from current conditions, latitude, and day of year.
func (m *Model) LightFeatures(obs *types.RawObservation) LightFeatures {
	uv := obs.Current.UVIndex
	cloud := obs.Current.CloudCover
	lat := obs.Latitude
	doy := float64(obs.FetchedAt.YearDay())

	uvScore := math.Min(uv/11.0, 1.0)

	// Astronomical day length from solar declination and the sunrise
	// hour angle.
	latRad := lat * math.Pi / 180
	declination := 23.45 * math.Sin(2*math.Pi/365*(doy-81)) * math.Pi / 180
	cosHA := clampf(-math.Tan(latRad)*math.Tan(declination), -1, 1)
	hourAngle := math.Acos(cosHA) * 180 / math.Pi
	dayLength := 2.0 * hourAngle / 15.0
	photoperiod := math.Min(dayLength/16.0, 1.0)

	cloudFactor := 1.0 - cloud/100.0*0.60

	peakDay := 200.0 // mid-July
	if lat < 0 {
		peakDay = 15.0 // mid-January
	}
	seasonal := (math.Cos(2*math.Pi*(doy-peakDay)/365) + 1) / 2

	score := (0.40*uvScore + 0.25*photoperiod + 0.15*cloudFactor + 0.20*seasonal) * 100

	f := LightFeatures{
		UVIndex:          uv,
		UVScore:          roundTo(uvScore, 3),
		DayLengthHours:   roundTo(dayLength, 1),
		PhotoperiodScore: roundTo(photoperiod, 3),
		CloudCoverPct:    cloud,
		CloudFactor:      roundTo(cloudFactor, 3),
		SeasonalScore:    roundTo(seasonal, 3),
		Score:            roundTo(clampf(score, 0, 100), 1),
	}

	if uv >= 6 {
		f.Factors = append(f.Factors, types.Factor{
			Code:   "high_uv",
			Detail: fmt.Sprintf("High UV index (%s) favoring surface bloom formation", trimFloat(uv)),
		})
	}
	if seasonal > 0.6 {
		f.Factors = append(f.Factors, types.Factor{
			Code:   "peak_season",
			Detail: fmt.Sprintf("Peak bloom season (seasonal risk %.0f%%)", seasonal*100),
		})
	}
	if dayLength > 14 {
		f.Factors = append(f.Factors, types.Factor{
			Code:   "long_days",
			Detail: fmt.Sprintf("Long day length (%.1fh) — extended photosynthesis", dayLength),
		})
	}

	return f
}
