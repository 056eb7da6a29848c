package risk

import (
	"math"
	"time"

	"bloomwatch/internal/types"
)

// summerObs builds a mid-July Lake Erie observation: warm week, calm wind,
// dry spell, agricultural catchment, no satellite thermal or density data.
func summerObs() *types.RawObservation {
	fetched := time.Date(2025, time.July, 15, 12, 0, 0, 0, time.UTC)

	daily := make([]types.DailyWeather, 0, 14)
	pastMeans := []float64{24, 24.5, 25, 25.5, 26, 26.5, 27}
	for i, mean := range pastMeans {
		daily = append(daily, types.DailyWeather{
			Date:       time.Date(2025, time.July, 8+i, 0, 0, 0, 0, time.UTC),
			TempMax:    mean + 4,
			TempMin:    mean - 4,
			TempMean:   mean,
			WindMax:    8,
			UVMax:      7,
			CloudCover: 30,
		})
	}
	for i := 0; i < 7; i++ {
		daily = append(daily, types.DailyWeather{
			Date:       time.Date(2025, time.July, 15+i, 0, 0, 0, 0, time.UTC),
			TempMax:    31,
			TempMin:    23,
			TempMean:   27,
			WindMax:    9,
			UVMax:      7,
			CloudCover: 30,
		})
	}

	return &types.RawObservation{
		Latitude:  41.6833,
		Longitude: -82.8833,
		Current: types.WeatherSnapshot{
			Temperature:   26,
			Humidity:      60,
			WindSpeed:     8,
			WindDirection: 180,
			CloudCover:    30,
			UVIndex:       7,
			ObservedAt:    fetched,
		},
		Daily: daily,
		Rain:  types.RainWindow{Days: make([]float64, 14)},
		Land: types.LandCover{
			Agricultural: 62,
			Urban:        15,
			Forest:       12,
			Water:        8,
			Wetland:      3,
			Industrial:   5,
			Source:       "catalog",
		},
		Density:   types.UnavailableAnchor(),
		Quality:   types.DataQuality{Confidence: types.ConfidenceMedium},
		FetchedAt: fetched,
	}
}

// julyHistory is three years of early-July archive rows alternating 23 and
// 25 degrees: mean 24, sample std just over 1.
func julyHistory() types.HistoricalSeries {
	var h types.HistoricalSeries
	for _, year := range []int{2021, 2022, 2023} {
		for day := 1; day <= 12; day++ {
			h.Dates = append(h.Dates, time.Date(year, time.July, day, 0, 0, 0, 0, time.UTC))
			temp := 23.0
			if day%2 == 0 {
				temp = 25.0
			}
			h.Temps = append(h.Temps, temp)
		}
	}
	return h
}

// sinusoidHistory is a full synthetic year following an exact harmonic,
// for baseline-recovery tests.
func sinusoidHistory(a, b, c float64) types.HistoricalSeries {
	var h types.HistoricalSeries
	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 365; i++ {
		d := start.AddDate(0, 0, i)
		doy := float64(d.YearDay())
		angle := 2 * math.Pi * doy / 365
		h.Dates = append(h.Dates, d)
		h.Temps = append(h.Temps, a+b*math.Sin(angle)+c*math.Cos(angle))
	}
	return h
}

func hasFactor(factors []types.Factor, code string) bool {
	for _, f := range factors {
		if f.Code == code {
			return true
		}
	}
	return false
}
