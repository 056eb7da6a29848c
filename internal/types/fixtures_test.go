package types

import "time"

// buildObservationFixture returns a RawObservation with 7 past and 7
// forecast daily entries around a fixed fetch time, for split tests.
func buildObservationFixture() *RawObservation {
	fetched := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	obs := &RawObservation{
		Latitude:  41.6833,
		Longitude: -82.8833,
		Current: WeatherSnapshot{
			Temperature:   26.5,
			Humidity:      70,
			WindSpeed:     8,
			WindDirection: 210,
			CloudCover:    30,
			UVIndex:       7.5,
			ObservedAt:    fetched,
		},
		FetchedAt: fetched,
	}
	day := fetched.Truncate(24 * time.Hour)
	for i := -7; i < 7; i++ {
		obs.Daily = append(obs.Daily, DailyWeather{
			Date:          day.AddDate(0, 0, i),
			TempMax:       28 + float64(i)*0.2,
			TempMin:       18 + float64(i)*0.2,
			TempMean:      23 + float64(i)*0.2,
			Precipitation: 0,
			WindMax:       12,
			UVMax:         7,
			CloudCover:    40,
		})
	}
	return obs
}
