package forecast

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"bloomwatch/internal/risk"
	"bloomwatch/internal/types"
)

// Forecast error grows with lead time. Additive temperature sigma and
// multiplicative precipitation CV per lead day.
var (
	tempSigmaByDay = [HorizonDays]float64{0.5, 0.8, 1.1, 1.4, 1.7, 2.0, 2.3}
	precipCVByDay  = [HorizonDays]float64{0.15, 0.20, 0.25, 0.30, 0.35, 0.40, 0.45}
)

const (
	// SampleCount is the Monte Carlo draw count per forecast day.
	SampleCount = 50

	windCV     = 0.20
	uvCV       = 0.12
	cloudSigma = 10.0

	// randSeed fixes the random stream so runs reproduce bit-for-bit.
	randSeed = 42

	// sampleConcurrency bounds the per-day sample fan-out.
	sampleConcurrency = 8
)

// Quantifier attaches Monte Carlo P10/P90 bands to a projection. Each
// sample perturbs the forecast inputs within their lead-time error and
// re-runs the full model chain.
type Quantifier struct {
	model *risk.Model
}

// NewQuantifier constructs a Quantifier on the given model.
func NewQuantifier(model *risk.Model) *Quantifier {
	return &Quantifier{model: model}
}

// Bands fills the P10/P90 bands of the series and returns it. Entry 0 is
// zero-width at today's score. Parallel samples reproduce the serial
// stream: every (day, sample) pair owns a sub-generator seeded from the
// fixed seed and its own index.
func (q *Quantifier) Bands(ctx context.Context, obs *types.RawObservation, series types.ForecastSeries) (types.ForecastSeries, error) {
	if len(series.Scores) == 0 {
		return series, nil
	}

	p10 := []float64{series.Scores[0]}
	p90 := []float64{series.Scores[0]}
	bases := sampleBasesFor(obs)

	for day := 0; day < HorizonDays; day++ {
		if err := ctx.Err(); err != nil {
			return series, err
		}

		// Fail-soft fallback: the day's deterministic score.
		deterministic := series.Scores[0]
		if day+1 < len(series.Scores) {
			deterministic = series.Scores[day+1]
		}

		scores := make([]float64, SampleCount)
		g, _ := errgroup.WithContext(ctx)
		g.SetLimit(sampleConcurrency)
		for s := 0; s < SampleCount; s++ {
			s := s
			g.Go(func() error {
				rng := rand.New(rand.NewPCG(randSeed, uint64(day)*SampleCount+uint64(s)))
				score := q.sampleScore(obs, bases, day, rng)
				if math.IsNaN(score) {
					score = deterministic
				}
				scores[s] = score
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return series, err
		}

		sort.Float64s(scores)
		p10 = append(p10, round1(percentileLinear(scores, 10)))
		p90 = append(p90, round1(percentileLinear(scores, 90)))
	}

	series.P10 = p10
	series.P90 = p90
	return series, nil
}

// sampleBases are the unperturbed per-day forecast values the draws
// center on, indexed straight from the forecast arrays.
type sampleBases struct {
	tmean  [HorizonDays]float64
	tmax   [HorizonDays]float64
	tmin   [HorizonDays]float64
	precip [HorizonDays]float64
	wind   [HorizonDays]float64
	uv     [HorizonDays]float64
	cloud  [HorizonDays]float64
}

func sampleBasesFor(obs *types.RawObservation) sampleBases {
	fc := obs.ForecastDaily()
	var b sampleBases
	for i := 0; i < HorizonDays; i++ {
		if i < len(fc) {
			b.tmean[i] = fc[i].TempMean
			b.tmax[i] = fc[i].TempMax
			b.tmin[i] = fc[i].TempMin
			b.precip[i] = fc[i].Precipitation
			b.wind[i] = fc[i].WindMax
			b.uv[i] = fc[i].UVMax
			b.cloud[i] = fc[i].CloudCover
			continue
		}
		b.tmean[i] = defaultTempMean
		b.tmax[i] = b.tmean[i] + 3
		b.tmin[i] = b.tmean[i] - 3
		b.precip[i] = defaultPrecip
		b.wind[i] = defaultWind
		b.uv[i] = defaultUV
		b.cloud[i] = defaultCloud
	}
	return b
}

// sampleScore perturbs one forecast day and re-runs the chain. The draw
// order is fixed: temperature, wind, UV, cloud, precipitation, then the
// daily max, min, and precipitation entries.
func (q *Quantifier) sampleScore(base *types.RawObservation, b sampleBases, day int, rng *rand.Rand) float64 {
	sigma := tempSigmaByDay[day]
	cv := precipCVByDay[day]

	temp := b.tmean[day] + rng.NormFloat64()*sigma
	wind := math.Max(0.5, b.wind[day]*(1+rng.NormFloat64()*windCV))
	uv := math.Max(0, b.uv[day]*(1+rng.NormFloat64()*uvCV))
	cloud := math.Min(math.Max(b.cloud[day]+rng.NormFloat64()*cloudSigma, 0), 100)
	precip := math.Max(0, b.precip[day]*(1+rng.NormFloat64()*cv))

	tmax := b.tmax[day] + rng.NormFloat64()*sigma
	tmin := b.tmin[day] + rng.NormFloat64()*sigma
	dailyPrecip := math.Max(0, b.precip[day]+rng.NormFloat64()*(b.precip[day]*cv+0.1))

	at := base.FetchedAt.Truncate(24 * time.Hour).AddDate(0, 0, day+1)

	daily := make([]types.DailyWeather, 0, HorizonDays)
	for j := 0; j < HorizonDays; j++ {
		daily = append(daily, types.DailyWeather{
			Date:          at.AddDate(0, 0, j-HorizonDays),
			TempMax:       tmax,
			TempMin:       tmin,
			TempMean:      temp,
			Precipitation: dailyPrecip,
			WindMax:       wind,
			UVMax:         uv,
			CloudCover:    cloud,
		})
	}

	obs := &types.RawObservation{
		Latitude:  base.Latitude,
		Longitude: base.Longitude,
		Current: types.WeatherSnapshot{
			Temperature:   temp,
			Humidity:      syntheticHumidity,
			Precipitation: precip,
			WindSpeed:     wind,
			WindDirection: syntheticWindDir,
			CloudCover:    cloud,
			UVIndex:       uv,
			ObservedAt:    at,
		},
		Daily:     daily,
		History:   base.History,
		Land:      base.Land,
		Density:   base.Density,
		Quality:   base.Quality,
		FetchedAt: at,
	}
	return q.model.Evaluate(obs).Risk.Score
}

// percentileLinear is the linear-interpolation percentile of an
// ascending-sorted sample.
func percentileLinear(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
