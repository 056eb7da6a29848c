// Package ingest assembles raw observations. The pipeline fans out to
// every upstream source concurrently, isolates per-source failures into
// the observation's data-quality block, and grades overall confidence.
// Only the loss of current weather aborts a fetch; everything else
// degrades.
package ingest

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"bloomwatch/internal/cache"
	"bloomwatch/internal/catalog"
	"bloomwatch/internal/types"
)

// usableHistoryRows is the minimum archive length that counts toward
// confidence grading. Shorter series still feed the baseline but flag
// the observation as thin.
const usableHistoryRows = 100

// CacheMetrics is the slice of the telemetry surface the pipeline needs.
type CacheMetrics interface {
	RecordCacheLookup(ctx context.Context, hit bool)
}

// Config wires a Pipeline. Density, Catalog, Cache, and Metrics are
// optional; the remaining sources are required.
type Config struct {
	Weather types.ObservationSource
	Archive types.ArchiveSource
	Thermal types.ThermalSource
	Density types.DensityAnchorSource
	Land    types.LandCoverSource

	// Catalog supplies the fallback density anchor when the live
	// calibration endpoint is absent or failing.
	Catalog *catalog.Catalog
	Cache   *cache.ObservationCache
	Metrics CacheMetrics

	Logger *slog.Logger
	Clock  types.Clock
}

// Pipeline fetches and assembles observations for a coordinate.
type Pipeline struct {
	weather types.ObservationSource
	archive types.ArchiveSource
	thermal types.ThermalSource
	density types.DensityAnchorSource
	land    types.LandCoverSource

	catalog *catalog.Catalog
	cache   *cache.ObservationCache
	metrics CacheMetrics

	logger *slog.Logger
	clock  types.Clock
}

// NewPipeline builds a Pipeline from its sources.
func NewPipeline(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Pipeline{
		weather: cfg.Weather,
		archive: cfg.Archive,
		thermal: cfg.Thermal,
		density: cfg.Density,
		land:    cfg.Land,
		catalog: cfg.Catalog,
		cache:   cfg.Cache,
		metrics: cfg.Metrics,
		logger:  logger,
		clock:   clock,
	}
}

// Fetch returns the observation for a coordinate, serving from cache when
// a fresh entry exists. A fetch fails only when the weather source fails;
// every other source degrades into Quality.SourceErrors.
func (p *Pipeline) Fetch(ctx context.Context, lat, lon float64) (*types.RawObservation, error) {
	if p.cache != nil {
		obs, ok := p.cache.Get(ctx, lat, lon)
		if p.metrics != nil {
			p.metrics.RecordCacheLookup(ctx, ok)
		}
		if ok {
			return obs, nil
		}
	}

	started := p.clock.Now()
	obs := &types.RawObservation{Latitude: lat, Longitude: lon}

	var mu sync.Mutex
	srcErrs := make(map[string]string)
	record := func(source, msg string) {
		mu.Lock()
		srcErrs[source] = msg
		mu.Unlock()
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		report, err := p.weather.Weather(gCtx, lat, lon)
		if err != nil {
			// The model cannot run without current weather; propagating
			// cancels the sibling fetches.
			record(types.SourceWeather, err.Error())
			return err
		}
		mu.Lock()
		obs.Current = report.Current
		obs.Daily = report.Daily
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		history, err := p.archive.TemperatureHistory(gCtx, lat, lon)
		if err != nil {
			record(types.SourceArchive, err.Error())
			return nil
		}
		mu.Lock()
		obs.History = *history
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		rain, err := p.archive.RecentRain(gCtx, lat, lon)
		if err != nil {
			record(types.SourceRain, err.Error())
			return nil
		}
		mu.Lock()
		obs.Rain = *rain
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		reading, err := p.thermal.WaterTemperature(gCtx, lat, lon)
		if err != nil {
			record(types.SourceThermal, err.Error())
			return nil
		}
		if reading.Missing() {
			record(types.SourceThermal, "no thermal source available")
		}
		mu.Lock()
		obs.Thermal = reading
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		anchor := p.densityAnchor(gCtx, lat, lon, record)
		mu.Lock()
		obs.Density = anchor
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		cover, err := p.land.Composition(gCtx, lat, lon)
		if err != nil {
			record(types.SourceLand, err.Error())
			mu.Lock()
			obs.Land = types.DefaultLandCover()
			mu.Unlock()
			return nil
		}
		mu.Lock()
		obs.Land = *cover
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	obs.FetchedAt = p.clock.Now()
	obs.Quality = types.DataQuality{
		Confidence:   gradeConfidence(obs),
		SourceErrors: srcErrs,
	}

	p.logger.InfoContext(ctx, "observation assembled",
		slog.Float64("lat", lat),
		slog.Float64("lon", lon),
		slog.String("confidence", string(obs.Quality.Confidence)),
		slog.Int("source_errors", len(srcErrs)),
		slog.Duration("duration", p.clock.Now().Sub(started)))

	if p.cache != nil {
		if err := p.cache.Put(ctx, lat, lon, obs); err != nil {
			p.logger.WarnContext(ctx, "caching observation failed",
				slog.String("error", err.Error()))
		}
	}
	return obs, nil
}

// densityAnchor runs the calibration chain: live endpoint, then the
// nearest catalog site's published anchor, then unavailable.
func (p *Pipeline) densityAnchor(ctx context.Context, lat, lon float64, record func(string, string)) types.DensityAnchor {
	if p.density != nil {
		anchor, err := p.density.NearestAnchor(ctx, lat, lon)
		if err == nil {
			return *anchor
		}
		record(types.SourceDensity, err.Error())
	}

	if p.catalog != nil && p.catalog.Len() > 0 {
		site, _ := p.catalog.Nearest(lat, lon)
		if site.Anchor != nil {
			return *site.Anchor
		}
	}
	return types.UnavailableAnchor()
}

// gradeConfidence counts the signals the aggregator leans on hardest:
// live weather, a usable temperature archive, and a density anchor.
func gradeConfidence(obs *types.RawObservation) types.Confidence {
	available := 0
	if !obs.Current.ObservedAt.IsZero() {
		available++
	}
	if obs.History.Len() > usableHistoryRows {
		available++
	}
	if obs.Density.Available() {
		available++
	}
	switch {
	case available >= 3:
		return types.ConfidenceHigh
	case available >= 2:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}
