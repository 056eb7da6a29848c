// Package landuse resolves the land-cover composition around a coordinate.
// Three tiers, first hit wins: an ESA-WorldCover-derived polygon shapefile
// when one is configured, the nearest catalog site's precomputed table,
// and finally the global default composition.
package landuse

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	shp "github.com/jonas-p/go-shp"

	"bloomwatch/internal/catalog"
	"bloomwatch/internal/types"
)

// ESA WorldCover 10 m class codes carried in the shapefile attribute.
const (
	classTreeCover = 10
	classShrubland = 20
	classGrassland = 30
	classCropland  = 40
	classBuiltUp   = 50
	classBare      = 60
	classWater     = 80
	classWetland   = 90
	classMangroves = 95
)

const (
	// sampleRadiusDeg is ~5 km of latitude, the window the risk model's
	// nutrient coefficients were fit against.
	sampleRadiusDeg = 0.045
	sampleGridN     = 13
)

// Config wires a Source.
type Config struct {
	// ShapefilePath is optional. When set, New fails if the file cannot
	// be loaded: a configured but broken shapefile is an operator error.
	ShapefilePath string
	Catalog       *catalog.Catalog
	Logger        *slog.Logger
}

// Source answers land-cover composition queries.
type Source struct {
	shapes  *shapeIndex
	catalog *catalog.Catalog
	logger  *slog.Logger
}

var _ types.LandCoverSource = (*Source)(nil)

// New builds a Source, loading the shapefile index when a path is set.
// An unusable shapefile is not fatal: the source logs it and answers
// from the catalog tier, the same degradation every other input gets.
func New(cfg Config) (*Source, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Source{catalog: cfg.Catalog, logger: logger}
	if cfg.ShapefilePath != "" {
		idx, err := loadShapeIndex(cfg.ShapefilePath)
		if err != nil {
			logger.Warn("land-cover shapefile unusable, serving catalog land cover",
				slog.String("path", cfg.ShapefilePath),
				slog.String("error", err.Error()))
		} else {
			logger.Info("land-cover shapefile loaded",
				slog.String("path", cfg.ShapefilePath),
				slog.Int("polygons", len(idx.polys)))
			s.shapes = idx
		}
	}
	return s, nil
}

// Composition returns the land-cover percentages within ~5 km of the
// coordinate. It always produces a value; the returned Source field
// records which tier answered.
func (s *Source) Composition(ctx context.Context, lat, lon float64) (*types.LandCover, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.shapes != nil {
		if cover, ok := s.shapes.composition(lat, lon); ok {
			s.logger.DebugContext(ctx, "land cover resolved from shapefile",
				slog.Float64("lat", lat), slog.Float64("lon", lon))
			return &cover, nil
		}
	}

	if s.catalog != nil && s.catalog.Len() > 0 {
		site, dist := s.catalog.Nearest(lat, lon)
		if site.Land != nil {
			cover := *site.Land
			s.logger.DebugContext(ctx, "land cover resolved from catalog",
				slog.String("site_key", site.Key),
				slog.Float64("distance_deg", dist))
			return &cover, nil
		}
	}

	cover := types.DefaultLandCover()
	return &cover, nil
}

type shapeIndex struct {
	polys []landPolygon
}

type landPolygon struct {
	box   shp.Box
	class int
	rings [][]shp.Point
}

func loadShapeIndex(path string) (*shapeIndex, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	// Fields() is empty when the .dbf sidecar is missing or unreadable;
	// go-shp panics on attribute reads in that state.
	fields := r.Fields()
	if len(fields) == 0 {
		return nil, fmt.Errorf("no attribute table (.dbf) alongside %s", path)
	}

	classField := classFieldIndex(fields)
	idx := &shapeIndex{}
	for r.Next() {
		n, shape := r.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}
		class, err := strconv.Atoi(strings.TrimSpace(r.ReadAttribute(n, classField)))
		if err != nil {
			continue
		}
		idx.polys = append(idx.polys, landPolygon{
			box:   poly.BBox(),
			class: class,
			rings: polygonRings(poly),
		})
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(idx.polys) == 0 {
		return nil, fmt.Errorf("no usable polygons in %s", path)
	}
	return idx, nil
}

// classFieldIndex finds the DBF column holding the class code. Falls back
// to the first column, which is where single-attribute exports put it.
func classFieldIndex(fields []shp.Field) int {
	candidates := []string{"class", "code", "dn", "value", "landuse", "land_use"}
	for _, want := range candidates {
		for i, f := range fields {
			if strings.EqualFold(strings.TrimSpace(f.String()), want) {
				return i
			}
		}
	}
	return 0
}

func polygonRings(p *shp.Polygon) [][]shp.Point {
	out := make([][]shp.Point, 0, len(p.Parts))
	for k := 0; k < len(p.Parts); k++ {
		start := int(p.Parts[k])
		end := len(p.Points)
		if k+1 < len(p.Parts) {
			end = int(p.Parts[k+1])
		}
		if end > start {
			out = append(out, p.Points[start:end])
		}
	}
	return out
}

// composition samples a disk of sampleRadiusDeg around the coordinate on
// a sampleGridN grid and buckets the hit classes. The shapefile only
// answers when at least half the disk is classified; thin dataset edges
// fall through to the catalog tier.
func (idx *shapeIndex) composition(lat, lon float64) (types.LandCover, bool) {
	lonRadius := sampleRadiusDeg / math.Max(math.Cos(lat*math.Pi/180), 0.1)

	var total, classified int
	var ag, urban, forest, water, wetland int
	for i := 0; i < sampleGridN; i++ {
		u := -1 + 2*float64(i)/(sampleGridN-1)
		for j := 0; j < sampleGridN; j++ {
			v := -1 + 2*float64(j)/(sampleGridN-1)
			if u*u+v*v > 1 {
				continue
			}
			total++
			class, ok := idx.classAt(lon+v*lonRadius, lat+u*sampleRadiusDeg)
			if !ok {
				continue
			}
			classified++
			switch class {
			case classCropland:
				ag++
			case classBuiltUp:
				urban++
			case classTreeCover, classShrubland:
				forest++
			case classWater:
				water++
			case classWetland, classMangroves:
				wetland++
			}
		}
	}

	if classified*2 < total {
		return types.LandCover{}, false
	}

	pct := func(n int) float64 {
		return math.Round(float64(n)/float64(classified)*1000) / 10
	}
	return types.LandCover{
		Agricultural: pct(ag),
		Urban:        pct(urban),
		Forest:       pct(forest),
		Water:        pct(water),
		Wetland:      pct(wetland),
		// WorldCover has no industrial class; built-up covers both.
		Industrial: 0,
		Source:     "worldcover",
	}, true
}

func (idx *shapeIndex) classAt(x, y float64) (int, bool) {
	for i := range idx.polys {
		p := &idx.polys[i]
		if x < p.box.MinX || x > p.box.MaxX || y < p.box.MinY || y > p.box.MaxY {
			continue
		}
		if ringsContain(p.rings, x, y) {
			return p.class, true
		}
	}
	return 0, false
}

// ringsContain runs even-odd ray casting across every ring, so holes
// cancel their outer ring.
func ringsContain(rings [][]shp.Point, x, y float64) bool {
	inside := false
	for _, ring := range rings {
		for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
			pi, pj := ring[i], ring[j]
			if (pi.Y > y) != (pj.Y > y) &&
				x < (pj.X-pi.X)*(y-pi.Y)/(pj.Y-pi.Y)+pi.X {
				inside = !inside
			}
		}
	}
	return inside
}
