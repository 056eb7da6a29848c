// Package spatial renders a point risk score as a local field for
// mapping: a wind-skewed Gaussian-decay grid plus a shore-point ring.
// Blooms accumulate downwind, so the drift bearing is the wind "from"
// direction plus pi.
package spatial

import (
	"math"

	"bloomwatch/internal/types"
)

const (
	// DefaultGridSize is the per-side cell count of the grid.
	DefaultGridSize = 20

	// DefaultRadius is the grid half-width in decimal degrees, about
	// 6 km at mid-latitudes.
	DefaultRadius = 0.10

	// ShorePoints and ShoreRadius fix the shore annotation ring.
	ShorePoints = 16
	ShoreRadius = 0.04

	windBiasGain = 0.35
	decayGain    = 3.0

	minDistance = 1e-6
)

// Field bundles the grid and shore ring for one request. Non-positive
// or undersized n and radius fall back to the defaults.
func Field(lat, lon, score, windDeg float64, n int, radius float64) types.SpatialGrid {
	return types.SpatialGrid{
		Cells: Grid(lat, lon, score, windDeg, n, radius),
		Shore: Shore(lat, lon, score, windDeg),
	}
}

// Grid builds the n x n intensity field spanning +-radius degrees
// around the center. Each cell decays with distance and skews toward
// the drift bearing; intensity is clamped to [0,1].
func Grid(lat, lon, score, windDeg float64, n int, radius float64) []types.GridCell {
	if n < types.MinGridDimension {
		n = DefaultGridSize
	}
	if radius <= 0 {
		radius = DefaultRadius
	}

	drift := driftBearing(windDeg)
	driftLat := math.Cos(drift)
	driftLon := math.Sin(drift)
	step := 2 * radius / float64(n-1)

	cells := make([]types.GridCell, 0, n*n)
	for i := 0; i < n; i++ {
		gLat := lat - radius + float64(i)*step
		for j := 0; j < n; j++ {
			gLon := lon - radius + float64(j)*step

			dlat := gLat - lat
			dlon := gLon - lon
			dist := math.Max(math.Sqrt(dlat*dlat+dlon*dlon), minDistance)

			alignment := (driftLat*dlat + driftLon*dlon) / dist
			bias := 1 + windBiasGain*alignment
			decay := math.Exp(-decayGain * (dist / radius) * (dist / radius))

			cells = append(cells, types.GridCell{
				Lat:       roundTo(gLat, 6),
				Lon:       roundTo(gLon, 6),
				Intensity: roundTo(clamp(score/100*decay*bias, 0, 1), 4),
			})
		}
	}
	return cells
}

// Shore builds the fixed ring of shore risk annotations. Points facing
// the drift bearing carry up to 90% of the center score, the upwind
// shore as little as 10%.
func Shore(lat, lon, score, windDeg float64) []types.ShorePoint {
	drift := driftBearing(windDeg)

	points := make([]types.ShorePoint, 0, ShorePoints)
	for i := 0; i < ShorePoints; i++ {
		angle := 2 * math.Pi * float64(i) / ShorePoints
		alignment := math.Cos(angle - drift)
		risk := clamp(score*(0.5+0.4*alignment), 0, 100)

		points = append(points, types.ShorePoint{
			Lat:  roundTo(lat+ShoreRadius*math.Cos(angle), 6),
			Lon:  roundTo(lon+ShoreRadius*math.Sin(angle), 6),
			Risk: roundTo(risk, 1),
		})
	}
	return points
}

func driftBearing(windDeg float64) float64 {
	return windDeg*math.Pi/180 + math.Pi
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func roundTo(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
