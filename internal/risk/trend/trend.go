// Package trend classifies the recent risk trajectory of a water body.
// A Mann-Kendall monotonic trend test with Sen's slope estimator runs
// over the trailing 30 days of scores; when no stored history exists, a
// temperature-proxy series stands in.
package trend

import (
	"fmt"
	"math"
	"sort"

	"bloomwatch/internal/types"
)

const (
	// MinSeries is the fewest points the Mann-Kendall test accepts.
	MinSeries = 4

	alpha = 0.05

	// A significant trend under half a point per day still reads as
	// stable; above two points per day it reads as strong.
	slopeThreshold = 0.5
	strongSlope    = 2.0

	historyWindow = 30
	minHistory    = 10
)

// Compute runs the trend test on a daily risk series, oldest first.
// NaN entries are dropped before testing.
func Compute(scores []float64) types.TrendResult {
	clean := make([]float64, 0, len(scores))
	for _, s := range scores {
		if !math.IsNaN(s) {
			clean = append(clean, s)
		}
	}
	if len(clean) < MinSeries {
		return noData()
	}

	slope := senSlope(clean)
	p := mannKendallP(clean)
	significant := p < alpha

	dir := types.TrendStable
	if significant {
		switch {
		case slope > slopeThreshold:
			dir = types.TrendWorsening
		case slope < -slopeThreshold:
			dir = types.TrendImproving
		}
	}

	return types.TrendResult{
		Direction:   dir,
		Slope:       roundTo(slope, 3),
		PValue:      roundTo(p, 4),
		Significant: significant,
		N:           len(clean),
		Description: describe(dir, slope, p, significant),
	}
}

func noData() types.TrendResult {
	return types.TrendResult{
		Direction:   types.TrendStable,
		Slope:       0,
		PValue:      1,
		Significant: false,
		N:           0,
		Description: "Insufficient historical data for trend analysis.",
	}
}

// ProxySeries synthesizes a daily risk history from archived air
// temperature: without stored assessments, temperature z-scores against
// the window's own mean stand in for past risk. The current score is
// appended as the newest point.
func ProxySeries(hist types.HistoricalSeries, currentScore float64) []float64 {
	if len(hist.Temps) < minHistory {
		return []float64{currentScore}
	}

	temps := hist.Temps
	if len(temps) > historyWindow {
		temps = temps[len(temps)-historyWindow:]
	}

	mean := 0.0
	for _, t := range temps {
		mean += t
	}
	mean /= float64(len(temps))

	ss := 0.0
	for _, t := range temps {
		d := t - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(temps)-1))
	if std == 0 || math.IsNaN(std) {
		out := make([]float64, len(temps))
		for i := range out {
			out[i] = currentScore
		}
		return out
	}

	out := make([]float64, 0, len(temps)+1)
	for _, t := range temps {
		z := (t - mean) / std
		s := sigmoid(0.3*(t-25)+0.4*z) * 100
		out = append(out, roundTo(s, 1))
	}
	return append(out, currentScore)
}

// senSlope is the median of all pairwise slopes, Sen (1968).
func senSlope(x []float64) float64 {
	n := len(x)
	slopes := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			slopes = append(slopes, (x[j]-x[i])/float64(j-i))
		}
	}
	if len(slopes) == 0 {
		return 0
	}
	sort.Float64s(slopes)
	mid := len(slopes) / 2
	if len(slopes)%2 == 1 {
		return slopes[mid]
	}
	return (slopes[mid-1] + slopes[mid]) / 2
}

// mannKendallP is the two-tailed p-value of the tie-corrected S
// statistic with continuity correction, Mann (1945), Kendall (1975).
func mannKendallP(x []float64) float64 {
	n := len(x)
	s := 0.0
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			switch {
			case x[j] > x[i]:
				s++
			case x[j] < x[i]:
				s--
			}
		}
	}

	variance := float64(n*(n-1)*(2*n+5)) / 18
	for _, t := range tieSizes(x) {
		variance -= float64(t*(t-1)*(2*t+5)) / 18
	}
	if variance <= 0 {
		return 1
	}

	var z float64
	switch {
	case s > 0:
		z = (s - 1) / math.Sqrt(variance)
	case s < 0:
		z = (s + 1) / math.Sqrt(variance)
	}
	return math.Erfc(math.Abs(z) / math.Sqrt2)
}

func tieSizes(x []float64) []int {
	counts := make(map[float64]int, len(x))
	for _, v := range x {
		counts[v]++
	}
	var ties []int
	for _, c := range counts {
		if c > 1 {
			ties = append(ties, c)
		}
	}
	return ties
}

func describe(dir types.TrendDirection, slope, p float64, significant bool) string {
	if !significant {
		return fmt.Sprintf("No statistically significant trend (p=%.2f). Conditions appear stable.", p)
	}
	strength := "gradually"
	if math.Abs(slope) > strongSlope {
		strength = "strongly"
	}
	switch dir {
	case types.TrendWorsening:
		return fmt.Sprintf("Risk is %s worsening at +%.1f points/day (Mann-Kendall p=%.3f). Bloom conditions are developing.", strength, math.Abs(slope), p)
	case types.TrendImproving:
		return fmt.Sprintf("Risk is %s improving at -%.1f points/day (Mann-Kendall p=%.3f). Conditions are recovering.", strength, math.Abs(slope), p)
	}
	return fmt.Sprintf("No meaningful trend detected (slope=%.2f, p=%.2f).", slope, p)
}

func roundTo(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
