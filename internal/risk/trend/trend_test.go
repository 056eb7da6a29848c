package trend

import (
	"math"
	"reflect"
	"testing"
	"time"

	"bloomwatch/internal/types"
)

// Strictly rising by 5/day: S=21, var=44.33, Z=3.004, p=0.00267.
func TestComputeWorsening(t *testing.T) {
	got := Compute([]float64{10, 15, 20, 25, 30, 35, 40})

	want := types.TrendResult{
		Direction:   types.TrendWorsening,
		Slope:       5,
		PValue:      0.0027,
		Significant: true,
		N:           7,
		Description: "Risk is strongly worsening at +5.0 points/day (Mann-Kendall p=0.003). Bloom conditions are developing.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Compute = %+v, want %+v", got, want)
	}
}

func TestComputeImproving(t *testing.T) {
	got := Compute([]float64{40, 35, 30, 25, 20, 15, 10})

	if got.Direction != types.TrendImproving || !got.Significant {
		t.Fatalf("direction = %v significant = %v, want IMPROVING significant", got.Direction, got.Significant)
	}
	if got.Slope != -5 || got.PValue != 0.0027 {
		t.Errorf("slope/p = %v/%v, want -5/0.0027", got.Slope, got.PValue)
	}
	if want := "Risk is strongly improving at -5.0 points/day (Mann-Kendall p=0.003). Conditions are recovering."; got.Description != want {
		t.Errorf("description = %q, want %q", got.Description, want)
	}
}

// One point per day over a month: unambiguous but gradual.
func TestComputeGradualWorsening(t *testing.T) {
	scores := make([]float64, 30)
	for i := range scores {
		scores[i] = float64(i + 1)
	}
	got := Compute(scores)

	if got.Direction != types.TrendWorsening || got.Slope != 1 || got.N != 30 {
		t.Fatalf("got %+v", got)
	}
	if got.PValue != 0 {
		t.Errorf("p = %v, want 0 after rounding", got.PValue)
	}
	if want := "Risk is gradually worsening at +1.0 points/day (Mann-Kendall p=0.000). Bloom conditions are developing."; got.Description != want {
		t.Errorf("description = %q, want %q", got.Description, want)
	}
}

// Alternating 20/30: S=3 against tie-corrected var 21, nowhere near
// significance, and the median pairwise slope is zero.
func TestComputeNotSignificant(t *testing.T) {
	got := Compute([]float64{20, 30, 20, 30, 20, 30})

	if got.Direction != types.TrendStable || got.Significant {
		t.Fatalf("got %+v, want non-significant STABLE", got)
	}
	if got.Slope != 0 || got.N != 6 {
		t.Errorf("slope/n = %v/%v, want 0/6", got.Slope, got.N)
	}
	if want := "No statistically significant trend (p=0.66). Conditions appear stable."; got.Description != want {
		t.Errorf("description = %q, want %q", got.Description, want)
	}
}

// A creep of 0.1/day is statistically unambiguous yet below the
// half-point threshold, so it still reads as stable.
func TestComputeSignificantButFlat(t *testing.T) {
	got := Compute([]float64{10, 10.1, 10.2, 10.3, 10.4, 10.5, 10.6})

	if got.Direction != types.TrendStable || !got.Significant {
		t.Fatalf("got %+v, want significant STABLE", got)
	}
	if got.Slope != 0.1 || got.PValue != 0.0027 {
		t.Errorf("slope/p = %v/%v, want 0.1/0.0027", got.Slope, got.PValue)
	}
	if want := "No meaningful trend detected (slope=0.10, p=0.00)."; got.Description != want {
		t.Errorf("description = %q, want %q", got.Description, want)
	}
}

func TestComputeConstantSeries(t *testing.T) {
	got := Compute([]float64{25, 25, 25, 25, 25})

	if got.Direction != types.TrendStable || got.Significant || got.Slope != 0 {
		t.Fatalf("got %+v, want flat STABLE", got)
	}
	if got.PValue != 1 {
		t.Errorf("p = %v, want 1 when the tie correction zeroes the variance", got.PValue)
	}
}

func TestComputeInsufficient(t *testing.T) {
	want := types.TrendResult{
		Direction:   types.TrendStable,
		Slope:       0,
		PValue:      1,
		Significant: false,
		N:           0,
		Description: "Insufficient historical data for trend analysis.",
	}

	for _, scores := range [][]float64{
		nil,
		{50},
		{10, 20, 30},
		{10, math.NaN(), 20, math.NaN(), 30},
	} {
		if got := Compute(scores); !reflect.DeepEqual(got, want) {
			t.Errorf("Compute(%v) = %+v, want no-data result", scores, got)
		}
	}
}

func TestComputeDropsNaN(t *testing.T) {
	got := Compute([]float64{10, math.NaN(), 15, 20, 25, 30, 35, 40})
	if got.N != 7 || got.Direction != types.TrendWorsening {
		t.Errorf("got %+v, want NaN dropped and WORSENING on the remaining 7", got)
	}
}

func historyOf(temps []float64) types.HistoricalSeries {
	var h types.HistoricalSeries
	start := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	for i, temp := range temps {
		h.Dates = append(h.Dates, start.AddDate(0, 0, i))
		h.Temps = append(h.Temps, temp)
	}
	return h
}

func TestProxySeries(t *testing.T) {
	temps := []float64{20, 21, 22, 23, 24, 25, 26, 27, 28, 29}
	got := ProxySeries(historyOf(temps), 47.5)

	if len(got) != len(temps)+1 {
		t.Fatalf("len = %d, want %d", len(got), len(temps)+1)
	}
	if got[len(got)-1] != 47.5 {
		t.Errorf("last entry = %v, want the current score", got[len(got)-1])
	}
	// Coldest day of the window: z=-1.486, proxy 10.96.
	if got[0] != 11.0 {
		t.Errorf("got[0] = %v, want 11.0", got[0])
	}
	for i := 0; i < len(temps)-1; i++ {
		if got[i] >= got[i+1] {
			t.Errorf("proxy not increasing with temperature at %d: %v then %v", i, got[i], got[i+1])
		}
	}
}

func TestProxySeriesShortHistory(t *testing.T) {
	got := ProxySeries(historyOf([]float64{22, 23, 24}), 33)
	if !reflect.DeepEqual(got, []float64{33}) {
		t.Errorf("got %v, want just the current score", got)
	}
}

func TestProxySeriesConstantTemps(t *testing.T) {
	temps := make([]float64, 12)
	for i := range temps {
		temps[i] = 22
	}
	got := ProxySeries(historyOf(temps), 40)

	if len(got) != 12 {
		t.Fatalf("len = %d, want 12", len(got))
	}
	for i, s := range got {
		if s != 40 {
			t.Errorf("got[%d] = %v, want the current score when variance degenerates", i, s)
		}
	}
}

func TestProxySeriesWindowsLastThirty(t *testing.T) {
	temps := make([]float64, 45)
	for i := range temps {
		temps[i] = 15 + float64(i%7)
	}
	got := ProxySeries(historyOf(temps), 50)

	if len(got) != historyWindow+1 {
		t.Fatalf("len = %d, want %d", len(got), historyWindow+1)
	}
	for i, s := range got {
		if s < 0 || s > 100 {
			t.Errorf("got[%d] = %v outside [0,100]", i, s)
		}
	}
}
