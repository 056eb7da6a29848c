package risk

import (
	"math"
	"sort"
)

// Small numeric helpers shared by the extractors and models. The model has
// no numerical-library dependency; every formula here is closed-form.

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// roundTo rounds half away from zero at the given number of decimals.
func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func sumOf(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum
}

// sampleStd is the n-1 denominator standard deviation. Returns 0 for
// fewer than two values; callers treat that as "no usable spread".
func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := meanOf(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func medianOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// percentileOfScore ranks a value within a sample: the mean of the strict
// and weak percentile ranks, on a 0-100 scale.
func percentileOfScore(xs []float64, score float64) float64 {
	if len(xs) == 0 {
		return 50
	}
	var below, belowOrEqual int
	for _, x := range xs {
		if x < score {
			below++
		}
		if x <= score {
			belowOrEqual++
		}
	}
	return float64(below+belowOrEqual) / (2 * float64(len(xs))) * 100
}

// olsTrend fits y = a + b*x over x = 0..n-1 and returns the slope together
// with the two-sided p-value of the slope's t-statistic (n-2 degrees of
// freedom). A flat or too-short series yields slope 0, p 1.
func olsTrend(ys []float64) (slope, pValue float64) {
	n := len(ys)
	if n < 3 {
		return 0, 1
	}
	meanX := float64(n-1) / 2
	meanY := meanOf(ys)
	var sxx, sxy, syy float64
	for i, y := range ys {
		dx := float64(i) - meanX
		dy := y - meanY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, 1
	}
	slope = sxy / sxx
	r2 := (sxy * sxy) / (sxx * syy)
	if r2 >= 1 {
		return slope, 0
	}
	df := float64(n - 2)
	t2 := r2 * df / (1 - r2)
	return slope, regIncBeta(df/2, 0.5, df/(df+t2))
}

// regIncBeta is the regularized incomplete beta function I_x(a, b),
// evaluated by the standard continued-fraction expansion.
func regIncBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	lgA, _ := math.Lgamma(a)
	lgB, _ := math.Lgamma(b)
	lgAB, _ := math.Lgamma(a + b)
	front := math.Exp(lgAB - lgA - lgB + a*math.Log(x) + b*math.Log(1-x))
	if x < (a+1)/(a+b+2) {
		return front * betaCF(a, b, x) / a
	}
	return 1 - front*betaCF(b, a, 1-x)/b
}

// betaCF evaluates the continued fraction for regIncBeta via the modified
// Lentz method.
func betaCF(a, b, x float64) float64 {
	const (
		maxIter = 200
		eps     = 3e-14
		tiny    = 1e-30
	)
	qab := a + b
	qap := a + 1
	qam := a - 1
	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < tiny {
		d = tiny
	}
	d = 1 / d
	h := d
	for m := 1; m <= maxIter; m++ {
		m2 := 2 * m
		aa := float64(m) * (b - float64(m)) * x / ((qam + float64(m2)) * (a + float64(m2)))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		h *= d * c
		aa = -(a + float64(m)) * (qab + float64(m)) * x / ((a + float64(m2)) * (qap + float64(m2)))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		del := d * c
		h *= del
		if math.Abs(del-1) < eps {
			break
		}
	}
	return h
}
