package stats

import (
	"math"
	"sort"

	"github.com/liarsdice/persistence/pkg/containers"
	"github.com/liarsdice/persistence/pkg/coreerr"
)

// StatsAccumulator folds a stream of T values into running count, mean,
// variance, higher moments, and a bounded rolling window, in a single pass
// per value (median and percentile-style queries re-sort the retained
// values, which is the one place this isn't O(1) per add).
type StatsAccumulator[T Number] struct {
	count int
	mean  float64
	m2    float64 // sum of squared deviations
	m3    float64 // sum of cubed deviations
	m4    float64 // sum of 4th-power deviations

	min, max T
	haveMM   bool

	values []float64
	window *containers.CircularBuffer[float64]
}

// NewStatsAccumulator returns an accumulator with a rolling window of the
// given positive size.
func NewStatsAccumulator[T Number](windowSize int) (*StatsAccumulator[T], error) {
	win, err := containers.NewCircularBuffer[float64](windowSize)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.InvalidParameter, "stats accumulator window size invalid", err)
	}

	return &StatsAccumulator[T]{window: win}, nil
}

// Add folds v into the running moments, min/max, and rolling window.
func (a *StatsAccumulator[T]) Add(v T) {
	x := float64(v)

	if !a.haveMM {
		a.min, a.max = v, v
		a.haveMM = true
	} else {
		if v < a.min {
			a.min = v
		}

		if v > a.max {
			a.max = v
		}
	}

	n := float64(a.count + 1)
	delta := x - a.mean
	deltaN := delta / n
	deltaN2 := deltaN * deltaN
	term1 := delta * deltaN * float64(a.count)

	a.mean += deltaN
	a.m4 += term1*deltaN2*(n*n-3*n+3) + 6*deltaN2*a.m2 - 4*deltaN*a.m3
	a.m3 += term1*deltaN*(n-2) - 3*deltaN*a.m2
	a.m2 += term1

	a.count++
	a.values = append(a.values, x)
	a.window.PushBack(x)
}

// Count returns the number of values folded in.
func (a *StatsAccumulator[T]) Count() int {
	return a.count
}

// Mean returns the running mean, or 0 if no values have been added.
func (a *StatsAccumulator[T]) Mean() float64 {
	return a.mean
}

// Variance returns the sample variance (divisor n-1), or 0 for n < 2.
func (a *StatsAccumulator[T]) Variance() float64 {
	if a.count < 2 {
		return 0
	}

	return a.m2 / float64(a.count-1)
}

// StdDev returns the sample standard deviation.
func (a *StatsAccumulator[T]) StdDev() float64 {
	return math.Sqrt(a.Variance())
}

// Min returns the smallest value added, and false if empty.
func (a *StatsAccumulator[T]) Min() (T, bool) {
	return a.min, a.haveMM
}

// Max returns the largest value added, and false if empty.
func (a *StatsAccumulator[T]) Max() (T, bool) {
	return a.max, a.haveMM
}

// Median returns the median of every value added so far.
func (a *StatsAccumulator[T]) Median() float64 {
	if a.count == 0 {
		return 0
	}

	sorted := append([]float64(nil), a.values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}

	return (sorted[mid-1] + sorted[mid]) / 2
}

// Skewness returns the population (Fisher-Pearson) skewness, 0 for n < 3.
func (a *StatsAccumulator[T]) Skewness() float64 {
	if a.count < 3 || a.m2 == 0 {
		return 0
	}

	n := float64(a.count)

	return (math.Sqrt(n) * a.m3) / math.Pow(a.m2, 1.5)
}

// Kurtosis returns the population kurtosis (normal distributions have
// kurtosis 3, not excess kurtosis 0), 0 for n < 4.
func (a *StatsAccumulator[T]) Kurtosis() float64 {
	if a.count < 4 || a.m2 == 0 {
		return 0
	}

	n := float64(a.count)

	return (n * a.m4) / (a.m2 * a.m2)
}

// Moment returns the k-th central moment (k in 1..4).
func (a *StatsAccumulator[T]) Moment(k int) float64 {
	if a.count == 0 {
		return 0
	}

	n := float64(a.count)

	switch k {
	case 1:
		return 0
	case 2:
		return a.m2 / n
	case 3:
		return a.m3 / n
	case 4:
		return a.m4 / n
	default:
		return 0
	}
}

// RollingMean returns the mean of the newest values within the window.
func (a *StatsAccumulator[T]) RollingMean() float64 {
	mean, _, _, _, ok := a.window.CalculateStatistics(func(v float64) float64 { return v })
	if !ok {
		return 0
	}

	return mean
}

// RollingVariance returns the population variance of the newest values
// within the window.
func (a *StatsAccumulator[T]) RollingVariance() float64 {
	_, stddev, _, _, ok := a.window.CalculateStatistics(func(v float64) float64 { return v })
	if !ok {
		return 0
	}

	return stddev * stddev
}

// RMS returns the root-mean-square of every value added so far.
func (a *StatsAccumulator[T]) RMS() float64 {
	if a.count == 0 {
		return 0
	}

	var sumSq float64
	for _, v := range a.values {
		sumSq += v * v
	}

	return math.Sqrt(sumSq / float64(a.count))
}

// IsNormalDistributed is a heuristic normality check: |skew| < 2 and
// |kurtosis - 3| < 7.
func (a *StatsAccumulator[T]) IsNormalDistributed() bool {
	return math.Abs(a.Skewness()) < 2 && math.Abs(a.Kurtosis()-3) < 7
}
