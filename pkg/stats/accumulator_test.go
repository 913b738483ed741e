package stats_test

import (
	"math"
	"testing"

	"github.com/liarsdice/persistence/pkg/stats"
)

func TestStatsAccumulator_MeanAndVariance(t *testing.T) {
	t.Parallel()

	a, err := stats.NewStatsAccumulator[int](10)
	if err != nil {
		t.Fatalf("NewStatsAccumulator: %v", err)
	}

	for _, v := range []int{2, 4, 4, 4, 5, 5, 7, 9} {
		a.Add(v)
	}

	if got := a.Mean(); math.Abs(got-5.0) > 1e-9 {
		t.Errorf("Mean() = %v, want 5.0", got)
	}

	// Sample variance (n-1 divisor) of this classic example is 4.571428...
	if got := a.Variance(); math.Abs(got-4.571428571428571) > 1e-6 {
		t.Errorf("Variance() = %v, want ~4.5714", got)
	}
}

func TestStatsAccumulator_MinMax(t *testing.T) {
	t.Parallel()

	a, _ := stats.NewStatsAccumulator[int](5)

	if _, ok := a.Min(); ok {
		t.Fatalf("Min() ok=true on empty accumulator, want false")
	}

	for _, v := range []int{5, 1, 9, 3} {
		a.Add(v)
	}

	min, ok := a.Min()
	if !ok || min != 1 {
		t.Fatalf("Min() = (%d, %v), want (1, true)", min, ok)
	}

	max, ok := a.Max()
	if !ok || max != 9 {
		t.Fatalf("Max() = (%d, %v), want (9, true)", max, ok)
	}
}

func TestStatsAccumulator_Median(t *testing.T) {
	t.Parallel()

	a, _ := stats.NewStatsAccumulator[int](10)
	for _, v := range []int{1, 3, 3, 6, 7, 8, 9} {
		a.Add(v)
	}

	if got := a.Median(); got != 6 {
		t.Fatalf("Median() = %v, want 6", got)
	}
}

func TestStatsAccumulator_RollingWindow(t *testing.T) {
	t.Parallel()

	a, _ := stats.NewStatsAccumulator[int](3)
	for _, v := range []int{1, 1, 1, 100, 100, 100} {
		a.Add(v)
	}

	// window only sees the last 3 (all 100s), full history mean is skewed.
	if got := a.RollingMean(); got != 100 {
		t.Fatalf("RollingMean() = %v, want 100 (window = last 3)", got)
	}

	if got := a.Mean(); got == 100 {
		t.Fatalf("Mean() = %v, should reflect the full history, not just the window", got)
	}
}

func TestStatsAccumulator_IsNormalDistributedForSymmetricData(t *testing.T) {
	t.Parallel()

	a, _ := stats.NewStatsAccumulator[float64](20)
	for _, v := range []float64{-2, -1, -1, 0, 0, 0, 1, 1, 2} {
		a.Add(v)
	}

	if !a.IsNormalDistributed() {
		t.Fatalf("IsNormalDistributed() = false for symmetric data, want true")
	}
}

func TestStatsAccumulator_RMS(t *testing.T) {
	t.Parallel()

	a, _ := stats.NewStatsAccumulator[int](10)
	for _, v := range []int{3, 4} {
		a.Add(v)
	}

	// RMS([3,4]) = sqrt((9+16)/2) = sqrt(12.5)
	want := math.Sqrt(12.5)
	if got := a.RMS(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("RMS() = %v, want %v", got, want)
	}
}
