package stats

import (
	"math"
	"time"

	"github.com/liarsdice/persistence/pkg/containers"
	"github.com/liarsdice/persistence/pkg/coreerr"
)

// Point is one timestamped observation in a [TimeSeries].
type Point[T Number] struct {
	Time  time.Time
	Value T
}

// TimeSeries is a bounded, chronologically ordered series of timestamped
// values supporting moving averages, trend estimation, outlier detection,
// and resampling.
type TimeSeries[T Number] struct {
	ring *containers.CircularBuffer[Point[T]]
}

// NewTimeSeries returns a series with the given positive capacity.
func NewTimeSeries[T Number](capacity int) (*TimeSeries[T], error) {
	ring, err := containers.NewCircularBuffer[Point[T]](capacity)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.InvalidParameter, "time series capacity invalid", err)
	}

	return &TimeSeries[T]{ring: ring}, nil
}

// Add appends a timestamped value, evicting the oldest point if the series
// is full.
func (ts *TimeSeries[T]) Add(t time.Time, v T) {
	ts.ring.PushBack(Point[T]{Time: t, Value: v})
}

// Len returns the number of points currently held.
func (ts *TimeSeries[T]) Len() int {
	return ts.ring.Len()
}

// Points returns every point, oldest first.
func (ts *TimeSeries[T]) Points() []Point[T] {
	return ts.ring.Window(ts.ring.Len())
}

// SMA returns the simple moving average of the newest k points.
func (ts *TimeSeries[T]) SMA(k int) float64 {
	window := ts.ring.Window(k)
	if len(window) == 0 {
		return 0
	}

	var sum float64
	for _, p := range window {
		sum += float64(p.Value)
	}

	return sum / float64(len(window))
}

// EMA returns the exponential moving average over the whole series with
// smoothing factor alpha (0, 1].
func (ts *TimeSeries[T]) EMA(alpha float64) float64 {
	points := ts.Points()
	if len(points) == 0 {
		return 0
	}

	ema := float64(points[0].Value)
	for _, p := range points[1:] {
		ema = alpha*float64(p.Value) + (1-alpha)*ema
	}

	return ema
}

// LinearRegression fits value = slope*seconds + intercept over every point,
// seconds measured since the first point. ok is false for fewer than 2
// points.
func (ts *TimeSeries[T]) LinearRegression() (slope, intercept float64, ok bool) {
	points := ts.Points()
	if len(points) < 2 {
		return 0, 0, false
	}

	t0 := points[0].Time

	var n, sumX, sumY, sumXY, sumXX float64

	for _, p := range points {
		x := p.Time.Sub(t0).Seconds()
		y := float64(p.Value)

		n++
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n, true
	}

	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n

	return slope, intercept, true
}

// RateOfChange returns (latest - value k periods back) / value k periods
// back. ok is false if fewer than k+1 points are available or the reference
// value is zero.
func (ts *TimeSeries[T]) RateOfChange(k int) (rate float64, ok bool) {
	n := ts.ring.Len()
	if k < 1 || n < k+1 {
		return 0, false
	}

	latest, _ := ts.ring.At(n - 1)
	prior, _ := ts.ring.At(n - 1 - k)

	if prior.Value == 0 {
		return 0, false
	}

	return (float64(latest.Value) - float64(prior.Value)) / float64(prior.Value), true
}

// ZScoreOutliers returns the chronological indices of points whose z-score
// (relative to the whole series' mean/stddev) exceeds threshold in absolute
// value.
func (ts *TimeSeries[T]) ZScoreOutliers(threshold float64) []int {
	points := ts.Points()
	if len(points) == 0 {
		return nil
	}

	var sum float64
	for _, p := range points {
		sum += float64(p.Value)
	}

	mean := sum / float64(len(points))

	var sqDiff float64
	for _, p := range points {
		d := float64(p.Value) - mean
		sqDiff += d * d
	}

	stddev := math.Sqrt(sqDiff / float64(len(points)))
	if stddev == 0 {
		return nil
	}

	var outliers []int
	for i, p := range points {
		z := (float64(p.Value) - mean) / stddev
		if math.Abs(z) > threshold {
			outliers = append(outliers, i)
		}
	}

	return outliers
}

// Autocorrelation returns the lag-k autocorrelation coefficient of the
// series, or 0 if there are fewer than lag+2 points.
func (ts *TimeSeries[T]) Autocorrelation(lag int) float64 {
	points := ts.Points()
	n := len(points)

	if lag < 1 || n < lag+2 {
		return 0
	}

	var sum float64
	for _, p := range points {
		sum += float64(p.Value)
	}

	mean := sum / float64(n)

	var num, den float64
	for i := 0; i < n; i++ {
		d := float64(points[i].Value) - mean
		den += d * d
	}

	for i := 0; i < n-lag; i++ {
		num += (float64(points[i].Value) - mean) * (float64(points[i+lag].Value) - mean)
	}

	if den == 0 {
		return 0
	}

	return num / den
}

// ResampleToInterval returns one point per interval-wide bucket spanning the
// series' time range, each the nearest-neighbour observation to the
// bucket's timestamp.
func (ts *TimeSeries[T]) ResampleToInterval(interval time.Duration) []Point[T] {
	points := ts.Points()
	if len(points) == 0 || interval <= 0 {
		return nil
	}

	start := points[0].Time
	end := points[len(points)-1].Time

	var out []Point[T]

	for bucket := start; !bucket.After(end); bucket = bucket.Add(interval) {
		out = append(out, nearest(points, bucket))
	}

	return out
}

func nearest[T Number](points []Point[T], target time.Time) Point[T] {
	best := points[0]
	bestDiff := absDuration(points[0].Time.Sub(target))

	for _, p := range points[1:] {
		diff := absDuration(p.Time.Sub(target))
		if diff < bestDiff {
			best = p
			bestDiff = diff
		}
	}

	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}

	return d
}
