package stats

import (
	"math"

	"github.com/liarsdice/persistence/pkg/coreerr"
)

// Histogram bins values of T over a fixed, regular axis [min, max). Values
// at or above max are folded into the last bin rather than discarded, so
// Add never silently drops data at the upper edge.
type Histogram[T Number] struct {
	min, max float64
	numBins  int
	counts   []float64
}

// NewHistogram returns a histogram with numBins regular bins over [min, max).
func NewHistogram[T Number](min, max float64, numBins int) (*Histogram[T], error) {
	if numBins <= 0 {
		return nil, coreerr.New(coreerr.InvalidParameter, "histogram bin count must be positive")
	}

	if max <= min {
		return nil, coreerr.New(coreerr.InvalidParameter, "histogram max must be greater than min")
	}

	return &Histogram[T]{min: min, max: max, numBins: numBins, counts: make([]float64, numBins)}, nil
}

func (h *Histogram[T]) binWidth() float64 {
	return (h.max - h.min) / float64(h.numBins)
}

// binIndex returns the bin v falls into, clamped to [0, numBins-1].
func (h *Histogram[T]) binIndex(v float64) int {
	if v <= h.min {
		return 0
	}

	if v >= h.max {
		return h.numBins - 1
	}

	idx := int((v - h.min) / h.binWidth())
	if idx >= h.numBins {
		idx = h.numBins - 1
	}

	return idx
}

// Add increments the bin containing v by weight.
func (h *Histogram[T]) Add(v T, weight float64) {
	h.counts[h.binIndex(float64(v))] += weight
}

// Counts returns the raw per-bin counts.
func (h *Histogram[T]) Counts() []float64 {
	out := make([]float64, len(h.counts))
	copy(out, h.counts)

	return out
}

// Total returns the sum of every bin's count.
func (h *Histogram[T]) Total() float64 {
	var total float64
	for _, c := range h.counts {
		total += c
	}

	return total
}

// Density returns the per-bin counts normalized to sum to 1, or all zeros if
// the histogram is empty.
func (h *Histogram[T]) Density() []float64 {
	total := h.Total()

	out := make([]float64, len(h.counts))
	if total == 0 {
		return out
	}

	for i, c := range h.counts {
		out[i] = c / total
	}

	return out
}

// binCenter returns the midpoint value of bin i.
func (h *Histogram[T]) binCenter(i int) float64 {
	return h.min + (float64(i)+0.5)*h.binWidth()
}

// Mode returns the center and count of the bin with the highest count.
func (h *Histogram[T]) Mode() (center, count float64) {
	best := -1

	for i, c := range h.counts {
		if best == -1 || c > h.counts[best] {
			best = i
		}
	}

	if best == -1 {
		return 0, 0
	}

	return h.binCenter(best), h.counts[best]
}

// Mean returns the mean of bin centers weighted by their counts.
func (h *Histogram[T]) Mean() float64 {
	total := h.Total()
	if total == 0 {
		return 0
	}

	var sum float64
	for i, c := range h.counts {
		sum += h.binCenter(i) * c
	}

	return sum / total
}

// Variance returns the population variance of bin centers weighted by their
// counts.
func (h *Histogram[T]) Variance() float64 {
	total := h.Total()
	if total == 0 {
		return 0
	}

	mean := h.Mean()

	var sum float64
	for i, c := range h.counts {
		d := h.binCenter(i) - mean
		sum += d * d * c
	}

	return sum / total
}

// StdDev returns the square root of Variance.
func (h *Histogram[T]) StdDev() float64 {
	return math.Sqrt(h.Variance())
}

// Percentile returns the bin center at which the cumulative count first
// reaches p (0..1) of the total. Returns 0 for an empty histogram.
func (h *Histogram[T]) Percentile(p float64) float64 {
	total := h.Total()
	if total == 0 {
		return 0
	}

	target := p * total

	var cum float64
	for i, c := range h.counts {
		cum += c
		if cum >= target {
			return h.binCenter(i)
		}
	}

	return h.binCenter(h.numBins - 1)
}

// Entropy returns the Shannon entropy, in bits, of the bin density
// distribution.
func (h *Histogram[T]) Entropy() float64 {
	var entropy float64

	for _, p := range h.Density() {
		if p <= 0 {
			continue
		}

		entropy -= p * math.Log2(p)
	}

	return entropy
}

// Merge adds other's counts into h bin-by-bin. It fails if the two
// histograms do not share the same axis (min, max, and bin count).
func (h *Histogram[T]) Merge(other *Histogram[T]) error {
	if h.min != other.min || h.max != other.max || h.numBins != other.numBins {
		return coreerr.New(coreerr.InvalidParameter, "cannot merge histograms with different axes")
	}

	for i, c := range other.counts {
		h.counts[i] += c
	}

	return nil
}
