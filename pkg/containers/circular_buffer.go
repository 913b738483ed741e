package containers

import (
	"math"

	"github.com/liarsdice/persistence/pkg/coreerr"
)

// CircularBuffer is a fixed-capacity ring supporting push at either end,
// random access by chronological index (0 = oldest), and windowed
// aggregation over a numeric projection of its elements.
type CircularBuffer[T any] struct {
	data  []T
	start int
	count int
}

// NewCircularBuffer returns a buffer with the given positive capacity.
func NewCircularBuffer[T any](capacity int) (*CircularBuffer[T], error) {
	if capacity <= 0 {
		return nil, coreerr.New(coreerr.InvalidParameter, "circular buffer capacity must be positive")
	}

	return &CircularBuffer[T]{data: make([]T, capacity)}, nil
}

// Capacity returns the buffer's maximum element count.
func (b *CircularBuffer[T]) Capacity() int {
	return len(b.data)
}

// Len returns the current number of live elements.
func (b *CircularBuffer[T]) Len() int {
	return b.count
}

// PushBack appends v as the newest element, evicting the oldest if full.
func (b *CircularBuffer[T]) PushBack(v T) {
	n := len(b.data)
	if b.count == n {
		b.start = (b.start + 1) % n
		b.count--
	}

	idx := (b.start + b.count) % n
	b.data[idx] = v
	b.count++
}

// PushFront inserts v as the oldest element, evicting the newest if full.
func (b *CircularBuffer[T]) PushFront(v T) {
	n := len(b.data)
	if b.count == n {
		b.count--
	}

	b.start = (b.start - 1 + n) % n
	b.data[b.start] = v
	b.count++
}

// At returns the element at chronological index i (0 = oldest) and whether
// i is in range.
func (b *CircularBuffer[T]) At(i int) (T, bool) {
	if i < 0 || i >= b.count {
		var zero T

		return zero, false
	}

	return b.data[(b.start+i)%len(b.data)], true
}

// Window returns a freshly materialized, chronologically ordered slice of
// the newest k elements (or all elements if k > Len()).
func (b *CircularBuffer[T]) Window(k int) []T {
	if k > b.count {
		k = b.count
	}

	if k <= 0 {
		return nil
	}

	out := make([]T, k)
	offset := b.count - k

	for i := 0; i < k; i++ {
		out[i], _ = b.At(offset + i)
	}

	return out
}

// ForEachWindow applies f to every contiguous chronological sub-range of
// size k, oldest range first.
func (b *CircularBuffer[T]) ForEachWindow(k int, f func([]T)) {
	if k <= 0 || k > b.count {
		return
	}

	for start := 0; start+k <= b.count; start++ {
		window := make([]T, k)
		for i := 0; i < k; i++ {
			window[i], _ = b.At(start + i)
		}

		f(window)
	}
}

// CalculateStatistics folds extractor over every live element, returning the
// mean, (population) standard deviation, min and max of the projection. ok
// is false for an empty buffer.
func (b *CircularBuffer[T]) CalculateStatistics(extractor func(T) float64) (mean, stddev, min, max float64, ok bool) {
	if b.count == 0 {
		return 0, 0, 0, 0, false
	}

	min = math.Inf(1)
	max = math.Inf(-1)

	var sum float64

	values := make([]float64, 0, b.count)

	for i := 0; i < b.count; i++ {
		v, _ := b.At(i)
		x := extractor(v)
		values = append(values, x)
		sum += x

		if x < min {
			min = x
		}

		if x > max {
			max = x
		}
	}

	mean = sum / float64(b.count)

	var sqDiff float64
	for _, x := range values {
		d := x - mean
		sqDiff += d * d
	}

	stddev = math.Sqrt(sqDiff / float64(b.count))

	return mean, stddev, min, max, true
}

// Clear empties the buffer without changing its capacity.
func (b *CircularBuffer[T]) Clear() {
	b.start = 0
	b.count = 0

	var zero T
	for i := range b.data {
		b.data[i] = zero
	}
}
