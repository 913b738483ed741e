package containers_test

import (
	"testing"

	"github.com/liarsdice/persistence/pkg/containers"
)

func TestCircularBuffer_PushBackEvictsOldest(t *testing.T) {
	t.Parallel()

	b, err := containers.NewCircularBuffer[int](3)
	if err != nil {
		t.Fatalf("NewCircularBuffer: %v", err)
	}

	for i := 1; i <= 5; i++ {
		b.PushBack(i)
	}

	if b.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", b.Len())
	}

	want := []int{3, 4, 5}
	for i, w := range want {
		got, ok := b.At(i)
		if !ok || got != w {
			t.Errorf("At(%d) = (%d, %v), want (%d, true)", i, got, ok, w)
		}
	}
}

func TestCircularBuffer_PushFrontEvictsNewest(t *testing.T) {
	t.Parallel()

	b, _ := containers.NewCircularBuffer[int](2)
	b.PushBack(1)
	b.PushBack(2)
	b.PushFront(0) // evicts newest (2), [0, 1]

	got0, _ := b.At(0)
	got1, _ := b.At(1)

	if got0 != 0 || got1 != 1 {
		t.Fatalf("At(0,1) = (%d, %d), want (0, 1)", got0, got1)
	}
}

func TestCircularBuffer_Window(t *testing.T) {
	t.Parallel()

	b, _ := containers.NewCircularBuffer[int](5)
	for i := 1; i <= 5; i++ {
		b.PushBack(i)
	}

	w := b.Window(3)
	want := []int{3, 4, 5}

	if len(w) != len(want) {
		t.Fatalf("Window(3) len = %d, want %d", len(w), len(want))
	}

	for i := range want {
		if w[i] != want[i] {
			t.Errorf("Window(3)[%d] = %d, want %d", i, w[i], want[i])
		}
	}
}

func TestCircularBuffer_ForEachWindow(t *testing.T) {
	t.Parallel()

	b, _ := containers.NewCircularBuffer[int](4)
	for i := 1; i <= 4; i++ {
		b.PushBack(i)
	}

	var sums []int
	b.ForEachWindow(2, func(w []int) {
		sums = append(sums, w[0]+w[1])
	})

	want := []int{3, 5, 7} // (1+2),(2+3),(3+4)
	if len(sums) != len(want) {
		t.Fatalf("ForEachWindow produced %d windows, want %d", len(sums), len(want))
	}

	for i := range want {
		if sums[i] != want[i] {
			t.Errorf("sums[%d] = %d, want %d", i, sums[i], want[i])
		}
	}
}

func TestCircularBuffer_CalculateStatistics(t *testing.T) {
	t.Parallel()

	b, _ := containers.NewCircularBuffer[int](4)
	for _, v := range []int{2, 4, 4, 4} {
		b.PushBack(v)
	}

	mean, stddev, min, max, ok := b.CalculateStatistics(func(v int) float64 { return float64(v) })
	if !ok {
		t.Fatalf("CalculateStatistics ok=false, want true")
	}

	if mean != 3.5 {
		t.Errorf("mean = %v, want 3.5", mean)
	}

	if min != 2 || max != 4 {
		t.Errorf("min,max = %v,%v, want 2,4", min, max)
	}

	if stddev < 0.86 || stddev > 0.87 {
		t.Errorf("stddev = %v, want ~0.866", stddev)
	}
}

func TestCircularBuffer_CalculateStatistics_EmptyIsNotOK(t *testing.T) {
	t.Parallel()

	b, _ := containers.NewCircularBuffer[int](4)

	_, _, _, _, ok := b.CalculateStatistics(func(v int) float64 { return float64(v) })
	if ok {
		t.Fatalf("CalculateStatistics on empty buffer ok=true, want false")
	}
}
