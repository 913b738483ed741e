package state_test

import (
	"testing"

	"github.com/liarsdice/persistence/pkg/state"
)

func TestHistoryRing_KthBackAndRecent(t *testing.T) {
	t.Parallel()

	r := state.NewHistoryRing(3)

	for i := uint8(1); i <= 4; i++ {
		var cs state.CompactState
		cs.SetPoints(i)
		r.Record(cs)
	}

	// capacity 3, four recorded -> oldest (points=1) was evicted.
	latest, ok := r.KthBack(0)
	if !ok || latest.Points() != 4 {
		t.Fatalf("KthBack(0) = (%+v, %v), want points=4", latest, ok)
	}

	oldest, ok := r.KthBack(2)
	if !ok || oldest.Points() != 2 {
		t.Fatalf("KthBack(2) = (%+v, %v), want points=2", oldest, ok)
	}

	if _, ok := r.KthBack(3); ok {
		t.Fatalf("KthBack(3) ok=true, want false (only 3 entries live)")
	}

	recent := r.Recent(2)
	if len(recent) != 2 || recent[0].Points() != 3 || recent[1].Points() != 4 {
		t.Fatalf("Recent(2) = %+v, want [points=3, points=4]", recent)
	}
}

func TestHistoryRing_Recent_ReturnsOwnedSlice(t *testing.T) {
	t.Parallel()

	r := state.NewHistoryRing(2)

	var cs state.CompactState
	cs.SetPoints(1)
	r.Record(cs)

	out := r.Recent(1)
	out[0].SetPoints(99)

	again := r.Recent(1)
	if again[0].Points() != 1 {
		t.Fatalf("mutating Recent() result leaked into ring: Points() = %d, want 1", again[0].Points())
	}
}

func TestHistoryRing_DiceFrequency(t *testing.T) {
	t.Parallel()

	r := state.NewHistoryRing(10)

	for i := 0; i < 3; i++ {
		var cs state.CompactState
		cs.SetDie(0, 1)
		cs.SetDie(1, 1)
		cs.SetDie(2, 6)
		cs.SetDiceCount(3)
		r.Record(cs)
	}

	freq := r.DiceFrequency(3)
	want := [7]int{0, 6, 0, 0, 0, 0, 3}

	if freq != want {
		t.Fatalf("DiceFrequency(3) = %v, want %v", freq, want)
	}
}

func TestHistoryRing_AvgDiceCount(t *testing.T) {
	t.Parallel()

	r := state.NewHistoryRing(10)

	for _, n := range []uint8{1, 2, 3} {
		var cs state.CompactState
		cs.SetDiceCount(n)
		r.Record(cs)
	}

	got := r.AvgDiceCount(3)
	if got != 2.0 {
		t.Fatalf("AvgDiceCount(3) = %v, want 2.0", got)
	}
}

func TestHistoryRing_AvgDiceCount_EmptyIsZero(t *testing.T) {
	t.Parallel()

	r := state.NewHistoryRing(5)

	if got := r.AvgDiceCount(5); got != 0 {
		t.Fatalf("AvgDiceCount on empty ring = %v, want 0", got)
	}
}

func TestHistoryRing_ClearEmptiesButKeepsCapacity(t *testing.T) {
	t.Parallel()

	r := state.NewHistoryRing(4)
	r.Record(state.CompactState{})
	r.Clear()

	if r.Capacity() != 4 {
		t.Fatalf("Capacity() = %d after Clear, want 4", r.Capacity())
	}

	if _, ok := r.KthBack(0); ok {
		t.Fatalf("KthBack(0) ok=true after Clear, want false")
	}
}

func TestHistoryRing_ResizeRetainsNewestEntries(t *testing.T) {
	t.Parallel()

	r := state.NewHistoryRing(5)

	for i := uint8(1); i <= 5; i++ {
		var cs state.CompactState
		cs.SetPoints(i)
		r.Record(cs)
	}

	r.Resize(2)

	if r.Capacity() != 2 {
		t.Fatalf("Capacity() = %d after Resize(2), want 2", r.Capacity())
	}

	latest, ok := r.KthBack(0)
	if !ok || latest.Points() != 5 {
		t.Fatalf("KthBack(0) after Resize = (%+v, %v), want points=5", latest, ok)
	}

	prev, ok := r.KthBack(1)
	if !ok || prev.Points() != 4 {
		t.Fatalf("KthBack(1) after Resize = (%+v, %v), want points=4", prev, ok)
	}
}
