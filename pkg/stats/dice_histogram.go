package stats

import "github.com/liarsdice/persistence/pkg/coreerr"

// chiSquareCritical05Df5 is the chi-square critical value for 5 degrees of
// freedom at alpha=0.05 (six faces minus one).
const chiSquareCritical05Df5 = 11.070

// DiceHistogram tallies observed die faces 1-6 and tests them for fairness
// against a uniform distribution.
type DiceHistogram struct {
	counts [6]int
}

// NewDiceHistogram returns an empty six-face histogram.
func NewDiceHistogram() *DiceHistogram {
	return &DiceHistogram{}
}

// Add records one observed face (1-6).
func (d *DiceHistogram) Add(face uint8) error {
	if face < 1 || face > 6 {
		return coreerr.Newf(coreerr.InvalidParameter, "dice face %d out of range 1-6", face)
	}

	d.counts[face-1]++

	return nil
}

// Counts returns the per-face counts, index 0 = face 1.
func (d *DiceHistogram) Counts() [6]int {
	return d.counts
}

// Total returns the number of observations recorded.
func (d *DiceHistogram) Total() int {
	var total int
	for _, c := range d.counts {
		total += c
	}

	return total
}

// ChiSquare returns the chi-square statistic against a uniform distribution
// over the six faces.
func (d *DiceHistogram) ChiSquare() float64 {
	total := d.Total()
	if total == 0 {
		return 0
	}

	expected := float64(total) / 6

	var chi2 float64
	for _, c := range d.counts {
		diff := float64(c) - expected
		chi2 += (diff * diff) / expected
	}

	return chi2
}

// IsFair reports whether the observed distribution is consistent with a
// fair die at alpha=0.05 (chi-square statistic below the 5-degree-of-freedom
// critical value 11.070).
func (d *DiceHistogram) IsFair() bool {
	return d.ChiSquare() < chiSquareCritical05Df5
}
