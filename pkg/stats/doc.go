// Package stats holds the single-pass statistics primitives the AI layer
// folds over [state.HistoryRing] snapshots: an online moment accumulator, a
// weighted histogram with a dice-specific fairness test, and a bounded
// time series with trend and outlier analysis.
//
// As with pkg/state and pkg/containers, nothing here is internally
// synchronized.
package stats
