// Package state holds the in-memory, cache-friendly representation of live
// game state: each player's dice, points, and last action packed into one
// 32-bit word ([CompactState]), a by-id map of those words plus the active-
// player set ([Store]), and a bounded history of past snapshots used by AI
// pattern analysis ([HistoryRing]).
//
// Nothing in this package is internally synchronized — concurrent mutation
// of a single [Store] or [HistoryRing] from multiple goroutines requires the
// caller to hold an external lock, the same contract the rest of the
// persistence core uses for its non-pool components.
package state
