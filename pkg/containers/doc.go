// Package containers holds the generic, allocation-conscious data
// structures shared by the analytics layer and the per-connection statement
// cache: an LRU cache, a fixed-capacity circular buffer with windowed
// statistics, a byte-string trie for prefix lookups, and a sparse matrix for
// dice-pair correlation tables.
//
// None of these types are internally synchronized; callers sharing one
// across goroutines hold an external lock, the same contract as pkg/state.
package containers
