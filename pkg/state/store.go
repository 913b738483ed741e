package state

// Store maps an 8-bit player id to its [CompactState], plus tracks which
// ids are currently active. The store is the sole owner of every entry it
// holds; entries are created on admission, mutated in place by [Store.Store],
// and destroyed by [Store.Clear] or process end.
//
// All reads are O(1) by id. Store is not internally synchronized — callers
// mutating a shared Store from multiple goroutines must hold an external
// lock, per the concurrency model in SPEC_FULL.md §5.
type Store struct {
	states map[uint8]CompactState
	active map[uint8]struct{}
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		states: make(map[uint8]CompactState),
		active: make(map[uint8]struct{}),
	}
}

// Store inserts or overwrites the state for id.
func (s *Store) Store(id uint8, cs CompactState) {
	s.states[id] = cs
}

// Get returns the state for id and whether it exists.
func (s *Store) Get(id uint8) (CompactState, bool) {
	cs, ok := s.states[id]

	return cs, ok
}

// AddActive marks id as active.
func (s *Store) AddActive(id uint8) {
	s.active[id] = struct{}{}
}

// RemoveActive unmarks id as active. A no-op if id was not active.
func (s *Store) RemoveActive(id uint8) {
	delete(s.active, id)
}

// IsActive reports whether id is in the active set.
func (s *Store) IsActive(id uint8) bool {
	_, ok := s.active[id]

	return ok
}

// ActiveSet returns the active player ids in unspecified order. Insertion
// order is irrelevant per the spec; callers that need a stable order should
// sort the result.
func (s *Store) ActiveSet() []uint8 {
	ids := make([]uint8, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}

	return ids
}

// Clear removes every entry and active marker.
func (s *Store) Clear() {
	s.states = make(map[uint8]CompactState)
	s.active = make(map[uint8]struct{})
}

// Size returns the number of stored player states.
func (s *Store) Size() int {
	return len(s.states)
}

// Snapshot is an owned, serializable copy of a Store's contents — used for
// round-tripping state across process restarts or test fixtures (§8's
// "Serialising and deserialising any StateStore snapshot preserves the
// active set and all player states").
type Snapshot struct {
	States map[uint8]uint32 // id -> serialized CompactState
	Active []uint8
}

// Snapshot captures the store's current contents as an owned value.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		States: make(map[uint8]uint32, len(s.states)),
		Active: s.ActiveSet(),
	}

	for id, cs := range s.states {
		snap.States[id] = cs.Serialize()
	}

	return snap
}

// Restore replaces the store's contents with a previously captured snapshot.
func (s *Store) Restore(snap Snapshot) {
	s.states = make(map[uint8]CompactState, len(snap.States))
	for id, word := range snap.States {
		s.states[id] = Deserialize(word)
	}

	s.active = make(map[uint8]struct{}, len(snap.Active))
	for _, id := range snap.Active {
		s.active[id] = struct{}{}
	}
}
