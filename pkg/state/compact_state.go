package state

// Bit layout of a [CompactState] word (LSB first). The seven semantic fields
// sum to exactly 32 bits; see DESIGN.md's "Open Question decisions" for why
// this implementation does not additionally reserve bits the original
// C++ bitfield struct padded in (Go has no equivalent automatic bitfield
// alignment to reproduce).
const (
	diceBitsOffset  = 0  // 15 bits: 5 dice x 3 bits each
	diceBitsWidth   = 15
	pointsOffset    = 15 // 4 bits
	pointsWidth     = 4
	countOffset     = 19 // 3 bits: dice_count
	countWidth      = 3
	activeOffset    = 22 // 1 bit
	activeWidth     = 1
	actionKindOff   = 23 // 2 bits
	actionKindWidth = 2
	actionCountOff  = 25 // 4 bits
	actionCountW    = 4
	actionFaceOff   = 29 // 3 bits
	actionFaceWidth = 3
)

const (
	maxDice        = 5
	dieBitsPerSlot = 3
	dieInvalid     = 0b111 // reserved/invalid pattern for a die slot

	maxPoints    = (1 << pointsWidth) - 1     // 15
	maxDiceCount = (1 << countWidth) - 1      // 7
	maxActionDC  = (1 << actionCountW) - 1    // 15
	maxActionFV  = (1 << actionFaceWidth) - 1 // 7
)

// ActionKind is the two-bit last-action discriminant.
type ActionKind uint8

// Last-action kinds. ActionReserved is never produced by this package but is
// a legal decode value (pattern 0b11) kept for forward compatibility.
const (
	ActionNone ActionKind = iota
	ActionGuess
	ActionCallLiar
	ActionReserved
)

// LastAction describes a player's most recent turn action.
type LastAction struct {
	Kind      ActionKind
	DiceCount uint8 // 0-15
	FaceValue uint8 // 1-6, or 0 if not applicable
}

// CompactState is a bit-packed snapshot of one player: their dice, points,
// active flag, and last action, serializable as a single uint32 word. The
// zero value is a legal state (inactive, no dice, no points).
type CompactState struct {
	dice       uint16 // 15 bits used
	points     uint8  // 4 bits used
	diceCount  uint8  // 3 bits used
	active     bool
	lastAction LastAction
}

// SetDie sets the face (1-6) of the die at idx (0-4). Setting a die outside
// index 0..4 or a face outside 1..6 is a no-op and never corrupts other
// slots (masked write), per the store's invalid-input policy.
func (s *CompactState) SetDie(idx int, face uint8) {
	if idx < 0 || idx >= maxDice {
		return
	}

	if face < 1 || face > 6 {
		return
	}

	shift := uint(idx * dieBitsPerSlot)
	mask := uint16(dieInvalid) << shift
	s.dice = (s.dice &^ mask) | (uint16(face-1) << shift)
}

// DieFace returns the face (1-6) of the die at idx, and whether it is valid.
// An out-of-range index or a slot holding the reserved pattern 0b111 returns
// (0, false) — the sentinel the spec mandates for get_dice_value. Faces are
// stored as face-1, so a slot that was never written reads as face 1.
func (s *CompactState) DieFace(idx int) (face uint8, ok bool) {
	if idx < 0 || idx >= maxDice {
		return 0, false
	}

	shift := uint(idx * dieBitsPerSlot)
	raw := (s.dice >> shift) & dieInvalid

	if raw == dieInvalid {
		return 0, false
	}

	return uint8(raw) + 1, true
}

// Points returns the player's points (0-15).
func (s *CompactState) Points() uint8 { return s.points }

// SetPoints sets points, clamped to the 4-bit range (0-15).
func (s *CompactState) SetPoints(v uint8) {
	if v > maxPoints {
		v = maxPoints
	}

	s.points = v
}

// DiceCount returns the player's die count (0-7; the game uses 0-5).
func (s *CompactState) DiceCount() uint8 { return s.diceCount }

// SetDiceCount sets the die count, clamped to the 3-bit range (0-7).
func (s *CompactState) SetDiceCount(v uint8) {
	if v > maxDiceCount {
		v = maxDiceCount
	}

	s.diceCount = v
}

// IsActive reports whether the player is active.
func (s *CompactState) IsActive() bool { return s.active }

// SetActive sets the active flag. Deactivating a player also zeroes their
// points, preserving the invariant is_active=0 => points=0.
func (s *CompactState) SetActive(active bool) {
	s.active = active

	if !active {
		s.points = 0
	}
}

// LastAction returns the player's last recorded action.
func (s *CompactState) LastAction() LastAction { return s.lastAction }

// SetLastAction records a player's action, clamping fields to their bit widths.
func (s *CompactState) SetLastAction(a LastAction) {
	if a.DiceCount > maxActionDC {
		a.DiceCount = maxActionDC
	}

	if a.FaceValue > maxActionFV {
		a.FaceValue = maxActionFV
	}

	s.lastAction = a
}

// Serialize packs the state into a single 32-bit word.
func (s *CompactState) Serialize() uint32 {
	var w uint32

	w |= uint32(s.dice&((1<<diceBitsWidth)-1)) << diceBitsOffset
	w |= uint32(s.points&((1<<pointsWidth)-1)) << pointsOffset
	w |= uint32(s.diceCount&((1<<countWidth)-1)) << countOffset

	if s.active {
		w |= 1 << activeOffset
	}

	w |= uint32(s.lastAction.Kind&((1<<actionKindWidth)-1)) << actionKindOff
	w |= uint32(s.lastAction.DiceCount&((1<<actionCountW)-1)) << actionCountOff
	w |= uint32(s.lastAction.FaceValue&((1<<actionFaceWidth)-1)) << actionFaceOff

	return w
}

// Deserialize unpacks a 32-bit word produced by [CompactState.Serialize].
// Deserialize(Serialize(s)) == s for every legal state (round-trip law).
func Deserialize(w uint32) CompactState {
	var s CompactState

	s.dice = uint16((w >> diceBitsOffset) & ((1 << diceBitsWidth) - 1))
	s.points = uint8((w >> pointsOffset) & ((1 << pointsWidth) - 1))
	s.diceCount = uint8((w >> countOffset) & ((1 << countWidth) - 1))
	s.active = (w>>activeOffset)&1 != 0
	s.lastAction = LastAction{
		Kind:      ActionKind((w >> actionKindOff) & ((1 << actionKindWidth) - 1)),
		DiceCount: uint8((w >> actionCountOff) & ((1 << actionCountW) - 1)),
		FaceValue: uint8((w >> actionFaceOff) & ((1 << actionFaceWidth) - 1)),
	}

	return s
}
