package gesture

import (
	"fmt"

	"github.com/ayusman/holovis/internal/input"
)

// Code packs the clamped press/release counts of up to MaxSlots sources.
// Slot i occupies bits [i*SlotWidth, i*SlotWidth+3]: the low two bits hold
// the press count, the next two the release count.
type Code uint8

const (
	// SlotWidth is the number of bits one source occupies in a Code.
	SlotWidth = 4
	// MaxSlots is the number of sources a Code can describe. Sources tracked
	// beyond this are ignored by Encode.
	MaxSlots = 2
	// CountCap is the largest per-source press or release count encoded.
	CountCap = 2

	upShift = 2
)

func (c Code) String() string {
	return fmt.Sprintf("%08b", uint8(c))
}

// SlotCode returns the contribution of one source in slot with the given
// counts, clamped to CountCap. It returns 0 for slots beyond MaxSlots.
func SlotCode(slot, down, up int) Code {
	if slot < 0 || slot >= MaxSlots {
		return 0
	}
	shift := uint(slot * SlotWidth)
	return Code(clamp(down)<<shift | clamp(up)<<(shift+upShift))
}

// Encode builds the Code for a registry snapshot. Only the first MaxSlots
// states, in snapshot order, contribute.
func Encode(states []input.SourceState) Code {
	var code Code
	for i, st := range states {
		if i >= MaxSlots {
			break
		}
		code |= SlotCode(i, st.Down, st.Up)
	}
	return code
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > CountCap {
		return CountCap
	}
	return n
}

// Per-slot patterns. Slot assignment follows registry order, which carries no
// meaning for the user, so every one-hand pattern appears once per slot.
var (
	tap0   = SlotCode(0, 1, 1) // 00000101
	tap1   = SlotCode(1, 1, 1) // 01010000
	dbl0   = SlotCode(0, 2, 2) // 00001010
	dbl1   = SlotCode(1, 2, 2) // 10100000
	press0 = SlotCode(0, 1, 0) // 00000001
	press1 = SlotCode(1, 1, 0) // 00010000
	lift0  = SlotCode(0, 0, 1) // 00000100
	lift1  = SlotCode(1, 0, 1) // 01000000
)

// eventTable maps every recognised Code to its gesture. Codes not present
// classify to nothing.
var eventTable = buildTable([]struct {
	code Code
	kind Kind
}{
	{tap0, OneHandTap},
	{tap1, OneHandTap},
	{tap0 | tap1, TwoHandTap},
	{dbl0, OneHandDoubleTap},
	{dbl1, OneHandDoubleTap},
	{dbl0 | dbl1, TwoHandDoubleTap},
	{press0, OneHandManipulationStart},
	{press1, OneHandManipulationStart},
	{press0 | press1, TwoHandManipulationStart},
	{lift0, OneHandManipulationEnd},
	{lift1, OneHandManipulationEnd},
	{lift0 | lift1, TwoHandManipulationEnd},
})

func buildTable(entries []struct {
	code Code
	kind Kind
}) map[Code]Kind {
	table := make(map[Code]Kind, len(entries))
	for _, e := range entries {
		if _, dup := table[e.code]; dup {
			panic(fmt.Sprintf("gesture: duplicate table code %s", e.code))
		}
		table[e.code] = e.kind
	}
	return table
}

// Lookup returns the gesture for code, if any.
func Lookup(code Code) (Kind, bool) {
	kind, ok := eventTable[code]
	return kind, ok
}

// Table returns a copy of the code table.
func Table() map[Code]Kind {
	out := make(map[Code]Kind, len(eventTable))
	for c, k := range eventTable {
		out[c] = k
	}
	return out
}
