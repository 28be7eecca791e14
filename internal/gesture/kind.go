// Package gesture classifies bursts of raw press/release notifications into
// discrete one-hand and two-hand gestures.
package gesture

// Kind names a classified gesture.
type Kind string

const (
	// Invariant matches any kind when used in a binding.
	Invariant Kind = ""

	OneHandTap               Kind = "one_hand_tap"
	TwoHandTap               Kind = "two_hand_tap"
	OneHandDoubleTap         Kind = "one_hand_double_tap"
	TwoHandDoubleTap         Kind = "two_hand_double_tap"
	OneHandManipulationStart Kind = "one_hand_manipulation_start"
	TwoHandManipulationStart Kind = "two_hand_manipulation_start"
	OneHandManipulationEnd   Kind = "one_hand_manipulation_end"
	TwoHandManipulationEnd   Kind = "two_hand_manipulation_end"

	// ManipulationUpdate is emitted by the pipeline on every update tick
	// while a manipulation is in progress. The classifier never produces it.
	ManipulationUpdate Kind = "manipulation_update"

	// ManipulationStart and ManipulationEnd are families: bound in a command
	// they match the one-hand and two-hand variants alike.
	ManipulationStart Kind = "manipulation_start"
	ManipulationEnd   Kind = "manipulation_end"
)

// Phase says which task lifecycle hook a gesture drives.
type Phase int

const (
	// PhaseDiscrete is a tap-like gesture with no duration.
	PhaseDiscrete Phase = iota
	PhaseStart
	PhaseUpdate
	PhaseEnd
)

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseUpdate:
		return "update"
	case PhaseEnd:
		return "end"
	default:
		return "discrete"
	}
}

var allKinds = []Kind{
	OneHandTap, TwoHandTap, OneHandDoubleTap, TwoHandDoubleTap,
	OneHandManipulationStart, TwoHandManipulationStart,
	OneHandManipulationEnd, TwoHandManipulationEnd,
	ManipulationUpdate, ManipulationStart, ManipulationEnd,
}

// Kinds returns every named kind, excluding Invariant.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Valid reports whether k is Invariant or one of the named kinds.
func (k Kind) Valid() bool {
	if k == Invariant {
		return true
	}
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Phase returns the lifecycle phase of k.
func (k Kind) Phase() Phase {
	switch k {
	case OneHandManipulationStart, TwoHandManipulationStart, ManipulationStart:
		return PhaseStart
	case ManipulationUpdate:
		return PhaseUpdate
	case OneHandManipulationEnd, TwoHandManipulationEnd, ManipulationEnd:
		return PhaseEnd
	default:
		return PhaseDiscrete
	}
}

// Hands returns how many hands the gesture involves, or 0 when the kind does
// not say.
func (k Kind) Hands() int {
	switch k {
	case OneHandTap, OneHandDoubleTap, OneHandManipulationStart, OneHandManipulationEnd:
		return 1
	case TwoHandTap, TwoHandDoubleTap, TwoHandManipulationStart, TwoHandManipulationEnd:
		return 2
	default:
		return 0
	}
}

// Matches reports whether k, used as a binding pattern, accepts the concrete
// kind other.
func (k Kind) Matches(other Kind) bool {
	switch k {
	case Invariant:
		return true
	case other:
		return true
	case ManipulationStart, ManipulationEnd:
		return other.Phase() == k.Phase() && other.Hands() > 0
	default:
		return false
	}
}

// Specificity ranks k as a binding pattern: exact kinds outrank families,
// families outrank Invariant.
func (k Kind) Specificity() int {
	switch k {
	case Invariant:
		return 0
	case ManipulationStart, ManipulationEnd:
		return 1
	default:
		return 2
	}
}
