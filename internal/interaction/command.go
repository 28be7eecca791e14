// Package interaction routes classified gestures, together with ambient
// speech and target context, to interaction tasks bound in named states.
package interaction

import (
	"fmt"

	"github.com/ayusman/holovis/internal/gesture"
)

// Keyword is a recognised speech keyword.
type Keyword string

// KeywordInvariant matches any keyword in a binding. It is also the value
// used when no keyword is active.
const KeywordInvariant Keyword = ""

const (
	KeywordSelect Keyword = "select"
	KeywordMove   Keyword = "move"
	KeywordRotate Keyword = "rotate"
	KeywordScale  Keyword = "scale"
	KeywordReset  Keyword = "reset"
)

// Interactable is the category of scene object a gesture targets.
type Interactable string

// InteractableInvariant matches any target in a binding. It is also the value
// used when nothing is targeted.
const InteractableInvariant Interactable = ""

const (
	InteractableContentSurface Interactable = "content_surface"
	InteractableIsland         Interactable = "island"
	InteractableRegion         Interactable = "region"
	InteractableBuilding       Interactable = "building"
	InteractableSpatialMesh    Interactable = "spatial_mesh"
)

// Command selects a task. In a binding, a field left at its invariant value
// matches anything; in a dispatched command it means "not supplied".
type Command struct {
	Gesture gesture.Kind
	Keyword Keyword
	Target  Interactable
}

// NewCommand creates a Command from its three fields.
func NewCommand(g gesture.Kind, k Keyword, t Interactable) Command {
	return Command{Gesture: g, Keyword: k, Target: t}
}

// Matches reports whether c, used as a binding, accepts the dispatched
// command in.
func (c Command) Matches(in Command) bool {
	if !c.Gesture.Matches(in.Gesture) {
		return false
	}
	if c.Keyword != KeywordInvariant && c.Keyword != in.Keyword {
		return false
	}
	if c.Target != InteractableInvariant && c.Target != in.Target {
		return false
	}
	return true
}

// Specificity ranks bindings when several match; higher wins.
func (c Command) Specificity() int {
	n := c.Gesture.Specificity()
	if c.Keyword != KeywordInvariant {
		n += 2
	}
	if c.Target != InteractableInvariant {
		n += 2
	}
	return n
}

func (c Command) String() string {
	return fmt.Sprintf("(%s, %s, %s)", orStar(string(c.Gesture)), orStar(string(c.Keyword)), orStar(string(c.Target)))
}

func orStar(s string) string {
	if s == "" {
		return "*"
	}
	return s
}
