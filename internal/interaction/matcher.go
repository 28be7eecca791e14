package interaction

import "github.com/ayusman/holovis/internal/gesture"

// KeywordSource supplies the speech keyword active at the moment of a dispatch.
type KeywordSource interface {
	Keyword() Keyword
}

// TargetSource supplies the category of the object currently targeted.
type TargetSource interface {
	Target() Interactable
}

// Matcher turns classified gestures into commands using ambient speech and
// target context, and dispatches them on a Machine.
type Matcher struct {
	machine  *Machine
	keywords KeywordSource
	targets  TargetSource
}

// NewMatcher creates a Matcher. Either source may be nil, in which case that
// field of every command is left invariant.
func NewMatcher(machine *Machine, keywords KeywordSource, targets TargetSource) *Matcher {
	return &Matcher{machine: machine, keywords: keywords, targets: targets}
}

// CommandFor builds the command for a gesture from the current ambient context.
func (mt *Matcher) CommandFor(kind gesture.Kind) Command {
	cmd := Command{Gesture: kind}
	if mt.keywords != nil {
		cmd.Keyword = mt.keywords.Keyword()
	}
	if mt.targets != nil {
		cmd.Target = mt.targets.Target()
	}
	return cmd
}

// Match looks up the binding for a gesture in the current state without
// running it.
func (mt *Matcher) Match(kind gesture.Kind) (Command, Binding, bool, error) {
	cmd := mt.CommandFor(kind)
	current := mt.machine.Current()
	if current == nil {
		return cmd, Binding{}, false, ErrNotInitialized
	}
	b, ok := current.Lookup(cmd)
	return cmd, b, ok, nil
}

// Dispatch builds the command for ev and dispatches it.
func (mt *Matcher) Dispatch(ev gesture.Event) (Command, bool, error) {
	cmd := mt.CommandFor(ev.Kind)
	ok, err := mt.machine.DispatchEvent(ev, cmd)
	return cmd, ok, err
}
