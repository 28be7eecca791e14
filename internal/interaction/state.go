package interaction

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateBinding is returned when a command is bound twice in one state.
	ErrDuplicateBinding = errors.New("command already bound")
	// ErrNilTask is returned when binding a nil task.
	ErrNilTask = errors.New("nil interaction task")
)

// Binding ties a command pattern to a task.
type Binding struct {
	Command Command
	Task    Task
}

// State is a named set of command bindings.
type State struct {
	name     string
	bindings []Binding
}

// NewState creates an empty state.
func NewState(name string) *State {
	return &State{name: name}
}

// Name returns the state name.
func (s *State) Name() string {
	return s.name
}

// AddInteractionTask binds cmd to task. The same task may be bound to many
// commands.
func (s *State) AddInteractionTask(cmd Command, task Task) error {
	if task == nil {
		return fmt.Errorf("state %q binding %s: %w", s.name, cmd, ErrNilTask)
	}
	for _, b := range s.bindings {
		if b.Command == cmd {
			return fmt.Errorf("state %q binding %s: %w", s.name, cmd, ErrDuplicateBinding)
		}
	}
	s.bindings = append(s.bindings, Binding{Command: cmd, Task: task})
	return nil
}

// RemoveInteractionTask drops the binding for exactly cmd. Reports whether a
// binding was removed.
func (s *State) RemoveInteractionTask(cmd Command) bool {
	for i, b := range s.bindings {
		if b.Command == cmd {
			s.bindings = append(s.bindings[:i], s.bindings[i+1:]...)
			return true
		}
	}
	return false
}

// Bindings returns the bindings in registration order.
func (s *State) Bindings() []Binding {
	out := make([]Binding, len(s.bindings))
	copy(out, s.bindings)
	return out
}

// Lookup finds the binding for a dispatched command. Among matching
// bindings the most specific wins; ties go to the earliest registered.
func (s *State) Lookup(cmd Command) (Binding, bool) {
	best := -1
	var found Binding
	for _, b := range s.bindings {
		if !b.Command.Matches(cmd) {
			continue
		}
		if score := b.Command.Specificity(); score > best {
			best = score
			found = b
		}
	}
	return found, best >= 0
}
