package interaction

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ayusman/holovis/internal/gesture"
)

var (
	// ErrDuplicateState is returned when two states share a name.
	ErrDuplicateState = errors.New("state already registered")
	// ErrNilState is returned when a nil state is added or initialized.
	ErrNilState = errors.New("nil state")
	// ErrUnknownState is returned for a state that was never added.
	ErrUnknownState = errors.New("unknown state")
	// ErrNotInitialized is returned when dispatching before Init.
	ErrNotInitialized = errors.New("state machine not initialized")
	// ErrAlreadyInitialized is returned when Init is called twice.
	ErrAlreadyInitialized = errors.New("state machine already initialized")
)

// DispatchObserver receives dispatch statistics.
type DispatchObserver interface {
	Dispatched(phase gesture.Phase, matched bool)
}

type nopDispatchObserver struct{}

func (nopDispatchObserver) Dispatched(gesture.Phase, bool) {}

// Machine holds named states and dispatches commands against the current one.
// It is not safe for concurrent use.
type Machine struct {
	states   map[string]*State
	current  *State
	entry    *State
	log      *zap.Logger
	observer DispatchObserver
}

// NewMachine creates an empty machine. A nil logger or observer disables
// that output.
func NewMachine(log *zap.Logger, observer DispatchObserver) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	if observer == nil {
		observer = nopDispatchObserver{}
	}
	return &Machine{
		states:   make(map[string]*State),
		log:      log,
		observer: observer,
	}
}

// AddState registers s by name.
func (m *Machine) AddState(s *State) error {
	if s == nil {
		return fmt.Errorf("add state: %w", ErrNilState)
	}
	if _, ok := m.states[s.Name()]; ok {
		return fmt.Errorf("add state %q: %w", s.Name(), ErrDuplicateState)
	}
	m.states[s.Name()] = s
	return nil
}

// State returns the registered state with the given name.
func (m *Machine) State(name string) (*State, bool) {
	s, ok := m.states[name]
	return s, ok
}

// Init sets s as both the entry and current state. It must be called exactly
// once, with a state that was added.
func (m *Machine) Init(s *State) error {
	if s == nil {
		return fmt.Errorf("init: %w", ErrNilState)
	}
	if m.entry != nil {
		return ErrAlreadyInitialized
	}
	if registered, ok := m.states[s.Name()]; !ok || registered != s {
		return fmt.Errorf("init with %q: %w", s.Name(), ErrUnknownState)
	}
	m.entry = s
	m.current = s
	m.log.Info("state machine initialized", zap.String("state", s.Name()))
	return nil
}

// Current returns the current state, or nil before Init.
func (m *Machine) Current() *State {
	return m.current
}

// Entry returns the state passed to Init, or nil before Init.
func (m *Machine) Entry() *State {
	return m.entry
}

// Transition makes the named state current.
func (m *Machine) Transition(name string) error {
	if m.current == nil {
		return ErrNotInitialized
	}
	s, ok := m.states[name]
	if !ok {
		return fmt.Errorf("transition to %q: %w", name, ErrUnknownState)
	}
	m.log.Debug("state transition", zap.String("from", m.current.Name()), zap.String("to", name))
	m.current = s
	return nil
}

// Dispatch runs the task bound to cmd in the current state. It reports
// whether a binding matched; an unmatched command is not an error.
func (m *Machine) Dispatch(cmd Command) (bool, error) {
	return m.DispatchEvent(gesture.Event{Kind: cmd.Gesture}, cmd)
}

// DispatchEvent is Dispatch with the gesture that produced cmd attached to
// the task context.
func (m *Machine) DispatchEvent(ev gesture.Event, cmd Command) (bool, error) {
	if m.current == nil {
		return false, ErrNotInitialized
	}

	phase := cmd.Gesture.Phase()
	binding, ok := m.current.Lookup(cmd)
	m.observer.Dispatched(phase, ok)
	if !ok {
		m.log.Debug("unmatched command", zap.Stringer("command", cmd), zap.String("state", m.current.Name()))
		return false, nil
	}

	ctx := Context{
		State:   m.current.Name(),
		Command: cmd,
		Binding: binding.Command,
		Event:   ev,
	}

	var err error
	switch phase {
	case gesture.PhaseStart:
		err = binding.Task.OnStart(ctx)
	case gesture.PhaseUpdate:
		err = binding.Task.OnUpdate(ctx)
	case gesture.PhaseEnd:
		err = binding.Task.OnEnd(ctx)
	default:
		if err = binding.Task.OnStart(ctx); err == nil {
			err = binding.Task.OnEnd(ctx)
		}
	}
	if err != nil {
		return true, fmt.Errorf("task for %s %s: %w", binding.Command, phase, err)
	}
	return true, nil
}
