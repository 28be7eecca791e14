// Package input tracks physical input sources (hands, controllers) and the
// press/release counts they accumulate between gesture classifications.
package input

import (
	"errors"
	"fmt"
)

// ErrUntrackedSource is returned when a press or release arrives for a source
// that was never detected or has already been lost.
var ErrUntrackedSource = errors.New("input source not tracked")

// Source is the identity of a physical input provider. Sources compare by
// pointer identity; two Sources with the same ID are still different sources.
type Source struct {
	ID   string
	Kind SourceKind
}

// SourceKind describes what kind of device a source is.
type SourceKind string

const (
	// SourceHand is a tracked hand.
	SourceHand SourceKind = "hand"
	// SourceController is a handheld controller or clicker.
	SourceController SourceKind = "controller"
)

// NewSource creates a new source with the given id and kind.
func NewSource(id string, kind SourceKind) *Source {
	return &Source{ID: id, Kind: kind}
}

func (s *Source) String() string {
	if s == nil {
		return "<nil>"
	}
	return s.ID
}

// SourceState holds the counters accumulated by one source during the
// current classification window.
type SourceState struct {
	Source *Source
	Down   int
	Up     int
}

// Registry tracks the set of active input sources in detection order.
// It is not safe for concurrent use; callers serialise access through a
// single event loop.
type Registry struct {
	states map[*Source]*SourceState
	order  []*Source
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		states: make(map[*Source]*SourceState, 2),
	}
}

// OnSourceDetected starts tracking src with zeroed counters.
// Detecting an already tracked source is a no-op. Reports whether src was added.
func (r *Registry) OnSourceDetected(src *Source) bool {
	if src == nil {
		return false
	}
	if _, ok := r.states[src]; ok {
		return false
	}

	r.states[src] = &SourceState{Source: src}
	r.order = append(r.order, src)
	return true
}

// OnSourceLost stops tracking src. Losing an untracked source is a no-op.
// Reports whether src was removed.
func (r *Registry) OnSourceLost(src *Source) bool {
	if _, ok := r.states[src]; !ok {
		return false
	}

	delete(r.states, src)
	for i, s := range r.order {
		if s == src {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// RecordDown increments the press counter of src.
func (r *Registry) RecordDown(src *Source) error {
	st, ok := r.states[src]
	if !ok {
		return fmt.Errorf("record down for %s: %w", src, ErrUntrackedSource)
	}
	st.Down++
	return nil
}

// RecordUp increments the release counter of src.
func (r *Registry) RecordUp(src *Source) error {
	st, ok := r.states[src]
	if !ok {
		return fmt.Errorf("record up for %s: %w", src, ErrUntrackedSource)
	}
	st.Up++
	return nil
}

// Snapshot returns a copy of every tracked SourceState in detection order.
func (r *Registry) Snapshot() []SourceState {
	snap := make([]SourceState, 0, len(r.order))
	for _, src := range r.order {
		snap = append(snap, *r.states[src])
	}
	return snap
}

// ResetAll zeroes the counters of every tracked source.
func (r *Registry) ResetAll() {
	for _, st := range r.states {
		st.Down = 0
		st.Up = 0
	}
}

// Tracked reports whether src is currently tracked.
func (r *Registry) Tracked(src *Source) bool {
	_, ok := r.states[src]
	return ok
}

// Len returns the number of tracked sources.
func (r *Registry) Len() int {
	return len(r.order)
}
