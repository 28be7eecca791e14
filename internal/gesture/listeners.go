package gesture

import "sync"

// Handler reacts to a classified gesture.
type Handler func(ev Event)

type subscription struct {
	id      uint64
	pattern Kind
	fn      Handler
}

// Listeners is an ordered observer registry for classified gestures.
// Handlers run in registration order. Notify works on a snapshot of the
// handler list, so a handler that subscribes or unsubscribes during a
// notification affects only later notifications.
type Listeners struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription
}

// NewListeners creates an empty registry.
func NewListeners() *Listeners {
	return &Listeners{}
}

// Subscribe registers fn for gestures matching pattern (Invariant for all).
// The returned function removes the subscription; calling it twice is safe.
func (l *Listeners) Subscribe(pattern Kind, fn Handler) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	id := l.nextID
	l.subs = append(l.subs, subscription{id: id, pattern: pattern, fn: fn})

	return func() { l.remove(id) }
}

func (l *Listeners) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, s := range l.subs {
		if s.id == id {
			l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of subscriptions.
func (l *Listeners) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

// Notify delivers ev to every matching handler.
func (l *Listeners) Notify(ev Event) {
	l.mu.Lock()
	snapshot := make([]subscription, len(l.subs))
	copy(snapshot, l.subs)
	l.mu.Unlock()

	for _, s := range snapshot {
		if s.pattern.Matches(ev.Kind) {
			s.fn(ev)
		}
	}
}
