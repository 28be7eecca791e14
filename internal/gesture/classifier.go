package gesture

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/holovis/internal/input"
)

// DefaultWindow is the coalescing window used when none is configured.
const DefaultWindow = 250 * time.Millisecond

// Event is a classified gesture. Source and Time describe the raw
// notification that opened the window.
type Event struct {
	Kind   Kind
	Code   Code
	Source *input.Source
	Time   time.Time
}

// Observer receives classifier statistics.
type Observer interface {
	WindowOpened()
	Classified(ev Event)
	Unclassified(code Code)
}

type nopObserver struct{}

func (nopObserver) WindowOpened()          {}
func (nopObserver) Classified(Event)       {}
func (nopObserver) Unclassified(code Code) {}

// Options configures a Classifier.
type Options struct {
	Window   time.Duration
	Logger   *zap.Logger
	Observer Observer
}

// Classifier coalesces raw press/release notifications into at most one
// gesture per window.
//
// The classifier is Idle until a press or release arrives. That opens a
// window of fixed length; further presses and releases only update counters
// and never extend or restart it. When the window expires the host calls
// Resolve, which classifies the accumulated counts, resets them and returns
// to Idle. Only one window is ever open.
//
// Classifier is not safe for concurrent use. The host drives it from a single
// goroutine and selects on Expired to learn when to call Resolve.
type Classifier struct {
	registry  *input.Registry
	listeners *Listeners
	window    time.Duration
	log       *zap.Logger
	observer  Observer

	collecting bool
	timer      *time.Timer
	trigger    input.Event
}

// NewClassifier creates a Classifier over registry.
func NewClassifier(registry *input.Registry, opts Options) *Classifier {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Classifier{
		registry:  registry,
		listeners: NewListeners(),
		window:    opts.Window,
		log:       opts.Logger,
		observer:  opts.Observer,
	}
}

// Listeners returns the observer registry notified of classified gestures.
func (c *Classifier) Listeners() *Listeners {
	return c.listeners
}

// Registry returns the source registry the classifier reads.
func (c *Classifier) Registry() *input.Registry {
	return c.registry
}

// Window returns the coalescing window length.
func (c *Classifier) Window() time.Duration {
	return c.window
}

// Collecting reports whether a window is open.
func (c *Classifier) Collecting() bool {
	return c.collecting
}

// Handle applies a raw input event. Presses and releases for untracked
// sources are refused with input.ErrUntrackedSource and do not open a window.
func (c *Classifier) Handle(ev input.Event) error {
	switch ev.Type {
	case input.EventDetected:
		c.registry.OnSourceDetected(ev.Source)
		return nil
	case input.EventLost:
		c.registry.OnSourceLost(ev.Source)
		return nil
	case input.EventDown:
		if err := c.registry.RecordDown(ev.Source); err != nil {
			return err
		}
	case input.EventUp:
		if err := c.registry.RecordUp(ev.Source); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown input event type %q", ev.Type)
	}

	c.open(ev)
	return nil
}

func (c *Classifier) open(ev input.Event) {
	if c.collecting {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	c.collecting = true
	c.trigger = ev
	c.timer = time.NewTimer(c.window)
	c.observer.WindowOpened()
}

// Expired returns a channel that fires when the open window ends. It returns
// nil while Idle, so a select on it blocks.
func (c *Classifier) Expired() <-chan time.Time {
	if !c.collecting || c.timer == nil {
		return nil
	}
	return c.timer.C
}

// Resolve closes the open window: it encodes the accumulated counts, resets
// them and returns to Idle, then notifies listeners if the code names a
// gesture. Listeners therefore run with the classifier Idle, and any input
// they feed back opens a fresh window. Resolve is a no-op while Idle.
func (c *Classifier) Resolve() (Event, bool) {
	if !c.collecting {
		return Event{}, false
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	code := Encode(c.registry.Snapshot())
	kind, ok := Lookup(code)
	trigger := c.trigger

	c.registry.ResetAll()
	c.collecting = false
	c.trigger = input.Event{}

	if !ok {
		c.log.Debug("unclassified gesture code", zap.Stringer("code", code))
		c.observer.Unclassified(code)
		return Event{}, false
	}

	ev := Event{
		Kind:   kind,
		Code:   code,
		Source: trigger.Source,
		Time:   trigger.Time,
	}
	c.observer.Classified(ev)
	c.listeners.Notify(ev)
	return ev, true
}
