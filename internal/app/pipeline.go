package app

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/holovis/internal/gesture"
	"github.com/ayusman/holovis/internal/input"
	"github.com/ayusman/holovis/internal/interaction"
	"github.com/ayusman/holovis/internal/metrics"
)

// Pipeline defaults.
const (
	DefaultUpdateInterval = 50 * time.Millisecond
	DefaultQueueSize      = 128
)

var (
	// ErrNilSource is reported for an input event without a source.
	ErrNilSource = errors.New("input event has no source")
	// ErrStopped is returned by Do once Run has returned.
	ErrStopped = errors.New("pipeline stopped")
)

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	Window         time.Duration
	UpdateInterval time.Duration
	QueueSize      int
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	Keywords       interaction.KeywordSource
	Targets        interaction.TargetSource
}

// Status is a point-in-time view of the pipeline.
type Status struct {
	Enabled      bool         `json:"enabled"`
	Interacting  bool         `json:"interacting"`
	Manipulating gesture.Kind `json:"manipulating,omitempty"`
	Tracked      int          `json:"tracked"`
}

// Pipeline owns the interaction core and runs it on one goroutine. Input
// transports call Submit from any goroutine; Run feeds events to the
// classifier, resolves coalescing windows as they expire, dispatches
// classified gestures as commands and emits manipulation updates while a
// manipulation is held. Registry, classifier and state machine are touched
// only by the Run goroutine, so they need no locking.
//
// Commands are dispatched only after BeginInteraction and while enabled.
// Listeners see every classified gesture regardless.
type Pipeline struct {
	cfg PipelineConfig
	log *zap.Logger

	registry   *input.Registry
	classifier *gesture.Classifier
	machine    *interaction.Machine
	matcher    *interaction.Matcher

	// queue carries input events and enqueued calls in submission order.
	queue chan func()
	done  chan struct{}

	enabled atomic.Bool
	started atomic.Bool

	// Loop-owned state.
	interacting  bool
	manipulating gesture.Kind
	updates      *time.Ticker
	held         map[*input.Source]bool
	released     *input.Source

	interactingFlag  atomic.Bool
	manipulatingKind atomic.Value
	trackedCount     atomic.Int64
}

// NewPipeline builds an idle pipeline. Configure states on Machine before
// calling Run.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = DefaultUpdateInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	var (
		gestureObs  gesture.Observer
		dispatchObs interaction.DispatchObserver
	)
	if cfg.Metrics != nil {
		gestureObs = cfg.Metrics
		dispatchObs = cfg.Metrics
	}

	registry := input.NewRegistry()
	machine := interaction.NewMachine(cfg.Logger.Named("interaction"), dispatchObs)
	p := &Pipeline{
		cfg:      cfg,
		log:      cfg.Logger,
		registry: registry,
		classifier: gesture.NewClassifier(registry, gesture.Options{
			Window:   cfg.Window,
			Logger:   cfg.Logger.Named("gesture"),
			Observer: gestureObs,
		}),
		machine: machine,
		matcher: interaction.NewMatcher(machine, cfg.Keywords, cfg.Targets),
		queue:   make(chan func(), cfg.QueueSize),
		done:    make(chan struct{}),
		held:    make(map[*input.Source]bool),
	}
	p.enabled.Store(true)
	p.manipulatingKind.Store(gesture.Invariant)

	// Dispatch runs before any other listener.
	p.classifier.Listeners().Subscribe(gesture.Invariant, p.onGesture)
	return p
}

// Machine returns the state machine. It must only be modified before Run or
// from a function passed to Enqueue.
func (p *Pipeline) Machine() *interaction.Machine {
	return p.machine
}

// Listeners returns the classified gesture observers. Handlers run on the
// pipeline goroutine and must not block.
func (p *Pipeline) Listeners() *gesture.Listeners {
	return p.classifier.Listeners()
}

// Window returns the coalescing window length.
func (p *Pipeline) Window() time.Duration {
	return p.classifier.Window()
}

// Submit queues a raw input event. It implements input.Sink and may be
// called from any goroutine; events after shutdown are dropped.
func (p *Pipeline) Submit(ev input.Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	p.Enqueue(func() { p.handleInput(ev) })
}

// Enqueue runs fn on the pipeline goroutine, after everything submitted or
// enqueued before it. Calls after shutdown are dropped.
func (p *Pipeline) Enqueue(fn func()) {
	select {
	case p.queue <- fn:
	case <-p.done:
	}
}

// Do runs fn on the pipeline goroutine and waits for it.
func (p *Pipeline) Do(ctx context.Context, fn func()) error {
	select {
	case <-p.done:
		return ErrStopped
	default:
	}

	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}

	select {
	case p.queue <- wrapped:
	case <-p.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-p.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetEnabled turns command dispatch on or off.
func (p *Pipeline) SetEnabled(enabled bool) {
	if p.enabled.Swap(enabled) != enabled {
		p.log.Info("dispatch toggled", zap.Bool("enabled", enabled))
	}
}

// Enabled reports whether command dispatch is on.
func (p *Pipeline) Enabled() bool {
	return p.enabled.Load()
}

// BeginInteraction starts dispatching commands. It must run on the pipeline
// goroutine, typically through Enqueue.
func (p *Pipeline) BeginInteraction() {
	if p.interacting {
		return
	}
	p.interacting = true
	p.interactingFlag.Store(true)
	p.log.Info("interaction phase started")
}

// Status returns a snapshot safe to read from any goroutine.
func (p *Pipeline) Status() Status {
	return Status{
		Enabled:      p.Enabled(),
		Interacting:  p.interactingFlag.Load(),
		Manipulating: p.manipulatingKind.Load().(gesture.Kind),
		Tracked:      int(p.trackedCount.Load()),
	}
}

// Done is closed when Run returns.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// Run processes events until ctx is done. It may be called once.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return errors.New("pipeline already running")
	}
	defer close(p.done)
	defer p.stopUpdates()

	p.log.Info("pipeline started", zap.Duration("window", p.classifier.Window()))
	for {
		var updates <-chan time.Time
		if p.updates != nil {
			updates = p.updates.C
		}

		select {
		case <-ctx.Done():
			p.log.Info("pipeline stopped")
			return nil
		case <-p.classifier.Expired():
			p.resolve()
		case now := <-updates:
			p.dispatch(gesture.Event{Kind: gesture.ManipulationUpdate, Time: now})
		case fn := <-p.queue:
			fn()
		}
	}
}

func (p *Pipeline) handleInput(ev input.Event) {
	if ev.Source == nil {
		p.violation(ev, ErrNilSource)
		return
	}

	if err := p.classifier.Handle(ev); err != nil {
		p.violation(ev, err)
		return
	}

	switch ev.Type {
	case input.EventDown:
		p.held[ev.Source] = true
	case input.EventUp:
		delete(p.held, ev.Source)
		p.released = ev.Source
	case input.EventLost:
		wasHeld := p.held[ev.Source]
		delete(p.held, ev.Source)
		if wasHeld && len(p.held) == 0 && p.manipulating != gesture.Invariant {
			p.abandonManipulation(ev.Source, ev.Time)
		}
	}

	n := p.registry.Len()
	p.trackedCount.Store(int64(n))
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.SetTracked(n)
	}
}

// resolve closes the coalescing window. A manipulation still active once
// no source is held lost its end in the window (a release followed by the
// source leaving) and is ended here.
func (p *Pipeline) resolve() {
	p.classifier.Resolve()
	if p.manipulating != gesture.Invariant && len(p.held) == 0 {
		p.abandonManipulation(p.released, time.Now())
	}
	p.released = nil
}

// abandonManipulation ends a manipulation whose last pressed source went
// away without a classified release.
func (p *Pipeline) abandonManipulation(src *input.Source, at time.Time) {
	end := gesture.OneHandManipulationEnd
	if p.manipulating.Hands() == 2 {
		end = gesture.TwoHandManipulationEnd
	}
	p.log.Info("manipulation abandoned", zap.Stringer("source", src), zap.String("ended", string(end)))
	p.classifier.Listeners().Notify(gesture.Event{Kind: end, Source: src, Time: at})
}

func (p *Pipeline) violation(ev input.Event, err error) {
	reason := "invalid_event"
	switch {
	case errors.Is(err, input.ErrUntrackedSource):
		reason = "untracked_source"
	case errors.Is(err, ErrNilSource):
		reason = "nil_source"
	}
	p.log.Error("input protocol violation",
		zap.String("event", string(ev.Type)),
		zap.Stringer("source", ev.Source),
		zap.String("reason", reason),
		zap.Error(err))
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.Violation(reason)
	}
}

// onGesture tracks manipulation state and dispatches ev.
func (p *Pipeline) onGesture(ev gesture.Event) {
	switch ev.Kind.Phase() {
	case gesture.PhaseStart:
		p.manipulating = ev.Kind
		p.manipulatingKind.Store(ev.Kind)
		p.startUpdates()
	case gesture.PhaseEnd:
		p.manipulating = gesture.Invariant
		p.manipulatingKind.Store(gesture.Invariant)
		p.stopUpdates()
	}
	p.dispatch(ev)
}

func (p *Pipeline) dispatch(ev gesture.Event) {
	if !p.interacting || !p.Enabled() {
		return
	}
	cmd, matched, err := p.matcher.Dispatch(ev)
	if err != nil {
		p.log.Error("dispatch failed", zap.Stringer("command", cmd), zap.Error(err))
		return
	}
	if matched && ev.Kind != gesture.ManipulationUpdate {
		p.log.Debug("command dispatched", zap.Stringer("command", cmd))
	}
}

func (p *Pipeline) startUpdates() {
	if p.updates != nil {
		p.updates.Reset(p.cfg.UpdateInterval)
		return
	}
	p.updates = time.NewTicker(p.cfg.UpdateInterval)
}

func (p *Pipeline) stopUpdates() {
	if p.updates != nil {
		p.updates.Stop()
		p.updates = nil
	}
}
