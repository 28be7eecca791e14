// Package app wires the interaction pipeline to the scene, plugins and
// persistence, and runs the placement and interaction phases.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayusman/holovis/internal/config"
	"github.com/ayusman/holovis/internal/gesture"
	"github.com/ayusman/holovis/internal/interaction"
	"github.com/ayusman/holovis/internal/metrics"
	"github.com/ayusman/holovis/internal/plugin"
	"github.com/ayusman/holovis/internal/scene"
	"github.com/ayusman/holovis/internal/store"
)

// MainState is the entry state holding the default bindings.
const MainState = store.DefaultState

// historyBuffer bounds gesture history rows waiting to be written.
const historyBuffer = 256

// Options configures an App. Config is required; everything else is optional.
type Options struct {
	Config  *config.Config
	Store   *store.Store
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// Runner executes plugin actions. Defaults to a plugin.Executor with the
	// configured timeout.
	Runner plugin.Runner
}

type pluginBinding struct {
	state *interaction.State
	cmd   interaction.Command
}

// App owns the scene, the ambient context and the pipeline.
type App struct {
	cfg     *config.Config
	store   *store.Store
	log     *zap.Logger
	metrics *metrics.Metrics

	scene    *scene.Memory
	gaze     *scene.Gaze
	keywords *interaction.KeywordState
	plugins  *plugin.Manager
	runner   plugin.Runner
	pipeline *Pipeline

	history chan store.Event
	last    atomic.Value

	// Guarded by running on the pipeline goroutine after Run starts.
	pluginBindings []pluginBinding

	// runs counts background plugin invocations of every task, including
	// tasks replaced by a reload.
	runs sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds an App with the "main" state, its default surface drag bindings
// and any enabled bindings from the store.
func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("app: config is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	runner := opts.Runner
	if runner == nil {
		runner = plugin.NewExecutor(opts.Config.Plugins.Timeout)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:      opts.Config,
		store:    opts.Store,
		log:      log,
		metrics:  opts.Metrics,
		scene:    scene.NewMemory(),
		gaze:     scene.NewGaze(),
		keywords: &interaction.KeywordState{},
		plugins:  plugin.NewManager(opts.Config.Plugins.Dir, log.Named("plugin")),
		runner:   runner,
		history:  make(chan store.Event, historyBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}
	a.pipeline = NewPipeline(PipelineConfig{
		Window:         opts.Config.Gesture.CoalesceWindow,
		UpdateInterval: opts.Config.Gesture.UpdateInterval,
		Logger:         log.Named("pipeline"),
		Metrics:        opts.Metrics,
		Keywords:       a.keywords,
		Targets:        a.gaze,
	})

	if err := a.setupStates(); err != nil {
		cancel()
		return nil, err
	}
	a.addListeners()

	if a.store != nil {
		a.pipeline.SetEnabled(a.store.Settings().Bool(store.SettingEnabled, true))
	}
	return a, nil
}

func (a *App) setupStates() error {
	machine := a.pipeline.Machine()
	main := interaction.NewState(MainState)

	drag := scene.NewSurfaceDrag(scene.DragConfig{
		Object:    scene.ContentSurface,
		Smoothing: a.cfg.Gesture.Smoothing,
		Target:    a.gaze,
		Scene:     a.scene,
		Logger:    a.log.Named("drag"),
	})
	for _, kind := range []gesture.Kind{
		gesture.OneHandManipulationStart,
		gesture.ManipulationUpdate,
		gesture.ManipulationEnd,
	} {
		if err := main.AddInteractionTask(interaction.NewCommand(kind, interaction.KeywordInvariant, interaction.InteractableInvariant), drag); err != nil {
			return err
		}
	}
	if err := machine.AddState(main); err != nil {
		return err
	}

	if err := a.plugins.Discover(); err != nil {
		a.log.Warn("plugin discovery failed", zap.String("dir", a.plugins.PluginDir()), zap.Error(err))
	}
	if err := a.loadBindings(); err != nil {
		return err
	}
	return machine.Init(main)
}

// loadBindings turns enabled stored bindings into plugin tasks. Rows naming
// a missing plugin or an invalid command are skipped with a warning.
func (a *App) loadBindings() error {
	if a.store == nil {
		return nil
	}
	rows, err := a.store.Bindings().ListEnabled()
	if err != nil {
		return fmt.Errorf("failed to load bindings: %w", err)
	}

	machine := a.pipeline.Machine()
	loaded := 0
	for _, b := range rows {
		log := a.log.With(zap.String("binding", b.ID), zap.String("plugin", b.PluginName), zap.String("action", b.ActionName))

		kind := gesture.Kind(b.Gesture)
		if !kind.Valid() {
			log.Warn("skipping binding with unknown gesture", zap.String("gesture", b.Gesture))
			continue
		}
		p, err := a.plugins.Get(b.PluginName)
		if err != nil {
			log.Warn("skipping binding", zap.Error(err))
			continue
		}
		task, err := plugin.NewTask(plugin.TaskConfig{
			Plugin:   p,
			Action:   b.ActionName,
			Config:   b.Config,
			Runner:   a.runner,
			Logger:   a.log.Named("plugin"),
			Recorder: a.recorder(),
			Async:    true,
			Context:  a.ctx,
			Runs:     &a.runs,
		})
		if err != nil {
			log.Warn("skipping binding", zap.Error(err))
			continue
		}

		stateName := b.State
		if stateName == "" {
			stateName = MainState
		}
		state, ok := machine.State(stateName)
		if !ok {
			state = interaction.NewState(stateName)
			if err := machine.AddState(state); err != nil {
				return err
			}
		}

		cmd := interaction.NewCommand(kind, interaction.Keyword(b.Keyword), interaction.Interactable(b.Interactable))
		if err := state.AddInteractionTask(cmd, task); err != nil {
			log.Warn("skipping binding", zap.Error(err))
			continue
		}
		a.pluginBindings = append(a.pluginBindings, pluginBinding{state: state, cmd: cmd})
		loaded++
	}

	a.log.Info("loaded bindings", zap.Int("count", loaded), zap.Int("stored", len(rows)))
	return nil
}

func (a *App) recorder() plugin.RunRecorder {
	if a.metrics == nil {
		return nil
	}
	return a.metrics
}

// ReloadBindings rediscovers plugins and replaces the plugin tasks with the
// enabled bindings now in the store. It requires Run to be active.
func (a *App) ReloadBindings(ctx context.Context) error {
	if err := a.plugins.Discover(); err != nil {
		a.log.Warn("plugin discovery failed", zap.Error(err))
	}

	var loadErr error
	err := a.pipeline.Do(ctx, func() {
		for _, pb := range a.pluginBindings {
			pb.state.RemoveInteractionTask(pb.cmd)
		}
		a.pluginBindings = nil
		loadErr = a.loadBindings()
	})
	if err != nil {
		return err
	}
	return loadErr
}

func (a *App) addListeners() {
	listeners := a.pipeline.Listeners()

	listeners.Subscribe(gesture.Invariant, func(ev gesture.Event) {
		a.last.Store(ev)
		a.log.Debug("gesture",
			zap.String("kind", string(ev.Kind)),
			zap.Stringer("code", ev.Code),
			zap.Stringer("source", ev.Source))
	})

	if a.store == nil {
		return
	}
	listeners.Subscribe(gesture.Invariant, func(ev gesture.Event) {
		row := store.Event{
			ID:         uuid.New().String(),
			Kind:       string(ev.Kind),
			Code:       uint8(ev.Code),
			OccurredAt: ev.Time,
		}
		if ev.Source != nil {
			row.SourceID = ev.Source.ID
		}
		select {
		case a.history <- row:
		default:
			a.log.Warn("gesture history full, dropping event", zap.String("kind", row.Kind))
		}
	})
}

func (a *App) writeHistory(done <-chan struct{}) {
	write := func(row store.Event) {
		if err := a.store.Events().Create(&row); err != nil {
			a.log.Error("failed to record gesture", zap.String("kind", row.Kind), zap.Error(err))
		}
	}
	for {
		select {
		case row := <-a.history:
			write(row)
		case <-done:
			for {
				select {
				case row := <-a.history:
					write(row)
				default:
					return
				}
			}
		}
	}
}

// Run runs the placement phase, when enabled, and then the interaction
// phase until ctx is done. Placement ends on the first one-hand tap.
func (a *App) Run(ctx context.Context) error {
	defer a.cancel()

	var history sync.WaitGroup
	if a.store != nil {
		history.Add(1)
		go func() {
			defer history.Done()
			a.writeHistory(a.pipeline.Done())
		}()
	}

	var loop *interaction.Loop
	if a.cfg.Placement.Enabled {
		loop = a.startPlacement(ctx)
	} else {
		a.pipeline.Enqueue(a.pipeline.BeginInteraction)
	}

	err := a.pipeline.Run(ctx)

	if loop != nil {
		loop.Stop()
		loop.Wait()
	}
	a.cancel()
	a.waitTasks()
	history.Wait()
	return err
}

func (a *App) startPlacement(ctx context.Context) *interaction.Loop {
	a.scene.SetActive(scene.SpatialMesh, true)
	placement := scene.NewPlacement(a.scene, a.gaze, scene.ContentSurface, scene.SpatialMesh, a.cfg.Gesture.Smoothing)
	a.log.Info("placement started")

	// The tap handler runs on the pipeline goroutine, which is started by
	// Run after loop is assigned.
	var loop *interaction.Loop
	unsubscribe := a.pipeline.Listeners().Subscribe(gesture.OneHandTap, func(gesture.Event) {
		loop.Stop()
	})
	loop = interaction.StartLoop(ctx, a.cfg.Gesture.UpdateInterval,
		func() { a.pipeline.Enqueue(placement.Step) },
		func() {
			unsubscribe()
			a.pipeline.Enqueue(func() {
				placement.Finish()
				a.log.Info("placement finished", zap.Bool("placed", placement.Activated()))
				a.pipeline.BeginInteraction()
			})
		})
	return loop
}

func (a *App) waitTasks() {
	a.runs.Wait()
}

// SetEnabled turns command dispatch on or off and persists the choice.
func (a *App) SetEnabled(enabled bool) error {
	a.pipeline.SetEnabled(enabled)
	if a.store == nil {
		return nil
	}
	if err := a.store.Settings().SetBool(store.SettingEnabled, enabled); err != nil {
		return fmt.Errorf("failed to persist enabled flag: %w", err)
	}
	return nil
}

// Enabled reports whether command dispatch is on.
func (a *App) Enabled() bool {
	return a.pipeline.Enabled()
}

// LastGesture returns the most recently classified gesture.
func (a *App) LastGesture() (gesture.Event, bool) {
	ev, ok := a.last.Load().(gesture.Event)
	return ev, ok
}

// Pipeline returns the interaction pipeline.
func (a *App) Pipeline() *Pipeline { return a.pipeline }

// Scene returns the in-process scene mirror.
func (a *App) Scene() *scene.Memory { return a.scene }

// Gaze returns the ambient gaze state.
func (a *App) Gaze() *scene.Gaze { return a.gaze }

// Keywords returns the ambient speech keyword state.
func (a *App) Keywords() *interaction.KeywordState { return a.keywords }

// Plugins returns the plugin manager.
func (a *App) Plugins() *plugin.Manager { return a.plugins }

// Store returns the backing store, which may be nil.
func (a *App) Store() *store.Store { return a.store }

// Metrics returns the pipeline metrics, which may be nil.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// Config returns the configuration the App was built with.
func (a *App) Config() *config.Config { return a.cfg }

// Status returns the pipeline status.
func (a *App) Status() Status {
	return a.pipeline.Status()
}
