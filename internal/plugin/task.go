package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ayusman/holovis/internal/gesture"
	"github.com/ayusman/holovis/internal/interaction"
)

var (
	// ErrUnknownAction is returned when a task names an action the plugin
	// does not declare.
	ErrUnknownAction = errors.New("unknown plugin action")
	// ErrActionFailed wraps an unsuccessful plugin response.
	ErrActionFailed = errors.New("plugin action failed")
)

// RunRecorder receives plugin invocation outcomes.
type RunRecorder interface {
	PluginRun(plugin string, err error)
}

type nopRecorder struct{}

func (nopRecorder) PluginRun(string, error) {}

// TaskConfig configures a Task.
type TaskConfig struct {
	Plugin   *Plugin
	Action   string
	Config   json.RawMessage
	Runner   Runner
	Logger   *zap.Logger
	Recorder RunRecorder

	// Async runs invocations in the background. Hooks then return nil and
	// failures are only logged and recorded.
	Async bool
	// Context bounds background invocations. Defaults to Background.
	Context context.Context
	// Runs, when set, also counts background invocations, so one group can
	// wait on every task sharing it.
	Runs *sync.WaitGroup
}

// Task runs a plugin action as an interaction task. The plugin is invoked
// when a gesture starts (or for a discrete gesture); update and end
// invocations happen only when the manifest lists those phases.
type Task struct {
	cfg TaskConfig
	wg  sync.WaitGroup
}

// NewTask validates cfg and creates a Task.
func NewTask(cfg TaskConfig) (*Task, error) {
	if cfg.Plugin == nil {
		return nil, ErrPluginNotFound
	}
	if cfg.Runner == nil {
		return nil, errors.New("plugin task needs a runner")
	}
	if !cfg.Plugin.Manifest.HasAction(cfg.Action) {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownAction, cfg.Plugin.Manifest.Name, cfg.Action)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	if c := bytes.TrimSpace(cfg.Config); len(c) == 0 || bytes.Equal(c, []byte("null")) {
		cfg.Config = json.RawMessage("{}")
	}
	return &Task{cfg: cfg}, nil
}

// Name returns "plugin/action".
func (t *Task) Name() string {
	return t.cfg.Plugin.Manifest.Name + "/" + t.cfg.Action
}

func (t *Task) OnStart(ctx interaction.Context) error {
	return t.invoke(ctx, ctx.Command.Gesture.Phase())
}

func (t *Task) OnUpdate(ctx interaction.Context) error {
	return t.invoke(ctx, gesture.PhaseUpdate)
}

func (t *Task) OnEnd(ctx interaction.Context) error {
	// A discrete gesture already ran on OnStart.
	if ctx.Command.Gesture.Phase() == gesture.PhaseDiscrete {
		return nil
	}
	return t.invoke(ctx, gesture.PhaseEnd)
}

// Wait blocks until background invocations finish.
func (t *Task) Wait() {
	t.wg.Wait()
}

func (t *Task) invoke(ctx interaction.Context, phase gesture.Phase) error {
	if !t.cfg.Plugin.Manifest.WantsPhase(phase.String()) {
		return nil
	}

	req := t.request(ctx, phase)
	if !t.cfg.Async {
		return t.run(req)
	}

	t.wg.Add(1)
	if t.cfg.Runs != nil {
		t.cfg.Runs.Add(1)
	}
	go func() {
		defer t.wg.Done()
		if t.cfg.Runs != nil {
			defer t.cfg.Runs.Done()
		}
		_ = t.run(req)
	}()
	return nil
}

func (t *Task) request(ctx interaction.Context, phase gesture.Phase) *Request {
	req := &Request{
		Action:       t.cfg.Action,
		Gesture:      string(ctx.Command.Gesture),
		Phase:        phase.String(),
		State:        ctx.State,
		Keyword:      string(ctx.Command.Keyword),
		Interactable: string(ctx.Command.Target),
		Config:       t.cfg.Config,
	}
	if ctx.Event.Source != nil {
		req.Source = ctx.Event.Source.ID
	}
	return req
}

func (t *Task) run(req *Request) error {
	resp, err := t.cfg.Runner.Execute(t.cfg.Context, t.cfg.Plugin, req)
	if err == nil && !resp.Success {
		err = fmt.Errorf("%w: %s", ErrActionFailed, resp.Error)
	}
	t.cfg.Recorder.PluginRun(t.cfg.Plugin.Manifest.Name, err)

	if err != nil {
		t.cfg.Logger.Warn("plugin task failed",
			zap.String("task", t.Name()),
			zap.String("gesture", req.Gesture),
			zap.String("phase", req.Phase),
			zap.Error(err))
		return err
	}
	t.cfg.Logger.Debug("plugin task ran",
		zap.String("task", t.Name()),
		zap.String("gesture", req.Gesture),
		zap.String("phase", req.Phase))
	return nil
}
