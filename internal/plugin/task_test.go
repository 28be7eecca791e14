package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/holovis/internal/gesture"
	"github.com/ayusman/holovis/internal/input"
	"github.com/ayusman/holovis/internal/interaction"
)

var _ interaction.Task = (*Task)(nil)

// mockRunner records requests and replies with a fixed response.
type mockRunner struct {
	mu       sync.Mutex
	requests []*Request
	resp     *Response
	err      error
}

func (m *mockRunner) Execute(_ context.Context, _ *Plugin, req *Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if m.resp != nil {
		return m.resp, nil
	}
	return &Response{Success: true}, nil
}

func (m *mockRunner) phases() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.requests))
	for i, r := range m.requests {
		out[i] = r.Phase
	}
	return out
}

type countingRecorder struct {
	ok, failed int
}

func (c *countingRecorder) PluginRun(_ string, err error) {
	if err != nil {
		c.failed++
		return
	}
	c.ok++
}

func newTestPlugin(phases ...string) *Plugin {
	return &Plugin{Manifest: Manifest{Name: "keyboard", Executable: "kbd", Actions: []string{"press"}, Phases: phases}}
}

func dispatchAll(t *testing.T, task interaction.Task, cmd interaction.Command, kinds ...gesture.Kind) {
	t.Helper()

	m := interaction.NewMachine(nil, nil)
	s := interaction.NewState("main")
	if err := s.AddInteractionTask(cmd, task); err != nil {
		t.Fatalf("failed to add task: %v", err)
	}
	if err := m.AddState(s); err != nil {
		t.Fatalf("failed to add state: %v", err)
	}
	if err := m.Init(s); err != nil {
		t.Fatalf("failed to init: %v", err)
	}

	for _, k := range kinds {
		if _, err := m.Dispatch(interaction.Command{Gesture: k}); err != nil {
			t.Fatalf("dispatch %s: %v", k, err)
		}
	}
}

func TestNewTask_Validation(t *testing.T) {
	runner := &mockRunner{}

	if _, err := NewTask(TaskConfig{Runner: runner, Action: "press"}); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
	if _, err := NewTask(TaskConfig{Plugin: newTestPlugin(), Runner: runner, Action: "explode"}); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
	if _, err := NewTask(TaskConfig{Plugin: newTestPlugin(), Action: "press"}); err == nil {
		t.Error("expected error without runner")
	}
}

func TestTask_DiscreteRunsOnce(t *testing.T) {
	runner := &mockRunner{}
	task, err := NewTask(TaskConfig{Plugin: newTestPlugin(), Action: "press", Runner: runner})
	if err != nil {
		t.Fatalf("NewTask() failed: %v", err)
	}

	dispatchAll(t, task, interaction.Command{Gesture: gesture.OneHandTap}, gesture.OneHandTap)

	if got := runner.phases(); len(got) != 1 || got[0] != "discrete" {
		t.Fatalf("expected one discrete invocation, got %v", got)
	}
	req := runner.requests[0]
	if req.Action != "press" || req.Gesture != "one_hand_tap" || req.State != "main" {
		t.Errorf("unexpected request: %+v", req)
	}
	if string(req.Config) != "{}" {
		t.Errorf("expected default config {}, got %s", req.Config)
	}
}

func TestTask_ManipulationPhases(t *testing.T) {
	t.Run("start only by default", func(t *testing.T) {
		runner := &mockRunner{}
		task, err := NewTask(TaskConfig{Plugin: newTestPlugin(), Action: "press", Runner: runner})
		if err != nil {
			t.Fatalf("NewTask() failed: %v", err)
		}

		dispatchAll(t, task, interaction.Command{},
			gesture.OneHandManipulationStart, gesture.ManipulationUpdate, gesture.OneHandManipulationEnd)

		if got := runner.phases(); len(got) != 1 || got[0] != "start" {
			t.Errorf("expected [start], got %v", got)
		}
	})

	t.Run("opted into update and end", func(t *testing.T) {
		runner := &mockRunner{}
		task, err := NewTask(TaskConfig{Plugin: newTestPlugin("update", "end"), Action: "press", Runner: runner})
		if err != nil {
			t.Fatalf("NewTask() failed: %v", err)
		}

		dispatchAll(t, task, interaction.Command{},
			gesture.TwoHandManipulationStart, gesture.ManipulationUpdate, gesture.ManipulationUpdate, gesture.TwoHandManipulationEnd)

		want := []string{"start", "update", "update", "end"}
		got := runner.phases()
		if len(got) != len(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("phase %d: got %q, want %q", i, got[i], want[i])
			}
		}
	})
}

func TestTask_RequestCarriesCommandAndSource(t *testing.T) {
	runner := &mockRunner{}
	task, err := NewTask(TaskConfig{Plugin: newTestPlugin(), Action: "press", Runner: runner})
	if err != nil {
		t.Fatalf("NewTask() failed: %v", err)
	}

	ctx := interaction.Context{
		State:   "edit",
		Command: interaction.NewCommand(gesture.TwoHandTap, interaction.KeywordSelect, interaction.InteractableIsland),
		Event:   gesture.Event{Kind: gesture.TwoHandTap, Source: input.NewSource("hand-left", input.SourceHand)},
	}
	if err := task.OnStart(ctx); err != nil {
		t.Fatalf("OnStart() failed: %v", err)
	}

	req := runner.requests[0]
	if req.State != "edit" || req.Keyword != "select" || req.Interactable != "island" || req.Source != "hand-left" {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestTask_FailureIsReported(t *testing.T) {
	rec := &countingRecorder{}
	runner := &mockRunner{resp: &Response{Success: false, Error: "no keyboard"}}
	task, err := NewTask(TaskConfig{Plugin: newTestPlugin(), Action: "press", Runner: runner, Recorder: rec})
	if err != nil {
		t.Fatalf("NewTask() failed: %v", err)
	}

	err = task.OnStart(interaction.Context{Command: interaction.Command{Gesture: gesture.OneHandTap}})
	if !errors.Is(err, ErrActionFailed) {
		t.Fatalf("expected ErrActionFailed, got %v", err)
	}

	runner.resp = nil
	runner.err = errors.New("exec failed")
	if err := task.OnStart(interaction.Context{Command: interaction.Command{Gesture: gesture.OneHandTap}}); err == nil {
		t.Fatal("expected runner error")
	}

	if rec.failed != 2 || rec.ok != 0 {
		t.Errorf("recorder ok=%d failed=%d, want 0/2", rec.ok, rec.failed)
	}
}

func TestTask_Async(t *testing.T) {
	runner := &mockRunner{err: errors.New("exec failed")}
	task, err := NewTask(TaskConfig{Plugin: newTestPlugin(), Action: "press", Runner: runner, Async: true})
	if err != nil {
		t.Fatalf("NewTask() failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := task.OnStart(interaction.Context{Command: interaction.Command{Gesture: gesture.OneHandTap}}); err != nil {
			t.Fatalf("async OnStart should not return errors: %v", err)
		}
	}
	task.Wait()

	if n := len(runner.phases()); n != 3 {
		t.Errorf("expected 3 invocations, got %d", n)
	}
	if task.Name() != "keyboard/press" {
		t.Errorf("Name() = %q", task.Name())
	}
}

func TestTask_NullConfigSendsEmptyObject(t *testing.T) {
	for _, raw := range []string{"", "null", " null\n"} {
		runner := &mockRunner{}
		task, err := NewTask(TaskConfig{Plugin: newTestPlugin(), Action: "press", Runner: runner, Config: json.RawMessage(raw)})
		if err != nil {
			t.Fatalf("NewTask() failed: %v", err)
		}
		ctx := interaction.Context{
			Command: interaction.NewCommand(gesture.OneHandTap, "", ""),
			Event:   gesture.Event{Kind: gesture.OneHandTap},
		}
		if err := task.OnStart(ctx); err != nil {
			t.Fatalf("OnStart() failed: %v", err)
		}
		if got := string(runner.requests[0].Config); got != "{}" {
			t.Errorf("config %q sent as %s, want {}", raw, got)
		}
	}
}

// gatedRunner blocks every invocation until release is closed.
type gatedRunner struct {
	release chan struct{}
	mockRunner
}

func (g *gatedRunner) Execute(ctx context.Context, p *Plugin, req *Request) (*Response, error) {
	<-g.release
	return g.mockRunner.Execute(ctx, p, req)
}

func TestTask_SharedRunsGroup(t *testing.T) {
	runner := &gatedRunner{release: make(chan struct{})}
	var runs sync.WaitGroup

	tap := interaction.Context{Command: interaction.Command{Gesture: gesture.OneHandTap}}
	for i := 0; i < 2; i++ {
		task, err := NewTask(TaskConfig{Plugin: newTestPlugin(), Action: "press", Runner: runner, Async: true, Runs: &runs})
		if err != nil {
			t.Fatalf("NewTask() failed: %v", err)
		}
		if err := task.OnStart(tap); err != nil {
			t.Fatalf("OnStart() failed: %v", err)
		}
	}

	waited := make(chan struct{})
	go func() {
		runs.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("group returned while runs were blocked")
	case <-time.After(20 * time.Millisecond):
	}

	close(runner.release)
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("group did not return after runs finished")
	}
	if n := len(runner.phases()); n != 2 {
		t.Errorf("expected 2 invocations, got %d", n)
	}
}
