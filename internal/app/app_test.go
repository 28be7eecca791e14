package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/holovis/internal/config"
	"github.com/ayusman/holovis/internal/gesture"
	"github.com/ayusman/holovis/internal/input"
	"github.com/ayusman/holovis/internal/metrics"
	"github.com/ayusman/holovis/internal/plugin"
	"github.com/ayusman/holovis/internal/scene"
	"github.com/ayusman/holovis/internal/store"
)

type recordingRunner struct {
	mu       sync.Mutex
	requests []plugin.Request
}

func (r *recordingRunner) Execute(_ context.Context, _ *plugin.Plugin, req *plugin.Request) (*plugin.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, *req)
	return &plugin.Response{Success: true}, nil
}

func (r *recordingRunner) seen() []plugin.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]plugin.Request(nil), r.requests...)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Plugins.Dir = filepath.Join(cfg.DataDir, "plugins")
	cfg.Gesture.CoalesceWindow = testWindow
	cfg.Gesture.UpdateInterval = testInterval
	cfg.Gesture.Smoothing = 0.5
	cfg.Placement.Enabled = false
	return cfg
}

func testStore(t *testing.T, cfg *config.Config) *store.Store {
	t.Helper()
	s, err := store.New(cfg.DBPath())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func runApp(t *testing.T, a *App) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-errCh)
	})
}

func tap(p *Pipeline, src *input.Source) {
	p.Submit(input.Event{Type: input.EventDown, Source: src})
	p.Submit(input.Event{Type: input.EventUp, Source: src})
}

func writePlugin(t *testing.T, dir string, m plugin.Manifest) {
	t.Helper()
	pluginDir := filepath.Join(dir, m.Name)
	require.NoError(t, os.MkdirAll(pluginDir, 0755))
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, plugin.ManifestFile), data, 0644))
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestApp_DefaultBindings(t *testing.T) {
	a, err := New(Options{Config: testConfig(t)})
	require.NoError(t, err)

	main, ok := a.Pipeline().Machine().State(MainState)
	require.True(t, ok)
	assert.Same(t, main, a.Pipeline().Machine().Current())

	var kinds []gesture.Kind
	for _, b := range main.Bindings() {
		kinds = append(kinds, b.Command.Gesture)
	}
	assert.Equal(t, []gesture.Kind{
		gesture.OneHandManipulationStart,
		gesture.ManipulationUpdate,
		gesture.ManipulationEnd,
	}, kinds)
}

func TestApp_DragMovesSurfaceToGaze(t *testing.T) {
	a, err := New(Options{Config: testConfig(t)})
	require.NoError(t, err)
	runApp(t, a)

	a.Gaze().Update(scene.Hit{
		Position: scene.Vec3{X: 1},
		Normal:   scene.Vec3{Y: 1},
		Surface:  true,
	})

	p := a.Pipeline()
	hand := input.NewSource("hand-right", input.SourceHand)
	p.Submit(input.Event{Type: input.EventDetected, Source: hand})
	p.Submit(input.Event{Type: input.EventDown, Source: hand})

	require.Eventually(t, func() bool {
		pose, ok := a.Scene().Pose(scene.ContentSurface)
		return ok && pose.Position.X > 0.9
	}, waitFor, tick)

	p.Submit(input.Event{Type: input.EventUp, Source: hand})
	require.Eventually(t, func() bool {
		ev, ok := a.LastGesture()
		return ok && ev.Kind == gesture.OneHandManipulationEnd
	}, waitFor, tick)

	// Released: further gaze changes leave the surface alone.
	drain(t, p)
	before, _ := a.Scene().Pose(scene.ContentSurface)
	a.Gaze().Update(scene.Hit{Position: scene.Vec3{X: -5}, Surface: true})
	drain(t, p)
	after, _ := a.Scene().Pose(scene.ContentSurface)
	assert.Equal(t, before, after)
}

func TestApp_PlacementEndsOnTap(t *testing.T) {
	cfg := testConfig(t)
	cfg.Placement.Enabled = true
	a, err := New(Options{Config: cfg})
	require.NoError(t, err)

	a.Gaze().Update(scene.Hit{Position: scene.Vec3{Z: 2}, Normal: scene.Vec3{Y: 1}, Surface: true})
	runApp(t, a)

	require.Eventually(t, func() bool {
		return a.Scene().Active(scene.ContentSurface) && a.Scene().Active(scene.SpatialMesh)
	}, waitFor, tick)
	assert.False(t, a.Pipeline().Status().Interacting)

	clicker := input.NewSource("clicker", input.SourceController)
	a.Pipeline().Submit(input.Event{Type: input.EventDetected, Source: clicker})
	tap(a.Pipeline(), clicker)

	require.Eventually(t, func() bool {
		return a.Pipeline().Status().Interacting
	}, waitFor, tick)
	assert.False(t, a.Scene().Active(scene.SpatialMesh))
	assert.True(t, a.Scene().Active(scene.ContentSurface))

	pose, ok := a.Scene().Pose(scene.ContentSurface)
	require.True(t, ok)
	assert.Greater(t, pose.Position.Z, 0.0)
}

func TestApp_RecordsHistory(t *testing.T) {
	cfg := testConfig(t)
	s := testStore(t, cfg)
	a, err := New(Options{Config: cfg, Store: s, Metrics: metrics.New(prometheus.NewRegistry())})
	require.NoError(t, err)
	runApp(t, a)

	clicker := input.NewSource("clicker", input.SourceController)
	a.Pipeline().Submit(input.Event{Type: input.EventDetected, Source: clicker})
	tap(a.Pipeline(), clicker)

	require.Eventually(t, func() bool {
		n, err := s.Events().Count()
		return err == nil && n == 1
	}, waitFor, tick)

	events, err := s.Events().List(10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(gesture.OneHandTap), events[0].Kind)
	assert.Equal(t, "clicker", events[0].SourceID)
	assert.Equal(t, uint8(gesture.SlotCode(0, 1, 1)), events[0].Code)
	assert.Equal(t, gesture.OneHandTap, a.Metrics().Snapshot().LastGesture)
}

func TestApp_EnabledIsPersisted(t *testing.T) {
	cfg := testConfig(t)
	s := testStore(t, cfg)

	a, err := New(Options{Config: cfg, Store: s})
	require.NoError(t, err)
	assert.True(t, a.Enabled())
	require.NoError(t, a.SetEnabled(false))
	assert.False(t, a.Enabled())

	again, err := New(Options{Config: cfg, Store: s})
	require.NoError(t, err)
	assert.False(t, again.Enabled())
}

func TestApp_StoredBindingRunsPlugin(t *testing.T) {
	cfg := testConfig(t)
	s := testStore(t, cfg)
	writePlugin(t, cfg.Plugins.Dir, plugin.Manifest{
		Name:       "lights",
		Version:    "1.0.0",
		Executable: "run.sh",
		Actions:    []string{"toggle"},
	})

	tapBinding := &store.Binding{
		ID:         uuid.New().String(),
		Gesture:    string(gesture.OneHandTap),
		PluginName: "lights",
		ActionName: "toggle",
		Config:     json.RawMessage(`{"room":"kitchen"}`),
		Enabled:    true,
	}
	require.NoError(t, s.Bindings().Create(tapBinding))
	require.NoError(t, s.Bindings().Create(&store.Binding{
		ID:         uuid.New().String(),
		Gesture:    string(gesture.TwoHandTap),
		PluginName: "missing",
		ActionName: "toggle",
		Enabled:    true,
	}))
	require.NoError(t, s.Bindings().Create(&store.Binding{
		ID:         uuid.New().String(),
		Gesture:    string(gesture.OneHandDoubleTap),
		PluginName: "lights",
		ActionName: "toggle",
		Enabled:    false,
	}))

	runner := &recordingRunner{}
	a, err := New(Options{Config: cfg, Store: s, Runner: runner})
	require.NoError(t, err)

	main, _ := a.Pipeline().Machine().State(MainState)
	assert.Len(t, main.Bindings(), 4, "three drag bindings plus one plugin binding")
	runApp(t, a)

	clicker := input.NewSource("clicker", input.SourceController)
	a.Pipeline().Submit(input.Event{Type: input.EventDetected, Source: clicker})
	tap(a.Pipeline(), clicker)

	require.Eventually(t, func() bool { return len(runner.seen()) == 1 }, waitFor, tick)
	req := runner.seen()[0]
	assert.Equal(t, "toggle", req.Action)
	assert.Equal(t, string(gesture.OneHandTap), req.Gesture)
	assert.Equal(t, "discrete", req.Phase)
	assert.Equal(t, MainState, req.State)
	assert.Equal(t, "clicker", req.Source)
	assert.JSONEq(t, `{"room":"kitchen"}`, string(req.Config))

	// After the binding is removed and reloaded, taps no longer reach the plugin.
	require.NoError(t, s.Bindings().Delete(tapBinding.ID))
	require.NoError(t, a.ReloadBindings(context.Background()))
	assert.Len(t, main.Bindings(), 3)

	tap(a.Pipeline(), clicker)
	require.Eventually(t, func() bool {
		n, _ := s.Events().Count()
		return n == 2
	}, waitFor, tick)
	assert.Len(t, runner.seen(), 1)
}

func TestApp_BindingsInOtherStates(t *testing.T) {
	cfg := testConfig(t)
	s := testStore(t, cfg)
	writePlugin(t, cfg.Plugins.Dir, plugin.Manifest{Name: "notes", Executable: "notes"})
	require.NoError(t, s.Bindings().Create(&store.Binding{
		ID:         uuid.New().String(),
		State:      "edit",
		Gesture:    string(gesture.TwoHandTap),
		PluginName: "notes",
		ActionName: "save",
		Enabled:    true,
	}))
	require.NoError(t, s.Bindings().Create(&store.Binding{
		ID:         uuid.New().String(),
		Gesture:    "wave",
		PluginName: "notes",
		ActionName: "save",
		Enabled:    true,
	}))

	a, err := New(Options{Config: cfg, Store: s, Runner: &recordingRunner{}})
	require.NoError(t, err)

	edit, ok := a.Pipeline().Machine().State("edit")
	require.True(t, ok)
	assert.Len(t, edit.Bindings(), 1)

	main, _ := a.Pipeline().Machine().State(MainState)
	assert.Len(t, main.Bindings(), 3, "unknown gesture is skipped")
}
