package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ayusman/holovis/internal/app"
	"github.com/ayusman/holovis/internal/config"
	"github.com/ayusman/holovis/internal/metrics"
	"github.com/ayusman/holovis/internal/plugin"
	"github.com/ayusman/holovis/internal/server"
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

func eventually(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = tmpDir
	cfg.Plugins.Dir = filepath.Join(tmpDir, "plugins")
	cfg.Gesture.CoalesceWindow = 20 * time.Millisecond
	cfg.Placement.Enabled = false

	// Install a plugin manifest; the recording runner stands in for the process.
	pluginDir := filepath.Join(cfg.Plugins.Dir, "lights")
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	manifest := `{"name": "lights", "version": "1.0.0", "executable": "lights", "actions": ["toggle"]}`
	if err := os.WriteFile(filepath.Join(pluginDir, plugin.ManifestFile), []byte(manifest), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	s, err := store.New(cfg.DBPath())
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	runner := &recordingRunner{}
	reg := prometheus.NewRegistry()
	a, err := app.New(app.Options{Config: cfg, Store: s, Metrics: metrics.New(reg), Runner: runner})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()
	defer func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("app.Run() error = %v", err)
		}
	}()

	ts := httptest.NewServer(server.New(server.Config{Store: s, App: a, Gatherer: reg}))
	defer ts.Close()
	client := ts.Client()

	// 1. Bind a tap on the lamp to the lights plugin
	body := `{"gesture": "one_hand_tap", "interactable": "lamp", "plugin_name": "lights", "action_name": "toggle", "config": {"room": "hall"}}`
	resp, err := client.Post(ts.URL+"/api/bindings", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /api/bindings error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	// 2. Connect an input client and gaze at the lamp
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/input"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	messages := []map[string]any{
		{"type": "gaze", "position": map[string]float64{"x": 0, "y": 1, "z": 2}, "normal": map[string]float64{"y": 1}, "target": "lamp"},
		{"type": "source_detected", "source": "clicker"},
		{"type": "input_down", "source": "clicker"},
		{"type": "input_up", "source": "clicker"},
	}
	for _, msg := range messages {
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatalf("WriteJSON() error = %v", err)
		}
	}

	// 3. The tap reaches the plugin
	eventually(t, func() bool { return len(runner.seen()) == 1 }, "plugin invocation")
	req := runner.seen()[0]
	if req.Action != "toggle" || req.Interactable != "lamp" || req.Source != "clicker" {
		t.Errorf("unexpected plugin request: %+v", req)
	}
	var pluginConfig map[string]string
	if err := json.Unmarshal(req.Config, &pluginConfig); err != nil || pluginConfig["room"] != "hall" {
		t.Errorf("config = %s, want room hall", req.Config)
	}

	// 4. The tap is broadcast back to the client
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("no gesture broadcast: %v", err)
		}
		if msg["type"] == "gesture" {
			if msg["kind"] != "one_hand_tap" {
				t.Errorf("broadcast kind = %v, want one_hand_tap", msg["kind"])
			}
			break
		}
	}

	// 5. The tap is recorded in the history
	var history struct {
		Events []struct {
			Kind   string `json:"kind"`
			Source string `json:"source"`
		} `json:"events"`
		Total int `json:"total"`
	}
	eventually(t, func() bool {
		resp, err := client.Get(ts.URL + "/api/events")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
			return false
		}
		return history.Total >= 1
	}, "gesture history")
	if history.Events[0].Kind != "one_hand_tap" || history.Events[0].Source != "clicker" {
		t.Errorf("unexpected history entry: %+v", history.Events[0])
	}

	// 6. Disabled dispatch stops further invocations
	put, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/status", strings.NewReader(`{"enabled": false}`))
	resp, err = client.Do(put)
	if err != nil {
		t.Fatalf("PUT /api/status error = %v", err)
	}
	resp.Body.Close()

	conn.WriteJSON(map[string]any{"type": "input_down", "source": "clicker"})
	conn.WriteJSON(map[string]any{"type": "input_up", "source": "clicker"})
	eventually(t, func() bool {
		resp, err := client.Get(ts.URL + "/api/events")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		json.NewDecoder(resp.Body).Decode(&history)
		return history.Total >= 2
	}, "second gesture in history")
	if n := len(runner.seen()); n != 1 {
		t.Errorf("plugin invocations = %d, want 1 while disabled", n)
	}
}
