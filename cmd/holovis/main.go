package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ayusman/holovis/internal/app"
	"github.com/ayusman/holovis/internal/capture"
	"github.com/ayusman/holovis/internal/config"
	"github.com/ayusman/holovis/internal/detector"
	"github.com/ayusman/holovis/internal/gesture"
	"github.com/ayusman/holovis/internal/handinput"
	"github.com/ayusman/holovis/internal/logging"
	"github.com/ayusman/holovis/internal/metrics"
	"github.com/ayusman/holovis/internal/server"
	"github.com/ayusman/holovis/internal/store"
	"github.com/ayusman/holovis/internal/tray"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "holovis: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.New(app.Options{
		Config:  cfg,
		Store:   st,
		Logger:  log,
		Metrics: metrics.New(reg),
	})
	if err != nil {
		return err
	}

	webDir := cfg.WebDir
	if webDir == "" {
		webDir = findWebDir(cfg.DataDir)
	}
	if webDir != "" {
		log.Info("serving static files", zap.String("dir", webDir))
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		App:       a,
		Gatherer:  reg,
		Logger:    log.Named("http"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		once sync.Once
		ferr error
	)
	fail := func(err error) {
		if err != nil {
			once.Do(func() { ferr = err })
		}
		cancel()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		fail(a.Run(ctx))
	}()
	go func() {
		defer wg.Done()
		fail(srv.Run(ctx, cfg.Addr))
	}()

	if cfg.Camera.Enabled {
		runner, closeCamera, err := newHandInput(cfg, a, log)
		if err != nil {
			cancel()
			wg.Wait()
			return err
		}
		defer closeCamera()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("hand input stopped", zap.Error(err))
			}
		}()
	}

	if cfg.TrayEnabled {
		t := tray.New(a, log.Named("tray"))
		t.OnSettings(func() { openBrowser(settingsURL(cfg.Addr), log) })
		t.OnQuit(cancel)
		unsubscribe := a.Pipeline().Listeners().Subscribe(gesture.Invariant, t.OnGesture)
		defer unsubscribe()
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// systray owns the main goroutine until Quit.
		t.Run()
		cancel()
	}

	wg.Wait()
	log.Info("holovis stopped")
	return ferr
}

// newHandInput wires the camera transport into the pipeline.
func newHandInput(cfg *config.Config, a *app.App, log *zap.Logger) (*handinput.Runner, func(), error) {
	dcfg := detector.DefaultConfig()
	dcfg.DataDir = cfg.DataDir
	det, err := detector.NewMediaPipeDetector(dcfg, log.Named("detector"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create hand detector: %w", err)
	}

	motion := capture.NewMotionDetector(capture.DefaultMotionThreshold)
	runner, err := handinput.NewRunner(handinput.Config{
		Camera:         capture.NewCamera(cfg.Camera.DeviceID, capture.IdleFPS),
		Detector:       det,
		Motion:         motion,
		Sink:           a.Pipeline(),
		Logger:         log.Named("handinput"),
		PinchThreshold: cfg.Camera.PinchThreshold,
		ActiveFPS:      cfg.Camera.FPS,
	})
	if err != nil {
		det.Close()
		motion.Close()
		return nil, nil, err
	}

	return runner, func() {
		det.Close()
		motion.Close()
	}, nil
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func settingsURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string, log *zap.Logger) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Warn("failed to open browser", zap.String("url", url), zap.Error(err))
	}
}
