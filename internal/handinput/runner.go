package handinput

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/holovis/internal/capture"
	"github.com/ayusman/holovis/internal/detector"
	"github.com/ayusman/holovis/internal/input"
)

// DefaultIdleTimeout is how long without motion or hands before the runner
// drops back to the idle frame rate.
const DefaultIdleTimeout = 2 * time.Second

// MotionGate decides whether a frame is worth running the detector on.
type MotionGate interface {
	Detect(frame *gocv.Mat) (bool, float64)
	Reset()
}

// Config configures a Runner.
type Config struct {
	Camera   capture.Camera
	Detector detector.Detector
	// Motion is optional; without it every frame is detected.
	Motion MotionGate
	Sink   input.Sink
	Logger *zap.Logger

	PinchThreshold float64
	IdleFPS        int
	ActiveFPS      int
	IdleTimeout    time.Duration
}

// Runner polls the camera, detects hands and submits input events. It idles
// at a low frame rate until motion is seen, then runs at the active rate
// while motion or tracked hands persist.
type Runner struct {
	cfg     Config
	log     *zap.Logger
	tracker *Tracker

	mu         sync.Mutex
	active     bool
	lastMotion time.Time
}

// NewRunner validates cfg and creates a Runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Camera == nil || cfg.Detector == nil || cfg.Sink == nil {
		return nil, errors.New("handinput: camera, detector and sink are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.IdleFPS <= 0 {
		cfg.IdleFPS = capture.IdleFPS
	}
	if cfg.ActiveFPS <= 0 {
		cfg.ActiveFPS = capture.ActiveFPS
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}

	return &Runner{
		cfg:     cfg,
		log:     cfg.Logger,
		tracker: NewTracker(cfg.PinchThreshold),
		active:  cfg.Motion == nil,
	}, nil
}

// Active reports whether the runner is at the active frame rate.
func (r *Runner) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Run opens the camera and processes frames until ctx is done. Tracked hands
// are lost on return.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.cfg.Camera.Open(); err != nil {
		return err
	}
	defer r.cfg.Camera.Close()

	fps := r.cfg.IdleFPS
	if r.Active() {
		fps = r.cfg.ActiveFPS
	}
	r.cfg.Camera.SetFPS(fps)
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	r.log.Info("hand input started", zap.Int("fps", fps))
	defer func() {
		r.submit(r.tracker.Reset(time.Now()))
		r.log.Info("hand input stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			before := r.Active()
			r.Step(now)
			if after := r.Active(); after != before {
				fps := r.cfg.IdleFPS
				if after {
					fps = r.cfg.ActiveFPS
				}
				r.cfg.Camera.SetFPS(fps)
				ticker.Reset(time.Second / time.Duration(fps))
				r.log.Debug("hand input rate changed", zap.Bool("active", after), zap.Int("fps", fps))
			}
		}
	}
}

// Step processes one frame.
func (r *Runner) Step(now time.Time) {
	frame, err := r.cfg.Camera.ReadFrame()
	if err != nil {
		r.log.Debug("read frame", zap.Error(err))
		return
	}
	defer frame.Close()

	if !r.gate(frame, now) {
		return
	}

	hands, err := r.cfg.Detector.Detect(frame)
	if err != nil {
		r.log.Warn("detect hands", zap.Error(err))
		return
	}
	r.submit(r.tracker.Update(hands, now))
}

// gate updates the idle/active mode and reports whether to detect.
func (r *Runner) gate(frame *gocv.Mat, now time.Time) bool {
	if r.cfg.Motion == nil {
		return true
	}

	moved, _ := r.cfg.Motion.Detect(frame)

	r.mu.Lock()
	defer r.mu.Unlock()

	if moved || r.tracker.Tracking() > 0 {
		r.lastMotion = now
		r.active = true
		return true
	}
	if r.active && now.Sub(r.lastMotion) > r.cfg.IdleTimeout {
		r.active = false
		r.cfg.Motion.Reset()
	}
	return r.active
}

func (r *Runner) submit(events []input.Event) {
	for _, ev := range events {
		r.cfg.Sink.Submit(ev)
	}
}
