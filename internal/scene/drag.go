package scene

import (
	"go.uber.org/zap"

	"github.com/ayusman/holovis/internal/interaction"
)

// DefaultSmoothing is the interpolation factor applied per update.
const DefaultSmoothing = 0.1

// DragConfig configures a SurfaceDrag.
type DragConfig struct {
	Object    ObjectID
	Smoothing float64
	Target    PoseSource
	Scene     Scene
	Logger    *zap.Logger
}

// SurfaceDrag moves an anchored object toward a target pose while a
// manipulation is in progress. On start it captures the object's pose as the
// reference, every update lerps toward the current target and applies the
// result, and on end it releases the reference.
type SurfaceDrag struct {
	interaction.NopTask

	cfg       DragConfig
	reference *Pose
	current   Pose
}

// NewSurfaceDrag creates a SurfaceDrag.
func NewSurfaceDrag(cfg DragConfig) *SurfaceDrag {
	if cfg.Smoothing <= 0 || cfg.Smoothing > 1 {
		cfg.Smoothing = DefaultSmoothing
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &SurfaceDrag{cfg: cfg}
}

// Dragging reports whether a reference pose is held.
func (d *SurfaceDrag) Dragging() bool {
	return d.reference != nil
}

// Reference returns the pose captured at start.
func (d *SurfaceDrag) Reference() (Pose, bool) {
	if d.reference == nil {
		return Pose{}, false
	}
	return *d.reference, true
}

func (d *SurfaceDrag) OnStart(ctx interaction.Context) error {
	pose, ok := d.cfg.Scene.Pose(d.cfg.Object)
	if !ok {
		pose = NewPose(Vec3{})
	}
	d.reference = &pose
	d.current = pose
	d.cfg.Logger.Debug("drag started",
		zap.String("object", string(d.cfg.Object)),
		zap.String("gesture", string(ctx.Event.Kind)))
	return nil
}

func (d *SurfaceDrag) OnUpdate(interaction.Context) error {
	if d.reference == nil {
		return nil
	}
	target, ok := d.cfg.Target.TargetPose()
	if !ok {
		return nil
	}
	d.current = d.current.Lerp(target, d.cfg.Smoothing)
	d.cfg.Scene.SetPose(d.cfg.Object, d.current)
	return nil
}

func (d *SurfaceDrag) OnEnd(interaction.Context) error {
	if d.reference == nil {
		return nil
	}
	d.reference = nil
	d.cfg.Logger.Debug("drag ended", zap.String("object", string(d.cfg.Object)))
	return nil
}
