package scene

// Placement anchors an object to the gaze target before interaction starts.
// Each Step lerps the object toward the target pose and activates it on the
// first valid target; Finish hides the helper mesh used for targeting.
type Placement struct {
	scene     Scene
	target    PoseSource
	object    ObjectID
	mesh      ObjectID
	smoothing float64
	current   *Pose
	activated bool
	finished  bool
}

// NewPlacement creates a Placement of object against target, hiding mesh when
// finished.
func NewPlacement(s Scene, target PoseSource, object, mesh ObjectID, smoothing float64) *Placement {
	if smoothing <= 0 || smoothing > 1 {
		smoothing = DefaultSmoothing
	}
	return &Placement{
		scene:     s,
		target:    target,
		object:    object,
		mesh:      mesh,
		smoothing: smoothing,
	}
}

// Step performs one placement tick. It does nothing without a valid target
// or after Finish.
func (p *Placement) Step() {
	if p.finished {
		return
	}
	target, ok := p.target.TargetPose()
	if !ok {
		return
	}

	if !p.activated {
		p.scene.SetActive(p.object, true)
		p.activated = true
	}
	if p.current == nil {
		start, ok := p.scene.Pose(p.object)
		if !ok {
			start = NewPose(Vec3{})
		}
		p.current = &start
	}

	next := p.current.Lerp(target, p.smoothing)
	p.current = &next
	p.scene.SetPose(p.object, next)
}

// Finish ends placement. It is idempotent.
func (p *Placement) Finish() {
	if p.finished {
		return
	}
	p.finished = true
	p.scene.SetActive(p.mesh, false)
}

// Finished reports whether Finish has run.
func (p *Placement) Finished() bool {
	return p.finished
}

// Activated reports whether the object has been shown.
func (p *Placement) Activated() bool {
	return p.activated
}
