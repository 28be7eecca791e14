package scene

import (
	"sync"

	"github.com/ayusman/holovis/internal/interaction"
)

// Hit is one gaze raycast sample.
type Hit struct {
	Position Vec3
	Normal   Vec3
	Target   interaction.Interactable
	// Surface is true when the ray hit the scanned surface mesh.
	Surface bool
}

// Gaze holds the latest gaze sample. It is instantaneous state: every Update
// replaces the previous sample. Safe for concurrent use.
type Gaze struct {
	mu  sync.RWMutex
	hit Hit
	ok  bool
}

// NewGaze creates a Gaze with no sample.
func NewGaze() *Gaze {
	return &Gaze{}
}

// Update records a new sample.
func (g *Gaze) Update(h Hit) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hit = h
	g.ok = true
}

// Clear forgets the current sample.
func (g *Gaze) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hit = Hit{}
	g.ok = false
}

// Hit returns the latest sample.
func (g *Gaze) Hit() (Hit, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hit, g.ok
}

// Target implements interaction.TargetSource.
func (g *Gaze) Target() interaction.Interactable {
	h, ok := g.Hit()
	if !ok {
		return interaction.InteractableInvariant
	}
	return h.Target
}

// TargetPose implements PoseSource: the hit point and surface normal, valid
// only while the gaze rests on the surface mesh.
func (g *Gaze) TargetPose() (Pose, bool) {
	h, ok := g.Hit()
	if !ok || !h.Surface {
		return Pose{}, false
	}
	up := h.Normal
	if up.Len() < 1e-10 {
		up = Up
	}
	return Pose{Position: h.Position, Up: up.Normalize()}, true
}
