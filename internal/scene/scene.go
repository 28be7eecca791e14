package scene

import "sync"

// ObjectID names a scene object.
type ObjectID string

// Well-known objects.
const (
	ContentSurface ObjectID = "content_surface"
	SpatialMesh    ObjectID = "spatial_mesh"
)

// Scene is the mutation sink the pipeline applies pose and activation changes
// through. The engine behind it is external.
type Scene interface {
	Pose(id ObjectID) (Pose, bool)
	SetPose(id ObjectID, p Pose)
	SetActive(id ObjectID, active bool)
}

// PoseSource supplies the target pose for drag-style tasks. ok is false when
// there is currently no valid target.
type PoseSource interface {
	TargetPose() (Pose, bool)
}

// Change describes one mutation applied to a Memory scene.
type Change struct {
	Object ObjectID `json:"object"`
	Pose   *Pose    `json:"pose,omitempty"`
	Active *bool    `json:"active,omitempty"`
}

type object struct {
	pose   Pose
	active bool
}

// Memory is an in-process Scene that mirrors object state and reports every
// change to its watchers, in registration order. Watchers run on the caller's
// goroutine.
type Memory struct {
	mu       sync.RWMutex
	objects  map[ObjectID]*object
	watchers []func(Change)
}

// NewMemory creates an empty Memory scene.
func NewMemory() *Memory {
	return &Memory{objects: make(map[ObjectID]*object)}
}

// Watch registers fn to be called after every change.
func (m *Memory) Watch(fn func(Change)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchers = append(m.watchers, fn)
}

// Pose returns the pose of id.
func (m *Memory) Pose(id ObjectID) (Pose, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[id]
	if !ok {
		return Pose{}, false
	}
	return obj.pose, true
}

// Active reports whether id is active.
func (m *Memory) Active(id ObjectID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[id]
	return ok && obj.active
}

// SetPose sets the pose of id, creating the object if needed.
func (m *Memory) SetPose(id ObjectID, p Pose) {
	m.mu.Lock()
	m.get(id).pose = p
	watchers := m.watchers
	m.mu.Unlock()

	pose := p
	notify(watchers, Change{Object: id, Pose: &pose})
}

// SetActive sets whether id is active, creating the object if needed.
func (m *Memory) SetActive(id ObjectID, active bool) {
	m.mu.Lock()
	m.get(id).active = active
	watchers := m.watchers
	m.mu.Unlock()

	a := active
	notify(watchers, Change{Object: id, Active: &a})
}

// Objects returns the ids of every known object.
func (m *Memory) Objects() []ObjectID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]ObjectID, 0, len(m.objects))
	for id := range m.objects {
		ids = append(ids, id)
	}
	return ids
}

func (m *Memory) get(id ObjectID) *object {
	obj, ok := m.objects[id]
	if !ok {
		obj = &object{pose: NewPose(Vec3{})}
		m.objects[id] = obj
	}
	return obj
}

func notify(watchers []func(Change), c Change) {
	for _, fn := range watchers {
		fn(c)
	}
}
