// Package scene defines the boundary between the interaction pipeline and the
// rendering engine: poses, the scene mutation sink, gaze targeting and the
// tasks that move scene objects.
package scene

import "math"

// Vec3 is a point or direction in scene space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Up is the default up direction.
var Up = Vec3{Y: 1}

// Add returns v+o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v-o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v*s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Len returns the Euclidean length of v.
func (v Vec3) Len() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// Normalize returns v scaled to unit length, or v unchanged if it is near zero.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < 1e-10 {
		return v
	}
	return v.Scale(1 / l)
}

// Lerp interpolates from v toward o by t, with t clamped to [0, 1].
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	t = math.Max(0, math.Min(1, t))
	return v.Add(o.Sub(v).Scale(t))
}

// Pose is the position and up-vector orientation of a scene object.
type Pose struct {
	Position Vec3 `json:"position"`
	Up       Vec3 `json:"up"`
}

// NewPose creates a Pose at position with the default up vector.
func NewPose(position Vec3) Pose {
	return Pose{Position: position, Up: Up}
}

// Lerp moves p toward target by t. The up vector is interpolated linearly
// and renormalised; a degenerate result keeps the previous up vector.
func (p Pose) Lerp(target Pose, t float64) Pose {
	up := p.Up.Lerp(target.Up, t)
	if up.Len() < 1e-10 {
		up = p.Up
	}
	return Pose{
		Position: p.Position.Lerp(target.Position, t),
		Up:       up.Normalize(),
	}
}
