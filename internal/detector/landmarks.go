// Package detector turns camera frames into hand landmarks.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Handedness labels reported by MediaPipe.
const (
	Left  = "Left"
	Right = "Right"
)

// Point3D is a landmark position in normalised image coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Distance returns the Euclidean distance to q.
func (p Point3D) Distance(q Point3D) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Scale is the wrist to middle-finger MCP distance, used as the hand's unit
// length.
func (h *HandLandmarks) Scale() float64 {
	return h.Points[Wrist].Distance(h.Points[MiddleMCP])
}

// PinchDistance returns the thumb tip to index tip distance in hand units.
// A degenerate hand reports +Inf so it never reads as pinched.
func (h *HandLandmarks) PinchDistance() float64 {
	scale := h.Scale()
	if scale < 1e-10 {
		return math.Inf(1)
	}
	return h.Points[ThumbTip].Distance(h.Points[IndexTip]) / scale
}
