package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector returns preset hands. Safe for concurrent use.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands ...HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the preset hands or error.
func (m *MockDetector) Detect(*gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]HandLandmarks, len(m.hands))
	copy(out, m.hands)
	return out, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// OpenHand returns a relaxed hand with thumb and index apart.
func OpenHand(handedness string) HandLandmarks {
	h := baseHand(handedness)
	h.Points[ThumbTip] = Point3D{X: 0.62, Y: 0.62}
	h.Points[IndexTip] = Point3D{X: 0.52, Y: 0.40}
	return h
}

// PinchedHand returns a hand with thumb and index tips touching.
func PinchedHand(handedness string) HandLandmarks {
	h := baseHand(handedness)
	h.Points[ThumbTip] = Point3D{X: 0.53, Y: 0.55}
	h.Points[IndexTip] = Point3D{X: 0.54, Y: 0.55}
	return h
}

// baseHand lays out a palm with the wrist 0.2 below the middle MCP.
func baseHand(handedness string) HandLandmarks {
	h := HandLandmarks{Handedness: handedness, Score: 0.95}

	h.Points[Wrist] = Point3D{X: 0.5, Y: 0.8}
	h.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75}
	h.Points[ThumbMCP] = Point3D{X: 0.58, Y: 0.70}
	h.Points[ThumbIP] = Point3D{X: 0.60, Y: 0.66}

	h.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.62}
	h.Points[IndexPIP] = Point3D{X: 0.54, Y: 0.54}
	h.Points[IndexDIP] = Point3D{X: 0.53, Y: 0.47}

	h.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.60}
	h.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.50}
	h.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.42}
	h.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.35}

	h.Points[RingMCP] = Point3D{X: 0.45, Y: 0.62}
	h.Points[RingPIP] = Point3D{X: 0.44, Y: 0.53}
	h.Points[RingDIP] = Point3D{X: 0.43, Y: 0.46}
	h.Points[RingTip] = Point3D{X: 0.43, Y: 0.40}

	h.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.65}
	h.Points[PinkyPIP] = Point3D{X: 0.38, Y: 0.58}
	h.Points[PinkyDIP] = Point3D{X: 0.37, Y: 0.53}
	h.Points[PinkyTip] = Point3D{X: 0.36, Y: 0.48}

	return h
}
