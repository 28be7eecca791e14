package detector

import (
	"errors"

	"gocv.io/x/gocv"
)

// ErrServiceNotFound is returned when the landmark service script is missing.
var ErrServiceNotFound = errors.New("mediapipe_service.py not found")

// Detector finds hand landmarks in camera frames.
type Detector interface {
	// Detect returns the hands visible in frame; none is an empty slice.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// MinConfidence drops hands scored below it (0.0-1.0).
	MinConfidence float64

	// ScriptPath overrides the landmark service lookup.
	ScriptPath string

	// DataDir is searched for scripts/ and venv/ after the working
	// directory and the executable's directory.
	DataDir string
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:      2,
		MinConfidence: 0.5,
	}
}
