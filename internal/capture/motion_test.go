package capture

import (
	"testing"

	"gocv.io/x/gocv"
)

func TestMotionDetector_IdenticalFrames(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	frame1 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame1.Close()
	frame2 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame2.Close()

	detected, changed := md.Detect(&frame1)
	if detected || changed != 0 {
		t.Errorf("first frame should only prime: detected=%v changed=%f", detected, changed)
	}

	detected, changed = md.Detect(&frame2)
	if detected {
		t.Errorf("identical frames should not detect motion, changed = %f", changed)
	}
}

func TestMotionDetector_BlackToWhite(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	black := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer black.Close()
	white := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer white.Close()
	white.SetTo(gocv.NewScalar(255, 255, 255, 0))

	md.Detect(&black)
	detected, changed := md.Detect(&white)
	if !detected {
		t.Errorf("black to white should detect motion, changed = %f", changed)
	}
	if changed < 50.0 {
		t.Errorf("changed = %f, expected > 50%% for black to white", changed)
	}
}

func TestMotionDetector_ResetPrimesAgain(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	black := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer black.Close()
	white := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer white.Close()
	white.SetTo(gocv.NewScalar(255, 255, 255, 0))

	md.Detect(&black)
	md.Reset()

	if detected, _ := md.Detect(&white); detected {
		t.Error("first frame after Reset should not detect motion")
	}
}

func TestMotionDetector_NilAndEmpty(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	if detected, _ := md.Detect(nil); detected {
		t.Error("nil frame should not detect motion")
	}
	empty := gocv.NewMat()
	defer empty.Close()
	if detected, _ := md.Detect(&empty); detected {
		t.Error("empty frame should not detect motion")
	}
	if md.Threshold() != 1.0 {
		t.Errorf("Threshold() = %f, want 1.0", md.Threshold())
	}
}

func TestMotionDetector_CloseMultiple(t *testing.T) {
	md := NewMotionDetector(1.0)
	md.Close()
	md.Close()
}
