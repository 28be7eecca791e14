// Package handinput turns camera hand landmarks into input source events:
// each visible hand is a source, and a thumb/index pinch is a press.
package handinput

import (
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/holovis/internal/detector"
	"github.com/ayusman/holovis/internal/input"
)

// Pinch defaults in hand units (see detector.HandLandmarks.PinchDistance).
const (
	DefaultPinchThreshold = 0.35
	// ReleaseRatio widens the release threshold so a pinch hovering at the
	// boundary does not chatter.
	ReleaseRatio = 1.2
)

type hand struct {
	source  *input.Source
	pressed bool
	seen    bool
}

// Tracker follows hands across frames. It is not safe for concurrent use.
type Tracker struct {
	press   float64
	release float64
	hands   map[string]*hand
	order   []string
}

// NewTracker creates a Tracker pressing below threshold and releasing above
// threshold*ReleaseRatio. A threshold <= 0 uses DefaultPinchThreshold.
func NewTracker(threshold float64) *Tracker {
	if threshold <= 0 {
		threshold = DefaultPinchThreshold
	}
	return &Tracker{
		press:   threshold,
		release: threshold * ReleaseRatio,
		hands:   make(map[string]*hand),
	}
}

// SourceID names the source for a hand: hand-left, hand-right, or
// hand-<n> when handedness is unknown.
func SourceID(h detector.HandLandmarks, index int) string {
	switch strings.ToLower(h.Handedness) {
	case "left":
		return "hand-left"
	case "right":
		return "hand-right"
	default:
		return "hand-" + strconv.Itoa(index)
	}
}

// Update consumes one frame of hands and returns the resulting events in
// order: detections and presses/releases for visible hands, then losses for
// hands no longer seen. A second hand claiming an id already used in the
// frame is ignored.
func (t *Tracker) Update(hands []detector.HandLandmarks, now time.Time) []input.Event {
	var events []input.Event

	for _, h := range t.hands {
		h.seen = false
	}

	for i := range hands {
		id := SourceID(hands[i], i)
		h, ok := t.hands[id]
		if ok && h.seen {
			continue
		}
		if !ok {
			h = &hand{source: input.NewSource(id, input.SourceHand)}
			t.hands[id] = h
			t.order = append(t.order, id)
			events = append(events, input.Event{Type: input.EventDetected, Source: h.source, Time: now})
		}
		h.seen = true

		d := hands[i].PinchDistance()
		switch {
		case !h.pressed && d < t.press:
			h.pressed = true
			events = append(events, input.Event{Type: input.EventDown, Source: h.source, Time: now})
		case h.pressed && d > t.release:
			h.pressed = false
			events = append(events, input.Event{Type: input.EventUp, Source: h.source, Time: now})
		}
	}

	kept := t.order[:0]
	for _, id := range t.order {
		h := t.hands[id]
		if h.seen {
			kept = append(kept, id)
			continue
		}
		delete(t.hands, id)
		events = append(events, input.Event{Type: input.EventLost, Source: h.source, Time: now})
	}
	t.order = kept

	return events
}

// Reset loses every tracked hand.
func (t *Tracker) Reset(now time.Time) []input.Event {
	return t.Update(nil, now)
}

// Tracking returns the number of hands currently tracked.
func (t *Tracker) Tracking() int {
	return len(t.hands)
}

// Pressed reports whether the hand with id is pinching.
func (t *Tracker) Pressed(id string) bool {
	h, ok := t.hands[id]
	return ok && h.pressed
}
