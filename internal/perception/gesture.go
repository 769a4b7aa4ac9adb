package perception

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/satriahrh/vista/domain/entities"
)

const (
	defaultGestureHold     = time.Second
	defaultGestureCooldown = 2 * time.Second
	handLandmarkCount      = 21
)

// Gesture is a recognized static hand pose
type Gesture string

const (
	GestureNone Gesture = ""
	GestureFist Gesture = "fist"
	GestureOpen Gesture = "open"
)

// GestureActions are triggered by held gestures
type GestureActions interface {
	ToggleSystemActive()
	CycleAnalysisMode()
}

// GestureAdapter turns per-frame hand landmarks into held-gesture commands.
// A gesture held past the hold time fires once, then must be held through
// the cooldown before it can fire again.
type GestureAdapter struct {
	events   EventLogger
	sink     Sink
	actions  GestureActions
	clock    clock.Clock
	hold     time.Duration
	cooldown time.Duration

	mu       sync.Mutex
	last     Gesture
	held     time.Duration
	lastSeen time.Time
}

// NewGestureAdapter creates a gesture adapter
func NewGestureAdapter(actions GestureActions, events EventLogger, sink Sink, clk clock.Clock) *GestureAdapter {
	return &GestureAdapter{
		events:   events,
		sink:     orNop(sink),
		actions:  actions,
		clock:    clk,
		hold:     defaultGestureHold,
		cooldown: defaultGestureCooldown,
	}
}

// Ingest processes the hands seen in one frame
func (a *GestureAdapter) Ingest(hands [][]entities.Landmark) {
	now := a.clock.Now()

	a.mu.Lock()
	if len(hands) == 0 {
		a.last = GestureNone
		a.held = 0
		a.lastSeen = now
		a.mu.Unlock()
		return
	}

	var fired Gesture
	if len(hands) == 1 {
		current := ClassifyHand(hands[0])
		if current != GestureNone && current == a.last {
			a.held += now.Sub(a.lastSeen)
		} else {
			a.last = current
			a.held = 0
		}

		if a.held > a.hold {
			fired = a.last
			a.held = -a.cooldown
		}
	}
	a.lastSeen = now
	a.mu.Unlock()

	if fired == GestureNone {
		return
	}

	a.sink.OnPrediction(entities.Prediction{
		Source: entities.PredictionSourceGesture,
		Label:  string(fired),
		Score:  1,
		At:     now,
	})

	switch fired {
	case GestureFist:
		a.events.LogMode(entities.LogTypeGesture, entities.AnalysisModeHandGesture, "Fist gesture held: toggling system.")
		a.actions.ToggleSystemActive()
	case GestureOpen:
		a.events.LogMode(entities.LogTypeGesture, entities.AnalysisModeHandGesture, "Open hand gesture held: cycling analysis mode.")
		a.actions.CycleAnalysisMode()
	}
}

// ClassifyHand recognizes a fist or open hand from 21 normalized landmarks
func ClassifyHand(landmarks []entities.Landmark) Gesture {
	if len(landmarks) < handLandmarkCount {
		return GestureNone
	}

	wrist := landmarks[0]
	thumbTip := landmarks[4]
	indexTip := landmarks[8]
	middleTip := landmarks[12]
	ringTip := landmarks[16]
	pinkyTip := landmarks[20]

	thumbToIndex := dist(thumbTip, indexTip)
	indexReach := dist(wrist, indexTip)
	middleReach := dist(middleTip, wrist)
	ringReach := dist(ringTip, wrist)
	pinkyReach := dist(pinkyTip, wrist)

	isFist := thumbToIndex < indexReach*0.3 &&
		middleReach < indexReach &&
		ringReach < indexReach &&
		pinkyReach < indexReach
	if isFist {
		return GestureFist
	}

	isOpen := thumbToIndex > indexReach*0.5 &&
		middleReach > indexReach*0.9 &&
		ringReach > indexReach*0.9 &&
		pinkyReach > indexReach*0.9
	if isOpen {
		return GestureOpen
	}

	return GestureNone
}

func dist(a, b entities.Landmark) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
