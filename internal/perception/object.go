package perception

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/satriahrh/vista/domain/entities"
)

// ObjectAdapter filters object detections by confidence and tracks the
// labels currently in view
type ObjectAdapter struct {
	events EventLogger
	sink   Sink
	clock  clock.Clock

	mu        sync.RWMutex
	threshold float64
	labels    []string
	signature string
}

// NewObjectAdapter creates an adapter with the given confidence threshold
func NewObjectAdapter(threshold float64, events EventLogger, sink Sink, clk clock.Clock) *ObjectAdapter {
	return &ObjectAdapter{
		events:    events,
		sink:      orNop(sink),
		clock:     clk,
		threshold: threshold,
	}
}

// SetThreshold changes the minimum detection score
func (a *ObjectAdapter) SetThreshold(threshold float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.threshold = threshold
}

// Ingest processes one frame of detections. An Analysis entry is logged
// only when the set of labels in view changes.
func (a *ObjectAdapter) Ingest(detections []entities.Detection) {
	now := a.clock.Now()

	a.mu.Lock()
	var kept []entities.Detection
	labels := make([]string, 0, len(detections))
	for _, d := range detections {
		if d.Score < a.threshold || d.Class == "" {
			continue
		}
		kept = append(kept, d)
		labels = append(labels, d.Class)
	}
	a.labels = labels

	signature := labelSignature(labels)
	changed := signature != a.signature
	a.signature = signature
	a.mu.Unlock()

	for _, d := range kept {
		a.sink.OnPrediction(entities.Prediction{
			Source: entities.PredictionSourceObject,
			Label:  d.Class,
			Score:  d.Score,
			BBox:   d.BBox,
			At:     now,
		})
	}

	if changed {
		message := "No objects in view."
		if signature != "" {
			message = fmt.Sprintf("Detected: %s", signature)
		}
		a.events.LogMode(entities.LogTypeAnalysis, entities.AnalysisModeObjectDetection, message)
	}
}

// Labels implements contextbuilder.ObjectLabels
func (a *ObjectAdapter) Labels() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.labels...)
}

// Reset forgets the labels in view
func (a *ObjectAdapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.labels = nil
	a.signature = ""
}

// labelSignature is the sorted, de-duplicated label set
func labelSignature(labels []string) string {
	unique := make(map[string]bool, len(labels))
	var sorted []string
	for _, label := range labels {
		if !unique[label] {
			unique[label] = true
			sorted = append(sorted, label)
		}
	}
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}
