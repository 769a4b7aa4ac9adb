package perception

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/satriahrh/vista/domain/entities"
)

const defaultAudioDebounce = 3 * time.Second

// AudioAdapter reports the top audio class, debouncing repeats
type AudioAdapter struct {
	events   EventLogger
	sink     Sink
	clock    clock.Clock
	debounce time.Duration

	mu       sync.RWMutex
	last     string
	lastAt   time.Time
	hasLabel bool
}

// NewAudioAdapter creates an audio classification adapter
func NewAudioAdapter(events EventLogger, sink Sink, clk clock.Clock) *AudioAdapter {
	return &AudioAdapter{
		events:   events,
		sink:     orNop(sink),
		clock:    clk,
		debounce: defaultAudioDebounce,
	}
}

// Ingest processes one classification round. The same class is reported
// at most once per debounce period.
func (a *AudioAdapter) Ingest(scores []entities.AudioScore) {
	if len(scores) == 0 {
		return
	}

	top := scores[0]
	for _, s := range scores[1:] {
		if s.Score > top.Score {
			top = s
		}
	}
	if top.ClassName == "" {
		return
	}

	now := a.clock.Now()

	a.mu.Lock()
	if a.hasLabel && top.ClassName == a.last && now.Sub(a.lastAt) <= a.debounce {
		a.mu.Unlock()
		return
	}
	a.last = top.ClassName
	a.lastAt = now
	a.hasLabel = true
	a.mu.Unlock()

	a.sink.OnPrediction(entities.Prediction{
		Source: entities.PredictionSourceAudio,
		Label:  top.ClassName,
		Score:  top.Score,
		At:     now,
	})
	a.events.LogMode(entities.LogTypeAudio, "", top.ClassName)
}

// Latest implements contextbuilder.AudioLabels
func (a *AudioAdapter) Latest() (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last, a.hasLabel
}

// Reset forgets the latest label
func (a *AudioAdapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last = ""
	a.hasLabel = false
}
