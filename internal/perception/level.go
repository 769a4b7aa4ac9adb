package perception

import (
	"fmt"
	"sync"

	"github.com/satriahrh/vista/domain/entities"
)

const (
	silenceLevel         = 5
	sustainedNoiseFrames = 10 // about 2s of 200ms samples
	silenceFrames        = 25 // about 5s of 200ms samples
)

// LevelMonitor detects impulse sounds, sustained noise and silence from
// average microphone levels sampled every ~200ms. Levels are 0-255
// frequency-bin averages.
type LevelMonitor struct {
	events EventLogger

	mu          sync.Mutex
	sensitivity int
	silence     int
	sound       int
}

// NewLevelMonitor creates a monitor with sensitivity in 0-100
func NewLevelMonitor(sensitivity int, events EventLogger) *LevelMonitor {
	return &LevelMonitor{events: events, sensitivity: sensitivity}
}

// SetSensitivity changes the sensitivity, 0-100
func (m *LevelMonitor) SetSensitivity(sensitivity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sensitivity = sensitivity
}

// Ingest processes one averaged level sample
func (m *LevelMonitor) Ingest(average float64) {
	m.mu.Lock()
	sensitivity := float64(m.sensitivity)
	sustainedThreshold := sensitivity / 100 * 50
	impulseThreshold := sensitivity/100*100 + 30

	var messages []string
	switch {
	case average > impulseThreshold:
		messages = append(messages, fmt.Sprintf("Sudden impulse sound detected (level: %.2f).", average))
		m.silence = 0
		m.sound = 0
	case average > sustainedThreshold:
		m.sound++
		m.silence = 0
		if m.sound == sustainedNoiseFrames {
			messages = append(messages, fmt.Sprintf("Sustained background noise detected (level: %.2f).", average))
		}
	case average < silenceLevel:
		m.silence++
		if m.sound > sustainedNoiseFrames {
			messages = append(messages, "Sustained background noise ended.")
		}
		m.sound = 0
		if m.silence == silenceFrames {
			messages = append(messages, "Period of silence detected.")
		}
	default:
		if m.silence > silenceFrames {
			messages = append(messages, "Silence ended.")
		}
		if m.sound > sustainedNoiseFrames {
			messages = append(messages, "Sustained background noise ended.")
		}
		m.silence = 0
		m.sound = 0
	}
	m.mu.Unlock()

	for _, message := range messages {
		m.events.LogMode(entities.LogTypeAudio, "", message)
	}
}

// Reset clears the counters
func (m *LevelMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.silence = 0
	m.sound = 0
}
