package entities

import "errors"

// NarrationMode controls which messages are spoken
type NarrationMode string

const (
	NarrationOff        NarrationMode = "off"
	NarrationAlertsOnly NarrationMode = "alerts_only"
	NarrationFull       NarrationMode = "full"
)

// NarrationLevel tags an outbound message for the narration policy
type NarrationLevel string

const (
	NarrationLevelAlert NarrationLevel = "alert"
	NarrationLevelFull  NarrationLevel = "full"
)

// InterruptionMode controls proactive insights
type InterruptionMode string

const (
	InterruptionOff       InterruptionMode = "off"
	InterruptionProactive InterruptionMode = "proactive"
)

// AnalysisMode selects which on-device model the console runs
type AnalysisMode string

const (
	AnalysisModeObjectDetection AnalysisMode = "object_detection"
	AnalysisModeHandGesture     AnalysisMode = "hand_gesture"
	AnalysisModeContextualQA    AnalysisMode = "contextual_qa"
)

// AnalysisModes lists the modes in cycling order
var AnalysisModes = []AnalysisMode{
	AnalysisModeObjectDetection,
	AnalysisModeHandGesture,
	AnalysisModeContextualQA,
}

// Next returns the mode after m in cycling order
func (m AnalysisMode) Next() AnalysisMode {
	for i, mode := range AnalysisModes {
		if mode == m {
			return AnalysisModes[(i+1)%len(AnalysisModes)]
		}
	}
	return AnalysisModes[0]
}

// Settings is the in-memory configuration of one console session
type Settings struct {
	SystemActive     bool             `json:"system_active"`
	NarrationMode    NarrationMode    `json:"narration_mode"`
	InterruptionMode InterruptionMode `json:"interruption_mode"`
	VoiceActivation  bool             `json:"voice_activation"`
	WakeWordMode     bool             `json:"wake_word_mode"`
	AnalysisMode     AnalysisMode     `json:"analysis_mode"`
	AudioSensitivity int              `json:"audio_sensitivity"`
	ObjectConfidence float64          `json:"object_confidence"`
}

// DefaultSettings returns the settings a new console starts with
func DefaultSettings() Settings {
	return Settings{
		SystemActive:     false,
		NarrationMode:    NarrationAlertsOnly,
		InterruptionMode: InterruptionOff,
		VoiceActivation:  true,
		WakeWordMode:     true,
		AnalysisMode:     AnalysisModeObjectDetection,
		AudioSensitivity: 20,
		ObjectConfidence: 0.6,
	}
}

// Validate checks every field holds a known value
func (s Settings) Validate() error {
	switch s.NarrationMode {
	case NarrationOff, NarrationAlertsOnly, NarrationFull:
	default:
		return errors.New("invalid narration mode")
	}
	switch s.InterruptionMode {
	case InterruptionOff, InterruptionProactive:
	default:
		return errors.New("invalid interruption mode")
	}
	switch s.AnalysisMode {
	case AnalysisModeObjectDetection, AnalysisModeHandGesture, AnalysisModeContextualQA:
	default:
		return errors.New("invalid analysis mode")
	}
	if s.AudioSensitivity < 0 || s.AudioSensitivity > 100 {
		return errors.New("audio sensitivity must be between 0 and 100")
	}
	if s.ObjectConfidence < 0 || s.ObjectConfidence > 1 {
		return errors.New("object confidence must be between 0 and 1")
	}
	return nil
}
