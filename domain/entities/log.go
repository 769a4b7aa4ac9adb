package entities

import "time"

// LogType classifies an entry in the session event log
type LogType string

const (
	LogTypeAnalysis     LogType = "analysis"
	LogTypeAudio        LogType = "audio"
	LogTypeSystem       LogType = "system"
	LogTypeError        LogType = "error"
	LogTypeGesture      LogType = "gesture"
	LogTypeInterruption LogType = "interruption"
	LogTypeSummary      LogType = "summary"
)

// LogEntry is an immutable record of a notable event in a console session
type LogEntry struct {
	ID        int64        `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Type      LogType      `json:"type"`
	Message   string       `json:"message"`
	Mode      AnalysisMode `json:"mode,omitempty"`
}

// IsAlert reports whether the entry belongs to the system/error class that
// is spoken in alerts-only narration.
func (e LogEntry) IsAlert() bool {
	return e.Type == LogTypeSystem || e.Type == LogTypeError
}
