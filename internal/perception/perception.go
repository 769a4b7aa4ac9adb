// Package perception adapts raw on-device model output into predictions
// and log entries.
package perception

import (
	"github.com/satriahrh/vista/domain/entities"
)

// EventLogger records log entries tagged with the producing analysis mode
type EventLogger interface {
	LogMode(logType entities.LogType, mode entities.AnalysisMode, message string) entities.LogEntry
}

// Sink receives every prediction an adapter emits
type Sink interface {
	OnPrediction(p entities.Prediction)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(p entities.Prediction)

func (f SinkFunc) OnPrediction(p entities.Prediction) { f(p) }

type nopSink struct{}

func (nopSink) OnPrediction(entities.Prediction) {}

func orNop(sink Sink) Sink {
	if sink == nil {
		return nopSink{}
	}
	return sink
}
