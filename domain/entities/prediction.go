package entities

import "time"

// PredictionSource names the on-device model that produced a prediction
type PredictionSource string

const (
	PredictionSourceObject  PredictionSource = "object"
	PredictionSourceGesture PredictionSource = "gesture"
	PredictionSourceAudio   PredictionSource = "audio"
)

// Prediction is one labeled output of a perception model
type Prediction struct {
	Source PredictionSource `json:"source"`
	Label  string           `json:"label"`
	Score  float64          `json:"score"`
	BBox   []float64        `json:"bbox,omitempty"`
	At     time.Time        `json:"at"`
}

// Detection is a raw object detector result (class, score, bbox)
type Detection struct {
	Class string    `json:"class"`
	Score float64   `json:"score"`
	BBox  []float64 `json:"bbox"`
}

// Landmark is a normalized hand landmark
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// AudioScore is a raw audio classifier result
type AudioScore struct {
	ClassName string  `json:"className"`
	Score     float64 `json:"score"`
}
