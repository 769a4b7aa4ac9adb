package entities

// DeviceKind is the kind of a media input device
type DeviceKind string

const (
	DeviceKindVideoInput DeviceKind = "videoinput"
	DeviceKindAudioInput DeviceKind = "audioinput"
)

// MediaDevice is a camera or microphone enumerated by the console
type MediaDevice struct {
	DeviceID string     `json:"device_id"`
	Kind     DeviceKind `json:"kind"`
	Label    string     `json:"label"`
}
