package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/usecase"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Inbound message types, sent by the console
const (
	MessageTypeSettings        MessageType = "settings"
	MessageTypeDevices         MessageType = "devices"
	MessageTypeSelectDevice    MessageType = "select_device"
	MessageTypeStreamError     MessageType = "stream_error"
	MessageTypeTranscript      MessageType = "transcript"
	MessageTypeRecognizerError MessageType = "recognizer_error"
	MessageTypeRecognizerEnd   MessageType = "recognizer_end"
	MessageTypeSpeechEnd       MessageType = "speech_end"
	MessageTypeDetections      MessageType = "detections"
	MessageTypeHands           MessageType = "hands"
	MessageTypeAudioScores     MessageType = "audio_scores"
	MessageTypeAudioLevel      MessageType = "audio_level"
	MessageTypeFrame           MessageType = "frame"
	MessageTypeTriggerCapture  MessageType = "trigger_capture"
	MessageTypeChat            MessageType = "chat"
	MessageTypeClearLog        MessageType = "clear_log"
	MessageTypeSummarize       MessageType = "summarize"
	MessageTypePing            MessageType = "ping"
)

// Outbound message types, sent by the brain
const (
	MessageTypeSnapshot          MessageType = "snapshot"
	MessageTypeLogEntry          MessageType = "log_entry"
	MessageTypeLogCleared        MessageType = "log_cleared"
	MessageTypeChatMessage       MessageType = "chat_message"
	MessageTypeVoiceStatus       MessageType = "voice_status"
	MessageTypeInterimTranscript MessageType = "interim_transcript"
	MessageTypeSettingsChanged   MessageType = "settings_changed"
	MessageTypeRecognizer        MessageType = "recognizer"
	MessageTypeSpeak             MessageType = "speak"
	MessageTypeSpeakCancel       MessageType = "speak_cancel"
	MessageTypeSpeakAudio        MessageType = "speak_audio"
	MessageTypeSpeakAudioEnd     MessageType = "speak_audio_end"
	MessageTypeCaptureFrame      MessageType = "capture_frame"
	MessageTypeOpenStream        MessageType = "open_stream"
	MessageTypeCloseStream       MessageType = "close_stream"
	MessageTypeEntityState       MessageType = "entity_state"
	MessageTypeError             MessageType = "error"
	MessageTypePong              MessageType = "pong"
)

// Error codes carried by error messages
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeRejected       = "rejected"
	ErrorCodeBusy           = "busy"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type" validate:"required"`
	Timestamp string      `json:"timestamp,omitempty"`
	MessageID string      `json:"message_id,omitempty"`
}

// SettingsMessage replaces the session settings
type SettingsMessage struct {
	BaseMessage
	Settings entities.Settings `json:"settings"`
}

// DevicesMessage is a device enumeration result. Error is set when the
// console could not enumerate its devices.
type DevicesMessage struct {
	BaseMessage
	Devices []entities.MediaDevice `json:"devices"`
	Error   string                 `json:"error,omitempty"`
}

// SelectDeviceMessage changes the selected device of a kind
type SelectDeviceMessage struct {
	BaseMessage
	Kind     entities.DeviceKind `json:"kind"`
	DeviceID string              `json:"device_id"`
}

// StreamErrorMessage reports a permission or device failure
type StreamErrorMessage struct {
	BaseMessage
	Kind    entities.DeviceKind `json:"kind"`
	Message string              `json:"message"`
}

// TranscriptMessage carries console recognizer output
type TranscriptMessage struct {
	BaseMessage
	Instance uint64 `json:"instance"`
	Text     string `json:"text"`
	Final    bool   `json:"final"`
}

// RecognizerErrorMessage carries a console recognizer error code
type RecognizerErrorMessage struct {
	BaseMessage
	Instance uint64 `json:"instance"`
	Code     string `json:"code"`
}

// RecognizerEndMessage reports the console recognizer ended on its own
type RecognizerEndMessage struct {
	BaseMessage
	Instance uint64 `json:"instance"`
}

// SpeechEndMessage reports an utterance finished playing
type SpeechEndMessage struct {
	BaseMessage
	Utterance uint64 `json:"utterance"`
}

// DetectionsMessage is one frame of object detector output
type DetectionsMessage struct {
	BaseMessage
	Detections []entities.Detection `json:"detections"`
}

// HandsMessage is one frame of hand landmarks
type HandsMessage struct {
	BaseMessage
	Hands [][]entities.Landmark `json:"hands"`
}

// AudioScoresMessage is one audio classification round
type AudioScoresMessage struct {
	BaseMessage
	Scores []entities.AudioScore `json:"scores"`
}

// AudioLevelMessage is one averaged microphone level sample
type AudioLevelMessage struct {
	BaseMessage
	Average float64 `json:"average"`
}

// FrameMessage answers a capture_frame request
type FrameMessage struct {
	BaseMessage
	RequestID string `json:"request_id"`
	Data      string `json:"data,omitempty"` // base64 JPEG, data URL allowed
	Error     string `json:"error,omitempty"`
}

// TriggerCaptureMessage opens a manual command window
type TriggerCaptureMessage struct {
	BaseMessage
}

// ChatMessage is a typed chat prompt
type ChatMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// ClearLogMessage clears the event log
type ClearLogMessage struct {
	BaseMessage
}

// SummarizeMessage requests a summary of recent events
type SummarizeMessage struct {
	BaseMessage
	Minutes int `json:"minutes"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SnapshotMessage carries the full session state
type SnapshotMessage struct {
	BaseMessage
	Snapshot usecase.Snapshot `json:"snapshot"`
}

// LogEntryMessage carries one new log entry, or the entry left by a clear
type LogEntryMessage struct {
	BaseMessage
	Entry entities.LogEntry `json:"entry"`
}

// ChatTurnMessage carries one new chat message
type ChatTurnMessage struct {
	BaseMessage
	Message entities.ChatMessage `json:"message"`
}

// VoiceStatusMessage carries the voice pipeline status
type VoiceStatusMessage struct {
	BaseMessage
	Status entities.VoiceStatus `json:"status"`
}

// InterimTranscriptMessage carries the command heard so far
type InterimTranscriptMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// SettingsChangedMessage carries the settings after a change
type SettingsChangedMessage struct {
	BaseMessage
	Settings entities.Settings `json:"settings"`
}

// RecognizerMessage starts or stops the console recognizer
type RecognizerMessage struct {
	BaseMessage
	Action   string `json:"action" validate:"oneof=start stop"`
	Instance uint64 `json:"instance"`
}

// SpeakMessage asks the console to speak an utterance
type SpeakMessage struct {
	BaseMessage
	Utterance uint64 `json:"utterance"`
	Text      string `json:"text"`
}

// SpeakAudioMessage announces binary audio frames of an utterance
type SpeakAudioMessage struct {
	BaseMessage
	Utterance   uint64 `json:"utterance"`
	ContentType string `json:"content_type,omitempty"`
}

// CaptureFrameMessage requests one JPEG frame from the active camera
type CaptureFrameMessage struct {
	BaseMessage
	RequestID string `json:"request_id"`
}

// StreamMessage opens or closes a media stream on the console
type StreamMessage struct {
	BaseMessage
	StreamID string              `json:"stream_id"`
	Kind     entities.DeviceKind `json:"kind,omitempty"`
	DeviceID string              `json:"device_id,omitempty"`
}

// EntityStateMessage carries a smart-home entity after a change
type EntityStateMessage struct {
	BaseMessage
	Entity *entities.SmartHomeEntity `json:"entity"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses and validates an incoming message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	var msg interface{}
	var check func() error
	switch base.Type {
	case MessageTypeSettings:
		m := &SettingsMessage{}
		msg, check = m, func() error { return m.Settings.Validate() }
	case MessageTypeDevices:
		m := &DevicesMessage{}
		msg, check = m, func() error { return validateDevices(m.Devices) }
	case MessageTypeSelectDevice:
		m := &SelectDeviceMessage{}
		msg, check = m, func() error {
			if err := validateKind(m.Kind); err != nil {
				return err
			}
			return required("device_id", m.DeviceID)
		}
	case MessageTypeStreamError:
		m := &StreamErrorMessage{}
		msg, check = m, func() error { return validateKind(m.Kind) }
	case MessageTypeTranscript:
		msg = &TranscriptMessage{}
	case MessageTypeRecognizerError:
		m := &RecognizerErrorMessage{}
		msg, check = m, func() error { return required("code", m.Code) }
	case MessageTypeRecognizerEnd:
		msg = &RecognizerEndMessage{}
	case MessageTypeSpeechEnd:
		msg = &SpeechEndMessage{}
	case MessageTypeDetections:
		msg = &DetectionsMessage{}
	case MessageTypeHands:
		msg = &HandsMessage{}
	case MessageTypeAudioScores:
		msg = &AudioScoresMessage{}
	case MessageTypeAudioLevel:
		m := &AudioLevelMessage{}
		msg, check = m, func() error {
			if m.Average < 0 {
				return fmt.Errorf("average must not be negative")
			}
			return nil
		}
	case MessageTypeFrame:
		m := &FrameMessage{}
		msg, check = m, func() error {
			if err := required("request_id", m.RequestID); err != nil {
				return err
			}
			if m.Data == "" && m.Error == "" {
				return fmt.Errorf("frame needs data or error")
			}
			return nil
		}
	case MessageTypeTriggerCapture:
		msg = &TriggerCaptureMessage{}
	case MessageTypeChat:
		m := &ChatMessage{}
		msg, check = m, func() error { return required("text", m.Text) }
	case MessageTypeClearLog:
		msg = &ClearLogMessage{}
	case MessageTypeSummarize:
		m := &SummarizeMessage{}
		msg, check = m, func() error {
			if m.Minutes <= 0 {
				return fmt.Errorf("minutes must be positive")
			}
			return nil
		}
	case MessageTypePing:
		msg = &PingMessage{}
	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}

	if err := json.Unmarshal(messageBytes, msg); err != nil {
		return nil, fmt.Errorf("invalid %s message: %w", base.Type, err)
	}
	if check != nil {
		if err := check(); err != nil {
			return nil, fmt.Errorf("invalid %s message: %w", base.Type, err)
		}
	}
	return msg, nil
}

func required(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

func validateKind(kind entities.DeviceKind) error {
	switch kind {
	case entities.DeviceKindVideoInput, entities.DeviceKindAudioInput:
		return nil
	default:
		return fmt.Errorf("kind must be one of: videoinput, audioinput")
	}
}

func validateDevices(devices []entities.MediaDevice) error {
	for _, d := range devices {
		if err := validateKind(d.Kind); err != nil {
			return err
		}
		if err := required("device_id", d.DeviceID); err != nil {
			return err
		}
	}
	return nil
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{
		Type:      t,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong),
		Data:        data,
	}
}
