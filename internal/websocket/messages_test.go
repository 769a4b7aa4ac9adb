package websocket

import (
	"fmt"
	"testing"
	"time"

	"github.com/satriahrh/vista/domain/entities"
)

func TestMessageValidator_Validation(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name    string
		message string
		wantErr bool
	}{
		{
			name:    "valid settings",
			message: `{"type":"settings","settings":{"narration_mode":"full","interruption_mode":"off","analysis_mode":"hand_gesture","audio_sensitivity":40,"object_confidence":0.5}}`,
			wantErr: false,
		},
		{
			name:    "settings with unknown narration mode",
			message: `{"type":"settings","settings":{"narration_mode":"loud","interruption_mode":"off","analysis_mode":"hand_gesture","audio_sensitivity":40,"object_confidence":0.5}}`,
			wantErr: true,
		},
		{
			name:    "valid devices",
			message: `{"type":"devices","devices":[{"device_id":"cam","kind":"videoinput","label":"Webcam"}]}`,
			wantErr: false,
		},
		{
			name:    "device with unknown kind",
			message: `{"type":"devices","devices":[{"device_id":"spk","kind":"audiooutput"}]}`,
			wantErr: true,
		},
		{
			name:    "select device without id",
			message: `{"type":"select_device","kind":"audioinput"}`,
			wantErr: true,
		},
		{
			name:    "stream error",
			message: `{"type":"stream_error","kind":"videoinput","message":"NotAllowedError"}`,
			wantErr: false,
		},
		{
			name:    "recognizer error without code",
			message: `{"type":"recognizer_error"}`,
			wantErr: true,
		},
		{
			name:    "frame without data or error",
			message: `{"type":"frame","request_id":"r1"}`,
			wantErr: true,
		},
		{
			name:    "frame error",
			message: `{"type":"frame","request_id":"r1","error":"no camera"}`,
			wantErr: false,
		},
		{
			name:    "empty chat",
			message: `{"type":"chat","text":""}`,
			wantErr: true,
		},
		{
			name:    "summarize without window",
			message: `{"type":"summarize"}`,
			wantErr: true,
		},
		{
			name:    "negative audio level",
			message: `{"type":"audio_level","average":-1}`,
			wantErr: true,
		},
		{
			name:    "detections with wrong shape",
			message: `{"type":"detections","detections":{"class":"cup"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.ValidateMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageValidator_ParsesPayloads(t *testing.T) {
	validator := NewMessageValidator()

	result, err := validator.ValidateMessage([]byte(`{
		"type": "hands",
		"hands": [[{"x": 0.1, "y": 0.2, "z": 0}]]
	}`))
	if err != nil {
		t.Fatalf("ValidateMessage() error = %v", err)
	}
	hands, ok := result.(*HandsMessage)
	if !ok {
		t.Fatalf("Expected *HandsMessage, got %T", result)
	}
	if len(hands.Hands) != 1 || hands.Hands[0][0] != (entities.Landmark{X: 0.1, Y: 0.2}) {
		t.Errorf("unexpected landmarks %+v", hands.Hands)
	}

	result, err = validator.ValidateMessage([]byte(`{"type":"transcript","text":"hey jarvis","final":true}`))
	if err != nil {
		t.Fatalf("ValidateMessage() error = %v", err)
	}
	transcript, ok := result.(*TranscriptMessage)
	if !ok || transcript.Text != "hey jarvis" || !transcript.Final {
		t.Errorf("unexpected transcript %+v", result)
	}

	result, err = validator.ValidateMessage([]byte(`{"type":"audio_scores","scores":[{"className":"Dog","score":0.8}]}`))
	if err != nil {
		t.Fatalf("ValidateMessage() error = %v", err)
	}
	scores := result.(*AudioScoresMessage)
	if len(scores.Scores) != 1 || scores.Scores[0].ClassName != "Dog" {
		t.Errorf("unexpected scores %+v", scores.Scores)
	}
}

func TestMessageValidator_ValidatePing(t *testing.T) {
	validator := NewMessageValidator()

	message := `{
		"type": "ping",
		"data": "test-ping"
	}`

	result, err := validator.ValidateMessage([]byte(message))
	if err != nil {
		t.Errorf("ValidateMessage() error = %v", err)
	}

	pingMsg, ok := result.(*PingMessage)
	if !ok {
		t.Fatalf("Expected *PingMessage, got %T", result)
	}

	if pingMsg.Data != "test-ping" {
		t.Errorf("Expected data 'test-ping', got '%s'", pingMsg.Data)
	}
}

func TestCreateErrorMessage(t *testing.T) {
	errorMsg := CreateErrorMessage(ErrorCodeBusy, "Chat request dropped", "task slot busy")

	if errorMsg.Type != MessageTypeError {
		t.Errorf("Expected type %s, got %s", MessageTypeError, errorMsg.Type)
	}
	if errorMsg.Code != ErrorCodeBusy {
		t.Errorf("Expected code %s, got %s", ErrorCodeBusy, errorMsg.Code)
	}
	if errorMsg.Details != "task slot busy" {
		t.Errorf("Expected details, got %s", errorMsg.Details)
	}

	timestamp, err := time.Parse(time.RFC3339, errorMsg.Timestamp)
	if err != nil {
		t.Errorf("Invalid timestamp format: %v", err)
	}
	if time.Since(timestamp) > time.Second {
		t.Errorf("Timestamp is not recent: %s", errorMsg.Timestamp)
	}
}

func TestMessageValidator_InvalidJSON(t *testing.T) {
	validator := NewMessageValidator()

	invalidMessages := []string{
		`{invalid json}`,
		`{"type": "chat", "text":}`,
		``,
		`null`,
		`{"type": }`,
	}

	for i, msg := range invalidMessages {
		t.Run(fmt.Sprintf("invalid_json_%d", i), func(t *testing.T) {
			_, err := validator.ValidateMessage([]byte(msg))
			if err == nil {
				t.Errorf("Expected error for invalid JSON, got nil")
			}
		})
	}
}

func TestMessageValidator_UnsupportedMessageType(t *testing.T) {
	validator := NewMessageValidator()

	// outbound types are not accepted from consoles
	for _, msgType := range []string{"unsupported_type", "speak", "snapshot"} {
		_, err := validator.ValidateMessage([]byte(fmt.Sprintf(`{"type": %q}`, msgType)))
		if err == nil {
			t.Errorf("Expected error for message type %s, got nil", msgType)
		}
	}
}

func BenchmarkMessageValidation(b *testing.B) {
	validator := NewMessageValidator()

	detections := []byte(`{
		"type": "detections",
		"detections": [
			{"class": "laptop", "score": 0.92, "bbox": [10, 20, 200, 120]},
			{"class": "cup", "score": 0.71, "bbox": [220, 40, 60, 80]}
		]
	}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := validator.ValidateMessage(detections); err != nil {
			b.Errorf("Validation failed: %v", err)
		}
	}
}
