package repositories

import "context"

// SpeechRecognizer is the session's recognizer instance. Only the voice
// activation state machine starts and stops it. Implementations must not
// call back into the session synchronously from Start or Stop.
type SpeechRecognizer interface {
	Start() error
	Stop()
}

// TranscriptSink receives recognizer output
type TranscriptSink interface {
	OnTranscript(text string, final bool)
	OnRecognizerError(code string)
	OnRecognizerEnd()
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// SpeechToText opens server-side streaming recognition sessions
type SpeechToText interface {
	InitTranscribeStreaming(ctx context.Context, config AudioConfig, sink TranscriptSink) (SpeechToTextStreaming, error)
}

// SpeechToTextStreaming is one open streaming recognition session
type SpeechToTextStreaming interface {
	Stream(data []byte) error
	Close() error
}
