package repositories

import "context"

// SpeechSynthesizer speaks one utterance at a time. done is invoked once the
// utterance finishes, fails, or is cancelled.
type SpeechSynthesizer interface {
	Speak(ctx context.Context, text string, done func()) error
	Cancel()
}

// TextToSpeech converts text to a stream of audio chunks
type TextToSpeech interface {
	ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error)
}
