package stt

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/vista/domain/repositories"
)

// DefaultAudioConfig is what consoles send over binary websocket frames
var DefaultAudioConfig = repositories.AudioConfig{
	SampleRate: 16000,
	Encoding:   "LINEAR16",
	Language:   "en-US",
}

// StreamingRecognizer adapts a server-side SpeechToText to the session's
// SpeechRecognizer port. Audio is pushed with Feed while started; audio fed
// while stopped is dropped.
type StreamingRecognizer struct {
	stt    repositories.SpeechToText
	config repositories.AudioConfig
	sink   repositories.TranscriptSink
	logger *zap.Logger

	mu         sync.Mutex
	stream     repositories.SpeechToTextStreaming
	generation uint64
}

// Ensure StreamingRecognizer implements the SpeechRecognizer interface
var _ repositories.SpeechRecognizer = (*StreamingRecognizer)(nil)

// NewStreamingRecognizer creates a recognizer that reports to sink
func NewStreamingRecognizer(stt repositories.SpeechToText, config repositories.AudioConfig, sink repositories.TranscriptSink, logger *zap.Logger) *StreamingRecognizer {
	return &StreamingRecognizer{
		stt:    stt,
		config: config,
		sink:   sink,
		logger: logger,
	}
}

// Start opens a recognition stream; it is a no-op while one is open
func (r *StreamingRecognizer) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stream != nil {
		return nil
	}

	r.generation++
	stream, err := r.stt.InitTranscribeStreaming(context.Background(), r.config, &generationSink{
		recognizer: r,
		generation: r.generation,
	})
	if err != nil {
		return fmt.Errorf("failed to start recognizer: %w", err)
	}
	r.stream = stream
	return nil
}

// Stop closes the open stream. Callbacks of the closed stream are dropped.
func (r *StreamingRecognizer) Stop() {
	r.mu.Lock()
	stream := r.stream
	r.stream = nil
	r.generation++
	r.mu.Unlock()

	if stream == nil {
		return
	}
	go func() {
		if err := stream.Close(); err != nil {
			r.logger.Debug("Failed to close recognition stream", zap.Error(err))
		}
	}()
}

// Feed pushes microphone audio to the open stream
func (r *StreamingRecognizer) Feed(data []byte) error {
	r.mu.Lock()
	stream := r.stream
	r.mu.Unlock()

	if stream == nil {
		return nil
	}
	return stream.Stream(data)
}

// Running reports whether a stream is open
func (r *StreamingRecognizer) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stream != nil
}

func (r *StreamingRecognizer) current(generation uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation == generation
}

// ended clears the stream if it is still the current one
func (r *StreamingRecognizer) ended(generation uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != generation {
		return false
	}
	r.stream = nil
	return true
}

type generationSink struct {
	recognizer *StreamingRecognizer
	generation uint64
}

func (s *generationSink) OnTranscript(text string, final bool) {
	if s.recognizer.current(s.generation) {
		s.recognizer.sink.OnTranscript(text, final)
	}
}

func (s *generationSink) OnRecognizerError(code string) {
	if s.recognizer.current(s.generation) {
		s.recognizer.sink.OnRecognizerError(code)
	}
}

func (s *generationSink) OnRecognizerEnd() {
	if s.recognizer.ended(s.generation) {
		s.recognizer.sink.OnRecognizerEnd()
	}
}
