package stt

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/vista/domain/repositories"
)

// MockSpeechToText emits scripted transcripts as audio accumulates, so the
// server-side recognition path can run without cloud credentials
type MockSpeechToText struct {
	logger     *zap.Logger
	phrases    []string
	chunkBytes int
}

// NewMockSpeechToText creates a new mock speech-to-text service. One phrase
// is emitted as a final transcript per chunkBytes of audio received.
func NewMockSpeechToText(logger *zap.Logger, chunkBytes int, phrases ...string) *MockSpeechToText {
	if len(phrases) == 0 {
		phrases = []string{"hey jarvis what do you see"}
	}
	if chunkBytes <= 0 {
		chunkBytes = 32000 // one second of 16 kHz LINEAR16
	}
	return &MockSpeechToText{
		logger:     logger,
		phrases:    phrases,
		chunkBytes: chunkBytes,
	}
}

// InitTranscribeStreaming creates a new mock streaming session
func (s *MockSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig, sink repositories.TranscriptSink) (repositories.SpeechToTextStreaming, error) {
	s.logger.Info("Initializing mock streaming transcription",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))

	return &MockSpeechToTextStream{
		logger:     s.logger,
		phrases:    s.phrases,
		chunkBytes: s.chunkBytes,
		sink:       sink,
	}, nil
}

// MockSpeechToTextStream is a mock implementation of streaming speech recognition
type MockSpeechToTextStream struct {
	logger     *zap.Logger
	phrases    []string
	chunkBytes int
	sink       repositories.TranscriptSink

	mu       sync.Mutex
	buffered int
	next     int
	closed   bool
}

// Stream implements mock streaming audio processing
func (m *MockSpeechToTextStream) Stream(data []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.buffered += len(data)
	var emit []string
	for m.buffered >= m.chunkBytes {
		m.buffered -= m.chunkBytes
		emit = append(emit, m.phrases[m.next%len(m.phrases)])
		m.next++
	}
	m.mu.Unlock()

	for _, phrase := range emit {
		m.logger.Debug("Mock transcript", zap.String("transcript", phrase))
		m.sink.OnTranscript(phrase, true)
	}
	return nil
}

// Close ends the mock stream
func (m *MockSpeechToTextStream) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.sink.OnRecognizerEnd()
	return nil
}
