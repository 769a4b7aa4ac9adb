package tts

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/vista/domain/repositories"
)

// AudioSink receives synthesized audio for one utterance. EndAudio is called
// once after the last chunk, including when the utterance was cancelled.
type AudioSink interface {
	WriteAudio(utterance uint64, chunk []byte) error
	EndAudio(utterance uint64)
}

// StreamingSynthesizer implements SpeechSynthesizer on top of a server-side
// TextToSpeech, streaming audio chunks to a sink. Starting an utterance
// cancels the previous one.
type StreamingSynthesizer struct {
	tts    repositories.TextToSpeech
	sink   AudioSink
	logger *zap.Logger

	mu        sync.Mutex
	utterance uint64
	cancel    context.CancelFunc
}

// Ensure StreamingSynthesizer implements the SpeechSynthesizer interface
var _ repositories.SpeechSynthesizer = (*StreamingSynthesizer)(nil)

// NewStreamingSynthesizer creates a synthesizer writing to sink
func NewStreamingSynthesizer(tts repositories.TextToSpeech, sink AudioSink, logger *zap.Logger) *StreamingSynthesizer {
	return &StreamingSynthesizer{
		tts:    tts,
		sink:   sink,
		logger: logger,
	}
}

// Speak starts streaming text. done runs once when playback data ends,
// fails or is cancelled.
func (s *StreamingSynthesizer) Speak(ctx context.Context, text string, done func()) error {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.utterance++
	utterance := s.utterance
	s.cancel = cancel
	s.mu.Unlock()

	audio, err := s.tts.ConvertTextToSpeech(ctx, text)
	if err != nil {
		cancel()
		s.clear(utterance)
		return err
	}

	go func() {
		defer done()
		defer s.clear(utterance)
		defer s.sink.EndAudio(utterance)

		for chunk := range audio {
			if err := s.sink.WriteAudio(utterance, chunk); err != nil {
				s.logger.Warn("Failed to deliver narration audio", zap.Error(err))
				cancel()
				// drain so the producer can exit
				for range audio {
				}
				return
			}
		}
	}()

	return nil
}

// Cancel stops the current utterance
func (s *StreamingSynthesizer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *StreamingSynthesizer) clear(utterance uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.utterance == utterance && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
