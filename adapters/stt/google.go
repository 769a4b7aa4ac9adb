package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/domain/repositories"
)

// recognizeStream is the subset of the gRPC streaming client the adapter uses
type recognizeStream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	logger *zap.Logger
	open   func(ctx context.Context) (recognizeStream, io.Closer, error)
}

// Ensure GoogleSpeechToText implements the SpeechToText interface
var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates a Google Cloud Speech adapter. Credentials
// come from the environment (GOOGLE_APPLICATION_CREDENTIALS).
func NewGoogleSpeechToText(logger *zap.Logger) *GoogleSpeechToText {
	return &GoogleSpeechToText{
		logger: logger,
		open: func(ctx context.Context) (recognizeStream, io.Closer, error) {
			client, err := speech.NewClient(ctx)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create speech client: %w", err)
			}
			stream, err := client.StreamingRecognize(ctx)
			if err != nil {
				client.Close()
				return nil, nil, fmt.Errorf("failed to create streaming recognize: %w", err)
			}
			return stream, client, nil
		},
	}
}

func (g *GoogleSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig, sink repositories.TranscriptSink) (repositories.SpeechToTextStreaming, error) {
	// Convert encoding string to Google Speech API enum
	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	stream, closer, err := g.open(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	// Send initial configuration
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        encoding,
					SampleRateHertz: int32(config.SampleRate),
					LanguageCode:    config.Language,
				},
				InterimResults:  true,
				SingleUtterance: false,
			},
		},
	}); err != nil {
		stream.CloseSend()
		closer.Close()
		cancel()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	s := &GoogleSpeechToTextStream{
		logger: g.logger,
		stream: stream,
		closer: closer,
		cancel: cancel,
		sink:   sink,
		done:   make(chan struct{}),
	}
	go s.receiveResults(ctx)

	return s, nil
}

// GoogleSpeechToTextStream is one open streaming recognition session
type GoogleSpeechToTextStream struct {
	logger *zap.Logger
	stream recognizeStream
	closer io.Closer
	cancel context.CancelFunc
	sink   repositories.TranscriptSink

	sendMu    sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func (g *GoogleSpeechToTextStream) Stream(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	g.sendMu.Lock()
	defer g.sendMu.Unlock()

	select {
	case <-g.done:
		return fmt.Errorf("stream closed")
	default:
	}

	if err := g.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

// Close half-closes the stream and waits for the receiver to drain
func (g *GoogleSpeechToTextStream) Close() error {
	var err error
	g.closeOnce.Do(func() {
		g.sendMu.Lock()
		err = g.stream.CloseSend()
		g.sendMu.Unlock()
		<-g.done
		g.cancel()
		if g.closer != nil {
			g.closer.Close()
		}
	})
	return err
}

func (g *GoogleSpeechToTextStream) receiveResults(ctx context.Context) {
	defer close(g.done)

	for {
		resp, err := g.stream.Recv()
		if err == io.EOF {
			g.sink.OnRecognizerEnd()
			return
		}
		if err != nil {
			code := recognizerErrorCode(ctx, err)
			if code == "" {
				g.sink.OnRecognizerEnd()
				return
			}
			g.logger.Warn("Streaming recognition failed", zap.String("code", code), zap.Error(err))
			g.sink.OnRecognizerError(code)
			g.sink.OnRecognizerEnd()
			return
		}

		for _, result := range resp.GetResults() {
			if len(result.GetAlternatives()) == 0 {
				continue
			}
			// Take the best alternative
			transcript := result.GetAlternatives()[0].GetTranscript()
			if transcript != "" {
				g.sink.OnTranscript(transcript, result.GetIsFinal())
			}
		}
	}
}

// recognizerErrorCode maps gRPC failures to Web Speech style error codes.
// An empty code means the stream ended normally.
func recognizerErrorCode(ctx context.Context, err error) string {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return entities.RecognizerErrorAborted
	}

	switch status.Code(err) {
	case codes.Canceled:
		return entities.RecognizerErrorAborted
	case codes.OutOfRange:
		// stream duration limit reached
		return ""
	case codes.PermissionDenied, codes.Unauthenticated:
		return entities.RecognizerErrorDenied
	default:
		return entities.RecognizerErrorNetwork
	}
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
