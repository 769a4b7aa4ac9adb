// Package contextbuilder assembles the VistaContext snapshot sent with
// every reasoning request.
package contextbuilder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/domain/repositories"
)

const (
	defaultCaptureTimeout = 5 * time.Second
	defaultVisionTimeout  = 20 * time.Second

	// FallbackCaptureFailed replaces the scene when no frame could be captured
	FallbackCaptureFailed = "Camera frame unavailable."
	// FallbackVisionFailed replaces the scene when analysis failed
	FallbackVisionFailed = "Scene analysis unavailable."
	// QuietAudio is reported when no audio event is current
	QuietAudio = "quiet"
)

var (
	// ErrCaptureFailed marks a frame capture failure
	ErrCaptureFailed = errors.New("frame capture failed")
	// ErrVisionFailed marks a vision analysis failure
	ErrVisionFailed = errors.New("vision analysis failed")
)

// ObjectLabels exposes the latest object detection labels in detection order
type ObjectLabels interface {
	Labels() []string
}

// AudioLabels exposes the latest audio classification
type AudioLabels interface {
	Latest() (string, bool)
}

// Config holds the builder timeouts
type Config struct {
	CaptureTimeout time.Duration
	VisionTimeout  time.Duration
}

// DefaultConfig returns the default timeouts
func DefaultConfig() Config {
	return Config{
		CaptureTimeout: defaultCaptureTimeout,
		VisionTimeout:  defaultVisionTimeout,
	}
}

// ValidateConfig validates the Config
func ValidateConfig(config Config) error {
	if config.CaptureTimeout <= 0 || config.VisionTimeout <= 0 {
		return fmt.Errorf("capture and vision timeouts must be positive")
	}
	return nil
}

// Builder is safe for concurrent use
type Builder struct {
	config   Config
	frames   repositories.FrameSource
	vision   repositories.VisionAnalyzer
	registry repositories.SmartHomeRegistry
	objects  ObjectLabels
	audio    AudioLabels
	logger   *zap.Logger
}

// NewBuilder creates a context builder
func NewBuilder(
	config Config,
	frames repositories.FrameSource,
	vision repositories.VisionAnalyzer,
	registry repositories.SmartHomeRegistry,
	objects ObjectLabels,
	audio AudioLabels,
	logger *zap.Logger,
) *Builder {
	if config.CaptureTimeout <= 0 {
		config.CaptureTimeout = defaultCaptureTimeout
	}
	if config.VisionTimeout <= 0 {
		config.VisionTimeout = defaultVisionTimeout
	}
	return &Builder{
		config:   config,
		frames:   frames,
		vision:   vision,
		registry: registry,
		objects:  objects,
		audio:    audio,
		logger:   logger,
	}
}

// Describe captures one frame and analyzes it. Errors wrap
// ErrCaptureFailed or ErrVisionFailed.
func (b *Builder) Describe(ctx context.Context) (entities.VisionResult, error) {
	captureCtx, cancel := context.WithTimeout(ctx, b.config.CaptureTimeout)
	frame, err := b.frames.CaptureFrame(captureCtx)
	cancel()
	if err == nil && len(frame) == 0 {
		err = errors.New("empty frame")
	}
	if err != nil {
		return entities.VisionResult{}, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	visionCtx, cancel := context.WithTimeout(ctx, b.config.VisionTimeout)
	defer cancel()
	result, err := b.vision.AnalyzeFrame(visionCtx, frame)
	if err != nil {
		return entities.VisionResult{}, fmt.Errorf("%w: %v", ErrVisionFailed, err)
	}
	if result.VisibleText == nil {
		result.VisibleText = []entities.VisibleText{}
	}
	return result, nil
}

// Build never fails: every failure degrades to placeholder text
func (b *Builder) Build(ctx context.Context) entities.VistaContext {
	vctx := entities.VistaContext{
		VisibleText:    []entities.VisibleText{},
		EntitiesInView: b.entitiesInView(ctx),
		AudioContext:   b.audioContext(),
	}

	result, err := b.Describe(ctx)
	switch {
	case errors.Is(err, ErrCaptureFailed):
		b.logger.Warn("Building context without a frame", zap.Error(err))
		vctx.SceneDescription = FallbackCaptureFailed
	case err != nil:
		b.logger.Warn("Building context without scene analysis", zap.Error(err))
		vctx.SceneDescription = FallbackVisionFailed
	default:
		vctx.SceneDescription = result.SceneDescription
		vctx.VisibleText = result.VisibleText
	}

	return vctx
}

// entitiesInView maps detected labels to smart-home entities. The first
// match in detection order is focused; duplicates collapse.
func (b *Builder) entitiesInView(ctx context.Context) []entities.EntityInView {
	inView := []entities.EntityInView{}
	if b.objects == nil || b.registry == nil {
		return inView
	}

	seen := make(map[string]bool)
	for _, label := range b.objects.Labels() {
		entity, ok := b.registry.LookupByObjectClass(ctx, label)
		if !ok || seen[entity.ID] {
			continue
		}
		seen[entity.ID] = true
		inView = append(inView, entities.EntityInView{
			ID:        entity.ID,
			Name:      entity.Name,
			Type:      entity.Type,
			State:     entity.State,
			IsFocused: len(inView) == 0,
		})
	}
	return inView
}

func (b *Builder) audioContext() string {
	if b.audio == nil {
		return QuietAudio
	}
	label, ok := b.audio.Latest()
	if !ok || label == "" || label == "Silence" {
		return QuietAudio
	}
	return label
}
