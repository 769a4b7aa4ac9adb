// Package orchestrator runs the periodic cloud-vision and proactive
// interruption polls of a console session.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/domain/repositories"
	"github.com/satriahrh/vista/internal/contextbuilder"
	"github.com/satriahrh/vista/internal/supervisor"
)

const (
	defaultVisionInterval       = 10 * time.Second
	defaultInterruptionInterval = 15 * time.Second

	// CaptureFailedMessage is logged when a poll could not grab a frame
	CaptureFailedMessage = "Frame capture failed."
	// VisionFailedMessage is logged when scene analysis failed
	VisionFailedMessage = "Failed to analyze scene."
)

// Config holds the poll intervals
type Config struct {
	VisionInterval       time.Duration
	InterruptionInterval time.Duration
}

// DefaultConfig returns the default poll intervals
func DefaultConfig() Config {
	return Config{
		VisionInterval:       defaultVisionInterval,
		InterruptionInterval: defaultInterruptionInterval,
	}
}

// ValidateConfig validates the Config
func ValidateConfig(config Config) error {
	if config.VisionInterval <= 0 {
		return fmt.Errorf("vision interval must be positive")
	}
	if config.InterruptionInterval <= 0 {
		return fmt.Errorf("interruption interval must be positive")
	}
	return nil
}

// State is the session state the polls are gated on
type State interface {
	SystemActive() bool
	InterruptionMode() entities.InterruptionMode
	AnalysisMode() entities.AnalysisMode
}

// Scene captures and describes the current view
type Scene interface {
	Describe(ctx context.Context) (entities.VisionResult, error)
	Build(ctx context.Context) entities.VistaContext
}

// EventLogger records log entries
type EventLogger interface {
	Log(logType entities.LogType, message string) entities.LogEntry
	LogMode(logType entities.LogType, mode entities.AnalysisMode, message string) entities.LogEntry
}

// Narrator speaks outbound messages under the narration policy
type Narrator interface {
	Narrate(ctx context.Context, message string, level entities.NarrationLevel)
}

// Loop owns the two poll tickers. Overlapping ticks are dropped by the
// task supervisor, never queued.
type Loop struct {
	config   Config
	clock    clock.Clock
	tasks    *supervisor.Manager
	state    State
	scene    Scene
	reasoner repositories.Reasoner
	events   EventLogger
	narrator Narrator
	logger   *zap.Logger
}

// NewLoop creates an orchestration loop
func NewLoop(
	config Config,
	clk clock.Clock,
	tasks *supervisor.Manager,
	state State,
	scene Scene,
	reasoner repositories.Reasoner,
	events EventLogger,
	narrator Narrator,
	logger *zap.Logger,
) *Loop {
	if config.VisionInterval <= 0 {
		config.VisionInterval = defaultVisionInterval
	}
	if config.InterruptionInterval <= 0 {
		config.InterruptionInterval = defaultInterruptionInterval
	}
	return &Loop{
		config:   config,
		clock:    clk,
		tasks:    tasks,
		state:    state,
		scene:    scene,
		reasoner: reasoner,
		events:   events,
		narrator: narrator,
		logger:   logger,
	}
}

// Run polls until ctx is cancelled
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Orchestration loop started",
		zap.Duration("vision_interval", l.config.VisionInterval),
		zap.Duration("interruption_interval", l.config.InterruptionInterval))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.every(ctx, l.config.VisionInterval, l.VisionTick)
		return nil
	})
	g.Go(func() error {
		l.every(ctx, l.config.InterruptionInterval, l.InterruptionTick)
		return nil
	})
	err := g.Wait()

	l.logger.Info("Orchestration loop stopped")
	return err
}

func (l *Loop) every(ctx context.Context, interval time.Duration, tick func(context.Context) bool) {
	ticker := l.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

// VisionTick starts a vision poll unless the system is paused or a poll is
// still in flight. It reports whether a poll started.
func (l *Loop) VisionTick(ctx context.Context) bool {
	if !l.state.SystemActive() {
		return false
	}
	return l.tasks.Go(ctx, supervisor.TaskVision, l.pollVision)
}

func (l *Loop) pollVision(ctx context.Context) error {
	result, err := l.scene.Describe(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		message := VisionFailedMessage
		if errors.Is(err, contextbuilder.ErrCaptureFailed) {
			message = CaptureFailedMessage
		}
		l.logger.Warn("Vision poll failed", zap.Error(err))
		l.events.Log(entities.LogTypeError, message)
		return err
	}

	if result.SceneDescription == "" {
		return nil
	}
	l.events.LogMode(entities.LogTypeAnalysis, l.state.AnalysisMode(), result.SceneDescription)
	l.narrator.Narrate(ctx, result.SceneDescription, entities.NarrationLevelFull)
	return nil
}

// InterruptionTick starts a proactive insight check unless the system is
// paused, interruptions are off, a chat turn is running or a check is
// still in flight. It reports whether a check started.
func (l *Loop) InterruptionTick(ctx context.Context) bool {
	if !l.state.SystemActive() || l.state.InterruptionMode() == entities.InterruptionOff {
		return false
	}
	if l.tasks.Busy(supervisor.TaskChat) {
		l.logger.Debug("Interruption skipped while a chat turn is running")
		return false
	}
	return l.tasks.Go(ctx, supervisor.TaskInterruption, l.pollInterruption)
}

func (l *Loop) pollInterruption(ctx context.Context) error {
	vctx := l.scene.Build(ctx)

	insight, ok, err := l.reasoner.Interrupt(ctx, vctx)
	if err != nil {
		l.logger.Warn("Interruption check failed", zap.Error(err))
		return err
	}
	if !ok {
		return nil
	}

	// a chat turn may have started while the model was thinking
	if l.tasks.Busy(supervisor.TaskChat) {
		l.logger.Debug("Dropping insight, chat turn in progress", zap.String("insight", insight))
		return nil
	}

	l.events.Log(entities.LogTypeInterruption, insight)
	l.narrator.Narrate(ctx, insight, entities.NarrationLevelFull)
	return nil
}
