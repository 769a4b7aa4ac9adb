package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/domain/repositories"
	"github.com/satriahrh/vista/internal/supervisor"
)

// ErrEmptyCommand is returned for blank commands
var ErrEmptyCommand = errors.New("command is empty")

// ContextSource builds the context attached to every reasoning request
type ContextSource interface {
	Build(ctx context.Context) entities.VistaContext
}

// ActionDispatcher applies reasoner actions to the session
type ActionDispatcher interface {
	Dispatch(ctx context.Context, action entities.Action) error
	Fail(err error)
}

// Transcript is the session journal as seen by the conversation flow
type Transcript interface {
	AppendChat(msg entities.ChatMessage) entities.ChatMessage
	Chat() []entities.ChatMessage
	Log(logType entities.LogType, message string) entities.LogEntry
	Recent(since time.Time, types ...entities.LogType) []entities.LogEntry
}

// ConversationService runs chat turns and log summaries for one session
type ConversationService struct {
	tasks      *supervisor.Manager
	scene      ContextSource
	reasoner   repositories.Reasoner
	dispatcher ActionDispatcher
	transcript Transcript
	clock      clock.Clock
	logger     *zap.Logger
}

// NewConversationService creates a new conversation service
func NewConversationService(
	tasks *supervisor.Manager,
	scene ContextSource,
	reasoner repositories.Reasoner,
	dispatcher ActionDispatcher,
	transcript Transcript,
	clk clock.Clock,
	logger *zap.Logger,
) *ConversationService {
	return &ConversationService{
		tasks:      tasks,
		scene:      scene,
		reasoner:   reasoner,
		dispatcher: dispatcher,
		transcript: transcript,
		clock:      clk,
		logger:     logger,
	}
}

// HandleCommand runs one chat turn: record the user turn, build context,
// ask the reasoner and dispatch its action. It returns supervisor.ErrBusy
// without recording anything while another turn is in flight.
func (s *ConversationService) HandleCommand(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyCommand
	}

	return s.tasks.Do(ctx, supervisor.TaskChat, func(ctx context.Context) error {
		start := s.clock.Now()
		history := s.transcript.Chat()
		s.transcript.AppendChat(entities.NewTextMessage(entities.ChatRoleUser, text))

		vctx := s.scene.Build(ctx)

		s.logger.Info("Asking Jarvis",
			zap.String("prompt", text),
			zap.Int("entities_in_view", len(vctx.EntitiesInView)),
			zap.String("audio_context", vctx.AudioContext))

		action, err := s.reasoner.Ask(ctx, text, vctx, history)
		if err != nil {
			s.dispatcher.Fail(err)
			return fmt.Errorf("ask reasoner: %w", err)
		}

		if err := s.dispatcher.Dispatch(ctx, action); err != nil {
			return fmt.Errorf("dispatch %s: %w", action.FunctionName(), err)
		}

		s.logger.Info("Chat turn completed",
			zap.String("function", action.FunctionName()),
			zap.Duration("took", s.clock.Since(start)))
		return nil
	})
}

// Summarize condenses the Analysis, Audio and Gesture entries of the last
// minutes into one Summary entry
func (s *ConversationService) Summarize(ctx context.Context, minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("minutes must be positive, got %d", minutes)
	}

	return s.tasks.Do(ctx, supervisor.TaskSummary, func(ctx context.Context) error {
		since := s.clock.Now().Add(-time.Duration(minutes) * time.Minute)
		recent := s.transcript.Recent(since, entities.LogTypeAnalysis, entities.LogTypeAudio, entities.LogTypeGesture)
		if len(recent) == 0 {
			s.transcript.Log(entities.LogTypeSystem, fmt.Sprintf("No events in the last %d minute(s) to summarize.", minutes))
			return nil
		}

		lines := make([]string, 0, len(recent))
		for _, entry := range recent {
			lines = append(lines, fmt.Sprintf("%s [%s] %s", entry.Timestamp.Format("15:04:05"), entry.Type, entry.Message))
		}

		summary, err := s.reasoner.Summarize(ctx, strings.Join(lines, "\n"))
		if err != nil {
			s.logger.Error("Failed to summarize log", zap.Error(err))
			s.transcript.Log(entities.LogTypeError, "Failed to generate summary.")
			return fmt.Errorf("summarize: %w", err)
		}

		s.transcript.Log(entities.LogTypeSummary, summary)
		return nil
	})
}
