// Package dispatch applies the reasoner's action to the session: smart-home
// state, narration and the chat transcript.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/domain/repositories"
)

const (
	// SongNotImplemented is the fixed reply to recognize_song
	SongNotImplemented = "I'm sorry, sir. Song recognition is not implemented yet."
	// ErrorReply is the chat text shown when a turn fails
	ErrorReply = "Sorry, I encountered an error. Please try again."
)

// Narrator speaks outbound messages under the narration policy
type Narrator interface {
	Narrate(ctx context.Context, message string, level entities.NarrationLevel)
}

// Transcript is the chat and log surface dispatch writes to
type Transcript interface {
	AppendChat(msg entities.ChatMessage) entities.ChatMessage
	Log(logType entities.LogType, message string) entities.LogEntry
}

// EntityListener is told about every smart-home state change
type EntityListener func(entity *entities.SmartHomeEntity)

// Dispatcher handles every Action variant through entities.ActionVisitor
type Dispatcher struct {
	registry   repositories.SmartHomeRegistry
	narrator   Narrator
	transcript Transcript
	logger     *zap.Logger
	onEntity   EntityListener
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(registry repositories.SmartHomeRegistry, narrator Narrator, transcript Transcript, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		narrator:   narrator,
		transcript: transcript,
		logger:     logger,
	}
}

// SetEntityListener registers the entity change listener
func (d *Dispatcher) SetEntityListener(fn EntityListener) {
	d.onEntity = fn
}

// Dispatch applies action. On success exactly one model turn is appended.
// A nil action or a failed variant is surfaced through Fail and returned.
func (d *Dispatcher) Dispatch(ctx context.Context, action entities.Action) error {
	if action == nil {
		d.Fail(entities.ErrUnknownAction)
		return entities.ErrUnknownAction
	}

	v := &visitor{ctx: ctx, d: d}
	if err := action.Accept(v); err != nil {
		d.Fail(err)
		return err
	}

	parts := []entities.ChatPart{{FunctionCall: ptr(entities.ActionToFunctionCall(action))}}
	if v.spoken != "" {
		parts = append(parts, entities.ChatPart{Text: v.spoken})
	}
	d.transcript.AppendChat(entities.ChatMessage{Role: entities.ChatRoleModel, Parts: parts})

	if v.spoken != "" {
		d.narrator.Narrate(ctx, v.spoken, entities.NarrationLevelAlert)
	}

	d.logger.Info("Action dispatched", zap.String("function", action.FunctionName()))
	return nil
}

// Fail records a failed turn as a chat error plus an Error log entry
func (d *Dispatcher) Fail(err error) {
	d.logger.Error("Chat turn failed", zap.Error(err))

	msg := entities.NewTextMessage(entities.ChatRoleModel, ErrorReply)
	msg.IsError = true
	d.transcript.AppendChat(msg)
	d.transcript.Log(entities.LogTypeError, fmt.Sprintf("Jarvis error: %v", err))
}

type visitor struct {
	ctx    context.Context
	d      *Dispatcher
	spoken string
}

// Ensure visitor handles every action variant
var _ entities.ActionVisitor = (*visitor)(nil)

func (v *visitor) VisitAnswerUser(a entities.AnswerUser) error {
	if a.SpokenResponse == "" {
		return errors.New("answer_user without a spoken response")
	}
	v.spoken = a.SpokenResponse
	return nil
}

func (v *visitor) VisitCallHomeAssistant(a entities.CallHomeAssistant) error {
	state, err := a.Service.TargetState()
	if err != nil {
		return fmt.Errorf("call_home_assistant %s: %w", a.EntityID, err)
	}

	entity, err := v.d.registry.SetState(v.ctx, a.EntityID, state)
	if err != nil {
		return fmt.Errorf("call_home_assistant %s: %w", a.EntityID, err)
	}

	v.d.logger.Info("Smart home entity updated",
		zap.String("entity_id", entity.ID),
		zap.String("state", string(entity.State)))
	if v.d.onEntity != nil {
		v.d.onEntity(entity)
	}

	v.spoken = a.ConfirmationMessage
	if v.spoken == "" {
		v.spoken = fmt.Sprintf("%s is now %s.", entity.Name, entity.State)
	}
	return nil
}

func (v *visitor) VisitRecognizeSong(entities.RecognizeSong) error {
	v.spoken = SongNotImplemented
	return nil
}

func ptr[T any](v T) *T { return &v }
