package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/vista/adapters"
	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/domain/repositories"
	"github.com/satriahrh/vista/internal/journal"
)

type spokenLine struct {
	message string
	level   entities.NarrationLevel
}

type recordingNarrator struct {
	mu    sync.Mutex
	lines []spokenLine
}

func (r *recordingNarrator) Narrate(ctx context.Context, message string, level entities.NarrationLevel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, spokenLine{message, level})
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *adapters.MemorySmartHomeRegistry, *recordingNarrator, *journal.Journal) {
	registry := adapters.NewDemoSmartHomeRegistry()
	narrator := &recordingNarrator{}
	j := journal.New(clock.NewMock())
	return NewDispatcher(registry, narrator, j, zaptest.NewLogger(t)), registry, narrator, j
}

func TestDispatcher_CallHomeAssistant(t *testing.T) {
	d, registry, narrator, j := newTestDispatcher(t)
	var changed []string
	d.SetEntityListener(func(e *entities.SmartHomeEntity) { changed = append(changed, e.ID) })

	err := d.Dispatch(context.Background(), entities.CallHomeAssistant{
		EntityID:            "light.desk_lamp",
		Service:             entities.ServiceTurnOn,
		ConfirmationMessage: "Desk lamp is now on, sir.",
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	lamp, err := registry.Get(context.Background(), "light.desk_lamp")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if lamp.State != entities.EntityStateOn {
		t.Errorf("expected lamp on, got %s", lamp.State)
	}
	if len(changed) != 1 || changed[0] != "light.desk_lamp" {
		t.Errorf("expected entity listener call, got %v", changed)
	}
	if len(narrator.lines) != 1 || narrator.lines[0].message != "Desk lamp is now on, sir." {
		t.Errorf("expected spoken confirmation, got %+v", narrator.lines)
	}

	chat := j.Chat()
	if len(chat) != 1 || chat[0].Role != entities.ChatRoleModel {
		t.Fatalf("expected one model turn, got %+v", chat)
	}
	call := chat[0].Parts[0].FunctionCall
	if call == nil || call.Name != entities.FunctionCallHomeAssistant || call.Args["service"] != "turn_on" {
		t.Errorf("expected function call part, got %+v", chat[0].Parts)
	}
}

func TestDispatcher_DefaultConfirmation(t *testing.T) {
	d, _, narrator, _ := newTestDispatcher(t)

	err := d.Dispatch(context.Background(), entities.CallHomeAssistant{
		EntityID: "light.desk_lamp",
		Service:  entities.ServiceTurnOff,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if narrator.lines[0].message != "Desk Lamp is now off." {
		t.Errorf("unexpected confirmation %q", narrator.lines[0].message)
	}
}

func TestDispatcher_AnswerAndSong(t *testing.T) {
	d, _, narrator, j := newTestDispatcher(t)

	if err := d.Dispatch(context.Background(), entities.AnswerUser{SpokenResponse: "It is sunny, sir."}); err != nil {
		t.Fatalf("dispatch answer: %v", err)
	}
	if err := d.Dispatch(context.Background(), entities.RecognizeSong{}); err != nil {
		t.Fatalf("dispatch song: %v", err)
	}

	want := []string{"It is sunny, sir.", SongNotImplemented}
	for i, line := range narrator.lines {
		if line.message != want[i] || line.level != entities.NarrationLevelAlert {
			t.Errorf("line %d: got %+v", i, line)
		}
	}
	if len(j.Chat()) != 2 {
		t.Errorf("expected two model turns, got %d", len(j.Chat()))
	}
	if len(j.Entries()) != 0 {
		t.Errorf("expected no log entries, got %+v", j.Entries())
	}
}

func TestDispatcher_Failures(t *testing.T) {
	tests := []struct {
		name   string
		action entities.Action
		want   error
	}{
		{"nil action", nil, entities.ErrUnknownAction},
		{"unknown entity", entities.CallHomeAssistant{EntityID: "light.garage", Service: entities.ServiceTurnOn}, repositories.ErrEntityNotFound},
		{"bad service", entities.CallHomeAssistant{EntityID: "light.desk_lamp", Service: "toggle"}, nil},
		{"empty answer", entities.AnswerUser{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, narrator, j := newTestDispatcher(t)

			err := d.Dispatch(context.Background(), tt.action)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}

			chat := j.Chat()
			if len(chat) != 1 || !chat[0].IsError || chat[0].Text() != ErrorReply {
				t.Errorf("expected one error turn, got %+v", chat)
			}
			entries := j.Entries()
			if len(entries) != 1 || entries[0].Type != entities.LogTypeError {
				t.Errorf("expected one error entry, got %+v", entries)
			}
			if len(narrator.lines) != 0 {
				t.Errorf("failed turns are not narrated by dispatch, got %+v", narrator.lines)
			}
		})
	}
}
