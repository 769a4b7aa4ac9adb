package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/internal/journal"
	"github.com/satriahrh/vista/internal/supervisor"
)

type staticScene struct {
	vctx entities.VistaContext
}

func (s staticScene) Build(ctx context.Context) entities.VistaContext { return s.vctx }

type scriptedReasoner struct {
	mu       sync.Mutex
	action   entities.Action
	err      error
	block    chan struct{}
	prompts  []string
	contexts []entities.VistaContext
	history  [][]entities.ChatMessage
	summary  string
	logText  string
}

func (r *scriptedReasoner) Ask(ctx context.Context, prompt string, vctx entities.VistaContext, history []entities.ChatMessage) (entities.Action, error) {
	r.mu.Lock()
	r.prompts = append(r.prompts, prompt)
	r.contexts = append(r.contexts, vctx)
	r.history = append(r.history, history)
	block := r.block
	r.mu.Unlock()

	if block != nil {
		<-block
	}
	return r.action, r.err
}

func (r *scriptedReasoner) Interrupt(ctx context.Context, vctx entities.VistaContext) (string, bool, error) {
	return "", false, nil
}

func (r *scriptedReasoner) Summarize(ctx context.Context, logText string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logText = logText
	if r.err != nil {
		return "", r.err
	}
	return r.summary, nil
}

type recordingDispatcher struct {
	mu         sync.Mutex
	dispatched []entities.Action
	failures   []error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, action entities.Action) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatched = append(d.dispatched, action)
	return nil
}

func (d *recordingDispatcher) Fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = append(d.failures, err)
}

func newTestConversation(t *testing.T, reasoner *scriptedReasoner) (*ConversationService, *recordingDispatcher, *journal.Journal, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	logger := zaptest.NewLogger(t)
	j := journal.New(clk)
	d := &recordingDispatcher{}
	scene := staticScene{vctx: entities.VistaContext{SceneDescription: "A desk.", AudioContext: "quiet"}}
	return NewConversationService(supervisor.NewManager(clk, logger), scene, reasoner, d, j, clk, logger), d, j, clk
}

func TestConversationService_HandleCommand(t *testing.T) {
	reasoner := &scriptedReasoner{action: entities.AnswerUser{SpokenResponse: "Hello, sir."}}
	s, d, j, _ := newTestConversation(t, reasoner)

	if err := s.HandleCommand(context.Background(), "  hello  "); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := s.HandleCommand(context.Background(), "and again"); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(d.dispatched) != 2 {
		t.Fatalf("expected two dispatches, got %d", len(d.dispatched))
	}
	if reasoner.prompts[0] != "hello" || reasoner.contexts[0].SceneDescription != "A desk." {
		t.Errorf("unexpected request %q %+v", reasoner.prompts[0], reasoner.contexts[0])
	}
	// history excludes the turn being asked
	if len(reasoner.history[0]) != 0 || len(reasoner.history[1]) != 1 {
		t.Errorf("unexpected history lengths %d, %d", len(reasoner.history[0]), len(reasoner.history[1]))
	}
	if chat := j.Chat(); len(chat) != 2 || chat[0].Role != entities.ChatRoleUser || chat[0].Text() != "hello" {
		t.Errorf("expected user turns recorded, got %+v", chat)
	}
}

func TestConversationService_EmptyCommand(t *testing.T) {
	s, _, _, _ := newTestConversation(t, &scriptedReasoner{})

	if err := s.HandleCommand(context.Background(), "   "); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestConversationService_ReasonerFailure(t *testing.T) {
	reasoner := &scriptedReasoner{err: errors.New("quota exceeded")}
	s, d, _, _ := newTestConversation(t, reasoner)

	err := s.HandleCommand(context.Background(), "what is this")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(d.failures) != 1 || len(d.dispatched) != 0 {
		t.Errorf("expected failure surfaced once, got %+v", d)
	}
}

func TestConversationService_OneTurnAtATime(t *testing.T) {
	reasoner := &scriptedReasoner{
		action: entities.AnswerUser{SpokenResponse: "Done."},
		block:  make(chan struct{}),
	}
	s, d, j, _ := newTestConversation(t, reasoner)

	done := make(chan error, 1)
	go func() { done <- s.HandleCommand(context.Background(), "first") }()

	deadline := time.Now().Add(time.Second)
	for len(j.Chat()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first turn did not start")
		}
		time.Sleep(time.Millisecond)
	}

	if err := s.HandleCommand(context.Background(), "second"); !errors.Is(err, supervisor.ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	close(reasoner.block)
	if err := <-done; err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if len(d.dispatched) != 1 || len(j.Chat()) != 1 {
		t.Errorf("the dropped turn must leave no trace, got %d dispatches and %d turns", len(d.dispatched), len(j.Chat()))
	}
}

func TestConversationService_Summarize(t *testing.T) {
	reasoner := &scriptedReasoner{summary: "A quiet afternoon."}
	s, _, j, clk := newTestConversation(t, reasoner)

	j.Log(entities.LogTypeAudio, "Dog")
	clk.Add(10 * time.Minute)
	j.Log(entities.LogTypeAnalysis, "A cat on the sofa.")
	j.Log(entities.LogTypeSystem, "VISTA system activated.")
	j.Log(entities.LogTypeGesture, "Fist gesture held: toggling system.")

	if err := s.Summarize(context.Background(), 5); err != nil {
		t.Fatalf("summarize: %v", err)
	}

	if strings.Contains(reasoner.logText, "Dog") || strings.Contains(reasoner.logText, "activated") {
		t.Errorf("summary input must only hold recent analysis/audio/gesture lines, got %q", reasoner.logText)
	}
	if !strings.Contains(reasoner.logText, "[analysis] A cat on the sofa.") || strings.Count(reasoner.logText, "\n") != 1 {
		t.Errorf("unexpected summary input %q", reasoner.logText)
	}

	latest, ok := j.LatestOf(entities.LogTypeSummary)
	if !ok || latest.Message != "A quiet afternoon." {
		t.Errorf("expected summary entry, got %+v", latest)
	}
}

func TestConversationService_SummarizeEdgeCases(t *testing.T) {
	t.Run("no events", func(t *testing.T) {
		s, _, j, _ := newTestConversation(t, &scriptedReasoner{})

		if err := s.Summarize(context.Background(), 1); err != nil {
			t.Fatalf("summarize: %v", err)
		}
		entries := j.Entries()
		if len(entries) != 1 || entries[0].Message != "No events in the last 1 minute(s) to summarize." {
			t.Errorf("unexpected entries %+v", entries)
		}
	})

	t.Run("reasoner failure", func(t *testing.T) {
		s, _, j, _ := newTestConversation(t, &scriptedReasoner{err: errors.New("timeout")})
		j.Log(entities.LogTypeAudio, "Speech")

		if err := s.Summarize(context.Background(), 1); err == nil {
			t.Fatal("expected error")
		}
		latest, _ := j.LatestOf(entities.LogTypeError)
		if latest.Message != "Failed to generate summary." {
			t.Errorf("unexpected error entry %+v", latest)
		}
	})

	t.Run("bad window", func(t *testing.T) {
		s, _, _, _ := newTestConversation(t, &scriptedReasoner{})
		if err := s.Summarize(context.Background(), 0); err == nil {
			t.Error("expected error for zero minutes")
		}
	})
}
