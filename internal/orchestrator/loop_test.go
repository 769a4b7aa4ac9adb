package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/internal/contextbuilder"
	"github.com/satriahrh/vista/internal/journal"
	"github.com/satriahrh/vista/internal/supervisor"
)

type fakeState struct {
	active       atomic.Bool
	interruption entities.InterruptionMode
}

func (s *fakeState) SystemActive() bool                          { return s.active.Load() }
func (s *fakeState) InterruptionMode() entities.InterruptionMode { return s.interruption }
func (s *fakeState) AnalysisMode() entities.AnalysisMode {
	return entities.AnalysisModeContextualQA
}

type fakeScene struct {
	describes atomic.Int32
	builds    atomic.Int32
	release   chan struct{}
	err       error
}

func (f *fakeScene) Describe(ctx context.Context) (entities.VisionResult, error) {
	f.describes.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return entities.VisionResult{}, ctx.Err()
		}
	}
	if f.err != nil {
		return entities.VisionResult{}, f.err
	}
	return entities.VisionResult{SceneDescription: "A person at a desk."}, nil
}

func (f *fakeScene) Build(ctx context.Context) entities.VistaContext {
	f.builds.Add(1)
	return entities.VistaContext{SceneDescription: "A person at a desk.", AudioContext: "quiet"}
}

type fakeReasoner struct {
	insight string
	ok      bool
	err     error
	calls   atomic.Int32
}

func (f *fakeReasoner) Ask(ctx context.Context, prompt string, vctx entities.VistaContext, history []entities.ChatMessage) (entities.Action, error) {
	return nil, errors.New("not used")
}

func (f *fakeReasoner) Interrupt(ctx context.Context, vctx entities.VistaContext) (string, bool, error) {
	f.calls.Add(1)
	return f.insight, f.ok, f.err
}

func (f *fakeReasoner) Summarize(ctx context.Context, logText string) (string, error) {
	return "", errors.New("not used")
}

type recordingNarrator struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingNarrator) Narrate(ctx context.Context, message string, level entities.NarrationLevel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf("%s:%s", level, message))
}

func (r *recordingNarrator) spoken() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

type harness struct {
	loop     *Loop
	clock    *clock.Mock
	tasks    *supervisor.Manager
	state    *fakeState
	scene    *fakeScene
	reasoner *fakeReasoner
	journal  *journal.Journal
	narrator *recordingNarrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewMock()
	logger := zaptest.NewLogger(t)
	h := &harness{
		clock:    clk,
		tasks:    supervisor.NewManager(clk, logger),
		state:    &fakeState{interruption: entities.InterruptionProactive},
		scene:    &fakeScene{},
		reasoner: &fakeReasoner{},
		journal:  journal.New(clk),
		narrator: &recordingNarrator{},
	}
	h.state.active.Store(true)
	h.loop = NewLoop(DefaultConfig(), clk, h.tasks, h.state, h.scene, h.reasoner, h.journal, h.narrator, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		h.tasks.Shutdown(ctx)
	})
	return h
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) idle(kind supervisor.TaskKind) func() bool {
	return func() bool { return !h.tasks.Busy(kind) }
}

func TestLoop_VisionTickLogsAndNarrates(t *testing.T) {
	h := newHarness(t)

	if !h.loop.VisionTick(context.Background()) {
		t.Fatal("expected vision poll to start")
	}
	waitFor(t, h.idle(supervisor.TaskVision))

	entries := h.journal.Entries()
	if len(entries) != 1 || entries[0].Type != entities.LogTypeAnalysis || entries[0].Mode != entities.AnalysisModeContextualQA {
		t.Fatalf("expected one analysis entry, got %+v", entries)
	}
	spoken := h.narrator.spoken()
	if len(spoken) != 1 || spoken[0] != "full:A person at a desk." {
		t.Errorf("unexpected narration %v", spoken)
	}
}

func TestLoop_VisionTickDroppedWhileInFlight(t *testing.T) {
	h := newHarness(t)
	h.scene.release = make(chan struct{})

	if !h.loop.VisionTick(context.Background()) {
		t.Fatal("expected first poll to start")
	}
	waitFor(t, func() bool { return h.scene.describes.Load() == 1 })

	if h.loop.VisionTick(context.Background()) {
		t.Fatal("second tick must be dropped while the first is in flight")
	}

	close(h.scene.release)
	waitFor(t, h.idle(supervisor.TaskVision))

	if got := h.scene.describes.Load(); got != 1 {
		t.Errorf("expected a single vision call, got %d", got)
	}
	if got := len(h.journal.Entries()); got != 1 {
		t.Errorf("expected a single log entry, got %d", got)
	}
}

func TestLoop_VisionFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"capture", fmt.Errorf("%w: timeout", contextbuilder.ErrCaptureFailed), CaptureFailedMessage},
		{"vision", fmt.Errorf("%w: quota", contextbuilder.ErrVisionFailed), VisionFailedMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.scene.err = tt.err

			h.loop.VisionTick(context.Background())
			waitFor(t, h.idle(supervisor.TaskVision))

			entries := h.journal.Entries()
			if len(entries) != 1 || entries[0].Type != entities.LogTypeError || entries[0].Message != tt.want {
				t.Errorf("expected %q error entry, got %+v", tt.want, entries)
			}
			if len(h.narrator.spoken()) != 0 {
				t.Error("failures are not narrated by the loop")
			}
		})
	}
}

func TestLoop_GatedOnSystemActive(t *testing.T) {
	h := newHarness(t)
	h.state.active.Store(false)

	if h.loop.VisionTick(context.Background()) || h.loop.InterruptionTick(context.Background()) {
		t.Fatal("ticks must be skipped while paused")
	}
}

func TestLoop_Interruption(t *testing.T) {
	tests := []struct {
		name      string
		mode      entities.InterruptionMode
		chatBusy  bool
		insight   string
		ok        bool
		wantStart bool
		wantLog   bool
	}{
		{"insight", entities.InterruptionProactive, false, "Your coffee is getting cold.", true, true, true},
		{"no event", entities.InterruptionProactive, false, "", false, true, false},
		{"mode off", entities.InterruptionOff, false, "ignored", true, false, false},
		{"chat running", entities.InterruptionProactive, true, "ignored", true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.state.interruption = tt.mode
			h.reasoner.insight = tt.insight
			h.reasoner.ok = tt.ok

			release := make(chan struct{})
			if tt.chatBusy {
				h.tasks.Go(context.Background(), supervisor.TaskChat, func(ctx context.Context) error {
					<-release
					return nil
				})
			}

			started := h.loop.InterruptionTick(context.Background())
			close(release)
			if started != tt.wantStart {
				t.Fatalf("started = %v, want %v", started, tt.wantStart)
			}
			waitFor(t, h.idle(supervisor.TaskInterruption))

			entries := h.journal.Entries()
			if tt.wantLog {
				if len(entries) != 1 || entries[0].Type != entities.LogTypeInterruption || entries[0].Message != tt.insight {
					t.Errorf("expected interruption entry, got %+v", entries)
				}
				if spoken := h.narrator.spoken(); len(spoken) != 1 {
					t.Errorf("expected insight narrated, got %v", spoken)
				}
			} else if len(entries) != 0 {
				t.Errorf("expected no entries, got %+v", entries)
			}
		})
	}
}

func TestLoop_RunTicks(t *testing.T) {
	h := newHarness(t)
	h.reasoner.insight = "Someone is at the door."
	h.reasoner.ok = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.loop.Run(ctx) }()

	// let both tickers register with the mock clock
	time.Sleep(10 * time.Millisecond)

	h.clock.Add(10 * time.Second)
	waitFor(t, func() bool { return h.scene.describes.Load() == 1 })
	waitFor(t, h.idle(supervisor.TaskVision))

	h.clock.Add(5 * time.Second)
	waitFor(t, func() bool { return h.reasoner.calls.Load() == 1 })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestValidateConfig(t *testing.T) {
	if err := ValidateConfig(DefaultConfig()); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
	if err := ValidateConfig(Config{VisionInterval: time.Second}); err == nil {
		t.Error("expected error for missing interruption interval")
	}
}
