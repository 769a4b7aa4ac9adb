package narration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/vista/domain/entities"
)

type fakeSynth struct {
	mu      sync.Mutex
	spoken  []string
	pending []func()
	cancels int
	fail    bool
}

func (f *fakeSynth) Speak(ctx context.Context, text string, done func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("synthesis unavailable")
	}
	f.spoken = append(f.spoken, text)
	f.pending = append(f.pending, done)
	return nil
}

func (f *fakeSynth) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

// finish completes the i-th utterance
func (f *fakeSynth) finish(i int) {
	f.mu.Lock()
	done := f.pending[i]
	f.mu.Unlock()
	done()
}

// fakeListener tracks the recognizer as the voice machine would
type fakeListener struct {
	mu        sync.Mutex
	listening bool
	suspends  int
	resumes   int
}

func (f *fakeListener) SuspendListening() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listening = false
	f.suspends++
}

func (f *fakeListener) ResumeListening() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listening = true
	f.resumes++
}

func TestController_ModePolicy(t *testing.T) {
	tests := []struct {
		mode  entities.NarrationMode
		level entities.NarrationLevel
		want  bool
	}{
		{entities.NarrationOff, entities.NarrationLevelAlert, false},
		{entities.NarrationOff, entities.NarrationLevelFull, false},
		{entities.NarrationAlertsOnly, entities.NarrationLevelAlert, true},
		{entities.NarrationAlertsOnly, entities.NarrationLevelFull, false},
		{entities.NarrationFull, entities.NarrationLevelAlert, true},
		{entities.NarrationFull, entities.NarrationLevelFull, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode)+"/"+string(tt.level), func(t *testing.T) {
			synth := &fakeSynth{}
			c := NewController(synth, &fakeListener{}, zaptest.NewLogger(t))
			c.SetMode(tt.mode)

			c.Narrate(context.Background(), "message", tt.level)

			if got := len(synth.spoken) == 1; got != tt.want {
				t.Errorf("spoken = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestController_CancelAndReplace(t *testing.T) {
	synth := &fakeSynth{}
	listener := &fakeListener{listening: true}
	c := NewController(synth, listener, zaptest.NewLogger(t))
	c.SetMode(entities.NarrationFull)

	c.Narrate(context.Background(), "first", entities.NarrationLevelFull)
	c.Narrate(context.Background(), "second", entities.NarrationLevelFull)

	if synth.cancels != 2 {
		t.Errorf("expected every utterance to cancel the previous one, got %d cancels", synth.cancels)
	}
	if listener.suspends != 1 {
		t.Errorf("expected one suspend for overlapping speech, got %d", listener.suspends)
	}

	// the cancelled utterance finishing must not resume listening
	synth.finish(0)
	if listener.listening {
		t.Fatal("stale completion resumed listening")
	}

	synth.finish(1)
	if !listener.listening || listener.resumes != 1 {
		t.Errorf("expected listening to resume once the latest utterance ended")
	}
	if c.Speaking() {
		t.Error("expected controller to be idle")
	}
}

func TestController_NeverSpeaksWhileListening(t *testing.T) {
	synth := &fakeSynth{}
	listener := &fakeListener{listening: true}
	c := NewController(synth, listener, zaptest.NewLogger(t))

	c.Announce(context.Background(), "Yes, sir?")
	if listener.listening {
		t.Fatal("speaking while the recognizer is active")
	}
	if len(synth.spoken) != 1 {
		t.Fatal("announcements ignore the narration mode")
	}
}

func TestController_SpeakFailureResumes(t *testing.T) {
	synth := &fakeSynth{fail: true}
	listener := &fakeListener{listening: true}
	c := NewController(synth, listener, zaptest.NewLogger(t))

	c.Narrate(context.Background(), "System activated.", entities.NarrationLevelAlert)
	if !listener.listening {
		t.Error("a failed utterance must hand audio back to the recognizer")
	}
}

func TestController_Cancel(t *testing.T) {
	synth := &fakeSynth{}
	listener := &fakeListener{listening: true}
	c := NewController(synth, listener, zaptest.NewLogger(t))

	c.Narrate(context.Background(), "System paused.", entities.NarrationLevelAlert)
	c.Cancel()
	if c.Speaking() || !listener.listening {
		t.Error("cancel must end speech and release the recognizer")
	}

	synth.finish(0)
	if listener.resumes != 1 {
		t.Errorf("expected a single resume, got %d", listener.resumes)
	}

	c.Narrate(context.Background(), "ignored whitespace", entities.NarrationLevelAlert)
	c.SetMode(entities.NarrationOff)
	if c.Speaking() {
		t.Error("switching narration off must cancel speech")
	}
}

func TestController_EmptyMessage(t *testing.T) {
	synth := &fakeSynth{}
	c := NewController(synth, &fakeListener{}, zaptest.NewLogger(t))

	c.Narrate(context.Background(), "   ", entities.NarrationLevelAlert)
	if len(synth.spoken) != 0 {
		t.Error("empty messages must not be spoken")
	}
}
