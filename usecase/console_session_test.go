package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/vista/adapters"
	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/domain/repositories"
	"github.com/satriahrh/vista/internal/orchestrator"
)

type fakeRecognizer struct {
	running atomic.Bool
	starts  atomic.Int32
}

func (r *fakeRecognizer) Start() error {
	r.running.Store(true)
	r.starts.Add(1)
	return nil
}

func (r *fakeRecognizer) Stop() { r.running.Store(false) }

type fakeSynth struct {
	mu     sync.Mutex
	spoken []string
}

func (s *fakeSynth) Speak(ctx context.Context, text string, done func()) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
	go done()
	return nil
}

func (s *fakeSynth) Cancel() {}

func (s *fakeSynth) lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

type fakeFrames struct {
	fail atomic.Bool
}

func (f *fakeFrames) CaptureFrame(ctx context.Context) ([]byte, error) {
	if f.fail.Load() {
		return nil, errors.New("camera busy")
	}
	return []byte("jpeg"), nil
}

type fakeStream struct{ stopped atomic.Bool }

func (s *fakeStream) ID() string { return "stream" }
func (s *fakeStream) Stop()      { s.stopped.Store(true) }

type fakeStreams struct {
	fail bool
}

func (o *fakeStreams) Open(ctx context.Context, kind entities.DeviceKind, deviceID string) (repositories.MediaStream, error) {
	if o.fail {
		return nil, errors.New("NotAllowedError")
	}
	return &fakeStream{}, nil
}

type sessionHarness struct {
	session    *Session
	reasoner   *scriptedReasoner
	registry   *adapters.MemorySmartHomeRegistry
	recognizer *fakeRecognizer
	synth      *fakeSynth
	frames     *fakeFrames
	streams    *fakeStreams
}

func newSessionHarness(t *testing.T) *sessionHarness {
	t.Helper()
	h := &sessionHarness{
		reasoner:   &scriptedReasoner{action: entities.AnswerUser{SpokenResponse: "At your service."}},
		registry:   adapters.NewDemoSmartHomeRegistry(),
		recognizer: &fakeRecognizer{},
		synth:      &fakeSynth{},
		frames:     &fakeFrames{},
		streams:    &fakeStreams{},
	}

	vision := &visionStub{}
	h.session = NewSession(
		entities.NewConsoleSession("session-1", "console-1"),
		DefaultSessionConfig(),
		Services{Reasoner: h.reasoner, Vision: vision, Registry: h.registry},
		Ports{
			Recognizer:  func(repositories.TranscriptSink) repositories.SpeechRecognizer { return h.recognizer },
			Synthesizer: h.synth,
			Frames:      h.frames,
			Streams:     h.streams,
		},
		clock.NewMock(),
		zaptest.NewLogger(t),
	)
	h.session.Start()
	t.Cleanup(h.session.Close)
	return h
}

type visionStub struct{}

func (visionStub) AnalyzeFrame(ctx context.Context, jpeg []byte) (entities.VisionResult, error) {
	return entities.VisionResult{SceneDescription: "A desk with a laptop."}, nil
}

func (h *sessionHarness) selectDevices() {
	h.session.UpdateDevices([]entities.MediaDevice{
		{DeviceID: "cam", Kind: entities.DeviceKindVideoInput, Label: "Webcam"},
		{DeviceID: "mic", Kind: entities.DeviceKindAudioInput, Label: "Microphone"},
	})
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestSession_ActivationRequiresDevices(t *testing.T) {
	h := newSessionHarness(t)

	err := h.session.SetSystemActive(context.Background(), true)
	if !errors.Is(err, ErrDevicesRequired) {
		t.Fatalf("expected ErrDevicesRequired, got %v", err)
	}
	latest, _ := h.session.Journal().LatestOf(entities.LogTypeError)
	if latest.Message != DevicesRequiredMessage {
		t.Errorf("unexpected error entry %+v", latest)
	}

	h.selectDevices()
	if err := h.session.SetSystemActive(context.Background(), true); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !h.session.SystemActive() {
		t.Fatal("expected system active")
	}
	eventually(t, func() bool { return h.session.VoiceStatus() == entities.VoiceStatusListening })
	if !h.recognizer.running.Load() {
		t.Error("expected recognizer running")
	}

	if err := h.session.SetSystemActive(context.Background(), false); err != nil {
		t.Fatalf("pause: %v", err)
	}
	eventually(t, func() bool { return h.session.VoiceStatus() == entities.VoiceStatusOff })
	latest, _ = h.session.Journal().LatestOf(entities.LogTypeSystem)
	if latest.Message != PausedMessage {
		t.Errorf("expected pause entry, got %+v", latest)
	}
}

func TestSession_DeskLampScenario(t *testing.T) {
	h := newSessionHarness(t)
	h.reasoner.action = entities.CallHomeAssistant{
		EntityID:            "light.desk_lamp",
		Service:             entities.ServiceTurnOn,
		ConfirmationMessage: "The desk lamp is on, sir.",
	}
	h.selectDevices()
	if err := h.session.SetSystemActive(context.Background(), true); err != nil {
		t.Fatalf("activate: %v", err)
	}
	eventually(t, func() bool { return h.session.VoiceStatus() == entities.VoiceStatusListening })

	h.session.IngestDetections([]entities.Detection{{Class: "laptop", Score: 0.92}})

	sink := h.session.Recognizer()
	sink.OnTranscript("hey jarvis", true)
	eventually(t, func() bool { return h.session.VoiceStatus() == entities.VoiceStatusWaitingCommand })
	sink.OnTranscript("turn on the desk lamp", true)

	eventually(t, func() bool {
		lamp, err := h.registry.Get(context.Background(), "light.desk_lamp")
		return err == nil && lamp.State == entities.EntityStateOn
	})
	eventually(t, func() bool { return len(h.session.Journal().Chat()) == 2 })

	h.reasoner.mu.Lock()
	vctx := h.reasoner.contexts[0]
	h.reasoner.mu.Unlock()
	if len(vctx.EntitiesInView) != 1 || vctx.EntitiesInView[0].ID != "light.desk_lamp" || !vctx.EntitiesInView[0].IsFocused {
		t.Errorf("expected focused desk lamp in context, got %+v", vctx.EntitiesInView)
	}

	spoken := h.synth.lines()
	if len(spoken) == 0 || spoken[len(spoken)-1] != "The desk lamp is on, sir." {
		t.Errorf("expected spoken confirmation, got %v", spoken)
	}
	eventually(t, func() bool { return h.session.VoiceStatus() == entities.VoiceStatusListening })
}

func TestSession_StreamErrorPauses(t *testing.T) {
	h := newSessionHarness(t)
	h.selectDevices()
	h.session.SetSystemActive(context.Background(), true)

	h.session.ReportStreamError(entities.DeviceKindVideoInput, "Camera disconnected")

	if h.session.SystemActive() {
		t.Error("expected system paused after a stream error")
	}
	latest, _ := h.session.Journal().LatestOf(entities.LogTypeError)
	if latest.Message != "Error accessing camera: Camera disconnected" {
		t.Errorf("unexpected error entry %+v", latest)
	}
}

func TestSession_AcquireFailureKeepsPaused(t *testing.T) {
	h := newSessionHarness(t)
	h.selectDevices()
	h.streams.fail = true

	if err := h.session.SetSystemActive(context.Background(), true); err == nil {
		t.Fatal("expected activation to fail")
	}
	if h.session.SystemActive() {
		t.Error("system must stay paused")
	}
}

func TestSession_SettingsAndModeCycle(t *testing.T) {
	h := newSessionHarness(t)

	settings := h.session.Settings()
	settings.NarrationMode = entities.NarrationFull
	settings.AnalysisMode = entities.AnalysisModeContextualQA
	if err := h.session.UpdateSettings(context.Background(), settings); err != nil {
		t.Fatalf("update: %v", err)
	}
	latest, _ := h.session.Journal().LatestOf(entities.LogTypeSystem)
	if latest.Message != "Analysis mode switched to: contextual_qa" {
		t.Errorf("unexpected entry %+v", latest)
	}

	h.session.CycleAnalysisMode()
	if got := h.session.AnalysisMode(); got != entities.AnalysisModeObjectDetection {
		t.Errorf("expected cycle back to object detection, got %s", got)
	}

	bad := h.session.Settings()
	bad.AudioSensitivity = 400
	if err := h.session.UpdateSettings(context.Background(), bad); err == nil {
		t.Error("expected validation error")
	}
}

func TestSession_PerceptionGatedOnActive(t *testing.T) {
	h := newSessionHarness(t)

	h.session.IngestAudioScores([]entities.AudioScore{{ClassName: "Dog", Score: 0.9}})
	if len(h.session.Journal().Entries()) != 0 {
		t.Fatal("paused sessions must ignore perception input")
	}

	h.selectDevices()
	h.session.SetSystemActive(context.Background(), true)
	h.session.IngestAudioScores([]entities.AudioScore{{ClassName: "Dog", Score: 0.9}})
	latest, ok := h.session.Journal().LatestOf(entities.LogTypeAudio)
	if !ok || latest.Message != "Dog" {
		t.Errorf("expected audio entry, got %+v", latest)
	}

	// hand input is ignored outside hand gesture mode
	h.session.IngestHands(nil)
	if _, ok := h.session.Journal().LatestOf(entities.LogTypeGesture); ok {
		t.Error("unexpected gesture entry")
	}
}

func TestSession_SnapshotAndClear(t *testing.T) {
	h := newSessionHarness(t)
	h.selectDevices()

	h.session.ClearLog()
	h.session.ClearLog()

	snapshot := h.session.Snapshot(context.Background())
	if len(snapshot.Log) != 1 {
		t.Errorf("expected a single cleared entry, got %+v", snapshot.Log)
	}
	if len(snapshot.Devices) != 2 || len(snapshot.Entities) == 0 || len(snapshot.Tasks) != 4 {
		t.Errorf("incomplete snapshot %+v", snapshot)
	}
	if snapshot.Voice != entities.VoiceStatusOff {
		t.Errorf("expected voice off while paused, got %s", snapshot.Voice)
	}
}

func (h *sessionHarness) spoke(line string) bool {
	for _, spoken := range h.synth.lines() {
		if spoken == line {
			return true
		}
	}
	return false
}

func TestSession_PollAndSummaryErrorsNarrated(t *testing.T) {
	h := newSessionHarness(t)
	h.selectDevices()
	if err := h.session.SetSystemActive(context.Background(), true); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if h.session.Settings().NarrationMode != entities.NarrationAlertsOnly {
		t.Fatalf("expected alerts_only narration, got %s", h.session.Settings().NarrationMode)
	}

	h.frames.fail.Store(true)
	if !h.session.loop.VisionTick(context.Background()) {
		t.Fatal("expected a vision poll to start")
	}
	eventually(t, func() bool { return h.spoke(orchestrator.CaptureFailedMessage) })

	h.session.IngestDetections([]entities.Detection{{Class: "laptop", Score: 0.92}})
	h.reasoner.mu.Lock()
	h.reasoner.err = errors.New("quota exhausted")
	h.reasoner.mu.Unlock()
	if err := h.session.Summarize(context.Background(), 5); err == nil {
		t.Fatal("expected the summary to fail")
	}
	eventually(t, func() bool { return h.spoke("Failed to generate summary.") })
}
