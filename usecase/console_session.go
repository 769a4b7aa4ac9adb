package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/domain/repositories"
	"github.com/satriahrh/vista/internal/contextbuilder"
	"github.com/satriahrh/vista/internal/devices"
	"github.com/satriahrh/vista/internal/dispatch"
	"github.com/satriahrh/vista/internal/journal"
	"github.com/satriahrh/vista/internal/narration"
	"github.com/satriahrh/vista/internal/orchestrator"
	"github.com/satriahrh/vista/internal/perception"
	"github.com/satriahrh/vista/internal/supervisor"
	"github.com/satriahrh/vista/internal/voice"
)

const (
	// DevicesRequiredMessage is logged when starting without both devices
	DevicesRequiredMessage = "Please select both a camera and a microphone before starting."
	// ActivatedMessage is logged when the system starts
	ActivatedMessage = "VISTA system activated."
	// PausedMessage is logged when the system pauses
	PausedMessage = "VISTA system paused."

	shutdownTimeout = 5 * time.Second
)

// ErrDevicesRequired is returned when activating without a camera and a microphone
var ErrDevicesRequired = errors.New("camera and microphone must be selected")

// SessionConfig holds the tunables of every per-session component
type SessionConfig struct {
	Voice        voice.Config
	Orchestrator orchestrator.Config
	Context      contextbuilder.Config
}

// DefaultSessionConfig returns the default tunables
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Voice:        voice.DefaultConfig(),
		Orchestrator: orchestrator.DefaultConfig(),
		Context:      contextbuilder.DefaultConfig(),
	}
}

// Services are the process-wide collaborators shared by every session
type Services struct {
	Reasoner repositories.Reasoner
	Vision   repositories.VisionAnalyzer
	Registry repositories.SmartHomeRegistry
}

// RecognizerFactory creates the session recognizer bound to its sink
type RecognizerFactory func(sink repositories.TranscriptSink) repositories.SpeechRecognizer

// Ports are the console-side capabilities of one session
type Ports struct {
	Recognizer  RecognizerFactory
	Synthesizer repositories.SpeechSynthesizer
	Frames      repositories.FrameSource
	Streams     repositories.StreamOpener
}

// SessionListener is told about session state that is not in the journal
type SessionListener interface {
	OnVoiceStatus(status entities.VoiceStatus)
	OnInterimTranscript(text string)
	OnSettings(settings entities.Settings)
	OnEntityState(entity *entities.SmartHomeEntity)
}

// Snapshot is the full state a console needs after (re)connecting
type Snapshot struct {
	Session  entities.ConsoleSession     `json:"session"`
	Settings entities.Settings           `json:"settings"`
	Voice    entities.VoiceStatus        `json:"voice_status"`
	Log      []entities.LogEntry         `json:"log"`
	Chat     []entities.ChatMessage      `json:"chat"`
	Devices  []entities.MediaDevice      `json:"devices"`
	Entities []*entities.SmartHomeEntity `json:"entities"`
	Tasks    []supervisor.SlotStatus     `json:"tasks"`
}

// Session is the single owner of one console's state
type Session struct {
	info     *entities.ConsoleSession
	clock    clock.Clock
	logger   *zap.Logger
	registry repositories.SmartHomeRegistry

	journal      *journal.Journal
	tasks        *supervisor.Manager
	devices      *devices.Manager
	objects      *perception.ObjectAdapter
	gestures     *perception.GestureAdapter
	audio        *perception.AudioAdapter
	level        *perception.LevelMonitor
	builder      *contextbuilder.Builder
	voice        *voice.Machine
	narrator     *narration.Controller
	dispatcher   *dispatch.Dispatcher
	conversation *ConversationService
	loop         *orchestrator.Loop

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	settings entities.Settings
	listener SessionListener
	closed   bool
}

// NewSession wires every component of a console session
func NewSession(
	info *entities.ConsoleSession,
	config SessionConfig,
	services Services,
	ports Ports,
	clk clock.Clock,
	logger *zap.Logger,
) *Session {
	logger = logger.With(zap.String("session_id", info.ID), zap.String("console_id", info.ConsoleID))
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		info:     info,
		clock:    clk,
		logger:   logger,
		registry: services.Registry,
		journal:  journal.New(clk),
		tasks:    supervisor.NewManager(clk, logger),
		ctx:      ctx,
		cancel:   cancel,
		settings: info.Settings,
	}
	alerts := &alertLogger{session: s}

	s.devices = devices.NewManager(ports.Streams, alerts, logger)
	s.objects = perception.NewObjectAdapter(s.settings.ObjectConfidence, s.journal, nil, clk)
	s.gestures = perception.NewGestureAdapter(s, s.journal, nil, clk)
	s.audio = perception.NewAudioAdapter(s.journal, nil, clk)
	s.level = perception.NewLevelMonitor(s.settings.AudioSensitivity, s.journal)
	s.builder = contextbuilder.NewBuilder(config.Context, ports.Frames, services.Vision, services.Registry, s.objects, s.audio, logger)

	var recognizer repositories.SpeechRecognizer
	s.voice = voice.NewMachine(config.Voice, clk, lateRecognizer{&recognizer}, alerts, logger)
	recognizer = ports.Recognizer(s.voice)

	s.narrator = narration.NewController(ports.Synthesizer, s.voice, logger)
	s.narrator.SetMode(s.settings.NarrationMode)
	s.voice.SetAnnouncer(s.narrator)

	s.dispatcher = dispatch.NewDispatcher(services.Registry, s.narrator, alerts, logger)
	s.dispatcher.SetEntityListener(s.entityChanged)
	s.conversation = NewConversationService(s.tasks, s.builder, services.Reasoner, s.dispatcher, alerts, clk, logger)
	s.voice.SetCommandHandler(s.handleVoiceCommand)

	s.loop = orchestrator.NewLoop(config.Orchestrator, clk, s.tasks, s, s.builder, services.Reasoner, alerts, s.narrator, logger)

	return s
}

// lateRecognizer lets the recognizer be built after the machine it feeds
type lateRecognizer struct {
	r *repositories.SpeechRecognizer
}

func (l lateRecognizer) Start() error { return (*l.r).Start() }
func (l lateRecognizer) Stop()        { (*l.r).Stop() }

// alertLogger narrates Error entries at alert level
type alertLogger struct {
	session *Session
}

func (a *alertLogger) Log(logType entities.LogType, message string) entities.LogEntry {
	entry := a.session.journal.Log(logType, message)
	if logType == entities.LogTypeError {
		a.session.narrator.Narrate(a.session.ctx, message, entities.NarrationLevelAlert)
	}
	return entry
}

func (a *alertLogger) LogMode(logType entities.LogType, mode entities.AnalysisMode, message string) entities.LogEntry {
	entry := a.session.journal.LogMode(logType, mode, message)
	if logType == entities.LogTypeError {
		a.session.narrator.Narrate(a.session.ctx, message, entities.NarrationLevelAlert)
	}
	return entry
}

func (a *alertLogger) AppendChat(msg entities.ChatMessage) entities.ChatMessage {
	return a.session.journal.AppendChat(msg)
}

func (a *alertLogger) Chat() []entities.ChatMessage {
	return a.session.journal.Chat()
}

func (a *alertLogger) Recent(since time.Time, types ...entities.LogType) []entities.LogEntry {
	return a.session.journal.Recent(since, types...)
}

// Start runs the orchestration loop and the task event watcher
func (s *Session) Start() {
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		if err := s.loop.Run(s.ctx); err != nil {
			s.logger.Error("Orchestration loop failed", zap.Error(err))
		}
	}()
	go func() {
		defer s.wg.Done()
		s.watchTasks(s.ctx)
	}()

	s.voice.SetStatusListener(s.voiceStatusChanged)
	s.voice.SetInterimListener(s.interimTranscript)
	s.applyVoice()

	s.logger.Info("Console session started")
}

// Close stops every component and releases the devices
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.voice.Close()
	s.narrator.Cancel()
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.tasks.Shutdown(ctx); err != nil {
		s.logger.Warn("Tasks did not stop in time", zap.Error(err))
	}
	s.wg.Wait()
	s.devices.ReleaseAll()

	s.mu.Lock()
	s.info.Terminate()
	s.mu.Unlock()
	s.logger.Info("Console session closed")
}

// watchTasks logs supervisor lifecycle events
func (s *Session) watchTasks(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-s.tasks.EventChannel():
			s.handleTaskEvent(event)
		}
	}
}

func (s *Session) handleTaskEvent(event supervisor.TaskEvent) {
	switch event.Type {
	case supervisor.EventTaskFailed:
		s.logger.Warn("Task failed", zap.String("kind", string(event.Kind)), zap.String("error", event.Error))
	case supervisor.EventTaskSkipped:
		s.logger.Debug("Task skipped", zap.String("kind", string(event.Kind)), zap.String("reason", event.Error))
	default:
		s.logger.Debug("Task event", zap.String("kind", string(event.Kind)), zap.String("type", event.Type))
	}
}

// Descriptor returns a copy of the session descriptor
func (s *Session) Descriptor() entities.ConsoleSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.info
}

// Touch records console activity
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info.UpdateLastActive()
}

// Idle reports whether the console has been silent for longer than d
func (s *Session) Idle(d time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.IsIdle(d)
}

// Journal returns the session log and chat
func (s *Session) Journal() *journal.Journal { return s.journal }

// SetListener registers the session listener
func (s *Session) SetListener(l SessionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

func (s *Session) currentListener() SessionListener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listener
}

func (s *Session) voiceStatusChanged(status entities.VoiceStatus) {
	if l := s.currentListener(); l != nil {
		l.OnVoiceStatus(status)
	}
}

func (s *Session) interimTranscript(text string) {
	if l := s.currentListener(); l != nil {
		l.OnInterimTranscript(text)
	}
}

func (s *Session) entityChanged(entity *entities.SmartHomeEntity) {
	if l := s.currentListener(); l != nil {
		l.OnEntityState(entity)
	}
}

func (s *Session) settingsChanged(settings entities.Settings) {
	if l := s.currentListener(); l != nil {
		l.OnSettings(settings)
	}
}

// Snapshot returns the full session state
func (s *Session) Snapshot(ctx context.Context) Snapshot {
	list, err := s.registry.List(ctx)
	if err != nil {
		s.logger.Warn("Failed to list smart home entities", zap.Error(err))
	}
	return Snapshot{
		Session:  s.Descriptor(),
		Settings: s.Settings(),
		Voice:    s.voice.Status(),
		Log:      s.journal.Entries(),
		Chat:     s.journal.Chat(),
		Devices:  s.devices.Devices(),
		Entities: list,
		Tasks:    s.tasks.Status(),
	}
}

// Settings returns the current settings
func (s *Session) Settings() entities.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SystemActive implements orchestrator.State
func (s *Session) SystemActive() bool {
	return s.Settings().SystemActive
}

// InterruptionMode implements orchestrator.State
func (s *Session) InterruptionMode() entities.InterruptionMode {
	return s.Settings().InterruptionMode
}

// AnalysisMode implements orchestrator.State
func (s *Session) AnalysisMode() entities.AnalysisMode {
	return s.Settings().AnalysisMode
}

// UpdateSettings applies new settings. Activation goes through the same
// device checks as ToggleSystemActive.
func (s *Session) UpdateSettings(ctx context.Context, next entities.Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}

	current := s.Settings()
	if next.SystemActive != current.SystemActive {
		if err := s.SetSystemActive(ctx, next.SystemActive); err != nil {
			return err
		}
	}

	s.mu.Lock()
	previous := s.settings
	next.SystemActive = s.settings.SystemActive
	s.settings = next
	s.info.Settings = next
	s.mu.Unlock()

	s.narrator.SetMode(next.NarrationMode)
	s.objects.SetThreshold(next.ObjectConfidence)
	s.level.SetSensitivity(next.AudioSensitivity)
	if next.AnalysisMode != previous.AnalysisMode {
		s.journal.Log(entities.LogTypeSystem, fmt.Sprintf("Analysis mode switched to: %s", next.AnalysisMode))
	}
	s.applyVoice()
	s.settingsChanged(next)
	return nil
}

// SetSystemActive starts or pauses the system
func (s *Session) SetSystemActive(ctx context.Context, active bool) error {
	if s.SystemActive() == active {
		return nil
	}

	if active {
		if !s.devices.Ready() {
			s.alert(entities.LogTypeError, DevicesRequiredMessage)
			return ErrDevicesRequired
		}
		for _, kind := range []entities.DeviceKind{entities.DeviceKindVideoInput, entities.DeviceKindAudioInput} {
			if _, err := s.devices.Acquire(ctx, kind); err != nil {
				s.devices.ReleaseAll()
				return err
			}
		}
		s.setActive(true)
		s.alert(entities.LogTypeSystem, ActivatedMessage)
		return nil
	}

	s.deactivate()
	s.journal.Log(entities.LogTypeSystem, PausedMessage)
	return nil
}

// deactivate pauses every component and releases the devices
func (s *Session) deactivate() {
	s.setActive(false)
	s.narrator.Cancel()
	s.tasks.Cancel(supervisor.TaskVision)
	s.tasks.Cancel(supervisor.TaskInterruption)
	s.devices.ReleaseAll()
	s.objects.Reset()
	s.audio.Reset()
	s.level.Reset()
}

func (s *Session) setActive(active bool) {
	s.mu.Lock()
	s.settings.SystemActive = active
	s.info.Settings = s.settings
	settings := s.settings
	s.mu.Unlock()

	s.applyVoice()
	s.settingsChanged(settings)
}

func (s *Session) applyVoice() {
	settings := s.Settings()
	s.voice.Configure(settings.SystemActive, settings.VoiceActivation, settings.WakeWordMode)
}

// alert logs and narrates a system/error-class message
func (s *Session) alert(logType entities.LogType, message string) {
	s.journal.Log(logType, message)
	s.narrator.Narrate(s.ctx, message, entities.NarrationLevelAlert)
}

// ToggleSystemActive implements perception.GestureActions
func (s *Session) ToggleSystemActive() {
	if err := s.SetSystemActive(s.ctx, !s.SystemActive()); err != nil {
		s.logger.Warn("Failed to toggle system", zap.Error(err))
	}
}

// CycleAnalysisMode implements perception.GestureActions
func (s *Session) CycleAnalysisMode() {
	s.mu.Lock()
	s.settings.AnalysisMode = s.settings.AnalysisMode.Next()
	s.info.Settings = s.settings
	settings := s.settings
	s.mu.Unlock()

	s.alert(entities.LogTypeSystem, fmt.Sprintf("Analysis mode switched to: %s", settings.AnalysisMode))
	s.settingsChanged(settings)
}

// perceiving reports whether on-device input of mode should be processed
func (s *Session) perceiving(mode entities.AnalysisMode) bool {
	settings := s.Settings()
	return settings.SystemActive && (mode == "" || settings.AnalysisMode == mode)
}

// IngestDetections feeds one frame of object detections
func (s *Session) IngestDetections(detections []entities.Detection) {
	if s.perceiving(entities.AnalysisModeObjectDetection) {
		s.objects.Ingest(detections)
	}
}

// IngestHands feeds one frame of hand landmarks
func (s *Session) IngestHands(hands [][]entities.Landmark) {
	if s.perceiving(entities.AnalysisModeHandGesture) {
		s.gestures.Ingest(hands)
	}
}

// IngestAudioScores feeds one audio classification round
func (s *Session) IngestAudioScores(scores []entities.AudioScore) {
	if s.perceiving("") {
		s.audio.Ingest(scores)
	}
}

// IngestAudioLevel feeds one averaged microphone level sample
func (s *Session) IngestAudioLevel(average float64) {
	if s.perceiving("") {
		s.level.Ingest(average)
	}
}

// Recognizer returns the transcript sink console recognizers report to
func (s *Session) Recognizer() repositories.TranscriptSink { return s.voice }

// VoiceStatus returns the voice machine status
func (s *Session) VoiceStatus() entities.VoiceStatus { return s.voice.Status() }

// TriggerCapture opens a manual command window
func (s *Session) TriggerCapture() error { return s.voice.TriggerCapture() }

func (s *Session) handleVoiceCommand(ctx context.Context, command string) {
	if err := s.conversation.HandleCommand(ctx, command); err != nil && !errors.Is(err, supervisor.ErrBusy) {
		s.logger.Warn("Voice command failed", zap.String("command", command), zap.Error(err))
	}
}

// HandleChat runs a typed chat turn
func (s *Session) HandleChat(ctx context.Context, text string) error {
	return s.conversation.HandleCommand(ctx, text)
}

// Summarize summarizes recent events
func (s *Session) Summarize(ctx context.Context, minutes int) error {
	return s.conversation.Summarize(ctx, minutes)
}

// ClearLog clears the event log
func (s *Session) ClearLog() entities.LogEntry {
	return s.journal.Clear()
}

// UpdateDevices handles a device enumeration
func (s *Session) UpdateDevices(list []entities.MediaDevice) {
	s.devices.UpdateDevices(list)
}

// ReportEnumerationError handles a failed device enumeration
func (s *Session) ReportEnumerationError(reason string) {
	s.devices.ReportEnumerationError(reason)
}

// SelectDevice changes a device selection, reacquiring it while active
func (s *Session) SelectDevice(ctx context.Context, kind entities.DeviceKind, deviceID string) error {
	changed, err := s.devices.Select(kind, deviceID)
	if err != nil || !changed || !s.SystemActive() {
		return err
	}
	_, err = s.devices.Acquire(ctx, kind)
	return err
}

// ReportStreamError handles a permission or device error. The system is
// paused so nothing keeps polling a dead device.
func (s *Session) ReportStreamError(kind entities.DeviceKind, message string) {
	if s.SystemActive() {
		s.deactivate()
	}
	s.devices.ReportStreamError(kind, message)
}
