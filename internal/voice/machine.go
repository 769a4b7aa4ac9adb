// Package voice implements the voice activation state machine: recognizer
// lifecycle, wake-word detection, the command capture window and the
// reconnect policy.
package voice

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
)

const (
	defaultWakeWindow      = 5 * time.Second
	defaultManualWindow    = 7 * time.Second
	defaultBackoffBase     = 5 * time.Second
	defaultBackoffMax      = 30 * time.Second
	defaultStableAfter     = 15 * time.Second
	defaultAcknowledgement = "Yes, sir?"
)

var (
	// ErrVoiceOff is returned when capture is requested while voice is disabled
	ErrVoiceOff = errors.New("voice activation is off")
	// ErrCaptureBusy is returned when a capture window or command is already active
	ErrCaptureBusy = errors.New("a command is already being captured or processed")
	// ErrRecognizerUnavailable is returned while the recognizer is reconnecting
	ErrRecognizerUnavailable = errors.New("speech recognizer is reconnecting")
)

// Config holds the tunable timings of the state machine
type Config struct {
	WakeWindow      time.Duration
	ManualWindow    time.Duration
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	StableAfter     time.Duration
	WakePhrases     []string
	Acknowledgement string
}

// DefaultConfig returns the default timings
func DefaultConfig() Config {
	return Config{
		WakeWindow:      defaultWakeWindow,
		ManualWindow:    defaultManualWindow,
		BackoffBase:     defaultBackoffBase,
		BackoffMax:      defaultBackoffMax,
		StableAfter:     defaultStableAfter,
		WakePhrases:     []string{"hey jarvis", "jarvis"},
		Acknowledgement: defaultAcknowledgement,
	}
}

// ValidateConfig validates the Config
func ValidateConfig(config Config) error {
	if config.WakeWindow <= 0 || config.ManualWindow <= 0 {
		return fmt.Errorf("capture windows must be positive")
	}
	if config.BackoffBase <= 0 || config.BackoffMax < config.BackoffBase {
		return fmt.Errorf("backoff max must be at least the base delay")
	}
	if config.StableAfter <= 0 {
		return fmt.Errorf("stable period must be positive")
	}
	if len(compilePhrases(config.WakePhrases)) == 0 {
		return fmt.Errorf("at least one wake phrase is required")
	}
	return nil
}

// Announcer speaks short acknowledgements regardless of narration mode
type Announcer interface {
	Announce(ctx context.Context, text string)
}

// Logger records user-visible events
type Logger interface {
	Log(logType entities.LogType, message string) entities.LogEntry
}

// CommandHandler runs one captured command to completion
type CommandHandler func(ctx context.Context, command string)

// phase is the logical state; speaking and reconnecting overlay it
type phase int

const (
	phaseOff phase = iota
	phaseReady
	phaseListening
	phaseWaitingCommand
	phaseProcessing
)

// Machine is the voice activation state machine of one session
type Machine struct {
	config     Config
	phrases    [][]string
	clock      clock.Clock
	recognizer repositories.SpeechRecognizer
	events     Logger
	logger     *zap.Logger

	announcer Announcer
	handler   CommandHandler
	onStatus  func(entities.VoiceStatus)
	onInterim func(string)

	mu           sync.Mutex
	phase        phase
	enabled      bool
	wakeMode     bool
	speaking     bool
	reconnecting bool
	running      bool
	errorStreak  bool
	closed       bool
	backoff      *Backoff
	windowTimer  *clock.Timer
	restartTimer *clock.Timer
	stableTimer  *clock.Timer
	seq          uint64
	lastStatus   entities.VoiceStatus
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewMachine creates a machine in the off state
func NewMachine(config Config, clk clock.Clock, recognizer repositories.SpeechRecognizer, events Logger, logger *zap.Logger) *Machine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Machine{
		config:     config,
		phrases:    compilePhrases(config.WakePhrases),
		clock:      clk,
		recognizer: recognizer,
		events:     events,
		logger:     logger,
		phase:      phaseOff,
		wakeMode:   true,
		backoff:    NewBackoff(config.BackoffBase, config.BackoffMax),
		lastStatus: entities.VoiceStatusOff,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetAnnouncer sets the acknowledgement speaker. Call before Configure.
func (m *Machine) SetAnnouncer(a Announcer) { m.announcer = a }

// SetCommandHandler sets the command handler. Call before Configure.
func (m *Machine) SetCommandHandler(h CommandHandler) { m.handler = h }

// SetStatusListener is notified on every status change. Call before Configure.
func (m *Machine) SetStatusListener(fn func(entities.VoiceStatus)) { m.onStatus = fn }

// SetInterimListener receives interim transcripts during command capture
func (m *Machine) SetInterimListener(fn func(string)) { m.onInterim = fn }

// effects collects work that must run after the lock is released
type effects []func()

func (e *effects) add(fn func()) { *e = append(*e, fn) }

func (m *Machine) unlock(fx effects) {
	fx = m.statusEffect(fx)
	m.mu.Unlock()
	for _, fn := range fx {
		fn()
	}
}

func (m *Machine) statusEffect(fx effects) effects {
	status := m.statusLocked()
	if status == m.lastStatus {
		return fx
	}
	m.lastStatus = status
	m.logger.Debug("Voice status changed", zap.String("status", string(status)))
	if m.onStatus != nil {
		listener := m.onStatus
		fx.add(func() { listener(status) })
	}
	return fx
}

// Status returns the single authoritative voice status
func (m *Machine) Status() entities.VoiceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Machine) statusLocked() entities.VoiceStatus {
	switch {
	case m.speaking:
		return entities.VoiceStatusSpeaking
	case m.reconnecting && m.phase != phaseOff:
		return entities.VoiceStatusReconnecting
	}

	switch m.phase {
	case phaseReady:
		return entities.VoiceStatusReady
	case phaseListening:
		return entities.VoiceStatusListening
	case phaseWaitingCommand:
		return entities.VoiceStatusWaitingCommand
	case phaseProcessing:
		return entities.VoiceStatusProcessing
	default:
		return entities.VoiceStatusOff
	}
}

func (m *Machine) idlePhase() phase {
	if m.wakeMode {
		return phaseListening
	}
	return phaseReady
}

// Configure applies the session settings that drive the machine
func (m *Machine) Configure(systemActive, voiceActivation, wakeWordMode bool) {
	m.mu.Lock()
	var fx effects
	if m.closed {
		m.unlock(fx)
		return
	}

	m.enabled = systemActive && voiceActivation
	m.wakeMode = wakeWordMode

	switch {
	case !m.enabled:
		m.stopWindow()
		m.stopReconnect()
		m.backoff.Reset()
		m.errorStreak = false
		m.phase = phaseOff
	case m.phase == phaseOff:
		m.stopReconnect()
		m.backoff.Reset()
		m.errorStreak = false
		m.phase = m.idlePhase()
	case m.phase == phaseReady || m.phase == phaseListening:
		m.phase = m.idlePhase()
	}

	m.syncRecognizer(&fx)
	m.unlock(fx)
}

// TriggerCapture opens a manual capture window, the push-to-talk equivalent
func (m *Machine) TriggerCapture() error {
	m.mu.Lock()
	var fx effects
	defer func() { m.unlock(fx) }()

	switch {
	case m.closed || !m.enabled:
		return ErrVoiceOff
	case m.reconnecting:
		return ErrRecognizerUnavailable
	case m.phase == phaseWaitingCommand || m.phase == phaseProcessing:
		return ErrCaptureBusy
	}

	m.phase = phaseWaitingCommand
	m.startWindow(m.config.ManualWindow)
	m.syncRecognizer(&fx)
	return nil
}

// OnTranscript implements repositories.TranscriptSink
func (m *Machine) OnTranscript(text string, final bool) {
	m.mu.Lock()
	var fx effects
	defer func() { m.unlock(fx) }()

	if m.closed || !m.enabled {
		return
	}

	switch m.phase {
	case phaseProcessing:
		if final {
			m.logger.Debug("Dropping transcript while processing", zap.String("transcript", text))
		}

	case phaseListening:
		matched, remainder := matchWake(text, m.phrases)
		if !matched {
			return
		}
		if final && remainder != "" {
			m.logger.Info("Wake phrase with inline command", zap.String("command", remainder))
			m.submit(&fx, remainder)
			return
		}
		m.logger.Info("Wake phrase detected")
		m.phase = phaseWaitingCommand
		m.startWindow(m.config.WakeWindow)
		if m.announcer != nil {
			announcer, ack, ctx := m.announcer, m.config.Acknowledgement, m.ctx
			fx.add(func() { announcer.Announce(ctx, ack) })
		}

	case phaseWaitingCommand:
		command := stripWake(text, m.phrases)
		if command == "" {
			// the wake phrase itself; the first window wins
			return
		}
		if !final {
			if m.onInterim != nil {
				listener := m.onInterim
				fx.add(func() { listener(command) })
			}
			return
		}
		m.submit(&fx, command)
	}
}

// submit moves to processing and runs the handler off the lock
func (m *Machine) submit(fx *effects, command string) {
	m.stopWindow()
	m.phase = phaseProcessing
	m.seq++
	seq := m.seq

	if m.events != nil {
		events := m.events
		fx.add(func() { events.Log(entities.LogTypeSystem, fmt.Sprintf("Voice command: %q", command)) })
	}

	handler, ctx := m.handler, m.ctx
	fx.add(func() {
		go func() {
			defer m.finishProcessing(seq)
			if handler != nil {
				handler(ctx, command)
			}
		}()
	})
}

func (m *Machine) finishProcessing(seq uint64) {
	m.mu.Lock()
	var fx effects
	if !m.closed && m.phase == phaseProcessing && m.seq == seq {
		m.phase = m.idlePhase()
		m.syncRecognizer(&fx)
	}
	m.unlock(fx)
}

// OnRecognizerError implements repositories.TranscriptSink
func (m *Machine) OnRecognizerError(code string) {
	if entities.IsBenignRecognizerError(code) {
		m.logger.Debug("Ignoring benign recognizer error", zap.String("code", code))
		return
	}

	m.mu.Lock()
	var fx effects
	defer func() { m.unlock(fx) }()

	if m.closed || !m.enabled || m.phase == phaseOff {
		m.logger.Debug("Ignoring recognizer error while voice is off", zap.String("code", code))
		return
	}

	m.logger.Warn("Speech recognizer error", zap.String("code", code))
	if !m.errorStreak {
		m.errorStreak = true
		if m.events != nil {
			events := m.events
			message := fmt.Sprintf("Speech recognition error (%s). Reconnecting...", code)
			fx.add(func() { events.Log(entities.LogTypeError, message) })
		}
	}

	m.scheduleReconnect()
}

// OnRecognizerEnd implements repositories.TranscriptSink
func (m *Machine) OnRecognizerEnd() {
	m.mu.Lock()
	var fx effects
	defer func() { m.unlock(fx) }()

	m.running = false
	if m.closed || m.reconnecting {
		return
	}
	// continuous recognition ends on its own; restart when it should run
	m.syncRecognizer(&fx)
}

// SuspendListening stops recognition while narration owns audio output
func (m *Machine) SuspendListening() {
	m.mu.Lock()
	var fx effects
	m.speaking = true
	m.syncRecognizer(&fx)
	m.unlock(fx)
}

// ResumeListening restarts recognition after narration ends. Recognition
// only restarts when the system is active and voice activation is on.
func (m *Machine) ResumeListening() {
	m.mu.Lock()
	var fx effects
	m.speaking = false
	m.syncRecognizer(&fx)
	m.unlock(fx)
}

// Close cancels every timer, stops the recognizer and ignores further input
func (m *Machine) Close() {
	m.mu.Lock()
	var fx effects
	if m.closed {
		m.unlock(fx)
		return
	}
	m.closed = true
	m.stopWindow()
	m.stopReconnect()
	m.phase = phaseOff
	m.speaking = false
	m.syncRecognizer(&fx)
	m.cancel()
	m.unlock(fx)
}

func (m *Machine) shouldRun() bool {
	return !m.closed && m.enabled && m.phase != phaseOff && !m.speaking && !m.reconnecting
}

// syncRecognizer starts or stops the recognizer to match the state
func (m *Machine) syncRecognizer(fx *effects) {
	want := m.shouldRun()
	switch {
	case want && !m.running:
		if err := m.recognizer.Start(); err != nil {
			m.logger.Warn("Failed to start recognizer", zap.Error(err))
			if !m.errorStreak {
				m.errorStreak = true
				if m.events != nil {
					events := m.events
					message := fmt.Sprintf("Speech recognition unavailable: %v", err)
					fx.add(func() { events.Log(entities.LogTypeError, message) })
				}
			}
			m.scheduleReconnect()
			return
		}
		m.running = true
		if m.backoff.Attempts() > 0 {
			m.startStableTimer()
		}
	case !want && m.running:
		m.recognizer.Stop()
		m.running = false
		m.stopStableTimer()
	}
}

func (m *Machine) scheduleReconnect() {
	m.stopStableTimer()
	if m.running {
		m.recognizer.Stop()
		m.running = false
	}
	if m.restartTimer != nil {
		m.restartTimer.Stop()
	}

	m.reconnecting = true
	delay := m.backoff.Next()
	m.logger.Info("Scheduling recognizer restart", zap.Duration("delay", delay), zap.Int("attempt", m.backoff.Attempts()))

	var timer *clock.Timer
	timer = m.clock.AfterFunc(delay, func() {
		m.mu.Lock()
		var fx effects
		if m.closed || m.restartTimer != timer {
			m.unlock(fx)
			return
		}
		m.restartTimer = nil
		m.reconnecting = false
		m.syncRecognizer(&fx)
		m.unlock(fx)
	})
	m.restartTimer = timer
}

func (m *Machine) stopReconnect() {
	if m.restartTimer != nil {
		m.restartTimer.Stop()
		m.restartTimer = nil
	}
	m.reconnecting = false
	m.stopStableTimer()
}

func (m *Machine) startStableTimer() {
	m.stopStableTimer()
	var timer *clock.Timer
	timer = m.clock.AfterFunc(m.config.StableAfter, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed || m.stableTimer != timer {
			return
		}
		m.stableTimer = nil
		m.backoff.Reset()
		m.errorStreak = false
		m.logger.Info("Speech recognition stable, backoff reset")
	})
	m.stableTimer = timer
}

func (m *Machine) stopStableTimer() {
	if m.stableTimer != nil {
		m.stableTimer.Stop()
		m.stableTimer = nil
	}
}

func (m *Machine) startWindow(d time.Duration) {
	m.stopWindow()
	var timer *clock.Timer
	timer = m.clock.AfterFunc(d, func() {
		m.mu.Lock()
		var fx effects
		if m.closed || m.windowTimer != timer {
			m.unlock(fx)
			return
		}
		m.windowTimer = nil
		if m.phase == phaseWaitingCommand {
			m.logger.Debug("Command window expired")
			m.phase = m.idlePhase()
		}
		m.unlock(fx)
	})
	m.windowTimer = timer
}

func (m *Machine) stopWindow() {
	if m.windowTimer != nil {
		m.windowTimer.Stop()
		m.windowTimer = nil
	}
}
