// Package narration turns outbound text into speech under the session's
// narration mode, keeping speech and recognition mutually exclusive.
package narration

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/domain/repositories"
)

// ListeningSuspender is implemented by the voice state machine
type ListeningSuspender interface {
	SuspendListening()
	ResumeListening()
}

// Controller speaks one utterance at a time. A new utterance cancels the
// one in progress.
type Controller struct {
	synth    repositories.SpeechSynthesizer
	listener ListeningSuspender
	logger   *zap.Logger

	mu        sync.Mutex
	mode      entities.NarrationMode
	utterance uint64
	speaking  bool
}

// NewController creates a controller in alerts-only mode
func NewController(synth repositories.SpeechSynthesizer, listener ListeningSuspender, logger *zap.Logger) *Controller {
	return &Controller{
		synth:    synth,
		listener: listener,
		logger:   logger,
		mode:     entities.NarrationAlertsOnly,
	}
}

// SetMode changes the narration mode. Switching to off cancels speech.
func (c *Controller) SetMode(mode entities.NarrationMode) {
	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()

	if mode == entities.NarrationOff {
		c.Cancel()
	}
}

// Mode returns the current narration mode
func (c *Controller) Mode() entities.NarrationMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// ShouldSpeak reports whether a message at level passes the current mode
func (c *Controller) ShouldSpeak(level entities.NarrationLevel) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return allowed(c.mode, level)
}

func allowed(mode entities.NarrationMode, level entities.NarrationLevel) bool {
	switch mode {
	case entities.NarrationFull:
		return true
	case entities.NarrationAlertsOnly:
		return level == entities.NarrationLevelAlert
	default:
		return false
	}
}

// Narrate speaks message if the mode allows its level
func (c *Controller) Narrate(ctx context.Context, message string, level entities.NarrationLevel) {
	if !c.ShouldSpeak(level) {
		return
	}
	c.speak(ctx, message)
}

// Announce speaks message regardless of mode
func (c *Controller) Announce(ctx context.Context, text string) {
	c.speak(ctx, text)
}

func (c *Controller) speak(ctx context.Context, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}

	c.mu.Lock()
	c.utterance++
	utterance := c.utterance
	wasSpeaking := c.speaking
	c.speaking = true
	c.mu.Unlock()

	if !wasSpeaking {
		c.listener.SuspendListening()
	}
	// barge in on ourselves rather than queue
	c.synth.Cancel()

	err := c.synth.Speak(ctx, message, func() { c.finished(utterance) })
	if err != nil {
		c.logger.Warn("Failed to start narration", zap.Error(err))
		c.finished(utterance)
	}
}

// finished resumes listening when the latest utterance ends
func (c *Controller) finished(utterance uint64) {
	c.mu.Lock()
	if c.utterance != utterance || !c.speaking {
		c.mu.Unlock()
		return
	}
	c.speaking = false
	c.mu.Unlock()

	c.listener.ResumeListening()
}

// Cancel stops any utterance in progress
func (c *Controller) Cancel() {
	c.mu.Lock()
	wasSpeaking := c.speaking
	c.utterance++
	c.speaking = false
	c.mu.Unlock()

	c.synth.Cancel()
	if wasSpeaking {
		c.listener.ResumeListening()
	}
}

// Speaking reports whether an utterance is in progress
func (c *Controller) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}
