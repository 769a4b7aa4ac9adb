package websocket

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const (
	defaultIdleTimeout     = 10 * time.Minute
	defaultCleanupInterval = time.Minute
)

// IdleConsoles is what the cleanup service sweeps
type IdleConsoles interface {
	CloseIdle(d time.Duration) int
}

// SessionCleanupService closes console sessions that stopped talking.
// Pongs do not count as activity, only console messages do.
type SessionCleanupService struct {
	consoles    IdleConsoles
	idleTimeout time.Duration
	interval    time.Duration
	clock       clock.Clock
	logger      *zap.Logger
	stopChan    chan struct{}
	doneChan    chan struct{}
}

// NewSessionCleanupService creates a new session cleanup service. Zero
// durations fall back to the defaults.
func NewSessionCleanupService(consoles IdleConsoles, idleTimeout, interval time.Duration, clk clock.Clock, logger *zap.Logger) *SessionCleanupService {
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	return &SessionCleanupService{
		consoles:    consoles,
		idleTimeout: idleTimeout,
		interval:    interval,
		clock:       clk,
		logger:      logger,
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *SessionCleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Session cleanup service started",
		zap.Duration("idleTimeout", s.idleTimeout),
		zap.Duration("interval", s.interval))
}

// Stop stops the cleanup service and waits for the loop to exit
func (s *SessionCleanupService) Stop() {
	close(s.stopChan)
	<-s.doneChan
	s.logger.Info("Session cleanup service stopped")
}

func (s *SessionCleanupService) cleanupLoop() {
	defer close(s.doneChan)

	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

func (s *SessionCleanupService) runCleanup() {
	if closed := s.consoles.CloseIdle(s.idleTimeout); closed > 0 {
		s.logger.Info("Closed idle consoles", zap.Int("count", closed))
	}
}
