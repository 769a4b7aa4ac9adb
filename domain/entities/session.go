package entities

import (
	"errors"
	"time"
)

// SessionStatus represents the status of a console session
type SessionStatus string

const (
	SessionStatusActive     SessionStatus = "active"
	SessionStatusTerminated SessionStatus = "terminated"
)

// ConsoleSession describes one connected console. Chat and log state live
// only as long as the session and are never persisted.
type ConsoleSession struct {
	ID           string        `json:"id"`
	ConsoleID    string        `json:"console_id"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActiveAt time.Time     `json:"last_active_at"`
	Status       SessionStatus `json:"status"`
	Settings     Settings      `json:"settings"`
}

// NewConsoleSession creates a new session for a console
func NewConsoleSession(id, consoleID string) *ConsoleSession {
	now := time.Now()
	return &ConsoleSession{
		ID:           id,
		ConsoleID:    consoleID,
		CreatedAt:    now,
		LastActiveAt: now,
		Status:       SessionStatusActive,
		Settings:     DefaultSettings(),
	}
}

// UpdateLastActive updates the last active timestamp
func (s *ConsoleSession) UpdateLastActive() {
	s.LastActiveAt = time.Now()
}

// IsIdle reports whether the console has been silent for longer than d
func (s *ConsoleSession) IsIdle(d time.Duration) bool {
	return time.Since(s.LastActiveAt) > d
}

// Terminate marks the session as terminated
func (s *ConsoleSession) Terminate() {
	s.Status = SessionStatusTerminated
	s.UpdateLastActive()
}

// Validate validates the session data
func (s *ConsoleSession) Validate() error {
	if s.ConsoleID == "" {
		return errors.New("console_id is required")
	}

	if s.Status != SessionStatusActive && s.Status != SessionStatusTerminated {
		return errors.New("invalid session status")
	}

	return s.Settings.Validate()
}
