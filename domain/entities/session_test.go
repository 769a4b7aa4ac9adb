package entities

import (
	"testing"
	"time"
)

func TestConsoleSessionCreation(t *testing.T) {
	session := NewConsoleSession("session-1", "console-123")

	if session.ConsoleID != "console-123" {
		t.Errorf("Expected console ID console-123, got %s", session.ConsoleID)
	}

	if session.Status != SessionStatusActive {
		t.Errorf("Expected status %s, got %s", SessionStatusActive, session.Status)
	}

	if session.Settings.SystemActive {
		t.Error("New sessions should start paused")
	}

	if session.Settings.NarrationMode != NarrationAlertsOnly {
		t.Errorf("Expected narration mode %s, got %s", NarrationAlertsOnly, session.Settings.NarrationMode)
	}
}

func TestConsoleSessionValidation(t *testing.T) {
	session := NewConsoleSession("session-1", "console-1")
	if err := session.Validate(); err != nil {
		t.Errorf("Valid session should not have validation errors, got: %v", err)
	}

	session.ConsoleID = ""
	if err := session.Validate(); err == nil {
		t.Error("Session with empty console ID should have validation error")
	}

	session.ConsoleID = "console-1"
	session.Status = SessionStatus("invalid")
	if err := session.Validate(); err == nil {
		t.Error("Session with invalid status should have validation error")
	}

	session.Status = SessionStatusActive
	session.Settings.AudioSensitivity = 101
	if err := session.Validate(); err == nil {
		t.Error("Session with out of range sensitivity should have validation error")
	}
}

func TestConsoleSessionIdle(t *testing.T) {
	session := NewConsoleSession("session-1", "console-1")
	if session.IsIdle(time.Minute) {
		t.Error("Fresh session should not be idle")
	}

	session.LastActiveAt = time.Now().Add(-2 * time.Minute)
	if !session.IsIdle(time.Minute) {
		t.Error("Session should be idle after two silent minutes")
	}

	session.Terminate()
	if session.Status != SessionStatusTerminated {
		t.Errorf("Expected terminated status, got %s", session.Status)
	}
}

func TestAnalysisModeCycle(t *testing.T) {
	mode := AnalysisModeObjectDetection
	seen := []AnalysisMode{mode}
	for i := 0; i < len(AnalysisModes); i++ {
		mode = mode.Next()
		seen = append(seen, mode)
	}

	if seen[1] != AnalysisModeHandGesture || seen[2] != AnalysisModeContextualQA {
		t.Errorf("Unexpected cycle order: %v", seen)
	}
	if seen[3] != AnalysisModeObjectDetection {
		t.Errorf("Cycle should wrap around, got %s", seen[3])
	}
}

func TestActionFromFunctionCall(t *testing.T) {
	action, err := ActionFromFunctionCall(FunctionCall{
		Name: FunctionCallHomeAssistant,
		Args: map[string]any{
			"entity_id":            "light.desk_lamp",
			"service":              "turn_on",
			"confirmation_message": "Desk lamp on.",
		},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	call, ok := action.(CallHomeAssistant)
	if !ok {
		t.Fatalf("Expected CallHomeAssistant, got %T", action)
	}
	if call.EntityID != "light.desk_lamp" || call.Service != ServiceTurnOn {
		t.Errorf("Unexpected decoded call: %+v", call)
	}

	if _, err := ActionFromFunctionCall(FunctionCall{Name: "launch_missiles"}); err != ErrUnknownAction {
		t.Errorf("Expected ErrUnknownAction, got %v", err)
	}

	if _, err := ActionFromFunctionCall(FunctionCall{Name: FunctionAnswerUser}); err == nil {
		t.Error("answer_user without spoken_response should fail")
	}
}
