package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "0123456789abcdef")
	t.Setenv("VISTA_ACCESS_KEYS", "desk-key=console-desk, lab-key = console-lab")
	t.Setenv("VISTA_MOCK_LLM", "true")
	t.Setenv("VISTA_VISION_INTERVAL", "20")
	t.Setenv("VISTA_WAKE_WINDOW", "2500ms")
	t.Setenv("VISTA_WAKE_PHRASES", "hey vista, vista")

	config, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", config.Port)
	}
	wantKeys := map[string]string{"desk-key": "console-desk", "lab-key": "console-lab"}
	if diff := cmp.Diff(wantKeys, config.AccessKeys); diff != "" {
		t.Errorf("access keys mismatch (-want +got):\n%s", diff)
	}
	if config.Session.Orchestrator.VisionInterval != 20*time.Second {
		t.Errorf("Expected vision interval 20s, got %v", config.Session.Orchestrator.VisionInterval)
	}
	if config.Session.Voice.WakeWindow != 2500*time.Millisecond {
		t.Errorf("Expected wake window 2.5s, got %v", config.Session.Voice.WakeWindow)
	}
	if diff := cmp.Diff([]string{"hey vista", "vista"}, config.Session.Voice.WakePhrases); diff != "" {
		t.Errorf("wake phrases mismatch (-want +got):\n%s", diff)
	}
	if err := ValidateConfig(config); err != nil {
		t.Errorf("ValidateConfig() error = %v", err)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("VISTA_ACCESS_KEYS", "no-separator")
	if _, err := Load(); err == nil {
		t.Error("Expected error for malformed access keys")
	}

	t.Setenv("VISTA_ACCESS_KEYS", "")
	t.Setenv("VISTA_IDLE_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Error("Expected error for malformed duration")
	}
}

func TestValidateConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef")
	t.Setenv("VISTA_ACCESS_KEYS", "key=console")
	t.Setenv("VISTA_MOCK_LLM", "true")
	valid, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := ValidateConfig(valid); err != nil {
		t.Fatalf("ValidateConfig() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"short secret", func(c *Config) { c.JWTSecret = []byte("short") }},
		{"no consoles", func(c *Config) { c.AccessKeys = nil }},
		{"gemini without key", func(c *Config) { c.MockLLM = false; c.Gemini.APIKey = "" }},
		{"server tts without key", func(c *Config) { c.ServerTTS = true; c.ElevenLabs.APIKey = "" }},
		{"zero vision interval", func(c *Config) { c.Session.Orchestrator.VisionInterval = 0 }},
		{"backoff max below base", func(c *Config) { c.Session.Voice.BackoffMax = time.Second }},
		{"no wake phrase", func(c *Config) { c.Session.Voice.WakePhrases = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.mutate(&config)
			if err := ValidateConfig(config); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
